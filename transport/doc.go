// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package transport implements api.ConnectionProvider on top of a dialable
// text socket. Base owns the socket lifecycle and the shared streams;
// the subpackages only know how to dial, read and write one socket kind.
package transport
