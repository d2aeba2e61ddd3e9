// Package protocol
// Author: momentics <momentics@gmail.com>
//
// Implements the STOMP text frame model and its wire codec.
//
// Includes:
//   - Frame, Command and Header types (immutable once built)
//   - Encode, with optional legacy whitespace before the NUL terminator
//   - Decode, which never fails: malformed input degrades to payload
//   - the bare-newline heartbeat pseudo-frame
package protocol
