// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Concurrency primitives for hioload-stomp: an unbounded queue-backed
// mailbox, a fan-out broadcast registry built on it, a one-shot latch used
// as the "wait until connected" gate, and the wall-clock scheduler.
package concurrency
