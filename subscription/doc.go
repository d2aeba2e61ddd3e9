// Package subscription
// Author: momentics <momentics@gmail.com>
//
// Reference-counted destination multiplexing over one STOMP session. Any
// number of listeners may share a destination; the broker sees exactly one
// SUBSCRIBE when the first listener attaches and one UNSUBSCRIBE when the
// last one leaves.
package subscription
