// Package protocol
// Author: momentics <momentics@gmail.com>
//
// STOMP commands understood by the client.

package protocol

// Command is a STOMP frame command.
type Command string

const (
	CommandConnect     Command = "CONNECT"
	CommandConnected   Command = "CONNECTED"
	CommandSend        Command = "SEND"
	CommandMessage     Command = "MESSAGE"
	CommandSubscribe   Command = "SUBSCRIBE"
	CommandUnsubscribe Command = "UNSUBSCRIBE"

	// CommandUnknown stands for any input that is not a well-formed frame
	// of a known command, including the heartbeat pseudo-frame.
	CommandUnknown Command = "UNKNOWN"
)

// ParseCommand maps a command line onto a known Command, or CommandUnknown.
func ParseCommand(s string) Command {
	switch c := Command(s); c {
	case CommandConnect, CommandConnected, CommandSend, CommandMessage,
		CommandSubscribe, CommandUnsubscribe:
		return c
	default:
		return CommandUnknown
	}
}

func (c Command) String() string {
	return string(c)
}
