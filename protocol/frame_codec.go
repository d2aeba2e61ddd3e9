// File: protocol/frame_codec.go
// Package protocol implements the STOMP text frame codec.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Wire layout:
//
//	COMMAND\n
//	key:value\n ...
//	\n
//	payload
//	[\n\n when legacy whitespace is on]
//	\0
//
// Decoding is permissive: a line that is not a key:value header ends the
// header block and everything after it, up to the terminator, is payload.

package protocol

import (
	"regexp"
	"strings"
)

// Terminator ends every encoded frame.
const Terminator = "\x00"

var headerPattern = regexp.MustCompile(`^([^:\s]+)\s*:\s*([^:\s]+)$`)

// Encode serializes f into its wire text.
func Encode(f Frame, legacyWhitespace bool) string {
	var b strings.Builder
	b.Grow(len(f.command) + len(f.payload) + 16*len(f.headers) + 4)

	b.WriteString(string(f.command))
	b.WriteByte('\n')
	for _, h := range f.headers {
		b.WriteString(h.Key)
		b.WriteByte(':')
		b.WriteString(h.Value)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	b.WriteString(f.payload)
	if legacyWhitespace {
		b.WriteString("\n\n")
	}
	b.WriteString(Terminator)
	return b.String()
}

// Decode parses wire text into a Frame. It never fails; input that is blank
// after trimming (a heartbeat) becomes an UNKNOWN frame carrying the raw text.
func Decode(text string) Frame {
	if strings.TrimSpace(text) == "" {
		return Frame{command: CommandUnknown, payload: text, heartbeat: true}
	}

	rest := strings.TrimLeft(text, "\r\n")
	line, rest := cutLine(rest)
	f := Frame{command: ParseCommand(line)}

	for rest != "" {
		line, tail := cutLine(rest)
		m := headerPattern.FindStringSubmatch(line)
		if m == nil {
			break
		}
		f.headers = append(f.headers, Header{Key: m[1], Value: m[2]})
		rest = tail
	}

	// rest now starts at the separator line; drop one newline of it.
	if strings.HasPrefix(rest, "\r\n") {
		rest = rest[2:]
	} else {
		rest = strings.TrimPrefix(rest, "\n")
	}
	if i := strings.Index(rest, Terminator); i >= 0 {
		rest = rest[:i]
	}
	f.payload = rest
	return f
}

// cutLine splits s at the first newline, dropping a trailing \r from the line.
func cutLine(s string) (line, rest string) {
	line, rest, _ = strings.Cut(s, "\n")
	return strings.TrimSuffix(line, "\r"), rest
}
