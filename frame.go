package livesession

import (
	"bytes"
	"fmt"
	"strings"
)

// Command is a STOMP frame command.
type Command string

// Commands understood by the client. Any other command decodes as an
// unknown frame rather than failing.
const (
	CmdConnect     Command = "CONNECT"
	CmdConnected   Command = "CONNECTED"
	CmdSubscribe   Command = "SUBSCRIBE"
	CmdUnsubscribe Command = "UNSUBSCRIBE"
	CmdSend        Command = "SEND"
	CmdMessage     Command = "MESSAGE"
	CmdDisconnect  Command = "DISCONNECT"
	CmdError       Command = "ERROR"
)

// Header names used by the client.
const (
	HeaderAuthorization = "Authorization"
	HeaderAcceptVersion = "accept-version"
	HeaderDestination   = "destination"
	HeaderID            = "id"
	HeaderContentType   = "content-type"
	HeaderMessage       = "message"
	HeaderSubscription  = "subscription"
)

const (
	acceptVersion   = "1.2"
	contentTypeJSON = "application/json"
)

func (c Command) known() bool {
	switch c {
	case CmdConnect, CmdConnected, CmdSubscribe, CmdUnsubscribe,
		CmdSend, CmdMessage, CmdDisconnect, CmdError:
		return true
	}
	return false
}

// Header is a single frame header line.
type Header struct {
	Name  string
	Value string
}

// Frame is one protocol message unit. A Frame is not modified after
// construction; NewFrame and Decode copy their inputs.
type Frame struct {
	Command Command
	Headers []Header
	Body    []byte
}

// NewFrame builds a frame from a command, an optional body and headers in
// the order they should be written.
func NewFrame(cmd Command, body []byte, headers ...Header) Frame {
	f := Frame{Command: cmd}
	if len(headers) > 0 {
		f.Headers = append([]Header(nil), headers...)
	}
	if len(body) > 0 {
		f.Body = append([]byte(nil), body...)
	}
	return f
}

// Known reports whether the frame carries one of the commands the client
// understands. Frames from protocol extensions decode with Known() == false.
func (f Frame) Known() bool {
	return f.Command.known()
}

// Header returns the first value for name.
func (f Frame) Header(name string) (string, bool) {
	for _, h := range f.Headers {
		if h.Name == name {
			return h.Value, true
		}
	}
	return "", false
}

// Validate reports whether the frame encodes without changing its meaning.
// Header names and values may not contain CR, LF or NUL, and names may not
// contain a colon.
func (f Frame) Validate() error {
	if f.Command == "" || strings.ContainsAny(string(f.Command), "\r\n\x00:") {
		return fmt.Errorf("%w: command %q", ErrInvalidHeader, f.Command)
	}
	for _, h := range f.Headers {
		if h.Name == "" || strings.ContainsAny(h.Name, "\r\n\x00:") {
			return fmt.Errorf("%w: name %q", ErrInvalidHeader, h.Name)
		}
		if strings.ContainsAny(h.Value, "\r\n\x00") {
			return fmt.Errorf("%w: %s value %q", ErrInvalidHeader, h.Name, h.Value)
		}
	}
	return nil
}

// Encode renders the frame as COMMAND\nname:value\n...\n\nbody\x00.
// A header name given more than once is written once, at its first
// position, carrying the last value. Encode does not check the frame;
// callers writing untrusted header values run Validate first.
func (f Frame) Encode() []byte {
	var buf bytes.Buffer
	buf.WriteString(string(f.Command))
	buf.WriteByte('\n')

	for i, h := range f.Headers {
		if seenBefore(f.Headers[:i], h.Name) {
			continue
		}
		value := h.Value
		for _, later := range f.Headers[i+1:] {
			if later.Name == h.Name {
				value = later.Value
			}
		}
		buf.WriteString(h.Name)
		buf.WriteByte(':')
		buf.WriteString(value)
		buf.WriteByte('\n')
	}

	buf.WriteByte('\n')
	buf.Write(f.Body)
	buf.WriteByte(0)
	return buf.Bytes()
}

func seenBefore(headers []Header, name string) bool {
	for _, h := range headers {
		if h.Name == name {
			return true
		}
	}
	return false
}

// Decode parses one NUL-terminated frame. Headers and body are separated by
// the first blank line and exactly one trailing NUL is stripped from the
// body. Header lines may end in CRLF.
func Decode(data []byte) (Frame, error) {
	rest := data
	nextLine := func() (string, bool) {
		i := bytes.IndexByte(rest, '\n')
		if i < 0 {
			return "", false
		}
		line := strings.TrimSuffix(string(rest[:i]), "\r")
		rest = rest[i+1:]
		return line, true
	}

	command, ok := nextLine()
	if !ok {
		return Frame{}, &DecodeError{Reason: "missing blank line after headers", Raw: data}
	}
	command = strings.TrimSpace(command)
	if command == "" {
		return Frame{}, &DecodeError{Reason: "empty command line", Raw: data}
	}

	f := Frame{Command: Command(command)}
	for {
		line, ok := nextLine()
		if !ok {
			return Frame{}, &DecodeError{Reason: "missing blank line after headers", Raw: data}
		}
		if line == "" {
			break
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok || name == "" {
			return Frame{}, &DecodeError{Reason: "unparseable header " + quoteLine(line), Raw: data}
		}
		if seenBefore(f.Headers, name) {
			continue
		}
		f.Headers = append(f.Headers, Header{Name: name, Value: value})
	}

	if len(rest) == 0 || rest[len(rest)-1] != 0 {
		return Frame{}, &DecodeError{Reason: "missing NUL terminator", Raw: data}
	}
	if body := rest[:len(rest)-1]; len(body) > 0 {
		f.Body = append([]byte(nil), body...)
	}
	return f, nil
}

func quoteLine(line string) string {
	if len(line) > 64 {
		line = line[:64] + "..."
	}
	return "\"" + line + "\""
}

// SplitFrames splits a transport message into the NUL-terminated frames it
// carries. Bare EOLs between frames are heart-beats and are skipped. An
// unterminated tail is returned as is and fails to Decode.
func SplitFrames(data []byte) [][]byte {
	var frames [][]byte
	for len(data) > 0 {
		data = bytes.TrimLeft(data, "\r\n")
		if len(data) == 0 {
			break
		}
		end := bytes.IndexByte(data, 0)
		if end < 0 {
			frames = append(frames, data)
			break
		}
		frames = append(frames, data[:end+1])
		data = data[end+1:]
	}
	return frames
}

func connectFrame(token string) Frame {
	return NewFrame(CmdConnect, nil,
		Header{HeaderAuthorization, "Bearer " + token},
		Header{HeaderAcceptVersion, acceptVersion},
	)
}

func subscribeFrame(id, destination string) Frame {
	return NewFrame(CmdSubscribe, nil,
		Header{HeaderID, id},
		Header{HeaderDestination, destination},
	)
}

func unsubscribeFrame(id string) Frame {
	return NewFrame(CmdUnsubscribe, nil, Header{HeaderID, id})
}

func sendFrame(destination string, body []byte) Frame {
	return NewFrame(CmdSend, body,
		Header{HeaderDestination, destination},
		Header{HeaderContentType, contentTypeJSON},
	)
}

func disconnectFrame() Frame {
	return NewFrame(CmdDisconnect, nil)
}
