package livesession

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestConnectionError_Error(t *testing.T) {
	err := &ConnectionError{
		URL:    "ws://localhost:8080/ws",
		Reason: "connection refused",
	}
	want := "connection error [ws://localhost:8080/ws]: connection refused"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestConnectionError_ErrorsAs(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &ConnectionError{
		URL:    "ws://localhost:8080/ws",
		Reason: "auth failed",
	})
	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatal("errors.As should match ConnectionError")
	}
	if connErr.Reason != "auth failed" {
		t.Errorf("Reason = %q, want %q", connErr.Reason, "auth failed")
	}
}

func TestDecodeError_WrapsMalformed(t *testing.T) {
	err := &DecodeError{Reason: "missing blank line after headers"}
	if !errors.Is(err, ErrMalformedFrame) {
		t.Error("DecodeError should match ErrMalformedFrame")
	}
	want := "malformed frame: missing blank line after headers"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestSDKError_Error(t *testing.T) {
	err := &SDKError{
		Kind:        ErrPayloadInvalid,
		Command:     CmdMessage,
		Destination: "/topic/session/K/state",
		Cause:       errors.New("unexpected end of JSON input"),
		Timestamp:   time.Now(),
	}
	got := err.Error()
	if !strings.Contains(got, "ErrPayloadInvalid") {
		t.Errorf("Error() = %q, should contain kind", got)
	}
	if !strings.Contains(got, "unexpected end of JSON input") {
		t.Errorf("Error() = %q, should contain cause", got)
	}
	if !strings.Contains(got, "/topic/session/K/state") {
		t.Errorf("Error() = %q, should contain destination", got)
	}
}

func TestSDKError_Unwrap(t *testing.T) {
	err := &SDKError{Kind: ErrTransport, Cause: ErrHandshakeTimeout}
	if !errors.Is(err, ErrHandshakeTimeout) {
		t.Error("SDKError should unwrap to its cause")
	}
}

func TestErrorKind_String(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want string
	}{
		{ErrDecodeFailure, "ErrDecodeFailure"},
		{ErrPayloadInvalid, "ErrPayloadInvalid"},
		{ErrProtocol, "ErrProtocol"},
		{ErrServerError, "ErrServerError"},
		{ErrTransport, "ErrTransport"},
		{ErrTransportWrite, "ErrTransportWrite"},
		{ErrCallbackPanic, "ErrCallbackPanic"},
		{ErrFrameRejected, "ErrFrameRejected"},
		{ErrorKind(99), "ErrorKind(99)"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("ErrorKind(%d).String() = %q, want %q", int(tt.kind), got, tt.want)
		}
	}
}

func TestLogErrors(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)
	handler := LogErrors(logger)

	handler(SDKError{
		Kind:        ErrProtocol,
		Command:     CmdMessage,
		Destination: "/topic/x",
		Cause:       errors.New("MESSAGE without destination header"),
		Timestamp:   time.Now(),
	})

	output := buf.String()
	if !strings.Contains(output, "[livesession]") {
		t.Errorf("LogErrors output = %q, should contain prefix", output)
	}
	if !strings.Contains(output, "ErrProtocol") {
		t.Errorf("LogErrors output = %q, should contain error kind", output)
	}
	if !strings.Contains(output, "cmd=MESSAGE") {
		t.Errorf("LogErrors output = %q, should contain command", output)
	}
}

func TestZerologErrors(t *testing.T) {
	var buf bytes.Buffer
	handler := ZerologErrors(zerolog.New(&buf))

	handler(SDKError{
		Kind:         ErrTransport,
		ConnectionID: "conn-1",
		Cause:        errors.New("broken pipe"),
		Timestamp:    time.Now(),
	})
	handler(SDKError{
		Kind:        ErrPayloadInvalid,
		Destination: "/topic/x",
		Timestamp:   time.Now(),
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d log lines, want 2: %q", len(lines), buf.String())
	}
	for _, want := range []string{`"level":"warn"`, `"kind":"ErrTransport"`, `"conn":"conn-1"`, `"error":"broken pipe"`} {
		if !strings.Contains(lines[0], want) {
			t.Errorf("line %q should contain %s", lines[0], want)
		}
	}
	for _, want := range []string{`"level":"error"`, `"destination":"/topic/x"`} {
		if !strings.Contains(lines[1], want) {
			t.Errorf("line %q should contain %s", lines[1], want)
		}
	}
}
