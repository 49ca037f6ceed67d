package livesession

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
)

// Message is a MESSAGE frame delivered to a subscriber.
type Message struct {
	Destination string
	Headers     []Header
	Body        any // body decoded into a generic value

	bodyRaw json.RawMessage // raw JSON body for typed decoding
}

// UnmarshalBody decodes the message body into the provided value.
func (m *Message) UnmarshalBody(v any) error {
	if m.bodyRaw == nil {
		return errors.New("message has no body")
	}
	return json.Unmarshal(m.bodyRaw, v)
}

// Raw returns the JSON body exactly as received.
func (m *Message) Raw() json.RawMessage {
	return m.bodyRaw
}

// Header returns the first value of the named MESSAGE frame header.
func (m *Message) Header(name string) (string, bool) {
	for _, h := range m.Headers {
		if h.Name == name {
			return h.Value, true
		}
	}
	return "", false
}

// parsePayload builds a Message from a MESSAGE frame body. The body must be
// a JSON document.
func parsePayload(destination string, headers []Header, body []byte) (*Message, error) {
	var value any
	if err := json.Unmarshal(body, &value); err != nil {
		return nil, fmt.Errorf("parse body: %w", err)
	}
	return &Message{
		Destination: destination,
		Headers:     headers,
		Body:        value,
		bodyRaw:     append(json.RawMessage(nil), body...),
	}, nil
}

// marshalPayload serializes an application payload for a SEND frame.
// json.RawMessage and []byte values are sent as-is after validation.
func marshalPayload(payload any) ([]byte, error) {
	switch p := payload.(type) {
	case json.RawMessage:
		if !json.Valid(p) {
			return nil, errors.New("marshal payload: invalid raw JSON")
		}
		return p, nil
	case []byte:
		if !json.Valid(p) {
			return nil, errors.New("marshal payload: invalid raw JSON")
		}
		return p, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return data, nil
}

var subscriptionCounter atomic.Uint64

// nextSubscriptionID returns a process-wide unique subscription id.
func nextSubscriptionID() string {
	return "sub-" + strconv.FormatUint(subscriptionCounter.Add(1), 10)
}

// generateID returns a new unique connection instance id.
func generateID() string {
	return uuid.New().String()
}
