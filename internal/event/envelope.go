package event

import (
	"encoding/json"
	"fmt"
)

// The relay boundary may emit a bare event object, or a Debezium-style
// envelope { "schema": {...}, "payload": {...} } where payload is either the
// event object or a JSON string holding it. Unwrap accepts all three forms
// and returns the bare event body.
func Unwrap(raw []byte) ([]byte, error) {
	var env struct {
		Schema  json.RawMessage `json:"schema"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("malformed message envelope: %w", err)
	}
	if len(env.Payload) == 0 {
		// bare event object
		return raw, nil
	}
	if env.Payload[0] == '"' {
		// payload expanded as a JSON string, second parse pass
		var inner string
		if err := json.Unmarshal(env.Payload, &inner); err != nil {
			return nil, fmt.Errorf("malformed string payload: %w", err)
		}
		return []byte(inner), nil
	}
	return env.Payload, nil
}

func unmarshal(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode event body: %w", err)
	}
	return nil
}

// KindOf resolves the event kind of a message: the eventType header when the
// bus carried one, else an eventType field in the body, else — for topics
// that carry exactly one kind — the topic itself.
func KindOf(headers map[string]string, body []byte, topic string) (Kind, bool) {
	if v := headers["eventType"]; v != "" {
		return Kind(v), true
	}

	var peek struct {
		EventType string `json:"eventType"`
	}
	if err := json.Unmarshal(body, &peek); err == nil && peek.EventType != "" {
		return Kind(peek.EventType), true
	}

	if kinds := KindsByTopic[topic]; len(kinds) == 1 {
		return kinds[0], true
	}
	return "", false
}

// IDOf resolves the message's eventId for deduplication: header first, then
// the body field. Empty means the producer supplied none.
func IDOf(headers map[string]string, body []byte) string {
	if v := headers["eventId"]; v != "" {
		return v
	}
	var peek struct {
		EventID string `json:"eventId"`
	}
	if err := json.Unmarshal(body, &peek); err == nil {
		return peek.EventID
	}
	return ""
}
