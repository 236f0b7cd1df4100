package message

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Envelope is one outbound message.
// Field order is fixed: event, params, data.
type Envelope struct {
	Event  string `json:"event"`
	Params any    `json:"params"`
	Data   any    `json:"data"`
}

// NewEnvelope returns an envelope for event. Nil params and nil data encode as null.
func NewEnvelope(event string, params, data any) Envelope {
	return Envelope{Event: event, Params: params, Data: data}
}

// Encode renders the envelope as compact JSON without a trailing newline.
// HTML characters are left unescaped.
func (e Envelope) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(e); err != nil {
		return nil, fmt.Errorf("encode %q envelope: %w", e.Event, err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
