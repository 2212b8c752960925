package wire

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/afnaayusuf/kintsugi/internal/feed/core"
)

// Frame is the envelope of every real-time message: {"type": ..., "payload": ...}.
// The reference backend broadcasts "data" instead of "payload"; both are accepted.
type Frame struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	VehicleID string          `json:"vehicle_id,omitempty"`
}

// Body returns the frame payload, falling back to the data alias.
func (f Frame) Body() json.RawMessage {
	if len(f.Payload) > 0 {
		return f.Payload
	}
	return f.Data
}

// ParseFrame decodes an inbound frame. Anything that is not a JSON object
// with a non-empty type is reported as core.ErrMalformedFrame.
func ParseFrame(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", core.ErrMalformedFrame, err)
	}
	if f.Type == "" {
		return Frame{}, fmt.Errorf("%w: missing type", core.ErrMalformedFrame)
	}
	return f, nil
}

// IsNull reports whether a raw JSON value is absent or the literal null.
func IsNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// Ping is the heartbeat frame sent to keep intermediaries from idling out.
var Ping = map[string]string{"type": "ping"}
