package events

import "encoding/json"

// Frame is the wire shape of every realtime event in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode marshals data into a frame for event.
func Encode(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: event, Data: raw})
}

// ErrorPayload is carried by message_error frames.
type ErrorPayload struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Event string `json:"event,omitempty"`
}
