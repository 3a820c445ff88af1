package storage

import (
	"bytes"
	"encoding/json"
)

// Envelope wraps every stored value.
type Envelope struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
	Version   int             `json:"version"`
}

func wrap(v any, ts int64, version int) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Data: data, Timestamp: ts, Version: version})
}

// unwrap returns the JSON payload of raw. Values written without an
// envelope come back as-is, and non-JSON values come back as a JSON string.
func unwrap(raw []byte) json.RawMessage {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err == nil {
		if data, ok := fields["data"]; ok {
			if _, hasTS := fields["timestamp"]; hasTS {
				return data
			}
		}
	}
	if json.Valid(raw) {
		return bytes.Clone(raw)
	}
	s, _ := json.Marshal(string(raw))
	return s
}
