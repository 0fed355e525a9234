package core

import (
	"encoding/json"
	"fmt"
)

// JSONEncode encodes a value to JSON bytes. cmd/gateway uses it (and
// JSONDecode) for its HTTP request and response bodies; the router and
// mailboxes themselves pass Go values directly and never touch this.
func JSONEncode(v interface{}) ([]byte, error) {
	if v == nil {
		return nil, fmt.Errorf("json encode: cannot encode nil value")
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("json encode failed: %w", err)
	}
	return data, nil
}

// JSONDecode decodes JSON bytes into v.
func JSONDecode(data []byte, v interface{}) error {
	if len(data) == 0 {
		return fmt.Errorf("json decode: cannot decode empty data")
	}
	if v == nil {
		return fmt.Errorf("json decode: cannot decode into nil value")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("json decode failed: %w", err)
	}
	return nil
}
