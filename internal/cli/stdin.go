package cli

import (
	"encoding/json"
	"fmt"
	"io"
)

// parseStdin reads JSON from r into a new instance of T. Empty input yields
// the zero value.
func parseStdin[T any](r io.Reader) (*T, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading stdin: %w", err)
	}
	var result T
	if len(data) == 0 {
		return &result, nil
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("parsing stdin JSON: %w", err)
	}
	return &result, nil
}
