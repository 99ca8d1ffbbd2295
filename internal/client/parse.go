package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// neighborsResponse is the body returned by the lookup service
type neighborsResponse struct {
	Neighbors []string        `json:"neighbors"`
	Error     json.RawMessage `json:"error"`
}

// ParseNeighbors decodes a lookup response body into neighbor labels.
// A body without a neighbors field yields no neighbors. A body carrying an
// error field yields ErrServiceReported; anything that is not a JSON object
// with a string array yields a *ParseError.
func ParseNeighbors(raw []byte) ([]string, error) {
	var resp neighborsResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &ParseError{Offset: offsetOf(err), Err: err}
	}

	if len(resp.Error) > 0 && !bytes.Equal(resp.Error, []byte("null")) {
		return nil, fmt.Errorf("%w: %s", ErrServiceReported, serviceMessage(resp.Error))
	}

	return resp.Neighbors, nil
}

func offsetOf(err error) int64 {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return syntaxErr.Offset
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return typeErr.Offset
	}
	return 0
}

// serviceMessage renders the error field, unquoting plain strings
func serviceMessage(raw json.RawMessage) string {
	var msg string
	if err := json.Unmarshal(raw, &msg); err == nil {
		return msg
	}
	return string(raw)
}
