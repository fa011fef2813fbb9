package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"

	apperrors "github.com/dzimika/counter-app-sphere/internal/platform/errors"
)

// Params holds the raw "params" member of a request: a positional array, a single
// scalar, or nothing at all.
type Params []byte

func (p Params) MarshalJSON() ([]byte, error) {
	if len(p) == 0 {
		return []byte("null"), nil
	}
	return p, nil
}

func (p *Params) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*p = nil
		return nil
	}
	*p = append((*p)[:0], data...)
	return nil
}

// Values returns the positional params. A scalar counts as a single positional param.
func (p Params) Values() ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(p)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] != '[' {
		return []json.RawMessage{json.RawMessage(trimmed)}, nil
	}
	var values []json.RawMessage
	if err := json.Unmarshal(trimmed, &values); err != nil {
		return nil, apperrors.ValidationError("Invalid params: " + err.Error())
	}
	return values, nil
}

// Len returns the number of positional params.
func (p Params) Len() int {
	values, err := p.Values()
	if err != nil {
		return 0
	}
	return len(values)
}

// Float decodes the positional param at index as a number.
func (p Params) Float(index int) (float64, error) {
	values, err := p.Values()
	if err != nil {
		return 0, err
	}
	if index >= len(values) {
		return 0, apperrors.ValidationError(fmt.Sprintf("Invalid params: missing parameter %d", index)).
			WithField("index", index)
	}
	var v float64
	if err := json.Unmarshal(values[index], &v); err != nil {
		return 0, apperrors.ValidationError(fmt.Sprintf("Invalid params: parameter %d must be a number", index)).
			WithField("index", index)
	}
	return v, nil
}
