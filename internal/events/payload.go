package events

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/goccy/go-json"
)

// Payload is the open client-supplied object. Every accessor tolerates a
// missing or mistyped key and reports it through its ok result.
type Payload map[string]any

// DecodePayload parses a single JSON object. Anything other than one object
// (arrays, scalars, trailing data) is rejected.
func DecodePayload(r io.Reader) (Payload, error) {
	dec := json.NewDecoder(r)
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	obj, ok := raw.(map[string]any)
	if !ok || obj == nil {
		return nil, fmt.Errorf("decode payload: body must be a JSON object")
	}
	if dec.More() {
		return nil, fmt.Errorf("decode payload: body must contain a single JSON object")
	}
	return Payload(obj), nil
}

// ParsePayload decodes a stored payload column.
func ParsePayload(raw string) (Payload, error) {
	if raw == "" {
		return Payload{}, nil
	}
	return DecodePayload(bytes.NewReader([]byte(raw)))
}

// Encode serializes the payload for storage.
func (p Payload) Encode() (string, error) {
	if p == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]any(p))
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	return string(b), nil
}

func (p Payload) Type() string {
	s, _ := p.String("type")
	return s
}

// String returns the value at key when it is a non-empty string.
func (p Payload) String(key string) (string, bool) {
	v, ok := p[key].(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// Number returns the value at key when it is a finite JSON number.
// Numeric strings are not coerced.
func (p Payload) Number(key string) (float64, bool) {
	var f float64
	switch v := p[key].(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func (p Payload) Bool(key string) (bool, bool) {
	v, ok := p[key].(bool)
	return v, ok
}

// Items returns the value at key when it is a JSON array.
func (p Payload) Items(key string) ([]any, bool) {
	v, ok := p[key].([]any)
	return v, ok
}

// Text renders a scalar value for use inside composite keys. Missing and
// null values render as "", so absent fields still produce a stable key.
func (p Payload) Text(key string) string {
	switch v := p[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case json.Number:
		return v.String()
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
}
