package gdl90

import (
	"bytes"
	"encoding/json"
)

// Optional carries a field that the wire may mark as unknown with a reserved
// bit pattern. An invalid Optional marshals to JSON null.
type Optional[T any] struct {
	Value T
	Valid bool
}

// Known wraps a value that was present on the wire.
func Known[T any](v T) Optional[T] {
	return Optional[T]{Value: v, Valid: true}
}

// Unknown returns the unknown marker for T.
func Unknown[T any]() Optional[T] {
	return Optional[T]{}
}

// Get returns the value and whether it is known.
func (o Optional[T]) Get() (T, bool) {
	return o.Value, o.Valid
}

func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*o = Optional[T]{}
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Known(v)
	return nil
}
