package jsonx

import "encoding/json"

// Field[T] tracks presence (key appeared) and holds a pointer value:
//   - IsSet() == true  => key existed (even if it was null; allows null vs. undefined distinction)
//   - Value() == nil   => value was JSON null
type Field[T any] struct {
	set bool
	val *T
}

func (o Field[T]) IsSet() bool  { return o.set }
func (o Field[T]) IsNull() bool { return o.set && o.val == nil }
func (o Field[T]) Value() *T    { return o.val }

func (o *Field[T]) UnmarshalJSON(b []byte) error {
	switch string(bytesTrimSpace(b)) {
	case "null":
		o.set, o.val = true, nil
		return nil
	default:
		var v T
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		o.set, o.val = true, &v
		return nil
	}
}
