package component

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/joshuasello/mycelium-iot/errors"
)

// ValueType identifies the scalar type carried by a Value.
type ValueType string

// Supported value types for component fields
const (
	TypeBool   ValueType = "bool"
	TypeInt    ValueType = "int"
	TypeFloat  ValueType = "float"
	TypeString ValueType = "string"
)

// Valid reports whether vt is one of the supported value types
func (vt ValueType) Valid() bool {
	switch vt {
	case TypeBool, TypeInt, TypeFloat, TypeString:
		return true
	default:
		return false
	}
}

// Value is a type-tagged scalar exchanged between controller and driver.
// The explicit type tag survives JSON round-trips, so integer commands are
// never silently widened to floats on the wire.
type Value struct {
	typ ValueType
	b   bool
	i   int64
	f   float64
	s   string
}

// BoolValue creates a bool-typed Value
func BoolValue(v bool) Value { return Value{typ: TypeBool, b: v} }

// IntValue creates an int-typed Value
func IntValue(v int64) Value { return Value{typ: TypeInt, i: v} }

// FloatValue creates a float-typed Value
func FloatValue(v float64) Value { return Value{typ: TypeFloat, f: v} }

// StringValue creates a string-typed Value
func StringValue(v string) Value { return Value{typ: TypeString, s: v} }

// Type returns the value's type tag. The zero Value has an empty type
// and fails every typed accessor.
func (v Value) Type() ValueType { return v.typ }

// IsZero reports whether v is the zero Value (no type tag)
func (v Value) IsZero() bool { return v.typ == "" }

// Bool returns the boolean payload or a type mismatch error
func (v Value) Bool() (bool, error) {
	if v.typ != TypeBool {
		return false, typeError(TypeBool, v.typ)
	}
	return v.b, nil
}

// Int returns the integer payload or a type mismatch error
func (v Value) Int() (int64, error) {
	if v.typ != TypeInt {
		return 0, typeError(TypeInt, v.typ)
	}
	return v.i, nil
}

// Float returns the float payload. Int-typed values convert losslessly,
// matching how numeric setup arguments are declared in config files.
func (v Value) Float() (float64, error) {
	switch v.typ {
	case TypeFloat:
		return v.f, nil
	case TypeInt:
		return float64(v.i), nil
	default:
		return 0, typeError(TypeFloat, v.typ)
	}
}

// Text returns the string payload or a type mismatch error
func (v Value) Text() (string, error) {
	if v.typ != TypeString {
		return "", typeError(TypeString, v.typ)
	}
	return v.s, nil
}

// Equal reports whether two values have the same type tag and payload
func (v Value) Equal(other Value) bool {
	if v.typ != other.typ {
		return false
	}
	switch v.typ {
	case TypeBool:
		return v.b == other.b
	case TypeInt:
		return v.i == other.i
	case TypeFloat:
		return v.f == other.f
	case TypeString:
		return v.s == other.s
	default:
		return true // both zero
	}
}

// String implements fmt.Stringer for logging
func (v Value) String() string {
	switch v.typ {
	case TypeBool:
		return strconv.FormatBool(v.b)
	case TypeInt:
		return strconv.FormatInt(v.i, 10)
	case TypeFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case TypeString:
		return v.s
	default:
		return "<zero>"
	}
}

// valueJSON is the wire representation of a Value
type valueJSON struct {
	Type  ValueType       `json:"type"`
	Value json.RawMessage `json:"value"`
}

// MarshalJSON encodes the value with its type tag
func (v Value) MarshalJSON() ([]byte, error) {
	var payload any
	switch v.typ {
	case TypeBool:
		payload = v.b
	case TypeInt:
		payload = v.i
	case TypeFloat:
		payload = v.f
	case TypeString:
		payload = v.s
	default:
		return nil, errors.WrapInvalid(
			fmt.Errorf("cannot marshal zero value"), "Value", "MarshalJSON", "type check")
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Value", "MarshalJSON", "payload encoding")
	}
	return json.Marshal(valueJSON{Type: v.typ, Value: raw})
}

// UnmarshalJSON decodes a type-tagged value
func (v *Value) UnmarshalJSON(data []byte) error {
	var wrapper valueJSON
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return errors.WrapInvalid(err, "Value", "UnmarshalJSON", "wrapper decoding")
	}

	switch wrapper.Type {
	case TypeBool:
		var b bool
		if err := json.Unmarshal(wrapper.Value, &b); err != nil {
			return errors.WrapInvalid(err, "Value", "UnmarshalJSON", "bool decoding")
		}
		*v = BoolValue(b)
	case TypeInt:
		var i int64
		if err := json.Unmarshal(wrapper.Value, &i); err != nil {
			return errors.WrapInvalid(err, "Value", "UnmarshalJSON", "int decoding")
		}
		*v = IntValue(i)
	case TypeFloat:
		var f float64
		if err := json.Unmarshal(wrapper.Value, &f); err != nil {
			return errors.WrapInvalid(err, "Value", "UnmarshalJSON", "float decoding")
		}
		*v = FloatValue(f)
	case TypeString:
		var s string
		if err := json.Unmarshal(wrapper.Value, &s); err != nil {
			return errors.WrapInvalid(err, "Value", "UnmarshalJSON", "string decoding")
		}
		*v = StringValue(s)
	default:
		return errors.WrapInvalid(
			fmt.Errorf("unknown value type %q", wrapper.Type),
			"Value", "UnmarshalJSON", "type validation")
	}
	return nil
}

// FromAny converts a plain Go scalar (as produced by YAML or JSON config
// decoding) into a typed Value. Unsupported kinds are a type mismatch.
func FromAny(raw any) (Value, error) {
	switch v := raw.(type) {
	case bool:
		return BoolValue(v), nil
	case int:
		return IntValue(int64(v)), nil
	case int64:
		return IntValue(v), nil
	case float64:
		return FloatValue(v), nil
	case string:
		return StringValue(v), nil
	default:
		return Value{}, errors.WrapInvalid(
			fmt.Errorf("unsupported scalar type %T", raw),
			"Value", "FromAny", "type conversion")
	}
}

func typeError(want, got ValueType) error {
	return errors.WrapInvalid(
		fmt.Errorf("want %s, got %s: %w", want, got, errors.ErrTypeMismatch),
		"Value", "access", "type check")
}
