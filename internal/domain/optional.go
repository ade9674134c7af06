package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

var jsonNull = []byte("null")

// Float is a real-valued measurement that may be absent. The zero value is
// absent, which is distinct from a present 0.
type Float struct {
	V  float64
	OK bool
}

// SomeFloat returns a present Float. NaN and infinities are treated as absent.
func SomeFloat(v float64) Float {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Float{}
	}
	return Float{V: v, OK: true}
}

// MarshalJSON encodes an absent value as null.
func (f Float) MarshalJSON() ([]byte, error) {
	if !f.OK {
		return jsonNull, nil
	}
	return strconv.AppendFloat(nil, f.V, 'g', -1, 64), nil
}

// UnmarshalJSON decodes null as absent.
func (f *Float) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), jsonNull) {
		*f = Float{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = SomeFloat(v)
	return nil
}

// Int is an integer count that may be absent.
type Int struct {
	V  int64
	OK bool
}

// SomeInt returns a present Int.
func SomeInt(v int64) Int {
	return Int{V: v, OK: true}
}

// MarshalJSON encodes an absent value as null.
func (i Int) MarshalJSON() ([]byte, error) {
	if !i.OK {
		return jsonNull, nil
	}
	return strconv.AppendInt(nil, i.V, 10), nil
}

// UnmarshalJSON decodes null as absent.
func (i *Int) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), jsonNull) {
		*i = Int{}
		return nil
	}
	var v int64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*i = SomeInt(v)
	return nil
}
