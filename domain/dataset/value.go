package dataset

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// ValueType defines the storage type for a cell
type ValueType string

const (
	ValueTypeNumeric ValueType = "numeric"
	ValueTypeString  ValueType = "string"
	ValueTypeMissing ValueType = "missing"
)

// Value is a single typed cell. The zero Value is missing.
type Value struct {
	Type       ValueType
	NumericVal float64
	StringVal  string
}

// Missing returns the missing marker.
func Missing() Value {
	return Value{Type: ValueTypeMissing}
}

// Numeric creates a numeric value. Non-finite numbers are stored as missing.
func Numeric(n float64) Value {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return Missing()
	}
	return Value{Type: ValueTypeNumeric, NumericVal: n}
}

// String creates a string value. The empty string is stored as missing.
func String(s string) Value {
	if s == "" {
		return Missing()
	}
	return Value{Type: ValueTypeString, StringVal: s}
}

// IsMissing reports whether the cell carries no value.
func (v Value) IsMissing() bool {
	return v.Type != ValueTypeNumeric && v.Type != ValueTypeString
}

func (v Value) IsNumeric() bool { return v.Type == ValueTypeNumeric }

func (v Value) IsString() bool { return v.Type == ValueTypeString }

// Float64 returns the numeric payload and whether the value is numeric.
func (v Value) Float64() (float64, bool) {
	if v.Type != ValueTypeNumeric {
		return 0, false
	}
	return v.NumericVal, true
}

// Text renders the value as a grouping key. Missing renders as "".
func (v Value) Text() string {
	switch v.Type {
	case ValueTypeNumeric:
		return strconv.FormatFloat(v.NumericVal, 'f', -1, 64)
	case ValueTypeString:
		return v.StringVal
	default:
		return ""
	}
}

func (v Value) String() string {
	if v.IsMissing() {
		return "<missing>"
	}
	return v.Text()
}

// Equal compares two cells; all missing cells are equal.
func (v Value) Equal(o Value) bool {
	if v.IsMissing() || o.IsMissing() {
		return v.IsMissing() && o.IsMissing()
	}
	if v.Type != o.Type {
		return false
	}
	if v.Type == ValueTypeNumeric {
		return v.NumericVal == o.NumericVal
	}
	return v.StringVal == o.StringVal
}

// MarshalJSON encodes the cell as a JSON number, string or null.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Type {
	case ValueTypeNumeric:
		return json.Marshal(v.NumericVal)
	case ValueTypeString:
		return json.Marshal(v.StringVal)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts a JSON number, string, bool or null.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch t := raw.(type) {
	case nil:
		*v = Missing()
	case float64:
		*v = Numeric(t)
	case string:
		*v = String(t)
	case bool:
		if t {
			*v = Numeric(1)
		} else {
			*v = Numeric(0)
		}
	default:
		return fmt.Errorf("unsupported cell value %s", string(data))
	}
	return nil
}
