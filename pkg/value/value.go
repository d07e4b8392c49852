// Package value bridges dynamically typed SQLite values and native Go types.
// It also keeps text and blob buffers alive while the host engine owns them.
package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind is the storage class of a Value.
type Kind int

// Storage classes, mirroring SQLite's fundamental datatypes.
const (
	Null Kind = iota
	Float
	Integer
	Text
	Blob
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Float:
		return "float"
	case Integer:
		return "integer"
	case Text:
		return "text"
	case Blob:
		return "blob"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Value is a tagged union over the SQLite storage classes.
// The zero Value is NULL.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
	b    []byte
}

// NullValue returns a NULL value.
func NullValue() Value { return Value{} }

// IntegerValue makes an integer value.
func IntegerValue(v int64) Value { return Value{kind: Integer, i: v} }

// FloatValue makes a float value.
func FloatValue(v float64) Value { return Value{kind: Float, f: v} }

// TextValue makes a text value.
func TextValue(v string) Value { return Value{kind: Text, s: v} }

// BlobValue makes a blob value. A nil slice is kept as an empty blob.
func BlobValue(v []byte) Value {
	if v == nil {
		v = []byte{}
	}
	return Value{kind: Blob, b: v}
}

// FromNative converts a native (database/sql/driver) value to a Value.
// Unsupported types are formatted as text.
func FromNative(v any) Value {
	switch vv := v.(type) {
	case nil:
		return NullValue()
	case int64:
		return IntegerValue(vv)
	case int:
		return IntegerValue(int64(vv))
	case int32:
		return IntegerValue(int64(vv))
	case uint32:
		return IntegerValue(int64(vv))
	case bool:
		if vv {
			return IntegerValue(1)
		}
		return IntegerValue(0)
	case float64:
		return FloatValue(vv)
	case float32:
		return FloatValue(float64(vv))
	case string:
		return TextValue(vv)
	case []byte:
		return BlobValue(vv)
	case time.Time:
		return IntegerValue(vv.Unix())
	case Value:
		return vv
	}
	return TextValue(fmt.Sprint(v))
}

// Kind returns the storage class of the value.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is NULL.
func (v Value) IsNull() bool { return v.kind == Null }

// Native returns the value as a database/sql/driver compatible value.
func (v Value) Native() any {
	switch v.kind {
	case Integer:
		return v.i
	case Float:
		return v.f
	case Text:
		return v.s
	case Blob:
		return v.b
	}
	return nil
}

// Int64 converts the value the way sqlite3_value_int64 does: floats are truncated
// and clamped, text uses its longest numeric prefix, NULL and blobs without a
// numeric prefix are 0.
func (v Value) Int64() int64 {
	switch v.kind {
	case Integer:
		return v.i
	case Float:
		return floatToInt64(v.f)
	case Text:
		return textToInt64(v.s)
	case Blob:
		return textToInt64(string(v.b))
	}
	return 0
}

// Float64 converts the value the way sqlite3_value_double does.
func (v Value) Float64() float64 {
	switch v.kind {
	case Integer:
		return float64(v.i)
	case Float:
		return v.f
	case Text:
		return textToFloat64(v.s)
	case Blob:
		return textToFloat64(string(v.b))
	}
	return 0
}

// Text returns the textual representation, NULL is an empty string.
func (v Value) Text() string {
	switch v.kind {
	case Integer:
		return strconv.FormatInt(v.i, 10)
	case Float:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case Text:
		return v.s
	case Blob:
		return string(v.b)
	}
	return ""
}

// Bytes returns the raw bytes of a text or blob value and the textual form of numbers.
func (v Value) Bytes() []byte {
	switch v.kind {
	case Blob:
		return v.b
	case Null:
		return nil
	}
	return []byte(v.Text())
}

func (v Value) String() string {
	if v.kind == Null {
		return "NULL"
	}
	return fmt.Sprintf("%s(%s)", v.kind, v.Text())
}

func floatToInt64(f float64) int64 {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt64:
		return math.MaxInt64
	case f <= math.MinInt64:
		return math.MinInt64
	}
	return int64(f)
}

// numericPrefix returns the longest prefix of s that looks like a number,
// and whether it has a fractional or exponent part.
func numericPrefix(s string) (prefix string, isFloat bool) {
	s = strings.TrimLeft(s, " \t\n\r")
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digits := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
		digits++
	}
	if i < len(s) && s[i] == '.' {
		j := i + 1
		frac := 0
		for j < len(s) && s[j] >= '0' && s[j] <= '9' {
			j++
			frac++
		}
		if digits+frac > 0 {
			i, digits, isFloat = j, digits+frac, true
		}
	}
	if digits == 0 {
		return "", false
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		exp := 0
		for j < len(s) && s[j] >= '0' && s[j] <= '9' {
			j++
			exp++
		}
		if exp > 0 {
			i, isFloat = j, true
		}
	}
	return s[:i], isFloat
}

func textToInt64(s string) int64 {
	p, isFloat := numericPrefix(s)
	if p == "" {
		return 0
	}
	if isFloat {
		f, _ := strconv.ParseFloat(p, 64)
		return floatToInt64(f)
	}
	n, _ := strconv.ParseInt(p, 10, 64) // on range error n is already clamped
	return n
}

func textToFloat64(s string) float64 {
	p, _ := numericPrefix(s)
	if p == "" {
		return 0
	}
	f, _ := strconv.ParseFloat(p, 64)
	return f
}
