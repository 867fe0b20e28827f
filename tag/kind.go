package tag

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Kind is the value type an accessor reads or writes.
type Kind int

const (
	Invalid Kind = iota
	Bit
	Int8
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Float32
	Float64
	String
)

var kindNames = map[Kind]string{
	Bit:     "bit",
	Int8:    "int8",
	Int16:   "int16",
	Int32:   "int32",
	Int64:   "int64",
	Uint8:   "uint8",
	Uint16:  "uint16",
	Uint32:  "uint32",
	Uint64:  "uint64",
	Float32: "float32",
	Float64: "float64",
	String:  "string",
}

// kindAliases accepts the names used by the CLI and by PLC programmers.
var kindAliases = map[string]Kind{
	"bool":   Bit,
	"sint8":  Int8,
	"sint":   Int8,
	"sint16": Int16,
	"int":    Int16,
	"sint32": Int32,
	"dint":   Int32,
	"sint64": Int64,
	"lint":   Int64,
	"usint":  Uint8,
	"uint":   Uint16,
	"udint":  Uint32,
	"ulint":  Uint64,
	"real32": Float32,
	"real":   Float32,
	"real64": Float64,
	"lreal":  Float64,
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Width returns the size in bytes of one value of the kind. Bits and
// strings have no fixed width and return 0.
func (k Kind) Width() int {
	switch k {
	case Int8, Uint8:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Int64, Uint64, Float64:
		return 8
	}
	return 0
}

// Signed reports whether the kind is a signed integer.
func (k Kind) Signed() bool {
	return k == Int8 || k == Int16 || k == Int32 || k == Int64
}

// Float reports whether the kind is a floating point number.
func (k Kind) Float() bool {
	return k == Float32 || k == Float64
}

// ParseKind parses a kind name, case-insensitively.
func ParseKind(s string) (Kind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	if k, ok := kindAliases[name]; ok {
		return k, nil
	}
	return Invalid, fmt.Errorf("unknown type %q", s)
}

// MarshalYAML and UnmarshalYAML let a Kind appear by name in config files.
func (k Kind) MarshalYAML() (interface{}, error) {
	return k.String(), nil
}

func (k *Kind) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseKind(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*k = parsed
	return nil
}

func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// ParseValue converts text into the Go value for kind.
func ParseValue(kind Kind, s string) (any, error) {
	s = strings.TrimSpace(s)
	switch kind {
	case Bit:
		return strconv.ParseBool(s)
	case String:
		return s, nil
	case Float32:
		f, err := strconv.ParseFloat(s, 32)
		return float32(f), err
	case Float64:
		return strconv.ParseFloat(s, 64)
	}

	w := kind.Width()
	if w == 0 {
		return nil, fmt.Errorf("unknown type %s", kind)
	}
	if kind.Signed() {
		i, err := strconv.ParseInt(s, 0, w*8)
		if err != nil {
			return nil, err
		}
		return Convert(kind, i)
	}
	u, err := strconv.ParseUint(s, 0, w*8)
	if err != nil {
		return nil, err
	}
	return Convert(kind, u)
}

// Convert coerces v to the Go type for kind. It accepts the native Go
// numeric types, bool, string and json.Number, and refuses values that
// do not fit the target without loss of integer precision.
func Convert(kind Kind, v any) (any, error) {
	if kind == String {
		if s, ok := v.(string); ok {
			return s, nil
		}
		return nil, fmt.Errorf("cannot use %T as %s", v, kind)
	}
	if kind == Bit {
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			return strconv.ParseBool(b)
		}
		f, err := toFloat(v)
		if err != nil {
			return nil, err
		}
		return f != 0, nil
	}

	if s, ok := v.(string); ok {
		return ParseValue(kind, s)
	}
	if n, ok := v.(json.Number); ok {
		return ParseValue(kind, n.String())
	}

	switch kind {
	case Float32:
		f, err := toFloat(v)
		return float32(f), err
	case Float64:
		return toFloat(v)
	}

	if kind.Signed() {
		i, err := toInt(v)
		if err != nil {
			return nil, err
		}
		bits := kind.Width() * 8
		if bits < 64 && (i < -(1<<(bits-1)) || i > (1<<(bits-1))-1) {
			return nil, fmt.Errorf("value %d overflows %s", i, kind)
		}
		switch kind {
		case Int8:
			return int8(i), nil
		case Int16:
			return int16(i), nil
		case Int32:
			return int32(i), nil
		default:
			return i, nil
		}
	}

	u, err := toUint(v)
	if err != nil {
		return nil, err
	}
	bits := kind.Width() * 8
	if bits < 64 && u > (1<<bits)-1 {
		return nil, fmt.Errorf("value %d overflows %s", u, kind)
	}
	switch kind {
	case Uint8:
		return uint8(u), nil
	case Uint16:
		return uint16(u), nil
	case Uint32:
		return uint32(u), nil
	case Uint64:
		return u, nil
	}
	return nil, fmt.Errorf("unknown type %s", kind)
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	}
	if i, err := toInt(v); err == nil {
		return float64(i), nil
	}
	if u, err := toUint(v); err == nil {
		return float64(u), nil
	}
	return 0, fmt.Errorf("cannot use %T as a number", v)
}

func toInt(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint:
		if uint64(n) > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows int64", n)
		}
		return int64(n), nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows int64", n)
		}
		return int64(n), nil
	case float32:
		return floatToInt(float64(n))
	case float64:
		return floatToInt(n)
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("cannot use %T as an integer", v)
}

func toUint(v any) (uint64, error) {
	switch n := v.(type) {
	case uint:
		return uint64(n), nil
	case uint64:
		return n, nil
	case float32, float64:
		f, _ := toFloat(n)
		if f < 0 || f != math.Trunc(f) || f >= 1<<64 {
			return 0, fmt.Errorf("value %v is not an unsigned integer", f)
		}
		return uint64(f), nil
	}
	i, err := toInt(v)
	if err != nil {
		return 0, err
	}
	if i < 0 {
		return 0, fmt.Errorf("value %d is negative", i)
	}
	return uint64(i), nil
}

func floatToInt(f float64) (int64, error) {
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("value %v is not an integer", f)
	}
	return int64(f), nil
}
