package genicam

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/smazurov/camnode/pkg/evaluator"
)

// Kind is the value type of a feature node.
type Kind int

const (
	KindInteger Kind = iota
	KindFloat
	KindBoolean
	KindString
	KindEnumeration
	KindCommand
)

var kindNames = []string{"Integer", "Float", "Boolean", "String", "Enumeration", "Command"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Unknown"
}

// ParseKind accepts the names used in device descriptions.
func ParseKind(s string) (Kind, error) {
	for i, name := range kindNames {
		if strings.EqualFold(name, s) {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown feature type %q", s)
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Access is the access mode of a feature node.
type Access int

const (
	AccessRO Access = iota
	AccessRW
)

func (a Access) String() string {
	if a == AccessRW {
		return "RW"
	}
	return "RO"
}

func (a Access) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// EnumEntry is one named value of an Enumeration node.
type EnumEntry struct {
	Name  string `json:"name" toml:"name"`
	Value int64  `json:"value" toml:"value"`
}

// Node is a named feature. Kind selects which of the value and bound fields apply.
// Nodes with a Formula are computed from other nodes and are always read-only.
type Node struct {
	Name        string
	Description string
	Kind        Kind
	Access      Access
	Unit        string

	// Int holds Integer, Enumeration and Command (execution count) values.
	Int   int64
	Float float64
	Bool  bool
	Str   string

	Min, Max, Inc      int64
	FloatMin, FloatMax float64
	// HasMin and HasMax mark Min/Max (or FloatMin/FloatMax) as set. A missing
	// bound without a reference node is open.
	HasMin, HasMax bool
	// MinNode and MaxNode name nodes whose current value overrides Min/Max.
	MinNode, MaxNode string

	Entries []EnumEntry

	Formula string
	// Variables maps formula variable names to node names.
	Variables map[string]string

	formula *evaluator.Evaluator
}

func (n *Node) entryByName(name string) (EnumEntry, bool) {
	for _, e := range n.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return EnumEntry{}, false
}

func (n *Node) entryByValue(v int64) (EnumEntry, bool) {
	for _, e := range n.Entries {
		if e.Value == v {
			return e, true
		}
	}
	return EnumEntry{}, false
}

// Value is a typed feature value.
type Value struct {
	Kind  Kind
	Int   int64
	Float float64
	Bool  bool
	// Str holds String values and the entry name of Enumeration values.
	Str string
}

func IntValue(v int64) Value     { return Value{Kind: KindInteger, Int: v} }
func FloatValue(v float64) Value { return Value{Kind: KindFloat, Float: v} }
func BoolValue(v bool) Value     { return Value{Kind: KindBoolean, Bool: v} }
func StringValue(v string) Value { return Value{Kind: KindString, Str: v} }

// EnumValue selects an enumeration entry by name.
func EnumValue(name string) Value { return Value{Kind: KindEnumeration, Str: name} }

// Any returns the value as a plain Go value, for encoding.
func (v Value) Any() any {
	switch v.Kind {
	case KindInteger, KindCommand:
		return v.Int
	case KindFloat:
		return v.Float
	case KindBoolean:
		return v.Bool
	default:
		return v.Str
	}
}

func (v Value) String() string {
	switch v.Kind {
	case KindInteger, KindCommand:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case KindBoolean:
		return strconv.FormatBool(v.Bool)
	default:
		return v.Str
	}
}

// ParseValue converts text to a value of the given kind.
func ParseValue(kind Kind, s string) (Value, error) {
	s = strings.TrimSpace(s)
	switch kind {
	case KindInteger:
		i, err := strconv.ParseInt(s, 0, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %q is not an integer", ErrTypeMismatch, s)
		}
		return IntValue(i), nil
	case KindFloat:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %q is not a number", ErrTypeMismatch, s)
		}
		return FloatValue(f), nil
	case KindBoolean:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %q is not a boolean", ErrTypeMismatch, s)
		}
		return BoolValue(b), nil
	case KindEnumeration:
		return EnumValue(s), nil
	case KindCommand:
		return Value{Kind: KindCommand}, nil
	default:
		return StringValue(s), nil
	}
}

// ValueFromAny converts a decoded JSON or TOML scalar to a value of the given kind.
func ValueFromAny(kind Kind, raw any) (Value, error) {
	switch kind {
	case KindInteger:
		i, ok := toInt64(raw)
		if !ok {
			return Value{}, fmt.Errorf("%w: expected integer, got %T", ErrTypeMismatch, raw)
		}
		return IntValue(i), nil
	case KindFloat:
		f, ok := toFloat64(raw)
		if !ok {
			return Value{}, fmt.Errorf("%w: expected number, got %T", ErrTypeMismatch, raw)
		}
		return FloatValue(f), nil
	case KindBoolean:
		b, ok := raw.(bool)
		if !ok {
			return Value{}, fmt.Errorf("%w: expected boolean, got %T", ErrTypeMismatch, raw)
		}
		return BoolValue(b), nil
	case KindCommand:
		return Value{Kind: KindCommand}, nil
	default:
		s, ok := raw.(string)
		if !ok {
			return Value{}, fmt.Errorf("%w: expected string, got %T", ErrTypeMismatch, raw)
		}
		if kind == KindEnumeration {
			return EnumValue(s), nil
		}
		return StringValue(s), nil
	}
}

func toInt64(raw any) (int64, bool) {
	switch v := raw.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case uint64:
		if v > math.MaxInt64 {
			return 0, false
		}
		return int64(v), true
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		return int64(v), true
	}
	return 0, false
}

func toFloat64(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	}
	return 0, false
}
