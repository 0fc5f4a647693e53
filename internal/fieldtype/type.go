package fieldtype

import (
	"fmt"
	"strings"
)

// Type is one element of the closed, totally ordered type lattice
//
//	Boolean < Integer < Float < DateTime < Text
//
// Text is the universal fallback.
type Type uint8

const (
	Boolean Type = iota
	Integer
	Float
	DateTime
	Text

	numTypes
)

// All is the full lattice in ascending order.
var All = []Type{Boolean, Integer, Float, DateTime, Text}

var typeNames = [numTypes]string{
	Boolean:  "Boolean",
	Integer:  "Integer",
	Float:    "Float",
	DateTime: "DateTime",
	Text:     "Text",
}

func (t Type) String() string {
	if t < numTypes {
		return typeNames[t]
	}
	return fmt.Sprintf("Type(%d)", uint8(t))
}

// Narrower reports whether t sits strictly below u in the lattice.
func (t Type) Narrower(u Type) bool { return t < u }

// MarshalText implements encoding.TextMarshaler.
func (t Type) MarshalText() ([]byte, error) {
	if t >= numTypes {
		return nil, fmt.Errorf("fieldtype: invalid type %d", uint8(t))
	}
	return []byte(typeNames[t]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Type) UnmarshalText(b []byte) error {
	v, err := ParseType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// ParseType resolves a type name case-insensitively. A few common aliases
// (bool, int, double, timestamp, string) are accepted.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "boolean", "bool":
		return Boolean, nil
	case "integer", "int":
		return Integer, nil
	case "float", "double", "real":
		return Float, nil
	case "datetime", "date", "timestamp":
		return DateTime, nil
	case "text", "string":
		return Text, nil
	}
	return 0, fmt.Errorf("fieldtype: unknown type %q", s)
}

// Mask is a set of types, one bit per lattice element.
type Mask uint8

// MaskOf builds a Mask from ts.
func MaskOf(ts ...Type) Mask {
	var m Mask
	for _, t := range ts {
		m |= 1 << t
	}
	return m
}

// Has reports whether t is in m.
func (m Mask) Has(t Type) bool { return m&(1<<t) != 0 }

// Least returns the narrowest type in m, or Text if m holds none.
func (m Mask) Least() Type {
	for t := Boolean; t < numTypes; t++ {
		if m.Has(t) {
			return t
		}
	}
	return Text
}
