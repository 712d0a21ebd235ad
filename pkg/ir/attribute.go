// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ir

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/irpass/pkg/core/layout"
	"github.com/pkg/errors"
)

// AttrType enumerates the kinds of values an operator attribute can hold.
type AttrType int

const (
	AttrInvalid AttrType = iota
	AttrBool
	AttrInt
	AttrFloat
	AttrString
	AttrInts
	AttrLayout
)

var attrTypeNames = []string{"invalid", "bool", "int", "float", "string", "ints", "layout"}

// String implements fmt.Stringer.
func (t AttrType) String() string {
	if t < 0 || int(t) >= len(attrTypeNames) {
		return fmt.Sprintf("AttrType(%d)", int(t))
	}
	return attrTypeNames[t]
}

// Attribute is a tagged value of one of the AttrType kinds.
//
// Go types used for each kind: bool, int, float32, string, []int and layout.Layout.
type Attribute struct {
	typ   AttrType
	value any
}

// BoolAttr creates a boolean attribute.
func BoolAttr(v bool) Attribute { return Attribute{AttrBool, v} }

// IntAttr creates an integer attribute.
func IntAttr(v int) Attribute { return Attribute{AttrInt, v} }

// FloatAttr creates a float attribute.
func FloatAttr(v float32) Attribute { return Attribute{AttrFloat, v} }

// StringAttr creates a string attribute.
func StringAttr(v string) Attribute { return Attribute{AttrString, v} }

// IntsAttr creates a list of integers attribute. The slice is copied.
func IntsAttr(v []int) Attribute { return Attribute{AttrInts, slices.Clone(v)} }

// LayoutAttr creates a layout (enum) attribute.
func LayoutAttr(v layout.Layout) Attribute { return Attribute{AttrLayout, v} }

// NewAttribute converts a Go value to an Attribute. It accepts the Go types of each kind, plus other
// sized ints (converted to int) and float64 (converted to float32).
func NewAttribute(value any) (Attribute, error) {
	switch v := value.(type) {
	case Attribute:
		return v, nil
	case bool:
		return BoolAttr(v), nil
	case int:
		return IntAttr(v), nil
	case int32:
		return IntAttr(int(v)), nil
	case int64:
		return IntAttr(int(v)), nil
	case float32:
		return FloatAttr(v), nil
	case float64:
		return FloatAttr(float32(v)), nil
	case string:
		return StringAttr(v), nil
	case []int:
		return IntsAttr(v), nil
	case layout.Layout:
		return LayoutAttr(v), nil
	}
	return Attribute{}, errors.Errorf("attribute value of type %T not supported", value)
}

// Type of the attribute.
func (a Attribute) Type() AttrType { return a.typ }

// Value returns the attribute value as its Go type.
func (a Attribute) Value() any {
	if a.typ == AttrInts {
		return slices.Clone(a.value.([]int))
	}
	return a.value
}

// String implements fmt.Stringer.
func (a Attribute) String() string {
	return fmt.Sprintf("%v(%s)", a.value, a.typ)
}

// Equal returns whether both attributes have the same kind and value.
func (a Attribute) Equal(other Attribute) bool {
	if a.typ != other.typ {
		return false
	}
	if a.typ == AttrInts {
		return slices.Equal(a.value.([]int), other.value.([]int))
	}
	return a.value == other.value
}

// attrAs converts the attribute to T, panicking if the kinds don't match.
func attrAs[T any](name string, a Attribute) T {
	v, ok := a.Value().(T)
	if !ok {
		var want T
		exceptions.Panicf("attribute %q holds a %s (%v), not a %T", name, a.typ, a.value, want)
	}
	return v
}

type attributeJSON struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// MarshalJSON implements json.Marshaler, as {"type": <kind>, "value": <value>}.
// Layouts are written by name.
func (a Attribute) MarshalJSON() ([]byte, error) {
	var value any = a.value
	if a.typ == AttrLayout {
		value = a.value.(layout.Layout).String()
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode attribute %s", a)
	}
	return json.Marshal(attributeJSON{Type: a.typ.String(), Value: raw})
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Attribute) UnmarshalJSON(data []byte) error {
	var aj attributeJSON
	if err := json.Unmarshal(data, &aj); err != nil {
		return errors.Wrapf(err, "invalid attribute %s", data)
	}
	typ := AttrType(slices.Index(attrTypeNames, aj.Type))
	var err error
	switch typ {
	case AttrBool:
		var v bool
		err = json.Unmarshal(aj.Value, &v)
		*a = BoolAttr(v)
	case AttrInt:
		var v int
		err = json.Unmarshal(aj.Value, &v)
		*a = IntAttr(v)
	case AttrFloat:
		var v float32
		err = json.Unmarshal(aj.Value, &v)
		*a = FloatAttr(v)
	case AttrString:
		var v string
		err = json.Unmarshal(aj.Value, &v)
		*a = StringAttr(v)
	case AttrInts:
		var v []int
		err = json.Unmarshal(aj.Value, &v)
		*a = IntsAttr(v)
	case AttrLayout:
		var name string
		if err = json.Unmarshal(aj.Value, &name); err == nil {
			var l layout.Layout
			l, err = layout.Parse(name)
			*a = LayoutAttr(l)
		}
	default:
		return errors.Errorf("unknown attribute type %q", aj.Type)
	}
	return errors.Wrapf(err, "invalid %s attribute value %s", aj.Type, aj.Value)
}
