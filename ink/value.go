// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package ink

import (
	"fmt"
	"strconv"
	"strings"
)

// ValueType orders the value kinds for numeric coercion: when an operator
// receives mixed operands, both are cast to the larger type. Bool sits below
// Int so that booleans silently participate in arithmetic.
type ValueType int

const (
	ValueTypeBool ValueType = -1 + iota
	ValueTypeInt
	ValueTypeFloat
	ValueTypeList
	ValueTypeString
	ValueTypeDivertTarget
	ValueTypeVariablePointer
)

// Value is a leaf node carrying a scalar or reference value.
type Value interface {
	Object
	ValueType() ValueType
	// IsTruthy reports whether the value counts as true in a condition.
	// Divert targets and variable pointers must not be used as conditions.
	IsTruthy() (bool, error)
	// Cast converts the value to another type, or fails with a bad-cast
	// error when the conversion is not in the cast lattice.
	Cast(t ValueType) (Value, error)
	// ValueObject is the raw Go value carried by this node.
	ValueObject() any
	String() string
}

func badCast(v Value, target ValueType) error {
	return storyErrorf("can't cast %v from %d to %d", v, v.ValueType(), target)
}

// CreateValue wraps a Go value in the corresponding ink value node, or
// returns nil when the type has no ink equivalent.
func CreateValue(val any) Value {
	switch v := val.(type) {
	case bool:
		return NewBoolValue(v)
	case int:
		return NewIntValue(v)
	case int32:
		return NewIntValue(int(v))
	case int64:
		return NewIntValue(int(v))
	case float32:
		return NewFloatValue(float64(v))
	case float64:
		return NewFloatValue(v)
	case string:
		return NewStringValue(v)
	case *Path:
		return NewDivertTargetValue(v)
	case *List:
		return NewListValue(v)
	case Value:
		return v
	}
	return nil
}

// formatFloat renders a float in the locale-independent form used both for
// text output and for serialization.
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// BoolValue

type BoolValue struct {
	objectBase
	Value bool
}

func NewBoolValue(v bool) *BoolValue { return &BoolValue{Value: v} }

func (v *BoolValue) ValueType() ValueType    { return ValueTypeBool }
func (v *BoolValue) ValueObject() any        { return v.Value }
func (v *BoolValue) IsTruthy() (bool, error) { return v.Value, nil }

func (v *BoolValue) Cast(t ValueType) (Value, error) {
	switch t {
	case ValueTypeBool:
		return v, nil
	case ValueTypeInt:
		if v.Value {
			return NewIntValue(1), nil
		}
		return NewIntValue(0), nil
	case ValueTypeFloat:
		if v.Value {
			return NewFloatValue(1), nil
		}
		return NewFloatValue(0), nil
	case ValueTypeString:
		if v.Value {
			return NewStringValue("true"), nil
		}
		return NewStringValue("false"), nil
	}
	return nil, badCast(v, t)
}

func (v *BoolValue) String() string {
	if v.Value {
		return "true"
	}
	return "false"
}

// IntValue

type IntValue struct {
	objectBase
	Value int
}

func NewIntValue(v int) *IntValue { return &IntValue{Value: v} }

func (v *IntValue) ValueType() ValueType    { return ValueTypeInt }
func (v *IntValue) ValueObject() any        { return v.Value }
func (v *IntValue) IsTruthy() (bool, error) { return v.Value != 0, nil }

func (v *IntValue) Cast(t ValueType) (Value, error) {
	switch t {
	case ValueTypeInt:
		return v, nil
	case ValueTypeBool:
		return NewBoolValue(v.Value != 0), nil
	case ValueTypeFloat:
		return NewFloatValue(float64(v.Value)), nil
	case ValueTypeString:
		return NewStringValue(strconv.Itoa(v.Value)), nil
	}
	return nil, badCast(v, t)
}

func (v *IntValue) String() string { return strconv.Itoa(v.Value) }

// FloatValue

type FloatValue struct {
	objectBase
	Value float64
}

func NewFloatValue(v float64) *FloatValue { return &FloatValue{Value: v} }

func (v *FloatValue) ValueType() ValueType    { return ValueTypeFloat }
func (v *FloatValue) ValueObject() any        { return v.Value }
func (v *FloatValue) IsTruthy() (bool, error) { return v.Value != 0, nil }

func (v *FloatValue) Cast(t ValueType) (Value, error) {
	switch t {
	case ValueTypeFloat:
		return v, nil
	case ValueTypeBool:
		return NewBoolValue(v.Value != 0), nil
	case ValueTypeInt:
		return NewIntValue(int(v.Value)), nil
	case ValueTypeString:
		return NewStringValue(formatFloat(v.Value)), nil
	}
	return nil, badCast(v, t)
}

func (v *FloatValue) String() string { return formatFloat(v.Value) }

// StringValue

type StringValue struct {
	objectBase
	Value string

	// Precomputed classification used by the output-stream whitespace rules.
	isNewline          bool
	isInlineWhitespace bool
}

func NewStringValue(v string) *StringValue {
	s := &StringValue{Value: v}
	s.isNewline = v == "\n"
	s.isInlineWhitespace = true
	for _, c := range v {
		if c != ' ' && c != '\t' {
			s.isInlineWhitespace = false
			break
		}
	}
	return s
}

func (v *StringValue) ValueType() ValueType    { return ValueTypeString }
func (v *StringValue) ValueObject() any        { return v.Value }
func (v *StringValue) IsTruthy() (bool, error) { return len(v.Value) > 0, nil }

func (v *StringValue) IsNewline() bool { return v.isNewline }

func (v *StringValue) IsInlineWhitespace() bool { return !v.isNewline && v.isInlineWhitespace }

// IsNonWhitespace reports whether the string is neither a lone newline nor
// made up only of spaces and tabs.
func (v *StringValue) IsNonWhitespace() bool { return !v.isNewline && !v.isInlineWhitespace }

func (v *StringValue) Cast(t ValueType) (Value, error) {
	switch t {
	case ValueTypeString:
		return v, nil
	case ValueTypeInt:
		if i, err := strconv.Atoi(strings.TrimSpace(v.Value)); err == nil {
			return NewIntValue(i), nil
		}
		return nil, badCast(v, t)
	case ValueTypeFloat:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v.Value), 64); err == nil {
			return NewFloatValue(f), nil
		}
		return nil, badCast(v, t)
	}
	return nil, badCast(v, t)
}

func (v *StringValue) String() string { return v.Value }

// DivertTargetValue

type DivertTargetValue struct {
	objectBase
	TargetPath *Path
}

func NewDivertTargetValue(target *Path) *DivertTargetValue {
	return &DivertTargetValue{TargetPath: target}
}

func (v *DivertTargetValue) ValueType() ValueType { return ValueTypeDivertTarget }
func (v *DivertTargetValue) ValueObject() any     { return v.TargetPath }

func (v *DivertTargetValue) IsTruthy() (bool, error) {
	return false, storyErrorf("shouldn't be checking the truthiness of a divert target")
}

func (v *DivertTargetValue) Cast(t ValueType) (Value, error) {
	if t == ValueTypeDivertTarget {
		return v, nil
	}
	return nil, badCast(v, t)
}

func (v *DivertTargetValue) String() string {
	return fmt.Sprintf("DivertTargetValue(%s)", v.TargetPath)
}

// VariablePointerValue

type VariablePointerValue struct {
	objectBase

	VariableName string

	// ContextIndex is the call-stack element holding the variable: 0 for a
	// global, 1-based frame indices for temporaries, and -1 when not yet
	// resolved to a concrete context.
	ContextIndex int
}

func NewVariablePointerValue(name string, contextIndex int) *VariablePointerValue {
	return &VariablePointerValue{VariableName: name, ContextIndex: contextIndex}
}

func (v *VariablePointerValue) ValueType() ValueType { return ValueTypeVariablePointer }
func (v *VariablePointerValue) ValueObject() any     { return v.VariableName }

func (v *VariablePointerValue) IsTruthy() (bool, error) {
	return false, storyErrorf("shouldn't be checking the truthiness of a variable pointer")
}

func (v *VariablePointerValue) Cast(t ValueType) (Value, error) {
	if t == ValueTypeVariablePointer {
		return v, nil
	}
	return nil, badCast(v, t)
}

func (v *VariablePointerValue) String() string {
	return fmt.Sprintf("VariablePointerValue(%s)", v.VariableName)
}

// ListValue

type ListValue struct {
	objectBase
	Value *List
}

func NewListValue(list *List) *ListValue {
	if list == nil {
		list = NewList()
	}
	return &ListValue{Value: list}
}

// NewListValueWithItem creates a single-entry list value.
func NewListValueWithItem(item ListItem, value int) *ListValue {
	l := NewList()
	l.items[item] = value
	return &ListValue{Value: l}
}

func (v *ListValue) ValueType() ValueType    { return ValueTypeList }
func (v *ListValue) ValueObject() any        { return v.Value }
func (v *ListValue) IsTruthy() (bool, error) { return v.Value.Count() > 0, nil }

func (v *ListValue) Cast(t ValueType) (Value, error) {
	switch t {
	case ValueTypeList:
		return v, nil
	case ValueTypeInt:
		_, value, ok := v.Value.MaxItem()
		if !ok {
			return NewIntValue(0), nil
		}
		return NewIntValue(value), nil
	case ValueTypeFloat:
		_, value, ok := v.Value.MaxItem()
		if !ok {
			return NewFloatValue(0), nil
		}
		return NewFloatValue(float64(value)), nil
	case ValueTypeString:
		item, _, ok := v.Value.MaxItem()
		if !ok {
			return NewStringValue(""), nil
		}
		return NewStringValue(item.String()), nil
	}
	return nil, badCast(v, t)
}

func (v *ListValue) String() string { return v.Value.String() }

// retainListOriginsForAssignment keeps the origin-list names of an old list
// value when the newly assigned list is empty, so that an emptied list can
// still produce its full set via LIST_ALL.
func retainListOriginsForAssignment(oldValue, newValue Object) {
	oldList, oldOK := oldValue.(*ListValue)
	newList, newOK := newValue.(*ListValue)
	if oldOK && newOK && newList.Value.Count() == 0 {
		newList.Value.SetInitialOriginNames(oldList.Value.OriginNames())
	}
}

// valuesEqual compares two runtime objects for value equality, used for
// observer change detection and save-state delta emission.
func valuesEqual(a, b Object) bool {
	if a == nil || b == nil {
		return a == b
	}
	switch av := a.(type) {
	case *BoolValue:
		bv, ok := b.(*BoolValue)
		return ok && av.Value == bv.Value
	case *IntValue:
		bv, ok := b.(*IntValue)
		return ok && av.Value == bv.Value
	case *FloatValue:
		bv, ok := b.(*FloatValue)
		return ok && av.Value == bv.Value
	case *StringValue:
		bv, ok := b.(*StringValue)
		return ok && av.Value == bv.Value
	case *DivertTargetValue:
		bv, ok := b.(*DivertTargetValue)
		return ok && av.TargetPath.Equals(bv.TargetPath)
	case *VariablePointerValue:
		bv, ok := b.(*VariablePointerValue)
		return ok && av.VariableName == bv.VariableName && av.ContextIndex == bv.ContextIndex
	case *ListValue:
		bv, ok := b.(*ListValue)
		return ok && av.Value.Equals(bv.Value)
	}
	return a == b
}
