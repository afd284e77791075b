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
	"math"
	"strings"
)

// Native function names, as they appear in the compiled JSON.
const (
	FuncAdd      = "+"
	FuncSubtract = "-"
	FuncDivide   = "/"
	FuncMultiply = "*"
	FuncMod      = "%"
	FuncNegate   = "_"

	FuncEqual               = "=="
	FuncGreater             = ">"
	FuncLess                = "<"
	FuncGreaterThanOrEquals = ">="
	FuncLessThanOrEquals    = "<="
	FuncNotEquals           = "!="
	FuncNot                 = "!"

	FuncAnd = "&&"
	FuncOr  = "||"

	FuncMin = "MIN"
	FuncMax = "MAX"

	FuncPow     = "POW"
	FuncFloor   = "FLOOR"
	FuncCeiling = "CEILING"
	FuncInt     = "INT"
	FuncFloat   = "FLOAT"

	FuncHas       = "?"
	FuncHasnt     = "!?"
	FuncIntersect = "^"

	FuncListMin     = "LIST_MIN"
	FuncListMax     = "LIST_MAX"
	FuncAll         = "LIST_ALL"
	FuncCount       = "LIST_COUNT"
	FuncValueOfList = "LIST_VALUE"
	FuncInvert      = "LIST_INVERT"
)

// nativeFunctionArity maps each operator to its parameter count.
var nativeFunctionArity = map[string]int{
	FuncAdd: 2, FuncSubtract: 2, FuncDivide: 2, FuncMultiply: 2, FuncMod: 2,
	FuncNegate: 1,
	FuncEqual:  2, FuncGreater: 2, FuncLess: 2, FuncGreaterThanOrEquals: 2,
	FuncLessThanOrEquals: 2, FuncNotEquals: 2, FuncNot: 1,
	FuncAnd: 2, FuncOr: 2,
	FuncMin: 2, FuncMax: 2,
	FuncPow: 2, FuncFloor: 1, FuncCeiling: 1, FuncInt: 1, FuncFloat: 1,
	FuncHas: 2, FuncHasnt: 2, FuncIntersect: 2,
	FuncListMin: 1, FuncListMax: 1, FuncAll: 1, FuncCount: 1,
	FuncValueOfList: 1, FuncInvert: 1,
}

// NativeFunctionCall is an operator node: it pops its parameters from the
// evaluation stack, coerces them to a common type, and pushes the result.
type NativeFunctionCall struct {
	objectBase

	name string
}

// NativeFunctionExistsWithName reports whether the wire token names an
// operator.
func NativeFunctionExistsWithName(name string) bool {
	_, ok := nativeFunctionArity[name]
	return ok
}

func NewNativeFunctionCall(name string) *NativeFunctionCall {
	return &NativeFunctionCall{name: name}
}

func (f *NativeFunctionCall) Name() string {
	return f.name
}

func (f *NativeFunctionCall) NumberOfParameters() int {
	return nativeFunctionArity[f.name]
}

func (f *NativeFunctionCall) String() string {
	return "Native '" + f.name + "'"
}

// Call applies the operator. Parameters arrive in the order they were
// originally pushed.
func (f *NativeFunctionCall) Call(params []Object) (Value, error) {
	if len(params) != f.NumberOfParameters() {
		return nil, storyErrorf("unexpected number of parameters to %s: %d, expected %d",
			f.name, len(params), f.NumberOfParameters())
	}

	hasList := false
	values := make([]Value, len(params))
	for i, p := range params {
		if _, isVoid := p.(*Void); isVoid {
			return nil, storyErrorf("attempting to perform operation on a void value. Did you forget to 'return' a value from a function you called here?")
		}
		value, ok := p.(Value)
		if !ok {
			return nil, storyErrorf("attempting to perform %s on a non-value", f.name)
		}
		if value.ValueType() == ValueTypeList {
			hasList = true
		}
		values[i] = value
	}

	// Binary operations involving lists are treated specially.
	if len(values) == 2 && hasList {
		return f.callBinaryListOperation(values)
	}

	coerced, err := coerceValuesToSingleType(values)
	if err != nil {
		return nil, err
	}

	switch coerced[0].ValueType() {
	case ValueTypeInt:
		return f.callInt(coerced)
	case ValueTypeFloat:
		return f.callFloat(coerced)
	case ValueTypeString:
		return f.callString(coerced)
	case ValueTypeDivertTarget:
		return f.callDivertTarget(coerced)
	case ValueTypeList:
		return f.callList(coerced)
	}
	return nil, storyErrorf("can not perform operation '%s' on parameters of this type", f.name)
}

// coerceValuesToSingleType casts all parameters to the largest value type
// among them. Mixing lists with plain ints resolves the ints against the
// list's origin.
func coerceValuesToSingleType(values []Value) ([]Value, error) {
	valType := ValueTypeInt
	var specialCaseList *ListValue
	for _, v := range values {
		if v.ValueType() > valType {
			valType = v.ValueType()
		}
		if lv, ok := v.(*ListValue); ok {
			specialCaseList = lv
		}
	}

	coerced := make([]Value, len(values))

	if valType == ValueTypeList {
		for i, v := range values {
			switch v.ValueType() {
			case ValueTypeList:
				coerced[i] = v
			case ValueTypeInt:
				intVal := v.(*IntValue).Value
				origin := specialCaseList.Value.originOfMaxItem()
				if origin == nil {
					return nil, storyErrorf("could not find list definition to convert %d into a list item", intVal)
				}
				item, ok := origin.ItemWithValue(intVal)
				if !ok {
					return nil, storyErrorf("could not find List item with the value %d in %s", intVal, origin.Name())
				}
				coerced[i] = NewListValueWithItem(item, intVal)
			default:
				return nil, storyErrorf("cannot mix Lists and %d values in this operation", v.ValueType())
			}
		}
		return coerced, nil
	}

	for i, v := range values {
		cast, err := v.Cast(valType)
		if err != nil {
			return nil, err
		}
		coerced[i] = cast
	}
	return coerced, nil
}

func (f *NativeFunctionCall) callBinaryListOperation(values []Value) (Value, error) {
	// List-int addition/subtraction returns a list, e.g. "alpha" + 1 = "beta".
	if f.name == FuncAdd || f.name == FuncSubtract {
		if lv, ok := values[0].(*ListValue); ok {
			if iv, ok := values[1].(*IntValue); ok {
				return f.callListIncrementOperation(lv, iv)
			}
		}
	}

	v1, v2 := values[0], values[1]

	// And/or with any other type requires coercion to bool.
	if (f.name == FuncAnd || f.name == FuncOr) &&
		(v1.ValueType() != ValueTypeList || v2.ValueType() != ValueTypeList) {
		t1, err := v1.IsTruthy()
		if err != nil {
			return nil, err
		}
		t2, err := v2.IsTruthy()
		if err != nil {
			return nil, err
		}
		if f.name == FuncAnd {
			return NewBoolValue(t1 && t2), nil
		}
		return NewBoolValue(t1 || t2), nil
	}

	if v1.ValueType() == ValueTypeList && v2.ValueType() == ValueTypeList {
		return f.callList([]Value{v1, v2})
	}

	return nil, storyErrorf("can not call use '%s' operation on %d and %d",
		f.name, v1.ValueType(), v2.ValueType())
}

func (f *NativeFunctionCall) callListIncrementOperation(listVal *ListValue, intVal *IntValue) (Value, error) {
	result := NewList()
	for _, e := range listVal.Value.orderedItems() {
		target := e.value + intVal.Value
		if f.name == FuncSubtract {
			target = e.value - intVal.Value
		}

		var itemOrigin *ListDefinition
		for _, origin := range listVal.Value.origins {
			if origin.Name() == e.item.OriginName {
				itemOrigin = origin
				break
			}
		}
		if itemOrigin != nil {
			if incremented, ok := itemOrigin.ItemWithValue(target); ok {
				result.Set(incremented, target)
			}
		}
	}
	return NewListValue(result), nil
}

func (f *NativeFunctionCall) callInt(params []Value) (Value, error) {
	a := params[0].(*IntValue).Value
	b := 0
	if len(params) == 2 {
		b = params[1].(*IntValue).Value
	}

	switch f.name {
	case FuncAdd:
		return NewIntValue(a + b), nil
	case FuncSubtract:
		return NewIntValue(a - b), nil
	case FuncMultiply:
		return NewIntValue(a * b), nil
	case FuncDivide:
		if b == 0 {
			return nil, storyErrorf("divide by zero")
		}
		return NewIntValue(a / b), nil
	case FuncMod:
		if b == 0 {
			return nil, storyErrorf("modulo by zero")
		}
		return NewIntValue(a % b), nil
	case FuncNegate:
		return NewIntValue(-a), nil
	case FuncEqual:
		return NewBoolValue(a == b), nil
	case FuncGreater:
		return NewBoolValue(a > b), nil
	case FuncLess:
		return NewBoolValue(a < b), nil
	case FuncGreaterThanOrEquals:
		return NewBoolValue(a >= b), nil
	case FuncLessThanOrEquals:
		return NewBoolValue(a <= b), nil
	case FuncNotEquals:
		return NewBoolValue(a != b), nil
	case FuncNot:
		return NewBoolValue(a == 0), nil
	case FuncAnd:
		return NewBoolValue(a != 0 && b != 0), nil
	case FuncOr:
		return NewBoolValue(a != 0 || b != 0), nil
	case FuncMax:
		return NewIntValue(max(a, b)), nil
	case FuncMin:
		return NewIntValue(min(a, b)), nil
	case FuncPow:
		return NewFloatValue(math.Pow(float64(a), float64(b))), nil
	case FuncFloor, FuncCeiling, FuncInt:
		return NewIntValue(a), nil
	case FuncFloat:
		return NewFloatValue(float64(a)), nil
	}
	return nil, storyErrorf("can not perform operation '%s' on Int", f.name)
}

func (f *NativeFunctionCall) callFloat(params []Value) (Value, error) {
	a := params[0].(*FloatValue).Value
	b := 0.0
	if len(params) == 2 {
		b = params[1].(*FloatValue).Value
	}

	switch f.name {
	case FuncAdd:
		return NewFloatValue(a + b), nil
	case FuncSubtract:
		return NewFloatValue(a - b), nil
	case FuncMultiply:
		return NewFloatValue(a * b), nil
	case FuncDivide:
		if b == 0 {
			return nil, storyErrorf("divide by zero")
		}
		return NewFloatValue(a / b), nil
	case FuncMod:
		return NewFloatValue(math.Mod(a, b)), nil
	case FuncNegate:
		return NewFloatValue(-a), nil
	case FuncEqual:
		return NewBoolValue(a == b), nil
	case FuncGreater:
		return NewBoolValue(a > b), nil
	case FuncLess:
		return NewBoolValue(a < b), nil
	case FuncGreaterThanOrEquals:
		return NewBoolValue(a >= b), nil
	case FuncLessThanOrEquals:
		return NewBoolValue(a <= b), nil
	case FuncNotEquals:
		return NewBoolValue(a != b), nil
	case FuncNot:
		return NewBoolValue(a == 0), nil
	case FuncAnd:
		return NewBoolValue(a != 0 && b != 0), nil
	case FuncOr:
		return NewBoolValue(a != 0 || b != 0), nil
	case FuncMax:
		return NewFloatValue(math.Max(a, b)), nil
	case FuncMin:
		return NewFloatValue(math.Min(a, b)), nil
	case FuncPow:
		return NewFloatValue(math.Pow(a, b)), nil
	case FuncFloor:
		return NewFloatValue(math.Floor(a)), nil
	case FuncCeiling:
		return NewFloatValue(math.Ceil(a)), nil
	case FuncInt:
		return NewIntValue(int(a)), nil
	case FuncFloat:
		return NewFloatValue(a), nil
	}
	return nil, storyErrorf("can not perform operation '%s' on Float", f.name)
}

func (f *NativeFunctionCall) callString(params []Value) (Value, error) {
	a := params[0].(*StringValue).Value
	b := ""
	if len(params) == 2 {
		b = params[1].(*StringValue).Value
	}

	switch f.name {
	case FuncAdd:
		return NewStringValue(a + b), nil
	case FuncEqual:
		return NewBoolValue(a == b), nil
	case FuncNotEquals:
		return NewBoolValue(a != b), nil
	case FuncHas:
		return NewBoolValue(strings.Contains(a, b)), nil
	case FuncHasnt:
		return NewBoolValue(!strings.Contains(a, b)), nil
	}
	return nil, storyErrorf("can not perform operation '%s' on String", f.name)
}

func (f *NativeFunctionCall) callDivertTarget(params []Value) (Value, error) {
	a := params[0].(*DivertTargetValue).TargetPath
	var b *Path
	if len(params) == 2 {
		b = params[1].(*DivertTargetValue).TargetPath
	}

	switch f.name {
	case FuncEqual:
		return NewBoolValue(a.Equals(b)), nil
	case FuncNotEquals:
		return NewBoolValue(!a.Equals(b)), nil
	}
	return nil, storyErrorf("can not perform operation '%s' on DivertTarget", f.name)
}

func (f *NativeFunctionCall) callList(params []Value) (Value, error) {
	a := params[0].(*ListValue).Value
	var b *List
	if len(params) == 2 {
		b = params[1].(*ListValue).Value
	}

	switch f.name {
	case FuncAdd:
		return NewListValue(a.Union(b)), nil
	case FuncSubtract:
		return NewListValue(a.Without(b)), nil
	case FuncHas:
		return NewBoolValue(a.Contains(b)), nil
	case FuncHasnt:
		return NewBoolValue(!a.Contains(b)), nil
	case FuncIntersect:
		return NewListValue(a.Intersect(b)), nil
	case FuncEqual:
		return NewBoolValue(a.Equals(b)), nil
	case FuncNotEquals:
		return NewBoolValue(!a.Equals(b)), nil
	case FuncGreater:
		return NewBoolValue(a.GreaterThan(b)), nil
	case FuncLess:
		return NewBoolValue(a.LessThan(b)), nil
	case FuncGreaterThanOrEquals:
		return NewBoolValue(a.GreaterThanOrEquals(b)), nil
	case FuncLessThanOrEquals:
		return NewBoolValue(a.LessThanOrEquals(b)), nil
	case FuncAnd:
		return NewBoolValue(a.Count() > 0 && b.Count() > 0), nil
	case FuncOr:
		return NewBoolValue(a.Count() > 0 || b.Count() > 0), nil
	case FuncNot:
		return NewBoolValue(a.Count() == 0), nil
	case FuncInvert:
		return NewListValue(a.Inverse()), nil
	case FuncAll:
		return NewListValue(a.All()), nil
	case FuncListMin:
		return NewListValue(a.MinAsList()), nil
	case FuncListMax:
		return NewListValue(a.MaxAsList()), nil
	case FuncCount:
		return NewIntValue(a.Count()), nil
	case FuncValueOfList:
		return NewIntValue(a.MaxItemValue()), nil
	}
	return nil, storyErrorf("can not perform operation '%s' on List", f.name)
}
