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

import "testing"

func TestValue_CreateValuePicksMatchingVariant(t *testing.T) {
	tests := map[string]struct {
		input any
		want  ValueType
	}{
		"bool":    {true, ValueTypeBool},
		"int":     {5, ValueTypeInt},
		"int64":   {int64(9), ValueTypeInt},
		"float":   {2.5, ValueTypeFloat},
		"float32": {float32(1.5), ValueTypeFloat},
		"string":  {"hi", ValueTypeString},
		"path":    {NewPathFromString("a.b"), ValueTypeDivertTarget},
		"list":    {NewList(), ValueTypeList},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			value := CreateValue(test.input)
			if value == nil {
				t.Fatalf("expected a value for %v", test.input)
			}
			if want, got := test.want, value.ValueType(); want != got {
				t.Errorf("expected type %d, got %d", want, got)
			}
		})
	}

	if CreateValue(struct{}{}) != nil {
		t.Errorf("expected nil for unsupported type")
	}
}

func TestValue_CastLattice(t *testing.T) {
	boolVal := NewBoolValue(true)

	asInt, err := boolVal.Cast(ValueTypeInt)
	if err != nil {
		t.Fatalf("unexpected cast error: %v", err)
	}
	if want, got := 1, asInt.(*IntValue).Value; want != got {
		t.Errorf("expected %d, got %d", want, got)
	}

	asString, err := boolVal.Cast(ValueTypeString)
	if err != nil {
		t.Fatalf("unexpected cast error: %v", err)
	}
	if want, got := "true", asString.(*StringValue).Value; want != got {
		t.Errorf("expected %q, got %q", want, got)
	}

	floatVal := NewFloatValue(2.75)
	asInt, err = floatVal.Cast(ValueTypeInt)
	if err != nil {
		t.Fatalf("unexpected cast error: %v", err)
	}
	if want, got := 2, asInt.(*IntValue).Value; want != got {
		t.Errorf("expected truncation to %d, got %d", want, got)
	}

	stringVal := NewStringValue("42")
	asInt, err = stringVal.Cast(ValueTypeInt)
	if err != nil {
		t.Fatalf("unexpected cast error: %v", err)
	}
	if want, got := 42, asInt.(*IntValue).Value; want != got {
		t.Errorf("expected %d, got %d", want, got)
	}

	if _, err := NewStringValue("not a number").Cast(ValueTypeInt); err == nil {
		t.Errorf("expected bad cast error")
	}
	if _, err := NewDivertTargetValue(NewPathFromString("x")).Cast(ValueTypeInt); err == nil {
		t.Errorf("expected bad cast error for divert target")
	}
}

func TestValue_FloatFormattingIsLocaleIndependent(t *testing.T) {
	tests := map[float64]string{
		5:      "5",
		5.6:    "5.6",
		-0.125: "-0.125",
	}
	for input, want := range tests {
		if got := NewFloatValue(input).String(); want != got {
			t.Errorf("expected %q, got %q", want, got)
		}
	}
}

func TestValue_Truthiness(t *testing.T) {
	truthy := []Value{
		NewBoolValue(true),
		NewIntValue(-3),
		NewFloatValue(0.5),
		NewStringValue("x"),
	}
	for _, v := range truthy {
		ok, err := v.IsTruthy()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !ok {
			t.Errorf("expected %v to be truthy", v)
		}
	}

	falsy := []Value{
		NewBoolValue(false),
		NewIntValue(0),
		NewFloatValue(0),
		NewStringValue(""),
		NewListValue(nil),
	}
	for _, v := range falsy {
		ok, err := v.IsTruthy()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ok {
			t.Errorf("expected %v to be falsy", v)
		}
	}

	// Divert targets and variable pointers must not be used as conditions.
	if _, err := NewDivertTargetValue(NewPathFromString("x")).IsTruthy(); err == nil {
		t.Errorf("expected error for divert-target truthiness")
	}
	if _, err := NewVariablePointerValue("v", -1).IsTruthy(); err == nil {
		t.Errorf("expected error for variable-pointer truthiness")
	}
}

func TestValue_StringClassification(t *testing.T) {
	if !NewStringValue("\n").IsNewline() {
		t.Errorf("expected newline classification")
	}
	if !NewStringValue("  \t").IsInlineWhitespace() {
		t.Errorf("expected inline whitespace classification")
	}
	if NewStringValue("\n").IsInlineWhitespace() {
		t.Errorf("newline should not be inline whitespace")
	}
	if !NewStringValue(" a ").IsNonWhitespace() {
		t.Errorf("expected non-whitespace classification")
	}
	if NewStringValue("").IsNonWhitespace() {
		t.Errorf("empty string should not count as non-whitespace")
	}
}

func TestValue_ValuesEqual(t *testing.T) {
	if !valuesEqual(NewIntValue(3), NewIntValue(3)) {
		t.Errorf("expected equal ints")
	}
	if valuesEqual(NewIntValue(3), NewFloatValue(3)) {
		t.Errorf("values of different types must not compare equal")
	}
	if !valuesEqual(
		NewDivertTargetValue(NewPathFromString("a.b")),
		NewDivertTargetValue(NewPathFromString("a.b"))) {
		t.Errorf("expected equal divert targets")
	}
	if valuesEqual(NewStringValue("a"), NewStringValue("b")) {
		t.Errorf("expected unequal strings")
	}
}

func TestValue_RetainListOriginsForAssignment(t *testing.T) {
	oldList := NewList()
	oldList.Set(ListItem{OriginName: "hues", ItemName: "red"}, 1)
	oldValue := NewListValue(oldList)

	newValue := NewListValue(nil)
	retainListOriginsForAssignment(oldValue, newValue)

	if want, got := 1, len(newValue.Value.OriginNames()); want != got {
		t.Fatalf("expected %d retained origin name, got %d", want, got)
	}
	if want, got := "hues", newValue.Value.OriginNames()[0]; want != got {
		t.Errorf("expected origin %q, got %q", want, got)
	}
}
