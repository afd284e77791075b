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

func newTestVariablesState() (*VariablesState, *CallStack) {
	cs := newTestCallStack()
	vs := newVariablesState(cs, nil)
	return vs, cs
}

func TestVariablesState_GlobalsAndDefaults(t *testing.T) {
	vs, _ := newTestVariablesState()

	vs.SetGlobal("health", NewIntValue(100))
	vs.SnapshotDefaultGlobals()
	vs.SetGlobal("health", NewIntValue(75))

	value, ok := vs.Get("health")
	if !ok {
		t.Fatalf("expected health to exist")
	}
	if want, got := 75, value.(int); want != got {
		t.Errorf("expected %d, got %d", want, got)
	}

	// Defaults answer for names missing from the globals.
	delete(vs.globalVariables, "health")
	value, ok = vs.Get("health")
	if !ok {
		t.Fatalf("expected default to answer")
	}
	if want, got := 100, value.(int); want != got {
		t.Errorf("expected default %d, got %d", want, got)
	}
}

func TestVariablesState_SetRejectsUndeclaredNames(t *testing.T) {
	vs, _ := newTestVariablesState()
	vs.SetGlobal("known", NewIntValue(1))
	vs.SnapshotDefaultGlobals()

	if err := vs.Set("unknown", 5); err == nil {
		t.Fatalf("expected assignment to undeclared global to fail")
	}
	if err := vs.Set("known", 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestVariablesState_SetCoercesHostNumericTypes(t *testing.T) {
	vs, _ := newTestVariablesState()
	vs.SetGlobal("n", NewIntValue(0))
	vs.SetGlobal("f", NewFloatValue(0))
	vs.SnapshotDefaultGlobals()

	if err := vs.Set("n", int32(7)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value, _ := vs.Get("n"); value.(int) != 7 {
		t.Errorf("expected int32 host value to coerce to int, got %v", value)
	}

	if err := vs.Set("f", float32(1.5)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value, _ := vs.Get("f"); value.(float64) != 1.5 {
		t.Errorf("expected float32 host value to coerce to float64, got %v", value)
	}
}

func TestVariablesState_AssignTemporary(t *testing.T) {
	vs, cs := newTestVariablesState()
	cs.Push(PushPopFunction, 0, 0)

	tempDecl := NewVariableAssignment("t", true)
	if err := vs.Assign(tempDecl, NewIntValue(3)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	value, ok := vs.GetVariableWithName("t").(*IntValue)
	if !ok {
		t.Fatalf("expected temporary to resolve")
	}
	if want, got := 3, value.Value; want != got {
		t.Errorf("expected %d, got %d", want, got)
	}

	reassign := NewVariableAssignment("t", false)
	if err := vs.Assign(reassign, NewIntValue(9)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want, got := 9, vs.GetVariableWithName("t").(*IntValue).Value; want != got {
		t.Errorf("expected %d after reassignment, got %d", want, got)
	}
}

func TestVariablesState_AssignThroughVariablePointer(t *testing.T) {
	vs, cs := newTestVariablesState()
	cs.Push(PushPopFunction, 0, 0)

	// temp x = 1; temp ref = pointer to x; assignment through ref writes x.
	if err := vs.Assign(NewVariableAssignment("x", true), NewIntValue(1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := vs.Assign(NewVariableAssignment("ref", true), NewVariablePointerValue("x", -1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := vs.Assign(NewVariableAssignment("ref", false), NewIntValue(42)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if want, got := 42, vs.GetVariableWithName("x").(*IntValue).Value; want != got {
		t.Errorf("expected pointer assignment to write through, got %d", got)
	}
	// Reading through the pointer dereferences too.
	if want, got := 42, vs.GetVariableWithName("ref").(*IntValue).Value; want != got {
		t.Errorf("expected pointer read-through %d, got %d", want, got)
	}
}

func TestVariablesState_ObserverFiresOnChangeOnly(t *testing.T) {
	vs, _ := newTestVariablesState()
	vs.SetGlobal("x", NewIntValue(1))
	vs.SnapshotDefaultGlobals()

	var events []int
	vs.variableChangedEvent = func(name string, value Object) {
		events = append(events, value.(*IntValue).Value)
	}

	vs.SetGlobal("x", NewIntValue(2))
	vs.SetGlobal("x", NewIntValue(2)) // unchanged, must not fire
	vs.SetGlobal("x", NewIntValue(3))

	if want, got := 2, len(events); want != got {
		t.Fatalf("expected %d events, got %d: %v", want, got, events)
	}
	if events[0] != 2 || events[1] != 3 {
		t.Errorf("expected events [2 3], got %v", events)
	}
}

func TestVariablesState_BatchObservingCollapsesWrites(t *testing.T) {
	vs, _ := newTestVariablesState()
	vs.SetGlobal("x", NewIntValue(1))
	vs.SnapshotDefaultGlobals()

	var events []int
	vs.variableChangedEvent = func(name string, value Object) {
		events = append(events, value.(*IntValue).Value)
	}

	vs.StartBatchObserving()
	vs.SetGlobal("x", NewIntValue(2))
	vs.SetGlobal("x", NewIntValue(5))
	if len(events) != 0 {
		t.Fatalf("expected no events while batching, got %v", events)
	}

	changed := vs.CompleteBatchObserving()
	vs.NotifyObservers(changed)

	if want, got := 1, len(events); want != got {
		t.Fatalf("expected one collapsed event, got %d: %v", got, events)
	}
	if want, got := 5, events[0]; want != got {
		t.Errorf("expected final value %d, got %d", want, got)
	}
}

func TestVariablesState_PatchBuffersWrites(t *testing.T) {
	vs, _ := newTestVariablesState()
	vs.SetGlobal("x", NewIntValue(1))
	vs.SnapshotDefaultGlobals()

	vs.patch = newStatePatch(nil)
	vs.SetGlobal("x", NewIntValue(2))

	// The underlying globals are untouched while the patch is active.
	if want, got := 1, vs.globalVariables["x"].(*IntValue).Value; want != got {
		t.Fatalf("expected buffered write, underlying value %d, got %d", want, got)
	}
	// Reads see the patched value.
	if want, got := 2, vs.GetVariableWithName("x").(*IntValue).Value; want != got {
		t.Fatalf("expected patched read %d, got %d", want, got)
	}

	vs.ApplyPatch()
	if want, got := 2, vs.globalVariables["x"].(*IntValue).Value; want != got {
		t.Errorf("expected committed value %d, got %d", want, got)
	}
	if vs.patch != nil {
		t.Errorf("expected patch cleared after apply")
	}
}

func TestVariablesState_EmptyListAssignmentRetainsOrigins(t *testing.T) {
	vs, _ := newTestVariablesState()

	withItems := NewList()
	withItems.Set(ListItem{OriginName: "hues", ItemName: "red"}, 1)
	vs.SetGlobal("l", NewListValue(withItems))

	vs.SetGlobal("l", NewListValue(nil))
	listValue := vs.GetVariableWithName("l").(*ListValue)
	if want, got := 1, len(listValue.Value.OriginNames()); want != got {
		t.Fatalf("expected origins retained on empty assignment, got %d", got)
	}
}

func TestVariablesState_BareListItemNameResolves(t *testing.T) {
	cs := newTestCallStack()
	origin := NewListDefinitionsOrigin([]*ListDefinition{hueDefinition()})
	vs := newVariablesState(cs, origin)

	value, ok := vs.GetVariableWithName("blue").(*ListValue)
	if !ok {
		t.Fatalf("expected bare item name to resolve to a list value")
	}
	if want, got := 5, value.Value.MaxItemValue(); want != got {
		t.Errorf("expected item value %d, got %d", want, got)
	}
}

func TestVariablesState_WriteJSONElidesDefaults(t *testing.T) {
	vs, _ := newTestVariablesState()
	vs.SetGlobal("a", NewIntValue(1))
	vs.SetGlobal("b", NewIntValue(2))
	vs.SnapshotDefaultGlobals()
	vs.SetGlobal("b", NewIntValue(20))

	written := vs.writeJSON()
	if _, ok := written["a"]; ok {
		t.Errorf("expected unchanged variable to be elided from the save")
	}
	if want, got := 20, written["b"].(int); want != got {
		t.Errorf("expected changed variable saved as %d, got %v", want, written["b"])
	}
}
