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
	"sort"

	"github.com/spf13/cast"
	"golang.org/x/exp/maps"
)

// variableChangedFunc receives every committed global write.
type variableChangedFunc func(name string, value Object)

// VariablesState resolves variable reads and writes across three strata: an
// active patch (while snapshotting), the globals, and the default-globals
// snapshot taken once after load. Temporaries resolve through the call
// stack.
type VariablesState struct {
	globalVariables        map[string]Object
	defaultGlobalVariables map[string]Object

	callStack      *CallStack
	listDefsOrigin *ListDefinitionsOrigin

	patch *StatePatch

	batchObservingVariableChanges bool
	changedVariablesForBatchObs   map[string]struct{}

	variableChangedEvent variableChangedFunc
}

func newVariablesState(callStack *CallStack, listDefsOrigin *ListDefinitionsOrigin) *VariablesState {
	return &VariablesState{
		globalVariables: map[string]Object{},
		callStack:       callStack,
		listDefsOrigin:  listDefsOrigin,
	}
}

// Get reads a global variable, returning its raw Go value. The second
// return value reports whether the variable exists.
func (vs *VariablesState) Get(name string) (any, bool) {
	var value Object
	var ok bool
	if vs.patch != nil {
		if value, ok = vs.patch.TryGetGlobal(name); ok {
			return value.(Value).ValueObject(), true
		}
	}
	if value, ok = vs.globalVariables[name]; !ok {
		value, ok = vs.defaultGlobalVariables[name]
	}
	if !ok {
		return nil, false
	}
	if v, isValue := value.(Value); isValue {
		return v.ValueObject(), true
	}
	return nil, false
}

// Set writes a global variable from a host-provided Go value. Assigning to
// a name the story never declared fails with a StoryError.
func (vs *VariablesState) Set(name string, value any) error {
	if _, ok := vs.defaultGlobalVariables[name]; !ok {
		return storyErrorf("cannot assign to a variable (%s) that hasn't been declared in the story", name)
	}

	val := CreateValue(normalizeHostValue(value))
	if val == nil {
		if value == nil {
			return storyErrorf("cannot pass nil to VariablesState")
		}
		return storyErrorf("invalid value passed to VariablesState: %v", value)
	}

	vs.SetGlobal(name, val)
	return nil
}

// normalizeHostValue widens arbitrary host numeric types into the engine's
// canonical int/float64/bool/string forms.
func normalizeHostValue(value any) any {
	switch value.(type) {
	case bool, int, float64, string, *Path, *List, Value:
		return value
	case float32:
		return cast.ToFloat64(value)
	case int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return cast.ToInt(value)
	}
	return value
}

// GlobalVariableExistsWithName includes the default stratum, so names are
// recognized even before ResetGlobals has run.
func (vs *VariablesState) GlobalVariableExistsWithName(name string) bool {
	if _, ok := vs.globalVariables[name]; ok {
		return true
	}
	_, ok := vs.defaultGlobalVariables[name]
	return ok
}

// GetVariableWithName resolves a variable by name, following variable
// pointers to their targets.
func (vs *VariablesState) GetVariableWithName(name string) Object {
	return vs.getVariableWithName(name, -1)
}

func (vs *VariablesState) getVariableWithName(name string, contextIndex int) Object {
	value := vs.getRawVariableWithName(name, contextIndex)
	if pointer, ok := value.(*VariablePointerValue); ok {
		value = vs.valueAtVariablePointer(pointer)
	}
	return value
}

func (vs *VariablesState) getRawVariableWithName(name string, contextIndex int) Object {
	if contextIndex == 0 || contextIndex == -1 {
		if vs.patch != nil {
			if value, ok := vs.patch.TryGetGlobal(name); ok {
				return value
			}
		}
		if value, ok := vs.globalVariables[name]; ok {
			return value
		}
		// Getting the default value for a variable can happen while loading
		// a saved state that predates its declaration.
		if value, ok := vs.defaultGlobalVariables[name]; ok {
			return value
		}
		if vs.listDefsOrigin != nil {
			if listItemValue := vs.listDefsOrigin.FindSingleItemListWithName(name); listItemValue != nil {
				return listItemValue
			}
		}
	}
	return vs.callStack.GetTemporaryVariableWithName(name, contextIndex)
}

func (vs *VariablesState) valueAtVariablePointer(pointer *VariablePointerValue) Object {
	return vs.getVariableWithName(pointer.VariableName, pointer.ContextIndex)
}

// Assign performs a VariableAssignment with the given value, following an
// existing variable-pointer chain when reassigning.
func (vs *VariablesState) Assign(varAss *VariableAssignment, value Object) error {
	name := varAss.VariableName
	contextIndex := -1

	var setGlobal bool
	if varAss.IsNewDeclaration {
		setGlobal = varAss.IsGlobal
	} else {
		setGlobal = vs.GlobalVariableExistsWithName(name)
	}

	if varAss.IsNewDeclaration {
		// When the assigned value is a variable pointer, resolve it to the
		// concrete frame so later dereferences are unambiguous.
		if varPointer, ok := value.(*VariablePointerValue); ok {
			value = vs.resolveVariablePointer(varPointer)
		}
	} else {
		// Assignment through a pointer chain: find the end of the chain.
		for {
			existingPointer, ok := vs.getRawVariableWithName(name, contextIndex).(*VariablePointerValue)
			if !ok {
				break
			}
			name = existingPointer.VariableName
			contextIndex = existingPointer.ContextIndex
			setGlobal = contextIndex == 0
		}
	}

	if setGlobal {
		vs.SetGlobal(name, value)
		return nil
	}
	return vs.callStack.SetTemporaryVariable(name, value, varAss.IsNewDeclaration, contextIndex)
}

// SetGlobal writes a global, recording the change through the patch when one
// is active and notifying observers (immediately or batched).
func (vs *VariablesState) SetGlobal(name string, value Object) {
	var oldValue Object
	foundOld := false
	if vs.patch != nil {
		oldValue, foundOld = vs.patch.TryGetGlobal(name)
	}
	if !foundOld {
		oldValue = vs.globalVariables[name]
	}

	retainListOriginsForAssignment(oldValue, value)

	if vs.patch != nil {
		vs.patch.SetGlobal(name, value)
	} else {
		vs.globalVariables[name] = value
	}

	if vs.variableChangedEvent != nil && !valuesEqual(value, oldValue) {
		if vs.batchObservingVariableChanges {
			if vs.patch != nil {
				vs.patch.AddChangedVariable(name)
			} else if vs.changedVariablesForBatchObs != nil {
				vs.changedVariablesForBatchObs[name] = struct{}{}
			}
		} else {
			vs.variableChangedEvent(name, value)
		}
	}
}

// resolveVariablePointer pins an unresolved pointer (context -1) to the
// concrete frame holding the variable. Pointers to pointers pass the inner
// pointer through.
func (vs *VariablesState) resolveVariablePointer(varPointer *VariablePointerValue) *VariablePointerValue {
	contextIndex := varPointer.ContextIndex
	if contextIndex == -1 {
		contextIndex = vs.getContextIndexOfVariableNamed(varPointer.VariableName)
	}

	valueOfVariablePointedTo := vs.getRawVariableWithName(varPointer.VariableName, contextIndex)
	if doubleRedirectionPointer, ok := valueOfVariablePointedTo.(*VariablePointerValue); ok {
		return doubleRedirectionPointer
	}
	return NewVariablePointerValue(varPointer.VariableName, contextIndex)
}

// getContextIndexOfVariableNamed returns 0 for globals, else the frame index
// of the temporary.
func (vs *VariablesState) getContextIndexOfVariableNamed(name string) int {
	if vs.GlobalVariableExistsWithName(name) {
		return 0
	}
	return vs.callStack.ContextForVariableNamed(name)
}

// SnapshotDefaultGlobals records the post-load values of all globals, used
// both as the fallback read stratum and to elide unchanged variables from
// saves.
func (vs *VariablesState) SnapshotDefaultGlobals() {
	vs.defaultGlobalVariables = map[string]Object{}
	maps.Copy(vs.defaultGlobalVariables, vs.globalVariables)
}

// ApplyPatch commits the buffered writes of the active patch.
func (vs *VariablesState) ApplyPatch() {
	for name, value := range vs.patch.globals {
		vs.globalVariables[name] = value
	}
	if vs.changedVariablesForBatchObs != nil {
		for name := range vs.patch.changedVariables {
			vs.changedVariablesForBatchObs[name] = struct{}{}
		}
	}
	vs.patch = nil
}

// StartBatchObserving defers observer notification until the matching
// CompleteBatchObserving, collapsing repeated writes to one notification.
func (vs *VariablesState) StartBatchObserving() {
	vs.batchObservingVariableChanges = true
	vs.changedVariablesForBatchObs = map[string]struct{}{}
}

// CompleteBatchObserving stops batching and returns the final value of each
// changed variable, keyed by name.
func (vs *VariablesState) CompleteBatchObserving() map[string]Object {
	vs.batchObservingVariableChanges = false

	changed := map[string]Object{}
	for name := range vs.changedVariablesForBatchObs {
		changed[name] = vs.globalVariables[name]
	}
	// A patch may still be active, e.g. mid-snapshot; its values win.
	if vs.patch != nil {
		for name := range vs.patch.changedVariables {
			if value, ok := vs.patch.TryGetGlobal(name); ok {
				changed[name] = value
			}
		}
	}

	vs.changedVariablesForBatchObs = nil
	return changed
}

// flushBatchedObservations drains the pending change set without leaving
// batch mode, so that batched observers fire once per Continue.
func (vs *VariablesState) flushBatchedObservations() map[string]Object {
	if !vs.batchObservingVariableChanges || len(vs.changedVariablesForBatchObs) == 0 {
		return nil
	}

	changed := map[string]Object{}
	for name := range vs.changedVariablesForBatchObs {
		changed[name] = vs.globalVariables[name]
	}
	if vs.patch != nil {
		for name := range vs.patch.changedVariables {
			if value, ok := vs.patch.TryGetGlobal(name); ok {
				changed[name] = value
			}
		}
	}

	vs.changedVariablesForBatchObs = map[string]struct{}{}
	return changed
}

// NotifyObservers fires the change event for each entry, in name order.
func (vs *VariablesState) NotifyObservers(changed map[string]Object) {
	names := maps.Keys(changed)
	sort.Strings(names)
	for _, name := range names {
		vs.variableChangedEvent(name, changed[name])
	}
}

// writeJSON emits the variables differing from their defaults.
func (vs *VariablesState) writeJSON() map[string]any {
	result := map[string]any{}
	for name, value := range vs.globalVariables {
		if defaultVal, ok := vs.defaultGlobalVariables[name]; ok && valuesEqual(value, defaultVal) {
			continue
		}
		result[name] = writeRuntimeObject(value)
	}
	return result
}

// setJSONToken restores globals from a save, falling back to the default
// value for any variable the save does not mention.
func (vs *VariablesState) setJSONToken(jObject map[string]any) error {
	vs.globalVariables = map[string]Object{}
	for name, defaultValue := range vs.defaultGlobalVariables {
		if loadedToken, ok := jObject[name]; ok {
			obj, err := jsonTokenToRuntimeObject(loadedToken)
			if err != nil {
				return err
			}
			vs.globalVariables[name] = obj
		} else {
			vs.globalVariables[name] = defaultValue
		}
	}
	return nil
}
