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
	"strings"
)

// Element is one frame of a thread's call stack.
type Element struct {
	Type           PushPopType
	CurrentPointer Pointer

	InExpressionEvaluation bool
	TemporaryVariables     map[string]Object

	// EvaluationStackHeightWhenPushed is recorded when the frame is created
	// for a game-initiated function evaluation, so that the result can be
	// located when it completes.
	EvaluationStackHeightWhenPushed int

	// FunctionStartInOutputStream is the output-stream length at the start
	// of a function call, used to trim leading whitespace produced by the
	// function.
	FunctionStartInOutputStream int
}

func newElement(t PushPopType, pointer Pointer, inExpressionEvaluation bool) *Element {
	return &Element{
		Type:                        t,
		CurrentPointer:              pointer,
		InExpressionEvaluation:      inExpressionEvaluation,
		TemporaryVariables:          map[string]Object{},
		FunctionStartInOutputStream: -1,
	}
}

func (e *Element) copy() *Element {
	c := newElement(e.Type, e.CurrentPointer, e.InExpressionEvaluation)
	for name, value := range e.TemporaryVariables {
		c.TemporaryVariables[name] = value
	}
	c.EvaluationStackHeightWhenPushed = e.EvaluationStackHeightWhenPushed
	c.FunctionStartInOutputStream = e.FunctionStartInOutputStream
	return c
}

// Thread is one cooperative execution context within a flow: a stack of
// elements plus the previously executed pointer. Threads copy on fork.
type Thread struct {
	callstack       []*Element
	threadIndex     int
	previousPointer Pointer
}

func newThread() *Thread {
	return &Thread{previousPointer: NullPointer}
}

// Copy deep-copies the element stack; the new thread keeps the same index
// until the call stack assigns a fresh one.
func (t *Thread) Copy() *Thread {
	c := newThread()
	c.threadIndex = t.threadIndex
	for _, e := range t.callstack {
		c.callstack = append(c.callstack, e.copy())
	}
	c.previousPointer = t.previousPointer
	return c
}

// CallStack is the set of threads of one flow, the last one being current.
type CallStack struct {
	threads       []*Thread
	threadCounter int
	startOfRoot   Pointer
}

// NewCallStack creates a call stack with a single thread positioned at the
// start of the given root container.
func NewCallStack(rootContentContainer *Container) *CallStack {
	cs := &CallStack{startOfRoot: StartOf(rootContentContainer)}
	cs.Reset()
	return cs
}

// NewCallStackCopy deep-copies another call stack.
func NewCallStackCopy(toCopy *CallStack) *CallStack {
	cs := &CallStack{
		threadCounter: toCopy.threadCounter,
		startOfRoot:   toCopy.startOfRoot,
	}
	for _, t := range toCopy.threads {
		cs.threads = append(cs.threads, t.Copy())
	}
	return cs
}

// Reset discards all threads and frames, returning to the start of root.
func (cs *CallStack) Reset() {
	thread := newThread()
	thread.callstack = append(thread.callstack, newElement(PushPopTunnel, cs.startOfRoot, false))
	cs.threads = []*Thread{thread}
}

func (cs *CallStack) Elements() []*Element {
	return cs.CurrentThread().callstack
}

func (cs *CallStack) CurrentElement() *Element {
	thread := cs.threads[len(cs.threads)-1]
	return thread.callstack[len(thread.callstack)-1]
}

func (cs *CallStack) currentElementIndex() int {
	return len(cs.Elements()) - 1
}

func (cs *CallStack) CurrentThread() *Thread {
	return cs.threads[len(cs.threads)-1]
}

// SetCurrentThread replaces the one-and-only thread. It is invalid to call
// while a stack of threads exists.
func (cs *CallStack) SetCurrentThread(value *Thread) {
	if len(cs.threads) != 1 {
		panic("shouldn't be directly setting the current thread when we have a stack of them")
	}
	cs.threads = []*Thread{value}
}

func (cs *CallStack) Depth() int {
	return len(cs.Elements())
}

// CanPop reports whether a frame of the given type can be popped; canPop is
// false for the last remaining frame.
func (cs *CallStack) CanPop(t PushPopType) bool {
	if !cs.canPop() {
		return false
	}
	return cs.CurrentElement().Type == t
}

func (cs *CallStack) canPop() bool {
	return len(cs.Elements()) > 1
}

// Push adds a frame whose pointer is copied from the caller's frame.
func (cs *CallStack) Push(t PushPopType, externalEvaluationStackHeight, outputStreamLengthWithPushed int) {
	element := newElement(t, cs.CurrentElement().CurrentPointer, false)
	element.EvaluationStackHeightWhenPushed = externalEvaluationStackHeight
	element.FunctionStartInOutputStream = outputStreamLengthWithPushed
	thread := cs.CurrentThread()
	thread.callstack = append(thread.callstack, element)
}

// Pop removes the top frame, failing when the stack would empty or the frame
// type disagrees.
func (cs *CallStack) Pop(t PushPopType) error {
	if !cs.CanPop(t) {
		return errEmptyCallStackPop
	}
	thread := cs.CurrentThread()
	thread.callstack = thread.callstack[:len(thread.callstack)-1]
	return nil
}

// popCurrent removes the top frame regardless of its type.
func (cs *CallStack) popCurrent() error {
	if !cs.canPop() {
		return errEmptyCallStackPop
	}
	thread := cs.CurrentThread()
	thread.callstack = thread.callstack[:len(thread.callstack)-1]
	return nil
}

// PushThread forks the current thread onto the thread stack.
func (cs *CallStack) PushThread() {
	newThread := cs.CurrentThread().Copy()
	cs.threadCounter++
	newThread.threadIndex = cs.threadCounter
	cs.threads = append(cs.threads, newThread)
}

// ForkThread copies the current thread with a fresh index without pushing
// it; used to capture choice-generation context.
func (cs *CallStack) ForkThread() *Thread {
	forked := cs.CurrentThread().Copy()
	cs.threadCounter++
	forked.threadIndex = cs.threadCounter
	return forked
}

func (cs *CallStack) PopThread() error {
	if !cs.CanPopThread() {
		return errCannotPopThread
	}
	cs.threads = cs.threads[:len(cs.threads)-1]
	return nil
}

func (cs *CallStack) CanPopThread() bool {
	return len(cs.threads) > 1 && !cs.ElementIsEvaluateFromGame()
}

// ElementIsEvaluateFromGame reports whether execution is inside a
// game-initiated function evaluation.
func (cs *CallStack) ElementIsEvaluateFromGame() bool {
	return cs.CurrentElement().Type == PushPopFunctionEvaluationFromGame
}

// ThreadWithIndex finds a thread by its saved index.
func (cs *CallStack) ThreadWithIndex(index int) *Thread {
	for _, t := range cs.threads {
		if t.threadIndex == index {
			return t
		}
	}
	return nil
}

// GetTemporaryVariableWithName reads a temporary from the frame identified
// by contextIndex (1-based; -1 means the current frame).
func (cs *CallStack) GetTemporaryVariableWithName(name string, contextIndex int) Object {
	if contextIndex == -1 {
		contextIndex = cs.currentElementIndex() + 1
	}
	contextElement := cs.Elements()[contextIndex-1]
	return contextElement.TemporaryVariables[name]
}

// SetTemporaryVariable writes a temporary on the frame identified by
// contextIndex, failing on reassignment of an undeclared name.
func (cs *CallStack) SetTemporaryVariable(name string, value Object, declareNew bool, contextIndex int) error {
	if contextIndex == -1 {
		contextIndex = cs.currentElementIndex() + 1
	}
	contextElement := cs.Elements()[contextIndex-1]

	oldValue, exists := contextElement.TemporaryVariables[name]
	if !declareNew && !exists {
		return storyErrorf("could not find temporary variable to set: %s", name)
	}
	if exists {
		retainListOriginsForAssignment(oldValue, value)
	}
	contextElement.TemporaryVariables[name] = value
	return nil
}

// ContextForVariableNamed returns the 1-based index of the current frame
// when it holds a temporary of that name, else 0 to denote global scope.
// Frames other than the current one are not searched.
func (cs *CallStack) ContextForVariableNamed(name string) int {
	if _, ok := cs.CurrentElement().TemporaryVariables[name]; ok {
		return cs.currentElementIndex() + 1
	}
	return 0
}

// CallStackTrace renders the threads and frames for error messages.
func (cs *CallStack) CallStackTrace() string {
	var sb strings.Builder
	for t, thread := range cs.threads {
		isCurrent := t == len(cs.threads)-1
		fmt.Fprintf(&sb, "=== THREAD %d/%d %s===\n", t+1, len(cs.threads),
			map[bool]string{true: "(current) ", false: ""}[isCurrent])
		for _, element := range thread.callstack {
			switch element.Type {
			case PushPopFunction:
				sb.WriteString("  [FUNCTION] ")
			case PushPopTunnel:
				sb.WriteString("  [TUNNEL] ")
			default:
				sb.WriteString("  [EVAL FROM GAME] ")
			}
			pointer := element.CurrentPointer
			if !pointer.IsNull() {
				fmt.Fprintf(&sb, "<SOMEWHERE IN %s>\n", PathOf(pointer.Container))
			} else {
				sb.WriteString("<UNKNOWN>\n")
			}
		}
	}
	return sb.String()
}

// writeJSON serializes the call stack into the save-state tree.
func (cs *CallStack) writeJSON() map[string]any {
	threads := make([]any, 0, len(cs.threads))
	for _, t := range cs.threads {
		threads = append(threads, t.writeJSON())
	}
	return map[string]any{
		"threads":       threads,
		"threadCounter": cs.threadCounter,
	}
}

// setJSONToken restores the call stack from the save-state tree, resolving
// pointers against the given story.
func (cs *CallStack) setJSONToken(obj map[string]any, story *Story) error {
	cs.threads = nil

	jThreads, ok := obj["threads"].([]any)
	if !ok {
		return errSaveVersionMissing
	}
	for _, jThreadTok := range jThreads {
		jThreadObj, ok := jThreadTok.(map[string]any)
		if !ok {
			return errSaveVersionMissing
		}
		thread, err := threadFromJSON(jThreadObj, story)
		if err != nil {
			return err
		}
		cs.threads = append(cs.threads, thread)
	}

	cs.threadCounter = jsonInt(obj["threadCounter"])
	cs.startOfRoot = StartOf(story.RootContentContainer())
	return nil
}

func (t *Thread) writeJSON() map[string]any {
	callstack := make([]any, 0, len(t.callstack))
	for _, e := range t.callstack {
		jObj := map[string]any{}
		if !e.CurrentPointer.IsNull() {
			jObj["cPath"] = PathOf(e.CurrentPointer.Container).String()
			jObj["idx"] = e.CurrentPointer.Index
		}
		jObj["exp"] = e.InExpressionEvaluation
		jObj["type"] = int(e.Type)
		if len(e.TemporaryVariables) > 0 {
			jObj["temp"] = writeObjectDictionary(e.TemporaryVariables)
		}
		callstack = append(callstack, jObj)
	}

	result := map[string]any{
		"callstack":   callstack,
		"threadIndex": t.threadIndex,
	}
	if !t.previousPointer.IsNull() {
		if resolved := t.previousPointer.Resolve(); resolved != nil {
			result["previousContentObject"] = PathOf(resolved).String()
		}
	}
	return result
}

func threadFromJSON(jThreadObj map[string]any, story *Story) (*Thread, error) {
	t := newThread()
	t.threadIndex = jsonInt(jThreadObj["threadIndex"])

	jThreadCallstack, _ := jThreadObj["callstack"].([]any)
	for _, jElTok := range jThreadCallstack {
		jElementObj, _ := jElTok.(map[string]any)

		pushPopType := PushPopType(jsonInt(jElementObj["type"]))
		element := newElement(pushPopType, NullPointer, false)

		if currentContainerPathStr, ok := jElementObj["cPath"].(string); ok {
			threadPointerResult := story.ContentAtPath(NewPathFromString(currentContainerPathStr))
			element.CurrentPointer.Container = threadPointerResult.Container()
			element.CurrentPointer.Index = jsonInt(jElementObj["idx"])

			if threadPointerResult.Obj == nil {
				return nil, storyErrorf("when loading state, internal story location couldn't be found: %s. Has the story changed since this save data was created?", currentContainerPathStr)
			} else if threadPointerResult.Approximate {
				if element.CurrentPointer.Container != nil {
					story.warning(fmt.Sprintf("when loading state, internal story location couldn't be found: '%s', so it was approximated to '%s' to recover. Has the story changed since this save data was created?",
						currentContainerPathStr, PathOf(element.CurrentPointer.Container)))
				} else {
					story.warning(fmt.Sprintf("when loading state, exact internal story location couldn't be found: '%s', so it was approximated to the end of the story. Has the story changed since this save data was created?",
						currentContainerPathStr))
				}
			}
		}

		element.InExpressionEvaluation, _ = jElementObj["exp"].(bool)

		if jObjTemps, ok := jElementObj["temp"].(map[string]any); ok {
			temps, err := readObjectDictionary(jObjTemps)
			if err != nil {
				return nil, err
			}
			element.TemporaryVariables = temps
		}

		t.callstack = append(t.callstack, element)
	}

	if prevContentObjPath, ok := jThreadObj["previousContentObject"].(string); ok {
		prevPath := NewPathFromString(prevContentObjPath)
		t.previousPointer = story.PointerAtPath(prevPath)
	}

	return t, nil
}
