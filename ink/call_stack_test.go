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
	"testing"

	"pgregory.net/rand"
)

func newTestCallStack() *CallStack {
	root := NewContainer()
	root.AddContent(NewStringValue("a"))
	root.AddContent(NewStringValue("b"))
	return NewCallStack(root)
}

func TestCallStack_StartsWithSingleTunnelFrame(t *testing.T) {
	cs := newTestCallStack()

	if want, got := 1, cs.Depth(); want != got {
		t.Fatalf("expected depth %d, got %d", want, got)
	}
	if want, got := PushPopTunnel, cs.CurrentElement().Type; want != got {
		t.Errorf("expected base frame type %v, got %v", want, got)
	}
	if cs.canPop() {
		t.Errorf("the base frame must not be poppable")
	}
}

func TestCallStack_PushThenPopIsNoOp(t *testing.T) {
	cs := newTestCallStack()
	before := cs.CurrentElement().CurrentPointer

	cs.Push(PushPopFunction, 0, 0)
	if want, got := 2, cs.Depth(); want != got {
		t.Fatalf("expected depth %d, got %d", want, got)
	}
	// The new frame's pointer is copied from the caller's frame.
	if cs.CurrentElement().CurrentPointer != before {
		t.Errorf("expected pushed frame to copy the caller's pointer")
	}

	if err := cs.Pop(PushPopFunction); err != nil {
		t.Fatalf("unexpected pop error: %v", err)
	}
	if want, got := 1, cs.Depth(); want != got {
		t.Errorf("expected depth %d, got %d", want, got)
	}
	if cs.CurrentElement().CurrentPointer != before {
		t.Errorf("expected observable state restored after push/pop")
	}
}

func TestCallStack_PopTypeMismatchFails(t *testing.T) {
	cs := newTestCallStack()
	cs.Push(PushPopFunction, 0, 0)

	if err := cs.Pop(PushPopTunnel); err == nil {
		t.Fatalf("expected mismatched pop to fail")
	}
	if want, got := 2, cs.Depth(); want != got {
		t.Errorf("expected depth unchanged at %d, got %d", want, got)
	}
}

func TestCallStack_PopLastFrameFails(t *testing.T) {
	cs := newTestCallStack()
	if err := cs.Pop(PushPopTunnel); err == nil {
		t.Fatalf("expected popping the last frame to fail")
	}
}

func TestCallStack_TemporaryVariables(t *testing.T) {
	cs := newTestCallStack()
	cs.Push(PushPopFunction, 0, 0)

	if err := cs.SetTemporaryVariable("x", NewIntValue(4), true, -1); err != nil {
		t.Fatalf("unexpected error declaring temporary: %v", err)
	}
	value, ok := cs.GetTemporaryVariableWithName("x", -1).(*IntValue)
	if !ok {
		t.Fatalf("expected an int temporary")
	}
	if want, got := 4, value.Value; want != got {
		t.Errorf("expected %d, got %d", want, got)
	}

	// Reassigning an undeclared name fails.
	if err := cs.SetTemporaryVariable("y", NewIntValue(1), false, -1); err == nil {
		t.Errorf("expected reassignment of undeclared temporary to fail")
	}

	// The temporary lives on the function frame, not on the base frame.
	if cs.GetTemporaryVariableWithName("x", 1) != nil {
		t.Errorf("expected temporary to be invisible on the base frame")
	}
	if want, got := 2, cs.ContextForVariableNamed("x"); want != got {
		t.Errorf("expected context index %d, got %d", want, got)
	}
	if want, got := 0, cs.ContextForVariableNamed("unknown"); want != got {
		t.Errorf("expected global context %d for unknown name, got %d", want, got)
	}
}

func TestCallStack_ThreadForkIsIndependent(t *testing.T) {
	cs := newTestCallStack()
	cs.Push(PushPopFunction, 0, 0)
	_ = cs.SetTemporaryVariable("x", NewIntValue(1), true, -1)

	forked := cs.ForkThread()
	if want, got := 2, len(forked.callstack); want != got {
		t.Fatalf("expected forked thread to copy %d frames, got %d", want, got)
	}

	// Mutating the fork must not affect the live thread.
	forked.callstack[1].TemporaryVariables["x"] = NewIntValue(99)
	value := cs.GetTemporaryVariableWithName("x", -1).(*IntValue)
	if want, got := 1, value.Value; want != got {
		t.Errorf("expected live thread temporary unchanged at %d, got %d", want, got)
	}
}

func TestCallStack_PushPopThread(t *testing.T) {
	cs := newTestCallStack()

	if cs.CanPopThread() {
		t.Fatalf("a single thread must not be poppable")
	}
	cs.PushThread()
	if !cs.CanPopThread() {
		t.Fatalf("expected pushed thread to be poppable")
	}
	if err := cs.PopThread(); err != nil {
		t.Fatalf("unexpected pop thread error: %v", err)
	}
	if err := cs.PopThread(); err == nil {
		t.Errorf("expected popping the last thread to fail")
	}
}

func TestCallStack_ThreadWithIndex(t *testing.T) {
	cs := newTestCallStack()
	cs.PushThread()

	pushed := cs.CurrentThread()
	if cs.ThreadWithIndex(pushed.threadIndex) != pushed {
		t.Errorf("expected thread lookup by index")
	}
	if cs.ThreadWithIndex(12345) != nil {
		t.Errorf("expected nil for unknown thread index")
	}
}

func TestCallStack_Reset(t *testing.T) {
	cs := newTestCallStack()
	cs.Push(PushPopTunnel, 0, 0)
	cs.PushThread()

	cs.Reset()
	if want, got := 1, cs.Depth(); want != got {
		t.Errorf("expected depth %d after reset, got %d", want, got)
	}
	if want, got := 1, len(cs.threads); want != got {
		t.Errorf("expected %d thread after reset, got %d", want, got)
	}
}

func TestCallStack_RandomizedPushPopKeepsDepthConsistent(t *testing.T) {
	rng := rand.New(42)
	cs := newTestCallStack()

	expectedDepth := 1
	var pushedTypes []PushPopType

	for i := 0; i < 1000; i++ {
		if expectedDepth == 1 || rng.Uint32n(2) == 0 {
			pushType := PushPopFunction
			if rng.Uint32n(2) == 0 {
				pushType = PushPopTunnel
			}
			cs.Push(pushType, 0, 0)
			pushedTypes = append(pushedTypes, pushType)
			expectedDepth++
		} else {
			pushType := pushedTypes[len(pushedTypes)-1]
			pushedTypes = pushedTypes[:len(pushedTypes)-1]
			if err := cs.Pop(pushType); err != nil {
				t.Fatalf("unexpected pop error at step %d: %v", i, err)
			}
			expectedDepth--
		}

		if want, got := expectedDepth, cs.Depth(); want != got {
			t.Fatalf("expected depth %d at step %d, got %d", want, got, i)
		}
	}
}

func TestCallStack_CopyIsDeep(t *testing.T) {
	cs := newTestCallStack()
	cs.Push(PushPopFunction, 3, 7)
	_ = cs.SetTemporaryVariable("x", NewIntValue(1), true, -1)

	copied := NewCallStackCopy(cs)

	if want, got := cs.Depth(), copied.Depth(); want != got {
		t.Fatalf("expected copied depth %d, got %d", want, got)
	}
	if want, got := 3, copied.CurrentElement().EvaluationStackHeightWhenPushed; want != got {
		t.Errorf("expected recorded eval height %d, got %d", want, got)
	}
	if want, got := 7, copied.CurrentElement().FunctionStartInOutputStream; want != got {
		t.Errorf("expected recorded output length %d, got %d", want, got)
	}

	copied.CurrentElement().TemporaryVariables["x"] = NewIntValue(2)
	original := cs.GetTemporaryVariableWithName("x", -1).(*IntValue)
	if want, got := 1, original.Value; want != got {
		t.Errorf("expected original temporary unchanged at %d, got %d", want, got)
	}
}
