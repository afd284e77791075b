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

func newTestState(t *testing.T) *StoryState {
	t.Helper()
	story, err := NewStory(`{"inkVersion":21,"root":["done",null]}`)
	if err != nil {
		t.Fatalf("failed to load minimal story: %v", err)
	}
	return story.State()
}

func TestOutputStream_SplitsNewlinesIntoSeparateEntries(t *testing.T) {
	state := newTestState(t)

	state.PushToOutputStream(NewStringValue("one\n"))
	state.PushToOutputStream(NewStringValue("two"))

	// "one", "\n", "two"
	if want, got := 3, len(state.OutputStream()); want != got {
		t.Fatalf("expected %d entries, got %d", want, got)
	}
	if !state.OutputStream()[1].(*StringValue).IsNewline() {
		t.Errorf("expected middle entry to be a lone newline")
	}
}

func TestOutputStream_NeverLeadsWithNewline(t *testing.T) {
	state := newTestState(t)

	state.PushToOutputStream(NewStringValue("\n"))
	if want, got := 0, len(state.OutputStream()); want != got {
		t.Fatalf("expected leading newline to be dropped, got %d entries", got)
	}

	state.PushToOutputStream(NewStringValue("text"))
	state.PushToOutputStream(NewStringValue("\n"))
	if want, got := 2, len(state.OutputStream()); want != got {
		t.Fatalf("expected %d entries, got %d", want, got)
	}
}

func TestOutputStream_DeduplicatesNewlines(t *testing.T) {
	state := newTestState(t)

	state.PushToOutputStream(NewStringValue("text"))
	state.PushToOutputStream(NewStringValue("\n"))
	state.PushToOutputStream(NewStringValue("\n"))
	state.PushToOutputStream(NewStringValue("\n"))

	if want, got := 2, len(state.OutputStream()); want != got {
		t.Fatalf("expected consecutive newlines collapsed to %d entries, got %d", want, got)
	}
	if !state.OutputStreamEndsInNewline() {
		t.Errorf("expected stream to end in newline")
	}
}

func TestOutputStream_GlueEatsTrailingNewline(t *testing.T) {
	state := newTestState(t)

	state.PushToOutputStream(NewStringValue("I have "))
	state.PushToOutputStream(NewStringValue("\n"))
	state.PushToOutputStream(NewGlue())
	state.PushToOutputStream(NewStringValue("five eggs."))
	state.PushToOutputStream(NewStringValue("\n"))

	if want, got := "I have five eggs.\n", state.CurrentText(); want != got {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestOutputStream_NewlineAfterGlueIsSuppressed(t *testing.T) {
	state := newTestState(t)

	state.PushToOutputStream(NewStringValue("a"))
	state.PushToOutputStream(NewGlue())
	state.PushToOutputStream(NewStringValue("\n"))

	if state.OutputStreamEndsInNewline() {
		t.Errorf("expected newline following glue to be suppressed")
	}
	if want, got := "a", state.CurrentText(); want != got {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestOutputStream_ContainsContent(t *testing.T) {
	state := newTestState(t)

	if state.OutputStreamContainsContent() {
		t.Errorf("expected empty stream to contain no content")
	}
	state.PushToOutputStream(NewStringValue("x"))
	if !state.OutputStreamContainsContent() {
		t.Errorf("expected stream with a string to contain content")
	}
}

func TestCleanOutputWhitespace(t *testing.T) {
	tests := map[string]struct {
		input string
		want  string
	}{
		"collapse inline run":   {"a   b", "a b"},
		"tabs count":            {"a \t b", "a b"},
		"strip at line start":   {"  a", "a"},
		"preserve newlines":     {"a \n b", "a\nb"},
		"trailing ws dropped":   {"a ", "a"},
		"ws before newline":     {"a  \nb", "a\nb"},
		"empty":                 {"", ""},
		"multiline start strip": {"line\n  indented", "line\nindented"},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			if want, got := test.want, cleanOutputWhitespace(test.input); want != got {
				t.Errorf("expected %q, got %q", want, got)
			}
		})
	}
}

func TestOutputStream_TagSegmentation(t *testing.T) {
	state := newTestState(t)

	state.PushToOutputStream(NewControlCommand(CommandBeginTag))
	state.PushToOutputStream(NewStringValue("author: Joe"))
	state.PushToOutputStream(NewControlCommand(CommandEndTag))
	state.PushToOutputStream(NewStringValue("title: Story"))

	tags := state.CurrentTags()
	if want, got := 1, len(tags); want != got {
		t.Fatalf("expected %d tag, got %d", want, got)
	}
	if want, got := "author: Joe", tags[0]; want != got {
		t.Errorf("expected tag %q, got %q", want, got)
	}
	if want, got := "title: Story", state.CurrentText(); want != got {
		t.Errorf("expected text %q, got %q", want, got)
	}
}

func TestOutputStream_LegacyTagObjectsCount(t *testing.T) {
	state := newTestState(t)

	state.PushToOutputStream(NewStringValue("text"))
	state.currentFlow.outputStream = append(state.currentFlow.outputStream, NewTag("legacy"))
	state.outputStreamDirty()

	tags := state.CurrentTags()
	if want, got := 1, len(tags); want != got {
		t.Fatalf("expected %d tag, got %d", want, got)
	}
	if want, got := "legacy", tags[0]; want != got {
		t.Errorf("expected tag %q, got %q", want, got)
	}
}

func TestOutputStream_InStringEvaluation(t *testing.T) {
	state := newTestState(t)

	if state.InStringEvaluation() {
		t.Errorf("expected no string evaluation on empty stream")
	}
	state.PushToOutputStream(NewControlCommand(CommandBeginString))
	if !state.InStringEvaluation() {
		t.Errorf("expected string evaluation after BeginString")
	}
}

func TestState_EvaluationStack(t *testing.T) {
	state := newTestState(t)

	state.PushEvaluationStack(NewIntValue(1))
	state.PushEvaluationStack(NewIntValue(2))
	state.PushEvaluationStack(NewIntValue(3))

	popped, err := state.PopEvaluationStackMulti(2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Multi-pop returns values in original push order.
	if popped[0].(*IntValue).Value != 2 || popped[1].(*IntValue).Value != 3 {
		t.Errorf("expected [2 3], got %v", popped)
	}

	if want, got := 1, state.PopEvaluationStack().(*IntValue).Value; want != got {
		t.Errorf("expected %d, got %d", want, got)
	}
	if state.PopEvaluationStack() != nil {
		t.Errorf("expected nil when popping an empty stack")
	}

	if _, err := state.PopEvaluationStackMulti(5); err == nil {
		t.Errorf("expected error popping more than available")
	}
}

func TestState_VisitCountsAndTurnIndices(t *testing.T) {
	state := newTestState(t)

	counted := NewContainer()
	counted.Name = "counted"
	counted.VisitsShouldBeCounted = true
	counted.TurnIndexShouldBeCounted = true
	state.story.mainContentContainer.AddContent(counted)

	if want, got := 0, state.VisitCountForContainer(counted); want != got {
		t.Fatalf("expected initial visit count %d, got %d", want, got)
	}
	state.IncrementVisitCountForContainer(counted)
	state.IncrementVisitCountForContainer(counted)
	if want, got := 2, state.VisitCountForContainer(counted); want != got {
		t.Errorf("expected visit count %d, got %d", want, got)
	}

	if want, got := -1, state.TurnsSinceForContainer(counted); want != got {
		t.Errorf("expected never-visited turn count %d, got %d", want, got)
	}
	state.currentTurnIndex = 4
	state.RecordTurnIndexVisitToContainer(counted)
	state.currentTurnIndex = 7
	if want, got := 3, state.TurnsSinceForContainer(counted); want != got {
		t.Errorf("expected %d turns since, got %d", want, got)
	}
}

func TestState_PatchedCountsApplyOnCommit(t *testing.T) {
	state := newTestState(t)

	counted := NewContainer()
	counted.Name = "counted"
	counted.VisitsShouldBeCounted = true
	state.story.mainContentContainer.AddContent(counted)

	state.patch = newStatePatch(nil)
	state.variablesState.patch = state.patch
	state.IncrementVisitCountForContainer(counted)

	if want, got := 1, state.VisitCountForContainer(counted); want != got {
		t.Fatalf("expected patched count %d, got %d", want, got)
	}
	if want, got := 0, state.visitCounts[PathOf(counted).String()]; want != got {
		t.Fatalf("expected underlying count untouched at %d, got %d", want, got)
	}

	state.ApplyAnyPatch()
	if want, got := 1, state.visitCounts[PathOf(counted).String()]; want != got {
		t.Errorf("expected committed count %d, got %d", want, got)
	}
}

func TestState_CopyAndStartPatchingSharesVariablesState(t *testing.T) {
	state := newTestState(t)
	state.PushToOutputStream(NewStringValue("line"))
	state.PushEvaluationStack(NewIntValue(9))

	copied := state.CopyAndStartPatching()

	if copied.variablesState != state.variablesState {
		t.Errorf("expected the variables state to be shared by reference")
	}
	if copied.variablesState.patch != copied.patch {
		t.Errorf("expected the shared variables state to write through the copy's patch")
	}
	if want, got := 1, len(copied.OutputStream()); want != got {
		t.Errorf("expected output stream copied with %d entries, got %d", want, got)
	}
	if want, got := 1, len(copied.evaluationStack); want != got {
		t.Errorf("expected evaluation stack copied with %d entries, got %d", want, got)
	}

	// Mutating the copy's output stream must not affect the original.
	copied.PushToOutputStream(NewStringValue(" more"))
	if want, got := 1, len(state.OutputStream()); want != got {
		t.Errorf("expected original stream unchanged with %d entries, got %d", want, got)
	}

	// Restore re-points the variables state at the original.
	state.RestoreAfterPatch()
	if state.variablesState.callStack != state.CallStack() {
		t.Errorf("expected variables state call stack restored")
	}
}

func TestState_ForceEnd(t *testing.T) {
	state := newTestState(t)
	state.currentFlow.currentChoices = append(state.currentFlow.currentChoices, &Choice{})

	state.ForceEnd()

	if state.CanContinue() {
		t.Errorf("expected no continuation after ForceEnd")
	}
	if want, got := 0, len(state.GeneratedChoices()); want != got {
		t.Errorf("expected choices cleared, got %d", got)
	}
	if !state.didSafeExit {
		t.Errorf("expected ForceEnd to mark a safe exit")
	}
}

func TestState_SwitchFlow(t *testing.T) {
	state := newTestState(t)
	state.PushToOutputStream(NewStringValue("default text"))

	state.switchFlowInternal("side")
	if want, got := "side", state.CurrentFlowName(); want != got {
		t.Fatalf("expected flow %q, got %q", want, got)
	}
	if len(state.OutputStream()) != 0 {
		t.Errorf("expected fresh flow to start with an empty stream")
	}
	if state.variablesState.callStack != state.CallStack() {
		t.Errorf("expected variables state to follow the flow's call stack")
	}

	names := state.AliveFlowNames()
	if want, got := 1, len(names); want != got {
		t.Fatalf("expected %d alive flow, got %d", want, got)
	}
	if want, got := "side", names[0]; want != got {
		t.Errorf("expected alive flow %q, got %q", want, got)
	}

	state.switchToDefaultFlowInternal()
	if want, got := 1, len(state.OutputStream()); want != got {
		t.Errorf("expected default flow's stream preserved, got %d entries", got)
	}

	if err := state.removeFlowInternal("side"); err != nil {
		t.Fatalf("unexpected error removing flow: %v", err)
	}
	if err := state.removeFlowInternal(defaultFlowName); err == nil {
		t.Errorf("expected removing the default flow to fail")
	}
}
