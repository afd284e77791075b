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
	"errors"
	"fmt"
	"strings"
	"time"
)

// outputStateChange classifies what happened to the output stream since the
// snapshot taken at the last newline.
type outputStateChange int

const (
	noChange outputStateChange = iota
	extendedBeyondNewline
	newlineRemoved
)

// continueInternal is the core Continue loop: step until a newline is
// certain, the content runs out, or the async budget is exhausted.
func (s *Story) continueInternal(budget float64) error {
	if s.profiler != nil {
		s.profiler.preContinue()
	}

	isAsyncTimeLimited := budget > 0
	s.recursiveContinueCount++

	// Doing either:
	//  - full run through non-async (so not active and not limited)
	//  - first step of async (so not active and limited)
	if !s.asyncContinueActive {
		s.asyncContinueActive = isAsyncTimeLimited

		if !s.CanContinue() {
			s.recursiveContinueCount--
			return errContinueNotPossible
		}

		s.state.didSafeExit = false
		s.state.ResetOutput(nil)
	}

	durationStart := time.Now()
	outputStreamEndsInNewline := false
	s.sawLookaheadUnsafeFunctionAfterNewline = false

	for {
		var err error
		outputStreamEndsInNewline, err = s.continueSingleStep()
		if err != nil {
			var storyErr *StoryError
			if errors.As(err, &storyErr) {
				s.addErrorMessage(storyErr.Message)
			} else {
				s.addErrorMessage(err.Error())
			}
			break
		}
		if outputStreamEndsInNewline {
			break
		}
		if s.asyncContinueActive && float64(time.Since(durationStart).Milliseconds()) > budget {
			break
		}
		if !s.CanContinue() {
			break
		}
	}

	var changedVariablesToObserve map[string]Object

	// 4 outcomes:
	//  - got newline (so finished this line of text)
	//  - can't continue (e.g. choices, or end of story)
	//  - ran out of time during evaluation
	//  - error
	if outputStreamEndsInNewline || !s.CanContinue() {
		// Rewind, because we evaluated further than we should have.
		if s.stateSnapshotAtLastNewline != nil {
			s.restoreStateSnapshot()
		}

		if !s.CanContinue() {
			if s.state.CallStack().CanPopThread() {
				s.addErrorMessage("thread available to pop, threads should always be flat by the end of evaluation?")
			}
			if len(s.state.GeneratedChoices()) == 0 && !s.state.didSafeExit && s.temporaryEvaluationContainer == nil {
				if s.state.CallStack().CanPop(PushPopTunnel) {
					s.addErrorMessage("unexpectedly reached end of content. Do you need a '->->' to return from a tunnel?")
				} else if s.state.CallStack().CanPop(PushPopFunction) {
					s.addErrorMessage("unexpectedly reached end of content. Do you need a '~ return'?")
				} else if !s.state.CallStack().canPop() {
					s.addErrorMessage("ran out of content. Do you need a '-> DONE' or '-> END'?")
				} else {
					s.addErrorMessage("unexpectedly reached end of content for unknown reason. Please debug compiler!")
				}
			}
		}

		s.state.didSafeExit = false
		s.sawLookaheadUnsafeFunctionAfterNewline = false

		// With batch observing enabled, each variable notifies at most once
		// per Continue; it's possible for ink to call game to call ink etc,
		// so only the outermost call flushes.
		if s.recursiveContinueCount == 1 {
			changedVariablesToObserve = s.state.variablesState.flushBatchedObservations()
		}

		s.asyncContinueActive = false
		if s.onDidContinue != nil {
			s.onDidContinue()
		}
	}

	s.recursiveContinueCount--

	if s.profiler != nil {
		s.profiler.postContinue()
	}

	// Report any errors that accumulated during evaluation.
	if s.state.HasError() || s.state.HasWarning() {
		if s.onError != nil {
			for _, err := range s.state.CurrentErrors() {
				s.onError(err, ErrorTypeError)
			}
			for _, warning := range s.state.CurrentWarnings() {
				if s.onWarning != nil {
					s.onWarning(warning)
				} else {
					s.onError(warning, ErrorTypeWarning)
				}
			}
			s.ResetErrors()
		} else if s.state.HasError() {
			return storyErrorf("ink had %d error(s) and %d warning(s). The first issue was: %s",
				len(s.state.CurrentErrors()), len(s.state.CurrentWarnings()), s.state.CurrentErrors()[0])
		} else if s.onWarning != nil {
			for _, warning := range s.state.CurrentWarnings() {
				s.onWarning(warning)
			}
			s.state.currentWarnings = nil
		}
	}

	// Send out variable observation events at the last second, since it
	// might trigger new ink to be run.
	if len(changedVariablesToObserve) > 0 {
		s.state.variablesState.NotifyObservers(changedVariablesToObserve)
	}

	return nil
}

// continueSingleStep performs one step and evaluates the end-of-line
// discipline: snapshot at a fresh newline, then keep stepping to confirm
// the line doesn't get extended or glued away.
func (s *Story) continueSingleStep() (bool, error) {
	if s.profiler != nil {
		s.profiler.preStep()
	}

	if err := s.step(); err != nil {
		return false, err
	}

	if s.profiler != nil {
		s.profiler.postStep()
	}

	// Run out of content? Maybe there's a default invisible choice we can
	// follow automatically.
	if !s.CanContinue() && !s.state.CallStack().ElementIsEvaluateFromGame() {
		if err := s.tryFollowDefaultInvisibleChoice(); err != nil {
			return false, err
		}
	}

	if s.profiler != nil {
		s.profiler.preSnapshot()
	}

	// Don't save/rewind during string evaluation, which is e.g. used for
	// choice text.
	if !s.state.InStringEvaluation() {
		// We previously found a newline, but were we just double checking
		// that it wouldn't be removed by glue?
		if s.stateSnapshotAtLastNewline != nil {
			change := calculateNewlineOutputStateChange(
				s.stateSnapshotAtLastNewline.CurrentText(), s.state.CurrentText(),
				len(s.stateSnapshotAtLastNewline.CurrentTags()), len(s.state.CurrentTags()))

			// The last time we saw a newline, it was definitely the end of
			// the line, so rewind to that point.
			if change == extendedBeyondNewline || s.sawLookaheadUnsafeFunctionAfterNewline {
				s.restoreStateSnapshot()
				return true, nil
			}

			// The newline that previously existed is no longer valid, e.g.
			// glue was encountered that caused it to be removed.
			if change == newlineRemoved {
				s.discardSnapshot()
			}
		}

		if s.state.OutputStreamEndsInNewline() {
			if s.CanContinue() {
				// Create a snapshot in case we need to rewind. We're going
				// to keep stepping in case we see glue or some other
				// non-text content such as choices.
				if s.stateSnapshotAtLastNewline == nil {
					s.stateSnapshot()
				}
			} else {
				// We're about to exit since we can't continue; make sure we
				// don't have an old state hanging around.
				s.discardSnapshot()
			}
		}
	}

	if s.profiler != nil {
		s.profiler.postSnapshot()
	}

	return false, nil
}

func calculateNewlineOutputStateChange(prevText, currText string, prevTagCount, currTagCount int) outputStateChange {
	newlineStillExists := len(currText) >= len(prevText) && len(prevText) > 0 &&
		currText[len(prevText)-1] == '\n'

	if prevTagCount == currTagCount && len(prevText) == len(currText) && newlineStillExists {
		return noChange
	}
	if !newlineStillExists {
		return newlineRemoved
	}
	if currTagCount > prevTagCount {
		return extendedBeyondNewline
	}

	// The only way a snapshot's newline stays the end of the line is if the
	// only thing added after it is whitespace.
	for i := len(prevText); i < len(currText); i++ {
		c := currText[i]
		if c != ' ' && c != '\t' {
			return extendedBeyondNewline
		}
	}
	return noChange
}

func (s *Story) stateSnapshot() {
	s.stateSnapshotAtLastNewline = s.state
	s.state = s.state.CopyAndStartPatching()
}

func (s *Story) restoreStateSnapshot() {
	// The patched state temporarily hijacked our variables state and set
	// its own call stack on it, so restore that.
	s.stateSnapshotAtLastNewline.RestoreAfterPatch()

	s.state = s.stateSnapshotAtLastNewline
	s.stateSnapshotAtLastNewline = nil

	s.state.ApplyAnyPatch()
}

func (s *Story) discardSnapshot() {
	s.state.ApplyAnyPatch()
	s.stateSnapshotAtLastNewline = nil
}

// step executes a single piece of content.
func (s *Story) step() error {
	shouldAddToStream := true

	// Get to the first piece of actual content, visiting every container
	// entered on the way.
	pointer := s.state.CurrentPointer()
	if pointer.IsNull() {
		return nil
	}

	containerToEnter, _ := pointer.Resolve().(*Container)
	for containerToEnter != nil {
		s.visitContainer(containerToEnter, true)

		// No content? The most we can do is step past the container.
		if len(containerToEnter.Content) == 0 {
			break
		}

		pointer = StartOf(containerToEnter)
		containerToEnter, _ = pointer.Resolve().(*Container)
	}
	s.state.SetCurrentPointer(pointer)

	if s.profiler != nil {
		s.profiler.step(s.state.CallStack())
	}

	// Is the current content object:
	//  - normal content
	//  - or a logic/flow statement? If so, do it.
	currentContentObj := pointer.Resolve()
	isLogicOrFlowControl, err := s.performLogicAndFlowControl(currentContentObj)
	if err != nil {
		return err
	}

	// Has flow been forced to end by flow control above?
	if s.state.CurrentPointer().IsNull() {
		return nil
	}

	if isLogicOrFlowControl {
		shouldAddToStream = false
	}

	// Choice with condition?
	if choicePoint, ok := currentContentObj.(*ChoicePoint); ok {
		choice, err := s.processChoice(choicePoint)
		if err != nil {
			return err
		}
		if choice != nil {
			s.state.currentFlow.currentChoices = append(s.state.currentFlow.currentChoices, choice)
		}
		currentContentObj = nil
		shouldAddToStream = false
	}

	// If the container has no content, it is the content itself, but we
	// skip over it.
	if _, isContainer := currentContentObj.(*Container); isContainer {
		shouldAddToStream = false
	}

	if shouldAddToStream {
		// If we're pushing a variable pointer onto the evaluation stack,
		// pin it to our current (possibly temporary) context index, on a
		// copy so the story's own data stays untouched.
		if varPointer, ok := currentContentObj.(*VariablePointerValue); ok && varPointer.ContextIndex == -1 {
			contextIdx := s.state.CallStack().ContextForVariableNamed(varPointer.VariableName)
			currentContentObj = NewVariablePointerValue(varPointer.VariableName, contextIdx)
		}

		if s.state.InExpressionEvaluation() {
			s.state.PushEvaluationStack(currentContentObj)
		} else {
			s.state.PushToOutputStream(currentContentObj)
		}
	}

	// Increment the content pointer, following diverts if necessary.
	if err := s.nextContent(); err != nil {
		return err
	}

	// Starting a thread is done after the increment, so that when returning
	// from the thread it returns to the content after this instruction.
	if controlCmd, ok := currentContentObj.(*ControlCommand); ok && controlCmd.Command == CommandStartThread {
		s.state.CallStack().PushThread()
	}

	return nil
}

// visitContainer marks a container as visited, when its flags ask for it.
func (s *Story) visitContainer(container *Container, atStart bool) {
	if !container.CountingAtStartOnly || atStart {
		if container.VisitsShouldBeCounted {
			s.state.IncrementVisitCountForContainer(container)
		}
		if container.TurnIndexShouldBeCounted {
			s.state.RecordTurnIndexVisitToContainer(container)
		}
	}
}

// visitChangedContainersDueToDivert visits the chain of containers newly
// entered by a divert, tracking whether each was entered at its start.
func (s *Story) visitChangedContainersDueToDivert() {
	previousPointer := s.state.PreviousPointer()
	pointer := s.state.CurrentPointer()

	// Unless we're pointing directly at a piece of content, we don't do
	// counting here; the main stepping function will do it when it actually
	// enters the content.
	if pointer.IsNull() || pointer.Index == -1 {
		return
	}

	s.prevContainers = s.prevContainers[:0]
	if !previousPointer.IsNull() {
		prevAncestor, _ := previousPointer.Resolve().(*Container)
		if prevAncestor == nil {
			prevAncestor = previousPointer.Container
		}
		for prevAncestor != nil {
			s.prevContainers = append(s.prevContainers, prevAncestor)
			prevAncestor, _ = ParentOf(prevAncestor).(*Container)
		}
	}

	// If the new object is a container itself, it will be visited
	// automatically at the next actual content step. However, we need to
	// walk up the new ancestry to see if there are more new containers.
	currentChildOfContainer := pointer.Resolve()
	if currentChildOfContainer == nil {
		return
	}

	currentContainerAncestor, _ := ParentOf(currentChildOfContainer).(*Container)
	allChildrenEnteredAtStart := true
	for currentContainerAncestor != nil &&
		(!containsContainer(s.prevContainers, currentContainerAncestor) || currentContainerAncestor.CountingAtStartOnly) {

		// Check whether this ancestor container is being entered at the
		// start by checking whether the child is its first.
		enteringAtStart := len(currentContainerAncestor.Content) > 0 &&
			currentChildOfContainer == currentContainerAncestor.Content[0] &&
			allChildrenEnteredAtStart

		// Don't count a visit to container A as "at start" when entering
		// somewhere in the middle of a container B that happens to sit at
		// index 0 of A; that only counts when diverting directly to the
		// first leaf.
		if !enteringAtStart {
			allChildrenEnteredAtStart = false
		}

		s.visitContainer(currentContainerAncestor, enteringAtStart)

		currentChildOfContainer = currentContainerAncestor
		currentContainerAncestor, _ = ParentOf(currentContainerAncestor).(*Container)
	}
}

func containsContainer(list []*Container, c *Container) bool {
	for _, candidate := range list {
		if candidate == c {
			return true
		}
	}
	return false
}

// nextContent advances past the executed content: a pending divert wins,
// otherwise the pointer increments, popping out of completed containers,
// functions and threads as needed.
func (s *Story) nextContent() error {
	s.state.SetPreviousPointer(s.state.CurrentPointer())

	// Divert step?
	if !s.state.divertedPointer.IsNull() {
		s.state.SetCurrentPointer(s.state.divertedPointer)
		s.state.divertedPointer = NullPointer

		s.visitChangedContainersDueToDivert()

		// Diverted location has valid content?
		if !s.state.CurrentPointer().IsNull() {
			return nil
		}

		// Otherwise the divert was intentionally to the end of a container,
		// e.g. a conditional re-joining; drop down and attempt to
		// increment.
	}

	successfulPointerIncrement := s.incrementContentPointer()

	// Ran out of content? Try to auto-exit from a function, or finish
	// evaluating the content of a thread.
	if !successfulPointerIncrement {
		didPop := false

		if s.state.CallStack().CanPop(PushPopFunction) {
			if err := s.state.PopCallstack(PushPopFunction); err != nil {
				return err
			}

			// This pop was due to dropping off the end of a function that
			// didn't return anything, so give the evaluator something to
			// chomp on if it needs it.
			if s.state.InExpressionEvaluation() {
				s.state.PushEvaluationStack(NewVoid())
			}

			didPop = true
		} else if s.state.CallStack().CanPopThread() {
			if err := s.state.CallStack().PopThread(); err != nil {
				return err
			}
			didPop = true
		} else {
			s.state.TryExitFunctionEvaluationFromGame()
		}

		// Step past the point where we last called out.
		if didPop && !s.state.CurrentPointer().IsNull() {
			return s.nextContent()
		}
	}

	return nil
}

func (s *Story) incrementContentPointer() bool {
	successfulIncrement := true

	pointer := s.state.CallStack().CurrentElement().CurrentPointer
	pointer.Index++

	// Each time we step off the end, fall out to the next container, all
	// the while we're in indexed rather than named content.
	for pointer.Index >= len(pointer.Container.Content) {
		successfulIncrement = false

		nextAncestor, ok := ParentOf(pointer.Container).(*Container)
		if !ok {
			break
		}

		indexInAncestor := nextAncestor.indexOfContent(pointer.Container)
		if indexInAncestor == -1 {
			break
		}

		pointer = Pointer{Container: nextAncestor, Index: indexInAncestor}
		pointer.Index++
		successfulIncrement = true
	}

	if !successfulIncrement {
		pointer = NullPointer
	}

	s.state.CallStack().CurrentElement().CurrentPointer = pointer
	return successfulIncrement
}

// isTruthy evaluates a value as a condition.
func (s *Story) isTruthy(obj Object) (bool, error) {
	if value, ok := obj.(Value); ok {
		return value.IsTruthy()
	}
	return false, nil
}

// performLogicAndFlowControl dispatches the non-content node kinds,
// reporting whether the object was consumed.
func (s *Story) performLogicAndFlowControl(contentObj Object) (bool, error) {
	if contentObj == nil {
		return false, nil
	}

	switch obj := contentObj.(type) {
	case *Divert:
		return true, s.performDivert(obj)

	case *ControlCommand:
		return true, s.performControlCommand(obj)

	case *VariableAssignment:
		assignedVal := s.state.PopEvaluationStack()
		return true, s.state.variablesState.Assign(obj, assignedVal)

	case *VariableReference:
		var foundValue Object
		if obj.PathForCount != nil {
			container := obj.ContainerForCount()
			count := s.state.VisitCountForContainer(container)
			foundValue = NewIntValue(count)
		} else {
			foundValue = s.state.variablesState.GetVariableWithName(obj.Name)
			if foundValue == nil {
				s.warning("variable not found: '" + obj.Name + "'. Using default value of 0 (false). This can happen with temporary variables if the declaration hasn't yet been hit. Globals are always given a default value on load if a value doesn't exist in the save state.")
				foundValue = NewIntValue(0)
			}
		}
		s.state.PushEvaluationStack(foundValue)
		return true, nil

	case *NativeFunctionCall:
		funcParams, err := s.state.PopEvaluationStackMulti(obj.NumberOfParameters())
		if err != nil {
			return true, err
		}
		result, err := obj.Call(funcParams)
		if err != nil {
			return true, err
		}
		s.state.PushEvaluationStack(result)
		return true, nil
	}

	// No control content, must be ordinary content.
	return false, nil
}

func (s *Story) performDivert(currentDivert *Divert) error {
	if currentDivert.IsConditional {
		conditionValue := s.state.PopEvaluationStack()

		truthy, err := s.isTruthy(conditionValue)
		if err != nil {
			return err
		}
		// False conditional? Cancel the divert.
		if !truthy {
			return nil
		}
	}

	if currentDivert.HasVariableTarget() {
		varName := currentDivert.VariableDivertName
		varContents := s.state.variablesState.GetVariableWithName(varName)

		if varContents == nil {
			return storyErrorf("tried to divert using a target from a variable that could not be found (%s)", varName)
		}
		target, ok := varContents.(*DivertTargetValue)
		if !ok {
			errorMessage := fmt.Sprintf("tried to divert to a target from a variable, but the variable (%s) didn't contain a divert target, it ", varName)
			if intContent, isInt := varContents.(*IntValue); isInt && intContent.Value == 0 {
				errorMessage += "was empty/null (the value 0)."
			} else {
				errorMessage += fmt.Sprintf("contained '%s'.", objString(varContents))
			}
			return storyErrorf("%s", errorMessage)
		}
		s.state.divertedPointer = s.PointerAtPath(target.TargetPath)
	} else if currentDivert.IsExternal {
		if err := s.callExternalFunction(currentDivert.TargetPathString(), currentDivert.ExternalArgs); err != nil {
			return err
		}
		return nil
	} else {
		s.state.divertedPointer = currentDivert.TargetPointer()
	}

	if currentDivert.PushesToStack {
		s.state.CallStack().Push(
			currentDivert.StackPushType,
			0,
			len(s.state.OutputStream()))
	}

	if s.state.divertedPointer.IsNull() && !currentDivert.IsExternal {
		return storyErrorf("divert resolution failed: %s", currentDivert)
	}

	return nil
}

func (s *Story) performControlCommand(evalCommand *ControlCommand) error {
	switch evalCommand.Command {
	case CommandEvalStart:
		if s.state.InExpressionEvaluation() {
			return storyErrorf("already in expression evaluation?")
		}
		s.state.SetInExpressionEvaluation(true)

	case CommandEvalEnd:
		if !s.state.InExpressionEvaluation() {
			return storyErrorf("not in expression evaluation mode")
		}
		s.state.SetInExpressionEvaluation(false)

	case CommandEvalOutput:
		// If the expression turned out to be empty, there may not be
		// anything on the stack.
		if s.state.EvaluationStackHeight() > 0 {
			output := s.state.PopEvaluationStack()
			if _, isVoid := output.(*Void); !isVoid {
				// Functions may evaluate to Void, and skip output.
				text := NewStringValue(objString(output))
				s.state.PushToOutputStream(text)
			}
		}

	case CommandNoOp:

	case CommandDuplicate:
		s.state.PushEvaluationStack(s.state.PeekEvaluationStack())

	case CommandPopEvaluatedValue:
		s.state.PopEvaluationStack()

	case CommandPopFunction, CommandPopTunnel:
		popType := PushPopFunction
		if evalCommand.Command == CommandPopTunnel {
			popType = PushPopTunnel
		}

		// A tunnel onwards is allowed to specify an optional override
		// divert to go to immediately after returning: ->-> target
		var overrideTunnelReturnTarget *DivertTargetValue
		if popType == PushPopTunnel {
			popped := s.state.PopEvaluationStack()
			var ok bool
			overrideTunnelReturnTarget, ok = popped.(*DivertTargetValue)
			if !ok {
				if _, isVoid := popped.(*Void); !isVoid {
					return storyErrorf("expected void if ->-> doesn't override target")
				}
			}
		}

		if s.state.TryExitFunctionEvaluationFromGame() {
			break
		}

		if s.state.CallStack().CurrentElement().Type != popType || !s.state.CallStack().canPop() {
			names := map[PushPopType]string{
				PushPopFunction: "function return statement (~ return)",
				PushPopTunnel:   "tunnel onwards statement (->->)",
			}
			expected := names[s.state.CallStack().CurrentElement().Type]
			if !s.state.CallStack().canPop() {
				expected = "end of flow (-> END or choice)"
			}
			return storyErrorf("found %s, when expected %s", names[popType], expected)
		}

		if err := s.state.PopCallstack(popType); err != nil {
			return err
		}

		// Does a tunnel onwards override by diverting to a new ->-> target?
		if overrideTunnelReturnTarget != nil {
			s.state.divertedPointer = s.PointerAtPath(overrideTunnelReturnTarget.TargetPath)
		}

	case CommandBeginString:
		s.state.PushToOutputStream(evalCommand)
		if !s.state.InExpressionEvaluation() {
			return storyErrorf("expected to be in an expression when evaluating a string")
		}
		s.state.SetInExpressionEvaluation(false)

	// Leave it to CurrentText and CurrentTags to sort out the text from
	// the tags; we can't always rely on the existence of EndTag, and we
	// don't want to try to flatten dynamic strings into tags in case
	// there's hidden text.
	case CommandBeginTag:
		s.state.PushToOutputStream(evalCommand)

	case CommandEndTag:
		// EndTag has two modes:
		//  - when in string evaluation (e.g. choice text with a tag)
		//  - normal
		//
		// The only way you could have an EndTag in the middle of string
		// evaluation is when generating text for a choice such as
		// "+ choice # tag". The ink runs twice: once to generate the choice
		// text (string evaluation active, tag extracted to a Tag value) and
		// again if the choice is taken, at which point the tag goes into
		// the output stream proper.
		if s.state.InStringEvaluation() {
			var contentStackForTag []*StringValue
			outputCountConsumed := 0

			for i := len(s.state.OutputStream()) - 1; i >= 0; i-- {
				obj := s.state.OutputStream()[i]
				outputCountConsumed++

				if command, ok := obj.(*ControlCommand); ok {
					if command.Command != CommandBeginTag {
						return storyErrorf("unexpected ControlCommand while extracting tag from choice")
					}
					break
				}
				if strVal, ok := obj.(*StringValue); ok {
					contentStackForTag = append(contentStackForTag, strVal)
				}
			}

			// Consume the content that was produced for this string.
			s.state.PopFromOutputStream(outputCountConsumed)

			var sb strings.Builder
			for i := len(contentStackForTag) - 1; i >= 0; i-- {
				sb.WriteString(contentStackForTag[i].Value)
			}

			choiceTag := NewTag(cleanOutputWhitespace(sb.String()))
			// Pushing to the evaluation stack means it gets picked up when
			// a Choice is generated from the next ChoicePoint.
			s.state.PushEvaluationStack(choiceTag)
		} else {
			// Simply push the EndTag, so that the output stream has a
			// structure of [BeginTag, "the tag content", EndTag].
			s.state.PushToOutputStream(evalCommand)
		}

	case CommandEndString:
		// Since we're iterating backwards through the content, build a
		// stack so the string is built forwards.
		var contentStackForString []Object
		var contentToRetain []Object

		outputCountConsumed := 0
		for i := len(s.state.OutputStream()) - 1; i >= 0; i-- {
			obj := s.state.OutputStream()[i]
			outputCountConsumed++

			if command, ok := obj.(*ControlCommand); ok && command.Command == CommandBeginString {
				break
			}
			if _, ok := obj.(*Tag); ok {
				contentToRetain = append(contentToRetain, obj)
			}
			if _, ok := obj.(*StringValue); ok {
				contentStackForString = append(contentStackForString, obj)
			}
		}

		// Consume the content that was produced for this string.
		s.state.PopFromOutputStream(outputCountConsumed)

		// Rescue the tags that we want to keep on the output stack rather
		// than consume as part of the string we're building: tag objects
		// generated by choices, pushed during string generation.
		for i := len(contentToRetain) - 1; i >= 0; i-- {
			s.state.PushToOutputStream(contentToRetain[i])
		}

		var sb strings.Builder
		for i := len(contentStackForString) - 1; i >= 0; i-- {
			sb.WriteString(objString(contentStackForString[i]))
		}

		// Return to expression evaluation (from content mode).
		s.state.SetInExpressionEvaluation(true)
		s.state.PushEvaluationStack(NewStringValue(sb.String()))

	case CommandChoiceCount:
		choiceCount := len(s.state.GeneratedChoices())
		s.state.PushEvaluationStack(NewIntValue(choiceCount))

	case CommandTurns:
		s.state.PushEvaluationStack(NewIntValue(s.state.currentTurnIndex + 1))

	case CommandTurnsSince, CommandReadCount:
		popped := s.state.PopEvaluationStack()
		target, ok := popped.(*DivertTargetValue)
		if !ok {
			extraNote := ""
			if _, isInt := popped.(*IntValue); isInt {
				extraNote = ". Did you accidentally pass a read count ('knot_name') instead of a target ('-> knot_name')?"
			}
			return storyErrorf("TURNS_SINCE / READ_COUNT expected a divert target, saw %v%s", popped, extraNote)
		}

		container := s.ContentAtPath(target.TargetPath).CorrectObj()
		var eitherCount int
		if foundContainer, isContainer := container.(*Container); isContainer {
			if evalCommand.Command == CommandTurnsSince {
				eitherCount = s.state.TurnsSinceForContainer(foundContainer)
			} else {
				eitherCount = s.state.VisitCountForContainer(foundContainer)
			}
		} else {
			if evalCommand.Command == CommandTurnsSince {
				eitherCount = -1 // turn count, default to never/unknown
			} else {
				eitherCount = 0 // visit count, assume 0 to allow entry
			}
			s.warning(fmt.Sprintf("failed to find container for %s lookup at %s", evalCommand, target.TargetPath))
		}
		s.state.PushEvaluationStack(NewIntValue(eitherCount))

	case CommandRandom:
		maxInt, _ := s.state.PopEvaluationStack().(*IntValue)
		minInt, _ := s.state.PopEvaluationStack().(*IntValue)
		if minInt == nil || maxInt == nil {
			return storyErrorf("invalid value for minimum or maximum in RANDOM(min, max)")
		}

		randomRange := maxInt.Value - minInt.Value + 1
		if randomRange <= 0 {
			return storyErrorf("RANDOM was called with minimum as %d and maximum as %d. The maximum must be larger", minInt.Value, maxInt.Value)
		}

		resultValue := nextRandom(s.state.storySeed, s.state.previousRandom)
		chosenValue := resultValue%randomRange + minInt.Value
		s.state.PushEvaluationStack(NewIntValue(chosenValue))
		s.state.previousRandom = resultValue

	case CommandSeedRandom:
		seed, _ := s.state.PopEvaluationStack().(*IntValue)
		if seed == nil {
			return storyErrorf("invalid value passed to SEED_RANDOM")
		}

		// Story seeding is for predictable replay; SEED_RANDOM returns
		// nothing.
		s.state.storySeed = seed.Value
		s.state.previousRandom = 0
		s.state.PushEvaluationStack(NewVoid())

	case CommandVisitIndex:
		count := s.state.VisitCountForContainer(s.state.CurrentPointer().Container) - 1 // index, not count
		s.state.PushEvaluationStack(NewIntValue(count))

	case CommandSequenceShuffleIndex:
		shuffleIndexValue, err := s.nextSequenceShuffleIndex()
		if err != nil {
			return err
		}
		s.state.PushEvaluationStack(NewIntValue(shuffleIndexValue))

	case CommandStartThread:
		// Handled in the main step function.

	case CommandDone:
		// We may exist in the context of the initial act of creating the
		// thread, or in the context of evaluating its content.
		if s.state.CallStack().CanPopThread() {
			if err := s.state.CallStack().PopThread(); err != nil {
				return err
			}
		} else {
			// In normal flow, allow safe exit without warning.
			s.state.didSafeExit = true
			s.state.SetCurrentPointer(NullPointer)
		}

	case CommandEnd:
		s.state.ForceEnd()

	case CommandListFromInt:
		intVal, _ := s.state.PopEvaluationStack().(*IntValue)
		listNameVal, _ := s.state.PopEvaluationStack().(*StringValue)
		if intVal == nil {
			return storyErrorf("passed non-integer when creating a list element from a numerical value")
		}

		var generatedListValue *ListValue
		if foundListDef, ok := s.listDefinitions.TryListGetDefinition(listNameVal.Value); ok {
			if foundItem, ok := foundListDef.ItemWithValue(intVal.Value); ok {
				generatedListValue = NewListValueWithItem(foundItem, intVal.Value)
			}
		} else {
			return storyErrorf("failed to find LIST called %s", listNameVal.Value)
		}
		if generatedListValue == nil {
			generatedListValue = NewListValue(nil)
		}
		s.state.PushEvaluationStack(generatedListValue)

	case CommandListRange:
		maxValue, _ := s.state.PopEvaluationStack().(Value)
		minValue, _ := s.state.PopEvaluationStack().(Value)
		targetList, _ := s.state.PopEvaluationStack().(*ListValue)
		if targetList == nil || minValue == nil || maxValue == nil {
			return storyErrorf("expected list, minimum and maximum for LIST_RANGE")
		}

		result := targetList.Value.ListWithSubRange(minValue.ValueObject(), maxValue.ValueObject())
		s.state.PushEvaluationStack(NewListValue(result))

	case CommandListRandom:
		listVal, _ := s.state.PopEvaluationStack().(*ListValue)
		if listVal == nil {
			return storyErrorf("expected list for LIST_RANDOM")
		}
		list := listVal.Value

		var newList *List
		if list.Count() == 0 {
			newList = NewList()
		} else {
			// Pick a random element, and make a new single-entry list with
			// the origin of that element alone.
			resultSeed := nextRandom(s.state.storySeed, s.state.previousRandom)
			listItemIndex := resultSeed % list.Count()

			randomEntry := list.orderedItems()[listItemIndex]
			newList = NewList()
			newList.SetInitialOriginNames([]string{randomEntry.item.OriginName})
			newList.Set(randomEntry.item, randomEntry.value)
			newList.resolveOrigins(s.listDefinitions)

			s.state.previousRandom = resultSeed
		}
		s.state.PushEvaluationStack(NewListValue(newList))

	default:
		return storyErrorf("unhandled ControlCommand: %s", evalCommand)
	}

	return nil
}

// processChoice turns a choice point into a generated choice, or nil when
// its condition fails or it was once-only and already seen. The content is
// consumed either way, so it never leaks into the output stream.
func (s *Story) processChoice(choicePoint *ChoicePoint) (*Choice, error) {
	showChoice := true

	if choicePoint.HasCondition {
		conditionValue := s.state.PopEvaluationStack()
		truthy, err := s.isTruthy(conditionValue)
		if err != nil {
			return nil, err
		}
		if !truthy {
			showChoice = false
		}
	}

	startText := ""
	choiceOnlyText := ""
	var tags []string

	if choicePoint.HasChoiceOnlyContent {
		choiceOnlyText = s.popChoiceStringAndTags(&tags)
	}
	if choicePoint.HasStartContent {
		startText = s.popChoiceStringAndTags(&tags)
	}

	if choicePoint.OnceOnly {
		visitCount := s.state.VisitCountForContainer(choicePoint.ChoiceTarget())
		if visitCount > 0 {
			showChoice = false
		}
	}

	// The whole process above is worked through even when the choice is
	// dropped, so that the content is consumed.
	if !showChoice {
		return nil, nil
	}

	choice := &Choice{
		targetPath:         choicePoint.PathOnChoice(),
		SourcePath:         PathOf(choicePoint).String(),
		IsInvisibleDefault: choicePoint.IsInvisibleDefault,
		Tags:               tags,
	}

	// Capture the state of the callstack at the point the choice was
	// generated: we may pop out of a tunnel or a thread before the choice
	// is taken, and the fork keeps the generation context alive.
	choice.threadAtGeneration = s.state.CallStack().ForkThread()

	choice.Text = strings.Trim(startText+choiceOnlyText, " \t")

	return choice, nil
}

// popChoiceStringAndTags pops one string off the evaluation stack, plus any
// Tag values sitting beneath it.
func (s *Story) popChoiceStringAndTags(tags *[]string) string {
	choiceOnlyStrVal, _ := s.state.PopEvaluationStack().(*StringValue)
	if choiceOnlyStrVal == nil {
		return ""
	}

	for s.state.EvaluationStackHeight() > 0 {
		tag, isTag := s.state.PeekEvaluationStack().(*Tag)
		if !isTag {
			break
		}
		s.state.PopEvaluationStack()
		*tags = append([]string{tag.Text}, *tags...) // popped in reverse order
	}

	return choiceOnlyStrVal.Value
}

// callExternalFunction invokes a bound host function, or falls back to a
// same-named ink function when allowed.
func (s *Story) callExternalFunction(funcName string, numberOfArguments int) error {
	funcDef, foundExternal := s.externals[funcName]

	if foundExternal && !funcDef.LookaheadSafe() && s.state.InStringEvaluation() {
		return storyErrorf("external function %s could not be called because 1) it wasn't marked as lookaheadSafe when BindExternalFunction was called and 2) the story is in the middle of string generation, either because choice text is being generated, or because you have ink like \"hello {%s()}\". You can work around the latter by calling the function earlier using a temporary variable", funcName, funcName)
	}

	// Should this function break glue? Abort the run if we've already seen
	// a newline; the snapshot will be restored and the function re-invoked
	// after the line is committed, so its side effects happen exactly once.
	if foundExternal && !funcDef.LookaheadSafe() && s.stateSnapshotAtLastNewline != nil {
		s.sawLookaheadUnsafeFunctionAfterNewline = true
		return nil
	}

	if !foundExternal {
		if !s.allowExternalFunctionFallbacks {
			return storyErrorf("trying to call EXTERNAL function '%s' which has not been bound (and ink fallbacks disabled)", funcName)
		}
		fallbackFunctionContainer := s.KnotContainerWithName(funcName)
		if fallbackFunctionContainer == nil {
			return storyErrorf("trying to call EXTERNAL function '%s' which has not been bound, and fallback ink function could not be found", funcName)
		}

		// Divert direct into the fallback function and we're done.
		s.state.CallStack().Push(PushPopFunction, 0, len(s.state.OutputStream()))
		s.state.divertedPointer = StartOf(fallbackFunctionContainer)
		return nil
	}

	// Pop arguments, reversing them back into the order they were pushed.
	arguments := make([]any, 0, numberOfArguments)
	for i := 0; i < numberOfArguments; i++ {
		poppedObj, ok := s.state.PopEvaluationStack().(Value)
		if !ok {
			return storyErrorf("external function '%s' received a non-value argument", funcName)
		}
		arguments = append(arguments, poppedObj.ValueObject())
	}
	for i, j := 0, len(arguments)-1; i < j; i, j = i+1, j-1 {
		arguments[i], arguments[j] = arguments[j], arguments[i]
	}

	funcResult, err := funcDef.Call(arguments)
	if err != nil {
		return err
	}

	var returnObj Object
	if funcResult != nil {
		returnObj = CreateValue(normalizeHostValue(funcResult))
		if returnObj == nil {
			return storyErrorf("could not create ink value from returned object of type %T", funcResult)
		}
	} else {
		returnObj = NewVoid()
	}

	s.state.PushEvaluationStack(returnObj)
	return nil
}

// tryFollowDefaultInvisibleChoice follows the first invisible default choice
// when every current choice is an invisible default, i.e. the flow has
// stopped with nothing else on offer.
func (s *Story) tryFollowDefaultInvisibleChoice() error {
	allChoices := s.state.CurrentChoices()

	var invisibleChoices []*Choice
	for _, c := range allChoices {
		if c.IsInvisibleDefault {
			invisibleChoices = append(invisibleChoices, c)
		}
	}
	if len(invisibleChoices) == 0 || len(allChoices) > len(invisibleChoices) {
		return nil
	}

	choice := invisibleChoices[0]

	// The invisible choice may have been generated on a different thread,
	// in which case we need to restore it before continuing.
	s.state.CallStack().SetCurrentThread(choice.threadAtGeneration)

	// If there's a chance this state will be rolled back to before the
	// invisible choice, the choice thread must be left intact and not
	// re-entered in an old state.
	if s.stateSnapshotAtLastNewline != nil {
		s.state.CallStack().SetCurrentThread(s.state.CallStack().ForkThread())
	}

	s.ChoosePath(choice.TargetPath(), false)
	return nil
}

// nextSequenceShuffleIndex computes the deterministic index for one shuffle
// iteration, keyed by sequence location, loop count and story seed.
func (s *Story) nextSequenceShuffleIndex() (int, error) {
	numElementsIntVal, _ := s.state.PopEvaluationStack().(*IntValue)
	if numElementsIntVal == nil {
		return 0, storyErrorf("expected number of elements in sequence for shuffle index")
	}

	seqContainer := s.state.CurrentPointer().Container

	seqCountVal, _ := s.state.PopEvaluationStack().(*IntValue)
	if seqCountVal == nil {
		return 0, storyErrorf("expected sequence count value for shuffle index")
	}

	return shuffleIndex(PathOf(seqContainer).String(), numElementsIntVal.Value, seqCountVal.Value, s.state.storySeed), nil
}
