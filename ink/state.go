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
	"strings"
	"time"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"pgregory.net/rand"
)

const (
	// InkSaveStateVersion is the version of the save-state format written by
	// this engine.
	InkSaveStateVersion = 10
	// MinCompatibleLoadVersion is the oldest save-state format accepted.
	MinCompatibleLoadVersion = 8

	defaultFlowName = "DEFAULT_FLOW"
)

// StoryState is all the mutable runtime data of one story: flows, the
// evaluation stack, variables, counters and the random state. It can be
// copied for end-of-line snapshots and serialized for saves.
type StoryState struct {
	story *Story

	currentFlow *Flow
	namedFlows  map[string]*Flow

	evaluationStack []Object
	variablesState  *VariablesState
	divertedPointer Pointer

	visitCounts      map[string]int
	turnIndices      map[string]int
	currentTurnIndex int

	storySeed      int
	previousRandom int

	currentErrors   []string
	currentWarnings []string

	didSafeExit bool

	patch *StatePatch

	// Cached views over the output stream.
	currentText           string
	outputStreamTextDirty bool
	currentTags           []string
	outputStreamTagsDirty bool
}

func newStoryState(story *Story) *StoryState {
	s := &StoryState{
		story:            story,
		currentFlow:      newFlow(defaultFlowName, story),
		visitCounts:      map[string]int{},
		turnIndices:      map[string]int{},
		currentTurnIndex: -1,
	}
	s.outputStreamDirty()
	s.variablesState = newVariablesState(s.CallStack(), story.listDefinitions)

	// Seed the shuffle and RANDOM state from the clock; all later draws are
	// deterministic from storySeed and previousRandom alone.
	s.storySeed = int(rand.New(uint64(time.Now().UnixNano())).Uint32() % 100)
	s.previousRandom = 0

	s.GoToStart()
	return s
}

func (s *StoryState) CallStack() *CallStack {
	return s.currentFlow.callStack
}

func (s *StoryState) VariablesState() *VariablesState {
	return s.variablesState
}

func (s *StoryState) OutputStream() []Object {
	return s.currentFlow.outputStream
}

// GeneratedChoices is the raw set of choices generated on the current flow,
// including invisible defaults.
func (s *StoryState) GeneratedChoices() []*Choice {
	return s.currentFlow.currentChoices
}

// CurrentChoices is empty while text can still be generated, since choices
// always come at the end of a line.
func (s *StoryState) CurrentChoices() []*Choice {
	if s.CanContinue() {
		return nil
	}
	return s.currentFlow.currentChoices
}

func (s *StoryState) CurrentFlowName() string {
	return s.currentFlow.name
}

func (s *StoryState) CurrentFlowIsDefaultFlow() bool {
	return s.currentFlow.name == defaultFlowName
}

// AliveFlowNames lists the named flows other than the default.
func (s *StoryState) AliveFlowNames() []string {
	var names []string
	for name := range s.namedFlows {
		if name != defaultFlowName {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

func (s *StoryState) CurrentPointer() Pointer {
	return s.CallStack().CurrentElement().CurrentPointer
}

func (s *StoryState) SetCurrentPointer(value Pointer) {
	s.CallStack().CurrentElement().CurrentPointer = value
}

func (s *StoryState) PreviousPointer() Pointer {
	return s.CallStack().CurrentThread().previousPointer
}

func (s *StoryState) SetPreviousPointer(value Pointer) {
	s.CallStack().CurrentThread().previousPointer = value
}

func (s *StoryState) CanContinue() bool {
	return !s.CurrentPointer().IsNull() && !s.HasError()
}

func (s *StoryState) HasError() bool {
	return len(s.currentErrors) > 0
}

func (s *StoryState) HasWarning() bool {
	return len(s.currentWarnings) > 0
}

func (s *StoryState) CurrentErrors() []string {
	return s.currentErrors
}

func (s *StoryState) CurrentWarnings() []string {
	return s.currentWarnings
}

func (s *StoryState) InExpressionEvaluation() bool {
	return s.CallStack().CurrentElement().InExpressionEvaluation
}

func (s *StoryState) SetInExpressionEvaluation(value bool) {
	s.CallStack().CurrentElement().InExpressionEvaluation = value
}

func (s *StoryState) DidSafeExit() bool {
	return s.didSafeExit
}

func (s *StoryState) StorySeed() int {
	return s.storySeed
}

func (s *StoryState) GoToStart() {
	s.CallStack().CurrentElement().CurrentPointer = StartOf(s.story.RootContentContainer())
}

// ForceEnd ends the flow immediately: choices are discarded, the call stack
// reset and the pointer cleared.
func (s *StoryState) ForceEnd() {
	s.currentFlow.currentChoices = nil
	s.CallStack().Reset()
	s.SetCurrentPointer(NullPointer)
	s.SetPreviousPointer(NullPointer)
	s.didSafeExit = true
}

func (s *StoryState) addError(message string) {
	s.currentErrors = append(s.currentErrors, message)
}

func (s *StoryState) addWarning(message string) {
	s.currentWarnings = append(s.currentWarnings, message)
}

func (s *StoryState) ResetErrors() {
	s.currentErrors = nil
	s.currentWarnings = nil
}

// ResetOutput clears the output stream, optionally replacing it.
func (s *StoryState) ResetOutput(objs []Object) {
	s.currentFlow.outputStream = nil
	s.currentFlow.outputStream = append(s.currentFlow.outputStream, objs...)
	s.outputStreamDirty()
}

func (s *StoryState) outputStreamDirty() {
	s.outputStreamTextDirty = true
	s.outputStreamTagsDirty = true
}

// Flows

func (s *StoryState) switchFlowInternal(flowName string) {
	if s.namedFlows == nil {
		s.namedFlows = map[string]*Flow{defaultFlowName: s.currentFlow}
	}
	if flowName == s.currentFlow.name {
		return
	}

	flow, ok := s.namedFlows[flowName]
	if !ok {
		flow = newFlow(flowName, s.story)
		s.namedFlows[flowName] = flow
	}

	s.currentFlow = flow
	s.variablesState.callStack = s.currentFlow.callStack
	s.outputStreamDirty()
}

func (s *StoryState) removeFlowInternal(flowName string) error {
	if flowName == defaultFlowName {
		return errCannotDestroyDefault
	}
	if s.currentFlow.name == flowName {
		s.switchToDefaultFlowInternal()
	}
	delete(s.namedFlows, flowName)
	return nil
}

func (s *StoryState) switchToDefaultFlowInternal() {
	if s.namedFlows != nil {
		s.switchFlowInternal(defaultFlowName)
	}
}

// Output stream

// PushToOutputStream appends content, first splitting the leading and
// trailing newline runs of a string value into entries of their own; a
// newline inside the text stays part of its string.
func (s *StoryState) PushToOutputStream(obj Object) {
	if text, ok := obj.(*StringValue); ok {
		if listText := trySplittingHeadTailWhitespace(text); listText != nil {
			for _, textObj := range listText {
				s.pushToOutputStreamIndividual(textObj)
			}
			s.outputStreamDirty()
			return
		}
	}
	s.pushToOutputStreamIndividual(obj)
	s.outputStreamDirty()
}

// PopFromOutputStream removes the last count entries.
func (s *StoryState) PopFromOutputStream(count int) {
	s.currentFlow.outputStream = s.currentFlow.outputStream[:len(s.currentFlow.outputStream)-count]
	s.outputStreamDirty()
}

// trySplittingHeadTailWhitespace splits leading and trailing newline runs of
// a string into separate entries, so newline detection on the stream stays
// cheap. Returns nil when no split is needed.
func trySplittingHeadTailWhitespace(single *StringValue) []*StringValue {
	str := single.Value

	headFirstNewlineIdx, headLastNewlineIdx := -1, -1
	for i := 0; i < len(str); i++ {
		c := str[i]
		if c == '\n' {
			if headFirstNewlineIdx == -1 {
				headFirstNewlineIdx = i
			}
			headLastNewlineIdx = i
		} else if c == ' ' || c == '\t' {
			continue
		} else {
			break
		}
	}

	tailLastNewlineIdx, tailFirstNewlineIdx := -1, -1
	for i := len(str) - 1; i >= 0; i-- {
		c := str[i]
		if c == '\n' {
			if tailLastNewlineIdx == -1 {
				tailLastNewlineIdx = i
			}
			tailFirstNewlineIdx = i
		} else if c == ' ' || c == '\t' {
			continue
		} else {
			break
		}
	}

	if headFirstNewlineIdx == -1 && tailLastNewlineIdx == -1 {
		return nil
	}

	var listTexts []*StringValue
	innerStrStart, innerStrEnd := 0, len(str)

	if headFirstNewlineIdx != -1 {
		if headFirstNewlineIdx > 0 {
			listTexts = append(listTexts, NewStringValue(str[:headFirstNewlineIdx]))
		}
		listTexts = append(listTexts, NewStringValue("\n"))
		innerStrStart = headLastNewlineIdx + 1
	}

	if tailLastNewlineIdx != -1 {
		innerStrEnd = tailFirstNewlineIdx
	}

	if innerStrEnd > innerStrStart {
		listTexts = append(listTexts, NewStringValue(str[innerStrStart:innerStrEnd]))
	}

	if tailLastNewlineIdx != -1 && tailFirstNewlineIdx > headLastNewlineIdx {
		listTexts = append(listTexts, NewStringValue("\n"))
		if tailLastNewlineIdx < len(str)-1 {
			listTexts = append(listTexts, NewStringValue(str[tailLastNewlineIdx+1:]))
		}
	}

	return listTexts
}

func (s *StoryState) pushToOutputStreamIndividual(obj Object) {
	_, isGlue := obj.(*Glue)
	text, isText := obj.(*StringValue)

	includeInOutput := true

	if isGlue {
		// New glue, so chomp away any whitespace from the end of the stream.
		s.trimNewlinesFromOutputStream()
	} else if isText {
		// Whitespace is trimmed at the start of a function call and after
		// glue; find how far back that trimming reaches.
		functionTrimIndex := -1
		currEl := s.CallStack().CurrentElement()
		if currEl.Type == PushPopFunction {
			functionTrimIndex = currEl.FunctionStartInOutputStream
		}

		glueTrimIndex := -1
		for i := len(s.OutputStream()) - 1; i >= 0; i-- {
			o := s.OutputStream()[i]
			if _, ok := o.(*Glue); ok {
				glueTrimIndex = i
				break
			} else if c, ok := o.(*ControlCommand); ok && c.Command == CommandBeginString {
				// A function call that has already begun a string is not
				// subject to function-start trimming any more.
				if i >= functionTrimIndex {
					functionTrimIndex = -1
				}
				break
			} else {
				break
			}
		}

		trimIndex := -1
		switch {
		case glueTrimIndex != -1 && functionTrimIndex != -1:
			trimIndex = min(functionTrimIndex, glueTrimIndex)
		case glueTrimIndex != -1:
			trimIndex = glueTrimIndex
		default:
			trimIndex = functionTrimIndex
		}

		if trimIndex != -1 {
			if text.IsNewline() {
				includeInOutput = false
			} else if text.IsNonWhitespace() {
				if glueTrimIndex > -1 {
					s.removeExistingGlue()
				}
				// Non-whitespace crossed the function boundary, so cancel
				// start trimming on every function frame that marked one.
				if functionTrimIndex > -1 {
					elements := s.CallStack().Elements()
					for i := len(elements) - 1; i >= 0; i-- {
						if elements[i].Type == PushPopFunction {
							elements[i].FunctionStartInOutputStream = -1
						} else {
							break
						}
					}
				}
			}
		} else if text.IsNewline() {
			// De-duplicate newlines and never lead with one.
			if s.OutputStreamEndsInNewline() || !s.OutputStreamContainsContent() {
				includeInOutput = false
			}
		}
	}

	if includeInOutput {
		s.currentFlow.outputStream = append(s.currentFlow.outputStream, obj)
		s.outputStreamDirty()
	}
}

// trimNewlinesFromOutputStream removes the trailing run of whitespace string
// entries that follows the last newline.
func (s *StoryState) trimNewlinesFromOutputStream() {
	removeWhitespaceFrom := -1

	i := len(s.OutputStream()) - 1
	for i >= 0 {
		obj := s.OutputStream()[i]
		_, isCmd := obj.(*ControlCommand)
		txt, isTxt := obj.(*StringValue)
		if isCmd || (isTxt && txt.IsNonWhitespace()) {
			break
		} else if isTxt && txt.IsNewline() {
			removeWhitespaceFrom = i
		}
		i--
	}

	if removeWhitespaceFrom >= 0 {
		i = removeWhitespaceFrom
		for i < len(s.OutputStream()) {
			if _, isTxt := s.OutputStream()[i].(*StringValue); isTxt {
				s.currentFlow.outputStream = slices.Delete(s.currentFlow.outputStream, i, i+1)
			} else {
				i++
			}
		}
	}

	s.outputStreamDirty()
}

// TrimWhitespaceFromFunctionEnd trims trailing whitespace back to the
// function's start marker when a function returns.
func (s *StoryState) TrimWhitespaceFromFunctionEnd() {
	functionStartPoint := s.CallStack().CurrentElement().FunctionStartInOutputStream
	if functionStartPoint == -1 {
		functionStartPoint = 0
	}

	for i := len(s.OutputStream()) - 1; i >= functionStartPoint; i-- {
		txt, isTxt := s.OutputStream()[i].(*StringValue)
		if !isTxt {
			continue
		}
		if txt.IsNewline() || txt.IsInlineWhitespace() {
			s.currentFlow.outputStream = slices.Delete(s.currentFlow.outputStream, i, i+1)
			s.outputStreamDirty()
		} else {
			break
		}
	}
}

func (s *StoryState) removeExistingGlue() {
	for i := len(s.OutputStream()) - 1; i >= 0; i-- {
		obj := s.OutputStream()[i]
		if _, isGlue := obj.(*Glue); isGlue {
			s.currentFlow.outputStream = slices.Delete(s.currentFlow.outputStream, i, i+1)
		} else if _, isCmd := obj.(*ControlCommand); isCmd {
			break
		}
	}
	s.outputStreamDirty()
}

func (s *StoryState) OutputStreamEndsInNewline() bool {
	for i := len(s.OutputStream()) - 1; i >= 0; i-- {
		obj := s.OutputStream()[i]
		if _, isCmd := obj.(*ControlCommand); isCmd {
			break
		}
		if text, isTxt := obj.(*StringValue); isTxt {
			if text.IsNewline() {
				return true
			} else if text.IsNonWhitespace() {
				break
			}
		}
	}
	return false
}

func (s *StoryState) OutputStreamContainsContent() bool {
	for _, content := range s.OutputStream() {
		if _, ok := content.(*StringValue); ok {
			return true
		}
	}
	return false
}

// InStringEvaluation reports whether a BeginString region is open at the end
// of the stream.
func (s *StoryState) InStringEvaluation() bool {
	for i := len(s.OutputStream()) - 1; i >= 0; i-- {
		if cmd, ok := s.OutputStream()[i].(*ControlCommand); ok && cmd.Command == CommandBeginString {
			return true
		}
	}
	return false
}

// CurrentText concatenates the string entries outside tag regions and
// normalizes whitespace.
func (s *StoryState) CurrentText() string {
	if s.outputStreamTextDirty {
		var sb strings.Builder
		inTag := false
		for _, outputObj := range s.OutputStream() {
			if textContent, ok := outputObj.(*StringValue); ok && !inTag {
				sb.WriteString(textContent.Value)
			} else if cmd, ok := outputObj.(*ControlCommand); ok {
				if cmd.Command == CommandBeginTag {
					inTag = true
				} else if cmd.Command == CommandEndTag {
					inTag = false
				}
			}
		}
		s.currentText = cleanOutputWhitespace(sb.String())
		s.outputStreamTextDirty = false
	}
	return s.currentText
}

// cleanOutputWhitespace collapses inline whitespace runs to a single space
// (dropped entirely at line starts, before a newline and at the end of the
// text) and preserves newlines.
func cleanOutputWhitespace(str string) string {
	var sb strings.Builder
	sb.Grow(len(str))

	currentWhitespaceStart := -1
	startOfLine := 0

	for i := 0; i < len(str); i++ {
		c := str[i]
		isInlineWhitespace := c == ' ' || c == '\t'

		if isInlineWhitespace && currentWhitespaceStart == -1 {
			currentWhitespaceStart = i
		}
		if !isInlineWhitespace {
			if c != '\n' && currentWhitespaceStart > 0 && currentWhitespaceStart != startOfLine {
				sb.WriteByte(' ')
			}
			currentWhitespaceStart = -1
		}
		if c == '\n' {
			startOfLine = i + 1
		}
		if !isInlineWhitespace {
			sb.WriteByte(c)
		}
	}

	return sb.String()
}

// CurrentTags collects the strings between BeginTag/EndTag pairs, plus any
// legacy Tag objects in the stream.
func (s *StoryState) CurrentTags() []string {
	if s.outputStreamTagsDirty {
		s.currentTags = nil
		inTag := false
		var sb strings.Builder

		flushTag := func() {
			if sb.Len() > 0 {
				s.currentTags = append(s.currentTags, cleanOutputWhitespace(sb.String()))
				sb.Reset()
			}
		}

		for _, outputObj := range s.OutputStream() {
			if cmd, ok := outputObj.(*ControlCommand); ok {
				if cmd.Command == CommandBeginTag {
					if inTag {
						flushTag()
					}
					inTag = true
				} else if cmd.Command == CommandEndTag {
					flushTag()
					inTag = false
				}
			} else if inTag {
				if strVal, ok := outputObj.(*StringValue); ok {
					sb.WriteString(strVal.Value)
				}
			} else if tag, ok := outputObj.(*Tag); ok && len(tag.Text) > 0 {
				s.currentTags = append(s.currentTags, tag.Text) // tag text is already cleaned
			}
		}
		flushTag()

		s.outputStreamTagsDirty = false
	}
	return s.currentTags
}

// Evaluation stack

// PushEvaluationStack pushes a value; lists passing through have their
// origin definitions resolved here.
func (s *StoryState) PushEvaluationStack(obj Object) {
	if listValue, ok := obj.(*ListValue); ok {
		listValue.Value.resolveOrigins(s.story.listDefinitions)
	}
	s.evaluationStack = append(s.evaluationStack, obj)
}

func (s *StoryState) PopEvaluationStack() Object {
	if len(s.evaluationStack) == 0 {
		return nil
	}
	obj := s.evaluationStack[len(s.evaluationStack)-1]
	s.evaluationStack = s.evaluationStack[:len(s.evaluationStack)-1]
	return obj
}

func (s *StoryState) PeekEvaluationStack() Object {
	if len(s.evaluationStack) == 0 {
		return nil
	}
	return s.evaluationStack[len(s.evaluationStack)-1]
}

// PopEvaluationStackMulti pops count values, returned in original push
// order.
func (s *StoryState) PopEvaluationStackMulti(count int) ([]Object, error) {
	if count > len(s.evaluationStack) {
		return nil, storyErrorf("trying to pop too many objects")
	}
	popped := append([]Object(nil), s.evaluationStack[len(s.evaluationStack)-count:]...)
	s.evaluationStack = s.evaluationStack[:len(s.evaluationStack)-count]
	return popped, nil
}

func (s *StoryState) EvaluationStackHeight() int {
	return len(s.evaluationStack)
}

// Visit counts and turn indices

func (s *StoryState) VisitCountForContainer(container *Container) int {
	if !container.VisitsShouldBeCounted {
		s.story.addErrorMessage("read count for target (" + container.Name + " - on " + PathOf(container).String() + ") unknown.")
		return 0
	}
	if s.patch != nil {
		if count, ok := s.patch.TryGetVisitCount(container); ok {
			return count
		}
	}
	return s.visitCounts[PathOf(container).String()]
}

func (s *StoryState) IncrementVisitCountForContainer(container *Container) {
	if s.patch != nil {
		currCount := s.VisitCountForContainer(container)
		s.patch.SetVisitCount(container, currCount+1)
		return
	}
	s.visitCounts[PathOf(container).String()]++
}

func (s *StoryState) RecordTurnIndexVisitToContainer(container *Container) {
	if s.patch != nil {
		s.patch.SetTurnIndex(container, s.currentTurnIndex)
		return
	}
	s.turnIndices[PathOf(container).String()] = s.currentTurnIndex
}

// TurnsSinceForContainer reports turns since the container was last visited,
// or -1 when it never was.
func (s *StoryState) TurnsSinceForContainer(container *Container) int {
	if !container.TurnIndexShouldBeCounted {
		s.story.addErrorMessage("TURNS_SINCE() for target (" + container.Name + " - on " + PathOf(container).String() + ") unknown.")
	}
	if s.patch != nil {
		if index, ok := s.patch.TryGetTurnIndex(container); ok {
			return s.currentTurnIndex - index
		}
	}
	if index, ok := s.turnIndices[PathOf(container).String()]; ok {
		return s.currentTurnIndex - index
	}
	return -1
}

func (s *StoryState) CurrentTurnIndex() int {
	return s.currentTurnIndex
}

// Choice selection

// SetChosenPath clears the generated choices and diverts to the chosen
// content.
func (s *StoryState) SetChosenPath(path *Path, incrementingTurnIndex bool) {
	// Changing direction, so the current set of choices is no longer valid.
	s.currentFlow.currentChoices = nil

	newPointer := s.story.PointerAtPath(path)
	if !newPointer.IsNull() && newPointer.Index == -1 {
		newPointer.Index = 0
	}
	s.SetCurrentPointer(newPointer)

	if incrementingTurnIndex {
		s.currentTurnIndex++
	}
}

// Game-initiated function evaluation

func (s *StoryState) StartFunctionEvaluationFromGame(funcContainer *Container, arguments []any) error {
	s.CallStack().Push(PushPopFunctionEvaluationFromGame, len(s.evaluationStack), 0)
	s.CallStack().CurrentElement().CurrentPointer = StartOf(funcContainer)
	return s.PassArgumentsToEvaluationStack(arguments)
}

// PassArgumentsToEvaluationStack pushes host-provided argument values,
// checking they are of kinds ink can represent.
func (s *StoryState) PassArgumentsToEvaluationStack(arguments []any) error {
	for _, arg := range arguments {
		switch arg.(type) {
		case bool, int, int32, int64, float32, float64, string, *List, *Path:
		default:
			return storyErrorf("ink arguments when calling EvaluateFunction / ChoosePathString must be bool, int, float, string, list or divert-target path; argument was %v", arg)
		}
		s.PushEvaluationStack(CreateValue(arg))
	}
	return nil
}

// TryExitFunctionEvaluationFromGame ends a game-initiated evaluation when
// its frame is on top.
func (s *StoryState) TryExitFunctionEvaluationFromGame() bool {
	if s.CallStack().CurrentElement().Type == PushPopFunctionEvaluationFromGame {
		s.SetCurrentPointer(NullPointer)
		s.didSafeExit = true
		return true
	}
	return false
}

// CompleteFunctionEvaluationFromGame pops the evaluation frame and returns
// the produced value, if any.
func (s *StoryState) CompleteFunctionEvaluationFromGame() (any, error) {
	if s.CallStack().CurrentElement().Type != PushPopFunctionEvaluationFromGame {
		return nil, storyErrorf("expected external function evaluation to be complete. Stack trace: %s", s.CallStack().CallStackTrace())
	}

	originalEvaluationStackHeight := s.CallStack().CurrentElement().EvaluationStackHeightWhenPushed

	// There may be more than one value pushed when the ink function created
	// temporaries; the first popped (last pushed) wins.
	var returnedObj Object
	for len(s.evaluationStack) > originalEvaluationStackHeight {
		poppedObj := s.PopEvaluationStack()
		if returnedObj == nil {
			returnedObj = poppedObj
		}
	}

	if err := s.PopCallstack(PushPopFunctionEvaluationFromGame); err != nil {
		return nil, err
	}

	if returnedObj != nil {
		if _, isVoid := returnedObj.(*Void); isVoid {
			return nil, nil
		}
		returnVal, ok := returnedObj.(Value)
		if !ok {
			return nil, nil
		}
		// Divert targets are passed back to the host as path strings.
		if returnVal.ValueType() == ValueTypeDivertTarget {
			return returnVal.ValueObject().(*Path).String(), nil
		}
		return returnVal.ValueObject(), nil
	}
	return nil, nil
}

// PopCallstack pops the top frame, trimming function-end whitespace first
// for function frames.
func (s *StoryState) PopCallstack(popType PushPopType) error {
	if s.CallStack().CurrentElement().Type == PushPopFunction {
		s.TrimWhitespaceFromFunctionEnd()
	}
	return s.CallStack().Pop(popType)
}

func (s *StoryState) popCallstackAny() error {
	if s.CallStack().CurrentElement().Type == PushPopFunction {
		s.TrimWhitespaceFromFunctionEnd()
	}
	return s.CallStack().popCurrent()
}

// Snapshots

// CopyAndStartPatching makes the cheap structural copy taken at each
// potential end of line. The copy owns fresh flow structures but shares the
// variables state, which is redirected through a fresh patch.
func (s *StoryState) CopyAndStartPatching() *StoryState {
	copied := &StoryState{
		story:            s.story,
		currentTurnIndex: s.currentTurnIndex,
		storySeed:        s.storySeed,
		previousRandom:   s.previousRandom,
		didSafeExit:      s.didSafeExit,
		divertedPointer:  s.divertedPointer,
	}

	copied.patch = newStatePatch(s.patch)

	copied.currentFlow = &Flow{
		name:      s.currentFlow.name,
		callStack: NewCallStackCopy(s.currentFlow.callStack),
	}
	copied.currentFlow.outputStream = append(copied.currentFlow.outputStream, s.currentFlow.outputStream...)
	copied.currentFlow.currentChoices = append(copied.currentFlow.currentChoices, s.currentFlow.currentChoices...)
	copied.outputStreamDirty()

	// The copy gets its own flows map, with the current flow replaced by the
	// copy above.
	if s.namedFlows != nil {
		copied.namedFlows = map[string]*Flow{}
		maps.Copy(copied.namedFlows, s.namedFlows)
		copied.namedFlows[s.currentFlow.name] = copied.currentFlow
	}

	copied.currentErrors = append(copied.currentErrors, s.currentErrors...)
	copied.currentWarnings = append(copied.currentWarnings, s.currentWarnings...)

	// The copy hijacks the variables state: reads and writes flow through
	// the copy's call stack and patch until the snapshot is resolved.
	copied.variablesState = s.variablesState
	copied.variablesState.callStack = copied.CallStack()
	copied.variablesState.patch = copied.patch

	copied.evaluationStack = append(copied.evaluationStack, s.evaluationStack...)

	// Visit counts and turn indices are read-only while patching, so the
	// maps are shared.
	copied.visitCounts = s.visitCounts
	copied.turnIndices = s.turnIndices

	return copied
}

// RestoreAfterPatch re-points the shared variables state at this state's own
// call stack and patch after a snapshot restore.
func (s *StoryState) RestoreAfterPatch() {
	s.variablesState.callStack = s.CallStack()
	s.variablesState.patch = s.patch
}

// ApplyAnyPatch commits a pending patch into the real state.
func (s *StoryState) ApplyAnyPatch() {
	if s.patch == nil {
		return
	}

	s.variablesState.ApplyPatch()

	for container, count := range s.patch.visitCounts {
		s.visitCounts[PathOf(container).String()] = count
	}
	for container, index := range s.patch.turnIndices {
		s.turnIndices[PathOf(container).String()] = index
	}

	s.patch = nil
}

// Save state

// WriteJSON builds the save-state tree.
func (s *StoryState) WriteJSON() map[string]any {
	flows := map[string]any{}
	if s.namedFlows != nil {
		for name, flow := range s.namedFlows {
			flows[name] = flow.writeJSON()
		}
	} else {
		flows[s.currentFlow.name] = s.currentFlow.writeJSON()
	}

	result := map[string]any{
		"flows":           flows,
		"currentFlowName": s.currentFlow.name,
		"variablesState":  s.variablesState.writeJSON(),
		"evalStack":       writeListRuntimeObjs(s.evaluationStack),
		"visitCounts":     intDictionaryToJSON(s.visitCounts),
		"turnIndices":     intDictionaryToJSON(s.turnIndices),
		"turnIdx":         s.currentTurnIndex,
		"storySeed":       s.storySeed,
		"previousRandom":  s.previousRandom,
		"inkSaveVersion":  InkSaveStateVersion,
		"inkFormatVersion": InkVersionCurrent,
	}
	if !s.divertedPointer.IsNull() {
		result["currentDivertTarget"] = s.divertedPointer.Path().String()
	}
	return result
}

// LoadJSONObj restores the state from a save-state tree.
func (s *StoryState) LoadJSONObj(jObject map[string]any) error {
	jSaveVersion, ok := jObject["inkSaveVersion"]
	if !ok {
		return errSaveVersionMissing
	}
	saveVersion := jsonInt(jSaveVersion)
	if saveVersion < MinCompatibleLoadVersion {
		return storyErrorf("ink save format isn't compatible with the current version (saw '%d', but minimum is %d), so can't load", saveVersion, MinCompatibleLoadVersion)
	}
	if saveVersion > InkSaveStateVersion {
		return storyErrorf("ink save format is too new for this version of the engine (saw '%d', but maximum is %d), so can't load", saveVersion, InkSaveStateVersion)
	}

	flowsObj, ok := jObject["flows"].(map[string]any)
	if !ok {
		return errSaveVersionMissing
	}

	if len(flowsObj) == 1 {
		s.namedFlows = nil
	} else {
		s.namedFlows = map[string]*Flow{}
	}

	for name, flowTok := range flowsObj {
		flowObj, ok := flowTok.(map[string]any)
		if !ok {
			return errSaveVersionMissing
		}
		flow, err := newFlowFromJSON(name, s.story, flowObj)
		if err != nil {
			return err
		}
		if len(flowsObj) == 1 {
			s.currentFlow = flow
		} else {
			s.namedFlows[name] = flow
		}
	}

	if s.namedFlows != nil {
		currFlowName, _ := jObject["currentFlowName"].(string)
		s.currentFlow = s.namedFlows[currFlowName]
	}

	s.outputStreamDirty()

	variablesObj, ok := jObject["variablesState"].(map[string]any)
	if !ok {
		return errSaveVersionMissing
	}
	if err := s.variablesState.setJSONToken(variablesObj); err != nil {
		return err
	}
	s.variablesState.callStack = s.currentFlow.callStack

	evalStackObj, ok := jObject["evalStack"].([]any)
	if !ok {
		return errSaveVersionMissing
	}
	evalStack, err := jsonArrayToRuntimeObjList(evalStackObj)
	if err != nil {
		return err
	}
	s.evaluationStack = evalStack

	s.divertedPointer = NullPointer
	if currentDivertTargetPath, ok := jObject["currentDivertTarget"].(string); ok {
		divertPath := NewPathFromString(currentDivertTargetPath)
		s.divertedPointer = s.story.PointerAtPath(divertPath)
	}

	if visitCountsObj, ok := jObject["visitCounts"].(map[string]any); ok {
		s.visitCounts = jsonObjectToIntDictionary(visitCountsObj)
	}
	if turnIndicesObj, ok := jObject["turnIndices"].(map[string]any); ok {
		s.turnIndices = jsonObjectToIntDictionary(turnIndicesObj)
	}

	s.currentTurnIndex = jsonInt(jObject["turnIdx"])
	s.storySeed = jsonInt(jObject["storySeed"])
	s.previousRandom = jsonInt(jObject["previousRandom"])

	return nil
}
