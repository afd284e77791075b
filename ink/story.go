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
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/exp/maps"
)

const (
	// InkVersionCurrent is the compiled-story format version this engine
	// reads and writes.
	InkVersionCurrent = 21

	// InkVersionMinimumCompatible is the oldest compiled-story format the
	// engine still loads.
	InkVersionMinimumCompatible = 18

	// pathLookupCacheSize bounds the per-story cache of path lookups. The
	// graph is immutable after load, so cached results never go stale.
	pathLookupCacheSize = 256
)

// VariableObserver is notified with a variable's new raw value after it
// changes.
type VariableObserver func(variableName string, newValue any)

// Story is a loaded ink story together with all of its runtime state. A
// story must be driven from a single goroutine.
type Story struct {
	mainContentContainer *Container
	listDefinitions      *ListDefinitionsOrigin

	state                      *StoryState
	stateSnapshotAtLastNewline *StoryState

	externals                      map[string]ExternalFunction
	hasValidatedExternals          bool
	allowExternalFunctionFallbacks bool

	variableObservers map[string][]VariableObserver

	onError                    ErrorHandler
	onWarning                  func(message string)
	onDidContinue              func()
	onMakeChoice               func(choice *Choice)
	onChoosePathString         func(path string, args []any)
	onEvaluateFunction         func(functionName string, args []any)
	onCompleteEvaluateFunction func(functionName string, args []any, textOutput string, result any)

	recursiveContinueCount                 int
	asyncContinueActive                    bool
	sawLookaheadUnsafeFunctionAfterNewline bool

	temporaryEvaluationContainer *Container

	prevContainers []*Container

	profiler *Profiler

	pathLookupCache *lru.Cache[string, SearchResult]
}

// NewStory loads a story from its compiled JSON representation.
func NewStory(jsonText string) (*Story, error) {
	rootToken, err := loadJSONTree(jsonText)
	if err != nil {
		return nil, err
	}

	rootObject, ok := rootToken.(map[string]any)
	if !ok {
		return nil, errMissingRoot
	}

	versionToken, ok := rootObject["inkVersion"]
	if !ok {
		return nil, errMissingVersion
	}
	formatFromFile := jsonInt(versionToken)

	versionWarning := ""
	switch {
	case formatFromFile > InkVersionCurrent:
		return nil, errVersionTooNew
	case formatFromFile < InkVersionMinimumCompatible:
		return nil, errVersionTooOld
	case formatFromFile != InkVersionCurrent:
		versionWarning = "version of ink used to build story doesn't match current version of engine. Non-critical, but recommend synchronising."
	}

	rootTok, ok := rootObject["root"]
	if !ok {
		return nil, errMissingRoot
	}
	rootArray, ok := rootTok.([]any)
	if !ok {
		return nil, errMissingRoot
	}

	story := &Story{
		externals:         map[string]ExternalFunction{},
		variableObservers: map[string][]VariableObserver{},
	}
	story.pathLookupCache, _ = lru.New[string, SearchResult](pathLookupCacheSize)

	if listDefsTok, ok := rootObject["listDefs"]; ok {
		story.listDefinitions = jsonTokenToListDefinitions(listDefsTok)
	}

	rootContainer, err := jsonArrayToContainer(rootArray)
	if err != nil {
		return nil, err
	}
	story.mainContentContainer = rootContainer

	story.ResetState()

	if versionWarning != "" {
		story.warning(versionWarning)
	}

	return story, nil
}

// RootContentContainer is the root of the immutable story graph.
func (s *Story) RootContentContainer() *Container {
	if s.temporaryEvaluationContainer != nil {
		return s.temporaryEvaluationContainer
	}
	return s.mainContentContainer
}

// MainContentContainer is the root container regardless of any temporary
// evaluation underway.
func (s *Story) MainContentContainer() *Container {
	return s.mainContentContainer
}

// ListDefinitions exposes the story's authored list definitions.
func (s *Story) ListDefinitions() *ListDefinitionsOrigin {
	return s.listDefinitions
}

// State is the story's mutable runtime state.
func (s *Story) State() *StoryState {
	return s.state
}

// ToJSON serializes the compiled story back to its JSON form.
func (s *Story) ToJSON() (string, error) {
	result := map[string]any{
		"inkVersion": InkVersionCurrent,
		"root":       writeRuntimeContainer(s.mainContentContainer, false),
	}
	if s.listDefinitions != nil {
		result["listDefs"] = writeListDefinitions(s.listDefinitions)
	}
	return marshalJSONTree(result)
}

// SaveStateJSON serializes the runtime state.
func (s *Story) SaveStateJSON() (string, error) {
	if err := s.ifAsyncWeCant("save state"); err != nil {
		return "", err
	}
	return marshalJSONTree(s.state.WriteJSON())
}

// LoadStateJSON restores runtime state from a save.
func (s *Story) LoadStateJSON(jsonText string) error {
	if err := s.ifAsyncWeCant("load state"); err != nil {
		return err
	}
	tok, err := loadJSONTree(jsonText)
	if err != nil {
		return err
	}
	jObject, ok := tok.(map[string]any)
	if !ok {
		return errSaveVersionMissing
	}
	// Loading is performed in place: the default-globals snapshot and
	// registered observers survive on the existing state.
	return s.state.LoadJSONObj(jObject)
}

// ResetState discards all runtime state, returning the story to its
// just-loaded condition.
func (s *Story) ResetState() {
	s.state = newStoryState(s)
	s.state.variablesState.variableChangedEvent = s.variableStateDidChange
	s.resetGlobals()
}

// ResetErrors clears accumulated errors and warnings.
func (s *Story) ResetErrors() {
	s.state.ResetErrors()
}

// ResetCallstack unwinds to a clean execution state without touching
// variables or counters, e.g. before jumping somewhere with ChoosePathString.
func (s *Story) ResetCallstack() error {
	if err := s.ifAsyncWeCant("ResetCallstack"); err != nil {
		return err
	}
	s.state.ForceEnd()
	return nil
}

// resetGlobals runs the "global decl" container, if any, to establish the
// declared default values, then snapshots them.
func (s *Story) resetGlobals() {
	if _, ok := s.mainContentContainer.NamedContent["global decl"]; ok {
		originalPointer := s.state.CurrentPointer()

		s.ChoosePath(NewPathFromString("global decl"), false)
		s.continueInternal(0)

		s.state.SetCurrentPointer(originalPointer)
	}
	s.state.variablesState.SnapshotDefaultGlobals()
}

// CanContinue reports whether a call to Continue can produce more text.
func (s *Story) CanContinue() bool {
	return s.state.CanContinue()
}

// AsyncContinueComplete reports whether a budgeted ContinueAsync has
// finished its line.
func (s *Story) AsyncContinueComplete() bool {
	return !s.asyncContinueActive
}

// Continue runs the story until the next newline and returns the produced
// line of text.
func (s *Story) Continue() (string, error) {
	if err := s.ContinueAsync(0); err != nil {
		return "", err
	}
	return s.CurrentText(), nil
}

// ContinueAsync runs at most budget worth of steps (zero means unbounded),
// suspending between steps once the soft limit passes. Check
// AsyncContinueComplete to see whether more work remains.
func (s *Story) ContinueAsync(budget float64) error {
	if !s.hasValidatedExternals {
		if err := s.ValidateExternalBindings(); err != nil {
			return err
		}
	}
	return s.continueInternal(budget)
}

// ContinueMaximally continues until the story reaches a choice or the end,
// returning an iterator over the produced lines.
func (s *Story) ContinueMaximally() *Lines {
	return &Lines{story: s}
}

// Lines iterates the remaining lines of content.
type Lines struct {
	story *Story
	err   error
}

// Next produces the next line, reporting false at a choice, the end of
// content, or on error.
func (l *Lines) Next() (string, bool) {
	if l.err != nil || !l.story.CanContinue() {
		return "", false
	}
	line, err := l.story.Continue()
	if err != nil {
		l.err = err
		return "", false
	}
	return line, true
}

// Err reports the error that stopped iteration, if any.
func (l *Lines) Err() error {
	return l.err
}

// Text drains the iterator and concatenates all produced lines.
func (l *Lines) Text() (string, error) {
	var sb strings.Builder
	for {
		line, ok := l.Next()
		if !ok {
			return sb.String(), l.err
		}
		sb.WriteString(line)
	}
}

// CurrentText is the text of the last line produced by Continue.
func (s *Story) CurrentText() string {
	return s.state.CurrentText()
}

// CurrentTags lists the tags attached to the last produced line.
func (s *Story) CurrentTags() []string {
	return s.state.CurrentTags()
}

// CurrentErrors lists the errors accumulated during the last Continue.
func (s *Story) CurrentErrors() []string {
	return s.state.CurrentErrors()
}

// CurrentWarnings lists the warnings accumulated during the last Continue.
func (s *Story) CurrentWarnings() []string {
	return s.state.CurrentWarnings()
}

func (s *Story) HasError() bool {
	return s.state.HasError()
}

func (s *Story) HasWarning() bool {
	return s.state.HasWarning()
}

// CurrentChoices lists the player-visible choices, indexed for
// ChooseChoiceIndex.
func (s *Story) CurrentChoices() []*Choice {
	var choices []*Choice
	for _, c := range s.state.CurrentChoices() {
		if !c.IsInvisibleDefault {
			c.Index = len(choices)
			choices = append(choices, c)
		}
	}
	return choices
}

// VariablesState accesses the story's global variables.
func (s *Story) VariablesState() *VariablesState {
	return s.state.variablesState
}

// Handlers

// OnError registers the handler receiving errors (and warnings, when no
// warning handler is set) at the end of each Continue. Without a handler
// the first error is returned from Continue itself.
func (s *Story) OnError(handler ErrorHandler) {
	s.onError = handler
}

// OnWarning registers a handler for warnings.
func (s *Story) OnWarning(handler func(message string)) {
	s.onWarning = handler
}

// OnDidContinue fires at the end of each completed Continue.
func (s *Story) OnDidContinue(handler func()) {
	s.onDidContinue = handler
}

// OnMakeChoice fires when the host selects a choice.
func (s *Story) OnMakeChoice(handler func(choice *Choice)) {
	s.onMakeChoice = handler
}

// OnChoosePathString fires when the host jumps to a path directly.
func (s *Story) OnChoosePathString(handler func(path string, args []any)) {
	s.onChoosePathString = handler
}

// OnEvaluateFunction fires when the host evaluates an ink function.
func (s *Story) OnEvaluateFunction(handler func(functionName string, args []any)) {
	s.onEvaluateFunction = handler
}

// OnCompleteEvaluateFunction fires when a host-initiated function
// evaluation completes.
func (s *Story) OnCompleteEvaluateFunction(handler func(functionName string, args []any, textOutput string, result any)) {
	s.onCompleteEvaluateFunction = handler
}

// Choice selection and jumps

// ChooseChoiceIndex selects one of CurrentChoices by index, restoring the
// thread the choice was generated on and diverting to its content.
func (s *Story) ChooseChoiceIndex(choiceIdx int) error {
	choices := s.CurrentChoices()
	if choiceIdx < 0 || choiceIdx >= len(choices) {
		return storyErrorf("choice out of range")
	}
	choiceToChoose := choices[choiceIdx]

	if s.onMakeChoice != nil {
		s.onMakeChoice(choiceToChoose)
	}

	s.state.CallStack().SetCurrentThread(choiceToChoose.threadAtGeneration)
	s.ChoosePath(choiceToChoose.TargetPath(), true)
	return nil
}

// ChoosePathString jumps the story to a named path. When resetCallstack is
// false and execution is inside a function, the jump is refused since the
// stack would be corrupted.
func (s *Story) ChoosePathString(path string, resetCallstack bool, args ...any) error {
	if err := s.ifAsyncWeCant("call ChoosePathString right now"); err != nil {
		return err
	}
	if s.onChoosePathString != nil {
		s.onChoosePathString(path, args)
	}

	if resetCallstack {
		if err := s.ResetCallstack(); err != nil {
			return err
		}
	} else {
		// One of the worst offenders: jumping mid-function leaves the stack
		// in a state that cannot meaningfully resume.
		if s.state.CallStack().CurrentElement().Type == PushPopFunction {
			funcDetail := ""
			container := s.state.CallStack().CurrentElement().CurrentPointer.Container
			if container != nil {
				funcDetail = "(" + PathOf(container).String() + ") "
			}
			return storyErrorf("story was running a function %swhen you called ChoosePathString(%s) - this is almost certainly not what you want! Stack trace: %s",
				funcDetail, path, s.state.CallStack().CallStackTrace())
		}
	}

	if err := s.state.PassArgumentsToEvaluationStack(args); err != nil {
		return err
	}
	s.ChoosePath(NewPathFromString(path), true)
	return nil
}

// ChoosePath diverts to the given path, optionally counting a new turn.
func (s *Story) ChoosePath(p *Path, incrementingTurnIndex bool) {
	s.state.SetChosenPath(p, incrementingTurnIndex)

	// Take note of newly visited containers for read counts etc.
	s.visitChangedContainersDueToDivert()
}

// Flows

func (s *Story) SwitchFlow(flowName string) error {
	if err := s.ifAsyncWeCant("switch flow"); err != nil {
		return err
	}
	s.state.switchFlowInternal(flowName)
	return nil
}

func (s *Story) SwitchToDefaultFlow() error {
	if err := s.ifAsyncWeCant("switch flow"); err != nil {
		return err
	}
	s.state.switchToDefaultFlowInternal()
	return nil
}

func (s *Story) RemoveFlow(flowName string) error {
	return s.state.removeFlowInternal(flowName)
}

func (s *Story) CurrentFlowName() string {
	return s.state.CurrentFlowName()
}

func (s *Story) CurrentFlowIsDefaultFlow() bool {
	return s.state.CurrentFlowIsDefaultFlow()
}

func (s *Story) AliveFlowNames() []string {
	return s.state.AliveFlowNames()
}

// Path and content lookup

// ContentAtPath resolves a path against the main content container. Results
// are cached; the graph is immutable after loading.
func (s *Story) ContentAtPath(path *Path) SearchResult {
	key := path.String()
	if result, ok := s.pathLookupCache.Get(key); ok {
		return result
	}
	result := s.mainContentContainer.ContentAtPath(path)
	s.pathLookupCache.Add(key, result)
	return result
}

// KnotContainerWithName finds a top-level named container.
func (s *Story) KnotContainerWithName(name string) *Container {
	if namedContainer, ok := s.mainContentContainer.NamedContent[name]; ok {
		container, _ := namedContainer.(*Container)
		return container
	}
	return nil
}

// PointerAtPath turns a path into a pointer; an index on the final
// component becomes the pointer's index.
func (s *Story) PointerAtPath(path *Path) Pointer {
	if path.Length() == 0 {
		return NullPointer
	}

	p := Pointer{Index: -1}
	pathLengthToUse := path.Length()

	var result SearchResult
	if last, ok := path.LastComponent(); ok && last.IsIndex() {
		pathLengthToUse = path.Length() - 1
		result = s.mainContentContainer.ContentAtPathSegment(path, 0, pathLengthToUse)
		p.Container = result.Container()
		p.Index = last.Index
	} else {
		result = s.mainContentContainer.ContentAtPath(path)
		p.Container = result.Container()
	}

	if result.Obj == nil || result.Obj == Object(s.mainContentContainer) && pathLengthToUse > 0 {
		s.addErrorMessage(fmt.Sprintf("failed to find content at path '%s', and no approximation of it was possible", path))
	} else if result.Approximate {
		s.warning(fmt.Sprintf("failed to find content at path '%s', so it was approximated to: '%s'", path, PathOf(result.Obj)))
	}

	return p
}

// Tags

// GlobalTags are the tags at the very top of the story file.
func (s *Story) GlobalTags() ([]string, error) {
	return s.tagsAtStartOfFlowContainerWithPathString("")
}

// TagsForContentAtPath collects the tags at the start of the knot or stitch
// at the given path.
func (s *Story) TagsForContentAtPath(path string) ([]string, error) {
	return s.tagsAtStartOfFlowContainerWithPathString(path)
}

func (s *Story) tagsAtStartOfFlowContainerWithPathString(pathString string) ([]string, error) {
	path := NewPathFromString(pathString)

	flowContainer := s.ContentAtPath(path).Container()
	if flowContainer == nil {
		return nil, storyErrorf("failed to find content at path '%s'", pathString)
	}
	for len(flowContainer.Content) > 0 {
		firstContent := flowContainer.Content[0]
		if innerContainer, ok := firstContent.(*Container); ok {
			flowContainer = innerContainer
		} else {
			break
		}
	}

	// Only initial text-and-tag content counts; anything else ends the scan.
	inTag := false
	var tags []string
	for _, c := range flowContainer.Content {
		if cmd, ok := c.(*ControlCommand); ok {
			switch cmd.Command {
			case CommandBeginTag:
				inTag = true
			case CommandEndTag:
				inTag = false
			}
		} else if inTag {
			if str, ok := c.(*StringValue); ok {
				tags = append(tags, str.Value)
			} else {
				return nil, storyErrorf("tag contained non-text content. Only plain text is allowed when using GlobalTags or TagsForContentAtPath. If you want to evaluate dynamic content, you need to use story.Continue()")
			}
		} else {
			break
		}
	}

	return tags, nil
}

// External functions

// BindExternalFunction connects a host function to an EXTERNAL declaration.
func (s *Story) BindExternalFunction(funcName string, fn ExternalFunction) error {
	if err := s.ifAsyncWeCant("bind an external function"); err != nil {
		return err
	}
	if _, exists := s.externals[funcName]; exists {
		return storyErrorf("function '%s' has already been bound", funcName)
	}
	s.externals[funcName] = fn
	return nil
}

func (s *Story) UnbindExternalFunction(funcName string) error {
	if err := s.ifAsyncWeCant("unbind an external function"); err != nil {
		return err
	}
	if _, exists := s.externals[funcName]; !exists {
		return storyErrorf("function '%s' has not been bound", funcName)
	}
	delete(s.externals, funcName)
	return nil
}

// AllowExternalFunctionFallbacks lets unbound externals fall back to a
// same-named ink function.
func (s *Story) AllowExternalFunctionFallbacks(allow bool) {
	s.allowExternalFunctionFallbacks = allow
}

// ValidateExternalBindings walks the graph and fails for externals with
// neither a binding nor (when allowed) an ink fallback.
func (s *Story) ValidateExternalBindings() error {
	missingExternals := map[string]struct{}{}
	s.validateExternalBindingsContainer(s.mainContentContainer, missingExternals)
	s.hasValidatedExternals = true

	if len(missingExternals) == 0 {
		return nil
	}

	names := maps.Keys(missingExternals)
	sort.Strings(names)
	suffix := " (ink fallbacks disabled)"
	if s.allowExternalFunctionFallbacks {
		suffix = ", and no fallback ink function found."
	}
	plural := ""
	if len(names) > 1 {
		plural = "s"
	}
	return storyErrorf("missing function binding for external%s: '%s'%s",
		plural, strings.Join(names, "', '"), suffix)
}

func (s *Story) validateExternalBindingsContainer(c *Container, missing map[string]struct{}) {
	for _, innerContent := range c.Content {
		if container, ok := innerContent.(*Container); ok && container.hasValidName() {
			continue
		}
		s.validateExternalBindingsObject(innerContent, missing)
	}
	for _, innerValue := range c.NamedContent {
		s.validateExternalBindingsObject(innerValue, missing)
	}
}

func (s *Story) validateExternalBindingsObject(o Object, missing map[string]struct{}) {
	if container, ok := o.(*Container); ok {
		s.validateExternalBindingsContainer(container, missing)
		return
	}
	if divert, ok := o.(*Divert); ok && divert.IsExternal {
		name := divert.TargetPathString()
		if _, bound := s.externals[name]; !bound {
			if s.allowExternalFunctionFallbacks {
				_, fallbackFound := s.mainContentContainer.NamedContent[name]
				if !fallbackFound {
					missing[name] = struct{}{}
				}
			} else {
				missing[name] = struct{}{}
			}
		}
	}
}

// Observers

// ObserveVariable registers an observer for one global variable. Multiple
// observers may watch the same variable; they fire in registration order.
func (s *Story) ObserveVariable(variableName string, observer VariableObserver) error {
	if err := s.ifAsyncWeCant("observe a new variable"); err != nil {
		return err
	}
	if !s.state.variablesState.GlobalVariableExistsWithName(variableName) {
		return storyErrorf("cannot observe variable '%s' because it wasn't declared in the ink story", variableName)
	}
	s.variableObservers[variableName] = append(s.variableObservers[variableName], observer)
	return nil
}

// ObserveVariables registers one observer for several variables at once.
func (s *Story) ObserveVariables(variableNames []string, observer VariableObserver) error {
	for _, name := range variableNames {
		if err := s.ObserveVariable(name, observer); err != nil {
			return err
		}
	}
	return nil
}

// RemoveVariableObservers drops all observers of the given variable.
func (s *Story) RemoveVariableObservers(variableName string) error {
	if err := s.ifAsyncWeCant("remove a variable observer"); err != nil {
		return err
	}
	delete(s.variableObservers, variableName)
	return nil
}

// BatchObservingVariableChanges defers observer notification to the end of
// each Continue while enabled, collapsing repeated writes. Turning it off
// flushes pending notifications.
func (s *Story) BatchObservingVariableChanges(value bool) {
	if value {
		s.state.variablesState.StartBatchObserving()
		return
	}
	changed := s.state.variablesState.CompleteBatchObserving()
	if len(changed) > 0 {
		s.state.variablesState.NotifyObservers(changed)
	}
}

// variableStateDidChange dispatches a committed variable write to the
// registered observers. A panicking observer is contained and reported as a
// warning rather than corrupting the VM state.
func (s *Story) variableStateDidChange(variableName string, newValue Object) {
	observers, ok := s.variableObservers[variableName]
	if !ok {
		return
	}
	value, isValue := newValue.(Value)
	if !isValue {
		return
	}
	for _, observer := range observers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.warning(fmt.Sprintf("variable observer for '%s' panicked: %v", variableName, r))
				}
			}()
			observer(variableName, value.ValueObject())
		}()
	}
}

// Function evaluation from the host

// EvaluateFunction runs a named ink function directly, returning its result
// and any text it produced.
func (s *Story) EvaluateFunction(functionName string, args ...any) (result any, textOutput string, err error) {
	if s.onEvaluateFunction != nil {
		s.onEvaluateFunction(functionName, args)
	}
	if err := s.ifAsyncWeCant("evaluate a function"); err != nil {
		return nil, "", err
	}
	if functionName == "" {
		return nil, "", storyErrorf("function is empty or white space")
	}

	funcContainer := s.KnotContainerWithName(functionName)
	if funcContainer == nil {
		return nil, "", storyErrorf("function doesn't exist: '%s'", functionName)
	}

	// Snapshot the output stream: the function's text output must not leak
	// into the main flow.
	outputStreamBefore := append([]Object(nil), s.state.OutputStream()...)
	s.state.ResetOutput(nil)

	if err := s.state.StartFunctionEvaluationFromGame(funcContainer, args); err != nil {
		return nil, "", err
	}

	var sb strings.Builder
	for s.CanContinue() {
		line, err := s.Continue()
		if err != nil {
			return nil, "", err
		}
		sb.WriteString(line)
	}
	textOutput = sb.String()

	s.state.ResetOutput(outputStreamBefore)

	result, err = s.state.CompleteFunctionEvaluationFromGame()
	if err != nil {
		return nil, textOutput, err
	}

	if s.onCompleteEvaluateFunction != nil {
		s.onCompleteEvaluateFunction(functionName, args, textOutput, result)
	}
	return result, textOutput, nil
}

// Profiling

// StartProfiling begins sampling the evaluator; any previous profile is
// discarded.
func (s *Story) StartProfiling() *Profiler {
	s.profiler = NewProfiler()
	return s.profiler
}

// EndProfiling stops sampling.
func (s *Story) EndProfiling() {
	s.profiler = nil
}

// Profiler returns the active profiler, if profiling is underway.
func (s *Story) Profiler() *Profiler {
	return s.profiler
}

// Internals shared with the evaluator

func (s *Story) ifAsyncWeCant(activityStr string) error {
	if s.asyncContinueActive {
		return storyErrorf("can't %s. Story is in the middle of a ContinueAsync(). Make more ContinueAsync() calls or a single Continue() call beforehand.", activityStr)
	}
	return nil
}

func (s *Story) addErrorMessage(message string) {
	s.state.addError(message)
}

func (s *Story) warning(message string) {
	s.state.addWarning(message)
}
