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

// Flow is a named bundle of execution context: a call stack, an output
// stream and the currently generated choices. A story always has a default
// flow and may maintain several named ones.
type Flow struct {
	name           string
	callStack      *CallStack
	outputStream   []Object
	currentChoices []*Choice
}

func newFlow(name string, story *Story) *Flow {
	return &Flow{
		name:      name,
		callStack: NewCallStack(story.RootContentContainer()),
	}
}

func newFlowFromJSON(name string, story *Story, jObject map[string]any) (*Flow, error) {
	f := &Flow{name: name}
	f.callStack = NewCallStack(story.RootContentContainer())

	jCallStack, ok := jObject["callstack"].(map[string]any)
	if !ok {
		return nil, errSaveVersionMissing
	}
	if err := f.callStack.setJSONToken(jCallStack, story); err != nil {
		return nil, err
	}

	jOutputStream, ok := jObject["outputStream"].([]any)
	if !ok {
		return nil, errSaveVersionMissing
	}
	outputStream, err := jsonArrayToRuntimeObjList(jOutputStream)
	if err != nil {
		return nil, err
	}
	f.outputStream = outputStream

	if jChoices, ok := jObject["currentChoices"].([]any); ok {
		for _, jChoice := range jChoices {
			choiceObj, ok := jChoice.(map[string]any)
			if !ok {
				return nil, errSaveVersionMissing
			}
			f.currentChoices = append(f.currentChoices, choiceFromJSON(choiceObj))
		}
	}

	// Choice threads are stored separately when the thread that generated a
	// choice no longer exists in the main thread stack.
	jChoiceThreads, _ := jObject["choiceThreads"].(map[string]any)
	f.loadFlowChoiceThreads(jChoiceThreads, story)

	return f, nil
}

func (f *Flow) writeJSON() map[string]any {
	result := map[string]any{
		"callstack":    f.callStack.writeJSON(),
		"outputStream": writeListRuntimeObjs(f.outputStream),
	}

	// The choice threads need only be saved for choices whose generating
	// thread has already been popped off the thread stack.
	choiceThreads := map[string]any{}
	for _, c := range f.currentChoices {
		c.originalThreadIndex = c.threadAtGeneration.threadIndex
		if f.callStack.ThreadWithIndex(c.originalThreadIndex) == nil {
			choiceThreads[intKey(c.originalThreadIndex)] = c.threadAtGeneration.writeJSON()
		}
	}
	if len(choiceThreads) > 0 {
		result["choiceThreads"] = choiceThreads
	}

	choices := make([]any, 0, len(f.currentChoices))
	for _, c := range f.currentChoices {
		choices = append(choices, writeChoice(c))
	}
	result["currentChoices"] = choices

	return result
}

func (f *Flow) loadFlowChoiceThreads(jChoiceThreads map[string]any, story *Story) {
	for _, choice := range f.currentChoices {
		if foundActiveThread := f.callStack.ThreadWithIndex(choice.originalThreadIndex); foundActiveThread != nil {
			choice.threadAtGeneration = foundActiveThread.Copy()
			continue
		}
		if jSavedChoiceThread, ok := jChoiceThreads[intKey(choice.originalThreadIndex)].(map[string]any); ok {
			if thread, err := threadFromJSON(jSavedChoiceThread, story); err == nil {
				choice.threadAtGeneration = thread
			}
		}
	}
}
