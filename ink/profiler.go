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
	"time"

	"github.com/dsnet/golib/unitconv"
)

// Profiler samples where the engine spends its time while stepping, keyed by
// the named story locations on the call stack.
type Profiler struct {
	rootNode *ProfileNode

	numContinues int

	continueStarted time.Time
	snapshotStarted time.Time
	stepStarted     time.Time

	continueTotal time.Duration
	snapshotTotal time.Duration
	stepTotal     time.Duration

	currentStepStack   []string
	currentStepDetails *stepDetails
	stepDetails        []*stepDetails

	suspended bool
}

type stepDetails struct {
	stepType string
	obj      Object
	elapsed  time.Duration
}

func NewProfiler() *Profiler {
	return &Profiler{rootNode: &ProfileNode{}}
}

// RootNode is the root of the hierarchical sample tree.
func (p *Profiler) RootNode() *ProfileNode {
	return p.rootNode
}

// Suspend pauses sample collection; Resume re-enables it. Used by hosts
// that want to exclude their own callback time from the report.
func (p *Profiler) Suspend() { p.suspended = true }
func (p *Profiler) Resume()  { p.suspended = false }

func (p *Profiler) preContinue() {
	p.continueStarted = time.Now()
}

func (p *Profiler) postContinue() {
	p.continueTotal += time.Since(p.continueStarted)
	p.numContinues++
}

func (p *Profiler) preStep() {
	if p.suspended {
		return
	}
	p.currentStepStack = nil
	p.stepStarted = time.Now()
}

// step records the story location about to execute.
func (p *Profiler) step(callStack *CallStack) {
	if p.suspended {
		return
	}

	var stack []string
	for _, element := range callStack.Elements() {
		stackElementName := ""
		if !element.CurrentPointer.IsNull() {
			objPath := element.CurrentPointer.Path()
			for i := 0; i < objPath.Length(); i++ {
				comp := objPath.Component(i)
				if !comp.IsIndex() {
					stackElementName = comp.Name
					break
				}
			}
		}
		stack = append(stack, stackElementName)
	}
	p.currentStepStack = stack

	currentObj := callStack.CurrentElement().CurrentPointer.Resolve()
	stepType := "<null>"
	if currentObj != nil {
		stepType = objString(currentObj)
	}
	p.currentStepDetails = &stepDetails{stepType: stepType, obj: currentObj}
}

func (p *Profiler) postStep() {
	if p.suspended {
		return
	}
	elapsed := time.Since(p.stepStarted)
	p.stepTotal += elapsed
	p.rootNode.addSample(p.currentStepStack, elapsed, -1)

	p.currentStepDetails.elapsed = elapsed
	p.stepDetails = append(p.stepDetails, p.currentStepDetails)
}

func (p *Profiler) preSnapshot() {
	if p.suspended {
		return
	}
	p.snapshotStarted = time.Now()
}

func (p *Profiler) postSnapshot() {
	if p.suspended {
		return
	}
	p.snapshotTotal += time.Since(p.snapshotStarted)
}

// Report renders the hierarchical timing summary.
func (p *Profiler) Report() string {
	otherTotal := p.continueTotal - (p.stepTotal + p.snapshotTotal)

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s CONTINUES / LINES:\n", unitconv.FormatPrefix(float64(p.numContinues), unitconv.SI, 2))
	fmt.Fprintf(&sb, "TOTAL TIME: %v\n", p.continueTotal)
	fmt.Fprintf(&sb, "SNAPSHOTTING: %v\n", p.snapshotTotal)
	fmt.Fprintf(&sb, "OTHER: %v\n", otherTotal)
	sb.WriteString(p.rootNode.printHierarchy(0))
	return sb.String()
}

// StepLog lists every instruction evaluated while profiling.
func (p *Profiler) StepLog() string {
	var sb strings.Builder
	sb.WriteString("Step type\tPath\tTime\n")
	for _, step := range p.stepDetails {
		path := "<null>"
		if step.obj != nil {
			path = PathOf(step.obj).String()
		}
		fmt.Fprintf(&sb, "%s\t%s\t%v\n", step.stepType, path, step.elapsed)
	}
	return sb.String()
}

// ProfileNode is a node of the sample hierarchy: one named story location
// with its own and its children's accumulated time.
type ProfileNode struct {
	Key string

	nodes map[string]*ProfileNode

	selfElapsed  time.Duration
	totalElapsed time.Duration

	selfSampleCount  int
	totalSampleCount int
}

func (n *ProfileNode) addSample(stack []string, duration time.Duration, stackIdx int) {
	n.totalSampleCount++
	n.totalElapsed += duration

	if stackIdx == len(stack)-1 {
		n.selfSampleCount++
		n.selfElapsed += duration
	}

	if stackIdx+1 < len(stack) {
		n.addSampleToNode(stack, duration, stackIdx+1)
	}
}

func (n *ProfileNode) addSampleToNode(stack []string, duration time.Duration, stackIdx int) {
	nodeKey := stack[stackIdx]
	if n.nodes == nil {
		n.nodes = map[string]*ProfileNode{}
	}
	node, ok := n.nodes[nodeKey]
	if !ok {
		node = &ProfileNode{Key: nodeKey}
		n.nodes[nodeKey] = node
	}
	node.addSample(stack, duration, stackIdx)
}

// DescendingOrderedNodes returns the children, slowest first.
func (n *ProfileNode) DescendingOrderedNodes() []*ProfileNode {
	ordered := make([]*ProfileNode, 0, len(n.nodes))
	for _, node := range n.nodes {
		ordered = append(ordered, node)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].totalElapsed != ordered[j].totalElapsed {
			return ordered[i].totalElapsed > ordered[j].totalElapsed
		}
		return ordered[i].Key < ordered[j].Key
	})
	return ordered
}

func (n *ProfileNode) printHierarchy(indent int) string {
	var sb strings.Builder
	sb.WriteString(strings.Repeat(" ", indent))
	key := n.Key
	if key == "" {
		key = "ROOT"
	}
	fmt.Fprintf(&sb, "%s: %s\n", key, n.report())
	for _, node := range n.DescendingOrderedNodes() {
		sb.WriteString(node.printHierarchy(indent + 1))
	}
	return sb.String()
}

func (n *ProfileNode) report() string {
	return fmt.Sprintf("total %v, self %v (%s self samples, %s total)",
		n.totalElapsed, n.selfElapsed,
		unitconv.FormatPrefix(float64(n.selfSampleCount), unitconv.SI, 2),
		unitconv.FormatPrefix(float64(n.totalSampleCount), unitconv.SI, 2))
}
