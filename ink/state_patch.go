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

// StatePatch buffers state mutations made while a snapshot is held across a
// potential end-of-line rewind. Applying the patch commits the buffered
// writes; dropping it restores the snapshot untouched.
type StatePatch struct {
	globals          map[string]Object
	changedVariables map[string]struct{}
	visitCounts      map[*Container]int
	turnIndices      map[*Container]int
}

func newStatePatch(toCopy *StatePatch) *StatePatch {
	p := &StatePatch{
		globals:          map[string]Object{},
		changedVariables: map[string]struct{}{},
		visitCounts:      map[*Container]int{},
		turnIndices:      map[*Container]int{},
	}
	if toCopy != nil {
		for k, v := range toCopy.globals {
			p.globals[k] = v
		}
		for k := range toCopy.changedVariables {
			p.changedVariables[k] = struct{}{}
		}
		for k, v := range toCopy.visitCounts {
			p.visitCounts[k] = v
		}
		for k, v := range toCopy.turnIndices {
			p.turnIndices[k] = v
		}
	}
	return p
}

func (p *StatePatch) TryGetGlobal(name string) (Object, bool) {
	v, ok := p.globals[name]
	return v, ok
}

func (p *StatePatch) SetGlobal(name string, value Object) {
	p.globals[name] = value
}

func (p *StatePatch) AddChangedVariable(name string) {
	p.changedVariables[name] = struct{}{}
}

func (p *StatePatch) TryGetVisitCount(container *Container) (int, bool) {
	count, ok := p.visitCounts[container]
	return count, ok
}

func (p *StatePatch) SetVisitCount(container *Container, count int) {
	p.visitCounts[container] = count
}

func (p *StatePatch) TryGetTurnIndex(container *Container) (int, bool) {
	index, ok := p.turnIndices[container]
	return index, ok
}

func (p *StatePatch) SetTurnIndex(container *Container, index int) {
	p.turnIndices[container] = index
}
