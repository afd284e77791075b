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

import "fmt"

// Pointer is a cheap value locating a piece of content: a container plus a
// child index. Index -1 addresses the container itself. The zero value is
// the null pointer.
type Pointer struct {
	Container *Container
	Index     int
}

// NullPointer is the pointer to nowhere.
var NullPointer = Pointer{Container: nil, Index: -1}

// StartOf points at the first child of the given container.
func StartOf(container *Container) Pointer {
	return Pointer{Container: container, Index: 0}
}

func (p Pointer) IsNull() bool {
	return p.Container == nil
}

// Resolve returns the object under the pointer: the indexed child, or the
// container itself when the index is negative.
func (p Pointer) Resolve() Object {
	if p.Index < 0 {
		return p.Container
	}
	if p.Container == nil {
		return nil
	}
	if len(p.Container.Content) == 0 {
		return p.Container
	}
	if p.Index >= len(p.Container.Content) {
		return nil
	}
	return p.Container.Content[p.Index]
}

// Path is the pointer's location as a path: the container's path extended by
// the index when one is set.
func (p Pointer) Path() *Path {
	if p.IsNull() {
		return nil
	}
	if p.Index >= 0 {
		return PathOf(p.Container).PathByAppendingComponent(IndexComponent(p.Index))
	}
	return PathOf(p.Container)
}

func (p Pointer) String() string {
	if p.Container == nil {
		return "Ink Pointer (null)"
	}
	return fmt.Sprintf("Ink Pointer -> %s -- index %d", PathOf(p.Container), p.Index)
}
