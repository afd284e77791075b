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

// SearchResult is the outcome of a path walk. When the walk terminates early
// (missing name, out-of-range index, or a non-container on the way), Obj is
// the last object successfully reached and Approximate is true.
type SearchResult struct {
	Obj         Object
	Approximate bool
}

// Container returns the found object as a container, or nil.
func (r SearchResult) Container() *Container {
	if c, ok := r.Obj.(*Container); ok {
		return c
	}
	return nil
}

// CorrectObj returns the found object only if the walk resolved exactly.
func (r SearchResult) CorrectObj() Object {
	if r.Approximate {
		return nil
	}
	return r.Obj
}
