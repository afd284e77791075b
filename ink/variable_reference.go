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

// VariableReference pushes either a variable's value or, when PathForCount
// is set, the visit count of the referenced container.
type VariableReference struct {
	objectBase

	Name         string
	PathForCount *Path
}

func NewVariableReference(name string) *VariableReference {
	return &VariableReference{Name: name}
}

// ContainerForCount resolves the container whose read count is queried.
func (r *VariableReference) ContainerForCount() *Container {
	if r.PathForCount == nil {
		return nil
	}
	return ResolvePath(r, r.PathForCount).Container()
}

func (r *VariableReference) PathStringForCount() string {
	if r.PathForCount == nil {
		return ""
	}
	return CompactPathString(r, r.PathForCount)
}

func (r *VariableReference) SetPathStringForCount(value string) {
	if value == "" {
		r.PathForCount = nil
	} else {
		r.PathForCount = NewPathFromString(value)
	}
}

func (r *VariableReference) String() string {
	if r.Name != "" {
		return "var(" + r.Name + ")"
	}
	return "read_count(" + r.PathStringForCount() + ")"
}
