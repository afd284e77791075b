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
	"strconv"
	"strings"
)

// parentID is the distinguished name of the component that walks up to the
// enclosing container.
const parentID = "^"

// Component is a single step of a Path: either a non-negative child index or
// a child name. The parent marker "^" is a name component.
type Component struct {
	Index int
	Name  string
}

// IndexComponent creates a component addressing the child at the given index.
func IndexComponent(index int) Component {
	return Component{Index: index}
}

// NameComponent creates a component addressing the named child with the
// given name.
func NameComponent(name string) Component {
	return Component{Index: -1, Name: name}
}

// ParentComponent creates the component that resolves to the parent
// container.
func ParentComponent() Component {
	return NameComponent(parentID)
}

func (c Component) IsIndex() bool {
	return c.Index >= 0
}

func (c Component) IsParent() bool {
	return c.Name == parentID
}

func (c Component) String() string {
	if c.IsIndex() {
		return strconv.Itoa(c.Index)
	}
	return c.Name
}

// Path addresses a node in the story graph as a sequence of components,
// either from the root (absolute) or from an arbitrary starting node
// (relative). Paths are immutable; all operations return new values.
type Path struct {
	components       []Component
	isRelative       bool
	componentsString string // cached by String
}

// NewPath creates an absolute path from the given components.
func NewPath(components ...Component) *Path {
	return &Path{components: components}
}

// NewRelativePath creates a relative path from the given components.
func NewRelativePath(components ...Component) *Path {
	return &Path{components: components, isRelative: true}
}

// NewPathFromString parses the dotted string form of a path. A leading "."
// denotes a relative path. Numeric components become indices.
func NewPathFromString(str string) *Path {
	p := &Path{}
	if strings.HasPrefix(str, ".") {
		p.isRelative = true
		str = str[1:]
	}
	if str == "" {
		return p
	}
	for _, part := range strings.Split(str, ".") {
		if index, err := strconv.Atoi(part); err == nil {
			p.components = append(p.components, IndexComponent(index))
		} else {
			p.components = append(p.components, NameComponent(part))
		}
	}
	return p
}

// selfPath is the empty relative path, i.e. the path to the current object.
func selfPath() *Path {
	return &Path{isRelative: true}
}

func (p *Path) IsRelative() bool {
	return p.isRelative
}

func (p *Path) Length() int {
	return len(p.components)
}

func (p *Path) Component(i int) Component {
	return p.components[i]
}

func (p *Path) LastComponent() (Component, bool) {
	if len(p.components) == 0 {
		return Component{}, false
	}
	return p.components[len(p.components)-1], true
}

// Head returns the first component of the path.
func (p *Path) Head() (Component, bool) {
	if len(p.components) == 0 {
		return Component{}, false
	}
	return p.components[0], true
}

// Tail returns the path with its first component removed. The tail of a
// single-component path is the self path.
func (p *Path) Tail() *Path {
	if len(p.components) >= 2 {
		return &Path{components: p.components[1:]}
	}
	return selfPath()
}

func (p *Path) ContainsNamedComponent() bool {
	for _, c := range p.components {
		if !c.IsIndex() {
			return true
		}
	}
	return false
}

// PathByAppendingPath appends another path, consuming one trailing component
// of this path per leading parent marker of the appended path.
func (p *Path) PathByAppendingPath(toAppend *Path) *Path {
	upwardMoves := 0
	for _, c := range toAppend.components {
		if !c.IsParent() {
			break
		}
		upwardMoves++
	}

	result := &Path{}
	for i := 0; i < len(p.components)-upwardMoves; i++ {
		result.components = append(result.components, p.components[i])
	}
	result.components = append(result.components, toAppend.components[upwardMoves:]...)
	return result
}

// PathByAppendingComponent returns a copy of this path extended by one
// component.
func (p *Path) PathByAppendingComponent(c Component) *Path {
	result := &Path{components: make([]Component, 0, len(p.components)+1)}
	result.components = append(result.components, p.components...)
	result.components = append(result.components, c)
	return result
}

// String is the dotted form of the path, with a leading "." when relative.
func (p *Path) String() string {
	if p.componentsString == "" {
		parts := make([]string, len(p.components))
		for i, c := range p.components {
			parts[i] = c.String()
		}
		p.componentsString = strings.Join(parts, ".")
		if p.isRelative {
			p.componentsString = "." + p.componentsString
		}
	}
	return p.componentsString
}

// Equals compares two paths componentwise, including relativity.
func (p *Path) Equals(other *Path) bool {
	if other == nil || len(other.components) != len(p.components) {
		return false
	}
	if other.isRelative != p.isRelative {
		return false
	}
	for i, c := range p.components {
		if other.components[i] != c {
			return false
		}
	}
	return true
}
