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

// Count flags of a container, as serialized in the "#f" terminator field.
const (
	CountFlagVisits         = 1
	CountFlagTurns          = 2
	CountFlagCountStartOnly = 4
)

// Container is an interior node of the story graph: an ordered list of child
// content plus a name-indexed map of named children. A named child may also
// be reachable by index when it appears in both.
type Container struct {
	objectBase

	Name         string
	Content      []Object
	NamedContent map[string]Object

	VisitsShouldBeCounted    bool
	TurnIndexShouldBeCounted bool
	CountingAtStartOnly      bool
}

func NewContainer() *Container {
	return &Container{NamedContent: map[string]Object{}}
}

func (c *Container) contentName() string {
	return c.Name
}

func (c *Container) hasValidName() bool {
	return c.Name != ""
}

// AddContent appends a child to the indexed content, wiring up its parent
// link and registering it under its name if it has one.
func (c *Container) AddContent(obj Object) {
	c.Content = append(c.Content, obj)
	setParent(obj, c)
	if nc, ok := obj.(namedContent); ok && nc.hasValidName() {
		c.AddToNamedContentOnly(nc)
	}
}

// AddToNamedContentOnly registers a child under its name without appending
// it to the indexed content.
func (c *Container) AddToNamedContentOnly(obj namedContent) {
	setParent(obj, c)
	c.NamedContent[obj.contentName()] = obj
}

// NamedOnlyContent returns the named children that are not also part of the
// indexed content.
func (c *Container) NamedOnlyContent() map[string]Object {
	named := map[string]Object{}
	for name, obj := range c.NamedContent {
		named[name] = obj
	}
	for _, obj := range c.Content {
		if nc, ok := obj.(namedContent); ok && nc.hasValidName() {
			delete(named, nc.contentName())
		}
	}
	return named
}

// CountFlags packs the three counting booleans into the serialized bitfield.
// A lone CountStartOnly flag is meaningless and normalizes to zero.
func (c *Container) CountFlags() int {
	flags := 0
	if c.VisitsShouldBeCounted {
		flags |= CountFlagVisits
	}
	if c.TurnIndexShouldBeCounted {
		flags |= CountFlagTurns
	}
	if c.CountingAtStartOnly {
		flags |= CountFlagCountStartOnly
	}
	if flags == CountFlagCountStartOnly {
		flags = 0
	}
	return flags
}

// SetCountFlags unpacks the serialized bitfield.
func (c *Container) SetCountFlags(flags int) {
	if flags&CountFlagVisits > 0 {
		c.VisitsShouldBeCounted = true
	}
	if flags&CountFlagTurns > 0 {
		c.TurnIndexShouldBeCounted = true
	}
	if flags&CountFlagCountStartOnly > 0 {
		c.CountingAtStartOnly = true
	}
}

func (c *Container) indexOfContent(obj Object) int {
	for i, child := range c.Content {
		if child == obj {
			return i
		}
	}
	return -1
}

// ContentAtPath walks all of the path's components from this container;
// ContentAtPathSegment walks them from index partialPathStart up to, but not
// including, index partialPathLength, and a length of -1 walks to the end of
// the path. If the walk
// terminates early, the last successfully reached object is returned with
// Approximate set.
func (c *Container) ContentAtPath(path *Path) SearchResult {
	return c.ContentAtPathSegment(path, 0, -1)
}

func (c *Container) ContentAtPathSegment(path *Path, partialPathStart, partialPathLength int) SearchResult {
	if partialPathLength == -1 {
		partialPathLength = path.Length()
	}

	result := SearchResult{}
	currentContainer := c
	var currentObj Object = c

	for i := partialPathStart; i < partialPathLength; i++ {
		comp := path.Component(i)
		if currentContainer == nil {
			result.Approximate = true
			break
		}
		foundObj := currentContainer.ContentWithPathComponent(comp)
		if foundObj == nil {
			result.Approximate = true
			break
		}
		currentObj = foundObj
		currentContainer, _ = foundObj.(*Container)
	}

	result.Obj = currentObj
	return result
}

// ContentWithPathComponent resolves a single component against this
// container, or returns nil when it does not resolve.
func (c *Container) ContentWithPathComponent(component Component) Object {
	if component.IsIndex() {
		if component.Index >= 0 && component.Index < len(c.Content) {
			return c.Content[component.Index]
		}
		return nil
	}
	if component.IsParent() {
		return c.parent
	}
	if obj, ok := c.NamedContent[component.Name]; ok {
		return obj
	}
	return nil
}
