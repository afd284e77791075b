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

// Object is a single node in the story graph. All node variants embed
// objectBase; the graph is created by the loader and read-only afterwards,
// except for the lazily cached path of each node.
type Object interface {
	base() *objectBase
}

type objectBase struct {
	parent Object
	path   *Path // lazily computed absolute path, cached
}

func (b *objectBase) base() *objectBase { return b }

// namedContent is implemented by objects that can live in a container's
// named content. Currently only containers carry names.
type namedContent interface {
	Object
	contentName() string
	hasValidName() bool
}

// ParentOf returns the node's enclosing object, or nil at the root.
func ParentOf(o Object) Object {
	return o.base().parent
}

func setParent(child Object, parent Object) {
	child.base().parent = parent
}

// RootOf walks parent links to the root container of the graph the object
// belongs to.
func RootOf(o Object) *Container {
	ancestor := o
	for ancestor.base().parent != nil {
		ancestor = ancestor.base().parent
	}
	if c, ok := ancestor.(*Container); ok {
		return c
	}
	return nil
}

// PathOf computes the absolute path of the object within its graph. The
// result is cached on the object.
func PathOf(o Object) *Path {
	b := o.base()
	if b.path != nil {
		return b.path
	}

	if b.parent == nil {
		b.path = NewPath()
		return b.path
	}

	var components []Component
	child := o
	container, _ := ParentOf(child).(*Container)
	for container != nil {
		if nc, ok := child.(namedContent); ok && nc.hasValidName() {
			components = append([]Component{NameComponent(nc.contentName())}, components...)
		} else {
			components = append([]Component{IndexComponent(container.indexOfContent(child))}, components...)
		}
		child = container
		container, _ = ParentOf(child).(*Container)
	}

	b.path = NewPath(components...)
	return b.path
}

// ResolvePath resolves a path against this object: relative paths walk from
// the nearest enclosing container, absolute paths from the root.
func ResolvePath(o Object, path *Path) SearchResult {
	if path.IsRelative() {
		nearestContainer, ok := o.(*Container)
		if !ok {
			// The first parent marker hops to our own container; any further
			// markers are handled by the walk itself.
			nearestContainer, _ = ParentOf(o).(*Container)
			path = path.Tail()
		}
		if nearestContainer == nil {
			return SearchResult{Approximate: true}
		}
		return nearestContainer.ContentAtPath(path)
	}
	return RootOf(o).ContentAtPath(path)
}

// ConvertPathToRelative rewrites a global path as a path relative to this
// object, using parent markers to climb out of unshared ancestry.
func ConvertPathToRelative(o Object, globalPath *Path) *Path {
	ownPath := PathOf(o)

	minLength := min(ownPath.Length(), globalPath.Length())
	lastSharedPathCompIndex := -1
	for i := 0; i < minLength; i++ {
		if ownPath.Component(i) != globalPath.Component(i) {
			break
		}
		lastSharedPathCompIndex = i
	}

	// No shared ancestry, so stay absolute.
	if lastSharedPathCompIndex == -1 {
		return globalPath
	}

	numUpwardsMoves := ownPath.Length() - 1 - lastSharedPathCompIndex
	var components []Component
	for i := 0; i < numUpwardsMoves; i++ {
		components = append(components, ParentComponent())
	}
	for i := lastSharedPathCompIndex + 1; i < globalPath.Length(); i++ {
		components = append(components, globalPath.Component(i))
	}
	return NewRelativePath(components...)
}

// CompactPathString picks the shorter of the relative and absolute string
// forms of a target path, seen from this object.
func CompactPathString(o Object, otherPath *Path) string {
	var globalPathStr, relativePathStr string
	if otherPath.IsRelative() {
		relativePathStr = otherPath.String()
		globalPathStr = PathOf(o).PathByAppendingPath(otherPath).String()
	} else {
		relativePath := ConvertPathToRelative(o, otherPath)
		relativePathStr = relativePath.String()
		globalPathStr = otherPath.String()
	}

	if len(relativePathStr) < len(globalPathStr) {
		return relativePathStr
	}
	return globalPathStr
}
