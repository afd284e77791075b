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

import "testing"

// buildTestTree creates
//
//	root
//	├── "first"           (index 0)
//	├── knot              (index 1, named "knot")
//	│   ├── "a"           (index 0)
//	│   └── stitch        (index 1, named "stitch")
//	│       └── "deep"    (index 0)
//	└── "last"            (index 2)
func buildTestTree() *Container {
	root := NewContainer()
	root.AddContent(NewStringValue("first"))

	knot := NewContainer()
	knot.Name = "knot"
	knot.AddContent(NewStringValue("a"))

	stitch := NewContainer()
	stitch.Name = "stitch"
	stitch.AddContent(NewStringValue("deep"))
	knot.AddContent(stitch)

	root.AddContent(knot)
	root.AddContent(NewStringValue("last"))
	return root
}

func TestContainer_AddContentSetsParentAndName(t *testing.T) {
	root := buildTestTree()

	knot, ok := root.NamedContent["knot"]
	if !ok {
		t.Fatalf("expected named child 'knot' to be registered")
	}
	if ParentOf(knot) != Object(root) {
		t.Errorf("expected knot's parent to be the root")
	}
	if want, got := 3, len(root.Content); want != got {
		t.Errorf("expected %d children, got %d", want, got)
	}
}

func TestContainer_ContentAtPath_Exact(t *testing.T) {
	root := buildTestTree()

	result := root.ContentAtPath(NewPathFromString("knot.stitch.0"))
	if result.Approximate {
		t.Fatalf("expected exact resolution")
	}
	str, ok := result.Obj.(*StringValue)
	if !ok {
		t.Fatalf("expected a string value, got %T", result.Obj)
	}
	if want, got := "deep", str.Value; want != got {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestContainer_ContentAtPath_ApproximatesToLastReached(t *testing.T) {
	root := buildTestTree()

	result := root.ContentAtPath(NewPathFromString("knot.missing.7"))
	if !result.Approximate {
		t.Fatalf("expected approximate resolution")
	}
	container, ok := result.Obj.(*Container)
	if !ok {
		t.Fatalf("expected last reached object to be a container, got %T", result.Obj)
	}
	if want, got := "knot", container.Name; want != got {
		t.Errorf("expected approximation to stop at %q, got %q", want, got)
	}
	if result.CorrectObj() != nil {
		t.Errorf("expected CorrectObj to be nil for approximate results")
	}
}

func TestContainer_ContentAtPath_IndexOutOfRange(t *testing.T) {
	root := buildTestTree()

	result := root.ContentAtPath(NewPathFromString("9"))
	if !result.Approximate {
		t.Fatalf("expected approximate resolution for out-of-range index")
	}
	if result.Obj != Object(root) {
		t.Errorf("expected approximation to be the starting container")
	}
}

func TestContainer_ContentWithParentComponent(t *testing.T) {
	root := buildTestTree()
	knot := root.Content[1].(*Container)

	if knot.ContentWithPathComponent(ParentComponent()) != Object(root) {
		t.Errorf("expected parent component to resolve to root")
	}
}

func TestContainer_CountFlags_NormalizesLoneCountStartOnly(t *testing.T) {
	c := NewContainer()
	c.CountingAtStartOnly = true

	if want, got := 0, c.CountFlags(); want != got {
		t.Errorf("expected lone CountStartOnly to normalize to %d, got %d", want, got)
	}

	c.VisitsShouldBeCounted = true
	if want, got := CountFlagVisits|CountFlagCountStartOnly, c.CountFlags(); want != got {
		t.Errorf("expected flags %d, got %d", want, got)
	}
}

func TestContainer_SetCountFlags(t *testing.T) {
	c := NewContainer()
	c.SetCountFlags(CountFlagVisits | CountFlagTurns)

	if !c.VisitsShouldBeCounted || !c.TurnIndexShouldBeCounted {
		t.Errorf("expected visit and turn counting enabled")
	}
	if c.CountingAtStartOnly {
		t.Errorf("did not expect start-only counting")
	}
}

func TestPathOf_IsLazyAndUsesNames(t *testing.T) {
	root := buildTestTree()
	stitch := root.Content[1].(*Container).Content[1].(*Container)
	deep := stitch.Content[0]

	if want, got := "knot.stitch.0", PathOf(deep).String(); want != got {
		t.Errorf("expected path %q, got %q", want, got)
	}
	if want, got := "knot.stitch", PathOf(stitch).String(); want != got {
		t.Errorf("expected path %q, got %q", want, got)
	}
	// The cached path must be returned again.
	if PathOf(deep) != PathOf(deep) {
		t.Errorf("expected cached path to be reused")
	}
}

func TestResolvePath_RelativeFromLeaf(t *testing.T) {
	root := buildTestTree()
	knot := root.Content[1].(*Container)
	a := knot.Content[0]

	result := ResolvePath(a, NewPathFromString(".^.stitch"))
	if result.Approximate {
		t.Fatalf("expected exact resolution")
	}
	container := result.Container()
	if container == nil || container.Name != "stitch" {
		t.Errorf("expected to resolve to the stitch container")
	}
}

func TestCompactPathString_PrefersShorterForm(t *testing.T) {
	root := buildTestTree()
	stitch := root.Content[1].(*Container).Content[1].(*Container)
	deep := stitch.Content[0]

	// From "deep", a nearby target has a shorter relative form.
	compact := CompactPathString(deep, NewPathFromString("knot.stitch"))
	if want, got := ".^", compact; want != got {
		t.Errorf("expected compact string %q, got %q", want, got)
	}

	// A far-away target keeps its global form.
	compact = CompactPathString(deep, NewPathFromString("0"))
	if want, got := "0", compact; want != got {
		t.Errorf("expected compact string %q, got %q", want, got)
	}
}

func TestCompactPathString_RoundTripsToSameObject(t *testing.T) {
	root := buildTestTree()
	stitch := root.Content[1].(*Container).Content[1].(*Container)
	deep := stitch.Content[0]

	for _, target := range []string{"knot.0", "0", "knot.1", "knot.stitch"} {
		path := NewPathFromString(target)
		original := root.ContentAtPath(path)
		if original.Approximate {
			t.Fatalf("test path %q did not resolve exactly", target)
		}

		compact := CompactPathString(deep, path)
		resolved := ResolvePath(deep, NewPathFromString(compact))
		if resolved.Approximate {
			t.Fatalf("compact path %q did not resolve exactly", compact)
		}
		if resolved.Obj != original.Obj {
			t.Errorf("expected compact path %q to round trip to the same object", compact)
		}
	}
}

func TestPointer_ResolveAndPath(t *testing.T) {
	root := buildTestTree()
	knot := root.Content[1].(*Container)

	p := Pointer{Container: knot, Index: 1}
	if want, got := "knot.1", p.Path().String(); want != got {
		t.Errorf("expected pointer path %q, got %q", want, got)
	}

	resolved, ok := p.Resolve().(*Container)
	if !ok || resolved.Name != "stitch" {
		t.Errorf("expected pointer to resolve to the stitch container")
	}

	self := Pointer{Container: knot, Index: -1}
	if self.Resolve() != Object(knot) {
		t.Errorf("expected negative index to resolve to the container itself")
	}

	past := Pointer{Container: knot, Index: 99}
	if past.Resolve() != nil {
		t.Errorf("expected out-of-range pointer to resolve to nil")
	}

	if !NullPointer.IsNull() {
		t.Errorf("expected the null pointer to be null")
	}
}
