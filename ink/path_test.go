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

func TestPath_ParseAbsolutePath(t *testing.T) {
	p := NewPathFromString("knot.stitch.3")

	if p.IsRelative() {
		t.Fatalf("expected absolute path, got relative")
	}
	if want, got := 3, p.Length(); want != got {
		t.Fatalf("expected %d components, got %d", want, got)
	}
	if want, got := "knot", p.Component(0).Name; want != got {
		t.Errorf("expected first component %q, got %q", want, got)
	}
	if !p.Component(2).IsIndex() {
		t.Errorf("expected last component to be an index")
	}
	if want, got := 3, p.Component(2).Index; want != got {
		t.Errorf("expected index %d, got %d", want, got)
	}
}

func TestPath_ParseRelativePath(t *testing.T) {
	p := NewPathFromString(".^.^.sibling")

	if !p.IsRelative() {
		t.Fatalf("expected relative path")
	}
	if want, got := 3, p.Length(); want != got {
		t.Fatalf("expected %d components, got %d", want, got)
	}
	if !p.Component(0).IsParent() || !p.Component(1).IsParent() {
		t.Errorf("expected leading parent components")
	}
}

func TestPath_StringRoundTrip(t *testing.T) {
	for _, str := range []string{"a.b.2", ".^.sibling", "0.g-0.c-1", "knot"} {
		if want, got := str, NewPathFromString(str).String(); want != got {
			t.Errorf("expected round trip of %q, got %q", want, got)
		}
	}
}

func TestPath_EmptyPathHasNoComponents(t *testing.T) {
	p := NewPath()
	if want, got := 0, p.Length(); want != got {
		t.Errorf("expected empty path, got %d components", got)
	}
	if _, ok := p.LastComponent(); ok {
		t.Errorf("expected no last component on empty path")
	}
}

func TestPath_AppendConsumesParentMarkers(t *testing.T) {
	base := NewPathFromString("a.b.c")
	appended := base.PathByAppendingPath(NewPathFromString(".^.^.x"))

	if want, got := "a.x", appended.String(); want != got {
		t.Errorf("expected appended path %q, got %q", want, got)
	}
}

func TestPath_AppendPlainPath(t *testing.T) {
	base := NewPathFromString("a.b")
	appended := base.PathByAppendingPath(NewPathFromString(".c.1"))

	if want, got := "a.b.c.1", appended.String(); want != got {
		t.Errorf("expected appended path %q, got %q", want, got)
	}
}

func TestPath_AppendComponent(t *testing.T) {
	base := NewPathFromString("a.b")
	appended := base.PathByAppendingComponent(IndexComponent(4))

	if want, got := "a.b.4", appended.String(); want != got {
		t.Errorf("expected appended path %q, got %q", want, got)
	}
	// The original must be untouched.
	if want, got := "a.b", base.String(); want != got {
		t.Errorf("expected base path unchanged as %q, got %q", want, got)
	}
}

func TestPath_Equality(t *testing.T) {
	tests := map[string]struct {
		a, b  string
		equal bool
	}{
		"identical":          {"a.b.1", "a.b.1", true},
		"different index":    {"a.b.1", "a.b.2", false},
		"different length":   {"a.b", "a.b.1", false},
		"relative mismatch":  {".a.b", "a.b", false},
		"relative identical": {".^.b", ".^.b", true},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			a, b := NewPathFromString(test.a), NewPathFromString(test.b)
			if want, got := test.equal, a.Equals(b); want != got {
				t.Errorf("expected equality %t, got %t", want, got)
			}
		})
	}
}

func TestPath_TailOfSingleComponentIsSelfPath(t *testing.T) {
	p := NewPathFromString(".^")
	tail := p.Tail()
	if want, got := 0, tail.Length(); want != got {
		t.Errorf("expected self path, got %d components", got)
	}
	if !tail.IsRelative() {
		t.Errorf("expected self path to be relative")
	}
}

func TestPath_ContainsNamedComponent(t *testing.T) {
	if NewPathFromString("0.1.2").ContainsNamedComponent() {
		t.Errorf("pure index path should not contain named components")
	}
	if !NewPathFromString("0.knot.2").ContainsNamedComponent() {
		t.Errorf("expected named component to be detected")
	}
}
