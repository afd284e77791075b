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

func hueDefinition() *ListDefinition {
	return NewListDefinition("hues", map[string]int{
		"red": 1, "orange": 2, "yellow": 3, "green": 4, "blue": 5,
	})
}

func listOf(def *ListDefinition, names ...string) *List {
	l := NewList()
	for _, name := range names {
		item := ListItem{OriginName: def.Name(), ItemName: name}
		value, _ := def.ValueForItem(item)
		l.Set(item, value)
	}
	l.origins = []*ListDefinition{def}
	return l
}

func TestList_MinMax(t *testing.T) {
	def := hueDefinition()
	l := listOf(def, "orange", "blue", "red")

	item, value, ok := l.MinItem()
	if !ok {
		t.Fatalf("expected a minimum")
	}
	if want, got := "red", item.ItemName; want != got {
		t.Errorf("expected min item %q, got %q", want, got)
	}
	if want, got := 1, value; want != got {
		t.Errorf("expected min value %d, got %d", want, got)
	}

	item, value, ok = l.MaxItem()
	if !ok {
		t.Fatalf("expected a maximum")
	}
	if want, got := "blue", item.ItemName; want != got {
		t.Errorf("expected max item %q, got %q", want, got)
	}
	if want, got := 5, value; want != got {
		t.Errorf("expected max value %d, got %d", want, got)
	}

	if _, _, ok := NewList().MinItem(); ok {
		t.Errorf("expected no minimum on an empty list")
	}
}

func TestList_SetOperations(t *testing.T) {
	def := hueDefinition()
	warm := listOf(def, "red", "orange", "yellow")
	cool := listOf(def, "yellow", "green", "blue")

	union := warm.Union(cool)
	if want, got := 5, union.Count(); want != got {
		t.Errorf("expected union of %d items, got %d", want, got)
	}

	intersection := warm.Intersect(cool)
	if want, got := 1, intersection.Count(); want != got {
		t.Fatalf("expected intersection of %d item, got %d", want, got)
	}
	if !intersection.ContainsItemNamed("yellow") {
		t.Errorf("expected intersection to contain yellow")
	}

	without := warm.Without(cool)
	if want, got := 2, without.Count(); want != got {
		t.Errorf("expected %d items after subtraction, got %d", want, got)
	}
	if without.ContainsItemNamed("yellow") {
		t.Errorf("expected yellow to be removed")
	}

	if !warm.HasIntersection(cool) {
		t.Errorf("expected overlapping lists to intersect")
	}
	if warm.Contains(cool) {
		t.Errorf("warm does not contain all of cool")
	}
	if !warm.Contains(listOf(def, "red", "yellow")) {
		t.Errorf("expected warm to contain its subset")
	}
	if warm.Contains(NewList()) {
		t.Errorf("the empty list is not contained by convention")
	}
}

func TestList_Comparisons(t *testing.T) {
	def := hueDefinition()
	low := listOf(def, "red", "orange")
	high := listOf(def, "green", "blue")

	if !high.GreaterThan(low) {
		t.Errorf("expected high > low")
	}
	if low.GreaterThan(high) {
		t.Errorf("expected low not > high")
	}
	if !low.LessThan(high) {
		t.Errorf("expected low < high")
	}
	if !high.GreaterThanOrEquals(low) {
		t.Errorf("expected high >= low")
	}
	if !low.LessThanOrEquals(high) {
		t.Errorf("expected low <= high")
	}

	// Anything beats an empty list.
	if !low.GreaterThan(NewList()) {
		t.Errorf("expected non-empty > empty")
	}
	if NewList().GreaterThan(low) {
		t.Errorf("expected empty not > non-empty")
	}

	if !low.Equals(listOf(def, "orange", "red")) {
		t.Errorf("expected set equality to ignore order")
	}
	if low.Equals(high) {
		t.Errorf("expected inequality")
	}
}

func TestList_AllAndInverse(t *testing.T) {
	def := hueDefinition()
	some := listOf(def, "red", "blue")

	all := some.All()
	if want, got := 5, all.Count(); want != got {
		t.Errorf("expected all %d items, got %d", want, got)
	}

	inverse := some.Inverse()
	if want, got := 3, inverse.Count(); want != got {
		t.Errorf("expected %d inverse items, got %d", want, got)
	}
	if inverse.ContainsItemNamed("red") {
		t.Errorf("expected red to be excluded from the inverse")
	}
}

func TestList_SubRange(t *testing.T) {
	def := hueDefinition()
	full := listOf(def, "red", "orange", "yellow", "green", "blue")

	mid := full.ListWithSubRange(2, 4)
	if want, got := 3, mid.Count(); want != got {
		t.Fatalf("expected %d items in range, got %d", want, got)
	}
	if mid.ContainsItemNamed("red") || mid.ContainsItemNamed("blue") {
		t.Errorf("expected bounds to exclude extremes")
	}

	// List bounds use the min/max entry values.
	bounded := full.ListWithSubRange(listOf(def, "orange"), listOf(def, "green"))
	if want, got := 3, bounded.Count(); want != got {
		t.Errorf("expected %d items in list-bounded range, got %d", want, got)
	}
}

func TestList_StringOrdersByValue(t *testing.T) {
	def := hueDefinition()
	l := listOf(def, "blue", "red", "yellow")

	if want, got := "red, yellow, blue", l.String(); want != got {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestList_OriginNamesRecomputedFromItems(t *testing.T) {
	l := NewList()
	l.SetInitialOriginNames([]string{"hues"})

	if want, got := 1, len(l.OriginNames()); want != got {
		t.Fatalf("expected initial origin names to survive while empty, got %d", got)
	}

	item := ListItem{OriginName: "moods", ItemName: "calm"}
	l.Set(item, 1)
	names := l.OriginNames()
	if want, got := 1, len(names); want != got {
		t.Fatalf("expected origin names from items, got %d", got)
	}
	if want, got := "moods", names[0]; want != got {
		t.Errorf("expected origin %q, got %q", want, got)
	}
}

func TestListDefinition_Lookups(t *testing.T) {
	def := hueDefinition()

	if !def.ContainsItemWithName("green") {
		t.Errorf("expected green to exist")
	}
	item, ok := def.ItemWithValue(5)
	if !ok {
		t.Fatalf("expected an item with value 5")
	}
	if want, got := "blue", item.ItemName; want != got {
		t.Errorf("expected %q, got %q", want, got)
	}
	if _, ok := def.ItemWithValue(17); ok {
		t.Errorf("expected missing value to be reported")
	}
}

func TestListDefinitionsOrigin_FindSingleItemList(t *testing.T) {
	origin := NewListDefinitionsOrigin([]*ListDefinition{hueDefinition()})

	byBareName := origin.FindSingleItemListWithName("green")
	if byBareName == nil {
		t.Fatalf("expected single-item list for bare name")
	}
	if want, got := 4, byBareName.Value.MaxItemValue(); want != got {
		t.Errorf("expected value %d, got %d", want, got)
	}

	byFullName := origin.FindSingleItemListWithName("hues.green")
	if byFullName == nil {
		t.Fatalf("expected single-item list for full name")
	}
	if origin.FindSingleItemListWithName("nope") != nil {
		t.Errorf("expected nil for unknown item name")
	}
}

func TestListItem_FullName(t *testing.T) {
	item := ListItemFromFullName("hues.red")
	if want, got := "hues", item.OriginName; want != got {
		t.Errorf("expected origin %q, got %q", want, got)
	}
	if want, got := "hues.red", item.FullName(); want != got {
		t.Errorf("expected full name %q, got %q", want, got)
	}

	bare := ListItem{ItemName: "solo"}
	if want, got := "?.solo", bare.FullName(); want != got {
		t.Errorf("expected unknown origin marker in %q, got %q", want, got)
	}
}
