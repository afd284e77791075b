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
	"math"
	"sort"
	"strings"
)

// ListItem identifies a single entry of an authored LIST: the defining
// list's name plus the item's name within it.
type ListItem struct {
	OriginName string
	ItemName   string
}

// ListItemFromFullName splits an "origin.item" name.
func ListItemFromFullName(fullName string) ListItem {
	origin, item, found := strings.Cut(fullName, ".")
	if !found {
		return ListItem{ItemName: fullName}
	}
	return ListItem{OriginName: origin, ItemName: item}
}

// FullName is the "origin.item" form; an unknown origin renders as "?".
func (i ListItem) FullName() string {
	origin := i.OriginName
	if origin == "" {
		origin = "?"
	}
	return origin + "." + i.ItemName
}

func (i ListItem) String() string {
	return i.FullName()
}

// List is the runtime value of a list expression: a set of items, each with
// its integer value, plus the names of the origin lists the value is
// associated with. Operations return new lists.
type List struct {
	items       map[ListItem]int
	originNames []string
	origins     []*ListDefinition
}

func NewList() *List {
	return &List{items: map[ListItem]int{}}
}

// NewListFromList copies another list's items and origins.
func NewListFromList(other *List) *List {
	l := NewList()
	for item, value := range other.items {
		l.items[item] = value
	}
	l.originNames = append(l.originNames, other.originNames...)
	l.origins = append(l.origins, other.origins...)
	return l
}

func (l *List) Count() int {
	return len(l.items)
}

// Set adds or replaces an item with the given value.
func (l *List) Set(item ListItem, value int) {
	l.items[item] = value
}

// Get returns the value of an item, if present.
func (l *List) Get(item ListItem) (int, bool) {
	v, ok := l.items[item]
	return v, ok
}

// ContainsItemNamed reports whether any entry has the given item name.
func (l *List) ContainsItemNamed(itemName string) bool {
	for item := range l.items {
		if item.ItemName == itemName {
			return true
		}
	}
	return false
}

// OriginNames returns the origin-list names associated with the list. For a
// non-empty list these are recomputed from the items themselves.
func (l *List) OriginNames() []string {
	if len(l.items) > 0 {
		l.originNames = l.originNames[:0]
		seen := map[string]bool{}
		for item := range l.items {
			if !seen[item.OriginName] {
				seen[item.OriginName] = true
				l.originNames = append(l.originNames, item.OriginName)
			}
		}
		sort.Strings(l.originNames)
	}
	return l.originNames
}

// SetInitialOriginNames primes the origin names before any items exist.
func (l *List) SetInitialOriginNames(names []string) {
	l.originNames = append([]string(nil), names...)
}

// entry is an item together with its value, for ordered iteration.
type entry struct {
	item  ListItem
	value int
}

// orderedItems returns the entries sorted by value, with item names breaking
// ties, giving list iteration a stable order.
func (l *List) orderedItems() []entry {
	ordered := make([]entry, 0, len(l.items))
	for item, value := range l.items {
		ordered = append(ordered, entry{item, value})
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].value != ordered[j].value {
			return ordered[i].value < ordered[j].value
		}
		return ordered[i].item.FullName() < ordered[j].item.FullName()
	})
	return ordered
}

// MinItem returns the entry with the smallest value.
func (l *List) MinItem() (ListItem, int, bool) {
	found := false
	var minItem ListItem
	minValue := math.MaxInt
	for item, value := range l.items {
		if !found || value < minValue || (value == minValue && item.FullName() < minItem.FullName()) {
			minItem, minValue, found = item, value, true
		}
	}
	return minItem, minValue, found
}

// MaxItem returns the entry with the largest value.
func (l *List) MaxItem() (ListItem, int, bool) {
	found := false
	var maxItem ListItem
	maxValue := math.MinInt
	for item, value := range l.items {
		if !found || value > maxValue || (value == maxValue && item.FullName() < maxItem.FullName()) {
			maxItem, maxValue, found = item, value, true
		}
	}
	return maxItem, maxValue, found
}

// MinAsList returns a single-entry list with the smallest entry, or an empty
// list.
func (l *List) MinAsList() *List {
	result := NewList()
	if item, value, ok := l.MinItem(); ok {
		result.items[item] = value
	}
	return result
}

// MaxAsList returns a single-entry list with the largest entry, or an empty
// list.
func (l *List) MaxAsList() *List {
	result := NewList()
	if item, value, ok := l.MaxItem(); ok {
		result.items[item] = value
	}
	return result
}

// All returns every item of every origin list this list is associated with.
func (l *List) All() *List {
	result := NewList()
	for _, origin := range l.origins {
		for item, value := range origin.Items() {
			result.items[item] = value
		}
	}
	return result
}

// Inverse returns the items of the origin lists that are not in this list.
func (l *List) Inverse() *List {
	result := NewList()
	for _, origin := range l.origins {
		for item, value := range origin.Items() {
			if _, ok := l.items[item]; !ok {
				result.items[item] = value
			}
		}
	}
	return result
}

// Union combines the entries of both lists.
func (l *List) Union(other *List) *List {
	result := NewListFromList(l)
	for item, value := range other.items {
		result.items[item] = value
	}
	return result
}

// Intersect keeps the entries present in both lists.
func (l *List) Intersect(other *List) *List {
	result := NewList()
	for item, value := range l.items {
		if _, ok := other.items[item]; ok {
			result.items[item] = value
		}
	}
	return result
}

// HasIntersection reports whether any entry is shared between the lists.
func (l *List) HasIntersection(other *List) bool {
	for item := range l.items {
		if _, ok := other.items[item]; ok {
			return true
		}
	}
	return false
}

// Without removes the other list's entries from this one.
func (l *List) Without(other *List) *List {
	result := NewListFromList(l)
	for item := range other.items {
		delete(result.items, item)
	}
	return result
}

// Contains reports whether all of the other list's entries are present, and
// the other list is non-empty.
func (l *List) Contains(other *List) bool {
	if other.Count() == 0 || l.Count() == 0 {
		return false
	}
	for item := range other.items {
		if _, ok := l.items[item]; !ok {
			return false
		}
	}
	return true
}

// GreaterThan: the smallest entry of this list beats the largest of the
// other. An empty list never wins; anything beats an empty list.
func (l *List) GreaterThan(other *List) bool {
	if l.Count() == 0 {
		return false
	}
	if other.Count() == 0 {
		return true
	}
	_, minValue, _ := l.MinItem()
	_, otherMax, _ := other.MaxItem()
	return minValue > otherMax
}

func (l *List) GreaterThanOrEquals(other *List) bool {
	if l.Count() == 0 {
		return false
	}
	if other.Count() == 0 {
		return true
	}
	_, minValue, _ := l.MinItem()
	_, maxValue, _ := l.MaxItem()
	_, otherMin, _ := other.MinItem()
	_, otherMax, _ := other.MaxItem()
	return minValue >= otherMin && maxValue >= otherMax
}

func (l *List) LessThan(other *List) bool {
	if other.Count() == 0 {
		return false
	}
	if l.Count() == 0 {
		return true
	}
	_, maxValue, _ := l.MaxItem()
	_, otherMin, _ := other.MinItem()
	return maxValue < otherMin
}

func (l *List) LessThanOrEquals(other *List) bool {
	if other.Count() == 0 {
		return false
	}
	if l.Count() == 0 {
		return true
	}
	_, minValue, _ := l.MinItem()
	_, maxValue, _ := l.MaxItem()
	_, otherMin, _ := other.MinItem()
	_, otherMax, _ := other.MaxItem()
	return maxValue <= otherMax && minValue <= otherMin
}

// Equals is set equality over entries.
func (l *List) Equals(other *List) bool {
	if other == nil || other.Count() != l.Count() {
		return false
	}
	for item := range l.items {
		if _, ok := other.items[item]; !ok {
			return false
		}
	}
	return true
}

// ListWithSubRange keeps the entries whose values fall inclusively between
// the bounds. Bounds may be ints or lists; a list bound uses its min/max
// entry value.
func (l *List) ListWithSubRange(minBound, maxBound any) *List {
	minValue := 0
	maxValue := math.MaxInt
	switch b := minBound.(type) {
	case int:
		minValue = b
	case *List:
		if _, v, ok := b.MinItem(); ok {
			minValue = v
		}
	}
	switch b := maxBound.(type) {
	case int:
		maxValue = b
	case *List:
		if _, v, ok := b.MaxItem(); ok {
			maxValue = v
		}
	}

	sublist := NewList()
	sublist.SetInitialOriginNames(l.OriginNames())
	for _, e := range l.orderedItems() {
		if e.value >= minValue && e.value <= maxValue {
			sublist.items[e.item] = e.value
		}
	}
	return sublist
}

// originOfMaxItem returns the definition of the origin list that the
// largest entry belongs to.
func (l *List) originOfMaxItem() *ListDefinition {
	item, _, ok := l.MaxItem()
	if !ok {
		return nil
	}
	for _, origin := range l.origins {
		if origin.Name() == item.OriginName {
			return origin
		}
	}
	return nil
}

// resolveOrigins binds the list's origin names to their definitions. Called
// whenever a list value passes through the evaluation stack, so that ALL and
// LIST_INVERT have the definitions to hand.
func (l *List) resolveOrigins(defs *ListDefinitionsOrigin) {
	names := l.OriginNames()
	if len(names) == 0 || defs == nil {
		return
	}
	l.origins = l.origins[:0]
	for _, name := range names {
		if def, ok := defs.TryListGetDefinition(name); ok {
			l.origins = append(l.origins, def)
		}
	}
}

// MaxItemValue is the value carried by the largest entry, or zero for an
// empty list.
func (l *List) MaxItemValue() int {
	_, value, ok := l.MaxItem()
	if !ok {
		return 0
	}
	return value
}

// String renders the item names in value order, comma separated.
func (l *List) String() string {
	ordered := l.orderedItems()
	names := make([]string, len(ordered))
	for i, e := range ordered {
		names[i] = e.item.ItemName
	}
	return strings.Join(names, ", ")
}
