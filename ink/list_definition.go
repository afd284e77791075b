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

// ListDefinition is one authored LIST: its name plus the item names and
// their integer values.
type ListDefinition struct {
	name            string
	itemNameToValue map[string]int
}

func NewListDefinition(name string, items map[string]int) *ListDefinition {
	itemsCopy := make(map[string]int, len(items))
	for k, v := range items {
		itemsCopy[k] = v
	}
	return &ListDefinition{name: name, itemNameToValue: itemsCopy}
}

func (d *ListDefinition) Name() string {
	return d.name
}

// Items returns the definition's entries as fully qualified list items.
func (d *ListDefinition) Items() map[ListItem]int {
	items := make(map[ListItem]int, len(d.itemNameToValue))
	for name, value := range d.itemNameToValue {
		items[ListItem{OriginName: d.name, ItemName: name}] = value
	}
	return items
}

func (d *ListDefinition) ItemNameToValue() map[string]int {
	return d.itemNameToValue
}

func (d *ListDefinition) ContainsItemWithName(itemName string) bool {
	_, ok := d.itemNameToValue[itemName]
	return ok
}

func (d *ListDefinition) ValueForItem(item ListItem) (int, bool) {
	v, ok := d.itemNameToValue[item.ItemName]
	return v, ok
}

// ItemWithValue finds the item carrying the given value, if any.
func (d *ListDefinition) ItemWithValue(value int) (ListItem, bool) {
	for name, v := range d.itemNameToValue {
		if v == value {
			return ListItem{OriginName: d.name, ItemName: name}, true
		}
	}
	return ListItem{}, false
}

// ListDefinitionsOrigin indexes all list definitions of a story, including a
// cache from bare item names to single-entry list values for variable-style
// item references.
type ListDefinitionsOrigin struct {
	lists                        map[string]*ListDefinition
	allUnambiguousListValueCache map[string]*ListValue
}

func NewListDefinitionsOrigin(defs []*ListDefinition) *ListDefinitionsOrigin {
	origin := &ListDefinitionsOrigin{
		lists:                        map[string]*ListDefinition{},
		allUnambiguousListValueCache: map[string]*ListValue{},
	}
	for _, def := range defs {
		origin.lists[def.Name()] = def
		for item, value := range def.Items() {
			listValue := NewListValueWithItem(item, value)
			// Ambiguous names would have been caught by the compiler, so a
			// replacement here is acceptable.
			origin.allUnambiguousListValueCache[item.ItemName] = listValue
			origin.allUnambiguousListValueCache[item.FullName()] = listValue
		}
	}
	return origin
}

func (o *ListDefinitionsOrigin) Lists() []*ListDefinition {
	result := make([]*ListDefinition, 0, len(o.lists))
	for _, def := range o.lists {
		result = append(result, def)
	}
	return result
}

func (o *ListDefinitionsOrigin) TryListGetDefinition(name string) (*ListDefinition, bool) {
	def, ok := o.lists[name]
	return def, ok
}

// FindSingleItemListWithName resolves a bare or fully qualified item name to
// a single-entry list value.
func (o *ListDefinitionsOrigin) FindSingleItemListWithName(name string) *ListValue {
	return o.allUnambiguousListValueCache[name]
}
