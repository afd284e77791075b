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

// Tag is the legacy single-text tag object. Current content encodes tags as
// BeginTag/EndTag marker pairs in the output stream instead, but legacy tags
// are still accepted on load, and choice tags are transported as Tag values
// on the evaluation stack.
type Tag struct {
	objectBase

	Text string
}

func NewTag(text string) *Tag {
	return &Tag{Text: text}
}

func (t *Tag) String() string {
	return "# " + t.Text
}
