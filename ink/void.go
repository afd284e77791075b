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

// Void is the sentinel pushed when a function produces no value, so that
// callers of the evaluation stack never desynchronize.
type Void struct {
	objectBase
}

func NewVoid() *Void {
	return &Void{}
}

func (v *Void) String() string {
	return "Void"
}
