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

// VariableAssignment pops a value from the evaluation stack and writes it to
// the named variable, either declaring it or reassigning it.
type VariableAssignment struct {
	objectBase

	VariableName     string
	IsNewDeclaration bool
	IsGlobal         bool
}

func NewVariableAssignment(name string, isNewDeclaration bool) *VariableAssignment {
	return &VariableAssignment{VariableName: name, IsNewDeclaration: isNewDeclaration}
}

func (a *VariableAssignment) String() string {
	return "VarAssign to " + a.VariableName
}
