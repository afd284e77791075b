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
	"fmt"
	"strings"
)

// PushPopType classifies call-stack frames and the diverts that create them.
type PushPopType int

const (
	PushPopTunnel PushPopType = iota
	PushPopFunction
	// PushPopFunctionEvaluationFromGame frames are created when the host
	// evaluates an ink function directly rather than through story flow.
	PushPopFunctionEvaluationFromGame
)

func (t PushPopType) String() string {
	switch t {
	case PushPopTunnel:
		return "Tunnel"
	case PushPopFunction:
		return "Function"
	case PushPopFunctionEvaluationFromGame:
		return "FunctionEvaluationFromGame"
	}
	return "unknown"
}

// Divert is a jump to another node: plain, conditional, variable-targeted,
// function- or tunnel-pushing, or a call out to an external function.
type Divert struct {
	objectBase

	PushesToStack bool
	StackPushType PushPopType

	VariableDivertName string
	IsExternal         bool
	ExternalArgs       int
	IsConditional      bool

	targetPath    *Path
	targetPointer Pointer
}

func NewDivert() *Divert {
	return &Divert{}
}

func NewPushDivert(stackPushType PushPopType) *Divert {
	return &Divert{PushesToStack: true, StackPushType: stackPushType}
}

func (d *Divert) HasVariableTarget() bool {
	return d.VariableDivertName != ""
}

// TargetPath is the divert's destination. A relative path is rewritten to
// the target object's absolute path on first resolution.
func (d *Divert) TargetPath() *Path {
	if d.targetPath != nil && d.targetPath.IsRelative() {
		if targetObj := d.TargetPointer().Resolve(); targetObj != nil {
			d.targetPath = PathOf(targetObj)
		}
	}
	return d.targetPath
}

func (d *Divert) SetTargetPath(path *Path) {
	d.targetPath = path
	d.targetPointer = NullPointer
}

// TargetPointer resolves and caches the destination as a pointer.
func (d *Divert) TargetPointer() Pointer {
	if d.targetPointer.IsNull() {
		targetObj := ResolvePath(d, d.targetPath).Obj
		if targetObj == nil {
			return NullPointer
		}
		if last, ok := d.targetPath.LastComponent(); ok && last.IsIndex() {
			container, _ := ParentOf(targetObj).(*Container)
			d.targetPointer = Pointer{Container: container, Index: last.Index}
		} else {
			container, _ := targetObj.(*Container)
			d.targetPointer = StartOf(container)
		}
	}
	return d.targetPointer
}

func (d *Divert) TargetPathString() string {
	if d.TargetPath() == nil {
		return ""
	}
	return CompactPathString(d, d.TargetPath())
}

func (d *Divert) SetTargetPathString(value string) {
	if value == "" {
		d.SetTargetPath(nil)
	} else {
		d.SetTargetPath(NewPathFromString(value))
	}
}

func (d *Divert) String() string {
	if d.HasVariableTarget() {
		return fmt.Sprintf("Divert(variable: %s)", d.VariableDivertName)
	}
	if d.targetPath == nil {
		return "Divert(null)"
	}

	var sb strings.Builder
	sb.WriteString("Divert")
	if d.IsConditional {
		sb.WriteString("?")
	}
	if d.PushesToStack {
		if d.StackPushType == PushPopFunction {
			sb.WriteString(" function")
		} else {
			sb.WriteString(" tunnel")
		}
	}
	fmt.Fprintf(&sb, " -> %s (%s)", d.TargetPathString(), d.targetPath)
	return sb.String()
}
