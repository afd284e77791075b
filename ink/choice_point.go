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

import "fmt"

// ChoicePoint flag bits, as serialized in the "flg" field.
const (
	choiceFlagCondition         = 1
	choiceFlagStartContent      = 2
	choiceFlagChoiceOnlyContent = 4
	choiceFlagInvisibleDefault  = 8
	choiceFlagOnceOnly          = 16
)

// ChoicePoint marks the authored location of a choice: a reference to the
// content that runs when it is taken, plus flags governing how the runtime
// builds (or suppresses) the player-visible Choice.
type ChoicePoint struct {
	objectBase

	HasCondition         bool
	HasStartContent      bool
	HasChoiceOnlyContent bool
	IsInvisibleDefault   bool
	OnceOnly             bool

	pathOnChoice *Path
}

func NewChoicePoint() *ChoicePoint {
	return &ChoicePoint{OnceOnly: true}
}

// PathOnChoice is the target content's path. A relative path is rewritten
// to the target's absolute path on first resolution.
func (c *ChoicePoint) PathOnChoice() *Path {
	if c.pathOnChoice != nil && c.pathOnChoice.IsRelative() {
		if target := c.ChoiceTarget(); target != nil {
			c.pathOnChoice = PathOf(target)
		}
	}
	return c.pathOnChoice
}

func (c *ChoicePoint) SetPathOnChoice(path *Path) {
	c.pathOnChoice = path
}

// ChoiceTarget resolves the container holding the choice's content.
func (c *ChoicePoint) ChoiceTarget() *Container {
	return ResolvePath(c, c.pathOnChoice).Container()
}

func (c *ChoicePoint) PathStringOnChoice() string {
	return CompactPathString(c, c.PathOnChoice())
}

func (c *ChoicePoint) SetPathStringOnChoice(value string) {
	c.pathOnChoice = NewPathFromString(value)
}

func (c *ChoicePoint) Flags() int {
	flags := 0
	if c.HasCondition {
		flags |= choiceFlagCondition
	}
	if c.HasStartContent {
		flags |= choiceFlagStartContent
	}
	if c.HasChoiceOnlyContent {
		flags |= choiceFlagChoiceOnlyContent
	}
	if c.IsInvisibleDefault {
		flags |= choiceFlagInvisibleDefault
	}
	if c.OnceOnly {
		flags |= choiceFlagOnceOnly
	}
	return flags
}

func (c *ChoicePoint) SetFlags(flags int) {
	c.HasCondition = flags&choiceFlagCondition > 0
	c.HasStartContent = flags&choiceFlagStartContent > 0
	c.HasChoiceOnlyContent = flags&choiceFlagChoiceOnlyContent > 0
	c.IsInvisibleDefault = flags&choiceFlagInvisibleDefault > 0
	c.OnceOnly = flags&choiceFlagOnceOnly > 0
}

func (c *ChoicePoint) String() string {
	return fmt.Sprintf("Choice: -> %s", c.PathOnChoice())
}
