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

// Choice is a generated, player-selectable option. Choices are produced
// while stepping through choice points and remain valid until the next
// ChooseChoiceIndex or flow switch.
type Choice struct {
	objectBase

	// Text shown to the player.
	Text string

	// Index of the choice within Story.CurrentChoices.
	Index int

	// SourcePath is the path of the originating choice point, for debugging.
	SourcePath string

	// IsInvisibleDefault marks fallback choices the runtime follows
	// automatically when no visible choice remains.
	IsInvisibleDefault bool

	// Tags attached to the choice text.
	Tags []string

	targetPath *Path

	// threadAtGeneration snapshots the thread the choice was generated on,
	// so that taking the choice later re-enters the correct context.
	threadAtGeneration *Thread

	originalThreadIndex int
}

// TargetPath is where the story diverts when the choice is taken.
func (c *Choice) TargetPath() *Path {
	return c.targetPath
}

// PathStringOnChoice is the string form of the target path, used by the
// save-state format.
func (c *Choice) PathStringOnChoice() string {
	return c.targetPath.String()
}

func (c *Choice) SetPathStringOnChoice(value string) {
	c.targetPath = NewPathFromString(value)
}
