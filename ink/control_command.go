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

// CommandType enumerates the control opcodes of the compiled format.
type CommandType int

const (
	CommandEvalStart CommandType = iota
	CommandEvalOutput
	CommandEvalEnd
	CommandDuplicate
	CommandPopEvaluatedValue
	CommandPopFunction
	CommandPopTunnel
	CommandBeginString
	CommandEndString
	CommandNoOp
	CommandChoiceCount
	CommandTurns
	CommandTurnsSince
	CommandReadCount
	CommandRandom
	CommandSeedRandom
	CommandVisitIndex
	CommandSequenceShuffleIndex
	CommandStartThread
	CommandDone
	CommandEnd
	CommandListFromInt
	CommandListRange
	CommandListRandom
	CommandBeginTag
	CommandEndTag
)

// commandNames maps command types to their wire names.
var commandNames = map[CommandType]string{
	CommandEvalStart:            "ev",
	CommandEvalOutput:           "out",
	CommandEvalEnd:              "/ev",
	CommandDuplicate:            "du",
	CommandPopEvaluatedValue:    "pop",
	CommandPopFunction:          "~ret",
	CommandPopTunnel:            "->->",
	CommandBeginString:          "str",
	CommandEndString:            "/str",
	CommandNoOp:                 "nop",
	CommandChoiceCount:          "choiceCnt",
	CommandTurns:                "turn",
	CommandTurnsSince:           "turns",
	CommandReadCount:            "readc",
	CommandRandom:               "rnd",
	CommandSeedRandom:           "srnd",
	CommandVisitIndex:           "visit",
	CommandSequenceShuffleIndex: "seq",
	CommandStartThread:          "thread",
	CommandDone:                 "done",
	CommandEnd:                  "end",
	CommandListFromInt:          "listInt",
	CommandListRange:            "range",
	CommandListRandom:           "lrnd",
	CommandBeginTag:             "#",
	CommandEndTag:               "/#",
}

var commandTypesByName = func() map[string]CommandType {
	res := make(map[string]CommandType, len(commandNames))
	for t, name := range commandNames {
		res[name] = t
	}
	return res
}()

// ControlCommand is a single control opcode in the content stream.
type ControlCommand struct {
	objectBase

	Command CommandType
}

func NewControlCommand(command CommandType) *ControlCommand {
	return &ControlCommand{Command: command}
}

// ControlCommandExistsWithName reports whether the given wire token is a
// control command.
func ControlCommandExistsWithName(name string) bool {
	_, ok := commandTypesByName[name]
	return ok
}

// ControlCommandWithName creates the control command for a wire token.
func ControlCommandWithName(name string) *ControlCommand {
	return NewControlCommand(commandTypesByName[name])
}

func (c *ControlCommand) Name() string {
	return commandNames[c.Command]
}

func (c *ControlCommand) String() string {
	return fmt.Sprintf("ControlCommand(%s)", c.Name())
}
