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
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// The story prints a line, then calls an external while the engine is
// speculatively reading ahead for the end-of-line decision, then prints
// another line.
const lookaheadStoryJSON = `{"inkVersion":21,"root":["^line one","\n","ev",{"x()":"beep"},"pop","/ev","^line two","\n","done",null]}`

func TestExternalFunction_LookaheadSafeRunsDuringSpeculation(t *testing.T) {
	ctrl := gomock.NewController(t)
	story := loadStory(t, lookaheadStoryJSON)

	fn := NewMockExternalFunction(ctrl)
	fn.EXPECT().LookaheadSafe().Return(true).AnyTimes()
	// A lookahead-safe function runs during the speculative read-ahead past
	// "line one", is rewound with the snapshot, and runs again when the
	// content is committed.
	fn.EXPECT().Call(gomock.Any()).Return(nil, nil).Times(2)

	require.NoError(t, story.BindExternalFunction("beep", fn))

	require.Equal(t, "line one\n", mustContinue(t, story))
	require.Equal(t, "line two\n", mustContinue(t, story))
}

func TestExternalFunction_LookaheadUnsafeRunsExactlyOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	story := loadStory(t, lookaheadStoryJSON)

	fn := NewMockExternalFunction(ctrl)
	fn.EXPECT().LookaheadSafe().Return(false).AnyTimes()
	// An unsafe function must never run during speculation: the engine
	// restores the snapshot instead, and the single real invocation happens
	// when the line is re-run after the commit.
	fn.EXPECT().Call(gomock.Any()).Return(nil, nil).Times(1)

	require.NoError(t, story.BindExternalFunction("beep", fn))

	require.Equal(t, "line one\n", mustContinue(t, story))
	require.Equal(t, "line two\n", mustContinue(t, story))
	require.False(t, story.CanContinue())
	require.Empty(t, story.CurrentErrors())
}

func TestExternalFunction_ReceivesArgumentsInPushOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	story := loadStory(t, `{"inkVersion":21,"root":["ev",1,2,3,{"x()":"sum","exArgs":3},"out","/ev","\n","done",null]}`)

	fn := NewMockExternalFunction(ctrl)
	fn.EXPECT().LookaheadSafe().Return(true).AnyTimes()
	fn.EXPECT().Call([]any{1, 2, 3}).Return(6, nil).Times(1)

	require.NoError(t, story.BindExternalFunction("sum", fn))
	require.Equal(t, "6\n", mustContinue(t, story))
}

func TestExternalFunction_ErrorPropagates(t *testing.T) {
	story := loadStory(t, `{"inkVersion":21,"root":["ev",{"x()":"boom"},"pop","/ev","^x","\n","done",null]}`)

	require.NoError(t, story.BindExternalFunction("boom", ExternalFunc(func(args []any) (any, error) {
		return nil, storyErrorf("host failure")
	}, true)))

	_, err := story.Continue()
	require.Error(t, err)
	require.Contains(t, err.Error(), "host failure")
}
