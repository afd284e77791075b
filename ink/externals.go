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

//go:generate mockgen -source externals.go -destination externals_mock.go -package ink

// ExternalFunction is a host function callable from ink via an EXTERNAL
// declaration and an external divert.
type ExternalFunction interface {
	// Call invokes the function with the already-evaluated argument values
	// (bool, int, float64, string, *Path or *List). A nil result is treated
	// as void.
	Call(args []any) (any, error)

	// LookaheadSafe reports whether the function may be invoked while the
	// engine speculatively reads ahead of the last committed newline. An
	// unsafe function forces the engine to rewind and re-run the content
	// after the line is committed, so its side effects happen exactly once.
	LookaheadSafe() bool
}

// externalFunc adapts a plain function to the ExternalFunction interface.
type externalFunc struct {
	fn            func(args []any) (any, error)
	lookaheadSafe bool
}

// ExternalFunc wraps a function for BindExternalFunction. Pass
// lookaheadSafe false when the function has side effects observable by the
// host.
func ExternalFunc(fn func(args []any) (any, error), lookaheadSafe bool) ExternalFunction {
	return &externalFunc{fn: fn, lookaheadSafe: lookaheadSafe}
}

func (f *externalFunc) Call(args []any) (any, error) {
	return f.fn(args)
}

func (f *externalFunc) LookaheadSafe() bool {
	return f.lookaheadSafe
}
