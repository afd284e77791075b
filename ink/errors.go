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

// ConstError is a const-compatible error type. Errors of this type can be
// compared with errors.Is against their definition.
type ConstError string

func (e ConstError) Error() string {
	return string(e)
}

const (
	errVersionTooNew        = ConstError("version of ink used to build story was newer than the current version of the engine")
	errVersionTooOld        = ConstError("version of ink used to build story is too old to be loaded by this version of the engine")
	errMissingVersion       = ConstError("ink version number not found")
	errMissingRoot          = ConstError("root node for ink not found")
	errSaveVersionMissing   = ConstError("ink save format incorrect, can't load")
	errEmptyCallStackPop    = ConstError("mismatched push/pop in call stack")
	errCannotPopThread      = ConstError("can't pop thread")
	errCannotDestroyDefault = ConstError("cannot destroy default flow")
	errContinueNotPossible  = ConstError("can't continue - should check CanContinue before calling Continue")
)

// ErrorType distinguishes the severity of issues reported through an
// ErrorHandler.
type ErrorType int

const (
	// ErrorTypeError is a fatal runtime semantic problem with the story.
	ErrorTypeError ErrorType = iota
	// ErrorTypeWarning is a recoverable condition; execution continues.
	ErrorTypeWarning
)

func (t ErrorType) String() string {
	if t == ErrorTypeWarning {
		return "warning"
	}
	return "error"
}

// ErrorHandler receives errors and warnings accumulated during a Continue.
// If no handler is registered on the Story, the first error is returned from
// the Continue call instead.
type ErrorHandler func(message string, errorType ErrorType)

// StoryError is a runtime semantic error raised during story execution, such
// as a type mismatch, a failed divert resolution, or an assignment to an
// undeclared global.
type StoryError struct {
	Message          string
	UseEndLineNumber bool
}

func (e *StoryError) Error() string {
	return e.Message
}

func storyErrorf(format string, args ...any) *StoryError {
	return &StoryError{Message: fmt.Sprintf(format, args...)}
}
