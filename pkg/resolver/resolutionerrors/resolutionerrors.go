// Copyright (c) 2024-2026 Flox contributors. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package resolutionerrors

import (
	"errors"
	"strings"
)

const (
	InputLockingFailed = "INPUT_LOCKING_FAILED"
	ResolutionFailed   = "RESOLUTION_FAILURE"
	EmptyRegistry      = "EMPTY_REGISTRY"
	InternalInvariant  = "INTERNAL_INVARIANT"
	UnknownError       = "UNKNOWN_ERROR"
)

// Attempt records one failed resolution try: the first descriptor that
// failed in one input.
type Attempt struct {
	InstallID string
	InputURL  string
}

// GroupFailure collects the attempts made for one group before giving up.
type GroupFailure struct {
	Group    string
	Attempts []Attempt
}

// Failure is the structured payload of a resolution failure, retained for
// programmatic consumers alongside the rendered message.
type Failure struct {
	Groups []GroupFailure
}

// Render formats the multi-line failure message listing every failing group
// with the inputs tried and the first descriptor that failed in each.
func (f *Failure) Render() string {
	var b strings.Builder
	b.WriteString("failed to resolve some package(s):")
	for _, g := range f.Groups {
		b.WriteString("\n  in '" + g.Group + "':")
		for _, a := range g.Attempts {
			b.WriteString("\n    failed to resolve '" + a.InstallID + "' in input '" + a.InputURL + "'")
		}
	}
	return b.String()
}

type ResolutionError struct {
	Code    string
	Cause   error
	Failure *Failure
}

func (r *ResolutionError) Error() string {
	if r.Failure != nil {
		return r.Failure.Render()
	}
	if r.Cause != nil {
		return r.Code + ": " + r.Cause.Error()
	}
	return r.Code
}

func (r *ResolutionError) Unwrap() error {
	return r.Cause
}

var _ error = (*ResolutionError)(nil)

func NewInputLockingFailedError(cause error) *ResolutionError {
	return &ResolutionError{
		Code:  InputLockingFailed,
		Cause: cause,
	}
}

func NewResolutionFailureError(failure *Failure) *ResolutionError {
	return &ResolutionError{
		Code:    ResolutionFailed,
		Failure: failure,
	}
}

func NewEmptyRegistryError() *ResolutionError {
	return &ResolutionError{
		Code:  EmptyRegistry,
		Cause: errors.New("no inputs found to search for packages"),
	}
}

func NewInternalInvariantError(cause error) *ResolutionError {
	return &ResolutionError{
		Code:  InternalInvariant,
		Cause: cause,
	}
}

func Standardize(err error) *ResolutionError {
	if err == nil {
		return nil
	}

	var resErr *ResolutionError
	if errors.As(err, &resErr) {
		return resErr
	}

	return &ResolutionError{
		Code:  UnknownError,
		Cause: err,
	}
}
