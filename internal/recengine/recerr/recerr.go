// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package recerr implements the error taxonomy shared by every rec-engine
// component: a small, fixed set of machine codes with optional wrapped
// causes, so HTTP and analyzer callers can branch on Code without string
// matching.
package recerr

import (
	"errors"
	"fmt"
)

// Code is a machine-readable error classification.
type Code string

const (
	CodeValidation       Code = "validation"
	CodeNotFound         Code = "not-found"
	CodeRangeTooLarge    Code = "range-too-large"
	CodeInsufficientData Code = "insufficient-data"
	CodeStoreUnavailable Code = "store-unavailable"
	CodeBusUnavailable   Code = "bus-unavailable"
	CodePartialFailure   Code = "partial-failure"
	CodeInvalidTarget    Code = "invalid-target"
	CodeUnauthorized     Code = "unauthorized"
	CodeInternal         Code = "internal"
)

// Error is the concrete error type returned by rec-engine components.
// Message is safe to show to callers; Cause is logged but only surfaced
// when a development flag is on (see httpapi.Server's devMode field).
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a recerr.Error with no wrapped cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap builds a recerr.Error carrying cause for logging.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf extracts the Code from err, defaulting to CodeInternal when err is
// nil-distinct or not a *Error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// HTTPStatus maps a Code to the §7 propagation policy's status class.
func HTTPStatus(code Code) int {
	switch code {
	case CodeValidation, CodeInvalidTarget:
		return 400
	case CodeUnauthorized:
		return 401
	case CodeNotFound:
		return 404
	case CodeRangeTooLarge:
		return 413
	case CodeStoreUnavailable, CodeBusUnavailable, CodeInternal:
		return 500
	case CodeInsufficientData, CodePartialFailure:
		// Analytical outcomes, not transport failures: the response body
		// carries the code but the request itself succeeded.
		return 200
	default:
		return 500
	}
}
