// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Error types, display and exit codes for adkchat commands.
//
// Commands always return errors; Execute prints them once and picks the
// exit code.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/lrrrrrrrr/adk-client-web-component/internal/adk"
	"github.com/lrrrrrrrr/adk-client-web-component/internal/config"
	"github.com/lrrrrrrrr/adk-client-web-component/internal/ui/components"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	// ExitUsageError covers bad arguments and rejected input.
	ExitUsageError   = 2
	ExitConfigError  = 3
	ExitNetworkError = 5
	// ExitServerError is a non-2xx answer from the ADK server.
	ExitServerError   = 6
	ExitNotFoundError = 7
	ExitTimeoutError  = 8
	// ExitInterrupted follows the shell convention for SIGINT.
	ExitInterrupted = 130
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// CommandError is a command failure with context.
type CommandError struct {
	Command string
	Action  string
	Reason  string
	Err     error
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s failed: %s: %v", e.Command, e.Action, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %s", e.Command, e.Action, e.Reason)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ValidationError is a rejected argument or flag value.
type ValidationError struct {
	Field   string
	Value   string
	Reason  string
	Example string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s", e.Field)
	if e.Value != "" {
		msg += fmt.Sprintf(" %q", e.Value)
	}
	msg += ": " + e.Reason
	if e.Example != "" {
		msg += " (example: " + e.Example + ")"
	}
	return msg
}

// NotFoundError names a missing resource.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
	}
	return e.Resource + " not found"
}

// NewCommandError wraps err with the command and action that failed.
func NewCommandError(command, action, reason string, err error) error {
	return &CommandError{Command: command, Action: action, Reason: reason, Err: err}
}

// NewValidationErrorWithExample rejects value for field and shows a valid
// form.
func NewValidationErrorWithExample(field, value, reason, example string) error {
	return &ValidationError{Field: field, Value: value, Reason: reason, Example: example}
}

// NewNotFoundError reports that resource id does not exist.
func NewNotFoundError(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// ErrInvalidFormat rejects a value that does not match expected.
func ErrInvalidFormat(field, value, expected string) error {
	return NewValidationErrorWithExample(field, value, "invalid format", expected)
}

// =============================================================================
// DISPLAY
// =============================================================================

// DisplayError prints err and a fix hint when one is known.
func DisplayError(w io.Writer, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("[Error]"), err.Error())
	if hint := Suggestion(err); hint != "" {
		fmt.Fprintf(w, "        %s\n", DimStyle.Render(hint))
	}
}

// Suggestion returns a one-line hint for err, or "".
func Suggestion(err error) string {
	if err == nil {
		return ""
	}
	var ttyErr *TTYRequiredError
	if errors.As(err, &ttyErr) {
		return "Use 'adkchat ask' for scripted use."
	}
	var nf *NotFoundError
	if errors.As(err, &nf) && nf.Resource == "session" {
		return "Create it with 'adkchat session create'."
	}
	return components.Suggestion(err.Error())
}

// =============================================================================
// EXIT CODES
// =============================================================================

// GetExitCode maps err to a process exit code.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var (
		validationErr *ValidationError
		inputErr      *adk.ValidationError
		configErrs    config.ValidateErrors
		notFoundErr   *NotFoundError
		timeoutErr    *adk.TimeoutError
		networkErr    *adk.NetworkError
		apiErr        *adk.APIError
		ttyErr        *TTYRequiredError
	)
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, adk.ErrCancelled):
		return ExitInterrupted
	case errors.As(err, &validationErr), errors.As(err, &inputErr), errors.As(err, &ttyErr):
		return ExitUsageError
	case errors.As(err, &configErrs):
		return ExitConfigError
	case errors.As(err, &notFoundErr), errors.Is(err, adk.ErrNotFound):
		return ExitNotFoundError
	case errors.As(err, &timeoutErr), errors.Is(err, context.DeadlineExceeded):
		return ExitTimeoutError
	case errors.As(err, &networkErr):
		return ExitNetworkError
	case errors.As(err, &apiErr):
		return ExitServerError
	}
	return ExitGeneralError
}
