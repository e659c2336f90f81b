package application

import (
	"errors"
	"fmt"

	"github.com/jmbish04/gh-bot/internal/domain/port/driven"
)

// OutcomeKind classifies how an event was handled. Driving adapters map it
// to a transport status.
type OutcomeKind int

const (
	OutcomeOK OutcomeKind = iota
	OutcomeInvalid
	OutcomeConflict
	OutcomeFailed
)

// String returns the lower-case name of the outcome kind.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeOK:
		return "ok"
	case OutcomeInvalid:
		return "invalid"
	case OutcomeConflict:
		return "conflict"
	case OutcomeFailed:
		return "failed"
	}
	return "unknown"
}

// Outcome is the result of handling one event.
type Outcome struct {
	Kind    OutcomeKind
	Message string
}

// ValidationError reports a malformed event. No side effects are attempted.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid event: " + e.Reason
}

// ConflictError reports that a commit precondition failed because the
// branch head moved. It is safe to retry with a fresh event.
type ConflictError struct {
	Branch   string
	Expected string
	Err      error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("branch %s moved from expected head %s: %v", e.Branch, shortSHA(e.Expected), e.Err)
}

func (e *ConflictError) Unwrap() error { return e.Err }

// CollaboratorError reports a failed GitHub, LLM or store call.
type CollaboratorError struct {
	Op  string
	Err error
}

func (e *CollaboratorError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

// UnknownCommandError reports a /colby trigger that maps to no command.
type UnknownCommandError struct {
	Trigger string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("unknown command %q", e.Trigger)
}

// collaborator wraps err as a CollaboratorError unless it is already
// classified as a conflict.
func collaborator(op string, err error) error {
	if err == nil {
		return nil
	}
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return err
	}
	return &CollaboratorError{Op: op, Err: err}
}

// Classify maps an error to the outcome kind it should produce.
// Head-moved failures are conflicts wherever they surface in the chain.
func Classify(err error) OutcomeKind {
	if err == nil {
		return OutcomeOK
	}

	var validation *ValidationError
	if errors.As(err, &validation) {
		return OutcomeInvalid
	}

	var conflict *ConflictError
	if errors.As(err, &conflict) || errors.Is(err, driven.ErrHeadMoved) {
		return OutcomeConflict
	}

	return OutcomeFailed
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
