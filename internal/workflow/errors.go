package workflow

import (
	"errors"
	"fmt"
)

var (
	ErrIllegalTransition = errors.New("illegal transition")
	ErrForbidden         = errors.New("forbidden")
)

// TransitionError describes a refused request. It wraps ErrIllegalTransition
// or ErrForbidden.
type TransitionError struct {
	Kind   Kind
	From   Status
	Action Action
	Detail string
	Err    error
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("cannot %s %s in status %s", e.Action, e.Kind, e.From)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

func illegal(req Request, detail string) *TransitionError {
	return &TransitionError{Kind: req.Kind, From: req.From, Action: req.Action, Detail: detail, Err: ErrIllegalTransition}
}

func forbidden(req Request) *TransitionError {
	return &TransitionError{
		Kind:   req.Kind,
		From:   req.From,
		Action: req.Action,
		Detail: fmt.Sprintf("role %q is not permitted", req.Actor.Role),
		Err:    ErrForbidden,
	}
}
