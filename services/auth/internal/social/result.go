package social

import (
	"context"
	"errors"

	apperrors "github.com/carlossalguero/socialauth/services/shared/errors"
)

// Reason classifies a failed login.
type Reason string

const (
	ReasonNone        Reason = ""
	ReasonCancelled   Reason = "cancelled"
	ReasonSDKError    Reason = "sdk_error"
	ReasonUnsupported Reason = "unsupported"
	ReasonDecodeError Reason = "decode_error"
	ReasonSuperseded  Reason = "superseded"
)

// Result is the terminal outcome of an attempt. A failed result never
// carries a user.
type Result struct {
	User *User
	Err  error
}

// Succeeded returns a successful result for u.
func Succeeded(u User) Result {
	return Result{User: &u}
}

// Failed returns a failed result caused by err.
func Failed(err error) Result {
	if err == nil {
		err = apperrors.SDKError("login failed without an error", nil)
	}
	return Result{Err: err}
}

// Success reports whether the login produced a user.
func (r Result) Success() bool {
	return r.Err == nil && r.User != nil
}

// Reason returns why the login failed, or ReasonNone on success.
func (r Result) Reason() Reason {
	if r.Success() {
		return ReasonNone
	}
	return reasonFor(r.Err)
}

// Outcome is the metrics and event label for r.
func (r Result) Outcome() string {
	if r.Success() {
		return "success"
	}
	return string(r.Reason())
}

func reasonFor(err error) Reason {
	switch {
	case err == nil:
		return ReasonSDKError
	case errors.Is(err, context.Canceled), apperrors.IsCode(err, apperrors.CodeCanceled):
		return ReasonCancelled
	case apperrors.IsCode(err, apperrors.CodeUnsupported), apperrors.IsCode(err, apperrors.CodeNotFound):
		return ReasonUnsupported
	case apperrors.IsCode(err, apperrors.CodeDecodeError):
		return ReasonDecodeError
	case apperrors.IsCode(err, apperrors.CodeSuperseded):
		return ReasonSuperseded
	default:
		return ReasonSDKError
	}
}

// Callback receives the result of an attempt exactly once.
type Callback func(Result)

// BoolCallback adapts a (success, user) callback. user is nil on failure.
func BoolCallback(fn func(success bool, user *User)) Callback {
	return func(r Result) {
		if !r.Success() {
			fn(false, nil)
			return
		}
		u := *r.User
		fn(true, &u)
	}
}
