package casauth

import (
	"errors"
	"fmt"
)

// FailureType classifies why a login did not produce a session.
type FailureType string

const (
	// WrongPassword means the identity provider rejected the credentials.
	WrongPassword FailureType = "WrongPassword"
	// WrongCaptcha means the submitted captcha solution was rejected.
	WrongCaptcha FailureType = "WrongCaptcha"
	// AccountLocked means the account is locked after repeated failures,
	// either by the identity provider or by the WebVPN tunnel.
	AccountLocked FailureType = "AccountLocked"
	// EnabledSSO means an active single sign-on session elsewhere blocks
	// this login path.
	EnabledSSO FailureType = "EnabledSSO"
	// ServiceError means the WebVPN tunnel or the identity provider answered
	// with a 5xx status. Retrying with other credentials will not help.
	ServiceError FailureType = "ServiceError"
	// Unknown covers every unclassified condition.
	Unknown FailureType = "Unknown"
	// NeedCaptcha is not terminal: the provider wants a human verification
	// before credentials are submitted. The failure carries the challenge and
	// the state needed to resume the login.
	NeedCaptcha FailureType = "NeedCaptcha"
)

// Failure is the typed failure variant of a login outcome. Wrapping layers
// pass it upward unchanged unless they have positive evidence to re-classify.
type Failure struct {
	Type FailureType
	Msg  string
	// Status is the HTTP status of the response the failure was derived
	// from, zero when not applicable.
	Status int
	// Captcha and Pending are set for NeedCaptcha.
	Captcha *CaptchaChallenge
	Pending *PendingLogin
}

// Error implements the error interface.
func (f *Failure) Error() string {
	if f.Msg == "" {
		return string(f.Type)
	}
	return fmt.Sprintf("%s: %s", f.Type, f.Msg)
}

func newFailure(t FailureType, format string, args ...any) *Failure {
	return &Failure{Type: t, Msg: fmt.Sprintf(format, args...)}
}

// AsFailure converts err into a Failure. Typed failures are returned as is;
// any other error becomes Unknown carrying the original message. A nil error
// yields nil.
func AsFailure(err error) *Failure {
	if err == nil {
		return nil
	}
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return &Failure{Type: Unknown, Msg: err.Error()}
}

// IsFailure reports whether err is a Failure of type t.
func IsFailure(err error, t FailureType) bool {
	var f *Failure
	return errors.As(err, &f) && f.Type == t
}
