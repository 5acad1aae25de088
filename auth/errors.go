package auth

import (
	"errors"
	"fmt"
	"strings"
)

// Outcome taxonomy. Callers classify failures with errors.Is; the HTTP layer
// maps each member to a status and a generic client message.
var (
	ErrValidation         = errors.New("auth: validation failed")
	ErrConflict           = errors.New("auth: identity already exists")
	ErrUnauthenticated    = errors.New("auth: unauthenticated")
	ErrInvalidToken       = errors.New("auth: invalid refresh token")
	ErrTokenReused        = errors.New("auth: refresh token reused")
	ErrNotFound           = errors.New("auth: identity not found")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrUpstream           = errors.New("auth: upstream failure")
)

// Token codec failures.
var (
	ErrTokenMalformed        = errors.New("auth: token malformed")
	ErrTokenSignatureInvalid = errors.New("auth: token signature invalid")
	ErrTokenExpired          = errors.New("auth: token expired")
	ErrTokenClassMismatch    = errors.New("auth: token class mismatch")
	ErrTokenSubjectMissing   = errors.New("auth: token subject missing")
	ErrTokenTTLInvalid       = errors.New("auth: token ttl invalid")
	ErrSigningKeyMissing     = errors.New("auth: signing key missing")
	ErrSigningKeyWeak        = errors.New("auth: signing key too short")
	ErrSigningKeyShared      = errors.New("auth: access and refresh keys must differ")
)

// ValidationError reports a client-fixable input problem. Msg is safe to show
// to the caller.
type ValidationError struct {
	Field string
	Msg   string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "auth: " + e.Msg
	}
	return fmt.Sprintf("auth: %s: %s", e.Field, e.Msg)
}

func (e *ValidationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrValidation}
	}
	return []error{ErrValidation, e.Err}
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Msg: msg}
}

// invalidFrom turns a policy error such as ErrPasswordTooShort into a
// ValidationError whose message drops the package prefix.
func invalidFrom(field string, err error) error {
	return &ValidationError{
		Field: field,
		Msg:   strings.TrimPrefix(err.Error(), "auth: "),
		Err:   err,
	}
}

func upstream(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUpstream, op, err)
}

// ValidationMessage returns the client-facing message of a validation
// failure, or "" when err is not one.
func ValidationMessage(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		msg := ve.Msg
		if msg != "" {
			msg = strings.ToUpper(msg[:1]) + msg[1:]
		}
		return msg
	}
	return ""
}
