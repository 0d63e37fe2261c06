package command

import (
	"github.com/pkg/errors"
)

type Kind int

const (
	KindInvalid Kind = iota + 1
	KindNotFound
	KindUnauthorized
	KindForbidden
	KindConflict
)

// Error is returned for requests the dispatcher rejects. Reason is a stable
// code for machine consumers, Message is meant for humans.
type Error struct {
	Kind    Kind
	Reason  string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

const (
	ErrReasonInvalidRequest     = "ERR_INVALID_REQUEST"
	ErrReasonInvalidCommand     = "ERR_INVALID_COMMAND"
	ErrReasonNotFound           = "ERR_DEVICE_NOT_FOUND"
	ErrReasonAlreadyClaimed     = "ERR_DEVICE_ALREADY_CLAIMED"
	ErrReasonInvalidAuthKey     = "ERR_INVALID_AUTH_KEY"
	ErrReasonNotOwner           = "ERR_NOT_OWNER"
	ErrReasonTechnicalException = "ERR_TECHNICAL_EXCEPTION"
)

var (
	ErrInvalidRequest       = &Error{KindInvalid, ErrReasonInvalidRequest, "Invalid request"}
	ErrInvalidCommand       = &Error{KindInvalid, ErrReasonInvalidCommand, "Invalid command type"}
	ErrDeviceNotFound       = &Error{KindNotFound, ErrReasonNotFound, "Device not found"}
	ErrDeviceAlreadyClaimed = &Error{KindConflict, ErrReasonAlreadyClaimed, "Device already claimed"}
	ErrInvalidAuthKey       = &Error{KindUnauthorized, ErrReasonInvalidAuthKey, "Invalid authentication key"}
	ErrNotOwner             = &Error{KindForbidden, ErrReasonNotOwner, "You do not have permission to access this device"}
)

func newInvalidRequestError(message string) *Error {
	return &Error{KindInvalid, ErrReasonInvalidRequest, message}
}

func kindOf(err error) Kind {
	if e, ok := errors.Cause(err).(*Error); ok {
		return e.Kind
	}
	return 0
}

func IsInvalid(err error) bool      { return kindOf(err) == KindInvalid }
func IsNotFound(err error) bool     { return kindOf(err) == KindNotFound }
func IsUnauthorized(err error) bool { return kindOf(err) == KindUnauthorized }
func IsForbidden(err error) bool    { return kindOf(err) == KindForbidden }
func IsConflict(err error) bool     { return kindOf(err) == KindConflict }

// Reason returns the reason code of err or the technical exception code.
func Reason(err error) string {
	if e, ok := errors.Cause(err).(*Error); ok {
		return e.Reason
	}
	return ErrReasonTechnicalException
}
