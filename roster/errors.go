package roster

import "errors"

// Kind classifies a workflow failure so callers can map it to a response
type Kind string

const (
	KindInvalidArgument  Kind = "InvalidArgument"
	KindPermissionDenied Kind = "PermissionDenied"
	KindAlreadyMember    Kind = "AlreadyMember"
	KindAlreadyPending   Kind = "AlreadyPending"
	KindInvalidToken     Kind = "InvalidToken"
	KindExpired          Kind = "Expired"
	KindNotFound         Kind = "NotFound"
	KindPersistence      Kind = "PersistenceFailure"
	KindEmailDelivery    Kind = "EmailDeliveryFailure"
)

// Error is returned by every workflow operation. Message is safe to show to the caller.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same Kind when the target carries no message, so the
// sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// Sentinels for errors.Is
var (
	ErrInvalidArgument  = &Error{Kind: KindInvalidArgument}
	ErrPermissionDenied = &Error{Kind: KindPermissionDenied}
	ErrAlreadyMember    = &Error{Kind: KindAlreadyMember}
	ErrAlreadyPending   = &Error{Kind: KindAlreadyPending}
	ErrInvalidToken     = &Error{Kind: KindInvalidToken}
	ErrExpired          = &Error{Kind: KindExpired}
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrPersistence      = &Error{Kind: KindPersistence}
	ErrEmailDelivery    = &Error{Kind: KindEmailDelivery}
)

// KindOf returns the Kind of err, or KindPersistence for errors that did not come from
// this package
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindPersistence
}

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}
