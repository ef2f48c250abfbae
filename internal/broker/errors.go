package broker

import "errors"

// Kind is the broker's error taxonomy, returned inline in RPC replies rather
// than as a transport-level failure (only TransportFailure ever aborts the
// connection).
type Kind string

const (
	KindNotAuthenticated  Kind = "not_authenticated"
	KindEntityDoesNotExist Kind = "entity_does_not_exist"
	KindAlreadyExists     Kind = "already_exists"
	KindNotFound          Kind = "not_found"
	KindInvalidContent    Kind = "invalid_content"
	KindIteratorStopped   Kind = "iterator_stopped"
	KindUnimplemented     Kind = "unimplemented"
	KindTransportFailure  Kind = "transport_failure"
)

// Error is the concrete error type every service method returns for
// expected, client-visible failures.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return string(e.Kind) + ": " + e.Message
	}
	return string(e.Kind)
}

// Is lets errors.Is(err, broker.ErrNotAuthenticated) style sentinels work
// against any *Error of the same Kind, not just a single shared instance.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.Kind == e.Kind
	}
	return false
}

func newErr(kind Kind, msg string) *Error { return &Error{Kind: kind, Message: msg} }

var (
	ErrNotAuthenticated   = &Error{Kind: KindNotAuthenticated}
	ErrEntityDoesNotExist = &Error{Kind: KindEntityDoesNotExist}
	ErrAlreadyExists      = &Error{Kind: KindAlreadyExists}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrInvalidContent     = &Error{Kind: KindInvalidContent}
	ErrIteratorStopped    = &Error{Kind: KindIteratorStopped}
	ErrUnimplemented      = &Error{Kind: KindUnimplemented}
	ErrTransportFailure   = &Error{Kind: KindTransportFailure}
)
