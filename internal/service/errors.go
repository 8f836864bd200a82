package service

import "fmt"

// Kind classifies an Error for the transport layer.
type Kind int

const (
	KindInternal Kind = iota
	KindBadRequest
	KindValidation
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error is the client-facing failure of a facade call: a machine-readable
// type, a message and structured context. It never carries a stack trace.
type Error struct {
	Kind    Kind
	Type    string
	Message string
	Details map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, errType, message string, details map[string]string, cause error) *Error {
	return &Error{Kind: kind, Type: errType, Message: message, Details: details, Err: cause}
}
