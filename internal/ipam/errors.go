package ipam

import (
	"github.com/pkg/errors"
)

// Kind classifies allocator failures so the transport layers can map them
// to a status without string matching.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindOwnershipMismatch
	KindExhausted
	KindTransportFailure
	KindInvalidRequest
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindOwnershipMismatch:
		return "OwnershipMismatch"
	case KindExhausted:
		return "Exhausted"
	case KindTransportFailure:
		return "TransportFailure"
	case KindInvalidRequest:
		return "InvalidRequest"
	default:
		return "Unknown"
	}
}

type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Cause() error {
	return e.Err
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrExhausted is returned once every candidate block has a record.
var ErrExhausted = &Error{Kind: KindExhausted, Err: errors.New("no free block left in master pool")}

func newError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// KindOf returns the kind of the first *Error in the chain.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
