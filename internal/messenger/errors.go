package messenger

import "errors"

// Code is the set of synchronous outcomes a Send can return instead of a
// handler's response code.
type Code int32

const (
	// MQError signals a queue post/receive failure.
	MQError Code = -1
	// SendTimeout signals that a request's deadline elapsed before a
	// response arrived.
	SendTimeout Code = -2
	// NegativeSubtype signals that the caller passed a reserved
	// (negative) subtype to the public Send API.
	NegativeSubtype Code = -3
)

var (
	// ErrMQError wraps a queue post/receive failure.
	ErrMQError = errors.New("messenger: queue error")
	// ErrSendTimeout is returned when a request's deadline elapses.
	ErrSendTimeout = errors.New("messenger: send timeout")
	// ErrNegativeSubtype is returned when Send is called with a reserved
	// subtype.
	ErrNegativeSubtype = errors.New("messenger: subtype is reserved")
	// ErrInvalidCaller is returned by BroadcastSettingsInit when called
	// by any module other than the Supervisor.
	ErrInvalidCaller = errors.New("messenger: only the supervisor may broadcast settings init")
	// ErrNotHandled names the case of an inbound subtype with no
	// registered handler. The dispatch loops do not return it: they log
	// the case, and answer an unhandled request with MQError.
	ErrNotHandled = errors.New("messenger: no handler registered for subtype")
)
