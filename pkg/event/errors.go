package event

// Error is a dispatcher error with a stable code.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Errors
var (
	ErrNilEvent      = &Error{Code: "NIL_EVENT", Message: "event cannot be nil"}
	ErrNilListener   = &Error{Code: "NIL_LISTENER", Message: "listener cannot be nil"}
	ErrNilHandler    = &Error{Code: "NIL_HANDLER", Message: "handler cannot be nil"}
	ErrInvalidOrder  = &Error{Code: "INVALID_ORDER", Message: "order is not a defined dispatch phase"}
	ErrInvalidType   = &Error{Code: "INVALID_TYPE", Message: "type is not part of the event lattice"}
	ErrUnknownPlugin = &Error{Code: "UNKNOWN_PLUGIN", Message: "the object is not a registered plugin instance"}
	ErrNotSubscriber = &Error{Code: "NOT_SUBSCRIBER", Message: "listener does not declare subscriptions"}
)
