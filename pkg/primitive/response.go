package primitive

import "fmt"

// Response statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Error kinds form a closed taxonomy shared by primitives, the VM, and the
// engine. Every error response carries exactly one of these.
const (
	KindIntentNotFound        = "intent_not_found"
	KindPrimitiveNotFound     = "primitive_not_found"
	KindProtocolNotFound      = "protocol_not_found"
	KindInvalidInputs         = "invalid_inputs"
	KindPhysicsViolation      = "physics_violation"
	KindExecutionError        = "execution_error"
	KindNotFound              = "not_found"
	KindAlreadyResolved       = "already_resolved"
	KindDependencyUnavailable = "dependency_unavailable"
)

// Response is the standard envelope every primitive returns.
type Response struct {
	Status       string         `json:"status"`
	Data         map[string]any `json:"data,omitempty"`
	ErrorKind    string         `json:"error_kind,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
}

// Ok builds a success response.
func Ok(data map[string]any) Response {
	if data == nil {
		data = map[string]any{}
	}
	return Response{Status: StatusSuccess, Data: data}
}

// Fail builds an error response with the given kind.
func Fail(kind, format string, args ...any) Response {
	return Response{
		Status:       StatusError,
		ErrorKind:    kind,
		ErrorMessage: fmt.Sprintf(format, args...),
	}
}

// IsError reports whether the response carries an error status.
func (r Response) IsError() bool {
	return r.Status == StatusError
}
