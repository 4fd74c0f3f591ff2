package errcodes

import (
	"fmt"
	"net/http"
)

// Error is an error that maps directly to an HTTP response. Code is the
// machine-readable snake_case kind and Message is shown to the client as is.
type Error struct {
	HTTPCode int
	Message  string
	Code     string
}

func newError(httpCode int, code, msg string) error {
	return &Error{HTTPCode: httpCode, Message: msg, Code: code}
}

func (err *Error) Error() string {
	return err.Message
}

// Is matches errors of the same kind and message, so callers can compare
// against a freshly built value, e.g. errors.Is(err, NotFound("Book")).
func (err *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return *te == *err
}

// NotFound is returned when the referenced resource doesn't exist.
func NotFound(resource string) error {
	return newError(http.StatusNotFound, "not_found", resource+" not found.")
}

// Conflict is returned when a request can't be applied to the current state
// of a resource, e.g. loaning a book that is already out.
func Conflict(msg string) error {
	return newError(http.StatusConflict, "conflict", msg)
}

func ValidationError(msg string) error {
	return newError(http.StatusUnprocessableEntity, "validation_error", msg)
}

func ValidationTypeError(msg string) error {
	return newError(http.StatusUnprocessableEntity, "validation_type_error", msg)
}

func UnknownParameter(param string) error {
	return newError(http.StatusUnprocessableEntity, "unknown_parameter", fmt.Sprintf("Unknown Parameter %q", param))
}

func UnsupportedMediaType() error {
	return newError(http.StatusUnsupportedMediaType, "unsupported_media_type", "Unsupported Media Type")
}

func MalformedPayload() error {
	return newError(http.StatusBadRequest, "malformed_payload", "Malformed Payload")
}

func EmptyRequestBody() error {
	return newError(http.StatusBadRequest, "empty_request_body", "Request body can't be empty.")
}
