package upstream

import "fmt"

type Kind int

const (
	Unknown Kind = iota
	BadRequest
	NotFound
	ServerError
	Unavailable
	Connection
)

// Error carries the kind of upstream failure alongside a human-readable
// message. Callers switch on Kind to pick their own transport status
// instead of parsing status integers out of the message.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// FromStatus maps a remote status code to the error taxonomy. The model
// name is only used for 404s, where the remote is telling us the
// configured model does not exist.
func FromStatus(status int, model string, detail string) *Error {
	switch {
	case status == 400:
		return &Error{Kind: BadRequest, Message: fmt.Sprintf("bad request to model server: %s", detail)}
	case status == 404:
		return &Error{Kind: NotFound, Message: fmt.Sprintf("model not found: %s", model)}
	case status == 503:
		return &Error{Kind: Unavailable, Message: "model server unavailable"}
	case status >= 500:
		return &Error{Kind: ServerError, Message: fmt.Sprintf("model server error: %s", detail)}
	default:
		return &Error{Kind: Unknown, Message: fmt.Sprintf("model server error (%d): %s", status, detail)}
	}
}
