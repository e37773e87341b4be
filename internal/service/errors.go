package service

// ValidationError marks caller input that violates a stated constraint.
// It is always raised before any network call is made, and the boundary
// maps it to a client error response.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func Invalid(message string) error {
	return &ValidationError{Message: message}
}
