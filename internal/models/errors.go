package models

// ValidationError is a rule violation whose message is safe to return to the client
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a ValidationError with the given message
func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}

// SchemaError is a request body that does not match the expected shape
type SchemaError struct {
	Field   string
	Message string
}

func (e *SchemaError) Error() string {
	return e.Message
}

// NewSchemaError creates a SchemaError for the given field
func NewSchemaError(field, message string) *SchemaError {
	return &SchemaError{Field: field, Message: message}
}
