package shared

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is matches domain errors by code, so a detailed error still satisfies
// errors.Is(err, ErrInsufficientStock).
func (e *DomainError) Is(target error) bool {
	var other *DomainError
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

// WithDetail returns a copy of the error carrying an extra detail entry.
func (e *DomainError) WithDetail(key string, value any) *DomainError {
	details := make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &DomainError{Code: e.Code, Message: e.Message, Details: details}
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// NewDomainErrorf creates a domain error with a formatted message
func NewDomainErrorf(code, format string, args ...any) *DomainError {
	return NewDomainError(code, fmt.Sprintf(format, args...))
}

// Error codes
const (
	CodeNotFound              = "NOT_FOUND"
	CodeInvalidInput          = "INVALID_INPUT"
	CodeConcurrencyConflict   = "CONCURRENCY_CONFLICT"
	CodeInsufficientStock     = "INSUFFICIENT_STOCK"
	CodeDocumentAlreadyPosted = "DOCUMENT_ALREADY_POSTED"
	CodeDocumentNotPosted     = "DOCUMENT_NOT_POSTED"
	CodeInvalidReturnQuantity = "INVALID_RETURN_QUANTITY"
	CodeMissingSourceDocument = "MISSING_SOURCE_DOCUMENT"
	CodeConversionValidation  = "CONVERSION_VALIDATION_ERROR"
	CodeLotInUse              = "LOT_IN_USE"
)

// Common domain errors
var (
	ErrNotFound              = NewDomainError(CodeNotFound, "Resource not found")
	ErrInvalidInput          = NewDomainError(CodeInvalidInput, "Invalid input provided")
	ErrConcurrencyConflict   = NewDomainError(CodeConcurrencyConflict, "Resource was modified by another process")
	ErrInsufficientStock     = NewDomainError(CodeInsufficientStock, "Insufficient stock available")
	ErrDocumentAlreadyPosted = NewDomainError(CodeDocumentAlreadyPosted, "Document is already posted")
	ErrDocumentNotPosted     = NewDomainError(CodeDocumentNotPosted, "Document is not posted")
	ErrInvalidReturnQuantity = NewDomainError(CodeInvalidReturnQuantity, "Return quantity exceeds traceable history")
	ErrMissingSourceDocument = NewDomainError(CodeMissingSourceDocument, "Source document is missing or has the wrong type")
	ErrConversionValidation  = NewDomainError(CodeConversionValidation, "Conversion document is invalid")
	ErrLotInUse              = NewDomainError(CodeLotInUse, "Stock produced by this document has already been consumed")
)
