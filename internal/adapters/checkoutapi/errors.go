package checkoutapi

import (
	"fmt"
	"net/http"
)

// Error codes carried in the response envelope.
const (
	CodeValidation       = "VALIDATION_ERROR"
	CodeSchema           = "SCHEMA_VALIDATION_FAILED"
	CodeBusinessRule     = "BUSINESS_RULE_VIOLATION"
	CodePaymentDeclined  = "PAYMENT_DECLINED"
	CodeNotFound         = "NOT_FOUND"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeInternal         = "INTERNAL_ERROR"
)

// APIError is a rejected request with its HTTP status.
type APIError struct {
	Status  int            `json:"-"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *APIError) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

func validationError(msg string, fields map[string]string) *APIError {
	e := &APIError{Status: http.StatusBadRequest, Code: CodeValidation, Message: msg}
	if len(fields) > 0 {
		e.Details = map[string]any{"errors": fields}
	}
	return e
}

func schemaError(msg string) *APIError {
	return &APIError{Status: http.StatusBadRequest, Code: CodeSchema, Message: msg}
}
