package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedMessageType = errors.New("unsupported message type")
	ErrHistoryLookupFailed    = errors.New("configuration item not found in resource history")
	ErrAssumeRoleDenied       = errors.New("assume role denied")
	ErrAssumeRoleTransient    = errors.New("assume role failed")
	ErrLeaseExpired           = errors.New("credential lease expired")
	ErrInvalidParameter       = errors.New("invalid rule parameter")
	ErrMalformedVerdict       = errors.New("malformed verdict")
	ErrBatchTooLarge          = errors.New("evaluation batch too large")
	ErrSubmissionFailed       = errors.New("evaluations rejected by rule-state service")
	ErrMalformedManifest      = errors.New("malformed manifest")
	ErrObjectNotFound         = errors.New("object not found")
	ErrRuleNotFound           = errors.New("rule not registered")
)

const (
	InternalErrorCode         = "InternalError"
	InvalidParameterErrorCode = "InvalidParameterValueException"
	AccessDeniedErrorCode     = "AccessDenied"
)

type ErrorKind int

const (
	// KindInternal errors are transient; the scheduler retries the invocation.
	KindInternal ErrorKind = iota
	// KindCustomer errors need operator action and are never retried.
	KindCustomer
)

// RuleError carries the classification of a failed invocation together with
// the scrubbed message that may be shown to the operator.
type RuleError struct {
	Kind            ErrorKind
	Code            string
	CustomerMessage string
	InternalMessage string
	Err             error
}

func (e *RuleError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.InternalMessage)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.InternalMessage, e.Err)
}

func (e *RuleError) Unwrap() error {
	return e.Err
}

func (e *RuleError) Retryable() bool {
	return e.Kind == KindInternal
}

func InvalidParameter(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return &RuleError{
		Kind:            KindCustomer,
		Code:            InvalidParameterErrorCode,
		CustomerMessage: msg,
		InternalMessage: "Parameter value is invalid",
		Err:             fmt.Errorf("%w: %s", ErrInvalidParameter, msg),
	}
}

// ErrorResponse is returned instead of a verdict list when an invocation fails.
type ErrorResponse struct {
	InternalErrorMessage string `json:"internalErrorMessage"`
	InternalErrorDetails string `json:"internalErrorDetails,omitempty"`
	CustomerErrorCode    string `json:"customerErrorCode,omitempty"`
	CustomerErrorMessage string `json:"customerErrorMessage,omitempty"`
}

func NewInternalErrorResponse(message, details string) *ErrorResponse {
	return &ErrorResponse{
		InternalErrorMessage: message,
		InternalErrorDetails: details,
		CustomerErrorCode:    InternalErrorCode,
		CustomerErrorMessage: InternalErrorCode,
	}
}

func (r *ErrorResponse) Retryable() bool {
	return r.CustomerErrorCode == InternalErrorCode
}
