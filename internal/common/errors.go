package common

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure for retry and reporting decisions.
type ErrorKind string

const (
	KindExtraction  ErrorKind = "EXTRACTION_ERROR"
	KindTransientAI ErrorKind = "TRANSIENT_AI_ERROR"
	KindQuota       ErrorKind = "QUOTA_ERROR"
	KindParse       ErrorKind = "PARSE_ERROR"
	KindAIRequest   ErrorKind = "AI_REQUEST_ERROR"
	KindWrite       ErrorKind = "WRITE_ERROR"
	KindConfig      ErrorKind = "CONFIG_ERROR"
	KindAborted     ErrorKind = "ABORTED"
)

// Sentinels, one per kind; every AppError unwraps to its kind's sentinel.
var (
	ErrExtraction   = errors.New("document extraction failed")
	ErrTransientAI  = errors.New("transient AI error")
	ErrQuota        = errors.New("AI quota exhausted")
	ErrParse        = errors.New("malformed AI response")
	ErrAIRequest    = errors.New("AI request rejected")
	ErrWrite        = errors.New("report write failed")
	ErrConfig       = errors.New("invalid configuration")
	ErrAborted      = errors.New("batch aborted")
	ErrInvalidInput = errors.New("invalid input")
)

var kindSentinels = map[ErrorKind]error{
	KindExtraction:  ErrExtraction,
	KindTransientAI: ErrTransientAI,
	KindQuota:       ErrQuota,
	KindParse:       ErrParse,
	KindAIRequest:   ErrAIRequest,
	KindWrite:       ErrWrite,
	KindConfig:      ErrConfig,
	KindAborted:     ErrAborted,
}

// AppError represents application-specific errors
type AppError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes both the kind sentinel and the cause to errors.Is / errors.As.
func (e *AppError) Unwrap() []error {
	var out []error
	if s, ok := kindSentinels[e.Kind]; ok {
		out = append(out, s)
	}
	if e.Cause != nil {
		out = append(out, e.Cause)
	}
	return out
}

// Retryable reports whether the retry policy may try again.
func (e *AppError) Retryable() bool {
	return e.Kind == KindTransientAI || e.Kind == KindParse
}

// Error constructors
func NewAppError(kind ErrorKind, message string, cause error) *AppError {
	return &AppError{
		Kind:    kind,
		Message: message,
		Cause:   cause,
	}
}

func NewExtractionError(message string, cause error) error {
	return NewAppError(KindExtraction, message, cause)
}

func NewTransientAIError(message string, cause error) error {
	return NewAppError(KindTransientAI, message, cause)
}

func NewQuotaError(message string, cause error) error {
	return NewAppError(KindQuota, message, cause)
}

func NewParseError(message string, cause error) error {
	return NewAppError(KindParse, message, cause)
}

func NewAIRequestError(message string, cause error) error {
	return NewAppError(KindAIRequest, message, cause)
}

func NewWriteError(message string, cause error) error {
	return NewAppError(KindWrite, message, cause)
}

func NewConfigError(message string) error {
	return NewAppError(KindConfig, message, ErrInvalidInput)
}

// KindOf returns the kind of the outermost AppError in the chain, or "" if none.
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}
