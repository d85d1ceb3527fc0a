package errx

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"
)

// Kind classifies assistant failures so callers can decide what (if anything)
// to surface to the user.
type Kind string

const (
	KindUnknown        Kind = "unknown"
	KindQuotaExhausted Kind = "quota_exhausted"
	KindCapture        Kind = "capture"
	KindLowConfidence  Kind = "low_confidence"
	KindModelCall      Kind = "model_call"
	KindEmptyResponse  Kind = "empty_response"
	KindSynthesis      Kind = "synthesis"
	KindDecode         Kind = "decode"
	KindStore          Kind = "store"
	KindRedis          Kind = "redis"
	KindInvalidInput   Kind = "invalid_input"
	KindConflict       Kind = "conflict"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
	// RedisNotFoundMessage describes a missing Redis key.
	RedisNotFoundMessage = "redis key not found"
	// StoreErrorMessage describes ledger store failures.
	StoreErrorMessage = "ledger store operation failed"
	// ModelErrorMessage describes failures of the chat/advisor model.
	ModelErrorMessage = "assistant model call failed"
	// SynthesisErrorMessage describes failures of speech synthesis.
	SynthesisErrorMessage = "speech synthesis failed"
)

// AppError wraps an underlying error with an HTTP status, a safe message and a kind.
type AppError struct {
	Err     error
	Status  int
	Message string
	Kind    Kind
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with the provided information.
func New(err error, status int, message string) *AppError {
	return &AppError{
		Err:     err,
		Status:  status,
		Message: message,
		Kind:    KindUnknown,
	}
}

// NewKind creates an AppError tagged with kind.
func NewKind(kind Kind, err error, status int, message string) *AppError {
	return &AppError{
		Err:     err,
		Status:  status,
		Message: message,
		Kind:    kind,
	}
}

// WrapRedis maps Redis errors to AppError with an appropriate status.
func WrapRedis(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.Nil) {
		return NewKind(KindRedis, err, http.StatusNotFound, RedisNotFoundMessage)
	}
	return NewKind(KindRedis, err, http.StatusBadGateway, RedisErrorMessage)
}

// WrapStore wraps a ledger store error with a consistent status and message.
func WrapStore(err error) error {
	if err == nil {
		return nil
	}
	return NewKind(KindStore, err, http.StatusInternalServerError, StoreErrorMessage)
}

// WrapModel wraps a chat model failure.
func WrapModel(err error) error {
	if err == nil {
		return nil
	}
	return NewKind(KindModelCall, err, http.StatusBadGateway, ModelErrorMessage)
}

// WrapSynthesis wraps a speech synthesis failure.
func WrapSynthesis(err error) error {
	if err == nil {
		return nil
	}
	return NewKind(KindSynthesis, err, http.StatusBadGateway, SynthesisErrorMessage)
}

// KindOf returns the kind carried by the first AppError in err's chain.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}

// StatusOf returns the HTTP status carried by err, or 500.
func StatusOf(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Status != 0 {
		return appErr.Status
	}
	return http.StatusInternalServerError
}

// Is reports whether the target matches the underlying error.
func (e *AppError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// As allows casting to AppError or the wrapped error in a chain.
func (e *AppError) As(target any) bool {
	if t, ok := target.(**AppError); ok {
		*t = e
		return true
	}
	return errors.As(e.Err, target)
}
