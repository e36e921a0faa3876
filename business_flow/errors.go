// Package businessflow contains the media ingestion pipeline and its use cases
package businessflow

import (
	"errors"
	"fmt"
)

// Media pipeline error constants. Every one of them is terminal for the request.
var (
	ErrNoFileProvided   = errors.New("no file uploaded")
	ErrUnsupportedType  = errors.New("only image files are allowed")
	ErrEmptyPayload     = errors.New("empty file")
	ErrPayloadTooLarge  = errors.New("file too large")
	ErrInvalidMultipart = errors.New("failed to read upload")
	ErrDecode           = errors.New("failed to decode image")
	ErrEncode           = errors.New("failed to encode image")
	ErrStorageWrite     = errors.New("failed to store file")
)

// Error codes surfaced to API clients
const (
	CodeNoFileProvided   = "NO_FILE_PROVIDED"
	CodeUnsupportedType  = "UNSUPPORTED_TYPE"
	CodeEmptyPayload     = "EMPTY_PAYLOAD"
	CodePayloadTooLarge  = "PAYLOAD_TOO_LARGE"
	CodeInvalidMultipart = "INVALID_MULTIPART"
	CodeDecodeError      = "DECODE_ERROR"
	CodeEncodeError      = "ENCODE_ERROR"
	CodeStorageWrite     = "STORAGE_WRITE_ERROR"
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// PublicMessage is the reason shown to API clients: the message, followed by the
// underlying library error when one caused the failure.
func (e *BusinessError) PublicMessage() string {
	var ce *causeError
	if errors.As(e.Err, &ce) && ce.cause != nil {
		return e.Message + ": " + ce.cause.Error()
	}
	return e.Message
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

// IsClientError reports whether err was caused by the caller's input (HTTP 400 class)
func IsClientError(err error) bool {
	return IsNoFileProvided(err) ||
		IsUnsupportedType(err) ||
		IsEmptyPayload(err) ||
		IsPayloadTooLarge(err) ||
		errors.Is(err, ErrInvalidMultipart)
}

func IsNoFileProvided(err error) bool {
	return errors.Is(err, ErrNoFileProvided)
}

func IsUnsupportedType(err error) bool {
	return errors.Is(err, ErrUnsupportedType)
}

func IsEmptyPayload(err error) bool {
	return errors.Is(err, ErrEmptyPayload)
}

func IsPayloadTooLarge(err error) bool {
	return errors.Is(err, ErrPayloadTooLarge)
}

func IsDecodeError(err error) bool {
	return errors.Is(err, ErrDecode)
}

func IsEncodeError(err error) bool {
	return errors.Is(err, ErrEncode)
}

func IsStorageWriteError(err error) bool {
	return errors.Is(err, ErrStorageWrite)
}

// ErrorCode extracts the client-facing code from err, defaulting to INTERNAL_ERROR
func ErrorCode(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	return "INTERNAL_ERROR"
}

// causeError chains a sentinel and the underlying cause so errors.Is matches both
type causeError struct {
	sentinel error
	cause    error
}

func (e *causeError) Error() string {
	if e.cause == nil {
		return e.sentinel.Error()
	}
	return e.cause.Error()
}

func (e *causeError) Unwrap() []error {
	if e.cause == nil {
		return []error{e.sentinel}
	}
	return []error{e.sentinel, e.cause}
}

func withCause(sentinel, cause error) error {
	return &causeError{sentinel: sentinel, cause: cause}
}
