package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches kind sentinels (a DomainError with an empty Message) by code,
// and any other DomainError by code and message.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	if t.Code != e.Code {
		return false
	}
	return t.Message == "" || t.Message == e.Message
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	ErrCodeValidation            = "VALIDATION_ERROR"
	ErrCodeConfiguration         = "CONFIGURATION_ERROR"
	ErrCodeInvalidArgument       = "INVALID_ARGUMENT"
	ErrCodeNotFound              = "NOT_FOUND"
	ErrCodeAlreadyExists         = "ALREADY_EXISTS"
	ErrCodeUnauthorized          = "UNAUTHORIZED"
	ErrCodeInternalError         = "INTERNAL_ERROR"
	ErrCodeOCRUnavailable        = "OCR_UNAVAILABLE"
	ErrCodeUnsupportedFormat     = "UNSUPPORTED_FORMAT"
	ErrCodeEmbeddingUnavailable  = "EMBEDDING_UNAVAILABLE"
	ErrCodeCapabilityUnavailable = "CAPABILITY_UNAVAILABLE"
	ErrCodeRateLimited           = "RATE_LIMITED"
	ErrCodeTimeout               = "TIMEOUT"
	ErrCodeCapabilityAuth        = "CAPABILITY_AUTH"
	ErrCodeDimensionMismatch     = "DIMENSION_MISMATCH"
	ErrCodeExtractionParse       = "EXTRACTION_PARSE"
	ErrCodeExtractionFailed      = "EXTRACTION_FAILED"
)

// Kind sentinels, for use with errors.Is.
var (
	ErrConfiguration         = &DomainError{Code: ErrCodeConfiguration}
	ErrInvalidArgument       = &DomainError{Code: ErrCodeInvalidArgument}
	ErrNotFound              = &DomainError{Code: ErrCodeNotFound}
	ErrOCRUnavailable        = &DomainError{Code: ErrCodeOCRUnavailable}
	ErrUnsupportedFormat     = &DomainError{Code: ErrCodeUnsupportedFormat}
	ErrEmbeddingUnavailable  = &DomainError{Code: ErrCodeEmbeddingUnavailable}
	ErrCapabilityUnavailable = &DomainError{Code: ErrCodeCapabilityUnavailable}
	ErrRateLimited           = &DomainError{Code: ErrCodeRateLimited}
	ErrTimeout               = &DomainError{Code: ErrCodeTimeout}
	ErrCapabilityAuth        = &DomainError{Code: ErrCodeCapabilityAuth}
	ErrDimensionMismatch     = &DomainError{Code: ErrCodeDimensionMismatch}
	ErrExtractionParse       = &DomainError{Code: ErrCodeExtractionParse}
	ErrExtractionFailed      = &DomainError{Code: ErrCodeExtractionFailed}
)

// Sentinel errors. errors.Is matches code and message.
var (
	ErrDocumentNotFound  = NewDomainError(ErrCodeNotFound, "document not found")
	ErrJobNotFound       = NewDomainError(ErrCodeNotFound, "ingestion job not found")
	ErrSchemaNotFound    = NewDomainError(ErrCodeNotFound, "extraction schema not found")
	ErrSourceNotFound    = NewDomainError(ErrCodeNotFound, "document source not found")
	ErrRecordNotFound    = NewDomainError(ErrCodeNotFound, "extraction record not found")
	ErrInvalidAPIKey     = NewDomainError(ErrCodeUnauthorized, "invalid api key")
	ErrEmptyQuery        = NewDomainError(ErrCodeInvalidArgument, "query text is required")
	ErrEmptyDocumentData = NewDomainError(ErrCodeInvalidArgument, "document content is empty")
)

// Configurationf builds a ConfigurationError.
func Configurationf(format string, args ...any) *DomainError {
	return NewDomainError(ErrCodeConfiguration, fmt.Sprintf(format, args...))
}

// InvalidArgumentf builds an InvalidArgumentError.
func InvalidArgumentf(format string, args ...any) *DomainError {
	return NewDomainError(ErrCodeInvalidArgument, fmt.Sprintf(format, args...))
}

// DimensionMismatch builds a DimensionMismatchError describing both sides.
func DimensionMismatch(wantModel string, wantDims int, gotModel string, gotDims int) *DomainError {
	return NewDomainError(ErrCodeDimensionMismatch, fmt.Sprintf(
		"vector from model %q (%d dims) cannot be compared with model %q (%d dims); re-embed the store",
		gotModel, gotDims, wantModel, wantDims,
	))
}

// ExtractionError is returned by structured extraction and carries the raw
// model output for audit.
type ExtractionError struct {
	*DomainError
	RawResponse string
	Attempts    int
}

// Unwrap exposes the DomainError so errors.As and status mapping see the code.
func (e *ExtractionError) Unwrap() error {
	return e.DomainError
}

// NewExtractionParseError reports model output that could not be parsed as JSON.
func NewExtractionParseError(raw string, cause error) *ExtractionError {
	return &ExtractionError{
		DomainError: NewDomainErrorWithCause(ErrCodeExtractionParse, "model response is not valid JSON", cause),
		RawResponse: raw,
		Attempts:    1,
	}
}

// NewExtractionFailedError reports extraction that did not succeed after retries.
func NewExtractionFailedError(raw string, attempts int, cause error) *ExtractionError {
	return &ExtractionError{
		DomainError: NewDomainErrorWithCause(ErrCodeExtractionFailed, fmt.Sprintf("extraction failed after %d attempt(s)", attempts), cause),
		RawResponse: raw,
		Attempts:    attempts,
	}
}

// CodeOf returns the DomainError code in err's chain, or "".
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsTransient reports whether err is a dependency failure worth retrying.
func IsTransient(err error) bool {
	switch CodeOf(err) {
	case ErrCodeOCRUnavailable, ErrCodeEmbeddingUnavailable, ErrCodeCapabilityUnavailable,
		ErrCodeRateLimited, ErrCodeTimeout:
		return true
	}
	return false
}
