package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType groups errors by the subsystem that produced them.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"

	ErrorTypeExternal ErrorType = "external"
	ErrorTypeNetwork  ErrorType = "network"

	ErrorTypeDownload   ErrorType = "download"
	ErrorTypeTranscode  ErrorType = "transcode"
	ErrorTypeFileSystem ErrorType = "filesystem"

	ErrorTypeBusiness ErrorType = "business"
	ErrorTypeNotFound ErrorType = "not_found"
)

// DomainError is a typed error. Two DomainErrors match under errors.Is when
// their Type and Code are equal, so wrapped instances match the sentinels below.
type DomainError struct {
	Type    ErrorType      `json:"type"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Cause   error          `json:"-"`
	UserMsg string         `json:"user_message,omitempty"`
}

func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Type, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Cause
}

func (e *DomainError) Is(target error) bool {
	if t, ok := target.(*DomainError); ok {
		return e.Type == t.Type && e.Code == t.Code
	}
	return false
}

// GetUserMessage returns the human-readable message, falling back to Message.
func (e *DomainError) GetUserMessage() string {
	if e.UserMsg != "" {
		return e.UserMsg
	}
	return e.Message
}

// IsRetryable reports whether the operation may succeed if attempted again.
func (e *DomainError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeNetwork, ErrorTypeExternal:
		return true
	case ErrorTypeNotFound:
		// a hash unknown right after submission usually shows up on a later poll
		return e.Code == "hash_not_found"
	default:
		return false
	}
}

func NewDomainError(errType ErrorType, code, message string) *DomainError {
	return &DomainError{
		Type:    errType,
		Code:    code,
		Message: message,
		Details: make(map[string]any),
	}
}

func WrapDomainError(err error, errType ErrorType, code, message string) *DomainError {
	return &DomainError{
		Type:    errType,
		Code:    code,
		Message: message,
		Cause:   err,
		Details: make(map[string]any),
	}
}

// Wrap returns a fresh DomainError of the same kind as sentinel carrying cause.
// Sentinels themselves are never mutated.
func Wrap(cause error, sentinel *DomainError, message string) *DomainError {
	if message == "" {
		message = sentinel.Message
	}
	e := WrapDomainError(cause, sentinel.Type, sentinel.Code, message)
	e.UserMsg = sentinel.UserMsg
	return e
}

// New is Wrap without a cause.
func New(sentinel *DomainError, message string) *DomainError {
	return Wrap(nil, sentinel, message)
}

func (e *DomainError) WithDetails(details map[string]any) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]any, len(details))
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

func (e *DomainError) WithUserMessage(msg string) *DomainError {
	e.UserMsg = msg
	return e
}

var ErrInvalidInput = NewDomainError(ErrorTypeValidation, "invalid_input", "invalid input provided")

// Download manager errors.
var (
	ErrManagerUnreachable = NewDomainError(ErrorTypeNetwork, "manager_unreachable", "download manager unreachable").
				WithUserMessage("download manager is unreachable")
	ErrNotFound = NewDomainError(ErrorTypeNotFound, "hash_not_found", "download not registered").
			WithUserMessage("download is not registered with the manager")
	ErrInvalidState = NewDomainError(ErrorTypeBusiness, "invalid_state", "invalid state for operation").
			WithUserMessage("download is not in a state that allows this operation")
	ErrRemovalFailed = NewDomainError(ErrorTypeDownload, "removal_failed", "failed to remove download").
				WithUserMessage("failed to remove the download from the manager")
	ErrRegistrationTimeout = NewDomainError(ErrorTypeDownload, "registration_timeout", "download was never registered").
				WithUserMessage("download manager did not register the download in time")
	ErrDownloadErrored = NewDomainError(ErrorTypeDownload, "remote_error", "download manager reported an error").
				WithUserMessage("download manager reported an error for this download")
	ErrCancelled = NewDomainError(ErrorTypeBusiness, "cancelled", "delivery cancelled").
			WithUserMessage("delivery was cancelled")
)

// Per-file errors.
var (
	ErrTranscodeFailed = NewDomainError(ErrorTypeTranscode, "transcode_failed", "transcoding failed").
				WithUserMessage("transcoding failed")
	ErrFileUnreadable = NewDomainError(ErrorTypeFileSystem, "file_unreadable", "file cannot be read").
				WithUserMessage("file cannot be read")
)

var (
	ErrExternalService = NewDomainError(ErrorTypeExternal, "service_unavailable", "external service unavailable").
				WithUserMessage("external service is unavailable")
	ErrCatalogNotFound = NewDomainError(ErrorTypeNotFound, "catalog_not_found", "release or variant not found").
				WithUserMessage("release or quality variant not found")
)

// UserMessage renders err for a person: the DomainError user message when one is
// in the chain, followed by the root cause.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var de *DomainError
	if !stderrors.As(err, &de) {
		return err.Error()
	}
	msg := de.GetUserMessage()
	root := err
	for e := err; e != nil; e = stderrors.Unwrap(e) {
		root = e
	}
	if _, isDomain := root.(*DomainError); isDomain {
		return msg
	}
	return msg + ": " + root.Error()
}
