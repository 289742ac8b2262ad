package generation

import (
	"context"
	"errors"
	"fmt"

	"github.com/sony/gobreaker/v2"
	"github.com/uniedit/imagegen/internal/model"
)

// ErrorKind classifies a generation failure.
type ErrorKind string

const (
	KindConfiguration ErrorKind = "configuration"
	KindTransport     ErrorKind = "transport"
	KindProvider      ErrorKind = "provider"
	KindDecode        ErrorKind = "decode"
	KindTimeout       ErrorKind = "timeout"
)

var (
	// ErrConfiguration is returned when required configuration is absent.
	ErrConfiguration = errors.New("configuration error")

	// ErrTransport is returned when the provider cannot be reached.
	ErrTransport = errors.New("transport error")

	// ErrProvider is returned when the provider answers with a non-200 status.
	ErrProvider = errors.New("provider error")

	// ErrDecode is returned when a successful response carries no usable image.
	ErrDecode = errors.New("decode error")

	// ErrTimeout is returned when a wait exceeds its budget.
	ErrTimeout = errors.New("wait timeout")

	// ErrTaskNotFound is returned when a task is not known to the task store.
	ErrTaskNotFound = errors.New("generation task not found")

	// ErrTaskNotSucceeded is returned when an artifact is requested from a task without one.
	ErrTaskNotSucceeded = errors.New("generation task has not succeeded")

	// ErrAsyncUnavailable is returned when background execution is not wired.
	ErrAsyncUnavailable = errors.New("background generation unavailable")

	// ErrTaskStore is returned when the task store cannot be read or written.
	ErrTaskStore = errors.New("task store failure")
)

// Error is a classified generation failure.
type Error struct {
	Kind       ErrorKind
	Message    string
	StatusCode int
	Body       []byte
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := string(e.Kind) + ": " + e.Message
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinel for this error.
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindConfiguration:
		return ErrConfiguration
	case KindTransport:
		return ErrTransport
	case KindProvider:
		return ErrProvider
	case KindDecode:
		return ErrDecode
	case KindTimeout:
		return ErrTimeout
	}
	return nil
}

// NewConfigurationError reports missing or invalid configuration.
func NewConfigurationError(message string) *Error {
	return &Error{Kind: KindConfiguration, Message: message}
}

// NewTransportError reports a network-level failure.
func NewTransportError(err error) *Error {
	return &Error{Kind: KindTransport, Message: "provider unreachable", Err: err}
}

// NewRunnerUnavailableError reports a task that never reached the provider
// because the background runner refused it.
func NewRunnerUnavailableError(err error) *Error {
	return &Error{Kind: KindConfiguration, Message: "background runner unavailable", Err: err}
}

// NewProviderError reports a non-200 provider response.
func NewProviderError(raw *model.RawProviderResponse) *Error {
	e := &Error{Kind: KindProvider, Message: "provider rejected request"}
	if raw != nil {
		e.StatusCode = raw.StatusCode
		e.Body = raw.Body
	}
	return e
}

// NewDecodeError reports an unusable image payload.
func NewDecodeError(message string, raw *model.RawProviderResponse, err error) *Error {
	e := &Error{Kind: KindDecode, Message: message, Err: err}
	if raw != nil {
		e.StatusCode = raw.StatusCode
		e.Body = raw.Body
	}
	return e
}

// NewTimeoutError reports a wait that ran out of budget.
func NewTimeoutError(taskID string, state model.TaskState) *Error {
	return &Error{
		Kind:    KindTimeout,
		Message: fmt.Sprintf("task %s still %s", taskID, state),
	}
}

// Classify maps any error into the generation taxonomy.
// Unknown errors are treated as transport failures.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var genErr *Error
	if errors.As(err, &genErr) {
		return genErr
	}

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return &Error{Kind: KindTransport, Message: "provider circuit open", Err: err}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return &Error{Kind: KindTransport, Message: "provider call interrupted", Err: err}
	default:
		return NewTransportError(err)
	}
}

// ToTaskError converts a classified error into its serializable form.
func ToTaskError(err *Error) *model.TaskError {
	if err == nil {
		return nil
	}
	msg := err.Message
	if err.Err != nil {
		msg += ": " + err.Err.Error()
	}
	return &model.TaskError{
		Kind:       string(err.Kind),
		Message:    msg,
		StatusCode: err.StatusCode,
		Body:       string(err.Body),
	}
}

// FromTaskError restores a classified error from its serializable form.
func FromTaskError(te *model.TaskError) *Error {
	if te == nil {
		return nil
	}
	return &Error{
		Kind:       ErrorKind(te.Kind),
		Message:    te.Message,
		StatusCode: te.StatusCode,
		Body:       []byte(te.Body),
	}
}
