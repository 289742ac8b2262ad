package errors

import (
	"context"
	"errors"
	"net/http"

	"github.com/uniedit/imagegen/internal/domain/generation"
)

// StatusClientClosedRequest is reported when the caller went away first.
const StatusClientClosedRequest = 499

// FromGenerationError maps a generation failure to an AppError.
// Non-generation errors are classified first.
func FromGenerationError(err error) *AppError {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, generation.ErrTaskNotFound):
		return NotFound("generation task").WithError(err)
	case errors.Is(err, generation.ErrTaskNotSucceeded):
		return Conflict("generation task has not succeeded").WithError(err)
	case errors.Is(err, generation.ErrAsyncUnavailable):
		return ServiceUnavailable("background generation unavailable").WithError(err)
	case errors.Is(err, generation.ErrTaskStore):
		return NewAppError("TASK_STORE_UNAVAILABLE", "task store unavailable", http.StatusServiceUnavailable, err)
	}

	// Bare context errors come from the caller, not from the provider.
	var genErr *generation.Error
	if !errors.As(err, &genErr) {
		switch {
		case errors.Is(err, context.Canceled):
			return NewAppError("REQUEST_CANCELED", "request canceled", StatusClientClosedRequest, err)
		case errors.Is(err, context.DeadlineExceeded):
			return Timeout("request deadline exceeded").WithError(err)
		}
	}

	genErr = generation.Classify(err)

	var appErr *AppError
	switch genErr.Kind {
	case generation.KindConfiguration:
		appErr = NewAppError("CONFIGURATION_ERROR", genErr.Message, http.StatusInternalServerError, err)
	case generation.KindProvider:
		appErr = BadGateway("PROVIDER_ERROR", genErr.Message, err)
	case generation.KindDecode:
		appErr = BadGateway("DECODE_ERROR", genErr.Message, err)
	case generation.KindTimeout:
		appErr = Timeout(genErr.Message).WithError(err)
	default:
		appErr = BadGateway("TRANSPORT_ERROR", genErr.Message, err)
	}

	details := map[string]any{"kind": string(genErr.Kind)}
	if genErr.StatusCode != 0 {
		details["provider_status"] = genErr.StatusCode
	}
	return appErr.WithDetails(details)
}
