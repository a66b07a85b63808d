package websocket

import (
	"errors"
	"fmt"

	apperrors "factory-ops/pkg/errors"
)

const (
	CodeUnauthorized   = "UNAUTHORIZED"
	CodeForbidden      = "FORBIDDEN"
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeNotFound       = "NOT_FOUND"
	CodeRateLimited    = "RATE_LIMITED"
	CodeInternal       = "INTERNAL_ERROR"
)

var errMalformedFrame = fmt.Errorf("%w: malformed frame", apperrors.ErrInvalidInput)

// ErrorCode maps an operation error to the code carried by message_error.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, apperrors.ErrForbidden):
		return CodeForbidden
	case errors.Is(err, apperrors.ErrInvalidInput):
		return CodeInvalidRequest
	case errors.Is(err, apperrors.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, apperrors.ErrRateLimited):
		return CodeRateLimited
	default:
		return CodeInternal
	}
}

// ErrorMessage is the client-facing text. Storage errors are not echoed.
func ErrorMessage(err error) string {
	switch ErrorCode(err) {
	case CodeInternal:
		return "internal error"
	case CodeForbidden:
		return "not a participant of this conversation"
	default:
		return err.Error()
	}
}
