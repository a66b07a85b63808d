package handler

import (
	"errors"
	"net/http"

	"factory-ops/internal/services"
	"factory-ops/internal/transport/httpdto"
	apperrors "factory-ops/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func errorCode(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrInvalidInput):
		return "INVALID_REQUEST"
	case errors.Is(err, apperrors.ErrUnauthorized):
		return "UNAUTHORIZED"
	case errors.Is(err, apperrors.ErrForbidden):
		return "FORBIDDEN"
	case errors.Is(err, apperrors.ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, apperrors.ErrAlreadyExists), errors.Is(err, apperrors.ErrConflict):
		return "CONFLICT"
	case errors.Is(err, apperrors.ErrRateLimited):
		return "RATE_LIMITED"
	case errors.Is(err, apperrors.ErrServiceUnavailable):
		return "SERVICE_UNAVAILABLE"
	default:
		return "INTERNAL_ERROR"
	}
}

// respondError writes the error envelope. Unexpected errors are also handed
// to gin so ErrorHandler logs them; their text is not sent to the client.
func respondError(c *gin.Context, err error) {
	status := services.HTTPStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		msg = "internal error"
	}
	c.JSON(status, httpdto.NewErrorResponse(msg, errorCode(err)))
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse(msg, "INVALID_REQUEST"))
}

func currentUser(c *gin.Context) (uuid.UUID, bool) {
	id, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
	}
	return id, ok
}
