// internal/pkg/response/response.go
package response

import (
	"net/http"

	xerrors "qrconnect-service/internal/pkg/errors"

	"github.com/gin-gonic/gin"
)

// Response defines the standard API response format.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Code    string      `json:"code,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Success sends a successful response with a message and optional data.
func Success(c *gin.Context, status int, message string, data interface{}) {
	if status == 0 {
		status = http.StatusOK
	}

	c.JSON(status, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Error sends a standardized error response with a machine-readable code.
func Error(c *gin.Context, status int, message string, err error) {
	c.Abort()

	resp := Response{
		Success: false,
		Message: message,
	}

	if err != nil {
		resp.Error = err.Error()
		resp.Code = xerrors.Code(err)
	}

	c.JSON(status, resp)
}

// FromError maps a sentinel error to its HTTP status and responds.
func FromError(c *gin.Context, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case xerrors.Is(err, xerrors.ErrNotFound):
		status = http.StatusNotFound
	case xerrors.Is(err, xerrors.ErrUnauthorized):
		status = http.StatusUnauthorized
	case xerrors.Is(err, xerrors.ErrForbidden), xerrors.Is(err, xerrors.ErrVerificationFailed):
		status = http.StatusForbidden
	case xerrors.Is(err, xerrors.ErrInvalidInput),
		xerrors.Is(err, xerrors.ErrBadRequest),
		xerrors.Is(err, xerrors.ErrInsufficientBalance),
		xerrors.Is(err, xerrors.ErrWalletRestricted),
		xerrors.Is(err, xerrors.ErrSubscriptionRequired),
		xerrors.Is(err, xerrors.ErrTrialAlreadyUsed):
		status = http.StatusBadRequest
	case xerrors.Is(err, xerrors.ErrConflict),
		xerrors.Is(err, xerrors.ErrDuplicateEntry),
		xerrors.Is(err, xerrors.ErrAlreadyProcessed):
		status = http.StatusConflict
	}
	Error(c, status, message, err)
}

// Unauthorized sends a 401 Unauthorized response.
func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, message, xerrors.ErrUnauthorized)
}

// Forbidden sends a 403 Forbidden response.
func Forbidden(c *gin.Context, message string) {
	Error(c, http.StatusForbidden, message, xerrors.ErrForbidden)
}

// NotFound sends a 404 Not Found response.
func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, message, xerrors.ErrNotFound)
}
