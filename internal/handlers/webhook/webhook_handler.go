// internal/handlers/webhook/webhook_handler.go
package webhook

import (
	"io"
	"net/http"

	xerrors "qrconnect-service/internal/pkg/errors"
	"qrconnect-service/internal/service/intake"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type WebhookHandler struct {
	intake *intake.Service
	logger *zap.Logger
}

func NewWebhookHandler(intakeSvc *intake.Service, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{intake: intakeSvc, logger: logger}
}

// Handle receives a provider webhook. The endpoint speaks only in status
// codes: 200 for handled-or-duplicate, 403 for bad signatures, anything else
// makes the provider redeliver.
func (h *WebhookHandler) Handle(c *gin.Context) {
	provider := c.Param("provider")
	if provider != "paypal" {
		c.Status(http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}

	err = h.intake.Process(c.Request.Context(), c.Request.Header, body)
	switch {
	case err == nil:
		c.Status(http.StatusOK)
	case xerrors.Is(err, xerrors.ErrVerificationFailed):
		c.Status(http.StatusForbidden)
	case xerrors.Is(err, xerrors.ErrInvalidInput):
		h.logger.Warn("rejected malformed webhook", zap.Error(err))
		c.Status(http.StatusBadRequest)
	case xerrors.Is(err, xerrors.ErrNotFound):
		// Referenced aggregate missing; park and let redelivery converge.
		c.Status(http.StatusNotFound)
	default:
		c.Status(http.StatusInternalServerError)
	}
}
