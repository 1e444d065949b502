// internal/handlers/subscription/subscription_handler.go
package subscription

import (
	"context"
	"net/http"

	subdomain "qrconnect-service/internal/domain/subscription"
	"qrconnect-service/internal/middleware"
	xerrors "qrconnect-service/internal/pkg/errors"
	"qrconnect-service/internal/pkg/response"
	"qrconnect-service/internal/service/reconciler"

	"github.com/gin-gonic/gin"
)

type SubscriptionReader interface {
	FindByBusiness(ctx context.Context, businessID int64) (*subdomain.Subscription, error)
}

type SubscriptionHandler struct {
	reconciler *reconciler.Reconciler
	subs       SubscriptionReader
}

func NewSubscriptionHandler(rec *reconciler.Reconciler, subs SubscriptionReader) *SubscriptionHandler {
	return &SubscriptionHandler{reconciler: rec, subs: subs}
}

// GetSubscription returns the current subscription for the business, if any.
func (h *SubscriptionHandler) GetSubscription(c *gin.Context) {
	businessID := middleware.MustGetAccountID(c)

	sub, err := h.subs.FindByBusiness(c.Request.Context(), businessID)
	if err != nil {
		response.FromError(c, "failed to load subscription", err)
		return
	}
	response.Success(c, http.StatusOK, "subscription retrieved", sub)
}

// StartFreeTrial grants the one-time free trial for the chosen trial plan.
func (h *SubscriptionHandler) StartFreeTrial(c *gin.Context) {
	businessID := middleware.MustGetAccountID(c)

	var req struct {
		PlanID int64 `json:"plan_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", xerrors.ErrInvalidInput)
		return
	}

	sub, err := h.reconciler.GrantFreeTrial(c.Request.Context(), businessID, req.PlanID)
	if err != nil {
		response.FromError(c, "failed to start free trial", err)
		return
	}
	response.Success(c, http.StatusCreated, "free trial started successfully", sub)
}

// Subscribe creates a provider subscription and returns the approval link.
// The internal subscription is written when the activation webhook arrives.
func (h *SubscriptionHandler) Subscribe(c *gin.Context) {
	businessID := middleware.MustGetAccountID(c)

	var req struct {
		PlanID int64 `json:"plan_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", xerrors.ErrInvalidInput)
		return
	}

	approvalURL, err := h.reconciler.StartProviderSubscription(c.Request.Context(), businessID, req.PlanID)
	if err != nil {
		response.FromError(c, "failed to start subscription", err)
		return
	}
	response.Success(c, http.StatusOK, "subscription initiated, approval required", gin.H{
		"approval_url": approvalURL,
	})
}

// Cancel asks the provider to cancel the active subscription. State changes
// land via the cancellation webhook.
func (h *SubscriptionHandler) Cancel(c *gin.Context) {
	businessID := middleware.MustGetAccountID(c)

	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&req)
	if req.Reason == "" {
		req.Reason = "cancelled by business"
	}

	if err := h.reconciler.CancelProviderSubscription(c.Request.Context(), businessID, req.Reason); err != nil {
		response.FromError(c, "failed to cancel subscription", err)
		return
	}
	response.Success(c, http.StatusOK, "subscription cancellation requested", nil)
}
