// internal/handlers/order/order_handler.go
package order

import (
	"context"
	"net/http"
	"strconv"

	orderdomain "qrconnect-service/internal/domain/order"
	"qrconnect-service/internal/middleware"
	xerrors "qrconnect-service/internal/pkg/errors"
	"qrconnect-service/internal/pkg/response"
	"qrconnect-service/internal/service/payment"

	"github.com/gin-gonic/gin"
)

type OrderStore interface {
	FindByID(ctx context.Context, id int64) (*orderdomain.Order, error)
	SetSessionID(ctx context.Context, orderID int64, sessionID string) error
}

type CheckoutClient interface {
	CreateCheckoutSession(ctx context.Context, amountMinor int64, currency string, orderID int64) (*payment.CheckoutSession, error)
}

type OrderHandler struct {
	orders   OrderStore
	checkout CheckoutClient
}

func NewOrderHandler(orders OrderStore, checkout CheckoutClient) *OrderHandler {
	return &OrderHandler{orders: orders, checkout: checkout}
}

// GetOrder returns an order owned by the authenticated buyer.
func (h *OrderHandler) GetOrder(c *gin.Context) {
	buyerID := middleware.MustGetAccountID(c)

	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid order ID", xerrors.ErrInvalidInput)
		return
	}

	ord, err := h.orders.FindByID(c.Request.Context(), orderID)
	if err != nil {
		response.FromError(c, "failed to load order", err)
		return
	}
	if ord.BuyerID != buyerID {
		response.NotFound(c, "order not found")
		return
	}
	response.Success(c, http.StatusOK, "order retrieved", ord)
}

// CreateCheckout opens a provider checkout session for an unpaid order and
// returns the redirect URL. The session id is stored so the completed-payment
// webhook can be correlated back to this order.
func (h *OrderHandler) CreateCheckout(c *gin.Context) {
	buyerID := middleware.MustGetAccountID(c)

	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid order ID", xerrors.ErrInvalidInput)
		return
	}

	ord, err := h.orders.FindByID(c.Request.Context(), orderID)
	if err != nil {
		response.FromError(c, "failed to load order", err)
		return
	}
	if ord.BuyerID != buyerID {
		response.NotFound(c, "order not found")
		return
	}
	if ord.PaymentStatus == orderdomain.PaymentSuccess {
		response.Error(c, http.StatusConflict, "order is already paid", xerrors.ErrAlreadyProcessed)
		return
	}

	session, err := h.checkout.CreateCheckoutSession(c.Request.Context(), ord.AmountMinor, ord.Currency, ord.ID)
	if err != nil {
		response.FromError(c, "failed to create checkout session", err)
		return
	}

	if err := h.orders.SetSessionID(c.Request.Context(), ord.ID, session.SessionID); err != nil {
		response.FromError(c, "failed to attach checkout session", err)
		return
	}

	response.Success(c, http.StatusCreated, "checkout session created", gin.H{
		"session_id":   session.SessionID,
		"checkout_url": session.URL,
	})
}
