// internal/handlers/wallet/wallet_handler.go
package wallet

import (
	"net/http"
	"strconv"

	walletdomain "qrconnect-service/internal/domain/wallet"
	"qrconnect-service/internal/middleware"
	xerrors "qrconnect-service/internal/pkg/errors"
	"qrconnect-service/internal/pkg/response"
	service "qrconnect-service/internal/service/wallet"

	"github.com/gin-gonic/gin"
)

type WalletHandler struct {
	walletService *service.Service
}

func NewWalletHandler(walletService *service.Service) *WalletHandler {
	return &WalletHandler{walletService: walletService}
}

// ========== Business Endpoints ==========

// GetWallet returns the authenticated business wallet.
func (h *WalletHandler) GetWallet(c *gin.Context) {
	businessID := middleware.MustGetAccountID(c)

	w, err := h.walletService.GetWallet(c.Request.Context(), businessID)
	if err != nil {
		response.FromError(c, "failed to load wallet", err)
		return
	}
	response.Success(c, http.StatusOK, "wallet retrieved", w)
}

// ListTransactions returns the business ledger entries.
func (h *WalletHandler) ListTransactions(c *gin.Context) {
	businessID := middleware.MustGetAccountID(c)

	var filters walletdomain.ListFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid query parameters", xerrors.ErrInvalidInput)
		return
	}

	entries, err := h.walletService.ListEntries(c.Request.Context(), businessID, filters)
	if err != nil {
		response.FromError(c, "failed to list transactions", err)
		return
	}
	response.Success(c, http.StatusOK, "transactions retrieved", gin.H{
		"transactions": entries,
		"page":         filters.Page,
		"page_size":    filters.PageSize,
	})
}

// ListWithdrawals returns the business withdrawal history.
func (h *WalletHandler) ListWithdrawals(c *gin.Context) {
	businessID := middleware.MustGetAccountID(c)

	var filters walletdomain.ListFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid query parameters", xerrors.ErrInvalidInput)
		return
	}

	withdrawals, err := h.walletService.ListWithdrawals(c.Request.Context(), businessID, filters)
	if err != nil {
		response.FromError(c, "failed to list withdrawals", err)
		return
	}
	response.Success(c, http.StatusOK, "withdrawals retrieved", gin.H{
		"withdrawals": withdrawals,
		"page":        filters.Page,
		"page_size":   filters.PageSize,
	})
}

// PlaceWithdrawal reserves the amount and opens a pending withdrawal.
func (h *WalletHandler) PlaceWithdrawal(c *gin.Context) {
	businessID := middleware.MustGetAccountID(c)

	var req walletdomain.CreateWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", xerrors.ErrInvalidInput)
		return
	}

	withdrawal, entry, err := h.walletService.RequestWithdrawal(c.Request.Context(), businessID, req.AmountMinor)
	if err != nil {
		response.FromError(c, "failed to place withdrawal", err)
		return
	}

	response.Success(c, http.StatusCreated, "withdrawal placed successfully", gin.H{
		"withdrawal":  withdrawal,
		"transaction": entry,
	})
}

// SetPayoutAccount stores the payout email for the wallet.
func (h *WalletHandler) SetPayoutAccount(c *gin.Context) {
	businessID := middleware.MustGetAccountID(c)

	var req struct {
		PayoutEmail string `json:"payout_email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", xerrors.ErrInvalidInput)
		return
	}

	if err := h.walletService.SetPayoutEmail(c.Request.Context(), businessID, req.PayoutEmail); err != nil {
		response.FromError(c, "failed to update payout account", err)
		return
	}
	response.Success(c, http.StatusOK, "payout account updated successfully", nil)
}

// ========== Admin Endpoints ==========

// GetBusinessWallet returns any business wallet by id.
func (h *WalletHandler) GetBusinessWallet(c *gin.Context) {
	businessID, err := strconv.ParseInt(c.Param("businessId"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid business ID", xerrors.ErrInvalidInput)
		return
	}

	w, err := h.walletService.GetWallet(c.Request.Context(), businessID)
	if err != nil {
		response.FromError(c, "failed to load wallet", err)
		return
	}
	response.Success(c, http.StatusOK, "wallet retrieved", w)
}

// SettleWithdrawal finalizes a pending withdrawal.
func (h *WalletHandler) SettleWithdrawal(c *gin.Context) {
	withdrawalID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid withdrawal ID", xerrors.ErrInvalidInput)
		return
	}

	var req walletdomain.SettleWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", xerrors.ErrInvalidInput)
		return
	}

	withdrawal, err := h.walletService.Settle(c.Request.Context(), withdrawalID, req.Status)
	if err != nil {
		response.FromError(c, "failed to settle withdrawal", err)
		return
	}
	response.Success(c, http.StatusOK, "withdrawal settled successfully", withdrawal)
}

// RestrictWallet toggles the withdrawal gate for a business wallet.
func (h *WalletHandler) RestrictWallet(c *gin.Context) {
	businessID, err := strconv.ParseInt(c.Param("businessId"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid business ID", xerrors.ErrInvalidInput)
		return
	}

	var req walletdomain.RestrictWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Restricted == nil {
		response.Error(c, http.StatusBadRequest, "invalid request", xerrors.ErrInvalidInput)
		return
	}

	if err := h.walletService.Restrict(c.Request.Context(), businessID, *req.Restricted); err != nil {
		response.FromError(c, "failed to update wallet restriction", err)
		return
	}
	response.Success(c, http.StatusOK, "wallet restriction updated successfully", nil)
}
