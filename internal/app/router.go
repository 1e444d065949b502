// internal/app/router.go
package app

import (
	orderHandler "qrconnect-service/internal/handlers/order"
	subscriptionHandler "qrconnect-service/internal/handlers/subscription"
	walletHandler "qrconnect-service/internal/handlers/wallet"
	webhookHandler "qrconnect-service/internal/handlers/webhook"
	"qrconnect-service/internal/middleware"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	WebhookHandler      *webhookHandler.WebhookHandler
	WalletHandler       *walletHandler.WalletHandler
	SubscriptionHandler *subscriptionHandler.SubscriptionHandler
	OrderHandler        *orderHandler.OrderHandler
	AuthMiddleware      *middleware.AuthMiddleware
}

func SetupRouter(r *gin.Engine, h *Handlers) {
	api := r.Group("/api/v1")

	// ==================== Health Check ====================
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "version": "1.0.0"})
	})

	// ==================== Provider Webhooks (public) ====================
	// Authenticated by signature verification, not by bearer tokens.
	api.POST("/webhooks/:provider", h.WebhookHandler.Handle)

	// ==================== Wallet ====================
	wallet := api.Group("/wallet")
	wallet.Use(h.AuthMiddleware.Auth())
	{
		wallet.GET("", h.WalletHandler.GetWallet)
		wallet.GET("/transactions", h.WalletHandler.ListTransactions)
		wallet.GET("/withdrawals", h.WalletHandler.ListWithdrawals)
		wallet.POST("/withdrawals", h.WalletHandler.PlaceWithdrawal)
		wallet.PUT("/payout-account", h.WalletHandler.SetPayoutAccount)
	}

	// ==================== Subscriptions ====================
	subscriptions := api.Group("/subscriptions")
	subscriptions.Use(h.AuthMiddleware.Auth())
	{
		subscriptions.GET("/me", h.SubscriptionHandler.GetSubscription)
		subscriptions.POST("/free-trial", h.SubscriptionHandler.StartFreeTrial)
		subscriptions.POST("/subscribe", h.SubscriptionHandler.Subscribe)
		subscriptions.POST("/cancel", h.SubscriptionHandler.Cancel)
	}

	// ==================== Orders ====================
	orders := api.Group("/orders")
	orders.Use(h.AuthMiddleware.Auth())
	{
		orders.GET("/:id", h.OrderHandler.GetOrder)
		orders.POST("/:id/checkout", h.OrderHandler.CreateCheckout)
	}

	// ==================== Admin ====================
	admin := api.Group("/admin")
	admin.Use(h.AuthMiddleware.Auth(), h.AuthMiddleware.RequireAdmin())
	{
		admin.GET("/wallets/:businessId", h.WalletHandler.GetBusinessWallet)
		admin.PUT("/wallets/:businessId/restrict", h.WalletHandler.RestrictWallet)
		admin.PUT("/withdrawals/:id/settle", h.WalletHandler.SettleWithdrawal)
	}
}
