// internal/app/server.go
package app

import (
	"context"
	"fmt"
	"log"

	"qrconnect-service/internal/config"
	"qrconnect-service/internal/db"
	orderHandler "qrconnect-service/internal/handlers/order"
	subscriptionHandler "qrconnect-service/internal/handlers/subscription"
	walletHandler "qrconnect-service/internal/handlers/wallet"
	webhookHandler "qrconnect-service/internal/handlers/webhook"
	"qrconnect-service/internal/middleware"
	"qrconnect-service/internal/pkg/jwt"
	"qrconnect-service/internal/repository/postgres"
	"qrconnect-service/internal/service/idempotency"
	"qrconnect-service/internal/service/intake"
	"qrconnect-service/internal/service/notification"
	"qrconnect-service/internal/service/payment"
	"qrconnect-service/internal/service/reconciler"
	"qrconnect-service/internal/service/settlement"
	walletUsecase "qrconnect-service/internal/service/wallet"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	cfg    config.AppConfig
	engine *gin.Engine
	logger *zap.Logger
}

func NewServer() *Server {
	cfg := config.Load()
	engine := gin.New()
	return &Server{cfg: cfg, engine: engine}
}

func (s *Server) Start() error {
	ctx := context.Background()

	// ----- Logger -----
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()
	s.logger = logger

	// ----- PostgreSQL -----
	pool, err := db.ConnectDB(ctx, s.cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	if err := db.Migrate(s.cfg.DatabaseURL, s.cfg.MigrationsPath); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// ----- Redis -----
	redisClient, err := db.NewRedisClient(db.RedisConfig{
		Addr:     s.cfg.RedisAddr,
		Password: s.cfg.RedisPass,
		DB:       s.cfg.RedisDB,
		PoolSize: 10,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	// ----- JWT Manager -----
	jwtManager, err := jwt.NewManager(s.cfg.JWT)
	if err != nil {
		return fmt.Errorf("failed to load JWT manager: %w", err)
	}

	// ----- Repositories -----
	eventRepo := postgres.NewEventRepository(pool)
	businessRepo := postgres.NewBusinessRepository(pool)
	subscriptionRepo := postgres.NewSubscriptionRepository(pool)
	planRepo := postgres.NewPlanRepository(pool)
	subscriptionLogRepo := postgres.NewSubscriptionLogRepository(pool)
	walletRepo := postgres.NewWalletRepository(pool)
	ledgerRepo := postgres.NewLedgerRepository(pool)
	withdrawalRepo := postgres.NewWithdrawalRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	transactionRepo := postgres.NewTransactionRepository(pool)

	// ----- Payment provider client -----
	tokenCache := payment.NewRedisTokenCache(redisClient, "")
	providerClient := payment.NewClient(payment.Config{
		BaseURL:   s.cfg.PayPalBaseURL,
		ClientID:  s.cfg.PayPalClientID,
		Secret:    s.cfg.PayPalSecret,
		WebhookID: s.cfg.PayPalWebhookID,
		BrandName: s.cfg.PayPalBrandName,
		ReturnURL: s.cfg.BaseURL + "/payment/return",
		CancelURL: s.cfg.BaseURL + "/payment/cancel",
	}, tokenCache, logger)

	// ----- Notifications -----
	notifier := notification.NewRedisSender(redisClient, s.cfg.NotificationQueue)

	// ----- Services -----
	eventLedger := idempotency.NewLedger(eventRepo, logger)
	walletService := walletUsecase.NewService(
		walletRepo,
		ledgerRepo,
		withdrawalRepo,
		businessRepo,
		notifier,
		logger,
	)
	settlementCoordinator := settlement.NewCoordinator(
		transactionRepo,
		orderRepo,
		walletService,
		notifier,
		logger,
	)
	subscriptionReconciler := reconciler.NewReconciler(
		subscriptionRepo,
		planRepo,
		subscriptionLogRepo,
		businessRepo,
		providerClient,
		notifier,
		logger,
	)
	intakeService := intake.NewService(
		providerClient,
		eventLedger,
		subscriptionReconciler,
		settlementCoordinator,
		logger,
	)

	// ----- Handlers -----
	webhookHandlerInst := webhookHandler.NewWebhookHandler(intakeService, logger)
	walletHandlerInst := walletHandler.NewWalletHandler(walletService)
	subscriptionHandlerInst := subscriptionHandler.NewSubscriptionHandler(subscriptionReconciler, subscriptionRepo)
	orderHandlerInst := orderHandler.NewOrderHandler(orderRepo, providerClient)

	// ----- Middlewares -----
	authMiddleware := middleware.NewAuthMiddleware(jwtManager)

	s.engine.Use(
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger),
		middleware.CORSMiddleware(),
	)

	// ----- Router -----
	handlers := &Handlers{
		WebhookHandler:      webhookHandlerInst,
		WalletHandler:       walletHandlerInst,
		SubscriptionHandler: subscriptionHandlerInst,
		OrderHandler:        orderHandlerInst,
		AuthMiddleware:      authMiddleware,
	}
	SetupRouter(s.engine, handlers)

	log.Printf("Server running on %s", s.cfg.HTTPAddr)
	return s.engine.Run(s.cfg.HTTPAddr)
}
