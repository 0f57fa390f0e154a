package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/scinklja/vip-bot/config"
	"github.com/scinklja/vip-bot/controller"
	"github.com/scinklja/vip-bot/dao"
	"github.com/scinklja/vip-bot/logic"
	"github.com/scinklja/vip-bot/middleware"
	"github.com/scinklja/vip-bot/models"
	"github.com/scinklja/vip-bot/pkg"
)

func main() {
	// Initialize config
	if len(os.Args) < 2 {
		log.Fatal("Usage: vip-bot <config.yaml>")
	}
	cfg, err := config.Load(os.Args[1])
	if err != nil {
		log.Fatalf("Failed to load config from %s: %v", os.Args[1], err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := db.AutoMigrate(&models.UserRecord{}, &models.LedgerEvent{}); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// Initialize clients
	chatClient := pkg.NewChatClient(cfg.Chat.APIBaseURL, cfg.Chat.BotToken, cfg.Chat.PollTimeoutSec, logger)
	ledgerClient := pkg.NewLedgerClient(cfg.Ledger.ExplorerURL)

	// Initialize DAOs
	userDAO := dao.NewUserRecordDAO(db)
	eventDAO := dao.NewLedgerEventDAO(db)

	// Initialize Logics
	cleanup := logic.NewCleanupScheduler(chatClient,
		time.Duration(cfg.Verification.CleanupDelayMs)*time.Millisecond, logger)
	claims := logic.NewClaimRegistry(userDAO)
	verifier := logic.NewVerificationEngine(
		userDAO, ledgerClient, chatClient, claims, cleanup,
		cfg.Chat.RoomID, cfg.Verification.MeritThreshold,
		time.Duration(cfg.Verification.StaleAfterMs)*time.Millisecond, logger)
	moderator := logic.NewModerationEngine(verifier, chatClient, logger)

	// Ledger event feed is optional
	if cfg.Ledger.RelayURL != "" {
		nostrClient, err := pkg.NewNostrClient(ctx, cfg.Ledger.RelayURL, cfg.Ledger.EventSession, logger)
		if err != nil {
			log.Fatalf("Failed to connect to ledger relay: %v", err)
		}
		defer nostrClient.Close()

		eventLogic := logic.NewLedgerEventLogic(userDAO, eventDAO, nostrClient, logger)
		go func() {
			if err := eventLogic.SyncEvents(ctx); err != nil {
				logger.Error("ledger event sync failed", "error", err)
			}
			if err := eventLogic.StartListener(ctx); err != nil {
				logger.Error("ledger event listener failed", "error", err)
			}
		}()
	}

	// Initialize Controllers
	botCtrl := controller.NewBotController(verifier, moderator, chatClient, logger)
	adminCtrl := controller.NewAdminController(userDAO, eventDAO)

	// Start update dispatch loop
	botCtrl.Start(ctx)

	// Setup Gin router
	r := gin.Default()
	r.GET("/healthz", adminCtrl.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	admin := r.Group("/admin", middleware.Auth(cfg.Auth.Secret))
	admin.GET("/users/:id", adminCtrl.GetUser)
	admin.GET("/verified", adminCtrl.ListVerified)
	admin.GET("/stats", adminCtrl.Stats)
	admin.GET("/events", adminCtrl.ListEvents)

	// Run server
	if err := r.Run(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil {
		log.Fatalf("Failed to run server: %v", err)
	}
}
