package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chikondi_backend/internal/auth"
	"chikondi_backend/internal/config"
	"chikondi_backend/internal/handlers"
	"chikondi_backend/internal/logger"
	"chikondi_backend/internal/middleware"
	"chikondi_backend/internal/models"
	"chikondi_backend/internal/paychangu"
	"chikondi_backend/internal/repositories"
	"chikondi_backend/internal/routes"
	"chikondi_backend/internal/services"
	"chikondi_backend/internal/utils"
	"chikondi_backend/internal/workers"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func Run() {
	config.LoadConfig()
	cfg := config.GetConfig()

	logger.Init(cfg.Server.Env)

	db, err := gorm.Open(postgres.Open(cfg.Database.DSN), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		logger.Fatal("failed to connect to database", "error", err)
	}

	if err := migrate(db); err != nil {
		logger.Fatal("database migration failed", "error", err)
	}
	seedAdmin(db)

	gateway := paychangu.NewClient(paychangu.Config{
		BaseURL:   cfg.PayChangu.BaseURL,
		SecretKey: cfg.PayChangu.SecretKey,
		Timeout:   time.Duration(cfg.PayChangu.TimeoutSec) * time.Second,
	})

	// типизированный nil в интерфейсе сломает проверку email == nil,
	// поэтому присваиваем только живой sender
	var email services.EmailSender
	if sender := utils.NewSMTPEmailSender(cfg); sender != nil {
		email = sender
	}

	svc := services.NewServiceContainer(db, gateway, email, cfg)
	appHandlers := handlers.NewAppHandlers(svc, cfg)

	router := SetupRouter(db, appHandlers, cfg)

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	workers.NewReconciler(repositories.NewPaymentRepository(db), svc.Settlement).Start(workerCtx)
	workers.NewSubscriptionExpiryWorker(repositories.NewSubscriptionRepository(db)).Start(workerCtx)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", addr, "env", cfg.Server.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	stopWorkers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

func SetupRouter(db *gorm.DB, h *handlers.AppHandlers, cfg *config.Config) *gin.Engine {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.HandleMethodNotAllowed = true

	router.Use(
		gin.Recovery(),
		middleware.RequestIDMiddleware(),
		middleware.LoggingMiddleware(),
		middleware.DBMiddleware(db),
	)

	routes.RegisterRoutes(router, h)
	return router
}

func migrate(db *gorm.DB) error {
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`).Error; err != nil {
		return err
	}
	return db.AutoMigrate(
		&models.User{},
		&models.Profile{},
		&models.PaymentRecord{},
		&models.WalletTransaction{},
		&models.UserSubscription{},
		&models.Notification{},
	)
}

// seedAdmin создает админа при первом старте, креды из окружения
func seedAdmin(db *gorm.DB) {
	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	if email == "" || password == "" {
		return
	}

	users := repositories.NewUserRepository(db)
	if _, err := users.FindByEmail(email); err == nil {
		return
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		logger.Error("failed to hash admin password", "error", err)
		return
	}

	admin := &models.User{
		Email:        email,
		PasswordHash: hash,
		Role:         models.UserRoleAdmin,
		Status:       models.UserStatusActive,
		IsVerified:   true,
	}
	if err := users.Create(admin); err != nil {
		logger.Error("failed to seed admin user", "error", err)
		return
	}
	if err := users.CreateProfile(&models.Profile{
		UserID:      admin.ID,
		DisplayName: "Administrator",
		Tier:        models.TierBasic,
	}); err != nil {
		logger.Error("failed to seed admin profile", "error", err)
		return
	}
	logger.Info("admin user seeded", "email", email)
}
