package testutils

import (
	"io"
	"log"
	"testing"

	"chikondi_backend/internal/config"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB - gorm поверх sqlmock, без живого постгреса
func SetupTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, func()) {
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %s", err)
	}

	silent := logger.New(
		log.New(io.Discard, "", log.LstdFlags),
		logger.Config{LogLevel: logger.Silent},
	)

	dialector := postgres.New(postgres.Config{
		Conn:       sqlDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{Logger: silent})
	if err != nil {
		t.Fatalf("failed to open gorm over sqlmock: %s", err)
	}

	cleanup := func() {
		sqlDB.Close()
	}

	return gormDB, mock, cleanup
}

func SetupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

// SetTestConfig подменяет глобальный конфиг, чтобы тесты не читали
// config.yaml с диска
func SetTestConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.Env = "test"
	cfg.JWT.Secret = "test-secret"
	cfg.JWT.TTL = 60
	cfg.PayChangu.BaseURL = "http://paychangu.test"
	cfg.PayChangu.SecretKey = "sk-test"
	cfg.PayChangu.WebhookSecret = "whsec-test"
	cfg.PayChangu.CallbackURL = "http://app.test/api/v1/payments/webhook/paychangu"
	cfg.PayChangu.ReturnURL = "http://app.test/payments/return"
	cfg.PayChangu.TimeoutSec = 5
	cfg.Limits.CheckoutPerMinute = 5
	cfg.Limits.VerifyPerMinute = 10
	cfg.Limits.WebhookCooldownMS = 5000
	config.AppConfig = cfg
	return cfg
}
