package config

import (
	"log"
	"os"
	"strconv"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
		Env  string `yaml:"env"`
	} `yaml:"server"`

	Database struct {
		DSN string `yaml:"url"`
	} `yaml:"database"`

	JWT struct {
		Secret string `yaml:"secret"`
		TTL    int    `yaml:"ttl"` // минуты
	} `yaml:"jwt"`

	Email struct {
		SMTPHost     string `yaml:"smtp_host"`
		SMTPPort     int    `yaml:"smtp_port"`
		SMTPUser     string `yaml:"smtp_user"`
		SMTPPassword string `yaml:"smtp_password"`
		FromEmail    string `yaml:"from_email"`
		FromName     string `yaml:"from_name"`
	} `yaml:"email"`

	PayChangu struct {
		BaseURL       string `yaml:"base_url"`
		SecretKey     string `yaml:"secret_key"`
		WebhookSecret string `yaml:"webhook_secret"`
		CallbackURL   string `yaml:"callback_url"` // куда провайдер шлет webhook
		ReturnURL     string `yaml:"return_url"`   // куда возвращается пользователь
		TimeoutSec    int    `yaml:"timeout_sec"`
	} `yaml:"paychangu"`

	Limits struct {
		CheckoutPerMinute int `yaml:"checkout_per_minute"` // на пользователя
		VerifyPerMinute   int `yaml:"verify_per_minute"`   // на tx_ref
		WebhookCooldownMS int `yaml:"webhook_cooldown_ms"` // на tx_ref
	} `yaml:"limits"`
}

var AppConfig *Config

func LoadConfig() {
	var cfg Config

	dbURL := os.Getenv("DATABASE_URL")

	if dbURL == "" {
		configPath := os.Getenv("CONFIG_PATH")
		if configPath == "" {
			configPath = "config/config.yaml"
		}

		f, err := os.Open(configPath)
		if err != nil {
			log.Fatalf("Failed to open config file at %s: %v", configPath, err)
		}
		defer f.Close()

		decoder := yaml.NewDecoder(f)
		if err := decoder.Decode(&cfg); err != nil {
			log.Fatalf("Failed to parse config file at %s: %v", configPath, err)
		}

		applyDefaults(&cfg)
		AppConfig = &cfg
		return
	}

	// Режим окружения (тесты, контейнеры): все из ENV
	cfg.Database.DSN = dbURL
	cfg.Server.Env = getEnv("SERVER_ENV", "development")
	cfg.Server.Port, _ = strconv.Atoi(getEnv("SERVER_PORT", "4000"))
	cfg.JWT.Secret = getEnv("JWT_SECRET", "")
	cfg.JWT.TTL = 60

	cfg.PayChangu.BaseURL = getEnv("PAYCHANGU_BASE_URL", "https://api.paychangu.com")
	cfg.PayChangu.SecretKey = getEnv("PAYCHANGU_SECRET_KEY", "")
	cfg.PayChangu.WebhookSecret = getEnv("PAYCHANGU_WEBHOOK_SECRET", "")
	cfg.PayChangu.CallbackURL = getEnv("PAYCHANGU_CALLBACK_URL", "")
	cfg.PayChangu.ReturnURL = getEnv("PAYCHANGU_RETURN_URL", "")

	applyDefaults(&cfg)
	AppConfig = &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.PayChangu.BaseURL == "" {
		cfg.PayChangu.BaseURL = "https://api.paychangu.com"
	}
	if cfg.PayChangu.TimeoutSec <= 0 {
		cfg.PayChangu.TimeoutSec = 15
	}
	if cfg.Limits.CheckoutPerMinute <= 0 {
		cfg.Limits.CheckoutPerMinute = 5
	}
	if cfg.Limits.VerifyPerMinute <= 0 {
		cfg.Limits.VerifyPerMinute = 10
	}
	if cfg.Limits.WebhookCooldownMS <= 0 {
		cfg.Limits.WebhookCooldownMS = 5000
	}
}

func GetConfig() *Config {
	if AppConfig == nil {
		LoadConfig()
	}
	return AppConfig
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
