package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Backends de almacenamiento soportados.
const (
	StoreBackendPostgres  = "postgres"
	StoreBackendBadger    = "badger"
	StoreBackendFirestore = "firestore"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort          string `env:"HTTP_PORT" envDefault:"5000"`
	LogLevel          string `env:"LOG_LEVEL" envDefault:"info"`
	CORSAllowedOrigin string `env:"CORS_ALLOWED_ORIGIN" envDefault:"https://ydkm-chatapp.vercel.app"`

	StoreBackend string        `env:"STORE_BACKEND" envDefault:"postgres"`
	StoreTimeout time.Duration `env:"STORE_TIMEOUT" envDefault:"5s"`

	DatabaseURL          string `env:"DATABASE_URL"`
	DatabaseBootstrap    bool   `env:"DATABASE_SCHEMA_BOOTSTRAP" envDefault:"true"`
	BadgerPath           string `env:"BADGER_PATH" envDefault:"./data/badger"`
	FirestoreProjectID   string `env:"FIRESTORE_PROJECT_ID"`
	FirestoreCredentials string `env:"FIRESTORE_CREDENTIALS_FILE"`

	RedisAddr      string        `env:"REDIS_ADDR"`
	RedisPassword  string        `env:"REDIS_PASSWORD"`
	RedisDB        int           `env:"REDIS_DB" envDefault:"0"`
	IdempotencyTTL time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`

	MaxMessageLength int    `env:"MAX_MESSAGE_LENGTH" envDefault:"0"`
	JWTSecret        string `env:"JWT_SECRET"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate comprueba los requisitos propios de cada backend.
func (c *Config) Validate() error {
	c.StoreBackend = strings.ToLower(strings.TrimSpace(c.StoreBackend))
	switch c.StoreBackend {
	case StoreBackendPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return errors.New("DATABASE_URL is required for the postgres backend")
		}
	case StoreBackendBadger:
		if strings.TrimSpace(c.BadgerPath) == "" {
			return errors.New("BADGER_PATH is required for the badger backend")
		}
	case StoreBackendFirestore:
		if strings.TrimSpace(c.FirestoreProjectID) == "" {
			return errors.New("FIRESTORE_PROJECT_ID is required for the firestore backend")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.StoreTimeout <= 0 {
		return errors.New("STORE_TIMEOUT must be positive")
	}
	if c.MaxMessageLength < 0 {
		return errors.New("MAX_MESSAGE_LENGTH must not be negative")
	}
	return nil
}
