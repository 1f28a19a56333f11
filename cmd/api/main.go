package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"pairchat/internal/config"
	apihttp "pairchat/internal/http"
	"pairchat/internal/metrics"
	"pairchat/internal/repository"
	"pairchat/internal/service"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	if strings.EqualFold(cfg.LogLevel, "debug") {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	store, closeStore, err := repository.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("store connect", zap.Error(err), zap.String("backend", cfg.StoreBackend))
	}
	defer closeStore()

	var idempotency service.IdempotencyStore = service.NewMemoryIdempotencyStore(cfg.IdempotencyTTL)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed, using in-memory idempotency store", zap.Error(err))
		} else {
			idempotency = service.NewRedisIdempotencyStore(redisClient, cfg.IdempotencyTTL)
		}
		cancel()
	}

	jwtSvc := service.NewJWTService(cfg.JWTSecret, 0)
	if !jwtSvc.Enabled() {
		logger.Warn("jwt secret not configured, api is unauthenticated")
	}

	m := metrics.New()
	identitySvc := service.NewIdentityService(logger, store.Users, m, cfg.StoreTimeout)
	chatSvc := service.NewChatService(logger, store.Chats, m, cfg.StoreTimeout)
	messageSvc := service.NewMessageService(logger, store.Chats, store.Messages, idempotency, m, cfg.StoreTimeout, cfg.MaxMessageLength)

	router := apihttp.NewRouter(logger,
		apihttp.RouterConfig{AllowedOrigin: cfg.CORSAllowedOrigin, JWT: jwtSvc, Metrics: m},
		apihttp.NewUserHandler(logger, identitySvc, chatSvc),
		apihttp.NewChatHandler(logger, chatSvc, messageSvc),
		apihttp.NewMessageHandler(logger, messageSvc),
		apihttp.NewHealthHandler(logger, store.Ping),
	)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		logger.Fatal("listen", zap.Error(err), zap.String("addr", server.Addr))
	}

	logger.Info("starting server",
		zap.String("port", cfg.HTTPPort),
		zap.String("store_backend", cfg.StoreBackend),
	)

	if err := runServer(ctx, server, ln, logger, shutdownTimeout); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
	logger.Info("server stopped")
}

const shutdownTimeout = 10 * time.Second

// runServer atiende en ln hasta que ctx se cancela y solo retorna cuando
// Shutdown termino de drenar las peticiones en curso o vencio el timeout.
func runServer(ctx context.Context, server *http.Server, ln net.Listener, logger *zap.Logger, timeout time.Duration) error {
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", zap.Error(err))
		}
	}()

	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-drained
	return nil
}
