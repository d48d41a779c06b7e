package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"tasktrack-api/api"
	"tasktrack-api/storage"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warnf("load .env: %v", err)
	}
	cfg, err := loadConfig(os.LookupEnv)
	if err != nil {
		log.Fatal(err)
	}
	if cfg.debug {
		log.SetLevel(log.DebugLevel)
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())))
	otel.SetTracerProvider(tp)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := storage.Open(ctx, cfg.databasePath)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	var (
		rc      *redis.Client
		deduper api.Deduper
	)
	if cfg.redisConn != "" {
		rc = redis.NewClient(parseRedisOptions(cfg.redisConn))
		deduper = api.NewRedisDeduper(rc, cfg.deduperTTL)
	} else {
		log.Warn("REDIS_CONNECTION_STRING not set; cache and idempotency keys disabled")
	}
	store := storage.NewCache(db, rc, cfg.cacheTTL)

	auth, err := newAuth(cfg.auth)
	if err != nil {
		log.Fatalf("auth: %v", err)
	}

	logger := log.New()
	logger.SetLevel(log.GetLevel())

	var events *api.EventDispatcher
	if cfg.storageConn != "" {
		publisher, err := storage.NewQueuePublisher(cfg.storageConn, cfg.eventsQueue)
		if err != nil {
			log.Fatalf("event queue: %v", err)
		}
		events = api.NewEventDispatcher(publisher, logger, cfg.dispatcher, runtime.NumCPU())
	} else {
		log.Info("STORAGE_CONNECTION_STRING not set; change events are not published")
	}

	e := echo.New()
	e.HideBanner = true
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.corsOrigins,
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, echo.HeaderContentEncoding, "Idempotency-Key"},
	}))
	e.Use(api.GzipRequestMiddleware())

	api.Register(e, store, auth, deduper, events, logger)

	go func() {
		if err := e.Start(cfg.listenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Errorf("server shutdown: %v", err)
	}
	events.Close()
	if rc != nil {
		if err := rc.Close(); err != nil {
			log.Errorf("redis close: %v", err)
		}
	}
	if err := db.Close(); err != nil {
		log.Errorf("storage close: %v", err)
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Errorf("tracer shutdown: %v", err)
	}
}

func newAuth(cfg authConfig) (*api.Auth, error) {
	if cfg.sharedSecret != "" {
		return api.NewAuth(api.AuthConfig{
			Audience:     cfg.audience,
			SharedSecret: []byte(cfg.sharedSecret),
		}), nil
	}
	jwksURL := fmt.Sprintf("https://%s/.well-known/jwks.json", cfg.domain)
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{RefreshInterval: time.Hour})
	if err != nil {
		return nil, fmt.Errorf("jwks: %w", err)
	}
	return api.NewAuth(api.AuthConfig{
		JWKS:        jwks,
		Audience:    cfg.audience,
		Issuer:      "https://" + cfg.domain + "/",
		KeyCacheTTL: cfg.jwksCacheTTL,
	}), nil
}
