package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	_ "github.com/noah-isme/frontdesk-api/api/swagger"
	"github.com/noah-isme/frontdesk-api/internal/repository"
	"github.com/noah-isme/frontdesk-api/internal/service"
	"github.com/noah-isme/frontdesk-api/pkg/cache"
	"github.com/noah-isme/frontdesk-api/pkg/config"
	"github.com/noah-isme/frontdesk-api/pkg/database"
	"github.com/noah-isme/frontdesk-api/pkg/logger"
)

// @title Frontdesk API
// @version 1.0.0
// @description Visitor records with a reviewed edit and deletion request workflow
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	metrics := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	if cfg.StatusCache.Enabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, status cache disabled", zap.Error(err))
		} else {
			defer client.Close()
			cacheRepo = repository.NewCacheRepository(client, logr)
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.StatusCache.TTL, logr, cacheRepo != nil)
	if err := cacheSvc.Flush(ctx); err != nil {
		logr.Warn("failed to flush status cache", zap.Error(err))
	}

	validate := validator.New()

	users := repository.NewUserRepository(db)
	visitors := repository.NewVisitorRepository(db)
	requests := repository.NewVisitorRequestRepository(db)
	history := repository.NewEditHistoryRepository(db)

	authSvc := service.NewAuthService(users, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(users, validate, logr)

	requestSvc := service.NewVisitorRequestService(visitors, requests, users, validate, logr,
		service.WithMinReasonLength(cfg.Workflow.MinReasonLength),
		service.WithRequestCache(cacheSvc),
		service.WithRequestMetrics(metrics),
	)
	approvalSvc := service.NewApprovalService(db, visitors, requests, history, users, logr,
		service.WithApprovalCache(cacheSvc),
		service.WithApprovalMetrics(metrics),
	)
	visitorSvc := service.NewVisitorService(db, visitors, history, requests, requestSvc, users, validate, logr,
		service.WithVisitorCache(cacheSvc),
		service.WithVisitorMetrics(metrics),
	)
	statusSvc := service.NewStatusService(visitors, requests, cacheSvc, metrics, logr, service.StatusServiceConfig{
		BatchMaxIDs:      cfg.Workflow.BatchMaxIDs,
		BatchConcurrency: cfg.Workflow.BatchConcurrency,
		CacheTTL:         cfg.StatusCache.TTL,
		Breaker: service.StatusBreakerConfig{
			FailureThreshold: cfg.Breaker.FailureThreshold,
			Timeout:          cfg.Breaker.Timeout,
		},
	})

	router := newRouter(cfg, logr, routerDeps{
		db:        db,
		metrics:   metrics,
		audit:     users,
		auth:      authSvc,
		users:     userSvc,
		visitors:  visitorSvc,
		requests:  requestSvc,
		approvals: approvalSvc,
		status:    statusSvc,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
