package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/frontdesk-api/internal/handler"
	"github.com/noah-isme/frontdesk-api/internal/middleware"
	"github.com/noah-isme/frontdesk-api/internal/models"
	"github.com/noah-isme/frontdesk-api/internal/service"
	"github.com/noah-isme/frontdesk-api/pkg/config"
	"github.com/noah-isme/frontdesk-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/frontdesk-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/frontdesk-api/pkg/middleware/requestid"
)

type routerDeps struct {
	db        handler.Pinger
	metrics   *service.MetricsService
	audit     middleware.AuditWriter
	auth      *service.AuthService
	users     *service.UserService
	visitors  *service.VisitorService
	requests  *service.VisitorRequestService
	approvals *service.ApprovalService
	status    *service.StatusService
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.metrics))

	metricsHandler := handler.NewMetricsHandler(deps.metrics, deps.db)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Docs.Enabled {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authHandler := handler.NewAuthHandler(deps.auth)
	userHandler := handler.NewUserHandler(deps.users)
	visitorHandler := handler.NewVisitorHandler(deps.visitors)
	requestHandler := handler.NewVisitorRequestHandler(deps.requests, deps.approvals)
	statusHandler := handler.NewStatusHandler(deps.status)

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.WithResponseMeta())

	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/refresh", authHandler.Refresh)

	secured := api.Group("")
	secured.Use(middleware.JWT(deps.auth))

	secured.POST("/auth/logout", authHandler.Logout)
	secured.GET("/auth/me", authHandler.Me)
	secured.POST("/auth/change-password", authHandler.ChangePassword)

	users := secured.Group("/users")
	users.Use(middleware.RequireAdmin())
	users.GET("", userHandler.List)
	users.POST("", userHandler.Create)
	users.GET("/:id", userHandler.Get)
	users.PUT("/:id", userHandler.Update)
	users.DELETE("/:id", userHandler.Delete)

	visitors := secured.Group("/visitors")
	visitors.POST("", visitorHandler.CheckIn)
	visitors.GET("", visitorHandler.List)
	visitors.GET("/:id", visitorHandler.Get)
	visitors.PUT("/:id", visitorHandler.Update)
	visitors.DELETE("/:id", visitorHandler.Delete)
	visitors.POST("/:id/checkout", visitorHandler.Checkout)
	visitors.GET("/:id/history",
		middleware.Audit(deps.audit, logr, models.AuditActionHistoryView, models.AuditResourceVisitor),
		visitorHandler.History)

	secured.POST("/deletion-request", requestHandler.CreateDeletion)
	secured.POST("/edit-request", requestHandler.CreateEdit)
	secured.POST("/approve-deletion/:id", requestHandler.ApproveDeletion)
	secured.POST("/approve-edit/:id", requestHandler.ApproveEdit)
	secured.POST("/reject/:type/:id", requestHandler.Reject)
	secured.GET("/requests", requestHandler.List)
	secured.GET("/requests/:id", requestHandler.Get)

	secured.GET("/deletion-requests/visitor/:id/status", statusHandler.Get)
	secured.POST("/batch-status-check", statusHandler.Batch)

	secured.GET("/metrics/summary", middleware.RequireAdmin(), metricsHandler.Summary)

	return r
}
