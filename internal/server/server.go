package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/school-system/reportgen/internal/config"
	"github.com/school-system/reportgen/internal/export"
	"github.com/school-system/reportgen/internal/genai"
	"github.com/school-system/reportgen/internal/generation"
	"github.com/school-system/reportgen/internal/handlers"
	"github.com/school-system/reportgen/internal/logging"
	"github.com/school-system/reportgen/internal/mail"
	"github.com/school-system/reportgen/internal/middleware"
	"github.com/school-system/reportgen/internal/render"
	"github.com/school-system/reportgen/internal/services"
	"github.com/school-system/reportgen/internal/store"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Services is everything the router serves.
type Services struct {
	DB       *gorm.DB
	Auth     *services.AuthService
	Audit    *services.AuditService
	Reports  *services.ReportService
	Settings *services.SettingsService
	History  *services.HistoryService
}

// NewServices wires the generation pipeline and the services on top of
// db and st. Without an AI key results are computed locally.
func NewServices(cfg *config.Config, db *gorm.DB, st store.Store, rasterizer export.Rasterizer, logger *zap.Logger) Services {
	logger = logging.OrNop(logger)
	reports := NewReportService(cfg, st, rasterizer, logger)
	return Services{
		DB:       db,
		Auth:     services.NewAuthService(db, cfg),
		Audit:    services.NewAuditService(db, logger),
		Reports:  reports,
		Settings: services.NewSettingsService(st, logger),
		History:  services.NewHistoryService(st, reports, mail.NewSender(cfg.Mail, logger), logger),
	}
}

// NewReportService builds the ingest-to-export pipeline. A nil rasterizer
// means headless Chrome.
func NewReportService(cfg *config.Config, st store.Store, rasterizer export.Rasterizer, logger *zap.Logger) *services.ReportService {
	var (
		generator generation.Generator = generation.Local{}
		cards     services.CardGenerator
	)
	if cfg.AI.APIKey != "" {
		client, err := genai.NewClient(context.Background(), cfg.AI, nil, logger)
		if err != nil {
			logger.Error("Failed to create AI client, computing results locally", zap.Error(err))
		} else {
			generator, cards = client, client
		}
	} else {
		logger.Warn("No AI key configured, computing results locally")
	}

	if rasterizer == nil {
		rasterizer = export.NewChromeRasterizer(cfg.Export)
	}

	dispatcher := generation.NewDispatcher(generator,
		generation.WithChunkSize(cfg.AI.ChunkSize),
		generation.WithRatePerMinute(cfg.AI.RatePerMinute),
		generation.WithLogger(logger))

	return services.NewReportService(
		st,
		dispatcher,
		render.NewRenderer(logger),
		export.NewExporter(rasterizer, cfg.Export.PagesPerFile, logger),
		cards,
		logger,
	)
}

// NewRouter builds the HTTP API.
//
// @title Report Card Generator API
// @version 1.0
// @description Turns spreadsheets of student marks into printable report cards.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func NewRouter(cfg *config.Config, s Services, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger(logger))
	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.Origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "X-Export-Error", "X-Export-Files", "X-Trace-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(corsConfig.AllowOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	}
	r.Use(cors.New(corsConfig))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "reportgen-api"})
	})

	if cfg.Monitoring.PrometheusEnabled {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	authHandler := handlers.NewAuthHandler(s.Auth)
	userHandler := handlers.NewUserHandler(s.DB, s.Auth, s.Audit)
	auditHandler := handlers.NewAuditHandler(s.Audit)
	reportHandler := handlers.NewReportHandler(s.Reports, s.Audit, cfg.Server.MaxUploadBytes, logger)
	settingsHandler := handlers.NewSettingsHandler(s.Settings, s.Audit)
	historyHandler := handlers.NewHistoryHandler(s.History, s.Reports, s.Audit, logger)

	v1 := r.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		auth.Use(middleware.RateLimiter(cfg.Server.LoginRatePerMinute))
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.Refresh)
			auth.POST("/logout", authHandler.Logout)
		}

		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware(s.Auth))
		protected.Use(middleware.RequireTeacher())
		{
			admin := protected.Group("")
			admin.Use(middleware.RequireAdmin())
			{
				admin.GET("/users", userHandler.List)
				admin.POST("/users", userHandler.Create)
				admin.GET("/users/:id", userHandler.Get)
				admin.PUT("/users/:id", userHandler.Update)
				admin.DELETE("/users/:id", userHandler.Delete)

				admin.GET("/audit/recent", auditHandler.GetRecentActivity)
			}

			protected.POST("/reports/generate", reportHandler.Generate)
			protected.POST("/reports/export", reportHandler.Export)
			protected.POST("/reports/card", reportHandler.Card)
			protected.POST("/reports/single", reportHandler.Single)

			protected.GET("/settings", settingsHandler.Get)
			protected.PUT("/settings", settingsHandler.Update)
			protected.POST("/settings/reset", settingsHandler.Reset)
			protected.POST("/settings/images/:slot", settingsHandler.UploadImage)
			protected.DELETE("/settings/images/:slot", settingsHandler.RemoveImage)

			protected.GET("/history", historyHandler.List)
			protected.DELETE("/history", historyHandler.Clear)
			protected.GET("/history/:id", historyHandler.Get)
			protected.DELETE("/history/:id", historyHandler.Delete)
			protected.POST("/history/:id/export", historyHandler.Export)
			protected.GET("/history/:id/mailto", historyHandler.Mailto)
			protected.POST("/history/:id/email", historyHandler.Email)
		}
	}

	return r
}
