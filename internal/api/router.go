package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/timmy/courtside/internal/api/handler"
	"github.com/timmy/courtside/internal/api/middleware"
	"github.com/timmy/courtside/internal/config"
	"github.com/timmy/courtside/internal/logger"
	"github.com/timmy/courtside/internal/service"
)

// Services are the handlers' dependencies.
type Services struct {
	Ingest  *service.IngestService
	Catalog *service.CatalogService
	Chat    *service.ChatService
	DB      handler.Pinger
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(svc *Services, cfg *config.Config, log *logger.Logger) *gin.Engine {
	switch cfg.Server.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(log))
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
		AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
	}))

	healthHandler := handler.NewHealthHandler(svc.DB)
	transcriptHandler := handler.NewTranscriptHandler(svc.Ingest, svc.Catalog)
	matchHandler := handler.NewMatchHandler(svc.Ingest, svc.Catalog)
	searchHandler := handler.NewSearchHandler(svc.Catalog)
	jobHandler := handler.NewJobHandler(svc.Ingest)
	chatHandler := handler.NewChatHandler(svc.Chat)

	r.GET("/health", healthHandler.Health)
	if cfg.Metrics.Enabled {
		r.Use(middleware.Metrics())
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	v1 := r.Group("/api/v1")
	{
		// Ingestion and raw artifacts
		v1.POST("/transcripts", transcriptHandler.Ingest)
		v1.GET("/transcripts", transcriptHandler.List)
		v1.GET("/transcripts/:id", transcriptHandler.Content)

		// Work items
		v1.GET("/matches", matchHandler.List)
		v1.GET("/matches/:id", matchHandler.Get)
		v1.DELETE("/matches/:id", matchHandler.Delete)
		v1.POST("/matches/:id/reprocess", matchHandler.Reprocess)
		v1.POST("/matches/:id/index", matchHandler.Index)

		// Jobs
		v1.GET("/jobs", jobHandler.List)
		v1.GET("/jobs/:id", jobHandler.Get)

		// Search
		v1.POST("/search", searchHandler.TextSearch)
		v1.GET("/search", searchHandler.TextSearchGet)

		// Questions over a transcript
		v1.POST("/chat/query", chatHandler.Query)
		v1.POST("/chat/analyze", chatHandler.Query)
		v1.GET("/chat/history", chatHandler.History)

		// Maintenance
		v1.GET("/stats", matchHandler.Stats)
		v1.POST("/migrate", matchHandler.Migrate)
	}

	return r
}
