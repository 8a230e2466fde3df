package app

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/echoseed/echoseed/internal/config"
	"github.com/echoseed/echoseed/internal/handlers"
	"github.com/echoseed/echoseed/internal/middleware"
	"github.com/echoseed/echoseed/internal/services"
)

type App struct {
	config   *config.Config
	logger   *logrus.Logger
	services *services.Services
	handlers *handlers.Handlers
	router   *gin.Engine
}

func New(cfg *config.Config) (*App, error) {
	app := &App{
		config: cfg,
		logger: setupLogger(cfg),
	}

	app.services = services.New(cfg, app.logger)
	app.handlers = handlers.New(app.logger, cfg, app.services)
	app.setupRouter()

	return app, nil
}

func (a *App) Router() *gin.Engine {
	return a.router
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("Shutting down application...")

	if err := a.services.Close(); err != nil {
		a.logger.WithError(err).Error("Error closing services")
		return err
	}

	return nil
}

func setupLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return logger
}

func (a *App) setupRouter() {
	if a.config.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(middleware.Logger(a.logger))
	router.Use(middleware.Recovery(a.logger))
	router.Use(middleware.CORS(a.config))

	// Readiness and health, polled by the front controller before it lets
	// any other route through.
	router.GET("/status", a.handlers.Status.Get)
	router.GET("/health", a.handlers.Health.Check)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	{
		tracks := api.Group("/tracks")
		{
			tracks.GET("", a.handlers.Tracks.List)
			tracks.GET("/features", a.handlers.Tracks.Features)
			tracks.GET("/:id", a.handlers.Tracks.Get)
		}

		recommendations := api.Group("/recommendations")
		{
			recommendations.POST("", a.handlers.Recommendation.Recommend)
			recommendations.GET("/session", a.handlers.Recommendation.RecommendForSession)
		}

		api.POST("/events", a.handlers.Events.Record)
	}

	a.router = router
}
