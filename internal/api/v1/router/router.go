package router

import (
	"net/http"

	"velora/internal/api/v1/handler"
	"velora/internal/bootstrap"
	"velora/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
)

// New builds the HTTP handler serving the v1 API.
func New(app *bootstrap.App) http.Handler {
	cfg, logger := app.Config, app.Logger

	authMiddleware := middleware.AuthMiddleware(cfg.JWTSecret, logger)
	pubsubAuthMiddleware := middleware.PubSubAuthMiddleware(cfg.IsLocalDev(), cfg.PubSubPushAudience, cfg.PubSubPushServiceAccountEmail, logger)

	apiRouter, api := SetupHumaAPI(authMiddleware, pubsubAuthMiddleware, logger)
	RegisterRoutes(api, Handlers{
		Followups: handler.NewFollowupHandler(app.Followups, app.RateLimiter, logger),
		Usage:     handler.NewUsageHandler(app.RateLimiter, app.CostReports, logger),
		Users:     handler.NewUserHandler(app.APIKeys, logger),
		Ingest:    handler.NewIngestHandler(app.Ingestion, logger),
		DLQ:       handler.NewDLQHandler(app.DLQ, logger),
	}, logger)

	root := chi.NewRouter()
	root.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	root.Mount("/v1", apiRouter)

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Retry-After", "X-Request-ID"},
		AllowCredentials: true,
	})

	return middleware.LoggerMiddleware(logger)(c.Handler(root))
}
