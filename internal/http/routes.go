package http

import (
	"time"

	"chifoumi/internal/config"
	"chifoumi/internal/http/handlers"
	"chifoumi/internal/http/middleware"
	"chifoumi/internal/notify"
	"chifoumi/internal/repository"
	"chifoumi/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RegisterRoutes wires the full API surface: identity, the match state
// machine operations, and the per-match push channel.
func RegisterRoutes(r *gin.Engine, db *pgxpool.Pool, cfg *config.Config, version string) {
	center := notify.NewCenter()
	matches := service.NewMatchService(repository.NewMatchRepository(db), center)
	h := handlers.NewHandler(db, matches, center)
	healthHandler := handlers.NewHealthHandler(db, version)

	apiWindow := time.Duration(cfg.APIRateWindow) * time.Second
	authWindow := time.Duration(cfg.AuthRateWindow) * time.Second
	moveWindow := time.Duration(cfg.MoveRateWindow) * time.Second

	// Health checks (no rate limiting)
	r.GET("/healthz", healthHandler.Liveness)
	r.GET("/readyz", healthHandler.Readiness)

	api := r.Group("/")
	api.Use(middleware.RedisRateLimit(cfg.APIRateLimit, apiWindow))

	// Identity
	api.POST("/login", middleware.RedisRateLimit(cfg.AuthRateLimit, authWindow), h.Login)

	// Matches
	api.POST("/matches", middleware.JWT(), h.CreateOrJoin)
	api.GET("/matches", middleware.JWT(), h.ListMatches)
	api.GET("/matches/:id", middleware.JWT(), h.GetMatch)
	api.POST("/matches/:id/turns/:turnId",
		middleware.JWT(),
		middleware.MoveRateLimit(cfg.MoveRateLimit, moveWindow),
		h.SubmitMove)

	// Push channel (token passed as query parameter by websocket clients)
	api.GET("/matches/:id/subscribe", middleware.JWT(), h.Subscribe)
}
