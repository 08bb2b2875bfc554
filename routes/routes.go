package routes

import (
	"log/slog"
	"net/http"

	"github.com/Dosada05/tournament-timer/docs"
	"github.com/Dosada05/tournament-timer/handlers"
	"github.com/Dosada05/tournament-timer/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware" // Alias to avoid conflict
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

const openAPIPath = "/swagger/openapi.json"

type Options struct {
	Logger         *slog.Logger
	AllowedOrigins []string
	WriteAuth      middleware.WriteAuth
}

func SetupRoutes(
	router chi.Router,
	opts Options,
	timerHandler *handlers.TimerHandler,
	webSocketHandler *handlers.WebSocketHandler,
	healthHandler *handlers.HealthHandler,
) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	router.Use(middleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(middleware.RequestLogger(logger))
	router.Use(chiMiddleware.Recoverer)
	router.Use(middleware.Metrics)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Операционные маршруты
	router.Get("/healthz", healthHandler.Liveness)
	router.Get("/readyz", healthHandler.Readiness)
	router.Handle("/metrics", promhttp.Handler())
	router.Get(openAPIPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(docs.OpenAPI)
	})
	router.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL(openAPIPath)))

	// Чтение таймера
	router.Get("/get_remaining_time", timerHandler.GetRemainingTime)
	router.Post("/get_remaining_time", timerHandler.GetRemainingTime)
	router.Get("/timers/{tournament}", timerHandler.GetRemainingTime)
	router.Get("/ws/{tournament}", webSocketHandler.ServeWs)

	// Запись таймера
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireWriteAccess(opts.WriteAuth))

		r.Get("/set_remaining_time", timerHandler.SetRemainingTime)
		r.Post("/set_remaining_time", timerHandler.SetRemainingTime)
		r.Put("/timers", timerHandler.SetRemainingTime)
	})
}
