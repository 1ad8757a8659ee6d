package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/wholesale-pos/wholesale-pos/internal/observability"
	"github.com/wholesale-pos/wholesale-pos/internal/platform/httpx"
	"github.com/wholesale-pos/wholesale-pos/internal/pos"
	"github.com/wholesale-pos/wholesale-pos/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger     *slog.Logger
	Config     *Config
	POSHandler *pos.Handler
	SyncEvents http.Handler
	JobHandler *jobs.Handler
	Metrics    *observability.Metrics
}

// NewRouter constructs the chi.Router with the service defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	// The sync event stream is long-lived, so it skips the request timeout
	// and response compression applied to the JSON API.
	if params.SyncEvents != nil {
		r.Group(func(r chi.Router) {
			r.Use(chimw.RealIP, chimw.RequestID, chimw.Recoverer)
			if params.Metrics != nil {
				r.Use(params.Metrics.Middleware)
			}
			r.Method(http.MethodGet, "/api/sync/events", params.SyncEvents)
		})
	}

	r.Group(func(r chi.Router) {
		for _, mw := range MiddlewareStack(MiddlewareConfig{
			Logger:  params.Logger,
			Config:  params.Config,
			Metrics: params.Metrics,
		}) {
			r.Use(mw)
		}
		r.Use(chimw.Logger)

		r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
		if params.POSHandler != nil {
			r.Route("/api", params.POSHandler.MountRoutes)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
		if params.Metrics != nil {
			r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
		}
	})

	return r
}
