package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/architeacher/svc-icqueue/internal/adapters/http/mappers"
	"github.com/architeacher/svc-icqueue/internal/adapters/middleware"
	"github.com/architeacher/svc-icqueue/internal/config"
	"github.com/architeacher/svc-icqueue/internal/infrastructure"
	"github.com/architeacher/svc-icqueue/internal/ports"
)

type (
	// OpsHandler serves the operational endpoints of publisher and subscriber processes.
	OpsHandler struct {
		healthChecker ports.HealthChecker
		logger        infrastructure.Logger
	}

	livenessResponse struct {
		Status string `json:"status"`
	}
)

func NewOpsHandler(healthChecker ports.HealthChecker, logger infrastructure.Logger) *OpsHandler {
	return &OpsHandler{
		healthChecker: healthChecker,
		logger:        logger,
	}
}

// NewOpsRouter mounts /health, /livez, /readyz and /metrics behind the configured middlewares.
func NewOpsRouter(
	cfg *config.ServiceConfig,
	handler *OpsHandler,
	metrics infrastructure.Metrics,
	logger infrastructure.Logger,
) http.Handler {
	router := chi.NewRouter()

	router.Use(
		chimiddleware.RequestID,
		chimiddleware.RealIP,
		chimiddleware.Recoverer,
	)

	if cfg.Telemetry.Metrics.Enabled {
		router.Use(middleware.NewMetricsMiddleware(metrics).Middleware)
	}

	if cfg.Logging.AccessLog.Enabled {
		router.Use(
			middleware.NewHealthCheckFilter(cfg.Logging.AccessLog.LogHealthChecks).Middleware,
			middleware.NewAccessLogger(*logger.Logger).Middleware,
		)
	}

	router.Get("/health", handler.GetHealth)
	router.Get("/livez", handler.GetLiveness)
	router.Get("/readyz", handler.GetReadiness)
	router.Method(http.MethodGet, "/metrics", metrics.Handler())

	return otelhttp.NewHandler(router, cfg.AppConfig.ServiceName,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

func (h *OpsHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.healthChecker.CheckHealth(r.Context())

	h.writeJSON(w, mappers.HealthStatusToHTTP(result.OverallStatus), result)
}

func (h *OpsHandler) GetLiveness(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, livenessResponse{Status: "alive"})
}

func (h *OpsHandler) GetReadiness(w http.ResponseWriter, r *http.Request) {
	result := h.healthChecker.CheckHealth(r.Context())

	h.writeJSON(w, mappers.ReadinessToHTTP(result.Queue), result.Queue)
}

func (h *OpsHandler) writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error().Err(err).Msg("failed to write response")
	}
}
