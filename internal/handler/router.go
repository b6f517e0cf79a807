package handler

import (
	"net/http"
	"time"

	"github.com/boddenberg/cnpj-enricher-go/internal/domain"
	"github.com/boddenberg/cnpj-enricher-go/internal/infra/observability"
	"github.com/boddenberg/cnpj-enricher-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Options tunes the router. Zero values fall back to defaults.
type Options struct {
	RequestTimeout time.Duration
	BatchMaxItems  int
}

func (o Options) withDefaults() Options {
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 30 * time.Second
	}
	if o.BatchMaxItems <= 0 {
		o.BatchMaxItems = 50
	}
	return o
}

// NewRouter creates the HTTP router with all routes and middleware.
// Routes follow the API contract consumed by the CNPJ dashboard.
func NewRouter(svc *service.Registry, metrics *observability.Metrics, logger *zap.Logger, opts Options) http.Handler {
	opts = opts.withDefaults()
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(svc))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(opts.RequestTimeout))

		// =============================================
		// 1. Identifier formatting (form input mask)
		// GET /v1/cnpj/format?value=
		// =============================================
		r.Get("/cnpj/format", formatCNPJHandler())

		// =============================================
		// 2. Companies
		// =============================================
		r.Route("/companies", func(r chi.Router) {
			r.Post("/", enrichCompanyHandler(svc, logger))
			r.Get("/", listCompaniesHandler(svc))
			r.Post("/batch", enrichBatchHandler(svc, opts.BatchMaxItems, logger))
			r.Get("/stats", companyStatsHandler(svc))
			r.Post("/export", exportCompaniesHandler(svc, logger))

			r.Get("/{companyId}", getCompanyHandler(svc, logger))
			r.Patch("/{companyId}", updateCompanyHandler(svc, logger))
			r.Delete("/{companyId}", deleteCompanyHandler(svc))
		})

		// =============================================
		// 3. Metrics
		// GET /v1/metrics/enrichment
		// =============================================
		r.Get("/metrics/enrichment", enrichmentMetricsHandler(metrics))
	})

	return r
}

func healthzHandler(svc *service.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "cnpj-enricher-api", Status: "healthy", LastChecked: now},
		}
		if svc != nil {
			start := time.Now()
			svc.Count()
			services = append(services, domain.ServiceHealth{
				Name:        "record-store",
				Status:      "healthy",
				LatencyMs:   time.Since(start).Milliseconds(),
				LastChecked: now,
			})
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   "healthy",
			Services: services,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func enrichmentMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetEnrichmentSnapshot())
	}
}
