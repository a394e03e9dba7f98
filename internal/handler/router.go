package handler

import (
	"net/http"
	"time"

	"github.com/techmigra/imigra-bfa-go/internal/config"
	"github.com/techmigra/imigra-bfa-go/internal/domain"
	"github.com/techmigra/imigra-bfa-go/internal/infra/observability"
	"github.com/techmigra/imigra-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// NewRouter creates the HTTP router with all routes and middleware.
// Routes follow the API contract of the client portal frontend.
func NewRouter(
	docSvc *service.DocumentService,
	reqSvc *service.RequerimentoService,
	portalSvc *service.PortalService,
	cfg *config.Config,
	metrics *observability.Metrics,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(docSvc, logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- Public compression service ---
	// POST /api/compress: multipart "file" in, compressed bytes out.
	r.Post("/api/compress", compressHandler(docSvc, cfg.MaxUploadBytes, logger))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// =============================================
		// Clients (commercial module)
		// =============================================
		r.Get("/clients/{clientId}", getClientHandler(portalSvc, logger))
		r.Get("/clients/{clientId}/overview", getClientOverviewHandler(portalSvc, logger))
		r.Get("/clients/{clientId}/members", listMembersHandler(portalSvc, logger))

		// =============================================
		// Documents
		// =============================================
		r.Get("/clients/{clientId}/documents", listClientDocumentsHandler(docSvc, logger))
		r.Get("/clients/{clientId}/members/{memberId}/documents", listMemberDocumentsHandler(docSvc, logger))
		r.Get("/clients/{clientId}/members/{memberId}/documents/stages", memberStagesHandler(docSvc, logger))
		r.Get("/required-documents", requiredDocumentsHandler(docSvc, logger))
		r.Post("/documents/upload", uploadDocumentHandler(docSvc, cfg.MaxUploadBytes, logger))
		r.Get("/documents/{documentId}", getDocumentHandler(docSvc, logger))
		r.Get("/documents/{documentId}/download", downloadDocumentHandler(docSvc, logger))
		r.Post("/documents/{documentId}/request-apostille", requestApostilleHandler(docSvc, logger))
		r.Post("/documents/{documentId}/request-translation", requestTranslationHandler(docSvc, logger))
		r.Delete("/documents/{documentId}", deleteDocumentHandler(docSvc, logger))

		// =============================================
		// Requerimentos
		// =============================================
		r.Get("/clients/{clientId}/requerimentos", listRequerimentosHandler(reqSvc, logger))
		r.Get("/requerimentos/{requerimentoId}", getRequerimentoHandler(reqSvc, logger))

		// =============================================
		// Formularios
		// =============================================
		r.Get("/clients/{clientId}/formularios", listFormulariosHandler(portalSvc, logger))
		r.Post("/formularios/{formularioId}/response", formularioResponseHandler(portalSvc, cfg.MaxUploadBytes, logger))

		// =============================================
		// Processos & notifications
		// =============================================
		r.Get("/clients/{clientId}/processos", listClientProcessosHandler(portalSvc, logger))
		r.Get("/clients/{clientId}/notifications", listNotificationsHandler(portalSvc, logger))
		r.Post("/notifications/{notificationId}/read", markNotificationReadHandler(portalSvc, logger))

		// =============================================
		// Staff-scoped routes (JWT)
		// =============================================
		r.Group(func(r chi.Router) {
			r.Use(JWTAuthMiddleware(cfg.JWTSecret, logger))

			r.Get("/clients", listClientsHandler(portalSvc, logger))
			r.Post("/clients", createClientHandler(portalSvc, logger))
			r.Put("/clients/{clientId}", updateClientHandler(portalSvc, logger))
			r.Delete("/clients/{clientId}", deleteClientHandler(portalSvc, logger))

			r.Patch("/documents/{documentId}/status", updateDocumentStatusHandler(docSvc, logger))

			r.Post("/requerimentos", createRequerimentoHandler(reqSvc, cfg.MaxUploadBytes, logger))
			r.Post("/requerimentos/{requerimentoId}/status", updateRequerimentoStatusHandler(reqSvc, logger))

			r.Get("/processos", listProcessosHandler(portalSvc, logger))
			r.Post("/processos/{processoId}/responsible", assignResponsibleHandler(portalSvc, logger))
		})
	})

	return r
}

// ============================================================
// Operational handlers
// ============================================================

func healthzHandler(docSvc *service.DocumentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "imigra-bfa", Status: "healthy", LatencyMs: 0, LastChecked: now},
		}

		if docSvc != nil {
			start := time.Now()
			_, err := docSvc.RequiredDocuments(ctx)
			latency := time.Since(start).Milliseconds()
			status := "healthy"
			if err != nil {
				status = "degraded"
				logger.Warn("healthz: supabase probe failed", zap.Error(err))
			}
			services = append(services, domain.ServiceHealth{
				Name: "supabase", Status: status, LatencyMs: latency, LastChecked: now,
			})
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overallStatus = "unhealthy"
				break
			}
			if s.Status == "degraded" {
				overallStatus = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// ============================================================
// POST /api/compress
// ============================================================

func compressHandler(docSvc *service.DocumentService, maxBytes int64, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/compress")
		defer span.End()

		fileName, content, err := readMultipartFile(r, "file", maxBytes)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		compressed, err := docSvc.CompressFile(ctx, fileName, content)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		w.Header().Set("Content-Type", "application/pdf")
		w.WriteHeader(http.StatusOK)
		w.Write(compressed)
	}
}
