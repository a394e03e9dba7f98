package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/techmigra/imigra-bfa-go/internal/domain"
	"github.com/techmigra/imigra-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

func listRequerimentosHandler(svc *service.RequerimentoService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/clients/{clientId}/requerimentos")
		defer span.End()

		reqs, err := svc.ListRequerimentos(ctx, chi.URLParam(r, "clientId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, reqs)
	}
}

func getRequerimentoHandler(svc *service.RequerimentoService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/requerimentos/{requerimentoId}")
		defer span.End()

		req, err := svc.GetRequerimento(ctx, chi.URLParam(r, "requerimentoId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, req)
	}
}

// createRequerimentoHandler accepts a multipart form: text fields clienteId,
// tipo, observacoes, a documentosAcoplados JSON array, and one file part per
// coupled entry that carries an attachment (matched by position).
func createRequerimentoHandler(svc *service.RequerimentoService, maxBytes int64, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/requerimentos")
		defer span.End()

		if err := r.ParseMultipartForm(maxBytes); err != nil {
			writeError(w, http.StatusBadRequest, "invalid multipart form")
			return
		}

		req := &domain.CreateRequerimentoRequest{
			ClientID:    r.FormValue("clienteId"),
			Tipo:        r.FormValue("tipo"),
			Observacoes: r.FormValue("observacoes"),
		}

		if raw := r.FormValue("documentosAcoplados"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &req.Documentos); err != nil {
				writeError(w, http.StatusBadRequest, "invalid documentosAcoplados payload")
				return
			}
		}

		if r.MultipartForm != nil {
			for _, fh := range r.MultipartForm.File["files"] {
				f, err := fh.Open()
				if err != nil {
					writeError(w, http.StatusBadRequest, "unable to read attachment")
					return
				}
				content, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
				f.Close()
				if err != nil {
					writeError(w, http.StatusBadRequest, "unable to read attachment")
					return
				}
				if int64(len(content)) > maxBytes {
					writeError(w, http.StatusRequestEntityTooLarge, "attachment exceeds the size limit")
					return
				}
				req.Files = append(req.Files, domain.RequerimentoFile{
					Name:    fh.Filename,
					Content: content,
				})
			}
		}

		span.SetAttributes(
			attribute.String("client.id", req.ClientID),
			attribute.Int("attachments", len(req.Files)),
		)

		created, err := svc.Create(ctx, req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

func updateRequerimentoStatusHandler(svc *service.RequerimentoService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/requerimentos/{requerimentoId}/status")
		defer span.End()

		var upd domain.RequerimentoStatusUpdate
		if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		req, err := svc.UpdateStatus(ctx, chi.URLParam(r, "requerimentoId"), &upd)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, req)
	}
}
