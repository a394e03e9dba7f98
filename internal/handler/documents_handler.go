package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/techmigra/imigra-bfa-go/internal/domain"
	"github.com/techmigra/imigra-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Document reads
// ============================================================

func listClientDocumentsHandler(svc *service.DocumentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/clients/{clientId}/documents")
		defer span.End()

		clientID := chi.URLParam(r, "clientId")
		docs, err := svc.ListClientDocuments(ctx, clientID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, docs)
	}
}

func listMemberDocumentsHandler(svc *service.DocumentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/clients/{clientId}/members/{memberId}/documents")
		defer span.End()

		docs, err := svc.ListMemberDocuments(ctx, chi.URLParam(r, "clientId"), chi.URLParam(r, "memberId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, docs)
	}
}

func memberStagesHandler(svc *service.DocumentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/clients/{clientId}/members/{memberId}/documents/stages")
		defer span.End()

		includeHidden, _ := strconv.ParseBool(r.URL.Query().Get("includeHidden"))
		span.SetAttributes(attribute.Bool("include_hidden", includeHidden))

		view, err := svc.MemberStages(ctx, chi.URLParam(r, "clientId"), chi.URLParam(r, "memberId"), includeHidden)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func requiredDocumentsHandler(svc *service.DocumentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/required-documents")
		defer span.End()

		required, err := svc.RequiredDocuments(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, required)
	}
}

func getDocumentHandler(svc *service.DocumentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/documents/{documentId}")
		defer span.End()

		doc, err := svc.GetDocument(ctx, chi.URLParam(r, "documentId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, doc)
	}
}

func downloadDocumentHandler(svc *service.DocumentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/documents/{documentId}/download")
		defer span.End()

		content, fileName, err := svc.Download(ctx, chi.URLParam(r, "documentId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
		w.WriteHeader(http.StatusOK)
		w.Write(content)
	}
}

// ============================================================
// POST /v1/documents/upload
// ============================================================

func uploadDocumentHandler(svc *service.DocumentService, maxBytes int64, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/documents/upload")
		defer span.End()

		fileName, content, err := readMultipartFile(r, "file", maxBytes)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		req := &domain.UploadRequest{
			ClientID:     r.FormValue("clienteId"),
			MemberID:     r.FormValue("memberId"),
			DocumentType: r.FormValue("documentType"),
			DocumentID:   r.FormValue("documentoId"),
			ProcessoID:   r.FormValue("processoId"),
			FileName:     fileName,
			Content:      content,
		}
		span.SetAttributes(
			attribute.String("client.id", req.ClientID),
			attribute.String("document.type", req.DocumentType),
		)

		result, err := svc.Upload(ctx, req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, result)
	}
}

// ============================================================
// Staff actions
// ============================================================

func updateDocumentStatusHandler(svc *service.DocumentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /v1/documents/{documentId}/status")
		defer span.End()

		var upd domain.StatusUpdate
		if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		doc, err := svc.UpdateStatus(ctx, chi.URLParam(r, "documentId"), &upd)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, doc)
	}
}

func deleteDocumentHandler(svc *service.DocumentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/documents/{documentId}")
		defer span.End()

		if err := svc.Delete(ctx, chi.URLParam(r, "documentId")); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
	}
}

// ============================================================
// Quote requests
// ============================================================

func requestApostilleHandler(svc *service.DocumentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/documents/{documentId}/request-apostille")
		defer span.End()

		doc, err := svc.RequestApostilleQuote(ctx, chi.URLParam(r, "documentId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, doc)
	}
}

func requestTranslationHandler(svc *service.DocumentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/documents/{documentId}/request-translation")
		defer span.End()

		doc, err := svc.RequestTranslationQuote(ctx, chi.URLParam(r, "documentId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, doc)
	}
}
