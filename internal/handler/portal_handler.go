package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/techmigra/imigra-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func listFormulariosHandler(svc *service.PortalService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/clients/{clientId}/formularios")
		defer span.End()

		forms, err := svc.ListFormularios(ctx, chi.URLParam(r, "clientId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, forms)
	}
}

func formularioResponseHandler(svc *service.PortalService, maxBytes int64, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/formularios/{formularioId}/response")
		defer span.End()

		fileName, content, err := readMultipartFile(r, "file", maxBytes)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		form, err := svc.SubmitFormularioResponse(ctx, chi.URLParam(r, "formularioId"), fileName, content)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, form)
	}
}

func listProcessosHandler(svc *service.PortalService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/processos")
		defer span.End()

		processos, err := svc.ListProcessos(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, processos)
	}
}

func listClientProcessosHandler(svc *service.PortalService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/clients/{clientId}/processos")
		defer span.End()

		processos, err := svc.ListClientProcessos(ctx, chi.URLParam(r, "clientId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, processos)
	}
}

func assignResponsibleHandler(svc *service.PortalService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/processos/{processoId}/responsible")
		defer span.End()

		var body struct {
			ResponsibleID string `json:"responsibleId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		processo, err := svc.AssignResponsible(ctx, chi.URLParam(r, "processoId"), body.ResponsibleID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, processo)
	}
}

func listNotificationsHandler(svc *service.PortalService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/clients/{clientId}/notifications")
		defer span.End()

		unreadOnly, _ := strconv.ParseBool(r.URL.Query().Get("unread"))
		notifs, err := svc.ListNotifications(ctx, chi.URLParam(r, "clientId"), unreadOnly)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, notifs)
	}
}

func markNotificationReadHandler(svc *service.PortalService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/notifications/{notificationId}/read")
		defer span.End()

		if err := svc.MarkNotificationRead(ctx, chi.URLParam(r, "notificationId")); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"read": true})
	}
}
