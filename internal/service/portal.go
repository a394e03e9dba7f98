package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/techmigra/imigra-bfa-go/internal/domain"
	"github.com/techmigra/imigra-bfa-go/internal/infra/observability"
	"github.com/techmigra/imigra-bfa-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var portalTracer = otel.Tracer("service/portal")

// PortalService covers the non-document portal surface: clients and their
// family, questionnaires, legal cases and notifications.
type PortalService struct {
	clients   port.ClientStore
	forms     port.FormStore
	processos port.ProcessoStore
	notifs    port.NotificationStore
	files     port.FileStorage
	comp      port.Compressor
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewPortalService creates a new portal service.
func NewPortalService(
	clients port.ClientStore,
	forms port.FormStore,
	processos port.ProcessoStore,
	notifs port.NotificationStore,
	files port.FileStorage,
	comp port.Compressor,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *PortalService {
	return &PortalService{
		clients:   clients,
		forms:     forms,
		processos: processos,
		notifs:    notifs,
		files:     files,
		comp:      comp,
		metrics:   metrics,
		logger:    logger,
	}
}

// ============================================================
// Clients (commercial module)
// ============================================================

func (s *PortalService) ListClients(ctx context.Context) ([]domain.Client, error) {
	ctx, span := portalTracer.Start(ctx, "PortalService.ListClients")
	defer span.End()

	return s.clients.ListClients(ctx)
}

func (s *PortalService) GetClient(ctx context.Context, clientID string) (*domain.Client, error) {
	ctx, span := portalTracer.Start(ctx, "PortalService.GetClient")
	defer span.End()

	return s.clients.GetClient(ctx, clientID)
}

func (s *PortalService) CreateClient(ctx context.Context, req *domain.CreateClientRequest) (*domain.Client, error) {
	ctx, span := portalTracer.Start(ctx, "PortalService.CreateClient")
	defer span.End()

	if strings.TrimSpace(req.Name) == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "required"}
	}
	if !strings.Contains(req.Email, "@") {
		return nil, &domain.ErrValidation{Field: "email", Message: "invalid"}
	}

	client, err := s.clients.CreateClient(ctx, req)
	if err != nil {
		s.logger.Error("failed to create client", zap.String("email", req.Email), zap.Error(err))
		return nil, err
	}

	s.logger.Info("client created",
		zap.String("client_id", client.ID),
		zap.String("visa_type", req.VisaType),
	)
	return client, nil
}

func (s *PortalService) UpdateClient(ctx context.Context, clientID string, updates map[string]any) (*domain.Client, error) {
	ctx, span := portalTracer.Start(ctx, "PortalService.UpdateClient")
	defer span.End()
	span.SetAttributes(attribute.String("client.id", clientID))

	if len(updates) == 0 {
		return nil, &domain.ErrValidation{Field: "body", Message: "no fields to update"}
	}
	return s.clients.UpdateClient(ctx, clientID, updates)
}

func (s *PortalService) DeleteClient(ctx context.Context, clientID string) error {
	ctx, span := portalTracer.Start(ctx, "PortalService.DeleteClient")
	defer span.End()
	span.SetAttributes(attribute.String("client.id", clientID))

	return s.clients.DeleteClient(ctx, clientID)
}

func (s *PortalService) ListFamilyMembers(ctx context.Context, clientID string) ([]domain.FamilyMember, error) {
	ctx, span := portalTracer.Start(ctx, "PortalService.ListFamilyMembers")
	defer span.End()

	return s.clients.ListFamilyMembers(ctx, clientID)
}

// GetClientOverview fetches the client record and its family members in
// parallel.
func (s *PortalService) GetClientOverview(ctx context.Context, clientID string) (*domain.ClientOverview, error) {
	ctx, span := portalTracer.Start(ctx, "PortalService.GetClientOverview")
	defer span.End()
	span.SetAttributes(attribute.String("client.id", clientID))

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("client_overview", time.Since(start)) }()

	var (
		client  *domain.Client
		members []domain.FamilyMember
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		client, err = s.clients.GetClient(gctx, clientID)
		return err
	})
	g.Go(func() error {
		var err error
		members, err = s.clients.ListFamilyMembers(gctx, clientID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &domain.ClientOverview{Client: client, Members: members}, nil
}

// ============================================================
// Formularios
// ============================================================

func (s *PortalService) ListFormularios(ctx context.Context, clientID string) ([]domain.Formulario, error) {
	ctx, span := portalTracer.Start(ctx, "PortalService.ListFormularios")
	defer span.End()

	return s.forms.ListFormularios(ctx, clientID)
}

// SubmitFormularioResponse stores an answer file for a questionnaire and
// marks it answered. Responses go through the same PDF gate and optimizer
// as documents.
func (s *PortalService) SubmitFormularioResponse(ctx context.Context, formularioID, fileName string, content []byte) (*domain.Formulario, error) {
	ctx, span := portalTracer.Start(ctx, "PortalService.SubmitFormularioResponse")
	defer span.End()
	span.SetAttributes(attribute.String("formulario.id", formularioID))

	if len(content) == 0 {
		return nil, &domain.ErrValidation{Field: "file", Message: "empty file"}
	}
	if !strings.HasSuffix(strings.ToLower(fileName), ".pdf") {
		return nil, &domain.ErrInvalidFileType{FileName: fileName}
	}

	form, err := s.forms.GetFormulario(ctx, formularioID)
	if err != nil {
		return nil, err
	}

	compressed, err := s.comp.Compress(ctx, fileName, content)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("clients/%s/formularios/%s.pdf", form.ClientID, uuid.New().String())
	if err := s.files.Upload(ctx, key, compressed, "application/pdf"); err != nil {
		s.metrics.IncrExternalError("s3")
		return nil, err
	}

	updated, err := s.forms.UpdateFormulario(ctx, formularioID, map[string]any{
		"status":       "answered",
		"response_key": key,
		"answered_at":  time.Now().Format(time.RFC3339),
	})
	if err != nil {
		if delErr := s.files.Delete(ctx, key); delErr != nil {
			s.logger.Warn("failed to clean up formulario response after record failure",
				zap.String("storage_key", key),
				zap.Error(delErr),
			)
		}
		return nil, err
	}

	if form.ResponseKey != "" && form.ResponseKey != key {
		if delErr := s.files.Delete(ctx, form.ResponseKey); delErr != nil {
			s.logger.Warn("failed to delete replaced formulario response",
				zap.String("storage_key", form.ResponseKey),
				zap.Error(delErr),
			)
		}
	}

	s.logger.Info("formulario answered",
		zap.String("formulario_id", formularioID),
		zap.String("client_id", form.ClientID),
	)
	return updated, nil
}

// ============================================================
// Processos (juridico module)
// ============================================================

func (s *PortalService) ListProcessos(ctx context.Context) ([]domain.Processo, error) {
	ctx, span := portalTracer.Start(ctx, "PortalService.ListProcessos")
	defer span.End()

	return s.processos.ListProcessos(ctx)
}

func (s *PortalService) ListClientProcessos(ctx context.Context, clientID string) ([]domain.Processo, error) {
	ctx, span := portalTracer.Start(ctx, "PortalService.ListClientProcessos")
	defer span.End()

	return s.processos.ListClientProcessos(ctx, clientID)
}

func (s *PortalService) AssignResponsible(ctx context.Context, processoID, responsibleID string) (*domain.Processo, error) {
	ctx, span := portalTracer.Start(ctx, "PortalService.AssignResponsible")
	defer span.End()
	span.SetAttributes(attribute.String("processo.id", processoID))

	if responsibleID == "" {
		return nil, &domain.ErrValidation{Field: "responsibleId", Message: "required"}
	}
	return s.processos.AssignResponsible(ctx, processoID, responsibleID)
}

// ============================================================
// Notifications
// ============================================================

func (s *PortalService) ListNotifications(ctx context.Context, clientID string, unreadOnly bool) ([]domain.Notification, error) {
	ctx, span := portalTracer.Start(ctx, "PortalService.ListNotifications")
	defer span.End()

	return s.notifs.ListNotifications(ctx, clientID, unreadOnly)
}

func (s *PortalService) MarkNotificationRead(ctx context.Context, notificationID string) error {
	ctx, span := portalTracer.Start(ctx, "PortalService.MarkNotificationRead")
	defer span.End()

	return s.notifs.MarkNotificationRead(ctx, notificationID)
}
