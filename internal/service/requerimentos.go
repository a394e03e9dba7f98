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
)

var reqTracer = otel.Tracer("service/requerimentos")

// RequerimentoService handles staff-raised requirements and their coupled
// document requests.
type RequerimentoService struct {
	store   port.RequerimentoStore
	files   port.FileStorage
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewRequerimentoService creates a new requerimento service.
func NewRequerimentoService(
	store port.RequerimentoStore,
	files port.FileStorage,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *RequerimentoService {
	return &RequerimentoService{store: store, files: files, metrics: metrics, logger: logger}
}

func (s *RequerimentoService) ListRequerimentos(ctx context.Context, clientID string) ([]domain.Requerimento, error) {
	ctx, span := reqTracer.Start(ctx, "RequerimentoService.ListRequerimentos")
	defer span.End()
	span.SetAttributes(attribute.String("client.id", clientID))

	return s.store.ListRequerimentos(ctx, clientID)
}

func (s *RequerimentoService) GetRequerimento(ctx context.Context, requerimentoID string) (*domain.Requerimento, error) {
	ctx, span := reqTracer.Start(ctx, "RequerimentoService.GetRequerimento")
	defer span.End()

	return s.store.GetRequerimento(ctx, requerimentoID)
}

// Create submits a requerimento with its coupled document requests as one
// unit. Attachments go to object storage first; if any coupled row fails
// afterwards, everything already written is cleaned up best effort and the
// whole call fails.
func (s *RequerimentoService) Create(ctx context.Context, req *domain.CreateRequerimentoRequest) (*domain.Requerimento, error) {
	ctx, span := reqTracer.Start(ctx, "RequerimentoService.Create")
	defer span.End()
	span.SetAttributes(
		attribute.String("client.id", req.ClientID),
		attribute.Int("coupled_docs", len(req.Documentos)),
	)

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("requerimento_create", time.Since(start)) }()

	if req.ClientID == "" {
		return nil, &domain.ErrValidation{Field: "clienteId", Message: "required"}
	}
	if strings.TrimSpace(req.Tipo) == "" {
		return nil, &domain.ErrValidation{Field: "tipo", Message: "required"}
	}
	for i, d := range req.Documentos {
		if strings.TrimSpace(d.Type) == "" {
			return nil, &domain.ErrValidation{
				Field:   "documentosAcoplados",
				Message: fmt.Sprintf("entry %d has no type", i),
			}
		}
	}
	for _, f := range req.Files {
		if !strings.HasSuffix(strings.ToLower(f.Name), ".pdf") {
			return nil, &domain.ErrInvalidFileType{FileName: f.Name}
		}
	}

	// Attachments are positional: file i belongs to coupled request i.
	storageKeys := make([]string, len(req.Documentos))
	storedKeys := make([]string, 0, len(req.Files))
	for i, f := range req.Files {
		if i >= len(req.Documentos) {
			break
		}
		key := fmt.Sprintf("clients/%s/requerimentos/%s.pdf", req.ClientID, uuid.New().String())
		if err := s.files.Upload(ctx, key, f.Content, "application/pdf"); err != nil {
			s.metrics.IncrExternalError("s3")
			s.cleanupFiles(ctx, storedKeys)
			return nil, err
		}
		storageKeys[i] = key
		storedKeys = append(storedKeys, key)
	}

	created, err := s.store.CreateRequerimento(ctx, &domain.Requerimento{
		ClientID:    req.ClientID,
		Tipo:        req.Tipo,
		Status:      domain.RequerimentoPendente,
		Observacoes: req.Observacoes,
	})
	if err != nil {
		s.metrics.IncrExternalError("supabase")
		s.cleanupFiles(ctx, storedKeys)
		s.logger.Error("failed to create requerimento",
			zap.String("client_id", req.ClientID),
			zap.Error(err),
		)
		return nil, err
	}

	coupled := make([]domain.RequerimentoDoc, 0, len(req.Documentos))
	for i, d := range req.Documentos {
		row, docErr := s.store.CreateRequerimentoDoc(ctx, &domain.RequerimentoDoc{
			RequerimentoID: created.ID,
			Type:           d.Type,
			Name:           d.Name,
			Status:         domain.RequerimentoDocPending,
			StorageKey:     storageKeys[i],
		})
		if docErr != nil {
			// All-or-nothing: roll back the requerimento and anything
			// stored so far, then fail the whole submission.
			if delErr := s.store.DeleteRequerimento(ctx, created.ID); delErr != nil {
				s.logger.Error("failed to roll back requerimento after coupled doc failure",
					zap.String("requerimento_id", created.ID),
					zap.Error(delErr),
				)
			}
			s.cleanupFiles(ctx, storedKeys)
			s.logger.Error("failed to create coupled document request",
				zap.String("requerimento_id", created.ID),
				zap.String("type", d.Type),
				zap.Error(docErr),
			)
			return nil, docErr
		}
		coupled = append(coupled, *row)
	}
	created.Documentos = coupled

	s.logger.Info("requerimento created",
		zap.String("client_id", req.ClientID),
		zap.String("requerimento_id", created.ID),
		zap.Int("coupled_docs", len(coupled)),
	)
	return created, nil
}

// UpdateStatus applies the two-outcome staff decision and returns the
// stored state, never an echo of the request.
func (s *RequerimentoService) UpdateStatus(ctx context.Context, requerimentoID string, upd *domain.RequerimentoStatusUpdate) (*domain.Requerimento, error) {
	ctx, span := reqTracer.Start(ctx, "RequerimentoService.UpdateStatus")
	defer span.End()
	span.SetAttributes(
		attribute.String("requerimento.id", requerimentoID),
		attribute.String("requerimento.status", upd.Status),
	)

	status := strings.ToLower(strings.TrimSpace(upd.Status))
	if status != domain.RequerimentoAprovado && status != domain.RequerimentoRejeitado {
		return nil, &domain.ErrValidation{
			Field:   "status",
			Message: fmt.Sprintf("must be '%s' or '%s'", domain.RequerimentoAprovado, domain.RequerimentoRejeitado),
		}
	}

	updates := map[string]any{"status": status}
	if upd.Reason != "" {
		updates["observacoes"] = upd.Reason
	}

	updated, err := s.store.UpdateRequerimentoStatus(ctx, requerimentoID, updates)
	if err != nil {
		s.logger.Error("failed to update requerimento status",
			zap.String("requerimento_id", requerimentoID),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Info("requerimento status updated",
		zap.String("requerimento_id", requerimentoID),
		zap.String("status", status),
	)
	return updated, nil
}

func (s *RequerimentoService) cleanupFiles(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := s.files.Delete(ctx, key); err != nil {
			s.logger.Warn("failed to clean up requerimento attachment",
				zap.String("storage_key", key),
				zap.Error(err),
			)
		}
	}
}
