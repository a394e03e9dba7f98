// Package service provides the business logic layer (use cases).
// DocumentService owns the document lifecycle: uploads, stage views,
// staff status changes and the quote-request flow.
package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/techmigra/imigra-bfa-go/internal/domain"
	"github.com/techmigra/imigra-bfa-go/internal/infra/observability"
	"github.com/techmigra/imigra-bfa-go/internal/infra/resilience"
	"github.com/techmigra/imigra-bfa-go/internal/port"
	"github.com/techmigra/imigra-bfa-go/internal/stage"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var docTracer = otel.Tracer("service/documents")

const requiredDocsCacheKey = "required_documents"

// validStatuses are the document statuses staff may write. Stored lowercase;
// input is normalized before the check.
var validStatuses = map[string]bool{
	domain.StatusPending:                 true,
	domain.StatusAnalyzing:               true,
	domain.StatusRejected:                true,
	domain.StatusWaitingApostille:        true,
	domain.StatusAnalyzingApostille:      true,
	domain.StatusWaitingTranslation:      true,
	domain.StatusAnalyzingTranslation:    true,
	domain.StatusWaitingQuoteApproval:    true,
	domain.StatusApproved:                true,
	domain.StatusWaitingApostilleQuote:   true,
	domain.StatusWaitingTranslationQuote: true,
}

// StageView is the full per-member tab snapshot: documents grouped by
// stage, the merged pending list, and the badge counters.
type StageView struct {
	Stages  map[stage.Stage][]domain.Document `json:"stages"`
	Pending []stage.PendingEntry              `json:"pending"`
	Counts  stage.TabCounts                   `json:"counts"`
}

// DocumentService orchestrates document operations across the Supabase
// store, the object store and the PDF optimizer.
type DocumentService struct {
	docs    port.DocumentStore
	reqs    port.RequerimentoStore
	forms   port.FormStore
	files   port.FileStorage
	comp    port.Compressor
	catalog port.Cache[[]domain.RequiredDocument]

	// compressBulkhead caps concurrent pdfcpu runs; each one holds the
	// whole file plus the optimizer's working set in memory.
	compressBulkhead *resilience.Bulkhead
	maxUploadBytes   int64

	metrics *observability.Metrics
	logger  *zap.Logger

	// inFlight guards per (member, type) uploads so a double-click or a
	// retried request cannot race two writes for the same slot.
	mu       sync.Mutex
	inFlight map[string]bool
}

// NewDocumentService creates a new document service.
func NewDocumentService(
	docs port.DocumentStore,
	reqs port.RequerimentoStore,
	forms port.FormStore,
	files port.FileStorage,
	comp port.Compressor,
	catalog port.Cache[[]domain.RequiredDocument],
	compressBulkhead *resilience.Bulkhead,
	maxUploadBytes int64,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *DocumentService {
	return &DocumentService{
		docs:             docs,
		reqs:             reqs,
		forms:            forms,
		files:            files,
		comp:             comp,
		catalog:          catalog,
		compressBulkhead: compressBulkhead,
		maxUploadBytes:   maxUploadBytes,
		metrics:          metrics,
		logger:           logger,
		inFlight:         make(map[string]bool),
	}
}

// ============================================================
// Reads
// ============================================================

func (s *DocumentService) ListClientDocuments(ctx context.Context, clientID string) ([]domain.Document, error) {
	ctx, span := docTracer.Start(ctx, "DocumentService.ListClientDocuments")
	defer span.End()
	span.SetAttributes(attribute.String("client.id", clientID))

	return s.docs.ListDocuments(ctx, clientID)
}

func (s *DocumentService) ListMemberDocuments(ctx context.Context, clientID, memberID string) ([]domain.Document, error) {
	ctx, span := docTracer.Start(ctx, "DocumentService.ListMemberDocuments")
	defer span.End()

	return s.docs.ListMemberDocuments(ctx, clientID, memberID)
}

func (s *DocumentService) GetDocument(ctx context.Context, documentID string) (*domain.Document, error) {
	ctx, span := docTracer.Start(ctx, "DocumentService.GetDocument")
	defer span.End()

	return s.docs.GetDocument(ctx, documentID)
}

// RequiredDocuments returns the document catalog, served from cache. The
// catalog changes rarely but is read on every stage computation.
func (s *DocumentService) RequiredDocuments(ctx context.Context) ([]domain.RequiredDocument, error) {
	ctx, span := docTracer.Start(ctx, "DocumentService.RequiredDocuments")
	defer span.End()

	if cached, ok := s.catalog.Get(requiredDocsCacheKey); ok {
		s.metrics.IncrCacheHit("required_documents")
		return cached, nil
	}
	s.metrics.IncrCacheMiss("required_documents")

	required, err := s.docs.ListRequiredDocuments(ctx)
	if err != nil {
		return nil, err
	}
	s.catalog.Set(requiredDocsCacheKey, required)
	return required, nil
}

// MemberStages assembles a member's complete tab snapshot. The four
// source fetches are independent and run in parallel. includeHidden
// bypasses the client visibility gate on the apostille/translation tabs
// (staff view).
func (s *DocumentService) MemberStages(ctx context.Context, clientID, memberID string, includeHidden bool) (*StageView, error) {
	ctx, span := docTracer.Start(ctx, "DocumentService.MemberStages")
	defer span.End()
	span.SetAttributes(
		attribute.String("client.id", clientID),
		attribute.String("member.id", memberID),
		attribute.Bool("include_hidden", includeHidden),
	)

	view := "client"
	if includeHidden {
		view = "staff"
	}
	s.metrics.IncrStageRequest(view)

	var (
		docs          []domain.Document
		required      []domain.RequiredDocument
		formularios   []domain.Formulario
		requerimentos []domain.Requerimento
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		docs, err = s.docs.ListMemberDocuments(gctx, clientID, memberID)
		return err
	})
	g.Go(func() error {
		var err error
		required, err = s.RequiredDocuments(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		formularios, err = s.forms.ListFormularios(gctx, clientID)
		return err
	})
	g.Go(func() error {
		var err error
		requerimentos, err = s.reqs.ListRequerimentos(gctx, clientID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stages := make(map[stage.Stage][]domain.Document)
	for _, st := range []stage.Stage{
		stage.StageAnalyzing, stage.StageRejected,
		stage.StageApostille, stage.StageTranslation, stage.StageCompleted,
	} {
		if includeHidden {
			stages[st] = stage.ForStageAll(st, docs)
		} else {
			stages[st] = stage.ForStage(st, docs)
		}
	}

	formCount := 0
	for _, f := range formularios {
		if strings.EqualFold(f.Status, "pending") {
			formCount++
		}
	}
	reqCount := 0
	for _, r := range requerimentos {
		if !strings.EqualFold(r.Status, domain.RequerimentoConcluido) {
			reqCount++
		}
	}

	return &StageView{
		Stages:  stages,
		Pending: stage.Pending(docs, required),
		Counts:  stage.Counts(docs, required, formCount, reqCount),
	}, nil
}

// ============================================================
// Upload
// ============================================================

// Upload runs the full upload pipeline: PDF gate, single-flight guard,
// replacement detection, compression, object storage and the record
// upsert. The record lands in analyzing; on replacement the apostille and
// translation flags are reset because the new file restarts review.
func (s *DocumentService) Upload(ctx context.Context, req *domain.UploadRequest) (*domain.UploadResult, error) {
	ctx, span := docTracer.Start(ctx, "DocumentService.Upload")
	defer span.End()
	span.SetAttributes(
		attribute.String("client.id", req.ClientID),
		attribute.String("member.id", req.MemberID),
		attribute.String("document.type", req.DocumentType),
		attribute.Int("file.size", len(req.Content)),
	)

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("document_upload", time.Since(start)) }()

	if req.ClientID == "" {
		return nil, &domain.ErrValidation{Field: "clienteId", Message: "required"}
	}
	if req.MemberID == "" {
		return nil, &domain.ErrValidation{Field: "memberId", Message: "required"}
	}
	if req.DocumentType == "" {
		return nil, &domain.ErrValidation{Field: "documentType", Message: "required"}
	}
	if len(req.Content) == 0 {
		return nil, &domain.ErrValidation{Field: "file", Message: "empty file"}
	}
	if s.maxUploadBytes > 0 && int64(len(req.Content)) > s.maxUploadBytes {
		return nil, &domain.ErrValidation{
			Field:   "file",
			Message: fmt.Sprintf("file exceeds the %d byte limit", s.maxUploadBytes),
		}
	}

	// Extension gate before anything touches a collaborator. The message
	// is shown verbatim in the upload dialog.
	if !strings.HasSuffix(strings.ToLower(req.FileName), ".pdf") {
		s.metrics.IncrUpload("rejected_type")
		return nil, &domain.ErrInvalidFileType{FileName: req.FileName}
	}

	slot := uploadSlotKey(req.MemberID, req.DocumentType)
	if !s.acquireSlot(slot) {
		s.metrics.IncrUpload("in_flight")
		return nil, &domain.ErrUploadInFlight{MemberID: req.MemberID, DocumentType: req.DocumentType}
	}
	defer s.releaseSlot(slot)

	existing, err := s.findExisting(ctx, req)
	if err != nil {
		s.metrics.IncrUpload("error")
		return nil, err
	}

	if err := s.compressBulkhead.Acquire(ctx); err != nil {
		s.metrics.IncrUpload("error")
		return nil, err
	}
	compressed, err := s.comp.Compress(ctx, req.FileName, req.Content)
	s.compressBulkhead.Release()
	if err != nil {
		s.metrics.IncrUpload("error")
		return nil, err
	}
	s.metrics.ObserveCompressionRatio(float64(len(compressed)) / float64(len(req.Content)))

	key := fmt.Sprintf("clients/%s/documents/%s.pdf", req.ClientID, uuid.New().String())
	if err := s.files.Upload(ctx, key, compressed, "application/pdf"); err != nil {
		s.metrics.IncrExternalError("s3")
		s.metrics.IncrUpload("error")
		return nil, err
	}

	now := time.Now()
	var doc *domain.Document
	if existing != nil {
		updates := map[string]any{
			"status":           domain.StatusAnalyzing,
			"is_apostilled":    false,
			"is_translated":    false,
			"rejection_reason": "",
			"file_name":        req.FileName,
			"file_size":        int64(len(compressed)),
			"storage_key":      key,
			"upload_date":      now.Format(time.RFC3339),
		}
		if req.ProcessoID != "" {
			updates["processo_id"] = req.ProcessoID
		}
		doc, err = s.docs.UpdateDocument(ctx, existing.ID, updates)
	} else {
		doc, err = s.docs.CreateDocument(ctx, &domain.Document{
			ClientID:   req.ClientID,
			MemberID:   req.MemberID,
			Type:       req.DocumentType,
			Status:     domain.StatusAnalyzing,
			ProcessoID: req.ProcessoID,
			FileName:   req.FileName,
			FileSize:   int64(len(compressed)),
			StorageKey: key,
			UploadDate: &now,
		})
	}
	if err != nil {
		// The object is already in S3 but the record write failed. Clean
		// up so a retry does not leak orphans.
		if delErr := s.files.Delete(ctx, key); delErr != nil {
			s.logger.Warn("failed to clean up stored object after record failure",
				zap.String("storage_key", key),
				zap.Error(delErr),
			)
		}
		s.metrics.IncrExternalError("supabase")
		s.metrics.IncrUpload("error")
		return nil, err
	}

	if existing != nil && existing.StorageKey != "" && existing.StorageKey != key {
		if delErr := s.files.Delete(ctx, existing.StorageKey); delErr != nil {
			s.logger.Warn("failed to delete replaced object",
				zap.String("storage_key", existing.StorageKey),
				zap.Error(delErr),
			)
		}
	}

	outcome := "stored"
	if existing != nil {
		outcome = "replaced"
	}
	s.metrics.IncrUpload(outcome)
	s.logger.Info("document uploaded",
		zap.String("client_id", req.ClientID),
		zap.String("member_id", req.MemberID),
		zap.String("document_type", req.DocumentType),
		zap.String("document_id", doc.ID),
		zap.Bool("replacement", existing != nil),
		zap.Int("original_size", len(req.Content)),
		zap.Int("stored_size", len(compressed)),
	)

	return &domain.UploadResult{
		Document:      doc,
		IsReplacement: existing != nil,
		OriginalSize:  int64(len(req.Content)),
		StoredSize:    int64(len(compressed)),
	}, nil
}

// findExisting resolves the document row an upload replaces: the explicit
// documentoId when the client sent one, otherwise any row of the same type
// for the member, regardless of status.
func (s *DocumentService) findExisting(ctx context.Context, req *domain.UploadRequest) (*domain.Document, error) {
	if req.DocumentID != "" {
		return s.docs.GetDocument(ctx, req.DocumentID)
	}

	docs, err := s.docs.ListMemberDocuments(ctx, req.ClientID, req.MemberID)
	if err != nil {
		return nil, err
	}
	want := strings.ToLower(strings.TrimSpace(req.DocumentType))
	for i := range docs {
		if strings.ToLower(strings.TrimSpace(docs[i].Type)) == want {
			return &docs[i], nil
		}
	}
	return nil, nil
}

func uploadSlotKey(memberID, documentType string) string {
	return memberID + "/" + strings.ToLower(strings.TrimSpace(documentType))
}

func (s *DocumentService) acquireSlot(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[key] {
		return false
	}
	s.inFlight[key] = true
	return true
}

func (s *DocumentService) releaseSlot(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, key)
}

// ============================================================
// Staff actions
// ============================================================

// UpdateStatus applies a staff decision to a document. Rejections require
// a reason; approving or moving the document clears any previous one.
func (s *DocumentService) UpdateStatus(ctx context.Context, documentID string, upd *domain.StatusUpdate) (*domain.Document, error) {
	ctx, span := docTracer.Start(ctx, "DocumentService.UpdateStatus")
	defer span.End()
	span.SetAttributes(
		attribute.String("document.id", documentID),
		attribute.String("document.status", upd.Status),
	)

	status := strings.ToLower(strings.TrimSpace(upd.Status))
	if !validStatuses[status] {
		return nil, &domain.ErrValidation{Field: "status", Message: fmt.Sprintf("unknown status '%s'", upd.Status)}
	}
	if status == domain.StatusRejected && strings.TrimSpace(upd.RejectionReason) == "" {
		return nil, &domain.ErrValidation{Field: "rejectionReason", Message: "required when rejecting"}
	}

	updates := map[string]any{"status": status}
	if status == domain.StatusRejected {
		updates["rejection_reason"] = upd.RejectionReason
	} else {
		updates["rejection_reason"] = ""
	}
	if upd.IsApostilled != nil {
		updates["is_apostilled"] = *upd.IsApostilled
	}
	if upd.IsTranslated != nil {
		updates["is_translated"] = *upd.IsTranslated
	}
	if upd.SolicitadoPeloJuridico != nil {
		updates["solicitado_pelo_juridico"] = *upd.SolicitadoPeloJuridico
	}

	doc, err := s.docs.UpdateDocument(ctx, documentID, updates)
	if err != nil {
		s.logger.Error("failed to update document status",
			zap.String("document_id", documentID),
			zap.String("status", status),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Info("document status updated",
		zap.String("document_id", documentID),
		zap.String("status", status),
	)
	return doc, nil
}

// Delete removes a rejected document and its stored file. Any other state
// is a conflict: clients replace documents by re-uploading, not deleting.
func (s *DocumentService) Delete(ctx context.Context, documentID string) error {
	ctx, span := docTracer.Start(ctx, "DocumentService.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("document.id", documentID))

	doc, err := s.docs.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if !strings.EqualFold(strings.TrimSpace(doc.Status), domain.StatusRejected) {
		return &domain.ErrConflict{
			Message: fmt.Sprintf("only rejected documents can be deleted, status is '%s'", doc.Status),
		}
	}

	if err := s.docs.DeleteDocument(ctx, documentID); err != nil {
		return err
	}
	if doc.StorageKey != "" {
		if delErr := s.files.Delete(ctx, doc.StorageKey); delErr != nil {
			s.logger.Warn("failed to delete stored object for removed document",
				zap.String("document_id", documentID),
				zap.String("storage_key", doc.StorageKey),
				zap.Error(delErr),
			)
		}
	}
	return nil
}

// Download fetches the stored file for a document.
func (s *DocumentService) Download(ctx context.Context, documentID string) ([]byte, string, error) {
	ctx, span := docTracer.Start(ctx, "DocumentService.Download")
	defer span.End()

	doc, err := s.docs.GetDocument(ctx, documentID)
	if err != nil {
		return nil, "", err
	}
	if doc.StorageKey == "" {
		return nil, "", &domain.ErrNotFound{Resource: "document_file", ID: documentID}
	}

	content, err := s.files.Download(ctx, doc.StorageKey)
	if err != nil {
		return nil, "", err
	}
	return content, doc.FileName, nil
}

// ============================================================
// Quote requests (client-initiated pricing flow)
// ============================================================

// RequestApostilleQuote marks a document as waiting for an apostille
// quote. Idempotent: re-issuing while already waiting returns the current
// row without a write.
func (s *DocumentService) RequestApostilleQuote(ctx context.Context, documentID string) (*domain.Document, error) {
	return s.requestQuote(ctx, "DocumentService.RequestApostilleQuote", documentID, domain.StatusWaitingApostilleQuote)
}

// RequestTranslationQuote marks a document as waiting for a translation
// quote, with the same idempotency as RequestApostilleQuote.
func (s *DocumentService) RequestTranslationQuote(ctx context.Context, documentID string) (*domain.Document, error) {
	return s.requestQuote(ctx, "DocumentService.RequestTranslationQuote", documentID, domain.StatusWaitingTranslationQuote)
}

func (s *DocumentService) requestQuote(ctx context.Context, spanName, documentID, targetStatus string) (*domain.Document, error) {
	ctx, span := docTracer.Start(ctx, spanName)
	defer span.End()
	span.SetAttributes(attribute.String("document.id", documentID))

	doc, err := s.docs.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(strings.TrimSpace(doc.Status), targetStatus) {
		return doc, nil
	}

	updated, err := s.docs.UpdateDocument(ctx, documentID, map[string]any{"status": targetStatus})
	if err != nil {
		return nil, err
	}

	s.logger.Info("quote requested",
		zap.String("document_id", documentID),
		zap.String("status", targetStatus),
	)
	return updated, nil
}

// ============================================================
// Standalone compression (public /api/compress contract)
// ============================================================

// CompressFile runs a file through the PDF optimizer without touching any
// record, bounded by the same bulkhead as uploads.
func (s *DocumentService) CompressFile(ctx context.Context, fileName string, content []byte) ([]byte, error) {
	ctx, span := docTracer.Start(ctx, "DocumentService.CompressFile")
	defer span.End()
	span.SetAttributes(attribute.String("file.name", fileName))

	if len(content) == 0 {
		return nil, &domain.ErrValidation{Field: "file", Message: "empty file"}
	}

	if err := s.compressBulkhead.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.compressBulkhead.Release()

	compressed, err := s.comp.Compress(ctx, fileName, content)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveCompressionRatio(float64(len(compressed)) / float64(len(content)))
	return compressed, nil
}
