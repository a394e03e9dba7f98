package service_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/techmigra/imigra-bfa-go/internal/domain"
	"github.com/techmigra/imigra-bfa-go/internal/infra/cache"
	"github.com/techmigra/imigra-bfa-go/internal/infra/observability"
	"github.com/techmigra/imigra-bfa-go/internal/infra/resilience"
	"github.com/techmigra/imigra-bfa-go/internal/service"

	"go.uber.org/zap"
)

// --- Mocks ---

type mockDocStore struct {
	mu          sync.Mutex
	docs        []domain.Document
	required    []domain.RequiredDocument
	createErr   error
	updateErr   error
	listErr     error
	createCalls int
	updateCalls int
	listCalls   int
	lastUpdates map[string]any
}

func (m *mockDocStore) ListDocuments(_ context.Context, _ string) ([]domain.Document, error) {
	return m.ListMemberDocuments(nil, "", "")
}

func (m *mockDocStore) ListMemberDocuments(_ context.Context, _, _ string) ([]domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	return append([]domain.Document(nil), m.docs...), nil
}

func (m *mockDocStore) GetDocument(_ context.Context, documentID string) (*domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.docs {
		if m.docs[i].ID == documentID {
			d := m.docs[i]
			return &d, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "document", ID: documentID}
}

func (m *mockDocStore) CreateDocument(_ context.Context, doc *domain.Document) (*domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	if m.createErr != nil {
		return nil, m.createErr
	}
	created := *doc
	if created.ID == "" {
		created.ID = "doc-new"
	}
	m.docs = append(m.docs, created)
	return &created, nil
}

func (m *mockDocStore) UpdateDocument(_ context.Context, documentID string, updates map[string]any) (*domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls++
	m.lastUpdates = updates
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	for i := range m.docs {
		if m.docs[i].ID != documentID {
			continue
		}
		if v, ok := updates["status"].(string); ok {
			m.docs[i].Status = v
		}
		if v, ok := updates["is_apostilled"].(bool); ok {
			m.docs[i].IsApostilled = v
		}
		if v, ok := updates["is_translated"].(bool); ok {
			m.docs[i].IsTranslated = v
		}
		if v, ok := updates["rejection_reason"].(string); ok {
			m.docs[i].RejectionReason = v
		}
		if v, ok := updates["storage_key"].(string); ok {
			m.docs[i].StorageKey = v
		}
		if v, ok := updates["file_name"].(string); ok {
			m.docs[i].FileName = v
		}
		d := m.docs[i]
		return &d, nil
	}
	return nil, &domain.ErrNotFound{Resource: "document", ID: documentID}
}

func (m *mockDocStore) DeleteDocument(_ context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.docs {
		if m.docs[i].ID == documentID {
			m.docs = append(m.docs[:i], m.docs[i+1:]...)
			return nil
		}
	}
	return &domain.ErrNotFound{Resource: "document", ID: documentID}
}

func (m *mockDocStore) ListRequiredDocuments(_ context.Context) ([]domain.RequiredDocument, error) {
	return m.required, nil
}

type mockFileStorage struct {
	mu        sync.Mutex
	uploads   map[string][]byte
	deleted   []string
	uploadErr error
}

func newMockFileStorage() *mockFileStorage {
	return &mockFileStorage{uploads: map[string][]byte{}}
}

func (m *mockFileStorage) Upload(_ context.Context, key string, content []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.uploadErr != nil {
		return m.uploadErr
	}
	m.uploads[key] = content
	return nil
}

func (m *mockFileStorage) Download(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	content, ok := m.uploads[key]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "object", ID: key}
	}
	return content, nil
}

func (m *mockFileStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, key)
	return nil
}

type mockCompressor struct {
	mu      sync.Mutex
	calls   int
	err     error
	entered chan struct{}
	release chan struct{}
}

func (m *mockCompressor) Compress(_ context.Context, _ string, content []byte) ([]byte, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.entered != nil {
		m.entered <- struct{}{}
		<-m.release
	}
	if m.err != nil {
		return nil, m.err
	}
	// Pretend the optimizer halved the file.
	return content[:len(content)/2+1], nil
}

func (m *mockCompressor) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockFormStore struct {
	forms []domain.Formulario
	err   error
}

func (m *mockFormStore) ListFormularios(_ context.Context, _ string) ([]domain.Formulario, error) {
	return m.forms, m.err
}

func (m *mockFormStore) GetFormulario(_ context.Context, id string) (*domain.Formulario, error) {
	for i := range m.forms {
		if m.forms[i].ID == id {
			return &m.forms[i], nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "formulario", ID: id}
}

func (m *mockFormStore) UpdateFormulario(_ context.Context, id string, _ map[string]any) (*domain.Formulario, error) {
	return m.GetFormulario(nil, id)
}

type mockReqStore struct {
	mu          sync.Mutex
	reqs        []domain.Requerimento
	createErr   error
	docErr      error
	docErrAfter int // fail CreateRequerimentoDoc after this many successes
	docCalls    int
	deleted     []string
}

func (m *mockReqStore) ListRequerimentos(_ context.Context, _ string) ([]domain.Requerimento, error) {
	return m.reqs, nil
}

func (m *mockReqStore) GetRequerimento(_ context.Context, id string) (*domain.Requerimento, error) {
	for i := range m.reqs {
		if m.reqs[i].ID == id {
			return &m.reqs[i], nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "requerimento", ID: id}
}

func (m *mockReqStore) CreateRequerimento(_ context.Context, req *domain.Requerimento) (*domain.Requerimento, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	created := *req
	created.ID = "req-1"
	m.reqs = append(m.reqs, created)
	return &created, nil
}

func (m *mockReqStore) CreateRequerimentoDoc(_ context.Context, doc *domain.RequerimentoDoc) (*domain.RequerimentoDoc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docCalls++
	if m.docErr != nil && m.docCalls > m.docErrAfter {
		return nil, m.docErr
	}
	created := *doc
	created.ID = "reqdoc-1"
	return &created, nil
}

func (m *mockReqStore) UpdateRequerimentoStatus(_ context.Context, id string, updates map[string]any) (*domain.Requerimento, error) {
	for i := range m.reqs {
		if m.reqs[i].ID == id {
			if v, ok := updates["status"].(string); ok {
				m.reqs[i].Status = v
			}
			return &m.reqs[i], nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "requerimento", ID: id}
}

func (m *mockReqStore) DeleteRequerimento(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, id)
	return nil
}

// --- Helpers ---

func newDocumentService(store *mockDocStore, files *mockFileStorage, comp *mockCompressor) *service.DocumentService {
	return service.NewDocumentService(
		store,
		&mockReqStore{},
		&mockFormStore{},
		files,
		comp,
		cache.New[[]domain.RequiredDocument](time.Minute),
		resilience.NewBulkhead(4),
		10<<20,
		observability.NewMetrics(),
		zap.NewNop(),
	)
}

func pdfUpload(fileName string) *domain.UploadRequest {
	return &domain.UploadRequest{
		ClientID:     "client-1",
		MemberID:     "member-1",
		DocumentType: "passport",
		FileName:     fileName,
		Content:      []byte("%PDF-1.4 fake content for tests"),
	}
}

// --- Upload tests ---

func TestUpload_RejectsNonPDFBeforeAnyCall(t *testing.T) {
	store := &mockDocStore{}
	files := newMockFileStorage()
	comp := &mockCompressor{}
	svc := newDocumentService(store, files, comp)

	_, err := svc.Upload(context.Background(), pdfUpload("curriculo.docx"))

	var invalidType *domain.ErrInvalidFileType
	if !errors.As(err, &invalidType) {
		t.Fatalf("expected ErrInvalidFileType, got %v", err)
	}
	if store.listCalls != 0 || store.createCalls != 0 {
		t.Errorf("store should not be called for a rejected extension, got %d list / %d create",
			store.listCalls, store.createCalls)
	}
	if comp.callCount() != 0 {
		t.Error("compressor should not be called for a rejected extension")
	}
	if len(files.uploads) != 0 {
		t.Error("nothing should be stored for a rejected extension")
	}
}

func TestUpload_OutcomeCounters(t *testing.T) {
	metrics := observability.NewMetrics()
	svc := service.NewDocumentService(
		&mockDocStore{},
		&mockReqStore{},
		&mockFormStore{},
		newMockFileStorage(),
		&mockCompressor{},
		cache.New[[]domain.RequiredDocument](time.Minute),
		resilience.NewBulkhead(4),
		10<<20,
		metrics,
		zap.NewNop(),
	)

	if _, err := svc.Upload(context.Background(), pdfUpload("passaporte.pdf")); err != nil {
		t.Fatalf("expected stored upload, got %v", err)
	}
	if _, err := svc.Upload(context.Background(), pdfUpload("curriculo.docx")); err == nil {
		t.Fatal("expected rejected extension")
	}

	if got := metrics.UploadCount("stored"); got != 1 {
		t.Errorf("stored counter = %v, want 1", got)
	}
	if got := metrics.UploadCount("rejected_type"); got != 1 {
		t.Errorf("rejected_type counter = %v, want 1", got)
	}
	if got := metrics.UploadCount("error"); got != 0 {
		t.Errorf("error counter = %v, want 0", got)
	}
}

func TestUpload_AcceptsUppercaseExtension(t *testing.T) {
	store := &mockDocStore{}
	svc := newDocumentService(store, newMockFileStorage(), &mockCompressor{})

	result, err := svc.Upload(context.Background(), pdfUpload("report.PDF"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.IsReplacement {
		t.Error("first upload should not be a replacement")
	}
	if result.Document.Status != domain.StatusAnalyzing {
		t.Errorf("expected status analyzing, got %s", result.Document.Status)
	}
}

func TestUpload_ReplacementResetsFlags(t *testing.T) {
	store := &mockDocStore{
		docs: []domain.Document{{
			ID:           "doc-1",
			ClientID:     "client-1",
			MemberID:     "member-1",
			Type:         "Passport", // type match is case-insensitive
			Status:       domain.StatusRejected,
			IsApostilled: true,
			IsTranslated: true,
			StorageKey:   "clients/client-1/documents/old.pdf",
		}},
	}
	files := newMockFileStorage()
	svc := newDocumentService(store, files, &mockCompressor{})

	result, err := svc.Upload(context.Background(), pdfUpload("passport.pdf"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !result.IsReplacement {
		t.Fatal("expected a replacement")
	}
	if result.Document.Status != domain.StatusAnalyzing {
		t.Errorf("replaced document should be analyzing, got %s", result.Document.Status)
	}
	if result.Document.IsApostilled || result.Document.IsTranslated {
		t.Error("replacement should reset apostille/translation flags")
	}
	if store.createCalls != 0 {
		t.Error("replacement must patch the existing row, not create a new one")
	}

	oldDeleted := false
	for _, k := range files.deleted {
		if k == "clients/client-1/documents/old.pdf" {
			oldDeleted = true
		}
	}
	if !oldDeleted {
		t.Error("replaced object should be deleted from storage")
	}
}

func TestUpload_SecondConcurrentAttemptRejected(t *testing.T) {
	store := &mockDocStore{}
	comp := &mockCompressor{
		entered: make(chan struct{}, 2),
		release: make(chan struct{}),
	}
	svc := newDocumentService(store, newMockFileStorage(), comp)

	firstDone := make(chan error, 1)
	go func() {
		_, err := svc.Upload(context.Background(), pdfUpload("passport.pdf"))
		firstDone <- err
	}()

	// Wait until the first upload holds the slot inside the compressor.
	<-comp.entered

	_, err := svc.Upload(context.Background(), pdfUpload("passport.pdf"))
	var inFlight *domain.ErrUploadInFlight
	if !errors.As(err, &inFlight) {
		t.Fatalf("expected ErrUploadInFlight, got %v", err)
	}

	close(comp.release)
	if err := <-firstDone; err != nil {
		t.Fatalf("first upload should succeed, got %v", err)
	}
}

func TestUpload_SlotReleasedAfterFailure(t *testing.T) {
	store := &mockDocStore{createErr: errors.New("postgrest unavailable")}
	files := newMockFileStorage()
	svc := newDocumentService(store, files, &mockCompressor{})

	_, err := svc.Upload(context.Background(), pdfUpload("passport.pdf"))
	if err == nil {
		t.Fatal("expected error from store failure")
	}
	if len(files.deleted) == 0 {
		t.Error("stored object should be cleaned up after record failure")
	}

	// The slot must be free again: a retry goes through.
	store.createErr = nil
	if _, err := svc.Upload(context.Background(), pdfUpload("passport.pdf")); err != nil {
		t.Fatalf("retry after failure should succeed, got %v", err)
	}
}

func TestUpload_CompressionFailureAborts(t *testing.T) {
	store := &mockDocStore{}
	files := newMockFileStorage()
	comp := &mockCompressor{err: errors.New("xref table corrupt")}
	svc := newDocumentService(store, files, comp)

	_, err := svc.Upload(context.Background(), pdfUpload("passport.pdf"))
	if err == nil {
		t.Fatal("expected error when compression fails")
	}
	if len(files.uploads) != 0 {
		t.Error("nothing should reach storage when compression fails")
	}
	if store.createCalls != 0 {
		t.Error("no record should be written when compression fails")
	}
}

func TestUpload_StorageKeyLayout(t *testing.T) {
	files := newMockFileStorage()
	svc := newDocumentService(&mockDocStore{}, files, &mockCompressor{})

	result, err := svc.Upload(context.Background(), pdfUpload("passport.pdf"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	key := result.Document.StorageKey
	if !strings.HasPrefix(key, "clients/client-1/documents/") || !strings.HasSuffix(key, ".pdf") {
		t.Errorf("unexpected storage key layout: %s", key)
	}
	if _, ok := files.uploads[key]; !ok {
		t.Errorf("no object stored under %s", key)
	}
}

// --- Staff action tests ---

func TestUpdateStatus_RejectionRequiresReason(t *testing.T) {
	svc := newDocumentService(&mockDocStore{docs: []domain.Document{{ID: "doc-1"}}}, newMockFileStorage(), &mockCompressor{})

	_, err := svc.UpdateStatus(context.Background(), "doc-1", &domain.StatusUpdate{Status: "REJECTED"})
	var validation *domain.ErrValidation
	if !errors.As(err, &validation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	doc, err := svc.UpdateStatus(context.Background(), "doc-1", &domain.StatusUpdate{
		Status:          "REJECTED",
		RejectionReason: "página ilegível",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if doc.Status != domain.StatusRejected {
		t.Errorf("status should be normalized lowercase, got %s", doc.Status)
	}
	if doc.RejectionReason != "página ilegível" {
		t.Errorf("rejection reason not stored, got %q", doc.RejectionReason)
	}
}

func TestUpdateStatus_UnknownStatusRejected(t *testing.T) {
	svc := newDocumentService(&mockDocStore{docs: []domain.Document{{ID: "doc-1"}}}, newMockFileStorage(), &mockCompressor{})

	_, err := svc.UpdateStatus(context.Background(), "doc-1", &domain.StatusUpdate{Status: "exploded"})
	var validation *domain.ErrValidation
	if !errors.As(err, &validation) {
		t.Fatalf("expected ErrValidation for unknown status, got %v", err)
	}
}

func TestDelete_OnlyRejectedDocuments(t *testing.T) {
	store := &mockDocStore{docs: []domain.Document{
		{ID: "doc-approved", Status: domain.StatusApproved, StorageKey: "k1"},
		{ID: "doc-rejected", Status: domain.StatusRejected, StorageKey: "k2"},
	}}
	files := newMockFileStorage()
	svc := newDocumentService(store, files, &mockCompressor{})

	err := svc.Delete(context.Background(), "doc-approved")
	var conflict *domain.ErrConflict
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	if err := svc.Delete(context.Background(), "doc-rejected"); err != nil {
		t.Fatalf("rejected document should be deletable, got %v", err)
	}
	if len(files.deleted) != 1 || files.deleted[0] != "k2" {
		t.Errorf("stored object of deleted document should be removed, got %v", files.deleted)
	}
}

// --- Quote request tests ---

func TestRequestApostilleQuote_Idempotent(t *testing.T) {
	store := &mockDocStore{docs: []domain.Document{{
		ID:     "doc-1",
		Status: domain.StatusApproved,
	}}}
	svc := newDocumentService(store, newMockFileStorage(), &mockCompressor{})

	doc, err := svc.RequestApostilleQuote(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if doc.Status != domain.StatusWaitingApostilleQuote {
		t.Errorf("expected waiting_apostille_quote, got %s", doc.Status)
	}
	if store.updateCalls != 1 {
		t.Fatalf("expected 1 update, got %d", store.updateCalls)
	}

	// Re-issuing is a no-op, not an error and not a second write.
	doc, err = svc.RequestApostilleQuote(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("second request should succeed, got %v", err)
	}
	if doc.Status != domain.StatusWaitingApostilleQuote {
		t.Errorf("expected waiting_apostille_quote, got %s", doc.Status)
	}
	if store.updateCalls != 1 {
		t.Errorf("second request must not write, got %d updates", store.updateCalls)
	}
}

func TestRequestTranslationQuote(t *testing.T) {
	store := &mockDocStore{docs: []domain.Document{{
		ID:           "doc-1",
		Status:       domain.StatusApproved,
		IsApostilled: true,
	}}}
	svc := newDocumentService(store, newMockFileStorage(), &mockCompressor{})

	doc, err := svc.RequestTranslationQuote(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if doc.Status != domain.StatusWaitingTranslationQuote {
		t.Errorf("expected waiting_translation_quote, got %s", doc.Status)
	}
}

// --- Catalog cache test ---

func TestRequiredDocuments_Cached(t *testing.T) {
	store := &mockDocStore{required: []domain.RequiredDocument{
		{Type: "passport", Name: "Passaporte", Required: true},
	}}
	svc := newDocumentService(store, newMockFileStorage(), &mockCompressor{})

	first, err := svc.RequiredDocuments(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// Mutate the backing store; the cached copy must still be served.
	store.required = nil
	second, err := svc.RequiredDocuments(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(second) != len(first) {
		t.Errorf("expected cached catalog of %d entries, got %d", len(first), len(second))
	}
}
