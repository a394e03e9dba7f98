package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/techmigra/imigra-bfa-go/internal/domain"
	"github.com/techmigra/imigra-bfa-go/internal/infra/cache"
	"github.com/techmigra/imigra-bfa-go/internal/infra/observability"
	"github.com/techmigra/imigra-bfa-go/internal/infra/resilience"
	"github.com/techmigra/imigra-bfa-go/internal/service"
	"github.com/techmigra/imigra-bfa-go/internal/stage"

	"go.uber.org/zap"
)

// --- Mocks ---

type mockClientStore struct {
	clients []domain.Client
	members []domain.FamilyMember
	err     error
}

func (m *mockClientStore) ListClients(_ context.Context) ([]domain.Client, error) {
	return m.clients, m.err
}

func (m *mockClientStore) GetClient(_ context.Context, clientID string) (*domain.Client, error) {
	if m.err != nil {
		return nil, m.err
	}
	for i := range m.clients {
		if m.clients[i].ID == clientID {
			return &m.clients[i], nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "client", ID: clientID}
}

func (m *mockClientStore) CreateClient(_ context.Context, req *domain.CreateClientRequest) (*domain.Client, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Client{ID: "client-new", Name: req.Name, Email: req.Email, Status: "active"}, nil
}

func (m *mockClientStore) UpdateClient(_ context.Context, clientID string, _ map[string]any) (*domain.Client, error) {
	return m.GetClient(nil, clientID)
}

func (m *mockClientStore) DeleteClient(_ context.Context, _ string) error {
	return m.err
}

func (m *mockClientStore) ListFamilyMembers(_ context.Context, _ string) ([]domain.FamilyMember, error) {
	return m.members, m.err
}

type mockProcessoStore struct {
	processos []domain.Processo
}

func (m *mockProcessoStore) ListProcessos(_ context.Context) ([]domain.Processo, error) {
	return m.processos, nil
}

func (m *mockProcessoStore) ListClientProcessos(_ context.Context, _ string) ([]domain.Processo, error) {
	return m.processos, nil
}

func (m *mockProcessoStore) AssignResponsible(_ context.Context, processoID, responsibleID string) (*domain.Processo, error) {
	for i := range m.processos {
		if m.processos[i].ID == processoID {
			m.processos[i].ResponsibleID = responsibleID
			return &m.processos[i], nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "processo", ID: processoID}
}

type mockNotifStore struct {
	notifs []domain.Notification
	read   []string
}

func (m *mockNotifStore) ListNotifications(_ context.Context, _ string, unreadOnly bool) ([]domain.Notification, error) {
	if !unreadOnly {
		return m.notifs, nil
	}
	out := []domain.Notification{}
	for _, n := range m.notifs {
		if !n.Read {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *mockNotifStore) MarkNotificationRead(_ context.Context, notificationID string) error {
	m.read = append(m.read, notificationID)
	return nil
}

func newPortalService(clients *mockClientStore, forms *mockFormStore, files *mockFileStorage) *service.PortalService {
	return service.NewPortalService(
		clients,
		forms,
		&mockProcessoStore{},
		&mockNotifStore{},
		files,
		&mockCompressor{},
		observability.NewMetrics(),
		zap.NewNop(),
	)
}

// --- Tests ---

func TestGetClientOverview(t *testing.T) {
	clients := &mockClientStore{
		clients: []domain.Client{{ID: "client-1", Name: "Família Rossi", Status: "active"}},
		members: []domain.FamilyMember{
			{ID: "m-1", ClientID: "client-1", Name: "Marco", Type: "titular", IsTitular: true},
			{ID: "m-2", ClientID: "client-1", Name: "Giulia", Type: "conjuge"},
		},
	}
	svc := newPortalService(clients, &mockFormStore{}, newMockFileStorage())

	overview, err := svc.GetClientOverview(context.Background(), "client-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if overview.Client.Name != "Família Rossi" {
		t.Errorf("unexpected client: %+v", overview.Client)
	}
	if len(overview.Members) != 2 {
		t.Errorf("expected 2 members, got %d", len(overview.Members))
	}
}

func TestGetClientOverview_PropagatesStoreError(t *testing.T) {
	clients := &mockClientStore{err: errors.New("connection refused")}
	svc := newPortalService(clients, &mockFormStore{}, newMockFileStorage())

	if _, err := svc.GetClientOverview(context.Background(), "client-1"); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestCreateClient_Validation(t *testing.T) {
	svc := newPortalService(&mockClientStore{}, &mockFormStore{}, newMockFileStorage())

	_, err := svc.CreateClient(context.Background(), &domain.CreateClientRequest{Email: "a@b.com"})
	var validation *domain.ErrValidation
	if !errors.As(err, &validation) {
		t.Fatalf("expected ErrValidation for missing name, got %v", err)
	}

	_, err = svc.CreateClient(context.Background(), &domain.CreateClientRequest{Name: "X", Email: "not-an-email"})
	if !errors.As(err, &validation) {
		t.Fatalf("expected ErrValidation for bad email, got %v", err)
	}

	client, err := svc.CreateClient(context.Background(), &domain.CreateClientRequest{Name: "X", Email: "x@y.com"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if client.ID == "" {
		t.Error("created client should carry an id")
	}
}

func TestSubmitFormularioResponse_PDFGate(t *testing.T) {
	forms := &mockFormStore{forms: []domain.Formulario{{
		ID:       "form-1",
		ClientID: "client-1",
		Status:   "pending",
	}}}
	files := newMockFileStorage()
	svc := newPortalService(&mockClientStore{}, forms, files)

	_, err := svc.SubmitFormularioResponse(context.Background(), "form-1", "respostas.xlsx", []byte("x"))
	var invalidType *domain.ErrInvalidFileType
	if !errors.As(err, &invalidType) {
		t.Fatalf("expected ErrInvalidFileType, got %v", err)
	}
	if len(files.uploads) != 0 {
		t.Error("nothing should be stored for a rejected response file")
	}

	if _, err := svc.SubmitFormularioResponse(context.Background(), "form-1", "respostas.pdf", []byte("%PDF-1.4 resp")); err != nil {
		t.Fatalf("pdf response should be accepted, got %v", err)
	}
	if len(files.uploads) != 1 {
		t.Errorf("expected 1 stored response, got %d", len(files.uploads))
	}
}

// --- MemberStages assembly ---

func TestMemberStages_VisibilityAndCounts(t *testing.T) {
	store := &mockDocStore{
		docs: []domain.Document{
			// Hidden from the client view: approved but legal never asked.
			{ID: "d1", Type: "rg", Status: domain.StatusApproved},
			// Visible flow-stage document.
			{ID: "d2", Type: "cpf", Status: domain.StatusWaitingApostille, SolicitadoPeloJuridico: true},
			{ID: "d3", Type: "foto", Status: domain.StatusAnalyzing},
		},
		required: []domain.RequiredDocument{
			{Type: "rg", Name: "RG", Required: true},
			{Type: "passport", Name: "Passaporte", Required: true},
		},
	}
	formStore := &mockFormStore{forms: []domain.Formulario{
		{ID: "f1", Status: "pending"},
		{ID: "f2", Status: "answered"},
	}}
	reqStore := &mockReqStore{reqs: []domain.Requerimento{
		{ID: "r1", Status: domain.RequerimentoPendente},
		{ID: "r2", Status: domain.RequerimentoConcluido},
	}}

	svc := service.NewDocumentService(
		store,
		reqStore,
		formStore,
		newMockFileStorage(),
		&mockCompressor{},
		cache.New[[]domain.RequiredDocument](time.Minute),
		resilience.NewBulkhead(4),
		10<<20,
		observability.NewMetrics(),
		zap.NewNop(),
	)

	clientView, err := svc.MemberStages(context.Background(), "client-1", "member-1", false)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if n := len(clientView.Stages[stage.StageApostille]); n != 1 {
		t.Errorf("client apostille tab should hide non-solicited docs, got %d", n)
	}
	if clientView.Counts.Forms != 1 {
		t.Errorf("expected 1 pending form, got %d", clientView.Counts.Forms)
	}
	if clientView.Counts.Requirements != 1 {
		t.Errorf("concluded requerimentos should not count, got %d", clientView.Counts.Requirements)
	}

	staffView, err := svc.MemberStages(context.Background(), "client-1", "member-1", true)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if n := len(staffView.Stages[stage.StageApostille]); n != 2 {
		t.Errorf("staff view bypasses the visibility gate, got %d apostille docs", n)
	}
}
