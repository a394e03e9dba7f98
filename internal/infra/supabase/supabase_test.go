package supabase_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/techmigra/imigra-bfa-go/internal/domain"
	"github.com/techmigra/imigra-bfa-go/internal/infra/resilience"
	"github.com/techmigra/imigra-bfa-go/internal/infra/supabase"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// captureBackend records insert payloads and echoes them back the way
// PostgREST does with Prefer: return=representation.
type captureBackend struct {
	mu     sync.Mutex
	bodies []map[string]any
}

func (b *captureBackend) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte("[]"))
			return
		}
		var row map[string]any
		if err := json.NewDecoder(r.Body).Decode(&row); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		b.mu.Lock()
		b.bodies = append(b.bodies, row)
		b.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode([]map[string]any{row})
	})
}

func (b *captureBackend) lastBody(t *testing.T) map[string]any {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.bodies) == 0 {
		t.Fatal("backend captured no insert")
	}
	return b.bodies[len(b.bodies)-1]
}

func newTestClient(backendURL, breakerName string) *supabase.Client {
	return supabase.NewClient(
		&http.Client{Timeout: 5 * time.Second},
		backendURL,
		"anon",
		"service",
		resilience.NewCircuitBreaker(breakerName),
		resilience.Config{MaxRetries: 0, InitialBackoff: time.Millisecond},
		zap.NewNop(),
	)
}

func assertGeneratedID(t *testing.T, body map[string]any) {
	t.Helper()
	id, _ := body["id"].(string)
	if id == "" {
		t.Fatal("insert payload carries an empty id")
	}
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("insert id %q is not a uuid: %v", id, err)
	}
}

func TestCreateDocument_GeneratesID(t *testing.T) {
	backend := &captureBackend{}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	client := newTestClient(srv.URL, "doc-id")

	created, err := client.CreateDocument(context.Background(), &domain.Document{
		ClientID: "cli-1",
		MemberID: "mem-1",
		Type:     "passaporte",
		Status:   "analyzing",
		FileName: "passaporte.pdf",
	})
	if err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}

	assertGeneratedID(t, backend.lastBody(t))
	if created.ID == "" {
		t.Error("returned document has no id")
	}
}

func TestCreateDocument_KeepsProvidedID(t *testing.T) {
	backend := &captureBackend{}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	client := newTestClient(srv.URL, "doc-id-keep")

	want := uuid.New().String()
	_, err := client.CreateDocument(context.Background(), &domain.Document{
		ID:       want,
		ClientID: "cli-1",
		MemberID: "mem-1",
		Type:     "rne",
		Status:   "analyzing",
	})
	if err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}

	if got, _ := backend.lastBody(t)["id"].(string); got != want {
		t.Errorf("insert id = %q, want the caller's %q", got, want)
	}
}

func TestCreateRequerimento_GeneratesID(t *testing.T) {
	backend := &captureBackend{}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	client := newTestClient(srv.URL, "req-id")

	_, err := client.CreateRequerimento(context.Background(), &domain.Requerimento{
		ClientID: "cli-1",
		Tipo:     "visto_residencia",
		Status:   "pendente",
	})
	if err != nil {
		t.Fatalf("CreateRequerimento: %v", err)
	}

	assertGeneratedID(t, backend.lastBody(t))
}

func TestCreateRequerimentoDoc_GeneratesID(t *testing.T) {
	backend := &captureBackend{}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	client := newTestClient(srv.URL, "reqdoc-id")

	_, err := client.CreateRequerimentoDoc(context.Background(), &domain.RequerimentoDoc{
		RequerimentoID: uuid.New().String(),
		Type:           "procuracao",
		Status:         "PENDING",
	})
	if err != nil {
		t.Fatalf("CreateRequerimentoDoc: %v", err)
	}

	assertGeneratedID(t, backend.lastBody(t))
}

func TestOpenBreakerSurfacesCircuitOpen(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, "breaker-open")

	// Trip the breaker: it opens at >=5 requests with a 60% failure ratio.
	var lastErr error
	for i := 0; i < 10; i++ {
		_, lastErr = client.ListDocuments(context.Background(), "cli-1")
	}
	if lastErr == nil {
		t.Fatal("expected errors from a failing backend")
	}

	var circuitOpen *domain.ErrCircuitOpen
	if !errors.As(lastErr, &circuitOpen) {
		t.Fatalf("expected ErrCircuitOpen once the breaker is open, got %v", lastErr)
	}
}
