package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/techmigra/imigra-bfa-go/internal/domain"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// requerimentoRow maps the requerimentos table columns.
type requerimentoRow struct {
	ID          string `json:"id"`
	ClientID    string `json:"cliente_id"`
	Tipo        string `json:"tipo"`
	Status      string `json:"status"`
	Observacoes string `json:"observacoes"`
	CreatedAt   string `json:"created_at"`
}

func (r requerimentoRow) toDomain() domain.Requerimento {
	req := domain.Requerimento{
		ID:          r.ID,
		ClientID:    r.ClientID,
		Tipo:        r.Tipo,
		Status:      r.Status,
		Observacoes: r.Observacoes,
		Documentos:  []domain.RequerimentoDoc{},
	}
	if t, err := time.Parse(time.RFC3339, r.CreatedAt); err == nil {
		req.CreatedAt = t
	}
	return req
}

// requerimentoDocRow maps the requerimento_documentos table columns.
type requerimentoDocRow struct {
	ID             string `json:"id"`
	RequerimentoID string `json:"requerimento_id"`
	DocumentType   string `json:"document_type"`
	Name           string `json:"name"`
	Status         string `json:"status"`
	StorageKey     string `json:"storage_key"`
}

func (r requerimentoDocRow) toDomain() domain.RequerimentoDoc {
	return domain.RequerimentoDoc{
		ID:             r.ID,
		RequerimentoID: r.RequerimentoID,
		Type:           r.DocumentType,
		Name:           r.Name,
		Status:         r.Status,
		StorageKey:     r.StorageKey,
	}
}

// ListRequerimentos fetches a client's requerimentos with their coupled
// document requests.
func (c *Client) ListRequerimentos(ctx context.Context, clientID string) ([]domain.Requerimento, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListRequerimentos")
	defer span.End()
	span.SetAttributes(attribute.String("client.id", clientID))

	var reqs []domain.Requerimento
	err := c.execute(ctx, func() error {
		path := fmt.Sprintf("requerimentos?cliente_id=eq.%s&order=created_at.desc", url.QueryEscape(clientID))
		body, err := c.doGet(ctx, path)
		if err != nil {
			return err
		}
		if body == nil || string(body) == "[]" {
			reqs = []domain.Requerimento{}
			return nil
		}

		var rows []requerimentoRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode requerimentos: %w", err)
		}

		reqs = make([]domain.Requerimento, 0, len(rows))
		for _, r := range rows {
			req := r.toDomain()
			docs, err := c.fetchRequerimentoDocs(ctx, req.ID)
			if err != nil {
				return err
			}
			req.Documentos = docs
			reqs = append(reqs, req)
		}
		return nil
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/requerimentos", Err: err}
	}

	return reqs, nil
}

// GetRequerimento fetches one requerimento with its coupled documents.
func (c *Client) GetRequerimento(ctx context.Context, requerimentoID string) (*domain.Requerimento, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetRequerimento")
	defer span.End()
	span.SetAttributes(attribute.String("requerimento.id", requerimentoID))

	var req *domain.Requerimento
	err := c.execute(ctx, func() error {
		path := fmt.Sprintf("requerimentos?id=eq.%s&limit=1", url.QueryEscape(requerimentoID))
		body, err := c.doGet(ctx, path)
		if err != nil {
			return err
		}
		if body == nil || string(body) == "[]" {
			return &domain.ErrNotFound{Resource: "requerimento", ID: requerimentoID}
		}

		var rows []requerimentoRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode requerimento: %w", err)
		}
		if len(rows) == 0 {
			return &domain.ErrNotFound{Resource: "requerimento", ID: requerimentoID}
		}

		r := rows[0].toDomain()
		docs, err := c.fetchRequerimentoDocs(ctx, r.ID)
		if err != nil {
			return err
		}
		r.Documentos = docs
		req = &r
		return nil
	})
	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			return nil, notFound
		}
		return nil, &domain.ErrExternalService{Service: "supabase/requerimentos", Err: err}
	}

	return req, nil
}

func (c *Client) fetchRequerimentoDocs(ctx context.Context, requerimentoID string) ([]domain.RequerimentoDoc, error) {
	path := fmt.Sprintf("requerimento_documentos?requerimento_id=eq.%s", url.QueryEscape(requerimentoID))
	body, err := c.doGet(ctx, path)
	if err != nil {
		return nil, err
	}
	if body == nil || string(body) == "[]" {
		return []domain.RequerimentoDoc{}, nil
	}

	var rows []requerimentoDocRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode requerimento documents: %w", err)
	}

	docs := make([]domain.RequerimentoDoc, 0, len(rows))
	for _, r := range rows {
		docs = append(docs, r.toDomain())
	}
	return docs, nil
}

// CreateRequerimento inserts the requerimento row only; coupled documents
// are inserted one by one by the service, which owns the all-or-nothing
// semantics.
func (c *Client) CreateRequerimento(ctx context.Context, req *domain.Requerimento) (*domain.Requerimento, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateRequerimento")
	defer span.End()

	id := req.ID
	if id == "" {
		id = uuid.New().String()
	}

	data := map[string]any{
		"id":          id,
		"cliente_id":  req.ClientID,
		"tipo":        req.Tipo,
		"status":      req.Status,
		"observacoes": req.Observacoes,
		"created_at":  time.Now().UTC().Format(time.RFC3339),
	}

	var created *domain.Requerimento
	err := c.execute(ctx, func() error {
		body, err := c.doPost(ctx, "requerimentos", data)
		if err != nil {
			return err
		}
		var rows []requerimentoRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode created requerimento: %w", err)
		}
		if len(rows) == 0 {
			return fmt.Errorf("empty representation after insert")
		}
		r := rows[0].toDomain()
		created = &r
		return nil
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/requerimentos", Err: err}
	}

	return created, nil
}

// CreateRequerimentoDoc inserts one coupled document request.
func (c *Client) CreateRequerimentoDoc(ctx context.Context, doc *domain.RequerimentoDoc) (*domain.RequerimentoDoc, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateRequerimentoDoc")
	defer span.End()

	id := doc.ID
	if id == "" {
		id = uuid.New().String()
	}

	data := map[string]any{
		"id":              id,
		"requerimento_id": doc.RequerimentoID,
		"document_type":   doc.Type,
		"name":            doc.Name,
		"status":          doc.Status,
		"storage_key":     doc.StorageKey,
	}

	var created *domain.RequerimentoDoc
	err := c.execute(ctx, func() error {
		body, err := c.doPost(ctx, "requerimento_documentos", data)
		if err != nil {
			return err
		}
		var rows []requerimentoDocRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode created requerimento document: %w", err)
		}
		if len(rows) == 0 {
			return fmt.Errorf("empty representation after insert")
		}
		d := rows[0].toDomain()
		created = &d
		return nil
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/requerimento_documentos", Err: err}
	}

	return created, nil
}

// UpdateRequerimentoStatus patches a requerimento and returns the stored
// record (with coupled documents).
func (c *Client) UpdateRequerimentoStatus(ctx context.Context, requerimentoID string, updates map[string]any) (*domain.Requerimento, error) {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateRequerimentoStatus")
	defer span.End()
	span.SetAttributes(attribute.String("requerimento.id", requerimentoID))

	err := c.execute(ctx, func() error {
		path := fmt.Sprintf("requerimentos?id=eq.%s", url.QueryEscape(requerimentoID))
		body, err := c.doPatch(ctx, path, updates)
		if err != nil {
			return err
		}
		var rows []requerimentoRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode updated requerimento: %w", err)
		}
		if len(rows) == 0 {
			return &domain.ErrNotFound{Resource: "requerimento", ID: requerimentoID}
		}
		return nil
	})
	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			return nil, notFound
		}
		return nil, &domain.ErrExternalService{Service: "supabase/requerimentos", Err: err}
	}

	return c.GetRequerimento(ctx, requerimentoID)
}

// DeleteRequerimento removes a requerimento row; used for best-effort
// cleanup when a coupled insert fails mid-way.
func (c *Client) DeleteRequerimento(ctx context.Context, requerimentoID string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteRequerimento")
	defer span.End()

	err := c.execute(ctx, func() error {
		path := fmt.Sprintf("requerimentos?id=eq.%s", url.QueryEscape(requerimentoID))
		return c.doDelete(ctx, path)
	})
	if err != nil {
		return &domain.ErrExternalService{Service: "supabase/requerimentos", Err: err}
	}
	return nil
}
