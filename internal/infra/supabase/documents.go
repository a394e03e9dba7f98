package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/techmigra/imigra-bfa-go/internal/domain"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// flexBool absorbs the backend's inconsistent encoding of
// solicitado_pelo_juridico: true, 1 and "true" are all true. Normalizing
// here keeps the three-way check out of every consumer.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	switch strings.TrimSpace(string(data)) {
	case "true", "1", `"true"`, `"1"`:
		*b = true
	default:
		*b = false
	}
	return nil
}

// documentRow maps the documentos table columns.
type documentRow struct {
	ID                     string   `json:"id"`
	ClientID               string   `json:"cliente_id"`
	MemberID               string   `json:"member_id"`
	DocumentType           string   `json:"document_type"`
	Status                 string   `json:"status"`
	IsApostilled           bool     `json:"is_apostilled"`
	IsTranslated           bool     `json:"is_translated"`
	SolicitadoPeloJuridico flexBool `json:"solicitado_pelo_juridico"`
	RequerimentoID         string   `json:"requerimento_id"`
	ProcessoID             string   `json:"processo_id"`
	RejectionReason        string   `json:"rejection_reason"`
	FileName               string   `json:"file_name"`
	FileSize               int64    `json:"file_size"`
	StorageKey             string   `json:"storage_key"`
	UploadDate             string   `json:"upload_date"`
}

func (r documentRow) toDomain() domain.Document {
	d := domain.Document{
		ID:                     r.ID,
		ClientID:               r.ClientID,
		MemberID:               r.MemberID,
		Type:                   r.DocumentType,
		Status:                 r.Status,
		IsApostilled:           r.IsApostilled,
		IsTranslated:           r.IsTranslated,
		SolicitadoPeloJuridico: bool(r.SolicitadoPeloJuridico),
		RequerimentoID:         r.RequerimentoID,
		ProcessoID:             r.ProcessoID,
		RejectionReason:        r.RejectionReason,
		FileName:               r.FileName,
		FileSize:               r.FileSize,
		StorageKey:             r.StorageKey,
	}
	if t, err := time.Parse(time.RFC3339, r.UploadDate); err == nil {
		d.UploadDate = &t
	}
	return d
}

// ListDocuments fetches every document of a client.
func (c *Client) ListDocuments(ctx context.Context, clientID string) ([]domain.Document, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListDocuments")
	defer span.End()
	span.SetAttributes(attribute.String("client.id", clientID))

	path := fmt.Sprintf("documentos?cliente_id=eq.%s&order=upload_date.desc", url.QueryEscape(clientID))
	return c.fetchDocuments(ctx, path)
}

// ListMemberDocuments fetches the documents of one family member.
func (c *Client) ListMemberDocuments(ctx context.Context, clientID, memberID string) ([]domain.Document, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListMemberDocuments")
	defer span.End()
	span.SetAttributes(
		attribute.String("client.id", clientID),
		attribute.String("member.id", memberID),
	)

	path := fmt.Sprintf("documentos?cliente_id=eq.%s&member_id=eq.%s",
		url.QueryEscape(clientID), url.QueryEscape(memberID))
	return c.fetchDocuments(ctx, path)
}

func (c *Client) fetchDocuments(ctx context.Context, path string) ([]domain.Document, error) {
	var docs []domain.Document

	err := c.execute(ctx, func() error {
		body, err := c.doGet(ctx, path)
		if err != nil {
			return err
		}
		if body == nil || string(body) == "[]" {
			docs = []domain.Document{}
			return nil
		}

		var rows []documentRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode documents: %w", err)
		}

		docs = make([]domain.Document, 0, len(rows))
		for _, r := range rows {
			docs = append(docs, r.toDomain())
		}
		return nil
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/documentos", Err: err}
	}

	return docs, nil
}

// GetDocument fetches one document by id.
func (c *Client) GetDocument(ctx context.Context, documentID string) (*domain.Document, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetDocument")
	defer span.End()
	span.SetAttributes(attribute.String("document.id", documentID))

	var doc *domain.Document

	err := c.execute(ctx, func() error {
		path := fmt.Sprintf("documentos?id=eq.%s&limit=1", url.QueryEscape(documentID))
		body, err := c.doGet(ctx, path)
		if err != nil {
			return err
		}
		if body == nil || string(body) == "[]" {
			return &domain.ErrNotFound{Resource: "documento", ID: documentID}
		}

		var rows []documentRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode document: %w", err)
		}
		if len(rows) == 0 {
			return &domain.ErrNotFound{Resource: "documento", ID: documentID}
		}

		d := rows[0].toDomain()
		doc = &d
		return nil
	})
	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			return nil, notFound
		}
		return nil, &domain.ErrExternalService{Service: "supabase/documentos", Err: err}
	}

	return doc, nil
}

// CreateDocument inserts a document row and returns the stored record.
func (c *Client) CreateDocument(ctx context.Context, doc *domain.Document) (*domain.Document, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateDocument")
	defer span.End()

	id := doc.ID
	if id == "" {
		id = uuid.New().String()
	}

	data := map[string]any{
		"id":                       id,
		"cliente_id":               doc.ClientID,
		"member_id":                doc.MemberID,
		"document_type":            doc.Type,
		"status":                   doc.Status,
		"is_apostilled":            doc.IsApostilled,
		"is_translated":            doc.IsTranslated,
		"solicitado_pelo_juridico": doc.SolicitadoPeloJuridico,
		"file_name":                doc.FileName,
		"file_size":                doc.FileSize,
		"storage_key":              doc.StorageKey,
		"upload_date":              time.Now().UTC().Format(time.RFC3339),
	}
	if doc.RequerimentoID != "" {
		data["requerimento_id"] = doc.RequerimentoID
	}
	if doc.ProcessoID != "" {
		data["processo_id"] = doc.ProcessoID
	}

	var created *domain.Document
	err := c.execute(ctx, func() error {
		body, err := c.doPost(ctx, "documentos", data)
		if err != nil {
			return err
		}
		var rows []documentRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode created document: %w", err)
		}
		if len(rows) == 0 {
			return fmt.Errorf("empty representation after insert")
		}
		d := rows[0].toDomain()
		created = &d
		return nil
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/documentos", Err: err}
	}

	return created, nil
}

// UpdateDocument patches a document row and returns the stored record.
func (c *Client) UpdateDocument(ctx context.Context, documentID string, updates map[string]any) (*domain.Document, error) {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateDocument")
	defer span.End()
	span.SetAttributes(attribute.String("document.id", documentID))

	var updated *domain.Document
	err := c.execute(ctx, func() error {
		path := fmt.Sprintf("documentos?id=eq.%s", url.QueryEscape(documentID))
		body, err := c.doPatch(ctx, path, updates)
		if err != nil {
			return err
		}
		var rows []documentRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode updated document: %w", err)
		}
		if len(rows) == 0 {
			return &domain.ErrNotFound{Resource: "documento", ID: documentID}
		}
		d := rows[0].toDomain()
		updated = &d
		return nil
	})
	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			return nil, notFound
		}
		return nil, &domain.ErrExternalService{Service: "supabase/documentos", Err: err}
	}

	return updated, nil
}

// DeleteDocument removes a document row.
func (c *Client) DeleteDocument(ctx context.Context, documentID string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteDocument")
	defer span.End()
	span.SetAttributes(attribute.String("document.id", documentID))

	err := c.execute(ctx, func() error {
		path := fmt.Sprintf("documentos?id=eq.%s", url.QueryEscape(documentID))
		return c.doDelete(ctx, path)
	})
	if err != nil {
		return &domain.ErrExternalService{Service: "supabase/documentos", Err: err}
	}
	return nil
}

// requiredDocumentRow maps the documentos_obrigatorios catalog table.
type requiredDocumentRow struct {
	DocumentType string `json:"document_type"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Required     bool   `json:"required"`
}

// ListRequiredDocuments fetches the required-document catalog.
func (c *Client) ListRequiredDocuments(ctx context.Context) ([]domain.RequiredDocument, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListRequiredDocuments")
	defer span.End()

	var catalog []domain.RequiredDocument
	err := c.execute(ctx, func() error {
		body, err := c.doGet(ctx, "documentos_obrigatorios?order=name.asc")
		if err != nil {
			return err
		}
		if body == nil || string(body) == "[]" {
			catalog = []domain.RequiredDocument{}
			return nil
		}

		var rows []requiredDocumentRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode required documents: %w", err)
		}

		catalog = make([]domain.RequiredDocument, 0, len(rows))
		for _, r := range rows {
			catalog = append(catalog, domain.RequiredDocument{
				Type:        r.DocumentType,
				Name:        r.Name,
				Description: r.Description,
				Required:    r.Required,
			})
		}
		return nil
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/documentos_obrigatorios", Err: err}
	}

	return catalog, nil
}

