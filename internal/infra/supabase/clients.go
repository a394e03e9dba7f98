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

// clientRow maps the clientes table columns.
type clientRow struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Document  string `json:"document"`
	Phone     string `json:"phone"`
	Country   string `json:"country"`
	VisaType  string `json:"visa_type"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

func (r clientRow) toDomain() domain.Client {
	c := domain.Client{
		ID:       r.ID,
		Name:     r.Name,
		Email:    r.Email,
		Document: r.Document,
		Phone:    r.Phone,
		Country:  r.Country,
		VisaType: r.VisaType,
		Status:   r.Status,
	}
	if t, err := time.Parse(time.RFC3339, r.CreatedAt); err == nil {
		c.CreatedAt = t
	}
	return c
}

// ListClients fetches all clients (commercial module list view).
func (c *Client) ListClients(ctx context.Context) ([]domain.Client, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListClients")
	defer span.End()

	var clients []domain.Client
	err := c.execute(ctx, func() error {
		body, err := c.doGet(ctx, "clientes?order=created_at.desc")
		if err != nil {
			return err
		}
		if body == nil || string(body) == "[]" {
			clients = []domain.Client{}
			return nil
		}

		var rows []clientRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode clients: %w", err)
		}

		clients = make([]domain.Client, 0, len(rows))
		for _, r := range rows {
			clients = append(clients, r.toDomain())
		}
		return nil
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/clientes", Err: err}
	}

	return clients, nil
}

// GetClient fetches one client by id.
func (c *Client) GetClient(ctx context.Context, clientID string) (*domain.Client, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetClient")
	defer span.End()
	span.SetAttributes(attribute.String("client.id", clientID))

	var client *domain.Client
	err := c.execute(ctx, func() error {
		path := fmt.Sprintf("clientes?id=eq.%s&limit=1", url.QueryEscape(clientID))
		body, err := c.doGet(ctx, path)
		if err != nil {
			return err
		}
		if body == nil || string(body) == "[]" {
			return &domain.ErrNotFound{Resource: "cliente", ID: clientID}
		}

		var rows []clientRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode client: %w", err)
		}
		if len(rows) == 0 {
			return &domain.ErrNotFound{Resource: "cliente", ID: clientID}
		}

		cl := rows[0].toDomain()
		client = &cl
		return nil
	})
	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			return nil, notFound
		}
		return nil, &domain.ErrExternalService{Service: "supabase/clientes", Err: err}
	}

	return client, nil
}

// CreateClient inserts a client row from the commercial intake payload.
func (c *Client) CreateClient(ctx context.Context, req *domain.CreateClientRequest) (*domain.Client, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateClient")
	defer span.End()

	data := map[string]any{
		"id":         uuid.New().String(),
		"name":       req.Name,
		"email":      req.Email,
		"document":   req.Document,
		"phone":      req.Phone,
		"country":    req.Country,
		"visa_type":  req.VisaType,
		"status":     "active",
		"created_at": time.Now().UTC().Format(time.RFC3339),
	}

	var created *domain.Client
	err := c.execute(ctx, func() error {
		body, err := c.doPost(ctx, "clientes", data)
		if err != nil {
			return err
		}
		var rows []clientRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode created client: %w", err)
		}
		if len(rows) == 0 {
			return fmt.Errorf("empty representation after insert")
		}
		cl := rows[0].toDomain()
		created = &cl
		return nil
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/clientes", Err: err}
	}

	return created, nil
}

// UpdateClient patches a client row.
func (c *Client) UpdateClient(ctx context.Context, clientID string, updates map[string]any) (*domain.Client, error) {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateClient")
	defer span.End()
	span.SetAttributes(attribute.String("client.id", clientID))

	var updated *domain.Client
	err := c.execute(ctx, func() error {
		path := fmt.Sprintf("clientes?id=eq.%s", url.QueryEscape(clientID))
		body, err := c.doPatch(ctx, path, updates)
		if err != nil {
			return err
		}
		var rows []clientRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode updated client: %w", err)
		}
		if len(rows) == 0 {
			return &domain.ErrNotFound{Resource: "cliente", ID: clientID}
		}
		cl := rows[0].toDomain()
		updated = &cl
		return nil
	})
	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			return nil, notFound
		}
		return nil, &domain.ErrExternalService{Service: "supabase/clientes", Err: err}
	}

	return updated, nil
}

// DeleteClient removes a client row.
func (c *Client) DeleteClient(ctx context.Context, clientID string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteClient")
	defer span.End()

	err := c.execute(ctx, func() error {
		path := fmt.Sprintf("clientes?id=eq.%s", url.QueryEscape(clientID))
		return c.doDelete(ctx, path)
	})
	if err != nil {
		return &domain.ErrExternalService{Service: "supabase/clientes", Err: err}
	}
	return nil
}

// familyMemberRow maps the family_members table columns.
type familyMemberRow struct {
	ID        string `json:"id"`
	ClientID  string `json:"cliente_id"`
	Name      string `json:"name"`
	Type      string `json:"member_type"`
	IsTitular bool   `json:"is_titular"`
}

// ListFamilyMembers fetches the family members of a client, titular first.
func (c *Client) ListFamilyMembers(ctx context.Context, clientID string) ([]domain.FamilyMember, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListFamilyMembers")
	defer span.End()
	span.SetAttributes(attribute.String("client.id", clientID))

	var members []domain.FamilyMember
	err := c.execute(ctx, func() error {
		path := fmt.Sprintf("family_members?cliente_id=eq.%s&order=is_titular.desc,name.asc", url.QueryEscape(clientID))
		body, err := c.doGet(ctx, path)
		if err != nil {
			return err
		}
		if body == nil || string(body) == "[]" {
			members = []domain.FamilyMember{}
			return nil
		}

		var rows []familyMemberRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode family members: %w", err)
		}

		members = make([]domain.FamilyMember, 0, len(rows))
		for _, r := range rows {
			members = append(members, domain.FamilyMember{
				ID:        r.ID,
				ClientID:  r.ClientID,
				Name:      r.Name,
				Type:      r.Type,
				IsTitular: r.IsTitular,
			})
		}
		return nil
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/family_members", Err: err}
	}

	return members, nil
}
