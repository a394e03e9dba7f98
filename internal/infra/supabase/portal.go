package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/techmigra/imigra-bfa-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// Formularios
// ============================================================

type formularioRow struct {
	ID          string `json:"id"`
	ClientID    string `json:"cliente_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      string `json:"status"`
	ResponseKey string `json:"response_key"`
	AnsweredAt  string `json:"answered_at"`
}

func (r formularioRow) toDomain() domain.Formulario {
	f := domain.Formulario{
		ID:          r.ID,
		ClientID:    r.ClientID,
		Name:        r.Name,
		Description: r.Description,
		Status:      r.Status,
		ResponseKey: r.ResponseKey,
	}
	if t, err := time.Parse(time.RFC3339, r.AnsweredAt); err == nil {
		f.AnsweredAt = &t
	}
	return f
}

// ListFormularios fetches a client's questionnaires.
func (c *Client) ListFormularios(ctx context.Context, clientID string) ([]domain.Formulario, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListFormularios")
	defer span.End()
	span.SetAttributes(attribute.String("client.id", clientID))

	var forms []domain.Formulario
	err := c.execute(ctx, func() error {
		path := fmt.Sprintf("formularios?cliente_id=eq.%s&order=name.asc", url.QueryEscape(clientID))
		body, err := c.doGet(ctx, path)
		if err != nil {
			return err
		}
		if body == nil || string(body) == "[]" {
			forms = []domain.Formulario{}
			return nil
		}

		var rows []formularioRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode formularios: %w", err)
		}

		forms = make([]domain.Formulario, 0, len(rows))
		for _, r := range rows {
			forms = append(forms, r.toDomain())
		}
		return nil
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/formularios", Err: err}
	}

	return forms, nil
}

// GetFormulario fetches one questionnaire by id.
func (c *Client) GetFormulario(ctx context.Context, formularioID string) (*domain.Formulario, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetFormulario")
	defer span.End()
	span.SetAttributes(attribute.String("formulario.id", formularioID))

	var form *domain.Formulario
	err := c.execute(ctx, func() error {
		path := fmt.Sprintf("formularios?id=eq.%s&limit=1", url.QueryEscape(formularioID))
		body, err := c.doGet(ctx, path)
		if err != nil {
			return err
		}
		if body == nil || string(body) == "[]" {
			return &domain.ErrNotFound{Resource: "formulario", ID: formularioID}
		}

		var rows []formularioRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode formulario: %w", err)
		}
		if len(rows) == 0 {
			return &domain.ErrNotFound{Resource: "formulario", ID: formularioID}
		}

		f := rows[0].toDomain()
		form = &f
		return nil
	})
	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			return nil, notFound
		}
		return nil, &domain.ErrExternalService{Service: "supabase/formularios", Err: err}
	}

	return form, nil
}

// UpdateFormulario patches a questionnaire row.
func (c *Client) UpdateFormulario(ctx context.Context, formularioID string, updates map[string]any) (*domain.Formulario, error) {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateFormulario")
	defer span.End()
	span.SetAttributes(attribute.String("formulario.id", formularioID))

	var updated *domain.Formulario
	err := c.execute(ctx, func() error {
		path := fmt.Sprintf("formularios?id=eq.%s", url.QueryEscape(formularioID))
		body, err := c.doPatch(ctx, path, updates)
		if err != nil {
			return err
		}
		var rows []formularioRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode updated formulario: %w", err)
		}
		if len(rows) == 0 {
			return &domain.ErrNotFound{Resource: "formulario", ID: formularioID}
		}
		f := rows[0].toDomain()
		updated = &f
		return nil
	})
	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			return nil, notFound
		}
		return nil, &domain.ErrExternalService{Service: "supabase/formularios", Err: err}
	}

	return updated, nil
}

// ============================================================
// Processos
// ============================================================

type processoRow struct {
	ID            string `json:"id"`
	ClientID      string `json:"cliente_id"`
	Numero        string `json:"numero"`
	Tipo          string `json:"tipo"`
	Status        string `json:"status"`
	ResponsibleID string `json:"responsible_id"`
	CreatedAt     string `json:"created_at"`
}

func (r processoRow) toDomain() domain.Processo {
	p := domain.Processo{
		ID:            r.ID,
		ClientID:      r.ClientID,
		Numero:        r.Numero,
		Tipo:          r.Tipo,
		Status:        r.Status,
		ResponsibleID: r.ResponsibleID,
	}
	if t, err := time.Parse(time.RFC3339, r.CreatedAt); err == nil {
		p.CreatedAt = t
	}
	return p
}

// ListProcessos fetches all legal cases (juridico module list view).
func (c *Client) ListProcessos(ctx context.Context) ([]domain.Processo, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListProcessos")
	defer span.End()

	return c.fetchProcessos(ctx, "processos?order=created_at.desc")
}

// ListClientProcessos fetches the legal cases of one client.
func (c *Client) ListClientProcessos(ctx context.Context, clientID string) ([]domain.Processo, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListClientProcessos")
	defer span.End()
	span.SetAttributes(attribute.String("client.id", clientID))

	path := fmt.Sprintf("processos?cliente_id=eq.%s&order=created_at.desc", url.QueryEscape(clientID))
	return c.fetchProcessos(ctx, path)
}

func (c *Client) fetchProcessos(ctx context.Context, path string) ([]domain.Processo, error) {
	var processos []domain.Processo
	err := c.execute(ctx, func() error {
		body, err := c.doGet(ctx, path)
		if err != nil {
			return err
		}
		if body == nil || string(body) == "[]" {
			processos = []domain.Processo{}
			return nil
		}

		var rows []processoRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode processos: %w", err)
		}

		processos = make([]domain.Processo, 0, len(rows))
		for _, r := range rows {
			processos = append(processos, r.toDomain())
		}
		return nil
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/processos", Err: err}
	}

	return processos, nil
}

// AssignResponsible sets the staff member responsible for a processo.
func (c *Client) AssignResponsible(ctx context.Context, processoID, responsibleID string) (*domain.Processo, error) {
	ctx, span := tracer.Start(ctx, "Supabase.AssignResponsible")
	defer span.End()
	span.SetAttributes(attribute.String("processo.id", processoID))

	var updated *domain.Processo
	err := c.execute(ctx, func() error {
		path := fmt.Sprintf("processos?id=eq.%s", url.QueryEscape(processoID))
		body, err := c.doPatch(ctx, path, map[string]any{"responsible_id": responsibleID})
		if err != nil {
			return err
		}
		var rows []processoRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode updated processo: %w", err)
		}
		if len(rows) == 0 {
			return &domain.ErrNotFound{Resource: "processo", ID: processoID}
		}
		p := rows[0].toDomain()
		updated = &p
		return nil
	})
	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			return nil, notFound
		}
		return nil, &domain.ErrExternalService{Service: "supabase/processos", Err: err}
	}

	return updated, nil
}

// ============================================================
// Notifications
// ============================================================

type notificationRow struct {
	ID        string `json:"id"`
	ClientID  string `json:"cliente_id"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Read      bool   `json:"read"`
	CreatedAt string `json:"created_at"`
}

// ListNotifications fetches a client's notifications, newest first.
func (c *Client) ListNotifications(ctx context.Context, clientID string, unreadOnly bool) ([]domain.Notification, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListNotifications")
	defer span.End()
	span.SetAttributes(attribute.String("client.id", clientID))

	path := fmt.Sprintf("notifications?cliente_id=eq.%s&order=created_at.desc", url.QueryEscape(clientID))
	if unreadOnly {
		path += "&read=eq.false"
	}

	var notifs []domain.Notification
	err := c.execute(ctx, func() error {
		body, err := c.doGet(ctx, path)
		if err != nil {
			return err
		}
		if body == nil || string(body) == "[]" {
			notifs = []domain.Notification{}
			return nil
		}

		var rows []notificationRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode notifications: %w", err)
		}

		notifs = make([]domain.Notification, 0, len(rows))
		for _, r := range rows {
			n := domain.Notification{
				ID:       r.ID,
				ClientID: r.ClientID,
				Title:    r.Title,
				Message:  r.Message,
				Read:     r.Read,
			}
			if t, err := time.Parse(time.RFC3339, r.CreatedAt); err == nil {
				n.CreatedAt = t
			}
			notifs = append(notifs, n)
		}
		return nil
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/notifications", Err: err}
	}

	return notifs, nil
}

// MarkNotificationRead flips the read flag server-side before anything is
// reported back, so there is no optimistic local state to roll back.
func (c *Client) MarkNotificationRead(ctx context.Context, notificationID string) error {
	ctx, span := tracer.Start(ctx, "Supabase.MarkNotificationRead")
	defer span.End()
	span.SetAttributes(attribute.String("notification.id", notificationID))

	err := c.execute(ctx, func() error {
		path := fmt.Sprintf("notifications?id=eq.%s", url.QueryEscape(notificationID))
		_, err := c.doPatch(ctx, path, map[string]any{"read": true})
		return err
	})
	if err != nil {
		return &domain.ErrExternalService{Service: "supabase/notifications", Err: err}
	}
	return nil
}
