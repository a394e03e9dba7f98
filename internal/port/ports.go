// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/techmigra/imigra-bfa-go/internal/domain"
)

// DocumentStore defines the record-level operations for documents and the
// required-document catalog. Implemented by the Supabase adapter.
type DocumentStore interface {
	ListDocuments(ctx context.Context, clientID string) ([]domain.Document, error)
	ListMemberDocuments(ctx context.Context, clientID, memberID string) ([]domain.Document, error)
	GetDocument(ctx context.Context, documentID string) (*domain.Document, error)
	CreateDocument(ctx context.Context, doc *domain.Document) (*domain.Document, error)
	UpdateDocument(ctx context.Context, documentID string, updates map[string]any) (*domain.Document, error)
	DeleteDocument(ctx context.Context, documentID string) error

	ListRequiredDocuments(ctx context.Context) ([]domain.RequiredDocument, error)
}

// RequerimentoStore defines the record-level operations for requerimentos
// and their coupled document requests.
type RequerimentoStore interface {
	ListRequerimentos(ctx context.Context, clientID string) ([]domain.Requerimento, error)
	GetRequerimento(ctx context.Context, requerimentoID string) (*domain.Requerimento, error)
	CreateRequerimento(ctx context.Context, req *domain.Requerimento) (*domain.Requerimento, error)
	CreateRequerimentoDoc(ctx context.Context, doc *domain.RequerimentoDoc) (*domain.RequerimentoDoc, error)
	UpdateRequerimentoStatus(ctx context.Context, requerimentoID string, updates map[string]any) (*domain.Requerimento, error)
	DeleteRequerimento(ctx context.Context, requerimentoID string) error
}

// ClientStore defines client and family-member operations for the
// commercial module.
type ClientStore interface {
	ListClients(ctx context.Context) ([]domain.Client, error)
	GetClient(ctx context.Context, clientID string) (*domain.Client, error)
	CreateClient(ctx context.Context, req *domain.CreateClientRequest) (*domain.Client, error)
	UpdateClient(ctx context.Context, clientID string, updates map[string]any) (*domain.Client, error)
	DeleteClient(ctx context.Context, clientID string) error

	ListFamilyMembers(ctx context.Context, clientID string) ([]domain.FamilyMember, error)
}

// FormStore defines formulario operations.
type FormStore interface {
	ListFormularios(ctx context.Context, clientID string) ([]domain.Formulario, error)
	GetFormulario(ctx context.Context, formularioID string) (*domain.Formulario, error)
	UpdateFormulario(ctx context.Context, formularioID string, updates map[string]any) (*domain.Formulario, error)
}

// ProcessoStore defines legal processo operations.
type ProcessoStore interface {
	ListProcessos(ctx context.Context) ([]domain.Processo, error)
	ListClientProcessos(ctx context.Context, clientID string) ([]domain.Processo, error)
	AssignResponsible(ctx context.Context, processoID, responsibleID string) (*domain.Processo, error)
}

// NotificationStore defines notification operations.
type NotificationStore interface {
	ListNotifications(ctx context.Context, clientID string, unreadOnly bool) ([]domain.Notification, error)
	MarkNotificationRead(ctx context.Context, notificationID string) error
}

// FileStorage stores and retrieves uploaded file content (S3 or any
// object store).
type FileStorage interface {
	Upload(ctx context.Context, key string, content []byte, contentType string) error
	Download(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// Compressor shrinks an uploaded file before storage. The returned bytes
// keep the original MIME type.
type Compressor interface {
	Compress(ctx context.Context, fileName string, content []byte) ([]byte, error)
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
