package domain

import "time"

// Requerimento statuses. Independent lifecycle from Document; the two
// enums are never merged.
const (
	RequerimentoPendente          = "pendente"
	RequerimentoEmAnalise         = "em_analise"
	RequerimentoAguardandoCliente = "aguardando_cliente"
	RequerimentoAprovado          = "aprovado"
	RequerimentoRejeitado         = "rejeitado"
	RequerimentoConcluido         = "concluido"
)

// Coupled-document statuses inside a requerimento.
const (
	RequerimentoDocPending   = "PENDING"
	RequerimentoDocAnalyzing = "ANALYZING"
	RequerimentoDocApproved  = "APPROVED"
)

// Requerimento is a government/legal requirement raised by staff against
// a client, optionally coupling document requests.
type Requerimento struct {
	ID          string            `json:"id"`
	ClientID    string            `json:"clientId"`
	Tipo        string            `json:"tipo"`
	Status      string            `json:"status"`
	Observacoes string            `json:"observacoes,omitempty"`
	Documentos  []RequerimentoDoc `json:"documentos"`
	CreatedAt   time.Time         `json:"createdAt"`
}

// RequerimentoDoc is a document request coupled to a requerimento.
type RequerimentoDoc struct {
	ID             string `json:"id"`
	RequerimentoID string `json:"requerimentoId"`
	Type           string `json:"type"`
	Name           string `json:"name"`
	Status         string `json:"status"`
	StorageKey     string `json:"storageKey,omitempty"`
}

// CoupledDocRequest is one entry of the documentosAcoplados array in a
// requerimento creation call.
type CoupledDocRequest struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

// CreateRequerimentoRequest is the single atomic staff submission: the
// requerimento plus zero or more coupled document requests and their
// optional attachment files, all-or-nothing.
type CreateRequerimentoRequest struct {
	ClientID    string
	Tipo        string
	Observacoes string
	Documentos  []CoupledDocRequest
	Files       []RequerimentoFile
}

// RequerimentoFile is an attachment submitted alongside a coupled request.
type RequerimentoFile struct {
	Name    string
	Content []byte
}

// RequerimentoStatusUpdate is the two-outcome staff decision.
type RequerimentoStatusUpdate struct {
	Status string `json:"status"` // aprovado | rejeitado
	Reason string `json:"reason,omitempty"`
}
