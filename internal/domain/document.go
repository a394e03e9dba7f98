package domain

import "time"

// Document statuses as persisted by the backend. Comparisons are
// case-insensitive everywhere: the API still receives legacy uppercase
// variants (WAITING_APOSTILLE_QUOTE) from older staff tooling.
const (
	StatusPending              = "pending"
	StatusAnalyzing            = "analyzing"
	StatusRejected             = "rejected"
	StatusWaitingApostille     = "waiting_apostille"
	StatusAnalyzingApostille   = "analyzing_apostille"
	StatusWaitingTranslation   = "waiting_translation"
	StatusAnalyzingTranslation = "analyzing_translation"
	StatusWaitingQuoteApproval = "waiting_quote_approval"
	StatusApproved             = "approved"

	// Quote-request statuses set by the client-initiated pricing flow.
	StatusWaitingApostilleQuote   = "waiting_apostille_quote"
	StatusWaitingTranslationQuote = "waiting_translation_quote"
)

// Document is a single file a family member supplies for a case.
// Its display stage is a function of (Status, IsApostilled, IsTranslated)
// only, never of ID or upload metadata.
type Document struct {
	ID       string `json:"id"`
	ClientID string `json:"clientId"`
	MemberID string `json:"memberId"`
	Type     string `json:"type"`

	Status       string `json:"status"`
	IsApostilled bool   `json:"isApostilled"`
	IsTranslated bool   `json:"isTranslated"`

	// SolicitadoPeloJuridico marks a flow-stage document (apostille or
	// translation request) the legal team explicitly initiated. It gates
	// client-side visibility of the apostille/translation tabs.
	SolicitadoPeloJuridico bool `json:"solicitadoPeloJuridico"`

	RequerimentoID  string `json:"requerimentoId,omitempty"`
	ProcessoID      string `json:"processoId,omitempty"`
	RejectionReason string `json:"rejectionReason,omitempty"`

	FileName   string     `json:"fileName,omitempty"`
	FileSize   int64      `json:"fileSize,omitempty"`
	StorageKey string     `json:"storageKey,omitempty"`
	UploadDate *time.Time `json:"uploadDate,omitempty"`
}

// RequiredDocument is a catalog entry defining a document type a member
// must eventually supply.
type RequiredDocument struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
}

// UploadRequest carries a validated document upload through the service.
type UploadRequest struct {
	ClientID     string
	MemberID     string
	DocumentType string
	DocumentID   string // set on explicit replacement of a known row
	ProcessoID   string
	FileName     string
	Content      []byte
}

// UploadResult reports the stored document and whether an existing row of
// the same type was replaced.
type UploadResult struct {
	Document      *Document `json:"document"`
	IsReplacement bool      `json:"isReplacement"`
	OriginalSize  int64     `json:"originalSize"`
	StoredSize    int64     `json:"storedSize"`
}

// StatusUpdate is a staff action on a document: approve, reject (with
// reason) or move it along the apostille/translation flow.
type StatusUpdate struct {
	Status                 string `json:"status"`
	RejectionReason        string `json:"rejectionReason,omitempty"`
	IsApostilled           *bool  `json:"isApostilled,omitempty"`
	IsTranslated           *bool  `json:"isTranslated,omitempty"`
	SolicitadoPeloJuridico *bool  `json:"solicitadoPeloJuridico,omitempty"`
}
