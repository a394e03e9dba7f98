package stage

import (
	"strings"

	"github.com/techmigra/imigra-bfa-go/internal/domain"
)

// PendingEntry is one row of a member's pending tab. It is either a
// synthetic placeholder for a required type with no usable upload yet
// (Requested=false) or a staff-requested document row (Requested=true,
// Document set).
type PendingEntry struct {
	Type      string           `json:"type"`
	Name      string           `json:"name,omitempty"`
	Required  bool             `json:"required"`
	Requested bool             `json:"requested"`
	Document  *domain.Document `json:"document,omitempty"`
}

// Pending builds a member's pending list from two sources:
//
//   - requested: document rows with status pending and no requerimento
//     link, plus legal-initiated rows still waiting for their
//     apostille/translation file;
//   - missing: required catalog types with no document that counts as
//     uploaded (pending and rejected rows don't count).
//
// The two sets are disjoint by construction: a type with a requested row
// is never also synthesized as missing, so the UI can render the union
// without de-duplication.
func Pending(docs []domain.Document, required []domain.RequiredDocument) []PendingEntry {
	entries := make([]PendingEntry, 0, len(required))
	requestedTypes := make(map[string]bool)

	for i := range docs {
		d := docs[i]
		if !isRequested(d) {
			continue
		}
		key := normType(d.Type)
		requestedTypes[key] = true
		entries = append(entries, PendingEntry{
			Type:      d.Type,
			Required:  false,
			Requested: true,
			Document:  &docs[i],
		})
	}

	uploaded := make(map[string]bool)
	for _, d := range docs {
		s := strings.ToLower(strings.TrimSpace(d.Status))
		if s == domain.StatusPending || s == domain.StatusRejected {
			continue
		}
		uploaded[normType(d.Type)] = true
	}

	for _, req := range required {
		key := normType(req.Type)
		if uploaded[key] || requestedTypes[key] {
			continue
		}
		entries = append(entries, PendingEntry{
			Type:      req.Type,
			Name:      req.Name,
			Required:  true,
			Requested: false,
		})
	}

	return entries
}

// isRequested reports whether a document row belongs in the pending tab as
// an explicit request for the client to act on.
func isRequested(d domain.Document) bool {
	s := strings.ToLower(strings.TrimSpace(d.Status))
	if s == domain.StatusPending && d.RequerimentoID == "" {
		return true
	}
	if d.SolicitadoPeloJuridico &&
		(s == domain.StatusWaitingApostille || s == domain.StatusWaitingTranslation) {
		return true
	}
	return false
}

func normType(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}
