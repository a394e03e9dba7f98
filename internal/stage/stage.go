// Package stage classifies documents into the client-facing display
// buckets of the portal. Every consumer (document handlers, member stats,
// process analysis) goes through this package so there is exactly one
// status-to-bucket mapping.
package stage

import (
	"strings"

	"github.com/techmigra/imigra-bfa-go/internal/domain"
)

// Stage is the display bucket a document is grouped into.
type Stage string

const (
	StagePending     Stage = "pending"
	StageAnalyzing   Stage = "analyzing"
	StageRejected    Stage = "rejected"
	StageApostille   Stage = "apostille"
	StageTranslation Stage = "translation"
	StageCompleted   Stage = "completed"

	// StageRequestedPending marks a staff-requested row still waiting for
	// the client's file. It never appears as its own tab: such documents
	// are folded into the pending list by Pending.
	StageRequestedPending Stage = "requested_pending"
)

// Resolve maps a document to exactly one stage. It is total: any status
// string, including ones the backend introduces later, lands in a defined
// bucket, with analyzing as the fallback. First match wins: the
// conditions overlap, so the order below is load-bearing.
func Resolve(d domain.Document) Stage {
	s := strings.ToLower(strings.TrimSpace(d.Status))

	switch {
	case s == domain.StatusRejected:
		return StageRejected

	case strings.Contains(s, "apostille"):
		return StageApostille
	case s == domain.StatusApproved && !d.IsApostilled:
		return StageApostille
	case s == domain.StatusWaitingQuoteApproval && !d.IsApostilled:
		return StageApostille

	case strings.Contains(s, "translation"):
		return StageTranslation
	case s == domain.StatusWaitingQuoteApproval && d.IsApostilled:
		return StageTranslation
	case s == domain.StatusApproved && d.IsApostilled && !d.IsTranslated:
		return StageTranslation

	case s == domain.StatusApproved && d.IsApostilled && d.IsTranslated:
		return StageCompleted

	case s == domain.StatusPending:
		return StageRequestedPending

	default:
		return StageAnalyzing
	}
}

// Buckets partitions documents into stages in a single pass, instead of
// re-filtering the full slice once per tab.
func Buckets(docs []domain.Document) map[Stage][]domain.Document {
	out := make(map[Stage][]domain.Document)
	for _, d := range docs {
		st := Resolve(d)
		out[st] = append(out[st], d)
	}
	return out
}

// ForStage returns the documents of a stage as the client sees them. For
// the apostille and translation tabs the legal team must have initiated
// the flow (SolicitadoPeloJuridico) before the document becomes visible:
// a document can be in the apostille stage internally while hidden from
// the client. This is a visibility gate, not a membership gate; use
// ForStageAll for the staff view.
func ForStage(st Stage, docs []domain.Document) []domain.Document {
	matched := ForStageAll(st, docs)
	if st != StageApostille && st != StageTranslation {
		return matched
	}

	visible := make([]domain.Document, 0, len(matched))
	for _, d := range matched {
		if d.SolicitadoPeloJuridico {
			visible = append(visible, d)
		}
	}
	return visible
}

// ForStageAll returns the documents of a stage with no visibility gate.
func ForStageAll(st Stage, docs []domain.Document) []domain.Document {
	out := make([]domain.Document, 0, len(docs))
	for _, d := range docs {
		if Resolve(d) == st {
			out = append(out, d)
		}
	}
	return out
}
