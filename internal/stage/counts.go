package stage

import "github.com/techmigra/imigra-bfa-go/internal/domain"

// TabCounts holds the badge counters for a member's tab bar. Forms and
// requirements come from separate fetches, not from the document array.
type TabCounts struct {
	Pending      int `json:"pending"`
	Analyzing    int `json:"analyzing"`
	Rejected     int `json:"rejected"`
	Apostille    int `json:"apostille"`
	Translation  int `json:"translation"`
	Completed    int `json:"completed"`
	Forms        int `json:"forms"`
	Requirements int `json:"requirements"`
}

// Counts recomputes the tab counters from the current snapshot. The
// apostille/translation counters honor the client visibility gate, same
// as the lists they label.
func Counts(docs []domain.Document, required []domain.RequiredDocument, forms, requirements int) TabCounts {
	c := TabCounts{
		Pending:      len(Pending(docs, required)),
		Forms:        forms,
		Requirements: requirements,
	}
	for _, d := range docs {
		switch Resolve(d) {
		case StageAnalyzing:
			c.Analyzing++
		case StageRejected:
			c.Rejected++
		case StageApostille:
			if d.SolicitadoPeloJuridico {
				c.Apostille++
			}
		case StageTranslation:
			if d.SolicitadoPeloJuridico {
				c.Translation++
			}
		case StageCompleted:
			c.Completed++
		}
	}
	return c
}
