package orders

// LineOutcome is the per-line result of line item creation.
type LineOutcome string

const (
	LineCreated                 LineOutcome = "created"
	LineCreatedWithoutRelations LineOutcome = "created_without_relations"
	LineDropped                 LineOutcome = "dropped"
)

// Persisted reports whether a backend record exists for the line.
func (o LineOutcome) Persisted() bool {
	return o == LineCreated || o == LineCreatedWithoutRelations
}

// LineResult records what happened to one cart line.
type LineResult struct {
	Index     int
	ProductID string
	Outcome   LineOutcome
	ItemID    string
	SizeID    string
	Err       error
}

// LineCounts aggregates line results by outcome.
type LineCounts struct {
	Created  int `json:"created"`
	Degraded int `json:"degraded"`
	Dropped  int `json:"dropped"`
}

func CountLines(results []LineResult) LineCounts {
	var counts LineCounts
	for _, r := range results {
		switch r.Outcome {
		case LineCreated:
			counts.Created++
		case LineCreatedWithoutRelations:
			counts.Degraded++
		default:
			counts.Dropped++
		}
	}
	return counts
}

// Succeeded decides whether an order survives its line item batch: at least
// one line must have been persisted, with or without relations.
func Succeeded(results []LineResult) bool {
	for _, r := range results {
		if r.Outcome.Persisted() {
			return true
		}
	}
	return false
}

func persistedItemIDs(results []LineResult) []string {
	ids := make([]string, 0, len(results))
	for _, r := range results {
		if r.Outcome.Persisted() && r.ItemID != "" {
			ids = append(ids, r.ItemID)
		}
	}
	return ids
}
