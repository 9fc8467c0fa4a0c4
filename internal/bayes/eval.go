package bayes

import (
	"strings"

	"github.com/rigsight/wellscan-cli/internal/model"
)

// FieldAccuracy is the per-field hit rate of a model over a labeled
// evaluation set. Fields with no ground truth in the set are omitted.
type FieldAccuracy struct {
	Field   model.Field
	Total   int
	Correct int
}

// Accuracy returns the hit rate, or 0 when nothing was evaluated.
func (a FieldAccuracy) Accuracy() float64 {
	if a.Total == 0 {
		return 0
	}
	return float64(a.Correct) / float64(a.Total)
}

// Evaluate scores the model against labeled records, typically a
// held-out slice of the training source.
func (m *Model) Evaluate(records []model.FileRecord) []FieldAccuracy {
	byField := make(map[model.Field]*FieldAccuracy)

	for _, rec := range records {
		if rec.Labels.Empty() {
			continue
		}
		pred := m.Predict(rec)
		for _, field := range model.AllFields() {
			truth, ok := rec.Labels.Get(field)
			if !ok {
				continue
			}
			acc := byField[field]
			if acc == nil {
				acc = &FieldAccuracy{Field: field}
				byField[field] = acc
			}
			acc.Total++
			if got, ok := pred.Fields[field]; ok && strings.EqualFold(got, truth) {
				acc.Correct++
			}
		}
	}

	out := make([]FieldAccuracy, 0, len(byField))
	for _, field := range model.AllFields() {
		if acc, ok := byField[field]; ok {
			out = append(out, *acc)
		}
	}
	return out
}
