package learner

import (
	"math"
	"strconv"
	"strings"

	"github.com/rigsight/wellscan-cli/internal/model"
	"github.com/rigsight/wellscan-cli/internal/ruleset"
)

// correlatedField tests a varying token position against every label
// field and returns the best-correlated one. A field correlates when at
// least two labeled records agree between token and ground truth, the
// agreement ratio reaches minAgreement, and the agreeing values are not
// all identical (a constant can't explain variation).
func correlatedField(items []trainItem, pos int) (model.Field, bool) {
	var bestField model.Field
	bestRatio := 0.0
	bestPairs := 0

	for _, field := range model.AllFields() {
		pairs := 0
		agrees := 0
		agreeValues := make(map[string]bool)
		for _, it := range items {
			truth, has := it.rec.Labels.Get(field)
			if !has {
				continue
			}
			pairs++
			tok := it.tokens[pos]
			if tokenAgrees(field, tok, truth) {
				agrees++
				agreeValues[strings.ToLower(tok)] = true
			}
		}
		if pairs < 2 || len(agreeValues) < 2 {
			continue
		}
		ratio := float64(agrees) / float64(pairs)
		if ratio < minAgreement {
			continue
		}
		if ratio > bestRatio || (ratio == bestRatio && pairs > bestPairs) {
			bestField, bestRatio, bestPairs = field, ratio, pairs
		}
	}

	return bestField, bestRatio > 0
}

// tokenAgrees checks whether a raw token carries a field's ground-truth
// value. The token is run through the same slot extraction that rule
// matching uses, so learning and matching cannot drift apart.
func tokenAgrees(field model.Field, tok, truth string) bool {
	val, ok := ruleset.ExtractSlot(kindFor(field), tok)
	if !ok {
		return false
	}
	return valuesAgree(field, val, truth)
}

// valuesAgree compares an extracted slot value to a ground-truth value
// under the field's equality semantics.
func valuesAgree(field model.Field, val, truth string) bool {
	switch field {
	case model.FieldDepth:
		a, errA := strconv.ParseFloat(val, 64)
		b, errB := strconv.ParseFloat(truth, 64)
		if errA != nil || errB != nil {
			return false
		}
		return math.Abs(a-b) < 1e-6
	case model.FieldWellName:
		return strings.EqualFold(
			strings.TrimSuffix(val, "井"),
			strings.TrimSuffix(truth, "井"),
		)
	case model.FieldSampleType:
		if strings.EqualFold(val, truth) {
			return true
		}
		if label, ok := model.SampleTypeFor(val); ok {
			return label == truth
		}
		return false
	default:
		return strings.EqualFold(val, truth)
	}
}
