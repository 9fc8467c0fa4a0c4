// Package anomaly reports records the learned rule set does not
// sufficiently explain. Scanning is a read-only diagnostic: it never
// mutates the rule set or the records.
package anomaly

import (
	"go.uber.org/zap"

	"github.com/rigsight/wellscan-cli/internal/model"
	"github.com/rigsight/wellscan-cli/internal/ruleset"
)

// Scan evaluates records against the rule set in input order. A record
// is anomalous when no rule matches, or when the best match's confidence
// falls below reportThreshold. The reporting threshold is independent of
// the learning-time discard threshold: it controls what operators see,
// not what the set contains.
func Scan(records []model.FileRecord, rs *ruleset.RuleSet, reportThreshold float64) []model.AnomalyRecord {
	var out []model.AnomalyRecord
	for _, rec := range records {
		match, ok := rs.Match(rec)
		if !ok {
			out = append(out, model.AnomalyRecord{
				Record: rec,
				Reason: model.ReasonNoRule,
			})
			continue
		}
		if match.Rule.Confidence < reportThreshold {
			rule := match.Rule
			out = append(out, model.AnomalyRecord{
				Record:     rec,
				Reason:     model.ReasonLowConfidence,
				Rule:       &rule,
				Confidence: match.Rule.Confidence,
			})
		}
	}

	zap.L().Debug("anomaly: scan complete",
		zap.Int("records", len(records)),
		zap.Int("anomalies", len(out)),
	)
	return out
}
