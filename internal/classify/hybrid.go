// Package classify fuses the rule engine and the statistical model into
// a single hybrid classifier. Rules are the precise signal: above the
// authoritative threshold a rule match settles the record outright. The
// statistical model is the broad signal that covers what the rules do
// not.
package classify

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/rigsight/wellscan-cli/internal/bayes"
	"github.com/rigsight/wellscan-cli/internal/filter"
	"github.com/rigsight/wellscan-cli/internal/model"
	"github.com/rigsight/wellscan-cli/internal/ruleset"
)

// Config carries the fusion thresholds.
type Config struct {
	// RuleAuthoritativeThreshold is the rule confidence at or above
	// which a rule match is final and the statistical model is skipped.
	RuleAuthoritativeThreshold float64
}

// OutOfScopeError reports a classification request for a record the
// extension filter excludes.
type OutOfScopeError struct {
	Path string
	Ext  string
}

func (e *OutOfScopeError) Error() string {
	return fmt.Sprintf("classify: %q is out of scope (extension %q is not an image)", e.Path, e.Ext)
}

// Hybrid classifies records by fusing rule matches with statistical
// predictions. Immutable after New; safe for concurrent use.
type Hybrid struct {
	filter *filter.RecordFilter
	rules  *ruleset.RuleSet
	models map[model.Source]*bayes.Model
	cfg    Config
}

// New builds a hybrid classifier. Either the rule set or the model map
// may be sparse; sources absent from both still classify, to
// MethodNone.
func New(f *filter.RecordFilter, rs *ruleset.RuleSet, models map[model.Source]*bayes.Model, cfg Config) *Hybrid {
	if models == nil {
		models = make(map[model.Source]*bayes.Model)
	}
	return &Hybrid{filter: f, rules: rs, models: models, cfg: cfg}
}

// Classify predicts labels for one record. Out-of-scope records are an
// OutOfScopeError; in-scope records always yield a prediction, with
// MethodNone and zero confidence when no signal applies.
func (h *Hybrid) Classify(rec model.FileRecord) (model.Prediction, error) {
	if dec := h.filter.Decide(rec); !dec.IsImage {
		return model.Prediction{}, &OutOfScopeError{Path: rec.Path, Ext: rec.Ext}
	}

	var rulePred *model.Prediction
	if match, ok := h.rules.Match(rec); ok {
		rule := match.Rule
		fields := make(map[model.Field]string, len(match.Fields))
		for f, v := range match.Fields {
			fields[f] = v
		}
		rulePred = &model.Prediction{
			Record:     rec,
			Fields:     fields,
			Confidence: rule.Confidence,
			Method:     model.MethodRule,
			Rule:       &rule,
		}
		if rule.Confidence >= h.cfg.RuleAuthoritativeThreshold {
			return *rulePred, nil
		}
	}

	var statPred *model.Prediction
	if m, ok := h.models[rec.Source]; ok {
		p := m.Predict(rec)
		statPred = &p
	}

	switch {
	case rulePred != nil && statPred != nil:
		// Both signals computed: the stronger one wins, the rule on a
		// tie, and either way the outcome is hybrid.
		winner := *rulePred
		if statPred.Confidence > rulePred.Confidence {
			winner = *statPred
			winner.Rule = rulePred.Rule
		}
		winner.Method = model.MethodHybrid
		return winner, nil
	case rulePred != nil:
		return *rulePred, nil
	case statPred != nil:
		return *statPred, nil
	}

	zap.L().Debug("classify: no signal for record",
		zap.String("path", rec.Path),
		zap.String("source", string(rec.Source)),
	)
	return model.Prediction{Record: rec, Method: model.MethodNone}, nil
}

// ClassifyAll classifies a batch in input order, skipping out-of-scope
// records rather than failing the batch.
func (h *Hybrid) ClassifyAll(records []model.FileRecord) []model.Prediction {
	preds := make([]model.Prediction, 0, len(records))
	for _, rec := range records {
		pred, err := h.Classify(rec)
		if err != nil {
			continue
		}
		preds = append(preds, pred)
	}
	return preds
}
