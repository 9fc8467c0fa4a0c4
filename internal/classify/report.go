package classify

import (
	"sort"
	"strings"

	"github.com/rigsight/wellscan-cli/internal/bayes"
	"github.com/rigsight/wellscan-cli/internal/model"
	"github.com/rigsight/wellscan-cli/internal/ruleset"
	"github.com/rigsight/wellscan-cli/internal/textnorm"
)

// SourceCoverage counts how each method contributed for one source.
type SourceCoverage struct {
	Source      model.Source `json:"source"`
	Total       int          `json:"total"`
	Rule        int          `json:"rule"`
	Statistical int          `json:"statistical"`
	Hybrid      int          `json:"hybrid"`
	Unresolved  int          `json:"unresolved"`
	// Agreement counts hybrid predictions whose final values match what
	// the rule alone would have extracted.
	Agreement int `json:"agreement"`
}

// Report summarizes a classification run for operators: which signal is
// carrying each source, and how well predictions line up with whatever
// ground truth the input carried.
type Report struct {
	Coverage []SourceCoverage      `json:"coverage"`
	Accuracy []bayes.FieldAccuracy `json:"accuracy,omitempty"`
}

// BuildReport aggregates predictions into coverage counters plus
// per-field accuracy over the labeled portion of the batch.
func BuildReport(preds []model.Prediction) Report {
	bySource := make(map[model.Source]*SourceCoverage)
	byField := make(map[model.Field]*bayes.FieldAccuracy)

	for _, pred := range preds {
		cov := bySource[pred.Record.Source]
		if cov == nil {
			cov = &SourceCoverage{Source: pred.Record.Source}
			bySource[pred.Record.Source] = cov
		}
		cov.Total++
		switch pred.Method {
		case model.MethodRule:
			cov.Rule++
		case model.MethodStatistical:
			cov.Statistical++
		case model.MethodHybrid:
			cov.Hybrid++
			if agreesWithRule(pred) {
				cov.Agreement++
			}
		default:
			cov.Unresolved++
		}

		if pred.Record.Labels.Empty() {
			continue
		}
		for _, field := range model.AllFields() {
			truth, ok := pred.Record.Labels.Get(field)
			if !ok {
				continue
			}
			acc := byField[field]
			if acc == nil {
				acc = &bayes.FieldAccuracy{Field: field}
				byField[field] = acc
			}
			acc.Total++
			if got, ok := pred.Fields[field]; ok && strings.EqualFold(got, truth) {
				acc.Correct++
			}
		}
	}

	var rep Report
	for _, cov := range bySource {
		rep.Coverage = append(rep.Coverage, *cov)
	}
	sort.Slice(rep.Coverage, func(i, j int) bool { return rep.Coverage[i].Source < rep.Coverage[j].Source })
	for _, field := range model.AllFields() {
		if acc, ok := byField[field]; ok {
			rep.Accuracy = append(rep.Accuracy, *acc)
		}
	}
	return rep
}

// agreesWithRule reports whether a hybrid prediction's final fields
// match what its rule alone extracts from the record's path.
func agreesWithRule(pred model.Prediction) bool {
	if pred.Rule == nil {
		return false
	}
	ruleFields, ok := ruleset.MatchTokens(pred.Rule.Pattern, textnorm.Tokenize(pred.Record.Path))
	if !ok {
		return false
	}
	for field, ruleVal := range ruleFields {
		finalVal, ok := pred.Fields[field]
		if !ok || !strings.EqualFold(ruleVal, finalVal) {
			return false
		}
	}
	return true
}
