// Package learner induces filename rules from labeled image records.
// Records are grouped by structural shape; aligned token positions that
// vary in step with a ground-truth field become typed placeholders,
// constant positions freeze to literals, and positions that vary without
// correlating with any field become untyped wildcards. Each surviving
// (shape, placeholder assignment) pair is scored into a Rule.
package learner

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/rigsight/wellscan-cli/internal/model"
	"github.com/rigsight/wellscan-cli/internal/ruleset"
	"github.com/rigsight/wellscan-cli/internal/textnorm"
)

// Config carries the learning thresholds. Candidates below either
// threshold are discarded.
type Config struct {
	MinSupport    int
	MinConfidence float64
}

// minAgreement is the in-group agreement ratio a token position must
// reach against a field's ground truth to count as correlated.
const minAgreement = 0.8

type trainItem struct {
	rec    model.FileRecord
	tokens []string
}

// Learn induces the rule fragment for one source. Sources learn
// independently; a rule from one source never applies to another. Zero
// input records yield an empty fragment, not an error.
func Learn(records []model.FileRecord, source model.Source, cfg Config) []model.Rule {
	if len(records) == 0 {
		return nil
	}

	groups := make(map[string][]trainItem)
	for _, rec := range records {
		tokens := textnorm.Tokenize(rec.Path)
		if len(tokens) == 0 {
			continue
		}
		key := shapeKey(tokens)
		groups[key] = append(groups[key], trainItem{rec: rec, tokens: tokens})
	}

	var candidates []model.Rule
	for _, items := range groups {
		candidates = append(candidates, groupCandidates(items, source, cfg)...)
	}

	candidates = dedupe(candidates)
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Less(candidates[j]) })

	zap.L().Debug("learner: learned fragment",
		zap.String("source", string(source)),
		zap.Int("records", len(records)),
		zap.Int("shapes", len(groups)),
		zap.Int("rules", len(candidates)),
	)
	return candidates
}

// shapeKey derives the structural signature of a token sequence: one
// coarse class per position, numeric-looking ("#") or textual ("t").
// The class is deliberately coarse so that records differing only in
// token spelling share a shape and can be aligned.
func shapeKey(tokens []string) string {
	classes := make([]string, len(tokens))
	for i, tok := range tokens {
		if _, ok := ruleset.ParseDepthToken(tok); ok {
			classes[i] = "#"
		} else {
			classes[i] = "t"
		}
	}
	return strings.Join(classes, "/")
}

// groupCandidates aligns one shape group's token positions, assigns
// segment kinds and emits scored candidates: the maximal assignment plus
// one single-placeholder variant per correlated position.
func groupCandidates(items []trainItem, source model.Source, cfg Config) []model.Rule {
	n := len(items[0].tokens)

	kinds := make([]model.SegmentKind, n)
	literals := make([]string, n)
	var correlated []int

	for pos := 0; pos < n; pos++ {
		distinct := make(map[string]bool)
		for _, it := range items {
			distinct[strings.ToLower(it.tokens[pos])] = true
		}
		if len(distinct) < 2 {
			kinds[pos] = model.SegLiteral
			literals[pos] = items[0].tokens[pos]
			continue
		}
		if field, ok := correlatedField(items, pos); ok {
			kinds[pos] = kindFor(field)
			correlated = append(correlated, pos)
		} else {
			kinds[pos] = model.SegWildcard
		}
	}

	if len(correlated) == 0 {
		// Nothing to predict; a rule without extraction slots explains
		// nothing downstream.
		return nil
	}

	build := func(keep map[int]bool) model.Pattern {
		p := make(model.Pattern, n)
		for pos := 0; pos < n; pos++ {
			switch {
			case kinds[pos] == model.SegLiteral:
				p[pos] = model.Segment{Kind: model.SegLiteral, Literal: literals[pos]}
			case kinds[pos] == model.SegWildcard || !keep[pos]:
				p[pos] = model.Segment{Kind: model.SegWildcard}
			default:
				p[pos] = model.Segment{Kind: kinds[pos]}
			}
		}
		return p
	}

	all := make(map[int]bool, len(correlated))
	for _, pos := range correlated {
		all[pos] = true
	}

	patterns := []model.Pattern{build(all)}
	if len(correlated) > 1 {
		for _, pos := range correlated {
			patterns = append(patterns, build(map[int]bool{pos: true}))
		}
	}

	var out []model.Rule
	for _, p := range patterns {
		rule, ok := score(p, items, source, cfg)
		if ok {
			out = append(out, rule)
		}
	}
	return out
}

// score computes support and confidence for a candidate pattern over its
// shape group. Support counts matching training records; confidence is
// the share of matched records — among those carrying ground truth for
// every predicted field — whose extracted values all agree with it.
func score(p model.Pattern, items []trainItem, source model.Source, cfg Config) (model.Rule, bool) {
	predicted := p.PredictedFields()

	support := 0
	labeled := 0
	agreeing := 0
	for _, it := range items {
		fields, ok := ruleset.MatchTokens(p, it.tokens)
		if !ok {
			continue
		}
		support++

		fullTruth := true
		agrees := true
		for field, val := range fields {
			truth, has := it.rec.Labels.Get(field)
			if !has {
				fullTruth = false
				break
			}
			if !valuesAgree(field, val, truth) {
				agrees = false
			}
		}
		if len(fields) < len(predicted) {
			fullTruth = false
		}
		if fullTruth {
			labeled++
			if agrees {
				agreeing++
			}
		}
	}

	if support < cfg.MinSupport || labeled == 0 {
		return model.Rule{}, false
	}
	confidence := float64(agreeing) / float64(labeled)
	if confidence < cfg.MinConfidence {
		return model.Rule{}, false
	}

	return model.Rule{
		Pattern:    p,
		Source:     source,
		Support:    support,
		Confidence: confidence,
	}, true
}

// dedupe removes candidates with identical patterns, keeping the one
// with higher support (then higher confidence).
func dedupe(rules []model.Rule) []model.Rule {
	best := make(map[string]model.Rule, len(rules))
	var order []string
	for _, r := range rules {
		key := r.Pattern.Key()
		cur, seen := best[key]
		if !seen {
			best[key] = r
			order = append(order, key)
			continue
		}
		if r.Support > cur.Support ||
			(r.Support == cur.Support && r.Confidence > cur.Confidence) {
			best[key] = r
		}
	}
	out := make([]model.Rule, 0, len(order))
	for _, key := range order {
		out = append(out, best[key])
	}
	return out
}

func kindFor(f model.Field) model.SegmentKind {
	switch f {
	case model.FieldWellName:
		return model.SegWellName
	case model.FieldCategory:
		return model.SegCategory
	case model.FieldSampleType:
		return model.SegSampleType
	case model.FieldDepth:
		return model.SegDepth
	}
	return model.SegWildcard
}
