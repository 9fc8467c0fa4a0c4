// Package ruleset holds the frozen, queryable collection of learned
// rules. A RuleSet is immutable after Build: concurrent readers need no
// coordination, and re-learning replaces the whole set rather than
// patching it.
package ruleset

import (
	"sort"
	"strings"

	"github.com/rigsight/wellscan-cli/internal/model"
	"github.com/rigsight/wellscan-cli/internal/textnorm"
)

// RuleSet maps each source to its ranked rules.
type RuleSet struct {
	rules map[model.Source][]model.Rule
}

// Build constructs a RuleSet from rule fragments, sorting each source's
// rules by the total rule order and dropping later duplicates of the
// same pattern.
func Build(fragments map[model.Source][]model.Rule) *RuleSet {
	rs := &RuleSet{rules: make(map[model.Source][]model.Rule, len(fragments))}
	for source, rules := range fragments {
		sorted := make([]model.Rule, len(rules))
		copy(sorted, rules)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Less(sorted[j]) })

		seen := make(map[string]bool, len(sorted))
		var kept []model.Rule
		for _, r := range sorted {
			key := r.Pattern.Key()
			if seen[key] {
				continue
			}
			seen[key] = true
			kept = append(kept, r)
		}
		rs.rules[source] = kept
	}
	return rs
}

// Sources lists the sources the set has rules for, sorted.
func (rs *RuleSet) Sources() []model.Source {
	out := make([]model.Source, 0, len(rs.rules))
	for s := range rs.rules {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Rules returns the ranked rules for one source.
func (rs *RuleSet) Rules(source model.Source) []model.Rule {
	return rs.rules[source]
}

// Len counts all rules across sources.
func (rs *RuleSet) Len() int {
	n := 0
	for _, rules := range rs.rules {
		n += len(rules)
	}
	return n
}

// MatchResult carries the winning rule and what it extracted.
type MatchResult struct {
	Rule   model.Rule
	Fields map[model.Field]string
}

// Match evaluates the record against its source's rules in ranked order
// and returns the first rule whose shape matches and whose extraction
// validates. A rule whose placeholder extracts a type-invalid value (a
// depth slot holding non-numeric text) is treated as a non-match, not an
// error.
func (rs *RuleSet) Match(rec model.FileRecord) (MatchResult, bool) {
	rules := rs.rules[rec.Source]
	if len(rules) == 0 {
		return MatchResult{}, false
	}
	tokens := textnorm.Tokenize(rec.Path)
	for _, r := range rules {
		if fields, ok := MatchTokens(r.Pattern, tokens); ok {
			return MatchResult{Rule: r, Fields: fields}, true
		}
	}
	return MatchResult{}, false
}

// MatchTokens matches a pattern against a token sequence positionally
// and extracts placeholder values. Literal comparison is
// case-insensitive; typed placeholders validate the token before
// extracting.
func MatchTokens(p model.Pattern, tokens []string) (map[model.Field]string, bool) {
	if len(p) != len(tokens) {
		return nil, false
	}
	var fields map[model.Field]string
	for i, seg := range p {
		tok := tokens[i]
		switch seg.Kind {
		case model.SegLiteral:
			if !strings.EqualFold(seg.Literal, tok) {
				return nil, false
			}
		case model.SegWildcard:
			// matches anything, extracts nothing
		default:
			field, ok := seg.Kind.Field()
			if !ok {
				return nil, false
			}
			val, ok := ExtractSlot(seg.Kind, tok)
			if !ok {
				return nil, false
			}
			if fields == nil {
				fields = make(map[model.Field]string)
			}
			fields[field] = val
		}
	}
	return fields, true
}
