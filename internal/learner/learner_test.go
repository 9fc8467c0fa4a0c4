package learner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rigsight/wellscan-cli/internal/model"
	"github.com/rigsight/wellscan-cli/internal/ruleset"
)

func strp(s string) *string { return &s }

func fltp(f float64) *float64 { return &f }

func labeledRec(path string, labels model.Labels) model.FileRecord {
	return model.NewFileRecord(path, "s1", labels)
}

func TestLearn_GeneralizesWellAndCategory(t *testing.T) {
	records := []model.FileRecord{
		labeledRec("W01/oil/sample1.jpg", model.Labels{WellName: strp("W01"), Category: strp("oil")}),
		labeledRec("W01/oil/sample2.jpg", model.Labels{WellName: strp("W01"), Category: strp("oil")}),
		labeledRec("W02/gas/x.png", model.Labels{WellName: strp("W02"), Category: strp("gas")}),
	}

	rules := Learn(records, "s1", Config{MinSupport: 2, MinConfidence: 0.6})
	require.NotEmpty(t, rules)

	// The maximal assignment ranks first: both correlated positions typed.
	top := rules[0]
	predicted := top.Pattern.PredictedFields()
	assert.Contains(t, predicted, model.FieldWellName)
	assert.Contains(t, predicted, model.FieldCategory)
	assert.Len(t, predicted, 2)
	assert.Equal(t, 3, top.Support)
	assert.Equal(t, 1.0, top.Confidence)

	// An unseen path from the same source classifies through the fragment.
	rs := ruleset.Build(map[model.Source][]model.Rule{"s1": rules})
	res, ok := rs.Match(model.NewFileRecord("W03/gas/y.jpg", "s1", model.Labels{}))
	require.True(t, ok)
	assert.Equal(t, "W03", res.Fields[model.FieldWellName])
	assert.Equal(t, "gas", res.Fields[model.FieldCategory])
}

func TestLearn_DepthPlaceholder(t *testing.T) {
	records := []model.FileRecord{
		labeledRec("W01/岩屑_3000m.jpg", model.Labels{Depth: fltp(3000)}),
		labeledRec("W01/岩屑_3005.5m.jpg", model.Labels{Depth: fltp(3005.5)}),
	}

	rules := Learn(records, "s1", Config{MinSupport: 2, MinConfidence: 0.6})
	require.Len(t, rules, 1)

	p := rules[0].Pattern
	require.Len(t, p, 3)
	assert.Equal(t, model.SegLiteral, p[0].Kind)
	assert.Equal(t, "W01", p[0].Literal)
	assert.Equal(t, model.SegLiteral, p[1].Kind)
	assert.Equal(t, model.SegDepth, p[2].Kind)

	fields, ok := ruleset.MatchTokens(p, []string{"W01", "岩屑", "3100m"})
	require.True(t, ok)
	assert.Equal(t, "3100", fields[model.FieldDepth])
}

func TestLearn_UncorrelatedVariationBecomesWildcard(t *testing.T) {
	records := []model.FileRecord{
		labeledRec("W01/oil/a1.jpg", model.Labels{WellName: strp("W01")}),
		labeledRec("W01/oil/b2.jpg", model.Labels{WellName: strp("W01")}),
		labeledRec("W02/oil/c3.jpg", model.Labels{WellName: strp("W02")}),
	}

	rules := Learn(records, "s1", Config{MinSupport: 2, MinConfidence: 0.6})
	require.Len(t, rules, 1)

	p := rules[0].Pattern
	require.Len(t, p, 3)
	assert.Equal(t, model.SegWellName, p[0].Kind)
	assert.Equal(t, model.SegLiteral, p[1].Kind)
	assert.Equal(t, model.SegWildcard, p[2].Kind)
}

func TestLearn_NoRulesBelowMinSupport(t *testing.T) {
	records := []model.FileRecord{
		labeledRec("W01/oil/a.jpg", model.Labels{WellName: strp("W01")}),
		labeledRec("W02/gas/b.jpg", model.Labels{WellName: strp("W02")}),
	}

	rules := Learn(records, "s1", Config{MinSupport: 3, MinConfidence: 0.6})
	assert.Empty(t, rules)
}

func TestLearn_NoRulesBelowMinConfidence(t *testing.T) {
	records := []model.FileRecord{
		labeledRec("W01/a1.jpg", model.Labels{WellName: strp("W01")}),
		labeledRec("W01/a2.jpg", model.Labels{WellName: strp("W01")}),
		labeledRec("W02/a3.jpg", model.Labels{WellName: strp("W02")}),
		labeledRec("W03/a4.jpg", model.Labels{WellName: strp("W03")}),
		labeledRec("W04/a5.jpg", model.Labels{WellName: strp("XX99")}),
	}

	strict := Learn(records, "s1", Config{MinSupport: 2, MinConfidence: 0.9})
	assert.Empty(t, strict)

	loose := Learn(records, "s1", Config{MinSupport: 2, MinConfidence: 0.6})
	require.Len(t, loose, 1)
	assert.InDelta(t, 0.8, loose[0].Confidence, 1e-9)
}

func TestLearn_EmptyAndUnlabeledInput(t *testing.T) {
	assert.Empty(t, Learn(nil, "s1", Config{MinSupport: 2, MinConfidence: 0.6}))

	unlabeled := []model.FileRecord{
		labeledRec("W01/oil/a.jpg", model.Labels{}),
		labeledRec("W02/gas/b.jpg", model.Labels{}),
	}
	assert.Empty(t, Learn(unlabeled, "s1", Config{MinSupport: 2, MinConfidence: 0.6}))
}

func TestLearn_Deterministic(t *testing.T) {
	records := []model.FileRecord{
		labeledRec("W01/oil/sample1.jpg", model.Labels{WellName: strp("W01"), Category: strp("oil")}),
		labeledRec("W01/oil/sample2.jpg", model.Labels{WellName: strp("W01"), Category: strp("oil")}),
		labeledRec("W02/gas/x.png", model.Labels{WellName: strp("W02"), Category: strp("gas")}),
		labeledRec("W02/岩屑_3000m.jpg", model.Labels{Depth: fltp(3000)}),
		labeledRec("W03/岩屑_3010m.jpg", model.Labels{Depth: fltp(3010)}),
	}

	a := Learn(records, "s1", Config{MinSupport: 2, MinConfidence: 0.6})
	b := Learn(records, "s1", Config{MinSupport: 2, MinConfidence: 0.6})
	assert.Equal(t, a, b)
}
