package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rigsight/wellscan-cli/internal/config"
	"github.com/rigsight/wellscan-cli/internal/model"
)

func strp(s string) *string { return &s }

func testConfig() *config.Config {
	return &config.Config{
		Classify: config.ClassifyConfig{
			MinRuleSupport:             2,
			MinRuleConfidence:          0.6,
			AnomalyReportThreshold:     0.5,
			RuleAuthoritativeThreshold: 0.8,
			MinTrainingRecords:         5,
			MaxConcurrentSources:       2,
		},
	}
}

func labeled(path string, source model.Source, well, cat string) model.FileRecord {
	return model.NewFileRecord(path, source, model.Labels{WellName: strp(well), Category: strp(cat)})
}

func TestRun_LearnsTrainsAndScans(t *testing.T) {
	records := []model.FileRecord{
		labeled("W01/oil/scana.jpg", "s1", "W01", "oil"),
		labeled("W01/oil/scanb.jpg", "s1", "W01", "oil"),
		labeled("W01/oil/scanc.jpg", "s1", "W01", "oil"),
		labeled("W02/gas/probea.jpg", "s1", "W02", "gas"),
		labeled("W02/gas/probeb.jpg", "s1", "W02", "gas"),
		model.NewFileRecord("W01/oil/readme.txt", "s1", model.Labels{}),
		model.NewFileRecord("totally/odd/layout/x.jpg", "s1", model.Labels{}),
	}

	p := New(testConfig())
	res, err := p.Run(context.Background(), records)
	require.NoError(t, err)

	assert.Equal(t, 7, res.Stats.Total)
	assert.Equal(t, 6, res.Stats.ImageCount)
	assert.Equal(t, 1, res.Stats.NonImage)
	assert.Equal(t, res.Stats.Total, res.Stats.ImageCount+res.Stats.NonImage)

	require.NotNil(t, res.RuleSet)
	assert.Greater(t, res.RuleSet.Len(), 0)
	require.Contains(t, res.Models, model.Source("s1"))

	// The four-component path matches no learned shape.
	require.NotEmpty(t, res.Anomalies)
	found := false
	for _, a := range res.Anomalies {
		if a.Record.Path == "totally/odd/layout/x.jpg" {
			found = true
			assert.Equal(t, model.ReasonNoRule, a.Reason)
		}
	}
	assert.True(t, found)
}

func TestRun_SourceWithTooFewLabelsSkipsModel(t *testing.T) {
	records := []model.FileRecord{
		labeled("W01/oil/scana.jpg", "s1", "W01", "oil"),
		labeled("W01/oil/scanb.jpg", "s1", "W01", "oil"),
		labeled("W01/oil/scanc.jpg", "s1", "W01", "oil"),
		labeled("W02/gas/probea.jpg", "s1", "W02", "gas"),
		labeled("W02/gas/probeb.jpg", "s1", "W02", "gas"),
		labeled("W05/oil/one.jpg", "s2", "W05", "oil"),
		labeled("W06/gas/two.jpg", "s2", "W06", "gas"),
	}

	p := New(testConfig())
	res, err := p.Run(context.Background(), records)
	require.NoError(t, err)

	assert.Contains(t, res.Models, model.Source("s1"))
	assert.NotContains(t, res.Models, model.Source("s2"))
	// Rule learning still happens for the under-labeled source.
	assert.NotEmpty(t, res.RuleSet.Rules("s2"))
}

func TestRun_EmptyInput(t *testing.T) {
	p := New(testConfig())
	res, err := p.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 0, res.Stats.Total)
	assert.Equal(t, 0, res.RuleSet.Len())
	assert.Empty(t, res.Models)
	assert.Empty(t, res.Anomalies)
}

func TestRun_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	records := []model.FileRecord{
		labeled("W01/oil/scana.jpg", "s1", "W01", "oil"),
		labeled("W02/gas/probea.jpg", "s1", "W02", "gas"),
	}

	p := New(testConfig())
	_, err := p.Run(ctx, records)
	assert.Error(t, err)
}

func TestClassifier_UsesRunOutput(t *testing.T) {
	records := []model.FileRecord{
		labeled("W01/oil/scana.jpg", "s1", "W01", "oil"),
		labeled("W01/oil/scanb.jpg", "s1", "W01", "oil"),
		labeled("W01/oil/scanc.jpg", "s1", "W01", "oil"),
		labeled("W02/gas/probea.jpg", "s1", "W02", "gas"),
		labeled("W02/gas/probeb.jpg", "s1", "W02", "gas"),
	}

	p := New(testConfig())
	res, err := p.Run(context.Background(), records)
	require.NoError(t, err)

	h := p.Classifier(res)
	pred, err := h.Classify(model.NewFileRecord("W03/gas/fresh.jpg", "s1", model.Labels{}))
	require.NoError(t, err)
	assert.NotEqual(t, model.MethodNone, pred.Method)
	assert.Equal(t, "gas", pred.Fields[model.FieldCategory])
}
