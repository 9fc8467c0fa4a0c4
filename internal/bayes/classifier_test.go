package bayes

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rigsight/wellscan-cli/internal/model"
)

func strp(s string) *string { return &s }

func trainingRecords() []model.FileRecord {
	mk := func(path, well, cat string) model.FileRecord {
		return model.NewFileRecord(path, "s1", model.Labels{WellName: strp(well), Category: strp(cat)})
	}
	return []model.FileRecord{
		mk("W01/oil/scan_a.jpg", "W01", "oil"),
		mk("W01/oil/scan_b.jpg", "W01", "oil"),
		mk("W01/oil/scan_c.jpg", "W01", "oil"),
		mk("W02/gas/probe_a.jpg", "W02", "gas"),
		mk("W02/gas/probe_b.jpg", "W02", "gas"),
		mk("W02/gas/probe_c.jpg", "W02", "gas"),
	}
}

func TestTrain_InsufficientData(t *testing.T) {
	records := []model.FileRecord{
		model.NewFileRecord("W01/oil/a.jpg", "s1", model.Labels{WellName: strp("W01")}),
		model.NewFileRecord("W01/oil/b.jpg", "s1", model.Labels{}), // unlabeled, not counted
	}

	_, err := Train(records, "s1", Config{MinTrainingRecords: 5})
	require.Error(t, err)

	var ide *InsufficientDataError
	require.True(t, errors.As(err, &ide))
	assert.Equal(t, model.Source("s1"), ide.Source)
	assert.Equal(t, 1, ide.Have)
	assert.Equal(t, 5, ide.Need)
}

func TestTrainAndPredict_SeparableClasses(t *testing.T) {
	m, err := Train(trainingRecords(), "s1", Config{MinTrainingRecords: 5})
	require.NoError(t, err)

	pred := m.Predict(model.NewFileRecord("W01/oil/scan_z.jpg", "s1", model.Labels{}))
	assert.Equal(t, model.MethodStatistical, pred.Method)
	assert.Equal(t, "oil", pred.Fields[model.FieldCategory])
	assert.Equal(t, "W01", pred.Fields[model.FieldWellName])
	assert.Greater(t, pred.Confidence, 0.5)
	assert.LessOrEqual(t, pred.Confidence, 1.0)
}

func TestPredict_OutOfVocabularyNeverFails(t *testing.T) {
	m, err := Train(trainingRecords(), "s1", Config{MinTrainingRecords: 5})
	require.NoError(t, err)

	pred := m.Predict(model.NewFileRecord("совершенно/другой/путь.jpg", "s1", model.Labels{}))
	assert.Equal(t, model.MethodStatistical, pred.Method)
	assert.NotEmpty(t, pred.Fields)
	assert.GreaterOrEqual(t, pred.Confidence, 0.0)
	assert.LessOrEqual(t, pred.Confidence, 1.0)
}

func TestPredict_Deterministic(t *testing.T) {
	m, err := Train(trainingRecords(), "s1", Config{MinTrainingRecords: 5})
	require.NoError(t, err)

	rec := model.NewFileRecord("W02/gas/probe_z.jpg", "s1", model.Labels{})
	a := m.Predict(rec)
	b := m.Predict(rec)
	assert.Equal(t, a.Fields, b.Fields)
	assert.Equal(t, a.Confidence, b.Confidence)
}

func TestEvaluate_PerFieldAccuracy(t *testing.T) {
	m, err := Train(trainingRecords(), "s1", Config{MinTrainingRecords: 5})
	require.NoError(t, err)

	holdout := []model.FileRecord{
		model.NewFileRecord("W01/oil/scan_x.jpg", "s1", model.Labels{WellName: strp("W01"), Category: strp("oil")}),
		model.NewFileRecord("W02/gas/probe_x.jpg", "s1", model.Labels{WellName: strp("W02"), Category: strp("gas")}),
		model.NewFileRecord("noise/here.jpg", "s1", model.Labels{}), // unlabeled, skipped
	}

	accs := m.Evaluate(holdout)
	require.Len(t, accs, 2)

	byField := make(map[model.Field]FieldAccuracy)
	for _, a := range accs {
		byField[a.Field] = a
	}
	require.Contains(t, byField, model.FieldWellName)
	require.Contains(t, byField, model.FieldCategory)
	assert.Equal(t, 2, byField[model.FieldCategory].Total)
	assert.Equal(t, 2, byField[model.FieldCategory].Correct)
	assert.Equal(t, 1.0, byField[model.FieldCategory].Accuracy())
}

func TestFieldAccuracy_EmptyTotal(t *testing.T) {
	assert.Equal(t, 0.0, FieldAccuracy{}.Accuracy())
}

func TestFeatures_DeterministicAndPositional(t *testing.T) {
	rec := model.NewFileRecord("BZ26-6井/荧光扫描/岩屑_3025.5m.jpg", "s1", model.Labels{})

	a := Features(rec)
	b := Features(rec)
	assert.Equal(t, a, b)

	assert.Contains(t, a, "well:bz26-6")
	assert.Contains(t, a, "cat:荧光扫描")
	assert.Contains(t, a, "sample:岩屑")
}
