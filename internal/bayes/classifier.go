// Package bayes trains the statistical fallback classifier: a
// multinomial naive Bayes model over path-token features, one
// sub-model per label field, trained per source. It covers the records
// the literal rule set cannot explain.
package bayes

import (
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/rigsight/wellscan-cli/internal/model"
)

// Config carries training thresholds.
type Config struct {
	MinTrainingRecords int
}

// InsufficientDataError reports that a source has too few labeled image
// records to train on. Recoverable: the hybrid classifier falls back to
// rule-only operation for that source.
type InsufficientDataError struct {
	Source model.Source
	Have   int
	Need   int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("bayes: source %q has %d labeled records, need %d", e.Source, e.Have, e.Need)
}

// fieldModel is the per-field multinomial distribution.
type fieldModel struct {
	docs        int
	classDocs   map[string]int
	classFeats  map[string]map[string]int
	classTotals map[string]int
	vocab       map[string]bool
}

// Model is the opaque trained state for one source. Owned by the Train
// call that produced it; read-only afterwards, and invalid once the
// training record set changes — retrain instead of patching.
type Model struct {
	Source model.Source
	fields map[model.Field]*fieldModel
}

// Train fits a model for one source from labeled image records. Records
// without any label are ignored; fewer than cfg.MinTrainingRecords
// labeled records is an InsufficientDataError.
func Train(records []model.FileRecord, source model.Source, cfg Config) (*Model, error) {
	var labeled []model.FileRecord
	for _, rec := range records {
		if !rec.Labels.Empty() {
			labeled = append(labeled, rec)
		}
	}
	if len(labeled) < cfg.MinTrainingRecords {
		return nil, &InsufficientDataError{Source: source, Have: len(labeled), Need: cfg.MinTrainingRecords}
	}

	m := &Model{Source: source, fields: make(map[model.Field]*fieldModel)}
	for _, field := range model.AllFields() {
		fm := &fieldModel{
			classDocs:   make(map[string]int),
			classFeats:  make(map[string]map[string]int),
			classTotals: make(map[string]int),
			vocab:       make(map[string]bool),
		}
		for _, rec := range labeled {
			truth, ok := rec.Labels.Get(field)
			if !ok {
				continue
			}
			fm.docs++
			fm.classDocs[truth]++
			if fm.classFeats[truth] == nil {
				fm.classFeats[truth] = make(map[string]int)
			}
			for _, feat := range Features(rec) {
				fm.classFeats[truth][feat]++
				fm.classTotals[truth]++
				fm.vocab[feat] = true
			}
		}
		if fm.docs > 0 {
			m.fields[field] = fm
		}
	}

	zap.L().Debug("bayes: trained model",
		zap.String("source", string(source)),
		zap.Int("labeled_records", len(labeled)),
		zap.Int("fields", len(m.fields)),
	)
	return m, nil
}

// Predict classifies one record. It never fails: out-of-vocabulary
// features fall back to the smoothed prior, producing a low-confidence
// but well-defined prediction. Confidence is the mean winning posterior
// across predicted fields, always in [0,1].
func (m *Model) Predict(rec model.FileRecord) model.Prediction {
	feats := Features(rec)

	fields := make(map[model.Field]string)
	var confSum float64
	var confN int

	for field, fm := range m.fields {
		class, posterior := fm.classify(feats)
		if class == "" {
			continue
		}
		fields[field] = class
		confSum += posterior
		confN++
	}

	pred := model.Prediction{
		Record: rec,
		Method: model.MethodStatistical,
	}
	if confN > 0 {
		pred.Fields = fields
		pred.Confidence = confSum / float64(confN)
	}
	return pred
}

// classify returns the maximum-posterior class and its normalized
// posterior probability, computed in log space with Laplace smoothing.
func (fm *fieldModel) classify(feats []string) (string, float64) {
	if fm.docs == 0 {
		return "", 0
	}

	classes := make([]string, 0, len(fm.classDocs))
	for c := range fm.classDocs {
		classes = append(classes, c)
	}
	sort.Strings(classes)

	vocabSize := float64(len(fm.vocab)) + 1

	logs := make([]float64, len(classes))
	for i, c := range classes {
		lp := math.Log(float64(fm.classDocs[c]) / float64(fm.docs))
		total := float64(fm.classTotals[c])
		for _, f := range feats {
			count := float64(fm.classFeats[c][f])
			lp += math.Log((count + 1) / (total + vocabSize))
		}
		logs[i] = lp
	}

	// Softmax normalization shifted by the max for stability.
	maxLog := logs[0]
	best := 0
	for i, lp := range logs {
		if lp > maxLog {
			maxLog = lp
			best = i
		}
	}
	var sum float64
	for _, lp := range logs {
		sum += math.Exp(lp - maxLog)
	}
	return classes[best], 1 / sum
}
