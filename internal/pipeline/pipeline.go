// Package pipeline orchestrates a full analysis run: scope filtering,
// per-source rule learning and model training, and the anomaly scan
// over the resulting rule set.
package pipeline

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rigsight/wellscan-cli/internal/anomaly"
	"github.com/rigsight/wellscan-cli/internal/bayes"
	"github.com/rigsight/wellscan-cli/internal/classify"
	"github.com/rigsight/wellscan-cli/internal/config"
	"github.com/rigsight/wellscan-cli/internal/filter"
	"github.com/rigsight/wellscan-cli/internal/learner"
	"github.com/rigsight/wellscan-cli/internal/model"
	"github.com/rigsight/wellscan-cli/internal/ruleset"
)

// Result is the output of one analysis run.
type Result struct {
	Stats     filter.Stats
	RuleSet   *ruleset.RuleSet
	Models    map[model.Source]*bayes.Model
	Anomalies []model.AnomalyRecord
}

// Pipeline runs the learn/train/scan sequence over listing records.
type Pipeline struct {
	cfg    *config.Config
	filter *filter.RecordFilter
}

// New builds a pipeline from configuration.
func New(cfg *config.Config) *Pipeline {
	return &Pipeline{
		cfg:    cfg,
		filter: filter.New(cfg.Classify.ImageExtensions),
	}
}

// Filter exposes the pipeline's extension filter so callers can build a
// classifier that scopes records the same way the run did.
func (p *Pipeline) Filter() *filter.RecordFilter {
	return p.filter
}

// Run executes the full analysis over a batch of records. Sources are
// processed concurrently; one source failing to train does not abort
// the run, it just leaves that source without a statistical model.
func (p *Pipeline) Run(ctx context.Context, records []model.FileRecord) (*Result, error) {
	log := zap.L()
	log.Info("pipeline: starting analysis", zap.Int("records", len(records)))

	images, _, stats := p.filter.Split(records)

	bySource := make(map[model.Source][]model.FileRecord)
	for _, rec := range images {
		bySource[rec.Source] = append(bySource[rec.Source], rec)
	}
	sources := make([]model.Source, 0, len(bySource))
	for s := range bySource {
		sources = append(sources, s)
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i] < sources[j] })

	learnCfg := learner.Config{
		MinSupport:    p.cfg.Classify.MinRuleSupport,
		MinConfidence: p.cfg.Classify.MinRuleConfidence,
	}
	trainCfg := bayes.Config{MinTrainingRecords: p.cfg.Classify.MinTrainingRecords}

	var mu sync.Mutex
	fragments := make(map[model.Source][]model.Rule)
	models := make(map[model.Source]*bayes.Model)
	var trained, skipped atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Classify.MaxConcurrentSources)

	for _, source := range sources {
		recs := bySource[source]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return eris.Wrap(err, "pipeline: source worker")
			}
			slog := log.With(zap.String("source", string(source)))

			rules := learner.Learn(recs, source, learnCfg)

			m, err := bayes.Train(recs, source, trainCfg)
			if err != nil {
				var insufficient *bayes.InsufficientDataError
				if !errors.As(err, &insufficient) {
					return eris.Wrap(err, "pipeline: train model")
				}
				skipped.Add(1)
				slog.Warn("pipeline: skipping statistical model", zap.Error(err))
			} else {
				trained.Add(1)
			}

			mu.Lock()
			fragments[source] = rules
			if m != nil {
				models[source] = m
			}
			mu.Unlock()

			slog.Info("pipeline: source analyzed",
				zap.Int("records", len(recs)),
				zap.Int("rules", len(rules)),
				zap.Bool("model", m != nil),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "pipeline: analyze sources")
	}

	rs := ruleset.Build(fragments)
	anomalies := anomaly.Scan(images, rs, p.cfg.Classify.AnomalyReportThreshold)

	log.Info("pipeline: analysis complete",
		zap.Int("rules", rs.Len()),
		zap.Int64("models_trained", trained.Load()),
		zap.Int64("models_skipped", skipped.Load()),
		zap.Int("anomalies", len(anomalies)),
	)

	return &Result{
		Stats:     stats,
		RuleSet:   rs,
		Models:    models,
		Anomalies: anomalies,
	}, nil
}

// Classifier builds the hybrid classifier for a completed run.
func (p *Pipeline) Classifier(res *Result) *classify.Hybrid {
	return classify.New(p.filter, res.RuleSet, res.Models, classify.Config{
		RuleAuthoritativeThreshold: p.cfg.Classify.RuleAuthoritativeThreshold,
	})
}
