package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/rigsight/wellscan-cli/internal/fetcher"
	"github.com/rigsight/wellscan-cli/internal/model"
	"github.com/rigsight/wellscan-cli/internal/pipeline"
	"github.com/rigsight/wellscan-cli/internal/ruleset"
	"github.com/rigsight/wellscan-cli/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "wellscan.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// scanEnv holds the store and pipeline shared by the commands.
type scanEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the environment.
func (e *scanEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv sets up the store and pipeline. Callers should defer
// env.Close().
func initEnv(ctx context.Context) (*scanEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return &scanEnv{
		Store:    st,
		Pipeline: pipeline.New(cfg),
	}, nil
}

// loadStoredRules rebuilds the rule set from persisted rule fragments.
func loadStoredRules(ctx context.Context, st store.Store) (*ruleset.RuleSet, error) {
	fragments, err := st.LoadRules(ctx)
	if err != nil {
		return nil, err
	}
	rs := ruleset.Build(fragments)
	zap.L().Debug("loaded stored rules", zap.Int("rules", rs.Len()))
	return rs, nil
}

// loadListings reads one or more listing files into a single record
// batch, each listing keeping its own default source.
func loadListings(ctx context.Context, paths []string) ([]model.FileRecord, error) {
	opts := fetcher.Options{
		PathColumn:   cfg.Ingest.PathColumn,
		SourceColumn: cfg.Ingest.SourceColumn,
	}

	var records []model.FileRecord
	for _, path := range paths {
		recs, err := fetcher.LoadListing(ctx, path, opts)
		if err != nil {
			return nil, eris.Wrapf(err, "load listing %s", path)
		}
		zap.L().Info("listing loaded", zap.String("path", path), zap.Int("records", len(recs)))
		records = append(records, recs...)
	}
	return records, nil
}
