package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rigsight/wellscan-cli/internal/classify"
	"github.com/rigsight/wellscan-cli/internal/filter"
	"github.com/rigsight/wellscan-cli/internal/model"
	"github.com/rigsight/wellscan-cli/internal/ruleset"
	"github.com/rigsight/wellscan-cli/internal/store"
)

func testRouterDeps(t *testing.T) (*classify.Hybrid, *ruleset.RuleSet, *store.SQLiteStore) {
	t.Helper()
	rs := ruleset.Build(map[model.Source][]model.Rule{
		"s1": {
			{
				Pattern: model.Pattern{
					{Kind: model.SegWellName},
					{Kind: model.SegCategory},
					{Kind: model.SegWildcard},
				},
				Source:     "s1",
				Support:    4,
				Confidence: 0.9,
			},
		},
	})
	hybrid := classify.New(filter.New(nil), rs, nil, classify.Config{RuleAuthoritativeThreshold: 0.8})

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "serve.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	return hybrid, rs, st
}

func TestRouter_Health(t *testing.T) {
	hybrid, rs, st := testRouterDeps(t)
	r := buildRouter(hybrid, rs, st, 100, 100)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestRouter_Classify(t *testing.T) {
	hybrid, rs, st := testRouterDeps(t)
	r := buildRouter(hybrid, rs, st, 100, 100)

	payload := map[string]any{
		"paths":  []string{"W01/oil/a.jpg", "W01/oil/b.pdf"},
		"source": "s1",
	}
	body, _ := json.Marshal(payload)

	req := httptest.NewRequest(http.MethodPost, "/api/classify", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var out []struct {
		Path       string            `json:"path"`
		Prediction *model.Prediction `json:"prediction"`
		Error      string            `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.Len(t, out, 2)

	require.NotNil(t, out[0].Prediction)
	assert.Equal(t, model.MethodRule, out[0].Prediction.Method)
	assert.Equal(t, "W01", out[0].Prediction.Fields[model.FieldWellName])

	// Out-of-scope paths report an error entry instead of a prediction.
	assert.Nil(t, out[1].Prediction)
	assert.Contains(t, out[1].Error, "out of scope")
}

func TestRouter_Classify_BadRequests(t *testing.T) {
	hybrid, rs, st := testRouterDeps(t)
	r := buildRouter(hybrid, rs, st, 100, 100)

	req := httptest.NewRequest(http.MethodPost, "/api/classify", bytes.NewReader([]byte("not json")))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/classify", bytes.NewReader([]byte(`{"paths":[]}`)))
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "paths is required")
}

func TestRouter_Parse(t *testing.T) {
	hybrid, rs, st := testRouterDeps(t)
	r := buildRouter(hybrid, rs, st, 100, 100)

	body, _ := json.Marshal(map[string]any{"paths": []string{"BZ26-6井/荧光扫描/岩屑_3025.5m.jpg"}})
	req := httptest.NewRequest(http.MethodPost, "/api/parse", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var out []struct {
		Path     string `json:"path"`
		Metadata struct {
			WellName string `json:"well_name"`
			Category string `json:"category"`
		} `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "BZ26-6", out[0].Metadata.WellName)
	assert.Equal(t, "荧光扫描", out[0].Metadata.Category)
}

func TestRouter_Rules(t *testing.T) {
	hybrid, rs, st := testRouterDeps(t)
	r := buildRouter(hybrid, rs, st, 100, 100)

	req := httptest.NewRequest(http.MethodGet, "/api/rules/s1", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var rules []model.Rule
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rules))
	require.Len(t, rules, 1)
	assert.Equal(t, 0.9, rules[0].Confidence)

	req = httptest.NewRequest(http.MethodGet, "/api/rules/unknown", nil)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRouter_Stats(t *testing.T) {
	hybrid, rs, st := testRouterDeps(t)
	r := buildRouter(hybrid, rs, st, 100, 100)

	// No runs recorded yet.
	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	run, err := st.CreateRun(context.Background(), "listing.csv")
	require.NoError(t, err)
	require.NoError(t, st.CompleteRun(context.Background(), run.ID, &model.RunResult{Total: 3}))

	req = httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var got model.Run
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, run.ID, got.ID)
	require.NotNil(t, got.Result)
	assert.Equal(t, 3, got.Result.Total)
}

func TestRouter_RateLimit(t *testing.T) {
	hybrid, rs, st := testRouterDeps(t)
	r := buildRouter(hybrid, rs, st, 1, 1)

	first := httptest.NewRecorder()
	r.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	r.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}
