package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rigsight/wellscan-cli/internal/classify"
	"github.com/rigsight/wellscan-cli/internal/extract"
	"github.com/rigsight/wellscan-cli/internal/model"
	"github.com/rigsight/wellscan-cli/internal/ruleset"
	"github.com/rigsight/wellscan-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the classification HTTP service",
	Long:  "Serves classification, parsing, rules and run stats over HTTP using the stored rule set. Optionally trains statistical models from a --train listing at startup.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		rs, err := loadStoredRules(ctx, env.Store)
		if err != nil {
			return eris.Wrap(err, "load rules")
		}
		hybrid, err := buildClassifier(ctx, env, rs)
		if err != nil {
			return err
		}

		r := buildRouter(hybrid, rs, env.Store, cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)

		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		if servePort != 0 {
			addr = fmt.Sprintf(":%d", servePort)
		}
		srv := &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.String("addr", addr), zap.Int("rules", rs.Len()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

// buildRouter assembles the HTTP surface: health, classification,
// parsing, rule inspection and run stats.
func buildRouter(hybrid *classify.Hybrid, rs *ruleset.RuleSet, st store.Store, rps float64, burst int) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
	r.Use(rateLimit(rps, burst))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/api/classify", handleClassify(hybrid))
	r.Post("/api/parse", handleParse())
	r.Get("/api/rules/{source}", handleRules(rs))
	r.Get("/api/stats", handleStats(st))

	return r
}

// rateLimit applies a global token-bucket limit to every request.
func rateLimit(rps float64, burst int) func(http.Handler) http.Handler {
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func handleClassify(hybrid *classify.Hybrid) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Paths  []string `json:"paths"`
			Source string   `json:"source"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if len(req.Paths) == 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "paths is required"})
			return
		}
		if req.Source == "" {
			req.Source = "default"
		}

		type entry struct {
			Path       string            `json:"path"`
			Prediction *model.Prediction `json:"prediction,omitempty"`
			Error      string            `json:"error,omitempty"`
		}
		out := make([]entry, 0, len(req.Paths))
		for _, path := range req.Paths {
			rec := model.NewFileRecord(path, model.Source(req.Source), model.Labels{})
			pred, err := hybrid.Classify(rec)
			if err != nil {
				out = append(out, entry{Path: path, Error: err.Error()})
				continue
			}
			out = append(out, entry{Path: path, Prediction: &pred})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func handleParse() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Paths []string `json:"paths"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		type entry struct {
			Path     string           `json:"path"`
			Metadata extract.Metadata `json:"metadata"`
		}
		out := make([]entry, 0, len(req.Paths))
		for _, path := range req.Paths {
			out = append(out, entry{Path: path, Metadata: extract.Parse(path)})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func handleRules(rs *ruleset.RuleSet) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		source := model.Source(chi.URLParam(r, "source"))
		rules := rs.Rules(source)
		if len(rules) == 0 {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": fmt.Sprintf("no rules for source %q", source)})
			return
		}
		writeJSON(w, http.StatusOK, rules)
	}
}

func handleStats(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runs, err := st.ListRuns(r.Context(), store.RunFilter{Limit: 1})
		if err != nil {
			zap.L().Error("stats query failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "stats query failed"})
			return
		}
		if len(runs) == 0 {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no runs recorded"})
			return
		}
		writeJSON(w, http.StatusOK, runs[0])
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().StringVar(&classifyTrainFile, "train", "", "labeled listing to train the statistical model from")
	rootCmd.AddCommand(serveCmd)
}
