package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ocrlab/ocreval/internal/config"
	"github.com/ocrlab/ocreval/internal/engine"
	"github.com/ocrlab/ocreval/internal/metrics"
	"github.com/ocrlab/ocreval/internal/model"
	"github.com/ocrlab/ocreval/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the evaluation API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		engines, err := engine.FromConfig(cfg.Engines)
		if err != nil {
			zap.L().Warn("no OCR engines available, /api/compare disabled", zap.Error(err))
			engines = nil
		}

		srv := newServer(st, engines, cfg.Server, cfg.Limits)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		httpSrv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: srv.routes(),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			httpSrv.Shutdown(ctx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// server bundles the HTTP handler dependencies.
type server struct {
	store   store.Store
	engines []engine.Engine
	cfg     config.ServerConfig
	limits  config.LimitsConfig
	limiter *rate.Limiter
}

func newServer(st store.Store, engines []engine.Engine, cfg config.ServerConfig, limits config.LimitsConfig) *server {
	s := &server{
		store:   st,
		engines: engines,
		cfg:     cfg,
		limits:  limits,
	}
	if cfg.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	}
	return s
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
	r.Use(s.rateLimit)

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/evaluate", s.handleEvaluate)
		r.Post("/compare", s.handleCompare)
		r.Get("/evaluations", s.handleListEvaluations)
		r.Get("/evaluations/{id}", s.handleGetEvaluation)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
		r.Get("/summary", s.handleSummary)
	})

	return r
}

// rateLimit applies a global token-bucket limit to all requests.
func (s *server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type evaluateRequest struct {
	GroundTruth string `json:"ground_truth"`
	Predicted   string `json:"predicted"`
	Label       string `json:"label,omitempty"`
	Save        bool   `json:"save,omitempty"`
}

type evaluateResponse struct {
	ID      string         `json:"id,omitempty"`
	Metrics metrics.Result `json:"metrics"`
	Rating  metrics.Tier   `json:"rating"`
}

func (s *server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.checkTextLimit(req.GroundTruth, req.Predicted); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	m := metrics.Detailed(req.GroundTruth, req.Predicted)
	resp := evaluateResponse{
		Metrics: m,
		Rating:  metrics.Rating(m.CharacterAccuracy),
	}

	if req.Save {
		created, err := s.store.CreateEvaluation(r.Context(), model.Evaluation{
			Source:      model.SourceManual,
			Label:       req.Label,
			GroundTruth: req.GroundTruth,
			Predicted:   req.Predicted,
			Metrics:     m,
			Tier:        resp.Rating,
		})
		if err != nil {
			zap.L().Error("save evaluation failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "save failed")
			return
		}
		resp.ID = created.ID
	}

	writeJSON(w, http.StatusOK, resp)
}

// compareCandidate is one pre-recognized OCR output submitted for ranking.
// Success is optional: when absent, a candidate that carries text counts as
// successful; an explicit false marks a failed engine even with partial text.
type compareCandidate struct {
	Engine  string `json:"engine"`
	Text    string `json:"text"`
	Success *bool  `json:"success,omitempty"`
	Error   string `json:"error,omitempty"`
}

type compareRequest struct {
	GroundTruth string             `json:"ground_truth"`
	Candidates  []compareCandidate `json:"candidates"`
}

// handleCompare ranks OCR candidates against a ground truth. A JSON body
// carries pre-recognized candidate texts directly; a multipart form carries
// an "image" file that every configured engine is run against first. Either
// way the ranked run is persisted and returned.
func (s *server) handleCompare(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		s.handleCompareTexts(w, r)
		return
	}

	if len(s.engines) == 0 {
		writeError(w, http.StatusServiceUnavailable, "no OCR engines configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	groundTruth := r.FormValue("ground_truth")
	if err := s.checkTextLimit(groundTruth); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "image file is required")
		return
	}
	defer file.Close() //nolint:errcheck

	// Engines take file paths, so spool the upload to a temp file.
	tmp, err := os.CreateTemp("", "ocreval-*"+filepath.Ext(header.Filename))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "spool upload")
		return
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck
	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close() //nolint:errcheck
		writeError(w, http.StatusInternalServerError, "spool upload")
		return
	}
	tmp.Close() //nolint:errcheck

	results := engine.RunAll(r.Context(), s.engines, tmp.Name())
	ranked := metrics.CompareEngines(groundTruth, results)

	created, err := s.store.CreateComparison(r.Context(), model.ComparisonRun{
		GroundTruth: groundTruth,
		Image:       header.Filename,
		Entries:     ranked,
	})
	if err != nil {
		zap.L().Error("save comparison failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "save failed")
		return
	}

	writeJSON(w, http.StatusOK, created)
}

func (s *server) handleCompareTexts(w http.ResponseWriter, r *http.Request) {
	var req compareRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Candidates) == 0 {
		writeError(w, http.StatusBadRequest, "candidates are required")
		return
	}

	texts := []string{req.GroundTruth}
	results := make([]metrics.EngineResult, 0, len(req.Candidates))
	for _, c := range req.Candidates {
		ok := c.Text != ""
		if c.Success != nil {
			ok = *c.Success
		}
		results = append(results, metrics.EngineResult{Engine: c.Engine, Text: c.Text, Success: ok, Error: c.Error})
		texts = append(texts, c.Text)
	}
	if err := s.checkTextLimit(texts...); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ranked := metrics.CompareEngines(req.GroundTruth, results)

	created, err := s.store.CreateComparison(r.Context(), model.ComparisonRun{
		GroundTruth: req.GroundTruth,
		Entries:     ranked,
	})
	if err != nil {
		zap.L().Error("save comparison failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "save failed")
		return
	}

	writeJSON(w, http.StatusOK, created)
}

func (s *server) handleListEvaluations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 {
		limit = 50 // the API stays paged; unbounded listing is a CLI export concern
	}
	offset, _ := strconv.Atoi(q.Get("offset"))

	evals, err := s.store.ListEvaluations(r.Context(), store.EvalFilter{
		Source: model.EvalSource(q.Get("source")),
		Engine: q.Get("engine"),
		Tier:   metrics.Tier(q.Get("tier")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		zap.L().Error("list evaluations failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list failed")
		return
	}

	writeJSON(w, http.StatusOK, evals)
}

func (s *server) handleGetEvaluation(w http.ResponseWriter, r *http.Request) {
	ev, err := s.store.GetEvaluation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "evaluation not found")
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit == 0 {
		limit = 50
	}

	runs, err := s.store.ListComparisons(r.Context(), limit)
	if err != nil {
		zap.L().Error("list comparisons failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list failed")
		return
	}

	writeJSON(w, http.StatusOK, runs)
}

func (s *server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.GetComparison(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "comparison run not found")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.store.Summarize(r.Context())
	if err != nil {
		zap.L().Error("summarize failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "summary failed")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *server) checkTextLimit(texts ...string) error {
	if s.limits.MaxTextLen <= 0 {
		return nil
	}
	for _, t := range texts {
		if n := utf8.RuneCountInString(t); n > s.limits.MaxTextLen {
			return eris.Errorf("input of %d characters exceeds the %d character limit", n, s.limits.MaxTextLen)
		}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && !strings.Contains(err.Error(), "broken pipe") {
		zap.L().Warn("write response failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
