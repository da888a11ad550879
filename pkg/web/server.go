// Package web exposes the dependency graph over a JSON HTTP API.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ritzau/depgraph/pkg/analysis"
	"github.com/ritzau/depgraph/pkg/builder"
	"github.com/ritzau/depgraph/pkg/logging"
	"github.com/ritzau/depgraph/pkg/metrics"
	"github.com/ritzau/depgraph/pkg/model"
	"github.com/ritzau/depgraph/pkg/pubsub"
	"github.com/ritzau/depgraph/pkg/rules"
)

// Server serves queries against the runner's published graph
type Server struct {
	router *mux.Router
	runner *analysis.Runner
	log    *slog.Logger

	buildMu sync.Mutex
	build   *analysis.Handle // most recently submitted build
}

// NewServer creates the API server for runner
func NewServer(runner *analysis.Runner) *Server {
	s := &Server{
		router: mux.NewRouter(),
		runner: runner,
		log:    logging.New("web"),
	}
	s.setupRoutes()
	return s
}

// Handler returns the routed handler with request logging and metrics
func (s *Server) Handler() http.Handler {
	return promhttp.InstrumentHandlerCounter(metrics.HTTPRequests, logging.RequestIDMiddleware(s.router))
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/api/subscribe/{topic}", s.handleSubscribe).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/deps/{direction:forward|backward}", s.handleDeps).Methods("GET")
	api.HandleFunc("/deps/cycle", s.handleCycleDeps).Methods("GET")
	api.HandleFunc("/paths", s.handlePaths).Methods("POST")
	api.HandleFunc("/cycles", s.handleCycles).Methods("GET")
	api.HandleFunc("/classify", s.handleClassify).Methods("GET")
	api.HandleFunc("/rules", s.handleRules).Methods("GET")
	api.HandleFunc("/rules", s.handleAddRule).Methods("POST")
	api.HandleFunc("/rules", s.handleSetRules).Methods("PUT")
	api.HandleFunc("/annotations", s.handleAnnotations).Methods("GET")
	api.HandleFunc("/blockers", s.handleBlockers).Methods("GET")
	api.HandleFunc("/dirs", s.handleDirs).Methods("GET")
	api.HandleFunc("/modules/cross", s.handleCrossModule).Methods("GET")
	api.HandleFunc("/build", s.handleBuild).Methods("POST")
	api.HandleFunc("/build", s.handleCancelBuild).Methods("DELETE")

	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.WarnContext(r.Context(), "failed to write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	s.writeJSON(w, r, status, map[string]string{"error": err.Error()})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, s.runner.Summary())
}

// DepsResponse is returned by the dependency queries
type DepsResponse struct {
	Path   string   `json:"path"`
	Border int      `json:"border"`
	Deps   []string `json:"deps"`
}

func (s *Server) handleDeps(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		s.writeError(w, r, http.StatusBadRequest, errors.New("missing path"))
		return
	}
	border, err := borderParam(r)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	q := s.runner.Query()
	var result []string
	if mux.Vars(r)["direction"] == "forward" {
		result = q.ForwardDeps(path, border)
	} else {
		result = q.BackwardDeps(path, border)
	}
	s.writeJSON(w, r, http.StatusOK, DepsResponse{Path: path, Border: border, Deps: nonNil(result)})
}

func (s *Server) handleCycleDeps(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		s.writeError(w, r, http.StatusBadRequest, errors.New("missing path"))
		return
	}
	s.writeJSON(w, r, http.StatusOK, DepsResponse{Path: path, Deps: nonNil(s.runner.Query().CycleDeps(path))})
}

// PathsRequest selects the endpoints of a path search
type PathsRequest struct {
	From   []string `json:"from"`
	To     []string `json:"to"`
	Border int      `json:"border"`
}

func (s *Server) handlePaths(w http.ResponseWriter, r *http.Request) {
	var req PathsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
		return
	}
	result := s.runner.Query().FindPaths(req.From, req.To, req.Border)
	if result.Paths == nil {
		result.Paths = [][]string{}
	}
	s.writeJSON(w, r, http.StatusOK, result)
}

func (s *Server) handleCycles(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, s.runner.Cycles())
}

// ClassifyResponse lists the illegal edges and the rules they violate
type ClassifyResponse struct {
	Count      int                          `json:"count"`
	Illegal    []model.Edge                 `json:"illegal"`
	Violations map[string][]rules.Violation `json:"violations"`
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	c := s.runner.Rules().Classify()
	illegal := c.Illegal()
	if illegal == nil {
		illegal = []model.Edge{}
	}
	s.writeJSON(w, r, http.StatusOK, ClassifyResponse{Count: c.Count(), Illegal: illegal, Violations: c})
}

func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, s.runner.Rules().Specs())
}

func (s *Server) handleAddRule(w http.ResponseWriter, r *http.Request) {
	var spec rules.Spec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
		return
	}
	added, err := s.runner.AddRule(r.Context(), spec.Source, spec.Target, spec.Deny)
	switch {
	case errors.Is(err, rules.ErrInvalidPattern):
		s.writeError(w, r, http.StatusBadRequest, err)
	case err != nil:
		s.writeError(w, r, http.StatusInternalServerError, err)
	case !added:
		s.writeJSON(w, r, http.StatusConflict, map[string]bool{"added": false})
	default:
		s.writeJSON(w, r, http.StatusCreated, map[string]bool{"added": true})
	}
}

func (s *Server) handleSetRules(w http.ResponseWriter, r *http.Request) {
	var specs []rules.Spec
	if err := json.NewDecoder(r.Body).Decode(&specs); err != nil {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
		return
	}
	if err := s.runner.SetRules(r.Context(), specs); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, rules.ErrInvalidPattern) {
			status = http.StatusBadRequest
		}
		s.writeError(w, r, status, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, s.runner.Rules().Specs())
}

func (s *Server) handleAnnotations(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, s.runner.Annotations(r.URL.Query()["root"]))
}

func (s *Server) handleBlockers(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, s.runner.Blockers(r.URL.Query()["root"]))
}

func (s *Server) handleDirs(w http.ResponseWriter, r *http.Request) {
	annotations := s.runner.Annotations(r.URL.Query()["root"])
	s.writeJSON(w, r, http.StatusOK, analysis.RollupDirs(s.runner.Store().Snapshot(), annotations))
}

func (s *Server) handleCrossModule(w http.ResponseWriter, r *http.Request) {
	deps := analysis.FindCrossModuleDeps(s.runner.Store().Snapshot())
	if deps == nil {
		deps = []analysis.CrossModuleDep{}
	}
	s.writeJSON(w, r, http.StatusOK, deps)
}

// BuildRequest starts a build. Without inputs the workspace is scanned.
type BuildRequest struct {
	Mode   builder.Mode `json:"mode"`
	Inputs []string     `json:"inputs,omitempty"`
	Reason string       `json:"reason,omitempty"`
	Wait   bool         `json:"wait,omitempty"`
}

func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	var req BuildRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
			return
		}
	}
	switch req.Mode {
	case "", builder.ModeFull, builder.ModeAdd:
	default:
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("unknown build mode %q", req.Mode))
		return
	}
	if req.Reason == "" {
		req.Reason = "api request"
	}

	// Builds outlive the request unless the caller waits for them
	ctx := context.WithoutCancel(r.Context())
	if req.Wait {
		ctx = r.Context()
	}
	h := s.runner.Submit(ctx, analysis.BuildRequest{Mode: req.Mode, Inputs: req.Inputs, Reason: req.Reason})
	s.buildMu.Lock()
	s.build = h
	s.buildMu.Unlock()

	if !req.Wait {
		s.writeJSON(w, r, http.StatusAccepted, map[string]string{"status": "accepted"})
		return
	}
	report, err := h.Wait()
	switch {
	case errors.Is(err, builder.ErrBuildCancelled):
		s.writeError(w, r, http.StatusConflict, err)
	case err != nil:
		s.writeError(w, r, http.StatusInternalServerError, err)
	default:
		s.writeJSON(w, r, http.StatusOK, report)
	}
}

func (s *Server) handleCancelBuild(w http.ResponseWriter, r *http.Request) {
	s.buildMu.Lock()
	h := s.build
	s.buildMu.Unlock()

	if h == nil {
		s.writeError(w, r, http.StatusNotFound, errors.New("no build submitted"))
		return
	}
	h.Cancel()
	s.writeJSON(w, r, http.StatusAccepted, map[string]string{"status": "cancelling"})
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	topic := mux.Vars(r)["topic"]
	if topic != pubsub.GraphStatusTopic && topic != pubsub.BuildTopic {
		http.Error(w, "unknown topic", http.StatusNotFound)
		return
	}

	sub, err := s.runner.Publisher().Subscribe(r.Context(), topic)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	flusher, _ := w.(http.Flusher)
	// Initial comment establishes the stream for clients that wait for bytes
	fmt.Fprintf(w, ": connected\n\n")
	if flusher != nil {
		flusher.Flush()
	}

	for event := range sub.Events() {
		if err := pubsub.WriteSSE(w, event); err != nil {
			logging.DebugContext(r.Context(), "SSE client went away", "topic", topic, "error", err)
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func borderParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("border")
	if raw == "" {
		return 0, nil
	}
	border, err := strconv.Atoi(raw)
	if err != nil || border < -1 {
		return 0, fmt.Errorf("invalid border %q", raw)
	}
	return border, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Starting web server", "url", fmt.Sprintf("http://localhost:%d", port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.log.Info("Shutting down web server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
