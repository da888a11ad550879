// Package analysis wires the graph engine to its inputs, persistence and
// status stream.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ritzau/depgraph/pkg/builder"
	"github.com/ritzau/depgraph/pkg/codec"
	"github.com/ritzau/depgraph/pkg/cycles"
	"github.com/ritzau/depgraph/pkg/deps"
	"github.com/ritzau/depgraph/pkg/finder"
	"github.com/ritzau/depgraph/pkg/graph"
	"github.com/ritzau/depgraph/pkg/logging"
	"github.com/ritzau/depgraph/pkg/model"
	"github.com/ritzau/depgraph/pkg/pubsub"
	"github.com/ritzau/depgraph/pkg/query"
	"github.com/ritzau/depgraph/pkg/rules"
	"github.com/ritzau/depgraph/pkg/state"
)

// Options configures a Runner. Zero values select defaults.
type Options struct {
	Workspace  string
	Workers    int
	CacheSize  int
	PathLimit  int
	Filter     builder.Filter
	Thresholds cycles.Thresholds

	// Rules seed the rule engine when the state store holds none
	Rules []rules.Spec

	Extractor builder.Extractor // defaults to deps.Auto over Workspace
	State     state.Store       // nil disables persistence
	Publisher pubsub.Publisher  // nil discards status events
}

// Runner owns the graph store and every engine reading it.
// Builds are serialized; queries read published snapshots and never wait.
type Runner struct {
	opts      Options
	store     *graph.Store
	builder   *builder.Builder
	cache     *builder.ExtractionCache
	annotator *cycles.Annotator
	rules     *rules.Engine
	query     *query.Engine
	state     state.Store
	pub       pubsub.Publisher
	extractor builder.Extractor
	inputs    *inputIndex
	log       *slog.Logger

	mu           sync.Mutex // held for the duration of a build
	needsRebuild atomic.Bool
	lastBuild    atomic.Pointer[builder.Report]
}

// NewRunner creates a runner over an empty graph
func NewRunner(opts Options) (*Runner, error) {
	if opts.CacheSize <= 0 {
		opts.CacheSize = builder.DefaultCacheSize
	}
	if opts.Thresholds.DepthCap <= 0 {
		opts.Thresholds.DepthCap = cycles.DefaultDepthCap
	}
	cache, err := builder.NewExtractionCache(opts.CacheSize)
	if err != nil {
		return nil, err
	}

	store := graph.NewStore()
	annotator := cycles.NewAnnotator()
	var queryOpts []query.Option
	if opts.PathLimit > 0 {
		queryOpts = append(queryOpts, query.WithPathLimit(opts.PathLimit))
	}

	r := &Runner{
		opts:      opts,
		store:     store,
		builder:   builder.New(store, builder.WithFilter(opts.Filter)),
		cache:     cache,
		annotator: annotator,
		rules:     rules.NewEngine(store),
		query:     query.NewEngine(store, annotator, queryOpts...),
		state:     opts.State,
		pub:       opts.Publisher,
		extractor: opts.Extractor,
		inputs:    newInputIndex(),
		log:       logging.New("analysis"),
	}
	if r.pub == nil {
		r.pub = pubsub.Nop{}
	}
	if r.extractor == nil {
		r.extractor = deps.Auto{DFile: deps.DFileExtractor{Workspace: opts.Workspace}}
	}
	if err := r.rules.SetRules(opts.Rules); err != nil {
		return nil, fmt.Errorf("configured rules: %w", err)
	}
	r.needsRebuild.Store(true)
	return r, nil
}

func (r *Runner) Store() *graph.Store         { return r.store }
func (r *Runner) Query() *query.Engine        { return r.query }
func (r *Runner) Rules() *rules.Engine        { return r.rules }
func (r *Runner) Publisher() pubsub.Publisher { return r.pub }

// NeedsRebuild reports whether the graph has never been built or restored
func (r *Runner) NeedsRebuild() bool {
	return r.needsRebuild.Load()
}

// LastBuild returns the report of the most recent committed build, or nil
func (r *Runner) LastBuild() *builder.Report {
	return r.lastBuild.Load()
}

// Load restores the persisted graph and rules. A malformed graph is logged
// and the runner starts empty with NeedsRebuild set.
func (r *Runner) Load(ctx context.Context) error {
	if r.state == nil {
		return nil
	}

	nodes, err := r.state.LoadGraph(ctx)
	switch {
	case err == nil:
		snap := r.store.Replace(nodes)
		r.needsRebuild.Store(false)
		r.log.Info("Restored graph", "nodes", snap.Len(), "edges", snap.EdgeCount())
	case errors.Is(err, state.ErrNotFound):
		r.log.Info("No saved graph, a build is required")
	case errors.Is(err, codec.ErrMalformedState):
		r.log.Warn("Saved graph is malformed, starting empty", "error", err)
	default:
		return fmt.Errorf("load graph: %w", err)
	}

	specs, err := r.state.LoadRules(ctx)
	switch {
	case err == nil:
		if err := r.rules.SetRules(specs); err != nil {
			r.log.Warn("Saved rules are invalid, keeping configured rules", "error", err)
		} else {
			r.log.Info("Restored rules", "count", len(specs))
		}
	case errors.Is(err, state.ErrNotFound):
	default:
		return fmt.Errorf("load rules: %w", err)
	}

	r.publishStatus(pubsub.EventLoaded, "")
	return nil
}

// BuildRequest describes one build
type BuildRequest struct {
	Mode   builder.Mode
	Inputs []string    // nil discovers every input under the workspace
	Scope  model.Scope // full builds only, nil means the whole graph
	Reason string
}

// Handle tracks a submitted build
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
	report *builder.Report
	err    error
}

// Cancel requests cancellation. The published graph is left untouched.
func (h *Handle) Cancel() { h.cancel() }

// Done is closed when the build has committed, failed or been cancelled
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the build finishes
func (h *Handle) Wait() (*builder.Report, error) {
	<-h.done
	return h.report, h.err
}

// Submit starts a build in the background. It queues behind any build
// already running.
func (r *Runner) Submit(ctx context.Context, req BuildRequest) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(h.done)
		defer cancel()
		h.report, h.err = r.Run(ctx, req)
	}()
	return h
}

// Run executes a build and blocks until it commits or fails. A committed
// build is saved and announced on the graph status topic.
func (r *Runner) Run(ctx context.Context, req BuildRequest) (*builder.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if req.Mode == "" {
		req.Mode = builder.ModeFull
	}
	inputs := req.Inputs
	discovery := inputs == nil

	// An add-scope build replaces what its inputs produced before, so a
	// rewritten input that drops a file removes that node
	var stale pathScope
	if req.Mode == builder.ModeAdd {
		scope, known := r.inputs.staleScope(inputs)
		switch {
		case known:
			stale = scope
		case slices.ContainsFunc(inputs, isMultiRecord):
			r.log.Info("Input ownership unknown, escalating to a full build", "inputs", len(inputs))
			req.Mode = builder.ModeFull
			req.Scope = nil
			discovery = true
		}
	}

	if discovery {
		found, err := finder.FindInputs(r.opts.Workspace)
		if err != nil {
			r.publishStatus(pubsub.EventFailed, err.Error())
			return nil, fmt.Errorf("discover inputs: %w", err)
		}
		for _, in := range inputs {
			if !slices.Contains(found, in) {
				found = append(found, in)
			}
		}
		inputs = found
	}

	r.log.Info("Starting build", "mode", string(req.Mode), "inputs", len(inputs), "reason", req.Reason)
	r.publishStatus(pubsub.EventBuilding, req.Reason)
	r.publish(pubsub.BuildTopic, pubsub.EventBuilding, pubsub.BuildProgress{Mode: string(req.Mode), Inputs: len(inputs)})

	recorder := newRecordingExtractor(r.extractor)
	results := builder.Collect(ctx, recorder, inputs, r.cache, r.opts.Workers)
	var (
		report *builder.Report
		err    error
	)
	switch {
	case req.Mode == builder.ModeAdd && len(stale) > 0:
		report, err = r.builder.FullBuild(ctx, stale, results)
		if report != nil {
			report.Mode = builder.ModeAdd
		}
	case req.Mode == builder.ModeAdd:
		report, err = r.builder.AddScope(ctx, results)
	default:
		report, err = r.builder.FullBuild(ctx, req.Scope, results)
	}
	if err != nil {
		event := pubsub.EventFailed
		if errors.Is(err, builder.ErrBuildCancelled) {
			event = pubsub.EventCancelled
		}
		r.publishStatus(event, err.Error())
		r.publish(pubsub.BuildTopic, event, pubsub.BuildProgress{Mode: string(req.Mode), Inputs: len(inputs), Error: err.Error()})
		return nil, err
	}

	r.inputs.commit(inputs, recorder.recorded(), discovery && req.Scope == nil)
	r.needsRebuild.Store(false)
	r.lastBuild.Store(report)

	if r.state != nil {
		if err := r.state.SaveGraph(ctx, r.store.Snapshot()); err != nil {
			// The build is published; only durability is lost
			r.log.Error("Failed to save graph", "error", err)
		}
	}

	r.publishStatus(pubsub.EventReady, req.Reason)
	r.publish(pubsub.BuildTopic, pubsub.EventReady, pubsub.BuildProgress{
		BuildID: report.BuildID,
		Mode:    string(req.Mode),
		Inputs:  len(inputs),
	})
	return report, nil
}

// InvalidateInputs drops cached extractions for the given inputs
func (r *Runner) InvalidateInputs(inputs []string) {
	for _, in := range inputs {
		r.cache.Invalidate(in)
	}
}

// isMultiRecord reports whether one input can describe several files
func isMultiRecord(input string) bool {
	return strings.HasSuffix(input, deps.JSONLSuffix)
}

// AddRule adds a rule for an existing direct edge and persists the rule list
func (r *Runner) AddRule(ctx context.Context, source, target string, deny bool) (bool, error) {
	added, err := r.rules.AddRule(source, target, deny)
	if err != nil || !added {
		return added, err
	}
	if err := r.saveRules(ctx); err != nil {
		return true, err
	}
	r.publishStatus(pubsub.EventRules, "")
	return true, nil
}

// SetRules replaces the rule list and persists it
func (r *Runner) SetRules(ctx context.Context, specs []rules.Spec) error {
	if err := r.rules.SetRules(specs); err != nil {
		return err
	}
	if err := r.saveRules(ctx); err != nil {
		return err
	}
	r.publishStatus(pubsub.EventRules, "")
	return nil
}

func (r *Runner) saveRules(ctx context.Context) error {
	if r.state == nil {
		return nil
	}
	if err := r.state.SaveRules(ctx, r.rules.Specs()); err != nil {
		return fmt.Errorf("save rules: %w", err)
	}
	return nil
}

// Annotations annotates the current snapshot. Empty roots select the
// components without incoming edges.
func (r *Runner) Annotations(roots []string) map[string]model.Annotation {
	return r.annotator.Annotate(r.store.Snapshot(), roots, r.opts.Thresholds)
}

// Blockers ranks the nodes that alone keep yellow nodes from moving
func (r *Runner) Blockers(roots []string) []cycles.Blocker {
	snap := r.store.Snapshot()
	annotations := r.annotator.Annotate(snap, roots, r.opts.Thresholds)
	colors := make(map[string]model.Color, len(annotations))
	for path, a := range annotations {
		colors[path] = a.Color
	}
	return cycles.Blockers(snap, colors)
}

// Cycles lists the cyclic components of the current snapshot
func (r *Runner) Cycles() []cycles.FileCycle {
	return r.annotator.Result(r.store.Snapshot()).Cycles()
}

// Summary describes the published graph
type Summary struct {
	Generation   uint64          `json:"generation"`
	Nodes        int             `json:"nodes"`
	Edges        int             `json:"edges"`
	Cycles       int             `json:"cycles"`
	Rules        int             `json:"rules"`
	RulesVersion uint64          `json:"rulesVersion"`
	Illegal      int             `json:"illegal"`
	NeedsRebuild bool            `json:"needsRebuild"`
	LastBuild    *builder.Report `json:"lastBuild,omitempty"`
}

// Summary computes counts for the current snapshot
func (r *Runner) Summary() Summary {
	snap := r.store.Snapshot()
	return Summary{
		Generation:   snap.Generation(),
		Nodes:        snap.Len(),
		Edges:        snap.EdgeCount(),
		Cycles:       r.annotator.Result(snap).CycleCount(),
		Rules:        len(r.rules.Rules()),
		RulesVersion: r.rules.Version(),
		Illegal:      r.rules.Classify().Count(),
		NeedsRebuild: r.NeedsRebuild(),
		LastBuild:    r.LastBuild(),
	}
}

// Close releases the state store
func (r *Runner) Close() error {
	if r.state == nil {
		return nil
	}
	return r.state.Close()
}

func (r *Runner) publishStatus(eventType, message string) {
	snap := r.store.Snapshot()
	r.publish(pubsub.GraphStatusTopic, eventType, pubsub.GraphStatus{
		Generation:   snap.Generation(),
		Nodes:        snap.Len(),
		Edges:        snap.EdgeCount(),
		Cycles:       r.annotator.Result(snap).CycleCount(),
		RulesVersion: r.rules.Version(),
		NeedsRebuild: r.NeedsRebuild(),
		Message:      message,
	})
}

func (r *Runner) publish(topic, eventType string, data any) {
	if err := r.pub.Publish(topic, eventType, data); err != nil && !errors.Is(err, pubsub.ErrClosed) {
		r.log.Warn("Failed to publish event", "topic", topic, "type", eventType, "error", err)
	}
}
