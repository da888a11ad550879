// Package builder applies extraction results to the graph store.
//
// A build stages every change in one transaction and publishes it on
// success, so readers observe either the previous graph or the complete new
// one. Cancelled builds leave the published graph untouched.
package builder

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ritzau/depgraph/pkg/graph"
	"github.com/ritzau/depgraph/pkg/logging"
	"github.com/ritzau/depgraph/pkg/metrics"
	"github.com/ritzau/depgraph/pkg/model"
)

// ErrBuildCancelled wraps the context error of a cancelled build
var ErrBuildCancelled = errors.New("build cancelled")

// DefaultCheckInterval is how many results are applied between cancellation checks
const DefaultCheckInterval = 64

// Mode tells how a build treats nodes it does not revisit
type Mode string

const (
	ModeFull Mode = "full" // scope is replaced
	ModeAdd  Mode = "add"  // visited files are upserted, nothing else changes
)

// Report summarizes a committed build
type Report struct {
	BuildID    string        `json:"buildId"`
	Mode       Mode          `json:"mode"`
	Visited    int           `json:"visited"`
	Failed     int           `json:"failed"`
	Filtered   int           `json:"filtered"`
	Removed    int           `json:"removed"`
	Generation uint64        `json:"generation"`
	Duration   time.Duration `json:"duration"`
}

// Builder turns extraction results into graph mutations
type Builder struct {
	store         *graph.Store
	filter        Filter
	checkInterval int
	log           *slog.Logger
}

// Option configures a Builder
type Option func(*Builder)

// WithFilter drops excluded files and edges before they reach the store
func WithFilter(f Filter) Option {
	return func(b *Builder) { b.filter = f }
}

// WithCheckInterval sets how often cancellation is checked
func WithCheckInterval(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.checkInterval = n
		}
	}
}

// New creates a builder writing to store
func New(store *graph.Store, opts ...Option) *Builder {
	b := &Builder{
		store:         store,
		checkInterval: DefaultCheckInterval,
		log:           logging.New("builder"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// FullBuild replaces every node inside scope with the visited files.
// Files in scope that are not revisited disappear; nodes outside scope are
// kept. Running it twice over the same results yields the same graph.
func (b *Builder) FullBuild(ctx context.Context, scope model.Scope, results iter.Seq2[*model.Extraction, error]) (*Report, error) {
	if scope == nil {
		scope = model.Everything()
	}
	return b.run(ctx, ModeFull, scope, results)
}

// AddScope upserts the visited files and leaves every other node alone
func (b *Builder) AddScope(ctx context.Context, results iter.Seq2[*model.Extraction, error]) (*Report, error) {
	return b.run(ctx, ModeAdd, nil, results)
}

func (b *Builder) run(ctx context.Context, mode Mode, scope model.Scope, results iter.Seq2[*model.Extraction, error]) (report *Report, err error) {
	start := time.Now()
	report = &Report{BuildID: uuid.New().String(), Mode: mode}
	log := b.log.With("buildID", report.BuildID, "mode", string(mode))
	log.Info("build started")

	defer func() {
		outcome := "committed"
		if err != nil {
			outcome = "cancelled"
		}
		metrics.BuildsTotal.WithLabelValues(string(mode), outcome).Inc()
		metrics.BuildDuration.WithLabelValues(string(mode)).Observe(time.Since(start).Seconds())
	}()

	txn := b.store.Begin()
	committed := false
	defer func() {
		if !committed {
			txn.Discard()
		}
	}()

	var removed map[string]bool
	if mode == ModeFull {
		paths := txn.RemoveScope(scope)
		removed = make(map[string]bool, len(paths))
		for _, p := range paths {
			removed[p] = true
		}
	}

	count := 0
	for ext, extErr := range results {
		count++
		if count%b.checkInterval == 0 {
			if err := ctx.Err(); err != nil {
				log.Warn("build cancelled", "applied", count-1)
				return nil, fmt.Errorf("%w: %w", ErrBuildCancelled, err)
			}
		}

		if extErr != nil {
			report.Failed++
			metrics.ExtractionFailures.Inc()
			if ext == nil || ext.Path == "" {
				log.Warn("extraction failed", "error", extErr)
				continue
			}
			log.Warn("extraction failed, keeping file without edges", "path", ext.Path, "error", extErr)
			ext = &model.Extraction{Path: ext.Path, Module: ext.Module, Classifier: ext.Classifier, Size: ext.Size}
		}
		if ext == nil || ext.Path == "" {
			continue
		}

		node, keep := b.filter.Apply(ext)
		if !keep {
			report.Filtered++
			continue
		}
		txn.UpsertNode(node)
		delete(removed, node.Path)
		report.Visited++
	}

	if err := ctx.Err(); err != nil {
		log.Warn("build cancelled", "applied", count)
		return nil, fmt.Errorf("%w: %w", ErrBuildCancelled, err)
	}

	snap, err := txn.Commit()
	if err != nil {
		return nil, err
	}
	committed = true

	report.Removed = len(removed)
	report.Generation = snap.Generation()
	report.Duration = time.Since(start)

	metrics.GraphGeneration.Set(float64(snap.Generation()))
	metrics.GraphNodes.Set(float64(snap.Len()))
	metrics.GraphEdges.Set(float64(snap.EdgeCount()))

	log.Info("build committed",
		"visited", report.Visited,
		"failed", report.Failed,
		"filtered", report.Filtered,
		"removed", report.Removed,
		"generation", report.Generation,
		"durationMs", report.Duration.Milliseconds())
	return report, nil
}

// Results adapts a slice of extractions to the iterator accepted by builds
func Results(exts []*model.Extraction) iter.Seq2[*model.Extraction, error] {
	return func(yield func(*model.Extraction, error) bool) {
		for _, e := range exts {
			if !yield(e, nil) {
				return
			}
		}
	}
}
