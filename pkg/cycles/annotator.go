package cycles

import (
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/ritzau/depgraph/pkg/graph"
	"github.com/ritzau/depgraph/pkg/logging"
	"github.com/ritzau/depgraph/pkg/metrics"
	"github.com/ritzau/depgraph/pkg/model"
)

// Annotator caches the component analysis of the most recent snapshot.
// A result is reused while the snapshot generation matches; concurrent misses
// for the same generation share one computation.
type Annotator struct {
	mu     sync.RWMutex
	latest *Result
	group  singleflight.Group
}

// NewAnnotator creates an annotator with an empty cache
func NewAnnotator() *Annotator {
	return &Annotator{}
}

// Result returns the analysis for snap, computing it on a cache miss
func (a *Annotator) Result(snap *graph.Snapshot) *Result {
	a.mu.RLock()
	latest := a.latest
	a.mu.RUnlock()
	if latest != nil && latest.generation == snap.Generation() {
		return latest
	}

	key := strconv.FormatUint(snap.Generation(), 10)
	v, _, _ := a.group.Do(key, func() (any, error) {
		metrics.CycleAnalyses.Inc()
		r := Analyze(snap)
		logging.Debug("analyzed components",
			"generation", r.generation,
			"nodes", r.view.Len(),
			"cycles", r.CycleCount())

		a.mu.Lock()
		if a.latest == nil || a.latest.generation <= r.generation {
			a.latest = r
		}
		a.mu.Unlock()
		return r, nil
	})
	return v.(*Result)
}

// Annotate returns the annotations of snap for the given roots
func (a *Annotator) Annotate(snap *graph.Snapshot, roots []string, th Thresholds) map[string]model.Annotation {
	return Annotate(snap, a.Result(snap), roots, th)
}
