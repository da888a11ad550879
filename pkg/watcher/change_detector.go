package watcher

import (
	"context"
	"slices"

	"github.com/ritzau/depgraph/pkg/analysis"
	"github.com/ritzau/depgraph/pkg/builder"
	"github.com/ritzau/depgraph/pkg/logging"
	"github.com/ritzau/depgraph/pkg/metrics"
)

// ChangePlan is the build that brings the graph up to date with a batch
type ChangePlan struct {
	Mode       builder.Mode
	Inputs     []string // nil rediscovers every input
	Invalidate []string // cached extractions to drop first
}

// AnalyzeChanges plans the rebuild for a batch. A removed input may have
// been the only source of some nodes, so removals need a full rebuild over
// the whole workspace. Written inputs need an add-scope build, which the
// runner narrows to the files those inputs produced before.
func AnalyzeChanges(event ChangeEvent) ChangePlan {
	if len(event.Removed) > 0 {
		return ChangePlan{Mode: builder.ModeFull, Invalidate: slices.Clone(event.Removed)}
	}
	return ChangePlan{Mode: builder.ModeAdd, Inputs: slices.Clone(event.Written)}
}

// Target is the build surface a watcher drives
type Target interface {
	InvalidateInputs(inputs []string)
	Run(ctx context.Context, req analysis.BuildRequest) (*builder.Report, error)
}

// Drive runs one build per debounced batch until events closes or ctx is
// cancelled. Build errors are logged and the loop continues.
func Drive(ctx context.Context, events <-chan ChangeEvent, target Target) {
	log := logging.New("watcher")
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if event.Empty() {
				continue
			}
			plan := AnalyzeChanges(event)
			metrics.WatchBatches.WithLabelValues(string(plan.Mode)).Inc()
			log.Info("Inputs changed",
				"written", len(event.Written),
				"removed", len(event.Removed),
				"mode", string(plan.Mode))

			target.InvalidateInputs(plan.Invalidate)
			_, err := target.Run(ctx, analysis.BuildRequest{
				Mode:   plan.Mode,
				Inputs: plan.Inputs,
				Reason: "inputs changed",
			})
			if err != nil {
				log.Error("Rebuild failed", "error", err)
			}
		}
	}
}

func sortEvent(e *ChangeEvent) {
	slices.Sort(e.Written)
	slices.Sort(e.Removed)
}
