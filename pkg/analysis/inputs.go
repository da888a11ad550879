package analysis

import (
	"context"
	"sync"

	"github.com/ritzau/depgraph/pkg/builder"
	"github.com/ritzau/depgraph/pkg/model"
)

// inputIndex remembers which file paths each input produced in committed
// builds. It is complete once a build over every discovered input has
// committed in this process; before that an unknown input may still own
// nodes restored from state.
type inputIndex struct {
	mu       sync.Mutex
	produced map[string][]string
	complete bool
}

func newInputIndex() *inputIndex {
	return &inputIndex{produced: make(map[string][]string)}
}

// staleScope returns the paths produced earlier by inputs that no other
// input also produced. ok is false when the index cannot tell.
func (ix *inputIndex) staleScope(inputs []string) (scope map[string]bool, ok bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if !ix.complete {
		return nil, false
	}

	requested := make(map[string]bool, len(inputs))
	for _, in := range inputs {
		requested[in] = true
	}
	scope = make(map[string]bool)
	for _, in := range inputs {
		for _, p := range ix.produced[in] {
			scope[p] = true
		}
	}
	for in, paths := range ix.produced {
		if requested[in] {
			continue
		}
		for _, p := range paths {
			delete(scope, p)
		}
	}
	return scope, true
}

// commit records what a committed build extracted. Inputs served from the
// extraction cache keep their earlier record. A discovery build replaces
// the index so that vanished inputs are forgotten.
func (ix *inputIndex) commit(inputs []string, staged map[string][]string, discovery bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if discovery {
		next := make(map[string][]string, len(inputs))
		for _, in := range inputs {
			if paths, ok := staged[in]; ok {
				next[in] = paths
			} else if paths, ok := ix.produced[in]; ok {
				next[in] = paths
			}
		}
		ix.produced = next
		ix.complete = true
		return
	}
	for in, paths := range staged {
		ix.produced[in] = paths
	}
}

// recordingExtractor stages the paths each input yields during one build
type recordingExtractor struct {
	inner builder.Extractor

	mu     sync.Mutex
	staged map[string][]string
}

func newRecordingExtractor(inner builder.Extractor) *recordingExtractor {
	return &recordingExtractor{inner: inner, staged: make(map[string][]string)}
}

func (e *recordingExtractor) Extract(ctx context.Context, input string) ([]*model.Extraction, error) {
	exts, err := e.inner.Extract(ctx, input)
	if err != nil {
		return exts, err
	}
	paths := make([]string, 0, len(exts))
	for _, ext := range exts {
		if ext != nil && ext.Path != "" {
			paths = append(paths, ext.Path)
		}
	}
	e.mu.Lock()
	e.staged[input] = paths
	e.mu.Unlock()
	return exts, nil
}

// pathScope contains the nodes whose path is in the set
type pathScope map[string]bool

func (s pathScope) Contains(n *model.Node) bool { return s[n.Path] }

func (e *recordingExtractor) recorded() map[string][]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.staged
}
