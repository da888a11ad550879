package builder

import (
	"context"
	"iter"

	"golang.org/x/sync/errgroup"

	"github.com/ritzau/depgraph/pkg/model"
)

// Extractor produces the extraction records found in one input file. On
// failure it may still return records naming source paths; those files are
// kept without edges.
type Extractor interface {
	Extract(ctx context.Context, input string) ([]*model.Extraction, error)
}

// ExtractorFunc adapts a function to the Extractor interface
type ExtractorFunc func(ctx context.Context, input string) ([]*model.Extraction, error)

func (f ExtractorFunc) Extract(ctx context.Context, input string) ([]*model.Extraction, error) {
	return f(ctx, input)
}

type collected struct {
	exts []*model.Extraction
	err  error
	done bool
}

// Collect runs the extractor over inputs with at most workers in flight and
// yields the results in input order. Unchanged inputs are served from cache.
// When ctx is cancelled, pending inputs are skipped and the iterator ends
// with the context error.
func Collect(ctx context.Context, extractor Extractor, inputs []string, cache *ExtractionCache, workers int) iter.Seq2[*model.Extraction, error] {
	return func(yield func(*model.Extraction, error) bool) {
		results := make([]collected, len(inputs))

		g, gctx := errgroup.WithContext(ctx)
		if workers > 0 {
			g.SetLimit(workers)
		}
		for i, input := range inputs {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				results[i] = extractOne(gctx, extractor, input, cache)
				return nil
			})
		}
		waitErr := g.Wait()

		for _, r := range results {
			if !r.done {
				continue
			}
			if r.err != nil && len(r.exts) == 0 {
				if !yield(nil, r.err) {
					return
				}
				continue
			}
			for _, ext := range r.exts {
				if !yield(ext, r.err) {
					return
				}
			}
		}
		if waitErr != nil {
			yield(nil, waitErr)
		}
	}
}

func extractOne(ctx context.Context, extractor Extractor, input string, cache *ExtractionCache) collected {
	fp, fpErr := FingerprintOf(input)
	if fpErr == nil {
		if exts, ok := cache.Get(input, fp); ok {
			return collected{exts: exts, done: true}
		}
	}

	exts, err := extractor.Extract(ctx, input)
	if err == nil && fpErr == nil {
		cache.Put(input, fp, exts)
	}
	return collected{exts: exts, err: err, done: true}
}
