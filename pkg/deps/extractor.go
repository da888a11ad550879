// Package deps holds the edge extractors that feed the graph builder.
package deps

import (
	"context"
	"strings"

	"github.com/ritzau/depgraph/pkg/model"
)

// Extension suffixes recognized by Auto
const (
	DFileSuffix = ".d"
	JSONLSuffix = ".deps.jsonl"
)

// Auto dispatches on the input's suffix
type Auto struct {
	DFile DFileExtractor
	JSONL JSONLExtractor
}

func (a Auto) Extract(ctx context.Context, input string) ([]*model.Extraction, error) {
	if strings.HasSuffix(input, JSONLSuffix) {
		return a.JSONL.Extract(ctx, input)
	}
	return a.DFile.Extract(ctx, input)
}
