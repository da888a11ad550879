package builder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ritzau/depgraph/pkg/model"
)

// lineExtractor reads "path: dep dep" from the input file
type lineExtractor struct {
	calls atomic.Int32
}

func (e *lineExtractor) Extract(ctx context.Context, input string) ([]*model.Extraction, error) {
	e.calls.Add(1)
	data, err := os.ReadFile(input)
	if err != nil {
		return nil, err
	}
	var out []*model.Extraction
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		head, tail, ok := strings.Cut(line, ":")
		if !ok {
			return []*model.Extraction{{Path: head}}, errors.New("missing colon")
		}
		out = append(out, &model.Extraction{Path: head, Dependencies: strings.Fields(tail)})
	}
	return out, nil
}

func writeInputs(t *testing.T, contents ...string) []string {
	t.Helper()
	dir := t.TempDir()
	var paths []string
	for i, c := range contents {
		p := filepath.Join(dir, string(rune('a'+i))+".d")
		require.NoError(t, os.WriteFile(p, []byte(c), 0o644))
		paths = append(paths, p)
	}
	return paths
}

func TestCollect_InputOrderAndErrors(t *testing.T) {
	inputs := writeInputs(t, "a.cc: b.h", "broken.cc", "c.cc: a.cc b.h\nd.cc:")
	inputs = append(inputs, filepath.Join(t.TempDir(), "missing.d"))

	var got []string
	var failures int
	for ext, err := range Collect(context.Background(), &lineExtractor{}, inputs, nil, 2) {
		if err != nil {
			failures++
		}
		if ext != nil {
			got = append(got, ext.Path)
		}
	}

	assert.Equal(t, []string{"a.cc", "broken.cc", "c.cc", "d.cc"}, got)
	assert.Equal(t, 2, failures)
}

func TestCollect_UsesCacheUntilInputChanges(t *testing.T) {
	inputs := writeInputs(t, "a.cc: b.h", "c.cc: d.h")
	cache, err := NewExtractionCache(16)
	require.NoError(t, err)
	extractor := &lineExtractor{}

	drain := func() []*model.Extraction {
		var out []*model.Extraction
		for ext, err := range Collect(context.Background(), extractor, inputs, cache, 4) {
			require.NoError(t, err)
			out = append(out, ext)
		}
		return out
	}

	drain()
	require.Equal(t, int32(2), extractor.calls.Load())
	assert.Equal(t, 2, cache.Len())

	drain()
	assert.Equal(t, int32(2), extractor.calls.Load(), "second pass served from cache")

	require.NoError(t, os.WriteFile(inputs[0], []byte("a.cc: b.h e.h"), 0o644))
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(inputs[0], future, future))

	out := drain()
	assert.Equal(t, int32(3), extractor.calls.Load())
	assert.Equal(t, []string{"b.h", "e.h"}, out[0].Dependencies)
}

func TestCollect_Cancelled(t *testing.T) {
	inputs := writeInputs(t, "a.cc: b.h", "c.cc: d.h")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var lastErr error
	for _, err := range Collect(ctx, &lineExtractor{}, inputs, nil, 1) {
		lastErr = err
	}

	assert.ErrorIs(t, lastErr, context.Canceled)
}

func TestExtractionCache_ReturnsCopies(t *testing.T) {
	cache, err := NewExtractionCache(0)
	require.NoError(t, err)
	fp := Fingerprint{Size: 1, ModTime: time.Unix(100, 0)}

	cache.Put("in.d", fp, []*model.Extraction{{Path: "a.cc", Dependencies: []string{"b.h"}}})
	got, ok := cache.Get("in.d", fp)
	require.True(t, ok)
	got[0].Dependencies[0] = "mutated"

	again, _ := cache.Get("in.d", fp)
	assert.Equal(t, "b.h", again[0].Dependencies[0])

	_, ok = cache.Get("in.d", Fingerprint{Size: 2, ModTime: fp.ModTime})
	assert.False(t, ok)

	cache.Invalidate("in.d")
	assert.Zero(t, cache.Len())
}
