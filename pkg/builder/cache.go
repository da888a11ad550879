package builder

import (
	"fmt"
	"os"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ritzau/depgraph/pkg/metrics"
	"github.com/ritzau/depgraph/pkg/model"
)

// DefaultCacheSize bounds the extraction cache when no size is configured
const DefaultCacheSize = 4096

// Fingerprint identifies the version of an input file
type Fingerprint struct {
	Size    int64
	ModTime time.Time
}

// FingerprintOf stats an input file
func FingerprintOf(path string) (Fingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Fingerprint{}, err
	}
	return Fingerprint{Size: info.Size(), ModTime: info.ModTime()}, nil
}

type cacheEntry struct {
	fingerprint Fingerprint
	extractions []*model.Extraction
}

// ExtractionCache remembers extraction results per input file. It is owned
// by the build orchestrator and handed to Collect; entries are reused only
// while the input's fingerprint is unchanged.
type ExtractionCache struct {
	entries *lru.Cache[string, cacheEntry]
}

// NewExtractionCache creates a cache holding at most size inputs
func NewExtractionCache(size int) (*ExtractionCache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, err := lru.New[string, cacheEntry](size)
	if err != nil {
		return nil, fmt.Errorf("create extraction cache: %w", err)
	}
	return &ExtractionCache{entries: entries}, nil
}

// Get returns a copy of the cached extractions if the fingerprint matches
func (c *ExtractionCache) Get(input string, fp Fingerprint) ([]*model.Extraction, bool) {
	if c == nil {
		return nil, false
	}
	e, ok := c.entries.Get(input)
	if !ok || e.fingerprint.Size != fp.Size || !e.fingerprint.ModTime.Equal(fp.ModTime) {
		metrics.ExtractionCacheMisses.Inc()
		return nil, false
	}
	metrics.ExtractionCacheHits.Inc()
	return cloneExtractions(e.extractions), true
}

// Put stores the records of a successful extraction
func (c *ExtractionCache) Put(input string, fp Fingerprint, exts []*model.Extraction) {
	if c == nil {
		return
	}
	c.entries.Add(input, cacheEntry{fingerprint: fp, extractions: cloneExtractions(exts)})
}

// Invalidate drops the entry for input
func (c *ExtractionCache) Invalidate(input string) {
	if c != nil {
		c.entries.Remove(input)
	}
}

// Purge empties the cache
func (c *ExtractionCache) Purge() {
	if c != nil {
		c.entries.Purge()
	}
}

// Len returns the number of cached inputs
func (c *ExtractionCache) Len() int {
	if c == nil {
		return 0
	}
	return c.entries.Len()
}

func cloneExtractions(exts []*model.Extraction) []*model.Extraction {
	out := make([]*model.Extraction, 0, len(exts))
	for _, e := range exts {
		if e == nil {
			continue
		}
		c := *e
		c.Dependencies = append([]string(nil), e.Dependencies...)
		out = append(out, &c)
	}
	return out
}
