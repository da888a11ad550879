package deps

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ritzau/depgraph/pkg/logging"
	"github.com/ritzau/depgraph/pkg/model"
)

// JSONLExtractor reads extraction records written one JSON object per line
// by external, language-specific extractors:
//
//	{"path":"src/a.kt","module":"app","classifier":"A","size":120,"dependencies":["src/b.kt"]}
//
// Malformed lines are logged and skipped.
type JSONLExtractor struct{}

func (JSONLExtractor) Extract(ctx context.Context, input string) ([]*model.Extraction, error) {
	file, err := os.Open(input)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	logger := logging.New("deps.jsonl")
	var out []*model.Extraction

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		var ext model.Extraction
		if err := json.Unmarshal(line, &ext); err != nil {
			logger.Warn("skipping malformed record", "file", input, "line", lineNo, "error", err)
			continue
		}
		if ext.Path == "" {
			logger.Warn("skipping record without path", "file", input, "line", lineNo)
			continue
		}
		out = append(out, &ext)
	}
	if err := scanner.Err(); err != nil {
		return out, fmt.Errorf("read %s: %w", input, err)
	}
	return out, nil
}
