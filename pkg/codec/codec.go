// Package codec converts graph snapshots to and from their durable form.
//
// The current format is a JSON document tagged "depgraph/2" holding a map
// keyed by path. Older documents ("depgraph/1", a list of files with 32-bit
// sizes and no module or classifier) and the XML state files written by the
// IDE plugin are upgraded on load.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/ritzau/depgraph/pkg/graph"
	"github.com/ritzau/depgraph/pkg/model"
)

const (
	SchemaV1 = "depgraph/1"
	SchemaV2 = "depgraph/2"
)

// ErrMalformedState is returned for records that cannot be upgraded
var ErrMalformedState = errors.New("malformed graph state")

// Record is the current durable form of a graph
type Record struct {
	Schema string                `json:"schema"`
	Files  map[string]FileRecord `json:"files"`
}

// FileRecord holds the attributes of one node
type FileRecord struct {
	Module       string   `json:"module"`
	Classifier   string   `json:"classifier"`
	Size         uint64   `json:"size"`
	Dependencies []string `json:"dependencies"`
}

// Serialize captures a snapshot as a record
func Serialize(snap *graph.Snapshot) *Record {
	rec := &Record{
		Schema: SchemaV2,
		Files:  make(map[string]FileRecord, snap.Len()),
	}
	for n := range snap.Nodes() {
		deps := slices.Clone(n.Dependencies)
		if deps == nil {
			deps = []string{}
		}
		rec.Files[n.Path] = FileRecord{
			Module:       n.Module,
			Classifier:   n.Classifier,
			Size:         n.Size,
			Dependencies: deps,
		}
	}
	return rec
}

// Deserialize converts a record into nodes ordered by path
func Deserialize(rec *Record) ([]*model.Node, error) {
	if rec == nil {
		return nil, fmt.Errorf("%w: nil record", ErrMalformedState)
	}
	if rec.Schema != SchemaV2 {
		return nil, fmt.Errorf("%w: unknown schema %q", ErrMalformedState, rec.Schema)
	}

	nodes := make([]*model.Node, 0, len(rec.Files))
	for path, f := range rec.Files {
		if path == "" {
			return nil, fmt.Errorf("%w: file with empty path", ErrMalformedState)
		}
		nodes = append(nodes, model.NewNode(path, f.Module, f.Classifier, f.Size, f.Dependencies))
	}
	slices.SortFunc(nodes, func(a, b *model.Node) int {
		return strings.Compare(a.Path, b.Path)
	})
	return nodes, nil
}

// Marshal encodes a snapshot in the current format
func Marshal(snap *graph.Snapshot) ([]byte, error) {
	return json.Marshal(Serialize(snap))
}

// Encode writes a snapshot in the current format
func Encode(w io.Writer, snap *graph.Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(Serialize(snap))
}

// Decode reads a record in any supported format
func Decode(r io.Reader) ([]*model.Node, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read graph state: %w", err)
	}
	return Unmarshal(data)
}

// Unmarshal parses a record in any supported format
func Unmarshal(data []byte) ([]*model.Node, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrMalformedState)
	}
	if trimmed[0] == '<' {
		return decodeXML(trimmed)
	}

	var header struct {
		Schema string          `json:"schema"`
		Files  json.RawMessage `json:"files"`
	}
	if err := json.Unmarshal(trimmed, &header); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedState, err)
	}

	files := bytes.TrimSpace(header.Files)
	switch {
	case header.Schema == SchemaV2:
		rec := Record{Schema: SchemaV2}
		if len(files) > 0 {
			if err := json.Unmarshal(files, &rec.Files); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedState, err)
			}
		}
		return Deserialize(&rec)
	case header.Schema == SchemaV1, header.Schema == "" && len(files) > 0 && files[0] == '[':
		return decodeV1(files)
	default:
		return nil, fmt.Errorf("%w: unknown schema %q", ErrMalformedState, header.Schema)
	}
}
