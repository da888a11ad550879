package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ritzau/depgraph/pkg/codec"
	"github.com/ritzau/depgraph/pkg/graph"
	"github.com/ritzau/depgraph/pkg/logging"
	"github.com/ritzau/depgraph/pkg/model"
	"github.com/ritzau/depgraph/pkg/rules"
)

const (
	graphFile  = "graph.json"
	rulesFile  = "rules.json"
	legacyFile = "dependenciesInfo.xml"
)

// FileStore keeps state as JSON files in a directory. When no graph file
// exists yet, a state file left by the IDE plugin is imported instead.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state directory %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the state directory
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) SaveGraph(ctx context.Context, snap *graph.Snapshot) error {
	var buf bytes.Buffer
	if err := codec.Encode(&buf, snap); err != nil {
		return fmt.Errorf("encode graph: %w", err)
	}
	return s.write(graphFile, buf.Bytes())
}

func (s *FileStore) LoadGraph(ctx context.Context) ([]*model.Node, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, graphFile))
	if errors.Is(err, fs.ErrNotExist) {
		data, err = os.ReadFile(filepath.Join(s.dir, legacyFile))
		if err == nil {
			logging.Info("importing legacy graph state", "file", legacyFile)
		}
	}
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read graph state: %w", err)
	}
	return codec.Unmarshal(data)
}

func (s *FileStore) SaveRules(ctx context.Context, specs []rules.Spec) error {
	if specs == nil {
		specs = []rules.Spec{}
	}
	data, err := json.MarshalIndent(specs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode rules: %w", err)
	}
	return s.write(rulesFile, data)
}

func (s *FileStore) LoadRules(ctx context.Context) ([]rules.Spec, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, rulesFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	var specs []rules.Spec
	if err := json.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	return specs, nil
}

func (s *FileStore) Close() error {
	return nil
}

// write replaces name atomically so readers never see a partial file
func (s *FileStore) write(name string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}
