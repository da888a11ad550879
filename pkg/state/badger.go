package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"

	"github.com/ritzau/depgraph/pkg/codec"
	"github.com/ritzau/depgraph/pkg/graph"
	"github.com/ritzau/depgraph/pkg/logging"
	"github.com/ritzau/depgraph/pkg/model"
	"github.com/ritzau/depgraph/pkg/rules"
)

var (
	graphKey      = []byte("depgraph/graph")
	generationKey = []byte("depgraph/generation")
	rulesKey      = []byte("depgraph/rules")
)

// BadgerConfig configures the embedded key-value store
type BadgerConfig struct {
	Path       string // ignored when InMemory is set
	InMemory   bool
	SyncWrites bool
}

// BadgerStore keeps state in an embedded BadgerDB
type BadgerStore struct {
	db *badger.DB
}

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Log(context.Background(), logging.LevelTrace, fmt.Sprintf(format, args...))
}

// OpenBadger opens or creates the database
func OpenBadger(cfg BadgerConfig) (*BadgerStore, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("badger state requires a path")
		}
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create state directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.
		WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(&badgerLogger{logger: logging.New("badger")})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) SaveGraph(ctx context.Context, snap *graph.Snapshot) error {
	data, err := codec.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode graph: %w", err)
	}
	gen, err := json.Marshal(snap.Generation())
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(graphKey, data); err != nil {
			return err
		}
		return txn.Set(generationKey, gen)
	})
}

func (s *BadgerStore) LoadGraph(ctx context.Context) ([]*model.Node, error) {
	data, err := s.get(graphKey)
	if err != nil {
		return nil, err
	}
	return codec.Unmarshal(data)
}

// SavedGeneration returns the generation of the last saved snapshot
func (s *BadgerStore) SavedGeneration() (uint64, error) {
	data, err := s.get(generationKey)
	if err != nil {
		return 0, err
	}
	var gen uint64
	if err := json.Unmarshal(data, &gen); err != nil {
		return 0, fmt.Errorf("decode generation: %w", err)
	}
	return gen, nil
}

func (s *BadgerStore) SaveRules(ctx context.Context, specs []rules.Spec) error {
	if specs == nil {
		specs = []rules.Spec{}
	}
	data, err := json.Marshal(specs)
	if err != nil {
		return fmt.Errorf("encode rules: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(rulesKey, data)
	})
}

func (s *BadgerStore) LoadRules(ctx context.Context) ([]rules.Spec, error) {
	data, err := s.get(rulesKey)
	if err != nil {
		return nil, err
	}
	var specs []rules.Spec
	if err := json.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	return specs, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func (s *BadgerStore) get(key []byte) ([]byte, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}
