// Package state persists the graph and the rule list between runs.
package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/ritzau/depgraph/pkg/graph"
	"github.com/ritzau/depgraph/pkg/model"
	"github.com/ritzau/depgraph/pkg/rules"
)

// ErrNotFound is returned when nothing has been saved yet
var ErrNotFound = errors.New("state not found")

// Store saves and restores engine state. Graph decoding errors wrap
// codec.ErrMalformedState.
type Store interface {
	SaveGraph(ctx context.Context, snap *graph.Snapshot) error
	LoadGraph(ctx context.Context) ([]*model.Node, error)
	SaveRules(ctx context.Context, specs []rules.Spec) error
	LoadRules(ctx context.Context) ([]rules.Spec, error)
	Close() error
}

// Backend names accepted by Open
const (
	BackendFile   = "file"
	BackendBadger = "badger"
)

// Open creates the store for the configured backend rooted at dir
func Open(backend, dir string) (Store, error) {
	switch backend {
	case "", BackendFile:
		return NewFileStore(dir)
	case BackendBadger:
		return OpenBadger(BadgerConfig{Path: dir, SyncWrites: true})
	default:
		return nil, fmt.Errorf("unknown state backend %q", backend)
	}
}
