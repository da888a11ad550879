package graph

import (
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/ritzau/depgraph/pkg/model"
)

// Store publishes graph snapshots to concurrent readers
type Store struct {
	current atomic.Pointer[Snapshot]
	writeMu sync.Mutex // one open Txn at a time
}

// NewStore creates a store holding an empty generation-0 graph
func NewStore() *Store {
	s := &Store{}
	s.current.Store(emptySnapshot())
	return s
}

// Snapshot returns the last published snapshot. It never blocks.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// Generation returns the generation of the published snapshot
func (s *Store) Generation() uint64 {
	return s.Snapshot().generation
}

// Begin opens a staging transaction on top of the published snapshot.
// It blocks while another transaction is open. Staging copies the node and
// reverse tables, so opening a transaction costs O(V); batch mutations into
// one transaction rather than committing them one by one.
func (s *Store) Begin() *Txn {
	s.writeMu.Lock()
	base := s.current.Load()
	return &Txn{
		store:   s,
		base:    base,
		nodes:   maps.Clone(base.nodes),
		reverse: maps.Clone(base.reverse),
		owned:   make(map[string]bool),
	}
}

// UpsertNode replaces the node at n.Path in a single-operation transaction.
// It pays the O(V) staging copy of Begin; builds go through a Txn instead.
func (s *Store) UpsertNode(n *model.Node) *Snapshot {
	txn := s.Begin()
	txn.UpsertNode(n)
	snap, _ := txn.Commit()
	return snap
}

// RemoveNode deletes the node at path in a single-operation transaction
func (s *Store) RemoveNode(path string) *Snapshot {
	txn := s.Begin()
	txn.RemoveNode(path)
	snap, _ := txn.Commit()
	return snap
}

// Replace swaps the whole node table for the given nodes
func (s *Store) Replace(nodes []*model.Node) *Snapshot {
	txn := s.Begin()
	txn.RemoveScope(model.Everything())
	for _, n := range nodes {
		txn.UpsertNode(n)
	}
	snap, _ := txn.Commit()
	return snap
}

// Txn stages mutations copy-on-write. Published snapshots are never touched:
// node values are replaced, not edited, and reverse-index slices are copied
// the first time a transaction modifies them.
type Txn struct {
	store   *Store
	base    *Snapshot
	nodes   map[string]*model.Node
	reverse map[string][]string
	owned   map[string]bool // reverse keys already copied by this txn
	changes int
	closed  bool
}

// UpsertNode replaces the node at n.Path wholesale
func (t *Txn) UpsertNode(n *model.Node) {
	if t.closed || n == nil || n.Path == "" {
		return
	}
	node := n.Clone()
	node.Dependencies = model.UniquePaths(node.Dependencies)

	if old, ok := t.nodes[node.Path]; ok {
		for _, dep := range old.Dependencies {
			t.unlink(dep, node.Path)
		}
	}
	t.nodes[node.Path] = node
	for _, dep := range node.Dependencies {
		t.link(dep, node.Path)
	}
	t.changes++
}

// RemoveNode deletes the node at path. Edges pointing to it are kept;
// other nodes may still list it as a dangling dependency.
func (t *Txn) RemoveNode(path string) bool {
	if t.closed {
		return false
	}
	old, ok := t.nodes[path]
	if !ok {
		return false
	}
	for _, dep := range old.Dependencies {
		t.unlink(dep, path)
	}
	delete(t.nodes, path)
	t.changes++
	return true
}

// RemoveScope deletes every staged node inside scope and returns their paths
func (t *Txn) RemoveScope(scope model.Scope) []string {
	if t.closed {
		return nil
	}
	var removed []string
	for path, n := range t.nodes {
		if scope.Contains(n) {
			removed = append(removed, path)
		}
	}
	slices.Sort(removed)
	for _, path := range removed {
		t.RemoveNode(path)
	}
	return removed
}

// Has reports whether path is a node in the staged graph
func (t *Txn) Has(path string) bool {
	_, ok := t.nodes[path]
	return ok
}

// Len returns the number of staged nodes
func (t *Txn) Len() int {
	return len(t.nodes)
}

// Changes returns the number of applied mutations
func (t *Txn) Changes() int {
	return t.changes
}

// Commit publishes the staged graph as the next generation
func (t *Txn) Commit() (*Snapshot, error) {
	if t.closed {
		return nil, ErrTxnClosed
	}
	t.closed = true
	defer t.store.writeMu.Unlock()

	snap := &Snapshot{
		generation: t.base.generation + 1,
		nodes:      t.nodes,
		reverse:    t.reverse,
	}
	t.store.current.Store(snap)
	return snap, nil
}

// Discard drops the staged changes; the published snapshot is untouched
func (t *Txn) Discard() {
	if t.closed {
		return
	}
	t.closed = true
	t.store.writeMu.Unlock()
}

func (t *Txn) link(target, source string) {
	sources := t.ownedSources(target)
	i, found := slices.BinarySearch(sources, source)
	if found {
		return
	}
	t.reverse[target] = slices.Insert(sources, i, source)
}

func (t *Txn) unlink(target, source string) {
	if _, ok := t.reverse[target]; !ok {
		return
	}
	sources := t.ownedSources(target)
	i, found := slices.BinarySearch(sources, source)
	if !found {
		return
	}
	sources = slices.Delete(sources, i, i+1)
	if len(sources) == 0 {
		delete(t.reverse, target)
		delete(t.owned, target)
		return
	}
	t.reverse[target] = sources
}

func (t *Txn) ownedSources(target string) []string {
	if t.owned[target] {
		return t.reverse[target]
	}
	sources := slices.Clone(t.reverse[target])
	t.reverse[target] = sources
	t.owned[target] = true
	return sources
}
