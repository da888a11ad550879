package graph

import (
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/ritzau/depgraph/pkg/model"
)

func TestNewStoreIsEmpty(t *testing.T) {
	s := NewStore()

	snap := s.Snapshot()
	if snap == nil {
		t.Fatal("Snapshot() returned nil")
	}
	if snap.Len() != 0 {
		t.Errorf("Expected 0 nodes, got %d", snap.Len())
	}
	if snap.Generation() != 0 {
		t.Errorf("Expected generation 0, got %d", snap.Generation())
	}
}

func TestUpsertNodeReplacesWholesale(t *testing.T) {
	s := NewStore()
	s.UpsertNode(model.NewNode("a.cc", "core", "A", 10, []string{"b.h", "c.h", "b.h"}))

	snap := s.Snapshot()
	node, ok := snap.Node("a.cc")
	if !ok {
		t.Fatal("Expected a.cc to be present")
	}
	if !slices.Equal(node.Dependencies, []string{"b.h", "c.h"}) {
		t.Errorf("Expected deduplicated dependencies, got %v", node.Dependencies)
	}

	s.UpsertNode(model.NewNode("a.cc", "core", "A", 12, []string{"d.h"}))
	snap = s.Snapshot()
	node, _ = snap.Node("a.cc")
	if node.Size != 12 {
		t.Errorf("Expected size 12, got %d", node.Size)
	}
	if !slices.Equal(node.Dependencies, []string{"d.h"}) {
		t.Errorf("Expected dependencies [d.h], got %v", node.Dependencies)
	}
	if len(snap.Dependents("b.h")) != 0 {
		t.Errorf("Expected no dependents of b.h, got %v", snap.Dependents("b.h"))
	}
	if !slices.Equal(snap.Dependents("d.h"), []string{"a.cc"}) {
		t.Errorf("Expected dependents [a.cc], got %v", snap.Dependents("d.h"))
	}
}

func TestNodeReturnsCopy(t *testing.T) {
	s := NewStore()
	s.UpsertNode(model.NewNode("a.cc", "", "", 0, []string{"b.h"}))

	node, _ := s.Snapshot().Node("a.cc")
	node.Dependencies[0] = "mutated"

	again, _ := s.Snapshot().Node("a.cc")
	if again.Dependencies[0] != "b.h" {
		t.Errorf("Snapshot was modified through a returned node: %v", again.Dependencies)
	}
}

func TestRemoveNodeKeepsIncomingEdges(t *testing.T) {
	s := NewStore()
	s.Replace([]*model.Node{
		model.NewNode("a.cc", "", "", 0, []string{"b.h"}),
		model.NewNode("b.h", "", "", 0, nil),
	})

	s.RemoveNode("b.h")
	snap := s.Snapshot()

	if snap.Has("b.h") {
		t.Error("Expected b.h to be removed")
	}
	if !snap.IsExternal("b.h") {
		t.Error("Expected b.h to become external")
	}
	if !slices.Equal(snap.Dependencies("a.cc"), []string{"b.h"}) {
		t.Errorf("Expected a.cc to keep its edge, got %v", snap.Dependencies("a.cc"))
	}
	if ext := snap.Lookup("b.h"); ext == nil || ext.Module != "" || ext.Size != 0 {
		t.Errorf("Expected attribute-less external node, got %+v", ext)
	}
	if snap.Lookup("unknown") != nil {
		t.Error("Expected nil for unknown path")
	}
}

func TestSnapshotIsolationAcrossCommits(t *testing.T) {
	s := NewStore()
	s.UpsertNode(model.NewNode("a.cc", "", "", 0, []string{"x.h"}))
	before := s.Snapshot()

	txn := s.Begin()
	txn.UpsertNode(model.NewNode("b.cc", "", "", 0, []string{"x.h"}))
	txn.RemoveNode("a.cc")

	// Staged changes are not visible until commit
	if s.Snapshot() != before {
		t.Fatal("Published snapshot changed before commit")
	}

	after, err := txn.Commit()
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	if after.Generation() != before.Generation()+1 {
		t.Errorf("Expected generation %d, got %d", before.Generation()+1, after.Generation())
	}
	if !slices.Equal(before.Dependents("x.h"), []string{"a.cc"}) {
		t.Errorf("Old snapshot reverse index changed: %v", before.Dependents("x.h"))
	}
	if !slices.Equal(after.Dependents("x.h"), []string{"b.cc"}) {
		t.Errorf("Expected dependents [b.cc], got %v", after.Dependents("x.h"))
	}
	if !before.Has("a.cc") || before.Has("b.cc") {
		t.Error("Old snapshot node table changed")
	}
}

func TestDiscardLeavesPublishedSnapshot(t *testing.T) {
	s := NewStore()
	s.UpsertNode(model.NewNode("a.cc", "", "", 0, nil))
	before := s.Snapshot()

	txn := s.Begin()
	txn.RemoveScope(model.Everything())
	txn.Discard()

	if s.Snapshot() != before {
		t.Error("Discard changed the published snapshot")
	}
	if _, err := txn.Commit(); !errors.Is(err, ErrTxnClosed) {
		t.Errorf("Expected ErrTxnClosed, got %v", err)
	}

	// The writer lock was released
	s.UpsertNode(model.NewNode("b.cc", "", "", 0, nil))
	if !s.Snapshot().Has("b.cc") {
		t.Error("Expected b.cc after discard")
	}
}

func TestRemoveScope(t *testing.T) {
	s := NewStore()
	s.Replace([]*model.Node{
		model.NewNode("core/a.cc", "core", "", 0, nil),
		model.NewNode("core/b.cc", "core", "", 0, nil),
		model.NewNode("util/c.cc", "util", "", 0, nil),
	})

	txn := s.Begin()
	removed := txn.RemoveScope(model.ScopeFunc(func(n *model.Node) bool { return n.Module == "core" }))
	snap, _ := txn.Commit()

	if !slices.Equal(removed, []string{"core/a.cc", "core/b.cc"}) {
		t.Errorf("Expected core files removed, got %v", removed)
	}
	if got := slices.Collect(snap.Paths()); !slices.Equal(got, []string{"util/c.cc"}) {
		t.Errorf("Expected [util/c.cc], got %v", got)
	}
}

func TestPathsAndEdgesAreSorted(t *testing.T) {
	s := NewStore()
	s.Replace([]*model.Node{
		model.NewNode("c", "", "", 0, []string{"a"}),
		model.NewNode("a", "", "", 0, []string{"c", "b"}),
	})
	snap := s.Snapshot()

	if got := slices.Collect(snap.Paths()); !slices.Equal(got, []string{"a", "c"}) {
		t.Errorf("Expected [a c], got %v", got)
	}

	var edges []model.Edge
	for e := range snap.Edges() {
		edges = append(edges, e)
	}
	want := []model.Edge{{From: "a", To: "c"}, {From: "a", To: "b"}, {From: "c", To: "a"}}
	if !slices.Equal(edges, want) {
		t.Errorf("Expected %v, got %v", want, edges)
	}
	if snap.EdgeCount() != 3 {
		t.Errorf("Expected 3 edges, got %d", snap.EdgeCount())
	}
}

func TestConcurrentReadersDuringWrites(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			s.UpsertNode(model.NewNode("a.cc", "", "", uint64(i), []string{"b.h"}))
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				snap := s.Snapshot()
				for range snap.Nodes() {
				}
				_ = snap.Dependents("b.h")
			}
		}()
	}
	wg.Wait()

	if s.Generation() != 100 {
		t.Errorf("Expected generation 100, got %d", s.Generation())
	}
}
