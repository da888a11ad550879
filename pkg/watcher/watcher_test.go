package watcher

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/ritzau/depgraph/pkg/analysis"
	"github.com/ritzau/depgraph/pkg/builder"
)

func nextEvent(t *testing.T, ch <-chan ChangeEvent) ChangeEvent {
	t.Helper()
	select {
	case event, ok := <-ch:
		if !ok {
			t.Fatal("Channel closed")
		}
		return event
	case <-time.After(3 * time.Second):
		t.Fatal("Timeout waiting for change event")
	}
	return ChangeEvent{}
}

func TestFileWatcherReportsInputs(t *testing.T) {
	workspace := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fw, err := NewFileWatcher(workspace)
	if err != nil {
		t.Fatal(err)
	}
	if err := fw.Start(ctx); err != nil {
		t.Fatal(err)
	}

	input := filepath.Join(workspace, "math.d")
	if err := os.WriteFile(filepath.Join(workspace, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(input, []byte("math.o: math.cc\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	event := nextEvent(t, fw.Events())
	if !slices.Equal(event.Written, []string{input}) || len(event.Removed) != 0 {
		t.Errorf("Unexpected event %+v", event)
	}

	if err := os.Remove(input); err != nil {
		t.Fatal(err)
	}
	event = nextEvent(t, fw.Events())
	if !slices.Equal(event.Removed, []string{input}) {
		t.Errorf("Expected removal of %s, got %+v", input, event)
	}
}

func TestFileWatcherFollowsNewDirectories(t *testing.T) {
	workspace := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fw, err := NewFileWatcher(workspace)
	if err != nil {
		t.Fatal(err)
	}
	if err := fw.Start(ctx); err != nil {
		t.Fatal(err)
	}

	sub := filepath.Join(workspace, "gen")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	// Give the watcher a moment to register the new directory
	time.Sleep(200 * time.Millisecond)

	input := filepath.Join(sub, "out.deps.jsonl")
	if err := os.WriteFile(input, []byte(`{"path":"a"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	event := nextEvent(t, fw.Events())
	if !slices.Contains(event.Written, input) {
		t.Errorf("Expected %s in %+v", input, event)
	}
}

func TestFileWatcherClosesOnCancel(t *testing.T) {
	fw, err := NewFileWatcher(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := fw.Start(ctx); err != nil {
		t.Fatal(err)
	}
	cancel()

	select {
	case _, ok := <-fw.Events():
		if ok {
			t.Error("Expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("Events not closed after cancel")
	}
}

func TestDebouncerMergesBatches(t *testing.T) {
	input := make(chan ChangeEvent)
	d := NewDebouncer(input, 50*time.Millisecond, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	input <- ChangeEvent{Written: []string{"b.d", "a.d"}}
	input <- ChangeEvent{Removed: []string{"a.d"}}
	input <- ChangeEvent{Written: []string{"c.d"}}

	event := nextEvent(t, d.Output())
	if !slices.Equal(event.Written, []string{"b.d", "c.d"}) {
		t.Errorf("Written = %v", event.Written)
	}
	if !slices.Equal(event.Removed, []string{"a.d"}) {
		t.Errorf("Removed = %v", event.Removed)
	}
}

func TestDebouncerMaxWait(t *testing.T) {
	input := make(chan ChangeEvent)
	d := NewDebouncer(input, 200*time.Millisecond, 300*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	// Keep the quiet period from ever elapsing
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				select {
				case input <- ChangeEvent{Written: []string{"a.d"}}:
				case <-stop:
					return
				}
			}
		}
	}()
	defer close(stop)

	start := time.Now()
	nextEvent(t, d.Output())
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Flush took %v despite max wait", elapsed)
	}
}

func TestDebouncerFlushesOnInputClose(t *testing.T) {
	input := make(chan ChangeEvent, 1)
	d := NewDebouncer(input, time.Hour, time.Hour)
	d.Start(context.Background())

	input <- ChangeEvent{Written: []string{"a.d"}}
	close(input)

	event := nextEvent(t, d.Output())
	if !slices.Equal(event.Written, []string{"a.d"}) {
		t.Errorf("Unexpected event %+v", event)
	}
	if _, ok := <-d.Output(); ok {
		t.Error("Expected output to close")
	}
}

func TestAnalyzeChanges(t *testing.T) {
	plan := AnalyzeChanges(ChangeEvent{Written: []string{"a.d"}})
	if plan.Mode != builder.ModeAdd || !slices.Equal(plan.Inputs, []string{"a.d"}) || len(plan.Invalidate) != 0 {
		t.Errorf("Unexpected plan for writes: %+v", plan)
	}

	plan = AnalyzeChanges(ChangeEvent{Written: []string{"a.d"}, Removed: []string{"b.d"}})
	if plan.Mode != builder.ModeFull || plan.Inputs != nil || !slices.Equal(plan.Invalidate, []string{"b.d"}) {
		t.Errorf("Unexpected plan for removals: %+v", plan)
	}
}

type recordingTarget struct {
	mu          sync.Mutex
	invalidated []string
	requests    []analysis.BuildRequest
	done        chan struct{}
}

func (r *recordingTarget) InvalidateInputs(inputs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invalidated = append(r.invalidated, inputs...)
}

func (r *recordingTarget) Run(ctx context.Context, req analysis.BuildRequest) (*builder.Report, error) {
	r.mu.Lock()
	r.requests = append(r.requests, req)
	r.mu.Unlock()
	r.done <- struct{}{}
	return &builder.Report{Mode: req.Mode}, nil
}

func TestDrive(t *testing.T) {
	events := make(chan ChangeEvent, 3)
	target := &recordingTarget{done: make(chan struct{}, 3)}

	events <- ChangeEvent{}
	events <- ChangeEvent{Written: []string{"a.d"}}
	events <- ChangeEvent{Removed: []string{"b.d"}}
	close(events)

	Drive(context.Background(), events, target)

	if len(target.requests) != 2 {
		t.Fatalf("Expected 2 builds, got %+v", target.requests)
	}
	if target.requests[0].Mode != builder.ModeAdd || target.requests[1].Mode != builder.ModeFull {
		t.Errorf("Unexpected modes %+v", target.requests)
	}
	if !slices.Equal(target.invalidated, []string{"b.d"}) {
		t.Errorf("Invalidated = %v", target.invalidated)
	}
}

func TestDriveRewrittenInputDropsFiles(t *testing.T) {
	ctx := context.Background()
	workspace := t.TempDir()
	input := filepath.Join(workspace, "gen.deps.jsonl")
	if err := os.WriteFile(input, []byte("{\"path\":\"a.cc\",\"dependencies\":[\"b.cc\"]}\n{\"path\":\"b.cc\"}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	runner, err := analysis.NewRunner(analysis.Options{Workspace: workspace})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := runner.Run(ctx, analysis.BuildRequest{}); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(input, []byte("{\"path\":\"a.cc\"}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	events := make(chan ChangeEvent, 1)
	events <- ChangeEvent{Written: []string{input}}
	close(events)
	Drive(ctx, events, runner)

	snap := runner.Store().Snapshot()
	if _, ok := snap.Node("b.cc"); ok {
		t.Error("Expected b.cc to be removed after its input was rewritten")
	}
	if snap.Len() != 1 {
		t.Errorf("Expected 1 node, got %d", snap.Len())
	}
	if report := runner.LastBuild(); report == nil || report.Mode != builder.ModeAdd {
		t.Errorf("Expected an add-scope build, got %+v", report)
	}
}
