package analysis

import (
	"testing"

	"github.com/ritzau/depgraph/pkg/graph"
	"github.com/ritzau/depgraph/pkg/model"
)

func TestRollupDirs(t *testing.T) {
	store := graph.NewStore()
	store.Replace([]*model.Node{
		model.NewNode("src/a/x.kt", "app", "X", 100, []string{"lib/ext.jar"}),
		model.NewNode("src/a/y.kt", "app", "Y", 50, nil),
		model.NewNode("src/b/z.kt", "app", "Z", 7, nil),
		model.NewNode("top.kt", "app", "Top", 3, nil),
	})
	annotations := map[string]model.Annotation{
		"src/a/x.kt":  {Color: model.ColorRed},
		"src/a/y.kt":  {Color: model.ColorGreen},
		"src/b/z.kt":  {Color: model.ColorYellow},
		"top.kt":      {Color: model.ColorGreen},
		"lib/ext.jar": {Color: model.ColorGray},
	}

	got := RollupDirs(store.Snapshot(), annotations)
	want := []DirRollup{
		{Dir: ".", Files: 4, Green: 53, Yellow: 7, Red: 100},
		{Dir: "src", Files: 3, Green: 50, Yellow: 7, Red: 100},
		{Dir: "src/a", Files: 2, Green: 50, Red: 100},
		{Dir: "src/b", Files: 1, Yellow: 7},
	}
	if len(got) != len(want) {
		t.Fatalf("RollupDirs() = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("RollupDirs()[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestFindCrossModuleDeps(t *testing.T) {
	store := graph.NewStore()
	store.Replace([]*model.Node{
		model.NewNode("app/main.cc", "app", "main", 0, []string{"app/util.h", "core/api.h", "/usr/include/stdio.h"}),
		model.NewNode("app/util.h", "app", "util", 0, nil),
		model.NewNode("core/api.h", "core", "api", 0, nil),
	})

	got := FindCrossModuleDeps(store.Snapshot())
	if len(got) != 1 {
		t.Fatalf("Expected 1 cross-module edge, got %+v", got)
	}
	want := CrossModuleDep{Source: "app/main.cc", Target: "core/api.h", SourceModule: "app", TargetModule: "core"}
	if got[0] != want {
		t.Errorf("FindCrossModuleDeps() = %+v, want %+v", got[0], want)
	}
}
