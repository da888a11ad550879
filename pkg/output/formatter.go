// Package output renders engine results as colored console reports.
package output

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/ritzau/depgraph/pkg/analysis"
	"github.com/ritzau/depgraph/pkg/builder"
	"github.com/ritzau/depgraph/pkg/cycles"
	"github.com/ritzau/depgraph/pkg/model"
	"github.com/ritzau/depgraph/pkg/query"
	"github.com/ritzau/depgraph/pkg/rules"
)

var (
	bold   = color.New(color.Bold)
	red    = color.New(color.FgRed)
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	cyan   = color.New(color.FgCyan)
	gray   = color.New(color.FgHiBlack)
)

func colorOf(c model.Color) *color.Color {
	switch c {
	case model.ColorGreen:
		return green
	case model.ColorYellow:
		return yellow
	case model.ColorRed:
		return red
	default:
		return gray
	}
}

func header(w io.Writer, title string) {
	bold.Fprintln(w, title)
	bold.Fprintln(w, strings.Repeat("=", len(title)))
}

// PrintBuildReport prints the outcome of a build and the resulting graph
func PrintBuildReport(w io.Writer, report *builder.Report, summary analysis.Summary) {
	header(w, "Build Report")
	fmt.Fprintf(w, "Build:      %s (%s)\n", report.BuildID, report.Mode)
	fmt.Fprintf(w, "Visited:    %d files\n", report.Visited)
	if report.Failed > 0 {
		yellow.Fprintf(w, "Failed:     %d extraction(s)\n", report.Failed)
	}
	if report.Filtered > 0 {
		fmt.Fprintf(w, "Filtered:   %d files\n", report.Filtered)
	}
	if report.Removed > 0 {
		fmt.Fprintf(w, "Removed:    %d files\n", report.Removed)
	}
	fmt.Fprintf(w, "Duration:   %s\n", report.Duration.Round(time.Millisecond))
	fmt.Fprintln(w)
	PrintSummary(w, summary)
}

// PrintSummary prints graph counts
func PrintSummary(w io.Writer, s analysis.Summary) {
	fmt.Fprintf(w, "Generation: %d\n", s.Generation)
	fmt.Fprintf(w, "Graph:      %d files, %d dependencies\n", s.Nodes, s.Edges)
	if s.Cycles == 0 {
		green.Fprintln(w, "Cycles:     none")
	} else {
		red.Fprintf(w, "Cycles:     %d\n", s.Cycles)
	}
	if s.Rules > 0 {
		c := green
		if s.Illegal > 0 {
			c = red
		}
		c.Fprintf(w, "Rules:      %d, %d illegal edge(s)\n", s.Rules, s.Illegal)
	}
	if s.NeedsRebuild {
		yellow.Fprintln(w, "A rebuild is required")
	}
}

// PrintDeps prints a dependency query result
func PrintDeps(w io.Writer, title, path string, deps []string) {
	bold.Fprintf(w, "%s of %s", title, path)
	fmt.Fprintf(w, " (%d)\n", len(deps))
	for _, d := range deps {
		fmt.Fprintf(w, "  %s\n", d)
	}
}

// PrintCycles lists cyclic components, largest first
func PrintCycles(w io.Writer, list []cycles.FileCycle) {
	if len(list) == 0 {
		green.Fprintln(w, "✓ No dependency cycles")
		return
	}
	sorted := slices.Clone(list)
	slices.SortStableFunc(sorted, func(a, b cycles.FileCycle) int {
		return len(b.Files) - len(a.Files)
	})

	red.Fprintf(w, "Found %d dependency cycle(s)\n", len(sorted))
	for i, c := range sorted {
		bold.Fprintf(w, "\nCycle %d", i+1)
		fmt.Fprintf(w, " (%d files)\n", len(c.Files))
		for _, f := range c.Files {
			yellow.Fprintf(w, "  %s\n", f)
		}
	}
}

// PrintPaths prints the result of a path search
func PrintPaths(w io.Writer, result query.PathResult) {
	if result.Direct {
		cyan.Fprintln(w, "Direct dependency exists")
	}
	if len(result.Paths) == 0 {
		fmt.Fprintln(w, "No indirect paths")
		return
	}
	for _, p := range result.Paths {
		fmt.Fprintf(w, "  [%d] %s\n", len(p)-1, strings.Join(p, " -> "))
	}
	if result.Truncated {
		yellow.Fprintf(w, "Path limit reached after %d paths\n", len(result.Paths))
	}
}

// PrintClassification prints illegal edges grouped by source
func PrintClassification(w io.Writer, c rules.Classification) {
	if c.Count() == 0 {
		green.Fprintln(w, "✓ All dependencies are legal")
		return
	}
	red.Fprintf(w, "%d illegal edge(s)\n", c.Count())

	sources := make([]string, 0, len(c))
	for src := range c {
		sources = append(sources, src)
	}
	slices.Sort(sources)
	for _, src := range sources {
		bold.Fprintf(w, "\n%s\n", src)
		for _, v := range c[src] {
			cyan.Fprintf(w, "  %s\n", v.Rule.Descriptor())
			for _, t := range v.Targets {
				fmt.Fprintf(w, "    -> %s\n", t)
			}
		}
	}
}

// PrintAnnotations prints one line per annotated path, colored by its class
func PrintAnnotations(w io.Writer, annotations map[string]model.Annotation) {
	paths := make([]string, 0, len(annotations))
	for p := range annotations {
		paths = append(paths, p)
	}
	slices.Sort(paths)

	for _, p := range paths {
		a := annotations[p]
		depth := "-"
		if a.Depth >= 0 {
			depth = fmt.Sprint(a.Depth)
		}
		marker := " "
		if a.InCycle {
			marker = "↻"
		}
		colorOf(a.Color).Fprintf(w, "%-6s", a.Color)
		fmt.Fprintf(w, " %s %5s  %s\n", marker, depth, p)
	}
}

// PrintBlockers prints the nodes holding back yellow nodes
func PrintBlockers(w io.Writer, blockers []cycles.Blocker) {
	if len(blockers) == 0 {
		return
	}
	bold.Fprintln(w, "Top blockers")
	for _, b := range blockers {
		fmt.Fprintf(w, "  %10d  %s\n", b.Blocked, b.Path)
	}
}

// PrintRollup prints per-directory size totals by color
func PrintRollup(w io.Writer, dirs []analysis.DirRollup) {
	for _, d := range dirs {
		fmt.Fprintf(w, "%-40s ", d.Dir)
		green.Fprintf(w, "%8d ", d.Green)
		yellow.Fprintf(w, "%8d ", d.Yellow)
		red.Fprintf(w, "%8d\n", d.Red)
	}
}
