package deps

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/ritzau/depgraph/pkg/model"
)

// FileDependency represents dependencies for a single source file
type FileDependency struct {
	SourceFile   string   // e.g., "util/math.cc"
	Dependencies []string // e.g., ["util/math.h", "util/strings.h"]
}

var sourceExtensions = map[string]bool{
	".c": true, ".cc": true, ".cpp": true, ".cxx": true, ".m": true, ".mm": true,
}

// ParseDFile parses a Makefile-style .d dependency file
// Format: target.o: dep1.cc dep2.h dep3.h ...
func ParseDFile(path string) (*FileDependency, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()
	return parseDFile(file)
}

func parseDFile(r io.Reader) (*FileDependency, error) {
	var prerequisites []string

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	var currentLine strings.Builder
	inRule := false

	for scanner.Scan() {
		line := scanner.Text()

		// Handle line continuations (backslash at end)
		trimmed := strings.TrimSpace(line)
		if strings.HasSuffix(trimmed, "\\") {
			currentLine.WriteString(strings.TrimSuffix(trimmed, "\\"))
			currentLine.WriteString(" ")
			continue
		}

		currentLine.WriteString(line)
		fullLine := currentLine.String()
		currentLine.Reset()

		// Only the first rule counts; later "header.h:" phony rules from -MP are skipped
		if inRule {
			continue
		}
		if idx := strings.Index(fullLine, ":"); idx != -1 {
			inRule = true
			for _, dep := range strings.Fields(fullLine[idx+1:]) {
				if isWorkspaceFile(dep) {
					prerequisites = append(prerequisites, dep)
				}
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	fd := &FileDependency{}
	for _, dep := range prerequisites {
		if fd.SourceFile == "" && sourceExtensions[path.Ext(dep)] {
			fd.SourceFile = dep
			continue
		}
		fd.Dependencies = append(fd.Dependencies, dep)
	}
	return fd, nil
}

// isWorkspaceFile checks if a path is a workspace file (not system include)
func isWorkspaceFile(path string) bool {
	// Absolute paths are system includes
	if filepath.IsAbs(path) {
		return false
	}

	// External Bazel dependencies start with "external/"
	if strings.HasPrefix(path, "external/") {
		return false
	}

	// bazel-out paths are build artifacts, not source
	if strings.HasPrefix(path, "bazel-out/") {
		return false
	}

	return true
}

// DFileExtractor turns compiler .d files into extraction records
type DFileExtractor struct {
	// Workspace is used to look up source sizes; sizes are 0 when unset
	Workspace string
	// Modules overrides the path-derived module when it knows the file
	Modules ModuleResolver
}

// ModuleResolver maps a workspace-relative path to its module
type ModuleResolver interface {
	ModuleOf(path string) (string, bool)
}

// Extract parses one .d file. The module comes from Modules when set and
// otherwise is the first path component of the source file. The classifier
// is the base name without extension.
func (e DFileExtractor) Extract(ctx context.Context, input string) ([]*model.Extraction, error) {
	fd, err := ParseDFile(input)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", input, err)
	}
	if fd.SourceFile == "" {
		return nil, fmt.Errorf("parse %s: no source file in rule", input)
	}

	ext := &model.Extraction{
		Path:         fd.SourceFile,
		Module:       ModuleOf(fd.SourceFile),
		Classifier:   ClassifierOf(fd.SourceFile),
		Dependencies: fd.Dependencies,
	}
	if e.Modules != nil {
		if m, ok := e.Modules.ModuleOf(fd.SourceFile); ok {
			ext.Module = m
		}
	}
	if e.Workspace != "" {
		if info, err := os.Stat(filepath.Join(e.Workspace, filepath.FromSlash(fd.SourceFile))); err == nil {
			ext.Size = uint64(info.Size())
		}
	}
	return []*model.Extraction{ext}, nil
}

// ModuleOf returns the first component of a workspace-relative path
func ModuleOf(p string) string {
	first, _, found := strings.Cut(p, "/")
	if !found {
		return ""
	}
	return first
}

// ClassifierOf returns the base name without extension
func ClassifierOf(p string) string {
	base := path.Base(p)
	return strings.TrimSuffix(base, path.Ext(base))
}
