// Package finder enumerates the extractor inputs of a workspace.
package finder

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

const (
	dfileExt    = ".d"
	jsonlSuffix = ".deps.jsonl"
)

// IsInput reports whether path names an extractor input
func IsInput(path string) bool {
	base := filepath.Base(path)
	if strings.HasSuffix(base, jsonlSuffix) {
		return true
	}
	// We want "math.d" but not "math.ii.d" or "math.s.d"
	return filepath.Ext(base) == dfileExt && strings.Count(base, ".") == 1
}

// FindInputs returns the sorted .d and .deps.jsonl files of a workspace.
// The workspace tree is walked without bazel-* directories and .git; the
// bazel-out symlink, when present, is resolved and walked separately.
func FindInputs(workspaceRoot string) ([]string, error) {
	var inputs []string

	err := filepath.WalkDir(workspaceRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != workspaceRoot && (strings.HasPrefix(name, "bazel-") || name == ".git") {
				return filepath.SkipDir
			}
			return nil
		}
		if IsInput(path) {
			inputs = append(inputs, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking workspace: %w", err)
	}

	outputs, err := findBazelOutputs(workspaceRoot)
	if err != nil {
		return nil, err
	}
	inputs = append(inputs, outputs...)

	slices.Sort(inputs)
	return slices.Compact(inputs), nil
}

func findBazelOutputs(workspaceRoot string) ([]string, error) {
	bazelOutPath := filepath.Join(workspaceRoot, "bazel-out")
	resolvedPath, err := filepath.EvalSymlinks(bazelOutPath)
	if err != nil {
		// No bazel-out is not an error
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("resolving bazel-out symlink: %w", err)
	}

	var found []string
	err = filepath.WalkDir(resolvedPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Skip unreadable entries
		}
		if !d.IsDir() && filepath.Ext(path) == dfileExt && IsInput(path) {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking bazel-out directory: %w", err)
	}
	return found, nil
}

// InputDirs returns the distinct directories holding the given inputs
func InputDirs(inputs []string) []string {
	dirs := make([]string, 0, len(inputs))
	for _, in := range inputs {
		dirs = append(dirs, filepath.Dir(in))
	}
	slices.Sort(dirs)
	return slices.Compact(dirs)
}
