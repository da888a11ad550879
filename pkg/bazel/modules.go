package bazel

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"path"
	"strings"

	"github.com/ritzau/depgraph/pkg/logging"
)

// ModuleQuery selects the rules whose sources define modules
const ModuleQuery = `kind("cc_.* rule", //...)`

var log = logging.New("bazel")

type queryXML struct {
	Rules []ruleXML `xml:"rule"`
}

type ruleXML struct {
	Class string    `xml:"class,attr"`
	Name  string    `xml:"name,attr"`
	Lists []listXML `xml:"list"`
}

type listXML struct {
	Name   string     `xml:"name,attr"`
	Labels []labelXML `xml:"label"`
}

type labelXML struct {
	Value string `xml:"value,attr"`
}

// sourceAttrs are the rule attributes listing files owned by the rule
var sourceAttrs = map[string]bool{
	"srcs":         true,
	"hdrs":         true,
	"textual_hdrs": true,
}

// ModuleMap maps workspace-relative file paths to the label of the
// target that owns them
type ModuleMap map[string]string

// ModuleOf returns the owning target of p
func (m ModuleMap) ModuleOf(p string) (string, bool) {
	label, ok := m[p]
	return label, ok
}

// LoadModules queries the workspace for its C++ rules and maps each
// listed source and header to its rule. A file listed by several rules
// belongs to the first one in query order.
func LoadModules(ctx context.Context, exec Executor, workspace string) (ModuleMap, error) {
	out, err := exec.RunQuery(ctx, workspace, ModuleQuery)
	if err != nil {
		return nil, err
	}
	m, err := ParseModules(out)
	if err != nil {
		return nil, err
	}
	log.Info("Resolved modules from Bazel targets", "files", len(m))
	return m, nil
}

// ParseModules reads `bazel query --output=xml` output
func ParseModules(data []byte) (ModuleMap, error) {
	// Bazel declares XML 1.1, which encoding/xml rejects
	data = bytes.Replace(data, []byte(`<?xml version="1.1"`), []byte(`<?xml version="1.0"`), 1)

	var result queryXML
	if err := xml.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("parse query output: %w", err)
	}

	m := make(ModuleMap)
	for _, rule := range result.Rules {
		if !strings.HasPrefix(rule.Class, "cc_") {
			continue
		}
		for _, list := range rule.Lists {
			if !sourceAttrs[list.Name] {
				continue
			}
			for _, label := range list.Labels {
				p, ok := LabelToPath(label.Value)
				if !ok {
					continue
				}
				if _, taken := m[p]; !taken {
					m[p] = rule.Name
				}
			}
		}
	}
	return m, nil
}

// LabelToPath converts a main-repository file label to a workspace path:
// "//util:strings.cc" is "util/strings.cc" and "//:main.cc" is "main.cc".
// Labels of external repositories are rejected.
func LabelToPath(label string) (string, bool) {
	rest, ok := strings.CutPrefix(label, "//")
	if !ok {
		return "", false
	}
	pkg, name, found := strings.Cut(rest, ":")
	if !found || name == "" {
		return "", false
	}
	return path.Join(pkg, name), true
}
