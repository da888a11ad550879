package codec

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ritzau/depgraph/pkg/graph"
	"github.com/ritzau/depgraph/pkg/model"
)

func sampleNodes() []*model.Node {
	return []*model.Node{
		model.NewNode("app/main.cc", "app", "main", 1200, []string{"lib/api.h", "<vector>"}),
		model.NewNode("lib/api.h", "lib", "Api", 300, []string{"lib/impl.h"}),
		model.NewNode("lib/impl.h", "lib", "Impl", 5_000_000_000, []string{"lib/api.h", "lib/impl.h"}),
		model.NewNode("empty.h", "", "", 0, nil),
	}
}

func TestRoundTrip(t *testing.T) {
	snap := graph.NewStore().Replace(sampleNodes())

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, snap))

	nodes, err := Decode(&buf)
	require.NoError(t, err)
	assert.True(t, model.NodesEqual(sampleNodes(), nodes))
}

func TestRoundTrip_Empty(t *testing.T) {
	data, err := Marshal(graph.NewStore().Snapshot())
	require.NoError(t, err)

	nodes, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Empty(t, nodes)
}

func TestSerialize_KeyedByPath(t *testing.T) {
	snap := graph.NewStore().Replace(sampleNodes())

	rec := Serialize(snap)

	assert.Equal(t, SchemaV2, rec.Schema)
	require.Contains(t, rec.Files, "lib/api.h")
	assert.Equal(t, FileRecord{Module: "lib", Classifier: "Api", Size: 300, Dependencies: []string{"lib/impl.h"}}, rec.Files["lib/api.h"])
	assert.Equal(t, []string{}, rec.Files["empty.h"].Dependencies)
	assert.NotContains(t, rec.Files, "<vector>", "external targets are not persisted as nodes")
}

func TestDecode_MissingModuleAndClassifier(t *testing.T) {
	input := `{"schema":"depgraph/2","files":{"a.cc":{"size":4294967296,"dependencies":["b.h"]}}}`

	nodes, err := Unmarshal([]byte(input))

	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "", nodes[0].Module)
	assert.Equal(t, "", nodes[0].Classifier)
	assert.Equal(t, uint64(4294967296), nodes[0].Size)
	assert.Equal(t, []string{"b.h"}, nodes[0].Dependencies)
}

func TestDecode_LegacyV1(t *testing.T) {
	input := `{"schema":"depgraph/1","files":[
		{"path":"a.cc","size":2147483647,"dependencies":["b.h","b.h"]},
		{"path":"b.h","size":0}
	]}`

	nodes, err := Unmarshal([]byte(input))

	require.NoError(t, err)
	expected := []*model.Node{
		model.NewNode("a.cc", "", "", 2147483647, []string{"b.h"}),
		model.NewNode("b.h", "", "", 0, nil),
	}
	assert.True(t, model.NodesEqual(expected, nodes))
}

func TestDecode_UntaggedList(t *testing.T) {
	nodes, err := Unmarshal([]byte(`{"files":[{"path":"a.cc","size":3}]}`))

	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, uint64(3), nodes[0].Size)
}

func TestDecode_LegacyXML(t *testing.T) {
	input := `<?xml version="1.0" encoding="UTF-8"?>
<project version="4">
  <component name="DependenciesGraph">
    <graph>
      <files>
        <file path="/src/A.kt" size="120">
          <dependencies>
            <file path="/src/B.kt" />
            <file path="/src/C.kt" />
          </dependencies>
        </file>
        <file path="/src/B.kt" size="40" />
      </files>
    </graph>
  </component>
</project>`

	nodes, err := Decode(strings.NewReader(input))

	require.NoError(t, err)
	expected := []*model.Node{
		model.NewNode("/src/A.kt", "", "", 120, []string{"/src/B.kt", "/src/C.kt"}),
		model.NewNode("/src/B.kt", "", "", 40, nil),
	}
	assert.True(t, model.NodesEqual(expected, nodes), "got %v", nodes)
}

func TestDecode_Malformed(t *testing.T) {
	inputs := map[string]string{
		"empty":          "",
		"not json":       "{nope",
		"unknown schema": `{"schema":"depgraph/9","files":{}}`,
		"no schema map":  `{"files":{}}`,
		"negative size":  `{"schema":"depgraph/1","files":[{"path":"a","size":-1}]}`,
		"size overflow":  `{"schema":"depgraph/1","files":[{"path":"a","size":4294967296}]}`,
		"wrong shape":    `{"schema":"depgraph/2","files":[]}`,
		"empty path":     `{"schema":"depgraph/2","files":{"":{}}}`,
		"xml no files":   `<graph></graph>`,
		"broken xml":     `<graph><files><file path="a"`,
	}

	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			_, err := Unmarshal([]byte(input))
			assert.ErrorIs(t, err, ErrMalformedState)
		})
	}
}

func TestDeserialize_RejectsNil(t *testing.T) {
	_, err := Deserialize(nil)
	assert.ErrorIs(t, err, ErrMalformedState)
}
