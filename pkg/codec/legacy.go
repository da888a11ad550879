package codec

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"

	"github.com/ritzau/depgraph/pkg/model"
)

type legacyFile struct {
	Path         string   `json:"path"`
	Size         int32    `json:"size"`
	Dependencies []string `json:"dependencies"`
}

func decodeV1(files []byte) ([]*model.Node, error) {
	var list []legacyFile
	if len(files) > 0 {
		if err := json.Unmarshal(files, &list); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedState, err)
		}
	}
	return upgrade(list)
}

// upgrade widens legacy entries; module and classifier stay empty
func upgrade(list []legacyFile) ([]*model.Node, error) {
	rec := &Record{Schema: SchemaV2, Files: make(map[string]FileRecord, len(list))}
	for _, f := range list {
		if f.Size < 0 {
			return nil, fmt.Errorf("%w: negative size %d for %q", ErrMalformedState, f.Size, f.Path)
		}
		// Later duplicates replace earlier ones, as upserts would
		rec.Files[f.Path] = FileRecord{
			Size:         uint64(f.Size),
			Dependencies: f.Dependencies,
		}
	}
	return Deserialize(rec)
}

type xmlFiles struct {
	Files []xmlFile `xml:"file"`
}

type xmlFile struct {
	Path         string   `xml:"path,attr"`
	Size         int32    `xml:"size,attr"`
	Dependencies []xmlDep `xml:"dependencies>file"`
}

type xmlDep struct {
	Path string `xml:"path,attr"`
}

// decodeXML reads the plugin's state file: the first <files> element
// anywhere in the document holds the graph.
func decodeXML(data []byte) ([]*model.Node, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: no <files> element", ErrMalformedState)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedState, err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "files" {
			continue
		}

		var files xmlFiles
		if err := dec.DecodeElement(&files, &start); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedState, err)
		}
		list := make([]legacyFile, 0, len(files.Files))
		for _, f := range files.Files {
			deps := make([]string, 0, len(f.Dependencies))
			for _, d := range f.Dependencies {
				deps = append(deps, d.Path)
			}
			list = append(list, legacyFile{Path: f.Path, Size: f.Size, Dependencies: deps})
		}
		return upgrade(list)
	}
}
