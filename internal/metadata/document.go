// Package metadata parses XML sidecar files into generic attributed trees
// and resolves catalog fields against them through ordered fallback paths.
package metadata

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/clbanning/mxj/v2"
)

// Dialect identifies the source metadata schema a sidecar file follows.
type Dialect string

const (
	DialectFGDC    Dialect = "fgdc"
	DialectMODS    Dialect = "mods"
	DialectISO     Dialect = "iso19115"
	DialectUnknown Dialect = "unknown"
)

// Document is one parsed sidecar file. The tree is the generic
// map-of-maps form: element text under "#text" when attributes are
// present, attributes as plain keys, repeated elements as slices.
type Document struct {
	Path    string
	Dialect Dialect
	Tree    map[string]any
}

func init() {
	// Attributes merge into the element map without a prefix, matching the
	// attr_prefix='' convention the crosswalk tables assume.
	mxj.SetAttrPrefix("")
}

// Parse reads and parses a single XML file.
func Parse(path string) (*Document, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := mxj.NewMapXml(bs)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	tree := map[string]any(m)
	return &Document{
		Path:    path,
		Dialect: inferDialect(tree),
		Tree:    tree,
	}, nil
}

func inferDialect(tree map[string]any) Dialect {
	for key := range tree {
		switch {
		case key == "mods" || strings.HasSuffix(key, ":mods"):
			return DialectMODS
		case key == "metadata":
			return DialectFGDC
		case strings.HasSuffix(key, ":MI_Metadata") || strings.HasSuffix(key, ":MD_Metadata"):
			return DialectISO
		}
	}
	return DialectUnknown
}

// Discover finds and parses every XML sidecar in folder. File matching is
// case-insensitive; the returned documents follow directory order.
func Discover(folder string) ([]*Document, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, err
	}
	var docs []*Document
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !strings.EqualFold(filepath.Ext(entry.Name()), ".xml") {
			continue
		}
		doc, err := Parse(filepath.Join(folder, entry.Name()))
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
