package chunker

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/markdave123-py/ksync/internal/core/hasher"
)

// ContentType selects a chunking policy and separator hierarchy.
type ContentType string

const (
	TypeMarkdown ContentType = "markdown"
	TypeCode     ContentType = "code"
	TypeData     ContentType = "data"
	TypeText     ContentType = "text"
)

// algorithmVersion is folded into fingerprints so a change to the splitting
// rules invalidates previously stored chunks.
const algorithmVersion = "recursive-v1"

// Policy bounds chunk size and overlap, both in Unicode code points.
type Policy struct {
	Size    int `yaml:"size" json:"size"`
	Overlap int `yaml:"overlap" json:"overlap"`
}

func (p Policy) Validate() error {
	if p.Size <= 0 {
		return fmt.Errorf("size must be positive, got %d", p.Size)
	}
	if p.Overlap < 0 || p.Overlap >= p.Size {
		return fmt.Errorf("overlap must be within [0,%d), got %d", p.Size, p.Overlap)
	}
	return nil
}

// DefaultPolicies returns a fresh copy of the built-in policy table.
func DefaultPolicies() map[ContentType]Policy {
	return map[ContentType]Policy{
		TypeMarkdown: {Size: 800, Overlap: 100},
		TypeCode:     {Size: 600, Overlap: 50},
		TypeData:     {Size: 400, Overlap: 50},
		TypeText:     {Size: 500, Overlap: 50},
	}
}

var extTypes = map[string]ContentType{
	".md":       TypeMarkdown,
	".markdown": TypeMarkdown,
	".mdx":      TypeMarkdown,
	".py":       TypeCode,
	".ts":       TypeCode,
	".tsx":      TypeCode,
	".js":       TypeCode,
	".jsx":      TypeCode,
	".mjs":      TypeCode,
	".go":       TypeCode,
	".yaml":     TypeData,
	".yml":      TypeData,
	".json":     TypeData,
}

// DetectType maps a path to its content type by extension.
func DetectType(path string) ContentType {
	if t, ok := extTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return t
	}
	return TypeText
}

// LoadPolicyFile reads per-type overrides from a YAML document such as:
//
//	markdown: {size: 1000, overlap: 120}
//	code:     {size: 800,  overlap: 80}
func LoadPolicyFile(path string) (map[ContentType]Policy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read chunk policy file: %w", err)
	}
	var doc map[string]Policy
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse chunk policy file: %w", err)
	}
	known := DefaultPolicies()
	out := make(map[ContentType]Policy, len(doc))
	for name, p := range doc {
		t := ContentType(strings.ToLower(name))
		if _, ok := known[t]; !ok {
			return nil, fmt.Errorf("chunk policy %q: unknown content type", name)
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("chunk policy %q: %w", name, err)
		}
		out[t] = p
	}
	return out, nil
}

func fingerprint(t ContentType, p Policy) string {
	key := fmt.Sprintf("%s|%s|%d|%d", algorithmVersion, t, p.Size, p.Overlap)
	return hasher.HashString(key)[:16]
}
