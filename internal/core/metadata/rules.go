package metadata

import (
	"path/filepath"
	"sort"
	"strings"
)

// categoryRule matches when any needle occurs in the lowercased path, or when
// the extension is listed. Rules are evaluated in order; first match wins.
type categoryRule struct {
	category string
	needles  []string
	exts     []string
}

var categoryRules = []categoryRule{
	{category: "architecture", needles: []string{"architecture", "adr"}},
	{category: "guide", needles: []string{"guide", "tutorial"}},
	{category: "runbook", needles: []string{"runbook", "ops"}},
	{category: "troubleshooting", needles: []string{"troubleshoot"}},
	{category: "code", exts: []string{".py", ".ts", ".tsx", ".js", ".jsx", ".mjs", ".go"}},
	{category: "configuration", exts: []string{".yaml", ".yml"}},
}

const defaultCategory = "documentation"

// Category classifies a file by its path.
func Category(path string) string {
	lower := strings.ToLower(filepath.ToSlash(path))
	ext := strings.ToLower(filepath.Ext(path))
	for _, r := range categoryRules {
		for _, n := range r.needles {
			if strings.Contains(lower, n) {
				return r.category
			}
		}
		for _, e := range r.exts {
			if ext == e {
				return r.category
			}
		}
	}
	return defaultCategory
}

type tagRule struct {
	tag     string
	needles []string
	// caseSensitive matches against the path as given instead of lowercased.
	caseSensitive bool
}

var tagRules = []tagRule{
	{tag: "azure", needles: []string{"azure"}},
	{tag: "terraform", needles: []string{"terraform"}},
	{tag: "kubernetes", needles: []string{"kubernetes", "k8s"}},
	{tag: "dify", needles: []string{"dify"}},
	{tag: "fastapi", needles: []string{"fastapi"}},
	{tag: "nextjs", needles: []string{"nextjs", "next.js"}},
	{tag: "documentation", needles: []string{"docs/"}, caseSensitive: true},
	{tag: "application", needles: []string{"apps/"}, caseSensitive: true},
	{tag: "automation", needles: []string{"scripts/"}, caseSensitive: true},
}

// Tags returns the sorted, de-duplicated tag set for path.
func Tags(path string) []string {
	slashed := filepath.ToSlash(path)
	lower := strings.ToLower(slashed)
	seen := make(map[string]struct{})
	for _, r := range tagRules {
		hay := lower
		if r.caseSensitive {
			hay = slashed
		}
		for _, n := range r.needles {
			if strings.Contains(hay, n) {
				seen[r.tag] = struct{}{}
				break
			}
		}
	}
	tags := make([]string, 0, len(seen))
	for t := range seen {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

var languages = map[string]string{
	"md":       "markdown",
	"markdown": "markdown",
	"mdx":      "markdown",
	"py":       "python",
	"ts":       "typescript",
	"tsx":      "typescript",
	"js":       "javascript",
	"jsx":      "javascript",
	"mjs":      "javascript",
	"go":       "go",
	"yaml":     "yaml",
	"yml":      "yaml",
	"json":     "json",
	"sh":       "shell",
	"bash":     "shell",
	"sql":      "sql",
	"tf":       "hcl",
}

// Language maps an extension to a language name, "text" when unknown.
func Language(path string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if l, ok := languages[ext]; ok {
		return l
	}
	return "text"
}
