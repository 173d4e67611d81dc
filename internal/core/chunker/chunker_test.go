package chunker

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/ksync/internal/core/metadata"
)

// assertWellFormed checks the structural contract every split must satisfy.
func assertWellFormed(t *testing.T, text string, chunks []Chunk, size int) {
	t.Helper()
	require.NotEmpty(t, chunks)
	assert.Equal(t, 0, chunks[0].Start, "first chunk starts at the beginning")
	assert.Equal(t, len(text), chunks[len(chunks)-1].End, "last chunk ends at the end")
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.Equal(t, text[c.Start:c.End], c.Text, "chunk %d is an exact substring", i)
		assert.LessOrEqual(t, utf8.RuneCountInString(c.Text), size, "chunk %d exceeds size", i)
		assert.True(t, utf8.ValidString(c.Text) || !utf8.ValidString(text), "chunk %d splits a code point", i)
		if i > 0 {
			prev := chunks[i-1]
			assert.LessOrEqual(t, c.Start, prev.End, "gap between chunk %d and %d", i-1, i)
			assert.Greater(t, c.Start, prev.Start, "chunk %d does not advance", i)
		}
	}
}

func deploymentGuide() string {
	var b strings.Builder
	b.WriteString("# Deployment Guide\n\n")
	for i := 1; b.Len() < 2500; i++ {
		fmt.Fprintf(&b, "## Step %d\n\n", i)
		b.WriteString(strings.Repeat("Run the pipeline and confirm the rollout finished cleanly. ", 6))
		b.WriteString("\n\n")
	}
	return b.String()
}

func TestSplitEmptyAndWhitespace(t *testing.T) {
	c := New(nil)
	assert.Empty(t, c.Split("docs/empty.md", ""))
	assert.Empty(t, c.Split("docs/blank.md", " \n\t \n"))
}

func TestSplitShortContentIsOneChunk(t *testing.T) {
	c := New(nil)
	text := "# Title\n\nShort body."
	chunks := c.Split("README.md", text)
	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0].Text)
	assert.Equal(t, ApproxTokens(text), chunks[0].Tokens)
}

func TestSplitMarkdownOnHeaders(t *testing.T) {
	c := New(nil)
	text := deploymentGuide()
	require.Greater(t, len(text), 2500)

	chunks := c.Split("docs/guides/deploy.md", text)

	assertWellFormed(t, text, chunks, 800)
	assert.Len(t, chunks, 4)
	for _, ch := range chunks {
		assert.True(t, strings.HasPrefix(ch.Text, "#"), "chunk should start at a header: %q", ch.Text[:20])
	}
}

// paragraph returns n bytes of prose ending in a blank line.
func paragraph(n int) string {
	prose := strings.Repeat("Operators confirm the rollout before promoting the build. ", n/50+1)
	return prose[:n] + "\n\n"
}

// releaseGuide is an intro, an install section and a usage section holding
// one shell fence.
func releaseGuide() string {
	var b strings.Builder
	for i := 0; i < 4; i++ {
		b.WriteString(paragraph(198))
	}
	b.WriteString("## Install\n\n")
	for i := 0; i < 4; i++ {
		b.WriteString(paragraph(198))
	}
	b.WriteString("## Usage\n\n")
	b.WriteString(paragraph(198))
	b.WriteString(paragraph(198))
	b.WriteString("```sh\n")
	for i := 0; i < 5; i++ {
		fmt.Fprintf(&b, "%-39s\n", fmt.Sprintf("make release STAGE=%d", i))
	}
	b.WriteString("```\n\n")
	b.WriteString(paragraph(270)[:271])
	return b.String()
}

func TestSplitMarkdownGuideWithFence(t *testing.T) {
	c := New(nil)
	text := releaseGuide()
	require.Equal(t, 2504, len(text))

	chunks := c.Split("docs/release.md", text)

	assertWellFormed(t, text, chunks, 800)
	require.GreaterOrEqual(t, len(chunks), 3)
	require.LessOrEqual(t, len(chunks), 4)
	fenced := 0
	for i, ch := range chunks {
		assert.GreaterOrEqual(t, metadata.QualityScore(ch.Text), 0.6, "chunk %d quality", i)
		if strings.Contains(ch.Text, "```sh") {
			fenced++
			assert.Equal(t, 2, strings.Count(ch.Text, "```"), "fence opens and closes in one chunk")
		}
	}
	assert.Equal(t, 1, fenced)
	assert.True(t, strings.HasPrefix(chunks[1].Text, "## Install"))
}

func TestSplitOverlapsOnLines(t *testing.T) {
	c := New(nil)
	var b strings.Builder
	for i := 0; i < 60; i++ {
		fmt.Fprintf(&b, "line %03d of the operations runbook\n", i)
	}
	text := b.String()

	chunks := c.Split("notes.txt", text)

	assertWellFormed(t, text, chunks, 500)
	require.Len(t, chunks, 5)
	for i := 1; i < len(chunks); i++ {
		overlap := chunks[i-1].End - chunks[i].Start
		assert.Equal(t, 35, overlap, "one trailing line carries over")
		assert.LessOrEqual(t, overlap, 50)
	}
}

func TestSplitFallsBackToCodePoints(t *testing.T) {
	c := New(nil)
	text := strings.Repeat("x", 1300)

	chunks := c.Split("blob.txt", text)

	assertWellFormed(t, text, chunks, 500)
	require.Len(t, chunks, 3)
	assert.Equal(t, 500, len(chunks[0].Text))
	assert.Equal(t, 300, len(chunks[2].Text))
}

func TestSplitCountsCodePointsNotBytes(t *testing.T) {
	c := New(nil)
	text := strings.Repeat("é", 1200)

	chunks := c.Split("accents.txt", text)

	assertWellFormed(t, text, chunks, 500)
	require.Len(t, chunks, 3)
	assert.Equal(t, 500, utf8.RuneCountInString(chunks[0].Text))
	assert.Equal(t, 1000, len(chunks[0].Text))
}

func pythonModule(n int) string {
	var b strings.Builder
	b.WriteString("import os\n\n\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "def handler_%d(event, context):\n", i)
		b.WriteString("    \"\"\"Handle one incoming event and record the outcome.\"\"\"\n")
		fmt.Fprintf(&b, "    value = event.get(\"payload_%d\")\n", i)
		b.WriteString("    if value is None:\n        return {\"status\": \"skipped\"}\n")
		b.WriteString("    os.environ.setdefault(\"LAST_EVENT\", str(value))\n")
		b.WriteString("    return {\"status\": \"ok\", \"value\": value}\n\n\n")
	}
	return b.String()
}

func TestSplitCodeOnDeclarations(t *testing.T) {
	c := New(nil)
	text := pythonModule(8)
	require.Greater(t, utf8.RuneCountInString(text), 600)

	chunks := c.Split("apps/api/handlers.py", text)

	assertWellFormed(t, text, chunks, 600)
	require.Greater(t, len(chunks), 1)
	for _, ch := range chunks[1:] {
		assert.True(t, strings.HasPrefix(ch.Text, "def "), "chunk should start at a function: %q", ch.Text[:12])
	}
}

func TestSplitCodeWithSyntaxErrorStillSplits(t *testing.T) {
	c := New(nil)
	text := "def broken(:\n    pass\n\n\n" + pythonModule(6)

	chunks := c.Split("scripts/broken.py", text)

	assertWellFormed(t, text, chunks, 600)
	for _, ch := range chunks[1:] {
		assert.True(t, strings.HasPrefix(ch.Text, "def "), "keyword separators still apply: %q", ch.Text[:12])
	}
}

func TestSplitGoSource(t *testing.T) {
	c := New(nil)
	var b strings.Builder
	b.WriteString("package sample\n\n")
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&b, "// Step%d runs stage %d.\nfunc Step%d(in []string) []string {\n\tout := make([]string, 0, len(in))\n\tfor _, s := range in {\n\t\tout = append(out, s+\"-%d\")\n\t}\n\treturn out\n}\n\n", i, i, i, i)
	}
	text := b.String()

	chunks := c.Split("internal/sample/steps.go", text)

	assertWellFormed(t, text, chunks, 600)
	assert.Greater(t, len(chunks), 1)
}

func TestSplitYAMLDocuments(t *testing.T) {
	c := New(nil)
	text := "a: 1\nb: 2\n---\n" + strings.Repeat("key: value\n", 60) + "---\n" + strings.Repeat("other: thing\n", 40)

	chunks := c.Split("deploy/values.yaml", text)

	assertWellFormed(t, text, chunks, 400)
	assert.Len(t, chunks, 4)
}

func TestDetectType(t *testing.T) {
	tests := map[string]ContentType{
		"README.md":          TypeMarkdown,
		"docs/Guide.MDX":     TypeMarkdown,
		"app/main.py":        TypeCode,
		"web/page.tsx":       TypeCode,
		"cmd/main.go":        TypeCode,
		"deploy/values.yml":  TypeData,
		"package.json":       TypeData,
		"infra/main.tf":      TypeText,
		"Makefile":           TypeText,
	}
	for path, want := range tests {
		assert.Equal(t, want, DetectType(path), path)
	}
}

func TestPolicyOverridesAndFingerprint(t *testing.T) {
	def := New(nil)
	custom := New(map[ContentType]Policy{TypeMarkdown: {Size: 1000, Overlap: 120}})

	assert.Equal(t, Policy{Size: 800, Overlap: 100}, def.Policy("a.md"))
	assert.Equal(t, Policy{Size: 1000, Overlap: 120}, custom.Policy("a.md"))
	assert.Equal(t, def.Policy("a.py"), custom.Policy("a.py"))

	assert.NotEqual(t, def.Fingerprint("a.md"), custom.Fingerprint("a.md"))
	assert.Equal(t, def.Fingerprint("a.py"), custom.Fingerprint("b.py"))
	assert.NotEqual(t, def.Fingerprint("a.py"), def.Fingerprint("a.md"))
}

func TestLoadPolicyFile(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.yaml")
	require.NoError(t, os.WriteFile(good, []byte("markdown: {size: 1000, overlap: 120}\nCode:\n  size: 700\n  overlap: 70\n"), 0o644))
	policies, err := LoadPolicyFile(good)
	require.NoError(t, err)
	assert.Equal(t, Policy{Size: 1000, Overlap: 120}, policies[TypeMarkdown])
	assert.Equal(t, Policy{Size: 700, Overlap: 70}, policies[TypeCode])

	badOverlap := filepath.Join(dir, "overlap.yaml")
	require.NoError(t, os.WriteFile(badOverlap, []byte("text: {size: 100, overlap: 100}\n"), 0o644))
	_, err = LoadPolicyFile(badOverlap)
	assert.ErrorContains(t, err, "overlap")

	unknown := filepath.Join(dir, "unknown.yaml")
	require.NoError(t, os.WriteFile(unknown, []byte("html: {size: 100, overlap: 10}\n"), 0o644))
	_, err = LoadPolicyFile(unknown)
	assert.ErrorContains(t, err, "unknown content type")

	_, err = LoadPolicyFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestApproxTokens(t *testing.T) {
	assert.Equal(t, 0, ApproxTokens(""))
	assert.Equal(t, 1, ApproxTokens("abc"))
	assert.Equal(t, 2, ApproxTokens("abcde"))
	assert.Equal(t, 1, ApproxTokens("éé"))
}
