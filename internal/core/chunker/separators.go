package chunker

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// separator proposes byte offsets at which a text may be cut. Offsets need
// not be filtered; the splitter discards anything outside (0, len).
type separator interface {
	cuts(text string) []int
}

// regexSeparator cuts before each match, or after it when after is set.
type regexSeparator struct {
	re    *regexp.Regexp
	after bool
}

func (s regexSeparator) cuts(text string) []int {
	locs := s.re.FindAllStringIndex(text, -1)
	out := make([]int, 0, len(locs))
	for _, loc := range locs {
		if s.after {
			out = append(out, loc[1])
		} else {
			out = append(out, loc[0])
		}
	}
	return out
}

func before(pattern string) separator {
	return regexSeparator{re: regexp.MustCompile(pattern)}
}

func after(pattern string) separator {
	return regexSeparator{re: regexp.MustCompile(pattern), after: true}
}

// syntaxSeparator cuts at the start line of every top-level node of a
// tree-sitter parse. A failed or erroneous parse yields no cuts.
type syntaxSeparator struct {
	language func() *sitter.Language
}

func (s syntaxSeparator) cuts(text string) []int {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(s.language())

	tree, err := parser.ParseCtx(context.Background(), nil, []byte(text))
	if err != nil || tree == nil {
		return nil
	}
	root := tree.RootNode()
	if root == nil || root.HasError() {
		return nil
	}

	out := make([]int, 0, int(root.ChildCount()))
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		if child == nil {
			continue
		}
		out = append(out, lineStart(text, int(child.StartByte())))
	}
	return out
}

func lineStart(text string, off int) int {
	if off > len(text) {
		off = len(text)
	}
	if i := strings.LastIndexByte(text[:off], '\n'); i >= 0 {
		return i + 1
	}
	return 0
}

var (
	blankLineSep = after(`\n[ \t]*\n`)
	newlineSep   = after(`\n`)
	spaceSep     = after(` +`)

	genericSeps = []separator{blankLineSep, newlineSep, spaceSep}

	markdownSeps = []separator{
		before(`(?m)^#{1,6}[ \t]`),
		before("(?m)^(?:```|~~~)"),
		before(`(?m)^(?:-{3,}|\*{3,}|_{3,})[ \t]*$`),
		blankLineSep,
		newlineSep,
		spaceSep,
	}

	dataSeps = []separator{
		before(`(?m)^---[ \t]*$`),
		blankLineSep,
		newlineSep,
		spaceSep,
	}

	pythonSeps = []separator{
		before(`(?m)^(?:async[ \t]+def|def|class)[ \t]`),
		before(`(?m)^[ \t]+(?:async[ \t]+def|def)[ \t]`),
	}
	scriptSeps = []separator{
		before(`(?m)^(?:export[ \t]+)?(?:default[ \t]+)?(?:async[ \t]+)?(?:function|class|const|let|var|interface|type|enum)\b`),
		before(`(?m)^[ \t]*(?:if|for|while|switch|case|default)\b`),
	}
	goSeps = []separator{
		before(`(?m)^(?:func|type|var|const)\b`),
		before(`(?m)^[ \t]*(?:if|for|switch|case|select)\b`),
	}
)

type codeLanguage struct {
	syntax   func() *sitter.Language
	keywords []separator
}

var codeLanguages = map[string]codeLanguage{
	".py":  {syntax: python.GetLanguage, keywords: pythonSeps},
	".js":  {syntax: javascript.GetLanguage, keywords: scriptSeps},
	".jsx": {syntax: javascript.GetLanguage, keywords: scriptSeps},
	".mjs": {syntax: javascript.GetLanguage, keywords: scriptSeps},
	".ts":  {syntax: typescript.GetLanguage, keywords: scriptSeps},
	".tsx": {syntax: tsx.GetLanguage, keywords: scriptSeps},
	".go":  {syntax: golang.GetLanguage, keywords: goSeps},
}

// separatorsFor returns the ordered separator hierarchy for path. The
// code-point fallback is implicit and always last.
func separatorsFor(path string) []separator {
	switch DetectType(path) {
	case TypeMarkdown:
		return markdownSeps
	case TypeData:
		return dataSeps
	case TypeCode:
		lang, ok := codeLanguages[strings.ToLower(filepath.Ext(path))]
		if !ok {
			return genericSeps
		}
		seps := make([]separator, 0, 1+len(lang.keywords)+len(genericSeps))
		seps = append(seps, syntaxSeparator{language: lang.syntax})
		seps = append(seps, lang.keywords...)
		return append(seps, genericSeps...)
	default:
		return genericSeps
	}
}
