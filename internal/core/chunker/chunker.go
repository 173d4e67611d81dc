// Package chunker splits documents into bounded, overlapping segments using a
// separator hierarchy chosen by content type.
//
// Every chunk is an exact substring of the input. Consecutive chunks touch or
// overlap, so the input can be rebuilt from them; only whitespace-only windows
// are dropped.
package chunker

import (
	"strings"
	"unicode/utf8"
)

// Chunk is one segment. Start and End are byte offsets into the source, so
// Text == source[Start:End].
type Chunk struct {
	Index  int
	Text   string
	Start  int
	End    int
	Tokens int
}

type Chunker struct {
	policies map[ContentType]Policy
}

// New returns a chunker using the default policies with overrides applied.
func New(overrides map[ContentType]Policy) *Chunker {
	policies := DefaultPolicies()
	for t, p := range overrides {
		policies[t] = p
	}
	return &Chunker{policies: policies}
}

// Policy returns the effective policy for path.
func (c *Chunker) Policy(path string) Policy {
	return c.policies[DetectType(path)]
}

// Fingerprint identifies the chunking configuration applied to path. Stored
// chunks produced under a different fingerprint are considered stale.
func (c *Chunker) Fingerprint(path string) string {
	t := DetectType(path)
	return fingerprint(t, c.policies[t])
}

// Split never fails: when no separator applies it cuts on code points.
func (c *Chunker) Split(path, text string) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	p := c.Policy(path)
	if utf8.RuneCountInString(text) <= p.Size {
		return []Chunk{{Index: 0, Text: text, Start: 0, End: len(text), Tokens: ApproxTokens(text)}}
	}
	pieces := splitRange(text, 0, len(text), p.Size, separatorsFor(path), nil)
	return merge(text, pieces, p.Size, p.Overlap)
}

// span is a contiguous byte range with its length in code points.
type span struct {
	start, end int
	runes      int
}

// splitRange cuts text[lo:hi] into spans no longer than size, trying each
// separator in order and recursing into oversized segments with the
// remaining, finer separators.
func splitRange(text string, lo, hi, size int, seps []separator, out []span) []span {
	n := utf8.RuneCountInString(text[lo:hi])
	if n <= size {
		return append(out, span{start: lo, end: hi, runes: n})
	}
	for i, sep := range seps {
		cuts := validCuts(sep.cuts(text[lo:hi]), hi-lo)
		if len(cuts) == 0 {
			continue
		}
		prev := lo
		for _, c := range append(cuts, hi-lo) {
			out = splitRange(text, prev, lo+c, size, seps[i+1:], out)
			prev = lo + c
		}
		return out
	}
	return splitRunes(text, lo, hi, size, out)
}

func validCuts(cuts []int, n int) []int {
	out := cuts[:0]
	prev := 0
	for _, c := range cuts {
		if c > prev && c < n {
			out = append(out, c)
			prev = c
		}
	}
	return out
}

func splitRunes(text string, lo, hi, size int, out []span) []span {
	start, count := lo, 0
	for i := range text[lo:hi] {
		if count == size {
			out = append(out, span{start: start, end: lo + i, runes: count})
			start, count = lo+i, 0
		}
		count++
	}
	return append(out, span{start: start, end: hi, runes: count})
}

// merge packs spans greedily into chunks of at most size code points. The
// next chunk re-reads whole trailing spans of the previous one, up to overlap
// code points, and always starts strictly later.
func merge(text string, pieces []span, size, overlap int) []Chunk {
	var chunks []Chunk
	for i := 0; i < len(pieces); {
		j, total := i, pieces[i].runes
		for j+1 < len(pieces) && total+pieces[j+1].runes <= size {
			j++
			total += pieces[j].runes
		}

		start, end := pieces[i].start, pieces[j].end
		if seg := text[start:end]; strings.TrimSpace(seg) != "" {
			chunks = append(chunks, Chunk{
				Index:  len(chunks),
				Text:   seg,
				Start:  start,
				End:    end,
				Tokens: ApproxTokens(seg),
			})
		}

		next := j + 1
		if next >= len(pieces) {
			break
		}
		from := i
		i = next
		for m, tail := j, 0; m > from; m-- {
			tail += pieces[m].runes
			if tail > overlap || tail+pieces[next].runes > size {
				break
			}
			i = m
		}
	}
	return chunks
}

// ApproxTokens is a cheap token estimator (~4 code points per token).
func ApproxTokens(s string) int {
	n := utf8.RuneCountInString(s)
	if n <= 0 {
		return 0
	}
	return (n + 3) / 4
}
