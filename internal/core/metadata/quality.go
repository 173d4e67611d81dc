package metadata

import (
	"strings"
	"unicode/utf8"
)

// QualityScore rates a chunk in [0,1]. Length is measured in code points.
func QualityScore(content string) float64 {
	score := 0.5

	n := utf8.RuneCountInString(content)
	switch {
	case n >= 200 && n <= 1000:
		score += 0.2
	case n < 100:
		score -= 0.1
	}

	if strings.Contains(content, "```") {
		score += 0.1
	}
	if strings.Contains(content, "#") {
		score += 0.1
	}
	if strings.Contains(content, "[") && strings.Contains(content, "](") {
		score += 0.05
	}

	return min(1, max(0, score))
}
