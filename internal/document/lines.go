package document

import (
	"math"
	"sort"
	"strings"
)

// DefaultLineTolerance is the vertical distance within which tokens are
// considered part of the same text line.
const DefaultLineTolerance = 3.0

// ClusterLines groups tokens into lines by Y proximity, orders each line by
// X and joins token text with spaces. Lines are returned top to bottom.
func ClusterLines(tokens []Token, tolerance float64) []string {
	if len(tokens) == 0 {
		return nil
	}
	sorted := make([]Token, len(tokens))
	copy(sorted, tokens)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Y > sorted[j].Y })

	var groups [][]Token
	var anchor float64
	for _, t := range sorted {
		if len(groups) == 0 || math.Abs(anchor-t.Y) > tolerance {
			groups = append(groups, []Token{t})
			anchor = t.Y
			continue
		}
		groups[len(groups)-1] = append(groups[len(groups)-1], t)
	}

	lines := make([]string, 0, len(groups))
	for _, g := range groups {
		sort.SliceStable(g, func(i, j int) bool { return g[i].X < g[j].X })
		if line := joinTokens(g); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// NaiveLines keeps content-stream order and starts a new line whenever the
// Y coordinate changes at all. It is the loose fallback for layouts where
// clustering merges or splits rows wrongly.
func NaiveLines(pages []Page) []string {
	var lines []string
	for _, p := range pages {
		var cur []Token
		for i, t := range p.Tokens {
			if i > 0 && t.Y != p.Tokens[i-1].Y {
				if line := joinTokens(cur); line != "" {
					lines = append(lines, line)
				}
				cur = nil
			}
			cur = append(cur, t)
		}
		if line := joinTokens(cur); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// PageLines clusters every page and concatenates the results.
func PageLines(pages []Page, tolerance float64) []string {
	var lines []string
	for _, p := range pages {
		lines = append(lines, ClusterLines(p.Tokens, tolerance)...)
	}
	return lines
}

func joinTokens(tokens []Token) string {
	parts := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if s := strings.TrimSpace(t.Text); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}
