package polling

import (
	"regexp"
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/vietddude/pollster/internal/core/domain"
	"github.com/vietddude/pollster/internal/infra/metrics"
)

var labelRe = regexp.MustCompile(`^product\s+(\d+)$`)

// matchRankings ties each parsed ranking entry back to a product. The
// model is told to answer with presentation labels, so that is the
// primary path; an exact title, a substring or fuzzy title match, and
// finally the entry's position are tried in that order. Every non-label
// resolution is recorded, fuzzy and positional ones loudly.
func (s *Simulator) matchRankings(parsed []rankingEntry, entries []entry) []domain.Ranking {
	used := make([]bool, len(entries))
	rankings := make([]domain.Ranking, 0, len(parsed))

	for i, re := range parsed {
		idx, method := s.resolve(re.Product, i, entries, used)
		if idx < 0 {
			s.log.Warn("Dropping ranking entry with no assignable product",
				"name", re.Product,
				"position", i,
			)
			continue
		}
		used[idx] = true
		p := entries[idx].product
		rankings = append(rankings, domain.Ranking{
			ASIN:       p.ASIN,
			Title:      p.Title,
			Percentage: re.Percentage,
			Matched:    method,
		})

		switch method {
		case domain.MatchLabel:
		case domain.MatchExact:
			metrics.RankMatchFallbacks.WithLabelValues(string(method)).Inc()
			s.log.Debug("Ranking entry matched by exact title instead of label",
				"name", re.Product,
				"asin", p.ASIN,
			)
		default:
			metrics.RankMatchFallbacks.WithLabelValues(string(method)).Inc()
			s.log.Warn("Ranking entry needed fallback matching",
				"name", re.Product,
				"method", method,
				"asin", p.ASIN,
			)
		}
	}

	sort.SliceStable(rankings, func(i, j int) bool {
		return rankings[i].Percentage > rankings[j].Percentage
	})
	for i := range rankings {
		rankings[i].Rank = i + 1
	}
	return rankings
}

// resolve finds the entry index a response name refers to, or -1.
func (s *Simulator) resolve(name string, position int, entries []entry, used []bool) (int, domain.MatchMethod) {
	norm := strings.ToLower(strings.TrimSpace(name))

	if m := labelRe.FindStringSubmatch(norm); m != nil {
		if idx := labelIndex(m[1], entries); idx >= 0 && !used[idx] {
			return idx, domain.MatchLabel
		}
	}

	for idx, e := range entries {
		if !used[idx] && strings.EqualFold(strings.TrimSpace(e.product.Label()), strings.TrimSpace(name)) {
			return idx, domain.MatchExact
		}
	}

	if idx := fuzzyIndex(norm, entries, used); idx >= 0 {
		return idx, domain.MatchFuzzy
	}

	if position < len(entries) && !used[position] {
		return position, domain.MatchPositional
	}
	return -1, domain.MatchPositional
}

func labelIndex(digits string, entries []entry) int {
	n := 0
	for _, r := range digits {
		n = n*10 + int(r-'0')
	}
	if n >= 1 && n <= len(entries) {
		return n - 1
	}
	return -1
}

// fuzzyIndex tries substring containment in both directions, then a
// fuzzy subsequence match over the unused titles.
func fuzzyIndex(norm string, entries []entry, used []bool) int {
	if norm == "" {
		return -1
	}

	for idx, e := range entries {
		if used[idx] {
			continue
		}
		title := strings.ToLower(e.product.Label())
		if title == "" {
			continue
		}
		if strings.Contains(title, norm) || strings.Contains(norm, title) {
			return idx
		}
	}

	var candidates []string
	var candidateIdx []int
	for idx, e := range entries {
		if !used[idx] && e.product.Label() != "" {
			candidates = append(candidates, strings.ToLower(e.product.Label()))
			candidateIdx = append(candidateIdx, idx)
		}
	}
	matches := fuzzy.Find(norm, candidates)
	if len(matches) == 0 {
		return -1
	}
	return candidateIdx[matches[0].Index]
}
