package match

import (
	"unicode/utf8"

	"quickspell/internal/domain"
)

// pattern is a compiled query. It is read-only after compile and can be
// shared by all workers.
type pattern struct {
	runes  []rune
	exact  bool
	scheme *scheme
	field  int
}

func compile(query string, cfg domain.SearchConfig) *pattern {
	cfg = cfg.WithDefaults()
	runes := make([]rune, 0, utf8.RuneCountInString(query))
	for _, r := range query {
		runes = append(runes, fold(r))
	}
	return &pattern{
		runes:  runes,
		exact:  cfg.Mode == domain.ModeExact,
		scheme: schemeFor(cfg.Scheme),
		field:  cfg.Field,
	}
}

// scratch holds the per-worker buffers reused across candidates
type scratch struct {
	text   []rune
	folded []rune
}

func (s *scratch) load(haystack string) {
	s.text = s.text[:0]
	s.folded = s.folded[:0]
	for _, r := range haystack {
		s.text = append(s.text, r)
		s.folded = append(s.folded, fold(r))
	}
}

// candidate is a scored input line
type candidate struct {
	index  int
	score  int
	start  int
	length int
	// pathDist is the distance of the match start from the last path
	// separator, maxLane when the match starts before it
	pathDist int
}

// score matches p against the loaded haystack. ok is false when the
// pattern rejects the candidate.
func (p *pattern) score(s *scratch) (score, start int, ok bool) {
	if len(p.runes) == 0 {
		return 0, 0, true
	}
	if len(p.runes) > len(s.folded) {
		return 0, 0, false
	}
	if p.exact {
		return p.exactMatch(s)
	}
	return p.fuzzyMatch(s)
}

// fuzzyMatch finds the first occurrence of the pattern as a subsequence,
// then scans backwards from its end to find the shortest window.
func (p *pattern) fuzzyMatch(s *scratch) (int, int, bool) {
	pidx, sidx, eidx := 0, -1, -1
	for idx, r := range s.folded {
		if r != p.runes[pidx] {
			continue
		}
		if sidx < 0 {
			sidx = idx
		}
		pidx++
		if pidx == len(p.runes) {
			eidx = idx + 1
			break
		}
	}
	if eidx < 0 {
		return 0, 0, false
	}

	pidx = len(p.runes) - 1
	for idx := eidx - 1; idx >= sidx; idx-- {
		if s.folded[idx] == p.runes[pidx] {
			pidx--
			if pidx < 0 {
				sidx = idx
				break
			}
		}
	}
	return p.calculate(s, sidx, eidx), sidx, true
}

// exactMatch scores every contiguous occurrence and keeps the best one
func (p *pattern) exactMatch(s *scratch) (int, int, bool) {
	best, bestStart := -1, -1
	n, m := len(s.folded), len(p.runes)
	for start := 0; start+m <= n; start++ {
		matched := true
		for j := 0; j < m; j++ {
			if s.folded[start+j] != p.runes[j] {
				matched = false
				break
			}
		}
		if !matched {
			continue
		}
		if sc := p.calculate(s, start, start+m); sc > best {
			best, bestStart = sc, start
		}
	}
	if bestStart < 0 {
		return 0, 0, false
	}
	return best, bestStart, true
}

func (p *pattern) calculate(s *scratch, sidx, eidx int) int {
	sch := p.scheme
	pidx, score, consecutive, firstBonus := 0, 0, 0, 0
	inGap := false
	prevClass := sch.initialClass
	if sidx > 0 {
		prevClass = sch.classOf(s.text[sidx-1])
	}
	for idx := sidx; idx < eidx; idx++ {
		class := sch.classOf(s.text[idx])
		if pidx < len(p.runes) && s.folded[idx] == p.runes[pidx] {
			score += scoreMatch
			bonus := sch.bonusFor(prevClass, class)
			if consecutive == 0 {
				firstBonus = bonus
			} else {
				if bonus >= bonusBoundary && bonus > firstBonus {
					firstBonus = bonus
				}
				bonus = max(bonus, firstBonus, bonusConsecutive)
			}
			if pidx == 0 {
				score += bonus * bonusFirstCharMultiplier
			} else {
				score += bonus
			}
			inGap = false
			consecutive++
			pidx++
		} else {
			if inGap {
				score += scoreGapExtension
			} else {
				score += scoreGapStart
			}
			inGap = true
			consecutive = 0
			firstBonus = 0
		}
		prevClass = class
	}
	return min(max(score, 0), maxLane)
}

// pathDistance measures how far into the basename the match starts.
// Trailing separators are ignored so "/a/repos/" has basename "repos".
func (p *pattern) pathDistance(s *scratch, start int) int {
	end := len(s.text)
	for end > 0 && p.scheme.isSeparator(s.text[end-1]) {
		end--
	}
	last := -1
	for i := end - 1; i >= 0; i-- {
		if p.scheme.isSeparator(s.text[i]) {
			last = i
			break
		}
	}
	if last > start {
		return maxLane
	}
	return min(start-last, maxLane)
}
