// Package match scores and orders launcher items against a live query.
//
// Rank is pure apart from pooled scratch buffers: every worker borrows its
// own buffer, so concurrent calls never share mutable matcher state.
package match

import (
	"cmp"
	"runtime"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"quickspell/internal/domain"
)

// parallelThreshold is the candidate count below which ranking stays on
// the calling goroutine.
const parallelThreshold = 2048

// Ranker orders haystack lines against a query
type Ranker struct {
	pool      sync.Pool
	workers   int
	threshold int
}

// NewRanker creates a ranker that fans out over GOMAXPROCS workers
func NewRanker() *Ranker {
	return &Ranker{
		pool: sync.Pool{
			New: func() any { return &scratch{} },
		},
		workers:   runtime.GOMAXPROCS(0),
		threshold: parallelThreshold,
	}
}

var defaultRanker = NewRanker()

// Rank returns indices into haystack of the lines matching query, best
// first. An empty query returns every index in input order.
func Rank(haystack []string, query string, cfg domain.SearchConfig) []int {
	return defaultRanker.Rank(haystack, query, cfg)
}

// Rank returns indices into haystack of the lines matching query, best first
func (r *Ranker) Rank(haystack []string, query string, cfg domain.SearchConfig) []int {
	if query == "" {
		out := make([]int, len(haystack))
		for i := range out {
			out[i] = i
		}
		return out
	}

	p := compile(query, cfg)
	var matched []candidate
	if len(haystack) < r.threshold || r.workers < 2 {
		matched = r.scoreRange(p, haystack, 0, len(haystack))
	} else {
		matched = r.scoreParallel(p, haystack)
	}

	keys := make([]uint64, len(matched))
	for i, c := range matched {
		keys[i] = rankKey(p, c)
	}
	order := make([]int, len(matched))
	for i := range order {
		order[i] = i
	}
	slices.SortFunc(order, func(a, b int) int {
		if c := cmp.Compare(keys[a], keys[b]); c != 0 {
			return c
		}
		return cmp.Compare(matched[a].index, matched[b].index)
	})

	out := make([]int, len(order))
	for i, o := range order {
		out[i] = matched[o].index
	}
	return out
}

func (r *Ranker) scoreParallel(p *pattern, haystack []string) []candidate {
	n := len(haystack)
	workers := min(r.workers, (n+r.threshold-1)/r.threshold*4)
	chunk := (n + workers - 1) / workers
	parts := make([][]candidate, workers)

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := min(lo+chunk, n)
		if lo >= hi {
			break
		}
		g.Go(func() error {
			parts[w] = r.scoreRange(p, haystack, lo, hi)
			return nil
		})
	}
	_ = g.Wait()

	total := 0
	for _, part := range parts {
		total += len(part)
	}
	out := make([]candidate, 0, total)
	for _, part := range parts {
		out = append(out, part...)
	}
	return out
}

func (r *Ranker) scoreRange(p *pattern, haystack []string, lo, hi int) []candidate {
	s := r.pool.Get().(*scratch)
	defer r.pool.Put(s)

	var out []candidate
	for i := lo; i < hi; i++ {
		s.load(Column(haystack[i], p.field))
		score, start, ok := p.score(s)
		if !ok {
			continue
		}
		c := candidate{index: i, score: score, start: start, length: len(s.text)}
		if p.scheme.pathAware {
			c.pathDist = p.pathDistance(s, start)
		}
		out = append(out, c)
	}
	return out
}

// rankKey packs the sort criteria into one integer, most significant lane
// first: inverted score, then for path ranking the pathname distance and
// the haystack length. The input index breaks remaining ties.
func rankKey(p *pattern, c candidate) uint64 {
	key := uint64(maxLane-c.score) << 32
	if p.scheme.pathAware {
		key |= uint64(min(c.pathDist, maxLane)) << 16
		key |= uint64(min(c.length, maxLane))
	}
	return key
}

// Column returns the field-th (1-indexed) tab separated column of line, or
// the whole line when the column does not exist.
func Column(line string, field int) string {
	if field < 1 {
		return line
	}
	rest := line
	for i := 1; ; i++ {
		tab := strings.IndexByte(rest, '\t')
		if i == field {
			if tab < 0 {
				return rest
			}
			return rest[:tab]
		}
		if tab < 0 {
			return line
		}
		rest = rest[tab+1:]
	}
}
