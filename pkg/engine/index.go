package engine

import (
	"slices"
	"sort"
)

// joinKey is the composite hash key built from the equality joiners of a join.
type joinKey [maxEqualJoiners]any

// indexedFact pairs a right-side fact with its range attribute value.
type indexedFact struct {
	fact  Fact
	value any
}

// joinIndex buckets the right side of a join by equality key. When the join
// has a range joiner each bucket is sorted by that joiner's right attribute.
type joinIndex struct {
	buckets map[joinKey][]indexedFact
}

// joinStage joins every tuple with the facts of target satisfying all joiners.
type joinStage struct {
	target *FactType

	// equal joiners form the hash key.
	equal []boundJoiner

	// rng is the range joiner served by binary search, if any.
	rng *boundJoiner

	// rest is checked per candidate.
	rest []boundJoiner

	// selfPositions are the tuple positions holding facts of the target type;
	// a fact is never joined with itself.
	selfPositions []int
}

func newJoinStage(leftTypes []*FactType, target *FactType, joiners []boundJoiner) *joinStage {
	st := &joinStage{target: target}
	for i := range joiners {
		j := joiners[i]
		switch {
		case j.kind == JoinEqual:
			st.equal = append(st.equal, j)
		case j.kind.isRange() && st.rng == nil:
			st.rng = &j
			if j.kind == JoinOverlapping {
				// Only the start side is served by the index.
				st.rest = append(st.rest, j)
			}
		default:
			st.rest = append(st.rest, j)
		}
	}
	for pos, ft := range leftTypes {
		if ft == target {
			st.selfPositions = append(st.selfPositions, pos)
		}
	}
	return st
}

func (st *joinStage) rightKey(f Fact) joinKey {
	var k joinKey
	for i := range st.equal {
		k[i] = st.equal[i].right.get(f)
	}
	return k
}

func (st *joinStage) leftKey(t Tuple) joinKey {
	var k joinKey
	for i := range st.equal {
		j := &st.equal[i]
		k[i] = j.left.get(t[j.leftPos])
	}
	return k
}

func (st *joinStage) buildIndex(right []Fact) *joinIndex {
	idx := &joinIndex{buckets: make(map[joinKey][]indexedFact)}
	for _, f := range right {
		entry := indexedFact{fact: f}
		if st.rng != nil {
			entry.value = st.rng.right.get(f)
		}
		k := st.rightKey(f)
		idx.buckets[k] = append(idx.buckets[k], entry)
	}
	if st.rng != nil {
		compare := st.rng.right.compare
		for k, bucket := range idx.buckets {
			slices.SortFunc(bucket, func(a, b indexedFact) int {
				return compare(a.value, b.value)
			})
			idx.buckets[k] = bucket
		}
	}
	return idx
}

// candidates narrows a bucket to the facts satisfying the range joiner.
func (st *joinStage) candidates(bucket []indexedFact, t Tuple) []indexedFact {
	if st.rng == nil || len(bucket) == 0 {
		return bucket
	}
	j := st.rng
	compare := j.left.compare
	left := j.left.get(t[j.leftPos])

	// first returns the first index whose value satisfies pred; values are sorted.
	first := func(pred func(c int) bool) int {
		return sort.Search(len(bucket), func(i int) bool {
			return pred(compare(bucket[i].value, left))
		})
	}

	switch j.kind {
	case JoinLessThan:
		return bucket[first(func(c int) bool { return c > 0 }):]
	case JoinLessOrEqual:
		return bucket[first(func(c int) bool { return c >= 0 }):]
	case JoinGreaterThan:
		return bucket[:first(func(c int) bool { return c >= 0 })]
	case JoinGreaterOrEqual:
		return bucket[:first(func(c int) bool { return c > 0 })]
	case JoinOverlapping:
		// right.start < left.end
		left = j.leftEnd.get(t[j.leftPos])
		return bucket[:first(func(c int) bool { return c >= 0 })]
	}
	return bucket
}

func (st *joinStage) isSelf(t Tuple, f Fact) bool {
	for _, pos := range st.selfPositions {
		if t[pos].FactID() == f.FactID() {
			return true
		}
	}
	return false
}

func (st *joinStage) apply(_ *Constraint, in []Tuple, v *factView, tr *tracker) ([]Tuple, error) {
	right := v.of(st.target)
	if len(in) == 0 || len(right) == 0 {
		return nil, nil
	}

	idx := st.buildIndex(right)
	var out []Tuple
	for _, t := range in {
		tr.current = t
		bucket := idx.buckets[st.leftKey(t)]
		for _, c := range st.candidates(bucket, t) {
			if st.isSelf(t, c.fact) {
				continue
			}
			ok := true
			for i := range st.rest {
				if !st.rest[i].holds(t, c.fact) {
					ok = false
					break
				}
			}
			if !ok {
				continue
			}
			joined := make(Tuple, len(t)+1)
			copy(joined, t)
			joined[len(t)] = c.fact
			out = append(out, joined)
		}
	}
	return out, nil
}
