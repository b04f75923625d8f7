package services

import (
	"hash/fnv"
	"sync"
)

// lockStripes is the size of the striped mutex table guarding the
// busy-check-and-flip sequence. 256 stripes keep contention negligible for
// unrelated user pairs while bounding memory independently of user count.
const lockStripes = 256

// pairLocks serializes accept attempts per user. SQLite's writer lock
// already serializes the commits, but the busy predicate must stay true
// from the in-transaction check through the post-commit chat opening; the
// stripe lock covers that whole span.
type pairLocks struct {
	stripes [lockStripes]sync.Mutex
}

func stripeFor(userID string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return h.Sum32() % lockStripes
}

// lock acquires the stripes for both users and returns the matching unlock.
// Stripes are taken in index order so two accepts over overlapping pairs
// cannot deadlock.
func (p *pairLocks) lock(a, b string) func() {
	i, j := stripeFor(a), stripeFor(b)
	if i > j {
		i, j = j, i
	}
	p.stripes[i].Lock()
	if j != i {
		p.stripes[j].Lock()
	}
	return func() {
		if j != i {
			p.stripes[j].Unlock()
		}
		p.stripes[i].Unlock()
	}
}
