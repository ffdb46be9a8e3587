package hedge

import (
	"container/heap"

	"github.com/quantfold/hedge-engine/internal/option"
)

// optionEntry is an in-flight put tagged with its insertion sequence so
// equal expiries settle in the order they were opened.
type optionEntry struct {
	put option.Put
	seq int
}

type optionQueue []optionEntry

func (q optionQueue) Len() int { return len(q) }

func (q optionQueue) Less(i, j int) bool {
	if !q[i].put.Expiry.Equal(q[j].put.Expiry) {
		return q[i].put.Expiry.Before(q[j].put.Expiry)
	}
	return q[i].seq < q[j].seq
}

func (q optionQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *optionQueue) Push(x any) { *q = append(*q, x.(optionEntry)) }

func (q *optionQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	*q = old[:n-1]
	return e
}

// activeOptionSet tracks the puts currently in flight and always yields
// the one expiring next.
type activeOptionSet struct {
	queue optionQueue
	seq   int
}

func (s *activeOptionSet) add(p option.Put) {
	heap.Push(&s.queue, optionEntry{put: p, seq: s.seq})
	s.seq++
}

// requeue returns a previously popped entry to the set, keeping its
// original slot among equal expiries.
func (s *activeOptionSet) requeue(e optionEntry) {
	heap.Push(&s.queue, e)
}

// popNext removes and returns the entry with the earliest expiry.
func (s *activeOptionSet) popNext() (optionEntry, bool) {
	if len(s.queue) == 0 {
		return optionEntry{}, false
	}
	return heap.Pop(&s.queue).(optionEntry), true
}

func (s *activeOptionSet) size() int { return len(s.queue) }
