package horn

import "container/heap"

// clauseQueue is the §4.4 "simple priority queue" ordering pending clauses
// by (rank, depth, premise-count), ascending: rank -1 ("always applicable")
// sorts before every finite rank, and within a rank simpler clauses (fewer
// nested messages, fewer premises) are explored before more complex ones.
type clauseQueue []*HornClause

func (q clauseQueue) Len() int { return len(q) }

func (q clauseQueue) Less(i, j int) bool {
	a, b := q[i], q[j]
	if a.rank != b.rank {
		return a.rank < b.rank
	}
	ad, bd := a.Depth(), b.Depth()
	if ad != bd {
		return ad < bd
	}
	return len(a.premises) < len(b.premises)
}

func (q clauseQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *clauseQueue) Push(x any) { *q = append(*q, x.(*HornClause)) }

func (q *clauseQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}

var _ = heap.Interface(&clauseQueue{})
