package profile

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"queryscope/internal/search"
)

// Profiler owns the timing state for one query-profiling session. Install
// WrapWeight as the searcher's wrap hook and every weight in the query
// tree, clause weights included, gets its own timing node.
type Profiler struct {
	SessionID string

	mu    sync.Mutex
	nodes map[search.Query]*Node
	order []search.Query
}

func NewProfiler() *Profiler {
	return &Profiler{
		SessionID: uuid.NewString(),
		nodes:     make(map[search.Query]*Node),
	}
}

// WrapWeight satisfies the searcher's wrap hook.
func (p *Profiler) WrapWeight(q search.Query, w search.Weight) search.Weight {
	return NewProfileWeight(q, w, p.nodeFor(q))
}

func (p *Profiler) nodeFor(q search.Query) *Node {
	p.mu.Lock()
	defer p.mu.Unlock()
	n, ok := p.nodes[q]
	if !ok {
		n = &Node{Query: q}
		p.nodes[q] = n
		p.order = append(p.order, q)
	}
	return n
}

// Node is the timing arena for one query node. Each scorer built for the
// node gets its own Breakdown slot, so segments iterated concurrently never
// share a hot accumulator; slots are merged only when reporting.
type Node struct {
	Query search.Query

	mu    sync.Mutex
	slots []*Breakdown
}

// NewSlot appends a fresh breakdown owned by the calling scorer.
func (n *Node) NewSlot() *Breakdown {
	bd := &Breakdown{}
	n.mu.Lock()
	n.slots = append(n.slots, bd)
	n.mu.Unlock()
	return bd
}

// Total merges a timing type's elapsed time across all slots.
func (n *Node) Total(t TimingType) time.Duration {
	n.mu.Lock()
	defer n.mu.Unlock()
	var sum time.Duration
	for _, bd := range n.slots {
		sum += bd.Total(t)
	}
	return sum
}

// Count merges a timing type's call count across all slots.
func (n *Node) Count(t TimingType) int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	var sum int64
	for _, bd := range n.slots {
		sum += bd.Count(t)
	}
	return sum
}

// Result is one node of the report tree.
type Result struct {
	Query    string
	Timings  map[string]time.Duration
	Counts   map[string]int64
	Children []Result
}

// TotalTime sums every timing type of this node (children excluded; their
// time is already inside the parent's inclusive measurements).
func (r Result) TotalTime() time.Duration {
	var sum time.Duration
	for _, d := range r.Timings {
		sum += d
	}
	return sum
}

// Report assembles the per-node timings into a tree mirroring the query
// tree. Composite queries report their clauses as children; any node not
// claimed as a clause is a root.
func (p *Profiler) Report() []Result {
	p.mu.Lock()
	order := make([]search.Query, len(p.order))
	copy(order, p.order)
	p.mu.Unlock()

	claimed := make(map[search.Query]bool)
	for _, q := range order {
		if comp, ok := q.(search.Composite); ok {
			for _, sub := range comp.Subqueries() {
				claimed[sub] = true
			}
		}
	}

	var roots []Result
	for _, q := range order {
		if !claimed[q] {
			roots = append(roots, p.buildResult(q))
		}
	}
	return roots
}

func (p *Profiler) buildResult(q search.Query) Result {
	n := p.nodeFor(q)
	res := Result{
		Query:   q.String(),
		Timings: make(map[string]time.Duration),
		Counts:  make(map[string]int64),
	}
	for _, t := range TimingTypes() {
		res.Timings[t.String()] = n.Total(t)
		res.Counts[t.String()] = n.Count(t)
	}
	if comp, ok := q.(search.Composite); ok {
		for _, sub := range comp.Subqueries() {
			res.Children = append(res.Children, p.buildResult(sub))
		}
	}
	return res
}
