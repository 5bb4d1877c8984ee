package execution

import (
	"container/heap"

	"dbcore/storage/tuple"
)

// topnHeap is a bounded max-heap ordered so the "worst" (last-wanted) row
// sits at the top, ready to be evicted the moment a better row arrives.
type topnHeap struct {
	rows    []tuple.Tuple
	orderBy []OrderByExpr
	schema  *tuple.Schema
}

func (h *topnHeap) Len() int { return len(h.rows) }
func (h *topnHeap) Less(i, j int) bool {
	// "worse" (sorts later under OrderBy) means larger in heap-order, so
	// the max-heap's root is the current worst of the kept set.
	return lessByOrderBy(h.rows[j], h.rows[i], h.orderBy, h.schema)
}
func (h *topnHeap) Swap(i, j int) { h.rows[i], h.rows[j] = h.rows[j], h.rows[i] }
func (h *topnHeap) Push(x any)    { h.rows = append(h.rows, x.(tuple.Tuple)) }
func (h *topnHeap) Pop() any {
	old := h.rows
	n := len(old)
	item := old[n-1]
	h.rows = old[:n-1]
	return item
}

// TopNExecutor keeps only the N best rows under OrderBy, using a bounded
// max-heap instead of a full sort — the optimizer produces this plan by
// collapsing a Sort feeding a Limit. Grounded on BusTub's
// topn_executor.cpp manual binary heap.
type TopNExecutor struct {
	plan  *TopNPlan
	child Executor
	rows  []tuple.Tuple
	pos   int
}

func NewTopNExecutor(plan *TopNPlan, child Executor) *TopNExecutor {
	return &TopNExecutor{plan: plan, child: child}
}

func (e *TopNExecutor) Schema() *tuple.Schema { return e.plan.Schema }

func (e *TopNExecutor) Init() error {
	if err := e.child.Init(); err != nil {
		return err
	}
	e.rows = nil
	e.pos = 0

	h := &topnHeap{orderBy: e.plan.OrderBy, schema: e.plan.Schema}
	for {
		t, ok, err := e.child.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if h.Len() < e.plan.N {
			heap.Push(h, t)
			continue
		}
		if h.Len() > 0 && lessByOrderBy(t, h.rows[0], e.plan.OrderBy, e.plan.Schema) {
			h.rows[0] = t
			heap.Fix(h, 0)
		}
	}

	// Drain the max-heap in reverse to emit ascending (best-first) order.
	out := make([]tuple.Tuple, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(tuple.Tuple)
	}
	e.rows = out
	return nil
}

func (e *TopNExecutor) Next() (tuple.Tuple, bool, error) {
	if e.pos >= len(e.rows) {
		return tuple.Tuple{}, false, nil
	}
	t := e.rows[e.pos]
	e.pos++
	return t, true, nil
}
