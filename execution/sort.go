package execution

import (
	"sort"

	"dbcore/storage/tuple"
)

// SortExecutor materializes every child row at Init and sorts them
// according to OrderBy before streaming them back out.
type SortExecutor struct {
	plan  *SortPlan
	child Executor
	rows  []tuple.Tuple
	pos   int
}

func NewSortExecutor(plan *SortPlan, child Executor) *SortExecutor {
	return &SortExecutor{plan: plan, child: child}
}

func (e *SortExecutor) Schema() *tuple.Schema { return e.plan.Schema }

func (e *SortExecutor) Init() error {
	if err := e.child.Init(); err != nil {
		return err
	}
	e.rows = nil
	e.pos = 0
	for {
		t, ok, err := e.child.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		e.rows = append(e.rows, t)
	}
	schema := e.plan.Schema
	sort.SliceStable(e.rows, func(i, j int) bool {
		return lessByOrderBy(e.rows[i], e.rows[j], e.plan.OrderBy, schema)
	})
	return nil
}

// lessByOrderBy applies each OrderByExpr in turn until one distinguishes
// the two rows, matching multi-key sort semantics used by both Sort and
// TopN's heap comparator.
func lessByOrderBy(a, b tuple.Tuple, orderBy []OrderByExpr, schema *tuple.Schema) bool {
	for _, ob := range orderBy {
		av := ob.Expr.Evaluate(a, schema)
		bv := ob.Expr.Evaluate(b, schema)
		cmp := tuple.Compare(av, bv)
		if cmp == 0 {
			continue
		}
		if ob.Desc {
			return cmp > 0
		}
		return cmp < 0
	}
	return false
}

func (e *SortExecutor) Next() (tuple.Tuple, bool, error) {
	if e.pos >= len(e.rows) {
		return tuple.Tuple{}, false, nil
	}
	t := e.rows[e.pos]
	e.pos++
	return t, true, nil
}
