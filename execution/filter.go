package execution

import "dbcore/storage/tuple"

// FilterExecutor pulls from child and re-emits only rows whose predicate
// evaluates true (NULL counts as false).
type FilterExecutor struct {
	plan  *FilterPlan
	child Executor
}

func NewFilterExecutor(plan *FilterPlan, child Executor) *FilterExecutor {
	return &FilterExecutor{plan: plan, child: child}
}

func (e *FilterExecutor) Schema() *tuple.Schema { return e.plan.Schema }

func (e *FilterExecutor) Init() error { return e.child.Init() }

func (e *FilterExecutor) Next() (tuple.Tuple, bool, error) {
	for {
		t, ok, err := e.child.Next()
		if err != nil || !ok {
			return tuple.Tuple{}, false, err
		}
		if evalBool(e.plan.Predicate, t, e.child.Schema()) {
			return t, true, nil
		}
	}
}
