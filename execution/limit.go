package execution

import "dbcore/storage/tuple"

// LimitExecutor emits at most N rows from child.
type LimitExecutor struct {
	plan    *LimitPlan
	child   Executor
	emitted int
}

func NewLimitExecutor(plan *LimitPlan, child Executor) *LimitExecutor {
	return &LimitExecutor{plan: plan, child: child}
}

func (e *LimitExecutor) Schema() *tuple.Schema { return e.plan.Schema }

func (e *LimitExecutor) Init() error {
	e.emitted = 0
	return e.child.Init()
}

func (e *LimitExecutor) Next() (tuple.Tuple, bool, error) {
	if e.emitted >= e.plan.N {
		return tuple.Tuple{}, false, nil
	}
	t, ok, err := e.child.Next()
	if err != nil || !ok {
		return tuple.Tuple{}, false, err
	}
	e.emitted++
	return t, true, nil
}
