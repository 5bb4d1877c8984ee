package execution

import "dbcore/storage/tuple"

// ProjectionExecutor evaluates a fixed list of expressions against each
// child row to produce the output row.
type ProjectionExecutor struct {
	plan  *ProjectionPlan
	child Executor
}

func NewProjectionExecutor(plan *ProjectionPlan, child Executor) *ProjectionExecutor {
	return &ProjectionExecutor{plan: plan, child: child}
}

func (e *ProjectionExecutor) Schema() *tuple.Schema { return e.plan.Schema }

func (e *ProjectionExecutor) Init() error { return e.child.Init() }

func (e *ProjectionExecutor) Next() (tuple.Tuple, bool, error) {
	t, ok, err := e.child.Next()
	if err != nil || !ok {
		return tuple.Tuple{}, false, err
	}
	values := make([]tuple.Value, len(e.plan.Expressions))
	for i, expr := range e.plan.Expressions {
		values[i] = expr.Evaluate(t, e.child.Schema())
	}
	return tuple.Tuple{RID: t.RID, Values: values}, true, nil
}
