package execution

import "dbcore/storage/tuple"

// Executor is the Volcano pull interface every physical operator
// implements: Init (re)positions the operator at its first output row,
// Next pulls one row at a time until it reports false.
type Executor interface {
	Init() error
	Next() (tuple.Tuple, bool, error)
	Schema() *tuple.Schema
}

// Build constructs the executor tree for plan, recursively building child
// executors first. It is a type switch rather than a virtual-dispatch
// factory method on Plan, keeping plan nodes as plain data with no
// behavior of their own.
func Build(plan Plan, ctx *Context) (Executor, error) {
	switch p := plan.(type) {
	case *SeqScanPlan:
		return NewSeqScanExecutor(p, ctx), nil
	case *IndexScanPlan:
		return NewIndexScanExecutor(p, ctx), nil
	case *FilterPlan:
		child, err := Build(p.Child, ctx)
		if err != nil {
			return nil, err
		}
		return NewFilterExecutor(p, child), nil
	case *ProjectionPlan:
		child, err := Build(p.Child, ctx)
		if err != nil {
			return nil, err
		}
		return NewProjectionExecutor(p, child), nil
	case *NestedLoopJoinPlan:
		left, err := Build(p.Left, ctx)
		if err != nil {
			return nil, err
		}
		right, err := Build(p.Right, ctx)
		if err != nil {
			return nil, err
		}
		return NewNestedLoopJoinExecutor(p, left, right, ctx), nil
	case *HashJoinPlan:
		left, err := Build(p.Left, ctx)
		if err != nil {
			return nil, err
		}
		right, err := Build(p.Right, ctx)
		if err != nil {
			return nil, err
		}
		return NewHashJoinExecutor(p, left, right), nil
	case *AggregationPlan:
		child, err := Build(p.Child, ctx)
		if err != nil {
			return nil, err
		}
		return NewAggregationExecutor(p, child), nil
	case *SortPlan:
		child, err := Build(p.Child, ctx)
		if err != nil {
			return nil, err
		}
		return NewSortExecutor(p, child), nil
	case *TopNPlan:
		child, err := Build(p.Child, ctx)
		if err != nil {
			return nil, err
		}
		return NewTopNExecutor(p, child), nil
	case *LimitPlan:
		child, err := Build(p.Child, ctx)
		if err != nil {
			return nil, err
		}
		return NewLimitExecutor(p, child), nil
	case *InsertPlan:
		child, err := Build(p.Child, ctx)
		if err != nil {
			return nil, err
		}
		return NewInsertExecutor(p, child, ctx), nil
	case *UpdatePlan:
		child, err := Build(p.Child, ctx)
		if err != nil {
			return nil, err
		}
		return NewUpdateExecutor(p, child, ctx), nil
	case *DeletePlan:
		child, err := Build(p.Child, ctx)
		if err != nil {
			return nil, err
		}
		return NewDeleteExecutor(p, child, ctx), nil
	default:
		return nil, errUnknownPlan(plan)
	}
}

// Execute drives an executor to completion, returning every row it
// produces. Real deployments would stream rows to a client instead; the
// engine driver offers this as the simple, testable entry point.
func Execute(plan Plan, ctx *Context) ([]tuple.Tuple, error) {
	exec, err := Build(plan, ctx)
	if err != nil {
		return nil, err
	}
	if err := exec.Init(); err != nil {
		return nil, err
	}
	var out []tuple.Tuple
	for {
		t, ok, err := exec.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, t)
	}
}
