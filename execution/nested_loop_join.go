package execution

import "dbcore/storage/tuple"

// NestedLoopJoinExecutor pulls one left tuple, then rewinds and fully
// re-drives the right child for it, testing the predicate against every
// combined row. LEFT joins emit a null-padded row for a left tuple that
// matched nothing. Unlike the system this design is distilled from (which
// materializes both children up front), this stays pull-driven per
// SPEC_FULL.md §4.5: the right child is re-Init'd for every left row.
type NestedLoopJoinExecutor struct {
	plan  *NestedLoopJoinPlan
	left  Executor
	right Executor
	ctx   *Context

	curLeft     tuple.Tuple
	haveLeft    bool
	leftMatched bool
	rightSchema *tuple.Schema
	leftSchema  *tuple.Schema
}

func NewNestedLoopJoinExecutor(plan *NestedLoopJoinPlan, left, right Executor, ctx *Context) *NestedLoopJoinExecutor {
	return &NestedLoopJoinExecutor{plan: plan, left: left, right: right, ctx: ctx}
}

func (e *NestedLoopJoinExecutor) Schema() *tuple.Schema { return e.plan.Schema }

func (e *NestedLoopJoinExecutor) Init() error {
	if err := e.left.Init(); err != nil {
		return err
	}
	e.leftSchema = e.left.Schema()
	e.rightSchema = e.right.Schema()
	e.haveLeft = false
	return nil
}

func (e *NestedLoopJoinExecutor) advanceLeft() (bool, error) {
	t, ok, err := e.left.Next()
	if err != nil || !ok {
		e.haveLeft = false
		return false, err
	}
	e.curLeft = t
	e.haveLeft = true
	e.leftMatched = false
	if err := e.right.Init(); err != nil {
		return false, err
	}
	e.ctx.RecordNLJRewind()
	return true, nil
}

func (e *NestedLoopJoinExecutor) Next() (tuple.Tuple, bool, error) {
	if !e.haveLeft {
		ok, err := e.advanceLeft()
		if err != nil || !ok {
			return tuple.Tuple{}, false, err
		}
	}

	for {
		rightTuple, ok, err := e.right.Next()
		if err != nil {
			return tuple.Tuple{}, false, err
		}
		if !ok {
			if e.plan.Type == LeftJoin && !e.leftMatched {
				out := combineRows(e.curLeft, nullTuple(e.rightSchema))
				if _, aerr := e.advanceLeft(); aerr != nil {
					return tuple.Tuple{}, false, aerr
				}
				return out, true, nil
			}
			ok, err := e.advanceLeft()
			if err != nil || !ok {
				return tuple.Tuple{}, false, err
			}
			continue
		}

		combined := combineRows(e.curLeft, rightTuple)
		if evalBool(e.plan.Predicate, combined, e.plan.Schema) {
			e.leftMatched = true
			return combined, true, nil
		}
	}
}

func combineRows(left, right tuple.Tuple) tuple.Tuple {
	values := make([]tuple.Value, 0, len(left.Values)+len(right.Values))
	values = append(values, left.Values...)
	values = append(values, right.Values...)
	return tuple.Tuple{Values: values}
}

func nullTuple(schema *tuple.Schema) tuple.Tuple {
	values := make([]tuple.Value, len(schema.Columns))
	for i, c := range schema.Columns {
		values[i] = tuple.NewNull(c.Type)
	}
	return tuple.Tuple{Values: values}
}
