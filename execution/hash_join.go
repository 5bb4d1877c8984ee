package execution

import "dbcore/storage/tuple"

// HashJoinExecutor builds a hash table over the right child at Init and
// probes it with each left tuple, replacing an NLJ whose predicate is a
// pure conjunction of column-equality tests (the optimizer's job to spot).
type HashJoinExecutor struct {
	plan  *HashJoinPlan
	left  Executor
	right Executor

	table map[string][]tuple.Tuple

	curLeft     tuple.Tuple
	haveLeft    bool
	candidates  []tuple.Tuple
	candIdx     int
	leftMatched bool
	rightSchema *tuple.Schema
}

func NewHashJoinExecutor(plan *HashJoinPlan, left, right Executor) *HashJoinExecutor {
	return &HashJoinExecutor{plan: plan, left: left, right: right}
}

func (e *HashJoinExecutor) Schema() *tuple.Schema { return e.plan.Schema }

func (e *HashJoinExecutor) Init() error {
	if err := e.left.Init(); err != nil {
		return err
	}
	if err := e.right.Init(); err != nil {
		return err
	}
	e.rightSchema = e.right.Schema()

	e.table = make(map[string][]tuple.Tuple)
	for {
		rt, ok, err := e.right.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		key := e.hashKey(rt, e.plan.RightKeys, e.rightSchema)
		e.table[key] = append(e.table[key], rt)
	}
	e.haveLeft = false
	return nil
}

func (e *HashJoinExecutor) hashKey(t tuple.Tuple, keys []Expr, schema *tuple.Schema) string {
	buf := make([]byte, 0, 32)
	for _, k := range keys {
		v := k.Evaluate(t, schema)
		buf = v.Encode(buf)
	}
	return string(buf)
}

func (e *HashJoinExecutor) advanceLeft() (bool, error) {
	t, ok, err := e.left.Next()
	if err != nil || !ok {
		e.haveLeft = false
		return false, err
	}
	e.curLeft = t
	e.haveLeft = true
	e.leftMatched = false
	key := e.hashKey(t, e.plan.LeftKeys, e.left.Schema())
	e.candidates = e.table[key]
	e.candIdx = 0
	return true, nil
}

func (e *HashJoinExecutor) Next() (tuple.Tuple, bool, error) {
	if !e.haveLeft {
		ok, err := e.advanceLeft()
		if err != nil || !ok {
			return tuple.Tuple{}, false, err
		}
	}
	for {
		if e.candIdx < len(e.candidates) {
			rt := e.candidates[e.candIdx]
			e.candIdx++
			e.leftMatched = true
			return combineRows(e.curLeft, rt), true, nil
		}
		if e.plan.Type == LeftJoin && !e.leftMatched {
			out := combineRows(e.curLeft, nullTuple(e.rightSchema))
			if _, err := e.advanceLeft(); err != nil {
				return tuple.Tuple{}, false, err
			}
			return out, true, nil
		}
		ok, err := e.advanceLeft()
		if err != nil || !ok {
			return tuple.Tuple{}, false, err
		}
	}
}
