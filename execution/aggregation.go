package execution

import "dbcore/storage/tuple"

// AggregationExecutor materializes every group's running aggregate at
// Init, then streams out one row per group. An empty input with no
// GROUP BY still emits exactly one row (COUNT(*)=0, other aggregates
// NULL); an empty input with a GROUP BY emits nothing — both rules
// grounded on BusTub's aggregation_executor.cpp.
type AggregationExecutor struct {
	plan  *AggregationPlan
	child Executor

	groups  map[string]*aggState
	order   []string
	emitIdx int
	rows    []tuple.Tuple
}

type aggState struct {
	groupBy []tuple.Value
	counts  []int64
	sums    []int64
	mins    []tuple.Value
	maxs    []tuple.Value
	seen    []bool
}

func NewAggregationExecutor(plan *AggregationPlan, child Executor) *AggregationExecutor {
	return &AggregationExecutor{plan: plan, child: child}
}

func (e *AggregationExecutor) Schema() *tuple.Schema { return e.plan.Schema }

func (e *AggregationExecutor) Init() error {
	if err := e.child.Init(); err != nil {
		return err
	}
	childSchema := e.child.Schema()
	e.groups = make(map[string]*aggState)
	e.order = nil
	e.rows = nil
	e.emitIdx = 0

	anyInput := false
	for {
		t, ok, err := e.child.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		anyInput = true

		groupVals := make([]tuple.Value, len(e.plan.GroupBys))
		var key []byte
		for i, g := range e.plan.GroupBys {
			groupVals[i] = g.Evaluate(t, childSchema)
			key = groupVals[i].Encode(key)
		}
		k := string(key)
		st, ok := e.groups[k]
		if !ok {
			st = newAggState(groupVals, len(e.plan.Aggregates))
			e.groups[k] = st
			e.order = append(e.order, k)
		}
		for i, agg := range e.plan.Aggregates {
			e.applyAggregate(st, i, agg, t, childSchema)
		}
	}

	if !anyInput {
		if len(e.plan.GroupBys) == 0 {
			st := newAggState(nil, len(e.plan.Aggregates))
			e.rows = append(e.rows, e.finalize(st))
		}
		return nil
	}

	for _, k := range e.order {
		e.rows = append(e.rows, e.finalize(e.groups[k]))
	}
	return nil
}

func newAggState(groupBy []tuple.Value, n int) *aggState {
	return &aggState{
		groupBy: groupBy,
		counts:  make([]int64, n),
		sums:    make([]int64, n),
		mins:    make([]tuple.Value, n),
		maxs:    make([]tuple.Value, n),
		seen:    make([]bool, n),
	}
}

func (e *AggregationExecutor) applyAggregate(st *aggState, i int, agg AggregateExpr, t tuple.Tuple, schema *tuple.Schema) {
	if agg.Func == AggCountStar {
		st.counts[i]++
		return
	}
	v := agg.Expr.Evaluate(t, schema)
	if v.IsNull {
		return
	}
	first := !st.seen[i]
	st.seen[i] = true
	st.counts[i]++
	switch agg.Func {
	case AggCount:
		// counted above
	case AggSum:
		st.sums[i] += v.Integer
	case AggMin:
		if first || tuple.CompareLess(v, st.mins[i]) {
			st.mins[i] = v
		}
	case AggMax:
		if first || tuple.CompareLess(st.maxs[i], v) {
			st.maxs[i] = v
		}
	}
}

func (e *AggregationExecutor) finalize(st *aggState) tuple.Tuple {
	values := make([]tuple.Value, 0, len(st.groupBy)+len(e.plan.Aggregates))
	values = append(values, st.groupBy...)
	for i, agg := range e.plan.Aggregates {
		switch agg.Func {
		case AggCountStar, AggCount:
			values = append(values, tuple.NewInteger(st.counts[i]))
		case AggSum:
			if !st.seen[i] {
				values = append(values, tuple.NewNull(tuple.TypeInteger))
			} else {
				values = append(values, tuple.NewInteger(st.sums[i]))
			}
		case AggMin:
			if !st.seen[i] {
				values = append(values, tuple.NewNull(tuple.TypeInteger))
			} else {
				values = append(values, st.mins[i])
			}
		case AggMax:
			if !st.seen[i] {
				values = append(values, tuple.NewNull(tuple.TypeInteger))
			} else {
				values = append(values, st.maxs[i])
			}
		}
	}
	return tuple.Tuple{Values: values}
}

func (e *AggregationExecutor) Next() (tuple.Tuple, bool, error) {
	if e.emitIdx >= len(e.rows) {
		return tuple.Tuple{}, false, nil
	}
	t := e.rows[e.emitIdx]
	e.emitIdx++
	return t, true, nil
}
