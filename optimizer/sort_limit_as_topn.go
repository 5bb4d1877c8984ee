package optimizer

import "dbcore/execution"

// OptimizeSortLimitAsTopN collapses a LimitPlan directly over a SortPlan
// into a single TopNPlan, avoiding a full sort when only the first N rows
// are ever wanted. Grounded on BusTub's sort_limit_as_topn.cpp.
func OptimizeSortLimitAsTopN(plan execution.Plan) execution.Plan {
	limit, ok := plan.(*execution.LimitPlan)
	if !ok {
		return plan
	}
	sortPlan, ok := limit.Child.(*execution.SortPlan)
	if !ok {
		return plan
	}
	return &execution.TopNPlan{
		Schema:  limit.Schema,
		Child:   sortPlan.Child,
		OrderBy: sortPlan.OrderBy,
		N:       limit.N,
	}
}
