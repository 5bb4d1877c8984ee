// Package optimizer applies bottom-up rewrites to a physical plan tree
// built by execution.Build's caller, before execution.Execute runs it.
package optimizer

import "dbcore/execution"

// Rule rewrites a single plan node, assuming its children have already
// been rewritten.
type Rule func(execution.Plan) execution.Plan

// DefaultRules is the fixed rewrite pipeline: collapse eligible NLJs into
// hash joins, then collapse Sort+Limit into TopN.
var DefaultRules = []Rule{
	OptimizeNLJAsHashJoin,
	OptimizeSortLimitAsTopN,
}

// Optimize recursively rewrites plan's children first, then applies every
// rule to the resulting node, bottom-up — a parent rule only ever sees
// already-optimized children.
func Optimize(plan execution.Plan, rules []Rule) execution.Plan {
	plan = rewriteChildren(plan, rules)
	for _, rule := range rules {
		plan = rule(plan)
	}
	return plan
}

func rewriteChildren(plan execution.Plan, rules []Rule) execution.Plan {
	switch p := plan.(type) {
	case *execution.FilterPlan:
		p.Child = Optimize(p.Child, rules)
		return p
	case *execution.ProjectionPlan:
		p.Child = Optimize(p.Child, rules)
		return p
	case *execution.NestedLoopJoinPlan:
		p.Left = Optimize(p.Left, rules)
		p.Right = Optimize(p.Right, rules)
		return p
	case *execution.HashJoinPlan:
		p.Left = Optimize(p.Left, rules)
		p.Right = Optimize(p.Right, rules)
		return p
	case *execution.AggregationPlan:
		p.Child = Optimize(p.Child, rules)
		return p
	case *execution.SortPlan:
		p.Child = Optimize(p.Child, rules)
		return p
	case *execution.TopNPlan:
		p.Child = Optimize(p.Child, rules)
		return p
	case *execution.LimitPlan:
		p.Child = Optimize(p.Child, rules)
		return p
	case *execution.InsertPlan:
		p.Child = Optimize(p.Child, rules)
		return p
	case *execution.UpdatePlan:
		p.Child = Optimize(p.Child, rules)
		return p
	case *execution.DeletePlan:
		p.Child = Optimize(p.Child, rules)
		return p
	default:
		// SeqScanPlan, IndexScanPlan: leaves, nothing to recurse into.
		return plan
	}
}
