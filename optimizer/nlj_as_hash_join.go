package optimizer

import "dbcore/execution"

// OptimizeNLJAsHashJoin rewrites a NestedLoopJoinPlan whose predicate is a
// pure AND-conjunction of column-equality comparisons into a HashJoinPlan.
// Grounded on BusTub's nlj_as_hash_join.cpp: the recursive conjunction
// walker and the bottom-up, children-first traversal are carried over
// structurally.
func OptimizeNLJAsHashJoin(plan execution.Plan) execution.Plan {
	nlj, ok := plan.(*execution.NestedLoopJoinPlan)
	if !ok {
		return plan
	}
	leftWidth := len(nlj.Left.OutputSchema().Columns)
	leftKeys, rightKeys, ok := extractEqualityKeys(nlj.Predicate, leftWidth)
	if !ok || len(leftKeys) == 0 {
		return plan
	}
	return &execution.HashJoinPlan{
		Schema:    nlj.Schema,
		Left:      nlj.Left,
		Right:     nlj.Right,
		LeftKeys:  leftKeys,
		RightKeys: rightKeys,
		Type:      nlj.Type,
	}
}

// extractEqualityKeys walks e as an AND-tree of column=column comparisons,
// splitting each pair by which side of the join (< leftWidth vs >=
// leftWidth) it addresses. Returns ok=false if e contains anything other
// than AND and column-equality tests (an OR, or a comparison against a
// constant, disqualifies the whole predicate from this rewrite).
func extractEqualityKeys(e execution.Expr, leftWidth int) (leftKeys, rightKeys []execution.Expr, ok bool) {
	switch expr := e.(type) {
	case execution.LogicExpr:
		if expr.Op != execution.LogicAnd {
			return nil, nil, false
		}
		lk1, rk1, ok1 := extractEqualityKeys(expr.Left, leftWidth)
		if !ok1 {
			return nil, nil, false
		}
		lk2, rk2, ok2 := extractEqualityKeys(expr.Right, leftWidth)
		if !ok2 {
			return nil, nil, false
		}
		return append(lk1, lk2...), append(rk1, rk2...), true

	case execution.ComparisonExpr:
		if expr.Op != execution.OpEquals {
			return nil, nil, false
		}
		lc, lok := expr.Left.(execution.ColumnValueExpr)
		rc, rok := expr.Right.(execution.ColumnValueExpr)
		if !lok || !rok {
			return nil, nil, false
		}
		lFromLeft := lc.ColIdx < leftWidth
		rFromLeft := rc.ColIdx < leftWidth
		if lFromLeft == rFromLeft {
			// both from the same side: not a join-equality condition
			return nil, nil, false
		}
		leftCol, rightCol := lc, rc
		if !lFromLeft {
			leftCol, rightCol = rc, lc
		}
		leftExpr := execution.ColumnValueExpr{ColIdx: leftCol.ColIdx}
		rightExpr := execution.ColumnValueExpr{ColIdx: rightCol.ColIdx - leftWidth}
		return []execution.Expr{leftExpr}, []execution.Expr{rightExpr}, true

	default:
		return nil, nil, false
	}
}
