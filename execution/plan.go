package execution

import "dbcore/storage/tuple"

// JoinType distinguishes INNER from LEFT OUTER joins.
type JoinType int

const (
	InnerJoin JoinType = iota
	LeftJoin
)

// AggregateFunc enumerates the aggregate functions Aggregation supports.
type AggregateFunc int

const (
	AggCount AggregateFunc = iota
	AggCountStar
	AggSum
	AggMin
	AggMax
)

// AggregateExpr pairs an aggregate function with the expression it reduces.
// Expr is ignored for AggCountStar.
type AggregateExpr struct {
	Func AggregateFunc
	Expr Expr
}

// OrderByExpr pairs a sort key with its direction.
type OrderByExpr struct {
	Expr Expr
	Desc bool
}

// Plan is a physical plan node. Every concrete plan type implements it so
// the executor factory can type-switch on the concrete type instead of
// giving plan nodes their own Build method.
type Plan interface {
	OutputSchema() *tuple.Schema
}

type SeqScanPlan struct {
	Schema    *tuple.Schema
	TableName string
}

func (p *SeqScanPlan) OutputSchema() *tuple.Schema { return p.Schema }

type IndexScanPlan struct {
	Schema    *tuple.Schema
	TableName string
	IndexName string
	Key       int64
}

func (p *IndexScanPlan) OutputSchema() *tuple.Schema { return p.Schema }

type FilterPlan struct {
	Schema    *tuple.Schema
	Child     Plan
	Predicate Expr
}

func (p *FilterPlan) OutputSchema() *tuple.Schema { return p.Schema }

type ProjectionPlan struct {
	Schema      *tuple.Schema
	Child       Plan
	Expressions []Expr
}

func (p *ProjectionPlan) OutputSchema() *tuple.Schema { return p.Schema }

type NestedLoopJoinPlan struct {
	Schema    *tuple.Schema
	Left      Plan
	Right     Plan
	Predicate Expr
	Type      JoinType
}

func (p *NestedLoopJoinPlan) OutputSchema() *tuple.Schema { return p.Schema }

// HashJoinPlan joins on equality of left/right key expression lists (one
// pair per conjunct), built by the optimizer from an eligible NLJ.
type HashJoinPlan struct {
	Schema    *tuple.Schema
	Left      Plan
	Right     Plan
	LeftKeys  []Expr
	RightKeys []Expr
	Type      JoinType
}

func (p *HashJoinPlan) OutputSchema() *tuple.Schema { return p.Schema }

type AggregationPlan struct {
	Schema     *tuple.Schema
	Child      Plan
	GroupBys   []Expr
	Aggregates []AggregateExpr
}

func (p *AggregationPlan) OutputSchema() *tuple.Schema { return p.Schema }

type SortPlan struct {
	Schema  *tuple.Schema
	Child   Plan
	OrderBy []OrderByExpr
}

func (p *SortPlan) OutputSchema() *tuple.Schema { return p.Schema }

// TopNPlan is Sort+Limit collapsed by the optimizer: only the N smallest
// (per OrderBy) rows are ever materialized.
type TopNPlan struct {
	Schema  *tuple.Schema
	Child   Plan
	OrderBy []OrderByExpr
	N       int
}

func (p *TopNPlan) OutputSchema() *tuple.Schema { return p.Schema }

type LimitPlan struct {
	Schema *tuple.Schema
	Child  Plan
	N      int
}

func (p *LimitPlan) OutputSchema() *tuple.Schema { return p.Schema }

type InsertPlan struct {
	Schema    *tuple.Schema // synthetic single-column "rows affected" schema
	TableName string
	Child     Plan
}

func (p *InsertPlan) OutputSchema() *tuple.Schema { return p.Schema }

type UpdatePlan struct {
	Schema      *tuple.Schema
	TableName   string
	Child       Plan
	Assignments []Expr // one per column, evaluated against the scanned row
}

func (p *UpdatePlan) OutputSchema() *tuple.Schema { return p.Schema }

type DeletePlan struct {
	Schema    *tuple.Schema
	TableName string
	Child     Plan
}

func (p *DeletePlan) OutputSchema() *tuple.Schema { return p.Schema }

// RowsAffectedSchema is the single-column schema Insert/Update/Delete
// report their synthetic result row under.
func RowsAffectedSchema() *tuple.Schema {
	return tuple.NewSchema(tuple.Column{Name: "rows_affected", Type: tuple.TypeInteger})
}
