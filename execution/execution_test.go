package execution

import (
	"testing"

	"dbcore/catalog"
	"dbcore/storage/buffer"
	"dbcore/storage/page"
	"dbcore/storage/tuple"
	"dbcore/txn"
)

type memDisk struct {
	pages map[page.ID][]byte
	next  int64
}

func newMemDisk() *memDisk { return &memDisk{pages: make(map[page.ID][]byte)} }

func (m *memDisk) ReadPage(id page.ID, out []byte) error {
	data, ok := m.pages[id]
	if !ok {
		for i := range out {
			out[i] = 0
		}
		return nil
	}
	copy(out, data)
	return nil
}
func (m *memDisk) WritePage(id page.ID, in []byte) error {
	buf := make([]byte, len(in))
	copy(buf, in)
	m.pages[id] = buf
	return nil
}
func (m *memDisk) AllocatePage() page.ID {
	id := page.ID(m.next)
	m.next++
	return id
}
func (m *memDisk) DeallocatePage(id page.ID) {}
func (m *memDisk) Shutdown() error           { return nil }

func newTestEnv(t *testing.T) (*catalog.Catalog, *Context) {
	t.Helper()
	bp := buffer.NewPoolManager(64, newMemDisk(), nil)
	cat, err := catalog.New(bp, nil)
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}
	lm := txn.NewSimpleLockManager()
	tx := &txn.Transaction{ID: 1, State: txn.StateGrowing, Isolation: txn.ReadCommitted}
	ctx := NewContext(cat, bp, lm, tx, nil)
	return cat, ctx
}

func seedTable(t *testing.T, cat *catalog.Catalog, name string, schema *tuple.Schema, rows [][]tuple.Value) *catalog.TableInfo {
	t.Helper()
	info, err := cat.CreateTable(name, schema)
	if err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	for _, r := range rows {
		if _, err := info.Heap.InsertTuple(tuple.Tuple{Values: r}); err != nil {
			t.Fatalf("seed insert: %v", err)
		}
	}
	return info
}

func intSchema(names ...string) *tuple.Schema {
	cols := make([]tuple.Column, len(names))
	for i, n := range names {
		cols[i] = tuple.Column{Name: n, Type: tuple.TypeInteger}
	}
	return tuple.NewSchema(cols...)
}

func TestSeqScanSkipsTombstones(t *testing.T) {
	cat, ctx := newTestEnv(t)
	schema := intSchema("id")
	info := seedTable(t, cat, "nums", schema, [][]tuple.Value{
		{tuple.NewInteger(1)}, {tuple.NewInteger(2)}, {tuple.NewInteger(3)},
	})

	it, _ := info.Heap.Begin()
	tup, _, _, _ := it.Next()
	it.Close()
	if err := info.Heap.UpdateTupleMeta(tup.RID, catalog.TupleMeta{Deleted: true}); err != nil {
		t.Fatalf("UpdateTupleMeta: %v", err)
	}

	plan := &SeqScanPlan{Schema: schema, TableName: "nums"}
	rows, err := Execute(plan, ctx)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 live rows, got %d", len(rows))
	}
}

func TestFilterKeepsMatchingRows(t *testing.T) {
	cat, ctx := newTestEnv(t)
	schema := intSchema("id")
	seedTable(t, cat, "nums", schema, [][]tuple.Value{
		{tuple.NewInteger(1)}, {tuple.NewInteger(2)}, {tuple.NewInteger(3)},
	})

	scan := &SeqScanPlan{Schema: schema, TableName: "nums"}
	filter := &FilterPlan{
		Schema: schema,
		Child:  scan,
		Predicate: ComparisonExpr{
			Op:    OpGreaterThan,
			Left:  ColumnValueExpr{ColIdx: 0},
			Right: ConstantExpr{Value: tuple.NewInteger(1)},
		},
	}
	rows, err := Execute(filter, ctx)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows > 1, got %d", len(rows))
	}
}

func TestNestedLoopJoinInner(t *testing.T) {
	cat, ctx := newTestEnv(t)
	leftSchema := intSchema("id")
	rightSchema := intSchema("id")
	seedTable(t, cat, "l", leftSchema, [][]tuple.Value{{tuple.NewInteger(1)}, {tuple.NewInteger(2)}})
	seedTable(t, cat, "r", rightSchema, [][]tuple.Value{{tuple.NewInteger(2)}, {tuple.NewInteger(3)}})

	plan := &NestedLoopJoinPlan{
		Schema: intSchema("l_id", "r_id"),
		Left:   &SeqScanPlan{Schema: leftSchema, TableName: "l"},
		Right:  &SeqScanPlan{Schema: rightSchema, TableName: "r"},
		Type:   InnerJoin,
		Predicate: ComparisonExpr{
			Op:    OpEquals,
			Left:  ColumnValueExpr{ColIdx: 0},
			Right: ColumnValueExpr{ColIdx: 1},
		},
	}
	rows, err := Execute(plan, ctx)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 matching row, got %d", len(rows))
	}
	if ctx.NLJRewindCount() != 2 {
		t.Fatalf("expected right child rewound once per left row (2), got %d", ctx.NLJRewindCount())
	}
}

func TestNestedLoopJoinLeftOuterPadsUnmatched(t *testing.T) {
	cat, ctx := newTestEnv(t)
	leftSchema := intSchema("id")
	rightSchema := intSchema("id")
	seedTable(t, cat, "l2", leftSchema, [][]tuple.Value{{tuple.NewInteger(1)}, {tuple.NewInteger(9)}})
	seedTable(t, cat, "r2", rightSchema, [][]tuple.Value{{tuple.NewInteger(1)}})

	plan := &NestedLoopJoinPlan{
		Schema: intSchema("l_id", "r_id"),
		Left:   &SeqScanPlan{Schema: leftSchema, TableName: "l2"},
		Right:  &SeqScanPlan{Schema: rightSchema, TableName: "r2"},
		Type:   LeftJoin,
		Predicate: ComparisonExpr{
			Op:    OpEquals,
			Left:  ColumnValueExpr{ColIdx: 0},
			Right: ColumnValueExpr{ColIdx: 1},
		},
	}
	rows, err := Execute(plan, ctx)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows (1 match + 1 padded), got %d", len(rows))
	}
	if !rows[1].GetValue(1).IsNull {
		t.Fatalf("expected unmatched left row's right side to be NULL")
	}
}

func TestAggregationEmptyInputNoGroupByEmitsOneRow(t *testing.T) {
	cat, ctx := newTestEnv(t)
	schema := intSchema("id")
	seedTable(t, cat, "empty", schema, nil)

	plan := &AggregationPlan{
		Schema:     intSchema("cnt", "s"),
		Child:      &SeqScanPlan{Schema: schema, TableName: "empty"},
		Aggregates: []AggregateExpr{{Func: AggCountStar}, {Func: AggSum, Expr: ColumnValueExpr{ColIdx: 0}}},
	}
	rows, err := Execute(plan, ctx)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected exactly one row for empty-input no-groupby aggregate, got %d", len(rows))
	}
	if rows[0].GetValue(0).Integer != 0 {
		t.Fatalf("expected COUNT(*)=0, got %v", rows[0].GetValue(0))
	}
	if !rows[0].GetValue(1).IsNull {
		t.Fatalf("expected SUM to be NULL on empty input")
	}
}

func TestAggregationEmptyInputWithGroupByEmitsNoRows(t *testing.T) {
	cat, ctx := newTestEnv(t)
	schema := intSchema("id")
	seedTable(t, cat, "empty2", schema, nil)

	plan := &AggregationPlan{
		Schema:     intSchema("id", "cnt"),
		Child:      &SeqScanPlan{Schema: schema, TableName: "empty2"},
		GroupBys:   []Expr{ColumnValueExpr{ColIdx: 0}},
		Aggregates: []AggregateExpr{{Func: AggCountStar}},
	}
	rows, err := Execute(plan, ctx)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected zero rows for empty-input group-by aggregate, got %d", len(rows))
	}
}

func TestTopNMatchesSortThenLimit(t *testing.T) {
	cat, ctx := newTestEnv(t)
	schema := intSchema("id")
	seedTable(t, cat, "vals", schema, [][]tuple.Value{
		{tuple.NewInteger(5)}, {tuple.NewInteger(1)}, {tuple.NewInteger(9)},
		{tuple.NewInteger(3)}, {tuple.NewInteger(7)},
	})

	topN := &TopNPlan{
		Schema:  schema,
		Child:   &SeqScanPlan{Schema: schema, TableName: "vals"},
		OrderBy: []OrderByExpr{{Expr: ColumnValueExpr{ColIdx: 0}}},
		N:       3,
	}
	rows, err := Execute(topN, ctx)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	want := []int64{1, 3, 5}
	if len(rows) != len(want) {
		t.Fatalf("expected %d rows, got %d", len(want), len(rows))
	}
	for i, w := range want {
		if rows[i].GetValue(0).Integer != w {
			t.Fatalf("row %d: expected %d, got %d", i, w, rows[i].GetValue(0).Integer)
		}
	}
}

func TestInsertThenDeleteRoundTrip(t *testing.T) {
	cat, ctx := newTestEnv(t)
	schema := intSchema("id")
	if _, err := cat.CreateTable("scratch", schema); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}

	values := &staticExecutor{schema: schema, rows: [][]tuple.Value{{tuple.NewInteger(1)}, {tuple.NewInteger(2)}}}
	insertPlan := &InsertPlan{Schema: RowsAffectedSchema(), TableName: "scratch"}
	insertExec := NewInsertExecutor(insertPlan, values, ctx)
	if err := insertExec.Init(); err != nil {
		t.Fatalf("Init insert: %v", err)
	}
	inserted, _, err := insertExec.Next()
	if err != nil {
		t.Fatalf("Next insert: %v", err)
	}
	if inserted.GetValue(0).Integer != 2 {
		t.Fatalf("expected 2 rows inserted, got %v", inserted.GetValue(0))
	}

	scanRows, err := Execute(&SeqScanPlan{Schema: schema, TableName: "scratch"}, ctx)
	if err != nil {
		t.Fatalf("Execute scan: %v", err)
	}
	if len(scanRows) != 2 {
		t.Fatalf("expected 2 live rows, got %d", len(scanRows))
	}

	deletePlan := &DeletePlan{
		Schema:    RowsAffectedSchema(),
		TableName: "scratch",
		Child:     &SeqScanPlan{Schema: schema, TableName: "scratch"},
	}
	delRows, err := Execute(deletePlan, ctx)
	if err != nil {
		t.Fatalf("Execute delete: %v", err)
	}
	if delRows[0].GetValue(0).Integer != 2 {
		t.Fatalf("expected 2 rows deleted, got %v", delRows[0].GetValue(0))
	}

	scanAfter, err := Execute(&SeqScanPlan{Schema: schema, TableName: "scratch"}, ctx)
	if err != nil {
		t.Fatalf("Execute scan after delete: %v", err)
	}
	if len(scanAfter) != 0 {
		t.Fatalf("expected 0 live rows after delete, got %d", len(scanAfter))
	}
}

// staticExecutor lets tests feed a fixed row set into Insert
// without needing a full VALUES plan/executor.
type staticExecutor struct {
	schema *tuple.Schema
	rows   [][]tuple.Value
	pos    int
}

func (e *staticExecutor) Init() error { e.pos = 0; return nil }
func (e *staticExecutor) Next() (tuple.Tuple, bool, error) {
	if e.pos >= len(e.rows) {
		return tuple.Tuple{}, false, nil
	}
	v := e.rows[e.pos]
	e.pos++
	return tuple.Tuple{Values: v}, true, nil
}
func (e *staticExecutor) Schema() *tuple.Schema { return e.schema }
