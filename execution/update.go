package execution

import (
	"dbcore/catalog"
	"dbcore/storage/tuple"
	"dbcore/txn"
)

// UpdateExecutor implements UPDATE as tombstone-and-reinsert: the old row
// is marked deleted and a freshly computed row is appended, rather than
// mutating bytes in place. This keeps the heap's slot format append-only.
type UpdateExecutor struct {
	plan  *UpdatePlan
	child Executor
	ctx   *Context
	table *catalog.TableInfo
	done  bool
}

func NewUpdateExecutor(plan *UpdatePlan, child Executor, ctx *Context) *UpdateExecutor {
	return &UpdateExecutor{plan: plan, child: child, ctx: ctx}
}

func (e *UpdateExecutor) Schema() *tuple.Schema { return e.plan.Schema }

func (e *UpdateExecutor) Init() error {
	table, ok := e.ctx.Catalog.GetTableByName(e.plan.TableName)
	if !ok {
		return errTableNotFound(e.plan.TableName)
	}
	e.table = table
	e.done = false
	if err := e.ctx.Locks.LockTable(e.ctx.Txn, txn.IntentionExclusive, e.plan.TableName); err != nil {
		return err
	}
	return e.child.Init()
}

func (e *UpdateExecutor) Next() (tuple.Tuple, bool, error) {
	if e.done {
		return tuple.Tuple{}, false, nil
	}
	e.done = true

	childSchema := e.child.Schema()
	indexes := e.ctx.Catalog.GetTableIndexes(e.plan.TableName)
	// Drain the child before mutating: a scan of the same table holds a read
	// latch on its current heap page between Next calls.
	var rows []tuple.Tuple
	for {
		row, ok, err := e.child.Next()
		if err != nil {
			return tuple.Tuple{}, false, err
		}
		if !ok {
			break
		}
		rows = append(rows, row)
	}

	var count int64
	for _, row := range rows {
		if err := e.ctx.Locks.LockRow(e.ctx.Txn, txn.Exclusive, e.plan.TableName, ridString(row.RID)); err != nil {
			return tuple.Tuple{}, false, err
		}
		if err := e.table.Heap.UpdateTupleMeta(row.RID, catalog.TupleMeta{Deleted: true}); err != nil {
			return tuple.Tuple{}, false, err
		}

		newValues := make([]tuple.Value, len(e.plan.Assignments))
		for i, expr := range e.plan.Assignments {
			newValues[i] = expr.Evaluate(row, childSchema)
		}
		newRow := tuple.Tuple{Values: newValues}
		rid, err := e.table.Heap.InsertTuple(newRow)
		if err != nil {
			return tuple.Tuple{}, false, err
		}
		for _, idx := range indexes {
			colIdx := e.table.Schema.IndexOf(idx.KeyColumn)
			if colIdx == -1 {
				continue
			}
			key := newRow.GetValue(colIdx).Integer
			_ = idx.Tree.Insert(key, rid) // best-effort: duplicate key means value unchanged
		}
		count++
	}
	return tuple.Tuple{Values: []tuple.Value{tuple.NewInteger(count)}}, true, nil
}
