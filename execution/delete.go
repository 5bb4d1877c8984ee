package execution

import (
	"dbcore/catalog"
	"dbcore/storage/tuple"
	"dbcore/txn"
)

// DeleteExecutor tombstones every row child produces: the tuple bytes stay
// in the heap, only its meta's Deleted bit flips, leaving room for a later
// MVCC layer to keep old versions readable to in-flight scans.
type DeleteExecutor struct {
	plan  *DeletePlan
	child Executor
	ctx   *Context
	table *catalog.TableInfo
	done  bool
}

func NewDeleteExecutor(plan *DeletePlan, child Executor, ctx *Context) *DeleteExecutor {
	return &DeleteExecutor{plan: plan, child: child, ctx: ctx}
}

func (e *DeleteExecutor) Schema() *tuple.Schema { return e.plan.Schema }

func (e *DeleteExecutor) Init() error {
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

func (e *DeleteExecutor) Next() (tuple.Tuple, bool, error) {
	if e.done {
		return tuple.Tuple{}, false, nil
	}
	e.done = true

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
		count++
	}
	return tuple.Tuple{Values: []tuple.Value{tuple.NewInteger(count)}}, true, nil
}
