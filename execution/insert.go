package execution

import (
	"dbcore/catalog"
	"dbcore/storage/tuple"
	"dbcore/txn"
)

// InsertExecutor pulls every row from child, inserts it into the target
// table's heap and every index built over it, and emits a single synthetic
// row reporting the count.
type InsertExecutor struct {
	plan  *InsertPlan
	child Executor
	ctx   *Context
	table *catalog.TableInfo
	done  bool
}

func NewInsertExecutor(plan *InsertPlan, child Executor, ctx *Context) *InsertExecutor {
	return &InsertExecutor{plan: plan, child: child, ctx: ctx}
}

func (e *InsertExecutor) Schema() *tuple.Schema { return e.plan.Schema }

func (e *InsertExecutor) Init() error {
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

func (e *InsertExecutor) Next() (tuple.Tuple, bool, error) {
	if e.done {
		return tuple.Tuple{}, false, nil
	}
	e.done = true

	var count int64
	indexes := e.ctx.Catalog.GetTableIndexes(e.plan.TableName)
	for {
		row, ok, err := e.child.Next()
		if err != nil {
			return tuple.Tuple{}, false, err
		}
		if !ok {
			break
		}
		rid, err := e.table.Heap.InsertTuple(row)
		if err != nil {
			return tuple.Tuple{}, false, err
		}
		for _, idx := range indexes {
			colIdx := e.table.Schema.IndexOf(idx.KeyColumn)
			if colIdx == -1 {
				continue
			}
			key := row.GetValue(colIdx).Integer
			if err := idx.Tree.Insert(key, rid); err != nil {
				return tuple.Tuple{}, false, err
			}
		}
		count++
	}
	return tuple.Tuple{Values: []tuple.Value{tuple.NewInteger(count)}}, true, nil
}
