package execution

import (
	"dbcore/catalog"
	"dbcore/storage/tuple"
	"dbcore/txn"
)

// SeqScanExecutor walks a table's heap in physical order, skipping
// tombstoned tuples. Grounded on BusTub's seq_scan_executor.cpp: the
// tombstone check happens here, not in the heap itself.
type SeqScanExecutor struct {
	plan  *SeqScanPlan
	ctx   *Context
	table *catalog.TableInfo
	iter  *catalog.Iterator
}

func NewSeqScanExecutor(plan *SeqScanPlan, ctx *Context) *SeqScanExecutor {
	return &SeqScanExecutor{plan: plan, ctx: ctx}
}

func (e *SeqScanExecutor) Schema() *tuple.Schema { return e.plan.Schema }

func (e *SeqScanExecutor) Init() error {
	table, ok := e.ctx.Catalog.GetTableByName(e.plan.TableName)
	if !ok {
		return errTableNotFound(e.plan.TableName)
	}
	e.table = table
	if err := e.ctx.Locks.LockTable(e.ctx.Txn, txn.IntentionShared, e.plan.TableName); err != nil {
		return err
	}
	iter, err := table.Heap.Begin()
	if err != nil {
		return err
	}
	e.iter = iter
	return nil
}

// Next returns the next non-tombstoned row, locking it Shared before
// handing it back. Under READ_COMMITTED that row lock is released
// immediately and the table lock taken in Init is released once the scan
// is exhausted; other isolation levels hold both until the transaction
// ends.
func (e *SeqScanExecutor) Next() (tuple.Tuple, bool, error) {
	for {
		t, meta, ok, err := e.iter.Next()
		if err != nil {
			return tuple.Tuple{}, false, err
		}
		if !ok {
			if e.ctx.Txn.Isolation == txn.ReadCommitted {
				e.ctx.Locks.UnlockTable(e.ctx.Txn, e.plan.TableName)
			}
			return tuple.Tuple{}, false, nil
		}
		if meta.Deleted {
			continue
		}

		ridKey := ridString(t.RID)
		if err := e.ctx.Locks.LockRow(e.ctx.Txn, txn.Shared, e.plan.TableName, ridKey); err != nil {
			return tuple.Tuple{}, false, err
		}
		if e.ctx.Txn.Isolation == txn.ReadCommitted {
			e.ctx.Locks.UnlockRow(e.ctx.Txn, e.plan.TableName, ridKey)
		}
		return t, true, nil
	}
}
