package execution

import (
	"dbcore/catalog"
	"dbcore/storage/tuple"
	"dbcore/txn"
)

// IndexScanExecutor does an equality point lookup through a B+Tree index,
// then fetches the matching row from the owning table's heap.
type IndexScanExecutor struct {
	plan  *IndexScanPlan
	ctx   *Context
	index *catalog.IndexInfo
	table *catalog.TableInfo
	done  bool
}

func NewIndexScanExecutor(plan *IndexScanPlan, ctx *Context) *IndexScanExecutor {
	return &IndexScanExecutor{plan: plan, ctx: ctx}
}

func (e *IndexScanExecutor) Schema() *tuple.Schema { return e.plan.Schema }

func (e *IndexScanExecutor) Init() error {
	table, ok := e.ctx.Catalog.GetTableByName(e.plan.TableName)
	if !ok {
		return errTableNotFound(e.plan.TableName)
	}
	e.table = table
	var idx *catalog.IndexInfo
	for _, i := range e.ctx.Catalog.GetTableIndexes(e.plan.TableName) {
		if i.Name == e.plan.IndexName {
			idx = i
			break
		}
	}
	if idx == nil {
		return errIndexNotFound(e.plan.IndexName)
	}
	e.index = idx
	e.done = false
	return e.ctx.Locks.LockTable(e.ctx.Txn, txn.IntentionShared, e.plan.TableName)
}

// Next returns at most one row: the tuple whose indexed column equals the
// plan's key, if present and not tombstoned. Under READ_COMMITTED the row
// lock is released immediately after reading; other isolation levels hold
// it for the rest of the transaction (SPEC_FULL.md §4.5).
func (e *IndexScanExecutor) Next() (tuple.Tuple, bool, error) {
	if e.done {
		return tuple.Tuple{}, false, nil
	}
	e.done = true

	rid, ok, err := e.index.Tree.GetValue(e.plan.Key)
	if err != nil {
		return tuple.Tuple{}, false, err
	}
	if !ok {
		return tuple.Tuple{}, false, nil
	}

	ridKey := ridString(rid)
	if err := e.ctx.Locks.LockRow(e.ctx.Txn, txn.Shared, e.plan.TableName, ridKey); err != nil {
		return tuple.Tuple{}, false, err
	}
	if e.ctx.Txn.Isolation == txn.ReadCommitted {
		defer e.ctx.Locks.UnlockRow(e.ctx.Txn, e.plan.TableName, ridKey)
	}

	t, meta, err := e.table.Heap.GetTuple(rid)
	if err != nil {
		return tuple.Tuple{}, false, err
	}
	if meta.Deleted {
		return tuple.Tuple{}, false, nil
	}
	return t, true, nil
}

func ridString(rid tuple.RID) string {
	buf := make([]byte, 0, 12)
	buf = appendInt(buf, int64(rid.PageID))
	buf = append(buf, ':')
	buf = appendInt(buf, int64(rid.Slot))
	return string(buf)
}

func appendInt(buf []byte, n int64) []byte {
	if n == 0 {
		return append(buf, '0')
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var tmp [20]byte
	i := len(tmp)
	for n > 0 {
		i--
		tmp[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		tmp[i] = '-'
	}
	return append(buf, tmp[i:]...)
}
