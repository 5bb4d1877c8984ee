// Package execution implements the Volcano-style pull execution engine:
// a two-method Executor interface (Init/Next), one concrete executor per
// physical operator, and the plan/expression types that describe a query.
package execution

import (
	"go.uber.org/zap"

	"dbcore/catalog"
	"dbcore/storage/buffer"
	"dbcore/txn"
)

// Context bundles everything an executor needs to run: the catalog and
// buffer pool it reads through, the lock manager and transaction it
// operates under, and an invariant counter exercised by tests
// (NLJ's contract that it never re-reads the right child from disk twice
// per left tuple beyond one rewind).
type Context struct {
	Catalog *catalog.Catalog
	Buffer  *buffer.PoolManager
	Locks   txn.LockManager
	Txn     *txn.Transaction
	Log     *zap.Logger

	nljRewindCount int
}

// NewContext constructs an execution context. log may be nil.
func NewContext(cat *catalog.Catalog, bp *buffer.PoolManager, locks txn.LockManager, tx *txn.Transaction, log *zap.Logger) *Context {
	if log == nil {
		log = zap.NewNop()
	}
	return &Context{Catalog: cat, Buffer: bp, Locks: locks, Txn: tx, Log: log}
}

// RecordNLJRewind is called by NestedLoopJoinExecutor every time it rewinds
// its right child for a new left tuple, so tests can assert the join
// actually iterates one rewind per left row rather than materializing
// everything up front.
func (c *Context) RecordNLJRewind() { c.nljRewindCount++ }

// NLJRewindCount returns how many times a nested loop join has rewound its
// right child so far in this context's lifetime.
func (c *Context) NLJRewindCount() int { return c.nljRewindCount }
