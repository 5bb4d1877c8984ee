// Package txn provides minimal transaction identity and lock bookkeeping
// for the execution engine: enough to let executors tag every read/write
// with a transaction and acquire/release locks, without implementing
// conflict detection, waiting, or deadlock recovery.
package txn

import "github.com/pkg/errors"

// ErrTransactionAborted is returned by lock acquisition when a transaction
// has already been marked aborted.
var ErrTransactionAborted = errors.New("transaction aborted")

// State is a transaction's lifecycle stage.
type State int

const (
	StateGrowing State = iota
	StateShrinking
	StateCommitted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateGrowing:
		return "GROWING"
	case StateShrinking:
		return "SHRINKING"
	case StateCommitted:
		return "COMMITTED"
	case StateAborted:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}

// Isolation is the isolation level a transaction runs under. The engine
// only uses this to decide whether IndexScan/SeqScan release their row
// locks immediately after reading (READ_COMMITTED) or hold them until
// commit (any other level) — see SPEC_FULL.md, Open Questions 2.
type Isolation int

const (
	ReadUncommitted Isolation = iota
	ReadCommitted
	RepeatableRead
)

// Transaction identifies one unit of work. ID allocation is delegated to
// Manager (backed by a snowflake node) so ids stay unique across process
// restarts, unlike a plain incrementing counter.
type Transaction struct {
	ID        int64
	State     State
	Isolation Isolation
}
