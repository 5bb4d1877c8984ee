package txn

import (
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Manager allocates transactions and tracks their lifecycle state.
type Manager struct {
	mu   sync.Mutex
	node *snowflake.Node
	log  *zap.Logger

	active map[int64]*Transaction
}

// NewManager constructs a Manager. nodeID identifies this process among
// any others sharing the same transaction id space (single-process
// deployments can pass 0).
func NewManager(nodeID int64, log *zap.Logger) (*Manager, error) {
	if log == nil {
		log = zap.NewNop()
	}
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, errors.Wrap(err, "construct snowflake node")
	}
	return &Manager{
		node:   node,
		log:    log,
		active: make(map[int64]*Transaction),
	}, nil
}

// Begin starts a new transaction under the given isolation level.
func (m *Manager) Begin(isolation Isolation) *Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.node.Generate().Int64()
	tx := &Transaction{ID: id, State: StateGrowing, Isolation: isolation}
	m.active[id] = tx
	m.log.Debug("begin transaction", zap.Int64("txn_id", id))
	return tx
}

// Commit transitions tx to committed and drops it from the active set.
func (m *Manager) Commit(tx *Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tx.State == StateAborted {
		return errors.New("cannot commit an aborted transaction")
	}
	tx.State = StateCommitted
	delete(m.active, tx.ID)
	return nil
}

// Abort transitions tx to aborted and drops it from the active set.
func (m *Manager) Abort(tx *Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx.State = StateAborted
	delete(m.active, tx.ID)
}

// ActiveCount returns the number of in-flight transactions.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}
