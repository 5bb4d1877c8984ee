package txn

import "testing"

func TestManagerBeginCommit(t *testing.T) {
	m, err := NewManager(0, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	tx := m.Begin(ReadCommitted)
	if tx.State != StateGrowing {
		t.Fatalf("expected growing state, got %v", tx.State)
	}
	if m.ActiveCount() != 1 {
		t.Fatalf("expected 1 active transaction, got %d", m.ActiveCount())
	}
	if err := m.Commit(tx); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if tx.State != StateCommitted {
		t.Fatalf("expected committed state, got %v", tx.State)
	}
	if m.ActiveCount() != 0 {
		t.Fatalf("expected 0 active transactions after commit, got %d", m.ActiveCount())
	}
}

func TestManagerAbortThenCommitFails(t *testing.T) {
	m, err := NewManager(0, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	tx := m.Begin(ReadCommitted)
	m.Abort(tx)
	if err := m.Commit(tx); err == nil {
		t.Fatalf("expected commit of aborted txn to fail")
	}
}

func TestSimpleLockManagerGrantsImmediately(t *testing.T) {
	lm := NewSimpleLockManager()
	tx := &Transaction{ID: 1, State: StateGrowing}

	if err := lm.LockTable(tx, IntentionShared, "t"); err != nil {
		t.Fatalf("LockTable: %v", err)
	}
	if err := lm.LockRow(tx, Shared, "t", "1:0"); err != nil {
		t.Fatalf("LockRow: %v", err)
	}
	if err := lm.UnlockRow(tx, "t", "1:0"); err != nil {
		t.Fatalf("UnlockRow: %v", err)
	}
	if err := lm.UnlockTable(tx, "t"); err != nil {
		t.Fatalf("UnlockTable: %v", err)
	}
}

func TestLockAbortedTransactionFails(t *testing.T) {
	lm := NewSimpleLockManager()
	tx := &Transaction{ID: 1, State: StateAborted}
	if err := lm.LockTable(tx, Shared, "t"); err != ErrTransactionAborted {
		t.Fatalf("expected ErrTransactionAborted, got %v", err)
	}
}
