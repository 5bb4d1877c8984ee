package buffer

import "dbcore/storage/page"

// BasicGuard owns a pinned page with no latch discipline of its own; the
// caller is responsible for calling Page()'s Lock/RLock if it needs one.
// Go has no destructors, so unlike the C++ original a guard does not
// release itself automatically — callers must defer Drop().
type BasicGuard struct {
	bp      *PoolManager
	pg      *page.Page
	dirty   bool
	dropped bool
}

func newBasicGuard(bp *PoolManager, pg *page.Page) *BasicGuard {
	return &BasicGuard{bp: bp, pg: pg}
}

// Page returns the underlying page.
func (g *BasicGuard) Page() *page.Page { return g.pg }

// MarkDirty flags the page as modified; the flag is applied on Drop.
func (g *BasicGuard) MarkDirty() { g.dirty = true }

// Drop unpins the page and releases the guard. Idempotent: a second call
// is a no-op, matching the C++ original's post-move "empty guard" state.
func (g *BasicGuard) Drop() {
	if g.dropped {
		return
	}
	g.dropped = true
	_ = g.bp.UnpinPage(g.pg.ID(), g.dirty)
}

// ReadGuard owns a pinned page held under its read latch.
type ReadGuard struct {
	bp      *PoolManager
	pg      *page.Page
	dropped bool
}

func newReadGuard(bp *PoolManager, pg *page.Page) *ReadGuard {
	pg.RLock()
	return &ReadGuard{bp: bp, pg: pg}
}

// Page returns the underlying page. Callers must not write through it.
func (g *ReadGuard) Page() *page.Page { return g.pg }

// Drop releases the read latch and unpins the page. Idempotent.
func (g *ReadGuard) Drop() {
	if g.dropped {
		return
	}
	g.dropped = true
	g.pg.RUnlock()
	_ = g.bp.UnpinPage(g.pg.ID(), false)
}

// WriteGuard owns a pinned page held under its write latch. Any write
// through Page().Data() must be followed by Drop() to be observable by the
// next reader (there is no separate commit step).
type WriteGuard struct {
	bp      *PoolManager
	pg      *page.Page
	dropped bool
}

func newWriteGuard(bp *PoolManager, pg *page.Page) *WriteGuard {
	pg.Lock()
	return &WriteGuard{bp: bp, pg: pg}
}

// Page returns the underlying page.
func (g *WriteGuard) Page() *page.Page { return g.pg }

// MarkDirty is a no-op: a WriteGuard's page is always treated as dirty on
// Drop. It exists so callers can use WriteGuard and BasicGuard uniformly.
func (g *WriteGuard) MarkDirty() {}

// Drop releases the write latch and unpins the page as dirty. Idempotent.
func (g *WriteGuard) Drop() {
	if g.dropped {
		return
	}
	g.dropped = true
	g.pg.Unlock()
	_ = g.bp.UnpinPage(g.pg.ID(), true)
}

// NewPageGuarded allocates a fresh page and returns it wrapped in a
// BasicGuard.
func (bp *PoolManager) NewPageGuarded() (*BasicGuard, error) {
	pg, err := bp.NewPage()
	if err != nil {
		return nil, err
	}
	return newBasicGuard(bp, pg), nil
}

// FetchPageBasic fetches id and wraps it in a BasicGuard.
func (bp *PoolManager) FetchPageBasic(id page.ID) (*BasicGuard, error) {
	pg, err := bp.FetchPage(id)
	if err != nil {
		return nil, err
	}
	return newBasicGuard(bp, pg), nil
}

// FetchPageRead fetches id and returns it under its read latch.
func (bp *PoolManager) FetchPageRead(id page.ID) (*ReadGuard, error) {
	pg, err := bp.FetchPage(id)
	if err != nil {
		return nil, err
	}
	return newReadGuard(bp, pg), nil
}

// FetchPageWrite fetches id and returns it under its write latch.
func (bp *PoolManager) FetchPageWrite(id page.ID) (*WriteGuard, error) {
	pg, err := bp.FetchPage(id)
	if err != nil {
		return nil, err
	}
	return newWriteGuard(bp, pg), nil
}
