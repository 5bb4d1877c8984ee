package catalog

import (
	"sync"

	"github.com/pkg/errors"

	"dbcore/storage/buffer"
	"dbcore/storage/page"
	"dbcore/storage/tuple"
)

// TupleMeta carries per-tuple bookkeeping alongside its bytes; today that's
// just the delete tombstone bit executors check on every scan.
type TupleMeta struct {
	Deleted bool
}

// TableHeap is an append-mostly, page-chained slotted heap. Deletes are
// tombstones: rows are marked deleted in their meta, not physically
// removed, so a scan in progress never sees a slot vanish underneath it.
type TableHeap struct {
	mu        sync.Mutex
	bp        *buffer.PoolManager
	schema    *tuple.Schema
	firstPage page.ID
	lastPage  page.ID
}

// NewTableHeap allocates the heap's first page.
func NewTableHeap(bp *buffer.PoolManager, schema *tuple.Schema) (*TableHeap, error) {
	g, err := bp.NewPageGuarded()
	if err != nil {
		return nil, errors.Wrap(err, "allocate first heap page")
	}
	hp := newHeapPage()
	hp.encodeHeader(g.Page().Data())
	g.MarkDirty()
	id := g.Page().ID()
	g.Drop()
	return &TableHeap{bp: bp, schema: schema, firstPage: id, lastPage: id}, nil
}

// OpenTableHeap reopens a heap whose first/last page ids are already known
// (as persisted by the catalog).
func OpenTableHeap(bp *buffer.PoolManager, schema *tuple.Schema, first, last page.ID) *TableHeap {
	return &TableHeap{bp: bp, schema: schema, firstPage: first, lastPage: last}
}

func (h *TableHeap) columnTypes() []tuple.ColumnType {
	types := make([]tuple.ColumnType, len(h.schema.Columns))
	for i, c := range h.schema.Columns {
		types[i] = c.Type
	}
	return types
}

// InsertTuple appends t to the heap, allocating a new page if the current
// last page has no room, and returns the assigned RID.
func (h *TableHeap) InsertTuple(t tuple.Tuple) (tuple.RID, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	encoded := t.Encode()

	g, err := h.bp.FetchPageWrite(h.lastPage)
	if err != nil {
		return tuple.RID{}, errors.Wrap(err, "fetch last heap page")
	}
	hp := decodeHeapPage(g.Page().Data())

	if !hp.canFit(len(encoded)) {
		g.Drop()
		newGuard, err := h.bp.NewPageGuarded()
		if err != nil {
			return tuple.RID{}, errors.Wrap(err, "allocate new heap page")
		}
		newHp := newHeapPage()
		newHp.encodeHeader(newGuard.Page().Data())

		oldGuard, err := h.bp.FetchPageWrite(h.lastPage)
		if err != nil {
			newGuard.Drop()
			return tuple.RID{}, errors.Wrap(err, "re-fetch last heap page to link")
		}
		oldHp := decodeHeapPage(oldGuard.Page().Data())
		oldHp.next = newGuard.Page().ID()
		oldHp.encodeHeader(oldGuard.Page().Data())
		oldGuard.MarkDirty()
		oldGuard.Drop()

		h.lastPage = newGuard.Page().ID()
		slotIdx := newHp.insert(newGuard.Page().Data(), encoded)
		newGuard.MarkDirty()
		rid := tuple.RID{PageID: int32(newGuard.Page().ID()), Slot: slotIdx}
		newGuard.Drop()
		return rid, nil
	}

	slotIdx := hp.insert(g.Page().Data(), encoded)
	g.MarkDirty()
	rid := tuple.RID{PageID: int32(g.Page().ID()), Slot: slotIdx}
	g.Drop()
	return rid, nil
}

// GetTuple returns the tuple stored at rid along with its meta.
func (h *TableHeap) GetTuple(rid tuple.RID) (tuple.Tuple, TupleMeta, error) {
	g, err := h.bp.FetchPageRead(page.ID(rid.PageID))
	if err != nil {
		return tuple.Tuple{}, TupleMeta{}, errors.Wrapf(err, "fetch heap page %d", rid.PageID)
	}
	defer g.Drop()
	hp := decodeHeapPage(g.Page().Data())
	raw, ok := hp.tupleBytes(g.Page().Data(), rid.Slot)
	if !ok {
		return tuple.Tuple{}, TupleMeta{}, errors.Errorf("rid %+v: slot out of range", rid)
	}
	t, err := tuple.Decode(h.columnTypes(), raw)
	if err != nil {
		return tuple.Tuple{}, TupleMeta{}, errors.Wrapf(err, "decode tuple at %+v", rid)
	}
	t.RID = rid
	return t, TupleMeta{Deleted: hp.isDeleted(rid.Slot)}, nil
}

// GetTupleMeta returns just the meta for rid, without decoding the tuple.
func (h *TableHeap) GetTupleMeta(rid tuple.RID) (TupleMeta, error) {
	g, err := h.bp.FetchPageRead(page.ID(rid.PageID))
	if err != nil {
		return TupleMeta{}, errors.Wrapf(err, "fetch heap page %d", rid.PageID)
	}
	defer g.Drop()
	hp := decodeHeapPage(g.Page().Data())
	return TupleMeta{Deleted: hp.isDeleted(rid.Slot)}, nil
}

// UpdateTupleMeta sets the tombstone bit for rid.
func (h *TableHeap) UpdateTupleMeta(rid tuple.RID, meta TupleMeta) error {
	g, err := h.bp.FetchPageWrite(page.ID(rid.PageID))
	if err != nil {
		return errors.Wrapf(err, "fetch heap page %d", rid.PageID)
	}
	defer g.Drop()
	hp := decodeHeapPage(g.Page().Data())
	if !hp.markDeleted(rid.Slot, meta.Deleted) {
		return errors.Errorf("rid %+v: slot out of range", rid)
	}
	hp.encodeHeader(g.Page().Data())
	g.MarkDirty()
	return nil
}

// FirstPageID returns the heap's first page, the entry point for a full scan.
func (h *TableHeap) FirstPageID() page.ID { return h.firstPage }

// Iterator walks every live slot in the heap in page/slot order, including
// tombstoned ones — SeqScan is responsible for filtering those out so that
// it can also serve "scan including deleted" use cases like vacuum.
type Iterator struct {
	h       *TableHeap
	guard   *buffer.ReadGuard
	hp      *heapPage
	pageID  page.ID
	slotIdx int
}

// Begin returns an iterator positioned before the first tuple.
func (h *TableHeap) Begin() (*Iterator, error) {
	g, err := h.bp.FetchPageRead(h.firstPage)
	if err != nil {
		return nil, errors.Wrap(err, "fetch first heap page")
	}
	return &Iterator{h: h, guard: g, hp: decodeHeapPage(g.Page().Data()), pageID: h.firstPage, slotIdx: 0}, nil
}

// IsEnd reports whether the iterator is exhausted.
func (it *Iterator) IsEnd() bool {
	return it.guard == nil
}

// Next returns the next (tuple, meta) pair, advancing across page
// boundaries transparently.
func (it *Iterator) Next() (tuple.Tuple, TupleMeta, bool, error) {
	for {
		if it.guard == nil {
			return tuple.Tuple{}, TupleMeta{}, false, nil
		}
		if it.slotIdx >= len(it.hp.slots) {
			next := it.hp.next
			it.guard.Drop()
			if next == page.INVALID {
				it.guard = nil
				return tuple.Tuple{}, TupleMeta{}, false, nil
			}
			g, err := it.h.bp.FetchPageRead(next)
			if err != nil {
				it.guard = nil
				return tuple.Tuple{}, TupleMeta{}, false, errors.Wrap(err, "advance heap iterator")
			}
			it.guard = g
			it.hp = decodeHeapPage(g.Page().Data())
			it.pageID = next
			it.slotIdx = 0
			continue
		}
		raw, ok := it.hp.tupleBytes(it.guard.Page().Data(), uint16(it.slotIdx))
		if !ok {
			it.slotIdx++
			continue
		}
		t, err := tuple.Decode(it.h.columnTypes(), raw)
		if err != nil {
			return tuple.Tuple{}, TupleMeta{}, false, errors.Wrap(err, "decode tuple during scan")
		}
		t.RID = tuple.RID{PageID: int32(it.pageID), Slot: uint16(it.slotIdx)}
		meta := TupleMeta{Deleted: it.hp.isDeleted(uint16(it.slotIdx))}
		it.slotIdx++
		return t, meta, true, nil
	}
}

// Close releases the iterator's held latch, if any.
func (it *Iterator) Close() {
	if it.guard != nil {
		it.guard.Drop()
		it.guard = nil
	}
}
