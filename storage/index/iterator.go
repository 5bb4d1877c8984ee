package index

import (
	"github.com/pkg/errors"

	"dbcore/storage/buffer"
	"dbcore/storage/page"
	"dbcore/storage/tuple"
)

// Iterator walks a leaf chain in ascending key order. It holds a read
// latch on at most one leaf page at a time.
type Iterator struct {
	bp    *buffer.PoolManager
	guard *buffer.ReadGuard
	leaf  *leafNode
	pos   int
	err   error
}

// Begin returns an iterator positioned at the first key >= key (or the
// very first entry if key is nil-equivalent — callers wanting a full scan
// pass the minimum representable key).
func (t *BPlusTree) Begin(key int64) (*Iterator, error) {
	rootID, err := t.root()
	if err != nil {
		return nil, err
	}
	if rootID == page.INVALID {
		return &Iterator{}, nil
	}

	cur, err := t.bp.FetchPageRead(rootID)
	if err != nil {
		return nil, errors.Wrap(err, "fetch root for iterator")
	}
	for pageType(cur.Page().Data()) == typeInternal {
		internal := decodeInternal(cur.Page().Data())
		childIdx := internal.lookup(key)
		child, err := t.bp.FetchPageRead(internal.children[childIdx])
		if err != nil {
			cur.Drop()
			return nil, errors.Wrap(err, "descend to leaf for iterator")
		}
		cur.Drop()
		cur = child
	}
	leaf := decodeLeaf(cur.Page().Data())
	idx := leaf.lowerBound(key)
	return &Iterator{bp: t.bp, guard: cur, leaf: leaf, pos: idx}, nil
}

// IsEnd reports whether the iterator has been exhausted.
func (it *Iterator) IsEnd() bool {
	return it.guard == nil || (it.pos >= it.leaf.size && it.leaf.next == page.INVALID)
}

// advance moves past the end of the current leaf into the next one, if any.
func (it *Iterator) advance() {
	if it.pos < it.leaf.size {
		return
	}
	for it.leaf.next != page.INVALID {
		next, err := it.bp.FetchPageRead(it.leaf.next)
		if err != nil {
			it.err = errors.Wrap(err, "advance iterator to next leaf")
			it.guard.Drop()
			it.guard = nil
			return
		}
		it.guard.Drop()
		it.guard = next
		it.leaf = decodeLeaf(next.Page().Data())
		it.pos = 0
		if it.leaf.size > 0 {
			return
		}
	}
	it.guard.Drop()
	it.guard = nil
}

// Next returns the current (key, rid) pair and advances the iterator.
func (it *Iterator) Next() (int64, tuple.RID, bool) {
	if it.IsEnd() {
		return 0, tuple.RID{}, false
	}
	it.advance()
	if it.guard == nil {
		return 0, tuple.RID{}, false
	}
	key := it.leaf.keys[it.pos]
	rid := it.leaf.rids[it.pos]
	it.pos++
	return key, rid, true
}

// Err returns any error encountered while advancing across leaves.
func (it *Iterator) Err() error { return it.err }

// Close releases the iterator's held latch, if any. Idempotent.
func (it *Iterator) Close() {
	if it.guard != nil {
		it.guard.Drop()
		it.guard = nil
	}
}
