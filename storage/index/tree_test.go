package index

import (
	"sort"
	"testing"

	"dbcore/storage/buffer"
	"dbcore/storage/page"
	"dbcore/storage/tuple"
)

type memDisk struct {
	pages map[page.ID][]byte
	next  int64
}

func newMemDisk() *memDisk { return &memDisk{pages: make(map[page.ID][]byte)} }

func (m *memDisk) ReadPage(id page.ID, out []byte) error {
	data, ok := m.pages[id]
	if !ok {
		for i := range out {
			out[i] = 0
		}
		return nil
	}
	copy(out, data)
	return nil
}

func (m *memDisk) WritePage(id page.ID, in []byte) error {
	buf := make([]byte, len(in))
	copy(buf, in)
	m.pages[id] = buf
	return nil
}

func (m *memDisk) AllocatePage() page.ID {
	id := page.ID(m.next)
	m.next++
	return id
}

func (m *memDisk) DeallocatePage(id page.ID) {}
func (m *memDisk) Shutdown() error           { return nil }

func newTestTree(t *testing.T, poolSize int) *BPlusTree {
	t.Helper()
	bp := buffer.NewPoolManager(poolSize, newMemDisk(), nil)
	tree, err := NewBPlusTree(bp)
	if err != nil {
		t.Fatalf("NewBPlusTree: %v", err)
	}
	return tree
}

// withSmallPageSizes overrides the package's node capacities for the
// duration of a test, restoring the real page.Size-derived values on
// cleanup. Nodes are created with whatever capacity is current at
// construction time and carry it in their encoded header, so a tree built
// under a small override keeps splitting/merging at that size regardless
// of what other tests configure afterward.
func withSmallPageSizes(t *testing.T, internalMax, leafMax int) {
	t.Helper()
	prevInternal, prevLeaf := internalMaxSize, leafMaxSize
	internalMaxSize, leafMaxSize = internalMax, leafMax
	t.Cleanup(func() {
		internalMaxSize, leafMaxSize = prevInternal, prevLeaf
	})
}

// validateTree walks every page reachable from the root and checks the
// invariants that must hold after any insert/delete: non-root pages
// stay at or above their min size, separator/leaf keys are strictly
// increasing within a page, and the leaf chain is strictly increasing
// end-to-end. It fails the test immediately on the first violation, so a
// corrupted separator (as in an internal borrow that promotes the wrong
// key) surfaces at the delete that caused it rather than as a much later
// misordered GetValue/iterator result.
func validateTree(t *testing.T, tree *BPlusTree) {
	t.Helper()
	headerGuard, err := tree.bp.FetchPageRead(tree.headerID)
	if err != nil {
		t.Fatalf("validateTree: fetch header: %v", err)
	}
	rootID := decodeHeader(headerGuard.Page().Data())
	headerGuard.Drop()
	if rootID == page.INVALID {
		return
	}

	var prevLeafKey *int64
	var visit func(id page.ID, isRoot bool)
	visit = func(id page.ID, isRoot bool) {
		g, err := tree.bp.FetchPageRead(id)
		if err != nil {
			t.Fatalf("validateTree: fetch page %d: %v", id, err)
		}
		defer g.Drop()

		switch pageType(g.Page().Data()) {
		case typeLeaf:
			leaf := decodeLeaf(g.Page().Data())
			if !isRoot && leaf.size < leafMinSize() {
				t.Fatalf("leaf %d underflowed: size=%d min=%d", id, leaf.size, leafMinSize())
			}
			for i := 1; i < leaf.size; i++ {
				if leaf.keys[i-1] >= leaf.keys[i] {
					t.Fatalf("leaf %d keys not strictly increasing at index %d", id, i)
				}
			}
			if leaf.size > 0 {
				if prevLeafKey != nil && *prevLeafKey >= leaf.keys[0] {
					t.Fatalf("leaf chain out of order: prev last key %d, next first key %d", *prevLeafKey, leaf.keys[0])
				}
				last := leaf.keys[leaf.size-1]
				prevLeafKey = &last
			}
		case typeInternal:
			internal := decodeInternal(g.Page().Data())
			if !isRoot && internal.size < internalMinSize() {
				t.Fatalf("internal %d underflowed: size=%d min=%d", id, internal.size, internalMinSize())
			}
			for i := 2; i <= internal.size; i++ {
				if internal.keys[i-1] >= internal.keys[i] {
					t.Fatalf("internal %d separators not strictly increasing at index %d", id, i)
				}
			}
			for _, child := range internal.children {
				visit(child, false)
			}
		default:
			t.Fatalf("page %d has unknown/corrupt type", id)
		}
	}
	visit(rootID, true)
}

func TestBPlusTreeInsertAndGet(t *testing.T) {
	tree := newTestTree(t, 64)
	for i := int64(0); i < 200; i++ {
		if err := tree.Insert(i, tuple.RID{PageID: int32(i), Slot: 0}); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}
	for i := int64(0); i < 200; i++ {
		rid, ok, err := tree.GetValue(i)
		if err != nil {
			t.Fatalf("GetValue(%d): %v", i, err)
		}
		if !ok {
			t.Fatalf("expected key %d to be present", i)
		}
		if rid.PageID != int32(i) {
			t.Fatalf("key %d: expected rid page %d, got %d", i, i, rid.PageID)
		}
	}
	if _, ok, err := tree.GetValue(9999); err != nil || ok {
		t.Fatalf("expected miss for absent key, got ok=%v err=%v", ok, err)
	}
}

func TestBPlusTreeDuplicateKeyRejected(t *testing.T) {
	tree := newTestTree(t, 64)
	if err := tree.Insert(1, tuple.RID{}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := tree.Insert(1, tuple.RID{}); err == nil {
		t.Fatalf("expected duplicate key error")
	}
}

// TestBPlusTreeDuplicateKeyAtCapacityDoesNotDeadlock fills a leaf to exactly
// its max size, then inserts a duplicate of a key already in that leaf. The
// duplicate-key check used to leak every ancestor write guard (including the
// header page's) whenever it fired with the leaf already staged for a split,
// which would deadlock every subsequent call to FetchPageWrite on the
// header. A later, unrelated insert proves the tree is still usable.
func TestBPlusTreeDuplicateKeyAtCapacityDoesNotDeadlock(t *testing.T) {
	withSmallPageSizes(t, 3, 4)
	tree := newTestTree(t, 64)

	for i := int64(0); i < 4; i++ {
		if err := tree.Insert(i, tuple.RID{PageID: int32(i)}); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}

	if err := tree.Insert(2, tuple.RID{PageID: 999}); err == nil {
		t.Fatalf("expected duplicate key error")
	}

	if err := tree.Insert(100, tuple.RID{PageID: 100}); err != nil {
		t.Fatalf("tree deadlocked after duplicate-key rejection: Insert(100): %v", err)
	}
	if _, ok, err := tree.GetValue(100); err != nil || !ok {
		t.Fatalf("GetValue(100) after recovery insert: ok=%v err=%v", ok, err)
	}
	validateTree(t, tree)
}

func TestBPlusTreeDeleteRemovesKey(t *testing.T) {
	tree := newTestTree(t, 64)
	for i := int64(0); i < 50; i++ {
		if err := tree.Insert(i, tuple.RID{PageID: int32(i)}); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}
	for i := int64(0); i < 50; i += 2 {
		ok, err := tree.Delete(i)
		if err != nil {
			t.Fatalf("Delete(%d): %v", i, err)
		}
		if !ok {
			t.Fatalf("expected Delete(%d) to report found", i)
		}
	}
	for i := int64(0); i < 50; i++ {
		_, ok, err := tree.GetValue(i)
		if err != nil {
			t.Fatalf("GetValue(%d): %v", i, err)
		}
		want := i%2 != 0
		if ok != want {
			t.Fatalf("key %d: expected present=%v, got %v", i, want, ok)
		}
	}
}

func TestBPlusTreeIteratorAscendingOrder(t *testing.T) {
	tree := newTestTree(t, 64)
	keys := []int64{5, 1, 9, 3, 7, 2, 8, 4, 6, 0}
	for _, k := range keys {
		if err := tree.Insert(k, tuple.RID{PageID: int32(k)}); err != nil {
			t.Fatalf("Insert(%d): %v", k, err)
		}
	}
	it, err := tree.Begin(0)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	defer it.Close()
	var prev int64 = -1
	count := 0
	for {
		k, _, ok := it.Next()
		if !ok {
			break
		}
		if k <= prev {
			t.Fatalf("iterator not ascending: %d after %d", k, prev)
		}
		prev = k
		count++
	}
	if count != len(keys) {
		t.Fatalf("expected %d entries, saw %d", len(keys), count)
	}
}

func collectAscending(t *testing.T, tree *BPlusTree) []int64 {
	t.Helper()
	it, err := tree.Begin(0)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	defer it.Close()
	var got []int64
	for {
		k, _, ok := it.Next()
		if !ok {
			break
		}
		got = append(got, k)
	}
	return got
}

func assertKeys(t *testing.T, got, want []int64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

// TestBPlusTreeLeafBorrowThenMergeSmallCapacity uses a tiny leaf_max=4,
// internal_max=3 tree, inserts 1..10, then deletes 5, 6, 7. That deletion
// sequence forces two leaf-level right-borrows (deleting 5, then 6, each
// pulls the sibling's front entry across) followed by a leaf merge that
// shrinks the root from three separators to two — small enough to
// hand-verify against a known exact result.
func TestBPlusTreeLeafBorrowThenMergeSmallCapacity(t *testing.T) {
	withSmallPageSizes(t, 3, 4)
	tree := newTestTree(t, 64)

	for i := int64(1); i <= 10; i++ {
		if err := tree.Insert(i, tuple.RID{PageID: int32(i)}); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}
	validateTree(t, tree)
	assertKeys(t, collectAscending(t, tree), []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})

	for _, k := range []int64{5, 6, 7} {
		ok, err := tree.Delete(k)
		if err != nil {
			t.Fatalf("Delete(%d): %v", k, err)
		}
		if !ok {
			t.Fatalf("expected Delete(%d) to report found", k)
		}
		validateTree(t, tree)
	}

	assertKeys(t, collectAscending(t, tree), []int64{1, 2, 3, 4, 8, 9, 10})
	for _, k := range []int64{5, 6, 7} {
		if _, ok, err := tree.GetValue(k); err != nil || ok {
			t.Fatalf("expected key %d to be gone, got ok=%v err=%v", k, ok, err)
		}
	}
}

// TestBPlusTreeSmallCapacityStressSplitsMergesAndBorrows drives a tree with
// the same tiny leaf/internal capacities across enough keys to build a
// multi-level tree (internal_max=3 gives a branching factor small enough
// that 100 sequential keys need at least three levels), then deletes in
// three phases designed to hit every rebalance path: a scattered every-
// third-key pass (leaf/internal borrows, siblings still have slack),
// a contiguous middle block (cascading merges, likely up through an
// internal level), and finally everything else down to an empty tree
// (root collapse). validateTree runs after every single delete so a
// corrupted separator is caught at the operation that introduced it.
func TestBPlusTreeSmallCapacityStressSplitsMergesAndBorrows(t *testing.T) {
	withSmallPageSizes(t, 3, 4)
	tree := newTestTree(t, 256)

	const n = 100
	present := make(map[int64]bool, n)
	for i := int64(1); i <= n; i++ {
		if err := tree.Insert(i, tuple.RID{PageID: int32(i)}); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
		present[i] = true
	}
	validateTree(t, tree)

	del := func(k int64) {
		t.Helper()
		ok, err := tree.Delete(k)
		if err != nil {
			t.Fatalf("Delete(%d): %v", k, err)
		}
		if !ok {
			t.Fatalf("expected Delete(%d) to report found", k)
		}
		delete(present, k)
		validateTree(t, tree)
	}

	for i := int64(3); i <= n; i += 3 {
		del(i)
	}
	for i := int64(40); i <= 60; i++ {
		if present[i] {
			del(i)
		}
	}
	remaining := make([]int64, 0, len(present))
	for k := range present {
		remaining = append(remaining, k)
	}
	sort.Slice(remaining, func(i, j int) bool { return remaining[i] < remaining[j] })
	for _, k := range remaining {
		del(k)
	}

	empty, err := tree.IsEmpty()
	if err != nil {
		t.Fatalf("IsEmpty: %v", err)
	}
	if !empty {
		t.Fatalf("expected tree to be empty after deleting every key")
	}
	for i := int64(1); i <= n; i++ {
		if _, ok, err := tree.GetValue(i); err != nil || ok {
			t.Fatalf("expected key %d to be gone, got ok=%v err=%v", i, ok, err)
		}
	}
}
