package index

import (
	"github.com/pkg/errors"

	"dbcore/storage/buffer"
	"dbcore/storage/page"
	"dbcore/storage/tuple"
)

// BPlusTree is a concurrent B+Tree mapping int64 keys to tuple.RID values.
// The header page (fixed id, allocated once at construction) holds the
// current root page id so that root changes are visible to every latecomer
// without a separate registry.
type BPlusTree struct {
	bp       *buffer.PoolManager
	headerID page.ID
}

// NewBPlusTree allocates a fresh header page and returns an empty tree.
func NewBPlusTree(bp *buffer.PoolManager) (*BPlusTree, error) {
	g, err := bp.NewPageGuarded()
	if err != nil {
		return nil, errors.Wrap(err, "allocate b+tree header page")
	}
	encodeHeader(g.Page().Data(), page.INVALID)
	g.MarkDirty()
	g.Drop()
	return &BPlusTree{bp: bp, headerID: g.Page().ID()}, nil
}

// OpenBPlusTree reopens a tree whose header page already exists at headerID.
func OpenBPlusTree(bp *buffer.PoolManager, headerID page.ID) *BPlusTree {
	return &BPlusTree{bp: bp, headerID: headerID}
}

// HeaderPageID returns the tree's header page id, to be persisted by the
// catalog alongside the index's name and key schema.
func (t *BPlusTree) HeaderPageID() page.ID { return t.headerID }

func (t *BPlusTree) root() (page.ID, error) {
	g, err := t.bp.FetchPageRead(t.headerID)
	if err != nil {
		return page.INVALID, errors.Wrap(err, "fetch header page")
	}
	defer g.Drop()
	return decodeHeader(g.Page().Data()), nil
}

// IsEmpty reports whether the tree currently has no root.
func (t *BPlusTree) IsEmpty() (bool, error) {
	root, err := t.root()
	if err != nil {
		return false, err
	}
	return root == page.INVALID, nil
}

// GetValue returns the RID stored for key, using hand-over-hand read
// latching down from the root: a child is latched before its parent is
// released, so a concurrent writer can never observe a half-released path.
func (t *BPlusTree) GetValue(key int64) (tuple.RID, bool, error) {
	headerGuard, err := t.bp.FetchPageRead(t.headerID)
	if err != nil {
		return tuple.RID{}, false, errors.Wrap(err, "fetch header page")
	}
	rootID := decodeHeader(headerGuard.Page().Data())
	if rootID == page.INVALID {
		headerGuard.Drop()
		return tuple.RID{}, false, nil
	}

	cur, err := t.bp.FetchPageRead(rootID)
	if err != nil {
		headerGuard.Drop()
		return tuple.RID{}, false, errors.Wrap(err, "fetch root page")
	}
	headerGuard.Drop()

	for {
		switch pageType(cur.Page().Data()) {
		case typeLeaf:
			leaf := decodeLeaf(cur.Page().Data())
			idx := leaf.lowerBound(key)
			defer cur.Drop()
			if idx < leaf.size && leaf.keys[idx] == key {
				return leaf.rids[idx], true, nil
			}
			return tuple.RID{}, false, nil
		case typeInternal:
			internal := decodeInternal(cur.Page().Data())
			childIdx := internal.lookup(key)
			childID := internal.children[childIdx]
			child, err := t.bp.FetchPageRead(childID)
			if err != nil {
				cur.Drop()
				return tuple.RID{}, false, errors.Wrap(err, "fetch child page")
			}
			cur.Drop()
			cur = child
		default:
			cur.Drop()
			return tuple.RID{}, false, errors.New("corrupt b+tree: unknown page type")
		}
	}
}

// pathGuard is one write-latched page on the descent path.
type pathGuard struct {
	guard *buffer.WriteGuard
}

// Insert adds key -> rid. Returns an error if key already exists: this
// tree enforces unique keys.
func (t *BPlusTree) Insert(key int64, rid tuple.RID) error {
	headerGuard, err := t.bp.FetchPageWrite(t.headerID)
	if err != nil {
		return errors.Wrap(err, "fetch header page")
	}
	rootID := decodeHeader(headerGuard.Page().Data())

	if rootID == page.INVALID {
		leafGuard, err := t.bp.NewPageGuarded()
		if err != nil {
			headerGuard.Drop()
			return errors.Wrap(err, "allocate root leaf")
		}
		leaf := newLeafNode()
		leaf.insertAt(0, key, rid)
		buf := leafGuard.Page().Data()
		leaf.encode(buf)
		leafGuard.MarkDirty()
		newRootID := leafGuard.Page().ID()
		leafGuard.Drop()
		encodeHeader(headerGuard.Page().Data(), newRootID)
		headerGuard.MarkDirty()
		headerGuard.Drop()
		return nil
	}

	// Pessimistic write-latch crabbing: hold every ancestor write latch
	// until we know the child we're about to enter is "safe" (won't need
	// to split/propagate on the way back up), then release everything
	// above it in one shot.
	var stack []*buffer.WriteGuard
	stack = append(stack, headerGuard)

	curID := rootID
	for {
		g, err := t.bp.FetchPageWrite(curID)
		if err != nil {
			releaseAll(stack)
			return errors.Wrap(err, "fetch page during insert descent")
		}

		if pageType(g.Page().Data()) == typeLeaf {
			leaf := decodeLeaf(g.Page().Data())
			if leaf.size < leaf.maxSize {
				releaseAll(stack)
			} else {
				stack = append(stack, g)
			}

			idx := leaf.lowerBound(key)
			if idx < leaf.size && leaf.keys[idx] == key {
				if len(stack) > 0 && stack[len(stack)-1] == g {
					releaseAll(stack[:len(stack)-1])
				} else {
					releaseAll(stack)
				}
				g.Drop()
				return errors.Errorf("duplicate key %d", key)
			}
			leaf.insertAt(idx, key, rid)

			if leaf.size <= leaf.maxSize {
				leaf.encode(g.Page().Data())
				g.MarkDirty()
				g.Drop()
				if len(stack) > 0 {
					releaseAll(stack[:len(stack)-1])
				}
				return nil
			}

			// Split: right half moves to a new leaf; separator is the
			// first key of the new right leaf.
			mid := leaf.size / 2
			right := newLeafNode()
			right.keys = append([]int64{}, leaf.keys[mid:]...)
			right.rids = append([]tuple.RID{}, leaf.rids[mid:]...)
			right.size = len(right.keys)
			right.next = leaf.next

			leaf.keys = leaf.keys[:mid]
			leaf.rids = leaf.rids[:mid]
			leaf.size = mid

			rightGuard, err := t.bp.NewPageGuarded()
			if err != nil {
				g.Drop()
				releaseAll(stack[:len(stack)-1])
				return errors.Wrap(err, "allocate split leaf")
			}
			leaf.next = rightGuard.Page().ID()
			right.encode(rightGuard.Page().Data())
			rightGuard.MarkDirty()
			separator := right.keys[0]
			rightID := rightGuard.Page().ID()
			rightGuard.Drop()

			leaf.encode(g.Page().Data())
			g.MarkDirty()
			leafID := g.Page().ID()
			g.Drop()

			return t.propagateSplit(stack[:len(stack)-1], leafID, separator, rightID)
		}

		internal := decodeInternal(g.Page().Data())
		if internal.size < internal.maxSize {
			releaseAll(stack)
			stack = stack[:0]
		}
		stack = append(stack, g)
		childIdx := internal.lookup(key)
		curID = internal.children[childIdx]
	}
}

// propagateSplit installs (leftID, separator, rightID) into the parent
// found at the top of stack (which is either the header page, meaning
// leftID was the root, or an internal page write-latched by the caller).
// It recurses upward if the parent itself must split.
func (t *BPlusTree) propagateSplit(stack []*buffer.WriteGuard, leftID page.ID, separator int64, rightID page.ID) error {
	if len(stack) == 0 {
		return errors.New("b+tree: split propagation ran out of ancestors")
	}
	parent := stack[len(stack)-1]
	rest := stack[:len(stack)-1]

	if parent.Page().ID() == t.headerID {
		// leftID was the root: build a new root.
		newRoot := newInternalNode()
		newRoot.keys = append(newRoot.keys, separator)
		newRoot.children = []page.ID{leftID, rightID}
		newRoot.size = 1

		rootGuard, err := t.bp.NewPageGuarded()
		if err != nil {
			parent.Drop()
			return errors.Wrap(err, "allocate new root")
		}
		newRoot.encode(rootGuard.Page().Data())
		rootGuard.MarkDirty()
		newRootID := rootGuard.Page().ID()
		rootGuard.Drop()

		encodeHeader(parent.Page().Data(), newRootID)
		parent.MarkDirty()
		parent.Drop()
		return nil
	}

	internal := decodeInternal(parent.Page().Data())
	leftIdx := -1
	for i, c := range internal.children {
		if c == leftID {
			leftIdx = i
			break
		}
	}
	if leftIdx == -1 {
		parent.Drop()
		releaseAll(rest)
		return errors.New("b+tree: split parent lost track of left child")
	}
	internal.insertAfter(leftIdx, separator, rightID)

	if internal.size <= internal.maxSize {
		internal.encode(parent.Page().Data())
		parent.MarkDirty()
		parent.Drop()
		releaseAll(rest)
		return nil
	}

	// Parent itself splits: middle key moves up, right half becomes a new
	// internal page.
	mid := (internal.size + 1) / 2
	upSeparator := internal.keys[mid]

	right := newInternalNode()
	right.keys = append([]int64{0}, internal.keys[mid+1:]...)
	right.children = append([]page.ID{}, internal.children[mid:]...)
	right.size = len(right.keys) - 1

	internal.keys = internal.keys[:mid]
	internal.children = internal.children[:mid]
	internal.size = mid - 1

	rightGuard, err := t.bp.NewPageGuarded()
	if err != nil {
		parent.Drop()
		releaseAll(rest)
		return errors.Wrap(err, "allocate split internal")
	}
	right.encode(rightGuard.Page().Data())
	rightGuard.MarkDirty()
	rightID2 := rightGuard.Page().ID()
	rightGuard.Drop()

	internal.encode(parent.Page().Data())
	parent.MarkDirty()
	leftID2 := parent.Page().ID()
	parent.Drop()

	return t.propagateSplit(rest, leftID2, upSeparator, rightID2)
}

func releaseAll(guards []*buffer.WriteGuard) {
	for _, g := range guards {
		g.Drop()
	}
}
