package index

import (
	"github.com/pkg/errors"

	"dbcore/storage/buffer"
	"dbcore/storage/page"
)

// A node below its min size must borrow or merge. Leaves: ceil(max/2)
// entries. Internal pages hold up to internalMaxSize+1 children; their min
// is ceil((internalMaxSize+1)/2) children, i.e. internalMaxSize/2 keys.
func leafMinSize() int     { return (leafMaxSize + 1) / 2 }
func internalMinSize() int { return internalMaxSize / 2 }

// Delete removes key from the tree. It is a no-op (returns false, nil) if
// the key is absent.
func (t *BPlusTree) Delete(key int64) (bool, error) {
	headerGuard, err := t.bp.FetchPageWrite(t.headerID)
	if err != nil {
		return false, errors.Wrap(err, "fetch header page")
	}
	rootID := decodeHeader(headerGuard.Page().Data())
	if rootID == page.INVALID {
		headerGuard.Drop()
		return false, nil
	}

	var stack []*buffer.WriteGuard
	stack = append(stack, headerGuard)

	curID := rootID
	for {
		g, err := t.bp.FetchPageWrite(curID)
		if err != nil {
			releaseAll(stack)
			return false, errors.Wrap(err, "fetch page during delete descent")
		}

		if pageType(g.Page().Data()) == typeLeaf {
			leaf := decodeLeaf(g.Page().Data())
			// A leaf that is the root is always "safe": it can underflow
			// to zero without needing a merge.
			isRoot := len(stack) == 1 && stack[0].Page().ID() == t.headerID
			if leaf.size > leafMinSize() || isRoot {
				releaseAll(stack)
				stack = nil
			} else {
				stack = append(stack, g)
			}

			idx := leaf.lowerBound(key)
			if idx >= leaf.size || leaf.keys[idx] != key {
				g.Drop()
				releaseAll(stack)
				return false, nil
			}
			leaf.removeAt(idx)
			leaf.encode(g.Page().Data())
			g.MarkDirty()

			if isRoot {
				if leaf.size == 0 {
					encodeHeader(headerGuard.Page().Data(), page.INVALID)
					headerGuard.MarkDirty()
				}
				g.Drop()
				headerGuard.Drop()
				return true, nil
			}

			if leaf.size >= leafMinSize() {
				leafID := g.Page().ID()
				g.Drop()
				_ = leafID
				if len(stack) > 0 {
					releaseAll(stack[:len(stack)-1])
				}
				return true, nil
			}

			leafID := g.Page().ID()
			g.Drop()
			return true, t.fixUnderflow(stack[:len(stack)-1], leafID)
		}

		internal := decodeInternal(g.Page().Data())
		isRoot := len(stack) == 1 && stack[0].Page().ID() == t.headerID
		// A root with one separator keeps the header latched: losing that
		// separator leaves a single child, which fixUnderflow collapses.
		if internal.size > internalMinSize() || (isRoot && internal.size > 1) {
			releaseAll(stack)
			stack = nil
		}
		stack = append(stack, g)
		childIdx := internal.lookup(key)
		curID = internal.children[childIdx]
	}
}

// fixUnderflow repairs an underflowed child (leafOrInternalID) whose parent
// sits at the top of stack. It borrows a sibling entry if possible, else
// merges with a sibling and removes the separator from the parent,
// recursing upward if that removal underflows the parent in turn.
func (t *BPlusTree) fixUnderflow(stack []*buffer.WriteGuard, childID page.ID) error {
	if len(stack) == 0 {
		return errors.New("b+tree: underflow propagation ran out of ancestors")
	}
	parent := stack[len(stack)-1]
	rest := stack[:len(stack)-1]

	if parent.Page().ID() == t.headerID {
		// childID is the root; a root internal page with a single child
		// collapses into that child.
		g, err := t.bp.FetchPageWrite(childID)
		if err != nil {
			parent.Drop()
			return errors.Wrap(err, "fetch root during collapse check")
		}
		if pageType(g.Page().Data()) == typeInternal {
			internal := decodeInternal(g.Page().Data())
			if internal.size == 0 {
				newRoot := internal.children[0]
				encodeHeader(parent.Page().Data(), newRoot)
				parent.MarkDirty()
				g.Drop()
				parent.Drop()
				return nil
			}
		}
		g.Drop()
		parent.Drop()
		return nil
	}

	internal := decodeInternal(parent.Page().Data())
	childIdx := -1
	for i, c := range internal.children {
		if c == childID {
			childIdx = i
			break
		}
	}
	if childIdx == -1 {
		parent.Drop()
		releaseAll(rest)
		return errors.New("b+tree: underflow parent lost track of child")
	}

	childType := t.fetchType(childID)

	if childIdx > 0 {
		leftSibID := internal.children[childIdx-1]
		if t.tryBorrowLeft(internal, childIdx, childType) {
			t.persistBorrow(internal, parent)
			parent.Drop()
			releaseAll(rest)
			return nil
		}
		_ = leftSibID
	}
	if childIdx < internal.size {
		if t.tryBorrowRight(internal, childIdx, childType) {
			t.persistBorrow(internal, parent)
			parent.Drop()
			releaseAll(rest)
			return nil
		}
	}

	// No sibling can lend an entry: merge with a sibling instead.
	var mergeLeftIdx int
	if childIdx > 0 {
		mergeLeftIdx = childIdx - 1
	} else {
		mergeLeftIdx = childIdx
	}
	if err := t.mergeSiblings(internal, mergeLeftIdx, childType); err != nil {
		parent.Drop()
		releaseAll(rest)
		return err
	}

	if internal.size >= internalMinSize() || (len(rest) == 0) {
		internal.encode(parent.Page().Data())
		parent.MarkDirty()
		parentID := parent.Page().ID()
		parent.Drop()
		_ = parentID
		releaseAll(rest)
		return nil
	}

	internal.encode(parent.Page().Data())
	parent.MarkDirty()
	parentID := parent.Page().ID()
	parent.Drop()
	return t.fixUnderflow(rest, parentID)
}

func (t *BPlusTree) fetchType(id page.ID) nodeType {
	g, err := t.bp.FetchPageRead(id)
	if err != nil {
		return typeInvalid
	}
	defer g.Drop()
	return pageType(g.Page().Data())
}

// tryBorrowLeft attempts to move one entry from children[childIdx-1] into
// children[childIdx]. Returns false (no mutation) if the left sibling has
// nothing to spare.
func (t *BPlusTree) tryBorrowLeft(parent *internalNode, childIdx int, kind nodeType) bool {
	leftID := parent.children[childIdx-1]
	childID := parent.children[childIdx]

	leftGuard, err := t.bp.FetchPageWrite(leftID)
	if err != nil {
		return false
	}
	defer leftGuard.Drop()
	childGuard, err := t.bp.FetchPageWrite(childID)
	if err != nil {
		return false
	}
	defer childGuard.Drop()

	if kind == typeLeaf {
		left := decodeLeaf(leftGuard.Page().Data())
		if left.size <= leafMinSize() {
			return false
		}
		child := decodeLeaf(childGuard.Page().Data())
		borrowKey := left.keys[left.size-1]
		borrowRID := left.rids[left.size-1]
		left.removeAt(left.size - 1)
		child.insertAt(0, borrowKey, borrowRID)
		left.encode(leftGuard.Page().Data())
		child.encode(childGuard.Page().Data())
		leftGuard.MarkDirty()
		childGuard.MarkDirty()
		parent.keys[childIdx] = child.keys[0]
		return true
	}

	left := decodeInternal(leftGuard.Page().Data())
	if left.size <= internalMinSize() {
		return false
	}
	child := decodeInternal(childGuard.Page().Data())
	borrowChild := left.children[left.size]
	// left.keys[left.size] is the true boundary between left's last two
	// children; it must move up to the parent, not be discarded. The
	// parent's old separator moves down to become the new key between
	// borrowChild and child's former first child.
	promotedKey := left.keys[left.size]
	oldSeparator := parent.keys[childIdx]
	left.removeAt(left.size)
	child.children = append([]page.ID{borrowChild}, child.children...)
	child.keys = append([]int64{0, oldSeparator}, child.keys[1:]...)
	child.size++
	left.encode(leftGuard.Page().Data())
	child.encode(childGuard.Page().Data())
	leftGuard.MarkDirty()
	childGuard.MarkDirty()
	parent.keys[childIdx] = promotedKey
	return true
}

func (t *BPlusTree) tryBorrowRight(parent *internalNode, childIdx int, kind nodeType) bool {
	rightID := parent.children[childIdx+1]
	childID := parent.children[childIdx]

	childGuard, err := t.bp.FetchPageWrite(childID)
	if err != nil {
		return false
	}
	defer childGuard.Drop()
	rightGuard, err := t.bp.FetchPageWrite(rightID)
	if err != nil {
		return false
	}
	defer rightGuard.Drop()

	if kind == typeLeaf {
		right := decodeLeaf(rightGuard.Page().Data())
		if right.size <= leafMinSize() {
			return false
		}
		child := decodeLeaf(childGuard.Page().Data())
		borrowKey := right.keys[0]
		borrowRID := right.rids[0]
		right.removeAt(0)
		child.insertAt(child.size, borrowKey, borrowRID)
		right.encode(rightGuard.Page().Data())
		child.encode(childGuard.Page().Data())
		rightGuard.MarkDirty()
		childGuard.MarkDirty()
		parent.keys[childIdx+1] = right.keys[0]
		return true
	}

	right := decodeInternal(rightGuard.Page().Data())
	if right.size <= internalMinSize() {
		return false
	}
	child := decodeInternal(childGuard.Page().Data())
	borrowChild := right.children[0]
	// right.keys[1] is the true boundary between right's first two
	// children; it must move up to the parent, not be discarded. The
	// parent's old separator moves down to become the new key between
	// child's former last child and borrowChild.
	promotedKey := right.keys[1]
	oldSeparator := parent.keys[childIdx+1]
	right.children = right.children[1:]
	right.keys = append([]int64{0}, right.keys[2:]...)
	right.size--
	child.children = append(child.children, borrowChild)
	child.keys = append(child.keys, oldSeparator)
	child.size++
	right.encode(rightGuard.Page().Data())
	child.encode(childGuard.Page().Data())
	rightGuard.MarkDirty()
	childGuard.MarkDirty()
	parent.keys[childIdx+1] = promotedKey
	return true
}

// persistBorrow writes the parent's updated separator array back to its
// page. The borrow helpers mutate the decoded internalNode in place but
// never touch page bytes directly, so this has to run before the parent
// guard is dropped or the new separator is lost.
func (t *BPlusTree) persistBorrow(parent *internalNode, guard *buffer.WriteGuard) {
	parent.encode(guard.Page().Data())
	guard.MarkDirty()
}

// mergeSiblings merges children[leftIdx+1] into children[leftIdx] and
// removes the separator between them from parent.
func (t *BPlusTree) mergeSiblings(parent *internalNode, leftIdx int, kind nodeType) error {
	leftID := parent.children[leftIdx]
	rightID := parent.children[leftIdx+1]

	leftGuard, err := t.bp.FetchPageWrite(leftID)
	if err != nil {
		return errors.Wrap(err, "fetch left merge sibling")
	}
	defer leftGuard.Drop()
	rightGuard, err := t.bp.FetchPageWrite(rightID)
	if err != nil {
		return errors.Wrap(err, "fetch right merge sibling")
	}

	if kind == typeLeaf {
		left := decodeLeaf(leftGuard.Page().Data())
		right := decodeLeaf(rightGuard.Page().Data())
		left.keys = append(left.keys, right.keys...)
		left.rids = append(left.rids, right.rids...)
		left.size = len(left.keys)
		left.next = right.next
		left.encode(leftGuard.Page().Data())
		leftGuard.MarkDirty()
	} else {
		left := decodeInternal(leftGuard.Page().Data())
		right := decodeInternal(rightGuard.Page().Data())
		separator := parent.keys[leftIdx+1]
		left.keys = append(left.keys, separator)
		left.keys = append(left.keys, right.keys[1:]...)
		left.children = append(left.children, right.children...)
		left.size = len(left.keys) - 1
		left.encode(leftGuard.Page().Data())
		leftGuard.MarkDirty()
	}
	rightGuard.Drop()
	if _, err := t.bp.DeletePage(rightID); err != nil {
		return errors.Wrap(err, "delete merged sibling page")
	}
	parent.removeAt(leftIdx + 1)
	return nil
}
