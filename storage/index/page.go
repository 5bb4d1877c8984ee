// Package index implements a concurrent B+Tree keyed on int64 values,
// mapping each key to a storage/tuple.RID. Pages are laid out as raw bytes
// inside storage/page.Page frames and accessed through small typed-view
// functions instead of C++-style reinterpret casts.
package index

import (
	"encoding/binary"

	"dbcore/storage/page"
	"dbcore/storage/tuple"
)

type nodeType byte

const (
	typeInvalid nodeType = iota
	typeInternal
	typeLeaf
)

const headerLen = 1 + 2 + 2 // type, size, maxSize

// keySize/pointerSize/ridSize are fixed so max fan-out can be computed once.
const (
	keySize     = 8
	pointerSize = 4 // page.ID
	ridSize     = 4 + 2
)

// internalMaxSize is the number of keys an internal page can hold (it has
// one more pointer than keys). leafMaxSize is the number of (key, rid)
// pairs a leaf can hold. Both leave headroom for the "insert then split"
// convention, where a page briefly holds one more entry than its steady
// state max just before Insert splits it.
var (
	internalMaxSize = (page.Size-headerLen-pointerSize)/(keySize+pointerSize) - 1
	leafMaxSize     = (page.Size-headerLen-pointerSize)/(keySize+ridSize) - 1
)

// internalNode is the decoded form of an internal page: size keys and
// size+1 children. Per BusTub convention, keys[0] is unused/invalid —
// children[0] covers everything less than keys[1].
type internalNode struct {
	size     int
	maxSize  int
	keys     []int64
	children []page.ID
}

// leafNode is the decoded form of a leaf page: size (key, rid) pairs kept
// in sorted key order, plus a sibling pointer for the iterator.
type leafNode struct {
	size    int
	maxSize int
	next    page.ID
	keys    []int64
	rids    []tuple.RID
}

func pageType(buf []byte) nodeType {
	if len(buf) == 0 {
		return typeInvalid
	}
	return nodeType(buf[0])
}

func decodeInternal(buf []byte) *internalNode {
	size := int(binary.BigEndian.Uint16(buf[1:3]))
	maxSize := int(binary.BigEndian.Uint16(buf[3:5]))
	n := &internalNode{size: size, maxSize: maxSize}
	off := headerLen
	n.keys = make([]int64, size+1)
	for i := 0; i <= size; i++ {
		if i == 0 {
			off += keySize
			continue
		}
		n.keys[i] = int64(binary.BigEndian.Uint64(buf[off : off+keySize]))
		off += keySize
	}
	n.children = make([]page.ID, size+1)
	for i := 0; i <= size; i++ {
		n.children[i] = page.ID(binary.BigEndian.Uint32(buf[off : off+pointerSize]))
		off += pointerSize
	}
	return n
}

func (n *internalNode) encode(buf []byte) {
	buf[0] = byte(typeInternal)
	binary.BigEndian.PutUint16(buf[1:3], uint16(n.size))
	binary.BigEndian.PutUint16(buf[3:5], uint16(n.maxSize))
	off := headerLen
	for i := 0; i <= n.size; i++ {
		binary.BigEndian.PutUint64(buf[off:off+keySize], uint64(n.keys[i]))
		off += keySize
	}
	for i := 0; i <= n.size; i++ {
		binary.BigEndian.PutUint32(buf[off:off+pointerSize], uint32(n.children[i]))
		off += pointerSize
	}
}

func newInternalNode() *internalNode {
	return &internalNode{
		maxSize:  internalMaxSize,
		keys:     make([]int64, 1, internalMaxSize+2),
		children: make([]page.ID, 1, internalMaxSize+2),
	}
}

// lookup returns the child index to descend into for key: the last child
// whose separator key is <= key (children[0] is the catch-all for keys
// less than keys[1]).
func (n *internalNode) lookup(key int64) int {
	idx := 0
	for i := 1; i <= n.size; i++ {
		if n.keys[i] <= key {
			idx = i
		} else {
			break
		}
	}
	return idx
}

// insertAfter inserts (key, child) immediately after the pointer at index
// leftChildIdx, shifting later entries right.
func (n *internalNode) insertAfter(leftChildIdx int, key int64, child page.ID) {
	n.keys = append(n.keys, 0)
	n.children = append(n.children, 0)
	for i := n.size + 1; i > leftChildIdx+1; i-- {
		n.keys[i] = n.keys[i-1]
		n.children[i] = n.children[i-1]
	}
	n.keys[leftChildIdx+1] = key
	n.children[leftChildIdx+1] = child
	n.size++
}

// removeAt removes the key/child pair at childIdx (childIdx must be >= 1).
func (n *internalNode) removeAt(childIdx int) {
	for i := childIdx; i < n.size; i++ {
		n.keys[i] = n.keys[i+1]
		n.children[i] = n.children[i+1]
	}
	n.keys = n.keys[:n.size]
	n.children = n.children[:n.size]
	n.size--
}

func decodeLeaf(buf []byte) *leafNode {
	size := int(binary.BigEndian.Uint16(buf[1:3]))
	maxSize := int(binary.BigEndian.Uint16(buf[3:5]))
	next := page.ID(binary.BigEndian.Uint32(buf[5:9]))
	n := &leafNode{size: size, maxSize: maxSize, next: next}
	off := 9
	n.keys = make([]int64, size)
	for i := 0; i < size; i++ {
		n.keys[i] = int64(binary.BigEndian.Uint64(buf[off : off+keySize]))
		off += keySize
	}
	n.rids = make([]tuple.RID, size)
	for i := 0; i < size; i++ {
		pid := int32(binary.BigEndian.Uint32(buf[off : off+4]))
		slot := binary.BigEndian.Uint16(buf[off+4 : off+6])
		n.rids[i] = tuple.RID{PageID: pid, Slot: slot}
		off += ridSize
	}
	return n
}

func (n *leafNode) encode(buf []byte) {
	buf[0] = byte(typeLeaf)
	binary.BigEndian.PutUint16(buf[1:3], uint16(n.size))
	binary.BigEndian.PutUint16(buf[3:5], uint16(n.maxSize))
	binary.BigEndian.PutUint32(buf[5:9], uint32(n.next))
	off := 9
	for i := 0; i < n.size; i++ {
		binary.BigEndian.PutUint64(buf[off:off+keySize], uint64(n.keys[i]))
		off += keySize
	}
	for i := 0; i < n.size; i++ {
		binary.BigEndian.PutUint32(buf[off:off+4], uint32(n.rids[i].PageID))
		binary.BigEndian.PutUint16(buf[off+4:off+6], n.rids[i].Slot)
		off += ridSize
	}
}

func newLeafNode() *leafNode {
	return &leafNode{
		maxSize: leafMaxSize,
		next:    page.INVALID,
	}
}

// lowerBound returns the index of the first key >= target (size if none).
// A size-0 leaf short-circuits to 0 without touching keys, resolving the
// degenerate binary-search case explicitly rather than leaving it to an
// off-by-one in the comparison loop.
func (n *leafNode) lowerBound(target int64) int {
	if n.size == 0 {
		return 0
	}
	lo, hi := 0, n.size
	for lo < hi {
		mid := (lo + hi) / 2
		if n.keys[mid] < target {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

func (n *leafNode) insertAt(idx int, key int64, rid tuple.RID) {
	n.keys = append(n.keys, 0)
	n.rids = append(n.rids, tuple.RID{})
	for i := n.size; i > idx; i-- {
		n.keys[i] = n.keys[i-1]
		n.rids[i] = n.rids[i-1]
	}
	n.keys[idx] = key
	n.rids[idx] = rid
	n.size++
}

func (n *leafNode) removeAt(idx int) {
	for i := idx; i < n.size-1; i++ {
		n.keys[i] = n.keys[i+1]
		n.rids[i] = n.rids[i+1]
	}
	n.keys = n.keys[:n.size-1]
	n.rids = n.rids[:n.size-1]
	n.size--
}

// encodeHeader/decodeHeader read and write the tree's persistent root
// pointer in the first four bytes of its header page.
func encodeHeader(buf []byte, root page.ID) {
	binary.BigEndian.PutUint32(buf[0:4], uint32(root))
}

func decodeHeader(buf []byte) page.ID {
	return page.ID(binary.BigEndian.Uint32(buf[0:4]))
}
