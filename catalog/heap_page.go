// Package catalog holds table and index metadata plus the on-disk table
// heap format executors read from and write to.
package catalog

import (
	"encoding/binary"

	"dbcore/storage/page"
)

// Heap page layout:
//
//	[0:2]   slot count
//	[2:4]   free space offset (grows downward from page.Size)
//	[4:8]   next page id (page.INVALID if none)
//	[8:]    slot directory: (offset uint16, length uint16, deleted byte) each
//	        tuple bytes, packed from the end of the page backward
const heapPageHeaderLen = 8
const slotEntryLen = 5 // offset(2) + length(2) + deleted(1)

type slot struct {
	offset  uint16
	length  uint16
	deleted bool
}

type heapPage struct {
	slots     []slot
	freeSpace uint16
	next      page.ID
}

func decodeHeapPage(buf []byte) *heapPage {
	count := binary.BigEndian.Uint16(buf[0:2])
	free := binary.BigEndian.Uint16(buf[2:4])
	next := page.ID(int32(binary.BigEndian.Uint32(buf[4:8])))
	hp := &heapPage{freeSpace: free, next: next, slots: make([]slot, count)}
	off := heapPageHeaderLen
	for i := 0; i < int(count); i++ {
		hp.slots[i] = slot{
			offset:  binary.BigEndian.Uint16(buf[off : off+2]),
			length:  binary.BigEndian.Uint16(buf[off+2 : off+4]),
			deleted: buf[off+4] != 0,
		}
		off += slotEntryLen
	}
	return hp
}

func newHeapPage() *heapPage {
	return &heapPage{freeSpace: page.Size, next: page.INVALID}
}

func (hp *heapPage) encodeHeader(buf []byte) {
	binary.BigEndian.PutUint16(buf[0:2], uint16(len(hp.slots)))
	binary.BigEndian.PutUint16(buf[2:4], hp.freeSpace)
	binary.BigEndian.PutUint32(buf[4:8], uint32(hp.next))
	off := heapPageHeaderLen
	for _, s := range hp.slots {
		binary.BigEndian.PutUint16(buf[off:off+2], s.offset)
		binary.BigEndian.PutUint16(buf[off+2:off+4], s.length)
		if s.deleted {
			buf[off+4] = 1
		} else {
			buf[off+4] = 0
		}
		off += slotEntryLen
	}
}

// dirEnd returns the byte offset just past the slot directory once a new
// slot is appended.
func (hp *heapPage) dirEnd() int {
	return heapPageHeaderLen + (len(hp.slots)+1)*slotEntryLen
}

// canFit reports whether a tuple of the given length fits in the page's
// remaining free space, accounting for the new slot directory entry it
// would need.
func (hp *heapPage) canFit(tupleLen int) bool {
	return hp.dirEnd()+tupleLen <= int(hp.freeSpace)
}

// insert appends tupleBytes to the page, writing both the slot and the
// tuple payload into buf. Returns the new slot index.
func (hp *heapPage) insert(buf []byte, tupleBytes []byte) uint16 {
	hp.freeSpace -= uint16(len(tupleBytes))
	copy(buf[hp.freeSpace:], tupleBytes)
	hp.slots = append(hp.slots, slot{offset: hp.freeSpace, length: uint16(len(tupleBytes))})
	hp.encodeHeader(buf)
	return uint16(len(hp.slots) - 1)
}

func (hp *heapPage) tupleBytes(buf []byte, slotIdx uint16) ([]byte, bool) {
	if int(slotIdx) >= len(hp.slots) {
		return nil, false
	}
	s := hp.slots[slotIdx]
	return buf[s.offset : s.offset+s.length], true
}

func (hp *heapPage) markDeleted(slotIdx uint16, deleted bool) bool {
	if int(slotIdx) >= len(hp.slots) {
		return false
	}
	hp.slots[slotIdx].deleted = deleted
	return true
}

func (hp *heapPage) isDeleted(slotIdx uint16) bool {
	if int(slotIdx) >= len(hp.slots) {
		return true
	}
	return hp.slots[slotIdx].deleted
}
