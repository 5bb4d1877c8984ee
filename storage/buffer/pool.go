// Package buffer implements the buffer pool manager: a fixed set of frames
// backing pages fetched from storage/disk, evicted under storage/replacer's
// LRU-K policy, and exposed to callers through scoped page guards.
package buffer

import (
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"dbcore/storage/disk"
	"dbcore/storage/page"
	"dbcore/storage/replacer"
)

// ErrPoolExhausted is returned when every frame is pinned and none can be
// evicted to satisfy a new page request.
var ErrPoolExhausted = errors.New("buffer pool exhausted: no free or evictable frame")

// LRUKLookback is the k used for the pool's LRU-K replacer. BusTub's default
// workload tuning is k=2; nothing in this codebase depends on the exact
// value beyond "greater than 1".
const LRUKLookback = 2

// PoolManager owns a fixed number of frames, the page table mapping resident
// page ids to frames, and the free list / replacer used to pick victims.
type PoolManager struct {
	mu sync.Mutex

	disk     disk.Manager
	log      *zap.Logger
	replacer *replacer.LRUK

	frames    []*page.Page
	pageTable map[page.ID]replacer.FrameID
	freeList  []replacer.FrameID
}

// NewPoolManager constructs a pool of poolSize frames backed by dm.
func NewPoolManager(poolSize int, dm disk.Manager, log *zap.Logger) *PoolManager {
	if log == nil {
		log = zap.NewNop()
	}
	frames := make([]*page.Page, poolSize)
	free := make([]replacer.FrameID, poolSize)
	for i := 0; i < poolSize; i++ {
		frames[i] = page.New()
		free[i] = replacer.FrameID(i)
	}
	return &PoolManager{
		disk:      dm,
		log:       log,
		replacer:  replacer.NewLRUK(poolSize, LRUKLookback),
		frames:    frames,
		pageTable: make(map[page.ID]replacer.FrameID),
		freeList:  free,
	}
}

// acquireFrame returns a frame ready to be repurposed: from the free list if
// one exists, else by evicting a victim (writing it back first if dirty).
// Caller must hold mu.
func (bp *PoolManager) acquireFrame() (replacer.FrameID, error) {
	if n := len(bp.freeList); n > 0 {
		fid := bp.freeList[n-1]
		bp.freeList = bp.freeList[:n-1]
		return fid, nil
	}

	fid, ok := bp.replacer.Evict()
	if !ok {
		return 0, ErrPoolExhausted
	}
	victim := bp.frames[fid]
	if victim.IsDirty() {
		if err := bp.disk.WritePage(victim.ID(), victim.Data()); err != nil {
			return 0, errors.Wrapf(err, "flush victim page %d before eviction", victim.ID())
		}
	}
	delete(bp.pageTable, victim.ID())
	return fid, nil
}

// NewPage allocates a fresh page on disk, installs it in a frame, pins it,
// and returns the raw page. Prefer NewPageGuarded in new call sites.
func (bp *PoolManager) NewPage() (*page.Page, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	fid, err := bp.acquireFrame()
	if err != nil {
		return nil, err
	}
	id := bp.disk.AllocatePage()
	pg := bp.frames[fid]
	pg.Reset(id)
	pg.Pin()
	bp.pageTable[id] = fid
	bp.replacer.RecordAccess(fid)
	bp.replacer.SetEvictable(fid, false)
	bp.log.Debug("new page", zap.Int32("page_id", int32(id)), zap.Int32("frame_id", int32(fid)))
	return pg, nil
}

// FetchPage returns the resident (or newly loaded) page for id, pinned.
// Prefer FetchPageBasic/FetchPageRead/FetchPageWrite in new call sites.
func (bp *PoolManager) FetchPage(id page.ID) (*page.Page, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return bp.fetchLocked(id)
}

func (bp *PoolManager) fetchLocked(id page.ID) (*page.Page, error) {
	if fid, ok := bp.pageTable[id]; ok {
		pg := bp.frames[fid]
		pg.Pin()
		bp.replacer.RecordAccess(fid)
		bp.replacer.SetEvictable(fid, false)
		return pg, nil
	}

	fid, err := bp.acquireFrame()
	if err != nil {
		return nil, err
	}
	pg := bp.frames[fid]
	pg.Reset(id)
	if err := bp.disk.ReadPage(id, pg.Data()); err != nil {
		bp.freeList = append(bp.freeList, fid)
		return nil, errors.Wrapf(err, "read page %d from disk", id)
	}
	pg.Pin()
	bp.pageTable[id] = fid
	bp.replacer.RecordAccess(fid)
	bp.replacer.SetEvictable(fid, false)
	bp.log.Debug("fetch page", zap.Int32("page_id", int32(id)), zap.Int32("frame_id", int32(fid)))
	return pg, nil
}

// UnpinPage decrements a page's pin count, marking it dirty if isDirty is
// true. Once the pin count reaches zero the frame becomes evictable.
func (bp *PoolManager) UnpinPage(id page.ID, isDirty bool) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	fid, ok := bp.pageTable[id]
	if !ok {
		return errors.Errorf("unpin: page %d not resident", id)
	}
	pg := bp.frames[fid]
	if pg.PinCount() == 0 {
		return errors.Errorf("unpin: page %d already unpinned", id)
	}
	if isDirty {
		pg.MarkDirty()
	}
	pg.Unpin()
	if pg.PinCount() == 0 {
		bp.replacer.SetEvictable(fid, true)
	}
	return nil
}

// FlushPage writes a resident page back to disk regardless of its dirty
// bit, clearing the dirty flag on success.
func (bp *PoolManager) FlushPage(id page.ID) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	fid, ok := bp.pageTable[id]
	if !ok {
		return errors.Errorf("flush: page %d not resident", id)
	}
	pg := bp.frames[fid]
	if err := bp.disk.WritePage(id, pg.Data()); err != nil {
		return errors.Wrapf(err, "flush page %d", id)
	}
	pg.ClearDirty()
	return nil
}

// FlushAllPages flushes every resident page.
func (bp *PoolManager) FlushAllPages() error {
	bp.mu.Lock()
	ids := make([]page.ID, 0, len(bp.pageTable))
	for id := range bp.pageTable {
		ids = append(ids, id)
	}
	bp.mu.Unlock()

	for _, id := range ids {
		if err := bp.FlushPage(id); err != nil {
			return err
		}
	}
	return nil
}

// DeletePage removes a page from the pool entirely, refusing if it is
// still pinned. It is a no-op if the page isn't resident.
func (bp *PoolManager) DeletePage(id page.ID) (bool, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	fid, ok := bp.pageTable[id]
	if !ok {
		return true, nil
	}
	pg := bp.frames[fid]
	if pg.PinCount() > 0 {
		return false, errors.Errorf("delete: page %d is pinned", id)
	}
	delete(bp.pageTable, id)
	bp.replacer.Remove(fid)
	pg.Reset(page.INVALID)
	bp.freeList = append(bp.freeList, fid)
	bp.disk.DeallocatePage(id)
	return true, nil
}

// Size returns the number of frames managed by the pool.
func (bp *PoolManager) Size() int { return len(bp.frames) }
