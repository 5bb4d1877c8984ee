// Package disk implements the flat page-file I/O layer that storage/buffer
// reads from and writes to: synchronous ReadPage/WritePage over a dense,
// monotonically increasing page-id space.
package disk

import (
	"os"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"dbcore/storage/page"
)

// Manager is the interface storage/buffer consumes. A concrete Manager owns
// the actual file handle; tests may substitute an in-memory fake.
type Manager interface {
	ReadPage(id page.ID, out []byte) error
	WritePage(id page.ID, in []byte) error
	AllocatePage() page.ID
	DeallocatePage(id page.ID)
	Shutdown() error
}

// FileManager is a Manager backed by a single OS file. Page ids are dense
// and monotonic: page i lives at byte offset i*page.Size.
type FileManager struct {
	mu         sync.Mutex
	file       *os.File
	nextPageID int64
	log        *zap.Logger
}

// NewFileManager opens (creating if necessary) the page file at path and
// derives the next allocatable page id from its current size.
func NewFileManager(path string, log *zap.Logger) (*FileManager, error) {
	if log == nil {
		log = zap.NewNop()
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "open page file %s", path)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "stat page file %s", path)
	}
	numPages := stat.Size() / page.Size
	return &FileManager{
		file:       f,
		nextPageID: numPages,
		log:        log,
	}, nil
}

// ReadPage reads a full page's worth of bytes into out, which must be at
// least page.Size long. Reading past the end of a sparsely-allocated file
// (which AllocatePage never leaves, but a caller with a stale id might see)
// zero-fills the gap instead of erroring.
func (fm *FileManager) ReadPage(id page.ID, out []byte) error {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	if len(out) < page.Size {
		return errors.Errorf("read buffer too small: %d < %d", len(out), page.Size)
	}
	offset := int64(id) * page.Size
	n, err := fm.file.ReadAt(out[:page.Size], offset)
	if err != nil && n == 0 {
		return errors.Wrapf(err, "read page %d", id)
	}
	for i := n; i < page.Size; i++ {
		out[i] = 0
	}
	return nil
}

// WritePage writes exactly page.Size bytes of in at the page's offset.
func (fm *FileManager) WritePage(id page.ID, in []byte) error {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	if len(in) != page.Size {
		return errors.Errorf("write buffer size mismatch: %d != %d", len(in), page.Size)
	}
	offset := int64(id) * page.Size
	if _, err := fm.file.WriteAt(in, offset); err != nil {
		return errors.Wrapf(err, "write page %d", id)
	}
	return nil
}

// AllocatePage hands out the next dense page id and zero-extends the file
// so that a subsequent read never sees a short read.
func (fm *FileManager) AllocatePage() page.ID {
	id := page.ID(atomic.AddInt64(&fm.nextPageID, 1) - 1)
	fm.mu.Lock()
	defer fm.mu.Unlock()
	var zero [page.Size]byte
	_, _ = fm.file.WriteAt(zero[:], int64(id)*page.Size)
	return id
}

// DeallocatePage is a logical hint; the file layer keeps the slot rather
// than compacting the file or reclaiming the id.
func (fm *FileManager) DeallocatePage(id page.ID) {
	fm.log.Debug("deallocate page (hint, slot retained)", zap.Int32("page_id", int32(id)))
}

// Shutdown flushes and closes the underlying file.
func (fm *FileManager) Shutdown() error {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	if err := fm.file.Sync(); err != nil {
		fm.file.Close()
		return errors.Wrap(err, "sync page file")
	}
	return errors.Wrap(fm.file.Close(), "close page file")
}
