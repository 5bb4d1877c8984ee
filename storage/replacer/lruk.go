// Package replacer implements the LRU-K frame eviction policy used by
// storage/buffer to pick a victim frame when the pool is full.
package replacer

import (
	"container/list"
	"math"
	"sync"
)

// FrameID identifies a buffer pool frame slot.
type FrameID int32

type accessRecord struct {
	frame     FrameID
	history   []int64 // most recent access timestamp first
	evictable bool
}

// LRUK selects an eviction victim using the LRU-K algorithm: a frame's
// backward k-distance is the gap between now and its k-th most recent
// access. A frame with fewer than k recorded accesses has infinite
// k-distance and is preferred for eviction over any frame with a finite
// one; ties among infinite-k-distance frames break on earliest overall
// access (classic LRU on the "young" set).
type LRUK struct {
	mu  sync.Mutex
	k   int
	now int64 // logical clock, incremented on every RecordAccess

	entries map[FrameID]*list.Element // frame -> element in young or mature
	young   *list.List                // *accessRecord, < k history entries
	mature  *list.List                // *accessRecord, >= k history entries

	evictableCount int
}

// NewLRUK constructs a replacer tracking up to numFrames frames with
// backward-lookback distance k.
func NewLRUK(numFrames int, k int) *LRUK {
	return &LRUK{
		k:       k,
		entries: make(map[FrameID]*list.Element, numFrames),
		young:   list.New(),
		mature:  list.New(),
	}
}

// RecordAccess logs a new access to frame, creating tracking state for it
// if this is the first time it has been seen. A frame moves from the young
// list to the mature list the moment its history reaches length k.
func (r *LRUK) RecordAccess(frame FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.now++
	el, ok := r.entries[frame]
	if !ok {
		rec := &accessRecord{frame: frame, history: []int64{r.now}}
		r.entries[frame] = r.young.PushBack(rec)
		return
	}
	rec := el.Value.(*accessRecord)
	wasYoung := len(rec.history) < r.k
	rec.history = append([]int64{r.now}, rec.history...)
	if len(rec.history) > r.k {
		rec.history = rec.history[:r.k]
	}
	if wasYoung && len(rec.history) == r.k {
		r.young.Remove(el)
		r.entries[frame] = r.mature.PushBack(rec)
	}
}

// SetEvictable marks frame as eligible (or ineligible) for eviction. A
// buffer pool frame is only evictable while its pin count is zero.
func (r *LRUK) SetEvictable(frame FrameID, evictable bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	el, ok := r.entries[frame]
	if !ok {
		return
	}
	rec := el.Value.(*accessRecord)
	if rec.evictable == evictable {
		return
	}
	rec.evictable = evictable
	if evictable {
		r.evictableCount++
	} else {
		r.evictableCount--
	}
}

// Evict picks a victim among evictable frames and removes its tracking
// state, returning (frame, true). It returns (0, false) if no frame is
// evictable. The young list is searched first: any evictable frame there
// beats every frame in the mature list, oldest-access-first. Only if the
// young list holds no evictable frame does eviction fall through to the
// mature list, which is scored by largest backward k-distance.
func (r *LRUK) Evict() (FrameID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.evictableCount == 0 {
		return 0, false
	}

	if victim, el, ok := r.oldestEvictable(r.young); ok {
		r.removeElement(r.young, el)
		return victim, true
	}

	var (
		bestFrame   FrameID
		bestEl      *list.Element
		bestKDist   int64 = -1
		bestEarlier int64
		found       bool
	)
	for el := r.mature.Front(); el != nil; el = el.Next() {
		rec := el.Value.(*accessRecord)
		if !rec.evictable {
			continue
		}
		kth := rec.history[len(rec.history)-1]
		kdist := r.now - kth
		if !found || kdist > bestKDist || (kdist == bestKDist && kth < bestEarlier) {
			found = true
			bestFrame = rec.frame
			bestEl = el
			bestKDist = kdist
			bestEarlier = kth
		}
	}
	if !found {
		return 0, false
	}
	r.removeElement(r.mature, bestEl)
	return bestFrame, true
}

func (r *LRUK) oldestEvictable(l *list.List) (FrameID, *list.Element, bool) {
	var (
		bestFrame FrameID
		bestEl    *list.Element
		bestFirst int64 = math.MaxInt64
		found     bool
	)
	for el := l.Front(); el != nil; el = el.Next() {
		rec := el.Value.(*accessRecord)
		if !rec.evictable {
			continue
		}
		firstAccess := rec.history[len(rec.history)-1]
		if !found || firstAccess < bestFirst {
			found = true
			bestFrame = rec.frame
			bestEl = el
			bestFirst = firstAccess
		}
	}
	return bestFrame, bestEl, found
}

func (r *LRUK) removeElement(l *list.List, el *list.Element) {
	rec := el.Value.(*accessRecord)
	l.Remove(el)
	delete(r.entries, rec.frame)
	r.evictableCount--
}

// Remove drops all tracking state for frame; used when a frame's page is
// deleted outright. It panics if frame is still pinned (non-evictable):
// removing a pinned frame's tracking state is a caller bug, not a case to
// swallow silently.
func (r *LRUK) Remove(frame FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	el, ok := r.entries[frame]
	if !ok {
		return
	}
	rec := el.Value.(*accessRecord)
	if !rec.evictable {
		panic("replacer: Remove called on a pinned frame")
	}
	r.evictableCount--
	if len(rec.history) < r.k {
		r.young.Remove(el)
	} else {
		r.mature.Remove(el)
	}
	delete(r.entries, frame)
}

// Size returns the number of currently evictable frames.
func (r *LRUK) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.evictableCount
}
