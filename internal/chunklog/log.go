package chunklog

// Log is a chunked, append-only, (almost-)lock-free concurrent sequence.
// Any number of goroutines may hold independent Cursors into the same Log
// and push, read, or tombstone elements concurrently. The zero value is not
// usable; construct with New or NewWithCapacity.
type Log[T any] struct {
	root     *chunk[T]
	capacity int
}

// New builds a Log using DefaultChunkCapacity-sized chunks.
func New[T any]() *Log[T] {
	return NewWithCapacity[T](DefaultChunkCapacity)
}

// NewWithCapacity builds a Log whose chunks each hold up to capacity
// elements before a new chunk is allocated.
func NewWithCapacity[T any](capacity int) *Log[T] {
	return &Log[T]{root: newChunk[T](nil, capacity), capacity: capacity}
}

// Cursor returns a new handle positioned at the front (oldest element) of
// the log. Cursors are cheap value types; obtain one per goroutine/
// subscriber rather than sharing a single instance across goroutines.
func (l *Log[T]) Cursor() Cursor[T] {
	c, _ := newCursorAt(l.root, 0)
	return c
}

// Push appends val at the tail of the log and returns its global index.
// Safe for any number of concurrent callers.
func (l *Log[T]) Push(val T) int {
	c := l.Cursor()
	return c.Push(val)
}

// RemoveAt tombstones the element at the given global index, if one is
// still present. Returns the removed value and true on success; calling it
// again on the same index (or one that was never written) returns false.
func (l *Log[T]) RemoveAt(globalIndex int) (val T, ok bool) {
	c := l.Cursor()
	return c.RemoveAt(globalIndex)
}

// At reads the element at the given global index without removing it.
func (l *Log[T]) At(globalIndex int) (val T, present bool) {
	c := l.Cursor()
	if !c.GoToNodeWithIndex(globalIndex) {
		return val, false
	}
	val, present, _ = c.chunk.at(globalIndex - c.chunk.startIndex)
	return val, present
}

// Len returns the number of reserved slots across the whole log, including
// tombstoned ones (a tombstone still occupies an index permanently).
func (l *Log[T]) Len() int {
	return l.root.frontElemsCount() + l.root.backElemsCount()
}

// ChunkCount returns how many chunks currently make up the log.
func (l *Log[T]) ChunkCount() int {
	return l.root.frontNodesCount() + l.root.backNodesCount()
}

// TailCursor returns a cursor positioned one slot past the most recently
// written element. The returned cursor's next Next() call blocks on nothing
// but also returns nothing until a value is appended from this point
// forward — exactly the "subscribe from here" semantics a live subscriber
// needs, since the same Log.Push that a writer is racing to finish is what
// eventually satisfies it.
func (l *Log[T]) TailCursor() Cursor[T] {
	c := l.Cursor()
	c.DrainForward()
	return c
}

// HistoryCursor returns a cursor positioned one slot past the most recently
// written element, ready for backward iteration via Prev. Unlike TailCursor,
// the owed flag is left disarmed: the slot one past the end was never
// written, so owing it would make the first Prev report "no value yet"
// forever instead of stepping back to the last live element.
func (l *Log[T]) HistoryCursor() Cursor[T] {
	c := l.Cursor()
	c.DrainForward()
	c.itemOwed = false
	return c
}

// FrontCursor returns a cursor positioned at the oldest slot (which may be a
// tombstone), for replaying full history.
func (l *Log[T]) FrontCursor() Cursor[T] {
	c := l.Cursor()
	c.DrainBackwards()
	return c
}
