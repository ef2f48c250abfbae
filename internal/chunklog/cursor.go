package chunklog

// Cursor is a bidirectionally navigable handle into a Log. It is safe to
// copy (the zero-cost way to share access across goroutines — see Log.Cursor)
// and doubles as a forward/backward iterator: Next/Prev pull one element at
// a time starting from wherever the cursor currently points.
//
// A freshly obtained cursor owes its caller the element it currently points
// at: the first call to Next (or Prev) returns that element before the
// cursor advances. DrainForward moves the cursor to one past the last
// reserved slot and DrainBackwards to the first slot; both re-arm this
// "owed" flag, which
// is how a subscriber requests "deliver everything appended after this
// point" without missing the append that's racing it.
type Cursor[T any] struct {
	chunk    *chunk[T]
	index    int
	itemOwed bool
}

// newCursorAt builds a cursor pointing at the global index-th slot, or at
// end-of-collection (ok=false) if the log is not yet that long.
func newCursorAt[T any](root *chunk[T], index int) (Cursor[T], bool) {
	c := root
	for index >= c.capacity() {
		index -= c.capacity()
		next := c.nextNode()
		if next == nil {
			return Cursor[T]{}, false
		}
		c = next
	}
	if index != 0 && index >= c.size() {
		return Cursor[T]{}, false
	}
	return Cursor[T]{chunk: c, index: index, itemOwed: true}, true
}

// Index returns the cursor's current global position in the log.
func (c *Cursor[T]) Index() int { return c.chunk.startIndex + c.index }

// Get returns the value at the cursor's current position. present is false
// if the slot was tombstoned by Log.RemoveAt.
func (c *Cursor[T]) Get() (val T, present bool) {
	val, present, _ = c.chunk.at(c.index)
	return val, present
}

// getInRange is Get plus whether the cursor's index currently names a
// reserved slot at all (false once the index has run past the chunk's
// reserved length, e.g. right after DrainForward).
func (c *Cursor[T]) getInRange() (val T, present, inRange bool) {
	return c.chunk.at(c.index)
}

// GoNext advances the cursor by one slot, crossing into the next chunk if
// necessary. ok is false at the end of the log.
func (c *Cursor[T]) GoNext() (ok bool) {
	if c.index+1 == c.chunk.capacity() {
		next := c.chunk.nextNode()
		if next == nil {
			return false
		}
		c.chunk = next
		c.index = 0
		return true
	}
	if c.index+1 < c.chunk.size() {
		c.index++
		return true
	}
	return false
}

// GoPrev retreats the cursor by one slot, crossing into the previous chunk
// if necessary. ok is false at the front of the log.
func (c *Cursor[T]) GoPrev() (ok bool) {
	if c.index == 0 {
		prev := c.chunk.prevNode()
		if prev == nil {
			return false
		}
		c.chunk = prev
		c.index = prev.capacity() - 1
		return true
	}
	c.index--
	return true
}

// GoNextNode jumps the cursor to the start of the next chunk.
func (c *Cursor[T]) GoNextNode() (ok bool) {
	next := c.chunk.nextNode()
	if next == nil {
		return false
	}
	c.chunk = next
	c.index = 0
	return true
}

// GoPrevNode jumps the cursor to the start of the previous chunk.
func (c *Cursor[T]) GoPrevNode() (ok bool) {
	prev := c.chunk.prevNode()
	if prev == nil {
		return false
	}
	c.chunk = prev
	c.index = 0
	return true
}

// GoToFrontNode walks the cursor to the most recently allocated chunk.
func (c *Cursor[T]) GoToFrontNode() {
	for c.GoNextNode() {
	}
}

// GoToBackNode walks the cursor to the oldest chunk.
func (c *Cursor[T]) GoToBackNode() {
	for c.GoPrevNode() {
	}
}

// GoToNodeWithIndex moves the cursor to whichever chunk contains the given
// global index, without changing its intra-chunk offset.
func (c *Cursor[T]) GoToNodeWithIndex(index int) (ok bool) {
	for index < c.chunk.startIndex {
		if !c.GoPrevNode() {
			return false
		}
	}
	for index >= c.chunk.startIndex+c.chunk.capacity() {
		if !c.GoNextNode() {
			return false
		}
	}
	return true
}

// Push appends a value at the tail of the log regardless of the cursor's
// current position, leaving the cursor pointed at the chunk that was the
// front node before the push (the value may land in a newer chunk), and
// returns the value's new global index.
func (c *Cursor[T]) Push(val T) int {
	c.GoToFrontNode()
	return c.chunk.push(val)
}

// RemoveAt tombstones the slot at the given global index. The cursor is
// repositioned to that slot's chunk as a side effect.
func (c *Cursor[T]) RemoveAt(globalIndex int) (val T, ok bool) {
	if !c.GoToNodeWithIndex(globalIndex) {
		return val, false
	}
	return c.chunk.removeAt(globalIndex - c.chunk.startIndex)
}

// DrainForward moves the cursor to one slot past the most recently written
// element (the live tail) and re-arms the owed flag, so the next Next call
// returns whatever gets appended from this point on — never anything older.
func (c *Cursor[T]) DrainForward() {
	c.GoToFrontNode()
	c.index = c.chunk.size()
	c.itemOwed = true
}

// DrainBackwards moves the cursor to the very first slot of the log and
// re-arms the owed flag, so the next Next call starts iteration at the
// oldest element.
func (c *Cursor[T]) DrainBackwards() {
	c.GoToBackNode()
	c.index = 0
	c.itemOwed = true
}

// Next pulls the next element walking forward. ok is false when the cursor
// has run off the end of the log or is waiting (after DrainForward) for a
// slot that hasn't been appended yet — in the latter case the owed flag
// stays armed, so a later Next call made after a concurrent Push lands on
// that exact slot instead of skipping past it. present distinguishes a
// tombstoned slot (removed) from a live value; it is only meaningful when
// ok is true.
func (c *Cursor[T]) Next() (val T, present, ok bool) {
	if c.itemOwed {
		if c.index >= c.chunk.capacity() && !c.GoNextNode() {
			return val, false, false
		}
		val, present, ok = c.getInRange()
		c.itemOwed = !ok
		return val, present, ok
	}
	if !c.GoNext() {
		return val, false, false
	}
	val, present, ok = c.getInRange()
	c.itemOwed = !ok
	return val, present, ok
}

// Prev pulls the next element walking backward. ok is false at the front of
// the log.
func (c *Cursor[T]) Prev() (val T, present, ok bool) {
	if c.itemOwed {
		val, present, ok = c.getInRange()
		c.itemOwed = !ok
		return val, present, ok
	}
	if !c.GoPrev() {
		return val, false, false
	}
	return c.getInRange()
}
