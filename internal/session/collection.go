package session

import (
	"sync"
	"sync/atomic"
)

// Record is anything the store keeps in a collection.
type Record interface {
	GetID() string
}

// Clock hands out the monotonic sequence numbers used to version records.
// One clock is shared by every collection of a Store.
type Clock struct {
	n atomic.Uint64
}

func (c *Clock) Tick() uint64 { return c.n.Add(1) }

func (c *Clock) Now() uint64 { return c.n.Load() }

type pendingOp int

const (
	pendingNone pendingOp = iota
	pendingCreate
	pendingDelete
)

type entry[T Record] struct {
	item    T
	version uint64
	pending pendingOp
}

// Collection is an ordered set of records keyed by id. Local changes are
// tagged with the clock value at which they happened so that a server list
// fetched earlier can be merged without undoing them.
type Collection[T Record] struct {
	clock    *Clock
	onChange func()

	mu         sync.RWMutex
	order      []string
	entries    map[string]*entry[T]
	tombstones map[string]uint64
}

func NewCollection[T Record](clock *Clock, onChange func()) *Collection[T] {
	return &Collection[T]{
		clock:      clock,
		onChange:   onChange,
		entries:    make(map[string]*entry[T]),
		tombstones: make(map[string]uint64),
	}
}

func (c *Collection[T]) changed() {
	if c.onChange != nil {
		c.onChange()
	}
}

// List returns the visible records. Records with a pending delete are hidden.
func (c *Collection[T]) List() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]T, 0, len(c.order))
	for _, id := range c.order {
		e := c.entries[id]
		if e.pending == pendingDelete {
			continue
		}
		out = append(out, e.item)
	}
	return out
}

func (c *Collection[T]) Get(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[id]
	if !ok || e.pending == pendingDelete {
		var zero T
		return zero, false
	}
	return e.item, true
}

func (c *Collection[T]) Len() int {
	return len(c.List())
}

// Any reports whether a visible record satisfies pred.
func (c *Collection[T]) Any(pred func(T) bool) bool {
	for _, item := range c.List() {
		if pred(item) {
			return true
		}
	}
	return false
}

// Snapshot returns the sequence number to pass to Merge for a fetch that is
// about to start.
func (c *Collection[T]) Snapshot() uint64 {
	return c.clock.Now()
}

// Replace sets the collection wholesale, dropping pending state.
func (c *Collection[T]) Replace(items []T) {
	c.mu.Lock()
	c.order = c.order[:0]
	c.entries = make(map[string]*entry[T], len(items))
	c.tombstones = make(map[string]uint64)
	v := c.clock.Tick()
	for _, item := range items {
		id := item.GetID()
		if _, dup := c.entries[id]; dup {
			continue
		}
		c.order = append(c.order, id)
		c.entries[id] = &entry[T]{item: item, version: v}
	}
	c.mu.Unlock()
	c.changed()
}

func (c *Collection[T]) Reset() {
	c.Replace(nil)
}

// Merge reconciles a server list fetched after Snapshot returned since.
// Records changed locally after since, pending creates, pending deletes and
// records deleted after since are kept as the local side has them. Anything
// else follows the server: updated, added, or dropped.
func (c *Collection[T]) Merge(items []T, since uint64) {
	c.mu.Lock()

	serverIDs := make(map[string]struct{}, len(items))
	for _, item := range items {
		serverIDs[item.GetID()] = struct{}{}
	}

	var order []string
	entries := make(map[string]*entry[T], len(items))

	// Local-only records that must survive go first, in their current order.
	for _, id := range c.order {
		e := c.entries[id]
		if _, onServer := serverIDs[id]; onServer {
			continue
		}
		if e.pending != pendingNone || e.version > since {
			order = append(order, id)
			entries[id] = e
		}
	}

	for _, item := range items {
		id := item.GetID()
		if _, dup := entries[id]; dup {
			continue
		}
		if deletedAt, gone := c.tombstones[id]; gone && deletedAt > since {
			continue
		}
		if e, ok := c.entries[id]; ok {
			if e.pending == pendingNone && e.version <= since {
				e.item = item
			}
			order = append(order, id)
			entries[id] = e
			continue
		}
		order = append(order, id)
		entries[id] = &entry[T]{item: item, version: since}
	}

	for id, deletedAt := range c.tombstones {
		if _, onServer := serverIDs[id]; !onServer && deletedAt <= since {
			delete(c.tombstones, id)
		}
	}

	c.order = order
	c.entries = entries
	c.mu.Unlock()
	c.changed()
}

// Append adds item at the end.
func (c *Collection[T]) Append(item T) {
	c.insert(item, pendingNone, false)
}

// Upsert replaces the record with the same id, or adds it at the front.
func (c *Collection[T]) Upsert(item T) {
	c.insert(item, pendingNone, true)
}

// BeginCreate adds an optimistic record at the front.
func (c *Collection[T]) BeginCreate(item T) {
	c.insert(item, pendingCreate, true)
}

func (c *Collection[T]) insert(item T, op pendingOp, front bool) {
	c.mu.Lock()
	id := item.GetID()
	v := c.clock.Tick()
	delete(c.tombstones, id)
	if e, ok := c.entries[id]; ok {
		e.item = item
		e.version = v
		e.pending = op
	} else {
		c.entries[id] = &entry[T]{item: item, version: v, pending: op}
		if front {
			c.order = append([]string{id}, c.order...)
		} else {
			c.order = append(c.order, id)
		}
	}
	c.mu.Unlock()
	c.changed()
}

// CommitCreate swaps the optimistic record tempID for the server's record.
func (c *Collection[T]) CommitCreate(tempID string, item T) {
	c.mu.Lock()
	id := item.GetID()
	v := c.clock.Tick()

	if existing, ok := c.entries[id]; ok && id != tempID {
		// A refresh already brought the server record in; drop the placeholder.
		existing.item = item
		existing.version = v
		existing.pending = pendingNone
		c.removeLocked(tempID)
	} else if e, ok := c.entries[tempID]; ok {
		delete(c.entries, tempID)
		e.item = item
		e.version = v
		e.pending = pendingNone
		c.entries[id] = e
		for i, oid := range c.order {
			if oid == tempID {
				c.order[i] = id
				break
			}
		}
	} else {
		c.entries[id] = &entry[T]{item: item, version: v}
		c.order = append([]string{id}, c.order...)
	}
	c.mu.Unlock()
	c.changed()
}

// RollbackCreate drops an optimistic record.
func (c *Collection[T]) RollbackCreate(tempID string) {
	c.Remove(tempID)
}

// Remove drops id without leaving a tombstone.
func (c *Collection[T]) Remove(id string) {
	c.mu.Lock()
	c.removeLocked(id)
	c.mu.Unlock()
	c.changed()
}

// BeginDelete hides id until the delete is committed or rolled back.
func (c *Collection[T]) BeginDelete(id string) bool {
	c.mu.Lock()
	e, ok := c.entries[id]
	if ok {
		e.pending = pendingDelete
		e.version = c.clock.Tick()
	}
	c.mu.Unlock()
	if ok {
		c.changed()
	}
	return ok
}

func (c *Collection[T]) CommitDelete(id string) {
	c.mu.Lock()
	c.removeLocked(id)
	c.tombstones[id] = c.clock.Tick()
	c.mu.Unlock()
	c.changed()
}

func (c *Collection[T]) RollbackDelete(id string) {
	c.mu.Lock()
	if e, ok := c.entries[id]; ok {
		e.pending = pendingNone
		e.version = c.clock.Tick()
	}
	c.mu.Unlock()
	c.changed()
}

func (c *Collection[T]) removeLocked(id string) {
	if _, ok := c.entries[id]; !ok {
		return
	}
	delete(c.entries, id)
	for i, oid := range c.order {
		if oid == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}
