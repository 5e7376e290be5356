// Package matching holds the waiting pool and the pairing loop that drains it.
// Neither type is safe for concurrent use: the session engine owns both and
// serializes every access behind its own lock.
package matching

import "slices"

// Pool is the ordered set of connection ids currently waiting for a partner.
// Insertion order is search order; an id appears at most once.
type Pool struct {
	ids     []string
	members map[string]struct{}
}

// NewPool creates an empty waiting pool.
func NewPool() *Pool {
	return &Pool{members: make(map[string]struct{})}
}

// PushBack appends id unless it is already waiting. It reports whether the
// id was inserted.
func (p *Pool) PushBack(id string) bool {
	if _, ok := p.members[id]; ok {
		return false
	}
	p.members[id] = struct{}{}
	p.ids = append(p.ids, id)
	return true
}

// PushFront places id at the head of the pool, ahead of every other waiter.
// An id already waiting is moved rather than duplicated.
func (p *Pool) PushFront(id string) {
	if _, ok := p.members[id]; ok {
		p.ids = slices.DeleteFunc(p.ids, func(v string) bool { return v == id })
	}
	p.members[id] = struct{}{}
	p.ids = slices.Insert(p.ids, 0, id)
}

// PopFront removes and returns the oldest entry.
func (p *Pool) PopFront() (string, bool) {
	if len(p.ids) == 0 {
		return "", false
	}
	id := p.ids[0]
	p.ids[0] = ""
	p.ids = p.ids[1:]
	delete(p.members, id)
	return id, true
}

// Remove deletes id wherever it sits. It reports whether id was present.
func (p *Pool) Remove(id string) bool {
	if _, ok := p.members[id]; !ok {
		return false
	}
	delete(p.members, id)
	p.ids = slices.DeleteFunc(p.ids, func(v string) bool { return v == id })
	return true
}

// Contains reports whether id is waiting.
func (p *Pool) Contains(id string) bool {
	_, ok := p.members[id]
	return ok
}

// Len returns the number of entries, stale ones included.
func (p *Pool) Len() int {
	return len(p.ids)
}

// IDs returns a copy of the entries, oldest first.
func (p *Pool) IDs() []string {
	return slices.Clone(p.ids)
}
