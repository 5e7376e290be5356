package session

// registry owns the User records, keyed by connection id.
type registry map[string]*User

func (r registry) add(id string) (*User, bool) {
	if _, ok := r[id]; ok {
		return nil, false
	}
	u := &User{ID: id, State: StateIdle}
	r[id] = u
	return u, true
}

func (r registry) get(id string) (*User, bool) {
	u, ok := r[id]
	return u, ok
}

func (r registry) remove(id string) {
	delete(r, id)
}

// searching reports whether id still names a live user that is searching.
// Waiting pool entries failing this check are stale.
func (r registry) searching(id string) bool {
	u, ok := r[id]
	return ok && u.State == StateSearching
}

// rooms maps room ids to their two members.
type rooms map[string]Room

func (r rooms) create(id, a, b string) Room {
	room := Room{ID: id, Members: [2]string{a, b}}
	r[id] = room
	return room
}

func (r rooms) get(id string) (Room, bool) {
	room, ok := r[id]
	return room, ok
}

func (r rooms) remove(id string) {
	delete(r, id)
}
