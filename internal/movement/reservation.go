package movement

// ReservationTable maps tile indices to the agent holding them. At most one
// agent owns a tile, and only the owner may release it.
type ReservationTable struct {
	owners map[int]string
}

// NewReservationTable creates an empty table.
func NewReservationTable() *ReservationTable {
	return &ReservationTable{owners: make(map[int]string)}
}

// Reserve claims idx for id. It succeeds when the tile is free or already
// held by id.
func (t *ReservationTable) Reserve(idx int, id string) bool {
	if owner, ok := t.owners[idx]; ok {
		return owner == id
	}
	t.owners[idx] = id
	return true
}

// Release frees idx if id holds it.
func (t *ReservationTable) Release(idx int, id string) bool {
	if owner, ok := t.owners[idx]; !ok || owner != id {
		return false
	}
	delete(t.owners, idx)
	return true
}

// ReleaseAll frees every tile held by id and returns how many were freed.
func (t *ReservationTable) ReleaseAll(id string) int {
	n := 0
	for idx, owner := range t.owners {
		if owner == id {
			delete(t.owners, idx)
			n++
		}
	}
	return n
}

// Owner returns the agent holding idx.
func (t *ReservationTable) Owner(idx int) (string, bool) {
	owner, ok := t.owners[idx]
	return owner, ok
}

// Len returns the number of reserved tiles.
func (t *ReservationTable) Len() int {
	return len(t.owners)
}
