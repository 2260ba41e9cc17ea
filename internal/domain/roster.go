package domain

// Roster is the ordered membership of one room. The server is authoritative:
// clients replace their copy wholesale on every join notification and never
// append entries on their own.
type Roster []Member

func (r Roster) Contains(id SocketID) bool {
	for _, m := range r {
		if m.SocketID == id {
			return true
		}
	}
	return false
}

func (r Roster) Find(id SocketID) (Member, bool) {
	for _, m := range r {
		if m.SocketID == id {
			return m, true
		}
	}
	return Member{}, false
}

// Without returns a copy of the roster with the given member removed.
func (r Roster) Without(id SocketID) Roster {
	out := make(Roster, 0, len(r))
	for _, m := range r {
		if m.SocketID != id {
			out = append(out, m)
		}
	}
	return out
}
