package stream

// cycleGuard tracks the composite values currently on the active traversal
// path. Entries are added when a frame for the value is pushed and removed
// when it is popped, so a value reachable twice through non-overlapping
// branches is not a cycle.
type cycleGuard map[ident]struct{}

// enter fails with ErrCircular if the value is already on the active path.
// A zero ident is a value that cannot cycle and is never tracked.
func (g cycleGuard) enter(id ident) error {
	if id == (ident{}) {
		return nil
	}
	if _, onPath := g[id]; onPath {
		return ErrCircular
	}
	g[id] = struct{}{}
	return nil
}

func (g cycleGuard) leave(id ident) {
	delete(g, id)
}
