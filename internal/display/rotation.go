package display

// Rotation is a cursor over a scroll set. It resets to the first entry
// whenever the set length changes.
type Rotation struct {
	pos    int
	length int
}

// Step returns the index into a set of length n, moving one entry forward
// when advance is set. A length change resets the cursor without moving
// it. An empty set yields -1.
func (r *Rotation) Step(n int, advance bool) int {
	switch {
	case n != r.length:
		r.length, r.pos = n, 0
	case advance && n > 0:
		r.pos = (r.pos + 1) % n
	}
	if n == 0 {
		return -1
	}
	return r.pos
}
