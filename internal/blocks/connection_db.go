package blocks

import "math"

// ConnectionDB is the spatial index over connections of one type: a slice
// kept sorted by y. Order among equal-y entries is arbitrary.
type ConnectionDB struct {
	conns []*Connection
}

func NewConnectionDB() *ConnectionDB {
	return &ConnectionDB{}
}

func (db *ConnectionDB) Len() int { return len(db.conns) }

// At returns the i-th connection in y order.
func (db *ConnectionDB) At(i int) *Connection { return db.conns[i] }

// Connections returns a copy of the index in y order.
func (db *ConnectionDB) Connections() []*Connection {
	return append([]*Connection(nil), db.conns...)
}

// AddConnection inserts c at its sorted position.
func (db *ConnectionDB) AddConnection(c *Connection) error {
	if c.inDB {
		return ErrConnectionInDB
	}
	pos := db.FindPositionForConnection(c)
	db.conns = append(db.conns, nil)
	copy(db.conns[pos+1:], db.conns[pos:])
	db.conns[pos] = c
	c.inDB = true
	return nil
}

// RemoveConnection deletes exactly c from the index.
func (db *ConnectionDB) RemoveConnection(c *Connection) error {
	if !c.inDB {
		return ErrConnectionNotInDB
	}
	i := db.FindConnection(c)
	if i < 0 {
		return ErrConnectionNotInDB
	}
	copy(db.conns[i:], db.conns[i+1:])
	db.conns[len(db.conns)-1] = nil
	db.conns = db.conns[:len(db.conns)-1]
	c.inDB = false
	return nil
}

// FindPositionForConnection binary searches on y for the index where c
// could be inserted without breaking the order.
func (db *ConnectionDB) FindPositionForConnection(c *Connection) int {
	lo, hi := 0, len(db.conns)
	for lo < hi {
		mid := (lo + hi) / 2
		switch y := db.conns[mid].y; {
		case y < c.y:
			lo = mid + 1
		case y > c.y:
			hi = mid
		default:
			return mid
		}
	}
	return lo
}

// FindConnection returns the index of exactly c, or -1. Entries sharing c's
// y are scanned in both directions from the binary search anchor.
func (db *ConnectionDB) FindConnection(c *Connection) int {
	if len(db.conns) == 0 {
		return -1
	}
	anchor := db.FindPositionForConnection(c)
	for i := anchor; i >= 0 && i < len(db.conns) && db.conns[i].y == c.y; i-- {
		if db.conns[i] == c {
			return i
		}
	}
	for i := anchor + 1; i < len(db.conns) && db.conns[i].y == c.y; i++ {
		if db.conns[i] == c {
			return i
		}
	}
	return -1
}

// Neighbours returns every connection within maxRadius of c. The walk
// stops in each direction once the vertical gap alone exceeds the radius.
func (db *ConnectionDB) Neighbours(c *Connection, maxRadius float64) []*Connection {
	var out []*Connection
	anchor := db.FindPositionForConnection(c)
	for i := anchor - 1; i >= 0 && db.inYRange(i, c.y, maxRadius); i-- {
		if o := db.conns[i]; o != c && c.DistanceFrom(o) <= maxRadius {
			out = append(out, o)
		}
	}
	for i := anchor; i < len(db.conns) && db.inYRange(i, c.y, maxRadius); i++ {
		if o := db.conns[i]; o != c && c.DistanceFrom(o) <= maxRadius {
			out = append(out, o)
		}
	}
	return out
}

func (db *ConnectionDB) inYRange(i int, y, maxRadius float64) bool {
	return math.Abs(db.conns[i].y-y) <= maxRadius
}

// SearchForClosest finds the closest connection c may legally attach to
// when displaced by (dx, dy). It returns the connection and its distance,
// or nil and maxRadius. The query connection's position is restored before
// returning.
func (db *ConnectionDB) SearchForClosest(c *Connection, maxRadius, dx, dy float64) (*Connection, float64) {
	if len(db.conns) == 0 {
		return nil, maxRadius
	}
	baseX, baseY := c.x, c.y
	c.x, c.y = baseX+dx, baseY+dy
	defer func() { c.x, c.y = baseX, baseY }()

	anchor := db.FindPositionForConnection(c)
	var best *Connection
	bestRadius := maxRadius

	for i := anchor - 1; i >= 0 && db.inYRange(i, c.y, bestRadius); i-- {
		o := db.conns[i]
		if d := c.DistanceFrom(o); d <= bestRadius && c.IsConnectionAllowed(o) {
			best, bestRadius = o, d
		}
	}
	for i := anchor; i < len(db.conns) && db.inYRange(i, c.y, bestRadius); i++ {
		o := db.conns[i]
		if d := c.DistanceFrom(o); d <= bestRadius && c.IsConnectionAllowed(o) {
			best, bestRadius = o, d
		}
	}
	return best, bestRadius
}

// sorted reports whether the index is in y order.
func (db *ConnectionDB) sorted() bool {
	for i := 1; i < len(db.conns); i++ {
		if db.conns[i-1].y > db.conns[i].y {
			return false
		}
	}
	return true
}
