package blocks

import (
	"errors"
	"testing"
)

func newLooseConnection(ws *Workspace, source string, typ ConnectionType, x, y float64) *Connection {
	c := ws.newConnection(source, typ)
	c.x, c.y = x, y
	return c
}

// ─────────────────────────────────────────────────────────────
// Ordering
// ─────────────────────────────────────────────────────────────

func TestConnectionDBStaysSorted(t *testing.T) {
	ws := NewWorkspace(NewFactory(), Options{})
	db := NewConnectionDB()
	ys := []float64{5, 1, 3, 3, 0, 3, 7, -2}
	var conns []*Connection
	for i, y := range ys {
		c := newLooseConnection(ws, "b", NextStatement, float64(i), y)
		if err := db.AddConnection(c); err != nil {
			t.Fatalf("AddConnection: %v", err)
		}
		conns = append(conns, c)
	}
	if !db.sorted() {
		t.Fatal("db not sorted after inserts")
	}
	for _, c := range conns {
		i := db.FindConnection(c)
		if i < 0 || db.At(i) != c {
			t.Errorf("FindConnection did not return the exact connection at y=%v", c.y)
		}
	}

	// remove one of the ties and make sure the others are still found
	if err := db.RemoveConnection(conns[3]); err != nil {
		t.Fatalf("RemoveConnection: %v", err)
	}
	if db.FindConnection(conns[3]) != -1 {
		t.Error("removed connection still found")
	}
	for _, c := range []*Connection{conns[2], conns[5]} {
		if i := db.FindConnection(c); i < 0 || db.At(i) != c {
			t.Error("remaining tie lost")
		}
	}
	if db.Len() != len(ys)-1 || !db.sorted() {
		t.Error("db inconsistent after removal")
	}
}

func TestConnectionDBMembershipErrors(t *testing.T) {
	ws := NewWorkspace(NewFactory(), Options{})
	db := NewConnectionDB()
	c := newLooseConnection(ws, "b", InputValue, 0, 0)
	if err := db.RemoveConnection(c); !errors.Is(err, ErrConnectionNotInDB) {
		t.Errorf("remove absent: got %v", err)
	}
	if err := db.AddConnection(c); err != nil {
		t.Fatal(err)
	}
	if err := db.AddConnection(c); !errors.Is(err, ErrConnectionInDB) {
		t.Errorf("double add: got %v", err)
	}
}

func TestFindPositionForConnection(t *testing.T) {
	ws := NewWorkspace(NewFactory(), Options{})
	db := NewConnectionDB()
	if got := db.FindPositionForConnection(newLooseConnection(ws, "q", InputValue, 0, 10)); got != 0 {
		t.Errorf("empty db: got %d", got)
	}
	for _, y := range []float64{0, 2, 4} {
		_ = db.AddConnection(newLooseConnection(ws, "b", InputValue, 0, y))
	}
	cases := map[float64]int{-1: 0, 1: 1, 3: 2, 5: 3}
	for y, want := range cases {
		if got := db.FindPositionForConnection(newLooseConnection(ws, "q", InputValue, 0, y)); got != want {
			t.Errorf("y=%v: got %d, want %d", y, got, want)
		}
	}
}

// ─────────────────────────────────────────────────────────────
// Closest search
// ─────────────────────────────────────────────────────────────

func closestFixture(t *testing.T) (*Workspace, *ConnectionDB, map[string]*Connection) {
	t.Helper()
	ws := NewWorkspace(NewFactory(), Options{})
	db := NewConnectionDB()
	named := map[string]*Connection{
		"origin": newLooseConnection(ws, "a", PreviousStatement, 0, 0),
		"ten":    newLooseConnection(ws, "b", PreviousStatement, 0, 10),
		"twenty": newLooseConnection(ws, "c", PreviousStatement, 0, 20),
		"side":   newLooseConnection(ws, "d", PreviousStatement, 10, 15),
	}
	for _, c := range named {
		if err := db.AddConnection(c); err != nil {
			t.Fatal(err)
		}
	}
	return ws, db, named
}

func TestSearchForClosestInterior(t *testing.T) {
	ws, db, named := closestFixture(t)
	q := newLooseConnection(ws, "q", NextStatement, 0, 0)

	got, dist := db.SearchForClosest(q, 5, 1, 14)
	if got != named["ten"] {
		t.Fatalf("expected the y=10 connection, got %+v", got)
	}
	if dist < 4.1 || dist > 4.2 {
		t.Errorf("distance = %v", dist)
	}
	if q.X() != 0 || q.Y() != 0 {
		t.Error("query connection position not restored")
	}
}

func TestSearchForClosestExactMatchWithZeroRadius(t *testing.T) {
	ws, db, named := closestFixture(t)
	q := newLooseConnection(ws, "q", NextStatement, 0, 20)
	got, dist := db.SearchForClosest(q, 0, 0, 0)
	if got != named["twenty"] || dist != 0 {
		t.Errorf("got %v at %v", got, dist)
	}
}

func TestSearchForClosestNothingInRange(t *testing.T) {
	ws, db, _ := closestFixture(t)
	q := newLooseConnection(ws, "q", NextStatement, 100, 100)
	got, dist := db.SearchForClosest(q, 5, 0, 0)
	if got != nil || dist != 5 {
		t.Errorf("got %v at %v, want nil at 5", got, dist)
	}

	empty := NewConnectionDB()
	if got, dist := empty.SearchForClosest(q, 7, 0, 0); got != nil || dist != 7 {
		t.Errorf("empty db: got %v at %v", got, dist)
	}
}

func TestNeighbours(t *testing.T) {
	ws, db, named := closestFixture(t)
	q := newLooseConnection(ws, "q", NextStatement, 0, 12)
	got := db.Neighbours(q, 5)
	seen := map[*Connection]bool{}
	for _, c := range got {
		seen[c] = true
	}
	if len(got) != 1 || !seen[named["ten"]] {
		t.Errorf("neighbours = %d entries", len(got))
	}
}

// ─────────────────────────────────────────────────────────────
// Collapsed blocks
// ─────────────────────────────────────────────────────────────

func TestCollapsedBlockConnectionsLeaveIndex(t *testing.T) {
	ws := newTestWorkspace(t)
	loop := mustBlock(t, ws, "controls_repeat")
	body := mustBlock(t, ws, "stmt")
	mustConnect(t, loop.Input("DO").Connection(), body.PreviousConnection())
	do := loop.Input("DO").Connection()

	free := mustBlock(t, ws, "stmt")
	free.MoveBy(do.x-free.PreviousConnection().x, do.y-free.PreviousConnection().y)

	loop.SetCollapsed(true)
	for name, c := range map[string]*Connection{"DO": do, "body next": body.NextConnection()} {
		if c.InDB() || !c.Hidden() {
			t.Errorf("%s should be hidden and out of the index while collapsed", name)
		}
	}
	if !loop.NextConnection().InDB() {
		t.Error("the collapsed block's own next connection stays indexed")
	}
	got, _ := free.PreviousConnection().Closest(1000, 0, 0)
	if got == do || got == body.NextConnection() {
		t.Error("Closest returned a connection of a collapsed block")
	}
	if got != nil && got.Hidden() {
		t.Error("Closest returned a hidden connection")
	}

	loop.SetCollapsed(false)
	for name, c := range map[string]*Connection{"DO": do, "body next": body.NextConnection()} {
		if !c.InDB() || c.Hidden() {
			t.Errorf("%s should be back in the index after expanding", name)
		}
	}
}
