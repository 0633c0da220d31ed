package blocks

import (
	"fmt"
	"math"
)

// ConnectionType is the structural role of a connection point.
type ConnectionType int

const (
	InputValue        ConnectionType = 1
	OutputValue       ConnectionType = 2
	NextStatement     ConnectionType = 3
	PreviousStatement ConnectionType = 4
)

func (t ConnectionType) String() string {
	switch t {
	case InputValue:
		return "input_value"
	case OutputValue:
		return "output_value"
	case NextStatement:
		return "next_statement"
	case PreviousStatement:
		return "previous_statement"
	default:
		return fmt.Sprintf("connection_type(%d)", int(t))
	}
}

// Opposite returns the type a connection of type t can pair with.
func (t ConnectionType) Opposite() ConnectionType {
	switch t {
	case InputValue:
		return OutputValue
	case OutputValue:
		return InputValue
	case NextStatement:
		return PreviousStatement
	case PreviousStatement:
		return NextStatement
	}
	return 0
}

// ConnID addresses a connection inside its workspace. Zero means none.
type ConnID int

// Connection is a typed attachment point on a block. Back-references to the
// owning block and the paired connection are ids resolved through the
// workspace.
type Connection struct {
	ws       *Workspace
	id       ConnID
	typ      ConnectionType
	sourceID string
	targetID ConnID
	check    []string

	x, y       float64
	offX, offY float64
	inDB       bool
	hidden     bool
	disposed   bool

	shadowDom *Element
}

func (c *Connection) ID() ConnID                 { return c.id }
func (c *Connection) Type() ConnectionType       { return c.typ }
func (c *Connection) Workspace() *Workspace      { return c.ws }
func (c *Connection) X() float64                 { return c.x }
func (c *Connection) Y() float64                 { return c.y }
func (c *Connection) InDB() bool                 { return c.inDB }
func (c *Connection) Disposed() bool             { return c.disposed }
func (c *Connection) Offset() (float64, float64) { return c.offX, c.offY }

// IsSuperior reports whether this side drives connect and disconnect.
func (c *Connection) IsSuperior() bool {
	return c.typ == InputValue || c.typ == NextStatement
}

// SourceBlock returns the block owning this connection.
func (c *Connection) SourceBlock() *Block {
	return c.ws.blocks[c.sourceID]
}

// TargetConnection returns the paired connection or nil.
func (c *Connection) TargetConnection() *Connection {
	if c.targetID == 0 {
		return nil
	}
	return c.ws.conns[c.targetID]
}

// TargetBlock returns the block on the other side of the pair or nil.
func (c *Connection) TargetBlock() *Block {
	if t := c.TargetConnection(); t != nil {
		return t.SourceBlock()
	}
	return nil
}

func (c *Connection) IsConnected() bool { return c.targetID != 0 }

// Check returns the compatibility tags. Nil accepts anything.
func (c *Connection) Check() []string {
	if c.check == nil {
		return nil
	}
	return append([]string(nil), c.check...)
}

// SetCheck replaces the compatibility tags. If the current pair no longer
// type-checks, the child side is unplugged.
func (c *Connection) SetCheck(check ...string) {
	if check == nil {
		c.check = nil
	} else {
		c.check = append([]string{}, check...)
	}
	if c.IsConnected() && !c.checkType(c.TargetConnection()) {
		child := c.TargetBlock()
		if !c.IsSuperior() {
			child = c.SourceBlock()
		}
		if child != nil {
			child.Unplug(false)
		}
	}
}

// ShadowXML returns the saved shadow payload respawned on disconnect.
func (c *Connection) ShadowXML() *Element { return c.shadowDom }

// SetShadowXML stores a shadow payload for this connection and respawns it
// when the slot is empty.
func (c *Connection) SetShadowXML(el *Element) error {
	if el != nil && el.Tag() != "shadow" {
		return schemaErr(el.Attr("type"), "shadow", "expected a <shadow> element, got <%s>", el.Tag())
	}
	c.shadowDom = el
	if el != nil && !c.IsConnected() {
		return c.respawnShadow()
	}
	return nil
}

// DistanceFrom returns the Euclidean distance between two connections.
func (c *Connection) DistanceFrom(o *Connection) float64 {
	dx := c.x - o.x
	dy := c.y - o.y
	return math.Sqrt(dx*dx + dy*dy)
}

// checkType reports whether the two tag lists share a tag. A nil list on
// either side accepts anything.
func (c *Connection) checkType(o *Connection) bool {
	if c.check == nil || o.check == nil {
		return true
	}
	for _, a := range c.check {
		for _, b := range o.check {
			if a == b {
				return true
			}
		}
	}
	return false
}

// CanConnectWithReason reports why target can or cannot pair with c.
func (c *Connection) CanConnectWithReason(target *Connection) Reason {
	if target == nil {
		return ReasonTargetNull
	}
	if c.ws == target.ws && c.sourceID == target.sourceID {
		return ReasonSelfConnection
	}
	if target.typ != c.typ.Opposite() {
		return ReasonWrongType
	}
	if c.ws != target.ws {
		return ReasonDifferentWorkspaces
	}
	parent, child := c.SourceBlock(), target.SourceBlock()
	if !c.IsSuperior() {
		parent, child = child, parent
	}
	if parent != nil && child != nil && parent.shadow && !child.shadow {
		return ReasonShadowParent
	}
	if !c.checkType(target) {
		return ReasonChecksFailed
	}
	if parent != nil && child != nil && isAncestor(child, parent) {
		return ReasonCircular
	}
	return ReasonOK
}

// isAncestor reports whether a is b or one of b's parents.
func isAncestor(a, b *Block) bool {
	for p := b; p != nil; p = p.Parent() {
		if p == a {
			return true
		}
	}
	return false
}

// CanConnect is CanConnectWithReason(target) == ReasonOK.
func (c *Connection) CanConnect(target *Connection) bool {
	return c.CanConnectWithReason(target) == ReasonOK
}

// IsConnectionAllowed is the full drag-legality test used by the closest
// connection search: structural compatibility plus the rules that keep a
// drop from silently displacing blocks it should not.
func (c *Connection) IsConnectionAllowed(candidate *Connection) bool {
	if candidate == nil || candidate.hidden || candidate.disposed {
		return false
	}
	if c.ws.isDragging(candidate.sourceID) {
		return false
	}
	if c.CanConnectWithReason(candidate) != ReasonOK {
		return false
	}
	switch candidate.typ {
	case PreviousStatement:
		// a next connection may only take a free previous connection
		if c.IsConnected() || candidate.IsConnected() {
			return false
		}
	case OutputValue:
		if candidate.IsConnected() || c.IsConnected() {
			return false
		}
	case InputValue:
		// splicing into an occupied input is fine unless the occupant is pinned
		if t := candidate.TargetBlock(); t != nil && !t.movable && !t.shadow {
			return false
		}
	case NextStatement:
		// a block without a next connection may not bump the rest of a stack
		if t := candidate.TargetBlock(); t != nil && !t.shadow && t.next != nil {
			if src := c.SourceBlock(); src != nil && src.next == nil {
				return false
			}
		}
	}
	return true
}

// Connect pairs c with other. Failing checks are returned as *ConnectError
// and leave both ends untouched.
func (c *Connection) Connect(other *Connection) error {
	if c.disposed || (other != nil && other.disposed) {
		return ErrDisposed
	}
	if other != nil && c.targetID == other.id && other.targetID == c.id {
		return nil
	}
	if r := c.CanConnectWithReason(other); r != ReasonOK {
		return &ConnectError{Reason: r}
	}
	if c.IsSuperior() {
		return c.connectChild(other)
	}
	return other.connectChild(c)
}

// connectChild links c (superior side) to childConn, displacing any
// block already held by parentConn.
func (c *Connection) connectChild(childConn *Connection) error {
	parentConn := c
	ws := parentConn.ws
	parentBlock := parentConn.SourceBlock()
	childBlock := childConn.SourceBlock()

	if childConn.IsConnected() {
		if err := childConn.Disconnect(); err != nil {
			return err
		}
	}

	if parentConn.IsConnected() {
		shadowDom := parentConn.shadowDom
		parentConn.shadowDom = nil
		orphan := parentConn.TargetBlock()
		if orphan.shadow {
			shadowDom = BlockToXML(orphan, true)
			orphan.Dispose(false)
			orphan = nil
		} else if parentConn.typ == InputValue {
			if orphan.output == nil {
				parentConn.shadowDom = shadowDom
				return fmt.Errorf("connect: orphan block %s has no output connection", orphan.id)
			}
			parentConn.disconnectInternal(parentConn.TargetConnection(), true)
			if slot := lastConnectionInRow(childBlock, orphan); slot != nil {
				if err := slot.Connect(orphan.output); err != nil {
					parentConn.relink(orphan.output, shadowDom)
					return err
				}
				orphan = nil
			}
		} else if parentConn.typ == NextStatement {
			if orphan.previous == nil {
				parentConn.shadowDom = shadowDom
				return fmt.Errorf("connect: orphan block %s has no previous connection", orphan.id)
			}
			parentConn.disconnectInternal(parentConn.TargetConnection(), true)
			tail := childBlock
			for tail.next != nil {
				nextBlock := tail.NextBlock()
				if nextBlock != nil && !nextBlock.shadow {
					tail = nextBlock
					continue
				}
				if tail.next.CanConnect(orphan.previous) {
					if err := tail.next.Connect(orphan.previous); err != nil {
						parentConn.relink(orphan.previous, shadowDom)
						return err
					}
					orphan = nil
				}
				break
			}
		}
		if orphan != nil {
			if parentConn.IsConnected() {
				parentConn.disconnectInternal(parentConn.TargetConnection(), true)
			}
			ws.fire(Event{Type: EventBump, BlockID: orphan.id, OldParentID: parentBlock.id})
		}
		parentConn.shadowDom = shadowDom
	}

	oldParent := childBlock.parentID
	parentConn.targetID = childConn.id
	childConn.targetID = parentConn.id
	childBlock.parentID = parentBlock.id
	childBlock.MoveBy(parentConn.x-childConn.x, parentConn.y-childConn.y)
	if parentConn.hidden {
		childBlock.setConnectionsHidden(true)
	}

	inputName := ""
	if in := parentBlock.inputForConnection(parentConn); in != nil {
		inputName = in.name
	}
	ws.fire(Event{
		Type:         EventMove,
		BlockID:      childBlock.id,
		OldParentID:  oldParent,
		NewParentID:  parentBlock.id,
		NewInputName: inputName,
	})
	return nil
}

// relink puts a displaced orphan back on c and restores the saved shadow
// after a failed reattachment.
func (c *Connection) relink(orphanConn *Connection, shadowDom *Element) {
	if orphanConn.IsConnected() {
		if other := orphanConn.TargetConnection(); other != nil {
			other.disconnectInternal(orphanConn, false)
		}
	}
	c.targetID = orphanConn.id
	orphanConn.targetID = c.id
	orphanConn.SourceBlock().parentID = c.SourceBlock().id
	c.shadowDom = shadowDom
}

// lastConnectionInRow walks down the chain of single compatible value slots
// starting at start and returns the free (or shadow-held) slot at its end,
// or nil when the chain branches or ends without one.
func lastConnectionInRow(start, orphan *Block) *Connection {
	b := start
	for {
		slot := singleConnection(b, orphan)
		if slot == nil {
			return nil
		}
		b = slot.TargetBlock()
		if b == nil || b.shadow {
			return slot
		}
	}
}

// singleConnection returns the only value input on b that orphan's output
// could legally connect to.
func singleConnection(b, orphan *Block) *Connection {
	var found *Connection
	for _, in := range b.inputs {
		c := in.conn
		if c != nil && c.typ == InputValue && c.CanConnect(orphan.output) {
			if found != nil {
				return nil
			}
			found = c
		}
	}
	return found
}

// Disconnect breaks the pair. The call is routed through the superior side,
// which respawns its saved shadow afterwards.
func (c *Connection) Disconnect() error {
	other := c.TargetConnection()
	if other == nil {
		return ErrNotConnected
	}
	parent, child := c, other
	if !c.IsSuperior() {
		parent, child = other, c
	}
	parent.disconnectInternal(child, true)
	return parent.respawnShadow()
}

// disconnectInternal clears both sides of the pair. c is the superior side.
func (c *Connection) disconnectInternal(child *Connection, notify bool) {
	parent := c
	parentBlock := parent.SourceBlock()
	childBlock := child.SourceBlock()
	parent.targetID = 0
	child.targetID = 0
	if childBlock == nil {
		return
	}
	childBlock.parentID = ""
	if !childBlock.disposing {
		childBlock.setConnectionsHidden(false)
	}
	if notify && parentBlock != nil {
		inputName := ""
		if in := parentBlock.inputForConnection(parent); in != nil {
			inputName = in.name
		}
		parent.ws.fire(Event{
			Type:         EventMove,
			BlockID:      childBlock.id,
			OldParentID:  parentBlock.id,
			NewInputName: inputName,
			X:            childBlock.x,
			Y:            childBlock.y,
		})
	}
}

// respawnShadow rebuilds the saved shadow block into an empty slot.
func (c *Connection) respawnShadow() error {
	if c.shadowDom == nil || c.IsConnected() || c.disposed {
		return nil
	}
	parent := c.SourceBlock()
	if parent == nil || parent.disposing || parent.disposed {
		return nil
	}
	shadow, err := XMLToBlock(c.ws, c.shadowDom)
	if err != nil {
		return fmt.Errorf("respawn shadow: %w", err)
	}
	var slot *Connection
	switch c.typ {
	case InputValue:
		slot = shadow.output
	case NextStatement:
		slot = shadow.previous
	}
	if slot == nil {
		shadow.Dispose(false)
		return ErrShadowHasNoConnect
	}
	saved := c.shadowDom
	if err := c.connectChild(slot); err != nil {
		shadow.Dispose(false)
		return err
	}
	c.shadowDom = saved
	return nil
}

// moveTo updates the absolute location, keeping the connection db sorted.
func (c *Connection) moveTo(x, y float64) {
	if c.x == x && c.y == y {
		return
	}
	if c.inDB {
		db := c.ws.db(c.typ)
		_ = db.RemoveConnection(c)
		c.x, c.y = x, y
		_ = db.AddConnection(c)
		return
	}
	c.x, c.y = x, y
}

// SetOffset places the connection relative to its block's origin.
func (c *Connection) SetOffset(dx, dy float64) {
	c.offX, c.offY = dx, dy
	if b := c.SourceBlock(); b != nil {
		c.moveTo(b.x+dx, b.y+dy)
	}
}

// SetHidden removes a connection from (or restores it to) the spatial index.
func (c *Connection) SetHidden(hidden bool) {
	c.hidden = hidden
	if c.disposed {
		return
	}
	db := c.ws.db(c.typ)
	if hidden && c.inDB {
		_ = db.RemoveConnection(c)
	} else if !hidden && !c.inDB {
		_ = db.AddConnection(c)
	}
}

func (c *Connection) Hidden() bool { return c.hidden }

// Closest finds the nearest connection this one could legally snap to when
// its block is dragged by (dx, dy).
func (c *Connection) Closest(maxRadius, dx, dy float64) (*Connection, float64) {
	return c.ws.db(c.typ.Opposite()).SearchForClosest(c, maxRadius, dx, dy)
}

// Neighbours returns connections of the opposite type within maxRadius.
func (c *Connection) Neighbours(maxRadius float64) []*Connection {
	return c.ws.db(c.typ.Opposite()).Neighbours(c, maxRadius)
}

// dispose disconnects and releases the connection. A shadow child held by a
// superior connection is disposed with it; a real child is left top-level.
func (c *Connection) dispose() {
	if c.disposed {
		return
	}
	if t := c.TargetConnection(); t != nil {
		if c.IsSuperior() {
			child := t.SourceBlock()
			c.disconnectInternal(t, false)
			if child != nil && child.shadow && !child.disposing {
				child.disposeInternal()
			}
		} else {
			t.disconnectInternal(c, false)
		}
	}
	if c.inDB {
		_ = c.ws.db(c.typ).RemoveConnection(c)
	}
	delete(c.ws.conns, c.id)
	c.disposed = true
}
