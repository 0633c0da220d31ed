package blocks

import "fmt"

// Block is a node in the program graph. Parent and target links are ids
// resolved through the owning Workspace.
type Block struct {
	ws       *Workspace
	id       string
	typ      string
	inputs   []*Input
	output   *Connection
	previous *Connection
	next     *Connection
	mutator  Mutator
	parentID string
	x, y     float64

	disabled        bool
	shadow          bool
	collapsed       bool
	inputsInline    bool
	inputsInlineSet bool
	editable        bool
	movable         bool
	deletable       bool

	initializing bool
	disposing    bool
	disposed     bool
}

func (b *Block) ID() string                      { return b.id }
func (b *Block) Type() string                    { return b.typ }
func (b *Block) Workspace() *Workspace           { return b.ws }
func (b *Block) OutputConnection() *Connection   { return b.output }
func (b *Block) PreviousConnection() *Connection { return b.previous }
func (b *Block) NextConnection() *Connection     { return b.next }
func (b *Block) Mutator() Mutator                { return b.mutator }
func (b *Block) Disposed() bool                  { return b.disposed }
func (b *Block) XY() (float64, float64)          { return b.x, b.y }
func (b *Block) Disabled() bool                  { return b.disabled }
func (b *Block) Shadow() bool                    { return b.shadow }
func (b *Block) Collapsed() bool                 { return b.collapsed }
func (b *Block) Editable() bool                  { return b.editable }
func (b *Block) Movable() bool                   { return b.movable }
func (b *Block) Deletable() bool                 { return b.deletable }

func (b *Block) fire(ev Event) {
	if b.initializing || b.ws == nil {
		return
	}
	b.ws.fire(ev)
}

// Inputs returns the block's rows in order.
func (b *Block) Inputs() []*Input {
	return append([]*Input(nil), b.inputs...)
}

// Input returns the named input or nil.
func (b *Block) Input(name string) *Input {
	for _, in := range b.inputs {
		if in.name == name {
			return in
		}
	}
	return nil
}

// InputTargetBlock returns the block attached to the named input.
func (b *Block) InputTargetBlock(name string) *Block {
	if in := b.Input(name); in != nil {
		return in.TargetBlock()
	}
	return nil
}

// Field returns the named field from any input.
func (b *Block) Field(name string) Field {
	for _, in := range b.inputs {
		if f := in.Field(name); f != nil {
			return f
		}
	}
	return nil
}

// FieldValue returns the language-neutral value of the named field, or "".
func (b *Block) FieldValue(name string) string {
	if f := b.Field(name); f != nil {
		return f.Value()
	}
	return ""
}

// SetFieldValue validates and stores a field value.
func (b *Block) SetFieldValue(name, value string) error {
	f := b.Field(name)
	if f == nil {
		return fmt.Errorf("block %s (%s): no field %q", b.id, b.typ, name)
	}
	return f.SetValue(value)
}

// Parent returns the block this one is plugged into, or nil.
func (b *Block) Parent() *Block {
	if b.parentID == "" {
		return nil
	}
	return b.ws.blocks[b.parentID]
}

// Root walks up to the top-level block of this tree.
func (b *Block) Root() *Block {
	r := b
	for p := r.Parent(); p != nil; p = r.Parent() {
		r = p
	}
	return r
}

// NextBlock returns the block attached below this one.
func (b *Block) NextBlock() *Block {
	if b.next == nil {
		return nil
	}
	return b.next.TargetBlock()
}

// PreviousBlock returns the block this one hangs from through its previous
// connection, which may be a statement input owner.
func (b *Block) PreviousBlock() *Block {
	if b.previous == nil {
		return nil
	}
	return b.previous.TargetBlock()
}

// Children returns the directly attached blocks: inputs in order, then next.
func (b *Block) Children() []*Block {
	var out []*Block
	for _, in := range b.inputs {
		if t := in.TargetBlock(); t != nil {
			out = append(out, t)
		}
	}
	if t := b.NextBlock(); t != nil {
		out = append(out, t)
	}
	return out
}

// Descendants returns b and every block below it, depth first.
func (b *Block) Descendants() []*Block {
	out := []*Block{b}
	for _, c := range b.Children() {
		out = append(out, c.Descendants()...)
	}
	return out
}

// Connections returns every connection the block owns.
func (b *Block) Connections() []*Connection {
	var out []*Connection
	for _, c := range []*Connection{b.output, b.previous, b.next} {
		if c != nil {
			out = append(out, c)
		}
	}
	for _, in := range b.inputs {
		if in.conn != nil {
			out = append(out, in.conn)
		}
	}
	return out
}

// FirstStatementConnection returns the connection of the first statement input.
func (b *Block) FirstStatementConnection() *Connection {
	for _, in := range b.inputs {
		if in.typ == InputTypeStatement {
			return in.conn
		}
	}
	return nil
}

func (b *Block) inputForConnection(c *Connection) *Input {
	for _, in := range b.inputs {
		if in.conn == c {
			return in
		}
	}
	return nil
}

// ── Shape ───────────────────────────────────────────────────

// NewInput creates an input owned by b. It is not part of the block's shape
// until passed to Reshape.
func (b *Block) NewInput(typ InputType, name string) *Input {
	in := &Input{typ: typ, name: name, block: b}
	switch typ {
	case InputTypeValue:
		in.conn = b.ws.newConnection(b.id, InputValue)
	case InputTypeStatement:
		in.conn = b.ws.newConnection(b.id, NextStatement)
	}
	return in
}

// NewConnection creates a first-class connection owned by b, for use with
// Reshape.
func (b *Block) NewConnection(typ ConnectionType) *Connection {
	return b.ws.newConnection(b.id, typ)
}

// AppendInput creates an input and adds it to the end of the shape.
func (b *Block) AppendInput(typ InputType, name string) (*Input, error) {
	in := b.NewInput(typ, name)
	if err := b.Reshape(append(b.Inputs(), in), b.output, b.previous, b.next); err != nil {
		return nil, err
	}
	return in, nil
}

// RemoveInput drops the named input from the shape.
func (b *Block) RemoveInput(name string) error {
	var keep []*Input
	found := false
	for _, in := range b.inputs {
		if in.name == name && !found {
			found = true
			continue
		}
		keep = append(keep, in)
	}
	if !found {
		return fmt.Errorf("block %s (%s): no input %q", b.id, b.typ, name)
	}
	return b.Reshape(keep, b.output, b.previous, b.next)
}

// SetOutput, SetPrevious and SetNext replace one first-class connection
// through Reshape. A nil check accepts anything.
func (b *Block) SetOutput(has bool, check ...string) error {
	var c *Connection
	if has {
		if b.output != nil {
			b.output.SetCheck(check...)
			return nil
		}
		c = b.NewConnection(OutputValue)
		c.check = check
	}
	return b.Reshape(b.inputs, c, b.previous, b.next)
}

func (b *Block) SetPrevious(has bool, check ...string) error {
	var c *Connection
	if has {
		if b.previous != nil {
			b.previous.SetCheck(check...)
			return nil
		}
		c = b.NewConnection(PreviousStatement)
		c.check = check
	}
	return b.Reshape(b.inputs, b.output, c, b.next)
}

func (b *Block) SetNext(has bool, check ...string) error {
	var c *Connection
	if has {
		if b.next != nil {
			b.next.SetCheck(check...)
			return nil
		}
		c = b.NewConnection(NextStatement)
		c.check = check
	}
	return b.Reshape(b.inputs, b.output, b.previous, c)
}

// Reshape is the only way a block's shape changes. Inputs absent from
// newInputs are disposed, new ones adopted, and each first-class connection
// whose identity changed is disconnected and disposed before the new one
// is installed. A single shape event is fired; an unchanged shape fires
// nothing.
func (b *Block) Reshape(newInputs []*Input, newOutput, newPrev, newNext *Connection) error {
	if b.disposed {
		return ErrDisposed
	}
	if newOutput != nil && newPrev != nil {
		return ErrOutputAndPrevious
	}
	for _, pair := range []struct {
		c   *Connection
		typ ConnectionType
	}{{newOutput, OutputValue}, {newPrev, PreviousStatement}, {newNext, NextStatement}} {
		if pair.c == nil {
			continue
		}
		if pair.c.sourceID != b.id || pair.c.ws != b.ws || pair.c.disposed {
			return ErrForeignConnection
		}
		if pair.c.typ != pair.typ {
			return fmt.Errorf("reshape %s: expected %s connection, got %s", b.typ, pair.typ, pair.c.typ)
		}
	}
	seen := make(map[string]bool, len(newInputs))
	keep := make(map[*Input]bool, len(newInputs))
	for _, in := range newInputs {
		if in == nil || in.block != b {
			return ErrForeignConnection
		}
		if in.name != "" {
			if seen[in.name] {
				return fmt.Errorf("reshape %s: %w: %q", b.typ, ErrDuplicateInput, in.name)
			}
			seen[in.name] = true
		}
		keep[in] = true
	}

	inputsChanged := len(newInputs) != len(b.inputs)
	if !inputsChanged {
		for i := range newInputs {
			if newInputs[i] != b.inputs[i] {
				inputsChanged = true
				break
			}
		}
	}
	connsChanged := newOutput != b.output || newPrev != b.previous || newNext != b.next
	if !inputsChanged && !connsChanged {
		return nil
	}

	if inputsChanged {
		for _, old := range b.inputs {
			if !keep[old] {
				old.dispose()
			}
		}
		b.inputs = append([]*Input(nil), newInputs...)
		for _, in := range b.inputs {
			if !in.adopted {
				in.adopt()
				if b.collapsed && in.conn != nil {
					in.conn.SetHidden(true)
				}
			}
		}
	}
	if connsChanged {
		b.output = b.swapConnection(b.output, newOutput)
		b.previous = b.swapConnection(b.previous, newPrev)
		b.next = b.swapConnection(b.next, newNext)
	}

	b.fire(Event{Type: EventShape, BlockID: b.id, InputsChanged: inputsChanged, ConnectionsChanged: connsChanged})
	return nil
}

func (b *Block) swapConnection(old, c *Connection) *Connection {
	if old == c {
		return c
	}
	if old != nil {
		if old.IsConnected() {
			if old.IsSuperior() {
				old.shadowDom = nil
				if child := old.TargetBlock(); child != nil && child.shadow {
					child.Dispose(false)
				} else {
					_ = old.Disconnect()
				}
			} else {
				_ = old.Disconnect()
			}
		}
		old.dispose()
	}
	if c != nil && !c.inDB && !c.hidden {
		c.moveTo(b.x+c.offX, b.y+c.offY)
		_ = b.ws.db(c.typ).AddConnection(c)
	}
	return c
}

// ── Position ────────────────────────────────────────────────

// MoveBy translates the block and everything attached below it.
func (b *Block) MoveBy(dx, dy float64) {
	if dx == 0 && dy == 0 {
		return
	}
	b.moveBy(dx, dy)
	if b.parentID == "" {
		b.fire(Event{Type: EventMove, BlockID: b.id, X: b.x, Y: b.y})
	}
}

// MoveTo places the block's origin at (x, y).
func (b *Block) MoveTo(x, y float64) {
	b.MoveBy(x-b.x, y-b.y)
}

func (b *Block) moveBy(dx, dy float64) {
	b.x += dx
	b.y += dy
	for _, c := range b.Connections() {
		c.moveTo(b.x+c.offX, b.y+c.offY)
	}
	for _, child := range b.Children() {
		child.moveBy(dx, dy)
	}
}

// setConnectionsHidden hides or shows the connections of b and its subtree.
// Inputs of a collapsed block stay hidden.
func (b *Block) setConnectionsHidden(hidden bool) {
	for _, c := range []*Connection{b.output, b.previous} {
		if c != nil {
			c.SetHidden(hidden)
		}
	}
	if hidden || !b.collapsed {
		for _, in := range b.inputs {
			if in.conn != nil {
				in.conn.SetHidden(hidden)
			}
			if t := in.TargetBlock(); t != nil {
				t.setConnectionsHidden(hidden)
			}
		}
	}
	if b.next != nil {
		b.next.SetHidden(hidden)
		if t := b.NextBlock(); t != nil {
			t.setConnectionsHidden(hidden)
		}
	}
}

// ── Flags ───────────────────────────────────────────────────

func (b *Block) SetDisabled(disabled bool) {
	if b.disabled == disabled {
		return
	}
	b.disabled = disabled
	b.fire(Event{Type: EventChange, BlockID: b.id, Element: ElementDisabled, OldValue: boolString(!disabled), NewValue: boolString(disabled)})
}

// SetCollapsed hides the connections of every input and the blocks
// plugged into them.
func (b *Block) SetCollapsed(collapsed bool) {
	if b.collapsed == collapsed {
		return
	}
	b.collapsed = collapsed
	selfHidden := (b.output != nil && b.output.hidden) || (b.previous != nil && b.previous.hidden)
	if !selfHidden {
		for _, in := range b.inputs {
			if in.conn != nil {
				in.conn.SetHidden(collapsed)
			}
			if t := in.TargetBlock(); t != nil {
				t.setConnectionsHidden(collapsed)
			}
		}
	}
	b.fire(Event{Type: EventChange, BlockID: b.id, Element: ElementCollapsed, OldValue: boolString(!collapsed), NewValue: boolString(collapsed)})
}

// InputsInline reports the explicit setting, or guesses from the shape when
// none was given.
func (b *Block) InputsInline() bool {
	if b.inputsInlineSet {
		return b.inputsInline
	}
	for i := 1; i < len(b.inputs); i++ {
		if b.inputs[i-1].typ == InputTypeDummy && b.inputs[i].typ == InputTypeDummy {
			return false
		}
	}
	for i := 1; i < len(b.inputs); i++ {
		if b.inputs[i-1].typ == InputTypeValue && b.inputs[i].typ == InputTypeDummy {
			return true
		}
	}
	return false
}

func (b *Block) SetInputsInline(inline bool) {
	old := b.InputsInline()
	b.inputsInline = inline
	b.inputsInlineSet = true
	if old != inline {
		b.fire(Event{Type: EventChange, BlockID: b.id, Element: ElementInline, OldValue: boolString(old), NewValue: boolString(inline)})
	}
}

func (b *Block) SetShadow(shadow bool)       { b.shadow = shadow }
func (b *Block) SetEditable(editable bool)   { b.editable = editable }
func (b *Block) SetMovable(movable bool)     { b.movable = movable }
func (b *Block) SetDeletable(deletable bool) { b.deletable = deletable }

// SetMutator detaches the current mutator and attaches m, which reshapes
// the block to m's state.
func (b *Block) SetMutator(m Mutator) error {
	if b.mutator != nil {
		b.mutator.Detach()
	}
	b.mutator = m
	if m == nil {
		return nil
	}
	return m.Attach(b)
}

func boolString(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

// ── Teardown ────────────────────────────────────────────────

// Unplug detaches b from its superior neighbour. With healStack, the block
// that was below b is reattached to the block that was above it when
// their tags still match; otherwise the gap stays open.
func (b *Block) Unplug(healStack bool) {
	if b.output != nil {
		if b.output.IsConnected() {
			_ = b.output.Disconnect()
		}
		return
	}
	if b.previous == nil {
		return
	}
	var prevTarget *Connection
	if b.previous.IsConnected() {
		prevTarget = b.previous.TargetConnection()
		_ = b.previous.Disconnect()
	}
	next := b.NextBlock()
	if healStack && next != nil && !next.shadow {
		nextTarget := b.next.TargetConnection()
		_ = b.next.Disconnect()
		if prevTarget != nil && prevTarget.checkType(nextTarget) {
			_ = prevTarget.Connect(nextTarget)
		}
	}
}

// Dispose unplugs b and destroys it with its whole subtree.
func (b *Block) Dispose(healStack bool) {
	if b.disposed || b.disposing {
		return
	}
	b.Unplug(healStack)
	var ids []string
	for _, d := range b.Descendants() {
		ids = append(ids, d.id)
	}
	b.fire(Event{Type: EventDelete, BlockID: b.id, BlockIDs: ids, OldXML: BlockToXML(b, true)})
	b.disposeInternal()
}

// disposeInternal tears down bottom-up: children first, then this block's
// inputs and fields, then its first-class connections.
func (b *Block) disposeInternal() {
	if b.disposed || b.disposing {
		return
	}
	b.disposing = true
	if b.mutator != nil {
		b.mutator.Detach()
	}
	for _, child := range b.Children() {
		child.disposeInternal()
	}
	for _, in := range b.inputs {
		in.dispose()
	}
	b.inputs = nil
	for _, c := range []*Connection{b.output, b.previous, b.next} {
		if c != nil {
			c.dispose()
		}
	}
	b.ws.removeBlock(b.id)
	b.disposed = true
	b.disposing = false
}
