package blocks

import (
	"sort"

	"github.com/google/uuid"
)

// ScheduleMode selects how independent top-level chains are run.
type ScheduleMode int

const (
	// ScheduleSequential runs each chain to completion before starting the next.
	ScheduleSequential ScheduleMode = iota
	// ScheduleShared advances every live chain from a single shared driver.
	ScheduleShared
)

func (m ScheduleMode) String() string {
	if m == ScheduleShared {
		return "shared"
	}
	return "sequential"
}

// ParseScheduleMode accepts "sequential" or "shared".
func ParseScheduleMode(s string) (ScheduleMode, bool) {
	switch s {
	case "", "sequential":
		return ScheduleSequential, true
	case "shared":
		return ScheduleShared, true
	}
	return ScheduleSequential, false
}

// DefaultSnapRadius is the drag snapping distance used when Options leaves it zero.
const DefaultSnapRadius = 28.0

type Options struct {
	ScheduleMode ScheduleMode
	SnapRadius   float64
}

// Workspace is the aggregate root: it owns every block and connection, the
// four connection indexes and the variable and procedure registries.
type Workspace struct {
	id      string
	factory *Factory
	opts    Options

	blocks map[string]*Block
	order  []string

	conns    map[ConnID]*Connection
	nextConn ConnID
	dbs      [5]*ConnectionDB

	variables  *VariableMap
	procedures *ProcedureRegistry

	listeners []*listenerEntry
	silent    int
	dragging  map[string]bool
	// >0 while XML is loading; variable fields bind after their value is read
	deferBind int
}

// NewWorkspace creates an empty workspace building blocks with f.
func NewWorkspace(f *Factory, opts Options) *Workspace {
	if opts.SnapRadius == 0 {
		opts.SnapRadius = DefaultSnapRadius
	}
	ws := &Workspace{
		id:      uuid.NewString(),
		factory: f,
		opts:    opts,
		blocks:  make(map[string]*Block),
		conns:   make(map[ConnID]*Connection),
	}
	for t := InputValue; t <= PreviousStatement; t++ {
		ws.dbs[t] = NewConnectionDB()
	}
	ws.variables = newVariableMap(ws)
	ws.procedures = newProcedureRegistry(ws)
	return ws
}

func (ws *Workspace) ID() string                                  { return ws.id }
func (ws *Workspace) SetID(id string)                             { ws.id = id }
func (ws *Workspace) Factory() *Factory                           { return ws.factory }
func (ws *Workspace) Options() Options                            { return ws.opts }
func (ws *Workspace) ScheduleMode() ScheduleMode                  { return ws.opts.ScheduleMode }
func (ws *Workspace) SetScheduleMode(m ScheduleMode)              { ws.opts.ScheduleMode = m }
func (ws *Workspace) Variables() *VariableMap                     { return ws.variables }
func (ws *Workspace) Procedures() *ProcedureRegistry              { return ws.procedures }
func (ws *Workspace) ConnectionDB(t ConnectionType) *ConnectionDB { return ws.db(t) }

func (ws *Workspace) db(t ConnectionType) *ConnectionDB {
	if t < InputValue || t > PreviousStatement {
		return NewConnectionDB()
	}
	return ws.dbs[t]
}

// NewBlock builds a block of the given type with a fresh id.
func (ws *Workspace) NewBlock(typ string) (*Block, error) {
	return ws.factory.build(ws, typ, "")
}

// NewBlockWithID builds a block with a caller-chosen id. An id already in
// use is replaced by a fresh one.
func (ws *Workspace) NewBlockWithID(typ, id string) (*Block, error) {
	return ws.factory.build(ws, typ, id)
}

// Block returns a live block by id, or nil.
func (ws *Workspace) Block(id string) *Block {
	b := ws.blocks[id]
	if b == nil || b.disposed {
		return nil
	}
	return b
}

// AllBlocks returns every live block in creation order.
func (ws *Workspace) AllBlocks() []*Block {
	out := make([]*Block, 0, len(ws.order))
	for _, id := range ws.order {
		if b := ws.blocks[id]; b != nil {
			out = append(out, b)
		}
	}
	return out
}

// TopBlocks returns blocks with no parent; when ordered they are sorted
// top to bottom, then left to right.
func (ws *Workspace) TopBlocks(ordered bool) []*Block {
	var out []*Block
	for _, b := range ws.AllBlocks() {
		if b.parentID == "" {
			out = append(out, b)
		}
	}
	if ordered {
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].y != out[j].y {
				return out[i].y < out[j].y
			}
			return out[i].x < out[j].x
		})
	}
	return out
}

// Clear disposes every block and forgets every variable.
func (ws *Workspace) Clear() {
	for _, b := range ws.TopBlocks(false) {
		b.Dispose(false)
	}
	ws.variables.clear()
}

// BeginDrag marks b and its subtree as being dragged so their connections
// are never offered as snap targets.
func (ws *Workspace) BeginDrag(b *Block) {
	ws.dragging = make(map[string]bool)
	for _, d := range b.Descendants() {
		ws.dragging[d.id] = true
	}
}

// EndDrag clears the drag set.
func (ws *Workspace) EndDrag() {
	ws.dragging = nil
}

func (ws *Workspace) isDragging(blockID string) bool {
	return ws.dragging[blockID]
}

func (ws *Workspace) newConnection(sourceID string, typ ConnectionType) *Connection {
	ws.nextConn++
	c := &Connection{ws: ws, id: ws.nextConn, typ: typ, sourceID: sourceID}
	if b := ws.blocks[sourceID]; b != nil {
		c.x, c.y = b.x, b.y
	}
	ws.conns[c.id] = c
	return c
}

func (ws *Workspace) addBlock(b *Block) {
	ws.blocks[b.id] = b
	ws.order = append(ws.order, b.id)
}

func (ws *Workspace) removeBlock(id string) {
	delete(ws.blocks, id)
	for i, o := range ws.order {
		if o == id {
			ws.order = append(ws.order[:i], ws.order[i+1:]...)
			break
		}
	}
}
