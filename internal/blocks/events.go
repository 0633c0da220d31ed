package blocks

// EventType names a workspace change notification.
type EventType string

const (
	EventCreate        EventType = "create"
	EventDelete        EventType = "delete"
	EventChange        EventType = "change"
	EventMove          EventType = "move"
	EventShape         EventType = "shape"
	EventBump          EventType = "bump"
	EventVarCreate     EventType = "var_create"
	EventVarRename     EventType = "var_rename"
	EventVarDelete     EventType = "var_delete"
	EventProcCreate    EventType = "procedure_create"
	EventProcRename    EventType = "procedure_rename"
	EventProcMutate    EventType = "procedure_mutate"
	EventProcDelete    EventType = "procedure_delete"
	EventWorkspaceLoad EventType = "workspace_load"
)

// Change elements carried by EventChange.
const (
	ElementField     = "field"
	ElementDisabled  = "disabled"
	ElementCollapsed = "collapsed"
	ElementInline    = "inline"
	ElementMutation  = "mutation"
)

// Event is a single change notification dispatched through the Workspace.
// Only the members relevant to Type are set.
type Event struct {
	Type    EventType `json:"type"`
	BlockID string    `json:"blockId,omitempty"`

	// change
	Element  string `json:"element,omitempty"`
	Name     string `json:"name,omitempty"`
	OldValue string `json:"oldValue,omitempty"`
	NewValue string `json:"newValue,omitempty"`

	// move
	OldParentID  string  `json:"oldParentId,omitempty"`
	NewParentID  string  `json:"newParentId,omitempty"`
	NewInputName string  `json:"newInputName,omitempty"`
	X            float64 `json:"x,omitempty"`
	Y            float64 `json:"y,omitempty"`

	// shape
	InputsChanged      bool `json:"inputsChanged,omitempty"`
	ConnectionsChanged bool `json:"connectionsChanged,omitempty"`

	// variables and procedures
	VarID    string   `json:"varId,omitempty"`
	VarType  string   `json:"varType,omitempty"`
	BlockIDs []string `json:"blockIds,omitempty"`

	// delete
	OldXML *Element `json:"-"`
}

// Listener receives workspace events synchronously on the control thread.
type Listener func(Event)

type listenerEntry struct {
	fn      Listener
	removed bool
}

// AddChangeListener subscribes fn to every event fired on the workspace and
// returns a function that unsubscribes it. The returned function is safe to
// call from inside fn.
func (ws *Workspace) AddChangeListener(fn Listener) (remove func()) {
	e := &listenerEntry{fn: fn}
	ws.listeners = append(ws.listeners, e)
	return func() {
		if e.removed {
			return
		}
		e.removed = true
		for i, l := range ws.listeners {
			if l == e {
				ws.listeners = append(ws.listeners[:i:i], ws.listeners[i+1:]...)
				return
			}
		}
	}
}

func (ws *Workspace) fire(ev Event) {
	if ws.silent > 0 {
		return
	}
	snapshot := append([]*listenerEntry(nil), ws.listeners...)
	for _, l := range snapshot {
		if !l.removed {
			l.fn(ev)
		}
	}
}

// Silence suppresses event dispatch until the returned function is called.
// Calls nest.
func (ws *Workspace) Silence() (restore func()) {
	ws.silent++
	done := false
	return func() {
		if !done {
			done = true
			ws.silent--
		}
	}
}
