package mutators

import (
	"fmt"
	"sort"
	"strings"

	"github.com/imagicbell/ublockly-sub001/internal/blocks"
)

// setLabel updates a label without emitting change events; labels are
// derived display state.
func setLabel(b *blocks.Block, name, text string) {
	f := b.Field(name)
	if f == nil || f.Value() == text {
		return
	}
	restore := b.Workspace().Silence()
	defer restore()
	_ = f.SetValue(text)
}

// ── Definition ──────────────────────────────────────────────

// ProcedureDef owns the signature of a procedures_def* block. The block's
// NAME field is kept in step with the registry; renaming the field renames
// the procedure and every caller.
type ProcedureDef struct {
	block   *blocks.Block
	proc    blocks.Procedure
	argIDs  []string
	stashed string

	watch         fieldWatch
	removeVarHook func()
}

func NewProcedureDef() *ProcedureDef {
	return &ProcedureDef{proc: blocks.Procedure{HasStatements: true}}
}

func (m *ProcedureDef) Procedure() blocks.Procedure { return m.proc.Clone() }
func (m *ProcedureDef) IsDefinition() bool          { return true }

// ArgumentVariableIDs returns the variable ids backing each argument.
func (m *ProcedureDef) ArgumentVariableIDs() []string {
	return append([]string(nil), m.argIDs...)
}

func (m *ProcedureDef) Attach(b *blocks.Block) error {
	m.block = b
	reg := b.Workspace().Procedures()
	p := m.proc.Clone()
	p.Name = strings.TrimSpace(b.FieldValue("NAME"))
	m.proc = reg.AddDefinition(b, p)
	if m.proc.Name != b.FieldValue("NAME") {
		if err := b.SetFieldValue("NAME", m.proc.Name); err != nil {
			return err
		}
	}
	m.watch.start(b, func(_, value string) { m.onNameChange(value) }, "NAME")
	m.removeVarHook = b.Workspace().AddChangeListener(m.onVariableEvent)
	m.resolveArgIDs()
	return m.rebuild()
}

func (m *ProcedureDef) Detach() {
	m.watch.stop()
	if m.removeVarHook != nil {
		m.removeVarHook()
		m.removeVarHook = nil
	}
	if b := m.block; b != nil {
		reg := b.Workspace().Procedures()
		if reg.Definition(m.proc.Name) == b {
			reg.RemoveDefinition(m.proc.Name)
		}
	}
	m.block = nil
}

func (m *ProcedureDef) onNameChange(value string) {
	b := m.block
	if b == nil || value == m.proc.Name {
		return
	}
	final, err := b.Workspace().Procedures().RenameProcedure(m.proc.Name, value)
	if err != nil {
		_ = b.SetFieldValue("NAME", m.proc.Name)
		return
	}
	if final != value {
		_ = b.SetFieldValue("NAME", final)
	}
}

// onVariableEvent follows renames of the variables backing the arguments.
func (m *ProcedureDef) onVariableEvent(ev blocks.Event) {
	b := m.block
	if b == nil || ev.Type != blocks.EventVarRename {
		return
	}
	if b.Workspace().Block(b.ID()) == nil {
		return
	}
	for i, id := range m.argIDs {
		if id != ev.VarID {
			continue
		}
		p := m.proc.Clone()
		p.Arguments[i] = ev.NewValue
		_ = b.Workspace().Procedures().MutateProcedure(m.proc.Name, p, blocks.IdentityArgMap(len(p.Arguments)))
		return
	}
}

func (m *ProcedureDef) ToXML() *blocks.Element {
	el := blocks.NewElement("mutation")
	if !m.proc.HasStatements {
		el.SetAttr("statements", "false")
	}
	for i, a := range m.proc.Arguments {
		arg := blocks.NewElement("arg").SetAttr("name", a)
		if i < len(m.argIDs) && m.argIDs[i] != "" {
			arg.SetAttr("varid", m.argIDs[i])
		}
		el.AppendChild(arg)
	}
	return el
}

func (m *ProcedureDef) FromXML(el *blocks.Element) error {
	hasStatements, err := el.BoolAttr("statements", true)
	if err != nil {
		return fmt.Errorf("mutation: %w", err)
	}
	p := m.proc.Clone()
	p.HasStatements = hasStatements
	p.Arguments = nil
	for _, arg := range el.ChildrenByTag("arg") {
		name := arg.Attr("name")
		if name == "" {
			return fmt.Errorf("mutation: arg without a name")
		}
		p.Arguments = append(p.Arguments, name)
		if m.block != nil {
			if err := ensureArgVariable(m.block.Workspace(), name, arg.Attr("varid")); err != nil {
				return err
			}
		}
	}
	if m.block == nil {
		m.proc = p
		return nil
	}
	return m.block.Workspace().Procedures().MutateProcedure(m.proc.Name, p, nil)
}

func ensureArgVariable(ws *blocks.Workspace, name, id string) error {
	vars := ws.Variables()
	if id != "" && vars.GetVariableByID(id) != nil {
		return nil
	}
	if vars.GetVariable(name, "") != nil {
		return nil
	}
	_, err := vars.CreateVariable(name, "", id)
	return err
}

// SetHasStatements toggles the STACK body. A removed body is kept on the
// workspace and reattached when the body comes back.
func (m *ProcedureDef) SetHasStatements(v bool) error {
	if m.block == nil || v == m.proc.HasStatements {
		return nil
	}
	p := m.proc.Clone()
	p.HasStatements = v
	return m.block.Workspace().Procedures().MutateProcedure(m.proc.Name, p, nil)
}

// SetArguments replaces the argument list. argMap maps old argument
// indexes to new ones for the callers.
func (m *ProcedureDef) SetArguments(args []string, argMap map[int]int) error {
	if m.block == nil {
		return blocks.ErrDisposed
	}
	p := m.proc.Clone()
	p.Arguments = append([]string(nil), args...)
	return m.block.Workspace().Procedures().MutateProcedure(m.proc.Name, p, argMap)
}

// Mutate is called by the registry with the new signature.
func (m *ProcedureDef) Mutate(p blocks.Procedure, _ map[int]int) error {
	before := m.ToXML()
	m.proc = p.Clone()
	m.resolveArgIDs()
	if err := m.rebuild(); err != nil {
		return err
	}
	if b := m.block; b != nil {
		if b.FieldValue("NAME") != p.Name {
			_ = b.SetFieldValue("NAME", p.Name)
		}
		blocks.NotifyMutation(b, before, m.ToXML())
	}
	return nil
}

func (m *ProcedureDef) resolveArgIDs() {
	m.argIDs = m.argIDs[:0]
	if m.block == nil {
		return
	}
	vars := m.block.Workspace().Variables()
	for _, a := range m.proc.Arguments {
		id := ""
		if v := vars.GetVariable(a, ""); v != nil {
			id = v.ID
		}
		m.argIDs = append(m.argIDs, id)
	}
}

func (m *ProcedureDef) rebuild() error {
	b := m.block
	if b == nil {
		return nil
	}
	params := ""
	if len(m.proc.Arguments) > 0 {
		params = "with: " + strings.Join(m.proc.Arguments, ", ")
	}
	setLabel(b, "PARAMS", params)

	var inputs []*blocks.Input
	var stack *blocks.Input
	for i, in := range b.Inputs() {
		if in.Name() == "STACK" {
			stack = in
			continue
		}
		inputs = append(inputs, in)
		if i == 0 && m.proc.HasStatements {
			inputs = append(inputs, reuseInput(b, blocks.InputTypeStatement, "STACK", nil))
		}
	}
	if len(inputs) == 0 && m.proc.HasStatements {
		inputs = append(inputs, reuseInput(b, blocks.InputTypeStatement, "STACK", nil))
	}
	if stack != nil && !m.proc.HasStatements {
		if body := stack.TargetBlock(); body != nil {
			m.stashed = body.ID()
			body.Unplug(false)
		}
	}
	if err := b.Reshape(inputs, b.OutputConnection(), b.PreviousConnection(), b.NextConnection()); err != nil {
		return err
	}
	if m.proc.HasStatements && m.stashed != "" {
		body := b.Workspace().Block(m.stashed)
		m.stashed = ""
		in := b.Input("STACK")
		if body != nil && body.Parent() == nil && body.PreviousConnection() != nil && !in.Connection().IsConnected() {
			_ = in.Connection().Connect(body.PreviousConnection())
		}
	}
	return nil
}

// ── Call ────────────────────────────────────────────────────

// ProcedureCall mirrors a procedure signature as ARGn value inputs, each
// labelled by an ARGNAMEn field.
type ProcedureCall struct {
	block *blocks.Block
	proc  blocks.Procedure
}

func NewProcedureCall() *ProcedureCall { return &ProcedureCall{} }

func (m *ProcedureCall) Procedure() blocks.Procedure { return m.proc.Clone() }
func (m *ProcedureCall) IsDefinition() bool          { return false }

func (m *ProcedureCall) Attach(b *blocks.Block) error {
	m.block = b
	if m.proc.Name != "" {
		b.Workspace().Procedures().AddCaller(m.proc.Name, b)
	}
	return m.apply(m.proc, nil)
}

func (m *ProcedureCall) Detach() {
	if m.block != nil && m.proc.Name != "" {
		m.block.Workspace().Procedures().RemoveCaller(m.proc.Name, m.block)
	}
	m.block = nil
}

func (m *ProcedureCall) ToXML() *blocks.Element {
	el := blocks.NewElement("mutation").SetAttr("name", m.proc.Name)
	for _, a := range m.proc.Arguments {
		el.AppendChild(blocks.NewElement("arg").SetAttr("name", a))
	}
	return el
}

func (m *ProcedureCall) FromXML(el *blocks.Element) error {
	p := blocks.Procedure{Name: el.Attr("name"), HasStatements: true}
	if p.Name == "" {
		return fmt.Errorf("mutation: procedure call without a name")
	}
	for _, arg := range el.ChildrenByTag("arg") {
		p.Arguments = append(p.Arguments, arg.Attr("name"))
	}
	if m.block == nil {
		m.proc = p
		return nil
	}
	reg := m.block.Workspace().Procedures()
	if m.proc.Name != "" {
		reg.RemoveCaller(m.proc.Name, m.block)
	}
	reg.AddCaller(p.Name, m.block)
	return m.apply(p, nil)
}

// Mutate rebuilds the argument inputs for p. Values attached to old
// argument i move to argMap[i]; values without an entry are disposed.
func (m *ProcedureCall) Mutate(p blocks.Procedure, argMap map[int]int) error {
	before := m.ToXML()
	if err := m.apply(p, argMap); err != nil {
		return err
	}
	if m.block != nil {
		blocks.NotifyMutation(m.block, before, m.ToXML())
	}
	return nil
}

func (m *ProcedureCall) apply(p blocks.Procedure, argMap map[int]int) error {
	b := m.block
	if b == nil {
		m.proc = p.Clone()
		return nil
	}
	if argMap == nil {
		argMap = blocks.IdentityArgMap(min(len(m.proc.Arguments), len(p.Arguments)))
	}

	saved := make(map[int]*blocks.Block)
	for i := range m.proc.Arguments {
		if child := b.InputTargetBlock("ARG" + itoa(i)); child != nil {
			child.Unplug(false)
			saved[i] = child
		}
	}

	m.proc = p.Clone()
	setLabel(b, "NAME", p.Name)

	var inputs []*blocks.Input
	for _, in := range b.Inputs() {
		if !strings.HasPrefix(in.Name(), "ARG") {
			inputs = append(inputs, in)
		}
	}
	for i, a := range p.Arguments {
		name := a
		in := reuseInput(b, blocks.InputTypeValue, "ARG"+itoa(i), func(in *blocks.Input) {
			in.SetAlign(blocks.AlignRight).AppendField(blocks.NewLabelField("ARGNAME"+itoa(i), name))
		})
		inputs = append(inputs, in)
	}
	if err := b.Reshape(inputs, b.OutputConnection(), b.PreviousConnection(), b.NextConnection()); err != nil {
		return err
	}
	for i, a := range p.Arguments {
		setLabel(b, "ARGNAME"+itoa(i), a)
	}

	olds := make([]int, 0, len(saved))
	for i := range saved {
		olds = append(olds, i)
	}
	sort.Ints(olds)
	for _, old := range olds {
		child := saved[old]
		if child.Disposed() {
			continue
		}
		newIdx, ok := argMap[old]
		if !ok || newIdx < 0 || newIdx >= len(p.Arguments) {
			child.Dispose(false)
			continue
		}
		conn := b.Input("ARG" + itoa(newIdx)).Connection()
		if conn.IsConnected() {
			child.Dispose(false)
			continue
		}
		if err := conn.Connect(child.OutputConnection()); err != nil {
			child.Dispose(false)
		}
	}
	return nil
}

// NewCall builds a call block for the defined procedure name, choosing the
// returning variant when the definition returns a value.
func NewCall(ws *blocks.Workspace, name string) (*blocks.Block, error) {
	reg := ws.Procedures()
	p, ok := reg.Get(name)
	if !ok {
		return nil, fmt.Errorf("new call: %w: %q", blocks.ErrProcedureNotFound, name)
	}
	typ := "procedures_callnoreturn"
	if def := reg.Definition(name); def != nil && def.Type() == "procedures_defreturn" {
		typ = "procedures_callreturn"
	}
	b, err := ws.NewBlock(typ)
	if err != nil {
		return nil, err
	}
	call, ok := b.Mutator().(*ProcedureCall)
	if !ok {
		b.Dispose(false)
		return nil, fmt.Errorf("new call: %s: %w", typ, blocks.ErrNoMutator)
	}
	reg.AddCaller(p.Name, b)
	if err := call.Mutate(p, nil); err != nil {
		b.Dispose(false)
		return nil, err
	}
	return b, nil
}
