package blocks

import (
	"errors"
	"testing"
)

func TestVariableFieldBindsDefault(t *testing.T) {
	ws := newTestWorkspace(t)
	b := mustBlock(t, ws, "variables_get")
	v := ws.Variables().GetVariable("item", "")
	if v == nil {
		t.Fatal("default variable not created")
	}
	if b.FieldValue("VAR") != v.ID || b.Field("VAR").Text() != "item" {
		t.Error("field not bound to the default variable")
	}
}

func TestRenameVariableMergesSameType(t *testing.T) {
	ws := newTestWorkspace(t)
	vars := ws.Variables()
	x, _ := vars.CreateVariable("x", "", "")
	y, _ := vars.CreateVariable("y", "", "")

	getX := mustBlock(t, ws, "variables_get")
	getY := mustBlock(t, ws, "variables_get")
	if err := getX.SetFieldValue("VAR", x.ID); err != nil {
		t.Fatal(err)
	}
	if err := getY.SetFieldValue("VAR", y.ID); err != nil {
		t.Fatal(err)
	}

	events := recordEvents(ws)
	if err := vars.RenameVariableByID(x.ID, "y"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if vars.GetVariableByID(y.ID) != nil {
		t.Error("conflicting variable should be deleted")
	}
	if got := vars.GetVariable("y", ""); got == nil || got.ID != x.ID {
		t.Error("renamed variable's id should survive")
	}
	if getY.FieldValue("VAR") != x.ID {
		t.Error("references to the merged variable should be repointed")
	}
	if countEvents(*events, EventVarDelete) != 1 || countEvents(*events, EventVarRename) != 1 {
		t.Errorf("unexpected events %+v", *events)
	}
}

func TestRenameVariableTypeClash(t *testing.T) {
	ws := newTestWorkspace(t)
	vars := ws.Variables()
	x, _ := vars.CreateVariable("x", "", "")
	_, _ = vars.CreateVariable("n", "Number", "")
	err := vars.RenameVariableByID(x.ID, "N")
	if !errors.Is(err, ErrVariableTypeClash) {
		t.Errorf("got %v", err)
	}
	if x.Name != "x" {
		t.Error("name changed despite error")
	}
}

func TestCreateVariableRules(t *testing.T) {
	ws := newTestWorkspace(t)
	vars := ws.Variables()
	if _, err := vars.CreateVariable("  ", "", ""); !errors.Is(err, ErrIllegalName) {
		t.Errorf("empty name: %v", err)
	}
	a, _ := vars.CreateVariable("a", "", "id-a")
	again, err := vars.CreateVariable("A", "", "")
	if err != nil || again != a {
		t.Error("same name and type should return the existing variable")
	}
	if _, err := vars.CreateVariable("a", "", "other"); !errors.Is(err, ErrVariableExists) {
		t.Errorf("conflicting id: %v", err)
	}
	if _, err := vars.CreateVariable("b", "", "id-a"); !errors.Is(err, ErrVariableExists) {
		t.Errorf("reused id: %v", err)
	}
}

func TestDeleteVariableDisposesUses(t *testing.T) {
	ws := newTestWorkspace(t)
	b := mustBlock(t, ws, "variables_get")
	id := b.FieldValue("VAR")
	if err := ws.Variables().DeleteVariableByID(id); err != nil {
		t.Fatal(err)
	}
	if !b.Disposed() {
		t.Error("block using the variable should be disposed")
	}
	if len(ws.Variables().All()) != 0 {
		t.Error("variable still present")
	}
}

// ─────────────────────────────────────────────────────────────
// Procedures
// ─────────────────────────────────────────────────────────────

func TestProcedureNames(t *testing.T) {
	ws := newTestWorkspace(t)
	reg := ws.Procedures()
	d1 := mustBlock(t, ws, "stmt")
	d2 := mustBlock(t, ws, "stmt")

	p1 := reg.AddDefinition(d1, Procedure{Name: "foo"})
	p2 := reg.AddDefinition(d2, Procedure{Name: "Foo"})
	if p1.Name != "foo" || p2.Name != "Foo2" {
		t.Errorf("names = %q, %q", p1.Name, p2.Name)
	}
	if reg.Definition("FOO") != d1 {
		t.Error("lookup should be case-insensitive")
	}

	name, err := reg.RenameProcedure("foo2", "bar")
	if err != nil || name != "bar" {
		t.Fatalf("rename: %q, %v", name, err)
	}
	name, err = reg.RenameProcedure("bar", "FOO")
	if err != nil {
		t.Fatal(err)
	}
	if name != "FOO2" {
		t.Errorf("rename onto a taken name gave %q", name)
	}
}

func TestMutateProcedureValidatesArguments(t *testing.T) {
	ws := newTestWorkspace(t)
	reg := ws.Procedures()
	reg.AddDefinition(mustBlock(t, ws, "stmt"), Procedure{Name: "f"})

	if err := reg.MutateProcedure("f", Procedure{Name: "f", Arguments: []string{"1x"}}, nil); !errors.Is(err, ErrIllegalName) {
		t.Errorf("illegal arg: %v", err)
	}
	if err := reg.MutateProcedure("f", Procedure{Name: "f", Arguments: []string{"a", "A"}}, nil); !errors.Is(err, ErrDuplicateArgument) {
		t.Errorf("duplicate arg: %v", err)
	}
	if err := reg.MutateProcedure("g", Procedure{Name: "g"}, nil); !errors.Is(err, ErrProcedureNotFound) {
		t.Errorf("missing: %v", err)
	}
	if err := reg.MutateProcedure("f", Procedure{Name: "f", Arguments: []string{"a", "b"}}, nil); err != nil {
		t.Fatal(err)
	}
	if ws.Variables().GetVariable("b", "") == nil {
		t.Error("argument variables should be created")
	}
}

var errStaleCaller = errors.New("stale caller")

// rejectingCall is a call mutator whose Mutate always fails.
type rejectingCall struct{ err error }

func (m *rejectingCall) Attach(*Block) error                 { return nil }
func (m *rejectingCall) Detach()                             {}
func (m *rejectingCall) ToXML() *Element                     { return nil }
func (m *rejectingCall) FromXML(*Element) error              { return nil }
func (m *rejectingCall) Procedure() Procedure                { return Procedure{} }
func (m *rejectingCall) IsDefinition() bool                  { return false }
func (m *rejectingCall) Mutate(Procedure, map[int]int) error { return m.err }

func TestMutateProcedureKeepsCallerErrors(t *testing.T) {
	ws := newTestWorkspace(t)
	reg := ws.Procedures()
	reg.AddDefinition(mustBlock(t, ws, "stmt"), Procedure{Name: "f"})
	for _, err := range []error{errStaleCaller, &ConnectError{Reason: ReasonChecksFailed}} {
		caller := mustBlock(t, ws, "stmt")
		caller.mutator = &rejectingCall{err: err}
		reg.AddCaller("f", caller)
	}

	err := reg.MutateProcedure("f", Procedure{Name: "f", Arguments: []string{"a"}}, nil)
	if !errors.Is(err, errStaleCaller) {
		t.Errorf("errors.Is lost the caller error: %v", err)
	}
	var ce *ConnectError
	if !errors.As(err, &ce) || ce.Reason != ReasonChecksFailed {
		t.Errorf("errors.As lost the connect error: %v", err)
	}
	if p, ok := reg.Get("f"); !ok || len(p.Arguments) != 1 || p.Arguments[0] != "a" {
		t.Error("signature should still change when callers fail")
	}
}

func TestRemoveDefinitionKeepsCallers(t *testing.T) {
	ws := newTestWorkspace(t)
	reg := ws.Procedures()
	reg.AddDefinition(mustBlock(t, ws, "stmt"), Procedure{Name: "f"})
	caller := mustBlock(t, ws, "stmt")
	reg.AddCaller("f", caller)
	reg.AddCaller("F", caller)

	events := recordEvents(ws)
	callers := reg.RemoveDefinition("f")
	if len(callers) != 1 || callers[0] != caller || caller.Disposed() {
		t.Error("caller should be returned and kept alive")
	}
	if len(*events) != 1 || len((*events)[0].BlockIDs) != 1 {
		t.Errorf("unexpected events %+v", *events)
	}
	if _, ok := reg.Get("f"); ok {
		t.Error("definition still registered")
	}
}
