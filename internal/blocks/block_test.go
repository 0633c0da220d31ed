package blocks

import (
	"errors"
	"testing"
)

// ─────────────────────────────────────────────────────────────
// Reshape
// ─────────────────────────────────────────────────────────────

func TestReshapeUnchangedIsNoop(t *testing.T) {
	ws := newTestWorkspace(t)
	b := mustBlock(t, ws, "controls_repeat")
	prev, next := b.PreviousConnection(), b.NextConnection()
	events := recordEvents(ws)

	if err := b.Reshape(b.Inputs(), b.OutputConnection(), prev, next); err != nil {
		t.Fatalf("Reshape: %v", err)
	}
	if len(*events) != 0 {
		t.Errorf("expected no events, got %d", len(*events))
	}
	if prev.Disposed() || next.Disposed() || !prev.InDB() || !next.InDB() {
		t.Error("unchanged connections must stay live and indexed")
	}
	if do := b.Input("DO").Connection(); do.Disposed() || !do.InDB() {
		t.Error("statement input connection should be untouched")
	}
}

func TestReshapeRejectsOutputAndPrevious(t *testing.T) {
	ws := newTestWorkspace(t)
	b := mustBlock(t, ws, "stmt")
	err := b.Reshape(b.Inputs(), b.NewConnection(OutputValue), b.NewConnection(PreviousStatement), nil)
	if !errors.Is(err, ErrOutputAndPrevious) {
		t.Errorf("got %v", err)
	}
}

func TestReshapeFiresSingleShapeEvent(t *testing.T) {
	ws := newTestWorkspace(t)
	b := mustBlock(t, ws, "stmt")
	events := recordEvents(ws)

	extra := b.NewInput(InputTypeValue, "EXTRA")
	if err := b.Reshape(append(b.Inputs(), extra), nil, nil, b.NextConnection()); err != nil {
		t.Fatal(err)
	}
	if countEvents(*events, EventShape) != 1 {
		t.Errorf("shape events = %d", countEvents(*events, EventShape))
	}
	if b.PreviousConnection() != nil {
		t.Error("previous connection should be gone")
	}
	if !extra.Connection().InDB() {
		t.Error("new input connection should be indexed")
	}
}

func TestRemoveInputUnplugsRealChild(t *testing.T) {
	ws := newTestWorkspace(t)
	print := mustBlock(t, ws, "text_print")
	text := mustBlock(t, ws, "text")
	mustConnect(t, print.Input("TEXT").Connection(), text.OutputConnection())

	if err := print.RemoveInput("TEXT"); err != nil {
		t.Fatal(err)
	}
	if text.Disposed() || text.Parent() != nil {
		t.Error("real child should survive as a top-level block")
	}
}

// ─────────────────────────────────────────────────────────────
// Unplug and dispose
// ─────────────────────────────────────────────────────────────

func stack(t *testing.T, ws *Workspace, n int) []*Block {
	t.Helper()
	var out []*Block
	for i := 0; i < n; i++ {
		b := mustBlock(t, ws, "stmt")
		if i > 0 {
			mustConnect(t, out[i-1].NextConnection(), b.PreviousConnection())
		}
		out = append(out, b)
	}
	return out
}

func TestUnplugHealsStack(t *testing.T) {
	ws := newTestWorkspace(t)
	s := stack(t, ws, 3)
	s[1].Unplug(true)
	if s[0].NextBlock() != s[2] {
		t.Error("stack should heal around the removed block")
	}
	if s[1].Parent() != nil || s[1].NextBlock() != nil {
		t.Error("unplugged block should be alone")
	}
}

func TestUnplugWithoutHealKeepsTail(t *testing.T) {
	ws := newTestWorkspace(t)
	s := stack(t, ws, 3)
	s[1].Unplug(false)
	if s[0].NextBlock() != nil {
		t.Error("gap should stay open")
	}
	if s[1].NextBlock() != s[2] {
		t.Error("tail should follow the unplugged block")
	}
}

func TestDisposeRemovesSubtree(t *testing.T) {
	ws := newTestWorkspace(t)
	print := mustBlock(t, ws, "text_print")
	text := mustBlock(t, ws, "text")
	mustConnect(t, print.Input("TEXT").Connection(), text.OutputConnection())
	inConn := print.Input("TEXT").Connection()
	events := recordEvents(ws)

	print.Dispose(false)
	if ws.Block(print.ID()) != nil || ws.Block(text.ID()) != nil {
		t.Error("disposed blocks still reachable")
	}
	if inConn.InDB() || !inConn.Disposed() {
		t.Error("input connection should be released")
	}
	if countEvents(*events, EventDelete) != 1 {
		t.Errorf("delete events = %d", countEvents(*events, EventDelete))
	}
	if ws.ConnectionDB(InputValue).Len() != 0 || ws.ConnectionDB(OutputValue).Len() != 0 {
		t.Error("connection dbs should be empty")
	}
}

func TestDisposeHealsStack(t *testing.T) {
	ws := newTestWorkspace(t)
	s := stack(t, ws, 3)
	s[1].Dispose(true)
	if s[0].NextBlock() != s[2] {
		t.Error("expected s0 -> s2 after dispose")
	}
}

// ─────────────────────────────────────────────────────────────
// Flags and events
// ─────────────────────────────────────────────────────────────

func TestFieldChangeFiresEvent(t *testing.T) {
	ws := newTestWorkspace(t)
	b := mustBlock(t, ws, "math_number")
	events := recordEvents(ws)
	if err := b.SetFieldValue("NUM", "42"); err != nil {
		t.Fatal(err)
	}
	if len(*events) != 1 {
		t.Fatalf("events = %d", len(*events))
	}
	ev := (*events)[0]
	if ev.Type != EventChange || ev.Element != ElementField || ev.NewValue != "42" {
		t.Errorf("unexpected event %+v", ev)
	}
}

func TestCreateEventFiredOnce(t *testing.T) {
	ws := newTestWorkspace(t)
	events := recordEvents(ws)
	mustBlock(t, ws, "controls_repeat")
	if len(*events) != 1 || (*events)[0].Type != EventCreate {
		t.Errorf("expected a single create event, got %+v", *events)
	}
}

func TestSilenceSuppressesEvents(t *testing.T) {
	ws := newTestWorkspace(t)
	events := recordEvents(ws)
	restore := ws.Silence()
	mustBlock(t, ws, "stmt")
	restore()
	if len(*events) != 0 {
		t.Errorf("events while silenced: %d", len(*events))
	}
}

func TestRemovedListenerNotCalled(t *testing.T) {
	ws := newTestWorkspace(t)
	calls := 0
	remove := ws.AddChangeListener(func(Event) { calls++ })
	mustBlock(t, ws, "stmt")
	remove()
	mustBlock(t, ws, "stmt")
	if calls != 1 {
		t.Errorf("calls = %d", calls)
	}
}

func TestUnknownBlockType(t *testing.T) {
	ws := newTestWorkspace(t)
	_, err := ws.NewBlock("nope")
	if !errors.Is(err, ErrUnknownBlockType) {
		t.Errorf("got %v", err)
	}
}

func TestInputsInlineDefault(t *testing.T) {
	ws := newTestWorkspace(t)
	if !mustBlock(t, ws, "math_arithmetic").InputsInline() {
		t.Error("explicit inputsInline true ignored")
	}
}
