package blocks

import (
	"testing"
)

const testDefs = `[
  {"type": "math_number", "message0": "%1",
   "args0": [{"type": "field_number", "name": "NUM", "value": 0}],
   "output": "Number"},
  {"type": "text", "message0": "\" %1 \"",
   "args0": [{"type": "field_input", "name": "TEXT", "text": ""}],
   "output": "String"},
  {"type": "math_arithmetic", "message0": "%1 %2 %3",
   "args0": [
     {"type": "input_value", "name": "A", "check": "Number"},
     {"type": "field_dropdown", "name": "OP", "options": [["+", "ADD"], ["-", "MINUS"]]},
     {"type": "input_value", "name": "B", "check": "Number"}],
   "inputsInline": true, "output": "Number"},
  {"type": "math_single", "message0": "%1 %2",
   "args0": [
     {"type": "field_dropdown", "name": "OP", "options": [["-", "NEG"], ["abs", "ABS"]]},
     {"type": "input_value", "name": "NUM", "check": "Number"}],
   "output": "Number"},
  {"type": "text_print", "message0": "print %1",
   "args0": [{"type": "input_value", "name": "TEXT"}],
   "previousStatement": null, "nextStatement": null},
  {"type": "stmt", "message0": "do %1",
   "args0": [{"type": "field_input", "name": "NAME", "text": "x"}],
   "previousStatement": null, "nextStatement": null},
  {"type": "terminal", "message0": "stop",
   "previousStatement": null},
  {"type": "controls_repeat", "message0": "repeat %1 times",
   "args0": [{"type": "field_number", "name": "TIMES", "value": 10, "min": 0, "precision": 1}],
   "message1": "do %1",
   "args1": [{"type": "input_statement", "name": "DO"}],
   "previousStatement": null, "nextStatement": null},
  {"type": "variables_get", "message0": "%1",
   "args0": [{"type": "field_variable", "name": "VAR", "variable": "item"}],
   "output": null}
]`

func newTestWorkspace(t *testing.T) *Workspace {
	t.Helper()
	f := NewFactory()
	if _, err := f.LoadJSON([]byte(testDefs)); err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}
	return NewWorkspace(f, Options{})
}

func mustBlock(t *testing.T, ws *Workspace, typ string) *Block {
	t.Helper()
	b, err := ws.NewBlock(typ)
	if err != nil {
		t.Fatalf("NewBlock(%q): %v", typ, err)
	}
	return b
}

func mustConnect(t *testing.T, parent, child *Connection) {
	t.Helper()
	if err := parent.Connect(child); err != nil {
		t.Fatalf("Connect: %v", err)
	}
}

// recordEvents collects every event fired on ws.
func recordEvents(ws *Workspace) *[]Event {
	var events []Event
	ws.AddChangeListener(func(ev Event) { events = append(events, ev) })
	return &events
}

func countEvents(events []Event, typ EventType) int {
	n := 0
	for _, ev := range events {
		if ev.Type == typ {
			n++
		}
	}
	return n
}
