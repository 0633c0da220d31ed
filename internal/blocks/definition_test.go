package blocks

import (
	"errors"
	"testing"
)

func TestParseDefinitionInterpolation(t *testing.T) {
	def, err := ParseDefinition(map[string]any{
		"type":     "demo",
		"message0": "set %2 to %1",
		"args0": []any{
			map[string]any{"type": "input_value", "name": "VALUE"},
			map[string]any{"type": "field_variable", "name": "VAR", "variable": "x"},
		},
		"message1":          "then",
		"lastDummyAlign1":   "RIGHT",
		"previousStatement": nil,
		"nextStatement":     []any{"A", "B"},
	})
	if err != nil {
		t.Fatalf("ParseDefinition: %v", err)
	}
	if len(def.Inputs) != 2 {
		t.Fatalf("inputs = %d", len(def.Inputs))
	}
	first := def.Inputs[0]
	if first.Name != "VALUE" || len(first.Fields) != 3 {
		t.Fatalf("first input = %+v", first)
	}
	if first.Fields[0].Text != "set" || first.Fields[1].Kind != "field_variable" || first.Fields[2].Text != "to" {
		t.Errorf("fields out of order: %+v", first.Fields)
	}
	last := def.Inputs[1]
	if last.Type != InputTypeDummy || last.Align != AlignRight || last.Fields[0].Text != "then" {
		t.Errorf("trailing dummy = %+v", last)
	}
	if def.Previous == nil || def.Previous.Check != nil {
		t.Error("null previous should accept anything")
	}
	if def.Next == nil || len(def.Next.Check) != 2 {
		t.Error("next check list lost")
	}
}

func TestParseDefinitionAltFallback(t *testing.T) {
	def, err := ParseDefinition(map[string]any{
		"type":     "demo",
		"message0": "%1",
		"args0": []any{
			map[string]any{
				"type": "field_fancy", "name": "F",
				"alt": map[string]any{"type": "field_input", "name": "F", "text": "plain"},
			},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if f := def.Inputs[0].Fields[0]; f.Kind != "field_input" || f.Text != "plain" {
		t.Errorf("alt not used: %+v", f)
	}
}

func TestParseDefinitionErrors(t *testing.T) {
	cases := map[string]map[string]any{
		"output and previous": {"type": "x", "output": nil, "previousStatement": nil},
		"unused arg": {"type": "x", "message0": "a",
			"args0": []any{map[string]any{"type": "input_dummy"}}},
		"duplicate index": {"type": "x", "message0": "%1 %1",
			"args0": []any{map[string]any{"type": "input_value", "name": "A"}}},
		"out of range": {"type": "x", "message0": "%2",
			"args0": []any{map[string]any{"type": "input_value", "name": "A"}}},
		"unknown field": {"type": "x", "message0": "%1",
			"args0": []any{map[string]any{"type": "field_fancy", "name": "F"}}},
		"missing type": {"message0": "a"},
	}
	for name, raw := range cases {
		_, err := ParseDefinition(raw)
		var se *SchemaError
		if !errors.As(err, &se) {
			t.Errorf("%s: expected SchemaError, got %v", name, err)
		}
	}
}

func TestLoadJSONKeepsGoodRecords(t *testing.T) {
	f := NewFactory()
	types, err := f.LoadJSON([]byte(`[
	  {"type": "good", "message0": "ok"},
	  {"type": "bad", "output": null, "previousStatement": null}
	]`))
	if err == nil {
		t.Error("expected an error for the bad record")
	}
	if len(types) != 1 || types[0] != "good" {
		t.Errorf("loaded = %v", types)
	}
	if _, ok := f.Definition("bad"); ok {
		t.Error("bad record registered")
	}
}

func TestRegisterMutatorTwicePanics(t *testing.T) {
	f := NewFactory()
	f.RegisterMutator("m", func() Mutator { return nil })
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	f.RegisterMutator("m", func() Mutator { return nil })
}
