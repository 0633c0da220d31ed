package codegen_test

import (
	"strconv"
	"strings"
	"testing"

	"github.com/imagicbell/ublockly-sub001/internal/blocks"
	"github.com/imagicbell/ublockly-sub001/internal/codegen"
)

const toyDefs = `[
  {"type": "expr", "message0": "%1 %2",
   "args0": [{"type": "field_input", "name": "TEXT", "text": "x"},
             {"type": "field_number", "name": "ORDER", "value": 0}],
   "output": null},
  {"type": "wrap", "message0": "%1 %2",
   "args0": [{"type": "input_value", "name": "X"},
             {"type": "field_number", "name": "REQ", "value": 99}],
   "output": null},
  {"type": "say", "message0": "say %1",
   "args0": [{"type": "field_input", "name": "TEXT", "text": ""}],
   "previousStatement": null, "nextStatement": null},
  {"type": "loop", "message0": "loop %1",
   "args0": [{"type": "input_statement", "name": "DO"}],
   "previousStatement": null, "nextStatement": null}
]`

func toyLanguage() *codegen.Language {
	l := codegen.NewLanguage("toy", "  ", "if, while")
	l.Register("expr", func(c *codegen.Context, b *blocks.Block) (string, codegen.Order, error) {
		n, _ := strconv.Atoi(b.FieldValue("ORDER"))
		return b.FieldValue("TEXT"), codegen.Order(n), nil
	})
	l.Register("wrap", func(c *codegen.Context, b *blocks.Block) (string, codegen.Order, error) {
		n, _ := strconv.Atoi(b.FieldValue("REQ"))
		code, err := c.ValueToCode(b, "X", codegen.Order(n))
		return code, codegen.OrderAtomic, err
	})
	l.Register("say", func(c *codegen.Context, b *blocks.Block) (string, codegen.Order, error) {
		return "say " + b.FieldValue("TEXT") + "\n", codegen.OrderNone, nil
	})
	l.Register("loop", func(c *codegen.Context, b *blocks.Block) (string, codegen.Order, error) {
		body, err := c.StatementToCode(b, "DO")
		return "loop\n" + body + "end\n", codegen.OrderNone, err
	})
	return l
}

func toyWorkspace(t *testing.T) *blocks.Workspace {
	t.Helper()
	f := blocks.NewFactory()
	if _, err := f.LoadJSON([]byte(toyDefs)); err != nil {
		t.Fatal(err)
	}
	return blocks.NewWorkspace(f, blocks.Options{})
}

func newBlock(t *testing.T, ws *blocks.Workspace, typ string, fields ...string) *blocks.Block {
	t.Helper()
	b, err := ws.NewBlock(typ)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i+1 < len(fields); i += 2 {
		if err := b.SetFieldValue(fields[i], fields[i+1]); err != nil {
			t.Fatal(err)
		}
	}
	return b
}

// ─────────────────────────────────────────────────────────────
// Names
// ─────────────────────────────────────────────────────────────

func TestSafeName(t *testing.T) {
	cases := map[string]string{
		"count":   "count",
		"my var":  "my_var",
		"1st":     "my_1st",
		"a-b.c":   "a_b_c",
		"":        "unnamed",
		"größe":   "größe",
		"total $": "total__",
	}
	for in, want := range cases {
		if got := codegen.SafeName(in); got != want {
			t.Errorf("SafeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNameDB(t *testing.T) {
	db := codegen.NewNameDB(func(s string) bool { return s == "if" })
	if a, b := db.GetName("Foo", codegen.NameVariable), db.GetName("foo", codegen.NameVariable); a != b {
		t.Errorf("case variants map to %q and %q", a, b)
	}
	if got := db.GetName("foo", codegen.NameProcedure); got != "foo2" {
		t.Errorf("procedure foo = %q, want foo2", got)
	}
	if got := db.GetName("if", codegen.NameVariable); got != "if2" {
		t.Errorf("reserved if = %q", got)
	}
	if got := db.GetDistinctName("Foo", codegen.NameDeveloper); got != "Foo3" {
		t.Errorf("distinct Foo = %q", got)
	}
	db.Reset()
	if got := db.GetName("foo", codegen.NameProcedure); got != "foo" {
		t.Errorf("after reset = %q", got)
	}
}

func TestPrefixLines(t *testing.T) {
	if got := codegen.PrefixLines("a\nb\n", "  "); got != "  a\n  b\n" {
		t.Errorf("got %q", got)
	}
	if got := codegen.PrefixLines("", "  "); got != "" {
		t.Errorf("got %q", got)
	}
}

func TestRegisterTwicePanics(t *testing.T) {
	l := toyLanguage()
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	l.Register("say", nil)
}

// ─────────────────────────────────────────────────────────────
// Context
// ─────────────────────────────────────────────────────────────

func TestValueToCodeParenthesizesCoarserOrders(t *testing.T) {
	cases := []struct {
		inner, requested string
		want             string
	}{
		{"5", "5", "a + b"},
		{"5", "6", "a + b"},
		{"5", "4", "(a + b)"},
		{"0", "0", "a + b"},
		{"99", "99", "a + b"},
		{"99", "0", "(a + b)"},
	}
	l := toyLanguage()
	for _, tc := range cases {
		ws := toyWorkspace(t)
		outer := newBlock(t, ws, "wrap", "REQ", tc.requested)
		inner := newBlock(t, ws, "expr", "TEXT", "a + b", "ORDER", tc.inner)
		if err := outer.Input("X").Connection().Connect(inner.OutputConnection()); err != nil {
			t.Fatal(err)
		}
		got, _, err := codegen.NewContext(l, ws).BlockToCode(outer)
		if err != nil {
			t.Fatal(err)
		}
		if got != tc.want {
			t.Errorf("inner %s requested %s: got %q, want %q", tc.inner, tc.requested, got, tc.want)
		}
	}
}

func TestEmptyValueInput(t *testing.T) {
	ws := toyWorkspace(t)
	outer := newBlock(t, ws, "wrap")
	got, _, err := codegen.NewContext(toyLanguage(), ws).BlockToCode(outer)
	if err != nil || got != "" {
		t.Errorf("got %q, %v", got, err)
	}
}

func TestStatementStacksAndIndentation(t *testing.T) {
	ws := toyWorkspace(t)
	loop := newBlock(t, ws, "loop")
	first := newBlock(t, ws, "say", "TEXT", "one")
	second := newBlock(t, ws, "say", "TEXT", "two")
	if err := loop.Input("DO").Connection().Connect(first.PreviousConnection()); err != nil {
		t.Fatal(err)
	}
	if err := first.NextConnection().Connect(second.PreviousConnection()); err != nil {
		t.Fatal(err)
	}
	code, err := toyLanguage().Generate(ws)
	if err != nil {
		t.Fatal(err)
	}
	if code != "loop\n  say one\n  say two\nend\n" {
		t.Errorf("code = %q", code)
	}
}

func TestProvideFunctionOnce(t *testing.T) {
	ws := toyWorkspace(t)
	c := codegen.NewContext(toyLanguage(), ws)
	c.Names().GetName("helper", codegen.NameVariable)
	a := c.ProvideFunction("helper", "def {{name}}():\n  pass\n")
	b := c.ProvideFunction("helper", "ignored")
	if a != "helper2" || b != a {
		t.Fatalf("names = %q, %q", a, b)
	}
	defs := c.Definitions()
	if len(defs) != 1 || !strings.HasPrefix(defs[0], "def helper2():") {
		t.Errorf("definitions = %q", defs)
	}
}

func TestDefinitionsKeepInsertionOrder(t *testing.T) {
	c := codegen.NewContext(toyLanguage(), toyWorkspace(t))
	c.AddDefinition("b", "second")
	c.AddDefinition("a", "first")
	c.AddDefinition("b", "replaced")
	if got := strings.Join(c.Definitions(), ","); got != "replaced,first" {
		t.Errorf("definitions = %s", got)
	}
}
