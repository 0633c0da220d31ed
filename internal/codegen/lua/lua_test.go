package lua_test

import (
	"strings"
	"testing"

	"github.com/imagicbell/ublockly-sub001/internal/blocks"
	"github.com/imagicbell/ublockly-sub001/internal/codegen"
	"github.com/imagicbell/ublockly-sub001/internal/codegen/lua"
	"github.com/imagicbell/ublockly-sub001/internal/schema"
)

func load(t *testing.T, xml string) *blocks.Workspace {
	t.Helper()
	f, err := schema.NewStandardFactory()
	if err != nil {
		t.Fatal(err)
	}
	ws := blocks.NewWorkspace(f, blocks.Options{})
	if _, err := blocks.TextToWorkspace(ws, xml); err != nil {
		t.Fatalf("load xml: %v", err)
	}
	return ws
}

func num(n string) string {
	return `<block type="math_number"><field name="NUM">` + n + `</field></block>`
}

func arith(op, a, b string) string {
	return `<block type="math_arithmetic"><field name="OP">` + op + `</field>` +
		`<value name="A">` + a + `</value><value name="B">` + b + `</value></block>`
}

func exprCode(t *testing.T, xml string) string {
	t.Helper()
	ws := load(t, `<xml>`+xml+`</xml>`)
	code, _, err := codegen.NewContext(lua.Language(), ws).BlockToCode(ws.TopBlocks(true)[0])
	if err != nil {
		t.Fatal(err)
	}
	return code
}

func generate(t *testing.T, xml string) string {
	t.Helper()
	code, err := lua.Language().Generate(load(t, xml))
	if err != nil {
		t.Fatal(err)
	}
	return code
}

// ─────────────────────────────────────────────────────────────
// Precedence
// ─────────────────────────────────────────────────────────────

func TestOperatorOrders(t *testing.T) {
	cases := []struct {
		name string
		xml  string
		want string
	}{
		{"right nested minus", arith("MINUS", num("1"), arith("MINUS", num("2"), num("3"))), "1 - (2 - 3)"},
		{"left nested minus", arith("MINUS", arith("MINUS", num("1"), num("2")), num("3")), "1 - 2 - 3"},
		{"power is right associative", arith("POWER", num("2"), arith("POWER", num("3"), num("4"))), "2 ^ 3 ^ 4"},
		{"left power", arith("POWER", arith("POWER", num("2"), num("3")), num("4")), "(2 ^ 3) ^ 4"},
		{"negative base", arith("POWER", num("-2"), num("2")), "(-2) ^ 2"},
		{"sum times", arith("MULTIPLY", arith("ADD", num("1"), num("2")), num("3")), "(1 + 2) * 3"},
	}
	for _, tc := range cases {
		if got := exprCode(t, tc.xml); got != tc.want {
			t.Errorf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestTernaryUsesAndOr(t *testing.T) {
	xml := `<block type="logic_ternary">
	  <value name="IF"><block type="logic_boolean"><field name="BOOL">TRUE</field></block></value>
	  <value name="THEN">` + num("1") + `</value>
	  <value name="ELSE">` + num("2") + `</value></block>`
	if got := exprCode(t, xml); got != "true and 1 or 2" {
		t.Errorf("got %q", got)
	}
}

func TestIndexingTableConstructor(t *testing.T) {
	xml := `<block type="lists_getIndex"><mutation statement="false" at="true"/>
	  <field name="MODE">GET</field><field name="WHERE">FROM_START</field>
	  <value name="VALUE"><block type="lists_create_with"><mutation items="2"/>
	    <value name="ADD0">` + num("5") + `</value><value name="ADD1">` + num("6") + `</value></block></value>
	  <value name="AT">` + num("2") + `</value></block>`
	if got := exprCode(t, xml); got != "({5, 6})[2]" {
		t.Errorf("got %q", got)
	}
}

// ─────────────────────────────────────────────────────────────
// Whole programs
// ─────────────────────────────────────────────────────────────

func TestSetAndPrintProgram(t *testing.T) {
	code := generate(t, `<xml>
	  <variables><variable id="vx">x</variable><variable id="vy">y</variable></variables>
	  <block type="variables_set">
	    <field name="VAR" id="vx">x</field><value name="VALUE">`+num("3")+`</value>
	    <next><block type="variables_set">
	      <field name="VAR" id="vy">y</field><value name="VALUE">`+num("5")+`</value>
	      <next><block type="text_print"><value name="TEXT">`+
		`<block type="math_arithmetic"><field name="OP">MINUS</field>
	          <value name="A"><block type="variables_get"><field name="VAR" id="vx">x</field></block></value>
	          <value name="B"><block type="variables_get"><field name="VAR" id="vy">y</field></block></value>
	        </block></value></block></next>
	    </block></next>
	  </block></xml>`)
	want := "local x, y\n\nx = 3\ny = 5\nprint(x - y)\n"
	if code != want {
		t.Errorf("code =\n%s\nwant\n%s", code, want)
	}
}

func TestReservedWordsAreAvoided(t *testing.T) {
	code := generate(t, `<xml><variables><variable id="v1">end</variable></variables>
	  <block type="variables_set"><field name="VAR" id="v1">end</field><value name="VALUE">`+num("1")+`</value></block></xml>`)
	if !strings.Contains(code, "local end2\n") || !strings.Contains(code, "end2 = 1\n") {
		t.Errorf("code =\n%s", code)
	}
}

func TestContinueAddsLabel(t *testing.T) {
	code := generate(t, `<xml><block type="controls_whileUntil"><field name="MODE">UNTIL</field>
	  <value name="BOOL"><block type="logic_boolean"><field name="BOOL">FALSE</field></block></value>
	  <statement name="DO"><block type="controls_flow_statements"><field name="FLOW">CONTINUE</field></block></statement>
	</block></xml>`)
	want := "while not false do\n  goto continue\n  ::continue::\nend\n"
	if code != want {
		t.Errorf("code =\n%s", code)
	}
}

func TestForLoopCountsDown(t *testing.T) {
	code := generate(t, `<xml><variables><variable id="vi">i</variable></variables>
	  <block type="controls_for"><field name="VAR" id="vi">i</field>
	    <value name="FROM">`+num("10")+`</value><value name="TO">`+num("1")+`</value><value name="BY">`+num("2")+`</value>
	  </block></xml>`)
	if !strings.Contains(code, "for i = 10, 1, -2 do\nend\n") {
		t.Errorf("code =\n%s", code)
	}
}

func TestEveryStandardBlockHasAnEmitter(t *testing.T) {
	f, err := schema.NewStandardFactory()
	if err != nil {
		t.Fatal(err)
	}
	for _, typ := range f.Types() {
		if !lua.Language().Supports(typ) {
			t.Errorf("no emitter for %s", typ)
		}
	}
}
