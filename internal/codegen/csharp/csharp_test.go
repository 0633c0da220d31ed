package csharp_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/imagicbell/ublockly-sub001/internal/blocks"
	"github.com/imagicbell/ublockly-sub001/internal/codegen"
	"github.com/imagicbell/ublockly-sub001/internal/codegen/csharp"
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

func get(name string) string {
	return `<block type="variables_get"><field name="VAR" id="v` + name + `">` + name + `</field></block>`
}

func minus(a, b string) string {
	return `<block type="math_arithmetic"><field name="OP">MINUS</field>` +
		`<value name="A">` + a + `</value><value name="B">` + b + `</value></block>`
}

const abc = `<variables><variable id="va">a</variable><variable id="vb">b</variable><variable id="vc">c</variable></variables>`

func exprCode(t *testing.T, ws *blocks.Workspace) string {
	t.Helper()
	top := ws.TopBlocks(true)
	if len(top) != 1 {
		t.Fatalf("top blocks = %d", len(top))
	}
	code, _, err := codegen.NewContext(csharp.Language(), ws).BlockToCode(top[0])
	if err != nil {
		t.Fatal(err)
	}
	return code
}

// ─────────────────────────────────────────────────────────────
// Precedence
// ─────────────────────────────────────────────────────────────

func TestRightNestedSubtractionIsParenthesized(t *testing.T) {
	ws := load(t, `<xml>`+abc+minus(get("a"), minus(get("b"), get("c")))+`</xml>`)
	if got := exprCode(t, ws); got != "a - (b - c)" {
		t.Errorf("got %q", got)
	}
}

func TestLeftNestedSubtractionIsNot(t *testing.T) {
	ws := load(t, `<xml>`+abc+minus(minus(get("a"), get("b")), get("c"))+`</xml>`)
	if got := exprCode(t, ws); got != "a - b - c" {
		t.Errorf("got %q", got)
	}
}

func TestTighterOperandNeedsNoParentheses(t *testing.T) {
	mul := `<block type="math_arithmetic"><field name="OP">MULTIPLY</field>` +
		`<value name="A">` + get("b") + `</value><value name="B">` + get("c") + `</value></block>`
	ws := load(t, `<xml>`+abc+minus(get("a"), mul)+`</xml>`)
	if got := exprCode(t, ws); got != "a - b * c" {
		t.Errorf("got %q", got)
	}
}

func TestNegatingNegativeLiteral(t *testing.T) {
	ws := load(t, `<xml><block type="math_single"><field name="OP">NEG</field>
		<value name="NUM"><block type="math_number"><field name="NUM">-3</field></block></value></block></xml>`)
	if got := exprCode(t, ws); got != "-(-3)" {
		t.Errorf("got %q", got)
	}
}

// ─────────────────────────────────────────────────────────────
// Whole programs
// ─────────────────────────────────────────────────────────────

const setAndPrint = `<xml>
  <variables><variable id="vx">x</variable><variable id="vy">y</variable></variables>
  <block type="variables_set" x="0" y="0">
    <field name="VAR" id="vx">x</field>
    <value name="VALUE"><block type="math_number"><field name="NUM">3</field></block></value>
    <next><block type="variables_set">
      <field name="VAR" id="vy">y</field>
      <value name="VALUE"><block type="math_number"><field name="NUM">5</field></block></value>
      <next><block type="text_print">
        <value name="TEXT">` + `<block type="math_arithmetic"><field name="OP">MINUS</field>
          <value name="A"><block type="variables_get"><field name="VAR" id="vx">x</field></block></value>
          <value name="B"><block type="variables_get"><field name="VAR" id="vy">y</field></block></value>
        </block></value>
      </block></next>
    </block></next>
  </block>
</xml>`

func TestSetAndPrintProgram(t *testing.T) {
	ws := load(t, setAndPrint)
	code, err := csharp.Language().Generate(ws)
	if err != nil {
		t.Fatal(err)
	}
	want := "using System;\n\n" +
		"dynamic x = null;\ndynamic y = null;\n\n" +
		"x = 3;\ny = 5;\nConsole.WriteLine(x - y);\n"
	if code != want {
		t.Errorf("code =\n%s\nwant\n%s", code, want)
	}
}

func TestGenerateTwiceIsIdentical(t *testing.T) {
	ws := load(t, setAndPrint)
	ctx := codegen.NewContext(csharp.Language(), ws)
	first, err := ctx.WorkspaceToCode()
	if err != nil {
		t.Fatal(err)
	}
	second, err := ctx.WorkspaceToCode()
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("second run differs:\n%s\n---\n%s", first, second)
	}
}

func TestReservedVariableNameIsRenamed(t *testing.T) {
	ws := load(t, `<xml><variables><variable id="v1">class</variable></variables>
		<block type="variables_set"><field name="VAR" id="v1">class</field>
		<value name="VALUE"><block type="logic_boolean"><field name="BOOL">TRUE</field></block></value></block></xml>`)
	code, err := csharp.Language().Generate(ws)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(code, "dynamic class2 = null;") || !strings.Contains(code, "class2 = true;") {
		t.Errorf("code =\n%s", code)
	}
}

func TestDisabledBlockIsSkipped(t *testing.T) {
	ws := load(t, `<xml>
	  <block type="text_print"><value name="TEXT"><block type="text"><field name="TEXT">one</field></block></value>
	    <next><block type="text_print" disabled="true"><value name="TEXT"><block type="text"><field name="TEXT">two</field></block></value>
	      <next><block type="text_print"><value name="TEXT"><block type="text"><field name="TEXT">three</field></block></value></block></next>
	    </block></next>
	  </block></xml>`)
	code, err := csharp.Language().Generate(ws)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(code, `"two"`) {
		t.Errorf("disabled block emitted:\n%s", code)
	}
	if !strings.Contains(code, "Console.WriteLine(\"one\");\nConsole.WriteLine(\"three\");\n") {
		t.Errorf("code =\n%s", code)
	}
}

func TestUnknownBlockTypeNamesLanguage(t *testing.T) {
	f, err := schema.NewStandardFactory()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.LoadJSON([]byte(`[{"type": "robot_beep", "previousStatement": null}]`)); err != nil {
		t.Fatal(err)
	}
	ws := blocks.NewWorkspace(f, blocks.Options{})
	if _, err := ws.NewBlock("robot_beep"); err != nil {
		t.Fatal(err)
	}
	_, err = csharp.Language().Generate(ws)
	var ue *codegen.UnknownBlockError
	if !errors.As(err, &ue) || ue.Language != "csharp" || ue.BlockType != "robot_beep" {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(err.Error(), "csharp") || !strings.Contains(err.Error(), "robot_beep") {
		t.Errorf("message = %q", err.Error())
	}
}

func TestEveryStandardBlockHasAnEmitter(t *testing.T) {
	f, err := schema.NewStandardFactory()
	if err != nil {
		t.Fatal(err)
	}
	for _, typ := range f.Types() {
		if !csharp.Language().Supports(typ) {
			t.Errorf("no emitter for %s", typ)
		}
	}
}

// ─────────────────────────────────────────────────────────────
// Control flow and procedures
// ─────────────────────────────────────────────────────────────

func TestIfElseChain(t *testing.T) {
	ws := load(t, `<xml><block type="controls_if"><mutation elseif="1" else="1"/>
	  <value name="IF0"><block type="logic_boolean"><field name="BOOL">TRUE</field></block></value>
	  <statement name="DO0"><block type="text_print"><value name="TEXT"><block type="text"><field name="TEXT">a</field></block></value></block></statement>
	  <value name="IF1"><block type="logic_boolean"><field name="BOOL">FALSE</field></block></value>
	  <statement name="ELSE"><block type="text_print"><value name="TEXT"><block type="text"><field name="TEXT">c</field></block></value></block></statement>
	</block></xml>`)
	code, err := csharp.Language().Generate(ws)
	if err != nil {
		t.Fatal(err)
	}
	want := "if (true)\n{\n    Console.WriteLine(\"a\");\n}\nelse if (false)\n{\n}\nelse\n{\n    Console.WriteLine(\"c\");\n}\n"
	if !strings.HasSuffix(code, want) {
		t.Errorf("code =\n%s", code)
	}
}

func TestRepeatCachesComputedBound(t *testing.T) {
	ws := load(t, `<xml><variables><variable id="vn">n</variable></variables>
	  <block type="controls_repeat_ext"><value name="TIMES">`+
		`<block type="math_arithmetic"><field name="OP">ADD</field>
		  <value name="A"><block type="variables_get"><field name="VAR" id="vn">n</field></block></value>
		  <value name="B"><block type="math_number"><field name="NUM">1</field></block></value></block>`+
		`</value></block></xml>`)
	code, err := csharp.Language().Generate(ws)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(code, "dynamic repeat_end = n + 1;\nfor (int count = 0; count < repeat_end; count++)") {
		t.Errorf("code =\n%s", code)
	}
}

func TestProcedureDefinitionAndCall(t *testing.T) {
	ws := load(t, `<xml>
	  <variables><variable id="vw">w</variable><variable id="vh">h</variable></variables>
	  <block type="procedures_defreturn" x="0" y="0">
	    <mutation statements="false"><arg name="w" varid="vw"/><arg name="h" varid="vh"/></mutation>
	    <field name="NAME">area</field>
	    <value name="RETURN"><block type="math_arithmetic"><field name="OP">MULTIPLY</field>
	      <value name="A"><block type="variables_get"><field name="VAR" id="vw">w</field></block></value>
	      <value name="B"><block type="variables_get"><field name="VAR" id="vh">h</field></block></value>
	    </block></value>
	  </block>
	  <block type="text_print" x="0" y="100">
	    <value name="TEXT"><block type="procedures_callreturn">
	      <mutation name="area"><arg name="w"/><arg name="h"/></mutation>
	      <value name="ARG0"><block type="math_number"><field name="NUM">2</field></block></value>
	      <value name="ARG1"><block type="math_number"><field name="NUM">4</field></block></value>
	    </block></value>
	  </block>
	</xml>`)
	code, err := csharp.Language().Generate(ws)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(code, "dynamic area(dynamic w, dynamic h)\n{\n    return w * h;\n}") {
		t.Errorf("definition missing:\n%s", code)
	}
	if !strings.Contains(code, "Console.WriteLine(area(2, 4));") {
		t.Errorf("call missing:\n%s", code)
	}
}

func TestPrimeHelperProvidedOnce(t *testing.T) {
	prime := func(n string) string {
		return `<block type="math_number_property"><field name="PROPERTY">PRIME</field>` +
			`<value name="NUMBER_TO_CHECK"><block type="math_number"><field name="NUM">` + n + `</field></block></value></block>`
	}
	ws := load(t, `<xml>
	  <block type="text_print" x="0" y="0"><value name="TEXT">`+prime("7")+`</value>
	    <next><block type="text_print"><value name="TEXT">`+prime("9")+`</value></block></next>
	  </block></xml>`)
	code, err := csharp.Language().Generate(ws)
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(code, "bool mathIsPrime(dynamic n)"); n != 1 {
		t.Errorf("helper defined %d times:\n%s", n, code)
	}
	if !strings.Contains(code, "Console.WriteLine(mathIsPrime(7));\nConsole.WriteLine(mathIsPrime(9));") {
		t.Errorf("code =\n%s", code)
	}
}
