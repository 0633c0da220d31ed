package blocks

import (
	"strings"
	"testing"
)

const sampleWorkspace = `<xml>
  <variables>
    <variable id="v1">count</variable>
  </variables>
  <block type="controls_repeat" id="r1" x="20" y="30">
    <field name="TIMES">3</field>
    <statement name="DO">
      <block type="text_print" id="p1">
        <value name="TEXT">
          <shadow type="text" id="s1"><field name="TEXT">hi</field></shadow>
          <block type="variables_get" id="g1"><field name="VAR" id="v1">count</field></block>
        </value>
      </block>
    </statement>
    <next>
      <block type="stmt" id="n1" disabled="true"><field name="NAME">tail</field></block>
    </next>
  </block>
</xml>`

func TestWorkspaceXMLRoundTrip(t *testing.T) {
	ws := newTestWorkspace(t)
	loaded, err := TextToWorkspace(ws, sampleWorkspace)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("top blocks = %d", len(loaded))
	}
	r := ws.Block("r1")
	if r == nil || r.FieldValue("TIMES") != "3" {
		t.Fatal("repeat block not restored")
	}
	if x, y := r.XY(); x != 20 || y != 30 {
		t.Errorf("position = (%v,%v)", x, y)
	}
	p := r.InputTargetBlock("DO")
	if p == nil || p.ID() != "p1" {
		t.Fatal("statement child missing")
	}
	get := p.InputTargetBlock("TEXT")
	if get == nil || get.Field("VAR").Text() != "count" {
		t.Fatal("variable reference not restored")
	}
	if p.Input("TEXT").Connection().ShadowXML() == nil {
		t.Error("shadow payload lost under a real block")
	}
	if n := r.NextBlock(); n == nil || !n.Disabled() || n.FieldValue("NAME") != "tail" {
		t.Error("next block not restored")
	}

	text := WorkspaceToText(ws)
	ws2 := newTestWorkspace(t)
	if _, err := TextToWorkspace(ws2, text); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again := WorkspaceToText(ws2); again != text {
		t.Errorf("round trip changed the document:\n%s\n---\n%s", text, again)
	}
}

func TestLoadSkipsBadTopBlock(t *testing.T) {
	ws := newTestWorkspace(t)
	loaded, err := TextToWorkspace(ws, `<xml>
  <block type="missing"/>
  <block type="stmt" id="ok"/>
</xml>`)
	if err == nil {
		t.Error("expected an error for the unknown type")
	}
	if len(loaded) != 1 || loaded[0].ID() != "ok" {
		t.Error("good block should still load")
	}
}

func TestLoadUnknownInputIsSchemaError(t *testing.T) {
	ws := newTestWorkspace(t)
	_, err := TextToWorkspace(ws, `<xml><block type="text_print"><value name="NOPE"><block type="text"/></value></block></xml>`)
	if err == nil || !strings.Contains(err.Error(), "NOPE") {
		t.Errorf("got %v", err)
	}
	if len(ws.AllBlocks()) != 0 {
		t.Errorf("partial block left behind: %d", len(ws.AllBlocks()))
	}
}

func TestBlockToXMLOmitsLabels(t *testing.T) {
	ws := newTestWorkspace(t)
	b := mustBlock(t, ws, "text_print")
	el := BlockToXML(b, false)
	if el.HasAttr("id") {
		t.Error("id written without withID")
	}
	if len(el.ChildrenByTag("field")) != 0 {
		t.Error("label fields must not be serialized")
	}
}
