package interp_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/imagicbell/ublockly-sub001/internal/blocks"
	"github.com/imagicbell/ublockly-sub001/internal/interp"
	"github.com/imagicbell/ublockly-sub001/internal/schema"
)

func load(t *testing.T, mode blocks.ScheduleMode, xml string) *blocks.Workspace {
	t.Helper()
	f, err := schema.NewStandardFactory()
	if err != nil {
		t.Fatal(err)
	}
	ws := blocks.NewWorkspace(f, blocks.Options{ScheduleMode: mode})
	if _, err := blocks.TextToWorkspace(ws, xml); err != nil {
		t.Fatalf("load xml: %v", err)
	}
	return ws
}

func num(n string) string {
	return `<block type="math_number"><field name="NUM">` + n + `</field></block>`
}

func text(s string) string {
	return `<block type="text"><field name="TEXT">` + s + `</field></block>`
}

func get(id, name string) string {
	return `<block type="variables_get"><field name="VAR" id="` + id + `">` + name + `</field></block>`
}

// printStack chains text_print blocks for each line.
func printStack(lines ...string) string {
	out := ""
	for i := len(lines) - 1; i >= 0; i-- {
		next := ""
		if out != "" {
			next = "<next>" + out + "</next>"
		}
		out = `<block type="text_print"><value name="TEXT">` + text(lines[i]) + `</value>` + next + `</block>`
	}
	return out
}

func at(y string, block string) string {
	return strings.Replace(block, "<block ", `<block x="0" y="`+y+`" `, 1)
}

const forever = `<xml><block type="controls_whileUntil" x="0" y="0">
  <field name="MODE">WHILE</field>
  <value name="BOOL"><block type="logic_boolean"><field name="BOOL">TRUE</field></block></value>
</block></xml>`

// runToEnd drives frames until the run leaves the active states.
func runToEnd(t *testing.T, r *interp.Runner) {
	t.Helper()
	for i := 0; i < 1000 && r.Status().Active(); i++ {
		r.Frame()
	}
	if r.Status().Active() {
		t.Fatalf("run still %s after 1000 frames", r.Status())
	}
}

type statusLog struct {
	got []interp.Status
}

func (l *statusLog) add(s interp.Status) { l.got = append(l.got, s) }

func (l *statusLog) String() string {
	parts := make([]string, len(l.got))
	for i, s := range l.got {
		parts[i] = s.String()
	}
	return strings.Join(parts, ",")
}

// ─────────────────────────────────────────────────────────────
// Values
// ─────────────────────────────────────────────────────────────

func TestTruthiness(t *testing.T) {
	cases := []struct {
		v    interp.Value
		want bool
	}{
		{interp.Null(), false},
		{interp.Bool(true), true},
		{interp.Number(0), false},
		{interp.Number(-1), true},
		{interp.String(""), false},
		{interp.String("0"), true},
		{interp.NewList(), true},
	}
	for _, c := range cases {
		if got := c.v.Truthy(); got != c.want {
			t.Errorf("%v (%s): got %v", c.v, c.v.Kind(), got)
		}
	}
}

func TestNumericTextEqualsNumber(t *testing.T) {
	if !interp.String("3").Equal(interp.Number(3)) {
		t.Error(`"3" should equal 3`)
	}
	if interp.String("x").Equal(interp.Number(0)) {
		t.Error(`"x" should not equal 0`)
	}
	if _, err := interp.String("x").Number(); err == nil {
		t.Error("expected conversion error")
	}
}

func TestValueText(t *testing.T) {
	l := interp.NewList(interp.Number(2.5), interp.String("a"), interp.Bool(true))
	if got := l.String(); got != "2.5,a,true" {
		t.Errorf("got %q", got)
	}
	if got := interp.Number(10).String(); got != "10" {
		t.Errorf("got %q", got)
	}
}

func TestDuplicateExecutorPanics(t *testing.T) {
	tbl := interp.NewTable()
	tbl.Stmt("x", func(*interp.Env, *blocks.Block) error { return nil })
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	tbl.Stmt("x", func(*interp.Env, *blocks.Block) error { return nil })
}

func TestEveryStandardBlockHasAnExecutor(t *testing.T) {
	f, err := schema.NewStandardFactory()
	if err != nil {
		t.Fatal(err)
	}
	for _, typ := range f.Types() {
		if !interp.Standard().Supports(typ) {
			t.Errorf("no executor for %s", typ)
		}
	}
}

// ─────────────────────────────────────────────────────────────
// Programs
// ─────────────────────────────────────────────────────────────

const setAndPrint = `<xml>
  <variables><variable id="vx">x</variable><variable id="vy">y</variable></variables>
  <block type="variables_set" x="0" y="0">
    <field name="VAR" id="vx">x</field>
    <value name="VALUE">` + `<block type="math_number"><field name="NUM">3</field></block>` + `</value>
    <next><block type="variables_set">
      <field name="VAR" id="vy">y</field>
      <value name="VALUE"><block type="math_number"><field name="NUM">5</field></block></value>
      <next><block type="text_print">
        <value name="TEXT"><block type="math_arithmetic"><field name="OP">MINUS</field>
          <value name="A"><block type="variables_get"><field name="VAR" id="vx">x</field></block></value>
          <value name="B"><block type="variables_get"><field name="VAR" id="vy">y</field></block></value>
        </block></value>
      </block></next>
    </block></next>
  </block>
</xml>`

func TestSetAndPrint(t *testing.T) {
	ws := load(t, blocks.ScheduleSequential, setAndPrint)
	var out bytes.Buffer
	r := interp.NewRunner(interp.Options{Output: &out})
	if err := r.Run(ws); err != nil {
		t.Fatal(err)
	}
	runToEnd(t, r)
	if r.Status() != interp.StatusFinished {
		t.Fatalf("status = %s (%v)", r.Status(), r.LastError())
	}
	if out.String() != "-2\n" {
		t.Errorf("output = %q", out.String())
	}
	if g := r.Globals(); !g["x"].Equal(interp.Number(3)) || !g["y"].Equal(interp.Number(5)) {
		t.Errorf("globals = %v", g)
	}
}

func TestLoopWithBreakAndContinue(t *testing.T) {
	eq := func(n string) string {
		return `<block type="logic_compare"><field name="OP">EQ</field>
		  <value name="A">` + get("vi", "i") + `</value><value name="B">` + num(n) + `</value></block>`
	}
	flow := func(kind string) string {
		return `<block type="controls_flow_statements"><field name="FLOW">` + kind + `</field></block>`
	}
	ws := load(t, blocks.ScheduleSequential, `<xml>
	  <variables><variable id="vi">i</variable></variables>
	  <block type="controls_for" x="0" y="0">
	    <field name="VAR" id="vi">i</field>
	    <value name="FROM">`+num("1")+`</value>
	    <value name="TO">`+num("5")+`</value>
	    <value name="BY">`+num("1")+`</value>
	    <statement name="DO">
	      <block type="controls_if"><value name="IF0">`+eq("3")+`</value><statement name="DO0">`+flow("CONTINUE")+`</statement>
	      <next><block type="text_print"><value name="TEXT">`+get("vi", "i")+`</value>
	      <next><block type="controls_if"><value name="IF0">`+eq("4")+`</value><statement name="DO0">`+flow("BREAK")+`</statement>
	      </block></next></block></next></block>
	    </statement>
	  </block>
	</xml>`)
	var out bytes.Buffer
	r := interp.NewRunner(interp.Options{Output: &out})
	if err := r.Run(ws); err != nil {
		t.Fatal(err)
	}
	runToEnd(t, r)
	if out.String() != "1\n2\n4\n" {
		t.Errorf("output = %q (%v)", out.String(), r.LastError())
	}
}

func TestProcedureReturnsValue(t *testing.T) {
	ws := load(t, blocks.ScheduleSequential, `<xml>
	  <variables><variable id="vw">w</variable><variable id="vh">h</variable></variables>
	  <block type="procedures_defreturn" x="0" y="0">
	    <mutation statements="false"><arg name="w" varid="vw"/><arg name="h" varid="vh"/></mutation>
	    <field name="NAME">area</field>
	    <value name="RETURN"><block type="math_arithmetic"><field name="OP">MULTIPLY</field>
	      <value name="A">`+get("vw", "w")+`</value>
	      <value name="B">`+get("vh", "h")+`</value>
	    </block></value>
	  </block>
	  <block type="text_print" x="0" y="100">
	    <value name="TEXT"><block type="procedures_callreturn">
	      <mutation name="area"><arg name="w"/><arg name="h"/></mutation>
	      <value name="ARG0">`+num("2")+`</value>
	      <value name="ARG1">`+num("4")+`</value>
	    </block></value>
	  </block>
	</xml>`)
	var out bytes.Buffer
	r := interp.NewRunner(interp.Options{Output: &out})
	if err := r.Run(ws); err != nil {
		t.Fatal(err)
	}
	runToEnd(t, r)
	if out.String() != "8\n" {
		t.Errorf("output = %q (%v)", out.String(), r.LastError())
	}
	if g := r.Globals(); len(g) != 0 {
		t.Errorf("arguments leaked into globals: %v", g)
	}
}

func TestIfReturnLeavesProcedureEarly(t *testing.T) {
	ws := load(t, blocks.ScheduleSequential, `<xml>
	  <block type="procedures_defreturn" x="0" y="0">
	    <field name="NAME">pick</field>
	    <statement name="STACK"><block type="procedures_ifreturn">
	      <value name="CONDITION"><block type="logic_boolean"><field name="BOOL">TRUE</field></block></value>
	      <value name="VALUE">`+num("7")+`</value>
	    </block></statement>
	    <value name="RETURN">`+num("1")+`</value>
	  </block>
	  <block type="text_print" x="0" y="200">
	    <value name="TEXT"><block type="procedures_callreturn"><mutation name="pick"/></block></value>
	  </block>
	</xml>`)
	var out bytes.Buffer
	r := interp.NewRunner(interp.Options{Output: &out})
	if err := r.Run(ws); err != nil {
		t.Fatal(err)
	}
	runToEnd(t, r)
	if out.String() != "7\n" {
		t.Errorf("output = %q (%v)", out.String(), r.LastError())
	}
}

// ─────────────────────────────────────────────────────────────
// Errors
// ─────────────────────────────────────────────────────────────

func TestRuntimeErrorMovesToErrorStatus(t *testing.T) {
	ws := load(t, blocks.ScheduleSequential, `<xml>
	  <block type="text_print" x="0" y="0">
	    <value name="TEXT"><block type="lists_length"><value name="VALUE">`+num("5")+`</value></block></value>
	  </block>
	</xml>`)
	var log statusLog
	r := interp.NewRunner(interp.Options{OnStatus: log.add})
	if err := r.Run(ws); err != nil {
		t.Fatal(err)
	}
	runToEnd(t, r)
	if r.Status() != interp.StatusError {
		t.Fatalf("status = %s", r.Status())
	}
	var re *interp.RuntimeError
	if !errors.As(r.LastError(), &re) || re.BlockType != "lists_length" {
		t.Errorf("error = %v", r.LastError())
	}
	if log.String() != "running,error" {
		t.Errorf("notifications = %s", log.String())
	}
}

func TestRecursionLimit(t *testing.T) {
	ws := load(t, blocks.ScheduleSequential, `<xml>
	  <block type="procedures_defnoreturn" x="0" y="0">
	    <field name="NAME">recurse</field>
	    <statement name="STACK"><block type="procedures_callnoreturn"><mutation name="recurse"/></block></statement>
	  </block>
	  <block type="procedures_callnoreturn" x="0" y="200"><mutation name="recurse"/></block>
	</xml>`)
	r := interp.NewRunner(interp.Options{MaxDepth: 50})
	if err := r.Run(ws); err != nil {
		t.Fatal(err)
	}
	runToEnd(t, r)
	if r.Status() != interp.StatusError {
		t.Fatalf("status = %s", r.Status())
	}
	if err := r.LastError(); err == nil || !strings.Contains(err.Error(), "call stack exceeded 50") {
		t.Errorf("error = %v", err)
	}
}

func TestBreakOutsideLoopIsAnError(t *testing.T) {
	ws := load(t, blocks.ScheduleSequential, `<xml>
	  <block type="controls_flow_statements" x="0" y="0"><field name="FLOW">BREAK</field></block>
	</xml>`)
	r := interp.NewRunner(interp.Options{})
	if err := r.Run(ws); err != nil {
		t.Fatal(err)
	}
	runToEnd(t, r)
	if r.Status() != interp.StatusError {
		t.Errorf("status = %s", r.Status())
	}
}

// ─────────────────────────────────────────────────────────────
// Control surface
// ─────────────────────────────────────────────────────────────

func TestControlsAreIdempotent(t *testing.T) {
	ws := load(t, blocks.ScheduleSequential, forever)
	var log statusLog
	r := interp.NewRunner(interp.Options{OnStatus: log.add})
	if err := r.Run(ws); err != nil {
		t.Fatal(err)
	}
	if err := r.Run(ws); !errors.Is(err, interp.ErrBusy) {
		t.Errorf("second Run: %v", err)
	}
	r.Frame()
	r.Pause()
	r.Pause()
	r.Frame()
	r.Resume()
	r.Resume()
	r.Frame()
	r.Stop()
	r.Stop()
	r.Resume()
	r.Pause()
	r.Error("late")
	if log.String() != "running,paused,running,stopped" {
		t.Errorf("notifications = %s", log.String())
	}
	if r.Status() != interp.StatusStopped {
		t.Errorf("status = %s", r.Status())
	}
}

func TestErrorAbortsRun(t *testing.T) {
	ws := load(t, blocks.ScheduleSequential, forever)
	r := interp.NewRunner(interp.Options{})
	var log statusLog
	remove := r.AddStatusListener(log.add)
	if err := r.Run(ws); err != nil {
		t.Fatal(err)
	}
	r.Frame()
	r.Error("boom")
	r.Error("again")
	remove()
	if err := r.Run(ws); err != nil {
		t.Fatal(err)
	}
	r.Stop()
	if log.String() != "running,error" {
		t.Errorf("notifications = %s", log.String())
	}
}

func TestStepModeAdvancesOneStatement(t *testing.T) {
	ws := load(t, blocks.ScheduleSequential, `<xml>`+at("0", printStack("a", "b", "c"))+`</xml>`)
	var out bytes.Buffer
	r := interp.NewRunner(interp.Options{Mode: interp.ModeStep, Output: &out})
	if err := r.Run(ws); err != nil {
		t.Fatal(err)
	}
	r.Frame()
	if out.Len() != 0 {
		t.Fatalf("Frame ran in step mode: %q", out.String())
	}
	want := []string{"a\n", "a\nb\n", "a\nb\nc\n"}
	for i, w := range want {
		r.Step()
		if out.String() != w {
			t.Fatalf("after step %d: %q", i+1, out.String())
		}
	}
	if r.Status() != interp.StatusFinished {
		t.Errorf("status = %s", r.Status())
	}
}

func TestStepWhilePaused(t *testing.T) {
	ws := load(t, blocks.ScheduleSequential, `<xml>`+at("0", printStack("a", "b"))+`</xml>`)
	var out bytes.Buffer
	r := interp.NewRunner(interp.Options{Output: &out})
	if err := r.Run(ws); err != nil {
		t.Fatal(err)
	}
	r.Pause()
	r.Step()
	if out.String() != "a\n" || r.Status() != interp.StatusPaused {
		t.Fatalf("output %q status %s", out.String(), r.Status())
	}
	r.Resume()
	runToEnd(t, r)
	if out.String() != "a\nb\n" {
		t.Errorf("output = %q", out.String())
	}
}

// ─────────────────────────────────────────────────────────────
// Scheduling
// ─────────────────────────────────────────────────────────────

func TestScheduleModes(t *testing.T) {
	xml := `<xml>` + at("0", printStack("a1", "a2")) + at("100", printStack("b1", "b2")) + `</xml>`
	cases := []struct {
		mode blocks.ScheduleMode
		want string
	}{
		{blocks.ScheduleSequential, "a1\na2\nb1\nb2\n"},
		{blocks.ScheduleShared, "a1\nb1\na2\nb2\n"},
	}
	for _, c := range cases {
		ws := load(t, c.mode, xml)
		var out bytes.Buffer
		r := interp.NewRunner(interp.Options{Output: &out})
		if err := r.Run(ws); err != nil {
			t.Fatal(err)
		}
		runToEnd(t, r)
		if out.String() != c.want {
			t.Errorf("%s: output = %q", c.mode, out.String())
		}
	}
}

const waitProgram = `<xml><block type="text_print" x="0" y="0">
  <value name="TEXT"><block type="text"><field name="TEXT">before</field></block></value>
  <next><block type="wait_seconds"><field name="SECONDS">1</field>
    <next><block type="text_print">
      <value name="TEXT"><block type="text"><field name="TEXT">after</field></block></value>
    </block></next>
  </block></next>
</block></xml>`

func TestWaitHonorsClock(t *testing.T) {
	ws := load(t, blocks.ScheduleSequential, waitProgram)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var out bytes.Buffer
	r := interp.NewRunner(interp.Options{Output: &out, Now: func() time.Time { return now }})
	if err := r.Run(ws); err != nil {
		t.Fatal(err)
	}
	r.Frame()
	r.Frame()
	if out.String() != "before\n" {
		t.Fatalf("output = %q", out.String())
	}
	now = now.Add(999 * time.Millisecond)
	r.Frame()
	if out.String() != "before\n" {
		t.Fatalf("woke early: %q", out.String())
	}
	now = now.Add(time.Millisecond)
	r.Frame()
	if out.String() != "before\nafter\n" || r.Status() != interp.StatusFinished {
		t.Errorf("output %q status %s", out.String(), r.Status())
	}
}

func TestStepModeIgnoresWait(t *testing.T) {
	ws := load(t, blocks.ScheduleSequential, waitProgram)
	var out bytes.Buffer
	r := interp.NewRunner(interp.Options{Mode: interp.ModeStep, Output: &out})
	if err := r.Run(ws); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 4; i++ {
		r.Step()
	}
	if out.String() != "before\nafter\n" || r.Status() != interp.StatusFinished {
		t.Errorf("output %q status %s", out.String(), r.Status())
	}
}

func TestDriveRunsToCompletion(t *testing.T) {
	ws := load(t, blocks.ScheduleSequential, setAndPrint)
	var out bytes.Buffer
	r := interp.NewRunner(interp.Options{Output: &out, FrameRate: 1000})
	if err := r.Run(ws); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Drive(ctx); err != nil {
		t.Fatal(err)
	}
	if out.String() != "-2\n" {
		t.Errorf("output = %q", out.String())
	}
}

func TestDriveStopsOnCancel(t *testing.T) {
	ws := load(t, blocks.ScheduleSequential, forever)
	r := interp.NewRunner(interp.Options{FrameRate: 1000})
	if err := r.Run(ws); err != nil {
		t.Fatal(err)
	}
	defer r.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := r.Drive(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Drive = %v", err)
	}
}
