package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/imagicbell/ublockly-sub001/internal/domain"
	"github.com/imagicbell/ublockly-sub001/internal/schema"
	"github.com/imagicbell/ublockly-sub001/internal/secret"
	"github.com/imagicbell/ublockly-sub001/internal/service"
	"github.com/imagicbell/ublockly-sub001/internal/storage"
)

const setAndPrint = `<xml>
  <variables><variable id="vx">x</variable><variable id="vy">y</variable></variables>
  <block type="variables_set" x="0" y="0">
    <field name="VAR" id="vx">x</field>
    <value name="VALUE"><block type="math_number"><field name="NUM">3</field></block></value>
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

const forever = `<xml><block type="controls_whileUntil" x="0" y="0">
  <field name="MODE">WHILE</field>
  <value name="BOOL"><block type="logic_boolean"><field name="BOOL">TRUE</field></block></value>
</block></xml>`

type testEnv struct {
	srv       *Server
	approvals *storage.ApprovalStore
}

func newTestEnv(t *testing.T, full bool) *testEnv {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.New(filepath.Join(dir, "ublockly.db"), dir)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	f, err := schema.NewStandardFactory()
	if err != nil {
		t.Fatal(err)
	}
	emitter := service.NopEmitter{}
	targets := service.DefaultTargets()
	scheduleStore := storage.NewScheduleStore(db)
	workspaces := service.NewWorkspaceService(
		storage.NewWorkspaceStore(db),
		storage.NewUndoStore(db),
		storage.NewDefinitionStore(db),
		f, targets, emitter,
	)
	runs := service.NewRunService(workspaces, scheduleStore, emitter)
	deps := Deps{
		Workspaces: workspaces,
		Codegen:    service.NewCodegenService(workspaces, targets, filepath.Join(dir, "generated")),
		Runs:       runs,
	}
	env := &testEnv{}
	if full {
		schedules := service.NewScheduleService(scheduleStore, workspaces, runs, emitter)
		t.Cleanup(schedules.Stop)
		env.approvals = storage.NewApprovalStore(db)
		deps.Schedules = schedules
		deps.Repositories = service.NewRepositoryService(storage.NewRepositoryStore(db), secret.NewMemoryStore(), workspaces, emitter)
		deps.Approvals = env.approvals
	}
	t.Cleanup(func() {
		runs.StopAll()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		runs.WaitRunning(ctx)
	})
	env.srv = NewServer(deps)
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func createWorkspace(t *testing.T, env *testEnv, name, xml string) domain.Workspace {
	t.Helper()
	body, _ := json.Marshal(service.CreateWorkspaceInput{Name: name, XML: xml})
	rec := env.do(t, http.MethodPost, "/api/workspaces", string(body))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create workspace: %d %s", rec.Code, rec.Body.String())
	}
	return decode[domain.Workspace](t, rec)
}

// ─────────────────────────────────────────────────────────────
// Health and catalogue
// ─────────────────────────────────────────────────────────────

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, false)
	rec := env.do(t, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("healthz = %d %q", rec.Code, rec.Body.String())
	}
}

func TestTargetsAndBlockTypes(t *testing.T) {
	env := newTestEnv(t, false)

	targets := decode[map[string][]string](t, env.do(t, http.MethodGet, "/api/targets", ""))
	if got := strings.Join(targets["targets"], ","); got != "csharp,lua" {
		t.Errorf("targets = %s", got)
	}

	types := decode[map[string][]string](t, env.do(t, http.MethodGet, "/api/block-types", ""))
	found := false
	for _, typ := range types["types"] {
		if typ == "text_print" {
			found = true
		}
	}
	if !found {
		t.Errorf("text_print missing from %v", types["types"])
	}
}

func TestPutDefinitionRegistersType(t *testing.T) {
	env := newTestEnv(t, false)
	def := `{"type":"robot_beep","message0":"beep","previousStatement":null,"nextStatement":null}`
	rec := env.do(t, http.MethodPost, "/api/definitions", def)
	if rec.Code != http.StatusCreated {
		t.Fatalf("put definition: %d %s", rec.Code, rec.Body.String())
	}

	defs := decode[map[string][]domain.BlockDefinition](t, env.do(t, http.MethodGet, "/api/definitions", ""))
	if len(defs["definitions"]) != 1 || defs["definitions"][0].Source != "user" {
		t.Errorf("definitions = %+v", defs)
	}

	if rec := env.do(t, http.MethodPost, "/api/definitions", `{"message0":"no type"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("bad definition: %d", rec.Code)
	}
}

// ─────────────────────────────────────────────────────────────
// Workspaces
// ─────────────────────────────────────────────────────────────

func TestWorkspaceCRUD(t *testing.T) {
	env := newTestEnv(t, false)
	ws := createWorkspace(t, env, "calc", setAndPrint)
	if ws.Target != "csharp" || ws.ScheduleMode != "sequential" {
		t.Errorf("workspace = %+v", ws)
	}

	got := decode[domain.Workspace](t, env.do(t, http.MethodGet, "/api/workspaces/calc", ""))
	if got.ID != ws.ID {
		t.Errorf("lookup by name returned %s", got.ID)
	}

	rec := env.do(t, http.MethodPatch, "/api/workspaces/"+ws.ID, `{"target":"lua","description":"subtracts"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: %d %s", rec.Code, rec.Body.String())
	}
	if upd := decode[domain.Workspace](t, rec); upd.Target != "lua" || upd.Description != "subtracts" {
		t.Errorf("updated = %+v", upd)
	}
	if rec := env.do(t, http.MethodPatch, "/api/workspaces/calc", `{"target":"cobol"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown target: %d", rec.Code)
	}

	list := decode[map[string][]domain.Workspace](t, env.do(t, http.MethodGet, "/api/workspaces", ""))
	if len(list["workspaces"]) != 1 {
		t.Errorf("list = %+v", list)
	}

	if rec := env.do(t, http.MethodDelete, "/api/workspaces/calc", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete: %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/api/workspaces/calc", ""); rec.Code != http.StatusNotFound {
		t.Errorf("after delete: %d", rec.Code)
	}
}

func TestCreateWorkspaceValidation(t *testing.T) {
	env := newTestEnv(t, false)
	if rec := env.do(t, http.MethodPost, "/api/workspaces", `{"name":""}`); rec.Code != http.StatusBadRequest {
		t.Errorf("empty name: %d", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/api/workspaces", `not json`); rec.Code != http.StatusBadRequest {
		t.Errorf("bad body: %d", rec.Code)
	}
}

func TestXMLRoundTripAndUndo(t *testing.T) {
	env := newTestEnv(t, false)
	createWorkspace(t, env, "calc", setAndPrint)

	rec := env.do(t, http.MethodGet, "/api/workspaces/calc/xml", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `type="text_print"`) {
		t.Fatalf("export: %d %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/xml" {
		t.Errorf("content type = %s", ct)
	}

	if rec := env.do(t, http.MethodPut, "/api/workspaces/calc/xml", forever); rec.Code != http.StatusOK {
		t.Fatalf("import: %d %s", rec.Code, rec.Body.String())
	}
	if xml := env.do(t, http.MethodGet, "/api/workspaces/calc/xml", "").Body.String(); strings.Contains(xml, "text_print") {
		t.Errorf("import kept old blocks: %s", xml)
	}
	if rec := env.do(t, http.MethodPut, "/api/workspaces/calc/xml", "<xml><block"); rec.Code != http.StatusBadRequest {
		t.Errorf("malformed import: %d", rec.Code)
	}

	if rec := env.do(t, http.MethodPost, "/api/workspaces/calc/undo", ""); rec.Code != http.StatusOK {
		t.Fatalf("undo: %d %s", rec.Code, rec.Body.String())
	}
	if xml := env.do(t, http.MethodGet, "/api/workspaces/calc/xml", "").Body.String(); !strings.Contains(xml, "text_print") {
		t.Errorf("undo did not restore: %s", xml)
	}
	if rec := env.do(t, http.MethodPost, "/api/workspaces/calc/redo", ""); rec.Code != http.StatusOK {
		t.Fatalf("redo: %d %s", rec.Code, rec.Body.String())
	}

	tree := decode[storage.UndoTree](t, env.do(t, http.MethodGet, "/api/workspaces/calc/history", ""))
	if len(tree.Nodes) != 2 {
		t.Errorf("history nodes = %d", len(tree.Nodes))
	}
}

func TestGenerateCode(t *testing.T) {
	env := newTestEnv(t, false)
	createWorkspace(t, env, "calc", setAndPrint)

	rec := env.do(t, http.MethodGet, "/api/workspaces/calc/code?target=lua", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("generate: %d %s", rec.Code, rec.Body.String())
	}
	out := decode[service.GeneratedCode](t, rec)
	if out.Target != "lua" || !strings.Contains(out.Code, "print(x - y)") {
		t.Errorf("generated = %+v", out)
	}

	rec = env.do(t, http.MethodPost, "/api/workspaces/calc/code", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("write: %d %s", rec.Code, rec.Body.String())
	}
	if written := decode[service.GeneratedCode](t, rec); written.Target != "csharp" || !strings.HasSuffix(written.Path, "calc.cs") {
		t.Errorf("written = %+v", written)
	}

	if rec := env.do(t, http.MethodGet, "/api/workspaces/calc/code?target=cobol", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown target: %d", rec.Code)
	}
}

// ─────────────────────────────────────────────────────────────
// Runs
// ─────────────────────────────────────────────────────────────

func TestRunAndWait(t *testing.T) {
	env := newTestEnv(t, false)
	createWorkspace(t, env, "calc", setAndPrint)

	rec := env.do(t, http.MethodPost, "/api/workspaces/calc/run", `{"wait":true,"timeoutSeconds":5}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("run: %d %s", rec.Code, rec.Body.String())
	}
	info := decode[service.RunInfo](t, rec)
	if info.Status != "finished" || info.Output != "-2\n" {
		t.Errorf("info = %+v", info)
	}

	logs := decode[map[string][]domain.RunLog](t, env.do(t, http.MethodGet, "/api/workspaces/calc/run-logs", ""))
	if len(logs["logs"]) != 1 {
		t.Errorf("logs = %+v", logs)
	}
}

func TestStepRunControls(t *testing.T) {
	env := newTestEnv(t, false)
	createWorkspace(t, env, "loop", forever)

	if rec := env.do(t, http.MethodGet, "/api/workspaces/loop/run", ""); rec.Code != http.StatusNotFound {
		t.Errorf("info before run: %d", rec.Code)
	}

	rec := env.do(t, http.MethodPost, "/api/workspaces/loop/run", `{"mode":"step"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("start: %d %s", rec.Code, rec.Body.String())
	}
	if info := decode[service.RunInfo](t, rec); info.Mode != "step" || info.Status != "running" {
		t.Errorf("started = %+v", info)
	}
	if rec := env.do(t, http.MethodPost, "/api/workspaces/loop/run", `{"mode":"step"}`); rec.Code != http.StatusConflict {
		t.Errorf("second start: %d", rec.Code)
	}

	for _, step := range []struct {
		action string
		want   string
	}{
		{"step", "running"},
		{"pause", "paused"},
		{"resume", "running"},
		{"stop", "stopped"},
	} {
		rec := env.do(t, http.MethodPost, "/api/workspaces/loop/run/"+step.action, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: %d %s", step.action, rec.Code, rec.Body.String())
		}
		if info := decode[service.RunInfo](t, rec); info.Status != step.want {
			t.Errorf("after %s: %s, want %s", step.action, info.Status, step.want)
		}
	}

	if rec := env.do(t, http.MethodPost, "/api/workspaces/loop/run/rewind", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown action: %d", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/api/workspaces/loop/run", `{"mode":"turbo"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown mode: %d", rec.Code)
	}
}

// ─────────────────────────────────────────────────────────────
// Optional services
// ─────────────────────────────────────────────────────────────

func TestOptionalRoutesDisabled(t *testing.T) {
	env := newTestEnv(t, false)
	for _, path := range []string{"/api/schedules", "/api/repositories", "/api/approvals"} {
		if rec := env.do(t, http.MethodGet, path, ""); rec.Code != http.StatusNotFound {
			t.Errorf("%s: %d", path, rec.Code)
		}
	}
}

func TestScheduleLifecycle(t *testing.T) {
	env := newTestEnv(t, true)
	createWorkspace(t, env, "calc", setAndPrint)

	rec := env.do(t, http.MethodPost, "/api/schedules", `{"workspace":"calc","triggerType":"manual","enabled":true}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	sc := decode[domain.Schedule](t, rec)
	if sc.Name != "calc" {
		t.Errorf("schedule name = %q", sc.Name)
	}

	if rec := env.do(t, http.MethodPost, "/api/schedules", `{"workspace":"calc","triggerType":"cron","triggerConfig":"every tuesday"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("bad cron: %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/schedules/"+sc.ID+"/run", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("run: %d %s", rec.Code, rec.Body.String())
	}
	if info := decode[service.RunInfo](t, rec); info.Output != "-2\n" {
		t.Errorf("run output = %q", info.Output)
	}

	got := decode[domain.Schedule](t, env.do(t, http.MethodGet, "/api/schedules/"+sc.ID, ""))
	if got.LastStatus != "finished" || got.LastRunAt == nil {
		t.Errorf("schedule after run = %+v", got)
	}

	rec = env.do(t, http.MethodPut, "/api/schedules/"+sc.ID, `{"name":"nightly","triggerType":"manual"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: %d %s", rec.Code, rec.Body.String())
	}
	if upd := decode[domain.Schedule](t, rec); upd.Name != "nightly" || upd.Enabled {
		t.Errorf("updated = %+v", upd)
	}

	if rec := env.do(t, http.MethodDelete, "/api/schedules/"+sc.ID, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete: %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/api/schedules/"+sc.ID, ""); rec.Code != http.StatusNotFound {
		t.Errorf("after delete: %d", rec.Code)
	}
}

func TestRepositoryPublishAndPull(t *testing.T) {
	env := newTestEnv(t, true)
	createWorkspace(t, env, "calc", setAndPrint)
	remote := filepath.Join(t.TempDir(), "remote.db")

	body, _ := json.Marshal(service.RepositoryInput{Name: "shared", Driver: "sqlite", Host: remote})
	rec := env.do(t, http.MethodPost, "/api/repositories", string(body))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	repo := decode[domain.Repository](t, rec)
	base := "/api/repositories/" + repo.ID

	if rec := env.do(t, http.MethodPost, base+"/test", ""); rec.Code != http.StatusOK {
		t.Fatalf("test connection: %d %s", rec.Code, rec.Body.String())
	}
	if rec := env.do(t, http.MethodPost, base+"/publish", `{"workspace":"calc"}`); rec.Code != http.StatusOK {
		t.Fatalf("publish: %d %s", rec.Code, rec.Body.String())
	}
	published := decode[map[string][]domain.PublishedWorkspace](t, env.do(t, http.MethodGet, base+"/published", ""))
	if len(published["published"]) != 1 || published["published"][0].Name != "calc" {
		t.Fatalf("published = %+v", published)
	}

	env.do(t, http.MethodDelete, "/api/workspaces/calc", "")
	rec = env.do(t, http.MethodPost, base+"/pull", `{"name":"calc"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("pull: %d %s", rec.Code, rec.Body.String())
	}
	if xml := env.do(t, http.MethodGet, "/api/workspaces/calc/xml", "").Body.String(); !strings.Contains(xml, "text_print") {
		t.Errorf("pulled workspace = %s", xml)
	}

	if rec := env.do(t, http.MethodDelete, base+"/published/calc", ""); rec.Code != http.StatusNoContent {
		t.Errorf("unpublish: %d %s", rec.Code, rec.Body.String())
	}
	if rec := env.do(t, http.MethodDelete, base, ""); rec.Code != http.StatusNoContent {
		t.Errorf("delete: %d", rec.Code)
	}
}

func TestApprovals(t *testing.T) {
	env := newTestEnv(t, true)
	for _, id := range []string{"a1", "a2"} {
		if err := env.approvals.CreatePending(&domain.PendingAction{ID: id, Tool: "delete_block", Description: "Delete 1 block(s)", Metadata: "{}"}); err != nil {
			t.Fatal(err)
		}
	}

	pending := decode[map[string][]domain.PendingAction](t, env.do(t, http.MethodGet, "/api/approvals", ""))
	if len(pending["pending"]) != 2 {
		t.Fatalf("pending = %+v", pending)
	}

	if rec := env.do(t, http.MethodPost, "/api/approvals/a1/approve", ""); rec.Code != http.StatusOK {
		t.Fatalf("approve: %d %s", rec.Code, rec.Body.String())
	}
	if rec := env.do(t, http.MethodPost, "/api/approvals/a2/reject", ""); rec.Code != http.StatusOK {
		t.Fatalf("reject: %d %s", rec.Code, rec.Body.String())
	}
	if status, _ := env.approvals.Status("a1"); status != domain.ApprovalApproved {
		t.Errorf("a1 = %s", status)
	}
	if status, _ := env.approvals.Status("a2"); status != domain.ApprovalRejected {
		t.Errorf("a2 = %s", status)
	}
	if rec := env.do(t, http.MethodPost, "/api/approvals/a1/reject", ""); rec.Code != http.StatusNotFound {
		t.Errorf("second decision: %d", rec.Code)
	}

	pending = decode[map[string][]domain.PendingAction](t, env.do(t, http.MethodGet, "/api/approvals", ""))
	if len(pending["pending"]) != 0 {
		t.Errorf("pending after decisions = %+v", pending)
	}
}
