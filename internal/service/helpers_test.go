package service_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/imagicbell/ublockly-sub001/internal/schema"
	"github.com/imagicbell/ublockly-sub001/internal/secret"
	"github.com/imagicbell/ublockly-sub001/internal/service"
	"github.com/imagicbell/ublockly-sub001/internal/storage"
)

type testEnv struct {
	dir        string
	db         *storage.DB
	emitter    *service.MockEmitter
	workspaces *service.WorkspaceService
	codegen    *service.CodegenService
	runs       *service.RunService
	schedules  *service.ScheduleService
	repos      *service.RepositoryService
}

func newTestEnv(t *testing.T) *testEnv {
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
	targets := service.DefaultTargets()
	emitter := &service.MockEmitter{}
	scheduleStore := storage.NewScheduleStore(db)

	env := &testEnv{dir: dir, db: db, emitter: emitter}
	env.workspaces = service.NewWorkspaceService(
		storage.NewWorkspaceStore(db),
		storage.NewUndoStore(db),
		storage.NewDefinitionStore(db),
		f, targets, emitter,
	)
	env.codegen = service.NewCodegenService(env.workspaces, targets, filepath.Join(dir, "generated"))
	env.runs = service.NewRunService(env.workspaces, scheduleStore, emitter)
	env.schedules = service.NewScheduleService(scheduleStore, env.workspaces, env.runs, emitter)
	env.repos = service.NewRepositoryService(storage.NewRepositoryStore(db), secret.NewMemoryStore(), env.workspaces, emitter)

	t.Cleanup(func() {
		env.schedules.Stop()
		env.runs.StopAll()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		env.runs.WaitRunning(ctx)
	})
	return env
}

// ─────────────────────────────────────────────────────────────
// Programs
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

const failing = `<xml><block type="text_print" x="0" y="0">
  <value name="TEXT"><block type="lists_length">
    <value name="VALUE"><block type="math_number"><field name="NUM">4</field></block></value>
  </block></value>
</block></xml>`

func createWorkspace(t *testing.T, env *testEnv, name, xml string) string {
	t.Helper()
	rec, err := env.workspaces.Create(context.Background(), service.CreateWorkspaceInput{Name: name, XML: xml})
	if err != nil {
		t.Fatal(err)
	}
	return rec.ID
}
