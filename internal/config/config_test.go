package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/imagicbell/ublockly-sub001/internal/interp"
)

// clearEnv unsets every UBLOCKLY_ variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"UBLOCKLY_CONFIG", "UBLOCKLY_DATA_DIR", "UBLOCKLY_DB_PATH", "UBLOCKLY_SCHEMA_DIR",
		"UBLOCKLY_OUT_DIR", "UBLOCKLY_TARGET", "UBLOCKLY_SCHEDULE_MODE", "UBLOCKLY_RUN_MODE",
		"UBLOCKLY_RUN_TIMEOUT", "UBLOCKLY_HTTP_ADDR", "UBLOCKLY_LUA", "UBLOCKLY_FRAME_RATE",
		"UBLOCKLY_STEPS_PER_FRAME", "UBLOCKLY_PACKS",
	} {
		t.Setenv(name, "")
	}
}

// inDir runs the test from dir so Load does not pick up a stray .env.
func inDir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(wd) })
}

// ─────────────────────────────────────────────────────────────
// Merge
// ─────────────────────────────────────────────────────────────

func TestMergeKeepsUnsetFields(t *testing.T) {
	base := Default()
	got := base.Merge(Config{LuaBinary: "luajit", FrameRate: 30})
	if got.LuaBinary != "luajit" || got.FrameRate != 30 {
		t.Errorf("overrides not applied: %+v", got)
	}
	if got.DefaultTarget != base.DefaultTarget || got.StepsPerFrame != base.StepsPerFrame {
		t.Errorf("unset fields changed: %+v", got)
	}
	if got := base.Merge(Config{RunMode: "   "}); got.RunMode != "sync" {
		t.Errorf("blank override replaced run mode: %q", got.RunMode)
	}
}

// ─────────────────────────────────────────────────────────────
// Load
// ─────────────────────────────────────────────────────────────

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	inDir(t, dir)
	t.Setenv("UBLOCKLY_DATA_DIR", dir)

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DBPath != filepath.Join(dir, "ublockly.db") {
		t.Errorf("db path = %s", cfg.DBPath)
	}
	if cfg.SchemaDir != filepath.Join(dir, "blocks") || cfg.OutDir != filepath.Join(dir, "generated") {
		t.Errorf("derived dirs = %s, %s", cfg.SchemaDir, cfg.OutDir)
	}
	if cfg.Mode() != interp.ModeSync || cfg.RunTimeout != 5*time.Minute {
		t.Errorf("run settings = %s %s", cfg.RunMode, cfg.RunTimeout)
	}
}

func TestLoadLayers(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	inDir(t, dir)

	yamlPath := filepath.Join(dir, "ublockly.yaml")
	yamlDoc := `data_dir: ` + dir + `
default_target: lua
run_mode: step
run_timeout: 30s
steps_per_frame: 10
packs:
  - url: https://example.com/robot-blocks.git
    ref: v2
    dir: blocks
`
	if err := os.WriteFile(yamlPath, []byte(yamlDoc), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("UBLOCKLY_LUA=/opt/lua/bin/lua5.4\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	// .env never overrides a variable that is already set, even to ""
	os.Unsetenv("UBLOCKLY_LUA")
	t.Setenv("UBLOCKLY_STEPS_PER_FRAME", "25")

	cfg, err := Load(yamlPath)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DefaultTarget != "lua" || cfg.Mode() != interp.ModeStep {
		t.Errorf("yaml not applied: %+v", cfg)
	}
	if cfg.RunTimeout != 30*time.Second {
		t.Errorf("run timeout = %s", cfg.RunTimeout)
	}
	if cfg.StepsPerFrame != 25 {
		t.Errorf("env should win over yaml: steps = %d", cfg.StepsPerFrame)
	}
	if cfg.LuaBinary != "/opt/lua/bin/lua5.4" {
		t.Errorf(".env not loaded: lua = %s", cfg.LuaBinary)
	}
	if len(cfg.Packs) != 1 || cfg.Packs[0].Ref != "v2" || cfg.Packs[0].Dir != "blocks" {
		t.Errorf("packs = %+v", cfg.Packs)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	dir := t.TempDir()
	inDir(t, dir)

	for name, env := range map[string][2]string{
		"run mode":      {"UBLOCKLY_RUN_MODE", "turbo"},
		"schedule mode": {"UBLOCKLY_SCHEDULE_MODE", "random"},
		"frame rate":    {"UBLOCKLY_FRAME_RATE", "fast"},
		"timeout":       {"UBLOCKLY_RUN_TIMEOUT", "soon"},
	} {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(env[0], env[1])
			if _, err := Load(""); err == nil {
				t.Errorf("%s=%s accepted", env[0], env[1])
			}
		})
	}

	clearEnv(t)
	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("missing config file accepted")
	}
}

func TestParsePacks(t *testing.T) {
	packs := ParsePacks("https://example.com/a.git@v1#blocks, git@github.com:org/b.git ,git@github.com:org/c.git@main")
	if len(packs) != 3 {
		t.Fatalf("packs = %+v", packs)
	}
	want := [][3]string{
		{"https://example.com/a.git", "v1", "blocks"},
		{"git@github.com:org/b.git", "", ""},
		{"git@github.com:org/c.git", "main", ""},
	}
	for i, w := range want {
		if packs[i].URL != w[0] || packs[i].Ref != w[1] || packs[i].Dir != w[2] {
			t.Errorf("pack %d = %+v, want %v", i, packs[i], w)
		}
	}
}
