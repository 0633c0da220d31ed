package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/imagicbell/ublockly-sub001/internal/blocks"
	"github.com/imagicbell/ublockly-sub001/internal/interp"
	"github.com/imagicbell/ublockly-sub001/internal/schema"
)

// Config holds the settings shared by every sub-command. Zero values mean
// "not set" so that Merge only overrides what a layer actually provides.
type Config struct {
	DataDir   string        `yaml:"data_dir"`
	DBPath    string        `yaml:"db_path"`
	SchemaDir string        `yaml:"schema_dir"`
	OutDir    string        `yaml:"out_dir"`
	Packs     []schema.Pack `yaml:"packs"`

	DefaultTarget string `yaml:"default_target"`
	ScheduleMode  string `yaml:"schedule_mode"`

	RunMode       string        `yaml:"run_mode"`
	FrameRate     int           `yaml:"frame_rate"`
	StepsPerFrame int           `yaml:"steps_per_frame"`
	RunTimeout    time.Duration `yaml:"-"`
	// RunTimeoutString is the YAML form of RunTimeout, e.g. "30s".
	RunTimeoutString string `yaml:"run_timeout"`

	HTTPAddr  string `yaml:"http_addr"`
	LuaBinary string `yaml:"lua_binary"`
}

// Default returns the built-in settings. Paths are filled in from DataDir
// by Load.
func Default() Config {
	dataDir := ".ublockly"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".local", "share", "ublockly")
	}
	return Config{
		DataDir:       dataDir,
		DefaultTarget: "csharp",
		ScheduleMode:  "sequential",
		RunMode:       "sync",
		FrameRate:     interp.DefaultFrameRate,
		StepsPerFrame: interp.DefaultStepsPerFrame,
		RunTimeout:    5 * time.Minute,
		HTTPAddr:      "127.0.0.1:8720",
		LuaBinary:     "lua",
	}
}

func (c Config) Merge(override Config) Config {
	result := c
	if v := strings.TrimSpace(override.DataDir); v != "" {
		result.DataDir = v
	}
	if v := strings.TrimSpace(override.DBPath); v != "" {
		result.DBPath = v
	}
	if v := strings.TrimSpace(override.SchemaDir); v != "" {
		result.SchemaDir = v
	}
	if v := strings.TrimSpace(override.OutDir); v != "" {
		result.OutDir = v
	}
	if len(override.Packs) > 0 {
		result.Packs = append([]schema.Pack(nil), override.Packs...)
	}
	if v := strings.TrimSpace(override.DefaultTarget); v != "" {
		result.DefaultTarget = v
	}
	if v := strings.TrimSpace(override.ScheduleMode); v != "" {
		result.ScheduleMode = v
	}
	if v := strings.TrimSpace(override.RunMode); v != "" {
		result.RunMode = v
	}
	if override.FrameRate > 0 {
		result.FrameRate = override.FrameRate
	}
	if override.StepsPerFrame > 0 {
		result.StepsPerFrame = override.StepsPerFrame
	}
	if override.RunTimeout > 0 {
		result.RunTimeout = override.RunTimeout
	}
	if v := strings.TrimSpace(override.RunTimeoutString); v != "" {
		result.RunTimeoutString = v
	}
	if v := strings.TrimSpace(override.HTTPAddr); v != "" {
		result.HTTPAddr = v
	}
	if v := strings.TrimSpace(override.LuaBinary); v != "" {
		result.LuaBinary = v
	}
	return result
}

// Load builds the configuration from, in increasing precedence, the
// defaults, the YAML file at path (or $UBLOCKLY_CONFIG), and UBLOCKLY_*
// environment variables. A .env file in the working directory is loaded
// into the environment first; variables already set are kept.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path == "" {
		path = strings.TrimSpace(os.Getenv("UBLOCKLY_CONFIG"))
	}
	if path != "" {
		fileCfg, err := LoadFile(path)
		if err != nil {
			return Config{}, err
		}
		cfg = cfg.Merge(fileCfg)
	}
	envCfg, err := loadEnv()
	if err != nil {
		return Config{}, err
	}
	cfg = cfg.Merge(envCfg)
	if err := cfg.finish(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile decodes a YAML config file.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func loadEnv() (Config, error) {
	cfg := Config{
		DataDir:          os.Getenv("UBLOCKLY_DATA_DIR"),
		DBPath:           os.Getenv("UBLOCKLY_DB_PATH"),
		SchemaDir:        os.Getenv("UBLOCKLY_SCHEMA_DIR"),
		OutDir:           os.Getenv("UBLOCKLY_OUT_DIR"),
		DefaultTarget:    os.Getenv("UBLOCKLY_TARGET"),
		ScheduleMode:     os.Getenv("UBLOCKLY_SCHEDULE_MODE"),
		RunMode:          os.Getenv("UBLOCKLY_RUN_MODE"),
		RunTimeoutString: os.Getenv("UBLOCKLY_RUN_TIMEOUT"),
		HTTPAddr:         os.Getenv("UBLOCKLY_HTTP_ADDR"),
		LuaBinary:        os.Getenv("UBLOCKLY_LUA"),
	}
	for name, dst := range map[string]*int{
		"UBLOCKLY_FRAME_RATE":      &cfg.FrameRate,
		"UBLOCKLY_STEPS_PER_FRAME": &cfg.StepsPerFrame,
	} {
		raw := strings.TrimSpace(os.Getenv(name))
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", name, err)
		}
		*dst = v
	}
	if raw := strings.TrimSpace(os.Getenv("UBLOCKLY_PACKS")); raw != "" {
		cfg.Packs = ParsePacks(raw)
	}
	return cfg, nil
}

// ParsePacks reads a comma-separated list of url[@ref][#dir] entries.
func ParsePacks(raw string) []schema.Pack {
	var packs []schema.Pack
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		var p schema.Pack
		entry, p.Dir, _ = strings.Cut(entry, "#")
		// '@' also appears in scp-style urls (git@host:repo), so only the
		// last one after the host part counts.
		if i := strings.LastIndex(entry, "@"); i > strings.LastIndex(entry, "/") && i > strings.Index(entry, ":") {
			entry, p.Ref = entry[:i], entry[i+1:]
		}
		p.URL = entry
		packs = append(packs, p)
	}
	return packs
}

// finish fills derived paths and checks enumerated settings.
func (c *Config) finish() error {
	if c.DBPath == "" {
		c.DBPath = filepath.Join(c.DataDir, "ublockly.db")
	}
	if c.SchemaDir == "" {
		c.SchemaDir = filepath.Join(c.DataDir, "blocks")
	}
	if c.OutDir == "" {
		c.OutDir = filepath.Join(c.DataDir, "generated")
	}
	if c.RunTimeoutString != "" {
		d, err := time.ParseDuration(c.RunTimeoutString)
		if err != nil {
			return fmt.Errorf("parse run timeout: %w", err)
		}
		c.RunTimeout = d
	}
	if _, ok := interp.ParseMode(c.RunMode); !ok {
		return fmt.Errorf("unknown run mode %q", c.RunMode)
	}
	if _, ok := blocks.ParseScheduleMode(c.ScheduleMode); !ok {
		return fmt.Errorf("unknown schedule mode %q", c.ScheduleMode)
	}
	return nil
}

// Mode returns the parsed run mode.
func (c Config) Mode() interp.Mode {
	m, _ := interp.ParseMode(c.RunMode)
	return m
}

// PackCacheDir is where schema packs are cloned.
func (c Config) PackCacheDir() string {
	return filepath.Join(c.DataDir, "packs")
}
