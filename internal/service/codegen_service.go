package service

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/imagicbell/ublockly-sub001/internal/blocks"
)

// ─────────────────────────────────────────────────────────────
// Codegen Service: source code from stored workspaces
// ─────────────────────────────────────────────────────────────

// GeneratedCode is the output of one generation.
type GeneratedCode struct {
	WorkspaceID string `json:"workspaceId,omitempty"`
	Target      string `json:"target"`
	Code        string `json:"code"`
	Path        string `json:"path,omitempty"`
}

type CodegenService struct {
	workspaces *WorkspaceService
	targets    *TargetRegistry
	outDir     string
}

// NewCodegenService creates a CodegenService writing files under outDir.
func NewCodegenService(workspaces *WorkspaceService, targets *TargetRegistry, outDir string) *CodegenService {
	return &CodegenService{workspaces: workspaces, targets: targets, outDir: outDir}
}

func (s *CodegenService) Targets() []string { return s.targets.Names() }

// Generate translates a stored workspace. An empty target means the
// workspace's own default.
func (s *CodegenService) Generate(ref, target string) (*GeneratedCode, error) {
	rec, ws, err := s.workspaces.Open(ref)
	if err != nil {
		return nil, err
	}
	if target == "" {
		target = rec.Target
	}
	code, err := GenerateCode(s.targets, ws, target)
	if err != nil {
		return nil, err
	}
	return &GeneratedCode{WorkspaceID: rec.ID, Target: target, Code: code}, nil
}

// WriteFile generates code and writes it to <outDir>/<workspace><ext>.
func (s *CodegenService) WriteFile(ref, target string) (*GeneratedCode, error) {
	out, err := s.Generate(ref, target)
	if err != nil {
		return nil, err
	}
	rec, err := s.workspaces.Get(out.WorkspaceID)
	if err != nil {
		return nil, err
	}
	t, _ := s.targets.Get(out.Target)
	if err := os.MkdirAll(s.outDir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	out.Path = filepath.Join(s.outDir, FileStem(rec.Name)+t.Ext)
	if err := os.WriteFile(out.Path, []byte(out.Code), 0644); err != nil {
		return nil, fmt.Errorf("write %s: %w", out.Path, err)
	}
	return out, nil
}

// GenerateCode runs the named target over ws.
func GenerateCode(targets *TargetRegistry, ws *blocks.Workspace, target string) (string, error) {
	t, err := targets.Get(target)
	if err != nil {
		return "", err
	}
	code, err := t.Language.Generate(ws)
	if err != nil {
		return "", fmt.Errorf("generate %s: %w", target, err)
	}
	return code, nil
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FileStem turns a workspace name into a file name without extension.
func FileStem(name string) string {
	stem := unsafeFileChars.ReplaceAllString(name, "_")
	if stem == "" || stem == "." || stem == ".." {
		return "workspace"
	}
	return stem
}
