package schema

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/imagicbell/ublockly-sub001/internal/blocks"
)

// Pack names a git repository holding block schema files.
type Pack struct {
	URL string `yaml:"url" json:"url"`
	// Ref is a branch, a tag or a commit. Empty means the remote HEAD.
	Ref string `yaml:"ref" json:"ref"`
	// Dir is the subdirectory holding the schema files.
	Dir string `yaml:"dir" json:"dir"`
}

// FetchPack clones p into cacheDir, checks out its ref and returns the
// directory holding its schema files. A pack already checked out at the
// same commit is reused.
func FetchPack(ctx context.Context, cacheDir string, p Pack) (string, error) {
	if strings.TrimSpace(p.URL) == "" {
		return "", fmt.Errorf("fetch pack: missing url")
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return "", err
	}
	tmpDir, err := os.MkdirTemp(cacheDir, "pack-fetch-*")
	if err != nil {
		return "", err
	}
	if err := os.RemoveAll(tmpDir); err != nil {
		return "", err
	}

	repo, err := git.PlainCloneContext(ctx, tmpDir, false, &git.CloneOptions{URL: p.URL})
	if err != nil {
		_ = os.RemoveAll(tmpDir)
		return "", fmt.Errorf("git clone %s: %w", p.URL, err)
	}

	rev := plumbing.Revision("HEAD")
	if ref := strings.TrimSpace(p.Ref); ref != "" {
		rev = plumbing.Revision(ref)
	}
	hash, err := repo.ResolveRevision(rev)
	if err != nil {
		// branches only exist as remote refs after a clone
		if h, rerr := repo.ResolveRevision(plumbing.Revision("refs/remotes/origin/" + string(rev))); rerr == nil {
			hash, err = h, nil
		}
	}
	if err != nil {
		_ = os.RemoveAll(tmpDir)
		return "", fmt.Errorf("resolve revision %s: %w", rev, err)
	}

	targetDir := filepath.Join(cacheDir, packDirName(p.URL)+"@"+hash.String()[:12])
	if _, err := os.Stat(targetDir); err == nil {
		_ = os.RemoveAll(tmpDir)
		return filepath.Join(targetDir, p.Dir), nil
	}

	worktree, err := repo.Worktree()
	if err != nil {
		_ = os.RemoveAll(tmpDir)
		return "", err
	}
	if err := worktree.Checkout(&git.CheckoutOptions{Hash: *hash, Force: true}); err != nil {
		_ = os.RemoveAll(tmpDir)
		return "", fmt.Errorf("git checkout %s: %w", rev, err)
	}
	if err := os.Rename(tmpDir, targetDir); err != nil {
		_ = os.RemoveAll(tmpDir)
		return "", err
	}
	return filepath.Join(targetDir, p.Dir), nil
}

// LoadPack fetches p and registers its definitions in f.
func LoadPack(ctx context.Context, f *blocks.Factory, cacheDir string, p Pack) ([]string, error) {
	dir, err := FetchPack(ctx, cacheDir, p)
	if err != nil {
		return nil, err
	}
	return LoadDir(f, dir)
}

func packDirName(url string) string {
	url = strings.TrimSuffix(strings.TrimRight(url, "/"), ".git")
	if i := strings.LastIndexAny(url, "/:"); i >= 0 {
		url = url[i+1:]
	}
	var b strings.Builder
	for _, r := range url {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "pack"
	}
	return b.String()
}
