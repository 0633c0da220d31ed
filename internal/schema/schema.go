// Package schema loads block-type definitions from JSON and YAML files,
// the embedded standard library and git-hosted block packs.
package schema

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/imagicbell/ublockly-sub001/internal/blocks"
	"github.com/imagicbell/ublockly-sub001/internal/mutators"
)

//go:embed standard.json
var standardJSON []byte

// NewStandardFactory returns a factory with every mutator registered and
// the standard block library loaded.
func NewStandardFactory() (*blocks.Factory, error) {
	f := blocks.NewFactory()
	mutators.Register(f)
	if _, err := f.LoadJSON(standardJSON); err != nil {
		return nil, fmt.Errorf("load standard blocks: %w", err)
	}
	return f, nil
}

// IsSchemaFile reports whether path has an extension Decode understands.
func IsSchemaFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}

// Decode parses a list of block records. The format is chosen by the
// extension of name; anything that is not YAML is read as JSON.
func Decode(name string, data []byte) ([]map[string]any, error) {
	var records []map[string]any
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
	default:
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
	}
	return records, nil
}

// LoadFile registers every definition in path. A bad record only skips
// itself; its error is part of the joined result.
func LoadFile(f *blocks.Factory, path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w", path, err)
	}
	records, err := Decode(path, data)
	if err != nil {
		return nil, err
	}
	types, err := f.LoadRecords(records)
	if err != nil {
		return types, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return types, nil
}

// LoadDir loads every schema file under dir, in lexical order.
func LoadDir(f *blocks.Factory, dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if IsSchemaFile(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan schema dir %s: %w", dir, err)
	}
	sort.Strings(files)

	var (
		types []string
		errs  []error
	)
	for _, path := range files {
		loaded, err := LoadFile(f, path)
		types = append(types, loaded...)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return types, errors.Join(errs...)
}
