package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Loaded is a resolved config plus where it came from.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	Exists   bool
}

// Load reads the config at explicitPath, or the XDG default when empty.
// A missing file yields defaults and a warning. Relative debug.dir and
// camera.lock_dir values are anchored to the config file's directory.
func Load(explicitPath string) (Loaded, error) {
	path, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}

	loaded := Loaded{Path: path, Config: Default()}
	content, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		loaded.Warnings = []Warning{{
			Message: fmt.Sprintf("config file %q not found; using defaults", path),
		}}
		return loaded, nil
	case err != nil:
		return Loaded{}, fmt.Errorf("read config %q: %w", path, err)
	}

	cfg, warnings, err := Parse(string(content), loaded.Config)
	if err != nil {
		return Loaded{}, fmt.Errorf("parse config %q: %w", path, err)
	}

	base := filepath.Dir(path)
	cfg.Debug.Dir = anchorDir(cfg.Debug.Dir, base)
	cfg.Camera.LockDir = anchorDir(cfg.Camera.LockDir, base)

	loaded.Config = cfg
	loaded.Warnings = warnings
	loaded.Exists = true
	return loaded, nil
}

// anchorDir expands a leading ~ and joins other relative dirs onto base.
func anchorDir(dir, base string) string {
	switch {
	case dir == "" || filepath.IsAbs(dir):
		return dir
	case dir == "~" || strings.HasPrefix(dir, "~/"):
		home, err := os.UserHomeDir()
		if err != nil {
			return dir
		}
		return filepath.Join(home, strings.TrimPrefix(dir, "~"))
	default:
		return filepath.Join(base, dir)
	}
}
