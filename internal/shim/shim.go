// Package shim patches installed extensions whose code calls
// require('crypto'): sandboxed extension hosts have no Node crypto module,
// so a replacement is prepended to the extension entry file. The untouched
// file is kept next to the patched one for Restore.
package shim

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mrzlfz/code-server-labs/internal/logx"
)

//go:embed polyfill.js
var polyfill string

// Marker identifies an already-patched file. It is the first line of the
// embedded polyfill.
const Marker = "// CRYPTO_SHIM_INJECTED"

// BackupSuffix replaces ".js" on the pristine copy.
const BackupSuffix = ".js.original"

// Injector patches extension entry files under an extensions directory.
type Injector struct {
	ExtensionsDir string
	Log           *logx.Logger
}

// entry file locations, in the order extensions typically use them.
var entryCandidates = []string{
	filepath.Join("out", "extension.js"),
	filepath.Join("dist", "extension.js"),
	filepath.Join("lib", "extension.js"),
	"extension.js",
}

// matchingDirs returns the extension directories whose name contains
// pattern, case-insensitively.
func (in *Injector) matchingDirs(pattern string) ([]string, error) {
	entries, err := os.ReadDir(in.ExtensionsDir)
	if err != nil {
		return nil, fmt.Errorf("read extensions dir: %w", err)
	}
	var dirs []string
	needle := strings.ToLower(pattern)
	for _, e := range entries {
		if e.IsDir() && strings.Contains(strings.ToLower(e.Name()), needle) {
			dirs = append(dirs, filepath.Join(in.ExtensionsDir, e.Name()))
		}
	}
	return dirs, nil
}

// entryFile returns the first entry candidate that exists under dir.
func entryFile(dir string) (string, bool) {
	for _, rel := range entryCandidates {
		path := filepath.Join(dir, rel)
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			return path, true
		}
	}
	return "", false
}

// Inject patches every extension matching pattern. Patching is idempotent:
// files already carrying the marker are skipped. Returns how many files
// were newly patched.
func (in *Injector) Inject(pattern string) (int, error) {
	dirs, err := in.matchingDirs(pattern)
	if err != nil {
		return 0, err
	}
	if len(dirs) == 0 {
		in.Log.Warnf("no extensions matching %q under %s", pattern, in.ExtensionsDir)
		return 0, nil
	}

	patched := 0
	for _, dir := range dirs {
		path, ok := entryFile(dir)
		if !ok {
			in.Log.Warnf("no entry file in %s", dir)
			continue
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return patched, err
		}
		if strings.Contains(string(content), Marker) {
			in.Log.Debugf("already patched: %s", path)
			continue
		}

		backup := strings.TrimSuffix(path, ".js") + BackupSuffix
		if _, err := os.Stat(backup); os.IsNotExist(err) {
			if err := os.WriteFile(backup, content, 0644); err != nil {
				return patched, fmt.Errorf("backup %s: %w", path, err)
			}
		}

		combined := polyfill + "\n" + string(content)
		if err := os.WriteFile(path, []byte(combined), 0644); err != nil {
			return patched, fmt.Errorf("patch %s: %w", path, err)
		}
		in.Log.Infof("patched %s", path)
		patched++
	}
	return patched, nil
}

// Restore puts the pristine entry files back for every extension matching
// pattern. Returns how many files were restored.
func (in *Injector) Restore(pattern string) (int, error) {
	dirs, err := in.matchingDirs(pattern)
	if err != nil {
		return 0, err
	}

	restored := 0
	for _, dir := range dirs {
		path, ok := entryFile(dir)
		if !ok {
			continue
		}
		backup := strings.TrimSuffix(path, ".js") + BackupSuffix
		content, err := os.ReadFile(backup)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return restored, err
		}
		if err := os.WriteFile(path, content, 0644); err != nil {
			return restored, fmt.Errorf("restore %s: %w", path, err)
		}
		if err := os.Remove(backup); err != nil {
			return restored, err
		}
		in.Log.Infof("restored %s", path)
		restored++
	}
	return restored, nil
}

// Injected reports whether any extension matching pattern carries the shim.
func (in *Injector) Injected(pattern string) (bool, error) {
	dirs, err := in.matchingDirs(pattern)
	if err != nil {
		return false, err
	}
	for _, dir := range dirs {
		path, ok := entryFile(dir)
		if !ok {
			continue
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return false, err
		}
		if strings.Contains(string(content), Marker) {
			return true, nil
		}
	}
	return false, nil
}
