package shim

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrzlfz/code-server-labs/internal/logx"
)

const fakeExtension = `const crypto = require('crypto');
module.exports = { activate() {} };
`

func newInjector(t *testing.T) (*Injector, string) {
	t.Helper()
	dir := t.TempDir()
	log := logx.New(filepath.Join(t.TempDir(), "test.log"), logx.WithConsole(io.Discard))
	t.Cleanup(func() { log.Close() })
	return &Injector{ExtensionsDir: dir, Log: log}, dir
}

func writeExtension(t *testing.T, extDir, name, entryRel string) string {
	t.Helper()
	entry := filepath.Join(extDir, name, entryRel)
	require.NoError(t, os.MkdirAll(filepath.Dir(entry), 0755))
	require.NoError(t, os.WriteFile(entry, []byte(fakeExtension), 0644))
	return entry
}

func TestInjectBacksUpAndPatches(t *testing.T) {
	in, dir := newInjector(t)
	entry := writeExtension(t, dir, "publisher.augment-1.0.0", filepath.Join("out", "extension.js"))

	n, err := in.Inject("augment")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	patched, err := os.ReadFile(entry)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(patched), Marker))
	assert.Contains(t, string(patched), fakeExtension)

	backup, err := os.ReadFile(strings.TrimSuffix(entry, ".js") + BackupSuffix)
	require.NoError(t, err)
	assert.Equal(t, fakeExtension, string(backup))
}

func TestInjectIsIdempotent(t *testing.T) {
	in, dir := newInjector(t)
	entry := writeExtension(t, dir, "publisher.augment-1.0.0", "extension.js")

	n, err := in.Inject("augment")
	require.NoError(t, err)
	require.Equal(t, 1, n)
	first, err := os.ReadFile(entry)
	require.NoError(t, err)

	n, err = in.Inject("augment")
	require.NoError(t, err)
	assert.Zero(t, n)
	second, err := os.ReadFile(entry)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRestore(t *testing.T) {
	in, dir := newInjector(t)
	entry := writeExtension(t, dir, "publisher.augment-1.0.0", filepath.Join("dist", "extension.js"))

	_, err := in.Inject("augment")
	require.NoError(t, err)

	injected, err := in.Injected("augment")
	require.NoError(t, err)
	assert.True(t, injected)

	n, err := in.Restore("augment")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	content, err := os.ReadFile(entry)
	require.NoError(t, err)
	assert.Equal(t, fakeExtension, string(content))

	_, err = os.Stat(strings.TrimSuffix(entry, ".js") + BackupSuffix)
	assert.True(t, os.IsNotExist(err))
}

func TestInjectNoMatches(t *testing.T) {
	in, dir := newInjector(t)
	writeExtension(t, dir, "ms-python.python-2024.1.0", "extension.js")

	n, err := in.Inject("augment")
	require.NoError(t, err)
	assert.Zero(t, n)
}
