package install

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrzlfz/code-server-labs/internal/logx"
)

func testLog(t *testing.T) *logx.Logger {
	t.Helper()
	log := logx.New(filepath.Join(t.TempDir(), "test.log"), logx.WithConsole(io.Discard))
	t.Cleanup(func() { log.Close() })
	return log
}

type tarEntry struct {
	name string
	body string
	mode int64
}

func makeTarGz(t *testing.T, entries []tarEntry) string {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, e := range entries {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     e.name,
			Mode:     e.mode,
			Size:     int64(len(e.body)),
			Typeflag: tar.TypeReg,
		}))
		_, err := tw.Write([]byte(e.body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())

	path := filepath.Join(t.TempDir(), "archive.tar.gz")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	return path
}

func TestExtractTarGz(t *testing.T) {
	archive := makeTarGz(t, []tarEntry{
		{name: "pkg/bin/tool", body: "#!/bin/sh\n", mode: 0755},
		{name: "pkg/README", body: "readme", mode: 0644},
	})
	dir := t.TempDir()
	require.NoError(t, extractTarGz(archive, dir))

	content, err := os.ReadFile(filepath.Join(dir, "pkg", "README"))
	require.NoError(t, err)
	assert.Equal(t, "readme", string(content))

	info, err := os.Stat(filepath.Join(dir, "pkg", "bin", "tool"))
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&0111)
}

func TestExtractTarGzRejectsEscape(t *testing.T) {
	archive := makeTarGz(t, []tarEntry{
		{name: "../evil", body: "x", mode: 0644},
	})
	err := extractTarGz(archive, t.TempDir())
	assert.Error(t, err)
}

func TestFindBinary(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(nested, "code"), []byte("bin"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "code.txt"), []byte("not it"), 0644))

	found, err := findBinary(dir, "code")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(nested, "code"), found)

	_, err = findBinary(dir, "missing")
	assert.Error(t, err)
}

func TestNgrokInstallAndIdempotence(t *testing.T) {
	archive := makeTarGz(t, []tarEntry{
		{name: "ngrok", body: "fake agent", mode: 0755},
	})
	payload, err := os.ReadFile(archive)
	require.NoError(t, err)

	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write(payload)
	}))
	defer srv.Close()

	root := t.TempDir()
	in := New(root, testLog(t))
	in.Client = srv.Client()

	// Point the download at the fixture by fetching it directly.
	tmp, err := in.download(context.Background(), srv.URL)
	require.NoError(t, err)
	defer os.Remove(tmp)

	dir := filepath.Join(root, "lib", "ngrok")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, extractTarGz(tmp, dir))

	link, err := in.link(filepath.Join(dir, "ngrok"), "ngrok")
	require.NoError(t, err)
	target, err := os.Readlink(link)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "ngrok"), target)

	// Installed binaries short-circuit without a second download.
	got, err := in.Ngrok(context.Background())
	require.NoError(t, err)
	assert.Equal(t, link, got)
	assert.Equal(t, 1, hits)
}

func TestVSCodeArchAlias(t *testing.T) {
	// On every supported platform the alias is either "x64" or the Go name.
	a := vscodeArch()
	assert.Contains(t, []string{"x64", "arm64"}, a)
}
