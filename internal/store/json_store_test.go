package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrzlfz/code-server-labs/internal/model"
)

func newTestStore(t *testing.T) (*JSONStore, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := NewJSONStore(dir)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, dir
}

// liveRecord uses our own pid so pruneDead keeps it across reloads.
func liveRecord(tool, name string) *model.TunnelRecord {
	return model.NewTunnelRecord(tool, name, os.Getpid())
}

func TestCreateGetDelete(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	rec := liveRecord("ngrok", "http-8080")
	rec.URL = "https://abc123.ngrok.io"
	require.NoError(t, s.Create(ctx, rec))

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://abc123.ngrok.io", got.URL)

	require.NoError(t, s.Delete(ctx, rec.ID))
	_, err = s.Get(ctx, rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateDuplicateID(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	rec := liveRecord("cloudflared", "quick")
	require.NoError(t, s.Create(ctx, rec))
	assert.ErrorIs(t, s.Create(ctx, rec), ErrAlreadyExists)
}

func TestFindByTool(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, liveRecord("ngrok", "a")))
	require.NoError(t, s.Create(ctx, liveRecord("ngrok", "b")))
	require.NoError(t, s.Create(ctx, liveRecord("vscode", "c")))

	got, err := s.FindByTool(ctx, "ngrok")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestListNewestFirst(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	old := liveRecord("ngrok", "old")
	old.StartedAt = 1000
	mid := liveRecord("vscode", "mid")
	mid.StartedAt = 2000
	newest := liveRecord("cloudflared", "new")
	newest.StartedAt = 3000

	require.NoError(t, s.Create(ctx, mid))
	require.NoError(t, s.Create(ctx, old))
	require.NoError(t, s.Create(ctx, newest))

	got, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "new", got[0].Name)
	assert.Equal(t, "mid", got[1].Name)
	assert.Equal(t, "old", got[2].Name)
}

func TestPersistsAcrossReopen(t *testing.T) {
	s, dir := newTestStore(t)
	ctx := context.Background()

	rec := liveRecord("codeserver", "main")
	require.NoError(t, s.Create(ctx, rec))
	require.NoError(t, s.Close())

	s2, err := NewJSONStore(dir)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "codeserver", got.Tool)
}

func TestPrunesDeadProcessesOnLoad(t *testing.T) {
	s, dir := newTestStore(t)
	ctx := context.Background()

	dead := model.NewTunnelRecord("ngrok", "gone", 999999999)
	require.NoError(t, s.Create(ctx, dead))
	alive := liveRecord("vscode", "here")
	require.NoError(t, s.Create(ctx, alive))
	require.NoError(t, s.Close())

	s2, err := NewJSONStore(dir)
	require.NoError(t, err)
	defer s2.Close()

	_, err = s2.Get(ctx, dead.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s2.Get(ctx, alive.ID)
	assert.NoError(t, err)

	_, statErr := os.Stat(filepath.Join(dir, "tunnels.json"))
	assert.NoError(t, statErr)
}
