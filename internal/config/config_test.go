package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadPreservesUserOverrides(t *testing.T) {
	dir := t.TempDir()
	doc := `{"code_server":{"port":9999,"password":"hunter2"},"ngrok":{"region":"eu"}}`
	require.NoError(t, os.WriteFile(Path(dir), []byte(doc), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	// User-set keys survive.
	assert.Equal(t, 9999, cfg.CodeServer.Port)
	assert.Equal(t, "hunter2", cfg.CodeServer.Password)
	assert.Equal(t, "eu", cfg.Ngrok.Region)
	// Keys absent from the user document get defaults.
	assert.Equal(t, Default().CodeServer.Version, cfg.CodeServer.Version)
	assert.Equal(t, Default().Extensions.Popular, cfg.Extensions.Popular)
}

func TestLoadSaveRoundTripDropsNothing(t *testing.T) {
	dir := t.TempDir()
	doc := `{"code_server":{"port":9999}}`
	require.NoError(t, os.WriteFile(Path(dir), []byte(doc), 0644))

	first, err := Load(dir)
	require.NoError(t, err)
	require.NoError(t, Save(dir, first))

	second, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 9999, second.CodeServer.Port)
}

func TestLoadCorruptFileFallsBackWithoutDeleting(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(Path(dir), []byte("{not json"), 0644))

	cfg, err := Load(dir)
	assert.ErrorIs(t, err, ErrCorrupt)
	assert.Equal(t, Default(), cfg)

	// The corrupt file is shadowed, not removed.
	raw, rerr := os.ReadFile(Path(dir))
	require.NoError(t, rerr)
	assert.Equal(t, "{not json", string(raw))
}

func TestMergeIsIdempotent(t *testing.T) {
	defaults := toMap(Default())
	user := map[string]any{
		"code_server": map[string]any{"port": float64(9999)},
		"extra":       "kept",
	}

	once := Merge(defaults, user)
	twice := Merge(defaults, once)
	assert.Equal(t, once, twice)
}

func TestMergeListsReplaceNotAppend(t *testing.T) {
	defaults := map[string]any{
		"extensions": map[string]any{"popular": []any{"a", "b", "c"}},
	}
	user := map[string]any{
		"extensions": map[string]any{"popular": []any{"x"}},
	}
	merged := Merge(defaults, user)
	ext := merged["extensions"].(map[string]any)
	assert.Equal(t, []any{"x"}, ext["popular"])
}

func TestMergeUnknownUserKeysKept(t *testing.T) {
	merged := Merge(map[string]any{"known": 1}, map[string]any{"custom": "v"})
	assert.Equal(t, 1, merged["known"])
	assert.Equal(t, "v", merged["custom"])
}

func TestDirHonorsXDGConfigHome(t *testing.T) {
	base := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", base)

	dir, err := Dir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "code-server-labs"), dir)
}
