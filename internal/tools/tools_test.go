package tools

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/mrzlfz/code-server-labs/internal/config"
	"github.com/mrzlfz/code-server-labs/internal/harness"
	"github.com/mrzlfz/code-server-labs/internal/install"
	"github.com/mrzlfz/code-server-labs/internal/logx"
	"github.com/mrzlfz/code-server-labs/internal/model"
	"github.com/mrzlfz/code-server-labs/internal/store"
)

func newTestContext(t *testing.T) *Context {
	t.Helper()
	dir := t.TempDir()
	log := logx.New(filepath.Join(dir, "test.log"), logx.WithConsole(io.Discard))
	t.Cleanup(func() { log.Close() })

	st, err := store.NewJSONStore(dir)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	return &Context{
		Cfg:       config.Default(),
		CfgDir:    dir,
		Log:       log,
		Store:     st,
		Runner:    &harness.Runner{Log: log},
		Installer: install.New(filepath.Join(dir, "local"), log),
	}
}

// fakeBinary puts an executable shell script named name on PATH.
func fakeBinary(t *testing.T, name, script string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0755))
	t.Setenv("PATH", dir+":"+os.Getenv("PATH"))
}

func TestCodeServerStartRecordsAndStops(t *testing.T) {
	fakeBinary(t, "code-server", `echo "HTTP server listening on http://127.0.0.1:8080/"; sleep 60`)
	tc := newTestContext(t)
	cs := NewCodeServer(tc)

	rec, err := cs.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8080", rec.URL)
	assert.True(t, pidAlive(rec.PID))

	sts, err := cs.Status(context.Background())
	require.NoError(t, err)
	require.Len(t, sts, 1)
	assert.True(t, sts[0].Running)

	require.NoError(t, cs.Stop(context.Background()))
	assert.True(t, waitDead(rec.PID, 5*time.Second))

	sts, err = cs.Status(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sts)
}

func TestCodeServerStartFailure(t *testing.T) {
	fakeBinary(t, "code-server", `echo "error: address already in use"; exit 1`)
	tc := newTestContext(t)
	cs := NewCodeServer(tc)

	_, err := cs.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "address already in use")
}

func TestWriteServerConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	tc := newTestContext(t)
	tc.Cfg.CodeServer.Password = "secret"
	cs := NewCodeServer(tc)

	require.NoError(t, cs.writeServerConfig())

	raw, err := os.ReadFile(filepath.Join(home, ".config", "code-server", "config.yaml"))
	require.NoError(t, err)

	var sc serverConfig
	require.NoError(t, yaml.Unmarshal(raw, &sc))
	assert.Equal(t, "127.0.0.1:8080", sc.BindAddr)
	assert.Equal(t, "password", sc.Auth)
	assert.Equal(t, "secret", sc.Password)
}

func TestGeneratePassword(t *testing.T) {
	a, err := generatePassword()
	require.NoError(t, err)
	b, err := generatePassword()
	require.NoError(t, err)
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
}

func TestNgrokStartWithoutToken(t *testing.T) {
	tc := newTestContext(t)
	n := NewNgrok(tc)

	_, err := n.Start(context.Background())
	assert.ErrorIs(t, err, ErrNoAuthToken)
}

func TestNgrokPublicURL(t *testing.T) {
	body := `{"tunnels":[
		{"public_url":"http://abc.ngrok.io","proto":"http","config":{"addr":"http://localhost:8080"}},
		{"public_url":"https://abc.ngrok.io","proto":"https","config":{"addr":"http://localhost:8080"}}
	]}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, body)
	}))
	defer srv.Close()

	tc := newTestContext(t)
	n := NewNgrok(tc)
	n.api = srv.URL
	n.client = srv.Client()

	url, err := n.publicURL(context.Background(), 8080)
	require.NoError(t, err)
	assert.Equal(t, "https://abc.ngrok.io", url)
}

func TestCloudflaredStartScrapesURL(t *testing.T) {
	fakeBinary(t, "cloudflared", `echo "INF +-- https://random-words.trycloudflare.com"; sleep 60`)
	tc := newTestContext(t)
	c := NewCloudflared(tc)

	rec, err := c.Start(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { c.Stop(context.Background()) })
	assert.Equal(t, "https://random-words.trycloudflare.com", rec.URL)
}

func TestDockerDetect(t *testing.T) {
	fakeBinary(t, "docker", `echo "Docker version 27.0.1"`)
	tc := newTestContext(t)
	d := NewDocker(tc)
	assert.True(t, d.Detect(context.Background()))
}

func TestRunFailureIncludesTail(t *testing.T) {
	res := &harness.Result{
		State:      model.RunFailed,
		ExitCode:   1,
		Transcript: &harness.Transcript{},
	}
	res.Transcript.Append("fatal: bad credentials", model.TagError)

	err := runFailure("vscode", res)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad credentials")
	assert.Contains(t, err.Error(), "exit 1")
}
