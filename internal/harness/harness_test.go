package harness

import (
	"context"
	"io"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrzlfz/code-server-labs/internal/logx"
	"github.com/mrzlfz/code-server-labs/internal/model"
)

func testRunner(t *testing.T) *Runner {
	t.Helper()
	log := logx.New(filepath.Join(t.TempDir(), "test.log"), logx.WithConsole(io.Discard))
	t.Cleanup(func() { log.Close() })
	return &Runner{Log: log}
}

func shScenario(script string, rules []model.MatchRule, prompts []model.PromptRule, timeout time.Duration) model.Scenario {
	return model.Scenario{
		Tool:    "sh",
		Name:    "test",
		Argv:    []string{"sh", "-c", script},
		Rules:   rules,
		Prompts: prompts,
		Timeout: timeout,
	}
}

func TestRunAnswersPromptAndSucceeds(t *testing.T) {
	r := testRunner(t)
	sc := shScenario(
		`printf 'choose an option: '; read ans; echo "picked $ans"; echo done`,
		[]model.MatchRule{
			{Contains: "choose an option", Tag: model.TagPrompt},
			{Contains: "done", Tag: model.TagSuccess},
		},
		[]model.PromptRule{
			{ID: "option", Contains: "choose an option", Response: []byte("2\n")},
		},
		10*time.Second,
	)

	res, err := r.Run(context.Background(), sc)
	require.NoError(t, err)
	assert.Equal(t, model.RunSucceeded, res.State)

	var texts []string
	for _, l := range res.Transcript.Lines() {
		texts = append(texts, l.Text)
	}
	assert.Contains(t, texts, "picked 2")
}

func TestRunErrorLineMeansFailed(t *testing.T) {
	r := testRunner(t)
	sc := shScenario(
		`echo 'error: bad token'; exit 1`,
		[]model.MatchRule{
			{Contains: "error", Fold: true, Tag: model.TagError},
		},
		nil,
		10*time.Second,
	)

	res, err := r.Run(context.Background(), sc)
	require.NoError(t, err)
	assert.Equal(t, model.RunFailed, res.State)
	require.NotZero(t, res.Transcript.Len())
	assert.Equal(t, model.TagError, res.Transcript.Lines()[0].Tag)
}

func TestRunNonZeroExitMeansFailed(t *testing.T) {
	r := testRunner(t)
	sc := shScenario(`exit 3`, nil, nil, 10*time.Second)

	start := time.Now()
	res, err := r.Run(context.Background(), sc)
	require.NoError(t, err)
	assert.Equal(t, model.RunFailed, res.State)
	assert.Equal(t, 3, res.ExitCode)
	assert.Less(t, time.Since(start), 5*time.Second, "exit was judged only at the deadline")
}

// The PTY master never delivers EOF while the runner holds it open, so a
// child that exits without matching any rule must still be judged by exit
// code well before the wall-clock bound.
func TestRunSuccessOnExitZero(t *testing.T) {
	r := testRunner(t)
	sc := shScenario(`echo 'Docker version 27.0.1'`, nil, nil, 10*time.Second)
	sc.SuccessOnExit = true

	start := time.Now()
	res, err := r.Run(context.Background(), sc)
	require.NoError(t, err)
	assert.Equal(t, model.RunSucceeded, res.State)
	assert.Equal(t, 0, res.ExitCode)
	assert.Less(t, time.Since(start), 5*time.Second, "exit was judged only at the deadline")

	var texts []string
	for _, l := range res.Transcript.Lines() {
		texts = append(texts, l.Text)
	}
	assert.Contains(t, texts, "Docker version 27.0.1", "output printed just before exit was dropped")
}

func TestRunTimesOutAndKillsChild(t *testing.T) {
	r := testRunner(t)
	sc := shScenario(`sleep 5; echo done`, []model.MatchRule{
		{Contains: "done", Tag: model.TagSuccess},
	}, nil, 2*time.Second)

	start := time.Now()
	res, err := r.Run(context.Background(), sc)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, model.RunTimedOut, res.State)
	assert.Less(t, elapsed, 4500*time.Millisecond, "timeout fired late")
	assertDead(t, res.PID)
}

func TestRunCancelKillsChild(t *testing.T) {
	r := testRunner(t)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(300 * time.Millisecond)
		cancel()
	}()

	sc := shScenario(`sleep 30`, nil, nil, time.Minute)
	res, err := r.Run(ctx, sc)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, model.RunKilled, res.State)
	assertDead(t, res.PID)
}

func TestRunMissingBinary(t *testing.T) {
	r := testRunner(t)
	sc := model.Scenario{
		Tool:    "nope",
		Name:    "test",
		Argv:    []string{"definitely-not-a-real-binary-zz"},
		Timeout: time.Second,
	}
	res, err := r.Run(context.Background(), sc)
	assert.ErrorIs(t, err, ErrBinaryNotFound)
	assert.Equal(t, model.RunFailed, res.State)
}

func TestRunExtractsDeviceFlowArtifacts(t *testing.T) {
	r := testRunner(t)
	sc := shScenario(
		`echo 'To grant access, open https://github.com/login/device and use code ABCD-1234'; echo ok`,
		[]model.MatchRule{
			{Contains: "use code", Tag: model.TagPrompt},
			{Contains: "ok", Tag: model.TagSuccess},
		},
		nil,
		10*time.Second,
	)

	res, err := r.Run(context.Background(), sc)
	require.NoError(t, err)
	assert.Equal(t, "ABCD-1234", res.DeviceCode)
	assert.Equal(t, "https://github.com/login/device", res.AuthURL)
}

func TestRunExtractsTunnelURL(t *testing.T) {
	r := testRunner(t)
	sc := shScenario(
		`echo 'Open this link in your browser https://vscode.dev/tunnel/colab/work'`,
		[]model.MatchRule{
			{Contains: "vscode.dev/tunnel", Tag: model.TagSuccess},
		},
		nil,
		10*time.Second,
	)

	res, err := r.Run(context.Background(), sc)
	require.NoError(t, err)
	assert.Equal(t, model.RunSucceeded, res.State)
	assert.Equal(t, "https://vscode.dev/tunnel/colab/work", res.TunnelURL)
}

// assertDead polls briefly for the pid to disappear; the child may need a
// moment to be reaped.
func assertDead(t *testing.T, pid int) {
	t.Helper()
	require.NotZero(t, pid)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if syscall.Kill(pid, 0) != nil {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("pid %d still alive", pid)
}
