// Package tools contains the per-tool managers: code-server, the VS Code
// CLI, ngrok, cloudflared, and Docker. All state is carried by an explicit
// Context so the managers are testable without process-wide singletons.
package tools

import (
	"context"
	"fmt"
	"strings"
	"syscall"
	"time"

	"github.com/mrzlfz/code-server-labs/internal/config"
	"github.com/mrzlfz/code-server-labs/internal/harness"
	"github.com/mrzlfz/code-server-labs/internal/install"
	"github.com/mrzlfz/code-server-labs/internal/logx"
	"github.com/mrzlfz/code-server-labs/internal/model"
	"github.com/mrzlfz/code-server-labs/internal/notify"
	"github.com/mrzlfz/code-server-labs/internal/shim"
	"github.com/mrzlfz/code-server-labs/internal/store"
)

// Context bundles everything a tool manager needs. Constructed once at
// program start and passed by pointer.
type Context struct {
	Cfg       *config.Config
	CfgDir    string
	Log       *logx.Logger
	Store     store.TunnelStore
	Notifier  *notify.Dispatcher
	Runner    *harness.Runner
	Installer *install.Installer
	Shim      *shim.Injector
}

// SaveConfig persists the current configuration.
func (tc *Context) SaveConfig() error {
	return config.Save(tc.CfgDir, tc.Cfg)
}

func (tc *Context) notifyEvent(ctx context.Context, tool string, typ notify.EventType, title, msg string) {
	if tc.Notifier == nil {
		return
	}
	tc.Notifier.Dispatch(ctx, tc.Cfg.Notifications, notify.Event{
		Tool:      tool,
		Type:      typ,
		Title:     title,
		Message:   msg,
		Timestamp: time.Now(),
	})
}

// Status describes one running process owned by a tool.
type Status struct {
	Record  model.TunnelRecord
	Running bool
}

// statuses returns the store records for tool with a liveness check.
func (tc *Context) statuses(ctx context.Context, tool string) ([]Status, error) {
	records, err := tc.Store.FindByTool(ctx, tool)
	if err != nil {
		return nil, err
	}
	out := make([]Status, 0, len(records))
	for _, r := range records {
		out = append(out, Status{Record: r, Running: pidAlive(r.PID)})
	}
	return out, nil
}

// stopRecords terminates every recorded process for tool and clears the
// records. Dead processes are cleared silently.
func (tc *Context) stopRecords(ctx context.Context, tool string) (int, error) {
	records, err := tc.Store.FindByTool(ctx, tool)
	if err != nil {
		return 0, err
	}
	stopped := 0
	for _, r := range records {
		if pidAlive(r.PID) {
			tc.Log.Infof("stopping %s pid %d", tool, r.PID)
			syscall.Kill(r.PID, syscall.SIGTERM)
			if !waitDead(r.PID, 5*time.Second) {
				syscall.Kill(r.PID, syscall.SIGKILL)
			}
			stopped++
		}
		if err := tc.Store.Delete(ctx, r.ID); err != nil && err != store.ErrNotFound {
			return stopped, err
		}
	}
	return stopped, nil
}

// runFailure turns a non-success harness result into an error carrying the
// transcript tail, reported verbatim with no interpretation.
func runFailure(tool string, res *harness.Result) error {
	var tail []string
	for _, l := range res.Transcript.Tail(5) {
		tail = append(tail, l.Text)
	}
	if len(tail) == 0 {
		return fmt.Errorf("%s: command failed (state %s, exit %d)", tool, res.State, res.ExitCode)
	}
	return fmt.Errorf("%s: command failed (state %s, exit %d): %s",
		tool, res.State, res.ExitCode, strings.Join(tail, " | "))
}

func pidAlive(pid int) bool {
	return pid > 0 && syscall.Kill(pid, 0) == nil
}

func waitDead(pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !pidAlive(pid) {
			return true
		}
		time.Sleep(100 * time.Millisecond)
	}
	return !pidAlive(pid)
}
