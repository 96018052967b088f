package tools

import (
	"context"
	"os"
	"time"

	"github.com/mrzlfz/code-server-labs/internal/model"
	"github.com/mrzlfz/code-server-labs/internal/notify"
)

const dockerTool = "docker"

// Docker manages the Docker engine on hosts without systemd, where the
// daemon has to be started by hand.
type Docker struct {
	tc *Context
}

func NewDocker(tc *Context) *Docker { return &Docker{tc: tc} }

// Detect reports whether the docker client is installed.
func (d *Docker) Detect(ctx context.Context) bool {
	sc := model.Scenario{
		Tool:          dockerTool,
		Name:          "version",
		Argv:          []string{"docker", "--version"},
		Timeout:       15 * time.Second,
		SuccessOnExit: true,
	}
	res, err := d.tc.Runner.Run(ctx, sc)
	return err == nil && res.State == model.RunSucceeded
}

// Install runs the get.docker.com convenience script.
func (d *Docker) Install(ctx context.Context) error {
	script, err := d.tc.Installer.DockerScript(ctx)
	if err != nil {
		return err
	}
	defer os.Remove(script)

	sc := model.Scenario{
		Tool: dockerTool,
		Name: "install",
		Argv: []string{"sh", script},
		Rules: []model.MatchRule{
			{Contains: "Docker Engine", Tag: model.TagProgress},
			{Contains: "error", Fold: true, Tag: model.TagError},
		},
		Timeout:       15 * time.Minute,
		SuccessOnExit: true,
	}
	res, err := d.tc.Runner.Run(ctx, sc)
	if err != nil {
		return err
	}
	if res.State != model.RunSucceeded {
		return runFailure(dockerTool, res)
	}
	d.tc.notifyEvent(ctx, dockerTool, notify.EventInstallDone, "Docker installed", "")
	return nil
}

// StartDaemon launches dockerd in the background and waits for the API to
// answer `docker info`.
func (d *Docker) StartDaemon(ctx context.Context) (*model.TunnelRecord, error) {
	if d.Healthy(ctx) {
		d.tc.Log.Infof("docker daemon already healthy")
		if sts, err := d.tc.statuses(ctx, dockerTool); err == nil && len(sts) > 0 {
			return &sts[0].Record, nil
		}
		return nil, nil
	}

	sc := model.Scenario{
		Tool: dockerTool,
		Name: "daemon",
		Argv: []string{"dockerd"},
		Rules: []model.MatchRule{
			{Contains: "API listen on", Tag: model.TagSuccess},
			{Contains: "daemon is already running", Fold: true, Tag: model.TagError},
			{Contains: "failed to start daemon", Fold: true, Tag: model.TagError},
		},
		Timeout: 2 * time.Minute,
		Detach:  true,
	}
	res, err := d.tc.Runner.Run(ctx, sc)
	if err != nil {
		return nil, err
	}
	if res.State != model.RunSucceeded {
		return nil, runFailure(dockerTool, res)
	}

	// The listen line precedes full readiness; give the API a health poll.
	for i := 0; i < 10 && !d.Healthy(ctx); i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
		}
	}

	rec := model.NewTunnelRecord(dockerTool, "daemon", res.PID)
	if err := d.tc.Store.Create(ctx, rec); err != nil {
		return nil, err
	}
	d.tc.notifyEvent(ctx, dockerTool, notify.EventInstallDone, "Docker daemon running", "")
	return rec, nil
}

// Healthy reports whether `docker info` succeeds against the daemon.
func (d *Docker) Healthy(ctx context.Context) bool {
	sc := model.Scenario{
		Tool:          dockerTool,
		Name:          "info",
		Argv:          []string{"docker", "info"},
		Timeout:       20 * time.Second,
		SuccessOnExit: true,
	}
	res, err := d.tc.Runner.Run(ctx, sc)
	return err == nil && res.State == model.RunSucceeded
}

// StopDaemon terminates a daemon this tool started.
func (d *Docker) StopDaemon(ctx context.Context) error {
	_, err := d.tc.stopRecords(ctx, dockerTool)
	return err
}
