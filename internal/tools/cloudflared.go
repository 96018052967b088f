package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/mrzlfz/code-server-labs/internal/model"
	"github.com/mrzlfz/code-server-labs/internal/notify"
)

const cloudflaredTool = "cloudflared"

// Cloudflared manages quick tunnels: no account, no token, a random
// trycloudflare.com hostname per run.
type Cloudflared struct {
	tc *Context
}

func NewCloudflared(tc *Context) *Cloudflared { return &Cloudflared{tc: tc} }

// Install downloads the cloudflared binary.
func (c *Cloudflared) Install(ctx context.Context) (string, error) {
	return c.tc.Installer.Cloudflared(ctx)
}

func (c *Cloudflared) bin() string {
	if c.tc.Cfg.Cloudflared.BinPath != "" {
		return c.tc.Cfg.Cloudflared.BinPath
	}
	return "cloudflared"
}

// Start launches a quick tunnel for the code-server port. The generated
// hostname is scraped from the output as the readiness marker.
func (c *Cloudflared) Start(ctx context.Context) (*model.TunnelRecord, error) {
	if sts, err := c.tc.statuses(ctx, cloudflaredTool); err == nil {
		for _, st := range sts {
			if st.Running {
				c.tc.Log.Infof("cloudflared already running, pid %d", st.Record.PID)
				return &st.Record, nil
			}
		}
	}

	port := c.tc.Cfg.CodeServer.Port
	sc := model.CloudflaredQuickScenario(c.bin(), port, 2*time.Minute)
	res, err := c.tc.Runner.Run(ctx, sc)
	if err != nil {
		return nil, err
	}
	if res.State != model.RunSucceeded {
		return nil, runFailure(cloudflaredTool, res)
	}

	rec := model.NewTunnelRecord(cloudflaredTool, fmt.Sprintf("quick-%d", port), res.PID)
	rec.URL = res.TunnelURL
	if err := c.tc.Store.Create(ctx, rec); err != nil {
		return nil, err
	}
	c.tc.notifyEvent(ctx, cloudflaredTool, notify.EventTunnelReady, "Cloudflare tunnel ready", rec.URL)
	return rec, nil
}

// Stop terminates the recorded tunnel process.
func (c *Cloudflared) Stop(ctx context.Context) error {
	_, err := c.tc.stopRecords(ctx, cloudflaredTool)
	return err
}

// Status reports the recorded tunnel processes.
func (c *Cloudflared) Status(ctx context.Context) ([]Status, error) {
	return c.tc.statuses(ctx, cloudflaredTool)
}
