package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/mrzlfz/code-server-labs/internal/model"
	"github.com/mrzlfz/code-server-labs/internal/notify"
)

const vscodeTool = "vscode"

// VSCode manages the standalone VS Code CLI: install, tunnel auth, and the
// tunnel process itself.
type VSCode struct {
	tc *Context
}

func NewVSCode(tc *Context) *VSCode { return &VSCode{tc: tc} }

func (v *VSCode) bin() string {
	if v.tc.Cfg.VSCode.BinPath != "" {
		return v.tc.Cfg.VSCode.BinPath
	}
	return "code"
}

// Install downloads the VS Code CLI and records its path in the config.
func (v *VSCode) Install(ctx context.Context) (string, error) {
	bin, err := v.tc.Installer.VSCode(ctx)
	if err != nil {
		return "", err
	}
	v.tc.Cfg.VSCode.BinPath = bin
	if err := v.tc.SaveConfig(); err != nil {
		return "", err
	}
	v.tc.notifyEvent(ctx, vscodeTool, notify.EventInstallDone, "VS Code CLI installed", bin)
	return bin, nil
}

// LoggedIn reports whether the CLI already has tunnel credentials.
func (v *VSCode) LoggedIn(ctx context.Context) bool {
	sc := model.Scenario{
		Tool: vscodeTool,
		Name: "user-show",
		Argv: []string{v.bin(), "tunnel", "user", "show"},
		Rules: []model.MatchRule{
			{Contains: "not logged in", Fold: true, Tag: model.TagError},
			{Contains: "logged in", Fold: true, Tag: model.TagSuccess},
		},
		Timeout:       30 * time.Second,
		SuccessOnExit: true,
	}
	res, err := v.tc.Runner.Run(ctx, sc)
	return err == nil && res.State == model.RunSucceeded
}

// Login drives the device-code flow. The device code and verification URL
// are surfaced through the result and a notification so the operator can
// finish authentication in a browser; there is no automatic retry, repeated
// login attempts trip GitHub's rate limit.
func (v *VSCode) Login(ctx context.Context) (*LoginInfo, error) {
	sc := model.VSCodeLoginScenario(v.bin(), v.tc.Cfg.VSCode.Provider, 5*time.Minute)
	res, err := v.tc.Runner.Run(ctx, sc)
	if err != nil {
		return nil, err
	}

	info := &LoginInfo{DeviceCode: res.DeviceCode, AuthURL: res.AuthURL}
	if res.DeviceCode != "" {
		v.tc.notifyEvent(ctx, vscodeTool, notify.EventAuthRequired,
			"Device login required",
			fmt.Sprintf("Open %s and enter code %s", res.AuthURL, res.DeviceCode))
	}
	if res.State != model.RunSucceeded {
		// The operator can still complete the flow out of band with the
		// surfaced code.
		return info, runFailure(vscodeTool, res)
	}
	return info, nil
}

// LoginInfo carries the device-flow artifacts of a login attempt.
type LoginInfo struct {
	DeviceCode string
	AuthURL    string
}

// LoginWithToken authenticates with a pre-provisioned access token.
func (v *VSCode) LoginWithToken(ctx context.Context, token string) error {
	sc := model.Scenario{
		Tool: vscodeTool,
		Name: "token-login",
		Argv: []string{
			v.bin(), "tunnel", "user", "login",
			"--provider", v.tc.Cfg.VSCode.Provider,
			"--access-token", token,
		},
		Rules: []model.MatchRule{
			{Contains: "error", Fold: true, Tag: model.TagError},
		},
		Timeout:       time.Minute,
		SuccessOnExit: true,
	}
	res, err := v.tc.Runner.Run(ctx, sc)
	if err != nil {
		return err
	}
	if res.State != model.RunSucceeded {
		return runFailure(vscodeTool, res)
	}
	return nil
}

// StartTunnel launches `code tunnel --name ...` in the background. When the
// CLI is not authenticated it answers the provider menu itself and surfaces
// the resulting device code; the vscode.dev URL is the readiness marker.
func (v *VSCode) StartTunnel(ctx context.Context) (*model.TunnelRecord, error) {
	if sts, err := v.tc.statuses(ctx, vscodeTool); err == nil {
		for _, st := range sts {
			if st.Running {
				v.tc.Log.Infof("tunnel already running, pid %d", st.Record.PID)
				return &st.Record, nil
			}
		}
	}

	name := v.tc.Cfg.VSCode.TunnelName
	if name == "" {
		name = "colab"
	}
	sc := model.VSCodeTunnelScenario(v.bin(), name, 10*time.Minute)
	res, err := v.tc.Runner.Run(ctx, sc)
	if err != nil {
		return nil, err
	}
	if res.DeviceCode != "" {
		v.tc.notifyEvent(ctx, vscodeTool, notify.EventAuthRequired,
			"Device login required",
			fmt.Sprintf("Open %s and enter code %s", res.AuthURL, res.DeviceCode))
	}
	if res.State != model.RunSucceeded {
		return nil, runFailure(vscodeTool, res)
	}

	rec := model.NewTunnelRecord(vscodeTool, name, res.PID)
	rec.URL = res.TunnelURL
	if err := v.tc.Store.Create(ctx, rec); err != nil {
		return nil, err
	}
	v.tc.notifyEvent(ctx, vscodeTool, notify.EventTunnelReady, "Tunnel ready", rec.URL)
	return rec, nil
}

// StopTunnel kills the recorded tunnel process and unregisters nothing;
// the tunnel name stays reserved for the next start.
func (v *VSCode) StopTunnel(ctx context.Context) error {
	n, err := v.tc.stopRecords(ctx, vscodeTool)
	if err != nil {
		return err
	}
	if n > 0 {
		v.tc.notifyEvent(ctx, vscodeTool, notify.EventServerStopped, "Tunnel stopped", "")
	}
	return nil
}

// Status reports the recorded tunnel processes.
func (v *VSCode) Status(ctx context.Context) ([]Status, error) {
	return v.tc.statuses(ctx, vscodeTool)
}

// Unregister removes this machine's tunnel registration.
func (v *VSCode) Unregister(ctx context.Context) error {
	sc := model.Scenario{
		Tool: vscodeTool,
		Name: "unregister",
		Argv: []string{v.bin(), "tunnel", "unregister"},
		Rules: []model.MatchRule{
			{Contains: "error", Fold: true, Tag: model.TagError},
		},
		Timeout:       time.Minute,
		SuccessOnExit: true,
	}
	res, err := v.tc.Runner.Run(ctx, sc)
	if err != nil {
		return err
	}
	if res.State != model.RunSucceeded {
		return runFailure(vscodeTool, res)
	}
	return nil
}
