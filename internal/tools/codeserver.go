package tools

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mrzlfz/code-server-labs/internal/model"
	"github.com/mrzlfz/code-server-labs/internal/notify"
	"github.com/mrzlfz/code-server-labs/pkg/utils"
)

const codeServerTool = "codeserver"

// openVSXGallery points code-server's extension marketplace at Open VSX;
// the Microsoft marketplace rejects third-party products.
const openVSXGallery = `{"serviceUrl":"https://open-vsx.org/vscode/gallery","itemUrl":"https://open-vsx.org/vscode/item"}`

// serverConfig is the code-server config.yaml schema.
type serverConfig struct {
	BindAddr string `yaml:"bind-addr"`
	Auth     string `yaml:"auth"`
	Password string `yaml:"password,omitempty"`
	Cert     bool   `yaml:"cert"`
}

// CodeServer manages the code-server install and process.
type CodeServer struct {
	tc *Context
}

func NewCodeServer(tc *Context) *CodeServer { return &CodeServer{tc: tc} }

// Install downloads the configured release, writes config.yaml, and
// generates a password when none is set.
func (cs *CodeServer) Install(ctx context.Context) (string, error) {
	bin, err := cs.tc.Installer.CodeServer(ctx, cs.tc.Cfg.CodeServer.Version)
	if err != nil {
		return "", err
	}

	if cs.tc.Cfg.CodeServer.Auth == "password" && cs.tc.Cfg.CodeServer.Password == "" {
		pw, err := generatePassword()
		if err != nil {
			return "", err
		}
		cs.tc.Cfg.CodeServer.Password = pw
		if err := cs.tc.SaveConfig(); err != nil {
			return "", err
		}
	}

	if err := cs.writeServerConfig(); err != nil {
		return "", err
	}
	cs.tc.notifyEvent(ctx, codeServerTool, notify.EventInstallDone,
		"code-server installed", fmt.Sprintf("version %s at %s", cs.tc.Cfg.CodeServer.Version, bin))
	return bin, nil
}

// writeServerConfig renders ~/.config/code-server/config.yaml from the
// current settings.
func (cs *CodeServer) writeServerConfig() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	dir := filepath.Join(home, ".config", "code-server")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	sc := serverConfig{
		BindAddr: fmt.Sprintf("%s:%d", cs.tc.Cfg.CodeServer.BindAddr, cs.tc.Cfg.CodeServer.Port),
		Auth:     cs.tc.Cfg.CodeServer.Auth,
		Password: cs.tc.Cfg.CodeServer.Password,
	}
	out, err := yaml.Marshal(&sc)
	if err != nil {
		return err
	}
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, out, 0600); err != nil {
		return err
	}
	cs.tc.Log.Infof("wrote %s", path)
	return nil
}

// Start launches code-server in the background and records it. Readiness is
// the listen line; the URL recorded is the local bind address.
func (cs *CodeServer) Start(ctx context.Context) (*model.TunnelRecord, error) {
	if sts, err := cs.tc.statuses(ctx, codeServerTool); err == nil {
		for _, st := range sts {
			if st.Running {
				cs.tc.Log.Infof("code-server already running, pid %d", st.Record.PID)
				return &st.Record, nil
			}
		}
	}

	cfg := cs.tc.Cfg.CodeServer
	sc := model.Scenario{
		Tool: codeServerTool,
		Name: "serve",
		Argv: []string{
			"code-server",
			"--bind-addr", fmt.Sprintf("%s:%d", cfg.BindAddr, cfg.Port),
			"--extensions-dir", utils.ExpandPath(cfg.ExtensionsDir),
			"--user-data-dir", utils.ExpandPath(cfg.UserDataDir),
		},
		Env: []string{"EXTENSIONS_GALLERY=" + openVSXGallery},
		Rules: []model.MatchRule{
			{Contains: "HTTP server listening", Tag: model.TagSuccess},
			{Contains: "address already in use", Fold: true, Tag: model.TagError},
			{Contains: "error", Fold: true, Tag: model.TagError},
		},
		Timeout: 60 * time.Second,
		Detach:  true,
	}

	res, err := cs.tc.Runner.Run(ctx, sc)
	if err != nil {
		return nil, err
	}
	if res.State != model.RunSucceeded {
		return nil, runFailure(codeServerTool, res)
	}

	rec := model.NewTunnelRecord(codeServerTool, "serve", res.PID)
	rec.URL = fmt.Sprintf("http://%s:%d", cfg.BindAddr, cfg.Port)
	if err := cs.tc.Store.Create(ctx, rec); err != nil {
		return nil, err
	}
	cs.tc.notifyEvent(ctx, codeServerTool, notify.EventTunnelReady, "code-server running", rec.URL)
	return rec, nil
}

// Stop terminates the recorded code-server process.
func (cs *CodeServer) Stop(ctx context.Context) error {
	n, err := cs.tc.stopRecords(ctx, codeServerTool)
	if err != nil {
		return err
	}
	if n > 0 {
		cs.tc.notifyEvent(ctx, codeServerTool, notify.EventServerStopped, "code-server stopped", "")
	}
	return nil
}

// Status reports the recorded processes with a liveness check.
func (cs *CodeServer) Status(ctx context.Context) ([]Status, error) {
	return cs.tc.statuses(ctx, codeServerTool)
}

// InstallExtensions installs each id with --force; already-installed
// extensions are counted as success. Failures are collected, not fatal per
// extension.
func (cs *CodeServer) InstallExtensions(ctx context.Context, ids []string) error {
	var failed []string
	for _, id := range ids {
		sc := model.ExtensionInstallScenario(codeServerTool, "code-server", id, 2*time.Minute)
		res, err := cs.tc.Runner.Run(ctx, sc)
		if err != nil || res.State != model.RunSucceeded {
			cs.tc.Log.Warnf("extension %s failed: state %s", id, res.State)
			failed = append(failed, id)
			continue
		}
		cs.tc.Log.Infof("extension %s installed", id)
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d extension(s) failed: %s", len(failed), strings.Join(failed, ", "))
	}
	return nil
}

// ListExtensions returns the installed extension identifiers.
func (cs *CodeServer) ListExtensions(ctx context.Context) ([]string, error) {
	sc := model.Scenario{
		Tool:          codeServerTool,
		Name:          "list-extensions",
		Argv:          []string{"code-server", "--list-extensions"},
		Timeout:       time.Minute,
		SuccessOnExit: true,
	}
	res, err := cs.tc.Runner.Run(ctx, sc)
	if err != nil {
		return nil, err
	}
	if res.State != model.RunSucceeded {
		return nil, runFailure(codeServerTool, res)
	}
	var ids []string
	for _, l := range res.Transcript.Lines() {
		text := strings.TrimSpace(l.Text)
		// Extension ids are publisher.package.
		if strings.Count(text, ".") >= 1 && !strings.Contains(text, " ") {
			ids = append(ids, text)
		}
	}
	return ids, nil
}

// UninstallExtension removes one extension.
func (cs *CodeServer) UninstallExtension(ctx context.Context, id string) error {
	sc := model.Scenario{
		Tool:          codeServerTool,
		Name:          "uninstall-extension",
		Argv:          []string{"code-server", "--uninstall-extension", id},
		Timeout:       time.Minute,
		SuccessOnExit: true,
	}
	res, err := cs.tc.Runner.Run(ctx, sc)
	if err != nil {
		return err
	}
	if res.State != model.RunSucceeded {
		return runFailure(codeServerTool, res)
	}
	return nil
}

func generatePassword() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
