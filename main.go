// code-server-labs - dev-environment babysitter for throwaway cloud VMs.
// Installs and supervises code-server, VS Code tunnels, ngrok, cloudflared,
// and Docker, driving their interactive CLIs automatically.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mrzlfz/code-server-labs/internal/config"
	"github.com/mrzlfz/code-server-labs/internal/harness"
	"github.com/mrzlfz/code-server-labs/internal/install"
	"github.com/mrzlfz/code-server-labs/internal/logx"
	"github.com/mrzlfz/code-server-labs/internal/notify"
	"github.com/mrzlfz/code-server-labs/internal/shim"
	"github.com/mrzlfz/code-server-labs/internal/store"
	"github.com/mrzlfz/code-server-labs/internal/tools"
	"github.com/mrzlfz/code-server-labs/internal/ui"
	"github.com/mrzlfz/code-server-labs/pkg/utils"
)

const (
	appName    = "code-server-labs"
	appVersion = "0.1.0"
)

// shimPattern matches the extension directories the crypto shim applies to.
const shimPattern = "augment"

func main() {
	var (
		flagInstall       = flag.Bool("install", false, "install code-server and write its config")
		flagInstallVSCode = flag.Bool("install-vscode", false, "install the VS Code CLI")
		flagStart         = flag.Bool("start", false, "start code-server in the background")
		flagStop          = flag.Bool("stop", false, "stop every recorded process")
		flagStatus        = flag.Bool("status", false, "show recorded processes")
		flagConfig        = flag.Bool("config", false, "print the effective configuration path")
		flagLogin         = flag.Bool("login", false, "run the VS Code device-code login")
		flagTunnel        = flag.Bool("tunnel", false, "start the VS Code tunnel")
		flagExtensions    = flag.Bool("extensions", false, "install the configured extension sets")
		flagDocker        = flag.Bool("docker", false, "install and start the Docker daemon")
		flagVersion       = flag.Bool("version", false, "print version")
		flagVerbose       = flag.Bool("verbose", false, "log debug output to the console")
	)
	flag.Parse()

	if *flagVersion {
		fmt.Printf("%s %s\n", appName, appVersion)
		return
	}

	if err := run(runFlags{
		install:       *flagInstall,
		installVSCode: *flagInstallVSCode,
		start:         *flagStart,
		stop:          *flagStop,
		status:        *flagStatus,
		config:        *flagConfig,
		login:         *flagLogin,
		tunnel:        *flagTunnel,
		extensions:    *flagExtensions,
		docker:        *flagDocker,
		verbose:       *flagVerbose,
	}); err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type runFlags struct {
	install, installVSCode, start, stop, status bool
	config, login, tunnel, extensions, docker   bool
	verbose                                     bool
}

func (f runFlags) nonInteractive() bool {
	return f.install || f.installVSCode || f.start || f.stop || f.status ||
		f.config || f.login || f.tunnel || f.extensions || f.docker
}

func run(flags runFlags) error {
	cfgDir, err := config.Dir()
	if err != nil {
		return fmt.Errorf("config directory: %w", err)
	}

	cfg, err := config.Load(cfgDir)
	if err != nil {
		if cfg == nil {
			return fmt.Errorf("load config: %w", err)
		}
		// Corrupt config: defaults are already in cfg, keep going.
		fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
	}

	level := logx.LevelInfo
	if flags.verbose {
		level = logx.LevelDebug
	}
	log := logx.New(config.LogPath(cfgDir), logx.WithLevel(level))
	defer log.Close()

	st, err := store.NewJSONStore(cfgDir)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	tc := &tools.Context{
		Cfg:       cfg,
		CfgDir:    cfgDir,
		Log:       log,
		Store:     st,
		Notifier:  notify.NewDispatcher(),
		Runner:    &harness.Runner{Log: log},
		Installer: install.New(filepath.Join(home, ".local"), log),
		Shim: &shim.Injector{
			ExtensionsDir: utils.ExpandPath(cfg.CodeServer.ExtensionsDir),
			Log:           log,
		},
	}

	// Interrupt kills the active child before unwinding.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if flags.nonInteractive() {
		return runCommands(ctx, tc, flags, cfgDir)
	}

	p := tea.NewProgram(ui.New(tc, shimPattern), tea.WithAltScreen())
	_, err = p.Run()
	return err
}

// runCommands executes the flag-selected actions in a fixed order so flag
// combinations compose (e.g. --install --start).
func runCommands(ctx context.Context, tc *tools.Context, flags runFlags, cfgDir string) error {
	cs := tools.NewCodeServer(tc)
	vs := tools.NewVSCode(tc)

	if flags.config {
		fmt.Println(config.Path(cfgDir))
	}

	if flags.install {
		bin, err := cs.Install(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("code-server installed at %s\n", bin)
	}

	if flags.installVSCode {
		bin, err := vs.Install(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("VS Code CLI installed at %s\n", bin)
	}

	if flags.login {
		info, err := vs.Login(ctx)
		if err != nil {
			if info != nil && info.DeviceCode != "" {
				fmt.Printf("Complete login at %s with code %s\n", info.AuthURL, info.DeviceCode)
			}
			return err
		}
		fmt.Println("Logged in.")
	}

	if flags.start {
		rec, err := cs.Start(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("code-server running at %s (pid %d)\n", rec.URL, rec.PID)
	}

	if flags.tunnel {
		rec, err := vs.StartTunnel(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Tunnel ready: %s\n", rec.URL)
	}

	if flags.extensions {
		ids := append([]string{}, tc.Cfg.Extensions.Popular...)
		ids = append(ids, tc.Cfg.Extensions.Custom...)
		if err := cs.InstallExtensions(ctx, ids); err != nil {
			return err
		}
		fmt.Printf("%d extension(s) installed\n", len(ids))
	}

	if flags.docker {
		d := tools.NewDocker(tc)
		if !d.Detect(ctx) {
			if err := d.Install(ctx); err != nil {
				return err
			}
		}
		if _, err := d.StartDaemon(ctx); err != nil {
			return err
		}
		fmt.Println("Docker daemon healthy.")
	}

	if flags.stop {
		if err := cs.Stop(ctx); err != nil {
			return err
		}
		if err := vs.StopTunnel(ctx); err != nil {
			return err
		}
		if err := tools.NewNgrok(tc).Stop(ctx); err != nil {
			return err
		}
		if err := tools.NewCloudflared(tc).Stop(ctx); err != nil {
			return err
		}
		fmt.Println("Stopped.")
	}

	if flags.status {
		records, err := tc.Store.List(ctx)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("Nothing running.")
			return nil
		}
		for _, r := range records {
			line := fmt.Sprintf("%-12s %-16s pid %-8d", r.Tool, r.Name, r.PID)
			if r.URL != "" {
				line += " " + r.URL
			}
			fmt.Println(strings.TrimRight(line, " "))
		}
	}

	return nil
}
