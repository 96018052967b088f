package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mrzlfz/code-server-labs/internal/harness"
	"github.com/mrzlfz/code-server-labs/internal/tools"
)

// viewState represents what the UI is currently showing.
type viewState int

const (
	stateMenu viewState = iota
	stateInput
	stateRunning
	stateDone
)

// actionID identifies a menu action.
type actionID int

const (
	actionInstallCodeServer actionID = iota
	actionStartCodeServer
	actionStopCodeServer
	actionInstallVSCode
	actionVSCodeLogin
	actionStartTunnel
	actionStopTunnel
	actionStartNgrok
	actionStartCloudflared
	actionInstallExtensions
	actionApplyShim
	actionDockerSetup
	actionStatus
	actionQuit
)

// menuItem is one entry of the main menu.
type menuItem struct {
	title string
	desc  string
	id    actionID
}

func menuItems() []menuItem {
	return []menuItem{
		{"Install code-server", "download release, write config.yaml, generate password", actionInstallCodeServer},
		{"Start code-server", "launch in background on the configured port", actionStartCodeServer},
		{"Stop code-server", "terminate the recorded process", actionStopCodeServer},
		{"Install VS Code CLI", "download the standalone `code` binary", actionInstallVSCode},
		{"VS Code login", "GitHub device-code flow", actionVSCodeLogin},
		{"Start VS Code tunnel", "code tunnel --name <name>", actionStartTunnel},
		{"Stop VS Code tunnel", "terminate the recorded tunnel", actionStopTunnel},
		{"Start ngrok tunnel", "expose the code-server port", actionStartNgrok},
		{"Start Cloudflare tunnel", "quick tunnel, no account needed", actionStartCloudflared},
		{"Install extensions", "popular + custom extension sets", actionInstallExtensions},
		{"Apply crypto shim", "patch extensions that require('crypto')", actionApplyShim},
		{"Docker setup", "install and start the daemon", actionDockerSetup},
		{"Status", "all recorded processes", actionStatus},
		{"Quit", "", actionQuit},
	}
}

// Model is the root TUI model: a menu that runs one tool action at a time
// and streams its transcript.
type Model struct {
	tc *tools.Context

	codeServer  *tools.CodeServer
	vscode      *tools.VSCode
	ngrok       *tools.Ngrok
	cloudflared *tools.Cloudflared
	docker      *tools.Docker
	shimPattern string

	state  viewState
	items  []menuItem
	cursor int
	width  int
	height int

	// Running action.
	active  actionID
	lines   []harness.Line
	events  chan tea.Msg
	cancel  context.CancelFunc
	summary string
	lastErr error

	// Input step before an action that needs a value.
	input       textinput.Model
	inputFor    actionID
	inputPrompt string
}

const maxVisibleLines = 200

// New creates the root model around an assembled tool context.
func New(tc *tools.Context, shimPattern string) Model {
	ti := textinput.New()
	ti.CharLimit = 256
	ti.Width = 50

	return Model{
		tc:          tc,
		codeServer:  tools.NewCodeServer(tc),
		vscode:      tools.NewVSCode(tc),
		ngrok:       tools.NewNgrok(tc),
		cloudflared: tools.NewCloudflared(tc),
		docker:      tools.NewDocker(tc),
		shimPattern: shimPattern,
		state:       stateMenu,
		items:       menuItems(),
		input:       ti,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// listen returns a command that delivers the next event of the running
// action.
func listen(events chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-events
	}
}

// startAction launches the selected action in the background. The action
// context is cancelled when the operator presses ctrl+c, which kills any
// child the harness is driving.
func (m *Model) startAction(id actionID) tea.Cmd {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.active = id
	m.state = stateRunning
	m.lines = nil
	m.summary = ""
	m.lastErr = nil

	events := make(chan tea.Msg, 64)
	m.events = events

	m.tc.Runner.OnLine = func(l harness.Line) {
		select {
		case events <- TranscriptLineMsg{Line: l}:
		default:
		}
	}

	go func() {
		summary, err := m.execute(ctx, id)
		events <- ActionDoneMsg{Summary: summary, Err: err}
	}()

	return listen(events)
}

// execute runs one action to completion and returns a one-line summary.
func (m *Model) execute(ctx context.Context, id actionID) (string, error) {
	switch id {
	case actionInstallCodeServer:
		bin, err := m.codeServer.Install(ctx)
		if err != nil {
			return "", err
		}
		return "installed at " + bin, nil

	case actionStartCodeServer:
		rec, err := m.codeServer.Start(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("running at %s (pid %d)", rec.URL, rec.PID), nil

	case actionStopCodeServer:
		if err := m.codeServer.Stop(ctx); err != nil {
			return "", err
		}
		return "code-server stopped", nil

	case actionInstallVSCode:
		bin, err := m.vscode.Install(ctx)
		if err != nil {
			return "", err
		}
		return "installed at " + bin, nil

	case actionVSCodeLogin:
		info, err := m.vscode.Login(ctx)
		if err != nil {
			if info != nil && info.DeviceCode != "" {
				return "", fmt.Errorf("login incomplete; finish at %s with code %s: %w",
					info.AuthURL, info.DeviceCode, err)
			}
			return "", err
		}
		return "logged in", nil

	case actionStartTunnel:
		rec, err := m.vscode.StartTunnel(ctx)
		if err != nil {
			return "", err
		}
		return "tunnel ready: " + rec.URL, nil

	case actionStopTunnel:
		if err := m.vscode.StopTunnel(ctx); err != nil {
			return "", err
		}
		return "tunnel stopped", nil

	case actionStartNgrok:
		if _, err := m.ngrok.Install(ctx); err != nil {
			return "", err
		}
		if err := m.ngrok.ConfigureToken(ctx); err != nil {
			return "", err
		}
		rec, err := m.ngrok.Start(ctx)
		if err != nil {
			return "", err
		}
		return "tunnel ready: " + rec.URL, nil

	case actionStartCloudflared:
		if _, err := m.cloudflared.Install(ctx); err != nil {
			return "", err
		}
		rec, err := m.cloudflared.Start(ctx)
		if err != nil {
			return "", err
		}
		return "tunnel ready: " + rec.URL, nil

	case actionInstallExtensions:
		ids := append([]string{}, m.tc.Cfg.Extensions.Popular...)
		ids = append(ids, m.tc.Cfg.Extensions.Custom...)
		if err := m.codeServer.InstallExtensions(ctx, ids); err != nil {
			return "", err
		}
		return fmt.Sprintf("%d extension(s) installed", len(ids)), nil

	case actionApplyShim:
		n, err := m.tc.Shim.Inject(m.shimPattern)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d file(s) patched", n), nil

	case actionDockerSetup:
		if !m.docker.Detect(ctx) {
			if err := m.docker.Install(ctx); err != nil {
				return "", err
			}
		}
		if _, err := m.docker.StartDaemon(ctx); err != nil {
			return "", err
		}
		return "docker daemon healthy", nil

	case actionStatus:
		return m.statusSummary(ctx)
	}
	return "", fmt.Errorf("unknown action %d", id)
}

// statusSummary reports every recorded process across tools.
func (m *Model) statusSummary(ctx context.Context) (string, error) {
	records, err := m.tc.Store.List(ctx)
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "nothing running", nil
	}
	var parts []string
	for _, r := range records {
		part := fmt.Sprintf("%s/%s pid %d", r.Tool, r.Name, r.PID)
		if r.URL != "" {
			part += " " + r.URL
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, "; "), nil
}

// needsInput returns the prompt for actions that take a value first, and
// prefills the field.
func (m *Model) needsInput(id actionID) (string, bool) {
	switch id {
	case actionStartTunnel:
		m.input.SetValue(m.tc.Cfg.VSCode.TunnelName)
		m.input.Placeholder = "tunnel name"
		return "Tunnel name", true
	case actionStartNgrok:
		if m.tc.Cfg.Ngrok.AuthToken == "" {
			m.input.SetValue("")
			m.input.Placeholder = "ngrok auth token"
			return "ngrok auth token (dashboard.ngrok.com)", true
		}
	}
	return "", false
}

// applyInput stores the entered value for the pending action.
func (m *Model) applyInput(id actionID, value string) error {
	switch id {
	case actionStartTunnel:
		if value != "" {
			m.tc.Cfg.VSCode.TunnelName = value
		}
	case actionStartNgrok:
		m.tc.Cfg.Ngrok.AuthToken = value
	}
	return m.tc.SaveConfig()
}
