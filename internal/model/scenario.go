// Package model defines the core types shared by the tool managers and the
// interactive-CLI automation harness.
package model

import (
	"fmt"
	"time"
)

// MatchRule maps a line pattern to a classification tag. Patterns are plain
// substring checks: prompts from third-party CLIs are matched case-sensitively
// (their wording is exact), status words case-insensitively.
type MatchRule struct {
	// Contains is the substring to look for.
	Contains string
	// Fold makes the match case-insensitive.
	Fold bool
	// Tag is assigned to the line when the rule matches.
	Tag LineTag
}

// PromptRule maps a recognized prompt to the scripted response that is
// written to the child's stdin. Each rule fires at most once per run.
type PromptRule struct {
	// ID names the prompt for transcripts and once-per-run bookkeeping.
	ID string
	// Contains is the substring identifying the prompt line.
	Contains string
	// Response is written verbatim to the child when the prompt is seen.
	// It is either a text line ending in "\n"/"\r" or a raw control
	// sequence for TUI menus that do not accept typed text.
	Response []byte
}

// Scenario is the declarative contract for driving one external CLI
// interaction: the launch argv, the pattern table, the prompt table, and the
// wall-clock bound. Adapting to a new CLI version is a data change here,
// not a code change in the harness.
type Scenario struct {
	// Tool is the external tool name ("vscode", "ngrok", ...).
	Tool string
	// Name identifies the interaction ("tunnel-login", "quick-tunnel", ...).
	Name string
	// Argv is the full command line; Argv[0] is the binary.
	Argv []string
	// Env holds extra KEY=VALUE entries appended to the inherited environment.
	Env []string
	// Rules is the ordered classification table; first match wins.
	Rules []MatchRule
	// Prompts is the prompt-to-response table.
	Prompts []PromptRule
	// Timeout bounds the whole interaction.
	Timeout time.Duration
	// UseScreen routes output through a terminal emulator and scans the
	// rendered screen instead of the raw stream. Needed for TUI menus that
	// repaint in place.
	UseScreen bool
	// SuccessOnExit counts a clean exit (code 0, no error tag) as success
	// even when no success rule fired.
	SuccessOnExit bool
	// Detach leaves the child running after a successful run. Set for
	// long-lived servers and tunnels; one-shot commands are always reaped.
	Detach bool
}

// Arrow-key escape sequences for TUI menus.
const (
	KeyDown  = "\x1b[B"
	KeyUp    = "\x1b[A"
	KeyEnter = "\r"
)

func localURL(port int) string {
	return fmt.Sprintf("http://127.0.0.1:%d", port)
}

// Shared noise rules: terminal UI libraries repaint spinners and menus many
// times per second. These lines stay in the debug log but are suppressed
// from the live transcript.
func progressNoise() []MatchRule {
	return []MatchRule{
		{Contains: "Waiting for", Fold: true, Tag: TagProgress},
		{Contains: "...", Tag: TagProgress},
	}
}

// VSCodeLoginScenario drives `code tunnel user login` through the GitHub
// device flow. The device-code line doubles as a prompt for the operator.
func VSCodeLoginScenario(bin, provider string, timeout time.Duration) Scenario {
	return Scenario{
		Tool: "vscode",
		Name: "tunnel-login",
		Argv: []string{bin, "tunnel", "user", "login", "--provider", provider},
		Rules: append([]MatchRule{
			{Contains: "github.com/login/device", Tag: TagPrompt},
			{Contains: "microsoft.com/devicelogin", Tag: TagPrompt},
			{Contains: "successfully", Fold: true, Tag: TagSuccess},
			{Contains: "logged in", Fold: true, Tag: TagSuccess},
			{Contains: "error", Fold: true, Tag: TagError},
		}, progressNoise()...),
		Timeout:       timeout,
		SuccessOnExit: true,
	}
}

// VSCodeTunnelScenario drives `code tunnel --name ... --accept-server-license-terms`.
// When the CLI is not yet authenticated it shows a TUI provider menu; the
// prompt table moves the cursor to "GitHub Account" (second entry) and
// confirms. The vscode.dev URL is the readiness marker.
func VSCodeTunnelScenario(bin, tunnelName string, timeout time.Duration) Scenario {
	return Scenario{
		Tool: "vscode",
		Name: "tunnel-start",
		Argv: []string{bin, "tunnel", "--name", tunnelName, "--accept-server-license-terms"},
		Rules: append([]MatchRule{
			{Contains: "How would you like to log in", Tag: TagPrompt},
			{Contains: "github.com/login/device", Tag: TagPrompt},
			{Contains: "vscode.dev/tunnel", Tag: TagSuccess},
			{Contains: "error", Fold: true, Tag: TagError},
		}, progressNoise()...),
		Prompts: []PromptRule{
			{
				ID:       "login-provider",
				Contains: "How would you like to log in to Visual Studio Code?",
				Response: []byte(KeyDown + KeyEnter),
			},
		},
		Timeout:   timeout,
		UseScreen: true,
		Detach:    true,
	}
}

// CloudflaredQuickScenario drives `cloudflared tunnel --url ...`. The
// generated trycloudflare.com hostname is the readiness marker.
func CloudflaredQuickScenario(bin string, port int, timeout time.Duration) Scenario {
	return Scenario{
		Tool: "cloudflared",
		Name: "quick-tunnel",
		Argv: []string{bin, "tunnel", "--url", localURL(port), "--no-autoupdate"},
		Rules: append([]MatchRule{
			{Contains: "trycloudflare.com", Tag: TagSuccess},
			{Contains: "failed", Fold: true, Tag: TagError},
			{Contains: "error", Fold: true, Tag: TagError},
		}, progressNoise()...),
		Timeout: timeout,
		Detach:  true,
	}
}

// NgrokStartScenario drives `ngrok http <port>`. ngrok keeps its TUI on
// stdout, so readiness is confirmed out of band through the local agent API;
// the scenario only watches for hard failures like an invalid authtoken.
func NgrokStartScenario(bin string, port int, region string, timeout time.Duration) Scenario {
	argv := []string{bin, "http", localURL(port), "--log", "stdout"}
	if region != "" {
		argv = append(argv, "--region", region)
	}
	return Scenario{
		Tool: "ngrok",
		Name: "http-tunnel",
		Argv: argv,
		Rules: append([]MatchRule{
			{Contains: "started tunnel", Fold: true, Tag: TagSuccess},
			{Contains: "url=", Fold: true, Tag: TagSuccess},
			{Contains: "ERR_NGROK", Tag: TagError},
			{Contains: "error", Fold: true, Tag: TagError},
		}, progressNoise()...),
		Timeout: timeout,
		Detach:  true,
	}
}

// ExtensionInstallScenario drives `<bin> --install-extension <id> --force`
// for both code-server and the VS Code CLI.
func ExtensionInstallScenario(tool, bin, extensionID string, timeout time.Duration) Scenario {
	return Scenario{
		Tool: tool,
		Name: "install-extension",
		Argv: []string{bin, "--install-extension", extensionID, "--force"},
		Rules: []MatchRule{
			{Contains: "was successfully installed", Tag: TagSuccess},
			{Contains: "already installed", Fold: true, Tag: TagSuccess},
			{Contains: "error", Fold: true, Tag: TagError},
			{Contains: "failed", Fold: true, Tag: TagError},
		},
		Timeout:       timeout,
		SuccessOnExit: true,
	}
}
