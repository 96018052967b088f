// Package config provides the persisted configuration record: a nested
// per-tool settings document stored as JSON and merged with compiled-in
// defaults on load.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrCorrupt wraps a parse failure of the on-disk document. The caller may
// continue with the returned defaults; the corrupt file is left in place and
// only shadowed for the run.
var ErrCorrupt = errors.New("config file is not valid JSON")

// CodeServer holds code-server settings.
type CodeServer struct {
	// Version is the code-server release to download.
	Version string `json:"version"`
	// Port is the local listen port.
	Port int `json:"port"`
	// Auth is the auth mode, "password" or "none".
	Auth string `json:"auth"`
	// Password is the web UI password; generated on install when empty.
	Password string `json:"password"`
	// BindAddr is the listen address.
	BindAddr string `json:"bind_addr"`
	// ExtensionsDir is where extensions are installed.
	ExtensionsDir string `json:"extensions_dir"`
	// UserDataDir is the server state directory.
	UserDataDir string `json:"user_data_dir"`
}

// VSCode holds VS Code CLI tunnel settings.
type VSCode struct {
	// BinPath is the path to the `code` CLI binary.
	BinPath string `json:"bin_path"`
	// TunnelName is the registered tunnel name.
	TunnelName string `json:"tunnel_name"`
	// Provider is the login provider, "github" or "microsoft".
	Provider string `json:"provider"`
}

// Ngrok holds ngrok settings.
type Ngrok struct {
	// AuthToken is the ngrok account token.
	AuthToken string `json:"auth_token"`
	// Region selects the ngrok region.
	Region string `json:"region"`
	// Protocol is the tunnel protocol.
	Protocol string `json:"protocol"`
}

// Cloudflared holds Cloudflare quick-tunnel settings.
type Cloudflared struct {
	// BinPath is the path to the cloudflared binary.
	BinPath string `json:"bin_path"`
}

// Extensions holds the extension identifier lists (publisher.package).
type Extensions struct {
	// Popular is the curated default set installed in bulk.
	Popular []string `json:"popular"`
	// Custom is the operator-maintained set.
	Custom []string `json:"custom"`
}

// Colab holds host-environment settings.
type Colab struct {
	// AutoDetect enables Colab environment detection.
	AutoDetect bool `json:"auto_detect"`
	// OptimizeResources trims resource use on constrained hosts.
	OptimizeResources bool `json:"optimize_resources"`
	// PersistConfig keeps the config file across sessions.
	PersistConfig bool `json:"persist_config"`
}

// Notifications holds the channels events are delivered to.
type Notifications struct {
	// Desktop enables desktop notifications where a display exists.
	Desktop bool `json:"desktop"`
	// WebhookURL receives a JSON POST per event when set.
	WebhookURL string `json:"webhook_url"`
}

// Config is the full configuration record.
type Config struct {
	CodeServer    CodeServer    `json:"code_server"`
	VSCode        VSCode        `json:"vscode"`
	Ngrok         Ngrok         `json:"ngrok"`
	Cloudflared   Cloudflared   `json:"cloudflared"`
	Extensions    Extensions    `json:"extensions"`
	Colab         Colab         `json:"colab"`
	Notifications Notifications `json:"notifications"`
}

// Default returns the compiled-in configuration.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		CodeServer: CodeServer{
			Version:       "4.23.1",
			Port:          8080,
			Auth:          "password",
			BindAddr:      "127.0.0.1",
			ExtensionsDir: filepath.Join(home, ".local", "share", "code-server", "extensions"),
			UserDataDir:   filepath.Join(home, ".local", "share", "code-server"),
		},
		VSCode: VSCode{
			BinPath:  filepath.Join(home, ".local", "bin", "code"),
			Provider: "github",
		},
		Ngrok: Ngrok{
			Region:   "us",
			Protocol: "http",
		},
		Extensions: Extensions{
			Popular: []string{
				"ms-python.python",
				"ms-python.vscode-pylance",
				"ms-toolsai.jupyter",
				"redhat.vscode-yaml",
				"PKief.material-icon-theme",
				"esbenp.prettier-vscode",
			},
			Custom: []string{},
		},
		Colab: Colab{
			AutoDetect:        true,
			OptimizeResources: true,
			PersistConfig:     true,
		},
		Notifications: Notifications{
			Desktop: true,
		},
	}
}

// Dir returns the configuration directory, honoring XDG_CONFIG_HOME.
func Dir() (string, error) {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "code-server-labs"), nil
}

// Path returns the config file path within dir.
func Path(dir string) string {
	return filepath.Join(dir, "config.json")
}

// LogPath returns the log file path within dir.
func LogPath(dir string) string {
	return filepath.Join(dir, "setup.log")
}

// Load reads the config file from dir and merges it over the defaults so that
// new default keys appear without clobbering user-set values. A missing file
// yields the defaults. A corrupt file yields the defaults and an error
// wrapping ErrCorrupt; the file itself is not touched.
func Load(dir string) (*Config, error) {
	data, err := os.ReadFile(Path(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var user map[string]any
	if err := json.Unmarshal(data, &user); err != nil {
		return Default(), fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	merged := Merge(toMap(Default()), user)
	cfg, err := fromMap(merged)
	if err != nil {
		return Default(), fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return cfg, nil
}

// Save writes the whole config document to dir, creating it if needed.
// The file is read-modify-written as a whole; last writer wins.
func Save(dir string, cfg *Config) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(Path(dir), data, 0o644)
}

// Merge recursively merges the user document over defaults. Nested maps
// merge key-wise; scalars and lists from the user document replace the
// default value. Keys present only in defaults are preserved, so a
// load-then-save round trip never drops a default the user has not
// overridden. Merge is idempotent: Merge(d, Merge(d, u)) == Merge(d, u).
func Merge(defaults, user map[string]any) map[string]any {
	result := make(map[string]any, len(defaults))
	for k, v := range defaults {
		result[k] = v
	}
	for k, v := range user {
		dv, ok := result[k]
		if ok {
			dm, dIsMap := dv.(map[string]any)
			um, uIsMap := v.(map[string]any)
			if dIsMap && uIsMap {
				result[k] = Merge(dm, um)
				continue
			}
		}
		result[k] = v
	}
	return result
}

func toMap(cfg *Config) map[string]any {
	data, err := json.Marshal(cfg)
	if err != nil {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return map[string]any{}
	}
	return m
}

func fromMap(m map[string]any) (*Config, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
