// Package install downloads and unpacks the external tools: code-server,
// the VS Code CLI, ngrok, and cloudflared. Each installer is idempotent;
// an already-present binary is left alone.
package install

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/mrzlfz/code-server-labs/internal/logx"
)

// Release archives name their architectures inconsistently: code-server and
// ngrok use Go's names, the VS Code CLI uses "x64".
func goArch() string { return runtime.GOARCH }

func vscodeArch() string {
	if runtime.GOARCH == "amd64" {
		return "x64"
	}
	return runtime.GOARCH
}

// Installer fetches and unpacks tool releases under a root directory
// (typically ~/.local).
type Installer struct {
	Root   string
	Log    *logx.Logger
	Client *http.Client
}

// New creates an Installer rooted at root.
func New(root string, log *logx.Logger) *Installer {
	return &Installer{
		Root: root,
		Log:  log,
		Client: &http.Client{
			Timeout: 10 * time.Minute,
		},
	}
}

func (in *Installer) binDir() string { return filepath.Join(in.Root, "bin") }

// download fetches url to a temp file and returns its path.
func (in *Installer) download(ctx context.Context, url string) (string, error) {
	in.Log.Infof("downloading %s", url)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := in.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download %s: unexpected status %s", url, resp.Status)
	}

	f, err := os.CreateTemp("", "code-server-labs-*")
	if err != nil {
		return "", err
	}
	n, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("download %s: %w", url, err)
	}
	in.Log.Infof("downloaded %d bytes", n)
	return f.Name(), nil
}

// link makes binDir/name point at target, replacing any previous link.
func (in *Installer) link(target, name string) (string, error) {
	if err := os.MkdirAll(in.binDir(), 0755); err != nil {
		return "", err
	}
	dst := filepath.Join(in.binDir(), name)
	os.Remove(dst)
	if err := os.Symlink(target, dst); err != nil {
		return "", err
	}
	return dst, nil
}

// CodeServer installs the given code-server release and returns the path of
// the launch binary.
func (in *Installer) CodeServer(ctx context.Context, version string) (string, error) {
	dir := filepath.Join(in.Root, "lib", fmt.Sprintf("code-server-%s", version))
	bin := filepath.Join(dir, fmt.Sprintf("code-server-%s-linux-%s", version, goArch()), "bin", "code-server")
	if _, err := os.Stat(bin); err == nil {
		in.Log.Infof("code-server %s already installed", version)
		return in.link(bin, "code-server")
	}

	url := fmt.Sprintf(
		"https://github.com/coder/code-server/releases/download/v%s/code-server-%s-linux-%s.tar.gz",
		version, version, goArch())
	archive, err := in.download(ctx, url)
	if err != nil {
		return "", err
	}
	defer os.Remove(archive)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	if err := extractTarGz(archive, dir); err != nil {
		return "", err
	}
	if _, err := os.Stat(bin); err != nil {
		// Layout changed between releases before; fall back to searching.
		found, ferr := findBinary(dir, "code-server")
		if ferr != nil {
			return "", fmt.Errorf("code-server %s: %w", version, ferr)
		}
		bin = found
	}
	in.Log.Infof("code-server %s installed at %s", version, bin)
	return in.link(bin, "code-server")
}

// VSCode installs the standalone VS Code CLI (the `code` binary used for
// tunnels) and returns its path.
func (in *Installer) VSCode(ctx context.Context) (string, error) {
	dir := filepath.Join(in.Root, "lib", "vscode-cli")
	bin := filepath.Join(dir, "code")
	if _, err := os.Stat(bin); err == nil {
		in.Log.Infof("vscode cli already installed")
		return in.link(bin, "code")
	}

	url := fmt.Sprintf(
		"https://code.visualstudio.com/sha/download?build=stable&os=cli-alpine-%s",
		vscodeArch())
	archive, err := in.download(ctx, url)
	if err != nil {
		return "", err
	}
	defer os.Remove(archive)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	if err := extractTarGz(archive, dir); err != nil {
		return "", err
	}
	if _, err := os.Stat(bin); err != nil {
		found, ferr := findBinary(dir, "code")
		if ferr != nil {
			return "", fmt.Errorf("vscode cli: %w", ferr)
		}
		bin = found
	}
	in.Log.Infof("vscode cli installed at %s", bin)
	return in.link(bin, "code")
}

// Ngrok installs the ngrok v3 agent and returns its path.
func (in *Installer) Ngrok(ctx context.Context) (string, error) {
	dir := filepath.Join(in.Root, "lib", "ngrok")
	bin := filepath.Join(dir, "ngrok")
	if _, err := os.Stat(bin); err == nil {
		in.Log.Infof("ngrok already installed")
		return in.link(bin, "ngrok")
	}

	url := fmt.Sprintf(
		"https://bin.equinox.io/c/bNyj1mQVY4c/ngrok-v3-stable-linux-%s.tgz",
		goArch())
	archive, err := in.download(ctx, url)
	if err != nil {
		return "", err
	}
	defer os.Remove(archive)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	if err := extractTarGz(archive, dir); err != nil {
		return "", err
	}
	in.Log.Infof("ngrok installed at %s", bin)
	return in.link(bin, "ngrok")
}

// Cloudflared installs the cloudflared binary (published as a raw
// executable, not an archive) and returns its path.
func (in *Installer) Cloudflared(ctx context.Context) (string, error) {
	dir := filepath.Join(in.Root, "lib", "cloudflared")
	bin := filepath.Join(dir, "cloudflared")
	if _, err := os.Stat(bin); err == nil {
		in.Log.Infof("cloudflared already installed")
		return in.link(bin, "cloudflared")
	}

	url := fmt.Sprintf(
		"https://github.com/cloudflare/cloudflared/releases/latest/download/cloudflared-linux-%s",
		goArch())
	tmp, err := in.download(ctx, url)
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	if err := copyFile(tmp, bin, 0755); err != nil {
		return "", err
	}
	in.Log.Infof("cloudflared installed at %s", bin)
	return in.link(bin, "cloudflared")
}

// DockerScript fetches the get.docker.com convenience script to a temp file
// and returns its path. The caller removes it after running.
func (in *Installer) DockerScript(ctx context.Context) (string, error) {
	return in.download(ctx, "https://get.docker.com")
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
