package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mrzlfz/code-server-labs/internal/model"
	"github.com/mrzlfz/code-server-labs/internal/notify"
)

const ngrokTool = "ngrok"

// agentAPI is ngrok's local inspection endpoint. The v3 agent keeps its
// status display on the terminal, so the public URL is read from here
// instead of scraped from output.
const agentAPI = "http://127.0.0.1:4040/api/tunnels"

// ErrNoAuthToken means the ngrok auth token has not been configured.
var ErrNoAuthToken = errors.New("ngrok auth token not configured")

// Ngrok manages the ngrok agent process.
type Ngrok struct {
	tc     *Context
	client *http.Client
	api    string
}

func NewNgrok(tc *Context) *Ngrok {
	return &Ngrok{
		tc:     tc,
		client: &http.Client{Timeout: 5 * time.Second},
		api:    agentAPI,
	}
}

// Install downloads the ngrok agent.
func (n *Ngrok) Install(ctx context.Context) (string, error) {
	return n.tc.Installer.Ngrok(ctx)
}

// ConfigureToken registers the auth token with the local agent config.
func (n *Ngrok) ConfigureToken(ctx context.Context) error {
	token := n.tc.Cfg.Ngrok.AuthToken
	if token == "" {
		return ErrNoAuthToken
	}
	sc := model.Scenario{
		Tool: ngrokTool,
		Name: "add-authtoken",
		Argv: []string{"ngrok", "config", "add-authtoken", token},
		Rules: []model.MatchRule{
			{Contains: "ERR_NGROK", Tag: model.TagError},
			{Contains: "error", Fold: true, Tag: model.TagError},
		},
		Timeout:       30 * time.Second,
		SuccessOnExit: true,
	}
	res, err := n.tc.Runner.Run(ctx, sc)
	if err != nil {
		return err
	}
	if res.State != model.RunSucceeded {
		return runFailure(ngrokTool, res)
	}
	return nil
}

// Start launches an http tunnel for the code-server port and resolves the
// public URL through the agent API.
func (n *Ngrok) Start(ctx context.Context) (*model.TunnelRecord, error) {
	if n.tc.Cfg.Ngrok.AuthToken == "" {
		return nil, ErrNoAuthToken
	}
	if sts, err := n.tc.statuses(ctx, ngrokTool); err == nil {
		for _, st := range sts {
			if st.Running {
				n.tc.Log.Infof("ngrok already running, pid %d", st.Record.PID)
				return &st.Record, nil
			}
		}
	}

	port := n.tc.Cfg.CodeServer.Port
	sc := model.NgrokStartScenario("ngrok", port, n.tc.Cfg.Ngrok.Region, 2*time.Minute)
	res, err := n.tc.Runner.Run(ctx, sc)
	if err != nil {
		return nil, err
	}
	if res.State != model.RunSucceeded {
		return nil, runFailure(ngrokTool, res)
	}

	url, err := n.publicURL(ctx, port)
	if err != nil {
		n.tc.Log.Warnf("agent api: %v", err)
	}

	rec := model.NewTunnelRecord(ngrokTool, fmt.Sprintf("http-%d", port), res.PID)
	rec.URL = url
	if err := n.tc.Store.Create(ctx, rec); err != nil {
		return nil, err
	}
	n.tc.notifyEvent(ctx, ngrokTool, notify.EventTunnelReady, "ngrok tunnel ready", rec.URL)
	return rec, nil
}

// agentTunnels is the relevant slice of the agent API response.
type agentTunnels struct {
	Tunnels []struct {
		PublicURL string `json:"public_url"`
		Proto     string `json:"proto"`
		Config    struct {
			Addr string `json:"addr"`
		} `json:"config"`
	} `json:"tunnels"`
}

// publicURL polls the agent API until a tunnel for port appears. https is
// preferred when both protocols are exposed.
func (n *Ngrok) publicURL(ctx context.Context, port int) (string, error) {
	suffix := fmt.Sprintf(":%d", port)
	var lastErr error
	for i := 0; i < 10; i++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Second):
		}
		tunnels, err := n.fetchTunnels(ctx)
		if err != nil {
			lastErr = err
			continue
		}
		best := ""
		for _, t := range tunnels.Tunnels {
			if !hasPortSuffix(t.Config.Addr, suffix) {
				continue
			}
			if t.Proto == "https" {
				return t.PublicURL, nil
			}
			best = t.PublicURL
		}
		if best != "" {
			return best, nil
		}
		lastErr = errors.New("no tunnel for port in agent response")
	}
	return "", lastErr
}

func (n *Ngrok) fetchTunnels(ctx context.Context) (*agentTunnels, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.api, nil)
	if err != nil {
		return nil, err
	}
	resp, err := n.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("agent api status %s", resp.Status)
	}
	var out agentTunnels
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

func hasPortSuffix(addr, suffix string) bool {
	return len(addr) >= len(suffix) && addr[len(addr)-len(suffix):] == suffix
}

// Stop terminates the recorded agent process.
func (n *Ngrok) Stop(ctx context.Context) error {
	_, err := n.tc.stopRecords(ctx, ngrokTool)
	return err
}

// Status reports the recorded agent processes.
func (n *Ngrok) Status(ctx context.Context) ([]Status, error) {
	return n.tc.statuses(ctx, ngrokTool)
}
