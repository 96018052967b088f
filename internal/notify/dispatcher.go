// Package notify delivers service events to the operator: desktop
// notifications where a display exists, and an optional webhook for headless
// hosts like a Colab VM.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gen2brain/beeep"

	"github.com/mrzlfz/code-server-labs/internal/config"
)

// EventType represents a notification event type.
type EventType string

const (
	EventAuthRequired  EventType = "auth_required"
	EventTunnelReady   EventType = "tunnel_ready"
	EventInstallDone   EventType = "install_done"
	EventRunFailed     EventType = "run_failed"
	EventServerStopped EventType = "server_stopped"
)

// Event describes a notification event.
type Event struct {
	Tool      string
	Type      EventType
	Title     string
	Message   string
	Timestamp time.Time
}

// Dispatcher sends notifications to configured channels. Repeats of the
// same tool+type within a short window are dropped, so a flapping tunnel
// does not spam the operator.
type Dispatcher struct {
	client *http.Client

	mu   sync.Mutex
	seen map[string]time.Time
}

const repeatWindow = 30 * time.Second

// NewDispatcher creates a Dispatcher with sensible defaults.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
		seen: make(map[string]time.Time),
	}
}

// Dispatch sends a notification event using the given config. Delivery is
// best effort; failures are swallowed.
func (d *Dispatcher) Dispatch(ctx context.Context, cfg config.Notifications, event Event) {
	if d.suppressed(event) {
		return
	}

	title := strings.TrimSpace(event.Title)
	if title == "" {
		if event.Tool != "" {
			title = event.Tool
		} else {
			title = "code-server-labs"
		}
	}
	message := strings.TrimSpace(event.Message)
	if message == "" {
		message = string(event.Type)
	}
	if len(message) > 800 {
		message = message[:800] + "..."
	}

	if cfg.Desktop {
		_ = beeep.Notify(title, message, "")
	}

	if cfg.WebhookURL != "" {
		payload := map[string]any{
			"tool":      event.Tool,
			"event":     event.Type,
			"title":     title,
			"message":   message,
			"timestamp": event.Timestamp.Unix(),
		}
		body, err := json.Marshal(payload)
		if err != nil {
			return
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.WebhookURL, bytes.NewReader(body))
		if err != nil {
			return
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := d.client.Do(req)
		if err != nil {
			return
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}
}

func (d *Dispatcher) suppressed(event Event) bool {
	key := event.Tool + "/" + string(event.Type)
	now := event.Timestamp
	if now.IsZero() {
		now = time.Now()
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if last, ok := d.seen[key]; ok && now.Sub(last) < repeatWindow {
		return true
	}
	d.seen[key] = now
	return false
}
