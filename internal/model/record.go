package model

import (
	"time"

	"github.com/google/uuid"
)

// TunnelRecord describes a tunnel or server process that was confirmed
// started. It is persisted so a later invocation can report or stop it.
type TunnelRecord struct {
	// ID is the unique identifier for this record.
	ID string `json:"id"`
	// Tool is the owning tool ("vscode", "code-server", "ngrok", "cloudflared").
	Tool string `json:"tool"`
	// Name is the tunnel name, when the tool has one.
	Name string `json:"name,omitempty"`
	// URL is the public access URL once known.
	URL string `json:"url,omitempty"`
	// PID is the process id of the owning child process.
	PID int `json:"pid"`
	// StartedAt is the Unix timestamp when the process was confirmed up.
	StartedAt int64 `json:"started_at"`
}

// NewTunnelRecord creates a record with a generated UUID.
func NewTunnelRecord(tool, name string, pid int) *TunnelRecord {
	return &TunnelRecord{
		ID:        uuid.New().String(),
		Tool:      tool,
		Name:      name,
		PID:       pid,
		StartedAt: time.Now().Unix(),
	}
}
