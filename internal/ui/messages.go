// Package ui provides the interactive terminal menu for code-server-labs.
package ui

import (
	"github.com/mrzlfz/code-server-labs/internal/harness"
)

// TranscriptLineMsg is sent for every transcript line of the running action.
type TranscriptLineMsg struct {
	Line harness.Line
}

// ActionDoneMsg is sent when the running action finishes.
type ActionDoneMsg struct {
	Summary string
	Err     error
}
