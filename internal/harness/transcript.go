package harness

import (
	"strings"
	"sync"
	"time"

	"github.com/mrzlfz/code-server-labs/internal/model"
)

// Line is one cleaned, classified line of child output.
type Line struct {
	Text string
	Tag  model.LineTag
	Time time.Time
}

// Transcript is the ordered record of everything the scanner accepted during
// a run. It is what gets shown to the user when a run fails or times out.
type Transcript struct {
	mu    sync.Mutex
	lines []Line
}

func (t *Transcript) Append(text string, tag model.LineTag) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, Line{Text: text, Tag: tag, Time: time.Now()})
}

// Lines returns a copy of the transcript so far.
func (t *Transcript) Lines() []Line {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Line, len(t.lines))
	copy(out, t.lines)
	return out
}

// Tail returns the last n lines.
func (t *Transcript) Tail(n int) []Line {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n > len(t.lines) {
		n = len(t.lines)
	}
	out := make([]Line, n)
	copy(out, t.lines[len(t.lines)-n:])
	return out
}

// Len reports the number of recorded lines.
func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.lines)
}

// String renders the transcript one line per entry.
func (t *Transcript) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var b strings.Builder
	for _, l := range t.lines {
		b.WriteString(l.Text)
		b.WriteByte('\n')
	}
	return b.String()
}
