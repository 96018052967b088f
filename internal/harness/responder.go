package harness

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/mrzlfz/code-server-labs/internal/model"
)

// Responder answers interactive prompts. Each prompt rule fires at most once
// per run no matter how many times the child redraws the prompt text, which
// full-screen menus do on every repaint.
type Responder struct {
	mu       sync.Mutex
	prompts  []model.PromptRule
	answered map[string]bool
	w        io.Writer
}

func NewResponder(prompts []model.PromptRule, w io.Writer) *Responder {
	return &Responder{
		prompts:  prompts,
		answered: make(map[string]bool, len(prompts)),
		w:        w,
	}
}

// Observe checks text against the prompt table and sends the scripted
// response for the first unanswered match. text may be a single line or a
// whole screen snapshot.
func (r *Responder) Observe(text string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.prompts {
		if r.answered[p.ID] || !strings.Contains(text, p.Contains) {
			continue
		}
		r.answered[p.ID] = true
		if _, err := r.w.Write(p.Response); err != nil {
			return true, fmt.Errorf("answer prompt %q: %w", p.ID, err)
		}
		return true, nil
	}
	return false, nil
}

// Answered reports whether the prompt with the given id has been responded to.
func (r *Responder) Answered(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.answered[id]
}
