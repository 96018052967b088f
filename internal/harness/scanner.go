package harness

import (
	"strings"

	"github.com/charmbracelet/x/ansi"

	"github.com/mrzlfz/code-server-labs/internal/model"
)

// Scanner turns raw PTY chunks into cleaned, classified lines. It carries
// partial lines between chunks, strips escape sequences, and collapses the
// carriage-return redraws progress bars produce. Classification itself is
// pure: the same line always gets the same tag.
type Scanner struct {
	rules   []model.MatchRule
	partial strings.Builder
	last    string

	recognized   int
	unrecognized int
}

func NewScanner(rules []model.MatchRule) *Scanner {
	return &Scanner{rules: rules}
}

// Feed consumes a raw chunk and returns the complete lines it finished.
// Empty lines and consecutive duplicates are dropped.
func (sc *Scanner) Feed(data []byte) []Line {
	var out []Line
	for _, b := range data {
		switch b {
		case '\n', '\r':
			// \r alone terminates a progress-bar redraw line; \r\n the pair
			// just yields one empty segment which is dropped below.
			if line, ok := sc.finishLine(); ok {
				out = append(out, line)
			}
		default:
			sc.partial.WriteByte(b)
		}
	}
	return out
}

// Flush returns the trailing unterminated line, if any. Prompts frequently
// end without a newline, so the runner calls this after every chunk.
func (sc *Scanner) Flush() (Line, bool) {
	text := strings.TrimSpace(ansi.Strip(sc.partial.String()))
	if text == "" || text == sc.last {
		return Line{}, false
	}
	tag := sc.Classify(text)
	// Only surface a partial line once it matches something; otherwise wait
	// for more bytes.
	if tag == model.TagOther {
		return Line{}, false
	}
	sc.partial.Reset()
	sc.last = text
	sc.count(tag)
	return Line{Text: text, Tag: tag}, true
}

func (sc *Scanner) finishLine() (Line, bool) {
	raw := sc.partial.String()
	sc.partial.Reset()
	text := strings.TrimSpace(ansi.Strip(raw))
	if text == "" || text == sc.last {
		return Line{}, false
	}
	sc.last = text
	tag := sc.Classify(text)
	sc.count(tag)
	return Line{Text: text, Tag: tag}, true
}

func (sc *Scanner) count(tag model.LineTag) {
	if tag == model.TagOther {
		sc.unrecognized++
	} else {
		sc.recognized++
	}
}

// Classify tags a cleaned line against the scenario's rules, first match
// wins. Lines no rule claims are TagOther.
func (sc *Scanner) Classify(line string) model.LineTag {
	for _, r := range sc.rules {
		needle := r.Contains
		hay := line
		if r.Fold {
			needle = strings.ToLower(needle)
			hay = strings.ToLower(hay)
		}
		if strings.Contains(hay, needle) {
			return r.Tag
		}
	}
	return model.TagOther
}

// Recognized reports how many accepted lines matched a rule.
func (sc *Scanner) Recognized() int { return sc.recognized }

// Unrecognized reports how many accepted lines matched no rule.
func (sc *Scanner) Unrecognized() int { return sc.unrecognized }
