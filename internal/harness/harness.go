package harness

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/hinshun/vt10x"

	"github.com/mrzlfz/code-server-labs/internal/logx"
	"github.com/mrzlfz/code-server-labs/internal/model"
)

// Result is the outcome of one scenario run.
type Result struct {
	State      model.RunState
	ExitCode   int
	PID        int
	Transcript *Transcript

	// Extracted artifacts, empty when the run never printed them.
	DeviceCode string
	AuthURL    string
	TunnelURL  string
}

// Runner drives one child process per scenario: launch under a PTY, scan and
// classify output, answer prompts, and judge the outcome against the
// scenario's success and error rules or its deadline.
type Runner struct {
	Log *logx.Logger

	// WarnAfter is how many unrecognized lines accumulate before a single
	// "no recognized pattern" warning is logged. Zero means the default.
	WarnAfter int

	// OnLine, when set, receives every transcript line as it is recorded.
	OnLine func(Line)
}

const (
	defaultWarnAfter = 40

	// drainGrace bounds how long the runner waits for trailing output after
	// the child has been reaped. The PTY master never returns EOF while this
	// process still holds it open, so the output channel cannot be relied on
	// to close.
	drainGrace = 200 * time.Millisecond
)

var (
	deviceCodeRe = regexp.MustCompile(`use code ([A-Z0-9][A-Z0-9-]{3,})`)
	authURLRe    = regexp.MustCompile(`https://github\.com/login/device\S*`)
	tunnelURLRe  = regexp.MustCompile(`https://\S*(?:vscode\.dev/tunnel|trycloudflare\.com)\S*`)
	localURLRe   = regexp.MustCompile(`https?://(?:127\.0\.0\.1|localhost|0\.0\.0\.0):\d+\S*`)
)

// Run executes the scenario to a terminal state. The returned Result always
// carries the transcript, also on error. The child never outlives ctx: a
// canceled context kills it before Run returns, except for scenarios that
// detach on success.
func (r *Runner) Run(ctx context.Context, sc model.Scenario) (*Result, error) {
	res := &Result{Transcript: &Transcript{}}
	j := newJudge()

	session := NewSession(sc.Argv, sc.Env)
	r.Log.Infof("run %s/%s: %s", sc.Tool, sc.Name, strings.Join(sc.Argv, " "))
	if err := session.Start(ctx); err != nil {
		j.fail()
		res.State = j.State()
		return res, err
	}
	res.PID = session.PID()
	defer func() {
		if res.State == model.RunSucceeded && sc.Detach {
			session.Detach()
			r.Log.Infof("run %s/%s: detached pid %d", sc.Tool, sc.Name, res.PID)
			return
		}
		session.Stop()
	}()

	j.monitoring()

	scanner := NewScanner(sc.Rules)
	responder := NewResponder(sc.Prompts, session)

	var screen vt10x.Terminal
	if sc.UseScreen {
		screen = vt10x.New(vt10x.WithSize(defaultCols, defaultRows))
	}

	warnAfter := r.WarnAfter
	if warnAfter <= 0 {
		warnAfter = defaultWarnAfter
	}
	warned := false

	timeout := sc.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	record := func(line Line) {
		res.Transcript.Append(line.Text, line.Tag)
		r.extract(res, line.Text)
		if r.OnLine != nil {
			r.OnLine(line)
		}
		switch line.Tag {
		case model.TagPrompt:
			if _, err := responder.Observe(line.Text); err != nil {
				r.Log.Warnf("run %s/%s: %v", sc.Tool, sc.Name, err)
			}
		case model.TagSuccess:
			j.succeed()
		case model.TagError:
			j.fail()
		}
	}

	consume := func(data []byte) {
		if screen != nil {
			screen.Write(data)
		}
		for _, line := range scanner.Feed(data) {
			record(line)
		}
		if line, ok := scanner.Flush(); ok {
			record(line)
		}
		if screen != nil {
			if fired, err := responder.Observe(screen.String()); err != nil {
				r.Log.Warnf("run %s/%s: %v", sc.Tool, sc.Name, err)
			} else if fired {
				r.Log.Debugf("run %s/%s: answered prompt from screen", sc.Tool, sc.Name)
			}
		}
		if !warned && scanner.Unrecognized() >= warnAfter && scanner.Recognized() == 0 {
			warned = true
			r.Log.Warnf("run %s/%s: no recognized pattern after %d lines of output", sc.Tool, sc.Name, scanner.Unrecognized())
		}
	}

	// finish judges the run by exit code once the child has been reaped. A
	// state already reached from a tagged line wins; the judge ignores late
	// transitions.
	finish := func() (*Result, error) {
		code, _ := session.ExitCode()
		res.ExitCode = code
		if code == 0 && (sc.SuccessOnExit || j.State() == model.RunMonitoring) {
			j.succeed()
		} else if code != 0 {
			j.fail()
		}
		res.State = j.State()
		r.Log.Infof("run %s/%s: exit %d, state %s", sc.Tool, sc.Name, code, res.State)
		return res, nil
	}

	for {
		select {
		case data, ok := <-session.Output():
			if !ok {
				<-session.Done()
				return finish()
			}
			consume(data)
			if st := j.State(); st.Terminal() {
				res.State = st
				if code, done := session.ExitCode(); done {
					res.ExitCode = code
				}
				r.Log.Infof("run %s/%s: state %s", sc.Tool, sc.Name, st)
				return res, nil
			}

		case <-session.Done():
			// Pick up whatever the child flushed right before exiting, then
			// judge by exit code.
			grace := time.NewTimer(drainGrace)
		drain:
			for {
				select {
				case data, ok := <-session.Output():
					if !ok {
						break drain
					}
					consume(data)
				case <-grace.C:
					break drain
				}
			}
			grace.Stop()
			return finish()

		case <-deadline.C:
			j.timeout()
			res.State = j.State()
			r.Log.Warnf("run %s/%s: timed out after %s", sc.Tool, sc.Name, timeout)
			session.Stop()
			return res, nil

		case <-ctx.Done():
			j.kill()
			res.State = j.State()
			r.Log.Warnf("run %s/%s: interrupted", sc.Tool, sc.Name)
			session.Stop()
			return res, ctx.Err()
		}
	}
}

// extract pulls device-flow codes and tunnel URLs out of a line as they
// scroll past, so the artifacts survive even if the run later fails.
func (r *Runner) extract(res *Result, line string) {
	if res.DeviceCode == "" {
		if m := deviceCodeRe.FindStringSubmatch(line); m != nil {
			res.DeviceCode = m[1]
			r.Log.Infof("device code: %s", m[1])
		}
	}
	if res.AuthURL == "" {
		if m := authURLRe.FindString(line); m != "" {
			res.AuthURL = strings.TrimRight(m, ".,;)")
			r.Log.Infof("auth url: %s", res.AuthURL)
		}
	}
	if res.TunnelURL == "" {
		m := tunnelURLRe.FindString(line)
		if m == "" {
			m = localURLRe.FindString(line)
		}
		if m != "" {
			res.TunnelURL = strings.TrimRight(m, ".,;)")
		}
	}
}
