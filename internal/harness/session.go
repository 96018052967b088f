package harness

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/aymanbagabas/go-pty"
)

// ErrBinaryNotFound is returned by Start when the scenario's program is not
// on PATH. Callers distinguish it from launch failures so they can offer to
// install the missing tool instead of reporting a crash.
var ErrBinaryNotFound = errors.New("binary not found in PATH")

const (
	historySize   = 64 * 1024
	stopGrace     = 3 * time.Second
	defaultCols   = 120
	defaultRows   = 40
	outputBufSize = 256
)

// Session runs a single child process under a pseudo-terminal. A PTY is used
// unconditionally: the tools being driven (vscode CLI, ngrok, cloudflared)
// detect non-interactive stdin and change behavior, and some draw full-screen
// menus that only appear on a terminal.
type Session struct {
	argv []string
	env  []string

	mu       sync.Mutex
	ptmx     pty.Pty
	cmd      *pty.Cmd
	started  bool
	exited   bool
	exitCode int
	detached bool

	history *ringBuffer
	output  chan []byte
	done    chan struct{}
}

// NewSession prepares a session for argv. env entries are appended to the
// parent environment. Nothing is spawned until Start.
func NewSession(argv []string, env []string) *Session {
	return &Session{
		argv:    argv,
		env:     env,
		history: newRingBuffer(historySize),
		output:  make(chan []byte, outputBufSize),
		done:    make(chan struct{}),
	}
}

// Start spawns the child on a fresh PTY and begins pumping its output. The
// child is deliberately not bound to ctx: the runner kills it explicitly on
// cancellation, and a detached child must outlive the caller.
func (s *Session) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(s.argv) == 0 {
		return errors.New("empty command")
	}
	if _, err := exec.LookPath(s.argv[0]); err != nil {
		return fmt.Errorf("%w: %s", ErrBinaryNotFound, s.argv[0])
	}

	ptmx, err := pty.New()
	if err != nil {
		return fmt.Errorf("open pty: %w", err)
	}
	if err := ptmx.Resize(defaultCols, defaultRows); err != nil {
		ptmx.Close()
		return fmt.Errorf("resize pty: %w", err)
	}

	cmd := ptmx.Command(s.argv[0], s.argv[1:]...)
	cmd.Env = append(os.Environ(), s.env...)
	if err := cmd.Start(); err != nil {
		ptmx.Close()
		return fmt.Errorf("start %s: %w", s.argv[0], err)
	}

	s.mu.Lock()
	s.ptmx = ptmx
	s.cmd = cmd
	s.started = true
	s.mu.Unlock()

	go s.readLoop()
	go s.waitLoop()
	return nil
}

func (s *Session) readLoop() {
	buf := make([]byte, 4096)
	for {
		n, err := s.ptmx.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			s.history.Write(chunk)
			select {
			case s.output <- chunk:
			case <-s.done:
				return
			}
		}
		if err != nil {
			// EIO on Linux once the child side closes. Either way the
			// stream is over.
			close(s.output)
			return
		}
	}
}

func (s *Session) waitLoop() {
	err := s.cmd.Wait()
	code := 0
	if err != nil {
		code = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
	} else if s.cmd.ProcessState != nil {
		code = s.cmd.ProcessState.ExitCode()
	}
	s.mu.Lock()
	s.exited = true
	s.exitCode = code
	s.mu.Unlock()
	close(s.done)
}

// Output delivers raw PTY chunks. The channel closes when the child's
// output stream ends.
func (s *Session) Output() <-chan []byte { return s.output }

// Done closes once the child has been reaped.
func (s *Session) Done() <-chan struct{} { return s.done }

// Write sends bytes to the child's terminal input.
func (s *Session) Write(p []byte) (int, error) {
	s.mu.Lock()
	ptmx := s.ptmx
	s.mu.Unlock()
	if ptmx == nil {
		return 0, errors.New("session not started")
	}
	return ptmx.Write(p)
}

// PID returns the child's process id, or 0 before Start.
func (s *Session) PID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd == nil || s.cmd.Process == nil {
		return 0
	}
	return s.cmd.Process.Pid
}

// ExitCode reports the child's exit code once it has exited.
func (s *Session) ExitCode() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitCode, s.exited
}

// History returns the raw output seen so far, for diagnostics.
func (s *Session) History() []byte { return s.history.Bytes() }

// Detach releases the child to keep running after the harness returns. The
// output channel is drained in the background so the child never blocks on
// a full terminal buffer.
func (s *Session) Detach() {
	s.mu.Lock()
	s.detached = true
	s.mu.Unlock()
	go func() {
		for range s.output {
		}
	}()
}

// Stop terminates the child: SIGTERM, a short grace period, then SIGKILL.
// It is a no-op for detached sessions and safe to call more than once.
func (s *Session) Stop() {
	s.mu.Lock()
	if !s.started || s.detached || s.cmd == nil || s.cmd.Process == nil {
		s.mu.Unlock()
		return
	}
	proc := s.cmd.Process
	exited := s.exited
	s.mu.Unlock()

	if !exited {
		proc.Signal(syscall.SIGTERM)
		select {
		case <-s.done:
		case <-time.After(stopGrace):
			proc.Kill()
			select {
			case <-s.done:
			case <-time.After(time.Second):
			}
		}
	}

	s.mu.Lock()
	if s.ptmx != nil {
		s.ptmx.Close()
		s.ptmx = nil
	}
	s.mu.Unlock()
}
