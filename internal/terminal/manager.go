package terminal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/creack/pty"
)

// Manager runs generated scripts under an external interpreter attached to
// a PTY, so programs that check for a terminal behave as they would in a
// shell. One script runs at a time.
type Manager struct {
	mu          sync.Mutex
	ptmx        *os.File
	cmd         *exec.Cmd
	done        chan struct{}
	exitCode    int
	onData      func(data []byte)
	onExit      func(exitCode int)
	running     bool
	interpreter string
	// Store pending size for when RunFile is called
	pendingCols uint16
	pendingRows uint16
}

// resolveInterpreter finds the absolute path for the interpreter binary.
// Probes common install locations when it is not on PATH.
func resolveInterpreter(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	if p, err := exec.LookPath(name); err == nil {
		return p
	}
	candidates := []string{
		filepath.Join("/opt/homebrew/bin", name),
		filepath.Join("/usr/local/bin", name),
		filepath.Join("/run/current-system/sw/bin", name),
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates,
			filepath.Join(home, ".local/bin", name),
			filepath.Join(home, ".nix-profile/bin", name),
		)
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	// Let exec.Command fail with a clear error
	return name
}

// New creates a manager for the given interpreter (e.g. "lua"). onData
// receives raw PTY output; onExit is called with the exit code once the
// script ends. Either may be nil.
func New(interpreter string, onData func(data []byte), onExit func(exitCode int)) *Manager {
	if interpreter == "" {
		interpreter = "lua"
	}
	return &Manager{
		onData:      onData,
		onExit:      onExit,
		interpreter: resolveInterpreter(interpreter),
		pendingCols: 80,
		pendingRows: 24,
	}
}

// Interpreter returns the resolved interpreter path.
func (m *Manager) Interpreter() string { return m.interpreter }

// RunFile starts the interpreter on path. A script that is still running
// is killed first.
func (m *Manager) RunFile(path string, args ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		m.closeInternal()
	}

	cmd := exec.Command(m.interpreter, append([]string{path}, args...)...)
	cmd.Dir = filepath.Dir(path)
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{
		Cols: m.pendingCols,
		Rows: m.pendingRows,
	})
	if err != nil {
		return fmt.Errorf("start pty: %w", err)
	}

	done := make(chan struct{})
	m.ptmx = ptmx
	m.cmd = cmd
	m.done = done
	m.exitCode = 0
	m.running = true

	// Read PTY output until the process closes its side
	go func() {
		buf := make([]byte, 32768)
		for {
			n, err := ptmx.Read(buf)
			if n > 0 {
				data := make([]byte, n)
				copy(data, buf[:n])
				if m.onData != nil {
					m.onData(data)
				}
			}
			if err != nil {
				break
			}
		}

		code := 0
		if err := cmd.Wait(); err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				code = exitErr.ExitCode()
			} else {
				code = -1
			}
		}

		m.mu.Lock()
		if m.cmd == cmd {
			m.exitCode = code
			m.running = false
			m.ptmx = nil
			m.cmd = nil
		}
		m.mu.Unlock()
		ptmx.Close()
		close(done)
		if m.onExit != nil {
			m.onExit(code)
		}
	}()

	return nil
}

// Wait blocks until the current script ends and returns its exit code.
func (m *Manager) Wait(ctx context.Context) (int, error) {
	m.mu.Lock()
	done := m.done
	m.mu.Unlock()
	if done == nil {
		return 0, fmt.Errorf("no script has been started")
	}
	select {
	case <-done:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.exitCode, nil
}

// Write sends input to the running script.
func (m *Manager) Write(data string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running || m.ptmx == nil {
		return fmt.Errorf("no active terminal session")
	}

	_, err := io.WriteString(m.ptmx, data)
	return err
}

// Resize updates the PTY window size.
func (m *Manager) Resize(cols, rows uint16) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pendingCols = cols
	m.pendingRows = rows

	if !m.running || m.ptmx == nil {
		return nil
	}

	return pty.Setsize(m.ptmx, &pty.Winsize{
		Cols: cols,
		Rows: rows,
	})
}

// IsRunning returns whether a script is active.
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Close kills the running script, if any.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeInternal()
}

// closeInternal kills the process; the reader goroutine reaps it.
func (m *Manager) closeInternal() {
	if m.cmd != nil && m.cmd.Process != nil {
		m.cmd.Process.Kill()
	}
	m.running = false
}

// RunScript writes code to a temporary file named after ext, runs it with
// interpreter under a PTY and copies the output to out. It returns the
// interpreter's exit code.
func RunScript(ctx context.Context, interpreter, code, ext string, out io.Writer) (int, error) {
	dir, err := os.MkdirTemp("", "ublockly-run-*")
	if err != nil {
		return 0, err
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "main"+ext)
	if err := os.WriteFile(path, []byte(code), 0o644); err != nil {
		return 0, fmt.Errorf("write script: %w", err)
	}

	m := New(interpreter, func(data []byte) { out.Write(data) }, nil)
	if err := m.RunFile(path); err != nil {
		return 0, err
	}
	exit, err := m.Wait(ctx)
	if err != nil {
		m.Close()
		m.Wait(context.Background())
		return 0, err
	}
	return exit, nil
}
