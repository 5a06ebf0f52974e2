package process

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Veraticus/kmpscan/pkg/interfaces"
)

// WatchedEnv is set in the environment of every watched command.
const WatchedEnv = "KMPSCAN_WATCHED"

// drainTimeout bounds how long Wait keeps reading output after the child
// exits. A background grandchild can hold the PTY open indefinitely.
var drainTimeout = 2 * time.Second

// Manager runs a watched command under a PTY and feeds its output to a
// DataHandler.
type Manager struct {
	ptyManager    PTY
	outputHandler interfaces.DataHandler
	stdin         io.Reader
	stdout        io.Writer
	exitCode      int
	mu            sync.Mutex
	sigChan       chan os.Signal
	done          chan struct{}
	ioDone        chan struct{}
}

// Ensure Manager implements ProcessWrapper
var _ interfaces.ProcessWrapper = (*Manager)(nil)

// NewManager creates a new process manager attached to the terminal
func NewManager(outputHandler interfaces.DataHandler) *Manager {
	return &Manager{
		ptyManager:    NewPTYManager(),
		outputHandler: outputHandler,
		stdin:         os.Stdin,
		stdout:        os.Stdout,
		done:          make(chan struct{}),
	}
}

// Start starts the watched command
func (m *Manager) Start(command string, args []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if os.Getenv(WatchedEnv) == "1" {
		return fmt.Errorf("already running under kmpscan watch")
	}

	env := append(os.Environ(), WatchedEnv+"=1")

	if err := m.ptyManager.Start(command, args, env); err != nil {
		return fmt.Errorf("failed to start process: %w", err)
	}

	var handler func([]byte)
	if m.outputHandler != nil {
		handler = m.outputHandler.HandleData
	}

	m.ioDone = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		if err := m.ptyManager.CopyIO(m.stdin, m.stdout, handler); err != nil {
			fmt.Fprintf(os.Stderr, "kmpscan: I/O error: %v\n", err)
		}
	}(m.ioDone)

	m.setupSignalForwarding()

	return nil
}

// Wait waits for the process to exit and its output to drain. A non-zero
// exit status is reported through ExitCode, not as an error.
func (m *Manager) Wait() error {
	if m.ptyManager == nil {
		return fmt.Errorf("process not started")
	}

	err := m.ptyManager.Wait()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		err = nil
	}

	m.mu.Lock()
	ioDone := m.ioDone
	m.mu.Unlock()
	if ioDone != nil {
		select {
		case <-ioDone:
		case <-time.After(drainTimeout):
			fmt.Fprintf(os.Stderr, "kmpscan: output still open after exit, detaching\n")
		}
	}

	if f, ok := m.outputHandler.(interface{ Flush() }); ok {
		f.Flush()
	}

	m.mu.Lock()
	if state := m.ptyManager.ProcessState(); state != nil {
		m.exitCode = state.ExitCode()
	}
	m.mu.Unlock()

	_ = m.ptyManager.Close()

	close(m.done)
	m.cleanupSignals()

	return err
}

// ExitCode returns the exit code of the process
func (m *Manager) ExitCode() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.exitCode
}

// setupSignalForwarding sets up signal forwarding to the child process
func (m *Manager) setupSignalForwarding() {
	m.sigChan = make(chan os.Signal, 1)
	signal.Notify(m.sigChan,
		syscall.SIGTERM,
		syscall.SIGINT,
		syscall.SIGHUP,
		syscall.SIGQUIT,
		syscall.SIGUSR1,
		syscall.SIGUSR2,
	)

	go m.forwardSignals()
}

// forwardSignals forwards signals to the child process
func (m *Manager) forwardSignals() {
	for {
		select {
		case sig, ok := <-m.sigChan:
			if !ok {
				return
			}
			if m.ptyManager != nil && m.ptyManager.Process() != nil {
				if err := m.ptyManager.Process().Signal(sig); err != nil && !errors.Is(err, os.ErrProcessDone) {
					fmt.Fprintf(os.Stderr, "kmpscan: signal forward error: %v\n", err)
				}
			}
		case <-m.done:
			return
		}
	}
}

// cleanupSignals stops signal forwarding
func (m *Manager) cleanupSignals() {
	if m.sigChan != nil {
		signal.Stop(m.sigChan)
	}
}

// Stop restores the terminal and asks the child to terminate
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ptyManager == nil {
		return nil
	}

	proc := m.ptyManager.Process()
	if proc == nil {
		return m.ptyManager.Close()
	}

	if err := proc.Signal(syscall.SIGTERM); err != nil {
		if !errors.Is(err, os.ErrProcessDone) {
			return proc.Kill()
		}
	}
	return nil
}
