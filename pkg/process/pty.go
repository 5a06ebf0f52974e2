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

	"github.com/creack/pty"
	"golang.org/x/term"
)

// PTYManager handles PTY-based process execution
type PTYManager struct {
	cmd         *exec.Cmd
	pty         *os.File
	mu          sync.Mutex
	stopChan    chan struct{}
	stopOnce    sync.Once
	closeOnce   sync.Once
	wg          sync.WaitGroup
	restoreFunc func()
}

// Ensure PTYManager implements PTY
var _ PTY = (*PTYManager)(nil)

// NewPTYManager creates a new PTY manager
func NewPTYManager() *PTYManager {
	return &PTYManager{
		stopChan: make(chan struct{}),
	}
}

// Start starts a process with PTY
func (p *PTYManager) Start(command string, args []string, env []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd != nil {
		return fmt.Errorf("process already started")
	}

	cmd := exec.Command(command, args...)
	cmd.Env = env

	f, err := pty.Start(cmd)
	if err != nil {
		return fmt.Errorf("failed to start PTY: %w", err)
	}
	p.cmd = cmd
	p.pty = f

	if term.IsTerminal(int(os.Stdin.Fd())) {
		if err := p.copyTerminalSize(); err != nil {
			fmt.Fprintf(os.Stderr, "kmpscan: failed to copy terminal size: %v\n", err)
		}
	}

	p.wg.Add(1)
	go p.monitorTerminalSize()

	return nil
}

// GetPTY returns the PTY file descriptor
func (p *PTYManager) GetPTY() *os.File {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pty
}

// Wait waits for the process to exit. The PTY stays open so that
// buffered output can still be drained; call Close afterwards.
func (p *PTYManager) Wait() error {
	p.mu.Lock()
	cmd := p.cmd
	p.mu.Unlock()
	if cmd == nil {
		return fmt.Errorf("process not started")
	}

	err := cmd.Wait()

	p.stopOnce.Do(func() { close(p.stopChan) })
	p.wg.Wait()

	return err
}

// Close restores the terminal and releases the PTY
func (p *PTYManager) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.restoreFunc != nil {
		p.restoreFunc()
		p.restoreFunc = nil
	}

	var err error
	p.closeOnce.Do(func() {
		if p.pty != nil {
			err = p.pty.Close()
		}
	})
	return err
}

// ProcessState returns the process state
func (p *PTYManager) ProcessState() *os.ProcessState {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd == nil {
		return nil
	}
	return p.cmd.ProcessState
}

// Process returns the underlying process
func (p *PTYManager) Process() *os.Process {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd == nil {
		return nil
	}
	return p.cmd.Process
}

// copyTerminalSize copies the terminal size from stdin to the PTY
func (p *PTYManager) copyTerminalSize() error {
	size, err := pty.GetsizeFull(os.Stdin)
	if err != nil {
		return err
	}
	return pty.Setsize(p.pty, size)
}

// monitorTerminalSize monitors for terminal size changes
func (p *PTYManager) monitorTerminalSize() {
	defer p.wg.Done()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGWINCH)
	defer signal.Stop(sigChan)

	for {
		select {
		case <-sigChan:
			p.mu.Lock()
			if p.pty != nil {
				if err := p.copyTerminalSize(); err != nil {
					fmt.Fprintf(os.Stderr, "kmpscan: failed to resize PTY: %v\n", err)
				}
			}
			p.mu.Unlock()
		case <-p.stopChan:
			return
		}
	}
}

// CopyIO forwards stdin to the PTY and copies PTY output to stdout,
// passing every chunk to handler. It returns once the output side
// reaches end of file, which happens after the child exits.
func (p *PTYManager) CopyIO(stdin io.Reader, stdout io.Writer, handler func([]byte)) error {
	p.mu.Lock()
	if p.pty == nil {
		p.mu.Unlock()
		return fmt.Errorf("PTY not initialized")
	}
	ptyFile := p.pty
	p.mu.Unlock()

	if file, ok := stdin.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		fd := int(file.Fd())
		if state, err := term.MakeRaw(fd); err == nil {
			p.mu.Lock()
			p.restoreFunc = func() { _ = term.Restore(fd, state) }
			p.mu.Unlock()
			defer func() {
				p.mu.Lock()
				if p.restoreFunc != nil {
					p.restoreFunc()
					p.restoreFunc = nil
				}
				p.mu.Unlock()
			}()
		}
	}

	// The stdin side is not waited on: it may block on a terminal read
	// long after the child has gone.
	if stdin != nil {
		go func() {
			_, _ = io.Copy(ptyFile, stdin)
		}()
	}

	var src io.Reader = ptyFile
	if handler != nil {
		src = &outputReader{reader: ptyFile, handler: handler}
	}

	_, err := io.Copy(stdout, src)
	if err != nil && !isPTYClosed(err) {
		return fmt.Errorf("stdout copy error: %w", err)
	}
	return nil
}

// isPTYClosed reports whether err is how the PTY master signals that the
// child side has been closed.
func isPTYClosed(err error) bool {
	return errors.Is(err, syscall.EIO) || errors.Is(err, os.ErrClosed)
}

// outputReader wraps a reader and calls a handler for each chunk of data
type outputReader struct {
	reader  io.Reader
	handler func([]byte)
}

func (r *outputReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	if n > 0 && r.handler != nil {
		r.handler(p[:n])
	}
	return n, err
}
