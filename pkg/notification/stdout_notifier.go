package notification

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// WriterNotifier prints notifications, one per line, to a writer
type WriterNotifier struct {
	mu      sync.Mutex
	w       io.Writer
	lineEnd string
}

// NewWriterNotifier creates a notifier writing to w
func NewWriterNotifier(w io.Writer) *WriterNotifier {
	return &WriterNotifier{w: w, lineEnd: "\n"}
}

// NewTerminalNotifier creates a notifier for a terminal that may be in raw
// mode, where output post-processing is off and lines need an explicit
// carriage return.
func NewTerminalNotifier(w io.Writer) *WriterNotifier {
	return &WriterNotifier{w: w, lineEnd: "\r\n"}
}

// NewStdoutNotifier creates a notifier writing to stdout
func NewStdoutNotifier() *WriterNotifier {
	return NewWriterNotifier(os.Stdout)
}

// Send prints the notification
func (n *WriterNotifier) Send(notification Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	_, err := fmt.Fprintf(n.w, "[MATCH] %s: %s (Pattern: %s, Position: %d)%s",
		notification.Title,
		notification.Message,
		notification.Pattern,
		notification.Position,
		n.lineEnd)
	return err
}
