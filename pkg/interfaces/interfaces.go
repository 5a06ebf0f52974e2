// Package interfaces defines the core interfaces used throughout the application.
package interfaces

// ProcessWrapper wraps and monitors a process.
type ProcessWrapper interface {
	Start(command string, args []string) error
	Wait() error
	ExitCode() int
}

// OutputHandler processes output lines.
type OutputHandler interface {
	HandleLine(line string)
}

// DataHandler processes raw output data.
type DataHandler interface {
	OutputHandler
	HandleData(data []byte)
}

// RateLimiter limits notification frequency.
type RateLimiter interface {
	Allow() bool
	Reset()
}

// StatusReporter is told about each notification delivery.
type StatusReporter interface {
	ReportSending()
	ReportSuccess()
	ReportFailure()
	ReportDropped()
}
