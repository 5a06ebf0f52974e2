// Package notification reports pattern matches found in watched output.
package notification

import "time"

// Notification represents a match to be reported.
type Notification struct {
	Title    string
	Message  string
	Time     time.Time
	Pattern  string
	Position int
}

// Notifier sends notifications.
type Notifier interface {
	Send(notification Notification) error
}
