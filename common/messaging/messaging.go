// Package messaging holds the broker-neutral message type, subject names
// and connection health checks.
package messaging

import "time"

// Message represents a message sent to or read back from a message broker.
type Message struct {
	// Subject is the topic the message was published to.
	Subject string

	// Data is the raw message payload.
	Data []byte

	// Metadata contains optional key-value pairs for message headers.
	Metadata map[string]string

	// Timestamp is when the message was published.
	Timestamp time.Time
}
