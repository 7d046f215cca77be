package messaging

import "strings"

// Subjects follow the pattern {domain}.{action}.{resource}.
const (
	// SubjectCAPIDLQ prefixes dead-lettered server events; the reason is appended.
	SubjectCAPIDLQ = "capi.dlq"

	// SubjectCAPIDLQAll matches every dead-lettered server event.
	SubjectCAPIDLQAll = SubjectCAPIDLQ + ".>"
)

// Dead-letter reasons.
const (
	ReasonExhausted = "exhausted" // retries used up on a transient failure
	ReasonRejected  = "rejected"  // endpoint refused the payload (4xx)
	ReasonOverflow  = "overflow"  // outbox queue was full
)

// DLQSubject returns the dead-letter subject for a reason.
// Example: capi.dlq.exhausted
func DLQSubject(reason string) string {
	reason = strings.ToLower(strings.TrimSpace(reason))
	if reason == "" {
		reason = "unknown"
	}
	reason = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, reason)
	return SubjectCAPIDLQ + "." + reason
}
