package logging

import "log/slog"

// Common field names for consistent logging across services.
const (
	FieldService    = "service"
	FieldRequestID  = "request_id"
	FieldOperatorID = "operator_id"
	FieldSessionID  = "session_id"
	FieldEventID    = "event_id"
	FieldEventName  = "event_name"
	FieldPixelID    = "pixel_id"
	FieldLeadID     = "lead_id"
	FieldState      = "state"
	FieldIP         = "ip"
	FieldStatus     = "status"
	FieldAttempt    = "attempt"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
)

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// OperatorID returns a slog attribute for the reseller operator owning a funnel.
func OperatorID(id string) slog.Attr {
	return slog.String(FieldOperatorID, id)
}

// SessionID returns a slog attribute for a funnel session.
func SessionID(id string) slog.Attr {
	return slog.String(FieldSessionID, id)
}

// EventID returns a slog attribute for a deduplication event ID.
func EventID(id string) slog.Attr {
	return slog.String(FieldEventID, id)
}

// EventName returns a slog attribute for a tracked event name.
func EventName(name string) slog.Attr {
	return slog.String(FieldEventName, name)
}

// PixelID returns a slog attribute for a pixel identifier.
func PixelID(id string) slog.Attr {
	return slog.String(FieldPixelID, id)
}

// LeadID returns a slog attribute for a persisted lead.
func LeadID(id string) slog.Attr {
	return slog.String(FieldLeadID, id)
}

// State returns a slog attribute for a funnel state.
func State(s string) slog.Attr {
	return slog.String(FieldState, s)
}

// IP returns a slog attribute for the IP address.
func IP(ip string) slog.Attr {
	return slog.String(FieldIP, ip)
}

// Status returns a slog attribute for an HTTP status code.
func Status(code int) slog.Attr {
	return slog.Int(FieldStatus, code)
}

// Attempt returns a slog attribute for a delivery attempt number.
func Attempt(n int) slog.Attr {
	return slog.Int(FieldAttempt, n)
}

// Duration returns a slog attribute for duration in milliseconds.
func Duration(ms int64) slog.Attr {
	return slog.Int64(FieldDuration, ms)
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(FieldError, "")
	}
	return slog.String(FieldError, err.Error())
}
