package messaging

import (
	"context"
	"fmt"
	"time"
)

// Pinger is the part of a broker connection health checks need.
type Pinger interface {
	IsConnected() bool
	RTT() (time.Duration, error)
}

// HealthStatus represents the health state of a messaging connection.
type HealthStatus struct {
	Connected bool          `json:"connected"`
	Latency   time.Duration `json:"latency_ms"`
	Error     string        `json:"error,omitempty"`
}

// Healthy reports whether the connection is usable.
func (s HealthStatus) Healthy() bool {
	return s.Connected && s.Error == ""
}

// CheckHealth verifies the connection and measures a server round trip.
func CheckHealth(ctx context.Context, p Pinger) HealthStatus {
	status := HealthStatus{}
	if p == nil {
		status.Error = "client is nil"
		return status
	}
	if err := ctx.Err(); err != nil {
		status.Error = err.Error()
		return status
	}

	status.Connected = p.IsConnected()
	if !status.Connected {
		status.Error = "not connected to message broker"
		return status
	}

	rtt, err := p.RTT()
	if err != nil {
		status.Error = fmt.Sprintf("health check failed: %v", err)
		return status
	}
	status.Latency = rtt / time.Millisecond
	return status
}
