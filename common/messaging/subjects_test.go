package messaging

import (
	"strings"
	"testing"
)

func TestDLQSubject(t *testing.T) {
	tests := []struct {
		reason string
		want   string
	}{
		{ReasonExhausted, "capi.dlq.exhausted"},
		{ReasonRejected, "capi.dlq.rejected"},
		{"  Overflow ", "capi.dlq.overflow"},
		{"", "capi.dlq.unknown"},
		{"bad.reason>*", "capi.dlq.bad_reason__"},
	}
	for _, tt := range tests {
		t.Run(tt.reason, func(t *testing.T) {
			if got := DLQSubject(tt.reason); got != tt.want {
				t.Errorf("DLQSubject(%q) = %q, want %q", tt.reason, got, tt.want)
			}
		})
	}
}

func TestDLQSubject_MatchedByWildcard(t *testing.T) {
	prefix := strings.TrimSuffix(SubjectCAPIDLQAll, ">")
	for _, reason := range []string{ReasonExhausted, ReasonRejected, ReasonOverflow} {
		subject := DLQSubject(reason)
		if !strings.HasPrefix(subject, prefix) {
			t.Errorf("%q not captured by %q", subject, SubjectCAPIDLQAll)
		}
		if strings.Count(subject, ".") != 2 {
			t.Errorf("%q should have exactly three tokens", subject)
		}
	}
}
