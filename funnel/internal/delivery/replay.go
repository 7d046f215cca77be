package delivery

import (
	"context"
	"log/slog"

	"github.com/techview-systems/leadpixel-stack/common/logging"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/configstore"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/dlq"
)

// ReplayReport summarizes a Replay run.
type ReplayReport struct {
	Read       int `json:"read"`
	Dispatched int `json:"dispatched"`
	// Skipped counts entries whose operator no longer has an active
	// configuration.
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Replay re-dispatches up to limit dead-lettered events with the
// operator's current credentials. Entries stay in the queue; delivered
// event ids are skipped by the outbox on a second replay.
func Replay(ctx context.Context, queue dlq.Queue, configs configstore.Store, d Dispatcher, limit int) (ReplayReport, error) {
	var report ReplayReport
	entries, err := queue.List(ctx, limit)
	if err != nil {
		return report, err
	}
	report.Read = len(entries)

	for _, entry := range entries {
		if entry.Event == nil {
			report.Skipped++
			continue
		}
		cfg, err := configstore.Lookup(ctx, configs, entry.OperatorID)
		if err != nil {
			report.Failed++
			slog.WarnContext(ctx, "Replay lookup failed", logging.OperatorID(entry.OperatorID), logging.Error(err))
			continue
		}
		if cfg == nil {
			report.Skipped++
			continue
		}
		err = d.Dispatch(ctx, Job{
			Event:       entry.Event,
			OperatorID:  entry.OperatorID,
			PixelID:     cfg.PixelID,
			AccessToken: cfg.AccessToken,
		})
		if err != nil {
			report.Failed++
			continue
		}
		report.Dispatched++
	}

	slog.InfoContext(ctx, "DLQ replay finished",
		slog.Int("read", report.Read),
		slog.Int("dispatched", report.Dispatched),
		slog.Int("skipped", report.Skipped),
		slog.Int("failed", report.Failed),
	)
	return report, nil
}
