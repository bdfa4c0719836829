package receiver

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"freedv-rx/pkg/freedv"
)

// StatsSource is implemented by *freedv.Session.
type StatsSource interface {
	ID() string
	Snapshot() freedv.Snapshot
}

// StatsReporter logs a session snapshot on a cron schedule.
type StatsReporter struct {
	cron   *cron.Cron
	src    StatsSource
	logger *logrus.Logger
}

// NewStatsReporter schedules reports; schedule uses standard cron syntax or
// descriptors such as "@every 10s".
func NewStatsReporter(schedule string, src StatsSource, logger *logrus.Logger) (*StatsReporter, error) {
	r := &StatsReporter{
		cron:   cron.New(),
		src:    src,
		logger: logger,
	}
	if _, err := r.cron.AddFunc(schedule, r.Report); err != nil {
		return nil, fmt.Errorf("invalid stats schedule %q: %w", schedule, err)
	}
	return r, nil
}

// Start runs the schedule in the background.
func (r *StatsReporter) Start() { r.cron.Start() }

// Stop stops the schedule and waits for a running report to finish.
func (r *StatsReporter) Stop() { <-r.cron.Stop().Done() }

// Report logs the current snapshot.
func (r *StatsReporter) Report() {
	snap := r.src.Snapshot()
	r.logger.WithFields(logrus.Fields{
		"session_id":     r.src.ID(),
		"state":          snap.State.String(),
		"snr_db":         fmt.Sprintf("%.1f", snap.Stats.SNR),
		"freq_offset_hz": fmt.Sprintf("%.1f", snap.Stats.FreqOffset),
		"demod_calls":    snap.DemodCalls,
		"decoded_frames": snap.DecodedFrames,
		"silence_blocks": snap.SilenceBlocks,
		"dropped_blocks": snap.DroppedBlocks,
		"frame_failures": snap.FrameFailures,
		"backpressure":   snap.Backpressure,
	}).Info("Receive stats")
}
