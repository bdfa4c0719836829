// Package metrics exposes prometheus collectors for receive sessions.
// Collectors are registered once by Init; until then every Record helper is
// a no-op and IsMetricsEnabled reports false.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "freedv"

var (
	mu       sync.RWMutex
	enabled  bool
	gatherer prometheus.Gatherer

	DemodIterations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "demod_iterations_total",
		Help:      "Demodulator calls made by the frame sync loop.",
	}, []string{"session_id"})

	SilenceBlocks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "silence_blocks_total",
		Help:      "Muted blocks appended while unsynchronised.",
	}, []string{"session_id"})

	DecodedFrames = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "decoded_frames_total",
		Help:      "Speech frames decoded and appended to the output buffer.",
	}, []string{"session_id"})

	DroppedBlocks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dropped_blocks_total",
		Help:      "Blocks dropped because the output buffer was full.",
	}, []string{"session_id", "kind"})

	FrameFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "frame_failures_total",
		Help:      "Per-frame adapter failures.",
	}, []string{"session_id", "stage"})

	BackpressureEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "input_backpressure_total",
		Help:      "Input blocks rejected because the input buffer was full.",
	}, []string{"session_id"})

	SyncState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sync_state",
		Help:      "Frame sync state: 0 unsynced, 1 waiting first half, 2 waiting second half.",
	}, []string{"session_id"})

	SNR = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "snr_db",
		Help:      "Latest demodulator SNR estimate.",
	}, []string{"session_id"})

	FreqOffset = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "freq_offset_hz",
		Help:      "Latest demodulator frequency offset estimate.",
	}, []string{"session_id"})

	PushDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "push_duration_seconds",
		Help:      "Time spent in one input push, including demodulation and decode.",
		Buckets:   []float64{.00005, .0001, .00025, .0005, .001, .0025, .005, .01, .02},
	}, []string{"session_id"})
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		DemodIterations, SilenceBlocks, DecodedFrames, DroppedBlocks, FrameFailures,
		BackpressureEvents, SyncState, SNR, FreqOffset, PushDuration,
	}
}

// Init registers all collectors with reg and enables recording. A nil reg
// uses a fresh registry. Calling Init again is a no-op.
func Init(reg *prometheus.Registry) error {
	mu.Lock()
	defer mu.Unlock()
	if enabled {
		return nil
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	gatherer = reg
	enabled = true
	return nil
}

// IsMetricsEnabled reports whether Init has succeeded.
func IsMetricsEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabled
}

// Handler serves the registry passed to Init.
func Handler() http.Handler {
	mu.RLock()
	defer mu.RUnlock()
	if gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// RecordDemodIteration counts one demodulator call.
func RecordDemodIteration(sessionID string) {
	DemodIterations.WithLabelValues(sessionID).Inc()
}

// RecordSilenceBlock counts a muted block appended while unsynced.
func RecordSilenceBlock(sessionID string) {
	SilenceBlocks.WithLabelValues(sessionID).Inc()
}

// RecordDecodedFrame counts a speech frame appended to the output.
func RecordDecodedFrame(sessionID string) {
	DecodedFrames.WithLabelValues(sessionID).Inc()
}

// RecordDroppedBlock counts an output block of the given kind ("silence" or
// "speech") that did not fit.
func RecordDroppedBlock(sessionID, kind string) {
	DroppedBlocks.WithLabelValues(sessionID, kind).Inc()
}

// RecordFrameFailure counts a demod or decode failure by stage.
func RecordFrameFailure(sessionID, stage string) {
	FrameFailures.WithLabelValues(sessionID, stage).Inc()
}

// RecordBackpressure counts a push refused because the input buffer was full.
func RecordBackpressure(sessionID string) {
	BackpressureEvents.WithLabelValues(sessionID).Inc()
}

// RecordDemodStats publishes the quality gauges for one demodulation step.
func RecordDemodStats(sessionID string, state int, snr, freqOffset float64) {
	SyncState.WithLabelValues(sessionID).Set(float64(state))
	SNR.WithLabelValues(sessionID).Set(snr)
	FreqOffset.WithLabelValues(sessionID).Set(freqOffset)
}

// ObservePush starts a push timer; call the returned func when done.
func ObservePush(sessionID string) func() {
	start := time.Now()
	return func() {
		PushDuration.WithLabelValues(sessionID).Observe(time.Since(start).Seconds())
	}
}

// DeleteSession drops every series labelled with sessionID.
func DeleteSession(sessionID string) {
	labels := prometheus.Labels{"session_id": sessionID}
	for _, c := range collectors() {
		if v, ok := c.(interface {
			DeletePartialMatch(prometheus.Labels) int
		}); ok {
			v.DeletePartialMatch(labels)
		}
	}
}
