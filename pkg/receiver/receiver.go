package receiver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"freedv-rx/pkg/freedv"
	"freedv-rx/pkg/media"
)

// Pusher is the part of a session the receive loop drives.
type Pusher interface {
	ID() string
	PushInputFrame(samples []int16) ([]int16, error)
}

// Summary counts what happened during a Run.
type Summary struct {
	Blocks        uint64
	Dropped       uint64
	FrameFailures uint64
	Written       uint64
}

// Run reads blocks from src, pushes them through sess and writes any output
// to sink until src ends or ctx is cancelled. Blocks refused with
// ErrBackpressure are dropped. Per-frame failures are counted and the run
// continues. Any other session, source or sink error stops the run.
//
// Run returns nil at the end of the input and ctx.Err() on cancellation.
func Run(ctx context.Context, src media.Source, sess Pusher, sink media.Sink, logger *logrus.Logger) (Summary, error) {
	var sum Summary
	log := logger.WithField("session_id", sess.ID())
	log.Info("Receiver started")
	defer func() {
		log.WithFields(logrus.Fields{
			"blocks":         sum.Blocks,
			"dropped":        sum.Dropped,
			"frame_failures": sum.FrameFailures,
			"written":        sum.Written,
		}).Info("Receiver stopped")
	}()

	for {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		block, err := src.ReadFrame(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				log.Debug("Input ended")
				return sum, nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return sum, ctxErr
			}
			return sum, err
		}
		sum.Blocks++

		out, err := sess.PushInputFrame(block)
		switch {
		case err == nil:
		case errors.Is(err, freedv.ErrBackpressure):
			sum.Dropped++
			log.WithField("block", sum.Blocks).Warn("Dropping input block")
			continue
		case errors.Is(err, freedv.ErrDemodFailed), errors.Is(err, freedv.ErrDecodeFailed):
			sum.FrameFailures++
			log.WithError(err).Debug("Continuing after frame failure")
		default:
			return sum, fmt.Errorf("receive session failed: %w", err)
		}

		if out == nil {
			continue
		}
		if err := sink.WriteSamples(out); err != nil {
			return sum, err
		}
		sum.Written += uint64(len(out))
	}
}

// Locked serialises pushes to a session that several goroutines feed.
type Locked struct {
	mu   sync.Mutex
	sess *freedv.Session
}

// NewLocked wraps sess.
func NewLocked(sess *freedv.Session) *Locked {
	return &Locked{sess: sess}
}

func (l *Locked) ID() string { return l.sess.ID() }

// PushInputFrame calls the session under the lock.
func (l *Locked) PushInputFrame(samples []int16) ([]int16, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sess.PushInputFrame(samples)
}

// Close closes the session under the lock.
func (l *Locked) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sess.Close()
}

// Session returns the wrapped session for its concurrent-safe accessors.
func (l *Locked) Session() *freedv.Session { return l.sess }
