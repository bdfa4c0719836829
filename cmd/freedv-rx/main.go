package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"freedv-rx/pkg/codec2"
	"freedv-rx/pkg/config"
	"freedv-rx/pkg/freedv"
	"freedv-rx/pkg/media"
	"freedv-rx/pkg/metrics"
	"freedv-rx/pkg/receiver"
)

func main() {
	envFile := flag.String("env", ".env", "environment file to load and watch")
	flag.Parse()

	logger := logrus.New()
	cfg, err := config.Load(*envFile)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	cfg.ApplyLogging(logger)

	if err := run(cfg, *envFile, logger); err != nil {
		logger.WithError(err).Fatal("Receiver failed")
	}
}

func run(cfg *config.Config, envFile string, logger *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsEnabled {
		shutdown, err := startMetricsServer(cfg.MetricsListen, logger)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	demod, err := codec2.NewFDMDV()
	if err != nil {
		return err
	}
	dec, err := codec2.NewDecoder()
	if err != nil {
		demod.Close()
		return err
	}
	sess, err := freedv.NewSession(demod, dec,
		freedv.WithLogger(logger),
		freedv.WithSNRThreshold(cfg.SNRThreshold),
		freedv.WithSpectrum(cfg.SpectrumSize),
	)
	if err != nil {
		demod.Close()
		dec.Close()
		return err
	}
	defer sess.Close()

	src, closeSrc, err := openSource(cfg, sess.NominalSamples(), logger)
	if err != nil {
		return err
	}
	defer closeSrc()
	// Unblock a pending read on shutdown.
	go func() {
		<-ctx.Done()
		closeSrc()
	}()

	sink, closeSink, err := openSink(cfg.Output)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeSink(); err != nil {
			logger.WithError(err).Warn("Failed to flush speech output")
		}
	}()

	if cfg.StatsSchedule != "" {
		reporter, err := receiver.NewStatsReporter(cfg.StatsSchedule, sess, logger)
		if err != nil {
			return err
		}
		reporter.Start()
		defer reporter.Stop()
	}

	if _, err := os.Stat(envFile); err == nil {
		go func() {
			if err := config.Watch(ctx, envFile, logger, nil); err != nil && !errors.Is(err, context.Canceled) {
				logger.WithError(err).Warn("Configuration watcher stopped")
			}
		}()
	}

	logger.WithFields(logrus.Fields{
		"input":        cfg.Input,
		"input_format": cfg.InputFormat,
		"output":       cfg.Output,
		"session_id":   sess.ID(),
	}).Info("Starting FreeDV receiver")

	_, err = receiver.Run(ctx, src, sess, sink, logger)
	if errors.Is(err, context.Canceled) {
		logger.Info("Shutting down")
		return nil
	}
	return err
}

func startMetricsServer(addr string, logger *logrus.Logger) (func(), error) {
	if err := metrics.Init(nil); err != nil {
		return nil, fmt.Errorf("failed to initialise metrics: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.WithField("address", addr).Info("Serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("Metrics server failed")
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

func openSource(cfg *config.Config, nominal int, logger *logrus.Logger) (media.Source, func(), error) {
	if cfg.InputFormat == config.FormatRTP {
		src, err := media.ListenRTP(cfg.RTPListen, nominal, logger, media.WithPayloadType(96, "L16"))
		if err != nil {
			return nil, nil, err
		}
		return src, func() {
			packets, lost, discarded := src.Stats()
			if err := src.Close(); err == nil {
				logger.WithFields(logrus.Fields{
					"packets":   packets,
					"lost":      lost,
					"discarded": discarded,
				}).Info("RTP listener closed")
			}
		}, nil
	}

	var r io.ReadCloser = os.Stdin
	if cfg.Input != "-" {
		f, err := os.Open(cfg.Input)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open input: %w", err)
		}
		r = f
	}
	closeFn := func() { r.Close() }
	if cfg.InputFormat == config.FormatCapture {
		return media.NewCaptureSource(r, nominal), closeFn, nil
	}
	return media.NewRawSource(r, nominal), closeFn, nil
}

func openSink(path string) (media.Sink, func() error, error) {
	var w io.WriteCloser = os.Stdout
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create output: %w", err)
		}
		w = f
	}
	bw := bufio.NewWriter(w)
	return media.NewPCMWriter(bw), func() error {
		if err := bw.Flush(); err != nil {
			return err
		}
		if w == os.Stdout {
			return nil
		}
		return w.Close()
	}, nil
}
