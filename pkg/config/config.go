package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Input formats accepted in FREEDV_INPUT_FORMAT.
const (
	FormatRaw     = "s16le"    // 8 kHz mono little-endian samples
	FormatCapture = "s16le48k" // 48 kHz stereo little-endian capture
	FormatRTP     = "rtp"      // RTP over UDP, PCMU/PCMA/L16 payloads
)

// Config holds the receiver settings.
type Config struct {
	LogLevel  logrus.Level
	LogFormat string

	Input       string
	InputFormat string
	RTPListen   string
	Output      string

	SNRThreshold float64
	SpectrumSize int

	MetricsEnabled bool
	MetricsListen  string
	StatsSchedule  string
}

// Load reads configuration from the environment. When envFile is set and
// exists it is loaded first; variables already in the environment win.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}
	return parse(os.LookupEnv)
}

// Reload reads envFile again with its values taking precedence over the
// process environment.
func Reload(envFile string) (*Config, error) {
	values, err := godotenv.Read(envFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", envFile, err)
	}
	return parse(func(key string) (string, bool) {
		if v, ok := values[key]; ok {
			return v, true
		}
		return os.LookupEnv(key)
	})
}

type lookupFunc func(string) (string, bool)

func parse(lookup lookupFunc) (*Config, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}

	cfg := &Config{
		LogFormat:     strings.ToLower(get("FREEDV_LOG_FORMAT", "text")),
		Input:         get("FREEDV_INPUT", "-"),
		InputFormat:   strings.ToLower(get("FREEDV_INPUT_FORMAT", FormatRaw)),
		RTPListen:     get("FREEDV_RTP_LISTEN", ":5004"),
		Output:        get("FREEDV_OUTPUT", "-"),
		MetricsListen: get("FREEDV_METRICS_LISTEN", ":9102"),
		StatsSchedule: get("FREEDV_STATS_SCHEDULE", "@every 10s"),
	}

	var err error
	if cfg.LogLevel, err = logrus.ParseLevel(get("FREEDV_LOG_LEVEL", "info")); err != nil {
		return nil, fmt.Errorf("FREEDV_LOG_LEVEL: %w", err)
	}
	if cfg.SNRThreshold, err = strconv.ParseFloat(get("FREEDV_SNR_THRESHOLD", "3.0"), 64); err != nil {
		return nil, fmt.Errorf("FREEDV_SNR_THRESHOLD: %w", err)
	}
	if cfg.SpectrumSize, err = strconv.Atoi(get("FREEDV_SPECTRUM_SIZE", "0")); err != nil {
		return nil, fmt.Errorf("FREEDV_SPECTRUM_SIZE: %w", err)
	}
	if cfg.MetricsEnabled, err = strconv.ParseBool(get("FREEDV_METRICS_ENABLED", "false")); err != nil {
		return nil, fmt.Errorf("FREEDV_METRICS_ENABLED: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that parsed but are out of range.
func (c *Config) Validate() error {
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("FREEDV_LOG_FORMAT: unsupported format %q", c.LogFormat)
	}
	switch c.InputFormat {
	case FormatRaw, FormatCapture, FormatRTP:
	default:
		return fmt.Errorf("FREEDV_INPUT_FORMAT: unsupported format %q", c.InputFormat)
	}
	if n := c.SpectrumSize; n < 0 || (n > 0 && (n < 16 || n&(n-1) != 0)) {
		return fmt.Errorf("FREEDV_SPECTRUM_SIZE: %d is not 0 or a power of two >= 16", n)
	}
	if c.StatsSchedule != "" {
		if _, err := cron.ParseStandard(c.StatsSchedule); err != nil {
			return fmt.Errorf("FREEDV_STATS_SCHEDULE: %w", err)
		}
	}
	return nil
}

// ApplyLogging sets the level and formatter of logger.
func (c *Config) ApplyLogging(logger *logrus.Logger) {
	logger.SetLevel(c.LogLevel)
	if c.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}
