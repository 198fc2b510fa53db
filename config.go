package rollsync

import (
	"log/slog"
	"time"
)

const (
	// defaultCompressedThreshold keeps individual synced files a reasonable
	// size for object-store round trips and later search.
	defaultCompressedThreshold = 16 * 1024 * 1024
	// defaultUncompressedThreshold bounds the decompressed size so rolled
	// files stay openable by ordinary tooling.
	defaultUncompressedThreshold = 2 * 1024 * 1024 * 1024

	defaultPollPeriod    = time.Second
	defaultFileExtension = ".ir.zst"
)

// defaultHardTimeouts and defaultSoftTimeouts are tuned for high-latency
// remote persistent storage such as object stores: important events are
// flushed and synced within seconds, chatty low-severity events are batched
// for minutes.
func defaultHardTimeouts() map[Severity]time.Duration {
	return map[Severity]time.Duration{
		Fatal: 5 * time.Minute,
		Error: 5 * time.Minute,
		Warn:  10 * time.Minute,
		Info:  30 * time.Minute,
		Debug: 30 * time.Minute,
		Trace: 30 * time.Minute,
	}
}

func defaultSoftTimeouts() map[Severity]time.Duration {
	return map[Severity]time.Duration{
		Fatal: 5 * time.Second,
		Error: 10 * time.Second,
		Warn:  15 * time.Second,
		Info:  3 * time.Minute,
		Debug: 3 * time.Minute,
		Trace: 3 * time.Minute,
	}
}

// Config holds the sink's settings. The zero value of every field selects
// the documented default, so callers only set what they need.
type Config struct {
	// OutputDir is the directory log files are written under. Directories
	// are created on demand.
	OutputDir string

	// BaseName is the base file name for log files. Each file is named
	// BaseName + "." + <rollover epoch millis> + FileExtension.
	BaseName string

	// FileExtension is appended to generated file names. Defaults to
	// ".ir.zst".
	FileExtension string

	// RolloverCompressedSize is the current file's on-disk (compressed) size
	// at which a rollover is triggered. Defaults to 16 MiB. Note that
	// compressors buffer internally, so bytes appended but not yet flushed
	// do not count toward this threshold.
	RolloverCompressedSize uint64

	// RolloverUncompressedSize is the current file's uncompressed size at
	// which a rollover is triggered. Defaults to 2 GiB.
	RolloverUncompressedSize uint64

	// HardTimeouts is the per-severity hard flush timeout: the maximum delay
	// between an event being appended and its file being flushed and handed
	// to sync. Missing severities keep their defaults.
	HardTimeouts map[Severity]time.Duration

	// SoftTimeouts is the per-severity soft flush timeout: like the hard
	// timeout, but pushed forward by further events of at least the urgency
	// that set it. Missing severities keep their defaults.
	SoftTimeouts map[Severity]time.Duration

	// PollPeriod is how often the background task checks the flush
	// deadlines. It should not significantly exceed the smallest configured
	// timeout. Defaults to 1s.
	PollPeriod time.Duration

	// KeepLoggingOnShutdown, when true, makes Close leave the writer and the
	// background tasks running so events arriving during process shutdown
	// are still captured and a final best-effort sync is attempted. The
	// default (false) closes the file on shutdown: Close closes the writer,
	// syncs the final file, and stops the background tasks.
	KeepLoggingOnShutdown bool

	// TimeSource supplies the current time. Defaults to the system clock.
	TimeSource TimeSource

	// Logger receives the sink's own diagnostics. Defaults to slog.Default.
	Logger *slog.Logger

	// OnError, if set, receives append-time failures instead of the Logger.
	// Append never returns an error to the caller; a failed event is dropped
	// and the sink keeps operating.
	OnError func(error)
}

// withDefaults returns a copy of c with every unset field filled in.
// Timeout maps are merged entry-wise over the defaults, so a partial map
// overrides only the severities it names.
func (c Config) withDefaults() Config {
	if c.FileExtension == "" {
		c.FileExtension = defaultFileExtension
	}
	if c.RolloverCompressedSize == 0 {
		c.RolloverCompressedSize = defaultCompressedThreshold
	}
	if c.RolloverUncompressedSize == 0 {
		c.RolloverUncompressedSize = defaultUncompressedThreshold
	}
	c.HardTimeouts = mergeTimeouts(defaultHardTimeouts(), c.HardTimeouts)
	c.SoftTimeouts = mergeTimeouts(defaultSoftTimeouts(), c.SoftTimeouts)
	if c.PollPeriod <= 0 {
		c.PollPeriod = defaultPollPeriod
	}
	if c.TimeSource == nil {
		c.TimeSource = SystemTimeSource{}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

func mergeTimeouts(defaults, overrides map[Severity]time.Duration) map[Severity]time.Duration {
	for severity, timeout := range overrides {
		if severity < Trace || severity > Fatal {
			continue
		}
		defaults[severity] = timeout
	}
	return defaults
}
