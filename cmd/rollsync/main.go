// Command rollsync is a demo load generator for the rollsync sink: it
// appends synthetic log events at a fixed rate through the irstream writer
// and syncs rolled files to an S3 bucket (or just logs sync requests when no
// bucket is configured).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/rollsync/rollsync"
	"github.com/rollsync/rollsync/irstream"
	"github.com/rollsync/rollsync/s3sync"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type flags struct {
	outputDir             string
	baseName              string
	compressedThreshold   uint64
	uncompressedThreshold uint64
	softTimeouts          string
	hardTimeouts          string
	pollPeriod            time.Duration
	keepLoggingOnShutdown bool
	compressionLevel      int

	bucket       string
	region       string
	endpoint     string
	keyPrefix    string
	usePathStyle bool

	rate  int
	count int
}

func newRootCmd() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:   "rollsync",
		Short: "Generate synthetic log events through a freshness-bounded rolling sink",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), f)
		},
		SilenceUsage: true,
	}

	cmd.Flags().StringVar(&f.outputDir, "output-dir", "logs", "directory for local log files")
	cmd.Flags().StringVar(&f.baseName, "base-name", "rollsync-demo", "base name for log files")
	cmd.Flags().Uint64Var(&f.compressedThreshold, "compressed-threshold", 0, "compressed rollover threshold in bytes (0 = default 16 MiB)")
	cmd.Flags().Uint64Var(&f.uncompressedThreshold, "uncompressed-threshold", 0, "uncompressed rollover threshold in bytes (0 = default 2 GiB)")
	cmd.Flags().StringVar(&f.softTimeouts, "soft-timeouts", "", "per-severity soft timeouts, e.g. ERROR=10s,INFO=3m")
	cmd.Flags().StringVar(&f.hardTimeouts, "hard-timeouts", "", "per-severity hard timeouts, e.g. ERROR=5m,INFO=30m")
	cmd.Flags().DurationVar(&f.pollPeriod, "poll-period", 0, "background flush check period (0 = default 1s)")
	cmd.Flags().BoolVar(&f.keepLoggingOnShutdown, "keep-logging-on-shutdown", false, "keep appending through shutdown instead of closing the file")
	cmd.Flags().IntVar(&f.compressionLevel, "compression-level", 0, "zstd compression level (0 = default 3)")

	cmd.Flags().StringVar(&f.bucket, "bucket", "", "S3 bucket to sync to (empty = log sync requests only)")
	cmd.Flags().StringVar(&f.region, "region", "", "S3 region")
	cmd.Flags().StringVar(&f.endpoint, "endpoint", "", "S3 endpoint override")
	cmd.Flags().StringVar(&f.keyPrefix, "key-prefix", "", "object key prefix")
	cmd.Flags().BoolVar(&f.usePathStyle, "path-style", false, "use path-style S3 addressing")

	cmd.Flags().IntVar(&f.rate, "rate", 100, "events per second")
	cmd.Flags().IntVar(&f.count, "count", 0, "stop after this many events (0 = run until interrupted)")

	return cmd
}

func run(parent context.Context, f flags) error {
	// Credentials and endpoint overrides may live in a .env file.
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	writer, err := irstream.NewWriter(irstream.Options{CompressionLevel: f.compressionLevel})
	if err != nil {
		return err
	}

	var syncer rollsync.SyncHandler
	if f.bucket != "" {
		uploader, err := s3sync.NewUploader(ctx, s3sync.Config{
			Bucket:       f.bucket,
			Region:       f.region,
			Endpoint:     f.endpoint,
			KeyPrefix:    f.keyPrefix,
			UsePathStyle: f.usePathStyle,
		})
		if err != nil {
			return err
		}
		syncer = uploader
	} else {
		syncer = rollsync.SyncHandlerFunc(func(path string, deleteFile bool) error {
			logger.Info("sync requested", "path", path, "delete", deleteFile)
			return nil
		})
	}

	soft, err := rollsync.ParseTimeouts(f.softTimeouts)
	if err != nil {
		logger.Warn("ignoring invalid soft timeout entries", "error", err)
	}
	hard, err := rollsync.ParseTimeouts(f.hardTimeouts)
	if err != nil {
		logger.Warn("ignoring invalid hard timeout entries", "error", err)
	}

	sink := rollsync.New(writer, syncer, rollsync.Config{
		OutputDir:                f.outputDir,
		BaseName:                 f.baseName,
		FileExtension:            irstream.FileExtension,
		RolloverCompressedSize:   f.compressedThreshold,
		RolloverUncompressedSize: f.uncompressedThreshold,
		SoftTimeouts:             soft,
		HardTimeouts:             hard,
		PollPeriod:               f.pollPeriod,
		KeepLoggingOnShutdown:    f.keepLoggingOnShutdown,
		Logger:                   logger,
	})
	if err := sink.Activate(ctx); err != nil {
		return err
	}
	defer sink.Close()

	interval := time.Second / time.Duration(max(f.rate, 1))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	severities := []rollsync.Severity{
		rollsync.Trace, rollsync.Debug, rollsync.Info, rollsync.Info,
		rollsync.Info, rollsync.Warn, rollsync.Error,
	}
	for i := 0; f.count == 0 || i < f.count; i++ {
		select {
		case <-ctx.Done():
			logger.Info("interrupted, closing sink",
				"events", i,
				"compressed_bytes", sink.CompressedSize(),
				"uncompressed_bytes", sink.UncompressedSize())
			return nil
		case <-ticker.C:
		}
		sev := severities[i%len(severities)]
		sink.Append(rollsync.Event{
			Timestamp: time.Now(),
			Severity:  sev,
			Message:   fmt.Appendf(nil, "%s synthetic event %d from the rollsync demo generator", sev, i),
		})
	}

	logger.Info("done",
		"events", f.count,
		"compressed_bytes", sink.CompressedSize(),
		"uncompressed_bytes", sink.UncompressedSize())
	return nil
}
