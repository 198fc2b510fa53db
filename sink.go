package rollsync

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"sync"
)

// Sink is a buffered log sink that writes events to local files through an
// EventWriter, rolls files over by size, and asynchronously hands finished
// and in-progress files to a SyncHandler, bounding how long any event stays
// un-synchronized by a per-severity freshness policy.
//
// A Sink is constructed inactive. Activate opens the first file and starts
// the background tasks; Append, Flush, and the read-only size accessors are
// then safe to call from any goroutine. Close is terminal.
type Sink struct {
	cfg    Config
	writer EventWriter
	syncer SyncHandler
	policy RolloverPolicy
	clock  TimeSource
	logger *slog.Logger

	// mu serializes Append, Flush, Close, and the background flush check, so
	// a background flush can never race a rollover.
	mu        sync.Mutex
	activated bool
	closed    bool
	ctx       context.Context
	fresh     *freshness

	currentPath         string
	carriedCompressed   uint64
	carriedUncompressed uint64

	queue     *syncQueue
	stopFlush chan struct{}
	workerWG  sync.WaitGroup
	flushWG   sync.WaitGroup
}

// New constructs an inactive Sink around the given writer and sync handler.
// Unset Config fields take their documented defaults.
func New(writer EventWriter, syncer SyncHandler, cfg Config) *Sink {
	cfg = cfg.withDefaults()
	return &Sink{
		cfg:    cfg,
		writer: writer,
		syncer: syncer,
		policy: SizeThresholdPolicy{
			CompressedThreshold:   cfg.RolloverCompressedSize,
			UncompressedThreshold: cfg.RolloverUncompressedSize,
		},
		clock:  cfg.TimeSource,
		logger: cfg.Logger,
		queue:  newSyncQueue(),
	}
}

// Activate opens the first log file and starts the background flush task and
// sync worker. The context is observed cooperatively by the background
// tasks; callers that want the sink to react to process shutdown should pass
// a context cancelled on their termination signal. Activating an already
// activated or closed sink logs a warning and does nothing.
//
// If the first file cannot be opened the sink transitions to closed and
// rejects all further operations.
func (s *Sink) Activate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		s.logger.Warn("sink already closed, cannot activate")
		return nil
	}
	if s.activated {
		s.logger.Warn("sink already activated")
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	s.ctx = ctx
	s.fresh = newFreshness(s.cfg.HardTimeouts, s.cfg.SoftTimeouts)

	path := s.logFilePath(s.clock.Now().UnixMilli())
	if err := s.writer.StartNewFile(path); err != nil {
		s.closed = true
		return fmt.Errorf("open first log file %s: %w", path, err)
	}
	s.currentPath = path

	s.stopFlush = make(chan struct{})
	s.workerWG.Add(1)
	go s.runSyncWorker()
	s.flushWG.Add(1)
	go s.runFlushLoop()

	s.activated = true
	return nil
}

// Append writes one event to the sink. It never returns an error: a failed
// write is reported through Config.OnError (or logged) and the event is
// dropped, leaving the sink usable. Append may trigger a rollover, in which
// case the finished file is queued for a deleting sync before Append
// returns.
func (s *Sink) Append(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.activated {
		s.reportError(fmt.Errorf("append to inactive sink, event dropped"))
		return
	}
	// With KeepLoggingOnShutdown the writer outlives Close, so appends keep
	// flowing until the process actually exits.
	if s.closed && !s.cfg.KeepLoggingOnShutdown {
		s.reportError(fmt.Errorf("append to closed sink, event dropped"))
		return
	}

	if err := s.writer.Append(e); err != nil {
		s.reportError(fmt.Errorf("write log event: %w", err))
		return
	}

	if s.policy.RolloverRequired(s.writer.CompressedSize(), s.writer.UncompressedSize()) {
		s.rolloverLocked(e.Timestamp.UnixMilli())
	} else {
		s.fresh.update(e.Severity, e.Timestamp)
	}
}

// rolloverLocked closes out the current file: it queues a deleting sync for
// it, resets the freshness deadlines, rolls the cumulative counters forward,
// and starts a new file named from the given rollover timestamp. Callers
// must hold s.mu.
//
// If the new file cannot be started the error is reported as an append-time
// failure and the current file state is left unchanged, so a later append
// retries the rollover implicitly.
func (s *Sink) rolloverLocked(rolloverMillis int64) {
	s.queue.enqueue(syncRequest{path: s.currentPath, deleteFile: true})
	s.fresh.reset(s.shuttingDown())

	compressed := s.writer.CompressedSize()
	uncompressed := s.writer.UncompressedSize()

	path := s.logFilePath(rolloverMillis)
	if err := s.writer.StartNewFile(path); err != nil {
		s.reportError(fmt.Errorf("start new log file %s: %w", path, err))
		return
	}
	s.carriedCompressed += compressed
	s.carriedUncompressed += uncompressed
	s.currentPath = path
}

// Flush flushes the writer. Depending on the writer's configuration this may
// or may not close the underlying compression frame.
func (s *Sink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writer.Flush()
}

// Close closes the sink. It is idempotent and blocks only for the
// synchronous portion; it does not wait for the sync queue to drain.
//
// In the default mode (close file on shutdown) Close closes the writer,
// queues a final deleting sync followed by the worker's shutdown request,
// and stops the background flush task. With KeepLoggingOnShutdown set, Close
// instead flushes best-effort, queues a non-deleting sync of the current
// file, and leaves the writer and both background tasks running so events
// arriving during shutdown are still captured.
func (s *Sink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	if !s.activated {
		return
	}

	if !s.cfg.KeepLoggingOnShutdown {
		if err := s.writer.Close(); err != nil {
			s.logger.Error("failed to close writer", "error", err)
		}
		s.queue.enqueue(syncRequest{path: s.currentPath, deleteFile: true})
		s.queue.enqueue(syncRequest{shutdown: true})
		close(s.stopFlush)
	} else {
		// Flush now in case the process exits before a timeout expires and
		// triggers one.
		if err := s.writer.Flush(); err != nil {
			s.logger.Error("failed to flush on close", "error", err)
		}
		s.queue.enqueue(syncRequest{path: s.currentPath, deleteFile: false})
	}
}

// CompressedSize is the compressed size, in bytes, of all events ever
// written through this sink: finished files plus the current one.
func (s *Sink) CompressedSize() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.carriedCompressed + s.writer.CompressedSize()
}

// UncompressedSize is the uncompressed size, in bytes, of all events ever
// written through this sink: finished files plus the current one.
func (s *Sink) UncompressedSize() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.carriedUncompressed + s.writer.UncompressedSize()
}

// CurrentLogPath is the path of the file currently being written.
func (s *Sink) CurrentLogPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentPath
}

func (s *Sink) logFilePath(rolloverMillis int64) string {
	name := s.cfg.BaseName + "." + strconv.FormatInt(rolloverMillis, 10) + s.cfg.FileExtension
	return filepath.Join(s.cfg.OutputDir, name)
}

func (s *Sink) shuttingDown() bool {
	return s.ctx != nil && s.ctx.Err() != nil
}

func (s *Sink) reportError(err error) {
	if s.cfg.OnError != nil {
		s.cfg.OnError(err)
		return
	}
	s.logger.Error("log sink error", "error", err)
}
