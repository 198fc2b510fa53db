package rollsync

// EventWriter appends log events into the currently open output file,
// typically through a streaming compressor. Implementations report the
// current file's byte counts only; the sink carries cumulative totals across
// rollovers itself.
//
// The sink serializes all calls, so implementations do not need their own
// locking when used through a Sink.
type EventWriter interface {
	// Append writes one event into the current file. Compressors may buffer
	// the bytes, in which case CompressedSize does not change until Flush.
	Append(e Event) error

	// Flush flushes buffered data to the file. Whether the compression frame
	// is closed is up to the implementation's configuration.
	Flush() error

	// StartNewFile closes the current file, if any, and starts a new file at
	// the given path, resetting the per-file size counters. Parent
	// directories are created on demand.
	StartNewFile(path string) error

	// Close closes the current file. A closed writer cannot be reopened.
	Close() error

	// CompressedSize is the number of bytes written to the current file.
	CompressedSize() uint64

	// UncompressedSize is the number of bytes appended to the current file
	// before compression.
	UncompressedSize() uint64
}

// SyncHandler synchronizes a finished or in-progress log file with a remote
// store. The sink invokes it exactly once per enqueued request, in enqueue
// order, from a single goroutine. deleteFile reports whether the file is
// finished and may be deleted after a successful upload.
//
// There is no per-call timeout in the sink: a slow Sync delays every
// subsequently queued request, so implementations should bound their own
// I/O.
type SyncHandler interface {
	Sync(path string, deleteFile bool) error
}

// SyncHandlerFunc adapts a function to the SyncHandler interface.
type SyncHandlerFunc func(path string, deleteFile bool) error

func (f SyncHandlerFunc) Sync(path string, deleteFile bool) error { return f(path, deleteFile) }

// RolloverPolicy decides, after each append, whether the current file should
// be closed and a new one started. It is given the writer's current-file
// compressed and uncompressed sizes.
type RolloverPolicy interface {
	RolloverRequired(compressedSize, uncompressedSize uint64) bool
}

// SizeThresholdPolicy rolls over when either the compressed or the
// uncompressed size of the current file meets or exceeds its threshold. A
// zero threshold disables that dimension.
type SizeThresholdPolicy struct {
	CompressedThreshold   uint64
	UncompressedThreshold uint64
}

func (p SizeThresholdPolicy) RolloverRequired(compressedSize, uncompressedSize uint64) bool {
	if p.CompressedThreshold > 0 && compressedSize >= p.CompressedThreshold {
		return true
	}
	if p.UncompressedThreshold > 0 && uncompressedSize >= p.UncompressedThreshold {
		return true
	}
	return false
}
