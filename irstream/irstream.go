// Package irstream implements a streaming-compressed log file format: a
// Zstandard stream of length-prefixed log records, one per event, with the
// event timestamp and severity stored alongside the rendered message bytes.
//
// Writer satisfies rollsync.EventWriter. Because the compressor buffers
// internally, the compressed size reported for the current file only grows
// when buffered data actually reaches the file, i.e. on Flush or when the
// compressor's window fills.
package irstream

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/rollsync/rollsync"
)

// FileExtension is the conventional extension for IR stream files.
const FileExtension = ".ir.zst"

// fileMagic opens every file so readers can cheaply reject foreign data.
var fileMagic = []byte{0xfd, 'I', 'R', '1'}

// recordHeaderSize is the fixed per-record overhead: 8-byte epoch-millis
// timestamp, 1-byte severity, 4-byte message length.
const recordHeaderSize = 13

const (
	defaultCompressionLevel = 3
	minCompressionLevel     = 1
	maxCompressionLevel     = 22
)

// Options configures a Writer. The zero value selects compression level 3
// and closes the Zstandard frame on every flush.
type Options struct {
	// CompressionLevel is the Zstandard compression level, 1 to 22.
	// Defaults to 3.
	CompressionLevel int

	// KeepFrameOpenOnFlush leaves the Zstandard frame open across flushes.
	// By default Flush closes the frame, forcing every buffered event out to
	// the file; the next append starts a new frame in the same file
	// (Zstandard readers handle concatenated frames transparently). Keeping
	// the frame open compresses better but leaves recent events buffered in
	// memory after a flush.
	KeepFrameOpenOnFlush bool
}

// ensure Writer always satisfies the sink's writer contract
var _ rollsync.EventWriter = (*Writer)(nil)

// Writer writes log events into a Zstandard-compressed record stream file.
// It is not safe for concurrent use; rollsync.Sink serializes all calls.
type Writer struct {
	opts  Options
	level zstd.EncoderLevel

	file         *os.File
	counter      *countingWriter
	enc          *zstd.Encoder
	uncompressed uint64
	open         bool
	closed       bool
}

// NewWriter validates opts and returns a Writer with no open file. Call
// StartNewFile (normally via Sink.Activate) before appending.
func NewWriter(opts Options) (*Writer, error) {
	if opts.CompressionLevel == 0 {
		opts.CompressionLevel = defaultCompressionLevel
	}
	if opts.CompressionLevel < minCompressionLevel || opts.CompressionLevel > maxCompressionLevel {
		return nil, fmt.Errorf("compression level %d outside valid range [%d, %d]",
			opts.CompressionLevel, minCompressionLevel, maxCompressionLevel)
	}
	return &Writer{
		opts:  opts,
		level: zstd.EncoderLevelFromZstd(opts.CompressionLevel),
	}, nil
}

// StartNewFile closes the current file, if any, and starts a new stream at
// path, creating parent directories on demand. The per-file size counters
// reset to the new file's preamble.
func (w *Writer) StartNewFile(path string) error {
	if w.closed {
		return errors.New("irstream: writer is closed")
	}
	if w.open {
		if err := w.closeCurrent(); err != nil {
			return fmt.Errorf("close previous file: %w", err)
		}
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	counter := &countingWriter{w: f}
	enc, err := zstd.NewWriter(counter, zstd.WithEncoderLevel(w.level))
	if err != nil {
		f.Close()
		return fmt.Errorf("create zstd encoder: %w", err)
	}
	if _, err := enc.Write(fileMagic); err != nil {
		enc.Close()
		f.Close()
		return fmt.Errorf("write file preamble: %w", err)
	}

	w.file = f
	w.counter = counter
	w.enc = enc
	w.uncompressed = uint64(len(fileMagic))
	w.open = true
	return nil
}

// Append encodes one event into the stream. The bytes may stay buffered in
// the compressor until the next Flush.
func (w *Writer) Append(e rollsync.Event) error {
	if w.closed {
		return errors.New("irstream: writer is closed")
	}
	if !w.open {
		return errors.New("irstream: no open file")
	}

	var header [recordHeaderSize]byte
	binary.LittleEndian.PutUint64(header[0:8], uint64(e.Timestamp.UnixMilli()))
	header[8] = byte(e.Severity)
	binary.LittleEndian.PutUint32(header[9:13], uint32(len(e.Message)))

	if _, err := w.enc.Write(header[:]); err != nil {
		return fmt.Errorf("write record header: %w", err)
	}
	if _, err := w.enc.Write(e.Message); err != nil {
		return fmt.Errorf("write record message: %w", err)
	}
	w.uncompressed += recordHeaderSize + uint64(len(e.Message))
	return nil
}

// Flush pushes buffered events out to the file. Unless KeepFrameOpenOnFlush
// is set, the current Zstandard frame is closed and a fresh one started, so
// the file is a valid stream up to this point.
func (w *Writer) Flush() error {
	if w.closed {
		return errors.New("irstream: writer is closed")
	}
	if !w.open {
		return errors.New("irstream: no open file")
	}
	if w.opts.KeepFrameOpenOnFlush {
		if err := w.enc.Flush(); err != nil {
			return fmt.Errorf("flush zstd encoder: %w", err)
		}
		return nil
	}
	if err := w.enc.Close(); err != nil {
		return fmt.Errorf("close zstd frame: %w", err)
	}
	w.enc.Reset(w.counter)
	return nil
}

// Close closes the stream and the file. A closed writer cannot be reopened.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if !w.open {
		return nil
	}
	return w.closeCurrent()
}

// CompressedSize is the number of bytes written to the current file so far.
func (w *Writer) CompressedSize() uint64 {
	if w.counter == nil {
		return 0
	}
	return w.counter.count
}

// UncompressedSize is the number of bytes appended to the current file
// before compression, including the file preamble.
func (w *Writer) UncompressedSize() uint64 {
	return w.uncompressed
}

func (w *Writer) closeCurrent() error {
	encErr := w.enc.Close()
	fileErr := w.file.Close()
	w.open = false
	if encErr != nil {
		return fmt.Errorf("close zstd encoder: %w", encErr)
	}
	if fileErr != nil {
		return fmt.Errorf("close log file: %w", fileErr)
	}
	return nil
}

// ReadFile decodes every record from an IR stream file. Files written with
// frame-closing flushes contain several concatenated Zstandard frames; the
// decoder reads across them transparently.
func ReadFile(path string) ([]rollsync.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	defer dec.Close()

	magic := make([]byte, len(fileMagic))
	if _, err := io.ReadFull(dec, magic); err != nil {
		return nil, fmt.Errorf("read file preamble: %w", err)
	}
	if string(magic) != string(fileMagic) {
		return nil, errors.New("irstream: bad file magic")
	}

	var events []rollsync.Event
	var header [recordHeaderSize]byte
	for {
		if _, err := io.ReadFull(dec, header[:]); err != nil {
			if err == io.EOF {
				return events, nil
			}
			return nil, fmt.Errorf("read record header: %w", err)
		}
		msg := make([]byte, binary.LittleEndian.Uint32(header[9:13]))
		if _, err := io.ReadFull(dec, msg); err != nil {
			return nil, fmt.Errorf("read record message: %w", err)
		}
		events = append(events, rollsync.Event{
			Timestamp: time.UnixMilli(int64(binary.LittleEndian.Uint64(header[0:8]))).UTC(),
			Severity:  rollsync.Severity(header[8]),
			Message:   msg,
		})
	}
}

// countingWriter counts the bytes that actually reach the underlying file.
type countingWriter struct {
	w     io.Writer
	count uint64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.count += uint64(n)
	return n, err
}
