package rollsync

import (
	"sync"
	"testing"
	"time"
)

// fakeWriter stands in for the compressed stream writer. It models the
// compressor's internal buffering: appended bytes show up in the
// uncompressed count immediately but only reach the compressed count on
// flush, matching how rollover driven by compressed size needs an
// append-flush-append sequence to fire.
type fakeWriter struct {
	mu sync.Mutex

	pendingCompressed uint64
	compressed        uint64
	uncompressed      uint64

	startedFiles []string
	appends      int
	flushes      int
	closed       bool

	appendErr error
	startErr  error
	flushErr  error
}

func (w *fakeWriter) Append(e Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.appendErr != nil {
		return w.appendErr
	}
	w.appends++
	w.uncompressed += uint64(len(e.Message))
	w.pendingCompressed += uint64(len(e.Message)) / 2
	return nil
}

func (w *fakeWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.flushErr != nil {
		return w.flushErr
	}
	w.flushes++
	w.compressed += w.pendingCompressed
	w.pendingCompressed = 0
	return nil
}

func (w *fakeWriter) StartNewFile(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.startErr != nil {
		return w.startErr
	}
	w.startedFiles = append(w.startedFiles, path)
	w.compressed = 0
	w.uncompressed = 0
	w.pendingCompressed = 0
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *fakeWriter) CompressedSize() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.compressed
}

func (w *fakeWriter) UncompressedSize() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.uncompressed
}

func (w *fakeWriter) numStartedFiles() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.startedFiles)
}

func (w *fakeWriter) numAppends() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.appends
}

func (w *fakeWriter) setAppendErr(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.appendErr = err
}

func (w *fakeWriter) setFlushErr(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.flushErr = err
}

func (w *fakeWriter) isClosed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

type syncCall struct {
	path       string
	deleteFile bool
}

// countingSyncHandler records every sync request, distinguishing deleting
// syncs (rollovers and final closes) from plain flush-driven syncs.
type countingSyncHandler struct {
	mu    sync.Mutex
	calls []syncCall
	err   error
}

func (h *countingSyncHandler) Sync(path string, deleteFile bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, syncCall{path: path, deleteFile: deleteFile})
	return h.err
}

// counts returns (number of non-deleting syncs, number of deleting syncs).
func (h *countingSyncHandler) counts() (syncs, rollovers int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.calls {
		if c.deleteFile {
			rollovers++
		} else {
			syncs++
		}
	}
	return syncs, rollovers
}

func (h *countingSyncHandler) allCalls() []syncCall {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]syncCall(nil), h.calls...)
}

// waitForCounts polls until the handler has seen the expected numbers of
// syncs and rollovers, failing the test if they haven't appeared within the
// deadline. The background tasks run on real time even when the sink's
// clock is manual, so tests observe their effects by polling.
func waitForCounts(h *countingSyncHandler, wantSyncs, wantRollovers int, t testing.TB) {
	deadline := time.Now().Add(2 * time.Second)
	for {
		syncs, rollovers := h.counts()
		if syncs == wantSyncs && rollovers == wantRollovers {
			return
		}
		if time.Now().After(deadline) {
			equalsUp(wantSyncs, syncs, t, 1)
			equalsUp(wantRollovers, rollovers, t, 1)
			return
		}
		time.Sleep(time.Millisecond)
	}
}

// settle gives the background tasks a few poll periods to act, for tests
// asserting that something does NOT happen.
func settle() {
	time.Sleep(50 * time.Millisecond)
}

// newTestSink builds a sink on a manual clock with a fast poll period.
func newTestSink(w *fakeWriter, h *countingSyncHandler, clock *ManualTimeSource, cfg Config) *Sink {
	cfg.BaseName = "test-file"
	cfg.OutputDir = "testdir"
	cfg.PollPeriod = 5 * time.Millisecond
	cfg.TimeSource = clock
	return New(w, h, cfg)
}

func eventAt(millis int64, severity Severity) Event {
	return Event{
		Timestamp: time.UnixMilli(millis),
		Severity:  severity,
		Message:   []byte("Static text, dictVar1, 123, 456.7, dictVar2, 987, 654.3"),
	}
}
