package rollsync

import "time"

// runFlushLoop periodically checks the freshness deadlines and, when one has
// passed, flushes the writer and queues a non-deleting sync of the current
// file. A failed flush is logged and retried on the next tick with the
// deadlines untouched.
//
// Cancellation of the activation context stops the loop only in the default
// close-file-on-shutdown mode. With KeepLoggingOnShutdown the loop keeps
// running through shutdown so late events still get flushed; it then exits
// with the process.
func (s *Sink) runFlushLoop() {
	defer s.flushWG.Done()

	ticker := time.NewTicker(s.cfg.PollPeriod)
	defer ticker.Stop()

	done := s.ctx.Done()
	for {
		select {
		case <-ticker.C:
			if err := s.flushAndSyncIfDue(); err != nil {
				s.logger.Error("background flush failed", "error", err)
			}
		case <-done:
			if !s.cfg.KeepLoggingOnShutdown {
				return
			}
			done = nil
		case <-s.stopFlush:
			return
		}
	}
}

// flushAndSyncIfDue flushes and queues a sync if a freshness deadline has
// passed. It shares the sink's mutex with Append, so a due-check can never
// interleave with a rollover.
func (s *Sink) flushAndSyncIfDue() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.fresh.due(s.clock.Now()) {
		return nil
	}
	if err := s.writer.Flush(); err != nil {
		// Deadlines stay as they are; the next tick retries.
		return err
	}
	s.queue.enqueue(syncRequest{path: s.currentPath, deleteFile: false})
	s.fresh.reset(s.shuttingDown())
	return nil
}
