package rollsync

import "sync"

// syncRequest is one unit of work for the sync worker: either a file to
// synchronize or the shutdown pill that stops the worker.
type syncRequest struct {
	path       string
	deleteFile bool
	shutdown   bool
}

// syncQueue is an unbounded FIFO of sync requests. Enqueue never blocks and
// never fails; dequeue blocks until an item is available. One producer-side
// invariant matters to the shutdown protocol: items are dequeued strictly in
// enqueue order, so a shutdown pill enqueued after a sync request is only
// seen after that request has been handed to the handler.
type syncQueue struct {
	mu    sync.Mutex
	ready *sync.Cond
	items []syncRequest
}

func newSyncQueue() *syncQueue {
	q := &syncQueue{}
	q.ready = sync.NewCond(&q.mu)
	return q
}

func (q *syncQueue) enqueue(r syncRequest) {
	q.mu.Lock()
	q.items = append(q.items, r)
	q.mu.Unlock()
	q.ready.Signal()
}

func (q *syncQueue) dequeue() syncRequest {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 {
		q.ready.Wait()
	}
	r := q.items[0]
	q.items = q.items[1:]
	return r
}

// runSyncWorker is the single consumer of the sync queue. A failed sync is
// logged and the request discarded; the worker moves on to the next item.
// The worker exits only when it dequeues a shutdown pill.
func (s *Sink) runSyncWorker() {
	defer s.workerWG.Done()
	for {
		req := s.queue.dequeue()
		if req.shutdown {
			s.logger.Debug("sync worker received shutdown request")
			return
		}
		if err := s.syncer.Sync(req.path, req.deleteFile); err != nil {
			s.logger.Error("failed to sync log file",
				"path", req.path, "delete", req.deleteFile, "error", err)
		}
	}
}
