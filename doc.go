// Package rollsync provides a buffered log sink that writes log events to
// local files through a streaming compressor, rolls files over by size, and
// asynchronously synchronizes finished files to a remote store.
//
// The sink bounds how stale the remote copy of any event may get with a
// per-severity freshness policy made of two timeouts:
//
//   - hard timeout: the maximum delay between an event being appended and
//     its file being flushed and handed to sync.
//   - soft timeout: same, except it is pushed forward by every new event of
//     at least the urgency that set it, so it expires only after a quiet
//     period.
//
// For example, with ERROR soft/hard timeouts of 5s and 5min, an ERROR event
// at t=0s triggers a flush and sync at t=5s unless another ERROR event
// arrives first; a burst of ERROR events is flushed at the latest 5min after
// the first one. Lower severities get longer timeouts, so chatty DEBUG
// traffic is batched cheaply while errors become visible remotely within
// seconds.
//
// Sink is the orchestrator. It consumes an EventWriter (the streaming
// compressed file writer, see package irstream) and a SyncHandler (the
// remote uploader, see package s3sync) and drives them from one
// mutex-guarded append path plus two background goroutines: a periodic flush
// checker and a single worker draining an unbounded FIFO of sync requests.
// Append latency is therefore insensitive to remote-store latency.
//
// rollsync assumes a single process writes to the output files.
package rollsync
