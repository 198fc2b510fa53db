package rollsync

import (
	"math"
	"time"
)

// neverExpires is the sentinel deadline after a reset: no flush is due until
// an event tightens a deadline.
const neverExpires = math.MaxInt64

// freshness tracks when the current log file must next be flushed and handed
// to sync. It maintains two deadlines derived from the events appended since
// the last reset:
//
//   - hard deadline: event timestamp + the hard timeout of the event's
//     severity. Set by whichever event yields the earliest value; later
//     events can only tighten it.
//   - soft deadline: event timestamp + the soft-timeout cap, where the cap is
//     the smallest soft timeout of any severity seen since the last reset.
//     Every event pushes this deadline (at most) one cap's worth into the
//     future, so it expires only after a quiet period.
//
// Within one reset cycle both deadlines are monotonically non-increasing per
// update relative to the values they would otherwise have: an update takes
// the min of the stored deadline and the candidate, never the max.
//
// freshness is not safe for concurrent use; the sink guards it with its own
// mutex.
type freshness struct {
	hardTimeouts map[Severity]time.Duration
	softTimeouts map[Severity]time.Duration

	hardDeadline int64 // epoch millis
	softDeadline int64 // epoch millis
	softCap      time.Duration
}

func newFreshness(hard, soft map[Severity]time.Duration) *freshness {
	f := &freshness{
		hardTimeouts: hard,
		softTimeouts: soft,
	}
	f.reset(false)
	return f
}

// reset clears both deadlines and reseeds the soft-timeout cap. Normally the
// cap starts at the lowest severity's (longest) soft timeout; when the
// process is shutting down it starts at the highest severity's (shortest)
// soft timeout instead, to raise the odds of a final flush before exit.
func (f *freshness) reset(shuttingDown bool) {
	f.hardDeadline = neverExpires
	f.softDeadline = neverExpires
	if shuttingDown {
		f.softCap = f.softTimeouts[Fatal]
	} else {
		f.softCap = f.softTimeouts[Trace]
	}
}

// update tightens the deadlines for an event of the given severity and
// timestamp.
func (f *freshness) update(severity Severity, timestamp time.Time) {
	ts := timestamp.UnixMilli()

	f.hardDeadline = min(f.hardDeadline, ts+f.hardTimeouts[severity].Milliseconds())

	f.softCap = min(f.softCap, f.softTimeouts[severity])
	f.softDeadline = min(f.softDeadline, ts+f.softCap.Milliseconds())
}

// due reports whether a flush-and-sync is due at the given time.
func (f *freshness) due(now time.Time) bool {
	ts := now.UnixMilli()
	return ts >= f.softDeadline || ts >= f.hardDeadline
}
