package rollsync

import "time"

// Event is a single log event handed to the sink. The message is the
// already-rendered bytes of the event, including any rendered error trace;
// the sink never re-formats it. Events are immutable once appended.
type Event struct {
	Timestamp time.Time
	Severity  Severity
	Message   []byte
}
