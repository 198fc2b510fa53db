package rollsync

import (
	"fmt"
	"strings"
	"time"
)

// Severity is the urgency of a log event. Severities are totally ordered:
// Trace < Debug < Info < Warn < Error < Fatal. The sink uses the severity to
// index its per-severity flush timeout policy.
type Severity int

const (
	Trace Severity = iota
	Debug
	Info
	Warn
	Error
	Fatal
)

// String returns the all-caps name of the severity.
func (s Severity) String() string {
	switch s {
	case Trace:
		return "TRACE"
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warn:
		return "WARN"
	case Error:
		return "ERROR"
	case Fatal:
		return "FATAL"
	default:
		return fmt.Sprintf("SEVERITY(%d)", int(s))
	}
}

// ParseSeverity parses an all-caps (or mixed-case) severity name.
func ParseSeverity(name string) (Severity, bool) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "TRACE":
		return Trace, true
	case "DEBUG":
		return Debug, true
	case "INFO":
		return Info, true
	case "WARN", "WARNING":
		return Warn, true
	case "ERROR":
		return Error, true
	case "FATAL":
		return Fatal, true
	default:
		return 0, false
	}
}

// ParseTimeouts parses a CSV of severity=duration pairs, e.g.
// "ERROR=10s,WARN=15s,INFO=3m". Pairs with an unknown severity name or an
// unparsable duration are skipped and reported in the returned error; the
// map of the pairs that did parse is always returned, so callers can log the
// error and keep the valid entries.
func ParseTimeouts(csv string) (map[Severity]time.Duration, error) {
	timeouts := make(map[Severity]time.Duration)
	var errs []string
	for _, pair := range strings.Split(csv, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, found := strings.Cut(pair, "=")
		if !found {
			errs = append(errs, fmt.Sprintf("%q is not a severity=duration pair", pair))
			continue
		}
		severity, ok := ParseSeverity(key)
		if !ok {
			errs = append(errs, fmt.Sprintf("unknown severity %q", key))
			continue
		}
		d, err := time.ParseDuration(strings.TrimSpace(value))
		if err != nil {
			errs = append(errs, fmt.Sprintf("bad duration for %s: %v", severity, err))
			continue
		}
		timeouts[severity] = d
	}
	if len(errs) > 0 {
		return timeouts, fmt.Errorf("invalid timeout entries: %s", strings.Join(errs, "; "))
	}
	return timeouts, nil
}
