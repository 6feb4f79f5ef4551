package types

import (
	"encoding/json"
	"net/netip"
	"strconv"
	"time"
)

// Response is the outcome of one ping: either a round-trip time in
// milliseconds or a timeout.
type Response struct {
	ms      int64
	timeout bool
}

// Timeout is the "no response" outcome.
var Timeout = Response{timeout: true}

// OK returns a response with the given round-trip time. Negative values are
// clamped to zero; log input never gets here with one, since the parser
// treats a signed field as a timeout.
func OK(ms int64) Response {
	if ms < 0 {
		ms = 0
	}
	return Response{ms: ms}
}

func (r Response) IsTimeout() bool { return r.timeout }

// Millis returns the round-trip time and false for a timeout.
func (r Response) Millis() (int64, bool) {
	if r.timeout {
		return 0, false
	}
	return r.ms, true
}

func (r Response) String() string {
	if r.timeout {
		return "-"
	}
	return strconv.FormatInt(r.ms, 10)
}

// Sample is one observation for a host.
type Sample struct {
	At       time.Time
	Response Response
}

// End is the end of an interval: a timestamp, or open when the condition
// persisted through the last observed sample.
type End struct {
	at      time.Time
	bounded bool
}

// Open returns the open end.
func Open() End { return End{} }

// At returns a bounded end at t.
func At(t time.Time) End { return End{at: t, bounded: true} }

func (e End) IsOpen() bool { return !e.bounded }

// Time returns the end timestamp and false for an open end.
func (e End) Time() (time.Time, bool) { return e.at, e.bounded }

// Compare orders ends; an open end sorts after every bounded end.
func (e End) Compare(o End) int {
	switch {
	case !e.bounded && !o.bounded:
		return 0
	case !e.bounded:
		return 1
	case !o.bounded:
		return -1
	}
	return e.at.Compare(o.at)
}

func (e End) MarshalJSON() ([]byte, error) {
	if !e.bounded {
		return []byte("null"), nil
	}
	return json.Marshal(e.at)
}

func (e *End) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*e = Open()
		return nil
	}
	var t time.Time
	if err := json.Unmarshal(b, &t); err != nil {
		return err
	}
	*e = At(t)
	return nil
}

// Interval is a [Start, End] window of a condition.
type Interval struct {
	Start time.Time `json:"start"`
	End   End       `json:"end"`
}

// Compare orders intervals by start, then end.
func (iv Interval) Compare(o Interval) int {
	if c := iv.Start.Compare(o.Start); c != 0 {
		return c
	}
	return iv.End.Compare(o.End)
}

// Equal reports whether both intervals describe the same window.
func (iv Interval) Equal(o Interval) bool { return iv.Compare(o) == 0 }

func (iv Interval) String() string {
	end := ""
	if t, ok := iv.End.Time(); ok {
		end = t.Format(time.DateTime)
	}
	return iv.Start.Format(time.DateTime) + " ~ " + end
}

// Record is one parsed log line: a ping result for a host address with its
// prefix length.
type Record struct {
	At       time.Time
	Addr     netip.Prefix
	Response Response
}
