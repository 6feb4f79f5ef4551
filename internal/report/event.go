// Package report turns analysis results into labelled events and renders
// them as text, JSON, JSON lines or CSV.
package report

import (
	"slices"
	"strings"
	"time"

	"github.com/gustycube/pingscope/internal/types"
)

type Label string

const (
	LabelDowntime   Label = "downtime"
	LabelOverload   Label = "overload"
	LabelSwitchDown Label = "switch down"
)

// Event is one labelled window for a host or a network.
type Event struct {
	Start   time.Time `json:"start"`
	End     types.End `json:"end"`
	Subject string    `json:"subject"`
	Label   Label     `json:"label"`
}

func newEvents(ivs []types.Interval, subject string, label Label) []Event {
	out := make([]Event, len(ivs))
	for i, iv := range ivs {
		out[i] = Event{Start: iv.Start, End: iv.End, Subject: subject, Label: label}
	}
	return out
}

func (e Event) Interval() types.Interval { return types.Interval{Start: e.Start, End: e.End} }

// Key identifies an event across runs. An open window gets a new key once it
// closes so the closed form is published again.
func (e Event) Key() string {
	end := "open"
	if t, ok := e.End.Time(); ok {
		end = t.UTC().Format(time.RFC3339)
	}
	return e.Subject + "|" + string(e.Label) + "|" + e.Start.UTC().Format(time.RFC3339) + "|" + end
}

// Compare orders by start, end (open last), label, then subject.
func Compare(a, b Event) int {
	if c := a.Interval().Compare(b.Interval()); c != 0 {
		return c
	}
	if c := strings.Compare(string(a.Label), string(b.Label)); c != 0 {
		return c
	}
	return strings.Compare(a.Subject, b.Subject)
}

func Sort(events []Event) { slices.SortFunc(events, Compare) }
