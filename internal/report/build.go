package report

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gustycube/pingscope/internal/analysis"
)

// View selects which findings a document shows.
type View string

const (
	ViewDowntime View = "downtime"
	ViewOverload View = "overload"
	ViewError    View = "error"
	ViewNetwork  View = "network"
)

var ErrUnknownView = errors.New("unknown report view")

func ParseView(s string) (View, error) {
	switch v := View(strings.ToLower(strings.TrimSpace(s))); v {
	case ViewDowntime, ViewOverload, ViewError, ViewNetwork:
		return v, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownView, s)
}

// Params adjusts p so the run computes what view v shows. Network views keep
// the caller's host toggles.
func (v View) Params(p analysis.Params) analysis.Params {
	switch v {
	case ViewDowntime:
		return p.WithHostDowntime(true).WithHostOverload(false)
	case ViewOverload:
		return p.WithHostDowntime(false).WithHostOverload(true)
	case ViewError:
		return p.WithHostDowntime(true).WithHostOverload(true)
	}
	return p
}

func (v View) noun() string {
	switch v {
	case ViewDowntime:
		return "downtime"
	case ViewOverload:
		return "overload"
	}
	return "error"
}

// Section is one host or network block of a document.
type Section struct {
	Subject string  `json:"subject"`
	Heading string  `json:"heading"`
	Events  []Event `json:"events"`
	Err     string  `json:"error,omitempty"`
}

// Document is a rendered view of an analysis report.
type Document struct {
	View     View      `json:"view"`
	Sections []Section `json:"sections"`
}

// Events returns every event of the document in order.
func (d *Document) Events() []Event {
	var out []Event
	for _, s := range d.Sections {
		out = append(out, s.Events...)
	}
	Sort(out)
	return out
}

// Build lays out rep as view v. Hosts appear per network, in first-seen
// order.
func Build(rep *analysis.Report, v View) (*Document, error) {
	if _, err := ParseView(string(v)); err != nil {
		return nil, err
	}
	p := rep.Params
	if (v == ViewDowntime || v == ViewError) && !p.HostDowntime {
		return nil, fmt.Errorf("%s view needs host downtime detection", v)
	}
	if (v == ViewOverload || v == ViewError) && !p.HostOverload {
		return nil, fmt.Errorf("%s view needs host overload detection", v)
	}

	doc := &Document{View: v}
	for _, nr := range rep.Networks {
		if v == ViewNetwork {
			doc.Sections = append(doc.Sections, networkSection(nr))
			continue
		}
		for _, hr := range nr.Hosts {
			doc.Sections = append(doc.Sections, hostSection(hr, v))
		}
	}
	return doc, nil
}

func hostSection(hr analysis.HostResult, v View) Section {
	subject := hr.Host.String()
	s := Section{Subject: subject}
	if hr.Err != nil {
		s.Heading = subject + " analysis failed"
		s.Err = hr.Err.Error()
		return s
	}
	if v != ViewOverload {
		s.Events = append(s.Events, newEvents(hr.Downtime, subject, LabelDowntime)...)
	}
	if v != ViewDowntime {
		s.Events = append(s.Events, newEvents(hr.Overload, subject, LabelOverload)...)
	}
	Sort(s.Events)
	if len(s.Events) == 0 {
		s.Heading = subject + " has no " + v.noun()
	} else {
		s.Heading = subject + " has " + v.noun()
	}
	return s
}

func networkSection(nr analysis.NetworkResult) Section {
	subject := nr.Network.String()
	s := Section{Subject: subject}
	if nr.Err != nil {
		s.Heading = subject + " analysis failed"
		s.Err = nr.Err.Error()
		return s
	}
	s.Events = newEvents(nr.Downtime, subject, LabelSwitchDown)
	switchDown := len(s.Events) > 0
	for _, hr := range nr.Hosts {
		s.Events = append(s.Events, newEvents(hr.Downtime, hr.Host.String(), LabelDowntime)...)
		s.Events = append(s.Events, newEvents(hr.Overload, hr.Host.String(), LabelOverload)...)
	}
	Sort(s.Events)
	switch {
	case switchDown:
		s.Heading = subject + " has error"
	case len(s.Events) > 0:
		s.Heading = subject + " summary"
	default:
		s.Heading = subject + " has no error"
	}
	return s
}
