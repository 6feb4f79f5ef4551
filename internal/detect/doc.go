// Package detect derives condition windows from ping sample series.
//
// Downtime reports runs of consecutive timeouts that reach a debounce length.
// Overload reports runs where a trailing average of response times reaches a
// threshold, with timeout-contaminated frames corrected once a full outage is
// confirmed. NetworkDowntime intersects the downtime of every host in a
// subnet.
//
// All detectors are pure functions of their input snapshot. They validate
// their parameters first and return ErrInvalidArgument without producing any
// output.
package detect
