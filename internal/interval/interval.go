// Package interval models half-open time windows [Start, End) and the
// overlap and duration arithmetic the booking engine is built on.
package interval

import (
	"errors"
	"fmt"
	"time"
)

const (
	MinutesPerHour = 60
	MinutesPerDay  = 24 * MinutesPerHour

	// MinLength is the shortest bookable window. Durations are counted in
	// whole minutes, so anything shorter would price at zero.
	MinLength = time.Minute
)

var ErrInvalidWindow = errors.New("end time must be at least one minute after start time")

// Window is the half-open range [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// New returns a validated window. Instants are normalised to UTC so that
// windows built from different zones compare and decompose identically.
func New(start, end time.Time) (Window, error) {
	w := Window{Start: start.UTC(), End: end.UTC()}
	if err := w.Validate(); err != nil {
		return Window{}, err
	}
	return w, nil
}

func (w Window) Validate() error {
	if w.End.Sub(w.Start) < MinLength {
		return fmt.Errorf("%w: start=%s end=%s", ErrInvalidWindow,
			w.Start.Format(time.RFC3339Nano), w.End.Format(time.RFC3339Nano))
	}
	return nil
}

// Overlaps reports whether a and b share any instant. Windows that only touch
// (a.End == b.Start) do not overlap.
func Overlaps(a, b Window) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

func (w Window) Overlaps(other Window) bool {
	return Overlaps(w, other)
}

func (w Window) String() string {
	return w.Start.Format(time.RFC3339) + "/" + w.End.Format(time.RFC3339)
}

// Duration is a window length split into whole days, hours and minutes.
type Duration struct {
	Days    int64 `json:"days"`
	Hours   int64 `json:"hours"`
	Minutes int64 `json:"minutes"`
}

// Decompose splits the window length using floor division on whole minutes.
// Any sub-minute remainder is dropped.
func Decompose(w Window) (Duration, error) {
	if err := w.Validate(); err != nil {
		return Duration{}, err
	}
	total := int64(w.End.Sub(w.Start) / time.Minute)
	days := total / MinutesPerDay
	rem := total % MinutesPerDay
	return Duration{
		Days:    days,
		Hours:   rem / MinutesPerHour,
		Minutes: rem % MinutesPerHour,
	}, nil
}

func (w Window) Duration() (Duration, error) {
	return Decompose(w)
}

// TotalMinutes is the duration expressed in minutes.
func (d Duration) TotalMinutes() int64 {
	return d.Days*MinutesPerDay + d.Hours*MinutesPerHour + d.Minutes
}

func (d Duration) String() string {
	return fmt.Sprintf("%d Days, %d Hours, %d Minutes", d.Days, d.Hours, d.Minutes)
}
