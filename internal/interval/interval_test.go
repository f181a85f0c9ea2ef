package interval

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, time.March, 3, 10, 0, 0, 0, time.UTC)

func window(t *testing.T, fromHours, toHours float64) Window {
	t.Helper()
	w, err := New(
		base.Add(time.Duration(fromHours*float64(time.Hour))),
		base.Add(time.Duration(toHours*float64(time.Hour))),
	)
	require.NoError(t, err)
	return w
}

func TestNew_RejectsDegenerateWindows(t *testing.T) {
	tests := []struct {
		name  string
		start time.Time
		end   time.Time
	}{
		{name: "end equals start", start: base, end: base},
		{name: "end before start", start: base, end: base.Add(-time.Minute)},
		{name: "one nanosecond", start: base, end: base.Add(time.Nanosecond)},
		{name: "thirty seconds", start: base, end: base.Add(30 * time.Second)},
		{name: "just under a minute", start: base, end: base.Add(time.Minute - time.Nanosecond)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.start, tt.end)
			assert.True(t, errors.Is(err, ErrInvalidWindow))
		})
	}
}

func TestNew_AcceptsExactlyOneMinute(t *testing.T) {
	w, err := New(base, base.Add(MinLength))
	require.NoError(t, err)

	d, err := w.Duration()
	require.NoError(t, err)
	assert.Equal(t, Duration{Minutes: 1}, d)
}

func TestNew_NormalisesToUTC(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	w, err := New(base.In(loc), base.Add(time.Hour).In(loc))
	require.NoError(t, err)
	assert.Equal(t, time.UTC, w.Start.Location())
	assert.True(t, w.Start.Equal(base))
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a    Window
		b    Window
		want bool
	}{
		{name: "identical", a: window(t, 0, 2), b: window(t, 0, 2), want: true},
		{name: "partial overlap", a: window(t, 0, 2), b: window(t, 1, 3), want: true},
		{name: "contained", a: window(t, 0, 10), b: window(t, 2, 3), want: true},
		{name: "adjacent after", a: window(t, 0, 2), b: window(t, 2, 4), want: false},
		{name: "adjacent before", a: window(t, 2, 4), b: window(t, 0, 2), want: false},
		{name: "disjoint", a: window(t, 0, 1), b: window(t, 5, 6), want: false},
		{name: "one minute overlap", a: window(t, 0, 2), b: window(t, 2-1.0/60, 3), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Overlaps(tt.a, tt.b))
			assert.Equal(t, tt.want, Overlaps(tt.b, tt.a), "overlap must be symmetric")
		})
	}
}

func TestDecompose(t *testing.T) {
	tests := []struct {
		name string
		span time.Duration
		want Duration
	}{
		{name: "one minute", span: time.Minute, want: Duration{Minutes: 1}},
		{name: "exactly one day", span: 24 * time.Hour, want: Duration{Days: 1}},
		{name: "day and a half", span: 36 * time.Hour, want: Duration{Days: 1, Hours: 12}},
		{name: "mixed", span: 49*time.Hour + 59*time.Minute, want: Duration{Days: 2, Hours: 1, Minutes: 59}},
		{name: "sub minute remainder dropped", span: 90*time.Minute + 45*time.Second, want: Duration{Hours: 1, Minutes: 30}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := New(base, base.Add(tt.span))
			require.NoError(t, err)

			got, err := w.Duration()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecompose_InvalidWindow(t *testing.T) {
	_, err := Decompose(Window{Start: base, End: base})
	assert.ErrorIs(t, err, ErrInvalidWindow)
}

func TestDuration_String(t *testing.T) {
	d := Duration{Days: 1, Hours: 12, Minutes: 5}
	assert.Equal(t, "1 Days, 12 Hours, 5 Minutes", d.String())
	assert.Equal(t, int64(2165), d.TotalMinutes())
}
