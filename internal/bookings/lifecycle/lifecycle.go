package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bikerent/pkg/model"

	"github.com/looplab/fsm"
)

const (
	// EventConfirm admits a pending booking.
	EventConfirm = "confirm"
	// EventDiscard drops a pending booking that failed admission.
	EventDiscard = "discard"
	// EventCancel releases a confirmed booking.
	EventCancel = "cancel"
)

// StateDiscarded is never persisted.
const StateDiscarded = "discarded"

var ErrInvalidTransition = errors.New("invalid booking status transition")

// Machine drives a single booking through its status transitions and keeps
// the booking's Status field in step with the fsm's current state.
type Machine struct {
	*fsm.FSM
	booking *model.Booking
	now     func() time.Time
}

func New(b *model.Booking) *Machine {
	return newMachine(b, time.Now)
}

func newMachine(b *model.Booking, now func() time.Time) *Machine {
	m := &Machine{booking: b, now: now}

	initial := string(b.Status)
	if initial == "" {
		initial = string(model.StatusPending)
	}

	events := fsm.Events{
		{Name: EventConfirm, Src: []string{string(model.StatusPending)}, Dst: string(model.StatusConfirmed)},
		{Name: EventDiscard, Src: []string{string(model.StatusPending)}, Dst: StateDiscarded},
		{Name: EventCancel, Src: []string{string(model.StatusConfirmed)}, Dst: string(model.StatusCancelled)},
	}

	callbacks := fsm.Callbacks{
		"enter_state":                            wrap(m.syncStatus),
		"enter_" + string(model.StatusCancelled): wrap(m.stampCancelled),
	}

	m.FSM = fsm.NewFSM(initial, events, callbacks)
	return m
}

func wrap(fn func(ctx context.Context, e *fsm.Event) error) fsm.Callback {
	return func(ctx context.Context, e *fsm.Event) {
		if err := fn(ctx, e); err != nil {
			e.Err = err
		}
	}
}

func (m *Machine) syncStatus(_ context.Context, e *fsm.Event) error {
	if e.Dst == StateDiscarded {
		return nil
	}
	m.booking.Status = model.BookingStatus(e.Dst)
	return nil
}

func (m *Machine) stampCancelled(_ context.Context, _ *fsm.Event) error {
	at := m.now().UTC()
	m.booking.CancelledAt = &at
	return nil
}

// Fire runs event and maps fsm refusals onto ErrInvalidTransition.
func (m *Machine) Fire(ctx context.Context, event string) error {
	err := m.Event(ctx, event)
	if err == nil {
		return nil
	}

	var invalid fsm.InvalidEventError
	var unknown fsm.UnknownEventError
	if errors.As(err, &invalid) || errors.As(err, &unknown) {
		return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, event, m.Current())
	}
	return err
}

func Cancel(ctx context.Context, b *model.Booking) error {
	return New(b).Fire(ctx, EventCancel)
}
