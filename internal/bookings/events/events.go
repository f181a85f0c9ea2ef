package events

import (
	"context"
	"fmt"
	"time"

	"bikerent/pkg/kafka"
	"bikerent/pkg/middleware"
	"bikerent/pkg/model"
)

const (
	EventBookingConfirmed = "booking.confirmed"
	EventBookingCancelled = "booking.cancelled"

	SchemaVersion = "1"
)

// BookingEvent is the payload of every booking lifecycle event.
type BookingEvent struct {
	BookingID   string              `json:"booking_id"`
	UserID      string              `json:"user_id"`
	VehicleID   string              `json:"vehicle_id"`
	Location    string              `json:"location"`
	StartTime   time.Time           `json:"start_time"`
	EndTime     time.Time           `json:"end_time"`
	Status      model.BookingStatus `json:"status"`
	TotalPrice  int64               `json:"total_price"`
	IncludedKm  int64               `json:"included_km"`
	CancelledAt *time.Time          `json:"cancelled_at,omitempty"`
}

func NewBookingEvent(b *model.Booking) BookingEvent {
	return BookingEvent{
		BookingID:   b.ID,
		UserID:      b.UserID,
		VehicleID:   b.VehicleID,
		Location:    b.Location,
		StartTime:   b.StartTime,
		EndTime:     b.EndTime,
		Status:      b.Status,
		TotalPrice:  b.TotalPrice,
		IncludedKm:  b.IncludedKm,
		CancelledAt: b.CancelledAt,
	}
}

// Publisher announces booking state changes. Delivery is best effort; the
// booking is already durable when these are called.
type Publisher interface {
	BookingConfirmed(ctx context.Context, b *model.Booking) error
	BookingCancelled(ctx context.Context, b *model.Booking) error
}

// MessagePublisher is satisfied by *kafka.Producer.
type MessagePublisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

type kafkaPublisher struct {
	producer MessagePublisher
	source   string
}

func NewKafkaPublisher(producer MessagePublisher, source string) Publisher {
	return &kafkaPublisher{producer: producer, source: source}
}

func (p *kafkaPublisher) BookingConfirmed(ctx context.Context, b *model.Booking) error {
	return p.publish(ctx, EventBookingConfirmed, b)
}

func (p *kafkaPublisher) BookingCancelled(ctx context.Context, b *model.Booking) error {
	return p.publish(ctx, EventBookingCancelled, b)
}

// publish keys by vehicle so a vehicle's events stay ordered on one partition.
func (p *kafkaPublisher) publish(ctx context.Context, eventType string, b *model.Booking) error {
	builder := kafka.NewMessage().
		WithKey(b.VehicleID).
		WithEventType(eventType).
		WithSchemaVersion(SchemaVersion).
		WithSource(p.source).
		WithValue(NewBookingEvent(b))
	if requestID := middleware.RequestIDFromContext(ctx); requestID != "" {
		builder.WithCorrelationID(requestID)
	}

	msg, err := builder.Build()
	if err != nil {
		return fmt.Errorf("failed to build %s event: %w", eventType, err)
	}
	if err := p.producer.Publish(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", eventType, err)
	}
	return nil
}

type noopPublisher struct{}

// NewNoopPublisher is used when Kafka is disabled.
func NewNoopPublisher() Publisher {
	return noopPublisher{}
}

func (noopPublisher) BookingConfirmed(context.Context, *model.Booking) error { return nil }

func (noopPublisher) BookingCancelled(context.Context, *model.Booking) error { return nil }
