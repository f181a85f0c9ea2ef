package model

import (
	"time"
)

type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusConfirmed BookingStatus = "confirmed"
	StatusCancelled BookingStatus = "cancelled"
)

type Booking struct {
	ID          string        `json:"id,omitempty" bson:"_id,omitempty"`
	UserID      string        `json:"user_id" bson:"user_id" validate:"required,max=128"`
	VehicleID   string        `json:"vehicle_id" bson:"vehicle_id" validate:"required"`
	Location    string        `json:"location" bson:"location" validate:"required,min=1,max=100"`
	StartTime   time.Time     `json:"start_time" bson:"start_time" validate:"required"`
	EndTime     time.Time     `json:"end_time" bson:"end_time" validate:"required,gtfield=StartTime"`
	Status      BookingStatus `json:"status" bson:"status" validate:"required,oneof=pending confirmed cancelled"`
	TotalPrice  int64         `json:"total_price" bson:"total_price" validate:"min=0"`
	IncludedKm  int64         `json:"included_km" bson:"included_km" validate:"min=0"`
	CreatedAt   time.Time     `json:"created_at" bson:"created_at"`
	CancelledAt *time.Time    `json:"cancelled_at,omitempty" bson:"cancelled_at,omitempty"`
}

// BookingRequest is the caller-facing admission payload. UserID is never
// read from the body; it comes from the authenticated request context.
type BookingRequest struct {
	VehicleID  string    `json:"vehicle_id" validate:"required"`
	Location   string    `json:"location" validate:"required,min=1,max=100"`
	StartTime  time.Time `json:"start_time" validate:"required"`
	EndTime    time.Time `json:"end_time" validate:"required"`
	TotalPrice *int64    `json:"total_price,omitempty" validate:"omitempty,min=0"`
	UserID     string    `json:"-" validate:"required"`
}
