package model

import "time"

// BookingLock is an advisory lock document held while a vehicle's bookings
// are being checked and written. The _id is derived from the vehicle id, so a
// duplicate key on insert means another admission currently owns the vehicle.
type BookingLock struct {
	ID        string    `bson:"_id" json:"id"`
	Owner     string    `bson:"owner" json:"owner"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
