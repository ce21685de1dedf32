package model

import (
	"time"
)

type ReservationStatus string

const (
	StatusConfirmed ReservationStatus = "CONFIRMED"
	// StatusCancelled is terminal. A cancelled reservation is never
	// deleted and never returns to CONFIRMED.
	StatusCancelled ReservationStatus = "CANCELLED"
)

// Reservation claims one capacity unit of its category for the half-open
// window [StartAt, EndAt). Days is the source of truth for EndAt:
// EndAt = StartAt + Days whole days.
type Reservation struct {
	ID        string            `json:"id,omitempty" bson:"_id,omitempty"`
	UserID    string            `json:"userId" bson:"user_id"`
	CarType   CarType           `json:"category" bson:"car_type"`
	StartAt   time.Time         `json:"startAt" bson:"start_at"`
	EndAt     time.Time         `json:"endAt" bson:"end_at"`
	Days      int               `json:"days" bson:"days"`
	Status    ReservationStatus `json:"status" bson:"status"`
	Version   int64             `json:"-" bson:"version"`
	CreatedAt time.Time         `json:"-" bson:"created_at"`
}

// ReservationRequest is the validated inbound shape for create and update.
// The caller identity is resolved upstream and arrives separately.
type ReservationRequest struct {
	Category string    `json:"category" validate:"required"`
	StartAt  time.Time `json:"startAt" validate:"required"`
	Days     int       `json:"days" validate:"required,min=1"`
}

// ReservationLock is a store-level advisory lock serializing admission
// checks for one category against each other.
type ReservationLock struct {
	ID        string    `bson:"_id" json:"id"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// AvailabilityResult is the read-side answer for one queried window.
type AvailabilityResult struct {
	Category  CarType   `json:"category"`
	StartAt   time.Time `json:"startAt"`
	Days      int       `json:"days"`
	Available int64     `json:"available"`
}
