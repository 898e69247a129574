package models

import "time"

const (
	StatusWaiting  = "WAITING"
	StatusApproved = "APPROVED"
	StatusRejected = "REJECTED"
	StatusCanceled = "CANCELED"
)

type Booking struct {
	ID       int64     `json:"id"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	ItemID   int64     `json:"itemId"`
	ItemName string    `json:"itemName"`
	BookerID int64     `json:"bookerId"`
	Status   string    `json:"status"`

	// ItemOwnerID заполняется при чтении через join с items и не хранится
	// в таблице bookings.
	ItemOwnerID int64 `json:"-"`
}

// BookingShort is the trimmed form attached to item views.
type BookingShort struct {
	ID       int64 `json:"id"`
	BookerID int64 `json:"bookerId"`
}

// Role determines which side of a booking a listing query looks at.
type Role int

const (
	RoleBooker Role = iota
	RoleOwner
)

// BookingState is the query filter over a user's bookings. Not to be
// confused with booking status: states are computed from time and status.
type BookingState string

const (
	StateAll      BookingState = "ALL"
	StateFuture   BookingState = "FUTURE"
	StateCurrent  BookingState = "CURRENT"
	StatePast     BookingState = "PAST"
	StateWaiting  BookingState = "WAITING"
	StateRejected BookingState = "REJECTED"
)

// ParseBookingState converts raw query input to a BookingState. This is the
// only place where an unknown state can appear; everything past the boundary
// works with the closed set above.
func ParseBookingState(raw string) (BookingState, bool) {
	switch BookingState(raw) {
	case StateAll, StateFuture, StateCurrent, StatePast, StateWaiting, StateRejected:
		return BookingState(raw), true
	default:
		return "", false
	}
}
