package domain

import "errors"

var (
	ErrBookNotFound         = errors.New("book not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrReservationNotFound  = errors.New("reservation not found")
	ErrDuplicateReservation = errors.New("user already has an open reservation for this book")
	ErrNotOwner             = errors.New("reservation belongs to another user")
	ErrReservationNotActive = errors.New("reservation is not active")
	ErrReservationClosed    = errors.New("reservation is already settled")
	ErrInvalidID            = errors.New("invalid id")
)
