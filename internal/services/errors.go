// Package services holds the business logic for bookings, payment
// reconciliation, the service catalog, customers, settings and stats.
// This file centralizes the service-level error values so that handlers can
// map them to HTTP results consistently with errors.Is.
package services

import "errors"

// Booking errors.
var (
	// ErrBookingNotFound indicates that the requested booking does not exist.
	ErrBookingNotFound = errors.New("booking not found")

	// ErrInvalidBooking is returned when a booking request lacks the customer
	// name or phone.
	ErrInvalidBooking = errors.New("customer name and phone are required")

	// ErrInvalidStatus is returned for a status outside the known set.
	ErrInvalidStatus = errors.New("invalid booking status")

	// ErrStatusReserved is returned when an admin tries to set "paid"
	// manually. Only reconciliation may do that.
	ErrStatusReserved = errors.New("status paid is set by payment reconciliation only")
)

// Reconciliation errors.
var (
	// ErrEmptyCode is returned when a check is requested for a blank code.
	ErrEmptyCode = errors.New("booking code is empty")

	// ErrLedgerUnavailable wraps transient ledger failures. Pollers should
	// retry on the next tick.
	ErrLedgerUnavailable = errors.New("payment ledger unavailable")
)

// Catalog and settings errors.
var (
	ErrServiceNotFound = errors.New("service not found")
	ErrInvalidService  = errors.New("service title is required")
	ErrInvalidSetting  = errors.New("setting key and a JSON value are required")
)
