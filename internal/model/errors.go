// Package model defines the domain types shared by the inventory engine,
// the storage layer and the booking service, together with the sentinel
// errors that higher layers translate into HTTP responses.  Keeping the
// sentinels next to the types lets every layer return them without
// import cycles.
package model

import "errors"

// ErrNotFound is returned when a layout, seat, temp booking or booking
// does not exist.  Handlers translate it into a 404 response.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an operation cannot proceed because of
// conflicting structural state, such as creating a layout for an event
// that already has one or deleting a layout with active claims.
// Handlers translate it into a 409 response.
var ErrConflict = errors.New("conflict")

// ErrSeatUnavailable is returned when any seat in a multi-seat claim is
// already held, locked or booked by a different actor.  The claim is
// all-or-nothing: no seat state changes when this error is returned.
var ErrSeatUnavailable = errors.New("seat unavailable")

// ErrCapacityExceeded is returned by quantity-based products when the
// remaining capacity cannot satisfy the requested quantities.
var ErrCapacityExceeded = errors.New("capacity exceeded")

// ErrGone is returned when operating on a record that has lazily
// expired, such as converting a temp booking past its expires_at.
// Handlers translate it into a 410 response.
var ErrGone = errors.New("gone")

// ErrPaymentVerification is returned when the payment gateway rejects
// the supplied payment reference or the signature does not match the
// snapshotted amount.  Seat state is never mutated on this error.
var ErrPaymentVerification = errors.New("payment verification failed")

// ErrSeatNoLongerHeld is returned when seat promotion fails between
// payment verification and commit, typically because a lock expired in
// that narrow window.  The payment has been taken and must be
// reconciled manually; callers must surface this error, never swallow it.
var ErrSeatNoLongerHeld = errors.New("seat no longer held")

// ErrUnauthorized is returned when an ownership check fails: releasing
// another actor's claim, cancelling someone else's temp booking, or
// converting a temp booking that belongs to a different owner.
var ErrUnauthorized = errors.New("unauthorized")
