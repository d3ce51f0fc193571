package repositories

import "errors"

var (
	// ErrOrderNotFound is returned when no order matches the lookup.
	ErrOrderNotFound = errors.New("order not found")
	// ErrActiveOrderExists is returned when a customer already has an order in ORDERING.
	ErrActiveOrderExists = errors.New("customer already has an active order")
	// ErrVersionConflict is returned by Save when the stored order changed since it was read.
	ErrVersionConflict = errors.New("order was modified concurrently")
	// ErrProductNotFound is returned when no product matches the lookup.
	ErrProductNotFound = errors.New("product not found")
	// ErrUserNotFound is returned when no user matches the lookup.
	ErrUserNotFound = errors.New("user not found")
)
