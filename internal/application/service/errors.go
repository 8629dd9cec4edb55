package service

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a token, order or approval lookup misses
	ErrNotFound = errors.New("not found")

	// ErrOrderNotFound is returned when the service order does not resolve
	ErrOrderNotFound = fmt.Errorf("service order %w", ErrNotFound)

	// ErrAlreadyProcessed is returned when a decided approval is submitted again
	ErrAlreadyProcessed = errors.New("approval already processed")

	// ErrUnauthenticated is returned when a staff-only operation has no actor
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrInsufficientInput is returned when required fields are missing
	ErrInsufficientInput = errors.New("insufficient input")

	// ErrTenantMismatch is returned when an actor touches another company's order
	ErrTenantMismatch = errors.New("order belongs to another company")
)
