package services

import (
	"errors"
	"fmt"
	"math"
)

// Error categories. Every error returned by a service matches exactly one of these
// through errors.Is, alongside any more specific reason below.
var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrValidation        = errors.New("validation failed")
	ErrConflict          = errors.New("conflict")
	ErrConfiguration     = errors.New("configuration error")
)

// Pricing and catalogue reasons.
var (
	ErrNotOffered    = fmt.Errorf("%w: executor does not offer service", ErrNotFound)
	ErrAlreadyLinked = fmt.Errorf("%w: executor already offers service", ErrConflict)
)

// MaxItemQuantity is the largest quantity a cart line can hold.
const MaxItemQuantity = math.MaxInt32

// Cart reasons.
var (
	ErrInvalidQuantity = fmt.Errorf("%w: quantity must be between 1 and %d", ErrValidation, MaxItemQuantity)
)

// Order reasons.
var (
	ErrScheduledTimeInPast         = fmt.Errorf("%w: scheduled time must be in the future", ErrValidation)
	ErrExecutorDoesNotOfferService = fmt.Errorf("%w: executor does not offer the chosen service", ErrValidation)
)

// Review reasons.
var (
	ErrInvalidRating     = fmt.Errorf("%w: rating must be between 1 and 5", ErrValidation)
	ErrSelfReview        = fmt.Errorf("%w: users cannot review themselves", ErrValidation)
	ErrOrderNotOwned     = fmt.Errorf("%w: order belongs to another client", ErrValidation)
	ErrExecutorMismatch  = fmt.Errorf("%w: order was assigned to a different executor", ErrValidation)
	ErrOrderNotCompleted = fmt.Errorf("%w: order is not completed", ErrValidation)
	ErrDuplicateReview   = fmt.Errorf("%w: order already reviewed", ErrConflict)
)

// Content reasons.
var (
	ErrSelfMessage       = fmt.Errorf("%w: users cannot message themselves", ErrValidation)
	ErrNotReceiver       = fmt.Errorf("%w: only the receiver may mark a message as read", ErrForbidden)
	ErrNoExecutorProfile = fmt.Errorf("%w: an executor profile is required", ErrForbidden)
)

// ErrRepositoryUnavailable wraps storage outages so the boundary can answer 503.
var ErrRepositoryUnavailable = errors.New("repository unavailable")
