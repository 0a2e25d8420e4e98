package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrTerritoryNotFound is returned when a territory is not found
	ErrTerritoryNotFound = errors.New("territory not found")

	// ErrAuctionNotFound is returned when an auction is not found
	ErrAuctionNotFound = errors.New("auction not found")

	// ErrPaymentNotFound is returned when a payment record is not found
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrWalletNotFound is returned when a wallet is not found
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrOwnershipConflict is returned when a transfer would overwrite a different current owner
	ErrOwnershipConflict = errors.New("territory already owned by another user")

	// ErrActiveAuctionExists is returned when creating an auction for a territory
	// that already has an active auction referencing it
	ErrActiveAuctionExists = errors.New("territory already has an active auction")

	// ErrAuctionNotActive is returned when settling or transferring against a
	// non-active auction
	ErrAuctionNotActive = errors.New("auction is not active")

	// ErrWrongAuctionWinner is returned when the transfer user is not the
	// auction's highest bidder
	ErrWrongAuctionWinner = errors.New("user is not the auction's highest bidder")

	// ErrPaymentIncomplete is returned when the referenced payment is not in a
	// completed state or belongs to another user
	ErrPaymentIncomplete = errors.New("payment is not completed for this user")

	// ErrInsufficientFunds is returned when a wallet balance does not cover the price
	ErrInsufficientFunds = errors.New("insufficient wallet balance")

	// ErrStateConflict is returned when a guarded transition's expected
	// pre-state no longer matches, i.e. a concurrent invocation already
	// applied the transition
	ErrStateConflict = errors.New("state changed concurrently, transition not applied")
)

// ValidationError reports malformed or missing required input. It is never
// retried and is surfaced to the caller immediately.
type ValidationError struct {
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Detail)
}

// NewValidationError creates a validation error for a named input field
func NewValidationError(field, detail string) error {
	return &ValidationError{Field: field, Detail: detail}
}

// IsValidation reports whether err is a validation error
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound reports whether err indicates a missing referenced entity
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTerritoryNotFound) ||
		errors.Is(err, ErrAuctionNotFound) ||
		errors.Is(err, ErrPaymentNotFound) ||
		errors.Is(err, ErrWalletNotFound)
}

// IsPrecondition reports whether err indicates state that does not satisfy
// the operation's contract. These are surfaced, never retried.
func IsPrecondition(err error) bool {
	return errors.Is(err, ErrOwnershipConflict) ||
		errors.Is(err, ErrActiveAuctionExists) ||
		errors.Is(err, ErrAuctionNotActive) ||
		errors.Is(err, ErrWrongAuctionWinner) ||
		errors.Is(err, ErrPaymentIncomplete) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrStateConflict)
}
