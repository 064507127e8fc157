/*
errors.go - Centralized error types for the stage quantity engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers branch on category, not message text.

ERROR CATEGORIES:
  1. Validation errors - Requested quantity exceeds a computed ceiling
  2. Not-found errors  - Referenced assembly/PO line/product missing
  3. Invariant errors  - Data-integrity guards; indicate a bug or corrupt
     upstream data, not user error, and abort the enclosing transaction

USAGE:
  if errors.Is(err, ledger.ErrExceedsSlack) {
      // render the variant index and remaining slack to the user
  }

SEE ALSO:
  - reconcile.go: Produces slack validation errors
  - store.go: Stores surface not-found sentinels
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrExceedsSlack is returned when a reconcile request asks for more than
	// the remaining recoverable slack at a stage.
	ErrExceedsSlack = errors.New("reconcile quantity exceeds remaining slack")

	// ErrNoSlack is returned when a stage has no reconciliable slack at all.
	ErrNoSlack = errors.New("no reconciliable slack remains at this stage")

	// ErrExceedsAvailable is returned when a pack/retain request asks for more
	// units than the upstream pool still holds.
	ErrExceedsAvailable = errors.New("quantity exceeds available units")

	// ErrZeroQuantity is returned when a write carries no positive quantity.
	ErrZeroQuantity = errors.New("requested quantity must be greater than zero")

	// ErrNegativeQuantity is returned when a write carries a negative variant
	// slot. Negative slots are rejected, never clamped: a negative slot
	// subtracts from a ceiling and can mint output a variant never produced.
	ErrNegativeQuantity = errors.New("requested quantity must not be negative")

	// ErrAssemblyNotFound is returned when a referenced assembly doesn't exist.
	ErrAssemblyNotFound = errors.New("assembly not found")

	// ErrPurchaseOrderLineNotFound is returned when a referenced PO line doesn't exist.
	ErrPurchaseOrderLineNotFound = errors.New("purchase order line not found")

	// ErrProductNotFound is returned when a referenced product doesn't exist.
	ErrProductNotFound = errors.New("product not found")

	// ErrInvariantViolation wraps data-integrity guard failures.
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrUnknownStage is returned when an activity names a stage the
	// pipeline doesn't know.
	ErrUnknownStage = errors.New("unknown production stage")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// SlackError reports a reconcile request exceeding the remaining slack,
// naming the offending variant slot and its numeric ceiling.
type SlackError struct {
	AssemblyID   string
	Stage        Stage
	VariantIndex int
	Requested    decimal.Decimal
	Remaining    decimal.Decimal
}

func (e *SlackError) Error() string {
	return fmt.Sprintf("cannot reconcile %s at %s for %s: requested %s, remaining slack %s",
		VariantLabel(e.VariantIndex), e.Stage, e.AssemblyID,
		FormatQuantity(e.Requested), FormatQuantity(e.Remaining))
}

func (e *SlackError) Unwrap() error { return ErrExceedsSlack }

// AvailabilityError reports a pack/retain request exceeding the pool of
// upstream units still available, per variant slot.
type AvailabilityError struct {
	AssemblyID   string
	Stage        Stage
	VariantIndex int
	Requested    decimal.Decimal
	Available    decimal.Decimal
	Message      string
}

func (e *AvailabilityError) Error() string {
	return fmt.Sprintf("%s (%s: requested %s, available %s)",
		e.Message, VariantLabel(e.VariantIndex),
		FormatQuantity(e.Requested), FormatQuantity(e.Available))
}

func (e *AvailabilityError) Unwrap() error { return ErrExceedsAvailable }

// NegativeQuantityError reports a request carrying a negative variant slot.
type NegativeQuantityError struct {
	VariantIndex int
	Requested    decimal.Decimal
}

func (e *NegativeQuantityError) Error() string {
	return fmt.Sprintf("requested quantity at %s must not be negative, got %s",
		VariantLabel(e.VariantIndex), FormatQuantity(e.Requested))
}

func (e *NegativeQuantityError) Unwrap() error { return ErrNegativeQuantity }

// NotFoundError carries the entity kind and identifier for 404-style rendering.
type NotFoundError struct {
	Kind string // "assembly", "purchase order line", "product"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	switch e.Kind {
	case "assembly":
		return ErrAssemblyNotFound
	case "purchase order line":
		return ErrPurchaseOrderLineNotFound
	case "product":
		return ErrProductNotFound
	}
	return nil
}

// InvariantError reports a data-integrity guard failure. These abort the
// enclosing transaction and should be logged at error severity.
type InvariantError struct {
	Guard  string // e.g. "box_destination", "batch_line_presence"
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violation [%s]: %s", e.Guard, e.Detail)
}

func (e *InvariantError) Unwrap() error { return ErrInvariantViolation }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrExceedsSlack) ||
		errors.Is(err, ErrNoSlack) ||
		errors.Is(err, ErrExceedsAvailable) ||
		errors.Is(err, ErrZeroQuantity) ||
		errors.Is(err, ErrNegativeQuantity) ||
		errors.Is(err, ErrUnknownStage)
}

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAssemblyNotFound) ||
		errors.Is(err, ErrPurchaseOrderLineNotFound) ||
		errors.Is(err, ErrProductNotFound)
}

// IsInvariantViolation returns true for integrity-guard failures.
func IsInvariantViolation(err error) bool {
	return errors.Is(err, ErrInvariantViolation)
}
