package apierr

import (
	"errors"

	"github.com/taptrade/coordinatord/internal/bond"
	"github.com/taptrade/coordinatord/internal/store"
)

// FromBondValidation maps a bond.Validate failure onto the matching
// Validation-category API error, per §7's "malformed bond" class.
func FromBondValidation(err error) *Error {
	switch {
	case errors.Is(err, bond.ErrMalformedTx), errors.Is(err, bond.ErrNotFinalized), errors.Is(err, bond.ErrNoInputs):
		return NewValidationWrap("InvalidBond", "bond transaction is malformed", err)
	case errors.Is(err, bond.ErrOutputTooSmall):
		return NewValidationWrap("InvalidBond", "bond output sum too small", err)
	case errors.Is(err, bond.ErrInputSumTooSmall):
		return NewValidationWrap("InvalidBond", "bond input sum too small", err)
	case errors.Is(err, bond.ErrMissingInputTx):
		return NewValidationWrap("MissingInputTx", "bond input previous transaction not found", err)
	case errors.Is(err, bond.ErrFeerateTooLow):
		return NewValidationWrap("InvalidBond", "bond feerate below required minimum", err)
	case errors.Is(err, bond.ErrInvalidSignature):
		return NewValidationWrap("InvalidBond", "bond signature invalid", err)
	default:
		return NewInternal("BondValidation", err)
	}
}

// FromStore maps a store-layer error onto the matching API error. Callers
// pass the not-found code appropriate to the resource being looked up
// ("NotFound" for a generic offer, "BondNotFound" for an AwaitingBond
// lookup keyed on robohash).
func FromStore(err error, notFoundCode string) *Error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return NewProtocolState(notFoundCode, "record not found")
	case errors.Is(err, store.ErrAlreadyExists):
		return NewValidation("AlreadyExists", "record already exists")
	case errors.Is(err, store.ErrWrongState):
		return NewProtocolState("WrongState", "record is not in the expected state for this operation")
	default:
		return NewInternal("Store", err)
	}
}
