package shared

import "errors"

var (
	// ErrValidation indicates malformed input or a broken structural rule.
	ErrValidation = errors.New("validation failed")
	// ErrImbalanced indicates voucher debits and credits do not match.
	ErrImbalanced = errors.New("voucher lines must balance")
	// ErrDuplicateVoucherNumber indicates a numbering collision within (business, type, year).
	ErrDuplicateVoucherNumber = errors.New("voucher number already used")
	// ErrLockedPeriod indicates a mutation against a locked financial year.
	ErrLockedPeriod = errors.New("financial year is locked")
	// ErrConflict indicates a delete blocked by dependent rows.
	ErrConflict = errors.New("operation conflicts with existing records")
	// ErrCrossTenant indicates a referenced entity belongs to another business.
	ErrCrossTenant = errors.New("entity belongs to a different business")
	// ErrAlreadyReconciled indicates a journal entry already linked to a reconciliation.
	ErrAlreadyReconciled = errors.New("journal entry already reconciled")
	// ErrNotFound indicates the referenced id does not exist.
	ErrNotFound = errors.New("not found")
)
