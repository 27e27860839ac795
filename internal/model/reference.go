package model

import "errors"

// RefKind enumerates the entity kinds a ledger entry may point at.
type RefKind string

const (
	RefBorrowRequest     RefKind = "borrow-request"
	RefLendingRecord     RefKind = "lending-record"
	RefWithdrawalRequest RefKind = "withdrawal-request"
	RefPaymentOrder      RefKind = "payment-order"
	RefAdminAction       RefKind = "admin-action"
)

// ErrUnknownRefKind is returned for a reference kind outside the closed set.
var ErrUnknownRefKind = errors.New("unknown reference kind")

// Reference is a validated tagged pointer to the entity that caused a
// ledger entry.
type Reference struct {
	ID   uint64
	Kind RefKind
}

// NewReference builds a Reference, rejecting unknown kinds.
func NewReference(kind RefKind, id uint64) (Reference, error) {
	switch kind {
	case RefBorrowRequest, RefLendingRecord, RefWithdrawalRequest, RefPaymentOrder, RefAdminAction:
		return Reference{ID: id, Kind: kind}, nil
	default:
		return Reference{}, ErrUnknownRefKind
	}
}
