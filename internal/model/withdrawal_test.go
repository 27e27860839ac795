package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithdrawalStatus_Transition(t *testing.T) {
	assert.NoError(t, WithdrawalPending.Transition(WithdrawalApproved))
	assert.NoError(t, WithdrawalPending.Transition(WithdrawalRejected))

	// terminal states admit nothing
	assert.ErrorIs(t, WithdrawalApproved.Transition(WithdrawalRejected), ErrAlreadyProcessed)
	assert.ErrorIs(t, WithdrawalApproved.Transition(WithdrawalApproved), ErrAlreadyProcessed)
	assert.ErrorIs(t, WithdrawalRejected.Transition(WithdrawalApproved), ErrAlreadyProcessed)

	// pending is not a decision target
	assert.ErrorIs(t, WithdrawalPending.Transition(WithdrawalPending), ErrInvalidTransition)
}

func TestPayoutDestination_Validate(t *testing.T) {
	ok := PayoutDestination{Method: "bank", AccountName: "Asha Rao", AccountNumber: "00123"}
	assert.NoError(t, ok.Validate())

	assert.ErrorIs(t, PayoutDestination{Method: "bank"}.Validate(), ErrMissingDestination)
	assert.ErrorIs(t, PayoutDestination{}.Validate(), ErrMissingDestination)
}

func TestNewReference(t *testing.T) {
	ref, err := NewReference(RefLendingRecord, 7)
	assert.NoError(t, err)
	assert.Equal(t, uint64(7), ref.ID)

	_, err = NewReference(RefKind("book-review"), 7)
	assert.ErrorIs(t, err, ErrUnknownRefKind)
}

func TestWithdrawalMeta_Roundtrip(t *testing.T) {
	meta := WithdrawalMeta{
		Status:      WithdrawalPending,
		Destination: PayoutDestination{Method: "upi", AccountName: "Asha Rao", AccountNumber: "asha@upi"},
	}
	raw, err := meta.Encode()
	assert.NoError(t, err)

	got, err := DecodeWithdrawalMeta(raw)
	assert.NoError(t, err)
	assert.Equal(t, meta, got)

	_, err = DecodeWithdrawalMeta(nil)
	assert.Error(t, err)
}
