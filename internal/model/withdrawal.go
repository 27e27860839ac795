package model

import (
	"encoding/json"
	"errors"
	"time"
)

// WithdrawalStatus is the state of a withdrawal request.
type WithdrawalStatus string

const (
	WithdrawalPending  WithdrawalStatus = "pending"
	WithdrawalApproved WithdrawalStatus = "approved"
	WithdrawalRejected WithdrawalStatus = "rejected"
)

var (
	// ErrAlreadyProcessed means the request already reached a terminal state.
	ErrAlreadyProcessed = errors.New("withdrawal request already processed")
	// ErrInvalidTransition means the target state is not reachable from pending.
	ErrInvalidTransition = errors.New("invalid withdrawal state transition")
)

// Transition authorizes a state change. Only pending→approved and
// pending→rejected are permitted; approved and rejected are terminal.
func (s WithdrawalStatus) Transition(next WithdrawalStatus) error {
	if s != WithdrawalPending {
		return ErrAlreadyProcessed
	}
	if next != WithdrawalApproved && next != WithdrawalRejected {
		return ErrInvalidTransition
	}
	return nil
}

// PayoutDestination is where an approved withdrawal should be paid out.
type PayoutDestination struct {
	Method        string `json:"method"`
	AccountName   string `json:"account_name"`
	AccountNumber string `json:"account_number"`
	BankCode      string `json:"bank_code,omitempty"`
}

// ErrMissingDestination means required payout destination fields are absent.
var ErrMissingDestination = errors.New("payout destination incomplete")

// Validate checks the required destination fields.
func (d PayoutDestination) Validate() error {
	if d.Method == "" || d.AccountName == "" || d.AccountNumber == "" {
		return ErrMissingDestination
	}
	return nil
}

// WithdrawalMeta is the JSON state stored on a withdrawal request row.
type WithdrawalMeta struct {
	Status      WithdrawalStatus  `json:"status"`
	Destination PayoutDestination `json:"destination"`
	DecidedBy   uint64            `json:"decided_by,omitempty"`
	DecidedAt   *time.Time        `json:"decided_at,omitempty"`
	Notes       string            `json:"notes,omitempty"`
}

// Encode marshals the metadata for storage.
func (m WithdrawalMeta) Encode() (*string, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}

// DecodeWithdrawalMeta parses the metadata column of a request row.
func DecodeWithdrawalMeta(raw *string) (WithdrawalMeta, error) {
	var m WithdrawalMeta
	if raw == nil {
		return m, errors.New("transaction carries no withdrawal metadata")
	}
	err := json.Unmarshal([]byte(*raw), &m)
	return m, err
}
