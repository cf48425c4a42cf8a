package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies a ledger entry. The sign of an entry is derived
// from its type; Amount is always stored as a non-negative magnitude.
type TransactionType string

const (
	TypeIncome       TransactionType = "income"
	TypeExpense      TransactionType = "expense"
	TypeFixedExpense TransactionType = "fixed-expense"
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	return t == TypeIncome || t == TypeExpense || t == TypeFixedExpense
}

// Transaction is a single ledger entry owned by one user.
//
// RecurrenceDay (1..31) is set only on fixed-expense templates that the
// recurrence sweep clones forward each month. A clone records the template
// it came from in SourceID and the calendar day it was produced on in
// MaterializedOn; together they form the dedupe key that makes the sweep
// idempotent per day. CreatedAt is the canonical date for window queries.
type Transaction struct {
	ID             string          `json:"id"`
	Amount         decimal.Decimal `json:"amount"`
	Description    string          `json:"description,omitempty"`
	Type           TransactionType `json:"type"`
	RecurrenceDay  *int            `json:"recurrenceDay,omitempty"`
	OwnerID        string          `json:"owner"`
	Active         bool            `json:"active"`
	SourceID       *string         `json:"-"`
	MaterializedOn *time.Time      `json:"-"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}
