package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mpereira/finledger/internal/common"
	"github.com/mpereira/finledger/internal/dbx"
	"github.com/mpereira/finledger/internal/server/models"
	"github.com/mpereira/finledger/internal/server/repositories/repomanager"
)

// TransactionInput is the caller-supplied part of a new ledger entry.
type TransactionInput struct {
	Amount        decimal.Decimal
	Description   string
	Type          models.TransactionType
	RecurrenceDay *int
}

// TransactionPatch describes a partial entry update. Nil fields are left
// unchanged. Patching Type away from fixed-expense clears the recurrence day.
type TransactionPatch struct {
	Amount        *decimal.Decimal
	Description   *string
	Type          *models.TransactionType
	RecurrenceDay *int
}

// BalanceReport is the aggregate view of a ledger slice. Balance is
// Income - Expense; fixed-expense entries count toward Expense.
type BalanceReport struct {
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Balance decimal.Decimal `json:"balance"`
}

// OwnerTransactions groups one matched account with its full ledger, as
// returned by the administrative name search.
type OwnerTransactions struct {
	Owner        *models.User          `json:"owner"`
	Transactions []*models.Transaction `json:"transactions"`
}

// TransactionService provides the owner-scoped ledger operations and the
// administrative lookups layered on top of them.
type TransactionService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

// NewTransactionService constructs a TransactionService.
func NewTransactionService(db *sql.DB, m repomanager.RepositoryManager) *TransactionService {
	return &TransactionService{db: db, repomanager: m}
}

// validateEntry checks the shape of an entry. Amount is a non-negative
// magnitude; zero is a valid entry. A recurrence day belongs to
// fixed-expense templates only, and a template must carry one. Materialized
// clones validate as plain entries: they keep the fixed-expense type but
// never recur themselves.
func validateEntry(amount decimal.Decimal, typ models.TransactionType, day *int, materialized bool) error {
	if amount.IsNegative() {
		return fmt.Errorf("%w: amount must not be negative", common.ErrValidation)
	}
	if !typ.Valid() {
		return fmt.Errorf("%w: unknown transaction type %q", common.ErrValidation, typ)
	}
	if materialized {
		if day != nil {
			return fmt.Errorf("%w: a materialized entry cannot recur", common.ErrValidation)
		}
		return nil
	}
	if typ == models.TypeFixedExpense {
		if day == nil {
			return fmt.Errorf("%w: fixed-expense requires a recurrence day", common.ErrValidation)
		}
		if *day < 1 || *day > 31 {
			return fmt.Errorf("%w: recurrence day must be between 1 and 31", common.ErrValidation)
		}
		return nil
	}
	if day != nil {
		return fmt.Errorf("%w: recurrence day is only valid on fixed-expense", common.ErrValidation)
	}
	return nil
}

// monthWindow returns the inclusive [first instant, last instant] of a
// calendar month in UTC.
func monthWindow(year, month int) (time.Time, time.Time) {
	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0).Add(-time.Nanosecond)
	return from, to
}

// dayWindow returns the inclusive [first instant, last instant] of a single
// calendar day in UTC.
func dayWindow(year, month, day int) (time.Time, time.Time) {
	from := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1).Add(-time.Nanosecond)
	return from, to
}

func validateMonth(year, month int) error {
	if month < 1 || month > 12 {
		return fmt.Errorf("%w: month must be between 1 and 12", common.ErrValidation)
	}
	if year < 2000 {
		return fmt.Errorf("%w: year must be 2000 or later", common.ErrValidation)
	}
	return nil
}

func validateDate(year, month, day int) error {
	if err := validateMonth(year, month); err != nil {
		return err
	}
	if day < 1 || day > 31 {
		return fmt.Errorf("%w: day must be between 1 and 31", common.ErrValidation)
	}
	// time.Date normalizes overflow (Feb 30 becomes Mar 2), which would
	// silently query the wrong window.
	if d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC); d.Day() != day {
		return fmt.Errorf("%w: day %d does not exist in %d-%02d", common.ErrValidation, day, year, month)
	}
	return nil
}

// Create validates and stores a new ledger entry for the given owner.
func (s *TransactionService) Create(ctx context.Context, ownerID string, in TransactionInput) (*models.Transaction, error) {
	if err := validateEntry(in.Amount, in.Type, in.RecurrenceDay, false); err != nil {
		return nil, err
	}

	tx := &models.Transaction{
		Amount:        in.Amount,
		Description:   in.Description,
		Type:          in.Type,
		RecurrenceDay: in.RecurrenceDay,
		OwnerID:       ownerID,
		Active:        true,
	}

	repo := s.repomanager.Transactions(s.db)
	return repo.Create(ctx, tx)
}

// Update applies a partial update to an entry the owner holds. The
// read-merge-write runs inside a transaction; the final shape is revalidated
// so a patch cannot produce an entry Create would have rejected.
func (s *TransactionService) Update(ctx context.Context, id, ownerID string, patch TransactionPatch) (*models.Transaction, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrNotFound
	}

	var updated *models.Transaction
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Transactions(tx)

		entry, err := repo.GetByIDForOwner(ctx, id, ownerID)
		if err != nil {
			return err
		}

		if patch.Amount != nil {
			entry.Amount = *patch.Amount
		}
		if patch.Description != nil {
			entry.Description = *patch.Description
		}
		if patch.Type != nil {
			entry.Type = *patch.Type
			if entry.Type != models.TypeFixedExpense {
				entry.RecurrenceDay = nil
			}
		}
		if patch.RecurrenceDay != nil {
			entry.RecurrenceDay = patch.RecurrenceDay
		}

		if err := validateEntry(entry.Amount, entry.Type, entry.RecurrenceDay, entry.SourceID != nil); err != nil {
			return err
		}

		updated, err = repo.Update(ctx, entry)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete soft-deletes an entry the owner holds. An entry belonging to another
// owner is reported as not found.
func (s *TransactionService) Delete(ctx context.Context, id, ownerID string) error {
	if _, err := uuid.Parse(id); err != nil {
		return common.ErrNotFound
	}
	repo := s.repomanager.Transactions(s.db)
	return repo.Delete(ctx, id, ownerID)
}

// GetForOwner returns one entry the owner holds.
func (s *TransactionService) GetForOwner(ctx context.Context, id, ownerID string) (*models.Transaction, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrNotFound
	}
	repo := s.repomanager.Transactions(s.db)
	return repo.GetByIDForOwner(ctx, id, ownerID)
}

// FindByID returns one entry regardless of owner. A syntactically invalid id
// is reported as not found, the same as an absent row.
func (s *TransactionService) FindByID(ctx context.Context, id string) (*models.Transaction, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrNotFound
	}
	repo := s.repomanager.Transactions(s.db)
	return repo.GetByID(ctx, id)
}

// ListForOwner returns the owner's full ledger, newest first.
func (s *TransactionService) ListForOwner(ctx context.Context, ownerID string) ([]*models.Transaction, error) {
	repo := s.repomanager.Transactions(s.db)
	return repo.ListByOwner(ctx, ownerID)
}

// ListByMonth returns the owner's entries created inside one calendar month.
func (s *TransactionService) ListByMonth(ctx context.Context, ownerID string, year, month int) ([]*models.Transaction, error) {
	if err := validateMonth(year, month); err != nil {
		return nil, err
	}
	from, to := monthWindow(year, month)
	repo := s.repomanager.Transactions(s.db)
	return repo.ListByOwnerBetween(ctx, ownerID, from, to)
}

// ListByExactDay returns the owner's entries for one calendar day. Plain
// entries match by creation date; fixed-expense entries additionally have to
// recur on that day of the month.
func (s *TransactionService) ListByExactDay(ctx context.Context, ownerID string, day, month, year int) ([]*models.Transaction, error) {
	if err := validateDate(year, month, day); err != nil {
		return nil, err
	}
	from, to := dayWindow(year, month, day)
	repo := s.repomanager.Transactions(s.db)
	return repo.ListByOwnerDay(ctx, ownerID, day, from, to)
}

// Balance aggregates the owner's whole ledger.
func (s *TransactionService) Balance(ctx context.Context, ownerID string) (*BalanceReport, error) {
	repo := s.repomanager.Transactions(s.db)
	income, expense, err := repo.SumByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return &BalanceReport{Income: income, Expense: expense, Balance: income.Sub(expense)}, nil
}

// BalanceByMonth aggregates the owner's entries created inside one calendar
// month.
func (s *TransactionService) BalanceByMonth(ctx context.Context, ownerID string, year, month int) (*BalanceReport, error) {
	if err := validateMonth(year, month); err != nil {
		return nil, err
	}
	from, to := monthWindow(year, month)
	repo := s.repomanager.Transactions(s.db)
	income, expense, err := repo.SumByOwnerBetween(ctx, ownerID, from, to)
	if err != nil {
		return nil, err
	}
	return &BalanceReport{Income: income, Expense: expense, Balance: income.Sub(expense)}, nil
}

// SearchByOwnerName is the administrative lookup: every active account whose
// name matches the pattern, each paired with its full ledger. No match at all
// is reported as not found.
func (s *TransactionService) SearchByOwnerName(ctx context.Context, pattern string) ([]*OwnerTransactions, error) {
	if pattern == "" {
		return nil, fmt.Errorf("%w: name is required", common.ErrValidation)
	}

	usersRepo := s.repomanager.Users(s.db)
	owners, err := usersRepo.SearchByName(ctx, pattern)
	if err != nil {
		return nil, err
	}
	if len(owners) == 0 {
		return nil, common.ErrNotFound
	}

	txRepo := s.repomanager.Transactions(s.db)
	result := make([]*OwnerTransactions, 0, len(owners))
	for _, owner := range owners {
		entries, err := txRepo.ListByOwner(ctx, owner.ID)
		if err != nil {
			return nil, err
		}
		result = append(result, &OwnerTransactions{Owner: owner, Transactions: entries})
	}
	return result, nil
}
