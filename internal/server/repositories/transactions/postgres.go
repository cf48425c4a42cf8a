// Package transactions provides the PostgreSQL-backed repository for ledger
// entries. Every owner-facing write carries a compound id+owner filter, so
// cross-tenant isolation is enforced by the query itself rather than by a
// separate check.
package transactions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mpereira/finledger/internal/common"
	"github.com/mpereira/finledger/internal/dbx"
	"github.com/mpereira/finledger/internal/server/models"
)

// PostgresRepository implements ledger storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const txColumns = `id, amount, description, type, recurrence_day, owner_id, active, source_id, materialized_on, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	t := &models.Transaction{}
	var recurrenceDay sql.NullInt64
	var sourceID sql.NullString
	var materializedOn sql.NullTime

	err := row.Scan(&t.ID, &t.Amount, &t.Description, &t.Type, &recurrenceDay,
		&t.OwnerID, &t.Active, &sourceID, &materializedOn, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if recurrenceDay.Valid {
		day := int(recurrenceDay.Int64)
		t.RecurrenceDay = &day
	}
	if sourceID.Valid {
		t.SourceID = &sourceID.String
	}
	if materializedOn.Valid {
		t.MaterializedOn = &materializedOn.Time
	}
	return t, nil
}

func nullableDay(day *int) any {
	if day == nil {
		return nil
	}
	return *day
}

// Create inserts a new ledger entry and returns it with its generated id and
// timestamps.
func (r *PostgresRepository) Create(ctx context.Context, tx *models.Transaction) (*models.Transaction, error) {
	query :=
		`INSERT INTO transactions (amount, description, type, recurrence_day, owner_id, active)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		tx.Amount, tx.Description, tx.Type, nullableDay(tx.RecurrenceDay), tx.OwnerID, tx.Active).
		Scan(&tx.ID, &tx.CreatedAt, &tx.UpdatedAt)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return tx, nil
}

// Update replaces the mutable fields of an entry matched by id AND owner.
// A mismatched owner reports common.ErrNotFound, never another owner's data.
func (r *PostgresRepository) Update(ctx context.Context, tx *models.Transaction) (*models.Transaction, error) {
	query :=
		`UPDATE transactions
		 SET amount = $1, description = $2, type = $3, recurrence_day = $4, updated_at = now()
		 WHERE id = $5 AND owner_id = $6 AND active = TRUE
		 RETURNING created_at, updated_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		tx.Amount, tx.Description, tx.Type, nullableDay(tx.RecurrenceDay), tx.ID, tx.OwnerID).
		Scan(&tx.CreatedAt, &tx.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return tx, nil
}

// Delete soft-deletes an entry matched by id AND owner.
func (r *PostgresRepository) Delete(ctx context.Context, id, ownerID string) error {
	query :=
		`UPDATE transactions SET active = FALSE, updated_at = now()
		 WHERE id = $1 AND owner_id = $2 AND active = TRUE
		 `

	res, err := r.db.ExecContext(ctx, query, id, ownerID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}

	return nil
}

// GetByID returns a single active entry regardless of owner.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Transaction, error) {
	query :=
		`SELECT ` + txColumns + ` FROM transactions
		 WHERE id = $1 AND active = TRUE
		 `

	t, err := scanTransaction(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return t, nil
}

// GetByIDForOwner returns a single active entry matched by id AND owner.
func (r *PostgresRepository) GetByIDForOwner(ctx context.Context, id, ownerID string) (*models.Transaction, error) {
	query :=
		`SELECT ` + txColumns + ` FROM transactions
		 WHERE id = $1 AND owner_id = $2 AND active = TRUE
		 `

	t, err := scanTransaction(r.db.QueryRowContext(ctx, query, id, ownerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return t, nil
}

func (r *PostgresRepository) queryList(ctx context.Context, query string, args ...any) ([]*models.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ListByOwner returns all active entries of one owner, newest first.
func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.Transaction, error) {
	query :=
		`SELECT ` + txColumns + ` FROM transactions
		 WHERE owner_id = $1 AND active = TRUE
		 ORDER BY created_at DESC
		 `

	return r.queryList(ctx, query, ownerID)
}

// ListByOwnerBetween returns active entries of one owner whose creation time
// lies in [from, to], boundaries inclusive.
func (r *PostgresRepository) ListByOwnerBetween(ctx context.Context, ownerID string, from, to time.Time) ([]*models.Transaction, error) {
	query :=
		`SELECT ` + txColumns + ` FROM transactions
		 WHERE owner_id = $1 AND active = TRUE AND created_at BETWEEN $2 AND $3
		 ORDER BY created_at DESC
		 `

	return r.queryList(ctx, query, ownerID, from, to)
}

// ListByOwnerDay returns active entries of one owner inside a single-day
// window. Fixed-expense rows additionally have to recur on that day.
func (r *PostgresRepository) ListByOwnerDay(ctx context.Context, ownerID string, day int, from, to time.Time) ([]*models.Transaction, error) {
	query :=
		`SELECT ` + txColumns + ` FROM transactions
		 WHERE owner_id = $1 AND active = TRUE AND created_at BETWEEN $2 AND $3
		   AND (type <> 'fixed-expense' OR recurrence_day = $4)
		 ORDER BY created_at DESC
		 `

	return r.queryList(ctx, query, ownerID, from, to, day)
}

func (r *PostgresRepository) scanSums(row *sql.Row) (decimal.Decimal, decimal.Decimal, error) {
	var income, expense decimal.Decimal
	if err := row.Scan(&income, &expense); err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("db error: %w", err)
	}
	return income, expense, nil
}

// SumByOwner aggregates the signed sum of all active entries of one owner.
// Income counts type=income; expense counts expense and fixed-expense.
func (r *PostgresRepository) SumByOwner(ctx context.Context, ownerID string) (decimal.Decimal, decimal.Decimal, error) {
	query :=
		`SELECT COALESCE(SUM(amount) FILTER (WHERE type = 'income'), 0),
		        COALESCE(SUM(amount) FILTER (WHERE type IN ('expense', 'fixed-expense')), 0)
		 FROM transactions
		 WHERE owner_id = $1 AND active = TRUE
		 `

	return r.scanSums(r.db.QueryRowContext(ctx, query, ownerID))
}

// SumByOwnerBetween is SumByOwner restricted to a creation-time window.
func (r *PostgresRepository) SumByOwnerBetween(ctx context.Context, ownerID string, from, to time.Time) (decimal.Decimal, decimal.Decimal, error) {
	query :=
		`SELECT COALESCE(SUM(amount) FILTER (WHERE type = 'income'), 0),
		        COALESCE(SUM(amount) FILTER (WHERE type IN ('expense', 'fixed-expense')), 0)
		 FROM transactions
		 WHERE owner_id = $1 AND active = TRUE AND created_at BETWEEN $2 AND $3
		 `

	return r.scanSums(r.db.QueryRowContext(ctx, query, ownerID, from, to))
}

// ListRecurringByDay returns every active entry, across all owners, whose
// recurrence day equals the given calendar day. This global sweep feeds the
// materializer.
func (r *PostgresRepository) ListRecurringByDay(ctx context.Context, day int) ([]*models.Transaction, error) {
	query :=
		`SELECT ` + txColumns + ` FROM transactions
		 WHERE active = TRUE AND recurrence_day = $1
		 ORDER BY created_at
		 `

	return r.queryList(ctx, query, day)
}

// CreateMaterialized inserts a clone produced by the recurrence sweep. The
// (source_id, materialized_on) key dedupes repeated sweeps of the same day:
// the insert is a no-op when a clone already exists, reported as inserted=false.
func (r *PostgresRepository) CreateMaterialized(ctx context.Context, tx *models.Transaction) (bool, error) {
	query :=
		`INSERT INTO transactions (amount, description, type, owner_id, active, source_id, materialized_on)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (source_id, materialized_on) WHERE source_id IS NOT NULL DO NOTHING
		 `

	res, err := r.db.ExecContext(ctx, query,
		tx.Amount, tx.Description, tx.Type, tx.OwnerID, tx.Active, tx.SourceID, tx.MaterializedOn)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}

	return n == 1, nil
}
