package transactions

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mpereira/finledger/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, tx *models.Transaction) (*models.Transaction, error)
	Update(ctx context.Context, tx *models.Transaction) (*models.Transaction, error)
	Delete(ctx context.Context, id, ownerID string) error
	GetByID(ctx context.Context, id string) (*models.Transaction, error)
	GetByIDForOwner(ctx context.Context, id, ownerID string) (*models.Transaction, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.Transaction, error)
	ListByOwnerBetween(ctx context.Context, ownerID string, from, to time.Time) ([]*models.Transaction, error)
	ListByOwnerDay(ctx context.Context, ownerID string, day int, from, to time.Time) ([]*models.Transaction, error)
	SumByOwner(ctx context.Context, ownerID string) (income, expense decimal.Decimal, err error)
	SumByOwnerBetween(ctx context.Context, ownerID string, from, to time.Time) (income, expense decimal.Decimal, err error)
	ListRecurringByDay(ctx context.Context, day int) ([]*models.Transaction, error)
	CreateMaterialized(ctx context.Context, tx *models.Transaction) (bool, error)
}
