package users

import (
	"context"

	"github.com/mpereira/finledger/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	Update(ctx context.Context, user *models.User) (*models.User, error)
	Deactivate(ctx context.Context, id string) error
	SearchByName(ctx context.Context, pattern string) ([]*models.User, error)
}
