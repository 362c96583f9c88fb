package repository

import (
	"context"
	"errors"

	"github.com/vibely/account-service/internal/domain/entity"
)

// ErrNotFound is returned when no user matches the lookup.
// ErrDuplicate is returned when a unique constraint (email, username) rejects a write;
// the database constraint is the authoritative guard against register races.
var (
	ErrNotFound  = errors.New("user not found")
	ErrDuplicate = errors.New("email or username already exists")
)

// UserRepository defines the interface for user-related database operations.
type UserRepository interface {
	Create(ctx context.Context, u *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	// GetByEmailOrUsername is the fast-path existence check used by register.
	GetByEmailOrUsername(ctx context.Context, email, username string) (*entity.User, error)
	Update(ctx context.Context, u *entity.User) error
	UpdatePassword(ctx context.Context, id, hash string) error
	// AddFollowCounts applies follower/following deltas atomically in the store,
	// clamping both counts at zero, and returns the resulting user.
	AddFollowCounts(ctx context.Context, id string, followers, following int) (*entity.User, error)
	// Search matches q case-insensitively as a substring of username, name and
	// email, ordered by followers descending. q == "" matches all records.
	Search(ctx context.Context, q string, limit, offset int) ([]*entity.User, int, error)
}
