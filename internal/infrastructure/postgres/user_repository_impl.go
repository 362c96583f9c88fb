package postgres

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vibely/account-service/internal/domain/entity"
	"github.com/vibely/account-service/internal/domain/repository"
)

const uniqueViolation = "23505"

const userColumns = `id, email, username, password_hash, name, bio, dob,
		profile_img_url, banner_img_url, followers, following,
		is_verified, is_content_creator, is_dating, created_at, updated_at`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func scanUser(row pgx.Row) (*entity.User, error) {
	u := &entity.User{}
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.Name, &u.Bio, &u.DOB,
		&u.ProfileImgURL, &u.BannerImgURL, &u.Followers, &u.Following,
		&u.IsVerified, &u.IsContentCreator, &u.IsDating, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

func mapWriteErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return repository.ErrDuplicate
	}
	return err
}

func (r *UserRepository) Create(ctx context.Context, u *entity.User) error {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (id, email, username, password_hash, name, bio, dob,
			profile_img_url, banner_img_url, followers, following,
			is_verified, is_content_creator, is_dating)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at, updated_at
	`, u.ID, u.Email, u.Username, u.PasswordHash, u.Name, u.Bio, u.DOB,
		u.ProfileImgURL, u.BannerImgURL, u.Followers, u.Following,
		u.IsVerified, u.IsContentCreator, u.IsDating)

	if err := row.Scan(&u.CreatedAt, &u.UpdatedAt); err != nil {
		return mapWriteErr(err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1
	`, id))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE email = $1
	`, email))
}

func (r *UserRepository) GetByEmailOrUsername(ctx context.Context, email, username string) (*entity.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE email = $1 OR username = $2
	`, email, username))
}

func (r *UserRepository) Update(ctx context.Context, u *entity.User) error {
	u.UpdatedAt = time.Now().UTC()

	res, err := r.pool.Exec(ctx, `
		UPDATE users
		SET email = $1, username = $2, name = $3, bio = $4, dob = $5,
			profile_img_url = $6, banner_img_url = $7,
			is_verified = $8, is_content_creator = $9, is_dating = $10,
			updated_at = $11
		WHERE id = $12
	`, u.Email, u.Username, u.Name, u.Bio, u.DOB,
		u.ProfileImgURL, u.BannerImgURL,
		u.IsVerified, u.IsContentCreator, u.IsDating,
		u.UpdatedAt, u.ID)
	if err != nil {
		return mapWriteErr(err)
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id, hash string) error {
	res, err := r.pool.Exec(ctx, `
		UPDATE users
		SET password_hash = $1, updated_at = $2
		WHERE id = $3
	`, hash, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// AddFollowCounts increments the counters server-side so concurrent deltas
// cannot lose updates; GREATEST keeps the counts non-negative.
func (r *UserRepository) AddFollowCounts(ctx context.Context, id string, followers, following int) (*entity.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `
		UPDATE users
		SET followers = GREATEST(followers + $1, 0),
			following = GREATEST(following + $2, 0),
			updated_at = $3
		WHERE id = $4
		RETURNING `+userColumns+`
	`, followers, following, time.Now().UTC(), id))
}

func (r *UserRepository) Search(ctx context.Context, q string, limit, offset int) ([]*entity.User, int, error) {
	where := ""
	args := []any{}
	if q != "" {
		where = `WHERE username ILIKE $1 OR name ILIKE $1 OR email ILIKE $1`
		args = append(args, "%"+q+"%")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT ` + userColumns + `
		FROM users ` + where + `
		ORDER BY followers DESC, id ASC
		LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users := make([]*entity.User, 0, limit)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

var _ repository.UserRepository = (*UserRepository)(nil)
