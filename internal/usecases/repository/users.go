package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	tx "github.com/Thiht/transactor/pgx"
	"github.com/jackc/pgx/v5"

	"github.com/sand/digiseba/backend/internal/entities"
	"github.com/sand/digiseba/backend/pkg/database"
)

const userColumns = `id, name, email, phone, role, password_hash, created_at`

type UsersRepository struct {
	logger *slog.Logger
	db     tx.DBGetter
}

func NewUsersRepository(logger *slog.Logger, pg *database.Postgres) *UsersRepository {
	return &UsersRepository{logger: logger, db: pg.DBGetter}
}

func (r *UsersRepository) InsertUser(ctx context.Context, user *entities.User) error {
	err := r.db(ctx).QueryRow(ctx, `
		INSERT INTO users (name, email, phone, role, password_hash)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		user.Name, strings.ToLower(user.Email), user.Phone, user.Role, user.PasswordHash,
	).Scan(&user.ID, &user.CreatedAt)
	if isUniqueViolation(err, "users_email_key") {
		return entities.ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (r *UsersRepository) FindUserByID(ctx context.Context, id int64) (*entities.User, error) {
	return r.findOne(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id)
}

func (r *UsersRepository) FindUserByEmail(ctx context.Context, email string) (*entities.User, error) {
	return r.findOne(ctx, "SELECT "+userColumns+" FROM users WHERE email = $1", strings.ToLower(email))
}

func (r *UsersRepository) findOne(ctx context.Context, query string, args ...any) (*entities.User, error) {
	rows, err := r.db(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	user, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[entities.User])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to collect user: %w", err)
	}
	return &user, nil
}

func (r *UsersRepository) ListUsers(ctx context.Context, offset, limit int) ([]entities.User, int, error) {
	var total int
	if err := r.db(ctx).QueryRow(ctx, "SELECT COUNT(*) FROM users").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	query := psql.Select(userColumns).From("users").OrderBy("id ASC").Offset(uint64(offset))
	if limit > 0 {
		query = query.Limit(uint64(limit))
	}
	sql, args, err := query.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build users query: %w", err)
	}

	rows, err := r.db(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query users: %w", err)
	}

	users, err := pgx.CollectRows(rows, pgx.RowToStructByName[entities.User])
	if err != nil {
		r.logger.Error("failed to collect user rows", "error", err)
		return nil, 0, err
	}
	return users, total, nil
}

func (r *UsersRepository) UserNames(ctx context.Context) (map[int64]string, error) {
	rows, err := r.db(ctx).Query(ctx, "SELECT id, name FROM users")
	if err != nil {
		return nil, fmt.Errorf("failed to query user names: %w", err)
	}
	defer rows.Close()

	names := make(map[int64]string)
	for rows.Next() {
		var (
			id   int64
			name string
		)
		if err = rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("failed to scan user name: %w", err)
		}
		names[id] = name
	}
	return names, rows.Err()
}
