package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"smarttrack/internal/common"
	"smarttrack/internal/domain/model"

	"github.com/jackc/pgx/v5/pgconn"
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByRefreshToken(ctx context.Context, refreshToken string) (*model.User, error)
	Update(ctx context.Context, user *model.User) error
	UpdateRefreshToken(ctx context.Context, userID, refreshToken string) error
	UpdatePassword(ctx context.Context, userID, hashedPassword string) error
}

type pgUserRepository struct {
	db *sql.DB
}

func NewPgUserRepository(db *sql.DB) UserRepository {
	return &pgUserRepository{db: db}
}

const userColumns = `id, name, email, hashed_password, role, skills, COALESCE(refresh_token, ''), created_at, updated_at`

func (r *pgUserRepository) Create(ctx context.Context, user *model.User) error {
	skills, err := json.Marshal(user.Skills)
	if err != nil {
		return fmt.Errorf("pgUserRepository.Create marshal skills: %w", err)
	}
	query := `INSERT INTO users (id, name, email, hashed_password, role, skills)
	          VALUES ($1, $2, $3, $4, $5, $6)`
	_, err = r.db.ExecContext(ctx, query, user.ID, user.Name, user.Email, user.HashedPassword, user.Role, skills)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // Unique constraint violation
			return fmt.Errorf("user with given email already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgUserRepository.Create: %w", err)
	}
	return nil
}

func (r *pgUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.scanUser(r.db.QueryRowContext(ctx, query, email), "FindByEmail")
}

func (r *pgUserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanUser(r.db.QueryRowContext(ctx, query, id), "FindByID")
}

func (r *pgUserRepository) FindByRefreshToken(ctx context.Context, refreshToken string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE refresh_token = $1`
	return r.scanUser(r.db.QueryRowContext(ctx, query, refreshToken), "FindByRefreshToken")
}

func (r *pgUserRepository) Update(ctx context.Context, user *model.User) error {
	skills, err := json.Marshal(user.Skills)
	if err != nil {
		return fmt.Errorf("pgUserRepository.Update marshal skills: %w", err)
	}
	query := `UPDATE users SET name = $1, email = $2, skills = $3, updated_at = CURRENT_TIMESTAMP
	          WHERE id = $4`
	_, err = r.db.ExecContext(ctx, query, user.Name, user.Email, skills, user.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("user with given email already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgUserRepository.Update: %w", err)
	}
	return nil
}

// UpdateRefreshToken overwrites the stored refresh token. An empty value
// clears it, which is how logout revokes the session.
func (r *pgUserRepository) UpdateRefreshToken(ctx context.Context, userID, refreshToken string) error {
	query := `UPDATE users SET refresh_token = NULLIF($1, ''), updated_at = CURRENT_TIMESTAMP WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, refreshToken, userID)
	if err != nil {
		return fmt.Errorf("pgUserRepository.UpdateRefreshToken: %w", err)
	}
	return nil
}

func (r *pgUserRepository) UpdatePassword(ctx context.Context, userID, hashedPassword string) error {
	query := `UPDATE users SET hashed_password = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, hashedPassword, userID)
	if err != nil {
		return fmt.Errorf("pgUserRepository.UpdatePassword: %w", err)
	}
	return nil
}

func (r *pgUserRepository) scanUser(row *sql.Row, op string) (*model.User, error) {
	user := &model.User{}
	var skills []byte
	err := row.Scan(
		&user.ID, &user.Name, &user.Email, &user.HashedPassword, &user.Role,
		&skills, &user.RefreshToken, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgUserRepository.%s: %w", op, err)
	}
	if len(skills) > 0 {
		if err := json.Unmarshal(skills, &user.Skills); err != nil {
			return nil, fmt.Errorf("pgUserRepository.%s unmarshal skills: %w", op, err)
		}
	}
	if user.Skills == nil {
		user.Skills = []string{}
	}
	return user, nil
}
