package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/notekeeper/internal/model"
)

const (
	uniqueViolationCode     = "23505"
	usersEmailConstraint    = "users_email_key"
	usersGoogleIDConstraint = "users_google_id_key"
	userColumns             = `id, name, email, google_id, created_at, updated_at`
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// FindByEmail はemailでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

// FindByGoogleID はGoogleのsubjectでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByGoogleID(ctx context.Context, googleID string) (*model.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE google_id = $1`, googleID)
}

// Create はユーザーを作成する。
// 同時サインアップによる重複はINSERT時の一意制約違反で検出する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, google_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		user.ID, user.Name, user.Email, user.GoogleID, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if dup := duplicateError(err); dup != nil {
			return dup
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// LinkGoogleID はemailで特定したユーザーにGoogleのsubjectを紐付ける。
// google_idが未設定（または同じ値）の行のみを更新する。
func (r *PostgresUserRepo) LinkGoogleID(ctx context.Context, email, googleID string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE users SET google_id = $1, updated_at = $3
		 WHERE email = $2 AND (google_id IS NULL OR google_id = $1)
		 RETURNING `+userColumns,
		googleID, email, time.Now(),
	)

	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		if dup := duplicateError(err); dup != nil {
			return nil, dup
		}
		return nil, fmt.Errorf("failed to link google id: %w", err)
	}
	return user, nil
}

func (r *PostgresUserRepo) findOne(ctx context.Context, query string, arg string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

func scanUser(row *sql.Row) (*model.User, error) {
	user := &model.User{}
	var googleID sql.NullString
	if err := row.Scan(&user.ID, &user.Name, &user.Email, &googleID, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return nil, err
	}
	if googleID.Valid {
		user.GoogleID = &googleID.String
	}
	return user, nil
}

// duplicateError はpqの一意制約違反をリポジトリのエラーに変換する。
// 一意制約違反でなければnilを返す。
func duplicateError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolationCode {
		return nil
	}
	switch pqErr.Constraint {
	case usersEmailConstraint:
		return ErrDuplicateEmail
	case usersGoogleIDConstraint:
		return ErrDuplicateGoogleID
	default:
		return nil
	}
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
