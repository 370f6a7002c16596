package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/notekeeper/internal/model"
)

// PostgresOTPRepo はPostgreSQLを使用したOTPリポジトリ。
type PostgresOTPRepo struct {
	db *sql.DB
}

// NewPostgresOTPRepo はPostgresOTPRepoを生成する。
func NewPostgresOTPRepo(db *sql.DB) *PostgresOTPRepo {
	return &PostgresOTPRepo{db: db}
}

// Replace はユーザーの既存コードを削除し、新しいコードを保存する。
// 削除と挿入を同一トランザクションで行うため、並行するConsumeから
// 「旧コードが消えて新コードがまだ無い」中間状態は見えない。
// 同一ユーザーへの同時発行はuser_idの一意制約とON CONFLICTで後勝ちにする。
func (r *PostgresOTPRepo) Replace(ctx context.Context, otp *model.OTP) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM otps WHERE user_id = $1`,
		otp.UserID,
	); err != nil {
		return fmt.Errorf("failed to delete previous otp: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO otps (user_id, otp, expires_at, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id) DO UPDATE
		 SET otp = EXCLUDED.otp, expires_at = EXCLUDED.expires_at, created_at = EXCLUDED.created_at`,
		otp.UserID, otp.Code, otp.ExpiresAt, otp.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to insert otp: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Consume はuser_idとcodeが一致し、nowの時点で有効なコードを削除する。
// 1文のDELETEで照合と消費を行うため、同じコードでの並行検証は最大1回しか成功しない。
func (r *PostgresOTPRepo) Consume(ctx context.Context, userID, code string, now time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM otps WHERE user_id = $1 AND otp = $2 AND expires_at > $3`,
		userID, code, now,
	)
	if err != nil {
		return false, fmt.Errorf("failed to consume otp: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// compile-time interface check
var _ OTPRepository = (*PostgresOTPRepo)(nil)
