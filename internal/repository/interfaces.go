// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/notekeeper/internal/model"
)

var (
	// ErrNotFound は更新対象の行が存在しないことを表す。
	ErrNotFound = errors.New("repository: not found")
	// ErrDuplicateEmail はusers.emailの一意制約違反を表す。
	ErrDuplicateEmail = errors.New("repository: email already registered")
	// ErrDuplicateGoogleID はusers.google_idの一意制約違反を表す。
	ErrDuplicateGoogleID = errors.New("repository: google id already linked")
)

// UserRepository はユーザー（Identity Store）の永続化インターフェース。
// emailの一意性はDBの一意制約で保証する。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はemailでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindByGoogleID はGoogleのsubjectでユーザーを検索する。見つからない場合はnilを返す。
	FindByGoogleID(ctx context.Context, googleID string) (*model.User, error)

	// Create はユーザーを作成する。
	// emailが登録済みの場合はErrDuplicateEmail、google_idが登録済みの場合はErrDuplicateGoogleIDを返す。
	Create(ctx context.Context, user *model.User) error

	// LinkGoogleID はemailで特定したユーザーにGoogleのsubjectを紐付ける。
	// 該当ユーザーがいない、または別のsubjectが紐付いている場合はErrNotFoundを返す。
	LinkGoogleID(ctx context.Context, email, googleID string) (*model.User, error)
}

// OTPRepository はワンタイムパスコード（OTP Ledger）の永続化インターフェース。
type OTPRepository interface {
	// Replace はユーザーの既存コードを削除し、新しいコードを保存する。
	// 削除と挿入は同一トランザクションで行う。
	Replace(ctx context.Context, otp *model.OTP) error

	// Consume はuser_idとcodeが一致し、nowの時点で有効なコードを削除する。
	// 削除できた場合のみtrueを返す。
	Consume(ctx context.Context, userID, code string, now time.Time) (bool, error)
}

// NoteRepository はメモの永続化インターフェース。
type NoteRepository interface {
	// ListByUserID はユーザーのメモを作成日時の降順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Note, error)

	// Create はメモを作成する。
	Create(ctx context.Context, note *model.Note) error

	// DeleteByIDAndUserID はユーザー自身のメモを削除する。該当なしでもエラーにしない。
	DeleteByIDAndUserID(ctx context.Context, id, userID string) error
}
