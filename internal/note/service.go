// Package note はユーザーごとのメモ管理のドメインロジックを提供する。
package note

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/notekeeper/internal/model"
	"github.com/hitoshi/notekeeper/internal/repository"
)

// MaxContentLength はメモ本文の最大文字数。
const MaxContentLength = 10000

// Service はメモの一覧・作成・削除を提供する。
// 全ての操作はトークンから得たユーザーIDにスコープされる。
type Service struct {
	repo repository.NoteRepository
	now  func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.NoteRepository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// List はユーザーのメモを新しい順に返す。
func (s *Service) List(ctx context.Context, userID string) ([]*model.Note, error) {
	notes, err := s.repo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, model.NewStoreError(fmt.Errorf("failed to list notes: %w", err))
	}
	return notes, nil
}

// Create は受け取った本文をそのままメモとして保存する。
// 本文は加工しない。表示時のエスケープはクライアントの責務。
// 空白のみの本文は"Content is required"を返す。
func (s *Service) Create(ctx context.Context, userID, content string) (*model.Note, error) {
	if strings.TrimSpace(content) == "" {
		return nil, model.NewValidationError("Content is required")
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return nil, model.NewValidationError(fmt.Sprintf("Content must be at most %d characters", MaxContentLength))
	}

	n := &model.Note{
		ID:        uuid.New().String(),
		UserID:    userID,
		Content:   content,
		CreatedAt: s.now(),
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, model.NewStoreError(fmt.Errorf("failed to create note: %w", err))
	}

	slog.InfoContext(ctx, "note created",
		slog.String("user_id", userID),
		slog.String("note_id", n.ID),
	)
	return n, nil
}

// Delete はユーザー自身のメモを削除する。
// 存在しないID、他人のメモ、UUIDとして不正なIDはいずれも何もせず成功とする。
func (s *Service) Delete(ctx context.Context, userID, noteID string) error {
	if _, err := uuid.Parse(noteID); err != nil {
		return nil
	}
	if err := s.repo.DeleteByIDAndUserID(ctx, noteID, userID); err != nil {
		return model.NewStoreError(fmt.Errorf("failed to delete note: %w", err))
	}
	return nil
}
