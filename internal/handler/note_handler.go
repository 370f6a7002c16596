package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/notekeeper/internal/middleware"
	"github.com/hitoshi/notekeeper/internal/model"
)

// NoteServiceInterface はメモハンドラーが必要とするサービスインターフェース。
type NoteServiceInterface interface {
	List(ctx context.Context, userID string) ([]*model.Note, error)
	Create(ctx context.Context, userID, content string) (*model.Note, error)
	Delete(ctx context.Context, userID, noteID string) error
}

// NoteHandler はメモ管理のHTTPハンドラー。
// 全てのエンドポイントは認証ミドルウェアの内側に配置する。
type NoteHandler struct {
	service NoteServiceInterface
}

// NewNoteHandler はNoteHandlerを生成する。
func NewNoteHandler(service NoteServiceInterface) *NoteHandler {
	return &NoteHandler{service: service}
}

type createNoteRequest struct {
	Content string `json:"content"`
}

// noteResponse はメモのAPIレスポンス。
type noteResponse struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type listNotesResponse struct {
	Notes []noteResponse `json:"notes"`
}

type createNoteResponse struct {
	Note noteResponse `json:"note"`
}

// ListNotes はログインユーザーのメモを新しい順に返す。
// GET /notes
func (h *NoteHandler) ListNotes(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	notes, err := h.service.List(r.Context(), userID)
	if err != nil {
		middleware.WriteAPIError(w, err)
		return
	}

	resp := listNotesResponse{Notes: make([]noteResponse, 0, len(notes))}
	for _, n := range notes {
		resp.Notes = append(resp.Notes, toNoteResponse(n))
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateNote はメモを作成する。
// POST /notes
func (h *NoteHandler) CreateNote(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req createNoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	n, err := h.service.Create(r.Context(), userID, req.Content)
	if err != nil {
		middleware.WriteAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, createNoteResponse{Note: toNoteResponse(n)})
}

// DeleteNote はメモを削除する。
// 他人のメモや存在しないIDでも"Note deleted"を返す。
// DELETE /notes/{id}
func (h *NoteHandler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		middleware.WriteAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Note deleted"})
}

// requireUserID は認証ミドルウェアが設定したユーザーIDを取り出す。
// 取り出せない場合は401を書き込んでfalseを返す。
func requireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteAPIError(w, model.NewUnauthorizedError())
		return "", false
	}
	return userID, true
}

func toNoteResponse(n *model.Note) noteResponse {
	return noteResponse{
		ID:        n.ID,
		Content:   n.Content,
		CreatedAt: n.CreatedAt,
	}
}
