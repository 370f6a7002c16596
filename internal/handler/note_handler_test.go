package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/notekeeper/internal/middleware"
	"github.com/hitoshi/notekeeper/internal/model"
	"github.com/hitoshi/notekeeper/internal/session"
)

// --- モック定義 ---

type mockNoteService struct {
	listFn   func(ctx context.Context, userID string) ([]*model.Note, error)
	createFn func(ctx context.Context, userID, content string) (*model.Note, error)
	deleteFn func(ctx context.Context, userID, noteID string) error
}

func (m *mockNoteService) List(ctx context.Context, userID string) ([]*model.Note, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockNoteService) Create(ctx context.Context, userID, content string) (*model.Note, error) {
	if m.createFn != nil {
		return m.createFn(ctx, userID, content)
	}
	return &model.Note{ID: "note-1", UserID: userID, Content: content}, nil
}

func (m *mockNoteService) Delete(ctx context.Context, userID, noteID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID, noteID)
	}
	return nil
}

var _ NoteServiceInterface = (*mockNoteService)(nil)

// withUserID はテスト用にリクエストコンテキストへトークンのclaimsを注入するヘルパー。
func withUserID(r *http.Request, userID string) *http.Request {
	ctx := middleware.ContextWithClaims(r.Context(), &session.Claims{ID: userID})
	return r.WithContext(ctx)
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// --- テスト ---

func TestNoteHandler_ListNotes(t *testing.T) {
	created := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	var gotUserID string
	svc := &mockNoteService{
		listFn: func(_ context.Context, userID string) ([]*model.Note, error) {
			gotUserID = userID
			return []*model.Note{
				{ID: "note-2", UserID: userID, Content: "newer", CreatedAt: created.Add(time.Minute)},
				{ID: "note-1", UserID: userID, Content: "older", CreatedAt: created},
			}, nil
		},
	}
	h := NewNoteHandler(svc)

	w := httptest.NewRecorder()
	h.ListNotes(w, withUserID(httptest.NewRequest(http.MethodGet, "/notes", nil), "user-1"))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotUserID != "user-1" {
		t.Errorf("userID = %q, want user-1", gotUserID)
	}

	notes, ok := decodeBody(t, w)["notes"].([]interface{})
	if !ok || len(notes) != 2 {
		t.Fatalf("notes = %v, want 2 entries", notes)
	}
	first := notes[0].(map[string]interface{})
	if first["id"] != "note-2" || first["content"] != "newer" {
		t.Errorf("first note = %v", first)
	}
	if first["created_at"] != "2026-10-19T09:01:00Z" {
		t.Errorf("created_at = %v", first["created_at"])
	}
	if _, leaked := first["user_id"]; leaked {
		t.Error("user_id should not be exposed")
	}
}

func TestNoteHandler_ListNotes_EmptyIsArray(t *testing.T) {
	h := NewNoteHandler(&mockNoteService{})

	w := httptest.NewRecorder()
	h.ListNotes(w, withUserID(httptest.NewRequest(http.MethodGet, "/notes", nil), "user-1"))

	if got := w.Body.String(); got != "{\"notes\":[]}\n" {
		t.Errorf("body = %q, want empty array", got)
	}
}

func TestNoteHandler_CreateNote(t *testing.T) {
	var gotContent string
	svc := &mockNoteService{
		createFn: func(_ context.Context, userID, content string) (*model.Note, error) {
			gotContent = content
			return &model.Note{ID: "note-1", UserID: userID, Content: content, CreatedAt: time.Now()}, nil
		},
	}
	h := NewNoteHandler(svc)

	w := httptest.NewRecorder()
	h.CreateNote(w, withUserID(postJSON("/notes", `{"content":"buy milk"}`), "user-1"))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotContent != "buy milk" {
		t.Errorf("content = %q", gotContent)
	}
	note, ok := decodeBody(t, w)["note"].(map[string]interface{})
	if !ok || note["id"] != "note-1" || note["content"] != "buy milk" {
		t.Errorf("note = %v", note)
	}
}

func TestNoteHandler_CreateNote_ContentRequired(t *testing.T) {
	svc := &mockNoteService{
		createFn: func(context.Context, string, string) (*model.Note, error) {
			return nil, model.NewValidationError("Content is required")
		},
	}
	h := NewNoteHandler(svc)

	w := httptest.NewRecorder()
	h.CreateNote(w, withUserID(postJSON("/notes", `{"content":""}`), "user-1"))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if got := decodeBody(t, w)["error"]; got != "Content is required" {
		t.Errorf("error = %v", got)
	}
}

func TestNoteHandler_CreateNote_MalformedJSON(t *testing.T) {
	called := false
	svc := &mockNoteService{
		createFn: func(context.Context, string, string) (*model.Note, error) {
			called = true
			return nil, nil
		},
	}
	h := NewNoteHandler(svc)

	w := httptest.NewRecorder()
	h.CreateNote(w, withUserID(postJSON("/notes", `{invalid`), "user-1"))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if called {
		t.Error("service must not be called for malformed body")
	}
}

func TestNoteHandler_DeleteNote(t *testing.T) {
	var gotUser, gotID string
	svc := &mockNoteService{
		deleteFn: func(_ context.Context, userID, noteID string) error {
			gotUser, gotID = userID, noteID
			return nil
		},
	}
	h := NewNoteHandler(svc)

	req := httptest.NewRequest(http.MethodDelete, "/notes/note-1", nil)
	req = withChiURLParam(withUserID(req, "user-1"), "id", "note-1")
	w := httptest.NewRecorder()
	h.DeleteNote(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotUser != "user-1" || gotID != "note-1" {
		t.Errorf("Delete called with (%q, %q)", gotUser, gotID)
	}
	if msg := decodeBody(t, w)["message"]; msg != "Note deleted" {
		t.Errorf("message = %v", msg)
	}
}

func TestNoteHandler_StoreError_Returns500(t *testing.T) {
	svc := &mockNoteService{
		listFn: func(context.Context, string) ([]*model.Note, error) {
			return nil, model.NewStoreError(errors.New("connection refused"))
		},
	}
	h := NewNoteHandler(svc)

	w := httptest.NewRecorder()
	h.ListNotes(w, withUserID(httptest.NewRequest(http.MethodGet, "/notes", nil), "user-1"))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	if got := decodeBody(t, w)["error"]; got != "Server error" {
		t.Errorf("error = %v, must not leak cause", got)
	}
}

func TestNoteHandler_NoClaims_Returns401(t *testing.T) {
	h := NewNoteHandler(&mockNoteService{})

	w := httptest.NewRecorder()
	h.ListNotes(w, httptest.NewRequest(http.MethodGet, "/notes", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}
