// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/notekeeper/internal/auth"
	"github.com/hitoshi/notekeeper/internal/middleware"
	"github.com/hitoshi/notekeeper/internal/model"
)

const oauthStateCookie = "oauth_state"

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	RequestSignup(ctx context.Context, name, email string) error
	RequestLogin(ctx context.Context, email string) error
	VerifyOTP(ctx context.Context, email, code string) (*auth.Result, error)
	LoginURL(state string) string
	HandleCallback(ctx context.Context, code string) (*auth.Result, error)
}

// StateIssuer はOAuthのstate値を発行・検証するインターフェース。
type StateIssuer interface {
	Issue() (string, error)
	Verify(state, cookieValue string) error
	TTL() time.Duration
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	FrontendURL  string // Googleログイン後のリダイレクト先
	CookieSecure bool
}

// AuthHandler はOTPとGoogleログインのHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	states  StateIssuer
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, states StateIssuer, config AuthHandlerConfig) *AuthHandler {
	config.FrontendURL = strings.TrimRight(config.FrontendURL, "/")
	return &AuthHandler{
		service: service,
		states:  states,
		config:  config,
	}
}

type requestOTPRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type loginCheckRequest struct {
	Email string `json:"email"`
}

type verifyOTPRequest struct {
	Email string  `json:"email"`
	OTP   otpCode `json:"otp"`
}

// otpCode はJSONの文字列と数値のどちらでも受け付けるOTP値。
// 6桁のコードは先頭が0にならないため、数値で送られても桁は失われない。
type otpCode string

func (c *otpCode) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = otpCode(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	if _, err := strconv.ParseUint(n.String(), 10, 64); err != nil {
		return fmt.Errorf("otp must be an integer: %w", err)
	}
	*c = otpCode(n.String())
	return nil
}

type messageResponse struct {
	Message string `json:"message"`
}

type verifyOTPResponse struct {
	Message string           `json:"message"`
	Token   string           `json:"token"`
	User    model.PublicUser `json:"user"`
}

// RequestOTP は新規ユーザーを登録し、OTPを送信する。
// POST /auth/request-otp
func (h *AuthHandler) RequestOTP(w http.ResponseWriter, r *http.Request) {
	var req requestOTPRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.service.RequestSignup(r.Context(), req.Name, req.Email); err != nil {
		middleware.WriteAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "OTP sent successfully"})
}

// LoginCheck は登録済みユーザーにOTPを送信する。
// POST /auth/login-check
func (h *AuthHandler) LoginCheck(w http.ResponseWriter, r *http.Request) {
	var req loginCheckRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.service.RequestLogin(r.Context(), req.Email); err != nil {
		middleware.WriteAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "OTP sent successfully"})
}

// VerifyOTP はOTPを検証し、セッショントークンを返す。
// POST /auth/verify-otp
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.service.VerifyOTP(r.Context(), req.Email, string(req.OTP))
	if err != nil {
		middleware.WriteAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, verifyOTPResponse{
		Message: "OTP verified successfully",
		Token:   result.Token,
		User:    result.User,
	})
}

// GoogleLogin はGoogle OAuthフローを開始する。
// GET /auth/google
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	state, err := h.states.Issue()
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to generate oauth state", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	// stateをCookieにも保存し、コールバックで突き合わせる（CSRF対策）
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/auth/google",
		MaxAge:   int(h.states.TTL().Seconds()),
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.service.LoginURL(state), http.StatusTemporaryRedirect)
}

// GoogleCallback はOAuthコールバックを処理する。
// 成功時はトークンとユーザー情報をクエリに付けてフロントエンドへ、
// 失敗時は理由を問わずログイン画面へリダイレクトする。
// GET /auth/google/callback?code=xxx&state=yyy
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var cookieValue string
	if c, err := r.Cookie(oauthStateCookie); err == nil {
		cookieValue = c.Value
	}
	h.clearStateCookie(w)

	if providerErr := query.Get("error"); providerErr != "" {
		slog.WarnContext(r.Context(), "oauth provider returned error", slog.String("error", providerErr))
		h.redirectFailure(w, r)
		return
	}

	if err := h.states.Verify(query.Get("state"), cookieValue); err != nil {
		slog.WarnContext(r.Context(), "oauth state mismatch", slog.String("error", err.Error()))
		h.redirectFailure(w, r)
		return
	}

	code := query.Get("code")
	if code == "" {
		slog.WarnContext(r.Context(), "missing authorization code")
		h.redirectFailure(w, r)
		return
	}

	result, err := h.service.HandleCallback(r.Context(), code)
	if err != nil {
		slog.ErrorContext(r.Context(), "oauth callback failed", slog.String("error", err.Error()))
		h.redirectFailure(w, r)
		return
	}

	params := url.Values{}
	params.Set("token", result.Token)
	params.Set("name", result.User.Name)
	params.Set("email", result.User.Email)
	http.Redirect(w, r, h.config.FrontendURL+"/?"+params.Encode(), http.StatusTemporaryRedirect)
}

func (h *AuthHandler) redirectFailure(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.config.FrontendURL+"/login?error=google", http.StatusTemporaryRedirect)
}

func (h *AuthHandler) clearStateCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/auth/google",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// decodeJSON はリクエストボディをデコードする。
// 失敗した場合は400を書き込んでfalseを返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
