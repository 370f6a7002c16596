// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/notekeeper/internal/model"
	"github.com/hitoshi/notekeeper/internal/session"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// claimsContextKey はリクエストコンテキストにトークンのclaimsを格納するためのキー。
var claimsContextKey = contextKey("claims")

// TokenVerifier はセッショントークンの検証に必要なインターフェース。
type TokenVerifier interface {
	Verify(token string) (*session.Claims, error)
}

// NewBearerAuthMiddleware はAuthorizationヘッダーのBearerトークンを検証するミドルウェアを返す。
// ヘッダーがない場合は401、トークンが不正・期限切れの場合は403を返す。
// 検証済みのclaimsをリクエストコンテキストに注入する。
func NewBearerAuthMiddleware(verifier TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				WriteAPIError(w, model.NewUnauthorizedError())
				return
			}

			token := bearerToken(header)
			claims, err := verifier.Verify(token)
			if err != nil {
				level := slog.LevelInfo
				if !errors.Is(err, session.ErrExpiredToken) {
					level = slog.LevelWarn
				}
				slog.Log(r.Context(), level, "token rejected",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				WriteAPIError(w, model.NewInvalidTokenError())
				return
			}

			if holder, ok := r.Context().Value(requestUserContextKey).(*requestUser); ok {
				holder.id = claims.ID
			}
			next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
		})
	}
}

// bearerToken は"Bearer <token>"形式からトークン部分を取り出す。
// スキームが省略されている場合はヘッダー値全体をトークンとして扱う。
func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	scheme, token, found := strings.Cut(header, " ")
	if found && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return header
}

// ClaimsFromContext はリクエストコンテキストからトークンのclaimsを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func ClaimsFromContext(ctx context.Context) (*session.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*session.Claims)
	return claims, ok && claims != nil
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	claims, ok := ClaimsFromContext(ctx)
	if !ok || claims.ID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return claims.ID, nil
}

// ContextWithClaims はコンテキストにclaimsを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithClaims(ctx context.Context, claims *session.Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}
