// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// MessageはそのままレスポンスのerrorフィールドとしてUIに表示される。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, note, system
	Cause    error  // ログ用の元エラー。レスポンスには含めない
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap は元エラーを返す。
func (e *APIError) Unwrap() error {
	return e.Cause
}

// 定義済みエラーコード
const (
	ErrCodeValidation          = "VALIDATION_ERROR"
	ErrCodeDuplicateUser       = "DUPLICATE_USER"
	ErrCodeUnknownUser         = "UNKNOWN_USER"
	ErrCodeInvalidOrExpiredOTP = "INVALID_OR_EXPIRED_OTP"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeInvalidToken        = "INVALID_TOKEN"
	ErrCodeIdentityConflict    = "IDENTITY_CONFLICT"
	ErrCodeDelivery            = "DELIVERY_ERROR"
	ErrCodeStore               = "STORE_ERROR"
	ErrCodeInternal            = "INTERNAL_ERROR"
)

// NewValidationError は必須項目不足などの入力エラーを生成する。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  message,
		Category: "validation",
	}
}

// NewDuplicateUserError は登録済みemailでのサインアップエラーを生成する。
func NewDuplicateUserError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateUser,
		Message:  "User already exists. Please login instead.",
		Category: "auth",
	}
}

// NewUnknownUserError は未登録emailでのログインエラーを生成する。
func NewUnknownUserError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeUnknownUser,
		Message:  message,
		Category: "auth",
	}
}

// NewInvalidOrExpiredOTPError はOTP不一致・期限切れエラーを生成する。
func NewInvalidOrExpiredOTPError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidOrExpiredOTP,
		Message:  "Invalid or expired OTP",
		Category: "auth",
	}
}

// NewUnauthorizedError はAuthorizationヘッダー欠落エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Unauthorized",
		Category: "auth",
	}
}

// NewInvalidTokenError は署名不正・期限切れトークンのエラーを生成する。
func NewInvalidTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidToken,
		Message:  "Invalid token",
		Category: "auth",
	}
}

// NewIdentityConflictError はアカウント統合時の不変条件違反を生成する。
// ユーザーが対処できるエラーではないため500として扱う。
func NewIdentityConflictError(cause error) *APIError {
	return &APIError{
		Code:     ErrCodeIdentityConflict,
		Message:  "Account could not be linked",
		Category: "system",
		Cause:    cause,
	}
}

// NewDeliveryError はメール送信失敗エラーを生成する。
func NewDeliveryError(cause error) *APIError {
	return &APIError{
		Code:     ErrCodeDelivery,
		Message:  "Failed to send OTP",
		Category: "system",
		Cause:    cause,
	}
}

// NewStoreError はデータベース操作の失敗を生成する。
func NewStoreError(cause error) *APIError {
	return &APIError{
		Code:     ErrCodeStore,
		Message:  "Server error",
		Category: "system",
		Cause:    cause,
	}
}
