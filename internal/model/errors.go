package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, transaction, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeMissingAuthCode     = "MISSING_AUTH_CODE"
	ErrCodeAuthFailed          = "AUTH_FAILED"
	ErrCodeInvalidTransaction  = "INVALID_TRANSACTION"
	ErrCodeStoreNameRequired   = "STORE_NAME_REQUIRED"
	ErrCodeEmptyItems          = "EMPTY_ITEMS"
	ErrCodeTransactionNotFound = "TRANSACTION_NOT_FOUND"
	ErrCodeUserNotFound        = "USER_NOT_FOUND"
)

// NewMissingAuthCodeError は認可コード未指定エラーを生成する。
func NewMissingAuthCodeError() *APIError {
	return &APIError{
		Code:     ErrCodeMissingAuthCode,
		Message:  "認可コードが指定されていません",
		Category: "auth",
		Action:   "ログインをやり直してください。",
	}
}

// NewInvalidTransactionError は取引バリデーションエラーを生成する。
func NewInvalidTransactionError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTransaction,
		Message:  fmt.Sprintf("取引の内容が不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewStoreNameRequiredError は店舗名未指定エラーを生成する。
func NewStoreNameRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeStoreNameRequired,
		Message:  "店舗名が指定されていません",
		Category: "validation",
		Action:   "店舗名を入力してください。",
	}
}

// NewEmptyItemsError は明細なしエラーを生成する。
func NewEmptyItemsError() *APIError {
	return &APIError{
		Code:     ErrCodeEmptyItems,
		Message:  "取引には1件以上の明細が必要です",
		Category: "validation",
		Action:   "明細を追加してください。",
	}
}

// NewTransactionNotFoundError は取引未検出エラーを生成する。
func NewTransactionNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeTransactionNotFound,
		Message:  fmt.Sprintf("指定された取引が見つかりません: %s", id),
		Category: "transaction",
		Action:   "取引IDを確認してください。",
	}
}
