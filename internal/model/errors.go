// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, feed, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeInvalidURL         = "INVALID_URL"
	ErrCodeInvalidStatus      = "INVALID_STATUS"
	ErrCodeFeedExists         = "FEED_EXISTS"
	ErrCodeFeedNotFound       = "FEED_NOT_FOUND"
	ErrCodeEntryNotFound      = "ENTRY_NOT_FOUND"
	ErrCodeUserExists         = "USER_EXISTS"
	ErrCodeAdminOnly          = "ADMIN_ONLY"
)

// NewUnauthorizedError は認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "/auth/ でトークンを取得し、Authorizationヘッダーに指定してください。",
	}
}

// NewInvalidCredentialsError は認証情報不正エラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "ユーザー名またはパスワードが正しくありません。",
		Category: "auth",
		Action:   "認証情報を確認して再度お試しください。",
	}
}

// NewInvalidStatusError は無効な記事ステータスエラーを生成する。
func NewInvalidStatusError(status string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidStatus,
		Message:  fmt.Sprintf("無効なステータスです: %s", status),
		Category: "validation",
		Action:   "ステータスには read または unread を指定してください。",
	}
}

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("無効なURLです: %s", reason),
		Category: "validation",
		Action:   "正しいURL形式（http:// または https:// で始まるURL）を入力してください。",
	}
}

// NewFeedExistsError はフィード重複登録エラーを生成する。
func NewFeedExistsError() *APIError {
	return &APIError{
		Code:     ErrCodeFeedExists,
		Message:  "このフィードは既に登録されています。",
		Category: "feed",
		Action:   "フィード一覧から該当フィードを確認してください。",
	}
}

// NewFeedNotFoundError はフィード未検出エラーを生成する。
// 所有していないフィードも「見つからない」として扱い、存在の有無を漏らさない。
func NewFeedNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeFeedNotFound,
		Message:  "指定されたフィードが見つかりません。",
		Category: "feed",
		Action:   "フィードIDを確認してください。",
	}
}

// NewEntryNotFoundError は記事未検出エラーを生成する。
func NewEntryNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeEntryNotFound,
		Message:  "指定された記事が見つかりません。",
		Category: "feed",
		Action:   "記事IDを確認してください。",
	}
}

// NewUserExistsError はユーザー重複エラーを生成する。
func NewUserExistsError() *APIError {
	return &APIError{
		Code:     ErrCodeUserExists,
		Message:  "このユーザー名は既に使用されています。",
		Category: "validation",
		Action:   "別のユーザー名を指定してください。",
	}
}

// NewAdminOnlyError は管理者権限エラーを生成する。
func NewAdminOnlyError() *APIError {
	return &APIError{
		Code:     ErrCodeAdminOnly,
		Message:  "この操作には管理者権限が必要です。",
		Category: "auth",
		Action:   "管理者アカウントでログインしてください。",
	}
}
