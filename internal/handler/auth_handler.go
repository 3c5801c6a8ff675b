// Package handler はHTTP APIのハンドラー層を提供する。
package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/feedcloud/internal/middleware"
	"github.com/hitoshi/feedcloud/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	// Authenticate はユーザー名とパスワードを検証し、アクセストークンを発行する。
	Authenticate(ctx context.Context, username, password string) (string, error)
}

// AuthHandler は認証のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface) *AuthHandler {
	return &AuthHandler{service: service}
}

// loginRequest はトークン発行リクエストのボディ。
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// tokenResponse はトークン発行レスポンス。
type tokenResponse struct {
	Token string `json:"token"`
}

// Login はユーザー名とパスワードを検証してトークンを発行する。
// POST /auth/
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w, "リクエストボディの解析に失敗しました。")
		return
	}

	if req.Username == "" || req.Password == "" {
		writeInvalidRequest(w, "usernameとpasswordは必須です。")
		return
	}

	token, err := h.service.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{Token: token})
}

// --- ヘルパー関数 ---

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// writeInvalidRequest はリクエスト不正の400レスポンスを書き込む。
func writeInvalidRequest(w http.ResponseWriter, message string) {
	middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
		Code:     model.ErrCodeInvalidRequest,
		Message:  message,
		Category: "validation",
		Action:   "リクエスト形式を確認して再度お試しください。",
	})
}
