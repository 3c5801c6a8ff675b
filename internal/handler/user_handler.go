package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/feedcloud/internal/middleware"
	"github.com/hitoshi/feedcloud/internal/model"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// CreateUser は新規ユーザーを作成する。
	CreateUser(ctx context.Context, username, password string, isAdmin bool) (*model.User, error)
}

// UserHandler はユーザー管理のHTTPハンドラー。
// ユーザー作成は管理者のみに許可される。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{service: service}
}

// createUserRequest はユーザー作成リクエストのボディ。
type createUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	IsAdmin  bool   `json:"is_admin"`
}

// userResponse はユーザー情報のAPIレスポンス。パスワードハッシュは含めない。
type userResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
}

// CreateUser は新規ユーザーを作成する。
// POST /users/
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	caller, err := middleware.UserFromContext(r.Context())
	if err != nil {
		middleware.WriteError(w, model.NewUnauthorizedError())
		return
	}
	if !caller.IsAdmin {
		middleware.WriteError(w, model.NewAdminOnlyError())
		return
	}

	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w, "リクエストボディの解析に失敗しました。")
		return
	}

	if req.Username == "" || req.Password == "" {
		writeInvalidRequest(w, "usernameとpasswordは必須です。")
		return
	}

	user, err := h.service.CreateUser(r.Context(), req.Username, req.Password, req.IsAdmin)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, userResponse{
		ID:       user.ID,
		Username: user.Username,
		IsAdmin:  user.IsAdmin,
	})
}
