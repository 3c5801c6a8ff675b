package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/feedcloud/internal/middleware"
	"github.com/hitoshi/feedcloud/internal/model"
)

// FeedServiceInterface はフィードハンドラーが必要とするサービスインターフェース。
type FeedServiceInterface interface {
	// RegisterFeed はURLからフィードを検出し登録する。
	RegisterFeed(ctx context.Context, userID int64, inputURL string) (*model.Feed, error)
	// ListFeeds はユーザーのフィード一覧を返す。
	ListFeeds(ctx context.Context, userID int64) ([]*model.Feed, error)
	// DeleteFeed はユーザーのフィードを削除する。
	DeleteFeed(ctx context.Context, userID, feedID int64) error
	// ForceRun はフィードのダウンロードタスクを即時投入する。
	ForceRun(ctx context.Context, userID, feedID int64) error
}

// FeedHandler はフィード管理のHTTPハンドラー。
type FeedHandler struct {
	service FeedServiceInterface
}

// NewFeedHandler はFeedHandlerを生成する。
func NewFeedHandler(service FeedServiceInterface) *FeedHandler {
	return &FeedHandler{service: service}
}

// registerFeedRequest はフィード登録リクエストのボディ。
type registerFeedRequest struct {
	URL string `json:"url"`
}

// feedResponse はフィード情報のAPIレスポンス。
type feedResponse struct {
	ID  int64  `json:"id"`
	URL string `json:"url"`
}

// feedListResponse はフィード一覧のAPIレスポンス。
type feedListResponse struct {
	Feeds []feedResponse `json:"feeds"`
}

// messageResponse は操作結果のみを返すレスポンス。
type messageResponse struct {
	Message string `json:"message"`
}

// RegisterFeed はフィード登録を処理する。
// POST /feeds/
func (h *FeedHandler) RegisterFeed(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		middleware.WriteError(w, model.NewUnauthorizedError())
		return
	}

	var req registerFeedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w, "リクエストボディの解析に失敗しました。")
		return
	}

	if req.URL == "" {
		middleware.WriteError(w, model.NewInvalidURLError("URLが空です"))
		return
	}

	if _, err := h.service.RegisterFeed(r.Context(), user.ID, req.URL); err != nil {
		middleware.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, messageResponse{Message: "Created"})
}

// ListFeeds はフィード一覧を取得する。
// GET /feeds/
func (h *FeedHandler) ListFeeds(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		middleware.WriteError(w, model.NewUnauthorizedError())
		return
	}

	feeds, err := h.service.ListFeeds(r.Context(), user.ID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	resp := feedListResponse{Feeds: make([]feedResponse, 0, len(feeds))}
	for _, f := range feeds {
		resp.Feeds = append(resp.Feeds, feedResponse{ID: f.ID, URL: f.URL})
	}

	writeJSON(w, http.StatusOK, resp)
}

// DeleteFeed はフィードを削除する。
// DELETE /feeds/{id}
func (h *FeedHandler) DeleteFeed(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		middleware.WriteError(w, model.NewUnauthorizedError())
		return
	}

	feedID, err := feedIDParam(r)
	if err != nil {
		middleware.WriteError(w, model.NewFeedNotFoundError())
		return
	}

	if err := h.service.DeleteFeed(r.Context(), user.ID, feedID); err != nil {
		middleware.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Deleted"})
}

// ForceRun はフィードの即時更新を指示する。
// PUT /feeds/{id}/force-run
func (h *FeedHandler) ForceRun(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		middleware.WriteError(w, model.NewUnauthorizedError())
		return
	}

	feedID, err := feedIDParam(r)
	if err != nil {
		middleware.WriteError(w, model.NewFeedNotFoundError())
		return
	}

	if err := h.service.ForceRun(r.Context(), user.ID, feedID); err != nil {
		middleware.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Enqueued"})
}

// feedIDParam はURLパラメータからフィードIDを取り出す。
func feedIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
