package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/feedcloud/internal/middleware"
	"github.com/hitoshi/feedcloud/internal/model"
)

// EntryServiceInterface は記事ハンドラーが必要とするサービスインターフェース。
type EntryServiceInterface interface {
	// ListEntries はユーザーの全フィード横断の記事一覧を返す。
	ListEntries(ctx context.Context, userID int64, status string) ([]*model.Entry, error)
	// ListFeedEntries は指定フィードの記事一覧を返す。
	ListFeedEntries(ctx context.Context, userID, feedID int64, status string) ([]*model.Entry, error)
	// UpdateStatus は記事の既読/未読状態を更新する。
	UpdateStatus(ctx context.Context, userID, entryID int64, status string) error
}

// EntryHandler は記事のHTTPハンドラー。
type EntryHandler struct {
	service EntryServiceInterface
}

// NewEntryHandler はEntryHandlerを生成する。
func NewEntryHandler(service EntryServiceInterface) *EntryHandler {
	return &EntryHandler{service: service}
}

// updateEntryRequest は記事ステータス更新リクエストのボディ。
type updateEntryRequest struct {
	Status string `json:"status"`
}

// entryResponse は記事情報のAPIレスポンス。
type entryResponse struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Summary     string `json:"summary"`
	Link        string `json:"link"`
	PublishedAt string `json:"published_at"`
	Status      string `json:"status"`
	FeedID      int64  `json:"feed_id"`
}

// entryListResponse は記事一覧のAPIレスポンス。
type entryListResponse struct {
	Entries []entryResponse `json:"entries"`
}

// ListEntries は全フィード横断の記事一覧を取得する。
// GET /entries/?status=
func (h *EntryHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		middleware.WriteError(w, model.NewUnauthorizedError())
		return
	}

	entries, err := h.service.ListEntries(r.Context(), user.ID, r.URL.Query().Get("status"))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toEntryListResponse(entries))
}

// ListFeedEntries は指定フィードの記事一覧を取得する。
// GET /feeds/{id}/entries/?status=
func (h *EntryHandler) ListFeedEntries(w http.ResponseWriter, r *http.Request) {
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

	entries, err := h.service.ListFeedEntries(r.Context(), user.ID, feedID, r.URL.Query().Get("status"))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toEntryListResponse(entries))
}

// UpdateEntry は記事の既読/未読状態を更新する。
// PUT /entries/{id}
func (h *EntryHandler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		middleware.WriteError(w, model.NewUnauthorizedError())
		return
	}

	entryID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		middleware.WriteError(w, model.NewEntryNotFoundError())
		return
	}

	var req updateEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w, "リクエストボディの解析に失敗しました。")
		return
	}

	if err := h.service.UpdateStatus(r.Context(), user.ID, entryID, req.Status); err != nil {
		middleware.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Updated"})
}

// toEntryListResponse はmodel.EntryのスライスからAPIレスポンスに変換する。
func toEntryListResponse(entries []*model.Entry) entryListResponse {
	resp := entryListResponse{Entries: make([]entryResponse, 0, len(entries))}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, entryResponse{
			ID:          e.ID,
			Title:       e.Title,
			Summary:     e.Summary,
			Link:        e.Link,
			PublishedAt: e.PublishedAt.UTC().Format(time.RFC3339),
			Status:      string(e.Status),
			FeedID:      e.FeedID,
		})
	}
	return resp
}
