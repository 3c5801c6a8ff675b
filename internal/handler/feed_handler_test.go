package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/feedcloud/internal/middleware"
	"github.com/hitoshi/feedcloud/internal/model"
)

type mockFeedService struct {
	registerFeedFn func(ctx context.Context, userID int64, inputURL string) (*model.Feed, error)
	listFeedsFn    func(ctx context.Context, userID int64) ([]*model.Feed, error)
	deleteFeedFn   func(ctx context.Context, userID, feedID int64) error
	forceRunFn     func(ctx context.Context, userID, feedID int64) error
}

func (m *mockFeedService) RegisterFeed(ctx context.Context, userID int64, inputURL string) (*model.Feed, error) {
	if m.registerFeedFn != nil {
		return m.registerFeedFn(ctx, userID, inputURL)
	}
	return &model.Feed{ID: 1, URL: inputURL, UserID: userID}, nil
}

func (m *mockFeedService) ListFeeds(ctx context.Context, userID int64) ([]*model.Feed, error) {
	if m.listFeedsFn != nil {
		return m.listFeedsFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockFeedService) DeleteFeed(ctx context.Context, userID, feedID int64) error {
	if m.deleteFeedFn != nil {
		return m.deleteFeedFn(ctx, userID, feedID)
	}
	return nil
}

func (m *mockFeedService) ForceRun(ctx context.Context, userID, feedID int64) error {
	if m.forceRunFn != nil {
		return m.forceRunFn(ctx, userID, feedID)
	}
	return nil
}

// feedTestRouter はURLパラメータ解決のためchiルーターにハンドラーをマウントする。
func feedTestRouter(h *FeedHandler) http.Handler {
	r := chi.NewRouter()
	r.Post("/feeds/", h.RegisterFeed)
	r.Get("/feeds/", h.ListFeeds)
	r.Delete("/feeds/{id}", h.DeleteFeed)
	r.Put("/feeds/{id}/force-run", h.ForceRun)
	return r
}

// authedFeedRequest は認証済みユーザー(ID=1)のリクエストを生成する。
func authedFeedRequest(method, target, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	ctx := middleware.ContextWithUser(req.Context(), &model.User{ID: 1, Username: "alice"})
	return req.WithContext(ctx)
}

// TestRegisterFeed_ValidURL_Returns201 は
// フィード登録が201で成功することを検証する。
func TestRegisterFeed_ValidURL_Returns201(t *testing.T) {
	service := &mockFeedService{
		registerFeedFn: func(ctx context.Context, userID int64, inputURL string) (*model.Feed, error) {
			if userID != 1 {
				t.Errorf("userID = %d, want 1", userID)
			}
			if inputURL != "https://example.com/feed.xml" {
				t.Errorf("url = %q, want feed URL", inputURL)
			}
			return &model.Feed{ID: 5, URL: inputURL, UserID: userID}, nil
		},
	}

	router := feedTestRouter(NewFeedHandler(service))

	req := authedFeedRequest(http.MethodPost, "/feeds/", `{"url":"https://example.com/feed.xml"}`)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	var body messageResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Message != "Created" {
		t.Errorf("message = %q, want %q", body.Message, "Created")
	}
}

// TestRegisterFeed_Duplicate_Returns409 は
// 同一ユーザーの重複登録で409が返ることを検証する。
func TestRegisterFeed_Duplicate_Returns409(t *testing.T) {
	service := &mockFeedService{
		registerFeedFn: func(ctx context.Context, userID int64, inputURL string) (*model.Feed, error) {
			return nil, model.NewFeedExistsError()
		},
	}

	router := feedTestRouter(NewFeedHandler(service))

	req := authedFeedRequest(http.MethodPost, "/feeds/", `{"url":"https://example.com/feed.xml"}`)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusConflict)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["code"] != model.ErrCodeFeedExists {
		t.Errorf("code = %q, want %q", body["code"], model.ErrCodeFeedExists)
	}
}

// TestRegisterFeed_InvalidURL_Returns400 は
// フィード検出失敗で400が返ることを検証する。
func TestRegisterFeed_InvalidURL_Returns400(t *testing.T) {
	service := &mockFeedService{
		registerFeedFn: func(ctx context.Context, userID int64, inputURL string) (*model.Feed, error) {
			return nil, model.NewInvalidURLError("フィードを検出できません")
		},
	}

	router := feedTestRouter(NewFeedHandler(service))

	req := authedFeedRequest(http.MethodPost, "/feeds/", `{"url":"https://example.com/"}`)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}

// TestRegisterFeed_EmptyURL_Returns400 は
// 空のURLで400が返ることを検証する。
func TestRegisterFeed_EmptyURL_Returns400(t *testing.T) {
	router := feedTestRouter(NewFeedHandler(&mockFeedService{
		registerFeedFn: func(ctx context.Context, userID int64, inputURL string) (*model.Feed, error) {
			t.Error("register should not be called for empty URL")
			return nil, nil
		},
	}))

	req := authedFeedRequest(http.MethodPost, "/feeds/", `{"url":""}`)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}

// TestListFeeds_ReturnsFeeds はフィード一覧が返ることを検証する。
func TestListFeeds_ReturnsFeeds(t *testing.T) {
	service := &mockFeedService{
		listFeedsFn: func(ctx context.Context, userID int64) ([]*model.Feed, error) {
			return []*model.Feed{
				{ID: 1, URL: "https://a.example.com/feed.xml", UserID: userID},
				{ID: 2, URL: "https://b.example.com/rss", UserID: userID},
			}, nil
		},
	}

	router := feedTestRouter(NewFeedHandler(service))

	req := authedFeedRequest(http.MethodGet, "/feeds/", "")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var body feedListResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(body.Feeds) != 2 {
		t.Fatalf("got %d feeds, want 2", len(body.Feeds))
	}
	if body.Feeds[0].URL != "https://a.example.com/feed.xml" {
		t.Errorf("feed[0].URL = %q", body.Feeds[0].URL)
	}
}

// TestListFeeds_Empty_ReturnsEmptyArray は
// フィードがない場合に空配列(nullではなく)が返ることを検証する。
func TestListFeeds_Empty_ReturnsEmptyArray(t *testing.T) {
	router := feedTestRouter(NewFeedHandler(&mockFeedService{}))

	req := authedFeedRequest(http.MethodGet, "/feeds/", "")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if !strings.Contains(w.Body.String(), `"feeds":[]`) {
		t.Errorf("body = %s, want empty feeds array", w.Body.String())
	}
}

// TestDeleteFeed_Owned_Returns200 はフィード削除が200で成功することを検証する。
func TestDeleteFeed_Owned_Returns200(t *testing.T) {
	var gotFeedID int64
	service := &mockFeedService{
		deleteFeedFn: func(ctx context.Context, userID, feedID int64) error {
			gotFeedID = feedID
			return nil
		},
	}

	router := feedTestRouter(NewFeedHandler(service))

	req := authedFeedRequest(http.MethodDelete, "/feeds/7", "")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if gotFeedID != 7 {
		t.Errorf("feedID = %d, want 7", gotFeedID)
	}
}

// TestDeleteFeed_NotOwned_Returns404 は
// 未所有フィードの削除で404が返ることを検証する。
func TestDeleteFeed_NotOwned_Returns404(t *testing.T) {
	service := &mockFeedService{
		deleteFeedFn: func(ctx context.Context, userID, feedID int64) error {
			return model.NewFeedNotFoundError()
		},
	}

	router := feedTestRouter(NewFeedHandler(service))

	req := authedFeedRequest(http.MethodDelete, "/feeds/999", "")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNotFound)
	}
}

// TestDeleteFeed_NonNumericID_Returns404 は
// 数値でないIDで404が返ることを検証する。
func TestDeleteFeed_NonNumericID_Returns404(t *testing.T) {
	router := feedTestRouter(NewFeedHandler(&mockFeedService{
		deleteFeedFn: func(ctx context.Context, userID, feedID int64) error {
			t.Error("delete should not be called for non-numeric ID")
			return nil
		},
	}))

	req := authedFeedRequest(http.MethodDelete, "/feeds/abc", "")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNotFound)
	}
}

// TestForceRun_Owned_Returns200 は
// 強制実行指示が200で成功することを検証する。
func TestForceRun_Owned_Returns200(t *testing.T) {
	var gotFeedID int64
	service := &mockFeedService{
		forceRunFn: func(ctx context.Context, userID, feedID int64) error {
			gotFeedID = feedID
			return nil
		},
	}

	router := feedTestRouter(NewFeedHandler(service))

	req := authedFeedRequest(http.MethodPut, "/feeds/7/force-run", "")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if gotFeedID != 7 {
		t.Errorf("feedID = %d, want 7", gotFeedID)
	}
}

// TestForceRun_NotOwned_Returns404 は
// 未所有フィードの強制実行で404が返ることを検証する。
func TestForceRun_NotOwned_Returns404(t *testing.T) {
	service := &mockFeedService{
		forceRunFn: func(ctx context.Context, userID, feedID int64) error {
			return model.NewFeedNotFoundError()
		},
	}

	router := feedTestRouter(NewFeedHandler(service))

	req := authedFeedRequest(http.MethodPut, "/feeds/999/force-run", "")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNotFound)
	}
}
