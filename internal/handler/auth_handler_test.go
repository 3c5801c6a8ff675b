package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/feedcloud/internal/model"
)

type mockAuthService struct {
	authenticateFn func(ctx context.Context, username, password string) (string, error)
}

func (m *mockAuthService) Authenticate(ctx context.Context, username, password string) (string, error) {
	if m.authenticateFn != nil {
		return m.authenticateFn(ctx, username, password)
	}
	return "", model.NewInvalidCredentialsError()
}

// TestLogin_ValidCredentials_ReturnsToken は
// 正しい認証情報でトークンが返ることを検証する。
func TestLogin_ValidCredentials_ReturnsToken(t *testing.T) {
	service := &mockAuthService{
		authenticateFn: func(ctx context.Context, username, password string) (string, error) {
			if username != "alice" || password != "s3cret" {
				t.Errorf("credentials = %q/%q, want alice/s3cret", username, password)
			}
			return "issued-token", nil
		},
	}

	h := NewAuthHandler(service)

	req := httptest.NewRequest(http.MethodPost, "/auth/", strings.NewReader(`{"username":"alice","password":"s3cret"}`))
	w := httptest.NewRecorder()

	h.Login(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var body tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Token != "issued-token" {
		t.Errorf("token = %q, want %q", body.Token, "issued-token")
	}
}

// TestLogin_InvalidCredentials_Returns401 は
// 認証失敗時に401が返ることを検証する。
func TestLogin_InvalidCredentials_Returns401(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{})

	req := httptest.NewRequest(http.MethodPost, "/auth/", strings.NewReader(`{"username":"alice","password":"wrong"}`))
	w := httptest.NewRecorder()

	h.Login(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["code"] != model.ErrCodeInvalidCredentials {
		t.Errorf("code = %q, want %q", body["code"], model.ErrCodeInvalidCredentials)
	}
}

// TestLogin_MalformedBody_Returns400 は
// 不正なJSONボディで400が返ることを検証する。
func TestLogin_MalformedBody_Returns400(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{})

	req := httptest.NewRequest(http.MethodPost, "/auth/", strings.NewReader(`{not json`))
	w := httptest.NewRecorder()

	h.Login(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}

// TestLogin_MissingFields_Returns400 は
// username/passwordが欠けたリクエストで400が返ることを検証する。
func TestLogin_MissingFields_Returns400(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{
		authenticateFn: func(ctx context.Context, username, password string) (string, error) {
			t.Error("authenticate should not be called")
			return "", nil
		},
	})

	for _, body := range []string{`{}`, `{"username":"alice"}`, `{"password":"s3cret"}`} {
		req := httptest.NewRequest(http.MethodPost, "/auth/", strings.NewReader(body))
		w := httptest.NewRecorder()

		h.Login(w, req)

		if w.Result().StatusCode != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want %d", body, w.Result().StatusCode, http.StatusBadRequest)
		}
	}
}
