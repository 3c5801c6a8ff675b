package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/feedcloud/internal/model"
)

// testGuard は検証を行わずに素のHTTPクライアントを返すテスト用ガード。
// safeurlはループバックへの接続をブロックするため、httptestサーバーに
// アクセスするテストではこれを使用する。
type testGuard struct {
	validateErr error
}

func (g *testGuard) NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client {
	return &http.Client{Timeout: timeout}
}

func (g *testGuard) ValidateURL(rawURL string) error {
	return g.validateErr
}

func TestDetectFeedURL_DirectFeed_ByContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(`<?xml version="1.0"?><rss version="2.0"><channel></channel></rss>`))
	}))
	defer srv.Close()

	d := NewFeedDetector(&testGuard{})

	got, err := d.DetectFeedURL(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("DetectFeedURL() error = %v", err)
	}
	if got != srv.URL {
		t.Errorf("DetectFeedURL() = %q, want %q", got, srv.URL)
	}
}

// 汎用XML Content-Typeの場合はボディのルート要素で判定されることを検証
func TestDetectFeedURL_DirectFeed_ByXMLBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/xml; charset=utf-8")
		w.Write([]byte(`<?xml version="1.0"?><rss version="2.0"><channel></channel></rss>`))
	}))
	defer srv.Close()

	d := NewFeedDetector(&testGuard{})

	got, err := d.DetectFeedURL(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("DetectFeedURL() error = %v", err)
	}
	if got != srv.URL {
		t.Errorf("DetectFeedURL() = %q, want %q", got, srv.URL)
	}
}

func TestDetectFeedURL_HTMLPage_FindsAlternateLink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head>
  <title>テストサイト</title>
  <link rel="alternate" type="application/rss+xml" href="/feed.xml">
</head>
<body><p>本文</p></body>
</html>`))
	}))
	defer srv.Close()

	d := NewFeedDetector(&testGuard{})

	got, err := d.DetectFeedURL(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("DetectFeedURL() error = %v", err)
	}
	// 相対URLが絶対URLに解決されること
	want := srv.URL + "/feed.xml"
	if got != want {
		t.Errorf("DetectFeedURL() = %q, want %q", got, want)
	}
}

// 複数候補がある場合はAtomが優先されることを検証
func TestDetectFeedURL_MultipleCandidates_PrefersAtom(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head>
  <link rel="alternate" type="application/rss+xml" href="/rss.xml">
  <link rel="alternate" type="application/atom+xml" href="/atom.xml">
</head><body></body></html>`))
	}))
	defer srv.Close()

	d := NewFeedDetector(&testGuard{})

	got, err := d.DetectFeedURL(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("DetectFeedURL() error = %v", err)
	}
	if got != srv.URL+"/atom.xml" {
		t.Errorf("DetectFeedURL() = %q, want atom URL", got)
	}
}

func TestDetectFeedURL_NoFeed_ReturnsInvalidURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head><title>フィードなし</title></head><body></body></html>`))
	}))
	defer srv.Close()

	d := NewFeedDetector(&testGuard{})

	_, err := d.DetectFeedURL(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected error for page without feed link")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidURL {
		t.Errorf("error = %v, want INVALID_URL", err)
	}
}

func TestDetectFeedURL_EmptyURL_ReturnsInvalidURL(t *testing.T) {
	d := NewFeedDetector(&testGuard{})

	_, err := d.DetectFeedURL(context.Background(), "")
	if err == nil {
		t.Fatal("expected error for empty URL")
	}
}

// SSRF検証に失敗したURLはリクエストを送信せず拒否されることを検証
func TestDetectFeedURL_BlockedURL_ReturnsInvalidURL(t *testing.T) {
	d := NewFeedDetector(&testGuard{validateErr: errors.New("blocked host: localhost")})

	_, err := d.DetectFeedURL(context.Background(), "http://localhost/feed.xml")
	if err == nil {
		t.Fatal("expected error for blocked URL")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidURL {
		t.Errorf("error = %v, want INVALID_URL", err)
	}
}

func TestSelectBest_PrefersSameHost(t *testing.T) {
	candidates := []Candidate{
		{URL: "https://other.example.net/atom.xml", IsAtom: true},
		{URL: "https://example.com/rss.xml", IsAtom: false},
	}

	best := selectBest(candidates, "https://example.com/")
	if best.URL != "https://example.com/rss.xml" {
		t.Errorf("selectBest() = %q, want same-host URL", best.URL)
	}
}
