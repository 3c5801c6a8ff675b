package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/feedcloud/internal/model"
	"github.com/hitoshi/feedcloud/internal/repository"
)

// --- モック定義 ---

type mockUserRepo struct {
	findByUsernameFn   func(ctx context.Context, username string) (*model.User, error)
	createFn           func(ctx context.Context, user *model.User) error
	existsByUsernameFn func(ctx context.Context, username string) (bool, error)
}

func (m *mockUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	if m.findByUsernameFn != nil {
		return m.findByUsernameFn(ctx, username)
	}
	return nil, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	return nil
}

func (m *mockUserRepo) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	if m.existsByUsernameFn != nil {
		return m.existsByUsernameFn(ctx, username)
	}
	return false, nil
}

// --- compile-time interface checks ---
var _ repository.UserRepository = (*mockUserRepo)(nil)

// --- テスト ---

func TestAuthenticate_ValidCredentials_ReturnsToken(t *testing.T) {
	ctx := context.Background()

	hash, err := HashPassword("correct-password")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	userRepo := &mockUserRepo{
		findByUsernameFn: func(ctx context.Context, username string) (*model.User, error) {
			return &model.User{
				ID:           1,
				Username:     "alice",
				PasswordHash: hash,
			}, nil
		},
	}

	issuer := NewTokenIssuer("test-secret", 1*time.Hour)
	svc := NewService(userRepo, issuer)

	token, err := svc.Authenticate(ctx, "alice", "correct-password")
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	// 発行されたトークンが検証可能であること
	username, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if username != "alice" {
		t.Errorf("verified username = %q, want %q", username, "alice")
	}
}

func TestAuthenticate_WrongPassword_ReturnsError(t *testing.T) {
	ctx := context.Background()

	hash, _ := HashPassword("correct-password")

	userRepo := &mockUserRepo{
		findByUsernameFn: func(ctx context.Context, username string) (*model.User, error) {
			return &model.User{Username: "alice", PasswordHash: hash}, nil
		},
	}

	svc := NewService(userRepo, NewTokenIssuer("test-secret", 1*time.Hour))

	_, err := svc.Authenticate(ctx, "alice", "wrong-password")
	if err == nil {
		t.Fatal("expected error for wrong password")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.Code != "INVALID_CREDENTIALS" {
		t.Errorf("error code = %q, want %q", apiErr.Code, "INVALID_CREDENTIALS")
	}
}

func TestAuthenticate_UnknownUser_ReturnsSameError(t *testing.T) {
	ctx := context.Background()

	userRepo := &mockUserRepo{
		findByUsernameFn: func(ctx context.Context, username string) (*model.User, error) {
			return nil, nil
		},
	}

	svc := NewService(userRepo, NewTokenIssuer("test-secret", 1*time.Hour))

	_, err := svc.Authenticate(ctx, "nobody", "whatever")
	if err == nil {
		t.Fatal("expected error for unknown user")
	}

	// 未知ユーザーとパスワード不一致で同一のエラーコードであること
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.Code != "INVALID_CREDENTIALS" {
		t.Errorf("error code = %q, want %q", apiErr.Code, "INVALID_CREDENTIALS")
	}
}

func TestResolveUser_ValidToken_ReturnsUser(t *testing.T) {
	ctx := context.Background()

	issuer := NewTokenIssuer("test-secret", 1*time.Hour)
	token, err := issuer.Issue("bob")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	userRepo := &mockUserRepo{
		findByUsernameFn: func(ctx context.Context, username string) (*model.User, error) {
			if username != "bob" {
				t.Errorf("looked up username = %q, want %q", username, "bob")
			}
			return &model.User{ID: 2, Username: "bob"}, nil
		},
	}

	svc := NewService(userRepo, issuer)

	user, err := svc.ResolveUser(ctx, token)
	if err != nil {
		t.Fatalf("ResolveUser() error = %v", err)
	}
	if user.Username != "bob" {
		t.Errorf("user.Username = %q, want %q", user.Username, "bob")
	}
}

func TestResolveUser_ExpiredToken_ReturnsError(t *testing.T) {
	ctx := context.Background()

	issuer := NewTokenIssuer("test-secret", -1*time.Minute)
	token, err := issuer.Issue("bob")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	svc := NewService(&mockUserRepo{}, issuer)

	_, err = svc.ResolveUser(ctx, token)
	if err == nil {
		t.Fatal("expected error for expired token")
	}
}

func TestResolveUser_WrongSecret_ReturnsError(t *testing.T) {
	ctx := context.Background()

	token, err := NewTokenIssuer("other-secret", 1*time.Hour).Issue("bob")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	svc := NewService(&mockUserRepo{}, NewTokenIssuer("test-secret", 1*time.Hour))

	_, err = svc.ResolveUser(ctx, token)
	if err == nil {
		t.Fatal("expected error for token signed with different secret")
	}
}

func TestResolveUser_DeletedUser_ReturnsError(t *testing.T) {
	ctx := context.Background()

	issuer := NewTokenIssuer("test-secret", 1*time.Hour)
	token, _ := issuer.Issue("ghost")

	userRepo := &mockUserRepo{
		findByUsernameFn: func(ctx context.Context, username string) (*model.User, error) {
			// トークン発行後にユーザーが削除されたケース
			return nil, nil
		},
	}

	svc := NewService(userRepo, issuer)

	_, err := svc.ResolveUser(ctx, token)
	if err == nil {
		t.Fatal("expected error for deleted user")
	}
}

func TestHashPassword_ProducesVerifiableHash(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	if !CheckPassword("s3cret", hash) {
		t.Error("CheckPassword should succeed with correct password")
	}
	if CheckPassword("other", hash) {
		t.Error("CheckPassword should fail with wrong password")
	}
}
