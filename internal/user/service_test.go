package user

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/feedcloud/internal/auth"
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

var _ repository.UserRepository = (*mockUserRepo)(nil)

// --- テスト ---

func TestCreateUser_NewUsername_CreatesUser(t *testing.T) {
	ctx := context.Background()

	var created *model.User
	userRepo := &mockUserRepo{
		createFn: func(ctx context.Context, user *model.User) error {
			user.ID = 1
			created = user
			return nil
		},
	}

	svc := NewService(userRepo)

	u, err := svc.CreateUser(ctx, "alice", "s3cret", false)
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	if u.ID != 1 {
		t.Errorf("user.ID = %d, want 1", u.ID)
	}
	if created.Username != "alice" {
		t.Errorf("username = %q, want %q", created.Username, "alice")
	}
	if created.IsAdmin {
		t.Error("is_admin should be false")
	}

	// 平文ではなくbcryptハッシュが保存されること
	if created.PasswordHash == "s3cret" {
		t.Error("password should not be stored in plaintext")
	}
	if !auth.CheckPassword("s3cret", created.PasswordHash) {
		t.Error("stored hash should verify against original password")
	}
}

func TestCreateUser_DuplicateUsername_ReturnsUserExists(t *testing.T) {
	ctx := context.Background()

	userRepo := &mockUserRepo{
		existsByUsernameFn: func(ctx context.Context, username string) (bool, error) {
			return true, nil
		},
		createFn: func(ctx context.Context, user *model.User) error {
			t.Error("create should not be called for duplicate username")
			return nil
		},
	}

	svc := NewService(userRepo)

	_, err := svc.CreateUser(ctx, "alice", "s3cret", false)
	if err == nil {
		t.Fatal("expected error for duplicate username")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeUserExists {
		t.Errorf("error = %v, want USER_EXISTS", err)
	}
}

func TestCreateUser_AdminFlag_Persisted(t *testing.T) {
	ctx := context.Background()

	var created *model.User
	userRepo := &mockUserRepo{
		createFn: func(ctx context.Context, user *model.User) error {
			created = user
			return nil
		},
	}

	svc := NewService(userRepo)

	if _, err := svc.CreateUser(ctx, "root", "s3cret", true); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if !created.IsAdmin {
		t.Error("is_admin should be true")
	}
}

func TestCreateUser_RepoError_Propagates(t *testing.T) {
	ctx := context.Background()

	userRepo := &mockUserRepo{
		createFn: func(ctx context.Context, user *model.User) error {
			return errors.New("db error")
		},
	}

	svc := NewService(userRepo)

	if _, err := svc.CreateUser(ctx, "alice", "s3cret", false); err == nil {
		t.Fatal("expected error when repo fails")
	}
}
