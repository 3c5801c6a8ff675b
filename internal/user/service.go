// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/feedcloud/internal/auth"
	"github.com/hitoshi/feedcloud/internal/model"
	"github.com/hitoshi/feedcloud/internal/repository"
)

// Service はユーザー管理のサービス層。
// ユーザーの作成は管理者のみが行える。
type Service struct {
	userRepo repository.UserRepository
}

// NewService はServiceを生成する。
func NewService(userRepo repository.UserRepository) *Service {
	return &Service{userRepo: userRepo}
}

// CreateUser は新規ユーザーを作成する。
// ユーザー名が既に使用されている場合はUSER_EXISTSエラーを返す。
// パスワードはbcryptでハッシュ化され、平文は保存されない。
func (s *Service) CreateUser(ctx context.Context, username, password string, isAdmin bool) (*model.User, error) {
	exists, err := s.userRepo.ExistsByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの存在確認に失敗しました: %w", err)
	}
	if exists {
		return nil, model.NewUserExistsError()
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("パスワードのハッシュ化に失敗しました: %w", err)
	}

	u := &model.User{
		Username:     username,
		PasswordHash: hash,
		IsAdmin:      isAdmin,
	}
	if err := s.userRepo.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}

	slog.Info("user created",
		slog.Int64("user_id", u.ID),
		slog.String("username", username),
		slog.Bool("is_admin", isAdmin),
	)

	return u, nil
}
