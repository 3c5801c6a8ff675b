// Package auth はパスワード認証とJWTアクセストークンの発行・検証を提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/feedcloud/internal/model"
	"github.com/hitoshi/feedcloud/internal/repository"
)

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo repository.UserRepository
	issuer   *TokenIssuer
}

// NewService はServiceを生成する。
func NewService(userRepo repository.UserRepository, issuer *TokenIssuer) *Service {
	return &Service{
		userRepo: userRepo,
		issuer:   issuer,
	}
}

// Authenticate はユーザー名とパスワードを検証し、アクセストークンを発行する。
// ユーザーが存在しない場合とパスワード不一致の場合は同一のエラーを返し、
// ユーザー名の存在を推測されないようにする。
func (s *Service) Authenticate(ctx context.Context, username, password string) (string, error) {
	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return "", fmt.Errorf("failed to find user: %w", err)
	}

	if user == nil || !CheckPassword(password, user.PasswordHash) {
		slog.Info("authentication failed", slog.String("username", username))
		return "", model.NewInvalidCredentialsError()
	}

	token, err := s.issuer.Issue(user.Username)
	if err != nil {
		return "", fmt.Errorf("failed to issue token: %w", err)
	}

	slog.Info("user authenticated", slog.String("username", username))
	return token, nil
}

// ResolveUser はトークンを検証し、対応するユーザーを返す。
// トークンが不正な場合、またはユーザーが既に削除されている場合はエラーとなる。
func (s *Service) ResolveUser(ctx context.Context, tokenString string) (*model.User, error) {
	username, err := s.issuer.Verify(tokenString)
	if err != nil {
		return nil, fmt.Errorf("failed to verify token: %w", err)
	}

	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user not found: %s", username)
	}

	return user, nil
}
