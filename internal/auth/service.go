// Package auth はOAuthアカウント連携フローとセッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/finmemory/finmemory/internal/model"
	"github.com/finmemory/finmemory/internal/repository"
)

// OAuthResult はOAuthプロバイダーとのコード交換で得られた結果を表す。
type OAuthResult struct {
	Email             string
	Name              string
	Provider          string // "google" 等
	RefreshCredential string
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
// 将来的に複数IdP（Google, GitHub等）に対応するための抽象化。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、ユーザー情報と
	// リフレッシュトークンを取得する。
	ExchangeCode(ctx context.Context, code string) (*OAuthResult, error)
}

// ServiceConfig はアカウント連携サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service はOAuthアカウント連携に関するビジネスロジックを提供する。
//
// コールバック処理は以下の直線的なステップで構成される:
//
//	交換（コード→トークン） → 識別（メールアドレス取得） → 永続化（連携のUPSERT）
//
// 途中で失敗した場合は部分的な状態を残さずエラーを返す。
type Service struct {
	oauth       OAuthProvider
	linkRepo    repository.AccountLinkRepository
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	config      ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	oauth OAuthProvider,
	linkRepo repository.AccountLinkRepository,
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	config ServiceConfig,
) *Service {
	return &Service{
		oauth:       oauth,
		linkRepo:    linkRepo,
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		config:      config,
	}
}

// GetLoginURL はOAuth認証URLを生成する。
func (s *Service) GetLoginURL(state string) string {
	return s.oauth.GetLoginURL(state)
}

// HandleCallback はOAuthコールバックを処理し、セッションを発行する。
//
//  1. 認可コードをトークンに交換し、メールアドレスとリフレッシュトークンを取得する。
//  2. (email, provider)をキーにアカウント連携をUPSERTする。
//     再ログイン時はリフレッシュトークンが上書きされる（last-write-wins）。
//  3. メールアドレスをキーにユーザーをUPSERTし、セッションを発行する。
//
// いずれかのステップが失敗した場合はエラーを返す。ステップ2以降の失敗時に
// 補償処理は行わないが、それ以前にユーザーデータは書き込まれていない。
func (s *Service) HandleCallback(ctx context.Context, code string) (*model.Session, error) {
	// 1. 交換と識別
	result, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	now := time.Now()

	// 2. アカウント連携の永続化
	// リフレッシュトークンが空のまま届くケース（既に同意済み等）では
	// 既存の連携を壊さないようUPSERTをスキップする。
	if result.RefreshCredential != "" {
		link := &model.AccountLink{
			UserEmail:         result.Email,
			Provider:          result.Provider,
			RefreshCredential: result.RefreshCredential,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := s.linkRepo.Upsert(ctx, link); err != nil {
			return nil, fmt.Errorf("failed to upsert account link: %w", err)
		}
	} else {
		slog.Warn("oauth callback without refresh credential, keeping existing link",
			slog.String("provider", result.Provider),
		)
	}

	// 3. ユーザーのUPSERTとセッション発行
	user, err := s.userRepo.UpsertByEmail(ctx, &model.User{
		ID:        uuid.New().String(),
		Email:     result.Email,
		Name:      result.Name,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("account linked",
		slog.String("user_id", user.ID),
		slog.String("provider", result.Provider),
	)

	return session, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out", slog.String("session_id", sessionID))
	return nil
}

// GetCurrentUser はセッションから現在のユーザーを取得する。
func (s *Service) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session ID is required")
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("session not found or expired")
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user not found")
	}

	return user, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: time.Now().Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: time.Now(),
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
