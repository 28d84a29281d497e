package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/finmemory/finmemory/internal/model"
)

// PostgresAccountLinkRepo はPostgreSQLを使用したアカウント連携リポジトリ。
type PostgresAccountLinkRepo struct {
	db *sql.DB
}

// NewPostgresAccountLinkRepo はPostgresAccountLinkRepoを生成する。
func NewPostgresAccountLinkRepo(db *sql.DB) *PostgresAccountLinkRepo {
	return &PostgresAccountLinkRepo{db: db}
}

// Upsert は(user_email, provider)をキーにアカウント連携をUPSERTする。
// 既存行がある場合はrefresh_credentialとupdated_atを上書きする。
// 同一ユーザーの同時ログインはlast-write-winsとなる（ロックなし、許容済みの競合）。
func (r *PostgresAccountLinkRepo) Upsert(ctx context.Context, link *model.AccountLink) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO account_links (user_email, provider, refresh_credential, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_email, provider) DO UPDATE
		 SET refresh_credential = EXCLUDED.refresh_credential,
		     updated_at = EXCLUDED.updated_at`,
		link.UserEmail, link.Provider, link.RefreshCredential, link.CreatedAt, link.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert account link: %w", err)
	}
	return nil
}

// FindByEmailAndProvider はメールアドレスとプロバイダーで連携を検索する。
// 見つからない場合はnilを返す。
func (r *PostgresAccountLinkRepo) FindByEmailAndProvider(ctx context.Context, email, provider string) (*model.AccountLink, error) {
	link := &model.AccountLink{}
	err := r.db.QueryRowContext(ctx,
		`SELECT user_email, provider, refresh_credential, created_at, updated_at
		 FROM account_links
		 WHERE user_email = $1 AND provider = $2`,
		email, provider,
	).Scan(&link.UserEmail, &link.Provider, &link.RefreshCredential, &link.CreatedAt, &link.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account link: %w", err)
	}

	return link, nil
}

// DeleteByEmailAndProvider は指定の連携を削除する。
func (r *PostgresAccountLinkRepo) DeleteByEmailAndProvider(ctx context.Context, email, provider string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM account_links WHERE user_email = $1 AND provider = $2`,
		email, provider,
	)
	if err != nil {
		return fmt.Errorf("failed to delete account link: %w", err)
	}
	return nil
}

// compile-time interface check
var _ AccountLinkRepository = (*PostgresAccountLinkRepo)(nil)
