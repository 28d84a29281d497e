// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/finmemory/finmemory/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail は指定メールアドレスのユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// UpsertByEmail はメールアドレスをキーにユーザーを作成または更新する。
	// 既存ユーザーの場合はnameとupdated_atのみ更新し、保存後のユーザーを返す。
	UpsertByEmail(ctx context.Context, user *model.User) (*model.User, error)

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するsessions、transactions、price_pointsはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// AccountLinkRepository は外部IdPアカウント連携の永続化インターフェース。
type AccountLinkRepository interface {
	// Upsert は(user_email, provider)をキーにアカウント連携をUPSERTする。
	// 既存行がある場合はrefresh_credentialとupdated_atを上書きする（last-write-wins）。
	Upsert(ctx context.Context, link *model.AccountLink) error

	// FindByEmailAndProvider はメールアドレスとプロバイダーで連携を検索する。
	// 見つからない場合はnilを返す。
	FindByEmailAndProvider(ctx context.Context, email, provider string) (*model.AccountLink, error)

	// DeleteByEmailAndProvider は指定の連携を削除する。
	// 失効したリフレッシュトークンの破棄経路として用意しているが、
	// 現時点でHTTP経由では公開していない。
	DeleteByEmailAndProvider(ctx context.Context, email, provider string) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// TransactionRepository は取引データの永続化インターフェース。
type TransactionRepository interface {
	// CreateWithItems は取引と明細を同一トランザクションで作成する。
	CreateWithItems(ctx context.Context, txn *model.Transaction, items []model.TransactionItem) error

	// FindByID は指定IDの取引を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Transaction, error)

	// ListByUserID はユーザーの取引一覧をpurchased_at降順で取得する。
	ListByUserID(ctx context.Context, userID string, limit int) ([]*model.Transaction, error)

	// ListItemsByTransactionID は取引の明細一覧を取得する。
	ListItemsByTransactionID(ctx context.Context, transactionID string) ([]model.TransactionItem, error)
}

// PricePointRepository は価格観測データの永続化インターフェース。
// 価格観測データは挿入専用であり、更新・削除インターフェースは持たない。
type PricePointRepository interface {
	// InsertBatch は複数の価格観測データを単一のバッチ書き込みで挿入する。
	// 空スライスの場合は何もしない。
	InsertBatch(ctx context.Context, points []*model.PricePoint) error

	// ListByStoreName は指定店舗の価格観測データをcreated_at降順で取得する。
	ListByStoreName(ctx context.Context, storeName string, limit int) ([]*model.PricePoint, error)

	// ListInBounds は指定の矩形範囲内の価格観測データを取得する。価格マップ表示用。
	ListInBounds(ctx context.Context, minLat, maxLat, minLng, maxLng float64, limit int) ([]*model.PricePoint, error)
}

// StoreRepository は店舗データの永続化インターフェース。
type StoreRepository interface {
	// UpsertByNameCity は(name, city)をキーに店舗をUPSERTする。
	// 既存行がある場合は何も変更しない（座標はbackfillワーカーが管理する）。
	UpsertByNameCity(ctx context.Context, store *model.Store) error

	// ListNeedingGeocode は座標未設定の店舗を作成日時昇順で取得する。
	ListNeedingGeocode(ctx context.Context, limit int) ([]*model.Store, error)

	// UpdateCoordinate は店舗の座標とジオコーディング日時を更新する。
	UpdateCoordinate(ctx context.Context, storeID string, lat, lng float64, geocodedAt time.Time) error
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
