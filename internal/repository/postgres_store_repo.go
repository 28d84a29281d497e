package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/finmemory/finmemory/internal/model"
)

// PostgresStoreRepo はPostgreSQLを使用した店舗リポジトリ。
type PostgresStoreRepo struct {
	db *sql.DB
}

// NewPostgresStoreRepo はPostgresStoreRepoを生成する。
func NewPostgresStoreRepo(db *sql.DB) *PostgresStoreRepo {
	return &PostgresStoreRepo{db: db}
}

// UpsertByNameCity は(name, city)をキーに店舗をUPSERTする。
// 既存行がある場合は何も変更しない。座標はジオコーディングbackfillワーカーが管理する。
func (r *PostgresStoreRepo) UpsertByNameCity(ctx context.Context, store *model.Store) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO stores (id, name, city, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (name, city) DO NOTHING`,
		store.ID, store.Name, store.City, store.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert store: %w", err)
	}
	return nil
}

// ListNeedingGeocode は座標未設定の店舗を作成日時昇順で取得する。
func (r *PostgresStoreRepo) ListNeedingGeocode(ctx context.Context, limit int) ([]*model.Store, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, city, lat, lng, geocoded_at, created_at
		 FROM stores
		 WHERE geocoded_at IS NULL
		 ORDER BY created_at ASC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list stores needing geocode: %w", err)
	}
	defer rows.Close()

	var stores []*model.Store
	for rows.Next() {
		s := &model.Store{}
		if err := rows.Scan(&s.ID, &s.Name, &s.City, &s.Lat, &s.Lng, &s.GeocodedAt, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan store: %w", err)
		}
		stores = append(stores, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stores: %w", err)
	}

	return stores, nil
}

// UpdateCoordinate は店舗の座標とジオコーディング日時を更新する。
func (r *PostgresStoreRepo) UpdateCoordinate(ctx context.Context, storeID string, lat, lng float64, geocodedAt time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE stores SET lat = $2, lng = $3, geocoded_at = $4 WHERE id = $1`,
		storeID, lat, lng, geocodedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update store coordinate: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("store not found: %s", storeID)
	}
	return nil
}

// compile-time interface check
var _ StoreRepository = (*PostgresStoreRepo)(nil)
