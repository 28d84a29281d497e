package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/finmemory/finmemory/internal/model"
)

// PostgresPricePointRepo はPostgreSQLを使用した価格観測データリポジトリ。
// 価格観測データは挿入専用であり、更新・削除は行わない。
type PostgresPricePointRepo struct {
	db *sql.DB
}

// NewPostgresPricePointRepo はPostgresPricePointRepoを生成する。
func NewPostgresPricePointRepo(db *sql.DB) *PostgresPricePointRepo {
	return &PostgresPricePointRepo{db: db}
}

// InsertBatch は複数の価格観測データを単一のマルチバリューINSERTで挿入する。
// 全件まとめて1ステートメントで書き込むため、途中失敗による部分書き込みは発生しない。
// 空スライスの場合は何もしない。
func (r *PostgresPricePointRepo) InsertBatch(ctx context.Context, points []*model.PricePoint) error {
	if len(points) == 0 {
		return nil
	}

	const numCols = 9

	var sb strings.Builder
	sb.WriteString(`INSERT INTO price_points
		(id, owner_id, store_name, product_name, unit_price, lat, lng, category, created_at)
		VALUES `)

	args := make([]interface{}, 0, len(points)*numCols)
	for i, p := range points {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * numCols
		sb.WriteString(fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9))
		args = append(args,
			p.ID, p.OwnerID, p.StoreName, p.ProductName,
			p.UnitPrice, p.Lat, p.Lng, p.Category, p.CreatedAt,
		)
	}

	if _, err := r.db.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("failed to batch insert price points: %w", err)
	}

	return nil
}

// ListByStoreName は指定店舗の価格観測データをcreated_at降順で取得する。
func (r *PostgresPricePointRepo) ListByStoreName(ctx context.Context, storeName string, limit int) ([]*model.PricePoint, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, owner_id, store_name, product_name, unit_price, lat, lng, category, created_at
		 FROM price_points
		 WHERE store_name = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		storeName, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list price points by store: %w", err)
	}
	defer rows.Close()

	return scanPricePoints(rows)
}

// ListInBounds は指定の矩形範囲内の価格観測データを取得する。価格マップ表示用。
func (r *PostgresPricePointRepo) ListInBounds(ctx context.Context, minLat, maxLat, minLng, maxLng float64, limit int) ([]*model.PricePoint, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, owner_id, store_name, product_name, unit_price, lat, lng, category, created_at
		 FROM price_points
		 WHERE lat BETWEEN $1 AND $2 AND lng BETWEEN $3 AND $4
		 ORDER BY created_at DESC
		 LIMIT $5`,
		minLat, maxLat, minLng, maxLng, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list price points in bounds: %w", err)
	}
	defer rows.Close()

	return scanPricePoints(rows)
}

// scanPricePoints は結果セットをPricePointスライスに変換する。
func scanPricePoints(rows *sql.Rows) ([]*model.PricePoint, error) {
	var points []*model.PricePoint
	for rows.Next() {
		p := &model.PricePoint{}
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.StoreName, &p.ProductName, &p.UnitPrice, &p.Lat, &p.Lng, &p.Category, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan price point: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate price points: %w", err)
	}
	return points, nil
}

// compile-time interface check
var _ PricePointRepository = (*PostgresPricePointRepo)(nil)
