// Package pricepoint は取引からの価格観測データ導出を提供する。
//
// 導出は「ベストエフォート、本体の取引を絶対にブロックしない」方針で動作する。
// 取引の保存が完了した後に呼び出され、位置情報が取得できない場合や
// 書き込みに失敗した場合も、エラーを呼び出し元に伝播させず記録のみ行う。
package pricepoint

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/finmemory/finmemory/internal/geo"
	"github.com/finmemory/finmemory/internal/metrics"
	"github.com/finmemory/finmemory/internal/model"
	"github.com/finmemory/finmemory/internal/repository"
)

// DeriverConfig は導出処理の設定。
type DeriverConfig struct {
	// LocationTimeout は位置情報取得の待ち時間上限。
	// 超過した場合、その導出は位置情報なしとして中断される。
	LocationTimeout time.Duration
}

// DeriveInput は1回の導出処理への入力を表す。
// 保存済み取引の所有者、店舗名、カテゴリ、明細を含む。
type DeriveInput struct {
	OwnerID   string
	StoreName string
	Category  string
	Items     []model.TransactionItem
}

// Deriver は保存済み取引から価格観測データを導出し、バッチ挿入する。
type Deriver struct {
	pricePointRepo repository.PricePointRepository
	collector      metrics.MetricsCollector
	config         DeriverConfig
}

// NewDeriver はDeriverを生成する。
func NewDeriver(
	pricePointRepo repository.PricePointRepository,
	collector metrics.MetricsCollector,
	config DeriverConfig,
) *Deriver {
	if config.LocationTimeout <= 0 {
		config.LocationTimeout = 5 * time.Second
	}
	return &Deriver{
		pricePointRepo: pricePointRepo,
		collector:      collector,
		config:         config,
	}
}

// Derive は取引の明細から価格観測データを導出して一括挿入する。
//
// 以下の場合は書き込みを一切行わず静かに終了する:
//   - 明細が空、または店舗名が空
//   - 位置情報が取得できない（拒否・タイムアウト・エラー）
//   - フィルタ後に有効な明細が残らない
//
// 書き込み失敗もログとメトリクスに記録して飲み込む。取引本体は既に
// 保存済みであり、ロールバックは行わない。リトライも行わない。
func (d *Deriver) Derive(ctx context.Context, input DeriveInput, source geo.LocationSource) {
	// 前提条件: 明細と店舗名
	if len(input.Items) == 0 {
		d.collector.RecordDeriveSkipped(metrics.SkipReasonNoItems)
		return
	}
	if strings.TrimSpace(input.StoreName) == "" {
		d.collector.RecordDeriveSkipped(metrics.SkipReasonNoStore)
		return
	}

	// 位置情報の取得（タイムアウト付きの一回限りの読み取り）
	locCtx, cancel := context.WithTimeout(ctx, d.config.LocationTimeout)
	defer cancel()

	coord, err := source.Current(locCtx)
	if err != nil {
		slog.Warn("price point derivation skipped: no location",
			slog.String("owner_id", input.OwnerID),
			slog.String("error", err.Error()),
		)
		d.collector.RecordDeriveSkipped(metrics.SkipReasonNoLocation)
		return
	}

	points := d.mapItems(input, coord)
	if len(points) == 0 {
		d.collector.RecordDeriveSkipped(metrics.SkipReasonNoValid)
		return
	}

	// 単一のバッチ書き込み。失敗はログとメトリクスに残して飲み込む。
	if err := d.pricePointRepo.InsertBatch(ctx, points); err != nil {
		slog.Error("price point batch insert failed",
			slog.String("owner_id", input.OwnerID),
			slog.String("store_name", input.StoreName),
			slog.Int("count", len(points)),
			slog.String("error", err.Error()),
		)
		d.collector.RecordDeriveFailure()
		return
	}

	d.collector.RecordPricePointsDerived(len(points))
	slog.Info("price points derived",
		slog.String("owner_id", input.OwnerID),
		slog.String("store_name", input.StoreName),
		slog.Int("count", len(points)),
	)
}

// mapItems は明細をフィルタして価格観測データに変換する。
// 品名が空、または合計金額が正でない明細は除外される。
// 除外された明細があっても、同一バッチ内の有効な明細は通常どおり変換される。
func (d *Deriver) mapItems(input DeriveInput, coord *model.GeoCoordinate) []*model.PricePoint {
	category := strings.TrimSpace(input.Category)
	if category == "" {
		category = model.DefaultCategory
	}

	now := time.Now()

	points := make([]*model.PricePoint, 0, len(input.Items))
	for _, item := range input.Items {
		description := strings.TrimSpace(item.Description)
		if description == "" || !item.TotalValue.IsPositive() {
			continue
		}

		points = append(points, &model.PricePoint{
			ID:          uuid.New().String(),
			OwnerID:     input.OwnerID,
			StoreName:   strings.TrimSpace(input.StoreName),
			ProductName: description,
			UnitPrice:   unitPrice(item.TotalValue, item.Quantity),
			Lat:         coord.Lat,
			Lng:         coord.Lng,
			Category:    category,
			CreatedAt:   now,
		})
	}

	return points
}

// unitPrice は合計金額と数量から単価を計算する。
// 数量が0以下または未指定の場合は1として扱う（ゼロ除算回避）。
func unitPrice(totalValue decimal.Decimal, quantity int) decimal.Decimal {
	if quantity < 1 {
		quantity = 1
	}
	return totalValue.Div(decimal.NewFromInt(int64(quantity)))
}
