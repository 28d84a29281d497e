// Package geocode は店舗座標のバックフィルジョブを提供する。
// 座標が未設定の店舗を定期的に取得し、ジオコーダーで座標を解決して更新する。
// ジオコーダーは結果なしをエラーとして扱わないため、解決できなかった店舗は
// 次のサイクルでも対象に残り続ける。
package geocode

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/finmemory/finmemory/internal/geo"
	"github.com/finmemory/finmemory/internal/metrics"
	"github.com/finmemory/finmemory/internal/model"
	"github.com/finmemory/finmemory/internal/repository"
)

// BackfillConfig はバックフィルジョブの設定パラメータ。
// 環境変数から設定可能。
type BackfillConfig struct {
	// BatchInterval はバッチジョブの実行間隔（デフォルト: 10分）。
	BatchInterval time.Duration
	// APIInterval はジオコーディングAPI呼び出しの最低間隔（デフォルト: 1秒）。
	APIInterval time.Duration
	// MaxCallsPerCycle は1サイクルあたりの最大API呼び出し回数（デフォルト: 50）。
	MaxCallsPerCycle int
}

// DefaultBackfillConfig はデフォルトのバックフィルジョブ設定を返す。
func DefaultBackfillConfig() BackfillConfig {
	return BackfillConfig{
		BatchInterval:    10 * time.Minute,
		APIInterval:      1 * time.Second,
		MaxCallsPerCycle: 50,
	}
}

// BackfillJob は店舗座標のバックフィルジョブ。
type BackfillJob struct {
	storeRepo repository.StoreRepository
	geocoder  geo.GeocoderService
	collector metrics.MetricsCollector
	logger    *slog.Logger
	config    BackfillConfig
}

// NewBackfillJob はBackfillJobの新しいインスタンスを生成する。
func NewBackfillJob(
	storeRepo repository.StoreRepository,
	geocoder geo.GeocoderService,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	config BackfillConfig,
) *BackfillJob {
	return &BackfillJob{
		storeRepo: storeRepo,
		geocoder:  geocoder,
		collector: collector,
		logger:    logger,
		config:    config,
	}
}

// Start はバックフィルジョブをティッカーで定期実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (b *BackfillJob) Start(ctx context.Context) {
	ticker := time.NewTicker(b.config.BatchInterval)
	defer ticker.Stop()

	b.logger.Info("店舗座標バックフィルジョブを開始しました",
		slog.Duration("batch_interval", b.config.BatchInterval),
		slog.Duration("api_interval", b.config.APIInterval),
		slog.Int("max_calls_per_cycle", b.config.MaxCallsPerCycle),
	)

	// 起動直後に1回実行
	if err := b.RunOnce(ctx); err != nil {
		b.logger.Error("店舗座標バックフィルサイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("店舗座標バックフィルジョブを停止しました")
			return
		case <-ticker.C:
			if err := b.RunOnce(ctx); err != nil {
				b.logger.Error("店舗座標バックフィルサイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は1回のバックフィルサイクルを実行する。
// 座標未設定の店舗を取得し、1店舗ずつジオコーディングして座標を更新する。
func (b *BackfillJob) RunOnce(ctx context.Context) error {
	start := time.Now()

	stores, err := b.storeRepo.ListNeedingGeocode(ctx, b.config.MaxCallsPerCycle)
	if err != nil {
		return fmt.Errorf("failed to list stores needing geocode: %w", err)
	}

	if len(stores) == 0 {
		b.logger.Info("ジオコーディング対象の店舗はありません")
		return nil
	}

	b.logger.Info("店舗座標バックフィルサイクルを開始します",
		slog.Int("target_stores", len(stores)),
	)

	var apiCallCount int
	var resolvedCount int

	for _, store := range stores {
		// コンテキストチェック
		if ctx.Err() != nil {
			return ctx.Err()
		}

		// API呼び出しインターバル（初回は待たない）
		if apiCallCount > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(b.config.APIInterval):
			}
		}

		apiCallCount++

		coord := b.geocoder.Geocode(ctx, geocodeQuery(store))
		b.collector.RecordGeocodeResult(coord != nil)

		if coord == nil {
			// 結果なし。次のサイクルで再試行される。
			continue
		}

		now := time.Now()
		if err := b.storeRepo.UpdateCoordinate(ctx, store.ID, coord.Lat, coord.Lng, now); err != nil {
			b.logger.Error("店舗座標の更新に失敗しました",
				slog.String("store_id", store.ID),
				slog.String("store_name", store.Name),
				slog.String("error", err.Error()),
			)
			continue
		}
		resolvedCount++
	}

	duration := time.Since(start)
	b.logger.Info("店舗座標バックフィルサイクルが完了しました",
		slog.Int("api_call_count", apiCallCount),
		slog.Int("resolved_stores", resolvedCount),
		slog.Int("target_stores", len(stores)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// geocodeQuery は店舗名と市区町村からジオコーディングクエリを組み立てる。
func geocodeQuery(store *model.Store) string {
	parts := []string{store.Name}
	if strings.TrimSpace(store.City) != "" {
		parts = append(parts, store.City)
	}
	parts = append(parts, "Brasil")
	return strings.Join(parts, ", ")
}
