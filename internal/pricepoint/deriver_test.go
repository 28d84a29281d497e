package pricepoint

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finmemory/finmemory/internal/geo"
	"github.com/finmemory/finmemory/internal/model"
)

// --- モック定義 ---

type mockPricePointRepo struct {
	mu           sync.Mutex
	insertBatchFn func(ctx context.Context, points []*model.PricePoint) error
	inserted     [][]*model.PricePoint
}

func (m *mockPricePointRepo) InsertBatch(ctx context.Context, points []*model.PricePoint) error {
	m.mu.Lock()
	m.inserted = append(m.inserted, points)
	m.mu.Unlock()
	if m.insertBatchFn != nil {
		return m.insertBatchFn(ctx, points)
	}
	return nil
}

func (m *mockPricePointRepo) ListByStoreName(ctx context.Context, storeName string, limit int) ([]*model.PricePoint, error) {
	return nil, nil
}

func (m *mockPricePointRepo) ListInBounds(ctx context.Context, minLat, maxLat, minLng, maxLng float64, limit int) ([]*model.PricePoint, error) {
	return nil, nil
}

func (m *mockPricePointRepo) insertCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inserted)
}

type mockCollector struct {
	mu          sync.Mutex
	derived     int
	skipReasons []string
	failures    int
}

func (m *mockCollector) RecordPricePointsDerived(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.derived += count
}

func (m *mockCollector) RecordDeriveSkipped(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.skipReasons = append(m.skipReasons, reason)
}

func (m *mockCollector) RecordDeriveFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
}

func (m *mockCollector) RecordGeocodeResult(found bool)       {}
func (m *mockCollector) RecordOAuthCallback(outcome string)   {}
func (m *mockCollector) RecordHTTPStatus(statusCode int)      {}

func (m *mockCollector) lastSkipReason() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.skipReasons) == 0 {
		return ""
	}
	return m.skipReasons[len(m.skipReasons)-1]
}

// stubLocationSource は固定の座標またはエラーを返すLocationSource。
type stubLocationSource struct {
	coord *model.GeoCoordinate
	err   error
}

func (s *stubLocationSource) Current(ctx context.Context) (*model.GeoCoordinate, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.coord, nil
}

// --- テストヘルパー ---

func newTestDeriver(repo *mockPricePointRepo, collector *mockCollector) *Deriver {
	return NewDeriver(repo, collector, DeriverConfig{LocationTimeout: time.Second})
}

func validSource() geo.LocationSource {
	return &stubLocationSource{coord: &model.GeoCoordinate{Lat: -23.5505, Lng: -46.6333}}
}

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

// --- テスト ---

// TestDerive_EmptyItems_NoWrites は明細なしの場合に書き込みを行わないことを検証する。
func TestDerive_EmptyItems_NoWrites(t *testing.T) {
	repo := &mockPricePointRepo{}
	collector := &mockCollector{}
	d := newTestDeriver(repo, collector)

	d.Derive(context.Background(), DeriveInput{
		OwnerID:   "user-1",
		StoreName: "Mercado Central",
		Items:     nil,
	}, validSource())

	if repo.insertCalls() != 0 {
		t.Errorf("InsertBatch calls = %d, want 0", repo.insertCalls())
	}
	if got := collector.lastSkipReason(); got != "no_items" {
		t.Errorf("skip reason = %q, want %q", got, "no_items")
	}
}

// TestDerive_EmptyStoreName_NoWrites は店舗名なしの場合に書き込みを行わないことを検証する。
func TestDerive_EmptyStoreName_NoWrites(t *testing.T) {
	repo := &mockPricePointRepo{}
	collector := &mockCollector{}
	d := newTestDeriver(repo, collector)

	d.Derive(context.Background(), DeriveInput{
		OwnerID:   "user-1",
		StoreName: "   ",
		Items: []model.TransactionItem{
			{Description: "Arroz 5kg", Quantity: 1, TotalValue: dec("25.90")},
		},
	}, validSource())

	if repo.insertCalls() != 0 {
		t.Errorf("InsertBatch calls = %d, want 0", repo.insertCalls())
	}
	if got := collector.lastSkipReason(); got != "no_store" {
		t.Errorf("skip reason = %q, want %q", got, "no_store")
	}
}

// TestDerive_LocationUnavailable_NoWrites は位置情報が取得できない場合に
// 書き込みを行わず、パニックもエラーも起こさないことを検証する。
func TestDerive_LocationUnavailable_NoWrites(t *testing.T) {
	repo := &mockPricePointRepo{}
	collector := &mockCollector{}
	d := newTestDeriver(repo, collector)

	d.Derive(context.Background(), DeriveInput{
		OwnerID:   "user-1",
		StoreName: "Mercado Central",
		Items: []model.TransactionItem{
			{Description: "Arroz 5kg", Quantity: 1, TotalValue: dec("25.90")},
		},
	}, &stubLocationSource{err: geo.ErrLocationUnavailable})

	if repo.insertCalls() != 0 {
		t.Errorf("InsertBatch calls = %d, want 0", repo.insertCalls())
	}
	if got := collector.lastSkipReason(); got != "no_location" {
		t.Errorf("skip reason = %q, want %q", got, "no_location")
	}
}

// TestDerive_FiltersInvalidItems は品名が空または金額が正でない明細を除外しつつ、
// 同一バッチ内の有効な明細は通常どおり変換することを検証する。
func TestDerive_FiltersInvalidItems(t *testing.T) {
	repo := &mockPricePointRepo{}
	collector := &mockCollector{}
	d := newTestDeriver(repo, collector)

	d.Derive(context.Background(), DeriveInput{
		OwnerID:   "user-1",
		StoreName: "Mercado Central",
		Category:  "Alimentos",
		Items: []model.TransactionItem{
			{Description: "", Quantity: 1, TotalValue: dec("10.00")},           // 品名なし
			{Description: "Brinde", Quantity: 1, TotalValue: dec("0")},         // 金額ゼロ
			{Description: "Desconto", Quantity: 1, TotalValue: dec("-2.00")},   // 負の金額
			{Description: "Arroz 5kg", Quantity: 2, TotalValue: dec("51.80")},  // 有効
		},
	}, validSource())

	if repo.insertCalls() != 1 {
		t.Fatalf("InsertBatch calls = %d, want 1", repo.insertCalls())
	}
	points := repo.inserted[0]
	if len(points) != 1 {
		t.Fatalf("points = %d, want 1", len(points))
	}
	p := points[0]
	if p.ProductName != "Arroz 5kg" {
		t.Errorf("ProductName = %q, want %q", p.ProductName, "Arroz 5kg")
	}
	if !p.UnitPrice.Equal(dec("25.90")) {
		t.Errorf("UnitPrice = %s, want 25.90", p.UnitPrice)
	}
	if p.Category != "Alimentos" {
		t.Errorf("Category = %q, want %q", p.Category, "Alimentos")
	}
	if p.Lat != -23.5505 || p.Lng != -46.6333 {
		t.Errorf("coordinate = (%v, %v), want (-23.5505, -46.6333)", p.Lat, p.Lng)
	}
	if collector.derived != 1 {
		t.Errorf("derived count = %d, want 1", collector.derived)
	}
}

// TestDerive_AllItemsInvalid_NoWrites はフィルタ後に有効な明細が残らない場合に
// 書き込みを行わないことを検証する。
func TestDerive_AllItemsInvalid_NoWrites(t *testing.T) {
	repo := &mockPricePointRepo{}
	collector := &mockCollector{}
	d := newTestDeriver(repo, collector)

	d.Derive(context.Background(), DeriveInput{
		OwnerID:   "user-1",
		StoreName: "Mercado Central",
		Items: []model.TransactionItem{
			{Description: "", Quantity: 1, TotalValue: dec("10.00")},
			{Description: "Brinde", Quantity: 1, TotalValue: dec("0")},
		},
	}, validSource())

	if repo.insertCalls() != 0 {
		t.Errorf("InsertBatch calls = %d, want 0", repo.insertCalls())
	}
	if got := collector.lastSkipReason(); got != "no_valid_items" {
		t.Errorf("skip reason = %q, want %q", got, "no_valid_items")
	}
}

// TestDerive_QuantityZero_TreatedAsOne は数量0の明細の単価が合計金額と
// 等しくなること、カテゴリ未指定時に既定カテゴリが使われることを検証する。
func TestDerive_QuantityZero_TreatedAsOne(t *testing.T) {
	repo := &mockPricePointRepo{}
	collector := &mockCollector{}
	d := newTestDeriver(repo, collector)

	d.Derive(context.Background(), DeriveInput{
		OwnerID:   "user-1",
		StoreName: "Mercado Central",
		Items: []model.TransactionItem{
			{Description: "Feijão", Quantity: 0, TotalValue: dec("8.00")},
		},
	}, validSource())

	if repo.insertCalls() != 1 {
		t.Fatalf("InsertBatch calls = %d, want 1", repo.insertCalls())
	}
	p := repo.inserted[0][0]
	if !p.UnitPrice.Equal(dec("8.00")) {
		t.Errorf("UnitPrice = %s, want 8.00", p.UnitPrice)
	}
	if p.Category != model.DefaultCategory {
		t.Errorf("Category = %q, want %q", p.Category, model.DefaultCategory)
	}
}

// TestDerive_QuantityAbsent_UnitPriceEqualsTotal は数量未指定（ゼロ値）の
// 単一明細で単価が合計金額と一致することを検証する。
func TestDerive_QuantityAbsent_UnitPriceEqualsTotal(t *testing.T) {
	repo := &mockPricePointRepo{}
	collector := &mockCollector{}
	d := newTestDeriver(repo, collector)

	d.Derive(context.Background(), DeriveInput{
		OwnerID:   "user-1",
		StoreName: "Farmácia Popular",
		Items: []model.TransactionItem{
			{Description: "Dipirona", TotalValue: dec("45.90")},
		},
	}, validSource())

	if repo.insertCalls() != 1 {
		t.Fatalf("InsertBatch calls = %d, want 1", repo.insertCalls())
	}
	p := repo.inserted[0][0]
	if !p.UnitPrice.Equal(dec("45.90")) {
		t.Errorf("UnitPrice = %s, want 45.90", p.UnitPrice)
	}
}

// TestDerive_InsertFailure_Swallowed は書き込み失敗がエラーとして
// 伝播せず、失敗として記録されることを検証する。
func TestDerive_InsertFailure_Swallowed(t *testing.T) {
	repo := &mockPricePointRepo{
		insertBatchFn: func(ctx context.Context, points []*model.PricePoint) error {
			return errors.New("db connection lost")
		},
	}
	collector := &mockCollector{}
	d := newTestDeriver(repo, collector)

	d.Derive(context.Background(), DeriveInput{
		OwnerID:   "user-1",
		StoreName: "Mercado Central",
		Items: []model.TransactionItem{
			{Description: "Arroz 5kg", Quantity: 1, TotalValue: dec("25.90")},
		},
	}, validSource())

	if collector.failures != 1 {
		t.Errorf("failures = %d, want 1", collector.failures)
	}
	if collector.derived != 0 {
		t.Errorf("derived count = %d, want 0", collector.derived)
	}
}

// TestDerive_UnitPriceDivision は数量指定時の単価計算を検証する。
func TestDerive_UnitPriceDivision(t *testing.T) {
	tests := []struct {
		name     string
		total    string
		quantity int
		want     string
	}{
		{"quantity 1", "25.90", 1, "25.90"},
		{"quantity 2", "51.80", 2, "25.90"},
		{"quantity 3 repeating", "10.00", 3, "3.3333333333333333"},
		{"quantity 0 treated as 1", "8.00", 0, "8.00"},
		{"negative quantity treated as 1", "8.00", -5, "8.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := unitPrice(dec(tt.total), tt.quantity)
			if !got.Equal(dec(tt.want)) {
				t.Errorf("unitPrice(%s, %d) = %s, want %s", tt.total, tt.quantity, got, tt.want)
			}
		})
	}
}
