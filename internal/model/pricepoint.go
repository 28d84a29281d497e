package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCategory はカテゴリ未指定時に使用される既定カテゴリ。
const DefaultCategory = "Outros"

// GeoCoordinate は緯度・経度の組を表す。
// ジオコーダーおよび端末位置情報から一時的に生成され、単体では永続化されない。
type GeoCoordinate struct {
	Lat float64
	Lng float64
}

// PricePoint は価格マップに投稿される1件の価格観測データを表す。
// 取引保存時に位置情報が取得できた場合のみ作成され、以後更新・削除されない。
type PricePoint struct {
	ID          string
	OwnerID     string
	StoreName   string
	ProductName string
	UnitPrice   decimal.Decimal
	Lat         float64
	Lng         float64
	Category    string
	CreatedAt   time.Time
}

// Store は価格マップに表示する店舗を表す。
// 座標が未ジオコーディングの場合、Lat/Lng/GeocodedAtはnil。
type Store struct {
	ID         string
	Name       string
	City       string
	Lat        *float64
	Lng        *float64
	GeocodedAt *time.Time
	CreatedAt  time.Time
}
