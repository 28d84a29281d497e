package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finmemory/finmemory/internal/middleware"
	"github.com/finmemory/finmemory/internal/model"
)

// defaultPricePointsPerPage は価格観測データ一覧の1回の取得件数（デフォルト）。
const defaultPricePointsPerPage = 100

// maxPricePointsPerPage は価格観測データ一覧の1回の取得件数の上限。
const maxPricePointsPerPage = 500

// PricePointReader は価格マップ表示に必要な読み取りインターフェース。
// repository.PricePointRepositoryの部分集合として定義する。
type PricePointReader interface {
	// ListByStoreName は指定店舗の価格観測データを取得する。
	ListByStoreName(ctx context.Context, storeName string, limit int) ([]*model.PricePoint, error)
	// ListInBounds は矩形範囲内の価格観測データを取得する。
	ListInBounds(ctx context.Context, minLat, maxLat, minLng, maxLng float64, limit int) ([]*model.PricePoint, error)
}

// PricePointHandler は価格マップのHTTPハンドラー。
type PricePointHandler struct {
	reader PricePointReader
}

// NewPricePointHandler はPricePointHandlerを生成する。
func NewPricePointHandler(reader PricePointReader) *PricePointHandler {
	return &PricePointHandler{reader: reader}
}

// pricePointResponse は価格観測データ1件のAPIレスポンス。
// 投稿者のIDは匿名性のため含めない。
type pricePointResponse struct {
	ID          string          `json:"id"`
	StoreName   string          `json:"store_name"`
	ProductName string          `json:"product_name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Lat         float64         `json:"lat"`
	Lng         float64         `json:"lng"`
	Category    string          `json:"category"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ListByStore は指定店舗の価格観測データ一覧を取得する。
// GET /api/price-points?store=xxx&limit=100
func (h *PricePointHandler) ListByStore(w http.ResponseWriter, r *http.Request) {
	if _, err := middleware.UserIDFromContext(r.Context()); err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	storeName := r.URL.Query().Get("store")
	if storeName == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "storeパラメータが指定されていません。",
			Category: "validation",
			Action:   "店舗名を指定してください。",
		})
		return
	}

	points, err := h.reader.ListByStoreName(r.Context(), storeName, parseLimit(r))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writePricePointsResponse(w, points)
}

// ListInBounds は地図の表示範囲内の価格観測データを取得する。
// GET /api/price-points/map?min_lat=&max_lat=&min_lng=&max_lng=&limit=
func (h *PricePointHandler) ListInBounds(w http.ResponseWriter, r *http.Request) {
	if _, err := middleware.UserIDFromContext(r.Context()); err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	minLat, err1 := parseCoord(r, "min_lat", -90, 90)
	maxLat, err2 := parseCoord(r, "max_lat", -90, 90)
	minLng, err3 := parseCoord(r, "min_lng", -180, 180)
	maxLng, err4 := parseCoord(r, "max_lng", -180, 180)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil || minLat > maxLat || minLng > maxLng {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "表示範囲の指定が不正です。",
			Category: "validation",
			Action:   "min_lat, max_lat, min_lng, max_lngを正しく指定してください。",
		})
		return
	}

	points, err := h.reader.ListInBounds(r.Context(), minLat, maxLat, minLng, maxLng, parseLimit(r))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writePricePointsResponse(w, points)
}

// parseLimit はlimitクエリパラメータを解析する。不正値はデフォルトに丸める。
func parseLimit(r *http.Request) int {
	limit := defaultPricePointsPerPage
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxPricePointsPerPage {
		limit = maxPricePointsPerPage
	}
	return limit
}

// parseCoord は座標クエリパラメータを解析し、範囲を検証する。
func parseCoord(r *http.Request, name string, min, max float64) (float64, error) {
	v, err := strconv.ParseFloat(r.URL.Query().Get(name), 64)
	if err != nil {
		return 0, err
	}
	if v < min || v > max {
		return 0, strconv.ErrRange
	}
	return v, nil
}

// writePricePointsResponse は価格観測データ一覧のレスポンスを書き込む。
func writePricePointsResponse(w http.ResponseWriter, points []*model.PricePoint) {
	results := make([]pricePointResponse, len(points))
	for i, p := range points {
		results[i] = pricePointResponse{
			ID:          p.ID,
			StoreName:   p.StoreName,
			ProductName: p.ProductName,
			UnitPrice:   p.UnitPrice,
			Lat:         p.Lat,
			Lng:         p.Lng,
			Category:    p.Category,
			CreatedAt:   p.CreatedAt,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"price_points": results,
	})
}
