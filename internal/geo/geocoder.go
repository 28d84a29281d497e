// Package geo はジオコーディングと端末位置情報の取得を提供する。
package geo

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/finmemory/finmemory/internal/model"
)

const (
	// defaultEndpoint はMapboxフォワードジオコーディングAPIのエンドポイント。
	defaultEndpoint = "https://api.mapbox.com/geocoding/v5/mapbox.places"
	// minQueryLength はジオコーディングを実行する最小クエリ長（トリム後の文字数）。
	minQueryLength = 2
)

// GeocoderService はフリーテキストの場所表記を座標に変換するインターフェース。
// 結果が得られない場合はnilを返す（エラーは呼び出し元に伝播しない）。
type GeocoderService interface {
	// Geocode はクエリ（例: "店舗名, 市区町村, 国"）を座標に変換する。
	// トークン未設定、クエリ不正、HTTPエラー、レスポンス不正、通信失敗の
	// いずれの場合もnilを返す（fail closed）。リトライは行わない。
	Geocode(ctx context.Context, query string) *model.GeoCoordinate
}

// GeocoderConfig はGeocoderの設定。
type GeocoderConfig struct {
	// AccessToken は外部ジオコーディングサービスのアクセストークン。
	// 空の場合、Geocodeは常にnilを返す。
	AccessToken string
	// Country は検索対象を地理的に限定する国コード（ISO 3166-1 alpha-2）。
	Country string

	// テスト用にオーバーライド可能なエンドポイント
	Endpoint string
}

// Geocoder はGeocoderServiceの実装。
// 外部ジオコーディングサービスのフォワードジオコーディングAPIを呼び出す。
type Geocoder struct {
	config     GeocoderConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// NewGeocoder はGeocoderを生成する。
// httpClientにはSSRF防止機能付きのクライアントを渡すことを想定している。
func NewGeocoder(config GeocoderConfig, httpClient *http.Client, logger *slog.Logger) *Geocoder {
	if config.Endpoint == "" {
		config.Endpoint = defaultEndpoint
	}
	if config.Country == "" {
		config.Country = "BR"
	}
	return &Geocoder{
		config:     config,
		httpClient: httpClient,
		logger:     logger,
	}
}

// geocodeResponse はジオコーディングAPIのレスポンス（必要部分のみ）。
// centerは[経度, 緯度]の順で返される点に注意。
type geocodeResponse struct {
	Features []struct {
		Center []float64 `json:"center"`
	} `json:"features"`
}

// Geocode はクエリを座標に変換する。結果が得られない場合はnilを返す。
// 失敗はすべて警告ログに留め、エラーとして伝播しない（fail closed）。
// 一時的な失敗でもその呼び出しは「結果なし」で確定する。リトライは呼び出し元の責務。
func (g *Geocoder) Geocode(ctx context.Context, query string) *model.GeoCoordinate {
	trimmed := strings.TrimSpace(query)
	if utf8.RuneCountInString(trimmed) < minQueryLength {
		// 短すぎるクエリはネットワーク呼び出しなしで打ち切る
		return nil
	}

	if g.config.AccessToken == "" {
		g.logger.Warn("geocoding skipped: access token not configured")
		return nil
	}

	reqURL := g.config.Endpoint + "/" + url.PathEscape(trimmed) + ".json"
	params := url.Values{
		"access_token": {g.config.AccessToken},
		"country":      {g.config.Country},
		"limit":        {"1"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL+"?"+params.Encode(), nil)
	if err != nil {
		g.logger.Warn("geocoding request build failed", slog.String("error", err.Error()))
		return nil
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.logger.Warn("geocoding request failed", slog.String("error", err.Error()))
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		g.logger.Warn("geocoding returned non-success status",
			slog.Int("http_status", resp.StatusCode),
		)
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		g.logger.Warn("geocoding response read failed", slog.String("error", err.Error()))
		return nil
	}

	var result geocodeResponse
	if err := json.Unmarshal(body, &result); err != nil {
		g.logger.Warn("geocoding response parse failed", slog.String("error", err.Error()))
		return nil
	}

	if len(result.Features) == 0 || len(result.Features[0].Center) < 2 {
		return nil
	}

	// プロバイダーは[経度, 緯度]順で返すため、(緯度, 経度)順に変換する
	center := result.Features[0].Center
	return &model.GeoCoordinate{
		Lat: center[1],
		Lng: center[0],
	}
}

// compile-time interface check
var _ GeocoderService = (*Geocoder)(nil)
