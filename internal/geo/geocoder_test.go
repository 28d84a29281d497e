package geo

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
)

func newTestGeocoder(endpoint, token string) *Geocoder {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewGeocoder(GeocoderConfig{
		AccessToken: token,
		Country:     "BR",
		Endpoint:    endpoint,
	}, http.DefaultClient, logger)
}

// TestGeocode_Success_ConvertsAxisOrder はAPIが返す[経度, 緯度]を
// 緯度・経度の順に変換して返すことを検証する。
func TestGeocode_Success_ConvertsAxisOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("access_token"); got != "test-token" {
			t.Errorf("access_token = %q, want %q", got, "test-token")
		}
		if got := r.URL.Query().Get("country"); got != "BR" {
			t.Errorf("country = %q, want %q", got, "BR")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"features":[{"center":[-46.6333,-23.5505]}]}`))
	}))
	defer server.Close()

	g := newTestGeocoder(server.URL, "test-token")

	coord := g.Geocode(context.Background(), "Mercado Central, São Paulo, Brasil")
	if coord == nil {
		t.Fatal("expected non-nil coordinate")
	}
	if coord.Lat != -23.5505 {
		t.Errorf("Lat = %v, want -23.5505", coord.Lat)
	}
	if coord.Lng != -46.6333 {
		t.Errorf("Lng = %v, want -46.6333", coord.Lng)
	}
}

// TestGeocode_ShortQuery_NoNetworkCall はトリム後2文字未満のクエリでは
// ネットワーク呼び出しを行わずnilを返すことを検証する。
func TestGeocode_ShortQuery_NoNetworkCall(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.Write([]byte(`{"features":[{"center":[-46.6,-23.5]}]}`))
	}))
	defer server.Close()

	g := newTestGeocoder(server.URL, "test-token")

	tests := []struct {
		name  string
		query string
	}{
		{"empty", ""},
		{"whitespace only", "   "},
		{"single rune", "A"},
		{"single rune with spaces", "  A  "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			coord := g.Geocode(context.Background(), tt.query)
			if coord != nil {
				t.Errorf("Geocode(%q) = %v, want nil", tt.query, coord)
			}
			if called {
				t.Error("geocoding API should not be called for short query")
			}
		})
	}
}

// TestGeocode_NoAccessToken_ReturnsNil はトークン未設定時に常にnilを返すことを検証する。
func TestGeocode_NoAccessToken_ReturnsNil(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	g := newTestGeocoder(server.URL, "")

	coord := g.Geocode(context.Background(), "Mercado Central, São Paulo")
	if coord != nil {
		t.Errorf("expected nil coordinate, got %v", coord)
	}
	if called {
		t.Error("geocoding API should not be called without access token")
	}
}

// TestGeocode_EmptyFeatures_ReturnsNil は結果が0件の場合にnilを返すことを検証する。
func TestGeocode_EmptyFeatures_ReturnsNil(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"features":[]}`))
	}))
	defer server.Close()

	g := newTestGeocoder(server.URL, "test-token")

	if coord := g.Geocode(context.Background(), "存在しない場所"); coord != nil {
		t.Errorf("expected nil coordinate, got %v", coord)
	}
}

// TestGeocode_ServerError_ReturnsNil はHTTPエラー時にnilを返し、
// エラーを伝播しないことを検証する。
func TestGeocode_ServerError_ReturnsNil(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	g := newTestGeocoder(server.URL, "test-token")

	if coord := g.Geocode(context.Background(), "Mercado Central"); coord != nil {
		t.Errorf("expected nil coordinate, got %v", coord)
	}
}

// TestGeocode_InvalidJSON_ReturnsNil は不正なレスポンスボディでnilを返すことを検証する。
func TestGeocode_InvalidJSON_ReturnsNil(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	g := newTestGeocoder(server.URL, "test-token")

	if coord := g.Geocode(context.Background(), "Mercado Central"); coord != nil {
		t.Errorf("expected nil coordinate, got %v", coord)
	}
}

// TestGeocode_MalformedCenter_ReturnsNil はcenterの要素数が不足している場合に
// nilを返すことを検証する。
func TestGeocode_MalformedCenter_ReturnsNil(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"features":[{"center":[-46.6333]}]}`))
	}))
	defer server.Close()

	g := newTestGeocoder(server.URL, "test-token")

	if coord := g.Geocode(context.Background(), "Mercado Central"); coord != nil {
		t.Errorf("expected nil coordinate, got %v", coord)
	}
}

// TestGeocode_ConnectionFailure_ReturnsNil は通信失敗時にnilを返すことを検証する。
func TestGeocode_ConnectionFailure_ReturnsNil(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // 即座に閉じて接続エラーを発生させる

	g := newTestGeocoder(server.URL, "test-token")

	if coord := g.Geocode(context.Background(), "Mercado Central"); coord != nil {
		t.Errorf("expected nil coordinate, got %v", coord)
	}
}
