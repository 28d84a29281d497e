package geo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/finmemory/finmemory/internal/model"
)

// TestReadingSource_ValidReading_ReturnsCoordinate は有効な測位結果が
// そのまま返されることを検証する。
func TestReadingSource_ValidReading_ReturnsCoordinate(t *testing.T) {
	reading := &Reading{
		Coordinate: model.GeoCoordinate{Lat: -23.5505, Lng: -46.6333},
		RecordedAt: time.Now(),
	}
	source := NewReadingSource(reading, 5*time.Minute)

	coord, err := source.Current(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if coord.Lat != -23.5505 || coord.Lng != -46.6333 {
		t.Errorf("coordinate = %+v, want (-23.5505, -46.6333)", coord)
	}
}

// TestReadingSource_NilReading_ReturnsUnavailable は測位結果なしの場合に
// ErrLocationUnavailableを返すことを検証する。
func TestReadingSource_NilReading_ReturnsUnavailable(t *testing.T) {
	source := NewReadingSource(nil, 5*time.Minute)

	_, err := source.Current(context.Background())
	if !errors.Is(err, ErrLocationUnavailable) {
		t.Errorf("error = %v, want ErrLocationUnavailable", err)
	}
}

// TestReadingSource_StaleReading_ReturnsStale は許容経過時間を超えた
// 測位結果が拒否されることを検証する。
func TestReadingSource_StaleReading_ReturnsStale(t *testing.T) {
	reading := &Reading{
		Coordinate: model.GeoCoordinate{Lat: -23.5505, Lng: -46.6333},
		RecordedAt: time.Now().Add(-10 * time.Minute),
	}
	source := NewReadingSource(reading, 5*time.Minute)

	_, err := source.Current(context.Background())
	if !errors.Is(err, ErrLocationStale) {
		t.Errorf("error = %v, want ErrLocationStale", err)
	}
}

// TestReadingSource_CanceledContext_ReturnsError はキャンセル済み
// コンテキストでエラーを返すことを検証する。
func TestReadingSource_CanceledContext_ReturnsError(t *testing.T) {
	reading := &Reading{
		Coordinate: model.GeoCoordinate{Lat: -23.5505, Lng: -46.6333},
		RecordedAt: time.Now(),
	}
	source := NewReadingSource(reading, 5*time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := source.Current(ctx); err == nil {
		t.Error("expected error for canceled context")
	}
}

// TestReadingSource_OutOfRangeCoordinate_ReturnsError は範囲外の座標が
// 拒否されることを検証する。
func TestReadingSource_OutOfRangeCoordinate_ReturnsError(t *testing.T) {
	tests := []struct {
		name string
		lat  float64
		lng  float64
	}{
		{"latitude too large", 91, 0},
		{"latitude too small", -91, 0},
		{"longitude too large", 0, 181},
		{"longitude too small", 0, -181},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reading := &Reading{
				Coordinate: model.GeoCoordinate{Lat: tt.lat, Lng: tt.lng},
				RecordedAt: time.Now(),
			}
			source := NewReadingSource(reading, 5*time.Minute)

			_, err := source.Current(context.Background())
			if !errors.Is(err, ErrLocationUnavailable) {
				t.Errorf("error = %v, want ErrLocationUnavailable", err)
			}
		})
	}
}
