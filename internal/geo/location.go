package geo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/finmemory/finmemory/internal/model"
)

// ErrLocationUnavailable は現在位置が取得できないことを表す。
var ErrLocationUnavailable = errors.New("location unavailable")

// ErrLocationStale は位置情報の読み取りが許容経過時間を超えていることを表す。
var ErrLocationStale = errors.New("location reading is stale")

// LocationSource は一回限りの現在位置取得を抽象化するインターフェース。
// 取得できない場合はエラーを返し、呼び出し元が処理を中断するか判断する。
type LocationSource interface {
	// Current は現在位置を返す。取得できない場合はエラーを返す。
	// 呼び出し元のctxでタイムアウト・キャンセルを制御する。
	Current(ctx context.Context) (*model.GeoCoordinate, error)
}

// Reading は取得時刻付きの位置情報の読み取り結果を表す。
// 端末側で測位された結果がリクエストに添付されて届く。
type Reading struct {
	Coordinate model.GeoCoordinate
	RecordedAt time.Time
}

// readingSource はリクエストに添付された測位結果をLocationSourceとして扱う実装。
// maxAgeより古い読み取りは期限切れとして拒否する（キャッシュ済み読み取りの許容範囲）。
type readingSource struct {
	reading *Reading
	maxAge  time.Duration
	now     func() time.Time
}

// NewReadingSource は測位結果からLocationSourceを生成する。
// readingがnilの場合、Currentは常にErrLocationUnavailableを返す。
func NewReadingSource(reading *Reading, maxAge time.Duration) LocationSource {
	return &readingSource{
		reading: reading,
		maxAge:  maxAge,
		now:     time.Now,
	}
}

// Current は添付された測位結果を検証して返す。
func (s *readingSource) Current(ctx context.Context) (*model.GeoCoordinate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if s.reading == nil {
		return nil, ErrLocationUnavailable
	}

	if age := s.now().Sub(s.reading.RecordedAt); age > s.maxAge {
		return nil, fmt.Errorf("%w: recorded %s ago", ErrLocationStale, age.Round(time.Second))
	}

	coord := s.reading.Coordinate
	if coord.Lat < -90 || coord.Lat > 90 || coord.Lng < -180 || coord.Lng > 180 {
		return nil, fmt.Errorf("%w: coordinate out of range (%f, %f)", ErrLocationUnavailable, coord.Lat, coord.Lng)
	}

	return &coord, nil
}
