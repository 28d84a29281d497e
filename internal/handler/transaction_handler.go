package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/finmemory/finmemory/internal/geo"
	"github.com/finmemory/finmemory/internal/middleware"
	"github.com/finmemory/finmemory/internal/model"
	"github.com/finmemory/finmemory/internal/pricepoint"
	"github.com/finmemory/finmemory/internal/transaction"
)

// TransactionServiceInterface は取引ハンドラーが必要とするサービスインターフェース。
type TransactionServiceInterface interface {
	// Save は取引と明細を検証して永続化する。
	Save(ctx context.Context, input transaction.SaveInput) (*model.Transaction, []model.TransactionItem, error)
	// ListByUser はユーザーの取引一覧を返す。
	ListByUser(ctx context.Context, userID string, limit int) ([]*model.Transaction, error)
	// GetWithItems は取引と明細を返す。
	GetWithItems(ctx context.Context, userID, txnID string) (*model.Transaction, []model.TransactionItem, error)
}

// PricePointDeriver は取引保存後の価格観測データ導出インターフェース。
type PricePointDeriver interface {
	Derive(ctx context.Context, input pricepoint.DeriveInput, source geo.LocationSource)
}

// TransactionHandlerConfig は取引ハンドラーの設定。
type TransactionHandlerConfig struct {
	// LocationMaxAge はリクエストに添付された測位結果の許容経過時間。
	LocationMaxAge time.Duration
}

// TransactionHandler は取引管理のHTTPハンドラー。
// 取引保存の成功後、ベストエフォートで価格観測データの導出を起動する。
type TransactionHandler struct {
	service TransactionServiceInterface
	deriver PricePointDeriver
	config  TransactionHandlerConfig
}

// NewTransactionHandler はTransactionHandlerを生成する。
func NewTransactionHandler(service TransactionServiceInterface, deriver PricePointDeriver, config TransactionHandlerConfig) *TransactionHandler {
	return &TransactionHandler{
		service: service,
		deriver: deriver,
		config:  config,
	}
}

// --- リクエスト・レスポンス型 ---

// saveItemRequest は取引登録リクエストの明細1行。
type saveItemRequest struct {
	Description string          `json:"description"`
	Quantity    int             `json:"quantity,omitempty"`
	TotalValue  decimal.Decimal `json:"total_value"`
}

// locationRequest はリクエストに添付される端末の測位結果。
type locationRequest struct {
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	RecordedAt time.Time `json:"recorded_at"`
}

// saveTransactionRequest は取引登録リクエストのボディ。
type saveTransactionRequest struct {
	StoreName   string            `json:"store_name"`
	StoreCity   string            `json:"store_city,omitempty"`
	Category    string            `json:"category,omitempty"`
	PurchasedAt *time.Time        `json:"purchased_at,omitempty"`
	Items       []saveItemRequest `json:"items"`
	Location    *locationRequest  `json:"location,omitempty"`
}

// transactionItemResponse は明細1行のAPIレスポンス。
type transactionItemResponse struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	TotalValue  decimal.Decimal `json:"total_value"`
}

// transactionResponse は取引のAPIレスポンス。
type transactionResponse struct {
	ID          string                    `json:"id"`
	StoreName   string                    `json:"store_name"`
	Category    string                    `json:"category,omitempty"`
	Total       decimal.Decimal           `json:"total"`
	PurchasedAt time.Time                 `json:"purchased_at"`
	CreatedAt   time.Time                 `json:"created_at"`
	Items       []transactionItemResponse `json:"items,omitempty"`
}

// SaveTransaction はレシート由来の取引を登録する。
// POST /api/transactions
//
// 保存が成功した場合、リクエストに添付された測位結果を使って
// 価格観測データの導出を非同期に起動する。導出の成否はレスポンスに影響しない。
func (h *TransactionHandler) SaveTransaction(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	var req saveTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	input := transaction.SaveInput{
		UserID:    userID,
		StoreName: req.StoreName,
		StoreCity: req.StoreCity,
		Category:  req.Category,
		Items:     make([]transaction.SaveItemInput, len(req.Items)),
	}
	if req.PurchasedAt != nil {
		input.PurchasedAt = *req.PurchasedAt
	}
	for i, item := range req.Items {
		input.Items[i] = transaction.SaveItemInput{
			Description: item.Description,
			Quantity:    item.Quantity,
			TotalValue:  item.TotalValue,
		}
	}

	txn, items, err := h.service.Save(r.Context(), input)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	// 価格観測データの導出。取引の保存結果には影響させない。
	h.deriveAsync(r.Context(), txn, items, req.Location)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toTransactionResponse(txn, items))
}

// ListTransactions はユーザーの取引一覧を取得する。
// GET /api/transactions?limit=50
func (h *TransactionHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, _ = strconv.Atoi(limitStr)
	}

	txns, err := h.service.ListByUser(r.Context(), userID, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]transactionResponse, len(txns))
	for i, txn := range txns {
		results[i] = toTransactionResponse(txn, nil)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"transactions": results,
	})
}

// GetTransaction は取引詳細を明細付きで取得する。
// GET /api/transactions/:id
func (h *TransactionHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorizedResponse(w)
		return
	}

	txnID := chi.URLParam(r, "id")

	txn, items, err := h.service.GetWithItems(r.Context(), userID, txnID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toTransactionResponse(txn, items))
}

// deriveAsync は保存済み取引から価格観測データの導出を別ゴルーチンで起動する。
// リクエストのコンテキスト値は引き継ぐが、キャンセルは切り離す
// （レスポンス送信後も導出は完走させる）。
func (h *TransactionHandler) deriveAsync(ctx context.Context, txn *model.Transaction, items []model.TransactionItem, loc *locationRequest) {
	var reading *geo.Reading
	if loc != nil {
		reading = &geo.Reading{
			Coordinate: model.GeoCoordinate{Lat: loc.Lat, Lng: loc.Lng},
			RecordedAt: loc.RecordedAt,
		}
	}
	source := geo.NewReadingSource(reading, h.config.LocationMaxAge)

	input := pricepoint.DeriveInput{
		OwnerID:   txn.UserID,
		StoreName: txn.StoreName,
		Category:  txn.Category,
		Items:     items,
	}

	detached := context.WithoutCancel(ctx)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("price point derivation panicked",
					slog.Any("panic", rec),
				)
			}
		}()
		h.deriver.Derive(detached, input, source)
	}()
}

// --- ヘルパー関数 ---

// toTransactionResponse はmodel.TransactionからAPIレスポンスに変換する。
func toTransactionResponse(txn *model.Transaction, items []model.TransactionItem) transactionResponse {
	resp := transactionResponse{
		ID:          txn.ID,
		StoreName:   txn.StoreName,
		Category:    txn.Category,
		Total:       txn.Total,
		PurchasedAt: txn.PurchasedAt,
		CreatedAt:   txn.CreatedAt,
	}
	if items != nil {
		resp.Items = make([]transactionItemResponse, len(items))
		for i, item := range items {
			resp.Items[i] = transactionItemResponse{
				ID:          item.ID,
				Description: item.Description,
				Quantity:    item.Quantity,
				TotalValue:  item.TotalValue,
			}
		}
	}
	return resp
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// writeUnauthorizedResponse は401レスポンスを書き込む。
func writeUnauthorizedResponse(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusUnauthorized, &model.APIError{
		Code:     "UNAUTHORIZED",
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeMissingAuthCode:
		return http.StatusBadRequest
	case model.ErrCodeAuthFailed:
		return http.StatusUnauthorized
	case model.ErrCodeInvalidTransaction,
		model.ErrCodeStoreNameRequired,
		model.ErrCodeEmptyItems:
		return http.StatusBadRequest
	case model.ErrCodeTransactionNotFound, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
