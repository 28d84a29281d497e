// Package transaction はレシート由来の取引の登録・参照機能を提供する。
package transaction

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/finmemory/finmemory/internal/model"
	"github.com/finmemory/finmemory/internal/repository"
	"github.com/finmemory/finmemory/internal/security"
)

// SaveItemInput は取引登録時の明細1行の入力を表す。
type SaveItemInput struct {
	Description string
	Quantity    int
	TotalValue  decimal.Decimal
}

// SaveInput は取引登録の入力を表す。
type SaveInput struct {
	UserID      string
	StoreName   string
	StoreCity   string
	Category    string
	PurchasedAt time.Time
	Items       []SaveItemInput
}

// Service は取引に関するビジネスロジックを提供する。
type Service struct {
	txRepo    repository.TransactionRepository
	storeRepo repository.StoreRepository
	sanitizer security.TextSanitizerService
}

// NewService はServiceを生成する。
func NewService(
	txRepo repository.TransactionRepository,
	storeRepo repository.StoreRepository,
	sanitizer security.TextSanitizerService,
) *Service {
	return &Service{
		txRepo:    txRepo,
		storeRepo: storeRepo,
		sanitizer: sanitizer,
	}
}

// Save は取引と明細をバリデーション・サニタイズして永続化する。
// 合計金額は明細の合計から算出する。
// 保存成功後、店舗を価格マップ用にUPSERTする（失敗してもログのみで続行）。
func (s *Service) Save(ctx context.Context, input SaveInput) (*model.Transaction, []model.TransactionItem, error) {
	storeName := normalizeSpaces(s.sanitizer.Sanitize(input.StoreName))
	if storeName == "" {
		return nil, nil, model.NewStoreNameRequiredError()
	}
	if len(input.Items) == 0 {
		return nil, nil, model.NewEmptyItemsError()
	}

	now := time.Now()
	purchasedAt := input.PurchasedAt
	if purchasedAt.IsZero() {
		purchasedAt = now
	}

	txnID := uuid.New().String()

	total := decimal.Zero
	items := make([]model.TransactionItem, 0, len(input.Items))
	for _, in := range input.Items {
		description := normalizeSpaces(s.sanitizer.Sanitize(in.Description))
		if description == "" {
			return nil, nil, model.NewInvalidTransactionError("明細の品名が空です")
		}
		if in.TotalValue.IsNegative() {
			return nil, nil, model.NewInvalidTransactionError("明細の金額が負です")
		}

		quantity := in.Quantity
		if quantity < 0 {
			return nil, nil, model.NewInvalidTransactionError("明細の数量が負です")
		}

		items = append(items, model.TransactionItem{
			ID:            uuid.New().String(),
			TransactionID: txnID,
			Description:   description,
			Quantity:      quantity,
			TotalValue:    in.TotalValue,
		})
		total = total.Add(in.TotalValue)
	}

	txn := &model.Transaction{
		ID:          txnID,
		UserID:      input.UserID,
		StoreName:   storeName,
		Category:    s.sanitizer.Sanitize(input.Category),
		Total:       total,
		PurchasedAt: purchasedAt,
		CreatedAt:   now,
	}

	if err := s.txRepo.CreateWithItems(ctx, txn, items); err != nil {
		return nil, nil, err
	}

	// 店舗のUPSERTはベストエフォート。失敗しても取引保存は成功として扱う。
	store := &model.Store{
		ID:        uuid.New().String(),
		Name:      storeName,
		City:      s.sanitizer.Sanitize(input.StoreCity),
		CreatedAt: now,
	}
	if err := s.storeRepo.UpsertByNameCity(ctx, store); err != nil {
		slog.Warn("store upsert failed after transaction save",
			slog.String("store_name", storeName),
			slog.String("error", err.Error()),
		)
	}

	return txn, items, nil
}

// ListByUser はユーザーの取引一覧を取得する。
func (s *Service) ListByUser(ctx context.Context, userID string, limit int) ([]*model.Transaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.txRepo.ListByUserID(ctx, userID, limit)
}

// GetWithItems は指定IDの取引と明細を取得する。
// 取引が見つからない、または所有者が一致しない場合はAPIErrorを返す。
func (s *Service) GetWithItems(ctx context.Context, userID, txnID string) (*model.Transaction, []model.TransactionItem, error) {
	txn, err := s.txRepo.FindByID(ctx, txnID)
	if err != nil {
		return nil, nil, err
	}
	if txn == nil || txn.UserID != userID {
		return nil, nil, model.NewTransactionNotFoundError(txnID)
	}

	items, err := s.txRepo.ListItemsByTransactionID(ctx, txnID)
	if err != nil {
		return nil, nil, err
	}

	return txn, items, nil
}

// normalizeSpaces は連続する空白を1つにまとめる。
// レシートOCR由来の店舗名・品名の揺れを吸収するための補助。
func normalizeSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
