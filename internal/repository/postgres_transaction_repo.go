package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/finmemory/finmemory/internal/model"
)

// PostgresTransactionRepo はPostgreSQLを使用した取引リポジトリ。
type PostgresTransactionRepo struct {
	db *sql.DB
}

// NewPostgresTransactionRepo はPostgresTransactionRepoを生成する。
func NewPostgresTransactionRepo(db *sql.DB) *PostgresTransactionRepo {
	return &PostgresTransactionRepo{db: db}
}

// CreateWithItems は取引と明細を同一トランザクションで作成する。
func (r *PostgresTransactionRepo) CreateWithItems(ctx context.Context, txn *model.Transaction, items []model.TransactionItem) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// 取引を作成
	_, err = tx.ExecContext(ctx,
		`INSERT INTO transactions (id, user_id, store_name, category, total, purchased_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		txn.ID, txn.UserID, txn.StoreName, txn.Category, txn.Total, txn.PurchasedAt, txn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	// 明細を作成
	for _, item := range items {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO transaction_items (id, transaction_id, description, quantity, total_value)
			 VALUES ($1, $2, $3, $4, $5)`,
			item.ID, item.TransactionID, item.Description, item.Quantity, item.TotalValue,
		)
		if err != nil {
			return fmt.Errorf("failed to insert transaction item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// FindByID は指定IDの取引を取得する。見つからない場合はnilを返す。
func (r *PostgresTransactionRepo) FindByID(ctx context.Context, id string) (*model.Transaction, error) {
	txn := &model.Transaction{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, store_name, category, total, purchased_at, created_at
		 FROM transactions WHERE id = $1`,
		id,
	).Scan(&txn.ID, &txn.UserID, &txn.StoreName, &txn.Category, &txn.Total, &txn.PurchasedAt, &txn.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find transaction by ID: %w", err)
	}

	return txn, nil
}

// ListByUserID はユーザーの取引一覧をpurchased_at降順で取得する。
func (r *PostgresTransactionRepo) ListByUserID(ctx context.Context, userID string, limit int) ([]*model.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, store_name, category, total, purchased_at, created_at
		 FROM transactions
		 WHERE user_id = $1
		 ORDER BY purchased_at DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txns []*model.Transaction
	for rows.Next() {
		txn := &model.Transaction{}
		if err := rows.Scan(&txn.ID, &txn.UserID, &txn.StoreName, &txn.Category, &txn.Total, &txn.PurchasedAt, &txn.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}

	return txns, nil
}

// ListItemsByTransactionID は取引の明細一覧を取得する。
func (r *PostgresTransactionRepo) ListItemsByTransactionID(ctx context.Context, transactionID string) ([]model.TransactionItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, transaction_id, description, quantity, total_value
		 FROM transaction_items
		 WHERE transaction_id = $1
		 ORDER BY id`,
		transactionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list transaction items: %w", err)
	}
	defer rows.Close()

	var items []model.TransactionItem
	for rows.Next() {
		var item model.TransactionItem
		if err := rows.Scan(&item.ID, &item.TransactionID, &item.Description, &item.Quantity, &item.TotalValue); err != nil {
			return nil, fmt.Errorf("failed to scan transaction item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transaction items: %w", err)
	}

	return items, nil
}

// compile-time interface check
var _ TransactionRepository = (*PostgresTransactionRepo)(nil)
