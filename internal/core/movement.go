package core

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// MovementType labels a row in the stock movement journal.
type MovementType string

const (
	MovementReceipt  MovementType = "RECEIPT"
	MovementAllocate MovementType = "ALLOCATE"
	MovementRelease  MovementType = "RELEASE"
	MovementConsume  MovementType = "CONSUME"
)

// Movement is one append-only journal row. Movements are written in the same
// transaction as the instance/inventory change they describe, so the journal
// and the counters can never disagree about what happened.
type Movement struct {
	ID             int             `json:"id"`
	Type           MovementType    `json:"movement_type"`
	SKUID          int             `json:"sku_id"`
	SKUCode        string          `json:"sku_code"` // joined from skus
	TagID          *int            `json:"tag_id,omitempty"`
	Quantity       int             `json:"quantity"`
	UnitCost       decimal.Decimal `json:"unit_cost"`
	TotalCost      decimal.Decimal `json:"total_cost"`
	MovementDate   string          `json:"movement_date"` // YYYY-MM-DD
	Actor          string          `json:"actor"`
	Notes          string          `json:"notes"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// MovementLog records and queries stock movements.
type MovementLog struct {
	pool *pgxpool.Pool
}

func NewMovementLog(pool *pgxpool.Pool) *MovementLog {
	return &MovementLog{pool: pool}
}

// RecordTx appends a movement within the caller's transaction.
func (l *MovementLog) RecordTx(ctx context.Context, tx pgx.Tx, m Movement) error {
	if m.Quantity <= 0 {
		return fmt.Errorf("movement quantity must be positive, got %d", m.Quantity)
	}
	date := m.MovementDate
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}
	var key *string
	if m.IdempotencyKey != "" {
		key = &m.IdempotencyKey
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO stock_movements
			(movement_type, sku_id, tag_id, quantity, unit_cost, total_cost, movement_date, actor, notes, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, string(m.Type), m.SKUID, m.TagID, m.Quantity, m.UnitCost, m.TotalCost, date, m.Actor, m.Notes, key)
	if err != nil {
		return fmt.Errorf("failed to insert stock movement: %w", err)
	}
	return nil
}

// List returns the most recent movements, newest first, optionally filtered by
// SKU code. limit <= 0 means a default of 100.
func (l *MovementLog) List(ctx context.Context, skuCode string, limit int) ([]Movement, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := l.pool.Query(ctx, `
		SELECT m.id, m.movement_type, m.sku_id, s.code, m.tag_id, m.quantity,
		       m.unit_cost, m.total_cost, to_char(m.movement_date, 'YYYY-MM-DD'),
		       m.actor, m.notes, COALESCE(m.idempotency_key, ''), m.created_at
		FROM stock_movements m
		JOIN skus s ON s.id = m.sku_id
		WHERE ($1 = '' OR s.code = $1)
		ORDER BY m.id DESC
		LIMIT $2
	`, skuCode, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock movements: %w", err)
	}
	defer rows.Close()

	var movements []Movement
	for rows.Next() {
		var m Movement
		if err := rows.Scan(
			&m.ID, &m.Type, &m.SKUID, &m.SKUCode, &m.TagID, &m.Quantity,
			&m.UnitCost, &m.TotalCost, &m.MovementDate,
			&m.Actor, &m.Notes, &m.IdempotencyKey, &m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan stock movement: %w", err)
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}
