package core

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SequenceService hands out gapless record numbers (TAG-00001, RCV-00001).
// Numbers are drawn inside the caller's transaction so a rolled-back operation
// never burns a number.
type SequenceService interface {
	// NextNumberTx increments the sequence for recordType within tx and
	// returns the formatted number.
	NextNumberTx(ctx context.Context, tx pgx.Tx, recordType string) (string, error)
}

type sequenceService struct {
	pool *pgxpool.Pool
}

func NewSequenceService(pool *pgxpool.Pool) SequenceService {
	return &sequenceService{pool: pool}
}

func (s *sequenceService) NextNumberTx(ctx context.Context, tx pgx.Tx, recordType string) (string, error) {
	// The upsert takes a row lock on the sequence row, serializing concurrent
	// number assignment for the same record type.
	var lastNumber int64
	err := tx.QueryRow(ctx, `
		INSERT INTO record_sequences (record_type, last_number)
		VALUES ($1, 1)
		ON CONFLICT (record_type)
		DO UPDATE SET last_number = record_sequences.last_number + 1
		RETURNING last_number
	`, recordType).Scan(&lastNumber)
	if err != nil {
		return "", fmt.Errorf("failed to generate %s sequence number: %w", recordType, err)
	}
	return fmt.Sprintf("%s-%05d", recordType, lastNumber), nil
}
