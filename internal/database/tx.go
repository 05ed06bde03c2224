package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"wove-server/internal/interfaces"
)

// Compile-time check
var _ interfaces.TxRunner = (*PgxTxRunner)(nil)

// PgxTxRunner - реализация TxRunner поверх пула соединений pgx.
type PgxTxRunner struct {
	pool *pgxpool.Pool
}

// NewPgxTxRunner создает новый TxRunner.
func NewPgxTxRunner(pool *pgxpool.Pool) *PgxTxRunner {
	return &PgxTxRunner{pool: pool}
}

// WithTx выполняет fn внутри транзакции с откатом при ошибке или панике.
func (r *PgxTxRunner) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	// Откат при панике
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(context.Background())
			panic(p)
		}
	}()
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit tx: %w", err)
	}
	return nil
}
