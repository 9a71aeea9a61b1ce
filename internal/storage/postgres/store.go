package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"arbscope/internal/model"
	"arbscope/internal/storage"
)

//go:embed migrations/001_init.sql
var schemaSQL string

// Store persists scan reports in Postgres.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

// PutReport stores the scan header and every accepted opportunity in one transaction.
func (s *Store) PutReport(ctx context.Context, report model.ScanReport) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, insertScanSQL, scanArgs(report)...); err != nil {
		return fmt.Errorf("postgres: insert scan: %w", err)
	}

	records := storage.Records(report)
	if len(records) > 0 {
		batch := &pgx.Batch{}
		for _, record := range records {
			batch.Queue(insertOpportunitySQL, opportunityArgs(record)...)
		}
		br := tx.SendBatch(ctx, batch)
		for range records {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("postgres: insert opportunity: %w", err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("postgres: close batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

const insertScanSQL = `
	INSERT INTO arb_scans (
		scan_id, chain_id, block_number, token_in, token_out, pool_count, pair_count,
		failed_pairs, opportunities, started_at, duration_ms
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (scan_id) DO NOTHING
`

const insertOpportunitySQL = `
	INSERT INTO arb_opportunities (
		scan_id, rank, source_pool, target_pool, method, estimated_amount_in, estimated_profit,
		amount_in_low, amount_in, amount_in_high, amount_out,
		profit_low, profit, profit_high, warnings
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8::numeric, $9::numeric, $10::numeric, $11::numeric,
		$12::numeric, $13::numeric, $14::numeric, $15)
	ON CONFLICT (scan_id, source_pool, target_pool)
	DO UPDATE SET
		rank = EXCLUDED.rank,
		amount_out = EXCLUDED.amount_out,
		profit = EXCLUDED.profit,
		warnings = EXCLUDED.warnings
`

func scanArgs(report model.ScanReport) []any {
	return []any{
		report.ScanID,
		int64(report.ChainID),
		int64(report.BlockNumber),
		report.TokenIn.Address,
		report.TokenOut.Address,
		report.PoolCount,
		len(report.Pairs),
		len(report.Failed()),
		len(report.Opportunities),
		report.StartedAt,
		report.Duration.Milliseconds(),
	}
}

func opportunityArgs(record storage.OpportunityRecord) []any {
	warnings := record.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	return []any{
		record.ScanID,
		record.Rank,
		record.Source,
		record.Target,
		record.Method,
		record.Estimate,
		record.EstProfit,
		record.Probes[0].AmountIn,
		record.Probes[1].AmountIn,
		record.Probes[2].AmountIn,
		record.Probes[1].AmountOut,
		record.Probes[0].Profit,
		record.Probes[1].Profit,
		record.Probes[2].Profit,
		warnings,
	}
}
