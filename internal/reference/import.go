package reference

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// BatchSender is the subset of *pgxpool.Pool used by ImportMaster.
type BatchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// ImportMaster upserts master rows into table so PostgresSource can serve
// them. A zero coupon is stored as 0, not NULL. Returns the rows written.
func ImportMaster(ctx context.Context, db BatchSender, table string, rows []MasterRow) (int, error) {
	if len(rows) == 0 {
		return 0, ErrEmptyMaster
	}

	upsert := fmt.Sprintf(`
		INSERT INTO %s (symbol, ip_rate, redemption_date, updated_at)
		VALUES ($1, $2::numeric, $3, now())
		ON CONFLICT (symbol) DO UPDATE SET
			ip_rate         = EXCLUDED.ip_rate,
			redemption_date = EXCLUDED.redemption_date,
			updated_at      = now()
	`, pgx.Identifier{table}.Sanitize())

	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(upsert, r.Symbol, r.CouponRate.String(), r.Redemption)
	}

	br := db.SendBatch(ctx, batch)
	defer br.Close()

	for i := range rows {
		if _, err := br.Exec(); err != nil {
			return i, fmt.Errorf("upsert %s: %w", rows[i].Symbol, err)
		}
	}
	return len(rows), nil
}
