package reference

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/wonny/debtview/internal/bond"
	"github.com/wonny/debtview/pkg/httputil"
	"github.com/wonny/debtview/pkg/logger"
	"github.com/wonny/debtview/pkg/redis"
)

// Source loads the instrument master list.
type Source interface {
	Name() string
	Load(ctx context.Context) (*Master, error)
}

// =============================================================================
// File
// =============================================================================

// FileSource reads a master CSV from disk.
type FileSource struct {
	Path string
}

func (s *FileSource) Name() string { return "file:" + s.Path }

func (s *FileSource) Load(ctx context.Context) (*Master, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open master file: %w", err)
	}
	defer f.Close()

	m, err := ParseCSV(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.Path, err)
	}
	m.Source = s.Name()
	m.LoadedAt = time.Now()
	return m, nil
}

// =============================================================================
// URL
// =============================================================================

// URLSource downloads the master CSV (the exchange publishes DEBT.csv).
type URLSource struct {
	URL    string
	Client *httputil.Client
}

func (s *URLSource) Name() string { return "url:" + s.URL }

func (s *URLSource) Load(ctx context.Context) (*Master, error) {
	body, err := s.Client.GetBody(ctx, s.URL)
	if err != nil {
		return nil, fmt.Errorf("download master list: %w", err)
	}

	m, err := ParseCSV(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.URL, err)
	}
	m.Source = s.Name()
	m.LoadedAt = time.Now()
	return m, nil
}

// =============================================================================
// PostgreSQL
// =============================================================================

// Querier is the subset of *pgxpool.Pool used by PostgresSource.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresSource reads debt_master(symbol, ip_rate, redemption_date).
// ⭐ SSOT: 참조 마스터 DB 조회는 여기서만
type PostgresSource struct {
	DB    Querier
	Table string
}

func (s *PostgresSource) Name() string { return "postgres:" + s.Table }

func (s *PostgresSource) Load(ctx context.Context) (*Master, error) {
	query := fmt.Sprintf(`
		SELECT
			symbol,
			COALESCE(ip_rate::text, ''),
			redemption_date
		FROM %s
		ORDER BY symbol
	`, pgx.Identifier{s.Table}.Sanitize())

	rows, err := s.DB.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", s.Table, err)
	}
	defer rows.Close()

	m := &Master{Source: s.Name(), LoadedAt: time.Now()}
	line := 0
	for rows.Next() {
		line++
		var symbol, rate string
		var redemption *time.Time

		if err := rows.Scan(&symbol, &rate, &redemption); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		symbol = strings.TrimSpace(symbol)
		switch {
		case symbol == "":
			m.Rejected = append(m.Rejected, newRowError(line, "", ErrMissingSymbol))
			continue
		case redemption == nil:
			m.Rejected = append(m.Rejected, newRowError(line, symbol, ErrMissingRedemption))
			continue
		}

		coupon, err := ParseCoupon(rate)
		if err != nil {
			m.Rejected = append(m.Rejected, newRowError(line, symbol, err))
			continue
		}

		m.Rows = append(m.Rows, MasterRow{
			Symbol:     symbol,
			CouponRate: coupon,
			Redemption: bond.CivilDate(*redemption),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return m, nil
}

// =============================================================================
// Redis cache
// =============================================================================

// CachedSource serves the master list from Redis when present and fills the
// cache on a miss. Cache failures degrade to a direct load.
type CachedSource struct {
	Inner  Source
	Cache  *redis.Cache
	TTL    time.Duration
	Logger *logger.Logger
}

func (s *CachedSource) Name() string { return s.Inner.Name() }

func (s *CachedSource) Load(ctx context.Context) (*Master, error) {
	key := redis.ReferenceMasterKey(s.Inner.Name())

	var cached Master
	found, err := s.Cache.Get(ctx, key, &cached)
	if err != nil {
		s.Logger.WithError(err).Warn("reference cache read failed")
	}
	if found && len(cached.Rows) > 0 {
		s.Logger.WithFields(map[string]interface{}{
			"source": cached.Source,
			"rows":   len(cached.Rows),
		}).Debug("reference master served from cache")
		return &cached, nil
	}

	m, err := s.Inner.Load(ctx)
	if err != nil {
		return nil, err
	}

	ttl := s.TTL
	if ttl <= 0 {
		ttl = redis.TTLLong
	}
	if err := s.Cache.Set(ctx, key, m, ttl); err != nil {
		s.Logger.WithError(err).Warn("reference cache write failed")
	}
	return m, nil
}

// Invalidate drops the cached master so the next Load goes to the origin.
func (s *CachedSource) Invalidate(ctx context.Context) error {
	return s.Cache.Delete(ctx, redis.ReferenceMasterKey(s.Inner.Name()))
}

// StaticSource serves fixed rows. Useful for tests and seeded deployments.
type StaticSource struct {
	Rows []MasterRow
}

func (s *StaticSource) Name() string { return "static" }

func (s *StaticSource) Load(ctx context.Context) (*Master, error) {
	rows := make([]MasterRow, len(s.Rows))
	copy(rows, s.Rows)
	return &Master{Source: s.Name(), LoadedAt: time.Now(), Rows: rows}, nil
}

// Row is a convenience constructor for a master row.
func Row(symbol, coupon string, redemption time.Time) MasterRow {
	return MasterRow{Symbol: symbol, CouponRate: decimal.RequireFromString(coupon), Redemption: bond.CivilDate(redemption)}
}
