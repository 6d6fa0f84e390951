package reference

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/debtview/internal/bond"
	"github.com/wonny/debtview/pkg/config"
	"github.com/wonny/debtview/pkg/httputil"
	"github.com/wonny/debtview/pkg/logger"
	"github.com/wonny/debtview/pkg/redis"
)

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "DEBT.csv")
	require.NoError(t, os.WriteFile(path, []byte(debtCSV), 0o600))

	src := &FileSource{Path: path}
	m, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, m.Rows, 3)
	assert.Equal(t, "file:"+path, m.Source)

	_, err = (&FileSource{Path: filepath.Join(t.TempDir(), "missing.csv")}).Load(context.Background())
	assert.Error(t, err)
}

func TestURLSource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/content/equities/DEBT.csv" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte(debtCSV))
	}))
	defer server.Close()

	client := httputil.New(&config.Config{}, logger.NewNop()).DisableRetry()

	src := &URLSource{URL: server.URL + "/content/equities/DEBT.csv", Client: client}
	m, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, m.Rows, 3)

	bad := &URLSource{URL: server.URL + "/nope.csv", Client: client}
	_, err = bad.Load(context.Background())
	var se *httputil.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
}

// fakeRows is an in-memory pgx.Rows over (symbol, ip_rate text, redemption_date).
type fakeRows struct {
	data [][3]any
	pos  int
	err  error
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.data) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Values() ([]any, error) {
	row := r.data[r.pos-1]
	return row[:], nil
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.data[r.pos-1]
	*dest[0].(*string) = row[0].(string)
	*dest[1].(*string) = row[1].(string)
	if row[2] == nil {
		*dest[2].(**time.Time) = nil
	} else {
		d := row[2].(time.Time)
		*dest[2].(**time.Time) = &d
	}
	return nil
}

type fakeQuerier struct {
	rows  *fakeRows
	err   error
	query string
}

func (q *fakeQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	q.query = sql
	if q.err != nil {
		return nil, q.err
	}
	return q.rows, nil
}

func TestPostgresSource(t *testing.T) {
	q := &fakeQuerier{rows: &fakeRows{data: [][3]any{
		{"718GS2033", "7.1800", bond.Date(2033, 8, 14)},
		{"91D270624", "", bond.Date(2024, 6, 27)},
		{"NODATE", "7.00", nil},
		{"  ", "7.00", bond.Date(2030, 1, 1)},
	}}}

	src := &PostgresSource{DB: q, Table: "debt_master"}
	m, err := src.Load(context.Background())
	require.NoError(t, err)

	assert.Contains(t, q.query, `FROM "debt_master"`)
	require.Len(t, m.Rows, 2)
	assert.Equal(t, 7.18, m.Rows[0].CouponRate.InexactFloat64())
	assert.True(t, m.Rows[1].CouponRate.IsZero())

	require.Len(t, m.Rejected, 2)
	assert.ErrorIs(t, m.Rejected[0], ErrMissingRedemption)
	assert.ErrorIs(t, m.Rejected[1], ErrMissingSymbol)
}

func TestPostgresSourceErrors(t *testing.T) {
	src := &PostgresSource{DB: &fakeQuerier{err: errors.New("connection refused")}, Table: "debt_master"}
	_, err := src.Load(context.Background())
	assert.Error(t, err)

	src = &PostgresSource{DB: &fakeQuerier{rows: &fakeRows{err: errors.New("conn lost")}}, Table: "debt_master"}
	_, err = src.Load(context.Background())
	assert.Error(t, err)
}

// countingSource returns a fixed master and counts loads.
type countingSource struct {
	master *Master
	calls  int
	err    error
}

func (s *countingSource) Name() string { return "counting" }

func (s *countingSource) Load(ctx context.Context) (*Master, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.master, nil
}

func fixedMaster() *Master {
	return &Master{
		Source:   "counting",
		LoadedAt: time.Date(2024, 5, 9, 18, 0, 0, 0, time.UTC),
		Rows:     []MasterRow{Row("718GS2033", "7.18", bond.Date(2033, 8, 14))},
	}
}

func TestCachedSourceMissThenHit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := redis.NewCache(redis.NewFromClient(db), "debtview")

	inner := &countingSource{master: fixedMaster()}
	src := &CachedSource{Inner: inner, Cache: cache, TTL: time.Hour, Logger: logger.NewNop()}

	data, err := json.Marshal(inner.master)
	require.NoError(t, err)

	key := "debtview:cache:" + redis.ReferenceMasterKey("counting")
	mock.ExpectGet(key).RedisNil()
	mock.ExpectSet(key, data, time.Hour).SetVal("OK")
	mock.ExpectGet(key).SetVal(string(data))

	m, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, m.Rows, 1)

	m, err = src.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, m.Rows, 1)
	assert.Equal(t, "718GS2033", m.Rows[0].Symbol)
	assert.Equal(t, 7.18, m.Rows[0].CouponRate.InexactFloat64())

	assert.Equal(t, 1, inner.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedSourceDisabledPassesThrough(t *testing.T) {
	client, err := redis.New(context.Background(), &config.Config{})
	require.NoError(t, err)

	inner := &countingSource{master: fixedMaster()}
	src := &CachedSource{Inner: inner, Cache: redis.NewCache(client, "debtview"), Logger: logger.NewNop()}

	for i := 0; i < 3; i++ {
		_, err := src.Load(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 3, inner.calls)
}

func TestCachedSourceReadErrorFallsBack(t *testing.T) {
	db, mock := redismock.NewClientMock()
	cache := redis.NewCache(redis.NewFromClient(db), "debtview")
	inner := &countingSource{master: fixedMaster()}
	src := &CachedSource{Inner: inner, Cache: cache, TTL: time.Hour, Logger: logger.NewNop()}

	key := "debtview:cache:" + redis.ReferenceMasterKey("counting")
	mock.ExpectGet(key).SetErr(errors.New("i/o timeout"))
	mock.ExpectSet(key, mustJSON(t, inner.master), time.Hour).SetErr(errors.New("i/o timeout"))

	m, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, m.Rows, 1)
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}
