package snapshot

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/debtview/internal/enrich"
	"github.com/wonny/debtview/internal/feed"
)

// generation builds a snapshot whose every quote carries gen, so a torn
// read would show mixed generations.
func generation(gen int, rows int) *Snapshot {
	quotes := make([]enrich.EnrichedQuote, rows)
	for i := range quotes {
		quotes[i] = enrich.EnrichedQuote{QuoteLevel: feed.QuoteLevel{
			Symbol:      "S",
			Level:       i + 1,
			TotalVolume: int64(gen),
		}}
	}
	return New(time.Unix(int64(gen), 0), time.Time{}, enrich.Result{
		Quotes: quotes,
		Stats:  enrich.Stats{RowsIn: rows, Joined: rows},
	})
}

func TestStoreNotReady(t *testing.T) {
	s := NewStore(time.Minute)

	_, err := s.Latest()
	assert.ErrorIs(t, err, ErrNotReady)

	snap, st := s.Current()
	assert.Nil(t, snap)
	assert.False(t, st.Ready)
	assert.False(t, st.Stale)
	assert.Equal(t, "idle", st.State)
}

func TestStatusJSONOmitsUnsetTimes(t *testing.T) {
	raw, err := json.Marshal(NewStore(0).Status())
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "last_success")
	assert.NotContains(t, string(raw), "last_attempt")
	assert.NotContains(t, string(raw), "0001-01-01")

	s := NewStore(0)
	s.RecordFailure(time.Date(2024, 5, 10, 9, 15, 0, 0, time.UTC), errors.New("auth failed"))
	raw, err = json.Marshal(s.Status())
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"last_attempt":"2024-05-10T09:15:00Z"`)
	assert.NotContains(t, string(raw), "last_success")
}

func TestStorePublishAndFailure(t *testing.T) {
	s := NewStore(0)
	first := generation(1, 5)
	s.Publish(first)

	got, err := s.Latest()
	require.NoError(t, err)
	assert.Same(t, first, got)

	assert.Equal(t, 1, s.RecordFailure(time.Unix(10, 0), errors.New("auth failed")))
	assert.Equal(t, 2, s.RecordFailure(time.Unix(15, 0), errors.New("auth failed")))

	snap, st := s.Current()
	assert.Same(t, first, snap, "failure must not touch the published snapshot")
	assert.True(t, st.Ready)
	assert.Equal(t, 2, st.ConsecutiveFailures)
	assert.Equal(t, "auth failed", st.LastError)
	assert.Equal(t, time.Unix(1, 0), st.LastSuccess)
	assert.Equal(t, time.Unix(15, 0), st.LastAttempt)

	s.Publish(generation(2, 5))
	_, st = s.Current()
	assert.Equal(t, 0, st.ConsecutiveFailures)
	assert.Empty(t, st.LastError)
}

func TestStoreStale(t *testing.T) {
	s := NewStore(30 * time.Second)
	now := time.Unix(1000, 0)
	s.now = func() time.Time { return now }

	snap := generation(1, 1)
	snap.CapturedAt = now
	s.Publish(snap)
	assert.False(t, s.Status().Stale)

	now = now.Add(31 * time.Second)
	assert.True(t, s.Status().Stale)
}

func TestStoreConcurrentReadersNeverSeeTornSnapshot(t *testing.T) {
	s := NewStore(0)
	s.Publish(generation(0, 50))

	const publishes = 500
	var wg sync.WaitGroup
	done := make(chan struct{})

	for r := 0; r < 8; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				snap, err := s.Latest()
				if !assert.NoError(t, err) {
					return
				}
				gen := snap.Quotes[0].TotalVolume
				for _, q := range snap.Quotes {
					if q.TotalVolume != gen {
						t.Errorf("torn snapshot: generation %d and %d", gen, q.TotalVolume)
						return
					}
				}
				assert.Equal(t, snap.Stats.Joined, len(snap.Quotes))
			}
		}()
	}

	for gen := 1; gen <= publishes; gen++ {
		s.Publish(generation(gen, 50))
	}
	close(done)
	wg.Wait()

	snap, _ := s.Latest()
	assert.Equal(t, int64(publishes), snap.Quotes[0].TotalVolume)
}

func TestSubscribeKeepsNewestOnly(t *testing.T) {
	s := NewStore(0)
	ch, cancel := s.Subscribe()
	defer cancel()

	for gen := 1; gen <= 3; gen++ {
		s.Publish(generation(gen, 1))
	}

	select {
	case snap := <-ch:
		assert.Equal(t, int64(3), snap.Quotes[0].TotalVolume)
	default:
		t.Fatal("expected a pending snapshot")
	}

	select {
	case <-ch:
		t.Fatal("only the newest snapshot should be pending")
	default:
	}
}

func TestSubscribeCancel(t *testing.T) {
	s := NewStore(0)
	_, cancel := s.Subscribe()
	cancel()
	cancel()

	s.subMu.Lock()
	assert.Empty(t, s.subs)
	s.subMu.Unlock()

	s.Publish(generation(1, 1))
}

func TestFilter(t *testing.T) {
	quotes := []enrich.EnrichedQuote{
		{QuoteLevel: feed.QuoteLevel{Symbol: "A", Series: feed.SeriesGSec, BidQty: 10}},
		{QuoteLevel: feed.QuoteLevel{Symbol: "A", Series: feed.SeriesGSec}},
		{QuoteLevel: feed.QuoteLevel{Symbol: "B", Series: feed.SeriesTBill, AskQty: 5}},
		{QuoteLevel: feed.QuoteLevel{Symbol: "C", Series: feed.SeriesSDL, AskQty: 5}},
	}

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"all", Filter{}, 4},
		{"series", Filter{Series: map[string]bool{feed.SeriesGSec: true, feed.SeriesTBill: true}}, 3},
		{"symbols", Filter{Symbols: map[string]bool{"C": true}}, 1},
		{"nonzero", Filter{NonZero: true}, 3},
		{"combined", Filter{Series: map[string]bool{feed.SeriesGSec: true}, NonZero: true}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, tt.filter.Apply(quotes), tt.want)
		})
	}
}

func TestSymbols(t *testing.T) {
	snap := New(time.Now(), time.Time{}, enrich.Result{Quotes: []enrich.EnrichedQuote{
		{QuoteLevel: feed.QuoteLevel{Symbol: "A", Level: 1}},
		{QuoteLevel: feed.QuoteLevel{Symbol: "A", Level: 2}},
		{QuoteLevel: feed.QuoteLevel{Symbol: "B", Level: 1}},
	}})
	assert.Equal(t, []string{"A", "B"}, snap.Symbols())
}
