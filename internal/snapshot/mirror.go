package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/wonny/debtview/internal/reference"
	"github.com/wonny/debtview/pkg/logger"
	"github.com/wonny/debtview/pkg/redis"
)

// Mirror copies published snapshots somewhere other processes can read them.
type Mirror interface {
	Mirror(ctx context.Context, snap *Snapshot) error
}

// Notice is the pub/sub message sent after a snapshot is mirrored.
type Notice struct {
	ID         string    `json:"id"`
	CapturedAt time.Time `json:"captured_at"`
	Quotes     int       `json:"quotes"`
	Key        string    `json:"key"`
}

// RedisMirror stores the latest snapshot under redis.SnapshotKey and
// announces it on redis.SnapshotChannel.
type RedisMirror struct {
	client *redis.Client
	cache  *redis.Cache
	ttl    time.Duration
	logger *logger.Logger
}

// NewRedisMirror returns nil when Redis is disabled so callers can skip it.
func NewRedisMirror(client *redis.Client, cache *redis.Cache, ttl time.Duration, log *logger.Logger) *RedisMirror {
	if !client.Enabled() {
		return nil
	}
	if ttl <= 0 {
		ttl = redis.TTLShort
	}
	return &RedisMirror{client: client, cache: cache, ttl: ttl, logger: log.Component("mirror")}
}

func (m *RedisMirror) Mirror(ctx context.Context, snap *Snapshot) error {
	if err := m.cache.Set(ctx, redis.SnapshotKey(), snap, m.ttl); err != nil {
		return fmt.Errorf("mirror snapshot: %w", err)
	}

	notice, err := json.Marshal(Notice{
		ID:         snap.ID.String(),
		CapturedAt: snap.CapturedAt,
		Quotes:     len(snap.Quotes),
		Key:        m.cache.Key(redis.SnapshotKey()),
	})
	if err != nil {
		return fmt.Errorf("marshal notice: %w", err)
	}
	if err := m.client.Publish(ctx, redis.SnapshotChannel, notice); err != nil {
		return fmt.Errorf("publish notice: %w", err)
	}

	m.logger.WithField("snapshot_id", snap.ID.String()).Debug("snapshot mirrored")
	return nil
}

// MirrorReferences caches the instrument list for the table's settlement date.
func (m *RedisMirror) MirrorReferences(ctx context.Context, table *reference.Table) error {
	key := redis.ReferenceTableKey(table.SettlementDate())
	if err := m.cache.Set(ctx, key, table.All(), redis.TTLDaily); err != nil {
		return fmt.Errorf("mirror reference table: %w", err)
	}
	return nil
}

// LoadMirrored reads the mirrored snapshot, e.g. from a process that does
// not run the producer. ErrNotReady when nothing is cached.
func LoadMirrored(ctx context.Context, cache *redis.Cache) (*Snapshot, error) {
	var snap Snapshot
	found, err := cache.Get(ctx, redis.SnapshotKey(), &snap)
	if err != nil {
		return nil, fmt.Errorf("load mirrored snapshot: %w", err)
	}
	if !found {
		return nil, ErrNotReady
	}
	return &snap, nil
}
