package intelstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	boltdb "github.com/andrew-solarstorm/bolt-db"
	"github.com/rs/zerolog/log"

	"github.com/hxuan190/cyclearb/internal/domain"
	"github.com/hxuan190/cyclearb/internal/ports"
)

const (
	blacklistBucket    = "blacklist"
	successStoryBucket = "success_stories"
	defaultLocalDBPath = "./data/intelstore.db"
)

// storedSuccessStory is the BoltDB-persisted shape of a ports.SuccessStory.
type storedSuccessStory struct {
	PoolId    string    `json:"poolId"`
	NetProfit int64     `json:"netProfit"`
	Timestamp time.Time `json:"timestamp"`
}

// Store is the Postgres-backed IntelligenceStore with a local BoltDB
// mirror. Postgres holds the canonical blacklist projection (populated by
// an out-of-scope external analysis process, per spec.md §6) and the
// append-only success-story archive; the local file exists purely so a
// Postgres outage degrades to stale-but-available reads and never drops a
// write.
type Store struct {
	pg    *Pool // nil if Postgres is not configured; local-only mode
	local *boltdb.BoltDatabase

	mu             sync.RWMutex
	blacklistCache map[string]struct{}
}

// Open connects to Postgres (if dsn is non-empty) and opens the local
// BoltDB mirror at localPath, seeding the in-memory blacklist cache from
// Postgres when it answers, else from the local mirror.
func Open(ctx context.Context, dsn, localPath string) (*Store, error) {
	if localPath == "" {
		localPath = defaultLocalDBPath
	}
	local := boltdb.NewBoltDatabase(localPath)
	if local == nil {
		return nil, fmt.Errorf("intelstore: failed to open local database at %s", localPath)
	}

	s := &Store{local: local, blacklistCache: make(map[string]struct{})}

	if dsn != "" {
		pg, err := NewPool(ctx, dsn)
		if err != nil {
			log.Warn().Err(err).Msg("intelstore: postgres unavailable, running local-only")
		} else {
			s.pg = pg
		}
	}

	if err := s.refreshBlacklistCache(ctx); err != nil {
		log.Warn().Err(err).Msg("intelstore: initial blacklist load failed")
	}

	return s, nil
}

func (s *Store) Close() {
	if s.pg != nil {
		s.pg.Close()
	}
	if s.local != nil {
		s.local.Close()
	}
}

// refreshBlacklistCache reloads the in-memory blacklist set, preferring
// Postgres and falling back to the local mirror. A successful Postgres read
// also writes through to the local mirror so it stays current.
func (s *Store) refreshBlacklistCache(ctx context.Context) error {
	if s.pg != nil {
		tokens, err := s.queryBlacklistFromPostgres(ctx)
		if err == nil {
			s.setBlacklistCache(tokens)
			s.mirrorBlacklistLocally(tokens)
			return nil
		}
		log.Warn().Err(err).Msg("intelstore: blacklist query failed, falling back to local mirror")
	}

	tokens, err := s.loadBlacklistFromLocal()
	if err != nil {
		return err
	}
	s.setBlacklistCache(tokens)
	return nil
}

func (s *Store) setBlacklistCache(tokens []string) {
	cache := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		cache[t] = struct{}{}
	}
	s.mu.Lock()
	s.blacklistCache = cache
	s.mu.Unlock()
}

func (s *Store) queryBlacklistFromPostgres(ctx context.Context) ([]string, error) {
	rows, err := s.pg.Query(ctx, `SELECT token FROM blacklisted_tokens`)
	if err != nil {
		return nil, fmt.Errorf("query blacklisted_tokens: %w", err)
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, fmt.Errorf("scan blacklisted_tokens row: %w", err)
		}
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}

func (s *Store) loadBlacklistFromLocal() ([]string, error) {
	data, err := s.local.List(blacklistBucket)
	if err != nil {
		return nil, fmt.Errorf("list local blacklist bucket: %w", err)
	}
	tokens := make([]string, 0, len(data))
	for token := range data {
		tokens = append(tokens, token)
	}
	return tokens, nil
}

func (s *Store) mirrorBlacklistLocally(tokens []string) {
	for _, token := range tokens {
		if err := s.local.Set(blacklistBucket, []byte(token), []byte{1}); err != nil {
			log.Warn().Err(err).Str("token", token).Msg("intelstore: failed to mirror blacklist entry locally")
		}
	}
}

// IsBlacklisted answers from the in-memory cache, which refreshBlacklistCache
// seeds once at Open; later changes to the backing stores are not picked
// up. It never blocks on a live
// Postgres round trip on the safety gate's hot path.
func (s *Store) IsBlacklisted(ctx context.Context, token domain.TokenId) (bool, error) {
	s.mu.RLock()
	_, blacklisted := s.blacklistCache[token.String()]
	s.mu.RUnlock()
	return blacklisted, nil
}

// Save archives a landed, profitable candidate. Postgres is the system of
// record; a write failure there falls back to the local mirror so the
// story is never silently dropped.
func (s *Store) Save(ctx context.Context, story ports.SuccessStory) error {
	if s.pg != nil {
		_, err := s.pg.Exec(ctx,
			`INSERT INTO success_stories (pool_id, net_profit, ts) VALUES ($1, $2, $3)`,
			story.PoolId.String(), story.NetProfit, story.Timestamp,
		)
		if err == nil {
			return nil
		}
		log.Warn().Err(err).Msg("intelstore: postgres save failed, falling back to local mirror")
	}

	stored := storedSuccessStory{
		PoolId:    story.PoolId.String(),
		NetProfit: story.NetProfit,
		Timestamp: story.Timestamp,
	}
	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("marshal success story: %w", err)
	}
	key := fmt.Sprintf("%s:%d", stored.PoolId, story.Timestamp.UnixNano())
	if err := s.local.Set(successStoryBucket, []byte(key), data); err != nil {
		return fmt.Errorf("save success story locally: %w", err)
	}
	return nil
}
