package memoryinfra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/config"
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/errx"
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/kernel"
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/memory"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// maxTxRetries bounds the optimistic retry loop on WATCH conflicts
const maxTxRetries = 5

// RedisProvider is the managed-kv backend. Every record is one JSON
// document under a deterministic key; per-user sorted sets scored by
// createdAt give the chronological listings a key-value store cannot
// otherwise answer. Partial updates run as WATCH transactions so
// concurrent writers retry instead of clobbering each other.
type RedisProvider struct {
	cfg config.RedisConfig

	mu     sync.RWMutex
	client *redis.Client
}

func NewRedisProvider(cfg config.RedisConfig) *RedisProvider {
	return &RedisProvider{cfg: cfg}
}

func sessionKey(userID kernel.UserID, sessionID kernel.SessionID) string {
	return fmt.Sprintf("session:%s:%s", userID, sessionID)
}

func sessionIndexKey(userID kernel.UserID) string {
	return fmt.Sprintf("sessions:%s", userID)
}

func coreKey(userID kernel.UserID) string {
	return fmt.Sprintf("core:%s", userID)
}

func extendedKey(userID kernel.UserID, memoryID kernel.MemoryID) string {
	return fmt.Sprintf("mem:%s:%s", userID, memoryID)
}

func extendedIndexKey(userID kernel.UserID) string {
	return fmt.Sprintf("mems:%s", userID)
}

func oauthKey(userID kernel.UserID, provider string) string {
	return fmt.Sprintf("oauth:%s:%s", userID, provider)
}

func (p *RedisProvider) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     p.cfg.Address(),
		Password: p.cfg.Password,
		DB:       p.cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return memory.ErrConnectionFailed().WithDetail("addr", p.cfg.Address()).WithError(err)
	}

	p.client = client
	return nil
}

func (p *RedisProvider) Disconnect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client == nil {
		return nil
	}
	err := p.client.Close()
	p.client = nil
	if err != nil {
		return memory.WrapBackend(err, "disconnect")
	}
	return nil
}

func (p *RedisProvider) IsConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.client != nil
}

func (p *RedisProvider) conn() (*redis.Client, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.client == nil {
		return nil, memory.ErrNotConnected()
	}
	return p.client, nil
}

// getDoc fetches and decodes one JSON document. Missing keys return
// (false, nil) so callers distinguish absence from failure.
func getDoc(ctx context.Context, c redis.Cmdable, key string, dst any) (bool, error) {
	raw, err := c.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, err
	}
	return true, nil
}

// ============================================================================
// Sessions
// ============================================================================

func (p *RedisProvider) CreateSession(ctx context.Context, s memory.Session) (*memory.Session, error) {
	if _, err := p.conn(); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	now := memory.NowMillis()
	if s.CreatedAt == 0 {
		s.CreatedAt = now
	}
	if s.UpdatedAt == 0 {
		s.UpdatedAt = s.CreatedAt
	}
	if s.ExpiresAt == 0 {
		s.ExpiresAt = s.CreatedAt + memory.DefaultSessionTTL.Milliseconds()
	}

	doc, err := json.Marshal(s)
	if err != nil {
		return nil, memory.WrapBackend(err, "create_session")
	}

	key := sessionKey(s.UserID, s.SessionID)

	// The existence check and the write run under WATCH so a concurrent
	// create of the same key loses instead of overwriting. Document and
	// index entry land together or not at all.
	txn := func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if exists > 0 {
			return memory.ErrAlreadyExists("session", s.SessionID.String())
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, doc, 0)
			pipe.ZAdd(ctx, sessionIndexKey(s.UserID), redis.Z{
				Score:  float64(s.CreatedAt),
				Member: s.SessionID.String(),
			})
			return nil
		})
		return err
	}

	if err := p.watchRetry(ctx, txn, key); err != nil {
		return nil, wrapTxErr(err, "create_session")
	}
	return &s, nil
}

func (p *RedisProvider) GetSession(ctx context.Context, userID kernel.UserID, sessionID kernel.SessionID) (*memory.Session, error) {
	client, err := p.conn()
	if err != nil {
		return nil, err
	}

	var s memory.Session
	found, err := getDoc(ctx, client, sessionKey(userID, sessionID), &s)
	if err != nil {
		return nil, memory.WrapBackend(err, "get_session")
	}
	if !found {
		return nil, nil
	}
	return &s, nil
}

func (p *RedisProvider) UpdateSession(ctx context.Context, userID kernel.UserID, sessionID kernel.SessionID, update memory.SessionUpdate) (*memory.Session, error) {
	if _, err := p.conn(); err != nil {
		return nil, err
	}

	key := sessionKey(userID, sessionID)
	var result *memory.Session

	txn := func(tx *redis.Tx) error {
		var s memory.Session
		found, err := getDoc(ctx, tx, key, &s)
		if err != nil {
			return err
		}
		if !found {
			return memory.ErrRecordNotFound("session", sessionID.String())
		}

		s.Apply(update, memory.NowMillis())

		doc, err := json.Marshal(s)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, doc, 0)
			return nil
		})
		if err != nil {
			return err
		}
		result = &s
		return nil
	}

	if err := p.watchRetry(ctx, txn, key); err != nil {
		return nil, wrapTxErr(err, "update_session")
	}
	return result, nil
}

func (p *RedisProvider) DeleteSession(ctx context.Context, userID kernel.UserID, sessionID kernel.SessionID) error {
	client, err := p.conn()
	if err != nil {
		return err
	}

	pipe := client.TxPipeline()
	pipe.Del(ctx, sessionKey(userID, sessionID))
	pipe.ZRem(ctx, sessionIndexKey(userID), sessionID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return memory.WrapBackend(err, "delete_session")
	}
	return nil
}

func (p *RedisProvider) ListSessions(ctx context.Context, filter memory.SessionFilter) ([]memory.Session, error) {
	client, err := p.conn()
	if err != nil {
		return nil, err
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	ids, err := indexRange(ctx, client, sessionIndexKey(filter.UserID), filter.Order(), filter.Limit)
	if err != nil {
		return nil, memory.WrapBackend(err, "list_sessions")
	}
	if len(ids) == 0 {
		return nil, nil
	}

	var sessions []memory.Session
	for _, id := range ids {
		var s memory.Session
		found, err := getDoc(ctx, client, sessionKey(filter.UserID, kernel.NewSessionID(id)), &s)
		if err != nil {
			return nil, memory.WrapBackend(err, "list_sessions")
		}
		// Index entries can briefly outlive a concurrently deleted document
		if !found {
			continue
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

// ============================================================================
// Core memory
// ============================================================================

func (p *RedisProvider) GetCoreMemory(ctx context.Context, userID kernel.UserID) (*memory.CoreMemory, error) {
	client, err := p.conn()
	if err != nil {
		return nil, err
	}

	var m memory.CoreMemory
	found, err := getDoc(ctx, client, coreKey(userID), &m)
	if err != nil {
		return nil, memory.WrapBackend(err, "get_core_memory")
	}
	if !found {
		return nil, nil
	}
	return &m, nil
}

func (p *RedisProvider) UpsertCoreMemory(ctx context.Context, userID kernel.UserID, update memory.CoreMemoryUpdate) (*memory.CoreMemory, error) {
	if _, err := p.conn(); err != nil {
		return nil, err
	}
	if err := update.Validate(); err != nil {
		return nil, err
	}

	key := coreKey(userID)
	var result *memory.CoreMemory

	txn := func(tx *redis.Tx) error {
		now := memory.NowMillis()

		var m memory.CoreMemory
		found, err := getDoc(ctx, tx, key, &m)
		if err != nil {
			return err
		}
		target := &m
		if !found {
			target = memory.NewCoreMemory(userID, now)
		}

		target.Apply(update, now)

		doc, err := json.Marshal(target)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, doc, 0)
			return nil
		})
		if err != nil {
			return err
		}
		result = target
		return nil
	}

	if err := p.watchRetry(ctx, txn, key); err != nil {
		return nil, wrapTxErr(err, "upsert_core_memory")
	}
	return result, nil
}

func (p *RedisProvider) DeleteCoreMemory(ctx context.Context, userID kernel.UserID) error {
	client, err := p.conn()
	if err != nil {
		return err
	}

	if err := client.Del(ctx, coreKey(userID)).Err(); err != nil {
		return memory.WrapBackend(err, "delete_core_memory")
	}
	return nil
}

// ============================================================================
// Extended memory
// ============================================================================

func (p *RedisProvider) CreateExtendedMemory(ctx context.Context, m memory.ExtendedMemory) (*memory.ExtendedMemory, error) {
	client, err := p.conn()
	if err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}

	m.MemoryID = kernel.NewMemoryID(uuid.NewString())
	m.CreatedAt = memory.NowMillis()

	doc, err := json.Marshal(m)
	if err != nil {
		return nil, memory.WrapBackend(err, "create_extended_memory")
	}

	pipe := client.TxPipeline()
	pipe.Set(ctx, extendedKey(m.UserID, m.MemoryID), doc, 0)
	pipe.ZAdd(ctx, extendedIndexKey(m.UserID), redis.Z{
		Score:  float64(m.CreatedAt),
		Member: m.MemoryID.String(),
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, memory.WrapBackend(err, "create_extended_memory")
	}

	return &m, nil
}

func (p *RedisProvider) GetExtendedMemory(ctx context.Context, userID kernel.UserID, memoryID kernel.MemoryID) (*memory.ExtendedMemory, error) {
	client, err := p.conn()
	if err != nil {
		return nil, err
	}

	var m memory.ExtendedMemory
	found, err := getDoc(ctx, client, extendedKey(userID, memoryID), &m)
	if err != nil {
		return nil, memory.WrapBackend(err, "get_extended_memory")
	}
	if !found {
		return nil, nil
	}
	return &m, nil
}

func (p *RedisProvider) ListExtendedMemories(ctx context.Context, filter memory.ExtendedMemoryFilter) ([]memory.ExtendedMemory, error) {
	client, err := p.conn()
	if err != nil {
		return nil, err
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	ids, err := indexRange(ctx, client, extendedIndexKey(filter.UserID), filter.Order(), filter.Limit)
	if err != nil {
		return nil, memory.WrapBackend(err, "list_extended_memories")
	}
	if len(ids) == 0 {
		return nil, nil
	}

	var memories []memory.ExtendedMemory
	for _, id := range ids {
		var m memory.ExtendedMemory
		found, err := getDoc(ctx, client, extendedKey(filter.UserID, kernel.NewMemoryID(id)), &m)
		if err != nil {
			return nil, memory.WrapBackend(err, "list_extended_memories")
		}
		if !found {
			continue
		}
		memories = append(memories, m)
	}
	return memories, nil
}

func (p *RedisProvider) DeleteExtendedMemory(ctx context.Context, userID kernel.UserID, memoryID kernel.MemoryID) error {
	client, err := p.conn()
	if err != nil {
		return err
	}

	pipe := client.TxPipeline()
	pipe.Del(ctx, extendedKey(userID, memoryID))
	pipe.ZRem(ctx, extendedIndexKey(userID), memoryID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return memory.WrapBackend(err, "delete_extended_memory")
	}
	return nil
}

func (p *RedisProvider) DeleteExtendedMemories(ctx context.Context, userID kernel.UserID) error {
	client, err := p.conn()
	if err != nil {
		return err
	}

	ids, err := client.ZRange(ctx, extendedIndexKey(userID), 0, -1).Result()
	if err != nil {
		return memory.WrapBackend(err, "delete_extended_memories")
	}

	pipe := client.TxPipeline()
	for _, id := range ids {
		pipe.Del(ctx, extendedKey(userID, kernel.NewMemoryID(id)))
	}
	pipe.Del(ctx, extendedIndexKey(userID))
	if _, err := pipe.Exec(ctx); err != nil {
		return memory.WrapBackend(err, "delete_extended_memories")
	}
	return nil
}

func (p *RedisProvider) SearchMemories(ctx context.Context, userID kernel.UserID, embedding []float32, limit int) ([]memory.MemoryMatch, error) {
	if len(embedding) == 0 {
		return nil, memory.ErrInvalidEmbedding("query embedding is empty")
	}

	// Redis has no native vector math here; score client-side over the
	// user's candidate set, same as the other engines
	candidates, err := p.ListExtendedMemories(ctx, memory.ExtendedMemoryFilter{UserID: userID})
	if err != nil {
		return nil, err
	}
	return rankBySimilarity(candidates, embedding, limit), nil
}

// ============================================================================
// OAuth credentials
// ============================================================================

func (p *RedisProvider) SaveOAuthTokens(ctx context.Context, t memory.OAuthTokens) (*memory.OAuthTokens, error) {
	if _, err := p.conn(); err != nil {
		return nil, err
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}

	key := oauthKey(t.UserID, t.Provider)
	var result *memory.OAuthTokens

	txn := func(tx *redis.Tx) error {
		now := memory.NowMillis()
		t.UpdatedAt = now
		t.CreatedAt = now

		var prior memory.OAuthTokens
		found, err := getDoc(ctx, tx, key, &prior)
		if err != nil {
			return err
		}
		if found {
			t.CreatedAt = prior.CreatedAt
		}

		doc, err := json.Marshal(t)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, doc, 0)
			return nil
		})
		if err != nil {
			return err
		}
		result = &t
		return nil
	}

	if err := p.watchRetry(ctx, txn, key); err != nil {
		return nil, wrapTxErr(err, "save_oauth_tokens")
	}
	return result, nil
}

func (p *RedisProvider) GetOAuthTokens(ctx context.Context, userID kernel.UserID, provider string) (*memory.OAuthTokens, error) {
	client, err := p.conn()
	if err != nil {
		return nil, err
	}

	var t memory.OAuthTokens
	found, err := getDoc(ctx, client, oauthKey(userID, provider), &t)
	if err != nil {
		return nil, memory.WrapBackend(err, "get_oauth_tokens")
	}
	if !found {
		return nil, nil
	}
	return &t, nil
}

func (p *RedisProvider) UpdateOAuthTokens(ctx context.Context, userID kernel.UserID, provider string, update memory.OAuthTokensUpdate) (*memory.OAuthTokens, error) {
	if _, err := p.conn(); err != nil {
		return nil, err
	}

	key := oauthKey(userID, provider)
	var result *memory.OAuthTokens

	txn := func(tx *redis.Tx) error {
		var t memory.OAuthTokens
		found, err := getDoc(ctx, tx, key, &t)
		if err != nil {
			return err
		}
		if !found {
			return memory.ErrRecordNotFound("oauth_tokens", userID.String()+"/"+provider)
		}

		t.Apply(update, memory.NowMillis())

		doc, err := json.Marshal(t)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, doc, 0)
			return nil
		})
		if err != nil {
			return err
		}
		result = &t
		return nil
	}

	if err := p.watchRetry(ctx, txn, key); err != nil {
		return nil, wrapTxErr(err, "update_oauth_tokens")
	}
	return result, nil
}

func (p *RedisProvider) DeleteOAuthTokens(ctx context.Context, userID kernel.UserID, provider string) error {
	client, err := p.conn()
	if err != nil {
		return err
	}

	if err := client.Del(ctx, oauthKey(userID, provider)).Err(); err != nil {
		return memory.WrapBackend(err, "delete_oauth_tokens")
	}
	return nil
}

// ============================================================================
// Helpers
// ============================================================================

// watchRetry runs a WATCH transaction, retrying on optimistic conflicts
func (p *RedisProvider) watchRetry(ctx context.Context, txn func(tx *redis.Tx) error, keys ...string) error {
	client, err := p.conn()
	if err != nil {
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := client.Watch(ctx, txn, keys...)
		if err == redis.TxFailedErr {
			continue
		}
		return err
	}
	return redis.TxFailedErr
}

// wrapTxErr keeps taxonomy errors from the transaction body intact and
// wraps everything else as a backend failure.
func wrapTxErr(err error, op string) error {
	if err == nil {
		return nil
	}
	var xerr *errx.Error
	if errors.As(err, &xerr) {
		return xerr
	}
	return memory.WrapBackend(err, op)
}

// indexRange reads member IDs from a createdAt-scored sorted set
func indexRange(ctx context.Context, c redis.Cmdable, key string, order memory.SortOrder, limit int) ([]string, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	if order == memory.SortAsc {
		return c.ZRange(ctx, key, 0, stop).Result()
	}
	return c.ZRevRange(ctx, key, 0, stop).Result()
}
