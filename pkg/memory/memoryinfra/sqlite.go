package memoryinfra

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"

	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/config"
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/errx"
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/kernel"
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/memory"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteProvider is the embedded-file backend: a single-file database for
// self-hosted single-instance deployments. It does not support concurrent
// writers from multiple processes.
type SQLiteProvider struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

// NewSQLiteProvider builds the provider; the file is not touched until
// Connect.
func NewSQLiteProvider(cfg config.SQLiteConfig) *SQLiteProvider {
	return &SQLiteProvider{path: cfg.Path}
}

func (p *SQLiteProvider) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.db != nil {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return memory.ErrConnectionFailed().WithDetail("path", p.path).WithError(err)
	}

	db, err := sql.Open("sqlite", p.path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return memory.ErrConnectionFailed().WithDetail("path", p.path).WithError(err)
	}
	// A single writer connection sidesteps SQLITE_BUSY under concurrent
	// goroutines; reads still run on the same pool.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return memory.ErrConnectionFailed().WithDetail("path", p.path).WithError(err)
	}

	if err := migrateSQLite(ctx, db); err != nil {
		db.Close()
		return memory.ErrConnectionFailed().WithDetail("path", p.path).WithError(err)
	}

	p.db = db
	return nil
}

func (p *SQLiteProvider) Disconnect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	if err != nil {
		return errx.Wrap(err, "failed to close database", errx.TypeInternal)
	}
	return nil
}

func (p *SQLiteProvider) IsConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.db != nil
}

// conn returns the handle or the not-connected error every operation
// must surface before touching storage.
func (p *SQLiteProvider) conn() (*sql.DB, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.db == nil {
		return nil, memory.ErrNotConnected()
	}
	return p.db, nil
}

func migrateSQLite(ctx context.Context, db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		user_id    TEXT NOT NULL,
		session_id TEXT NOT NULL,
		messages   TEXT,
		context    TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		expires_at INTEGER NOT NULL,
		PRIMARY KEY (user_id, session_id)
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_user_created ON sessions(user_id, created_at);

	CREATE TABLE IF NOT EXISTS core_memories (
		user_id            TEXT PRIMARY KEY,
		preferences        TEXT,
		relationship_stage TEXT,
		key_milestones     TEXT,
		critical_context   TEXT,
		created_at         INTEGER NOT NULL,
		updated_at         INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS extended_memories (
		memory_id            TEXT PRIMARY KEY,
		user_id              TEXT NOT NULL,
		conversation_summary TEXT NOT NULL,
		embedding            TEXT,
		learned_patterns     TEXT,
		emotional_context    TEXT,
		topics               TEXT,
		created_at           INTEGER NOT NULL,
		ttl                  INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_extended_user_created ON extended_memories(user_id, created_at);

	CREATE TABLE IF NOT EXISTS oauth_tokens (
		user_id       TEXT NOT NULL,
		provider      TEXT NOT NULL,
		access_token  TEXT NOT NULL,
		refresh_token TEXT NOT NULL,
		token_type    TEXT,
		expires_at    INTEGER NOT NULL,
		scopes        TEXT,
		tenant_id     TEXT,
		tenant_name   TEXT,
		created_at    INTEGER NOT NULL,
		updated_at    INTEGER NOT NULL,
		PRIMARY KEY (user_id, provider)
	);
	`
	_, err := db.ExecContext(ctx, schema)
	return err
}

// ============================================================================
// Sessions
// ============================================================================

func (p *SQLiteProvider) CreateSession(ctx context.Context, s memory.Session) (*memory.Session, error) {
	db, err := p.conn()
	if err != nil {
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

	messages, err := marshalJSON(s.Messages)
	if err != nil {
		return nil, memory.WrapBackend(err, "create_session")
	}
	sessionCtx, err := marshalJSON(s.Context)
	if err != nil {
		return nil, memory.WrapBackend(err, "create_session")
	}

	res, err := db.ExecContext(ctx, `
		INSERT INTO sessions (user_id, session_id, messages, context, created_at, updated_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, session_id) DO NOTHING`,
		s.UserID.String(), s.SessionID.String(), messages, sessionCtx, s.CreatedAt, s.UpdatedAt, s.ExpiresAt)
	if err != nil {
		return nil, memory.WrapBackend(err, "create_session")
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, memory.WrapBackend(err, "create_session")
	} else if n == 0 {
		return nil, memory.ErrAlreadyExists("session", s.SessionID.String())
	}

	return &s, nil
}

func (p *SQLiteProvider) GetSession(ctx context.Context, userID kernel.UserID, sessionID kernel.SessionID) (*memory.Session, error) {
	db, err := p.conn()
	if err != nil {
		return nil, err
	}

	row := db.QueryRowContext(ctx, `
		SELECT user_id, session_id, messages, context, created_at, updated_at, expires_at
		FROM sessions WHERE user_id = ? AND session_id = ?`,
		userID.String(), sessionID.String())

	s, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, memory.WrapBackend(err, "get_session")
	}
	return s, nil
}

func (p *SQLiteProvider) UpdateSession(ctx context.Context, userID kernel.UserID, sessionID kernel.SessionID, update memory.SessionUpdate) (*memory.Session, error) {
	db, err := p.conn()
	if err != nil {
		return nil, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, memory.WrapBackend(err, "update_session")
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT user_id, session_id, messages, context, created_at, updated_at, expires_at
		FROM sessions WHERE user_id = ? AND session_id = ?`,
		userID.String(), sessionID.String())

	s, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, memory.ErrRecordNotFound("session", sessionID.String())
	}
	if err != nil {
		return nil, memory.WrapBackend(err, "update_session")
	}

	s.Apply(update, memory.NowMillis())

	messages, err := marshalJSON(s.Messages)
	if err != nil {
		return nil, memory.WrapBackend(err, "update_session")
	}
	sessionCtx, err := marshalJSON(s.Context)
	if err != nil {
		return nil, memory.WrapBackend(err, "update_session")
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE sessions SET messages = ?, context = ?, updated_at = ?, expires_at = ?
		WHERE user_id = ? AND session_id = ?`,
		messages, sessionCtx, s.UpdatedAt, s.ExpiresAt, userID.String(), sessionID.String())
	if err != nil {
		return nil, memory.WrapBackend(err, "update_session")
	}

	if err := tx.Commit(); err != nil {
		return nil, memory.WrapBackend(err, "update_session")
	}
	return s, nil
}

func (p *SQLiteProvider) DeleteSession(ctx context.Context, userID kernel.UserID, sessionID kernel.SessionID) error {
	db, err := p.conn()
	if err != nil {
		return err
	}

	// Idempotent: deleting a session that is already gone is not an error
	_, err = db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ? AND session_id = ?`,
		userID.String(), sessionID.String())
	if err != nil {
		return memory.WrapBackend(err, "delete_session")
	}
	return nil
}

func (p *SQLiteProvider) ListSessions(ctx context.Context, filter memory.SessionFilter) ([]memory.Session, error) {
	db, err := p.conn()
	if err != nil {
		return nil, err
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	order := "DESC"
	if filter.Order() == memory.SortAsc {
		order = "ASC"
	}
	query := `
		SELECT user_id, session_id, messages, context, created_at, updated_at, expires_at
		FROM sessions WHERE user_id = ?
		ORDER BY created_at ` + order + `, session_id ` + order
	args := []any{filter.UserID.String()}
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, memory.WrapBackend(err, "list_sessions")
	}
	defer rows.Close()

	var sessions []memory.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, memory.WrapBackend(err, "list_sessions")
		}
		sessions = append(sessions, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, memory.WrapBackend(err, "list_sessions")
	}
	return sessions, nil
}

// ============================================================================
// Core memory
// ============================================================================

func (p *SQLiteProvider) GetCoreMemory(ctx context.Context, userID kernel.UserID) (*memory.CoreMemory, error) {
	db, err := p.conn()
	if err != nil {
		return nil, err
	}

	row := db.QueryRowContext(ctx, `
		SELECT user_id, preferences, relationship_stage, key_milestones, critical_context, created_at, updated_at
		FROM core_memories WHERE user_id = ?`, userID.String())

	m, err := scanCoreMemory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, memory.WrapBackend(err, "get_core_memory")
	}
	return m, nil
}

func (p *SQLiteProvider) UpsertCoreMemory(ctx context.Context, userID kernel.UserID, update memory.CoreMemoryUpdate) (*memory.CoreMemory, error) {
	db, err := p.conn()
	if err != nil {
		return nil, err
	}
	if err := update.Validate(); err != nil {
		return nil, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, memory.WrapBackend(err, "upsert_core_memory")
	}
	defer tx.Rollback()

	now := memory.NowMillis()

	row := tx.QueryRowContext(ctx, `
		SELECT user_id, preferences, relationship_stage, key_milestones, critical_context, created_at, updated_at
		FROM core_memories WHERE user_id = ?`, userID.String())

	m, err := scanCoreMemory(row)
	created := false
	if err == sql.ErrNoRows {
		m = memory.NewCoreMemory(userID, now)
		created = true
	} else if err != nil {
		return nil, memory.WrapBackend(err, "upsert_core_memory")
	}

	m.Apply(update, now)

	preferences, err := marshalJSON(m.Preferences)
	if err != nil {
		return nil, memory.WrapBackend(err, "upsert_core_memory")
	}
	milestones, err := marshalJSON(m.KeyMilestones)
	if err != nil {
		return nil, memory.WrapBackend(err, "upsert_core_memory")
	}
	critical, err := marshalJSON(m.CriticalContext)
	if err != nil {
		return nil, memory.WrapBackend(err, "upsert_core_memory")
	}

	var stage *string
	if m.RelationshipStage != "" {
		v := string(m.RelationshipStage)
		stage = &v
	}

	if created {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO core_memories (user_id, preferences, relationship_stage, key_milestones, critical_context, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			userID.String(), preferences, stage, milestones, critical, m.CreatedAt, m.UpdatedAt)
	} else {
		_, err = tx.ExecContext(ctx, `
			UPDATE core_memories SET preferences = ?, relationship_stage = ?, key_milestones = ?, critical_context = ?, updated_at = ?
			WHERE user_id = ?`,
			preferences, stage, milestones, critical, m.UpdatedAt, userID.String())
	}
	if err != nil {
		return nil, memory.WrapBackend(err, "upsert_core_memory")
	}

	if err := tx.Commit(); err != nil {
		return nil, memory.WrapBackend(err, "upsert_core_memory")
	}
	return m, nil
}

func (p *SQLiteProvider) DeleteCoreMemory(ctx context.Context, userID kernel.UserID) error {
	db, err := p.conn()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `DELETE FROM core_memories WHERE user_id = ?`, userID.String())
	if err != nil {
		return memory.WrapBackend(err, "delete_core_memory")
	}
	return nil
}

// ============================================================================
// Extended memory
// ============================================================================

func (p *SQLiteProvider) CreateExtendedMemory(ctx context.Context, m memory.ExtendedMemory) (*memory.ExtendedMemory, error) {
	db, err := p.conn()
	if err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}

	m.MemoryID = kernel.NewMemoryID(uuid.NewString())
	m.CreatedAt = memory.NowMillis()

	embedding, err := marshalJSON(m.Embedding)
	if err != nil {
		return nil, memory.WrapBackend(err, "create_extended_memory")
	}
	patterns, err := marshalJSON(m.LearnedPatterns)
	if err != nil {
		return nil, memory.WrapBackend(err, "create_extended_memory")
	}
	topics, err := marshalJSON(m.Topics)
	if err != nil {
		return nil, memory.WrapBackend(err, "create_extended_memory")
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO extended_memories (memory_id, user_id, conversation_summary, embedding, learned_patterns, emotional_context, topics, created_at, ttl)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.MemoryID.String(), m.UserID.String(), m.ConversationSummary, embedding, patterns, m.EmotionalContext, topics, m.CreatedAt, m.TTL)
	if err != nil {
		return nil, memory.WrapBackend(err, "create_extended_memory")
	}

	return &m, nil
}

func (p *SQLiteProvider) GetExtendedMemory(ctx context.Context, userID kernel.UserID, memoryID kernel.MemoryID) (*memory.ExtendedMemory, error) {
	db, err := p.conn()
	if err != nil {
		return nil, err
	}

	row := db.QueryRowContext(ctx, `
		SELECT memory_id, user_id, conversation_summary, embedding, learned_patterns, emotional_context, topics, created_at, ttl
		FROM extended_memories WHERE user_id = ? AND memory_id = ?`,
		userID.String(), memoryID.String())

	m, err := scanExtendedMemory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, memory.WrapBackend(err, "get_extended_memory")
	}
	return m, nil
}

func (p *SQLiteProvider) ListExtendedMemories(ctx context.Context, filter memory.ExtendedMemoryFilter) ([]memory.ExtendedMemory, error) {
	db, err := p.conn()
	if err != nil {
		return nil, err
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	order := "DESC"
	if filter.Order() == memory.SortAsc {
		order = "ASC"
	}
	query := `
		SELECT memory_id, user_id, conversation_summary, embedding, learned_patterns, emotional_context, topics, created_at, ttl
		FROM extended_memories WHERE user_id = ?
		ORDER BY created_at ` + order + `, memory_id ` + order
	args := []any{filter.UserID.String()}
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, memory.WrapBackend(err, "list_extended_memories")
	}
	defer rows.Close()

	var memories []memory.ExtendedMemory
	for rows.Next() {
		m, err := scanExtendedMemory(rows)
		if err != nil {
			return nil, memory.WrapBackend(err, "list_extended_memories")
		}
		memories = append(memories, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, memory.WrapBackend(err, "list_extended_memories")
	}
	return memories, nil
}

func (p *SQLiteProvider) DeleteExtendedMemory(ctx context.Context, userID kernel.UserID, memoryID kernel.MemoryID) error {
	db, err := p.conn()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `DELETE FROM extended_memories WHERE user_id = ? AND memory_id = ?`,
		userID.String(), memoryID.String())
	if err != nil {
		return memory.WrapBackend(err, "delete_extended_memory")
	}
	return nil
}

func (p *SQLiteProvider) DeleteExtendedMemories(ctx context.Context, userID kernel.UserID) error {
	db, err := p.conn()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `DELETE FROM extended_memories WHERE user_id = ?`, userID.String())
	if err != nil {
		return memory.WrapBackend(err, "delete_extended_memories")
	}
	return nil
}

func (p *SQLiteProvider) SearchMemories(ctx context.Context, userID kernel.UserID, embedding []float32, limit int) ([]memory.MemoryMatch, error) {
	if len(embedding) == 0 {
		return nil, memory.ErrInvalidEmbedding("query embedding is empty")
	}

	candidates, err := p.ListExtendedMemories(ctx, memory.ExtendedMemoryFilter{UserID: userID})
	if err != nil {
		return nil, err
	}
	return rankBySimilarity(candidates, embedding, limit), nil
}

// ============================================================================
// OAuth credentials
// ============================================================================

func (p *SQLiteProvider) SaveOAuthTokens(ctx context.Context, t memory.OAuthTokens) (*memory.OAuthTokens, error) {
	db, err := p.conn()
	if err != nil {
		return nil, err
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}

	now := memory.NowMillis()
	t.UpdatedAt = now

	scopes, err := marshalJSON(t.Scopes)
	if err != nil {
		return nil, memory.WrapBackend(err, "save_oauth_tokens")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, memory.WrapBackend(err, "save_oauth_tokens")
	}
	defer tx.Rollback()

	var createdAt int64
	err = tx.QueryRowContext(ctx, `SELECT created_at FROM oauth_tokens WHERE user_id = ? AND provider = ?`,
		t.UserID.String(), t.Provider).Scan(&createdAt)
	switch {
	case err == sql.ErrNoRows:
		t.CreatedAt = now
		_, err = tx.ExecContext(ctx, `
			INSERT INTO oauth_tokens (user_id, provider, access_token, refresh_token, token_type, expires_at, scopes, tenant_id, tenant_name, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.UserID.String(), t.Provider, t.AccessToken, t.RefreshToken, nullableString(t.TokenType), t.ExpiresAt, scopes, t.TenantID, t.TenantName, t.CreatedAt, t.UpdatedAt)
	case err == nil:
		t.CreatedAt = createdAt
		_, err = tx.ExecContext(ctx, `
			UPDATE oauth_tokens SET access_token = ?, refresh_token = ?, token_type = ?, expires_at = ?, scopes = ?, tenant_id = ?, tenant_name = ?, updated_at = ?
			WHERE user_id = ? AND provider = ?`,
			t.AccessToken, t.RefreshToken, nullableString(t.TokenType), t.ExpiresAt, scopes, t.TenantID, t.TenantName, t.UpdatedAt, t.UserID.String(), t.Provider)
	default:
		return nil, memory.WrapBackend(err, "save_oauth_tokens")
	}
	if err != nil {
		return nil, memory.WrapBackend(err, "save_oauth_tokens")
	}

	if err := tx.Commit(); err != nil {
		return nil, memory.WrapBackend(err, "save_oauth_tokens")
	}
	return &t, nil
}

func (p *SQLiteProvider) GetOAuthTokens(ctx context.Context, userID kernel.UserID, provider string) (*memory.OAuthTokens, error) {
	db, err := p.conn()
	if err != nil {
		return nil, err
	}

	row := db.QueryRowContext(ctx, `
		SELECT user_id, provider, access_token, refresh_token, token_type, expires_at, scopes, tenant_id, tenant_name, created_at, updated_at
		FROM oauth_tokens WHERE user_id = ? AND provider = ?`,
		userID.String(), provider)

	t, err := scanOAuthTokens(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, memory.WrapBackend(err, "get_oauth_tokens")
	}
	return t, nil
}

func (p *SQLiteProvider) UpdateOAuthTokens(ctx context.Context, userID kernel.UserID, provider string, update memory.OAuthTokensUpdate) (*memory.OAuthTokens, error) {
	db, err := p.conn()
	if err != nil {
		return nil, err
	}

	// Refresh is read-modify-write inside one transaction so a reader
	// never observes a new access token with a stale expiresAt.
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, memory.WrapBackend(err, "update_oauth_tokens")
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT user_id, provider, access_token, refresh_token, token_type, expires_at, scopes, tenant_id, tenant_name, created_at, updated_at
		FROM oauth_tokens WHERE user_id = ? AND provider = ?`,
		userID.String(), provider)

	t, err := scanOAuthTokens(row)
	if err == sql.ErrNoRows {
		return nil, memory.ErrRecordNotFound("oauth_tokens", userID.String()+"/"+provider)
	}
	if err != nil {
		return nil, memory.WrapBackend(err, "update_oauth_tokens")
	}

	t.Apply(update, memory.NowMillis())

	scopes, err := marshalJSON(t.Scopes)
	if err != nil {
		return nil, memory.WrapBackend(err, "update_oauth_tokens")
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE oauth_tokens SET access_token = ?, refresh_token = ?, token_type = ?, expires_at = ?, scopes = ?, tenant_id = ?, tenant_name = ?, updated_at = ?
		WHERE user_id = ? AND provider = ?`,
		t.AccessToken, t.RefreshToken, nullableString(t.TokenType), t.ExpiresAt, scopes, t.TenantID, t.TenantName, t.UpdatedAt, userID.String(), provider)
	if err != nil {
		return nil, memory.WrapBackend(err, "update_oauth_tokens")
	}

	if err := tx.Commit(); err != nil {
		return nil, memory.WrapBackend(err, "update_oauth_tokens")
	}
	return t, nil
}

func (p *SQLiteProvider) DeleteOAuthTokens(ctx context.Context, userID kernel.UserID, provider string) error {
	db, err := p.conn()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `DELETE FROM oauth_tokens WHERE user_id = ? AND provider = ?`,
		userID.String(), provider)
	if err != nil {
		return memory.WrapBackend(err, "delete_oauth_tokens")
	}
	return nil
}

// ============================================================================
// Row scanning
// ============================================================================

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*memory.Session, error) {
	var s memory.Session
	var userID, sessionID string
	var messages, sessionCtx sql.NullString

	err := row.Scan(&userID, &sessionID, &messages, &sessionCtx, &s.CreatedAt, &s.UpdatedAt, &s.ExpiresAt)
	if err != nil {
		return nil, err
	}

	s.UserID = kernel.NewUserID(userID)
	s.SessionID = kernel.NewSessionID(sessionID)
	if err := unmarshalJSON(nullablePtr(messages), &s.Messages); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(nullablePtr(sessionCtx), &s.Context); err != nil {
		return nil, err
	}
	return &s, nil
}

func scanCoreMemory(row scanner) (*memory.CoreMemory, error) {
	var m memory.CoreMemory
	var userID string
	var preferences, stage, milestones, critical sql.NullString

	err := row.Scan(&userID, &preferences, &stage, &milestones, &critical, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}

	m.UserID = kernel.NewUserID(userID)
	if stage.Valid {
		m.RelationshipStage = memory.RelationshipStage(stage.String)
	}
	if err := unmarshalJSON(nullablePtr(preferences), &m.Preferences); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(nullablePtr(milestones), &m.KeyMilestones); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(nullablePtr(critical), &m.CriticalContext); err != nil {
		return nil, err
	}
	return &m, nil
}

func scanExtendedMemory(row scanner) (*memory.ExtendedMemory, error) {
	var m memory.ExtendedMemory
	var memoryID, userID string
	var embedding, patterns, emotional, topics sql.NullString
	var ttl sql.NullInt64

	err := row.Scan(&memoryID, &userID, &m.ConversationSummary, &embedding, &patterns, &emotional, &topics, &m.CreatedAt, &ttl)
	if err != nil {
		return nil, err
	}

	m.MemoryID = kernel.NewMemoryID(memoryID)
	m.UserID = kernel.NewUserID(userID)
	if emotional.Valid {
		m.EmotionalContext = &emotional.String
	}
	if ttl.Valid {
		m.TTL = &ttl.Int64
	}
	if err := unmarshalJSON(nullablePtr(embedding), &m.Embedding); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(nullablePtr(patterns), &m.LearnedPatterns); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(nullablePtr(topics), &m.Topics); err != nil {
		return nil, err
	}
	return &m, nil
}

func scanOAuthTokens(row scanner) (*memory.OAuthTokens, error) {
	var t memory.OAuthTokens
	var userID string
	var tokenType, scopes, tenantID, tenantName sql.NullString

	err := row.Scan(&userID, &t.Provider, &t.AccessToken, &t.RefreshToken, &tokenType, &t.ExpiresAt, &scopes, &tenantID, &tenantName, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}

	t.UserID = kernel.NewUserID(userID)
	if tokenType.Valid {
		t.TokenType = tokenType.String
	}
	if tenantID.Valid {
		t.TenantID = &tenantID.String
	}
	if tenantName.Valid {
		t.TenantName = &tenantName.String
	}
	if err := unmarshalJSON(nullablePtr(scopes), &t.Scopes); err != nil {
		return nil, err
	}
	return &t, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullablePtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
