package memoryinfra

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/config"
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/errx"
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/kernel"
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/memory"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// PostgresProvider is the relational backend for multi-instance
// deployments. Partial updates take a row lock (SELECT ... FOR UPDATE)
// so concurrent writers serialize at the database instead of retrying.
type PostgresProvider struct {
	cfg config.DatabaseConfig

	mu sync.RWMutex
	db *sqlx.DB
}

func NewPostgresProvider(cfg config.DatabaseConfig) *PostgresProvider {
	return &PostgresProvider{cfg: cfg}
}

func (p *PostgresProvider) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.db != nil {
		return nil
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.cfg.Host, p.cfg.Port, p.cfg.User, p.cfg.Password, p.cfg.Name, p.cfg.SSLMode)

	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return memory.ErrConnectionFailed().
			WithDetail("host", p.cfg.Host).
			WithDetail("database", p.cfg.Name).
			WithError(err)
	}

	db.SetMaxOpenConns(p.cfg.MaxOpenConns)
	db.SetMaxIdleConns(p.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(p.cfg.ConnMaxLifetime)

	if err := migratePostgres(ctx, db); err != nil {
		db.Close()
		return memory.ErrConnectionFailed().WithDetail("database", p.cfg.Name).WithError(err)
	}

	p.db = db
	return nil
}

func (p *PostgresProvider) Disconnect(ctx context.Context) error {
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

func (p *PostgresProvider) IsConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.db != nil
}

func (p *PostgresProvider) conn() (*sqlx.DB, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.db == nil {
		return nil, memory.ErrNotConnected()
	}
	return p.db, nil
}

func migratePostgres(ctx context.Context, db *sqlx.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		user_id    TEXT NOT NULL,
		session_id TEXT NOT NULL,
		messages   JSONB,
		context    JSONB,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL,
		expires_at BIGINT NOT NULL,
		PRIMARY KEY (user_id, session_id)
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_user_created ON sessions(user_id, created_at);

	CREATE TABLE IF NOT EXISTS core_memories (
		user_id            TEXT PRIMARY KEY,
		preferences        JSONB,
		relationship_stage TEXT,
		key_milestones     JSONB,
		critical_context   JSONB,
		created_at         BIGINT NOT NULL,
		updated_at         BIGINT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS extended_memories (
		memory_id            TEXT PRIMARY KEY,
		user_id              TEXT NOT NULL,
		conversation_summary TEXT NOT NULL,
		embedding            JSONB,
		learned_patterns     JSONB,
		emotional_context    TEXT,
		topics               JSONB,
		created_at           BIGINT NOT NULL,
		ttl                  BIGINT
	);
	CREATE INDEX IF NOT EXISTS idx_extended_user_created ON extended_memories(user_id, created_at);

	CREATE TABLE IF NOT EXISTS oauth_tokens (
		user_id       TEXT NOT NULL,
		provider      TEXT NOT NULL,
		access_token  TEXT NOT NULL,
		refresh_token TEXT NOT NULL,
		token_type    TEXT,
		expires_at    BIGINT NOT NULL,
		scopes        JSONB,
		tenant_id     TEXT,
		tenant_name   TEXT,
		created_at    BIGINT NOT NULL,
		updated_at    BIGINT NOT NULL,
		PRIMARY KEY (user_id, provider)
	);
	`
	_, err := db.ExecContext(ctx, schema)
	return err
}

// ============================================================================
// Sessions
// ============================================================================

func (p *PostgresProvider) CreateSession(ctx context.Context, s memory.Session) (*memory.Session, error) {
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
		VALUES ($1, $2, $3, $4, $5, $6, $7)
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

func (p *PostgresProvider) GetSession(ctx context.Context, userID kernel.UserID, sessionID kernel.SessionID) (*memory.Session, error) {
	db, err := p.conn()
	if err != nil {
		return nil, err
	}

	row := db.QueryRowContext(ctx, `
		SELECT user_id, session_id, messages, context, created_at, updated_at, expires_at
		FROM sessions WHERE user_id = $1 AND session_id = $2`,
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

func (p *PostgresProvider) UpdateSession(ctx context.Context, userID kernel.UserID, sessionID kernel.SessionID, update memory.SessionUpdate) (*memory.Session, error) {
	db, err := p.conn()
	if err != nil {
		return nil, err
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, memory.WrapBackend(err, "update_session")
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT user_id, session_id, messages, context, created_at, updated_at, expires_at
		FROM sessions WHERE user_id = $1 AND session_id = $2
		FOR UPDATE`,
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
		UPDATE sessions SET messages = $1, context = $2, updated_at = $3, expires_at = $4
		WHERE user_id = $5 AND session_id = $6`,
		messages, sessionCtx, s.UpdatedAt, s.ExpiresAt, userID.String(), sessionID.String())
	if err != nil {
		return nil, memory.WrapBackend(err, "update_session")
	}

	if err := tx.Commit(); err != nil {
		return nil, memory.WrapBackend(err, "update_session")
	}
	return s, nil
}

func (p *PostgresProvider) DeleteSession(ctx context.Context, userID kernel.UserID, sessionID kernel.SessionID) error {
	db, err := p.conn()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = $1 AND session_id = $2`,
		userID.String(), sessionID.String())
	if err != nil {
		return memory.WrapBackend(err, "delete_session")
	}
	return nil
}

func (p *PostgresProvider) ListSessions(ctx context.Context, filter memory.SessionFilter) ([]memory.Session, error) {
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
	query := fmt.Sprintf(`
		SELECT user_id, session_id, messages, context, created_at, updated_at, expires_at
		FROM sessions WHERE user_id = $1
		ORDER BY created_at %s, session_id %s`, order, order)
	args := []any{filter.UserID.String()}
	if filter.Limit > 0 {
		query += ` LIMIT $2`
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

func (p *PostgresProvider) GetCoreMemory(ctx context.Context, userID kernel.UserID) (*memory.CoreMemory, error) {
	db, err := p.conn()
	if err != nil {
		return nil, err
	}

	row := db.QueryRowContext(ctx, `
		SELECT user_id, preferences, relationship_stage, key_milestones, critical_context, created_at, updated_at
		FROM core_memories WHERE user_id = $1`, userID.String())

	m, err := scanCoreMemory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, memory.WrapBackend(err, "get_core_memory")
	}
	return m, nil
}

func (p *PostgresProvider) UpsertCoreMemory(ctx context.Context, userID kernel.UserID, update memory.CoreMemoryUpdate) (*memory.CoreMemory, error) {
	db, err := p.conn()
	if err != nil {
		return nil, err
	}
	if err := update.Validate(); err != nil {
		return nil, err
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, memory.WrapBackend(err, "upsert_core_memory")
	}
	defer tx.Rollback()

	now := memory.NowMillis()

	row := tx.QueryRowContext(ctx, `
		SELECT user_id, preferences, relationship_stage, key_milestones, critical_context, created_at, updated_at
		FROM core_memories WHERE user_id = $1
		FOR UPDATE`, userID.String())

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
		// ON CONFLICT covers the race where two first writes for the
		// same user pass the SELECT before either inserts
		_, err = tx.ExecContext(ctx, `
			INSERT INTO core_memories (user_id, preferences, relationship_stage, key_milestones, critical_context, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (user_id) DO UPDATE SET
				preferences = EXCLUDED.preferences,
				relationship_stage = EXCLUDED.relationship_stage,
				key_milestones = EXCLUDED.key_milestones,
				critical_context = EXCLUDED.critical_context,
				updated_at = EXCLUDED.updated_at`,
			userID.String(), preferences, stage, milestones, critical, m.CreatedAt, m.UpdatedAt)
	} else {
		_, err = tx.ExecContext(ctx, `
			UPDATE core_memories SET preferences = $1, relationship_stage = $2, key_milestones = $3, critical_context = $4, updated_at = $5
			WHERE user_id = $6`,
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

func (p *PostgresProvider) DeleteCoreMemory(ctx context.Context, userID kernel.UserID) error {
	db, err := p.conn()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `DELETE FROM core_memories WHERE user_id = $1`, userID.String())
	if err != nil {
		return memory.WrapBackend(err, "delete_core_memory")
	}
	return nil
}

// ============================================================================
// Extended memory
// ============================================================================

func (p *PostgresProvider) CreateExtendedMemory(ctx context.Context, m memory.ExtendedMemory) (*memory.ExtendedMemory, error) {
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
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		m.MemoryID.String(), m.UserID.String(), m.ConversationSummary, embedding, patterns, m.EmotionalContext, topics, m.CreatedAt, m.TTL)
	if err != nil {
		return nil, memory.WrapBackend(err, "create_extended_memory")
	}

	return &m, nil
}

func (p *PostgresProvider) GetExtendedMemory(ctx context.Context, userID kernel.UserID, memoryID kernel.MemoryID) (*memory.ExtendedMemory, error) {
	db, err := p.conn()
	if err != nil {
		return nil, err
	}

	row := db.QueryRowContext(ctx, `
		SELECT memory_id, user_id, conversation_summary, embedding, learned_patterns, emotional_context, topics, created_at, ttl
		FROM extended_memories WHERE user_id = $1 AND memory_id = $2`,
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

func (p *PostgresProvider) ListExtendedMemories(ctx context.Context, filter memory.ExtendedMemoryFilter) ([]memory.ExtendedMemory, error) {
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
	query := fmt.Sprintf(`
		SELECT memory_id, user_id, conversation_summary, embedding, learned_patterns, emotional_context, topics, created_at, ttl
		FROM extended_memories WHERE user_id = $1
		ORDER BY created_at %s, memory_id %s`, order, order)
	args := []any{filter.UserID.String()}
	if filter.Limit > 0 {
		query += ` LIMIT $2`
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

func (p *PostgresProvider) DeleteExtendedMemory(ctx context.Context, userID kernel.UserID, memoryID kernel.MemoryID) error {
	db, err := p.conn()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `DELETE FROM extended_memories WHERE user_id = $1 AND memory_id = $2`,
		userID.String(), memoryID.String())
	if err != nil {
		return memory.WrapBackend(err, "delete_extended_memory")
	}
	return nil
}

func (p *PostgresProvider) DeleteExtendedMemories(ctx context.Context, userID kernel.UserID) error {
	db, err := p.conn()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `DELETE FROM extended_memories WHERE user_id = $1`, userID.String())
	if err != nil {
		return memory.WrapBackend(err, "delete_extended_memories")
	}
	return nil
}

func (p *PostgresProvider) SearchMemories(ctx context.Context, userID kernel.UserID, embedding []float32, limit int) ([]memory.MemoryMatch, error) {
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

func (p *PostgresProvider) SaveOAuthTokens(ctx context.Context, t memory.OAuthTokens) (*memory.OAuthTokens, error) {
	db, err := p.conn()
	if err != nil {
		return nil, err
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}

	now := memory.NowMillis()
	t.CreatedAt = now
	t.UpdatedAt = now

	scopes, err := marshalJSON(t.Scopes)
	if err != nil {
		return nil, memory.WrapBackend(err, "save_oauth_tokens")
	}

	// Single statement upsert; created_at survives replacement
	row := db.QueryRowContext(ctx, `
		INSERT INTO oauth_tokens (user_id, provider, access_token, refresh_token, token_type, expires_at, scopes, tenant_id, tenant_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (user_id, provider) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			token_type = EXCLUDED.token_type,
			expires_at = EXCLUDED.expires_at,
			scopes = EXCLUDED.scopes,
			tenant_id = EXCLUDED.tenant_id,
			tenant_name = EXCLUDED.tenant_name,
			updated_at = EXCLUDED.updated_at
		RETURNING created_at`,
		t.UserID.String(), t.Provider, t.AccessToken, t.RefreshToken, nullableString(t.TokenType), t.ExpiresAt, scopes, t.TenantID, t.TenantName, t.CreatedAt, t.UpdatedAt)

	if err := row.Scan(&t.CreatedAt); err != nil {
		return nil, memory.WrapBackend(err, "save_oauth_tokens")
	}
	return &t, nil
}

func (p *PostgresProvider) GetOAuthTokens(ctx context.Context, userID kernel.UserID, provider string) (*memory.OAuthTokens, error) {
	db, err := p.conn()
	if err != nil {
		return nil, err
	}

	row := db.QueryRowContext(ctx, `
		SELECT user_id, provider, access_token, refresh_token, token_type, expires_at, scopes, tenant_id, tenant_name, created_at, updated_at
		FROM oauth_tokens WHERE user_id = $1 AND provider = $2`,
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

func (p *PostgresProvider) UpdateOAuthTokens(ctx context.Context, userID kernel.UserID, provider string, update memory.OAuthTokensUpdate) (*memory.OAuthTokens, error) {
	db, err := p.conn()
	if err != nil {
		return nil, err
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, memory.WrapBackend(err, "update_oauth_tokens")
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT user_id, provider, access_token, refresh_token, token_type, expires_at, scopes, tenant_id, tenant_name, created_at, updated_at
		FROM oauth_tokens WHERE user_id = $1 AND provider = $2
		FOR UPDATE`,
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
		UPDATE oauth_tokens SET access_token = $1, refresh_token = $2, token_type = $3, expires_at = $4, scopes = $5, tenant_id = $6, tenant_name = $7, updated_at = $8
		WHERE user_id = $9 AND provider = $10`,
		t.AccessToken, t.RefreshToken, nullableString(t.TokenType), t.ExpiresAt, scopes, t.TenantID, t.TenantName, t.UpdatedAt, userID.String(), provider)
	if err != nil {
		return nil, memory.WrapBackend(err, "update_oauth_tokens")
	}

	if err := tx.Commit(); err != nil {
		return nil, memory.WrapBackend(err, "update_oauth_tokens")
	}
	return t, nil
}

func (p *PostgresProvider) DeleteOAuthTokens(ctx context.Context, userID kernel.UserID, provider string) error {
	db, err := p.conn()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `DELETE FROM oauth_tokens WHERE user_id = $1 AND provider = $2`,
		userID.String(), provider)
	if err != nil {
		return memory.WrapBackend(err, "delete_oauth_tokens")
	}
	return nil
}
