// Package memory defines the assistant's durable state: conversation
// sessions, the per-user core and extended memory tiers, and the OAuth
// credentials stored on behalf of the accounting integration. It also
// defines the Provider contract that every storage backend implements;
// callers are backend-agnostic and must observe identical behavior
// regardless of which backend is configured.
package memory

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/errx"
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/kernel"
)

// NowMillis returns the current time as Unix milliseconds, the timestamp
// unit every backend persists. Millisecond timestamps are part of the
// stored-data contract: backends must remain interchangeable without a
// data migration.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}

// SortOrder orders listings by createdAt.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

func (o SortOrder) IsValid() bool {
	return o == SortAsc || o == SortDesc
}

// Provider is the persistence capability contract. Implementations own
// durability only; merge semantics live on the entities so that every
// backend produces identical results.
//
// Lifecycle: Connect must succeed before any other operation; after
// Disconnect (or before Connect) every operation fails with
// ErrNotConnected. Reads that find nothing return (nil, nil); writes
// that target a missing record return ErrRecordNotFound; creating a
// session under a key that is already taken fails with ErrAlreadyExists;
// deletes are idempotent.
type Provider interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	IsConnected() bool

	// Sessions
	CreateSession(ctx context.Context, s Session) (*Session, error)
	GetSession(ctx context.Context, userID kernel.UserID, sessionID kernel.SessionID) (*Session, error)
	UpdateSession(ctx context.Context, userID kernel.UserID, sessionID kernel.SessionID, update SessionUpdate) (*Session, error)
	DeleteSession(ctx context.Context, userID kernel.UserID, sessionID kernel.SessionID) error
	ListSessions(ctx context.Context, filter SessionFilter) ([]Session, error)

	// Core memory
	GetCoreMemory(ctx context.Context, userID kernel.UserID) (*CoreMemory, error)
	UpsertCoreMemory(ctx context.Context, userID kernel.UserID, update CoreMemoryUpdate) (*CoreMemory, error)
	DeleteCoreMemory(ctx context.Context, userID kernel.UserID) error

	// Extended memory
	CreateExtendedMemory(ctx context.Context, m ExtendedMemory) (*ExtendedMemory, error)
	GetExtendedMemory(ctx context.Context, userID kernel.UserID, memoryID kernel.MemoryID) (*ExtendedMemory, error)
	ListExtendedMemories(ctx context.Context, filter ExtendedMemoryFilter) ([]ExtendedMemory, error)
	DeleteExtendedMemory(ctx context.Context, userID kernel.UserID, memoryID kernel.MemoryID) error
	DeleteExtendedMemories(ctx context.Context, userID kernel.UserID) error
	SearchMemories(ctx context.Context, userID kernel.UserID, embedding []float32, limit int) ([]MemoryMatch, error)

	// OAuth credentials
	SaveOAuthTokens(ctx context.Context, t OAuthTokens) (*OAuthTokens, error)
	GetOAuthTokens(ctx context.Context, userID kernel.UserID, provider string) (*OAuthTokens, error)
	UpdateOAuthTokens(ctx context.Context, userID kernel.UserID, provider string, update OAuthTokensUpdate) (*OAuthTokens, error)
	DeleteOAuthTokens(ctx context.Context, userID kernel.UserID, provider string) error
}

// ============================================================================
// Error Registry
// ============================================================================

var ErrRegistry = errx.NewRegistry("MEMORY")

var (
	CodeNotConnected     = ErrRegistry.Register("NOT_CONNECTED", errx.TypeUnavailable, http.StatusServiceUnavailable, "Storage provider is not connected")
	CodeRecordNotFound   = ErrRegistry.Register("RECORD_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Record not found")
	CodeAlreadyExists    = ErrRegistry.Register("ALREADY_EXISTS", errx.TypeConflict, http.StatusConflict, "Record already exists")
	CodeConnectionFailed = ErrRegistry.Register("CONNECTION_FAILED", errx.TypeExternal, http.StatusServiceUnavailable, "Storage backend unreachable")
	CodeTimeout          = ErrRegistry.Register("TIMEOUT", errx.TypeTimeout, http.StatusGatewayTimeout, "Storage operation timed out")
	CodeInvalidStage     = ErrRegistry.Register("INVALID_STAGE", errx.TypeValidation, http.StatusBadRequest, "Unknown relationship stage")
	CodeInvalidFilter    = ErrRegistry.Register("INVALID_FILTER", errx.TypeValidation, http.StatusBadRequest, "Malformed listing filter")
	CodeInvalidEmbedding = ErrRegistry.Register("INVALID_EMBEDDING", errx.TypeValidation, http.StatusBadRequest, "Invalid embedding vector")
	CodeInvalidRecord    = ErrRegistry.Register("INVALID_RECORD", errx.TypeValidation, http.StatusBadRequest, "Invalid record")
)

func ErrNotConnected() *errx.Error {
	return ErrRegistry.New(CodeNotConnected)
}

// ErrRecordNotFound carries the record type and identifier so callers can
// tell which write missed.
func ErrRecordNotFound(recordType, id string) *errx.Error {
	return ErrRegistry.New(CodeRecordNotFound).
		WithDetail("record_type", recordType).
		WithDetail("id", id)
}

// ErrAlreadyExists signals a create against a key that is already taken
func ErrAlreadyExists(recordType, id string) *errx.Error {
	return ErrRegistry.New(CodeAlreadyExists).
		WithDetail("record_type", recordType).
		WithDetail("id", id)
}

func ErrConnectionFailed() *errx.Error {
	return ErrRegistry.New(CodeConnectionFailed)
}

func ErrTimeout() *errx.Error {
	return ErrRegistry.New(CodeTimeout)
}

func ErrInvalidStage(stage string) *errx.Error {
	return ErrRegistry.New(CodeInvalidStage).WithDetail("stage", stage)
}

func ErrInvalidFilter(reason string) *errx.Error {
	return ErrRegistry.New(CodeInvalidFilter).WithDetail("reason", reason)
}

func ErrInvalidEmbedding(reason string) *errx.Error {
	return ErrRegistry.New(CodeInvalidEmbedding).WithDetail("reason", reason)
}

func ErrInvalidRecord(reason string) *errx.Error {
	return ErrRegistry.New(CodeInvalidRecord).WithDetail("reason", reason)
}

// WrapBackend converts a backend-native error into the shared taxonomy.
// Context cancellation and deadline expiry surface as a retryable timeout
// error rather than leaking driver-specific sentinels.
func WrapBackend(err error, op string) *errx.Error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrTimeout().WithDetail("op", op).WithError(err)
	}
	return errx.Wrap(err, "storage operation failed", errx.TypeInternal).WithDetail("op", op)
}
