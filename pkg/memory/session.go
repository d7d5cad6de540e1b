package memory

import (
	"time"

	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/kernel"
)

// ============================================================================
// Session Entity
// ============================================================================

// MessageRole identifies who produced a message
type MessageRole string

const (
	RoleUser  MessageRole = "user"
	RoleAgent MessageRole = "agent"
)

func (r MessageRole) IsValid() bool {
	return r == RoleUser || r == RoleAgent
}

// Message is one turn in a conversation. Order within the session is the
// implicit timestamp.
type Message struct {
	Role MessageRole `json:"role"`
	Text string      `json:"text"`
}

// Session is one conversation owned by a single user. Expiry is advisory:
// expired sessions remain readable until an external sweeper reclaims them.
type Session struct {
	UserID    kernel.UserID    `json:"userId"`
	SessionID kernel.SessionID `json:"sessionId"`
	Messages  []Message        `json:"messages"`
	Context   map[string]any   `json:"context,omitempty"`
	CreatedAt int64            `json:"createdAt"`
	UpdatedAt int64            `json:"updatedAt"`
	ExpiresAt int64            `json:"expiresAt"`
}

// DefaultSessionTTL is applied when a session is created without an
// explicit expiry.
const DefaultSessionTTL = 30 * 24 * time.Hour

func (s *Session) IsExpired(now int64) bool {
	return s.ExpiresAt > 0 && s.ExpiresAt <= now
}

// SessionUpdate is a partial update. Nil fields keep their prior value.
// AppendMessages adds to the existing sequence; Messages (when set)
// replaces it wholesale. Context entries are merged key-wise.
type SessionUpdate struct {
	Messages       *[]Message     `json:"messages,omitempty"`
	AppendMessages []Message      `json:"appendMessages,omitempty"`
	Context        map[string]any `json:"context,omitempty"`
	ExpiresAt      *int64         `json:"expiresAt,omitempty"`
}

// Apply mutates the session in place. Every backend funnels updates
// through here so merge behavior cannot drift between engines.
func (s *Session) Apply(u SessionUpdate, now int64) {
	if u.Messages != nil {
		s.Messages = append([]Message(nil), (*u.Messages)...)
	}
	if len(u.AppendMessages) > 0 {
		s.Messages = append(s.Messages, u.AppendMessages...)
	}
	if len(u.Context) > 0 {
		if s.Context == nil {
			s.Context = make(map[string]any, len(u.Context))
		}
		for k, v := range u.Context {
			s.Context[k] = v
		}
	}
	if u.ExpiresAt != nil {
		s.ExpiresAt = *u.ExpiresAt
	}
	s.UpdatedAt = now
}

// Validate rejects malformed sessions before any I/O happens
func (s *Session) Validate() error {
	if s.UserID.IsZero() {
		return ErrInvalidRecord("userId is required")
	}
	if s.SessionID.IsZero() {
		return ErrInvalidRecord("sessionId is required")
	}
	for _, m := range s.Messages {
		if !m.Role.IsValid() {
			return ErrInvalidRecord("message role must be user or agent")
		}
	}
	return nil
}

// SessionFilter selects sessions for one user, ordered by createdAt.
type SessionFilter struct {
	UserID    kernel.UserID `json:"userId"`
	SortOrder SortOrder     `json:"sortOrder,omitempty"`
	Limit     int           `json:"limit,omitempty"`
}

func (f *SessionFilter) Validate() error {
	if f.UserID.IsZero() {
		return ErrInvalidFilter("userId is required")
	}
	if f.SortOrder != "" && !f.SortOrder.IsValid() {
		return ErrInvalidFilter("sortOrder must be asc or desc")
	}
	if f.Limit < 0 {
		return ErrInvalidFilter("limit must be >= 0")
	}
	return nil
}

// Order returns the effective sort order (newest first by default)
func (f *SessionFilter) Order() SortOrder {
	if f.SortOrder == "" {
		return SortDesc
	}
	return f.SortOrder
}
