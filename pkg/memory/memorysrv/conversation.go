package memorysrv

import (
	"context"

	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/kernel"
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/logx"
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/memory"
)

// ConversationService owns the session lifecycle. Sessions are advisory
// TTL documents: creation stamps a default expiry and expired sessions
// stay readable until an external sweeper reclaims them.
type ConversationService struct {
	provider memory.Provider
}

func NewConversationService(provider memory.Provider) *ConversationService {
	return &ConversationService{provider: provider}
}

// StartSession creates a new conversation. A zero ExpiresAt gets the
// default 30-day window from creation time.
func (s *ConversationService) StartSession(ctx context.Context, session memory.Session) (*memory.Session, error) {
	created, err := s.provider.CreateSession(ctx, session)
	if err != nil {
		return nil, err
	}

	logx.WithFields(logx.Fields{
		"user_id":    created.UserID.String(),
		"session_id": created.SessionID.String(),
	}).Infof("💬 Session started")
	return created, nil
}

func (s *ConversationService) GetSession(ctx context.Context, userID kernel.UserID, sessionID kernel.SessionID) (*memory.Session, error) {
	session, err := s.provider.GetSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, memory.ErrRecordNotFound("session", sessionID.String())
	}
	return session, nil
}

// AppendMessages adds turns to an existing conversation without
// replacing its history.
func (s *ConversationService) AppendMessages(ctx context.Context, userID kernel.UserID, sessionID kernel.SessionID, messages []memory.Message) (*memory.Session, error) {
	for _, m := range messages {
		if !m.Role.IsValid() {
			return nil, memory.ErrInvalidRecord("message role must be user or agent")
		}
	}
	return s.provider.UpdateSession(ctx, userID, sessionID, memory.SessionUpdate{
		AppendMessages: messages,
	})
}

// UpdateSession applies a partial update: message replacement or append,
// key-wise context merge, expiry change.
func (s *ConversationService) UpdateSession(ctx context.Context, userID kernel.UserID, sessionID kernel.SessionID, update memory.SessionUpdate) (*memory.Session, error) {
	return s.provider.UpdateSession(ctx, userID, sessionID, update)
}

func (s *ConversationService) EndSession(ctx context.Context, userID kernel.UserID, sessionID kernel.SessionID) error {
	if err := s.provider.DeleteSession(ctx, userID, sessionID); err != nil {
		return err
	}

	logx.WithFields(logx.Fields{
		"user_id":    userID.String(),
		"session_id": sessionID.String(),
	}).Infof("👋 Session ended")
	return nil
}

// ListSessions returns the user's conversations ordered by creation
// time, newest first and capped at DefaultListLimit unless the filter
// says otherwise.
func (s *ConversationService) ListSessions(ctx context.Context, filter memory.SessionFilter) ([]memory.Session, error) {
	if filter.Limit == 0 {
		filter.Limit = DefaultListLimit
	}
	return s.provider.ListSessions(ctx, filter)
}
