package memory

import (
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/kernel"
)

// ============================================================================
// Core Memory Entity
// ============================================================================

// RelationshipStage classifies the rapport between user and assistant.
// The vocabulary is fixed; progression is by convention only. Transitions
// are always explicit caller events and any stage is reachable from any
// other — the system never auto-advances.
type RelationshipStage string

const (
	StageColleague RelationshipStage = "colleague"
	StagePartner   RelationshipStage = "partner"
	StageFriend    RelationshipStage = "friend"
)

func (s RelationshipStage) IsValid() bool {
	switch s {
	case StageColleague, StagePartner, StageFriend:
		return true
	}
	return false
}

// Milestone is a timestamped, typed event in the relationship history
type Milestone struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Timestamp   int64  `json:"timestamp"`
}

// CoreMemory is the always-available per-user profile. At most one record
// exists per user; it is created on first write and only partial merges
// ever touch it — an update never destroys fields it does not name.
type CoreMemory struct {
	UserID            kernel.UserID     `json:"userId"`
	Preferences       map[string]any    `json:"preferences,omitempty"`
	RelationshipStage RelationshipStage `json:"relationshipStage,omitempty"`
	KeyMilestones     []Milestone       `json:"keyMilestones,omitempty"`
	CriticalContext   []string          `json:"criticalContext,omitempty"`
	CreatedAt         int64             `json:"createdAt"`
	UpdatedAt         int64             `json:"updatedAt"`
}

// CoreMemoryUpdate is a partial merge. Preferences merge key-wise;
// KeyMilestones and CriticalContext replace the whole sequence when set
// (pointer distinguishes "unset" from "set to empty").
type CoreMemoryUpdate struct {
	Preferences       map[string]any     `json:"preferences,omitempty"`
	RelationshipStage *RelationshipStage `json:"relationshipStage,omitempty"`
	KeyMilestones     *[]Milestone       `json:"keyMilestones,omitempty"`
	CriticalContext   *[]string          `json:"criticalContext,omitempty"`
}

func (u *CoreMemoryUpdate) Validate() error {
	if u.RelationshipStage != nil && !u.RelationshipStage.IsValid() {
		return ErrInvalidStage(string(*u.RelationshipStage))
	}
	return nil
}

// Apply merges the update into the record. All backends share this so the
// merge law (upsert {a} then {b} yields {a,b}) holds everywhere.
func (m *CoreMemory) Apply(u CoreMemoryUpdate, now int64) {
	if len(u.Preferences) > 0 {
		if m.Preferences == nil {
			m.Preferences = make(map[string]any, len(u.Preferences))
		}
		for k, v := range u.Preferences {
			m.Preferences[k] = v
		}
	}
	if u.RelationshipStage != nil {
		m.RelationshipStage = *u.RelationshipStage
	}
	if u.KeyMilestones != nil {
		m.KeyMilestones = append([]Milestone(nil), (*u.KeyMilestones)...)
	}
	if u.CriticalContext != nil {
		m.CriticalContext = append([]string(nil), (*u.CriticalContext)...)
	}
	m.UpdatedAt = now
}

// NewCoreMemory returns the empty record created on a user's first upsert
func NewCoreMemory(userID kernel.UserID, now int64) *CoreMemory {
	return &CoreMemory{
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
