package memoryapi

import (
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/memory"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// CreateSessionRequest abre una conversación nueva
type CreateSessionRequest struct {
	SessionID string           `json:"sessionId" validate:"required"`
	Messages  []memory.Message `json:"messages,omitempty" validate:"omitempty,dive"`
	Context   map[string]any   `json:"context,omitempty"`
	ExpiresAt *int64           `json:"expiresAt,omitempty"`
}

// AppendMessagesRequest agrega turnos a una conversación existente
type AppendMessagesRequest struct {
	Messages []memory.Message `json:"messages" validate:"required,min=1,dive"`
}

// UpdateSessionRequest es la actualización parcial de una sesión
type UpdateSessionRequest struct {
	Messages       *[]memory.Message `json:"messages,omitempty"`
	AppendMessages []memory.Message  `json:"appendMessages,omitempty"`
	Context        map[string]any    `json:"context,omitempty"`
	ExpiresAt      *int64            `json:"expiresAt,omitempty"`
}

// AddMilestoneRequest registra un evento en la relación
type AddMilestoneRequest struct {
	Type        string `json:"type" validate:"required"`
	Description string `json:"description"`
	Timestamp   int64  `json:"timestamp,omitempty"`
}

// UpdateStageRequest cambia la etapa de la relación
type UpdateStageRequest struct {
	Stage string `json:"stage" validate:"required,oneof=colleague partner friend"`
}

// AddExtendedMemoryRequest guarda un resumen de conversación
type AddExtendedMemoryRequest struct {
	ConversationSummary string         `json:"conversationSummary" validate:"required"`
	Embedding           []float32      `json:"embedding,omitempty"`
	LearnedPatterns     map[string]any `json:"learnedPatterns,omitempty"`
	EmotionalContext    *string        `json:"emotionalContext,omitempty"`
	Topics              []string       `json:"topics,omitempty"`
	TTL                 *int64         `json:"ttl,omitempty"`
}

// SearchMemoriesRequest busca por vector o por texto
type SearchMemoriesRequest struct {
	Embedding []float32 `json:"embedding,omitempty"`
	Query     string    `json:"query,omitempty"`
	Limit     int       `json:"limit,omitempty" validate:"omitempty,min=1,max=100"`
}

// SaveTokensRequest guarda credenciales OAuth de un proveedor contable
type SaveTokensRequest struct {
	AccessToken  string   `json:"accessToken" validate:"required"`
	RefreshToken string   `json:"refreshToken" validate:"required"`
	TokenType    string   `json:"tokenType,omitempty"`
	ExpiresAt    int64    `json:"expiresAt" validate:"required"`
	Scopes       []string `json:"scopes,omitempty"`
	TenantID     *string  `json:"tenantId,omitempty"`
	TenantName   *string  `json:"tenantName,omitempty"`
}

// RefreshTokensRequest reemplaza el access token tras un refresh
type RefreshTokensRequest struct {
	AccessToken  string  `json:"accessToken" validate:"required"`
	ExpiresAt    int64   `json:"expiresAt" validate:"required"`
	RefreshToken *string `json:"refreshToken,omitempty"`
}
