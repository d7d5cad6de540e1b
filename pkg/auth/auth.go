// Package auth valida los tokens que emite el orquestador. Este servicio
// nunca emite credenciales de usuario final; solo verifica que cada
// request llegue con un token firmado y extrae la identidad.
package auth

import (
	"net/http"
	"time"

	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/errx"
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/kernel"
)

// TokenClaims son los claims ya validados de un token de acceso
type TokenClaims struct {
	UserID    kernel.UserID
	Email     string
	Scopes    []string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenService valida tokens de acceso
type TokenService interface {
	GenerateAccessToken(userID kernel.UserID, claims map[string]any) (string, error)
	ValidateAccessToken(tokenString string) (*TokenClaims, error)
}

var ErrRegistry = errx.NewRegistry("AUTH")

var (
	CodeUnauthorized          = ErrRegistry.Register("UNAUTHORIZED", errx.TypeAuthorization, http.StatusUnauthorized, "Authentication required")
	CodeForbidden             = ErrRegistry.Register("FORBIDDEN", errx.TypeAuthorization, http.StatusForbidden, "Insufficient permissions")
	CodeTokenGenerationFailed = ErrRegistry.Register("TOKEN_GENERATION_FAILED", errx.TypeInternal, http.StatusInternalServerError, "Failed to generate token")
	CodeTokenValidationFailed = ErrRegistry.Register("TOKEN_VALIDATION_FAILED", errx.TypeAuthorization, http.StatusUnauthorized, "Invalid or expired token")
)

func ErrUnauthorized() *errx.Error {
	return ErrRegistry.New(CodeUnauthorized)
}

func ErrForbidden() *errx.Error {
	return ErrRegistry.New(CodeForbidden)
}

func ErrTokenGenerationFailed() *errx.Error {
	return ErrRegistry.New(CodeTokenGenerationFailed)
}

func ErrTokenValidationFailed() *errx.Error {
	return ErrRegistry.New(CodeTokenValidationFailed)
}
