package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Auth: AuthConfig{
			JWT: JWTConfig{
				SecretKey: "test-secret-key-at-least-32-chars!!",
			},
		},
		Storage: StorageConfig{
			Provider: ProviderEmbeddedFile,
		},
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidateRejectsWeakSecret(t *testing.T) {
	missing := validConfig()
	missing.Auth.JWT.SecretKey = ""
	assert.Error(t, missing.Validate())

	short := validConfig()
	short.Auth.JWT.SecretKey = "too-short"
	assert.Error(t, short.Validate())
}

func TestValidateRejectsUnknownProvider(t *testing.T) {
	for _, p := range []StorageProvider{ProviderEmbeddedFile, ProviderManagedKV, ProviderRelational} {
		cfg := validConfig()
		cfg.Storage.Provider = p
		assert.NoError(t, cfg.Validate(), "provider %q", p)
	}

	bad := validConfig()
	bad.Storage.Provider = "mongodb"
	assert.Error(t, bad.Validate())
}

func TestLoadUsesDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "test-secret-key-at-least-32-chars!!")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, ProviderEmbeddedFile, cfg.Storage.Provider)
	assert.True(t, cfg.IsDevelopment())
}

func TestEnvironmentSelection(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "test-secret-key-at-least-32-chars!!")
	t.Setenv("ENVIRONMENT", "production")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProd())
	assert.False(t, cfg.IsDevelopment())
}
