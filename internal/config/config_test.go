package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_Valid(t *testing.T) {
	path := writeConfig(t, `{
		"port": 8080,
		"store_backend": "sqlite",
		"sqlite_path": "review.db",
		"identity_strategy": "exact",
		"onboarding_question": 1
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, BackendSQLite, cfg.StoreBackend)
	assert.Equal(t, "exact", cfg.IdentityStrategy)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	_, err := LoadConfig("")
	assert.Error(t, err)
}

func TestLoadConfig_MalformedJSON(t *testing.T) {
	path := writeConfig(t, `{"port": `)
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestValidate_UnknownBackend(t *testing.T) {
	cfg := Config{StoreBackend: "mongodb"}
	assert.Error(t, cfg.Validate())
}

func TestValidate_UnknownIdentityStrategy(t *testing.T) {
	cfg := Config{IdentityStrategy: "fuzzy"}
	assert.Error(t, cfg.Validate())
}

func TestValidate_SQLitePathWithPostgresBackend(t *testing.T) {
	cfg := Config{StoreBackend: BackendPostgres, SQLitePath: "review.db"}
	assert.Error(t, cfg.Validate())
}

func TestValidate_PortRange(t *testing.T) {
	cfg := Config{Port: 70000}
	assert.Error(t, cfg.Validate())
}

func TestValidate_EmptyIsValid(t *testing.T) {
	cfg := Config{}
	assert.NoError(t, cfg.Validate())
}

func TestMergeWithDefaults(t *testing.T) {
	cfg := Config{Port: 9090, APIKey: "from-flag"}
	merged := cfg.MergeWithDefaults(Config{
		Port:               8080,
		APIKey:             "from-file",
		StoreBackend:       BackendSQLite,
		SQLitePath:         "review.db",
		OnboardingQuestion: 2,
	})

	assert.Equal(t, 9090, merged.Port, "explicit value wins over default")
	assert.Equal(t, "from-flag", merged.APIKey)
	assert.Equal(t, BackendSQLite, merged.StoreBackend)
	assert.Equal(t, "review.db", merged.SQLitePath)
	assert.Equal(t, 2, merged.OnboardingQuestion)
}

func TestNewJWTConfig(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("JWT_EXPIRATION_HOURS", "48")

	cfg, err := NewJWTConfig()
	require.NoError(t, err)
	assert.Equal(t, "test-secret", cfg.Secret)
	assert.Equal(t, 48, cfg.ExpirationHours)
	assert.Equal(t, float64(48), cfg.TokenTTL().Hours())
}

func TestNewJWTConfig_MissingSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := NewJWTConfig()
	assert.Error(t, err)
}

func TestNewJWTConfig_InvalidExpiration(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("JWT_EXPIRATION_HOURS", "zero")
	_, err := NewJWTConfig()
	assert.Error(t, err)
}

func TestPasswordConfig_HashAndVerify(t *testing.T) {
	t.Setenv("BCRYPT_COST", "10")
	t.Setenv("PASSWORD_PEPPER", "")

	cfg, err := NewPasswordConfig()
	require.NoError(t, err)

	hash, err := cfg.HashPassword("correct horse battery staple")
	require.NoError(t, err)
	assert.True(t, cfg.VerifyPassword("correct horse battery staple", hash))
	assert.False(t, cfg.VerifyPassword("wrong password", hash))
}

func TestPasswordConfig_PepperChangesVerification(t *testing.T) {
	t.Setenv("BCRYPT_COST", "10")
	t.Setenv("PASSWORD_PEPPER", "pepper-a")

	peppered, err := NewPasswordConfig()
	require.NoError(t, err)
	hash, err := peppered.HashPassword("pw")
	require.NoError(t, err)

	plain := &PasswordConfig{BcryptCost: 10}
	assert.False(t, plain.VerifyPassword("pw", hash))
}

func TestNewPasswordConfig_CostOutOfRange(t *testing.T) {
	t.Setenv("BCRYPT_COST", "4")
	_, err := NewPasswordConfig()
	assert.Error(t, err)
}
