package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"DATABASE_URL", "SPECIAL_DB_URL", "ADMIN_EMAIL", "ADMIN_API_KEY"} {
		t.Setenv(key, "")
	}
	// Pin the defaulted field so ambient shell state can't leak in.
	t.Setenv("ASSISTANTS_BASE_URL", "http://localhost:9000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Empty(t, cfg.DatabaseURL)
	assert.Empty(t, cfg.AdminEmail)
	assert.Equal(t, "http://localhost:9000", cfg.AssistantsBaseURL)
}

func TestLoad_ReadsEnvironment(t *testing.T) {
	t.Setenv("DATABASE_URL", "mysql+pymysql://u:p@db:3306/d")
	t.Setenv("SPECIAL_DB_URL", "mysql+pymysql://u:p@localhost:3307/d")
	t.Setenv("ADMIN_EMAIL", "root@entities.local")
	t.Setenv("ADMIN_API_KEY", "ad_key")
	t.Setenv("ASSISTANTS_BASE_URL", "http://localhost:9100")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "mysql+pymysql://u:p@db:3306/d", cfg.DatabaseURL)
	assert.Equal(t, "mysql+pymysql://u:p@localhost:3307/d", cfg.SpecialDBURL)
	assert.Equal(t, "root@entities.local", cfg.AdminEmail)
	assert.Equal(t, "ad_key", cfg.AdminAPIKey)
	assert.Equal(t, "http://localhost:9100", cfg.AssistantsBaseURL)
}
