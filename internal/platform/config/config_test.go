package config

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amBITionV2/Crazy-developers-527A-AI-09/pkg/model"
)

var configKeys = []string{
	"PORT", "GIN_MODE", "LOG_LEVEL", "LOG_FORMAT", "ALLOWED_ORIGINS",
	"CACHE_BACKEND", "SQLITE_PATH", "FIREBASE_PROJECT_ID", "FIREBASE_CREDS_BASE64",
	"FIREBASE_CREDS_FILE", "PRIMARY_DATABASE_URL", "REDIS_ADDR", "REDIS_PASSWORD",
	"REDIS_DB", "ERAKTKOSH_BASE_URL", "ERAKTKOSH_MOCK", "SCRAPE_STATES", "SCRAPE_WORKERS",
	"FETCH_TIMEOUT", "CACHE_DURATION", "REFRESH_INTERVAL", "RETRY_INTERVAL",
	"DEFAULT_DONOR_BLOOD_GROUP",
}

// clearEnv blanks every config key for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configKeys {
		t.Setenv(k, "")
	}
}

func TestLoadSQLiteDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("CACHE_BACKEND", "SQLite")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "release", cfg.GinMode)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, BackendSQLite, cfg.CacheBackend)
	assert.Equal(t, "bloodaid-cache.db", cfg.SQLitePath)
	assert.Equal(t, 5, cfg.ScrapeWorkers)
	assert.Equal(t, 30*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 2*time.Hour, cfg.CacheDuration)
	assert.Equal(t, 2*time.Hour, cfg.RefreshInterval)
	assert.Equal(t, 30*time.Minute, cfg.RetryInterval)
	assert.Equal(t, model.OPos, cfg.DefaultDonorBloodGroup)
	assert.False(t, cfg.ERaktKoshMock)
	assert.Empty(t, cfg.ScrapeStates)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("CACHE_BACKEND", "sqlite")
	t.Setenv("SCRAPE_STATES", " Delhi, Maharashtra ,,Karnataka")
	t.Setenv("SCRAPE_WORKERS", "8")
	t.Setenv("ERAKTKOSH_MOCK", "true")
	t.Setenv("CACHE_DURATION", "90m")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("DEFAULT_DONOR_BLOOD_GROUP", "b negative")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"Delhi", "Maharashtra", "Karnataka"}, cfg.ScrapeStates)
	assert.Equal(t, 8, cfg.ScrapeWorkers)
	assert.True(t, cfg.ERaktKoshMock)
	assert.Equal(t, 90*time.Minute, cfg.CacheDuration)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, model.BNeg, cfg.DefaultDonorBloodGroup)
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"firestore without project", map[string]string{}, "FIREBASE_PROJECT_ID"},
		{"firestore without creds", map[string]string{"FIREBASE_PROJECT_ID": "bloodaid"}, "FIREBASE_CREDS"},
		{"unknown backend", map[string]string{"CACHE_BACKEND": "mongo"}, "unknown CACHE_BACKEND"},
		{"bad bool", map[string]string{"CACHE_BACKEND": "sqlite", "ERAKTKOSH_MOCK": "maybe"}, "ERAKTKOSH_MOCK"},
		{"bad duration", map[string]string{"CACHE_BACKEND": "sqlite", "CACHE_DURATION": "soon"}, "CACHE_DURATION"},
		{"bad group", map[string]string{"CACHE_BACKEND": "sqlite", "DEFAULT_DONOR_BLOOD_GROUP": "C+"}, "DEFAULT_DONOR_BLOOD_GROUP"},
		{"zero workers", map[string]string{"CACHE_BACKEND": "sqlite", "SCRAPE_WORKERS": "0"}, "SCRAPE_WORKERS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestFirebaseCredentialsJSON(t *testing.T) {
	payload := []byte(`{"type":"service_account"}`)

	cfg := Config{FirebaseCredsBase64: base64.StdEncoding.EncodeToString(payload)}
	got, source, err := cfg.FirebaseCredentialsJSON()
	require.NoError(t, err)
	assert.Equal(t, "base64", source)
	assert.Equal(t, payload, got)

	path := filepath.Join(t.TempDir(), "creds.json")
	require.NoError(t, os.WriteFile(path, payload, 0o600))
	cfg = Config{FirebaseCredsFile: path}
	got, source, err = cfg.FirebaseCredentialsJSON()
	require.NoError(t, err)
	assert.Equal(t, "file", source)
	assert.Equal(t, payload, got)

	_, _, err = Config{FirebaseCredsBase64: "!!"}.FirebaseCredentialsJSON()
	assert.Error(t, err)

	_, _, err = Config{}.FirebaseCredentialsJSON()
	assert.Error(t, err)
}
