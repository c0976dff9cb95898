package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{
		"HTTP_ADDR", "PREDICT_TIMEOUT", "ROW_STORE", "FILE_STORE", "AVATAR_BUCKET",
		"REDIS_DB", "SESSION_KEY", "RABBIT_QUEUE", "AUTO_REFRESH_TOKEN",
	} {
		t.Setenv(k, "")
	}
	t.Setenv("PREDICT_API_URL", "http://predict.local/")

	cfg := Load()
	assert.Equal(t, "127.0.0.1:8080", cfg.HTTPAddr)
	assert.Equal(t, "http://predict.local", cfg.PredictAPIURL)
	assert.Equal(t, 30*time.Second, cfg.PredictTimeout)
	assert.Equal(t, RowStoreREST, cfg.RowStore)
	assert.Equal(t, FileStoreSupabase, cfg.FileStore)
	assert.Equal(t, "profile_images", cfg.AvatarBucket)
	assert.Equal(t, "prediction_events", cfg.RabbitQueue)
	assert.True(t, cfg.AutoRefreshToken)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PREDICT_TIMEOUT", "5s")
	t.Setenv("ROW_STORE", "SQL")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("AUTO_REFRESH_TOKEN", "false")

	cfg := Load()
	assert.Equal(t, 5*time.Second, cfg.PredictTimeout)
	assert.Equal(t, RowStoreSQL, cfg.RowStore)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.False(t, cfg.AutoRefreshToken)
}

func TestValidate(t *testing.T) {
	cfg := Config{
		PredictAPIURL:   "http://predict.local",
		SupabaseURL:     "http://supabase.local",
		SupabaseAnonKey: "anon",
		RowStore:        RowStoreREST,
		FileStore:       FileStoreSupabase,
	}
	require.NoError(t, cfg.Validate())

	cfg.RowStore = RowStoreSQL
	require.ErrorContains(t, cfg.Validate(), "DB_DSN")

	cfg.RowStore = RowStoreREST
	cfg.FileStore = FileStoreGCS
	require.ErrorContains(t, cfg.Validate(), "GCS_BUCKET")

	require.Error(t, Config{}.Validate())
}
