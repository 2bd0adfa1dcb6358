package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnv_Defaults(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, cfg.loadEnv())

	assert.Equal(t, 2553, cfg.ZaloPay.AppID)
	assert.Equal(t, "https://sb-openapi.zalopay.vn", cfg.ZaloPay.Endpoint)
	assert.False(t, cfg.ZaloPay.Enabled())
	assert.Equal(t, "order.events", cfg.Kafka.Topic)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, "1025", cfg.SMTP.Port)
}

func TestLoadEnv_Overrides(t *testing.T) {
	t.Setenv("ZALOPAY_APP_ID", "554")
	t.Setenv("ZALOPAY_KEY1", "k1")
	t.Setenv("ZALOPAY_KEY2", "k2")
	t.Setenv("NGROK_URL", "https://abc.ngrok.app/")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("ADMIN_EMAIL", "root@petshop.local")
	t.Setenv("S3_BUCKET", "pets")
	t.Setenv("GOOGLE_API_KEY", "gk-123")

	cfg := &Config{}
	require.NoError(t, cfg.loadEnv())

	assert.Equal(t, 554, cfg.ZaloPay.AppID)
	assert.True(t, cfg.ZaloPay.Enabled())
	assert.Equal(t, "https://abc.ngrok.app", cfg.ZaloPay.PublicURL)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, "root@petshop.local", cfg.AdminEmail)
	assert.Equal(t, "pets", cfg.S3.Bucket)
	assert.Equal(t, "gk-123", cfg.GoogleAPIKey)
}

func TestLoadEnv_BadAppID(t *testing.T) {
	t.Setenv("ZALOPAY_APP_ID", "not-a-number")

	cfg := &Config{}
	assert.Error(t, cfg.loadEnv())
}

func TestGetEnv(t *testing.T) {
	t.Setenv("PETSHOP_TEST_KEY", "")
	assert.Equal(t, "", getEnv("PETSHOP_TEST_KEY", "fallback"))
	assert.Equal(t, "fallback", getEnv("PETSHOP_TEST_MISSING", "fallback"))
}
