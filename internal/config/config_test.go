package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("UW_ENVIRONMENT", "")
	t.Setenv("DOCUMENTS_POLL_DELAY", "")
	t.Setenv("S3_BUCKET", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "TEST", cfg.Underwriting.DefaultEnvironment)
	assert.Equal(t, 3, cfg.Documents.PollAttempts)
	assert.Equal(t, 2*time.Second, cfg.Documents.PollDelay)
	assert.Equal(t, cfg.Underwriting.Test.BaseURL+"/api/v1", cfg.Underwriting.Test.APIURL)
	assert.False(t, cfg.Storage.ArchiveEnabled())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("UW_ENVIRONMENT", "production")
	t.Setenv("UW_PROD_BASE_URL", "https://uw.example/")
	t.Setenv("UW_PROD_SELLER_NODE_CODE", "PL-001")
	t.Setenv("UW_SIGNATURE_VALIDITY", "5m")
	t.Setenv("DOCUMENTS_POLL_DELAY", "not-a-duration")
	t.Setenv("S3_BUCKET", "policies")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "PRODUCTION", cfg.Underwriting.DefaultEnvironment)
	assert.Equal(t, "https://uw.example", cfg.Underwriting.Production.BaseURL)
	assert.Equal(t, "https://uw.example/api/v1", cfg.Underwriting.Production.APIURL)
	assert.Equal(t, "PL-001", cfg.Underwriting.Production.SellerNodeCode)
	assert.Equal(t, 5*time.Minute, cfg.Underwriting.SignatureValidity)
	assert.Equal(t, 2*time.Second, cfg.Documents.PollDelay)
	assert.True(t, cfg.Storage.ArchiveEnabled())
}

func TestLoad_InvalidRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "x")

	_, err := Load()
	require.Error(t, err)
}
