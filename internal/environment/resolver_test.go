package environment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/gap-pos/internal/config"
	"github.com/spec-kit/gap-pos/internal/domain"
)

func testConfig(allowOverride bool) config.UnderwritingConfig {
	return config.UnderwritingConfig{
		DefaultEnvironment: "TEST",
		AllowOverride:      allowOverride,
		Test:               config.EnvironmentEndpoints{BaseURL: "https://test.example/", APIURL: "https://test.example/api/", SellerNodeCode: "T-1"},
		Production:         config.EnvironmentEndpoints{BaseURL: "https://prod.example", APIURL: "https://prod.example/api", SellerNodeCode: "P-1"},
	}
}

func TestResolver_DefaultAndOverride(t *testing.T) {
	r, err := NewResolver(testConfig(true))
	require.NoError(t, err)

	target, err := r.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, domain.EnvironmentTest, target.Environment)
	assert.Equal(t, "https://test.example", target.BaseURL)
	assert.Equal(t, "https://test.example/api", target.APIURL)
	assert.Equal(t, "Test", target.Label)

	target, err = r.Resolve("prod")
	require.NoError(t, err)
	assert.Equal(t, domain.EnvironmentProduction, target.Environment)
	assert.Equal(t, "P-1", target.SellerNodeCode)

	_, err = r.Resolve("staging")
	require.Error(t, err)
}

func TestResolver_OverrideDisabled(t *testing.T) {
	r, err := NewResolver(testConfig(false))
	require.NoError(t, err)

	env, err := r.Select("PRODUCTION")
	require.NoError(t, err)
	assert.Equal(t, domain.EnvironmentTest, env)
}

func TestResolver_SetActive(t *testing.T) {
	r, err := NewResolver(testConfig(true))
	require.NoError(t, err)

	require.NoError(t, r.SetActive(domain.EnvironmentProduction))
	assert.Equal(t, domain.EnvironmentProduction, r.Active())
	require.Error(t, r.SetActive("STAGING"))
	assert.Equal(t, domain.EnvironmentProduction, r.Active())
}

func TestNewResolver_RejectsUnknownDefault(t *testing.T) {
	cfg := testConfig(true)
	cfg.DefaultEnvironment = "DEV"
	_, err := NewResolver(cfg)
	require.Error(t, err)
}
