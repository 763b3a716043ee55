package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadTestConfig(t *testing.T) {
	assert := require.New(t)

	cfg, err := Load("test")
	assert.NoError(err)

	assert.Equal("8001", cfg.GetPort())
	assert.Equal("en", cfg.GetDefaultLanguage())
	assert.Equal(25, cfg.GetPageSize())
	assert.Equal(10, cfg.GetNumberOfFacets())
	assert.False(cfg.GetFacetOnManifests())
}

func TestEnvironmentOverrides(t *testing.T) {
	assert := require.New(t)

	t.Setenv("PORT", "9999")
	t.Setenv("PAGE_SIZE", "5")
	t.Setenv("FULLTEXT_SCRIPTS", "Latin,Greek")

	cfg, err := Load("test")
	assert.NoError(err)

	assert.Equal("9999", cfg.GetPort())
	assert.Equal(5, cfg.GetPageSize())
	assert.Equal([]string{"Latin", "Greek"}, cfg.GetFulltextScripts())
}

func TestDefaultsWithoutConfigFile(t *testing.T) {
	assert := require.New(t)

	cfg, err := Load("does-not-exist")
	assert.NoError(err)

	assert.Equal(10000, cfg.GetMaxCandidates())
	assert.InDelta(0.3, cfg.GetTrigramThreshold(), 1e-9)
	assert.InDelta(0.6, cfg.GetTrigramWordThreshold(), 1e-9)
	assert.Equal([]string{"Latin"}, cfg.GetFulltextScripts())
}
