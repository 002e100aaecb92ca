package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gigline/internal/config"
)

func TestDefaultTemplateParses(t *testing.T) {
	cfg := config.Default("acme-gigs")
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "acme-gigs", cfg.Marketplace.Name)
	assert.NotEmpty(t, cfg.Categories.Catalog)
	assert.True(t, cfg.CategoryAllowed("Design"))
}

func TestValidate(t *testing.T) {
	t.Run("missing marketplace name", func(t *testing.T) {
		var cfg config.Config
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "marketplace.name")
	})
	t.Run("bad create status", func(t *testing.T) {
		cfg := config.Default("m")
		cfg.Defaults.CreateStatus = "in_progress"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "create_status")
	})
	t.Run("open create status allowed", func(t *testing.T) {
		cfg := config.Default("m")
		cfg.Defaults.CreateStatus = "open"
		assert.NoError(t, cfg.Validate())
	})
	t.Run("webhook without url", func(t *testing.T) {
		cfg := config.Default("m")
		cfg.Webhooks = append(cfg.Webhooks, config.WebhookConfig{Secret: "s"})
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "webhooks[0].url")
	})
}

func TestCategoryAllowed(t *testing.T) {
	cfg := config.Default("m")
	assert.True(t, cfg.CategoryAllowed(""), "empty category is fine")
	assert.True(t, cfg.CategoryAllowed("Writing"))
	assert.False(t, cfg.CategoryAllowed("Astrology"))

	var open config.Config
	assert.True(t, open.CategoryAllowed("anything"), "empty catalog allows any category")
}

func TestFromYAMLRejectsGarbage(t *testing.T) {
	_, err := config.FromYAML([]byte("marketplace: [not a map"))
	require.Error(t, err)
}
