package browserclient

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfig_ViewportDefaultsWhenUnset(t *testing.T) {
	var cfg Config
	require.Equal(t, 1920, cfg.viewportWidth())
	require.Equal(t, 1080, cfg.viewportHeight())
}

func TestConfig_ViewportHonorsExplicitValues(t *testing.T) {
	cfg := Config{ViewportWidth: 1280, ViewportHeight: 720}
	require.Equal(t, 1280, cfg.viewportWidth())
	require.Equal(t, 720, cfg.viewportHeight())
}

func TestDefaultConfig_IsHeadlessWithStandardViewport(t *testing.T) {
	cfg := DefaultConfig()
	require.True(t, cfg.Headless)
	require.Equal(t, 1920, cfg.viewportWidth())
	require.Equal(t, 1080, cfg.viewportHeight())
}
