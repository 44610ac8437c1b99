package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Load_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	if cfg.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Port)
	}
	if cfg.SubmitBatchSize != 5 {
		t.Fatalf("expected default submit batch size 5, got %d", cfg.SubmitBatchSize)
	}
	if cfg.ProviderConfigured() {
		t.Fatalf("expected provider not configured with no env set")
	}
	if !cfg.IsDev() {
		t.Fatalf("expected IsDev true by default")
	}
}

func Test_Load_ProviderConfigured(t *testing.T) {
	t.Setenv("PROVIDER_BASE_URL", "https://provider.example.com")
	t.Setenv("PROVIDER_API_KEY", "secret-key")

	cfg, err := Load()
	require.NoError(t, err)
	if !cfg.ProviderConfigured() {
		t.Fatalf("expected provider configured when base URL and API key set")
	}
}

func Test_Load_AppEnvHelpers(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	cfg, err := Load()
	require.NoError(t, err)
	if !cfg.IsProd() {
		t.Fatalf("expected IsProd true")
	}
	if cfg.IsDev() || cfg.IsTest() {
		t.Fatalf("expected only IsProd true")
	}
}

func Test_Load_ErrorOnBadDuration(t *testing.T) {
	t.Setenv("HTTP_READ_TIMEOUT", "not-a-duration")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for bad duration")
	}
}
