package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecretsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	secrets := map[string]string{
		SecretDevinAPIKey:        "devin-key-123",
		SecretGitHubClientSecret: "gh-secret",
	}

	require.NoError(t, SaveSecrets(dir, "correct horse", secrets))
	require.NoError(t, LoadSecrets(dir, "correct horse"))

	assert.Equal(t, "devin-key-123", GetSecret(SecretDevinAPIKey))
	assert.Equal(t, "gh-secret", GetSecret(SecretGitHubClientSecret))
}

func TestSecretsWrongPassphrase(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, SaveSecrets(dir, "right", map[string]string{"K": "v"}))

	err := LoadSecrets(dir, "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wrong passphrase")
}

func TestSecretsMissingFileFallsThroughToEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, LoadSecrets(dir, "anything"))

	t.Setenv("AIFOUNDRY_TEST_SECRET", "from-env")
	assert.Equal(t, "from-env", GetSecret("AIFOUNDRY_TEST_SECRET"))
	assert.Empty(t, GetSecret("AIFOUNDRY_TEST_ABSENT"))
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AZURE_OPENAI_ENDPOINT", "https://example.openai.azure.com")
	t.Setenv("MODEL_NAME", "gpt-5-mini")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "https://example.openai.azure.com", cfg.AzureOpenAI.Endpoint)
	assert.Equal(t, "gpt-5-mini", cfg.AzureOpenAI.Model)
	assert.Equal(t, 8000, cfg.Server.Port)
}
