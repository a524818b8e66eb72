package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/groupsmigration/v1"
)

func TestOAuth2Config(t *testing.T) {
	cfg := GoogleConfig{ClientSecretFile: "testdata/client_secret.json"}

	conf, err := cfg.OAuth2Config()
	require.NoError(t, err)
	assert.Equal(t, "1234-test.apps.googleusercontent.com", conf.ClientID)
	assert.Equal(t, "test-secret", conf.ClientSecret)
	assert.Equal(t, []string{groupsmigration.AppsGroupsMigrationScope}, conf.Scopes)

	cfg.ClientSecretFile = "testdata/missing.json"
	_, err = cfg.OAuth2Config()
	assert.Error(t, err)
}

func TestTokenSourceFromStore(t *testing.T) {
	cfg := GoogleConfig{
		ClientSecretFile: "testdata/client_secret.json",
		CredentialStore:  "testdata/token.json",
	}

	ts, err := cfg.TokenSource(context.Background(), false)
	require.NoError(t, err)

	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "stored-access-token", tok.AccessToken)
	assert.Equal(t, "stored-refresh-token", tok.RefreshToken)
}

func TestTokenSourceMissing(t *testing.T) {
	cfg := GoogleConfig{
		ClientSecretFile: "testdata/client_secret.json",
		CredentialStore:  filepath.Join(t.TempDir(), "none.json"),
	}

	_, err := cfg.TokenSource(context.Background(), false)
	assert.ErrorIs(t, err, errNoToken)
}

func TestSavingTokenSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")

	ts := &savingTokenSource{
		base: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "fresh", RefreshToken: "refresh"}),
		path: path,
		last: "stale",
	}

	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "fresh", tok.AccessToken)

	saved, err := tokenFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "fresh", saved.AccessToken)
	assert.Equal(t, "refresh", saved.RefreshToken)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	p, err := expandHome("~/.google/imap2group.json")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".google", "imap2group.json"), p)

	p, err = expandHome("relative/token.json")
	require.NoError(t, err)
	assert.Equal(t, "relative/token.json", p)
}
