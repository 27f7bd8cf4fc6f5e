package cmd

import (
	"bufio"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonhe/nocwatch/internal/config"
	"github.com/tonhe/nocwatch/internal/engine"
	"github.com/tonhe/nocwatch/internal/vault"
)

func TestStarterConfigRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, config.SaveConfig(starterConfig(), path))

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Len(t, cfg.Devices, 1)
	assert.Equal(t, "core-1", cfg.Devices[0].Name)
	assert.Equal(t, "public", cfg.Devices[0].Community)
	assert.Equal(t, []string{"lo", "Null0"}, cfg.Devices[0].IgnoredInterfaces)
	assert.False(t, needsVault(cfg.Devices))
}

func TestNeedsVault(t *testing.T) {
	assert.False(t, needsVault(nil))
	assert.True(t, needsVault([]engine.Device{
		{Name: "a", Community: "public"},
		{Name: "b", Identity: "core-ro"},
	}))
}

func TestIsSubcommand(t *testing.T) {
	for _, name := range []string{"run", "watch", "discover", "identity", "config", "themes", "version", "help"} {
		assert.True(t, IsSubcommand(name), name)
	}
	assert.False(t, IsSubcommand("-config"))
	assert.False(t, IsSubcommand("dashboard"))
}

func TestFormatSpeed(t *testing.T) {
	assert.Equal(t, "100 Mbps", formatSpeed(100))
	assert.Equal(t, "10 Gbps", formatSpeed(10000))
	assert.Equal(t, "2.5 Gbps", formatSpeed(2500))
	assert.Equal(t, "1 Tbps", formatSpeed(1000000))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "GigabitE...", truncate("GigabitEthernet0/0/1", 11))
	assert.Equal(t, "Gi", truncate("GigabitEthernet0/0/1", 2))
}

func TestPromptCredentialCommunity(t *testing.T) {
	in := bufio.NewReader(strings.NewReader("lab\n2c\npublic\n"))
	cred, err := promptCredential(in, io.Discard, nil)
	require.NoError(t, err)
	assert.Equal(t, "lab", cred.Name)
	assert.Equal(t, "public", cred.Community)
}

func TestPromptCredentialV3(t *testing.T) {
	in := bufio.NewReader(strings.NewReader("core-ro\n3\nnoc\nsha256\naes128\n"))
	var asked []string
	secret := func(prompt string) ([]byte, error) {
		asked = append(asked, prompt)
		return []byte("s3cret-" + prompt[:4]), nil
	}

	cred, err := promptCredential(in, io.Discard, secret)
	require.NoError(t, err)
	assert.Equal(t, "noc", cred.Username)
	assert.Equal(t, "SHA256", cred.AuthProto)
	assert.Equal(t, "AES128", cred.PrivProto)
	assert.Equal(t, "s3cret-Auth", cred.AuthPass)
	assert.Equal(t, "s3cret-Priv", cred.PrivPass)
	assert.Len(t, asked, 2)
}

func TestPromptCredentialRejectsMissingFields(t *testing.T) {
	in := bufio.NewReader(strings.NewReader("lab\n2c\n\n"))
	_, err := promptCredential(in, io.Discard, nil)
	assert.ErrorIs(t, err, vault.ErrInvalid)

	in = bufio.NewReader(strings.NewReader("lab\n4\n"))
	_, err = promptCredential(in, io.Discard, nil)
	assert.ErrorIs(t, err, vault.ErrInvalid)
}
