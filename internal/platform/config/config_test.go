package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnv_fallback(t *testing.T) {
	t.Setenv("PLAYER_TEST_EMPTY", "")
	assert.Equal(t, "dflt", GetEnv("PLAYER_TEST_EMPTY", "dflt"))

	t.Setenv("PLAYER_TEST_SET", "value")
	assert.Equal(t, "value", GetEnv("PLAYER_TEST_SET", "dflt"))
}

func TestGetEnv_typed(t *testing.T) {
	t.Setenv("PLAYER_TEST_INT", "16")
	t.Setenv("PLAYER_TEST_FLOAT", "0.25")
	t.Setenv("PLAYER_TEST_BOOL", "false")
	t.Setenv("PLAYER_TEST_DURATION", "250ms")

	assert.Equal(t, 16, GetEnvInt("PLAYER_TEST_INT", 1))
	assert.Equal(t, 0.25, GetEnvFloat("PLAYER_TEST_FLOAT", 0.1))
	assert.False(t, GetEnvBool("PLAYER_TEST_BOOL", true))
	assert.Equal(t, 250*time.Millisecond, GetEnvDuration("PLAYER_TEST_DURATION", time.Second))
}

func TestGetEnv_malformed_uses_fallback(t *testing.T) {
	t.Setenv("PLAYER_TEST_INT", "many")
	t.Setenv("PLAYER_TEST_FLOAT", "tenth")
	t.Setenv("PLAYER_TEST_BOOL", "perhaps")
	t.Setenv("PLAYER_TEST_DURATION", "soon")

	assert.Equal(t, 7, GetEnvInt("PLAYER_TEST_INT", 7))
	assert.Equal(t, 0.1, GetEnvFloat("PLAYER_TEST_FLOAT", 0.1))
	assert.True(t, GetEnvBool("PLAYER_TEST_BOOL", true))
	assert.Equal(t, 5*time.Second, GetEnvDuration("PLAYER_TEST_DURATION", 5*time.Second))
}

func TestLoad_dotenv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("PLAYER_TEST_FROM_FILE=loaded\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("PLAYER_TEST_FROM_FILE") })

	require.NoError(t, Load(path))
	assert.Equal(t, "loaded", GetEnv("PLAYER_TEST_FROM_FILE", ""))
}

func TestLoad_missing_file(t *testing.T) {
	assert.Error(t, Load(filepath.Join(t.TempDir(), "absent.env")))
}
