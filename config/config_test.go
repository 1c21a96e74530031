package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestConfig returns a valid Config for testing
func newTestConfig() Config {
	return *Default()
}

func TestLoadConfig_Defaults(t *testing.T) {
	config, used, err := LoadConfig("")
	require.NoError(t, err)
	require.NotNil(t, config)
	assert.Empty(t, used)

	assert.Equal(t, "ctb", config.App.Name)
	assert.Equal(t, 5000, config.API.Port)
	assert.Equal(t, []string{"http://localhost:3000", "https://ctb-agh.netlify.app"}, config.API.AllowedOrigins)
	assert.Equal(t, 15*time.Second, config.API.ReadTimeout)
	assert.Equal(t, int64(1<<20), config.API.BodyLimit)
	assert.True(t, config.API.TrustProxy)
	assert.Equal(t, DefaultTrustedProxies, config.API.TrustedProxies)
	assert.False(t, config.API.SwaggerEnabled)
	assert.Equal(t, "./data/ctb.db", config.Database.SQLitePath)
	assert.False(t, config.Redis.Enabled)
	assert.Equal(t, 24*time.Hour, config.Auth.JWTExpiry)
	assert.True(t, config.Metrics.Enabled)
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
app:
  name: ctb-test
api:
  port: 8088
  allowed_origins:
    - https://example.com
  read_timeout: 5s
redis:
  enabled: true
  addr: 10.0.0.1:6379
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	config, used, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, path, used)
	assert.Equal(t, "ctb-test", config.App.Name)
	assert.Equal(t, 8088, config.API.Port)
	assert.Equal(t, []string{"https://example.com"}, config.API.AllowedOrigins)
	assert.Equal(t, 5*time.Second, config.API.ReadTimeout)
	assert.True(t, config.Redis.Enabled)
	assert.Equal(t, "10.0.0.1:6379", config.Redis.Addr)
	// untouched keys keep their defaults
	assert.Equal(t, 30*time.Second, config.API.WriteTimeout)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("CTB_API_PORT", "9090")
	t.Setenv("CTB_LOG_LEVEL", "debug")

	config, _, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 9090, config.API.Port)
	assert.Equal(t, "debug", config.Log.Level)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	_, _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadConfig_InvalidFileRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api:\n  port: 70000\n"), 0o644))

	_, _, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid API port")
}

func TestAPIConfigAddr(t *testing.T) {
	c := newTestConfig()
	c.API.Host = "127.0.0.1"
	c.API.Port = 8080
	assert.Equal(t, "127.0.0.1:8080", c.API.Addr())
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:    "valid defaults",
			config:  newTestConfig(),
			wantErr: false,
		},
		{
			name: "empty app name",
			config: func() Config {
				c := newTestConfig()
				c.App.Name = " "
				return c
			}(),
			wantErr: true,
		},
		{
			name: "invalid port",
			config: func() Config {
				c := newTestConfig()
				c.API.Port = 0
				return c
			}(),
			wantErr: true,
		},
		{
			name: "no allowed origins",
			config: func() Config {
				c := newTestConfig()
				c.API.AllowedOrigins = nil
				return c
			}(),
			wantErr: true,
		},
		{
			name: "wildcard origin",
			config: func() Config {
				c := newTestConfig()
				c.API.AllowedOrigins = []string{"*"}
				return c
			}(),
			wantErr: true,
		},
		{
			name: "subdomain wildcard origin",
			config: func() Config {
				c := newTestConfig()
				c.API.AllowedOrigins = []string{"https://*.netlify.app"}
				return c
			}(),
			wantErr: true,
		},
		{
			name: "origin with path",
			config: func() Config {
				c := newTestConfig()
				c.API.AllowedOrigins = []string{"https://ctb-agh.netlify.app/app"}
				return c
			}(),
			wantErr: true,
		},
		{
			name: "origin without scheme",
			config: func() Config {
				c := newTestConfig()
				c.API.AllowedOrigins = []string{"localhost:3000"}
				return c
			}(),
			wantErr: true,
		},
		{
			name: "trusted proxy CIDR and single IP",
			config: func() Config {
				c := newTestConfig()
				c.API.TrustedProxies = []string{"10.1.0.0/16", "203.0.113.4"}
				return c
			}(),
			wantErr: false,
		},
		{
			name: "malformed trusted proxy",
			config: func() Config {
				c := newTestConfig()
				c.API.TrustedProxies = []string{"10.1.0.0/33"}
				return c
			}(),
			wantErr: true,
		},
		{
			name: "trusted proxy hostname",
			config: func() Config {
				c := newTestConfig()
				c.API.TrustedProxies = []string{"proxy.internal"}
				return c
			}(),
			wantErr: true,
		},
		{
			name: "non-positive body limit",
			config: func() Config {
				c := newTestConfig()
				c.API.BodyLimit = 0
				return c
			}(),
			wantErr: true,
		},
		{
			name: "rate limit without burst",
			config: func() Config {
				c := newTestConfig()
				c.API.RateLimit.RequestsPerSecond = 10
				c.API.RateLimit.Burst = 0
				return c
			}(),
			wantErr: true,
		},
		{
			name: "rate limit disabled ignores burst",
			config: func() Config {
				c := newTestConfig()
				c.API.RateLimit.RequestsPerSecond = 0
				c.API.RateLimit.Burst = 0
				return c
			}(),
			wantErr: false,
		},
		{
			name: "empty sqlite path",
			config: func() Config {
				c := newTestConfig()
				c.Database.SQLitePath = ""
				return c
			}(),
			wantErr: true,
		},
		{
			name: "redis enabled without address",
			config: func() Config {
				c := newTestConfig()
				c.Redis.Enabled = true
				c.Redis.Addr = ""
				return c
			}(),
			wantErr: true,
		},
		{
			name: "short jwt secret",
			config: func() Config {
				c := newTestConfig()
				c.Auth.JWTSecret = "too-short"
				return c
			}(),
			wantErr: true,
		},
		{
			name: "unknown log format",
			config: func() Config {
				c := newTestConfig()
				c.Log.Format = "xml"
				return c
			}(),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateConfig(&tt.config)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
