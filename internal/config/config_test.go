package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"GRPC_PORT", "ENVIRONMENT", "DATA_DIR", "STRICT_REFERENCES", "LOG_LEVEL", "JWT_SECRET", "JWT_ACCESS_SECRET", "JWT_REFRESH_SECRET"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "50051", cfg.Server.GRPCPort)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, "./data", cfg.Storage.DataDir)
	assert.True(t, cfg.Storage.StrictReferences)
	assert.True(t, cfg.Storage.StrictTransitions)
	assert.Equal(t, 15*time.Minute, cfg.JWT.AccessTokenDuration)
	assert.Equal(t, 6, cfg.Security.MinPasswordLength)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("DATA_DIR", "/var/lib/taskdesk")
	t.Setenv("STRICT_TRANSITIONS", "false")
	t.Setenv("JWT_ACCESS_TOKEN_DURATION", "1h")
	t.Setenv("BCRYPT_COST", "12")
	t.Setenv("LOG_JSON", "true")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/taskdesk", cfg.Storage.DataDir)
	assert.False(t, cfg.Storage.StrictTransitions)
	assert.Equal(t, time.Hour, cfg.JWT.AccessTokenDuration)
	assert.Equal(t, 12, cfg.Security.BcryptCost)
	assert.True(t, cfg.Log.JSON)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{name: "production with dev secrets", env: map[string]string{"ENVIRONMENT": "production"}, wantErr: "JWT secrets"},
		{name: "production with secrets", env: map[string]string{"ENVIRONMENT": "production", "JWT_SECRET": "s3cr3t"}},
		{name: "bad bcrypt cost", env: map[string]string{"BCRYPT_COST": "2"}, wantErr: "BCRYPT_COST"},
		{name: "bad log level", env: map[string]string{"LOG_LEVEL": "loud"}, wantErr: "LOG_LEVEL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range []string{"ENVIRONMENT", "JWT_SECRET", "JWT_ACCESS_SECRET", "JWT_REFRESH_SECRET", "BCRYPT_COST", "LOG_LEVEL"} {
				t.Setenv(key, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
