package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "memory needs no database",
			cfg:  Config{Storage: Storage{Driver: StorageMemory}, Workers: Workers{VerificationWorkers: 1}},
		},
		{
			name:    "postgres without url",
			cfg:     Config{Storage: Storage{Driver: StoragePostgres}, Workers: Workers{VerificationWorkers: 1}},
			wantErr: true,
		},
		{
			name:    "unknown driver",
			cfg:     Config{Storage: Storage{Driver: "mongo"}, Workers: Workers{VerificationWorkers: 1}},
			wantErr: true,
		},
		{
			name:    "no workers",
			cfg:     Config{Storage: Storage{Driver: StorageMemory}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.validate()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", StorageMemory)
	t.Setenv("HTTP_PORT", "9999")
	t.Setenv("SMS_TOKEN", "forwarder-secret")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "9999", cfg.HTTP.Port)
	require.Equal(t, StorageMemory, cfg.Storage.Driver)
	require.Equal(t, "forwarder-secret", cfg.SMS.Token)
}
