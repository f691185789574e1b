package adapter

import (
	"testing"
	"time"

	"github.com/leapstack-labs/warehouse/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeCredentials(t *testing.T) {
	ssl := true

	tests := []struct {
		name     string
		raw      map[string]any
		expected core.Credentials
		errMsg   string
	}{
		{
			name: "postgres with duration string",
			raw: map[string]any{
				"type":               "postgres",
				"host":               "db.internal",
				"port":               5433,
				"default_database":   "app",
				"username":           "svc",
				"password":           "secret",
				"ssl":                true,
				"connection_timeout": "15s",
			},
			expected: core.PostgresCredentials{
				Host:              "db.internal",
				Port:              5433,
				DefaultDatabase:   "app",
				Username:          "svc",
				Password:          "secret",
				SSL:               &ssl,
				ConnectionTimeout: 15 * time.Second,
			},
		},
		{
			name: "port as string",
			raw: map[string]any{
				"type": "mysql",
				"host": "localhost",
				"port": "3307",
			},
			expected: core.MySQLCredentials{Host: "localhost", Port: 3307},
		},
		{
			name: "snowflake",
			raw: map[string]any{
				"type":         "snowflake",
				"account_id":   "acme-xy123",
				"warehouse_id": "COMPUTE_WH",
				"username":     "loader",
				"password":     "pw",
				"role":         "ANALYST",
			},
			expected: core.SnowflakeCredentials{
				AccountID:   "acme-xy123",
				WarehouseID: "COMPUTE_WH",
				Username:    "loader",
				Password:    "pw",
				Role:        "ANALYST",
			},
		},
		{
			name: "bigquery",
			raw: map[string]any{
				"type":            "bigquery",
				"project_id":      "my-project",
				"key_file_path":   "/secrets/sa.json",
				"default_dataset": "analytics",
			},
			expected: core.BigQueryCredentials{
				ProjectID:      "my-project",
				KeyFilePath:    "/secrets/sa.json",
				DefaultDataset: "analytics",
			},
		},
		{
			name:   "missing type",
			raw:    map[string]any{"host": "x"},
			errMsg: "credentials type not specified",
		},
		{
			name:   "unknown type",
			raw:    map[string]any{"type": "oracle"},
			errMsg: `unsupported data source type "oracle"`,
		},
		{
			name:   "unknown key",
			raw:    map[string]any{"type": "redshift", "hostname": "x"},
			errMsg: "invalid redshift credentials",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeCredentials(tt.raw)
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestCredentialsAs(t *testing.T) {
	got, err := CredentialsAs[core.MySQLCredentials](core.MySQLCredentials{Host: "h"})
	require.NoError(t, err)
	assert.Equal(t, "h", got.Host)

	_, err = CredentialsAs[core.MySQLCredentials](core.PostgresCredentials{})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInvalidCredentialsType)
	assert.Equal(t, "Invalid credentials type. Expected mysql, got postgres", err.Error())

	_, err = CredentialsAs[core.MySQLCredentials](&core.MySQLCredentials{})
	assert.ErrorIs(t, err, core.ErrInvalidCredentialsType)

	_, err = CredentialsAs[core.MySQLCredentials](nil)
	assert.ErrorIs(t, err, core.ErrInvalidCredentialsType)
}
