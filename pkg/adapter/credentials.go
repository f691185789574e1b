package adapter

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
	"github.com/leapstack-labs/warehouse/pkg/core"
)

// DecodeCredentials builds the credential variant selected by raw["type"].
// Durations accept Go duration strings ("30s") or integer nanoseconds.
// Unknown keys are rejected so typos in config files surface early.
func DecodeCredentials(raw map[string]any) (core.Credentials, error) {
	tag, _ := raw["type"].(string)
	if tag == "" {
		return nil, fmt.Errorf("credentials type not specified")
	}

	fields := make(map[string]any, len(raw))
	for k, v := range raw {
		if k != "type" {
			fields[k] = v
		}
	}

	switch t := core.DataSourceType(tag); t {
	case core.TypePostgres:
		return decodeInto[core.PostgresCredentials](fields)
	case core.TypeMySQL:
		return decodeInto[core.MySQLCredentials](fields)
	case core.TypeSQLServer:
		return decodeInto[core.SQLServerCredentials](fields)
	case core.TypeRedshift:
		return decodeInto[core.RedshiftCredentials](fields)
	case core.TypeSnowflake:
		return decodeInto[core.SnowflakeCredentials](fields)
	case core.TypeBigQuery:
		return decodeInto[core.BigQueryCredentials](fields)
	default:
		return nil, &UnsupportedTypeError{Type: t, Available: SupportedTypes()}
	}
}

func decodeInto[T core.Credentials](fields map[string]any) (core.Credentials, error) {
	var out T
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           &out,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create credentials decoder: %w", err)
	}
	if err := dec.Decode(fields); err != nil {
		return nil, fmt.Errorf("invalid %s credentials: %w", out.Type(), err)
	}
	return out, nil
}

// CredentialsAs extracts the concrete credential variant T from creds.
// Credentials of another engine yield *core.InvalidCredentialsTypeError.
func CredentialsAs[T core.Credentials](creds core.Credentials) (T, error) {
	if c, ok := creds.(T); ok {
		return c, nil
	}
	var zero T
	if err := core.CheckCredentials(zero.Type(), creds); err != nil {
		return zero, err
	}
	return zero, fmt.Errorf("%w: %s credentials must be passed by value, got %T",
		core.ErrInvalidCredentialsType, zero.Type(), creds)
}
