package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/leapstack-labs/warehouse/pkg/adapter"
	"github.com/leapstack-labs/warehouse/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newMockAdapter returns a connected adapter backed by sqlmock.
func newMockAdapter(t *testing.T) (*Adapter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	adp := New(nil)
	adp.SetDB(db)
	t.Cleanup(func() { _ = adp.Close() })
	return adp, mock
}

func TestBuildPostgresDSN(t *testing.T) {
	yes, no := true, false

	tests := []struct {
		name     string
		creds    core.PostgresCredentials
		expected string
	}{
		{
			name: "basic connection",
			creds: core.PostgresCredentials{
				Host:            "localhost",
				Port:            5432,
				DefaultDatabase: "testdb",
				Username:        "user",
				Password:        "pass",
			},
			expected: "host=localhost port=5432 dbname=testdb sslmode=prefer connect_timeout=60 user=user password=pass",
		},
		{
			name: "ssl enabled",
			creds: core.PostgresCredentials{
				Host:            "prod.example.com",
				DefaultDatabase: "proddb",
				Username:        "admin",
				SSL:             &yes,
			},
			expected: "host=prod.example.com port=5432 dbname=proddb sslmode=require connect_timeout=60 user=admin",
		},
		{
			name:     "ssl disabled",
			creds:    core.PostgresCredentials{DefaultDatabase: "mydb", SSL: &no},
			expected: "host=localhost port=5432 dbname=mydb sslmode=disable connect_timeout=60",
		},
		{
			name:     "explicit ssl mode wins",
			creds:    core.PostgresCredentials{DefaultDatabase: "mydb", SSL: &no, SSLMode: "verify-full"},
			expected: "host=localhost port=5432 dbname=mydb sslmode=verify-full connect_timeout=60",
		},
		{
			name: "schema and timeout",
			creds: core.PostgresCredentials{
				Host:              "db.example.com",
				Port:              5433,
				DefaultDatabase:   "analytics",
				DefaultSchema:     "custom_schema",
				ConnectionTimeout: 10 * time.Second,
			},
			expected: "host=db.example.com port=5433 dbname=analytics sslmode=prefer connect_timeout=10 search_path=custom_schema",
		},
		{
			name:     "quoted password",
			creds:    core.PostgresCredentials{DefaultDatabase: "db", Password: `it's a secret`},
			expected: `host=localhost port=5432 dbname=db sslmode=prefer connect_timeout=60 password='it\'s a secret'`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, buildPostgresDSN(tt.creds))
		})
	}
}

func TestNew(t *testing.T) {
	adp := New(nil)

	assert.NotNil(t, adp, "New() should return non-nil adapter")
	assert.False(t, adp.IsConnected(), "should not be connected initially")
	assert.Equal(t, core.TypePostgres, adp.DataSourceType())

	var _ core.Adapter = adp
}

func TestAdapter_Initialize(t *testing.T) {
	t.Run("invalid credentials type", func(t *testing.T) {
		err := New(nil).Initialize(context.Background(), core.MySQLCredentials{Host: "localhost"})
		require.Error(t, err)
		assert.ErrorIs(t, err, core.ErrInvalidCredentialsType)
		assert.Equal(t, "Invalid credentials type. Expected postgres, got mysql", err.Error())
	})

	t.Run("database required", func(t *testing.T) {
		err := New(nil).Initialize(context.Background(), core.PostgresCredentials{Host: "localhost"})
		assert.ErrorIs(t, err, core.ErrClientInitializationFailed)
		assert.Contains(t, err.Error(), "database name is required")
	})

	t.Run("connects with built dsn", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		mock.ExpectPing()

		var gotDriver, gotDSN string
		adp := New(nil)
		adp.open = func(driver, dsn string) (*sql.DB, error) {
			gotDriver, gotDSN = driver, dsn
			return db, nil
		}

		err = adp.Initialize(context.Background(), core.PostgresCredentials{DefaultDatabase: "testdb", Username: "u"})
		require.NoError(t, err)
		assert.True(t, adp.IsConnected())
		assert.Equal(t, "pgx", gotDriver)
		assert.Contains(t, gotDSN, "dbname=testdb")
		assert.NoError(t, mock.ExpectationsWereMet())
		assert.NoError(t, adp.Close())
	})

	t.Run("connection failure", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		mock.ExpectPing().WillReturnError(errors.New("Connection failed"))

		adp := New(nil)
		adp.open = func(string, string) (*sql.DB, error) { return db, nil }

		err = adp.Initialize(context.Background(), core.PostgresCredentials{DefaultDatabase: "testdb"})
		require.Error(t, err)
		assert.ErrorIs(t, err, core.ErrClientInitializationFailed)
		assert.Contains(t, err.Error(), "Connection failed")
		assert.False(t, adp.IsConnected())
	})
}

func TestAdapter_NotConnected(t *testing.T) {
	tests := []struct {
		name      string
		operation func(ctx context.Context, adp *Adapter) error
	}{
		{
			name: "query without connect",
			operation: func(ctx context.Context, adp *Adapter) error {
				_, err := adp.Query(ctx, "SELECT 1", nil, 0, 0)
				return err
			},
		},
		{
			name: "introspect without connect",
			operation: func(_ context.Context, adp *Adapter) error {
				_, err := adp.Introspect()
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.operation(context.Background(), New(nil))
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrNotConnected)
		})
	}

	assert.False(t, New(nil).TestConnection(context.Background()))
}

func TestAdapter_Query(t *testing.T) {
	t.Run("default statement timeout and params", func(t *testing.T) {
		adp, mock := newMockAdapter(t)
		mock.ExpectExec("SET statement_timeout = 60000").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM users WHERE id = $1 AND name = $2")).
			WithArgs(42, "test").
			WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(42), "test"))

		result, err := adp.Query(context.Background(), "SELECT * FROM users WHERE id = $1 AND name = $2", []any{42, "test"}, 0, 0)
		require.NoError(t, err)
		assert.Equal(t, []map[string]any{{"id": int64(42), "name": "test"}}, result.Rows)
		assert.Equal(t, 1, result.RowCount)
		assert.False(t, result.HasMoreRows)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("custom timeout", func(t *testing.T) {
		adp, mock := newMockAdapter(t)
		mock.ExpectExec("SET statement_timeout = 5000").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"x"}).AddRow(1))

		_, err := adp.Query(context.Background(), "SELECT 1", nil, 0, 5*time.Second)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	tests := []struct {
		name        string
		rows        int
		maxRows     int
		wantCount   int
		wantHasMore bool
	}{
		{"fewer than max", 3, 5, 3, false},
		{"exactly max", 5, 5, 5, false},
		{"more than max", 8, 5, 5, true},
		{"unlimited", 8, 0, 8, false},
	}

	for _, tt := range tests {
		t.Run("limit/"+tt.name, func(t *testing.T) {
			adp, mock := newMockAdapter(t)
			rows := sqlmock.NewRows([]string{"n"})
			for i := range tt.rows {
				rows.AddRow(i)
			}
			mock.ExpectExec("SET statement_timeout").WillReturnResult(sqlmock.NewResult(0, 0))
			mock.ExpectQuery("SELECT n FROM numbers").WillReturnRows(rows)

			result, err := adp.Query(context.Background(), "SELECT n FROM numbers", nil, tt.maxRows, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCount, result.RowCount)
			assert.Len(t, result.Rows, tt.wantCount)
			assert.Equal(t, tt.wantHasMore, result.HasMoreRows)
		})
	}

	t.Run("empty result", func(t *testing.T) {
		adp, mock := newMockAdapter(t)
		mock.ExpectExec("SET statement_timeout").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"id"}))

		result, err := adp.Query(context.Background(), "SELECT id FROM empty", nil, 10, 0)
		require.NoError(t, err)
		assert.NotNil(t, result.Rows)
		assert.Empty(t, result.Rows)
		assert.Equal(t, 0, result.RowCount)
		assert.False(t, result.HasMoreRows)
		require.Len(t, result.Fields, 1)
		assert.Equal(t, "id", result.Fields[0].Name)
	})

	t.Run("query error", func(t *testing.T) {
		adp, mock := newMockAdapter(t)
		mock.ExpectExec("SET statement_timeout").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT").WillReturnError(errors.New("Query failed"))

		_, err := adp.Query(context.Background(), "SELECT * FROM nope", nil, 0, 0)
		require.Error(t, err)
		assert.ErrorIs(t, err, core.ErrQueryExecutionFailed)
		assert.Equal(t, "postgres query failed: Query failed", err.Error())
	})

	t.Run("statement timeout", func(t *testing.T) {
		adp, mock := newMockAdapter(t)
		mock.ExpectExec("SET statement_timeout").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT pg_sleep").WillReturnError(&pgconn.PgError{
			Code:    "57014",
			Message: "canceling statement due to statement timeout",
		})

		_, err := adp.Query(context.Background(), "SELECT pg_sleep(10)", nil, 0, time.Second)
		var qe *core.QueryError
		require.ErrorAs(t, err, &qe)
		assert.True(t, qe.Timeout)
		assert.Contains(t, err.Error(), "postgres query timed out")
	})
}

func TestAdapter_TestConnection(t *testing.T) {
	adp, mock := newMockAdapter(t)
	mock.ExpectQuery(regexp.QuoteMeta(adapter.TestQuery)).
		WillReturnRows(sqlmock.NewRows([]string{"test"}).AddRow(1))

	assert.True(t, adp.TestConnection(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_Registry(t *testing.T) {
	assert.True(t, adapter.IsSupported(core.TypePostgres), "postgres adapter should be registered")

	factory, ok := adapter.Default.Get(core.TypePostgres)
	require.True(t, ok, "should be able to get postgres factory")

	pg, ok := factory(nil).(*Adapter)
	assert.True(t, ok, "factory should return *Adapter")
	assert.Equal(t, core.TypePostgres, pg.DataSourceType())
}

func TestAdapter_Close(t *testing.T) {
	// Close should not error even without connection
	adp := New(nil)
	assert.NoError(t, adp.Close())

	connected, _ := newMockAdapter(t)
	assert.NoError(t, connected.Close())
	assert.NoError(t, connected.Close(), "second close is a no-op")
	assert.False(t, connected.IsConnected())
}
