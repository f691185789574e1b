package core

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Match with errors.Is; the typed errors below carry detail
// and unwrap to these.
var (
	ErrInvalidCredentialsType      = errors.New("invalid credentials type")
	ErrClientInitializationFailed  = errors.New("client initialization failed")
	ErrNotConnected                = errors.New("adapter not connected")
	ErrQueryExecutionFailed        = errors.New("query execution failed")
	ErrSpecifiedDataSourceNotFound = errors.New("specified data source not found")
	ErrDataSourceNotFound          = errors.New("data source not found")
	ErrDuplicateDataSourceName     = errors.New("data source name already exists")
	ErrNoDefaultDataSource         = errors.New("no default data source configured")
	ErrEmptyFilterArray            = errors.New("empty filter array")
	ErrUnsupportedDataSourceType   = errors.New("unsupported data source type")
)

// InvalidCredentialsTypeError is returned by Initialize when the credentials
// belong to another engine.
type InvalidCredentialsTypeError struct {
	Expected DataSourceType
	Actual   DataSourceType
}

func (e *InvalidCredentialsTypeError) Error() string {
	return fmt.Sprintf("Invalid credentials type. Expected %s, got %s", e.Expected, e.Actual)
}

func (e *InvalidCredentialsTypeError) Unwrap() error { return ErrInvalidCredentialsType }

// CheckCredentials returns an InvalidCredentialsTypeError unless creds is of
// the expected engine type.
func CheckCredentials(expected DataSourceType, creds Credentials) error {
	if creds == nil {
		return &InvalidCredentialsTypeError{Expected: expected, Actual: "none"}
	}
	if creds.Type() != expected {
		return &InvalidCredentialsTypeError{Expected: expected, Actual: creds.Type()}
	}
	return nil
}

// ClientInitError wraps a native connect failure.
type ClientInitError struct {
	Engine DataSourceType
	Err    error
}

func (e *ClientInitError) Error() string {
	return fmt.Sprintf("failed to initialize %s client: %v", e.Engine, e.Err)
}

func (e *ClientInitError) Unwrap() []error { return []error{ErrClientInitializationFailed, e.Err} }

// NotConnected returns the error used when an adapter is used before
// Initialize or after Close.
func NotConnected(engine DataSourceType) error {
	return fmt.Errorf("%s: %w", engine, ErrNotConnected)
}

// QueryError wraps a native query failure, keeping the engine name and the
// driver's message.
type QueryError struct {
	Engine  DataSourceType
	Err     error
	Timeout bool
}

func (e *QueryError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s query timed out: %v", e.Engine, e.Err)
	}
	return fmt.Sprintf("%s query failed: %v", e.Engine, e.Err)
}

func (e *QueryError) Unwrap() []error { return []error{ErrQueryExecutionFailed, e.Err} }

// DataSourceNotFoundError reports an unknown warehouse name. Specified is true
// when the name came from the request rather than the configured default.
type DataSourceNotFoundError struct {
	Name      string
	Specified bool
}

func (e *DataSourceNotFoundError) Error() string {
	if e.Specified {
		return fmt.Sprintf("Specified data source '%s' not found", e.Name)
	}
	return fmt.Sprintf("Data source with name '%s' not found", e.Name)
}

func (e *DataSourceNotFoundError) Unwrap() error {
	if e.Specified {
		return ErrSpecifiedDataSourceNotFound
	}
	return ErrDataSourceNotFound
}

// DuplicateDataSourceError is returned when adding a name that is already registered.
type DuplicateDataSourceError struct {
	Name string
}

func (e *DuplicateDataSourceError) Error() string {
	return fmt.Sprintf("Data source with name '%s' already exists", e.Name)
}

func (e *DuplicateDataSourceError) Unwrap() error { return ErrDuplicateDataSourceName }

// EmptyFilterError rejects a present but empty introspection filter.
type EmptyFilterError struct {
	Filter string // "database", "schema" or "table"
}

func (e *EmptyFilterError) Error() string {
	label := e.Filter
	if label != "" {
		label = strings.ToUpper(label[:1]) + label[1:]
	}
	return fmt.Sprintf("%s filter array is empty. Please provide at least one %s name or remove the filter.", label, e.Filter)
}

func (e *EmptyFilterError) Unwrap() error { return ErrEmptyFilterArray }
