package core

import "time"

// DataSourceType is the tag that selects a warehouse engine.
type DataSourceType string

// Supported engines.
const (
	TypePostgres  DataSourceType = "postgres"
	TypeMySQL     DataSourceType = "mysql"
	TypeSQLServer DataSourceType = "sqlserver"
	TypeRedshift  DataSourceType = "redshift"
	TypeSnowflake DataSourceType = "snowflake"
	TypeBigQuery  DataSourceType = "bigquery"
)

func (t DataSourceType) String() string { return string(t) }

// Credentials is the tagged union of engine connection parameters.
// The set of variants is closed: only the types in this file implement it.
type Credentials interface {
	Type() DataSourceType
	isCredentials()
}

// PostgresCredentials connects to a PostgreSQL server.
type PostgresCredentials struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	DefaultDatabase   string        `mapstructure:"default_database"`
	Username          string        `mapstructure:"username"`
	Password          string        `mapstructure:"password"`
	DefaultSchema     string        `mapstructure:"default_schema"`
	SSL               *bool         `mapstructure:"ssl"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	ConnectionTimeout time.Duration `mapstructure:"connection_timeout"`
}

// MySQLCredentials connects to a MySQL server.
type MySQLCredentials struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	DefaultDatabase   string        `mapstructure:"default_database"`
	Username          string        `mapstructure:"username"`
	Password          string        `mapstructure:"password"`
	SSL               *bool         `mapstructure:"ssl"`
	ConnectionTimeout time.Duration `mapstructure:"connection_timeout"`
}

// SQLServerCredentials connects to a Microsoft SQL Server instance.
type SQLServerCredentials struct {
	Server                 string        `mapstructure:"server"`
	Port                   int           `mapstructure:"port"`
	DefaultDatabase        string        `mapstructure:"default_database"`
	Username               string        `mapstructure:"username"`
	Password               string        `mapstructure:"password"`
	DefaultSchema          string        `mapstructure:"default_schema"`
	Encrypt                *bool         `mapstructure:"encrypt"`
	TrustServerCertificate *bool         `mapstructure:"trust_server_certificate"`
	ConnectionTimeout      time.Duration `mapstructure:"connection_timeout"`
	RequestTimeout         time.Duration `mapstructure:"request_timeout"`
}

// RedshiftCredentials connects to an Amazon Redshift cluster.
type RedshiftCredentials struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	DefaultDatabase   string        `mapstructure:"default_database"`
	Username          string        `mapstructure:"username"`
	Password          string        `mapstructure:"password"`
	DefaultSchema     string        `mapstructure:"default_schema"`
	SSL               *bool         `mapstructure:"ssl"`
	ClusterIdentifier string        `mapstructure:"cluster_identifier"`
	ConnectionTimeout time.Duration `mapstructure:"connection_timeout"`
}

// SnowflakeCredentials connects to a Snowflake account.
type SnowflakeCredentials struct {
	AccountID         string        `mapstructure:"account_id"`
	WarehouseID       string        `mapstructure:"warehouse_id"`
	DefaultDatabase   string        `mapstructure:"default_database"`
	DefaultSchema     string        `mapstructure:"default_schema"`
	Username          string        `mapstructure:"username"`
	Password          string        `mapstructure:"password"`
	Role              string        `mapstructure:"role"`
	Authenticator     string        `mapstructure:"authenticator"`
	ConnectionTimeout time.Duration `mapstructure:"connection_timeout"`
}

// BigQueryCredentials connects to a Google BigQuery project.
//
// ServiceAccountKey holds the key JSON inline; KeyFilePath points at a key
// file instead. With neither set, application default credentials are used.
type BigQueryCredentials struct {
	ProjectID         string `mapstructure:"project_id"`
	ServiceAccountKey string `mapstructure:"service_account_key"`
	KeyFilePath       string `mapstructure:"key_file_path"`
	Location          string `mapstructure:"location"`
	DefaultDataset    string `mapstructure:"default_dataset"`
}

func (PostgresCredentials) Type() DataSourceType { return TypePostgres }
func (MySQLCredentials) Type() DataSourceType { return TypeMySQL }
func (SQLServerCredentials) Type() DataSourceType { return TypeSQLServer }
func (RedshiftCredentials) Type() DataSourceType { return TypeRedshift }
func (SnowflakeCredentials) Type() DataSourceType { return TypeSnowflake }
func (BigQueryCredentials) Type() DataSourceType { return TypeBigQuery }

func (PostgresCredentials) isCredentials() {}
func (MySQLCredentials) isCredentials() {}
func (SQLServerCredentials) isCredentials() {}
func (RedshiftCredentials) isCredentials() {}
func (SnowflakeCredentials) isCredentials() {}
func (BigQueryCredentials) isCredentials() {}

// DataSourceConfig names one warehouse and carries its credentials.
// Config holds engine-independent extras and is never interpreted by adapters.
type DataSourceConfig struct {
	Name        string
	Type        DataSourceType
	Credentials Credentials
	Config      map[string]any
}
