package core

import "time"

// Database is a top-level catalog. For MySQL this is a schema.
type Database struct {
	Name    string     `json:"name"`
	Owner   string     `json:"owner,omitempty"`
	Comment string     `json:"comment,omitempty"`
	Created *time.Time `json:"created,omitempty"`
}

// Schema is a namespace within a database.
type Schema struct {
	Name     string `json:"name"`
	Database string `json:"database"`
	Owner    string `json:"owner,omitempty"`
	Comment  string `json:"comment,omitempty"`
}

// Table kinds reported by introspectors.
const (
	TableKindTable        = "TABLE"
	TableKindView         = "VIEW"
	TableKindMaterialized = "MATERIALIZED_VIEW"
	TableKindExternal     = "EXTERNAL_TABLE"
	TableKindTemporary    = "TEMPORARY_TABLE"
)

// Table is a base table (or engine-specific table-like relation).
type Table struct {
	Name      string `json:"name"`
	Schema    string `json:"schema"`
	Database  string `json:"database"`
	Type      string `json:"type"`
	RowCount  int64  `json:"rowCount"`
	SizeBytes int64  `json:"sizeBytes,omitempty"`
	Comment   string `json:"comment,omitempty"`
}

// Column describes a table column. The statistics fields are populated only
// by GetFullIntrospection.
type Column struct {
	Name         string `json:"name"`
	Table        string `json:"table"`
	Schema       string `json:"schema"`
	Database     string `json:"database"`
	Position     int    `json:"position"`
	DataType     string `json:"dataType"`
	Nullable     bool   `json:"isNullable"`
	DefaultValue string `json:"defaultValue,omitempty"`
	MaxLength    int64  `json:"maxLength,omitempty"`
	Precision    int64  `json:"precision,omitempty"`
	Scale        int64  `json:"scale,omitempty"`
	Comment      string `json:"comment,omitempty"`

	DistinctCount int64  `json:"distinctCount,omitempty"`
	NullCount     int64  `json:"nullCount,omitempty"`
	MinValue      string `json:"minValue,omitempty"`
	MaxValue      string `json:"maxValue,omitempty"`
	SampleValues  string `json:"sampleValues,omitempty"`
}

// View is a stored query definition.
type View struct {
	Name       string `json:"name"`
	Schema     string `json:"schema"`
	Database   string `json:"database"`
	Definition string `json:"definition,omitempty"`
	Comment    string `json:"comment,omitempty"`
}

// TableStatistics holds table-level statistics.
type TableStatistics struct {
	Table       string    `json:"table"`
	Schema      string    `json:"schema"`
	Database    string    `json:"database"`
	RowCount    int64     `json:"rowCount"`
	SizeBytes   int64     `json:"sizeBytes,omitempty"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// ColumnStatistics holds per-column statistics. SampleValues is a
// comma-separated list of distinct sample values.
type ColumnStatistics struct {
	ColumnName    string `json:"columnName"`
	DistinctCount int64  `json:"distinctCount"`
	NullCount     int64  `json:"nullCount"`
	MinValue      string `json:"minValue,omitempty"`
	MaxValue      string `json:"maxValue,omitempty"`
	SampleValues  string `json:"sampleValues,omitempty"`
}

// Index describes a table index.
type Index struct {
	Name     string   `json:"name"`
	Table    string   `json:"table"`
	Schema   string   `json:"schema"`
	Database string   `json:"database"`
	Columns  []string `json:"columns"`
	Unique   bool     `json:"isUnique"`
	Primary  bool     `json:"isPrimary"`
	Type     string   `json:"type,omitempty"`
}

// ForeignKey describes a foreign key constraint.
type ForeignKey struct {
	Name               string   `json:"name"`
	SourceTable        string   `json:"sourceTable"`
	SourceSchema       string   `json:"sourceSchema"`
	SourceDatabase     string   `json:"sourceDatabase"`
	SourceColumns      []string `json:"sourceColumns"`
	ReferencedTable    string   `json:"referencedTable"`
	ReferencedSchema   string   `json:"referencedSchema"`
	ReferencedDatabase string   `json:"referencedDatabase"`
	ReferencedColumns  []string `json:"referencedColumns"`
	OnUpdate           string   `json:"onUpdate,omitempty"`
	OnDelete           string   `json:"onDelete,omitempty"`
}

// IntrospectOptions scopes GetFullIntrospection. A nil slice means the
// filter is absent; a non-nil empty slice is rejected with EmptyFilterError.
// Matching is exact and case-sensitive.
type IntrospectOptions struct {
	Databases []string
	Schemas   []string
	Tables    []string
}

// IntrospectionResult is a full metadata snapshot of one warehouse.
type IntrospectionResult struct {
	DataSourceName string         `json:"dataSourceName"`
	DataSourceType DataSourceType `json:"dataSourceType"`
	Databases      []Database     `json:"databases"`
	Schemas        []Schema       `json:"schemas"`
	Tables         []Table        `json:"tables"`
	Columns        []Column       `json:"columns"`
	Views          []View         `json:"views"`
	Indexes        []Index        `json:"indexes"`
	ForeignKeys    []ForeignKey   `json:"foreignKeys"`
	IntrospectedAt time.Time      `json:"introspectedAt"`
}
