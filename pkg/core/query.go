package core

// FieldMetadata describes one result column as reported by the engine.
// Length, Precision and Scale are zero when the engine does not report them.
type FieldMetadata struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Nullable  bool   `json:"nullable"`
	Length    int64  `json:"length,omitempty"`
	Precision int64  `json:"precision,omitempty"`
	Scale     int64  `json:"scale,omitempty"`
}

// QueryResult is the normalized output of Adapter.Query.
//
// Rows is never nil. HasMoreRows is true iff the engine produced more rows
// than the requested maxRows.
type QueryResult struct {
	Rows         []map[string]any `json:"rows"`
	RowCount     int              `json:"rowCount"`
	Fields       []FieldMetadata  `json:"fields"`
	HasMoreRows  bool             `json:"hasMoreRows"`
	RowsAffected int64            `json:"rowsAffected,omitempty"`
}
