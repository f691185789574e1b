// Package core defines the shared language of the warehouse module.
//
// This package contains:
//   - Credential variants for every supported engine (Credentials)
//   - Query results and field metadata (QueryResult, FieldMetadata)
//   - Introspection entities (Database, Schema, Table, Column, ...)
//   - Service interfaces (Adapter, Introspector)
//   - Error kinds shared by adapters and the router
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
