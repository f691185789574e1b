package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"reflect"
	"time"

	"github.com/leapstack-labs/warehouse/pkg/core"
)

// credentialVariants lists one zero value per engine, in documentation order.
var credentialVariants = []core.Credentials{
	core.PostgresCredentials{},
	core.MySQLCredentials{},
	core.SQLServerCredentials{},
	core.RedshiftCredentials{},
	core.SnowflakeCredentials{},
	core.BigQueryCredentials{},
}

// generateCredentialsDoc documents the credentials keys of every engine,
// read from the mapstructure tags of the credential types.
func generateCredentialsDoc(outDir string) error {
	log.Printf("Generating credentials docs to %s", outDir)

	if err := os.MkdirAll(outDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	w := NewMarkdownWriter()
	w.Frontmatter("Credentials", "Connection settings for each warehouse engine")
	w.GeneratedMarker()

	w.Header(1, "Credentials")
	w.Paragraph("Each entry of `warehouses` in warehouses.yaml has a `credentials` map. " +
		"Its `type` key selects the engine; the remaining keys depend on the engine. " +
		"String values may reference environment variables as `${NAME}`. Unknown keys are rejected.")
	w.CodeBlock("yaml", `default: primary
warehouses:
  - name: primary
    credentials:
      type: postgres
      host: localhost
      username: ${PGUSER}
      password: ${PGPASSWORD}
      default_database: app`)

	for _, creds := range credentialVariants {
		w.Header(2, InlineCode(creds.Type().String()))
		w.Table([]string{"Key", "Type"}, credentialKeys(creds))
	}

	filename := filepath.Join(outDir, "credentials.md")
	if err := os.WriteFile(filename, w.Bytes(), 0600); err != nil {
		return err
	}
	log.Printf("  Generated credentials.md")
	return nil
}

var durationType = reflect.TypeFor[time.Duration]()

func credentialKeys(creds core.Credentials) [][]string {
	t := reflect.TypeOf(creds)
	rows := make([][]string, 0, t.NumField())
	for i := range t.NumField() {
		f := t.Field(i)
		key := f.Tag.Get("mapstructure")
		if key == "" || key == "-" {
			continue
		}
		rows = append(rows, []string{InlineCode(key), keyType(f.Type)})
	}
	return rows
}

func keyType(t reflect.Type) string {
	if t == durationType {
		return "duration (e.g. `30s`)"
	}
	switch t.Kind() {
	case reflect.Pointer:
		return keyType(t.Elem()) + ", optional"
	case reflect.Slice:
		return "list of " + keyType(t.Elem())
	case reflect.Map:
		return "map"
	case reflect.Int, reflect.Int32, reflect.Int64:
		return "integer"
	default:
		return t.Kind().String()
	}
}
