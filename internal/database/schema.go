package database

import (
	"embed"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/*.json
var schemaFS embed.FS

var (
	schemaOnce sync.Once
	schemas    map[string]*gojsonschema.Schema
	schemaErr  error
)

// schemaFiles maps typed state keys to their document schema.
var schemaFiles = map[string]string{
	keySeen:    "schemas/seen_articles.json",
	keyLastRun: "schemas/run_record.json",
}

func loadSchemas() (map[string]*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schemas = make(map[string]*gojsonschema.Schema, len(schemaFiles))
		for key, path := range schemaFiles {
			raw, err := schemaFS.ReadFile(path)
			if err != nil {
				schemaErr = fmt.Errorf("read schema %s: %w", path, err)
				return
			}
			s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
			if err != nil {
				schemaErr = fmt.Errorf("compile schema %s: %w", path, err)
				return
			}
			schemas[key] = s
		}
	})
	return schemas, schemaErr
}

// validateDocument checks raw JSON stored under key. Keys without a schema pass.
func validateDocument(key string, raw []byte) error {
	all, err := loadSchemas()
	if err != nil {
		return err
	}
	s, ok := all[key]
	if !ok {
		return nil
	}
	result, err := s.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("validate %s: %w", key, err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("invalid %s document: %s", key, strings.Join(msgs, "; "))
}
