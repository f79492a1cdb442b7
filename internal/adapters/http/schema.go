package http

import (
	"embed"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/*.json
var schemaFS embed.FS

type callbackSchemas struct {
	collection   *gojsonschema.Schema
	disbursement *gojsonschema.Schema
}

func loadCallbackSchemas() (callbackSchemas, error) {
	collection, err := compileSchema("schemas/collection_callback.json")
	if err != nil {
		return callbackSchemas{}, err
	}
	disbursement, err := compileSchema("schemas/disbursement_callback.json")
	if err != nil {
		return callbackSchemas{}, err
	}
	return callbackSchemas{collection: collection, disbursement: disbursement}, nil
}

func compileSchema(path string) (*gojsonschema.Schema, error) {
	raw, err := schemaFS.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w", path, err)
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", path, err)
	}
	return schema, nil
}

func validateJSONSchema(schema *gojsonschema.Schema, body []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if !result.Valid() {
		var sb strings.Builder
		for i, e := range result.Errors() {
			if i > 0 {
				sb.WriteString("; ")
			}
			sb.WriteString(e.String())
		}
		return fmt.Errorf("payload does not conform to schema: %s", sb.String())
	}
	return nil
}
