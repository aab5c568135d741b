package server

import (
	"bytes"
	"embed"
	"fmt"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/*.json
var schemaFS embed.FS

const schemaBaseURL = "https://todoapp.local/schema/"

// schemas holds the compiled request body schemas
type schemas struct {
	create *jsonschema.Schema
	patch  *jsonschema.Schema
}

func compileSchemas() (*schemas, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft7

	for _, name := range []string{"todo-create.json", "todo-patch.json"} {
		data, err := schemaFS.ReadFile("schema/" + name)
		if err != nil {
			return nil, err
		}
		if err := compiler.AddResource(schemaBaseURL+name, bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("failed to add schema %s: %w", name, err)
		}
	}

	create, err := compiler.Compile(schemaBaseURL + "todo-create.json")
	if err != nil {
		return nil, fmt.Errorf("invalid schema todo-create.json: %w", err)
	}
	patch, err := compiler.Compile(schemaBaseURL + "todo-patch.json")
	if err != nil {
		return nil, fmt.Errorf("invalid schema todo-patch.json: %w", err)
	}
	return &schemas{create: create, patch: patch}, nil
}

// validate checks doc against schema and flattens the error tree into one line.
func validate(schema *jsonschema.Schema, doc interface{}) error {
	err := schema.Validate(doc)
	if err == nil {
		return nil
	}
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return err
	}

	var msgs []string
	collectSchemaErrors(&msgs, ve)
	if len(msgs) == 0 {
		return fmt.Errorf("%s", ve.Message)
	}
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}

func collectSchemaErrors(msgs *[]string, err *jsonschema.ValidationError) {
	if err == nil {
		return
	}
	if len(err.Causes) == 0 {
		loc := strings.TrimPrefix(err.InstanceLocation, "/")
		if loc == "" {
			*msgs = append(*msgs, err.Message)
		} else {
			*msgs = append(*msgs, loc+": "+err.Message)
		}
		return
	}
	for _, cause := range err.Causes {
		collectSchemaErrors(msgs, cause)
	}
}
