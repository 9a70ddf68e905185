package services

import (
	"fmt"

	"github.com/runline/runline/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

// fieldSchema builds a JSON schema from the form's field list. Required
// text-like fields get a minLength so an empty string counts as missing.
func fieldSchema(fields []*models.FormField) map[string]any {
	properties := make(map[string]any, len(fields))
	required := make([]string, 0)

	for _, field := range fields {
		property := map[string]any{}

		switch field.FieldType {
		case "number":
			property["type"] = "number"
		case "", "text", "textarea", "date", "select":
			property["type"] = "string"

			if field.Required {
				property["minLength"] = 1
			}
		}

		properties[field.Name] = property

		if field.Required {
			required = append(required, field.Name)
		}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}

	if len(required) > 0 {
		schema["required"] = required
	}

	return schema
}

// validateFormData checks submitted form data against the form's field
// schema. Returns ErrMissingRequiredField naming the first offending field.
func validateFormData(fields []*models.FormField, data map[string]any) error {
	if data == nil {
		data = map[string]any{}
	}

	schemaLoader := gojsonschema.NewGoLoader(fieldSchema(fields))
	dataLoader := gojsonschema.NewGoLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return fmt.Errorf("failed to validate form data: %w", err)
	}

	if result.Valid() {
		return nil
	}

	detail := result.Errors()[0]

	return &EngineError{
		Op:      "Submit",
		Message: fmt.Sprintf("field %q: %s", detail.Field(), detail.Description()),
		Err:     ErrMissingRequiredField,
	}
}
