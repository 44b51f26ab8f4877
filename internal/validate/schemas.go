package validate

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/ROIAWARECHILE/miner-contract-cognito-sub000/internal/domain"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Schemas are a JSON-Schema (draft 2020-12 subset) per document type,
// built as generic maps and compiled once at startup. They constrain
// types only; required-ness is handled by the critical-field policy so a
// missing field degrades to a warning instead of a hard failure.

func decimalProp() map[string]any {
	return map[string]any{"type": []string{"number", "null"}}
}

func stringProp() map[string]any {
	return map[string]any{"type": []string{"string", "null"}}
}

func dateProp() map[string]any {
	return map[string]any{
		"type":    []string{"string", "null"},
		"pattern": `^\d{4}-\d{2}-\d{2}$`,
	}
}

func contractSchemaMap() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"contract_code": stringProp(),
			"contract_name": stringProp(),
			"contractor":    stringProp(),
			"principal":     stringProp(),
			"start_date":    dateProp(),
			"end_date":      dateProp(),
			"total_budget":  decimalProp(),
			"currency":      stringProp(),
			"confidence":    map[string]any{"type": []string{"number", "null"}, "minimum": 0.0, "maximum": 1.0},
			"tasks": map[string]any{
				"type": []string{"array", "null"},
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"task_number": stringProp(),
						"task_name":   stringProp(),
						"budget":      decimalProp(),
					},
				},
			},
			"risks": map[string]any{
				"type": []string{"array", "null"},
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"description": stringProp(),
						"severity":    stringProp(),
					},
				},
			},
			"obligations": map[string]any{
				"type": []string{"array", "null"},
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"description": stringProp(),
						"due_date":    dateProp(),
					},
				},
			},
		},
	}
}

func paymentSchemaMap() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"contract_code": stringProp(),
			"period_number": map[string]any{"type": []string{"integer", "null"}, "minimum": 0},
			"period_start":  dateProp(),
			"period_end":    dateProp(),
			"total_amount":  decimalProp(),
			"confidence":    map[string]any{"type": []string{"number", "null"}, "minimum": 0.0, "maximum": 1.0},
			"lines": map[string]any{
				"type": []string{"array", "null"},
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"task_number": stringProp(),
						"description": stringProp(),
						"amount":      decimalProp(),
					},
				},
			},
		},
	}
}

func memoSchemaMap() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"contract_code": stringProp(),
			"title":         stringProp(),
			"date":          dateProp(),
			"summary":       stringProp(),
			"topics":        map[string]any{"type": []string{"array", "null"}, "items": map[string]any{"type": "string"}},
			"confidence":    map[string]any{"type": []string{"number", "null"}, "minimum": 0.0, "maximum": 1.0},
		},
	}
}

// criticalFields lists the fields per type whose absence forces manual
// review. The payload is still returned best-effort.
var criticalFields = map[domain.DocumentType][]string{
	domain.DocTypeContract:     {"contract_code", "contractor", "principal", "total_budget"},
	domain.DocTypePaymentState: {"contract_code", "period_number", "total_amount"},
	domain.DocTypeMemo:         {"title"},
}

// compileSchema turns a schema map into a compiled jsonschema document.
func compileSchema(name string, m map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal schema %s: %w", name, err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema %s: %w", name, err)
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return schema, nil
}

// schemaRegistry holds the compiled schema per document type.
type schemaRegistry map[domain.DocumentType]*jsonschema.Schema

func newSchemaRegistry() (schemaRegistry, error) {
	reg := schemaRegistry{}
	for t, m := range map[domain.DocumentType]map[string]any{
		domain.DocTypeContract:     contractSchemaMap(),
		domain.DocTypePaymentState: paymentSchemaMap(),
		domain.DocTypeMemo:         memoSchemaMap(),
	} {
		s, err := compileSchema(string(t)+".json", m)
		if err != nil {
			return nil, err
		}
		reg[t] = s
	}
	return reg, nil
}
