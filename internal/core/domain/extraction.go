package domain

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/invopop/jsonschema"
)

// UnstructuredKey tags the raw model output when it could not be decoded
// into a FactRecord.
const UnstructuredKey = "unstructured"

// ExtractionResult is either a structured FactRecord or the raw model text
// that failed to decode. Exactly one of the two is present.
type ExtractionResult struct {
	facts *FactRecord
	raw   string
}

func StructuredExtraction(record FactRecord) ExtractionResult {
	return ExtractionResult{facts: &record}
}

func UnstructuredExtraction(raw string) ExtractionResult {
	return ExtractionResult{raw: raw}
}

func (r ExtractionResult) IsStructured() bool { return r.facts != nil }

func (r ExtractionResult) Facts() (FactRecord, bool) {
	if r.facts == nil {
		return FactRecord{}, false
	}
	return *r.facts, true
}

func (r ExtractionResult) Raw() (string, bool) {
	if r.facts != nil {
		return "", false
	}
	return r.raw, true
}

// Record returns the structured record, or an empty one (every fact absent)
// for the unstructured variant.
func (r ExtractionResult) Record() FactRecord {
	record, _ := r.Facts()
	return record
}

func (r ExtractionResult) MarshalJSON() ([]byte, error) {
	if r.facts != nil {
		return json.Marshal(r.facts)
	}
	return json.Marshal(map[string]string{UnstructuredKey: r.raw})
}

func (r *ExtractionResult) UnmarshalJSON(data []byte) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("decode extraction result: %w", err)
	}
	if rawValue, ok := probe[UnstructuredKey]; ok && len(probe) == 1 {
		var raw string
		if err := json.Unmarshal(rawValue, &raw); err != nil {
			return fmt.Errorf("decode unstructured extraction: %w", err)
		}
		*r = UnstructuredExtraction(raw)
		return nil
	}
	var record FactRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return fmt.Errorf("decode fact record: %w", err)
	}
	*r = StructuredExtraction(record)
	return nil
}

func (Measure) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "number"}
}

func (Text) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string"}
}

func (TextList) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:  "array",
		Items: &jsonschema.Schema{Type: "string"},
	}
}

func (Flag) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "boolean"}
}

var (
	factSchemaOnce sync.Once
	factSchemaJSON string
	factSchemaErr  error
)

// FactSchema renders the JSON Schema of FactRecord, with a description per
// field, for use in extraction prompts.
func FactSchema() (string, error) {
	factSchemaOnce.Do(func() {
		reflector := &jsonschema.Reflector{
			Anonymous:                  true,
			DoNotReference:             true,
			ExpandedStruct:             true,
			AllowAdditionalProperties:  true,
			RequiredFromJSONSchemaTags: true,
		}
		schema := reflector.Reflect(&FactRecord{})
		schema.Title = "ZoningFacts"
		raw, err := json.MarshalIndent(schema, "", "  ")
		if err != nil {
			factSchemaErr = fmt.Errorf("marshal fact schema: %w", err)
			return
		}
		factSchemaJSON = string(raw)
	})
	return factSchemaJSON, factSchemaErr
}
