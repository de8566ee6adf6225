package relay

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/*.json
var schemaFiles embed.FS

var (
	registerSchema = mustLoadSchema("schemas/register.json")
	insightSchema  = mustLoadSchema("schemas/insight.json")
)

func mustLoadSchema(name string) *gojsonschema.Schema {
	raw, err := schemaFiles.ReadFile(name)
	if err != nil {
		panic(fmt.Sprintf("read schema %s: %v", name, err))
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		panic(fmt.Sprintf("compile schema %s: %v", name, err))
	}
	return schema
}

// schemaViolation lists why a body failed its schema. It is logged, never
// sent to the client.
type schemaViolation struct {
	problems []string
}

func (v *schemaViolation) Error() string {
	return "request body failed validation: " + strings.Join(v.problems, "; ")
}

// decodeBody validates body against schema and decodes it into dst. An empty
// body counts as {}. Malformed JSON is returned as a plain error; a schema
// mismatch as *schemaViolation.
func decodeBody(schema *gojsonschema.Schema, body []byte, dst interface{}) error {
	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("{}")
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("parse request body: %w", err)
	}
	if !result.Valid() {
		v := &schemaViolation{}
		for _, re := range result.Errors() {
			v.problems = append(v.problems, re.String())
		}
		return v
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

type registerRequest struct {
	Name           string      `json:"name"`
	Age            interface{} `json:"age"`
	MedicalHistory string      `json:"medicalHistory"`
}

// ageText renders age, sent either as a JSON string or an integer.
func (r registerRequest) ageText() string {
	switch v := r.Age.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

type insightRequest struct {
	PatientAddress string `json:"patientAddress"`
}
