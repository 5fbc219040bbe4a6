package report

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// Schema returns the JSON Schema of Report.
func Schema() ([]byte, error) {
	r := jsonschema.Reflector{DoNotReference: true}
	s := r.Reflect(&Report{})
	s.Title = "classweave report"
	return json.MarshalIndent(s, "", "  ")
}
