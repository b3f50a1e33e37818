package schema

import (
	"encoding/json"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/goliatone/go-schema-migrate/internal/domain"
)

// snapshotMetaSchema constrains the serialized snapshot shape before it is
// decoded: document types map to objects carrying a fields map, every
// descriptor is an object with a non-empty db_field. Descriptor-level key
// checks happen afterwards in Validate, which knows per-type extras.
const snapshotMetaSchema = `{
	"type": "object",
	"additionalProperties": {
		"type": "object",
		"properties": {
			"parameters": {"type": "object"},
			"fields": {
				"type": "object",
				"additionalProperties": {
					"type": "object",
					"required": ["db_field"],
					"properties": {
						"db_field": {"type": "string", "minLength": 1}
					}
				}
			}
		},
		"required": ["fields"],
		"additionalProperties": false
	}
}`

var snapshotSchema = jsonschema.MustCompileString("snapshot.schema.json", snapshotMetaSchema)

// MarshalSnapshot serializes a schema snapshot to JSON.
func MarshalSnapshot(s Schema) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, domain.SchemaErrorf("encode snapshot: %v", err)
	}
	return data, nil
}

// UnmarshalSnapshot decodes and structurally validates a schema snapshot.
func UnmarshalSnapshot(data []byte) (Schema, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, domain.SchemaErrorf("decode snapshot: %v", err)
	}
	if err := snapshotSchema.Validate(raw); err != nil {
		return nil, domain.SchemaErrorf("snapshot does not match the expected shape: %v", err)
	}
	var s Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, domain.SchemaErrorf("decode snapshot: %v", err)
	}
	for docType, doc := range s {
		if doc == nil {
			s[docType] = NewDocument()
		}
	}
	return s, nil
}
