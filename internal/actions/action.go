package actions

import (
	"context"
	"fmt"

	"github.com/goliatone/go-schema-migrate/internal/domain"
	"github.com/goliatone/go-schema-migrate/internal/schema"
	"github.com/goliatone/go-schema-migrate/internal/store"
	"github.com/goliatone/go-schema-migrate/internal/typeconv"
)

// Action variant names used in serialized records.
const (
	NameCreateDocument = "create_document"
	NameDropDocument   = "drop_document"
	NameAlterDocument  = "alter_document"
	NameCreateField    = "create_field"
	NameDropField      = "drop_field"
	NameAlterField     = "alter_field"
)

// Chain ordering priorities. Lower runs first; document creation precedes
// field work, drops come last so dependent field actions still see their
// document.
const (
	PriorityCreateDocument = 10
	PriorityCreateField    = 20
	PriorityAlterDocument  = 30
	PriorityAlterField     = 40
	PriorityDropField      = 50
	PriorityDropDocument   = 60
)

// Env carries everything an action needs to run against a database. Prepare
// binds it to the action before RunForward or RunBackward.
type Env struct {
	Store  store.Store
	Schema schema.Schema
	Policy domain.Policy
	Types  *typeconv.Registry
	Matrix *typeconv.Matrix
}

func (e Env) validate() error {
	if e.Store == nil {
		return domain.MigrationErrorf("action environment has no store")
	}
	if e.Schema == nil {
		return domain.MigrationErrorf("action environment has no schema")
	}
	if e.Types == nil || e.Matrix == nil {
		return domain.MigrationErrorf("action environment has no type registry or matrix")
	}
	return nil
}

// collection resolves the database collection an action on docType touches.
// Embedded document types have no collection of their own; actions on them
// change the schema only, so this returns nil for them.
func (e Env) collection(docType string) store.Collection {
	name := e.Schema.CollectionName(docType)
	if name == "" {
		return nil
	}
	return e.Store.Collection(name)
}

// Action is a single reversible schema-change operation. SchemaPatch is
// usable before Prepare; the Run methods require a prior Prepare call.
type Action interface {
	// Name is the serialized variant tag.
	Name() string
	// DocumentType is the schema document type the action targets.
	DocumentType() string
	// Priority orders actions of different variants within a chain.
	Priority() int
	// SchemaPatch returns the edits this action applies to the given
	// left-hand schema when run forward.
	SchemaPatch(left schema.Schema) ([]schema.Edit, error)
	// Prepare binds the action to a database environment and the schema
	// state in force immediately before it runs forward.
	Prepare(env Env) error
	// RunForward applies the change to the database.
	RunForward(ctx context.Context) error
	// RunBackward reverts the change on the database.
	RunBackward(ctx context.Context) error
	// Record serializes the action for storage inside a migration file.
	Record() Record
}

// Record is the serialized form of an action: the variant tag, its target,
// and enough parameters to rebuild it with DecodeRecord. Params holds only
// JSON-compatible values.
type Record struct {
	Action       string         `json:"action"`
	DocumentType string         `json:"document_type"`
	Field        string         `json:"field,omitempty"`
	Params       map[string]any `json:"params,omitempty"`
}

// DecodeRecord rebuilds an action from its serialized record.
func DecodeRecord(rec Record) (Action, error) {
	switch rec.Action {
	case NameCreateDocument:
		params, err := decodeParamsMap(rec.Params["parameters"])
		if err != nil {
			return nil, domain.MigrationErrorf("record %s %q: %v", rec.Action, rec.DocumentType, err)
		}
		return NewCreateDocument(rec.DocumentType, params), nil
	case NameDropDocument:
		params, err := decodeParamsMap(rec.Params["parameters"])
		if err != nil {
			return nil, domain.MigrationErrorf("record %s %q: %v", rec.Action, rec.DocumentType, err)
		}
		return NewDropDocument(rec.DocumentType, params), nil
	case NameAlterDocument:
		diffs, err := decodeDiffs(rec.Params["diffs"])
		if err != nil {
			return nil, domain.MigrationErrorf("record %s %q: %v", rec.Action, rec.DocumentType, err)
		}
		return NewAlterDocument(rec.DocumentType, diffs), nil
	case NameCreateField:
		desc, err := decodeDescriptor(rec.Params["descriptor"])
		if err != nil {
			return nil, domain.MigrationErrorf("record %s %q.%q: %v", rec.Action, rec.DocumentType, rec.Field, err)
		}
		return NewCreateField(rec.DocumentType, rec.Field, desc), nil
	case NameDropField:
		desc, err := decodeDescriptor(rec.Params["descriptor"])
		if err != nil {
			return nil, domain.MigrationErrorf("record %s %q.%q: %v", rec.Action, rec.DocumentType, rec.Field, err)
		}
		return NewDropField(rec.DocumentType, rec.Field, desc), nil
	case NameAlterField:
		diffs, err := decodeDiffs(rec.Params["diffs"])
		if err != nil {
			return nil, domain.MigrationErrorf("record %s %q.%q: %v", rec.Action, rec.DocumentType, rec.Field, err)
		}
		return NewAlterField(rec.DocumentType, rec.Field, diffs), nil
	default:
		return nil, domain.MigrationErrorf("unknown action variant %q", rec.Action)
	}
}

// DecodeRecords rebuilds a migration's full action list.
func DecodeRecords(recs []Record) ([]Action, error) {
	out := make([]Action, 0, len(recs))
	for _, rec := range recs {
		action, err := DecodeRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, action)
	}
	return out, nil
}

// Serialization helpers. Records round-trip through JSON, so AlterDiff and
// descriptor values are flattened into plain maps with explicit UNSET flags.

func encodeDiffs(diffs map[string]AlterDiff) map[string]any {
	out := make(map[string]any, len(diffs))
	for param, d := range diffs {
		entry := map[string]any{}
		if schema.ValuesEqual(d.Old, schema.UNSET) {
			entry["old_unset"] = true
		} else {
			entry["old"] = d.Old
		}
		if schema.ValuesEqual(d.New, schema.UNSET) {
			entry["new_unset"] = true
		} else {
			entry["new"] = d.New
		}
		if d.Default != nil {
			entry["default"] = d.Default
		}
		if d.Policy != "" {
			entry["policy"] = string(d.Policy)
		}
		out[param] = entry
	}
	return out
}

func decodeDiffs(value any) (map[string]AlterDiff, error) {
	raw, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("diffs must be an object, got %T", value)
	}
	out := make(map[string]AlterDiff, len(raw))
	for param, v := range raw {
		entry, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("diff for %q must be an object, got %T", param, v)
		}
		d := AlterDiff{Old: entry["old"], New: entry["new"], Default: entry["default"]}
		if unset, _ := entry["old_unset"].(bool); unset {
			d.Old = schema.UNSET
		}
		if unset, _ := entry["new_unset"].(bool); unset {
			d.New = schema.UNSET
		}
		if policy, ok := entry["policy"].(string); ok {
			d.Policy = domain.Policy(policy)
		}
		out[param] = d
	}
	return out, nil
}

func encodeDescriptor(desc schema.Field) map[string]any {
	out := make(map[string]any, len(desc))
	for k, v := range desc {
		out[k] = v
	}
	return out
}

func decodeDescriptor(value any) (schema.Field, error) {
	raw, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("descriptor must be an object, got %T", value)
	}
	desc := make(schema.Field, len(raw))
	for k, v := range raw {
		desc[k] = v
	}
	return desc, nil
}

func decodeParamsMap(value any) (map[string]any, error) {
	if value == nil {
		return nil, nil
	}
	raw, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("parameters must be an object, got %T", value)
	}
	return raw, nil
}
