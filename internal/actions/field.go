package actions

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/goliatone/go-schema-migrate/internal/domain"
	"github.com/goliatone/go-schema-migrate/internal/schema"
	"github.com/goliatone/go-schema-migrate/internal/store"
)

// CreateField adds a field descriptor to an existing document type. Forward,
// a required field is backfilled with its default so existing documents
// conform; backward, the field is unset everywhere.
type CreateField struct {
	docType    string
	field      string
	descriptor schema.Field
	env        Env
	coll       store.Collection
	prepared   bool
}

func NewCreateField(docType, field string, descriptor schema.Field) *CreateField {
	return &CreateField{docType: docType, field: field, descriptor: descriptor}
}

func (a *CreateField) Name() string         { return NameCreateField }
func (a *CreateField) DocumentType() string { return a.docType }
func (a *CreateField) Priority() int        { return PriorityCreateField }

func (a *CreateField) SchemaPatch(left schema.Schema) ([]schema.Edit, error) {
	if left.Document(a.docType) == nil {
		return nil, domain.SchemaErrorf("create_field: document type %q is not in the schema", a.docType)
	}
	if left.Field(a.docType, a.field) != nil {
		return nil, domain.SchemaErrorf("create_field: field %q of %q already exists", a.field, a.docType)
	}
	return []schema.Edit{{Op: schema.EditAdd, Doc: a.docType, Field: a.field, New: a.descriptor.Clone()}}, nil
}

func (a *CreateField) Prepare(env Env) error {
	if err := env.validate(); err != nil {
		return err
	}
	a.env = env
	a.coll = env.collection(a.docType)
	a.prepared = true
	return nil
}

func (a *CreateField) RunForward(ctx context.Context) error {
	if !a.prepared {
		return domain.MigrationErrorf("create_field %q.%q: action is not prepared", a.docType, a.field)
	}
	if a.coll == nil || !a.descriptor.Required() {
		return nil
	}
	def := a.descriptor.Default()
	if def == nil {
		return domain.MigrationErrorf("create_field %q.%q: required field has no default to backfill", a.docType, a.field)
	}
	dbField := a.dbField()
	_, err := a.coll.UpdateMany(ctx,
		store.Filter{dbField: bson.M{"$exists": false}},
		store.Update{"$set": bson.M{dbField: def}},
	)
	return err
}

func (a *CreateField) RunBackward(ctx context.Context) error {
	if !a.prepared {
		return domain.MigrationErrorf("create_field %q.%q: action is not prepared", a.docType, a.field)
	}
	if a.coll == nil {
		return nil
	}
	dbField := a.dbField()
	_, err := a.coll.UpdateMany(ctx,
		store.Filter{dbField: bson.M{"$exists": true}},
		store.Update{"$unset": bson.M{dbField: ""}},
	)
	return err
}

func (a *CreateField) Record() Record {
	return Record{
		Action:       NameCreateField,
		DocumentType: a.docType,
		Field:        a.field,
		Params:       map[string]any{"descriptor": encodeDescriptor(a.descriptor)},
	}
}

func (a *CreateField) dbField() string {
	if name := a.descriptor.DBField(); name != "" {
		return name
	}
	return a.field
}

// DropField removes a field descriptor. Forward, the field is unset in every
// document; backward, a required field is backfilled with its recorded
// default, and anything else stays absent.
type DropField struct {
	docType    string
	field      string
	descriptor schema.Field
	env        Env
	coll       store.Collection
	prepared   bool
}

func NewDropField(docType, field string, descriptor schema.Field) *DropField {
	return &DropField{docType: docType, field: field, descriptor: descriptor}
}

func (a *DropField) Name() string         { return NameDropField }
func (a *DropField) DocumentType() string { return a.docType }
func (a *DropField) Priority() int        { return PriorityDropField }

func (a *DropField) SchemaPatch(left schema.Schema) ([]schema.Edit, error) {
	desc := left.Field(a.docType, a.field)
	if desc == nil {
		return nil, domain.SchemaErrorf("drop_field: field %q of %q is not in the schema", a.field, a.docType)
	}
	return []schema.Edit{{Op: schema.EditRemove, Doc: a.docType, Field: a.field, Old: desc.Clone()}}, nil
}

func (a *DropField) Prepare(env Env) error {
	if err := env.validate(); err != nil {
		return err
	}
	a.env = env
	a.coll = env.collection(a.docType)
	a.prepared = true
	return nil
}

func (a *DropField) RunForward(ctx context.Context) error {
	if !a.prepared {
		return domain.MigrationErrorf("drop_field %q.%q: action is not prepared", a.docType, a.field)
	}
	if a.coll == nil {
		return nil
	}
	dbField := a.dbField()
	_, err := a.coll.UpdateMany(ctx,
		store.Filter{dbField: bson.M{"$exists": true}},
		store.Update{"$unset": bson.M{dbField: ""}},
	)
	return err
}

func (a *DropField) RunBackward(ctx context.Context) error {
	if !a.prepared {
		return domain.MigrationErrorf("drop_field %q.%q: action is not prepared", a.docType, a.field)
	}
	if a.coll == nil || !a.descriptor.Required() {
		return nil
	}
	def := a.descriptor.Default()
	if def == nil {
		return nil
	}
	dbField := a.dbField()
	_, err := a.coll.UpdateMany(ctx,
		store.Filter{dbField: bson.M{"$exists": false}},
		store.Update{"$set": bson.M{dbField: def}},
	)
	return err
}

func (a *DropField) Record() Record {
	return Record{
		Action:       NameDropField,
		DocumentType: a.docType,
		Field:        a.field,
		Params:       map[string]any{"descriptor": encodeDescriptor(a.descriptor)},
	}
}

func (a *DropField) dbField() string {
	if name := a.descriptor.DBField(); name != "" {
		return name
	}
	return a.field
}
