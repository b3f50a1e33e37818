package actions

import (
	"context"
	"sort"

	"github.com/goliatone/go-schema-migrate/internal/domain"
	"github.com/goliatone/go-schema-migrate/internal/schema"
	"github.com/goliatone/go-schema-migrate/internal/store"
)

// resolveCollection binds a document type to its collection using the
// action's own parameters rather than the environment schema, which may not
// contain the document yet (CreateDocument) or any more (DropDocument).
func resolveCollection(env Env, docType string, params map[string]any) store.Collection {
	if schema.IsEmbedded(docType) {
		return nil
	}
	if name, ok := params[schema.ParamCollection].(string); ok && name != "" {
		return env.Store.Collection(name)
	}
	return env.Store.Collection(schema.SnakeCase(docType))
}

// CreateDocument introduces a new document type. The forward run touches no
// data: collections are created lazily on first write. The backward run drops
// the collection. Fields of the new type are created by separate CreateField
// actions, so the schema patch adds the type with an empty field set.
type CreateDocument struct {
	docType    string
	parameters map[string]any
	env        Env
	coll       store.Collection
	prepared   bool
}

func NewCreateDocument(docType string, parameters map[string]any) *CreateDocument {
	return &CreateDocument{docType: docType, parameters: parameters}
}

func (a *CreateDocument) Name() string         { return NameCreateDocument }
func (a *CreateDocument) DocumentType() string { return a.docType }
func (a *CreateDocument) Priority() int        { return PriorityCreateDocument }

func (a *CreateDocument) SchemaPatch(left schema.Schema) ([]schema.Edit, error) {
	if left.Document(a.docType) != nil {
		return nil, domain.SchemaErrorf("create_document: document type %q already exists", a.docType)
	}
	doc := schema.NewDocument()
	for k, v := range a.parameters {
		doc.Parameters[k] = v
	}
	return []schema.Edit{{Op: schema.EditAdd, Doc: a.docType, New: doc}}, nil
}

func (a *CreateDocument) Prepare(env Env) error {
	if err := env.validate(); err != nil {
		return err
	}
	a.env = env
	a.coll = resolveCollection(env, a.docType, a.parameters)
	a.prepared = true
	return nil
}

func (a *CreateDocument) RunForward(ctx context.Context) error {
	if !a.prepared {
		return domain.MigrationErrorf("create_document %q: action is not prepared", a.docType)
	}
	return nil
}

func (a *CreateDocument) RunBackward(ctx context.Context) error {
	if !a.prepared {
		return domain.MigrationErrorf("create_document %q: action is not prepared", a.docType)
	}
	if a.coll == nil {
		return nil
	}
	return a.coll.Drop(ctx)
}

func (a *CreateDocument) Record() Record {
	rec := Record{Action: NameCreateDocument, DocumentType: a.docType}
	if len(a.parameters) > 0 {
		rec.Params = map[string]any{"parameters": a.parameters}
	}
	return rec
}

// DropDocument removes a document type. The forward run drops the backing
// collection; the backward run is a no-op since dropped data is gone and the
// fields are restored by the reversed schema patch alone.
type DropDocument struct {
	docType    string
	parameters map[string]any
	env        Env
	coll       store.Collection
	prepared   bool
}

func NewDropDocument(docType string, parameters map[string]any) *DropDocument {
	return &DropDocument{docType: docType, parameters: parameters}
}

func (a *DropDocument) Name() string         { return NameDropDocument }
func (a *DropDocument) DocumentType() string { return a.docType }
func (a *DropDocument) Priority() int        { return PriorityDropDocument }

func (a *DropDocument) SchemaPatch(left schema.Schema) ([]schema.Edit, error) {
	doc := left.Document(a.docType)
	if doc == nil {
		return nil, domain.SchemaErrorf("drop_document: document type %q is not in the schema", a.docType)
	}
	return []schema.Edit{{Op: schema.EditRemove, Doc: a.docType, Old: doc.Clone()}}, nil
}

func (a *DropDocument) Prepare(env Env) error {
	if err := env.validate(); err != nil {
		return err
	}
	a.env = env
	if env.Schema.Document(a.docType) != nil {
		a.coll = env.collection(a.docType)
	} else {
		a.coll = resolveCollection(env, a.docType, a.parameters)
	}
	a.prepared = true
	return nil
}

func (a *DropDocument) RunForward(ctx context.Context) error {
	if !a.prepared {
		return domain.MigrationErrorf("drop_document %q: action is not prepared", a.docType)
	}
	if a.coll == nil {
		return nil
	}
	return a.coll.Drop(ctx)
}

func (a *DropDocument) RunBackward(ctx context.Context) error {
	if !a.prepared {
		return domain.MigrationErrorf("drop_document %q: action is not prepared", a.docType)
	}
	return nil
}

func (a *DropDocument) Record() Record {
	rec := Record{Action: NameDropDocument, DocumentType: a.docType}
	if len(a.parameters) > 0 {
		rec.Params = map[string]any{"parameters": a.parameters}
	}
	return rec
}

// AlterDocument changes document-level parameters. Renaming the collection
// parameter moves the data; every other parameter is declarative and touches
// the schema only.
type AlterDocument struct {
	docType  string
	diffs    map[string]AlterDiff
	env      Env
	prepared bool
}

func NewAlterDocument(docType string, diffs map[string]AlterDiff) *AlterDocument {
	return &AlterDocument{docType: docType, diffs: diffs}
}

func (a *AlterDocument) Name() string         { return NameAlterDocument }
func (a *AlterDocument) DocumentType() string { return a.docType }
func (a *AlterDocument) Priority() int        { return PriorityAlterDocument }

func (a *AlterDocument) SchemaPatch(left schema.Schema) ([]schema.Edit, error) {
	if left.Document(a.docType) == nil {
		return nil, domain.SchemaErrorf("alter_document: document type %q is not in the schema", a.docType)
	}
	return diffsToEdits(a.docType, "", a.diffs), nil
}

func (a *AlterDocument) Prepare(env Env) error {
	if err := env.validate(); err != nil {
		return err
	}
	a.env = env
	a.prepared = true
	return nil
}

func (a *AlterDocument) RunForward(ctx context.Context) error {
	if !a.prepared {
		return domain.MigrationErrorf("alter_document %q: action is not prepared", a.docType)
	}
	if d, ok := a.diffs[schema.ParamCollection]; ok {
		return a.renameCollection(ctx, d)
	}
	return nil
}

func (a *AlterDocument) RunBackward(ctx context.Context) error {
	if !a.prepared {
		return domain.MigrationErrorf("alter_document %q: action is not prepared", a.docType)
	}
	if d, ok := a.diffs[schema.ParamCollection]; ok {
		return a.renameCollection(ctx, d.Swap())
	}
	return nil
}

func (a *AlterDocument) renameCollection(ctx context.Context, d AlterDiff) error {
	if schema.IsEmbedded(a.docType) {
		return nil
	}
	if err := d.check(a.docType, true, true, kindString); err != nil {
		return err
	}
	from, _ := d.OldValue().(string)
	to, _ := d.NewValue().(string)
	if from == "" {
		from = schema.SnakeCase(a.docType)
	}
	if to == "" {
		to = schema.SnakeCase(a.docType)
	}
	if from == to {
		return nil
	}
	return a.env.Store.RenameCollection(ctx, from, to)
}

func (a *AlterDocument) Record() Record {
	return Record{
		Action:       NameAlterDocument,
		DocumentType: a.docType,
		Params:       map[string]any{"diffs": encodeDiffs(a.diffs)},
	}
}

// diffsToEdits renders parameter diffs as elementary schema edits in sorted
// parameter order. UNSET values turn into add or remove edits.
func diffsToEdits(docType, field string, diffs map[string]AlterDiff) []schema.Edit {
	var edits []schema.Edit
	for _, param := range sortedDiffKeys(diffs) {
		d := diffs[param]
		switch {
		case schema.ValuesEqual(d.Old, schema.UNSET):
			edits = append(edits, schema.Edit{Op: schema.EditAdd, Doc: docType, Field: field, Param: param, New: d.New})
		case schema.ValuesEqual(d.New, schema.UNSET):
			edits = append(edits, schema.Edit{Op: schema.EditRemove, Doc: docType, Field: field, Param: param, Old: d.Old})
		default:
			edits = append(edits, schema.Edit{Op: schema.EditChange, Doc: docType, Field: field, Param: param, Old: d.Old, New: d.New})
		}
	}
	return edits
}

func sortedDiffKeys(diffs map[string]AlterDiff) []string {
	keys := make([]string, 0, len(diffs))
	for k := range diffs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
