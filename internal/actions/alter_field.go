package actions

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/goliatone/go-schema-migrate/internal/domain"
	"github.com/goliatone/go-schema-migrate/internal/schema"
	"github.com/goliatone/go-schema-migrate/internal/store"
)

// paramHandler binds one descriptor parameter to the routine that migrates
// existing data when that parameter changes.
type paramHandler struct {
	param string
	run   func(a *AlterField, ctx context.Context, d AlterDiff) error
}

// alterHandlers is the full dispatch table for descriptor parameter changes,
// in execution order. Renames run first so every later handler addresses the
// field by its current store name; type conversion runs after the value
// constraints it may depend on. Parameters outside this table (the per-type
// extras such as max_length) are declarative and need no data work.
var alterHandlers = []paramHandler{
	{schema.KeyDBField, (*AlterField).changeDBField},
	{schema.KeyPrimaryKey, (*AlterField).changePrimaryKey},
	{schema.KeyRequired, (*AlterField).changeRequired},
	{schema.KeyChoices, (*AlterField).changeChoices},
	{schema.KeyTypeKey, (*AlterField).changeTypeKey},
	{schema.KeyDefault, (*AlterField).changeNothing},
	{schema.KeyUnique, (*AlterField).changeNothing},
	{schema.KeyUniqueWith, (*AlterField).changeNothing},
	{schema.KeyNull, (*AlterField).changeNothing},
	{schema.KeySparse, (*AlterField).changeNothing},
}

func init() {
	// The table must cover every common descriptor key exactly once, so a
	// new key cannot silently change without a data-migration decision.
	seen := map[string]bool{}
	for _, h := range alterHandlers {
		if seen[h.param] {
			panic(fmt.Sprintf("actions: duplicate alter handler for %q", h.param))
		}
		seen[h.param] = true
	}
	for _, key := range schema.CommonKeys {
		if !seen[key] {
			panic(fmt.Sprintf("actions: no alter handler for descriptor key %q", key))
		}
	}
}

// AlterField changes parameters of one field descriptor. Each changed
// parameter is handled by its entry in alterHandlers; the backward run
// replays the same handlers with swapped diffs.
type AlterField struct {
	docType  string
	field    string
	diffs    map[string]AlterDiff
	env      Env
	coll     store.Collection
	dbField  string
	prepared bool
}

func NewAlterField(docType, field string, diffs map[string]AlterDiff) *AlterField {
	return &AlterField{docType: docType, field: field, diffs: diffs}
}

func (a *AlterField) Name() string         { return NameAlterField }
func (a *AlterField) DocumentType() string { return a.docType }
func (a *AlterField) Priority() int        { return PriorityAlterField }

func (a *AlterField) SchemaPatch(left schema.Schema) ([]schema.Edit, error) {
	if left.Field(a.docType, a.field) == nil {
		return nil, domain.SchemaErrorf("alter_field: field %q of %q is not in the schema", a.field, a.docType)
	}
	return diffsToEdits(a.docType, a.field, a.diffs), nil
}

func (a *AlterField) Prepare(env Env) error {
	if err := env.validate(); err != nil {
		return err
	}
	a.env = env
	a.coll = env.collection(a.docType)
	a.dbField = a.field
	if desc := env.Schema.Field(a.docType, a.field); desc != nil && desc.DBField() != "" {
		a.dbField = desc.DBField()
	}
	a.prepared = true
	return nil
}

func (a *AlterField) RunForward(ctx context.Context) error {
	return a.run(ctx, false)
}

func (a *AlterField) RunBackward(ctx context.Context) error {
	return a.run(ctx, true)
}

func (a *AlterField) run(ctx context.Context, backward bool) error {
	if !a.prepared {
		return domain.MigrationErrorf("alter_field %q.%q: action is not prepared", a.docType, a.field)
	}
	for _, h := range alterHandlers {
		d, ok := a.diffs[h.param]
		if !ok {
			continue
		}
		if backward {
			d = d.Swap()
		}
		if err := h.run(a, ctx, d); err != nil {
			return err
		}
	}
	return nil
}

func (a *AlterField) Record() Record {
	return Record{
		Action:       NameAlterField,
		DocumentType: a.docType,
		Field:        a.field,
		Params:       map[string]any{"diffs": encodeDiffs(a.diffs)},
	}
}

func (a *AlterField) changeNothing(context.Context, AlterDiff) error { return nil }

// changeDBField renames the field in every document and retargets the
// remaining handlers of this run to the new name.
func (a *AlterField) changeDBField(ctx context.Context, d AlterDiff) error {
	if err := d.check(a.dbField, false, false, kindString); err != nil {
		return err
	}
	from := d.Old.(string)
	to := d.New.(string)
	if from == "" || to == "" {
		return domain.MigrationErrorf("field %q.%q: db_field must be a non-empty string", a.docType, a.field)
	}
	if a.coll != nil {
		_, err := a.coll.UpdateMany(ctx,
			store.Filter{from: bson.M{"$exists": true}},
			store.Update{"$rename": bson.M{from: to}},
		)
		if err != nil {
			return err
		}
	}
	a.dbField = to
	return nil
}

// changeRequired backfills documents missing the field when it becomes
// required. Relaxing the constraint needs no data work.
func (a *AlterField) changeRequired(ctx context.Context, d AlterDiff) error {
	if err := d.check(a.dbField, true, true, kindBool); err != nil {
		return err
	}
	wasRequired, _ := d.OldValue().(bool)
	isRequired, _ := d.NewValue().(bool)
	if wasRequired || !isRequired || a.coll == nil {
		return nil
	}
	if d.Default == nil {
		return domain.MigrationErrorf("field %q.%q becomes required but the diff carries no default", a.docType, a.field)
	}
	_, err := a.coll.UpdateMany(ctx,
		store.Filter{a.dbField: bson.M{"$exists": false}},
		store.Update{"$set": bson.M{a.dbField: d.Default}},
	)
	return err
}

// changePrimaryKey behaves like a required change: a primary key must be
// present on every document.
func (a *AlterField) changePrimaryKey(ctx context.Context, d AlterDiff) error {
	return a.changeRequired(ctx, d)
}

// changeChoices resolves documents whose value falls outside a narrowed
// choice list, per the diff's policy.
func (a *AlterField) changeChoices(ctx context.Context, d AlterDiff) error {
	if err := d.check(a.dbField, true, true, kindList); err != nil {
		return err
	}
	choices, ok := asSlice(d.NewValue())
	if !ok {
		return nil
	}
	policy := d.Policy
	if !policy.IsValid() {
		policy = a.env.Policy
	}
	switch policy {
	case domain.PolicyReplace:
		// The replacement value must itself conform, and a missing default
		// would turn the replacement into silent data loss.
		if d.Default == nil {
			return domain.MigrationErrorf("field %q.%q: replace policy needs a default inside the allowed choices",
				a.docType, a.field)
		}
		if !containsValue(choices, d.Default) {
			return domain.MigrationErrorf("field %q.%q: default %v is not one of the allowed choices",
				a.docType, a.field, d.Default)
		}
		if a.coll == nil {
			return nil
		}
		_, err := a.coll.UpdateMany(ctx,
			store.Filter{a.dbField: bson.M{"$exists": true, "$nin": choices}},
			store.Update{"$set": bson.M{a.dbField: d.Default}},
		)
		return err
	default:
		if a.coll == nil {
			return nil
		}
		count, err := a.coll.CountDocuments(ctx,
			store.Filter{a.dbField: bson.M{"$exists": true, "$nin": choices}},
		)
		if err != nil {
			return err
		}
		if count > 0 {
			return domain.MigrationErrorf("%d documents in %q have %q values outside the allowed choices",
				count, a.coll.Name(), a.dbField)
		}
		return nil
	}
}

// changeTypeKey converts stored values between field types using the
// conversion matrix.
func (a *AlterField) changeTypeKey(ctx context.Context, d AlterDiff) error {
	if err := d.check(a.dbField, false, false, kindString); err != nil {
		return err
	}
	if a.coll == nil {
		return nil
	}
	from := a.env.Types.ResolveKey(d.Old.(string))
	to, err := a.env.Types.MustResolveKey(d.New.(string))
	if err != nil {
		return err
	}
	conv, err := a.env.Matrix.Resolve(from.Key, to.Key)
	if err != nil {
		return err
	}
	return conv.Run(ctx, a.coll, a.dbField, from, to)
}
