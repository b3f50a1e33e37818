package actions

import (
	"context"
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/goliatone/go-schema-migrate/internal/domain"
	"github.com/goliatone/go-schema-migrate/internal/schema"
	"github.com/goliatone/go-schema-migrate/internal/store/memstore"
	"github.com/goliatone/go-schema-migrate/internal/typeconv"
)

func testEnv(t *testing.T, s schema.Schema, st *memstore.Store) Env {
	t.Helper()
	reg := typeconv.DefaultRegistry()
	matrix, err := typeconv.DefaultMatrix(reg)
	if err != nil {
		t.Fatalf("DefaultMatrix: %v", err)
	}
	return Env{Store: st, Schema: s, Policy: domain.PolicyStrict, Types: reg, Matrix: matrix}
}

func prepare(t *testing.T, action Action, env Env) {
	t.Helper()
	if err := action.Prepare(env); err != nil {
		t.Fatalf("Prepare(%s): %v", action.Name(), err)
	}
}

func TestCreateFieldBackfillsRequiredDefault(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	st.Seed("books", bson.M{"_id": 1}, bson.M{"_id": 2, "title": "Dune"})

	action := NewCreateField("Book", "title", schema.Field{
		schema.KeyDBField:  "title",
		schema.KeyTypeKey:  typeconv.TypeString,
		schema.KeyRequired: true,
		schema.KeyDefault:  "untitled",
	})
	left := librarySchema()
	delete(left["Book"].Fields, "title")
	prepare(t, action, testEnv(t, left, st))

	if err := action.RunForward(ctx); err != nil {
		t.Fatalf("RunForward: %v", err)
	}
	docs := st.Dump("books")
	if docs[0]["title"] != "untitled" || docs[1]["title"] != "Dune" {
		t.Fatalf("unexpected docs after forward: %v", docs)
	}

	if err := action.RunBackward(ctx); err != nil {
		t.Fatalf("RunBackward: %v", err)
	}
	for _, doc := range st.Dump("books") {
		if _, ok := doc["title"]; ok {
			t.Fatalf("title still present after backward: %v", doc)
		}
	}
}

func TestCreateFieldRequiredWithoutDefaultFails(t *testing.T) {
	st := memstore.New()
	st.Seed("books", bson.M{"_id": 1})
	action := NewCreateField("Book", "title", schema.Field{
		schema.KeyDBField:  "title",
		schema.KeyRequired: true,
	})
	left := librarySchema()
	delete(left["Book"].Fields, "title")
	prepare(t, action, testEnv(t, left, st))

	if err := action.RunForward(context.Background()); !errors.Is(err, domain.ErrMigration) {
		t.Fatalf("expected migration error, got %v", err)
	}
}

func TestDropFieldForwardUnsetsBackwardRestoresDefault(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	st.Seed("books", bson.M{"_id": 1, "pages": 100}, bson.M{"_id": 2})

	action := NewDropField("Book", "pages", schema.Field{
		schema.KeyDBField:  "pages",
		schema.KeyTypeKey:  typeconv.TypeInt,
		schema.KeyRequired: true,
		schema.KeyDefault:  0,
	})
	prepare(t, action, testEnv(t, librarySchema(), st))

	if err := action.RunForward(ctx); err != nil {
		t.Fatalf("RunForward: %v", err)
	}
	for _, doc := range st.Dump("books") {
		if _, ok := doc["pages"]; ok {
			t.Fatalf("pages still present after forward: %v", doc)
		}
	}

	if err := action.RunBackward(ctx); err != nil {
		t.Fatalf("RunBackward: %v", err)
	}
	for _, doc := range st.Dump("books") {
		if doc["pages"] != 0 {
			t.Fatalf("pages not restored to default: %v", doc)
		}
	}
}

func TestDropFieldBackwardWithoutDefaultDoesNothing(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	st.Seed("books", bson.M{"_id": 1, "pages": 100})

	action := NewDropField("Book", "pages", schema.Field{
		schema.KeyDBField:  "pages",
		schema.KeyRequired: true,
	})
	prepare(t, action, testEnv(t, librarySchema(), st))

	if err := action.RunForward(ctx); err != nil {
		t.Fatalf("RunForward: %v", err)
	}
	if err := action.RunBackward(ctx); err != nil {
		t.Fatalf("RunBackward: %v", err)
	}
	for _, doc := range st.Dump("books") {
		if _, ok := doc["pages"]; ok {
			t.Fatalf("pages reappeared without a default: %v", doc)
		}
	}
}

func TestAlterFieldRenameRunsBeforeBackfill(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	st.Seed("books", bson.M{"_id": 1, "title": "Dune"}, bson.M{"_id": 2})

	action := NewAlterField("Book", "title", map[string]AlterDiff{
		schema.KeyDBField:  {Old: "title", New: "headline"},
		schema.KeyRequired: {Old: schema.UNSET, New: true, Default: "untitled"},
	})
	prepare(t, action, testEnv(t, librarySchema(), st))

	if err := action.RunForward(ctx); err != nil {
		t.Fatalf("RunForward: %v", err)
	}
	docs := st.Dump("books")
	if docs[0]["headline"] != "Dune" {
		t.Fatalf("rename did not run: %v", docs[0])
	}
	if docs[1]["headline"] != "untitled" {
		t.Fatalf("backfill did not target the renamed field: %v", docs[1])
	}

	if err := action.RunBackward(ctx); err != nil {
		t.Fatalf("RunBackward: %v", err)
	}
	docs = st.Dump("books")
	if docs[0]["title"] != "Dune" {
		t.Fatalf("backward rename did not run: %v", docs[0])
	}
	if _, ok := docs[0]["headline"]; ok {
		t.Fatalf("headline still present after backward: %v", docs[0])
	}
}

func TestAlterFieldTypeConversion(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	st.Seed("books", bson.M{"_id": 1, "pages": int32(100)})

	action := NewAlterField("Book", "pages", map[string]AlterDiff{
		schema.KeyTypeKey: {Old: typeconv.TypeInt, New: typeconv.TypeString},
	})
	prepare(t, action, testEnv(t, librarySchema(), st))

	if err := action.RunForward(ctx); err != nil {
		t.Fatalf("RunForward: %v", err)
	}
	if got := st.Dump("books")[0]["pages"]; got != "100" {
		t.Fatalf("pages = %v (%T), want \"100\"", got, got)
	}

	if err := action.RunBackward(ctx); err != nil {
		t.Fatalf("RunBackward: %v", err)
	}
	if got := st.Dump("books")[0]["pages"]; got != int32(100) {
		t.Fatalf("pages = %v (%T), want int32(100)", got, got)
	}
}

func TestAlterFieldChoicesStrictPolicyFails(t *testing.T) {
	st := memstore.New()
	st.Seed("books", bson.M{"_id": 1, "genre": "horror"})

	action := NewAlterField("Book", "genre", map[string]AlterDiff{
		schema.KeyChoices: {Old: schema.UNSET, New: []any{"fiction", "science"}},
	})
	left := librarySchema()
	left["Book"].Fields["genre"] = schema.Field{schema.KeyDBField: "genre"}
	prepare(t, action, testEnv(t, left, st))

	err := action.RunForward(context.Background())
	if !errors.Is(err, domain.ErrMigration) {
		t.Fatalf("expected migration error for out-of-choices value, got %v", err)
	}
}

func TestAlterFieldChoicesReplacePolicy(t *testing.T) {
	st := memstore.New()
	st.Seed("books",
		bson.M{"_id": 1, "genre": "horror"},
		bson.M{"_id": 2, "genre": "fiction"},
	)

	action := NewAlterField("Book", "genre", map[string]AlterDiff{
		schema.KeyChoices: {
			Old:     schema.UNSET,
			New:     []any{"fiction", "science"},
			Default: "fiction",
			Policy:  domain.PolicyReplace,
		},
	})
	left := librarySchema()
	left["Book"].Fields["genre"] = schema.Field{schema.KeyDBField: "genre"}
	prepare(t, action, testEnv(t, left, st))

	if err := action.RunForward(context.Background()); err != nil {
		t.Fatalf("RunForward: %v", err)
	}
	docs := st.Dump("books")
	if docs[0]["genre"] != "fiction" {
		t.Fatalf("out-of-choices value not replaced: %v", docs[0])
	}
	if docs[1]["genre"] != "fiction" {
		t.Fatalf("conforming value must stay: %v", docs[1])
	}
}

func TestAlterFieldChoicesReplaceRequiresConformingDefault(t *testing.T) {
	ctx := context.Background()
	left := librarySchema()
	left["Book"].Fields["genre"] = schema.Field{schema.KeyDBField: "genre"}

	for name, diff := range map[string]AlterDiff{
		"default outside choices": {
			Old:     schema.UNSET,
			New:     []any{"fiction", "science"},
			Default: "poetry",
			Policy:  domain.PolicyReplace,
		},
		"missing default": {
			Old:    schema.UNSET,
			New:    []any{"fiction", "science"},
			Policy: domain.PolicyReplace,
		},
	} {
		st := memstore.New()
		st.Seed("books", bson.M{"_id": 1, "genre": "horror"})
		action := NewAlterField("Book", "genre", map[string]AlterDiff{schema.KeyChoices: diff})
		prepare(t, action, testEnv(t, left, st))

		err := action.RunForward(ctx)
		if !errors.Is(err, domain.ErrMigration) {
			t.Fatalf("%s: expected migration error, got %v", name, err)
		}
		if got := st.Dump("books")[0]["genre"]; got != "horror" {
			t.Fatalf("%s: data mutated despite the error: %v", name, got)
		}
	}
}

func TestAlterFieldRenameRejectsEmptyName(t *testing.T) {
	ctx := context.Background()
	for name, diff := range map[string]AlterDiff{
		"empty new name": {Old: "title", New: ""},
		"empty old name": {Old: "", New: "title"},
	} {
		st := memstore.New()
		st.Seed("books", bson.M{"_id": 1, "title": "dune"})
		action := NewAlterField("Book", "title", map[string]AlterDiff{
			schema.KeyDBField: diff,
		})
		prepare(t, action, testEnv(t, librarySchema(), st))

		err := action.RunForward(ctx)
		if !errors.Is(err, domain.ErrMigration) {
			t.Fatalf("%s: expected migration error, got %v", name, err)
		}
		if got := st.Dump("books")[0]["title"]; got != "dune" {
			t.Fatalf("%s: data mutated despite the error: %v", name, got)
		}
	}
}

func TestAlterFieldOnEmbeddedTypeTouchesNoData(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	st.Seed("books", bson.M{"_id": 1, "name": "x"})

	action := NewAlterField("~Author", "name", map[string]AlterDiff{
		schema.KeyTypeKey: {Old: typeconv.TypeString, New: typeconv.TypeInt},
	})
	prepare(t, action, testEnv(t, librarySchema(), st))

	if err := action.RunForward(ctx); err != nil {
		t.Fatalf("RunForward: %v", err)
	}
	if got := st.Dump("books")[0]["name"]; got != "x" {
		t.Fatalf("embedded alter mutated data: %v", got)
	}
}

func TestAlterDocumentRenamesCollection(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	st.Seed("books", bson.M{"_id": 1})

	action := NewAlterDocument("Book", map[string]AlterDiff{
		schema.ParamCollection: {Old: "books", New: "book_items"},
	})
	prepare(t, action, testEnv(t, librarySchema(), st))

	if err := action.RunForward(ctx); err != nil {
		t.Fatalf("RunForward: %v", err)
	}
	if len(st.Dump("book_items")) != 1 || len(st.Dump("books")) != 0 {
		t.Fatal("collection was not renamed forward")
	}

	if err := action.RunBackward(ctx); err != nil {
		t.Fatalf("RunBackward: %v", err)
	}
	if len(st.Dump("books")) != 1 {
		t.Fatal("collection was not renamed back")
	}
}

func TestCreateDocumentBackwardDropsCollection(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	st.Seed("readers", bson.M{"_id": 1})

	action := NewCreateDocument("Reader", map[string]any{schema.ParamCollection: "readers"})
	prepare(t, action, testEnv(t, librarySchema(), st))

	if err := action.RunForward(ctx); err != nil {
		t.Fatalf("RunForward: %v", err)
	}
	if len(st.Dump("readers")) != 1 {
		t.Fatal("forward run must not touch data")
	}
	if err := action.RunBackward(ctx); err != nil {
		t.Fatalf("RunBackward: %v", err)
	}
	if len(st.Dump("readers")) != 0 {
		t.Fatal("backward run must drop the collection")
	}
}

func TestDropDocumentForwardDropsCollection(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	st.Seed("books", bson.M{"_id": 1})

	action := NewDropDocument("Book", map[string]any{schema.ParamCollection: "books"})
	prepare(t, action, testEnv(t, librarySchema(), st))

	if err := action.RunForward(ctx); err != nil {
		t.Fatalf("RunForward: %v", err)
	}
	if len(st.Dump("books")) != 0 {
		t.Fatal("forward run must drop the collection")
	}
	if err := action.RunBackward(ctx); err != nil {
		t.Fatalf("RunBackward: %v", err)
	}
}

func TestActionsRequirePrepare(t *testing.T) {
	actions := []Action{
		NewCreateDocument("Book", nil),
		NewDropDocument("Book", nil),
		NewAlterDocument("Book", nil),
		NewCreateField("Book", "title", schema.Field{}),
		NewDropField("Book", "title", schema.Field{}),
		NewAlterField("Book", "title", nil),
	}
	for _, action := range actions {
		if err := action.RunForward(context.Background()); !errors.Is(err, domain.ErrMigration) {
			t.Fatalf("%s: expected migration error before Prepare, got %v", action.Name(), err)
		}
	}
}

func TestAlterDiffCheckRejectsBadValues(t *testing.T) {
	cases := []struct {
		name      string
		diff      AlterDiff
		canUnset  bool
		canNil    bool
		kind      diffKind
		expectErr bool
	}{
		{"equal values", AlterDiff{Old: "a", New: "a"}, true, true, kindAny, true},
		{"unset rejected", AlterDiff{Old: schema.UNSET, New: "a"}, false, true, kindString, true},
		{"nil rejected", AlterDiff{Old: nil, New: "a"}, true, false, kindString, true},
		{"wrong type", AlterDiff{Old: 1, New: "a"}, false, false, kindString, true},
		{"valid string", AlterDiff{Old: "a", New: "b"}, false, false, kindString, false},
		{"valid bool with unset", AlterDiff{Old: schema.UNSET, New: true}, true, true, kindBool, false},
		{"valid list", AlterDiff{Old: schema.UNSET, New: []any{"x"}}, true, true, kindList, false},
	}
	for _, tc := range cases {
		err := tc.diff.check("f", tc.canUnset, tc.canNil, tc.kind)
		if tc.expectErr && err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
		if !tc.expectErr && err != nil {
			t.Errorf("%s: unexpected error %v", tc.name, err)
		}
	}
}
