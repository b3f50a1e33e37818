package runner

import (
	"context"
	"testing"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/goliatone/go-schema-migrate/internal/actions"
	"github.com/goliatone/go-schema-migrate/internal/graph"
	"github.com/goliatone/go-schema-migrate/internal/history"
	"github.com/goliatone/go-schema-migrate/internal/schema"
	"github.com/goliatone/go-schema-migrate/internal/store/memstore"
	"github.com/goliatone/go-schema-migrate/internal/typeconv"
)

func schemaV1() schema.Schema {
	return schema.Schema{
		"Book": &schema.Document{
			Parameters: map[string]any{schema.ParamCollection: "books"},
			Fields: map[string]schema.Field{
				"title": {
					schema.KeyDBField: "title",
					schema.KeyTypeKey: typeconv.TypeString,
				},
				"pages": {
					schema.KeyDBField:  "pages",
					schema.KeyTypeKey:  typeconv.TypeInt,
					schema.KeyRequired: true,
					schema.KeyDefault:  0,
				},
			},
		},
	}
}

func schemaV2() schema.Schema {
	s := schemaV1()
	s["Book"].Fields["title"][schema.KeyRequired] = true
	s["Book"].Fields["title"][schema.KeyDefault] = "untitled"
	return s
}

func schemaV3() schema.Schema {
	s := schemaV2()
	delete(s["Book"].Fields, "pages")
	return s
}

func mkMigration(t *testing.T, name string, deps []string, left, right schema.Schema) *graph.Migration {
	t.Helper()
	chain, err := actions.BuildChain(actions.DefaultActionTypes(), left, right)
	if err != nil {
		t.Fatalf("BuildChain for %s: %v", name, err)
	}
	records := make([]actions.Record, len(chain))
	for i, action := range chain {
		records[i] = action.Record()
	}
	return &graph.Migration{Name: name, Dependencies: deps, Actions: records}
}

func libraryGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New()
	migrations := []*graph.Migration{
		mkMigration(t, "0001_initial", nil, schema.New(), schemaV1()),
		mkMigration(t, "0002_require_title", []string{"0001_initial"}, schemaV1(), schemaV2()),
		mkMigration(t, "0003_drop_pages", []string{"0002_require_title"}, schemaV2(), schemaV3()),
	}
	for _, m := range migrations {
		if err := g.Add(m); err != nil {
			t.Fatalf("Add(%s): %v", m.Name, err)
		}
	}
	return g
}

func newRunner(t *testing.T, st *memstore.Store) *Runner {
	t.Helper()
	r, err := New(st, libraryGraph(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func assertSnapshot(t *testing.T, st *memstore.Store, want schema.Schema) {
	t.Helper()
	got, found, err := history.New(st).LoadSnapshot(context.Background())
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if !found {
		t.Fatal("no snapshot saved")
	}
	// Snapshots round-trip through JSON, so compare against the same
	// normalization (numbers come back as float64).
	data, err := schema.MarshalSnapshot(want)
	if err != nil {
		t.Fatalf("MarshalSnapshot: %v", err)
	}
	normalized, err := schema.UnmarshalSnapshot(data)
	if err != nil {
		t.Fatalf("UnmarshalSnapshot: %v", err)
	}
	if !schema.Equal(normalized, got) {
		t.Fatalf("snapshot mismatch: %s", schema.FormatEdits(schema.Diff(normalized, got)))
	}
}

func TestUpgradeAll(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	st.Seed("books",
		bson.M{"_id": 1, "title": "Dune", "pages": 412},
		bson.M{"_id": 2},
	)
	r := newRunner(t, st)

	if err := r.Upgrade(ctx, ""); err != nil {
		t.Fatalf("Upgrade: %v", err)
	}

	docs := st.Dump("books")
	if docs[0]["title"] != "Dune" {
		t.Fatalf("doc 1 title changed: %v", docs[0])
	}
	if docs[1]["title"] != "untitled" {
		t.Fatalf("doc 2 title not backfilled: %v", docs[1])
	}
	for _, doc := range docs {
		if _, ok := doc["pages"]; ok {
			t.Fatalf("pages not dropped: %v", doc)
		}
	}

	statuses, err := r.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(statuses) != 3 {
		t.Fatalf("expected 3 statuses, got %v", statuses)
	}
	for _, s := range statuses {
		if !s.Applied {
			t.Fatalf("migration %q not applied", s.Name)
		}
	}
	assertSnapshot(t, st, schemaV3())
}

func TestUpgradeToTarget(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	st.Seed("books", bson.M{"_id": 1, "title": "Dune", "pages": 412})
	r := newRunner(t, st)

	if err := r.Upgrade(ctx, "0002_require_title"); err != nil {
		t.Fatalf("Upgrade: %v", err)
	}

	if _, ok := st.Dump("books")[0]["pages"]; !ok {
		t.Fatal("pages must survive an upgrade stopping before the drop")
	}
	statuses, err := r.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	want := map[string]bool{
		"0001_initial":       true,
		"0002_require_title": true,
		"0003_drop_pages":    false,
	}
	for _, s := range statuses {
		if s.Applied != want[s.Name] {
			t.Fatalf("migration %q applied=%v, want %v", s.Name, s.Applied, want[s.Name])
		}
	}
	assertSnapshot(t, st, schemaV2())
}

func TestUpgradeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	st.Seed("books", bson.M{"_id": 1})
	r := newRunner(t, st)

	if err := r.Upgrade(ctx, ""); err != nil {
		t.Fatalf("first Upgrade: %v", err)
	}
	before := st.Dump("books")
	if err := r.Upgrade(ctx, ""); err != nil {
		t.Fatalf("second Upgrade: %v", err)
	}
	after := st.Dump("books")
	if len(before) != len(after) {
		t.Fatalf("document count changed: %d -> %d", len(before), len(after))
	}
	for i := range before {
		if len(before[i]) != len(after[i]) {
			t.Fatalf("doc %d changed on re-run: %v -> %v", i, before[i], after[i])
		}
	}
}

func TestDowngradeToTarget(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	st.Seed("books", bson.M{"_id": 1, "title": "Dune", "pages": 412})
	r := newRunner(t, st)

	if err := r.Upgrade(ctx, ""); err != nil {
		t.Fatalf("Upgrade: %v", err)
	}
	if err := r.Downgrade(ctx, "0001_initial"); err != nil {
		t.Fatalf("Downgrade: %v", err)
	}

	// Dropping pages loses the values; reverting restores the required
	// field with its default.
	doc := st.Dump("books")[0]
	if doc["pages"] != 0 {
		t.Fatalf("pages not restored to default: %v", doc)
	}
	statuses, err := r.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	for _, s := range statuses {
		applied := s.Name == "0001_initial"
		if s.Applied != applied {
			t.Fatalf("migration %q applied=%v, want %v", s.Name, s.Applied, applied)
		}
	}
	assertSnapshot(t, st, schemaV1())
}

func TestDowngradeAllDropsCollection(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	st.Seed("books", bson.M{"_id": 1, "title": "Dune", "pages": 412})
	r := newRunner(t, st)

	if err := r.Upgrade(ctx, ""); err != nil {
		t.Fatalf("Upgrade: %v", err)
	}
	if err := r.Downgrade(ctx, ""); err != nil {
		t.Fatalf("Downgrade: %v", err)
	}

	if docs := st.Dump("books"); len(docs) != 0 {
		t.Fatalf("collection must be dropped by the initial migration's revert: %v", docs)
	}
	statuses, err := r.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	for _, s := range statuses {
		if s.Applied {
			t.Fatalf("migration %q still applied", s.Name)
		}
	}
	assertSnapshot(t, st, schema.New())
}

func TestUpgradeUnknownTarget(t *testing.T) {
	r := newRunner(t, memstore.New())
	if err := r.Upgrade(context.Background(), "0099_missing"); err == nil {
		t.Fatal("expected error for unknown target")
	}
}

func TestRunnerRejectsUnverifiableGraph(t *testing.T) {
	g := graph.New()
	if err := g.Add(&graph.Migration{Name: "a", Dependencies: []string{"ghost"}}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := New(memstore.New(), g); err == nil {
		t.Fatal("expected verification error")
	}
}
