package schema

import (
	"errors"
	"testing"

	"github.com/goliatone/go-schema-migrate/internal/domain"
)

func TestCollectionNamePrefersParameter(t *testing.T) {
	s := sampleSchema()
	if got := s.CollectionName("Book"); got != "book" {
		t.Fatalf("expected %q, got %q", "book", got)
	}
	delete(s["Book"].Parameters, ParamCollection)
	if got := s.CollectionName("Book"); got != "book" {
		t.Fatalf("expected snake_case fallback, got %q", got)
	}
	if got := s.CollectionName("~Author"); got != "" {
		t.Fatalf("embedded types have no collection, got %q", got)
	}
}

func TestSnakeCase(t *testing.T) {
	cases := map[string]string{
		"Book":        "book",
		"Schema1Doc1": "schema1_doc1",
		"BookAuthor":  "book_author",
		"item":        "item",
	}
	for in, want := range cases {
		if got := SnakeCase(in); got != want {
			t.Fatalf("SnakeCase(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestValidateFieldRejectsMissingDBField(t *testing.T) {
	desc := Field{KeyTypeKey: "StringField"}
	err := ValidateField("Book", "title", desc, nil)
	if err == nil {
		t.Fatal("expected error for missing db_field")
	}
	if !errors.Is(err, domain.ErrSchema) {
		t.Fatalf("expected schema error, got %v", err)
	}
}

func TestValidateFieldRejectsUnknownKeys(t *testing.T) {
	desc := Field{
		KeyDBField: "title",
		KeyTypeKey: "StringField",
		"surprise": 1,
	}
	if err := ValidateField("Book", "title", desc, nil); err == nil {
		t.Fatal("expected error for unknown descriptor key")
	}
}

func TestValidateFieldAllowsDeclaredExtras(t *testing.T) {
	desc := Field{
		KeyDBField:   "title",
		KeyTypeKey:   "StringField",
		"max_length": 80,
	}
	if err := ValidateField("Book", "title", desc, []string{"max_length", "min_length", "regex"}); err != nil {
		t.Fatalf("expected extras to be allowed, got %v", err)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := sampleSchema()
	data, err := MarshalSnapshot(s)
	if err != nil {
		t.Fatalf("MarshalSnapshot returned error: %v", err)
	}
	decoded, err := UnmarshalSnapshot(data)
	if err != nil {
		t.Fatalf("UnmarshalSnapshot returned error: %v", err)
	}
	if !Equal(s, decoded) {
		t.Fatalf("snapshot round trip diverged: %s", FormatEdits(Diff(s, decoded)))
	}
}

func TestUnmarshalSnapshotRejectsMissingDBField(t *testing.T) {
	payload := `{"Book": {"fields": {"title": {"type_key": "StringField"}}}}`
	if _, err := UnmarshalSnapshot([]byte(payload)); err == nil {
		t.Fatal("expected error for descriptor without db_field")
	}
}

func TestUnmarshalSnapshotRejectsWrongShape(t *testing.T) {
	payload := `{"Book": {"title": {"db_field": "title"}}}`
	if _, err := UnmarshalSnapshot([]byte(payload)); err == nil {
		t.Fatal("expected error for snapshot without fields map")
	}
}
