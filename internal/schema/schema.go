package schema

import (
	"sort"
	"strings"

	"github.com/goliatone/go-schema-migrate/internal/domain"
)

// EmbeddedPrefix marks document types that describe embedded sub-documents
// rather than store-backed collections. Embedded types must be processed
// before collection types in any full-schema pass because field descriptors
// may reference them.
const EmbeddedPrefix = "~"

// Fixed descriptor keys every field carries regardless of its type.
const (
	KeyDBField    = "db_field"
	KeyRequired   = "required"
	KeyDefault    = "default"
	KeyUnique     = "unique"
	KeyUniqueWith = "unique_with"
	KeyPrimaryKey = "primary_key"
	KeyChoices    = "choices"
	KeyNull       = "null"
	KeySparse     = "sparse"
	KeyTypeKey    = "type_key"
)

// CommonKeys lists the fixed descriptor key set in a stable order.
var CommonKeys = []string{
	KeyDBField,
	KeyRequired,
	KeyDefault,
	KeyUnique,
	KeyUniqueWith,
	KeyPrimaryKey,
	KeyChoices,
	KeyNull,
	KeySparse,
	KeyTypeKey,
}

// ParamCollection is the document-level parameter naming the backing
// collection for non-embedded document types.
const ParamCollection = "collection"

type unset struct{}

func (unset) String() string { return "UNSET" }

// UNSET distinguishes "parameter absent" from "parameter is null" in
// descriptors and alter diffs.
var UNSET = unset{}

// Field is one field descriptor: parameter name to value. The fixed key set
// is in CommonKeys; field types may add extra parameters.
type Field map[string]any

// DBField returns the store-level field name, empty when missing.
func (f Field) DBField() string {
	name, _ := f[KeyDBField].(string)
	return name
}

// TypeKey returns the field type identifier, empty when missing.
func (f Field) TypeKey() string {
	key, _ := f[KeyTypeKey].(string)
	return key
}

// Required reports whether the field is marked required.
func (f Field) Required() bool {
	required, _ := f[KeyRequired].(bool)
	return required
}

// Default returns the descriptor default value, nil when absent.
func (f Field) Default() any {
	return f[KeyDefault]
}

// Clone returns a shallow copy of the descriptor.
func (f Field) Clone() Field {
	if f == nil {
		return nil
	}
	copied := make(Field, len(f))
	for k, v := range f {
		copied[k] = v
	}
	return copied
}

// Document holds the descriptors of one document type plus document-level
// parameters such as the backing collection name.
type Document struct {
	Parameters map[string]any   `json:"parameters,omitempty"`
	Fields     map[string]Field `json:"fields"`
}

// NewDocument returns an empty document with allocated maps.
func NewDocument() *Document {
	return &Document{
		Parameters: map[string]any{},
		Fields:     map[string]Field{},
	}
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	copied := NewDocument()
	for k, v := range d.Parameters {
		copied.Parameters[k] = v
	}
	for name, field := range d.Fields {
		copied.Fields[name] = field.Clone()
	}
	return copied
}

// Schema maps document-type names to their documents. Value-like: synthesis
// and execution always work on copies advanced via Patch, never on shared
// mutable state.
type Schema map[string]*Document

// New returns an empty schema.
func New() Schema {
	return Schema{}
}

// Clone returns a deep copy of the schema.
func (s Schema) Clone() Schema {
	copied := make(Schema, len(s))
	for name, doc := range s {
		copied[name] = doc.Clone()
	}
	return copied
}

// Document returns the document for a type name, nil when absent.
func (s Schema) Document(docType string) *Document {
	return s[docType]
}

// Field returns one descriptor, nil when the document or field is absent.
func (s Schema) Field(docType, field string) Field {
	doc := s[docType]
	if doc == nil {
		return nil
	}
	return doc.Fields[field]
}

// IsEmbedded reports whether a document-type name denotes an embedded
// sub-document.
func IsEmbedded(docType string) bool {
	return strings.HasPrefix(docType, EmbeddedPrefix)
}

// CollectionName resolves the backing collection for a document type. It
// prefers the document's collection parameter and falls back to a snake_case
// rendering of the type name. Embedded types have no collection.
func (s Schema) CollectionName(docType string) string {
	if IsEmbedded(docType) {
		return ""
	}
	if doc := s[docType]; doc != nil {
		if name, ok := doc.Parameters[ParamCollection].(string); ok && name != "" {
			return name
		}
	}
	return SnakeCase(docType)
}

// SnakeCase converts a document-type name to the default collection naming.
func SnakeCase(name string) string {
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r - 'A' + 'a')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// DocumentTypes enumerates every document type present in either schema,
// embedded types first, each group in sorted order. Synthesis relies on this
// ordering: embedded types must be normalized before the collections whose
// fields reference them.
func DocumentTypes(left, right Schema) []string {
	seen := map[string]struct{}{}
	var embedded, collections []string
	collect := func(s Schema) {
		for name := range s {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			if IsEmbedded(name) {
				embedded = append(embedded, name)
			} else {
				collections = append(collections, name)
			}
		}
	}
	collect(left)
	collect(right)
	sort.Strings(embedded)
	sort.Strings(collections)
	return append(embedded, collections...)
}

// FieldNames enumerates the union of field names for one document type across
// both schemas, sorted.
func FieldNames(left, right Schema, docType string) []string {
	seen := map[string]struct{}{}
	var names []string
	collect := func(s Schema) {
		doc := s[docType]
		if doc == nil {
			return
		}
		for name := range doc.Fields {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	collect(left)
	collect(right)
	sort.Strings(names)
	return names
}

// MustField returns the descriptor or a schema error naming what is missing.
func (s Schema) MustField(docType, field string) (Field, error) {
	doc := s[docType]
	if doc == nil {
		return nil, domain.SchemaErrorf("document type %q is not in the schema", docType)
	}
	desc, ok := doc.Fields[field]
	if !ok {
		return nil, domain.SchemaErrorf("field %q of document type %q is not in the schema", field, docType)
	}
	return desc, nil
}
