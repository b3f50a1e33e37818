// Package typeconv maps field-type changes to concrete store-mutation
// routines. Types form an explicit, data-driven hierarchy: every type names
// its parent, and the conversion matrix resolves missing entries through the
// nearest registered ancestor on each axis.
package typeconv

import (
	"fmt"

	"github.com/goliatone/go-schema-migrate/internal/domain"
)

// BaseTypeKey is the hierarchy root every field type descends from.
const BaseTypeKey = "BaseField"

// Well-known type keys. The set mirrors the document-mapper field classes
// the snapshots are written against.
const (
	TypeString           = "StringField"
	TypeURL              = "URLField"
	TypeEmail            = "EmailField"
	TypeInt              = "IntField"
	TypeLong             = "LongField"
	TypeFloat            = "FloatField"
	TypeDecimal          = "DecimalField"
	TypeBoolean          = "BooleanField"
	TypeDateTime         = "DateTimeField"
	TypeDate             = "DateField"
	TypeComplexDateTime  = "ComplexDateTimeField"
	TypeEmbeddedDocument = "EmbeddedDocumentField"
	TypeDynamic          = "DynamicField"
	TypeList             = "ListField"
	TypeSortedList       = "SortedListField"
	TypeEmbeddedDocList  = "EmbeddedDocumentListField"
	TypeDict             = "DictField"
	TypeMap              = "MapField"
	TypeReference        = "ReferenceField"
	TypeCachedReference  = "CachedReferenceField"
	TypeLazyReference    = "LazyReferenceField"
	TypeBinary           = "BinaryField"
	TypeObjectID         = "ObjectIdField"
	TypeUUID             = "UUIDField"
	TypeSequence         = "SequenceField"
)

// Type describes one registered field type.
type Type struct {
	// Key identifies the type in descriptors (type_key).
	Key string
	// Parent is the key of the nearest ancestor; empty only for the base.
	Parent string
	// Extras lists descriptor parameters this type allows beyond the fixed
	// key set.
	Extras []string
}

// Registry is the immutable set of known field types.
type Registry struct {
	types map[string]Type
}

// NewRegistry builds a registry, rejecting duplicate keys and unknown
// parents.
func NewRegistry(types []Type) (*Registry, error) {
	reg := &Registry{types: make(map[string]Type, len(types))}
	for _, t := range types {
		if t.Key == "" {
			return nil, fmt.Errorf("typeconv: type with empty key")
		}
		if _, ok := reg.types[t.Key]; ok {
			return nil, fmt.Errorf("typeconv: duplicate type key %q", t.Key)
		}
		reg.types[t.Key] = t
	}
	for _, t := range reg.types {
		if t.Key == BaseTypeKey {
			if t.Parent != "" {
				return nil, fmt.Errorf("typeconv: base type cannot have a parent")
			}
			continue
		}
		if t.Parent == "" {
			return nil, fmt.Errorf("typeconv: type %q has no parent", t.Key)
		}
		if _, ok := reg.types[t.Parent]; !ok {
			return nil, fmt.Errorf("typeconv: type %q names unknown parent %q", t.Key, t.Parent)
		}
	}
	if _, ok := reg.types[BaseTypeKey]; !ok {
		return nil, fmt.Errorf("typeconv: registry must include %q", BaseTypeKey)
	}
	return reg, nil
}

// Lookup returns the type for a key.
func (r *Registry) Lookup(key string) (Type, bool) {
	t, ok := r.types[key]
	return t, ok
}

// Keys returns the number of registered types.
func (r *Registry) Len() int { return len(r.types) }

// Extras returns the extra descriptor parameters a type key allows. Unknown
// keys allow none.
func (r *Registry) Extras(key string) []string {
	if t, ok := r.types[key]; ok {
		return t.Extras
	}
	return nil
}

// ResolveKey maps a descriptor type_key to a registered type, falling back
// to the base type for unknown keys, mirroring how unknown historical field
// classes are treated as plain base fields.
func (r *Registry) ResolveKey(key string) Type {
	if t, ok := r.types[key]; ok {
		return t
	}
	return r.types[BaseTypeKey]
}

// MustResolveKey is ResolveKey for destination types, where an unknown key
// is a hard failure: the engine cannot convert into a type it knows nothing
// about.
func (r *Registry) MustResolveKey(key string) (Type, error) {
	if t, ok := r.types[key]; ok {
		return t, nil
	}
	return Type{}, domain.MigrationErrorf("unknown destination field type %q", key)
}

// Ancestors returns the ancestor chain of a key, nearest first, ending at
// the base type. The key itself is not included.
func (r *Registry) Ancestors(key string) []string {
	var chain []string
	t, ok := r.types[key]
	if !ok {
		return chain
	}
	for t.Parent != "" {
		chain = append(chain, t.Parent)
		next, ok := r.types[t.Parent]
		if !ok {
			break
		}
		t = next
	}
	return chain
}

// DefaultRegistry returns the built-in type hierarchy.
func DefaultRegistry() *Registry {
	stringExtras := []string{"max_length", "min_length", "regex"}
	numberExtras := []string{"min_value", "max_value"}
	reg, err := NewRegistry([]Type{
		{Key: BaseTypeKey},
		{Key: TypeString, Parent: BaseTypeKey, Extras: stringExtras},
		{Key: TypeURL, Parent: TypeString, Extras: []string{"url_regex", "schemes"}},
		{Key: TypeEmail, Parent: TypeURL, Extras: []string{"domain_whitelist", "allow_utf8_user", "allow_ip_domain"}},
		{Key: TypeInt, Parent: BaseTypeKey, Extras: numberExtras},
		{Key: TypeLong, Parent: BaseTypeKey, Extras: numberExtras},
		{Key: TypeFloat, Parent: BaseTypeKey, Extras: numberExtras},
		{Key: TypeDecimal, Parent: BaseTypeKey, Extras: []string{"min_value", "max_value", "precision", "rounding", "force_string"}},
		{Key: TypeBoolean, Parent: BaseTypeKey},
		{Key: TypeDateTime, Parent: BaseTypeKey},
		{Key: TypeDate, Parent: TypeDateTime},
		{Key: TypeComplexDateTime, Parent: TypeDateTime, Extras: []string{"separator"}},
		{Key: TypeEmbeddedDocument, Parent: BaseTypeKey, Extras: []string{"target_doctype"}},
		{Key: TypeDynamic, Parent: BaseTypeKey},
		{Key: TypeList, Parent: BaseTypeKey, Extras: []string{"item_type", "max_length"}},
		{Key: TypeSortedList, Parent: TypeList, Extras: []string{"ordering", "reverse"}},
		{Key: TypeEmbeddedDocList, Parent: TypeList, Extras: []string{"target_doctype"}},
		{Key: TypeDict, Parent: BaseTypeKey},
		{Key: TypeMap, Parent: TypeDict, Extras: []string{"value_type"}},
		{Key: TypeReference, Parent: BaseTypeKey, Extras: []string{"target_doctype", "dbref"}},
		{Key: TypeCachedReference, Parent: BaseTypeKey, Extras: []string{"target_doctype", "fields"}},
		{Key: TypeLazyReference, Parent: BaseTypeKey, Extras: []string{"target_doctype", "dbref", "passthrough"}},
		{Key: TypeBinary, Parent: BaseTypeKey, Extras: []string{"max_bytes"}},
		{Key: TypeObjectID, Parent: BaseTypeKey},
		{Key: TypeUUID, Parent: BaseTypeKey, Extras: []string{"binary"}},
		{Key: TypeSequence, Parent: BaseTypeKey, Extras: []string{"collection_name", "sequence_name", "value_decorator"}},
	})
	if err != nil {
		panic(err)
	}
	return reg
}
