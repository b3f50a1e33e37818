package typeconv

import (
	"fmt"

	"github.com/goliatone/go-schema-migrate/internal/domain"
)

type pair struct {
	from string
	to   string
}

// Entry is one author-supplied matrix cell.
type Entry struct {
	From string
	To   string
	Conv Converter
}

// Matrix maps (source type, destination type) pairs to converters.
// Resolution falls back to the nearest registered ancestor on each axis, so
// a subtype without explicit entries inherits its parent's row and column.
type Matrix struct {
	reg     *Registry
	entries map[pair]Converter
}

// NewMatrix builds a matrix from author-supplied entries over a registry.
// After the author entries, every registered type receives its implicit
// entries: identity (same type), universal boolean coercion, drop-field when
// the destination is the synthetic sequence type, and a leave-as-is fallback
// toward the base type. The implicit entries overwrite author cells, which
// mirrors how the defaults are meant to be uniform across all types.
func NewMatrix(reg *Registry, entries []Entry) (*Matrix, error) {
	if reg == nil {
		return nil, fmt.Errorf("typeconv: matrix requires a type registry")
	}
	m := &Matrix{reg: reg, entries: make(map[pair]Converter, len(entries))}
	for _, e := range entries {
		if _, ok := reg.Lookup(e.From); !ok {
			return nil, fmt.Errorf("typeconv: matrix entry names unknown source type %q", e.From)
		}
		if _, ok := reg.Lookup(e.To); !ok {
			return nil, fmt.Errorf("typeconv: matrix entry names unknown destination type %q", e.To)
		}
		if e.Conv.IsZero() {
			return nil, fmt.Errorf("typeconv: matrix entry %q -> %q has no converter", e.From, e.To)
		}
		m.entries[pair{e.From, e.To}] = e.Conv
	}

	for key := range reg.types {
		m.entries[pair{key, BaseTypeKey}] = Nothing
		m.entries[pair{key, TypeBoolean}] = ToBool
		m.entries[pair{key, TypeSequence}] = DropField
		m.entries[pair{key, key}] = Nothing
	}
	return m, nil
}

// Resolve finds the converter for a (source, destination) type pair.
// Lookup order: exact pair; exact source with nearest-ancestor destination;
// nearest-ancestor source with exact destination; ancestors on both axes.
func (m *Matrix) Resolve(source, dest string) (Converter, error) {
	srcChain := append([]string{source}, m.reg.Ancestors(source)...)
	destChain := append([]string{dest}, m.reg.Ancestors(dest)...)

	if conv, ok := m.entries[pair{source, dest}]; ok {
		return conv, nil
	}
	for _, d := range destChain[1:] {
		if conv, ok := m.entries[pair{source, d}]; ok {
			return conv, nil
		}
	}
	for _, s := range srcChain[1:] {
		if conv, ok := m.entries[pair{s, dest}]; ok {
			return conv, nil
		}
	}
	for _, s := range srcChain[1:] {
		for _, d := range destChain[1:] {
			if conv, ok := m.entries[pair{s, d}]; ok {
				return conv, nil
			}
		}
	}
	return Converter{}, domain.ConversionUnavailablef("no converter registered for %q -> %q", source, dest)
}

// DefaultMatrix builds the built-in conversion matrix over the default
// registry.
func DefaultMatrix(reg *Registry) (*Matrix, error) {
	var entries []Entry

	commonRow := func(from string) []Entry {
		return []Entry{
			{from, TypeString, ToString},
			{from, TypeInt, ToInt},
			{from, TypeLong, ToLong},
			{from, TypeFloat, ToDouble},
			{from, TypeDecimal, ToDecimal},
			{from, TypeBoolean, ToBool},
			{from, TypeDateTime, ToDate},
			{from, TypeList, ItemToList},
			{from, TypeEmbeddedDocList, Deny},
		}
	}
	objectIDRow := func(from string) []Entry {
		return []Entry{
			{from, TypeString, ToString},
			{from, TypeEmbeddedDocument, Deny},
			{from, TypeList, ItemToList},
			{from, TypeEmbeddedDocList, Deny},
			{from, TypeReference, Nothing},
			{from, TypeLazyReference, Nothing},
			{from, TypeObjectID, Nothing},
		}
	}

	for _, from := range []string{
		TypeString, TypeInt, TypeLong, TypeFloat, TypeDecimal,
		TypeBoolean, TypeDateTime, TypeDate,
	} {
		entries = append(entries, commonRow(from)...)
	}
	entries = append(entries,
		Entry{TypeString, TypeObjectID, ToObjectID},
		Entry{TypeString, TypeReference, ToObjectID},
		Entry{TypeString, TypeLazyReference, ToObjectID},
		Entry{TypeString, TypeUUID, ToUUID},

		Entry{TypeEmbeddedDocument, TypeDict, Nothing},
		Entry{TypeEmbeddedDocument, TypeReference, Deny},
		Entry{TypeEmbeddedDocument, TypeList, ItemToList},
		Entry{TypeEmbeddedDocument, TypeEmbeddedDocList, ItemToList},

		Entry{TypeDynamic, BaseTypeKey, Nothing},
		Entry{TypeDynamic, TypeUUID, ToUUID},

		Entry{TypeList, TypeEmbeddedDocument, Deny},
		Entry{TypeList, TypeEmbeddedDocList, Deny},
		Entry{TypeList, TypeDict, ExtractFromList},

		Entry{TypeEmbeddedDocList, TypeEmbeddedDocument, Nothing},
		Entry{TypeEmbeddedDocList, TypeList, Nothing},
		Entry{TypeEmbeddedDocList, TypeDict, ExtractFromList},

		Entry{TypeDict, TypeEmbeddedDocument, Deny},
		Entry{TypeDict, TypeList, ItemToList},
		Entry{TypeDict, TypeEmbeddedDocList, Deny},

		Entry{TypeBinary, TypeUUID, ToUUID},

		Entry{TypeSequence, BaseTypeKey, Nothing},
	)
	for _, from := range []string{TypeReference, TypeLazyReference, TypeObjectID} {
		entries = append(entries, objectIDRow(from)...)
	}

	return NewMatrix(reg, entries)
}
