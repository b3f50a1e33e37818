// Package actions implements the polymorphic schema-change operations and
// the chain synthesizer that derives them from two schema snapshots.
package actions

import (
	"fmt"

	"github.com/goliatone/go-schema-migrate/internal/domain"
	"github.com/goliatone/go-schema-migrate/internal/schema"
)

// AlterDiff describes a change to exactly one descriptor parameter. Old and
// New are never equal; schema.UNSET marks a parameter that is absent on one
// side. Default optionally resolves nonconforming existing data and Policy
// picks the error policy for that resolution.
type AlterDiff struct {
	Old     any
	New     any
	Default any
	Policy  domain.Policy
}

// NewAlterDiff builds a diff, rejecting equal old and new values.
func NewAlterDiff(old, new any) (AlterDiff, error) {
	if schema.ValuesEqual(old, new) {
		return AlterDiff{}, domain.MigrationErrorf("alter diff has equal old and new values (%v)", old)
	}
	return AlterDiff{Old: old, New: new}, nil
}

// Swap returns the diff describing the reverse change. Default and Policy
// carry over: they describe how to resolve nonconforming data in either
// direction.
func (d AlterDiff) Swap() AlterDiff {
	return AlterDiff{Old: d.New, New: d.Old, Default: d.Default, Policy: d.Policy}
}

func (d AlterDiff) String() string {
	return fmt.Sprintf("%v -> %v", d.Old, d.New)
}

// OldValue returns Old with UNSET normalized to nil, for handlers where an
// absent parameter is equivalent to an unset one.
func (d AlterDiff) OldValue() any {
	if schema.ValuesEqual(d.Old, schema.UNSET) {
		return nil
	}
	return d.Old
}

// NewValue is OldValue for the new side.
func (d AlterDiff) NewValue() any {
	if schema.ValuesEqual(d.New, schema.UNSET) {
		return nil
	}
	return d.New
}

type diffKind int

const (
	kindAny diffKind = iota
	kindString
	kindBool
	kindList
)

// check validates the diff against a handler's expectations, mirroring the
// precondition set every parameter handler shares: old != new (guaranteed at
// construction but re-checked for deserialized diffs), UNSET only where
// allowed, and value types matching the parameter.
func (d AlterDiff) check(dbField string, canBeUnset, canBeNil bool, kind diffKind) error {
	if schema.ValuesEqual(d.Old, d.New) {
		return domain.MigrationErrorf("diff of field %q has equal old and new values", dbField)
	}
	oldUnset := schema.ValuesEqual(d.Old, schema.UNSET)
	newUnset := schema.ValuesEqual(d.New, schema.UNSET)
	if !canBeUnset && (oldUnset || newUnset) {
		return domain.MigrationErrorf("field %q cannot have UNSET diff values", dbField)
	}
	if !canBeNil && (!oldUnset && d.Old == nil || !newUnset && d.New == nil) {
		return domain.MigrationErrorf("field %q cannot have null diff values", dbField)
	}
	for _, value := range []any{d.Old, d.New} {
		if value == nil || schema.ValuesEqual(value, schema.UNSET) {
			continue
		}
		if err := checkKind(dbField, value, kind); err != nil {
			return err
		}
	}
	return nil
}

func checkKind(dbField string, value any, kind diffKind) error {
	switch kind {
	case kindString:
		if _, ok := value.(string); !ok {
			return domain.MigrationErrorf("field %q diff values must be strings, got %v", dbField, value)
		}
	case kindBool:
		if _, ok := value.(bool); !ok {
			return domain.MigrationErrorf("field %q diff values must be booleans, got %v", dbField, value)
		}
	case kindList:
		if _, ok := asSlice(value); !ok {
			return domain.MigrationErrorf("field %q diff values must be sequences, got %v", dbField, value)
		}
	}
	return nil
}

func containsValue(values []any, want any) bool {
	for _, v := range values {
		if schema.ValuesEqual(v, want) {
			return true
		}
	}
	return false
}

func asSlice(value any) ([]any, bool) {
	switch v := value.(type) {
	case []any:
		return v, true
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}
