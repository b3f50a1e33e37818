package schema

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/goliatone/go-schema-migrate/internal/domain"
)

// ExtrasFunc reports the extra descriptor parameters a field type allows on
// top of the fixed key set. A nil func allows no extras.
type ExtrasFunc func(typeKey string) []string

// Validate checks every descriptor in the schema: the fixed key set must be
// respected, db_field must be a non-empty string, and keys outside the fixed
// set are rejected unless declared by the field's type.
func Validate(s Schema, extras ExtrasFunc) error {
	for _, docType := range DocumentTypes(s, nil) {
		doc := s[docType]
		if doc == nil {
			return domain.SchemaErrorf("document type %q has no definition", docType)
		}
		for _, name := range FieldNames(s, nil, docType) {
			desc := doc.Fields[name]
			var allowed []string
			if extras != nil {
				allowed = extras(desc.TypeKey())
			}
			if err := ValidateField(docType, name, desc, allowed); err != nil {
				return err
			}
		}
	}
	return nil
}

// ValidateField checks one descriptor against the fixed key set plus the
// given extra parameters.
func ValidateField(docType, name string, desc Field, extras []string) error {
	if desc == nil {
		return domain.SchemaErrorf("field %q of document type %q has no descriptor", name, docType)
	}

	keys := make([]*validation.KeyRules, 0, len(CommonKeys)+len(extras))
	keys = append(keys, validation.Key(KeyDBField, validation.Required, validation.By(stringNotEmpty)))
	for _, common := range CommonKeys {
		if common == KeyDBField {
			continue
		}
		keys = append(keys, validation.Key(common).Optional())
	}
	for _, extra := range extras {
		keys = append(keys, validation.Key(extra).Optional())
	}

	if err := validation.Validate(map[string]any(desc), validation.Map(keys...)); err != nil {
		return domain.SchemaErrorf("field %q of document type %q: %v", name, docType, err)
	}
	return nil
}

func stringNotEmpty(value any) error {
	name, ok := value.(string)
	if !ok || name == "" {
		return validation.NewError("validation_db_field", "must be a non-empty string")
	}
	return nil
}
