package actions

import (
	"sort"

	"github.com/goliatone/go-schema-migrate/internal/domain"
	"github.com/goliatone/go-schema-migrate/internal/schema"
)

// ActionType describes one action variant to the chain synthesizer: its
// ordering priority and the detector that decides whether the variant applies
// to a given target. Exactly one of the detectors is set; document-scoped
// variants inspect whole document types, field-scoped ones a single field.
// Detectors compare the working schema (left, already patched by earlier
// actions of the chain) against the desired right-hand schema and return nil
// when the variant does not apply.
type ActionType struct {
	Name           string
	Priority       int
	DetectDocument func(docType string, left, right schema.Schema) Action
	DetectField    func(docType, field string, left, right schema.Schema) Action
}

// DefaultActionTypes returns the built-in action variants. Callers may append
// their own variants before handing the set to BuildChain.
func DefaultActionTypes() []ActionType {
	return []ActionType{
		{Name: NameCreateDocument, Priority: PriorityCreateDocument, DetectDocument: detectCreateDocument},
		{Name: NameCreateField, Priority: PriorityCreateField, DetectField: detectCreateField},
		{Name: NameAlterDocument, Priority: PriorityAlterDocument, DetectDocument: detectAlterDocument},
		{Name: NameAlterField, Priority: PriorityAlterField, DetectField: detectAlterField},
		{Name: NameDropField, Priority: PriorityDropField, DetectField: detectDropField},
		{Name: NameDropDocument, Priority: PriorityDropDocument, DetectDocument: detectDropDocument},
	}
}

// BuildChain synthesizes the action sequence transforming left into right.
// Action types run in priority order; each detected action's schema patch is
// applied to a working copy immediately, so later detectors see the schema as
// it will be when their actions run. The synthesis fails if the patched
// working schema does not converge to right.
func BuildChain(types []ActionType, left, right schema.Schema) ([]Action, error) {
	ordered, err := orderActionTypes(types)
	if err != nil {
		return nil, err
	}

	working := left.Clone()
	var chain []Action
	for _, at := range ordered {
		for _, docType := range schema.DocumentTypes(working, right) {
			var detected []Action
			if at.DetectDocument != nil {
				if action := at.DetectDocument(docType, working, right); action != nil {
					detected = append(detected, action)
				}
			} else {
				for _, field := range schema.FieldNames(working, right, docType) {
					if action := at.DetectField(docType, field, working, right); action != nil {
						detected = append(detected, action)
					}
				}
			}
			for _, action := range detected {
				edits, err := action.SchemaPatch(working)
				if err != nil {
					return nil, err
				}
				working, err = schema.Patch(edits, working)
				if err != nil {
					return nil, err
				}
				chain = append(chain, action)
			}
		}
	}

	if residual := schema.Diff(working, right); len(residual) > 0 {
		return nil, domain.ChainDivergedf("schemas did not converge after action synthesis: %s",
			schema.FormatEdits(residual))
	}
	return chain, nil
}

func orderActionTypes(types []ActionType) ([]ActionType, error) {
	if len(types) == 0 {
		return nil, domain.MigrationErrorf("chain synthesis needs at least one action type")
	}
	seen := map[string]bool{}
	for _, at := range types {
		if at.Name == "" {
			return nil, domain.MigrationErrorf("action type has no name")
		}
		if seen[at.Name] {
			return nil, domain.MigrationErrorf("duplicate action type %q", at.Name)
		}
		seen[at.Name] = true
		if (at.DetectDocument == nil) == (at.DetectField == nil) {
			return nil, domain.MigrationErrorf("action type %q must set exactly one detector", at.Name)
		}
	}
	ordered := append([]ActionType(nil), types...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Priority < ordered[j].Priority })
	return ordered, nil
}

func detectCreateDocument(docType string, left, right schema.Schema) Action {
	if left.Document(docType) != nil {
		return nil
	}
	doc := right.Document(docType)
	if doc == nil {
		return nil
	}
	return NewCreateDocument(docType, cloneParams(doc.Parameters))
}

func detectDropDocument(docType string, left, right schema.Schema) Action {
	doc := left.Document(docType)
	if doc == nil || right.Document(docType) != nil {
		return nil
	}
	return NewDropDocument(docType, cloneParams(doc.Parameters))
}

func detectAlterDocument(docType string, left, right schema.Schema) Action {
	ld := left.Document(docType)
	rd := right.Document(docType)
	if ld == nil || rd == nil {
		return nil
	}
	diffs := paramDiffs(ld.Parameters, rd.Parameters)
	if len(diffs) == 0 {
		return nil
	}
	return NewAlterDocument(docType, diffs)
}

func detectCreateField(docType, field string, left, right schema.Schema) Action {
	if left.Document(docType) == nil || right.Document(docType) == nil {
		return nil
	}
	if left.Field(docType, field) != nil {
		return nil
	}
	desc := right.Field(docType, field)
	if desc == nil {
		return nil
	}
	return NewCreateField(docType, field, desc.Clone())
}

func detectDropField(docType, field string, left, right schema.Schema) Action {
	if left.Document(docType) == nil || right.Document(docType) == nil {
		return nil
	}
	desc := left.Field(docType, field)
	if desc == nil || right.Field(docType, field) != nil {
		return nil
	}
	return NewDropField(docType, field, desc.Clone())
}

func detectAlterField(docType, field string, left, right schema.Schema) Action {
	ld := left.Field(docType, field)
	rd := right.Field(docType, field)
	if ld == nil || rd == nil {
		return nil
	}
	diffs := paramDiffs(ld, rd)
	if len(diffs) == 0 {
		return nil
	}
	// Handlers resolving nonconforming data fall back to the descriptor
	// default in force after the change.
	def := rd.Default()
	if def == nil {
		def = ld.Default()
	}
	for param, d := range diffs {
		d.Default = def
		diffs[param] = d
	}
	return NewAlterField(docType, field, diffs)
}

// paramDiffs computes per-parameter diffs between two parameter maps, using
// UNSET for parameters present on one side only.
func paramDiffs(left, right map[string]any) map[string]AlterDiff {
	diffs := map[string]AlterDiff{}
	for param, lv := range left {
		rv, ok := right[param]
		if !ok {
			diffs[param] = AlterDiff{Old: lv, New: schema.UNSET}
			continue
		}
		if !schema.ValuesEqual(lv, rv) {
			diffs[param] = AlterDiff{Old: lv, New: rv}
		}
	}
	for param, rv := range right {
		if _, ok := left[param]; !ok {
			diffs[param] = AlterDiff{Old: schema.UNSET, New: rv}
		}
	}
	return diffs
}

func cloneParams(params map[string]any) map[string]any {
	if params == nil {
		return nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}
