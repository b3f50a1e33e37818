package schema

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/goliatone/go-schema-migrate/internal/domain"
)

// EditOp identifies one elementary edit kind.
type EditOp string

const (
	EditAdd    EditOp = "add"
	EditRemove EditOp = "remove"
	EditChange EditOp = "change"
)

// Edit is one elementary schema edit. The target is addressed by document
// type, optional field name, and optional parameter name:
//
//	Doc only               - whole document type added/removed
//	Doc+Param              - one document-level parameter
//	Doc+Field              - whole field descriptor added/removed
//	Doc+Field+Param        - one descriptor parameter
type Edit struct {
	Op    EditOp `json:"op"`
	Doc   string `json:"doc"`
	Field string `json:"field,omitempty"`
	Param string `json:"param,omitempty"`
	Old   any    `json:"old,omitempty"`
	New   any    `json:"new,omitempty"`
}

func (e Edit) String() string {
	target := e.Doc
	if e.Field != "" {
		target += "." + e.Field
	}
	if e.Param != "" {
		target += "." + e.Param
	}
	switch e.Op {
	case EditAdd:
		return fmt.Sprintf("add %s = %v", target, e.New)
	case EditRemove:
		return fmt.Sprintf("remove %s (was %v)", target, e.Old)
	default:
		return fmt.Sprintf("change %s: %v -> %v", target, e.Old, e.New)
	}
}

// FormatEdits renders an edit list for error reporting.
func FormatEdits(edits []Edit) string {
	parts := make([]string, len(edits))
	for i, e := range edits {
		parts[i] = e.String()
	}
	return strings.Join(parts, "; ")
}

// Diff produces the ordered elementary edits that transform a into b.
// Enumeration is stable: document types, fields, and parameters are visited
// in sorted order.
func Diff(a, b Schema) []Edit {
	var edits []Edit
	for _, docType := range sortedKeyUnion(docKeys(a), docKeys(b)) {
		left, inLeft := a[docType]
		right, inRight := b[docType]
		switch {
		case !inLeft:
			edits = append(edits, Edit{Op: EditAdd, Doc: docType, New: right.Clone()})
		case !inRight:
			edits = append(edits, Edit{Op: EditRemove, Doc: docType, Old: left.Clone()})
		default:
			edits = append(edits, diffParams(docType, "", left.Parameters, right.Parameters)...)
			edits = append(edits, diffFields(docType, left, right)...)
		}
	}
	return edits
}

func diffFields(docType string, left, right *Document) []Edit {
	var edits []Edit
	for _, field := range sortedKeyUnion(fieldKeys(left), fieldKeys(right)) {
		lf, inLeft := left.Fields[field]
		rf, inRight := right.Fields[field]
		switch {
		case !inLeft:
			edits = append(edits, Edit{Op: EditAdd, Doc: docType, Field: field, New: rf.Clone()})
		case !inRight:
			edits = append(edits, Edit{Op: EditRemove, Doc: docType, Field: field, Old: lf.Clone()})
		default:
			edits = append(edits, diffParams(docType, field, lf, rf)...)
		}
	}
	return edits
}

func diffParams(docType, field string, left, right map[string]any) []Edit {
	var edits []Edit
	for _, param := range sortedKeyUnion(paramKeys(left), paramKeys(right)) {
		lv, inLeft := left[param]
		rv, inRight := right[param]
		switch {
		case !inLeft:
			edits = append(edits, Edit{Op: EditAdd, Doc: docType, Field: field, Param: param, New: rv})
		case !inRight:
			edits = append(edits, Edit{Op: EditRemove, Doc: docType, Field: field, Param: param, Old: lv})
		case !ValuesEqual(lv, rv):
			edits = append(edits, Edit{Op: EditChange, Doc: docType, Field: field, Param: param, Old: lv, New: rv})
		}
	}
	return edits
}

// Patch applies edits to a copy of s and returns the result. The input is
// never mutated. Inconsistent edits (adding an existing key, removing a
// missing one) are schema errors.
func Patch(edits []Edit, s Schema) (Schema, error) {
	out := s.Clone()
	for _, e := range edits {
		if err := applyEdit(out, e); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Reverse returns the edits that undo the given edit sequence, in reverse
// order.
func Reverse(edits []Edit) []Edit {
	out := make([]Edit, 0, len(edits))
	for i := len(edits) - 1; i >= 0; i-- {
		e := edits[i]
		switch e.Op {
		case EditAdd:
			out = append(out, Edit{Op: EditRemove, Doc: e.Doc, Field: e.Field, Param: e.Param, Old: e.New})
		case EditRemove:
			out = append(out, Edit{Op: EditAdd, Doc: e.Doc, Field: e.Field, Param: e.Param, New: e.Old})
		default:
			out = append(out, Edit{Op: EditChange, Doc: e.Doc, Field: e.Field, Param: e.Param, Old: e.New, New: e.Old})
		}
	}
	return out
}

func applyEdit(s Schema, e Edit) error {
	switch {
	case e.Field == "" && e.Param == "":
		return applyDocEdit(s, e)
	case e.Field == "":
		return applyDocParamEdit(s, e)
	case e.Param == "":
		return applyFieldEdit(s, e)
	default:
		return applyFieldParamEdit(s, e)
	}
}

func applyDocEdit(s Schema, e Edit) error {
	switch e.Op {
	case EditAdd:
		if _, ok := s[e.Doc]; ok {
			return domain.SchemaErrorf("patch: document type %q already exists", e.Doc)
		}
		doc, ok := e.New.(*Document)
		if !ok {
			return domain.SchemaErrorf("patch: document edit for %q does not carry a document", e.Doc)
		}
		s[e.Doc] = doc.Clone()
	case EditRemove:
		if _, ok := s[e.Doc]; !ok {
			return domain.SchemaErrorf("patch: document type %q is not in the schema", e.Doc)
		}
		delete(s, e.Doc)
	default:
		return domain.SchemaErrorf("patch: whole-document change for %q is not an elementary edit", e.Doc)
	}
	return nil
}

func applyDocParamEdit(s Schema, e Edit) error {
	doc, ok := s[e.Doc]
	if !ok {
		return domain.SchemaErrorf("patch: document type %q is not in the schema", e.Doc)
	}
	if doc.Parameters == nil {
		doc.Parameters = map[string]any{}
	}
	return applyParamEdit(doc.Parameters, e)
}

func applyFieldEdit(s Schema, e Edit) error {
	doc, ok := s[e.Doc]
	if !ok {
		return domain.SchemaErrorf("patch: document type %q is not in the schema", e.Doc)
	}
	switch e.Op {
	case EditAdd:
		if _, exists := doc.Fields[e.Field]; exists {
			return domain.SchemaErrorf("patch: field %q of %q already exists", e.Field, e.Doc)
		}
		desc, ok := e.New.(Field)
		if !ok {
			return domain.SchemaErrorf("patch: field edit for %q.%q does not carry a descriptor", e.Doc, e.Field)
		}
		if doc.Fields == nil {
			doc.Fields = map[string]Field{}
		}
		doc.Fields[e.Field] = desc.Clone()
	case EditRemove:
		if _, exists := doc.Fields[e.Field]; !exists {
			return domain.SchemaErrorf("patch: field %q of %q is not in the schema", e.Field, e.Doc)
		}
		delete(doc.Fields, e.Field)
	default:
		return domain.SchemaErrorf("patch: whole-field change for %q.%q is not an elementary edit", e.Doc, e.Field)
	}
	return nil
}

func applyFieldParamEdit(s Schema, e Edit) error {
	desc, err := s.MustField(e.Doc, e.Field)
	if err != nil {
		return err
	}
	return applyParamEdit(desc, e)
}

func applyParamEdit(params map[string]any, e Edit) error {
	target := e.Doc
	if e.Field != "" {
		target += "." + e.Field
	}
	switch e.Op {
	case EditAdd:
		if _, exists := params[e.Param]; exists {
			return domain.SchemaErrorf("patch: parameter %q of %s already exists", e.Param, target)
		}
		params[e.Param] = e.New
	case EditRemove:
		if _, exists := params[e.Param]; !exists {
			return domain.SchemaErrorf("patch: parameter %q of %s is not in the schema", e.Param, target)
		}
		delete(params, e.Param)
	default:
		if _, exists := params[e.Param]; !exists {
			return domain.SchemaErrorf("patch: parameter %q of %s is not in the schema", e.Param, target)
		}
		params[e.Param] = e.New
	}
	return nil
}

// Equal reports structural equality: insertion order is ignored, keys and
// values are compared deeply.
func Equal(a, b Schema) bool {
	return len(Diff(a, b)) == 0
}

// ValuesEqual compares two parameter values deeply, across numeric and
// container representations. UNSET only equals UNSET.
func ValuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	// Snapshots round-trip through JSON, which turns every number into a
	// float64 and every sequence into []any. A schema built in Go must
	// still compare equal to its persisted form, so numbers are compared
	// by value and containers element-wise.
	if af, ok := asFloat64(a); ok {
		bf, bok := asFloat64(b)
		return bok && af == bf
	}
	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	switch ra.Kind() {
	case reflect.Slice, reflect.Array:
		if rb.Kind() != reflect.Slice && rb.Kind() != reflect.Array {
			return false
		}
		if ra.Len() != rb.Len() {
			return false
		}
		for i := 0; i < ra.Len(); i++ {
			if !ValuesEqual(ra.Index(i).Interface(), rb.Index(i).Interface()) {
				return false
			}
		}
		return true
	case reflect.Map:
		if rb.Kind() != reflect.Map || ra.Len() != rb.Len() {
			return false
		}
		for _, key := range ra.MapKeys() {
			bv := rb.MapIndex(key)
			if !bv.IsValid() || !ValuesEqual(ra.MapIndex(key).Interface(), bv.Interface()) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

func asFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func docKeys(s Schema) []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	return keys
}

func fieldKeys(d *Document) []string {
	if d == nil {
		return nil
	}
	keys := make([]string, 0, len(d.Fields))
	for k := range d.Fields {
		keys = append(keys, k)
	}
	return keys
}

func paramKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

func sortedKeyUnion(a, b []string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, k := range append(a, b...) {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
