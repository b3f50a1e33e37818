package domain

import "strings"

// Policy controls how actions resolve documents that do not conform to the
// new schema parameter.
type Policy string

const (
	// PolicyStrict aborts the migration when nonconforming documents exist.
	PolicyStrict Policy = "strict"
	// PolicyReplace overwrites nonconforming values with a supplied default.
	PolicyReplace Policy = "replace"
)

// PolicyFromString normalizes a policy name, defaulting to strict.
func PolicyFromString(value string) Policy {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case string(PolicyReplace):
		return PolicyReplace
	default:
		return PolicyStrict
	}
}

// IsValid reports whether the policy is one of the known values.
func (p Policy) IsValid() bool {
	return p == PolicyStrict || p == PolicyReplace
}

func (p Policy) String() string {
	return string(p)
}
