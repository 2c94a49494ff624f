package core

import (
	"errors"
	"sort"
	"strings"
	"unicode/utf8"
)

// Field names used as validation error keys, matching the record JSON keys.
const (
	FieldFullName = "fullName"
	FieldGender   = "gender"
	FieldDOB      = "dob"
	FieldState    = "state"
)

const minFullNameLength = 3

// ValidationErrors maps a field name to a human-readable message.
type ValidationErrors map[string]string

// Valid reports whether there are no errors.
func (v ValidationErrors) Valid() bool { return len(v) == 0 }

// Fields returns the failing field names sorted.
func (v ValidationErrors) Fields() []string {
	out := make([]string, 0, len(v))
	for k := range v {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ValidationError wraps field errors for callers that use error returns.
type ValidationError struct {
	Errors ValidationErrors
}

func (e ValidationError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, f := range e.Errors.Fields() {
		parts = append(parts, f+": "+e.Errors[f])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// ErrEmptyCredentials is returned by login when a credential is missing.
var ErrEmptyCredentials = errors.New("Please enter both username and password") //nolint:staticcheck // shown verbatim on the login form

// ValidateEmployee checks proposed fields. Only presence of the date of birth
// is checked here; format and range are reported by the rules engine.
func ValidateEmployee(f EmployeeFields) ValidationErrors {
	errs := ValidationErrors{}
	if utf8.RuneCountInString(strings.TrimSpace(f.FullName)) < minFullNameLength {
		errs[FieldFullName] = "Full Name must be at least 3 characters"
	}
	if !f.Gender.Valid() {
		errs[FieldGender] = "Please select a gender"
	}
	if strings.TrimSpace(f.DOB) == "" {
		errs[FieldDOB] = "Date of Birth is required"
	}
	if strings.TrimSpace(f.State) == "" {
		errs[FieldState] = "State is required"
	}
	return errs
}

// ValidateLogin rejects an empty username or password.
func ValidateLogin(username, password string) error {
	if username == "" || password == "" {
		return ErrEmptyCredentials
	}
	return nil
}
