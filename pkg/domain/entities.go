// Package domain defines the roster entities shared by the core services and
// the persistence adapters. It depends on nothing outside the standard library
// so every layer can import it without cycles.
package domain

import "fmt"

// Gender enumerates the values accepted for an employee's gender.
type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
	GenderOther  Gender = "Other"
)

// Genders lists every supported gender in display order.
func Genders() []Gender {
	return []Gender{GenderMale, GenderFemale, GenderOther}
}

// Valid reports whether g is one of the enumerated genders.
func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther:
		return true
	default:
		return false
	}
}

// DateLayout is the calendar date format used for dates of birth.
const DateLayout = "2006-01-02"

var regions = []string{
	"California", "New York", "Texas", "Florida", "Illinois",
	"Pennsylvania", "Ohio", "Georgia", "North Carolina", "Michigan",
}

// Regions returns the enumerated list of states an employee may reside in.
func Regions() []string {
	return append([]string(nil), regions...)
}

// IsRegion reports whether name matches an enumerated region exactly.
func IsRegion(name string) bool {
	for _, r := range regions {
		if r == name {
			return true
		}
	}
	return false
}

// EntityType identifies the kind of record a change or violation refers to.
type EntityType string

const (
	EntityEmployee EntityType = "employee"
	EntitySession  EntityType = "session"
)

// Employee is a single roster record. The JSON shape is the durable storage
// format and must stay stable.
type Employee struct {
	ID           string `json:"id"`
	FullName     string `json:"fullName"`
	Gender       Gender `json:"gender"`
	DOB          string `json:"dob"`
	State        string `json:"state"`
	IsActive     bool   `json:"isActive"`
	ProfileImage string `json:"profileImage"`
}

// EmployeeFields carries every employee attribute except the identity. It is
// the payload of create and update operations.
type EmployeeFields struct {
	FullName     string `json:"fullName"`
	Gender       Gender `json:"gender"`
	DOB          string `json:"dob"`
	State        string `json:"state"`
	IsActive     bool   `json:"isActive"`
	ProfileImage string `json:"profileImage"`
}

// NewEmployeeFields returns the defaults of an empty create form.
func NewEmployeeFields() EmployeeFields {
	return EmployeeFields{IsActive: true}
}

// Fields returns the non-identity attributes of e.
func (e Employee) Fields() EmployeeFields {
	return EmployeeFields{
		FullName:     e.FullName,
		Gender:       e.Gender,
		DOB:          e.DOB,
		State:        e.State,
		IsActive:     e.IsActive,
		ProfileImage: e.ProfileImage,
	}
}

// WithFields replaces every non-identity attribute of e with f.
func (e Employee) WithFields(f EmployeeFields) Employee {
	return Employee{
		ID:           e.ID,
		FullName:     f.FullName,
		Gender:       f.Gender,
		DOB:          f.DOB,
		State:        f.State,
		IsActive:     f.IsActive,
		ProfileImage: f.ProfileImage,
	}
}

// StatusLabel renders the active flag the way the roster table shows it.
func (e Employee) StatusLabel() string {
	if e.IsActive {
		return "Active"
	}
	return "Inactive"
}

// ErrNotFound is returned when an identity lookup fails.
type ErrNotFound struct {
	Entity EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}
