package core

import (
	"fmt"
	"strings"
)

// FilterAll matches every gender or status.
const FilterAll = "All"

// StatusFilter selects employees by their active flag.
type StatusFilter string

const (
	StatusAll      StatusFilter = FilterAll
	StatusActive   StatusFilter = "Active"
	StatusInactive StatusFilter = "Inactive"
)

// Criteria is the conjunctive filter applied to a roster view. Empty values
// behave like "All".
type Criteria struct {
	Search string
	Gender Gender
	Status StatusFilter
}

// ParseGenderFilter accepts "", "All" or an enumerated gender.
func ParseGenderFilter(raw string) (Gender, error) {
	switch raw {
	case "", FilterAll:
		return "", nil
	}
	g := Gender(raw)
	if !g.Valid() {
		return "", fmt.Errorf("unknown gender filter %q", raw)
	}
	return g, nil
}

// ParseStatusFilter accepts "", "All", "Active" or "Inactive".
func ParseStatusFilter(raw string) (StatusFilter, error) {
	switch StatusFilter(raw) {
	case "", StatusAll:
		return StatusAll, nil
	case StatusActive, StatusInactive:
		return StatusFilter(raw), nil
	default:
		return "", fmt.Errorf("unknown status filter %q", raw)
	}
}

// Matches reports whether e satisfies every criterion.
func (c Criteria) Matches(e Employee) bool {
	if c.Search != "" && !strings.Contains(strings.ToLower(e.FullName), strings.ToLower(c.Search)) {
		return false
	}
	if c.Gender != "" && c.Gender != FilterAll && e.Gender != c.Gender {
		return false
	}
	switch c.Status {
	case StatusActive:
		return e.IsActive
	case StatusInactive:
		return !e.IsActive
	}
	return true
}

// FilterEmployees returns the ordered subsequence of list matching c. The
// input is never modified.
func FilterEmployees(list []Employee, c Criteria) []Employee {
	out := make([]Employee, 0, len(list))
	for _, e := range list {
		if c.Matches(e) {
			out = append(out, e)
		}
	}
	return out
}

// Summary holds the dashboard counts.
type Summary struct {
	Total    int `json:"total"`
	Active   int `json:"active"`
	Inactive int `json:"inactive"`
}

// Summarize counts list by active flag.
func Summarize(list []Employee) Summary {
	sum := Summary{Total: len(list)}
	for _, e := range list {
		if e.IsActive {
			sum.Active++
		}
	}
	sum.Inactive = sum.Total - sum.Active
	return sum
}
