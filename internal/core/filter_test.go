package core

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func names(list []Employee) []string {
	out := make([]string, 0, len(list))
	for _, e := range list {
		out = append(out, e.FullName)
	}
	return out
}

func TestFilterScenarios(t *testing.T) {
	seed := SeedEmployees()
	cases := []struct {
		name     string
		criteria Criteria
		want     []string
	}{
		{"no criteria", Criteria{}, []string{"John Doe", "Jane Smith", "Alice Johnson"}},
		{"explicit all", Criteria{Gender: FilterAll, Status: StatusAll}, []string{"John Doe", "Jane Smith", "Alice Johnson"}},
		{"female", Criteria{Gender: GenderFemale, Status: StatusAll}, []string{"Jane Smith", "Alice Johnson"}},
		{"search jo", Criteria{Search: "jo", Gender: FilterAll, Status: StatusAll}, []string{"John Doe", "Alice Johnson"}},
		{"search upper", Criteria{Search: "JANE"}, []string{"Jane Smith"}},
		{"inactive", Criteria{Status: StatusInactive}, []string{"Alice Johnson"}},
		{"active female", Criteria{Gender: GenderFemale, Status: StatusActive}, []string{"Jane Smith"}},
		{"and semantics", Criteria{Search: "jo", Gender: GenderMale, Status: StatusInactive}, []string{}},
		{"other gender", Criteria{Gender: GenderOther}, []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := names(FilterEmployees(seed, tc.criteria))
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("filter mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFilterIsPureAndIdempotent(t *testing.T) {
	seed := SeedEmployees()
	original := SeedEmployees()
	c := Criteria{Search: "j", Gender: GenderFemale}
	once := FilterEmployees(seed, c)
	twice := FilterEmployees(once, c)
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Fatalf("filter not idempotent:\n%s", diff)
	}
	if diff := cmp.Diff(original, seed); diff != "" {
		t.Fatalf("filter mutated its input:\n%s", diff)
	}
	all := FilterEmployees(seed, Criteria{})
	if diff := cmp.Diff(seed, all); diff != "" {
		t.Fatalf("empty criteria must return the input sequence:\n%s", diff)
	}
	all[0].FullName = "changed"
	if seed[0].FullName == "changed" {
		t.Fatalf("filter result aliases the input")
	}
}

func TestParseFilters(t *testing.T) {
	for _, raw := range []string{"", "All"} {
		if g, err := ParseGenderFilter(raw); err != nil || g != "" {
			t.Fatalf("gender %q: %v %q", raw, err, g)
		}
		if s, err := ParseStatusFilter(raw); err != nil || s != StatusAll {
			t.Fatalf("status %q: %v %q", raw, err, s)
		}
	}
	if g, err := ParseGenderFilter("Female"); err != nil || g != GenderFemale {
		t.Fatalf("expected Female, got %q %v", g, err)
	}
	if _, err := ParseGenderFilter("female"); err == nil {
		t.Fatalf("gender filter is exact")
	}
	if s, err := ParseStatusFilter("Inactive"); err != nil || s != StatusInactive {
		t.Fatalf("expected Inactive, got %q %v", s, err)
	}
	if _, err := ParseStatusFilter("Retired"); err == nil {
		t.Fatalf("expected unknown status error")
	}
}

func TestSummarize(t *testing.T) {
	got := Summarize(SeedEmployees())
	if diff := cmp.Diff(Summary{Total: 3, Active: 2, Inactive: 1}, got); diff != "" {
		t.Fatalf("summary mismatch:\n%s", diff)
	}
	if got := Summarize(nil); got != (Summary{}) {
		t.Fatalf("expected zero summary, got %+v", got)
	}
}
