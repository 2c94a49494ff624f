package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func sampleRoster() []Employee {
	return []Employee{
		{ID: "1", FullName: "John Doe", Gender: GenderMale, DOB: "1990-01-01", State: "New York", IsActive: true, ProfileImage: "https://example.test/john.svg"},
		{ID: "2", FullName: "Jane Smith", Gender: GenderFemale, DOB: "1992-05-15", State: "California", IsActive: true},
		{ID: "3", FullName: "Alice Johnson", Gender: GenderFemale, DOB: "1988-11-20", State: "Texas", IsActive: false, ProfileImage: "data:image/png;base64,AAAA"},
	}
}

func TestEmployeeJSONShape(t *testing.T) {
	raw, err := json.Marshal(sampleRoster()[0])
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		t.Fatalf("unmarshal generic: %v", err)
	}
	for _, key := range []string{"id", "fullName", "gender", "dob", "state", "isActive", "profileImage"} {
		if _, ok := generic[key]; !ok {
			t.Fatalf("expected key %q in %s", key, raw)
		}
	}
	if len(generic) != 7 {
		t.Fatalf("expected exactly 7 keys, got %d: %s", len(generic), raw)
	}
	if generic["isActive"] != true {
		t.Fatalf("expected boolean isActive, got %#v", generic["isActive"])
	}
}

func TestEmployeeCollectionRoundTrip(t *testing.T) {
	in := sampleRoster()
	raw, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out []Employee
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if diff := cmp.Diff(in, out); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestWithFieldsKeepsIdentity(t *testing.T) {
	base := sampleRoster()[1]
	next := base.WithFields(EmployeeFields{FullName: "Janet Smith", Gender: GenderOther, DOB: "1993-01-01", State: "Ohio"})
	if next.ID != base.ID {
		t.Fatalf("identity changed: %q -> %q", base.ID, next.ID)
	}
	if next.IsActive {
		t.Fatalf("expected full replacement to clear isActive")
	}
	if next.Fields().FullName != "Janet Smith" {
		t.Fatalf("unexpected fields %+v", next.Fields())
	}
}

func TestGenderAndRegionEnumerations(t *testing.T) {
	for _, g := range Genders() {
		if !g.Valid() {
			t.Fatalf("expected %q valid", g)
		}
	}
	if Gender("male").Valid() || Gender("").Valid() {
		t.Fatalf("gender matching must be exact")
	}
	if !IsRegion("North Carolina") || IsRegion("Oregon") {
		t.Fatalf("unexpected region membership")
	}
	list := Regions()
	list[0] = "mutated"
	if !IsRegion("California") {
		t.Fatalf("Regions must return a copy")
	}
	if NewEmployeeFields().IsActive != true {
		t.Fatalf("create form defaults to active")
	}
}

func TestErrNotFoundMessage(t *testing.T) {
	err := ErrNotFound{Entity: EntityEmployee, ID: "42"}
	if err.Error() != "employee 42 not found" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
