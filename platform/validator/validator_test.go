package validator

import "testing"

type sample struct {
	Zip  string `json:"zipCode" validate:"required,zip5"`
	Date string `json:"dateOfBirth" validate:"omitempty,isodate"`
}

func TestZip5AndISODateRules(t *testing.T) {
	v := New()

	if err := v.Struct(sample{Zip: "90210", Date: "1955-03-01"}); err != nil {
		t.Fatalf("expected valid sample, got %v", err)
	}

	err := v.Struct(sample{Zip: "9021", Date: "03/01/1955"})
	if err == nil {
		t.Fatal("expected validation error")
	}
	fields := FieldErrors(err)
	if fields["zipCode"] != "zip5" {
		t.Fatalf("expected zipCode=zip5, got %v", fields)
	}
	if fields["dateOfBirth"] != "isodate" {
		t.Fatalf("expected dateOfBirth=isodate, got %v", fields)
	}
}

func TestFieldErrorsIgnoresOtherErrors(t *testing.T) {
	if FieldErrors(nil) != nil {
		t.Fatal("expected nil for nil error")
	}
}
