package transport

import (
	"encoding/json"
	"testing"
)

func TestYesNoAcceptsBooleansAndWords(t *testing.T) {
	cases := map[string]bool{
		`true`:    true,
		`false`:   false,
		`"Yes"`:   true,
		`"yes"`:   true,
		`"No"`:    false,
		`""`:      false,
		`"maybe"`: false,
	}
	for raw, want := range cases {
		var req CreateLeadRequest
		if err := json.Unmarshal([]byte(`{"tobaccoUser":`+raw+`}`), &req); err != nil {
			t.Fatalf("%s: unexpected error: %v", raw, err)
		}
		if bool(req.TobaccoUser) != want {
			t.Fatalf("%s: expected %v, got %v", raw, want, req.TobaccoUser)
		}
	}
}

func TestYesNoRejectsOtherTypes(t *testing.T) {
	var req CreateLeadRequest
	if err := json.Unmarshal([]byte(`{"tobaccoUser":1}`), &req); err == nil {
		t.Fatal("expected error for numeric value")
	}
}

func TestAttributionIsFlattened(t *testing.T) {
	var req CreateLeadRequest
	if err := json.Unmarshal([]byte(`{"utmSource":"google","gclid":"abc"}`), &req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.UTMSource != "google" || req.GCLID != "abc" {
		t.Fatalf("expected embedded attribution fields, got %+v", req.Attribution)
	}
}
