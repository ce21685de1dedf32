package model

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestParseCarType(t *testing.T) {
	cases := []struct {
		input string
		want  CarType
	}{
		{"sedan", Sedan},
		{"SEDAN", Sedan},
		{"Sedan", Sedan},
		{"suv", SUV},
		{"SUV", SUV},
		{"van", Van},
		{"VAN", Van},
		{" sedan ", Sedan},
	}

	for _, tc := range cases {
		got, err := ParseCarType(tc.input)
		if err != nil {
			t.Errorf("ParseCarType(%q): unexpected error: %v", tc.input, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseCarType(%q) = %s, want %s", tc.input, got, tc.want)
		}
	}
}

func TestParseCarType_Unknown(t *testing.T) {
	_, err := ParseCarType("crossover")
	if err == nil {
		t.Fatal("expected error for unknown category")
	}
	if !strings.Contains(err.Error(), "Unknown carType: crossover") {
		t.Errorf("expected error to name the rejected value, got %q", err.Error())
	}
	if !strings.Contains(err.Error(), "sedan, suv, van") {
		t.Errorf("expected error to list allowed values, got %q", err.Error())
	}
}

func TestParseCarType_Empty(t *testing.T) {
	for _, input := range []string{"", "   "} {
		_, err := ParseCarType(input)
		if err == nil {
			t.Errorf("ParseCarType(%q): expected error", input)
			continue
		}
		if err.Error() != "carType is required" {
			t.Errorf("ParseCarType(%q): unexpected message %q", input, err.Error())
		}
	}
}

func TestCarType_JSONRoundTrip(t *testing.T) {
	data, err := json.Marshal(SUV)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != `"suv"` {
		t.Errorf("expected lowercase code on the wire, got %s", data)
	}

	var parsed CarType
	if err := json.Unmarshal([]byte(`"VAN"`), &parsed); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed != Van {
		t.Errorf("expected %s, got %s", Van, parsed)
	}
}

func TestCarType_UnmarshalRejectsUnknown(t *testing.T) {
	var parsed CarType
	err := json.Unmarshal([]byte(`"truck"`), &parsed)
	if err == nil {
		t.Fatal("expected error for unknown category")
	}
	if !strings.Contains(err.Error(), "Unknown carType: truck") {
		t.Errorf("unexpected error: %v", err)
	}
}
