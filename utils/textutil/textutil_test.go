// Copyright 2025 The Danmarkskort Authors
// SPDX-License-Identifier: Apache-2.0

package textutil

import "testing"

func TestFold(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  Tellerup Bjerge ", "tellerup bjerge"},
		{"Rødbyhavn", "rødbyhavn"},
		{"Allé", "alle"},
		{"KØBENHAVN", "københavn"},
	}

	for _, test := range tests {
		if got := Fold(test.in); got != test.want {
			t.Errorf("Fold(%q) = %q, want %q", test.in, got, test.want)
		}
	}
}

func TestMatchClass(t *testing.T) {
	tests := []struct {
		text  string
		query string
		want  int
	}{
		{"Odense", "odense", 0},
		{"Odense C", "odense", 1},
		{"Nørre Odense", "odense", 2},
		{"Svendborg", "odense", 3},
		{"Allégade", "allé", 1},
	}

	for _, test := range tests {
		if got := MatchClass(test.text, test.query); got != test.want {
			t.Errorf("MatchClass(%q, %q) = %d, want %d", test.text, test.query, got, test.want)
		}
	}
}

func TestWildcard(t *testing.T) {
	if got := Wildcard("store kongens"); got != "store* kongens*" {
		t.Errorf("Wildcard = %q", got)
	}

	if got := Wildcard("  h c andersen "); got != "h* c* andersen*" {
		t.Errorf("Wildcard = %q", got)
	}
}
