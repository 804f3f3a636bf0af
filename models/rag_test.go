package models

import "testing"

func TestParseSafetyLevel(t *testing.T) {
	cases := []struct {
		input   string
		want    SafetyLevel
		wantErr bool
	}{
		{"", SafetyGeneral, false},
		{"general", SafetyGeneral, false},
		{"  Training ", SafetyTraining, false},
		{"MEDICAL", SafetyMedical, false},
		{"unsafe", "", true},
	}

	for _, tc := range cases {
		got, err := ParseSafetyLevel(tc.input)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseSafetyLevel(%q): expected error", tc.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseSafetyLevel(%q): %v", tc.input, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseSafetyLevel(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}
