// SPDX-License-Identifier: MIT

package config

import (
	"testing"
	"time"
)

func TestParseString(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		envSet       bool
		want         string
	}{
		{
			name:         "environment variable set",
			key:          "TEST_STRING",
			defaultValue: "default",
			envValue:     "from-env",
			envSet:       true,
			want:         "from-env",
		},
		{
			name:         "environment variable not set",
			key:          "TEST_STRING_UNSET",
			defaultValue: "default",
			want:         "default",
		},
		{
			name:         "environment variable empty string",
			key:          "TEST_STRING_EMPTY",
			defaultValue: "default",
			envValue:     "",
			envSet:       true,
			want:         "default",
		},
		{
			name:         "sensitive variable (password)",
			key:          "TEST_PASSWORD",
			defaultValue: "default",
			envValue:     "secret123",
			envSet:       true,
			want:         "secret123",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envSet {
				t.Setenv(tt.key, tt.envValue)
			}
			if got := ParseString(tt.key, tt.defaultValue); got != tt.want {
				t.Errorf("ParseString() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseInt(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_INT_BAD", "forty-two")

	if got := ParseInt("TEST_INT", 1); got != 42 {
		t.Errorf("ParseInt() = %d, want 42", got)
	}
	if got := ParseInt("TEST_INT_BAD", 7); got != 7 {
		t.Errorf("ParseInt() with invalid value = %d, want default 7", got)
	}
	if got := ParseInt("TEST_INT_UNSET", 3); got != 3 {
		t.Errorf("ParseInt() unset = %d, want 3", got)
	}
}

func TestParseDuration(t *testing.T) {
	t.Setenv("TEST_DUR", "1500ms")
	t.Setenv("TEST_DUR_BAD", "soon")

	if got := ParseDuration("TEST_DUR", time.Second); got != 1500*time.Millisecond {
		t.Errorf("ParseDuration() = %v, want 1.5s", got)
	}
	if got := ParseDuration("TEST_DUR_BAD", time.Second); got != time.Second {
		t.Errorf("ParseDuration() with invalid value = %v, want default", got)
	}
}

func TestParseBool(t *testing.T) {
	cases := map[string]bool{"true": true, "1": true, "YES": true, "false": false, "0": false, "no": false}
	for in, want := range cases {
		t.Run(in, func(t *testing.T) {
			t.Setenv("TEST_BOOL", in)
			if got := ParseBool("TEST_BOOL", !want); got != want {
				t.Errorf("ParseBool(%q) = %v, want %v", in, got, want)
			}
		})
	}

	t.Setenv("TEST_BOOL", "maybe")
	if got := ParseBool("TEST_BOOL", true); !got {
		t.Error("ParseBool() with invalid value should return default")
	}
}

func TestParseFloat(t *testing.T) {
	t.Setenv("TEST_FLOAT", "0.25")
	if got := ParseFloat("TEST_FLOAT", 1); got != 0.25 {
		t.Errorf("ParseFloat() = %v, want 0.25", got)
	}
	t.Setenv("TEST_FLOAT", "quarter")
	if got := ParseFloat("TEST_FLOAT", 1); got != 1 {
		t.Errorf("ParseFloat() with invalid value = %v, want default", got)
	}
}
