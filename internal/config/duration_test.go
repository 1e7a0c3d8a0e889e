package config

import (
	"errors"
	"testing"
	"time"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Duration
		wantErr error
	}{
		{"30s", 30 * time.Second, nil},
		{"1h30m", 90 * time.Minute, nil},
		{"12h", 12 * time.Hour, nil},
		{"2d", 48 * time.Hour, nil},
		{"1w", 7 * 24 * time.Hour, nil},
		{"0d", 0, nil},
		{"d", 0, ErrInvalidDuration},
		{"", 0, ErrInvalidDuration},
		{"-1d", 0, ErrInvalidDuration},
		{"-5s", 0, ErrInvalidDuration},
		{"3y", 0, ErrUnknownUnit},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDuration(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("ParseDuration(%q) error = %v, want %v", tt.input, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDuration(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseDuration(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
