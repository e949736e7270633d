package session

import (
	"errors"
	"testing"
	"time"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
	}{
		{"2024-03-10T10:00:00Z", time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC)},
		{"2024-03-10T10:00:00.250Z", time.Date(2024, 3, 10, 10, 0, 0, 250_000_000, time.UTC)},
		{"2024-03-10T12:00:00+02:00", time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC)},
		{"2024-03-10T10:00:00", time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC)},
		{"2024-03-10T10:00:00.5", time.Date(2024, 3, 10, 10, 0, 0, 500_000_000, time.UTC)},
		{"2024-03-10T10:00", time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC)},
		{"2024-03-10", time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)},
		{"1600-01-01T10:00:00Z", time.Date(1600, 1, 1, 10, 0, 0, 0, time.UTC)},
		{"2300-01-01T10:00:00Z", time.Date(2300, 1, 1, 10, 0, 0, 0, time.UTC)},
		{" 2024-03-10T10:00:00Z ", time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseTimestamp(tt.input)
			if err != nil {
				t.Fatalf("ParseTimestamp(%q) failed: %v", tt.input, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
			if got.Location() != time.UTC {
				t.Errorf("Expected UTC location, got %v", got.Location())
			}
		})
	}
}

func TestParseTimestampInvalid(t *testing.T) {
	for _, input := range []string{"", "yesterday", "10/03/2024", "2024-13-01"} {
		t.Run(input, func(t *testing.T) {
			if _, err := ParseTimestamp(input); !errors.Is(err, ErrInvalidTimestamp) {
				t.Errorf("Expected ErrInvalidTimestamp, got %v", err)
			}
		})
	}
}
