package session

import (
	"testing"
	"time"
)

func fixedSessions(n int, d time.Duration) []*Session {
	sessions := make([]*Session, n)
	for i := range sessions {
		start := at(8, 0).Add(time.Duration(i) * 24 * time.Hour)
		sessions[i] = New("u1", start, start.Add(d))
	}
	return sessions
}

func TestMetricsEmpty(t *testing.T) {
	var none []*Session
	single := fixedSessions(1, time.Hour)

	checks := []struct {
		name string
		got  time.Duration
	}{
		{"average", AverageDuration(none)},
		{"min", MinDuration(none)},
		{"max", MaxDuration(none)},
		{"median", MedianDuration(none)},
		{"max gap", MaxGap(none)},
		{"max gap single", MaxGap(single)},
	}

	for _, c := range checks {
		if c.got != 0 {
			t.Errorf("Expected %s of empty input to be 0, got %v", c.name, c.got)
		}
	}
}

func TestMetricsEqualDurations(t *testing.T) {
	sessions := fixedSessions(4, 2*time.Hour)
	want := 7_200_000 * time.Millisecond

	for name, got := range map[string]time.Duration{
		"average": AverageDuration(sessions),
		"min":     MinDuration(sessions),
		"max":     MaxDuration(sessions),
		"median":  MedianDuration(sessions),
	} {
		if got != want {
			t.Errorf("Expected %s %v, got %v", name, want, got)
		}
	}
}

func TestMetricsMixedDurations(t *testing.T) {
	var sessions []*Session
	for i, d := range []time.Duration{3 * time.Hour, time.Hour, 4 * time.Hour, 2 * time.Hour} {
		start := at(8, 0).Add(time.Duration(i) * 24 * time.Hour)
		sessions = append(sessions, New("u1", start, start.Add(d)))
	}

	if got := AverageDuration(sessions); got != 150*time.Minute {
		t.Errorf("Expected average 2h30m, got %v", got)
	}
	if got := MinDuration(sessions); got != time.Hour {
		t.Errorf("Expected min 1h, got %v", got)
	}
	if got := MaxDuration(sessions); got != 4*time.Hour {
		t.Errorf("Expected max 4h, got %v", got)
	}
	// Even count averages the two middle values: (2h + 3h) / 2.
	if got := MedianDuration(sessions); got != 150*time.Minute {
		t.Errorf("Expected median 2h30m, got %v", got)
	}

	odd := sessions[:3]
	if got := MedianDuration(odd); got != 3*time.Hour {
		t.Errorf("Expected median 3h for odd count, got %v", got)
	}
}

func TestMetricsIgnoreOpenSessions(t *testing.T) {
	sessions := append(fixedSessions(2, time.Hour), New("u1", at(20, 0), time.Time{}))

	if got := AverageDuration(sessions); got != time.Hour {
		t.Errorf("Expected open session to be ignored in average, got %v", got)
	}
	if got := MinDuration(sessions); got != time.Hour {
		t.Errorf("Expected open session to be ignored in min, got %v", got)
	}
}

func TestMaxGapConsecutiveDays(t *testing.T) {
	var sessions []*Session
	for day := 0; day < 3; day++ {
		start := time.Date(2024, 3, 10+day, 10, 30, 0, 0, time.UTC)
		sessions = append(sessions, New("u1", start, start.Add(2*time.Hour)))
	}

	got := MaxGap(sessions)
	if got.Milliseconds() != 79_200_000 {
		t.Errorf("Expected 79200000 ms gap, got %d", got.Milliseconds())
	}
}

func TestMaxGapUsesGivenOrder(t *testing.T) {
	early := New("u1", at(8, 0), at(9, 0))
	late := New("u1", at(15, 0), at(16, 0))

	// In reverse order the only pair has a negative gap, so the result stays 0.
	if got := MaxGap([]*Session{late, early}); got != 0 {
		t.Errorf("Expected 0 for reversed input, got %v", got)
	}
	if got := MaxGap([]*Session{early, late}); got != 6*time.Hour {
		t.Errorf("Expected 6h for ordered input, got %v", got)
	}
}

func TestMaxGapSkipsOpenPredecessor(t *testing.T) {
	open := New("u1", at(8, 0), time.Time{})
	next := New("u1", at(15, 0), at(16, 0))

	if got := MaxGap([]*Session{open, next}); got != 0 {
		t.Errorf("Expected pair after open session to be skipped, got %v", got)
	}
}

func TestComputeSortsBeforeGap(t *testing.T) {
	early := New("u1", at(8, 0), at(9, 0))
	middle := New("u1", at(10, 0), at(11, 0))
	late := New("u1", at(15, 0), at(16, 0))
	input := []*Session{late, early, middle}

	m := Compute("u1", input)

	if m.MaxGap != 4*time.Hour {
		t.Errorf("Expected 4h gap after sorting, got %v", m.MaxGap)
	}
	if m.Count != 3 || m.Open != 0 {
		t.Errorf("Expected count 3 and no open sessions, got %d/%d", m.Count, m.Open)
	}
	if m.Average != time.Hour || m.Median != time.Hour {
		t.Errorf("Expected 1h average and median, got %v/%v", m.Average, m.Median)
	}
	if input[0] != late {
		t.Error("Expected Compute not to reorder its input")
	}
}
