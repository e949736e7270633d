package session

import (
	"sort"
	"time"
)

// Metrics summarizes a user's session history. Open sessions are counted but
// contribute no duration.
type Metrics struct {
	UserID  string
	Count   int
	Open    int
	Average time.Duration
	Min     time.Duration
	Max     time.Duration
	Median  time.Duration
	MaxGap  time.Duration
}

// Compute returns all aggregate metrics for sessions. Sessions are ordered by
// start time before the gap is measured; the input slice is not modified.
func Compute(userID string, sessions []*Session) Metrics {
	sorted := append([]*Session(nil), sessions...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartTime.Before(sorted[j].StartTime)
	})

	m := Metrics{
		UserID:  userID,
		Count:   len(sessions),
		Average: AverageDuration(sessions),
		Min:     MinDuration(sessions),
		Max:     MaxDuration(sessions),
		Median:  MedianDuration(sessions),
		MaxGap:  MaxGap(sorted),
	}
	for _, s := range sessions {
		if s.Open() {
			m.Open++
		}
	}
	return m
}

// AverageDuration returns the mean net duration, or 0 for no closed sessions.
func AverageDuration(sessions []*Session) time.Duration {
	durations := netDurations(sessions)
	if len(durations) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range durations {
		total += d
	}
	return total / time.Duration(len(durations))
}

// MinDuration returns the shortest net duration, or 0.
func MinDuration(sessions []*Session) time.Duration {
	durations := netDurations(sessions)
	if len(durations) == 0 {
		return 0
	}
	shortest := durations[0]
	for _, d := range durations[1:] {
		if d < shortest {
			shortest = d
		}
	}
	return shortest
}

// MaxDuration returns the longest net duration, or 0.
func MaxDuration(sessions []*Session) time.Duration {
	durations := netDurations(sessions)
	if len(durations) == 0 {
		return 0
	}
	longest := durations[0]
	for _, d := range durations[1:] {
		if d > longest {
			longest = d
		}
	}
	return longest
}

// MedianDuration returns the median net duration. An even count averages the
// two middle values.
func MedianDuration(sessions []*Session) time.Duration {
	durations := netDurations(sessions)
	n := len(durations)
	if n == 0 {
		return 0
	}
	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
	if n%2 == 0 {
		return (durations[n/2-1] + durations[n/2]) / 2
	}
	return durations[n/2]
}

// MaxGap returns the largest start-after-previous-end gap between adjacent
// sessions in the order given. Pairs whose earlier session is open are
// skipped and the result is never below 0.
func MaxGap(sessions []*Session) time.Duration {
	var widest time.Duration
	for i := 1; i < len(sessions); i++ {
		prev := sessions[i-1]
		if prev.Open() {
			continue
		}
		if gap := sessions[i].StartTime.Sub(prev.EndTime); gap > widest {
			widest = gap
		}
	}
	return widest
}

func netDurations(sessions []*Session) []time.Duration {
	durations := make([]time.Duration, 0, len(sessions))
	for _, s := range sessions {
		if d, ok := s.NetDuration(); ok {
			durations = append(durations, d)
		}
	}
	return durations
}
