package session

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/goodtune/sessiontracker/internal/storage"
)

func at(hour, minute int) time.Time {
	return time.Date(2024, 3, 10, hour, minute, 0, 0, time.UTC)
}

func TestNetDuration(t *testing.T) {
	tests := []struct {
		name      string
		session   *Session
		wantNet   time.Duration
		wantPause time.Duration
	}{
		{
			name:      "no pauses",
			session:   New("u1", at(10, 0), at(12, 0)),
			wantNet:   2 * time.Hour,
			wantPause: 0,
		},
		{
			name: "two half hour pauses",
			session: New("u1", at(10, 0), at(12, 0), WithPauses(
				Pause{Start: at(10, 30), End: at(11, 0)},
				Pause{Start: at(11, 30), End: at(12, 0)},
			)),
			wantNet:   time.Hour,
			wantPause: 30 * time.Minute * 2,
		},
		{
			name:      "end before start uses absolute span",
			session:   New("u1", at(12, 0), at(10, 0)),
			wantNet:   2 * time.Hour,
			wantPause: 0,
		},
		{
			name: "reversed pause counts its absolute length",
			session: New("u1", at(10, 0), at(12, 0), WithPauses(
				Pause{Start: at(11, 0), End: at(10, 45)},
			)),
			wantNet:   105 * time.Minute,
			wantPause: 15 * time.Minute,
		},
		{
			name: "pause longer than session is not clamped",
			session: New("u1", at(10, 0), at(10, 30), WithPauses(
				Pause{Start: at(9, 0), End: at(11, 0)},
			)),
			wantNet:   -90 * time.Minute,
			wantPause: 2 * time.Hour,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			net, ok := tt.session.NetDuration()
			if !ok {
				t.Fatal("Expected net duration for closed session")
			}
			if net != tt.wantNet {
				t.Errorf("Expected net %v, got %v", tt.wantNet, net)
			}
			if got := tt.session.PauseDuration(); got != tt.wantPause {
				t.Errorf("Expected pause total %v, got %v", tt.wantPause, got)
			}
		})
	}
}

func TestNetDurationMilliseconds(t *testing.T) {
	s := New("u1", at(10, 0), at(12, 0), WithPauses(
		Pause{Start: at(10, 30), End: at(11, 0)},
		Pause{Start: at(11, 30), End: at(12, 0)},
	))

	net, _ := s.NetDuration()
	if net.Milliseconds() != 3_600_000 {
		t.Errorf("Expected 3600000 ms, got %d", net.Milliseconds())
	}
	if s.PauseDuration().Milliseconds() != 3_600_000 {
		t.Errorf("Expected 3600000 ms of pauses, got %d", s.PauseDuration().Milliseconds())
	}
}

func TestOpenSession(t *testing.T) {
	s := New("u1", at(10, 0), time.Time{})

	if !s.Open() {
		t.Fatal("Expected session without end to be open")
	}
	if _, ok := s.NetDuration(); ok {
		t.Error("Expected no net duration for open session")
	}
	if s.PauseDuration() != 0 {
		t.Errorf("Expected empty pause total, got %v", s.PauseDuration())
	}
}

func TestAddPauseUpdatesNetDuration(t *testing.T) {
	s := New("u1", at(10, 0), at(12, 0))

	s.AddPause(at(11, 0), at(11, 20))
	s.AddPause(at(10, 10), at(10, 20))

	net, _ := s.NetDuration()
	if net != 90*time.Minute {
		t.Errorf("Expected 90m net after pauses, got %v", net)
	}

	// Insertion order is kept even when pauses are added out of order.
	if !s.Pauses[0].Start.Equal(at(11, 0)) {
		t.Errorf("Expected first pause to start at 11:00, got %v", s.Pauses[0].Start)
	}
}

func TestNewNormalizesToUTC(t *testing.T) {
	paris := time.FixedZone("CET", 3600)
	s := New("u1", time.Date(2024, 3, 10, 11, 0, 0, 0, paris), time.Time{})

	if s.StartTime.Location() != time.UTC {
		t.Errorf("Expected UTC start, got %v", s.StartTime.Location())
	}
	if !s.StartTime.Equal(at(10, 0)) {
		t.Errorf("Expected 10:00 UTC, got %v", s.StartTime)
	}
	if !s.EndTime.IsZero() {
		t.Errorf("Expected zero end time to stay zero, got %v", s.EndTime)
	}
}

func TestRecordRoundTrip(t *testing.T) {
	s := New("u1", at(10, 0), at(12, 0),
		WithID("abc"),
		WithPauses(Pause{Start: at(10, 30), End: at(11, 0)}),
		WithEyeState("dry"),
		WithNotes("notes"),
	)
	s.Revision = 4

	got := FromRecord(s.Record())
	if diff := cmp.Diff(s, got); diff != "" {
		t.Errorf("record round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestFromRecordKeepsIdentity(t *testing.T) {
	record := storage.Session{ID: "stored-id", UserID: "u1", StartTime: at(10, 0), Revision: 7}

	s := FromRecord(record)
	if s.ID != "stored-id" || s.Revision != 7 {
		t.Errorf("Expected stored identity, got id=%q revision=%d", s.ID, s.Revision)
	}
	if s.Pauses == nil {
		t.Error("Expected non-nil pauses")
	}
}

func TestSerialize(t *testing.T) {
	s := New("u1", at(10, 0), at(12, 0),
		WithID("abc"),
		WithPauses(Pause{Start: at(10, 30), End: at(11, 0)}),
		WithEyeState("dry"),
		WithNotes("late"),
	)

	data, err := json.Marshal(s.Serialize())
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	want := map[string]any{
		"id":        "abc",
		"userId":    "u1",
		"dateDebut": "2024-03-10T10:00:00Z",
		"dateFin":   "2024-03-10T12:00:00Z",
		"duree":     float64(5_400_000),
		"pauses": []any{
			map[string]any{
				"debutPause": "2024-03-10T10:30:00Z",
				"finPause":   "2024-03-10T11:00:00Z",
				"duree":      float64(1_800_000),
			},
		},
		"etatOculaire": "dry",
		"remarques":    "late",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("serialized session mismatch (-want +got):\n%s", diff)
	}
}

func TestSerializeOpenSession(t *testing.T) {
	doc := New("u1", at(10, 0), time.Time{}).Serialize()

	if doc.EndTime != nil {
		t.Errorf("Expected null dateFin, got %v", doc.EndTime)
	}
	if doc.Duration != nil {
		t.Errorf("Expected null duree, got %v", *doc.Duration)
	}
	if doc.Pauses == nil {
		t.Error("Expected empty pause list, got nil")
	}
}
