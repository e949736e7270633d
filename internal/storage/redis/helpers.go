package redis

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/goodtune/sessiontracker/internal/storage"
)

// parseSession converts a Redis hash to Session
func parseSession(data map[string]string) (*storage.Session, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	startTime, err := time.Parse(time.RFC3339Nano, data["start_time"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse start_time: %w", err)
	}

	endTime, err := parseOptionalTime(data["end_time"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse end_time: %w", err)
	}

	pauses := []storage.Pause{}
	if raw := data["pauses"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &pauses); err != nil {
			return nil, fmt.Errorf("failed to parse pauses: %w", err)
		}
	}

	revision, err := strconv.ParseInt(data["revision"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse revision: %w", err)
	}

	createdAt, err := parseOptionalTime(data["created_at"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}

	updatedAt, err := parseOptionalTime(data["updated_at"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return &storage.Session{
		ID:        data["id"],
		UserID:    data["user_id"],
		StartTime: startTime,
		EndTime:   endTime,
		Pauses:    pauses,
		EyeState:  data["eye_state"],
		Notes:     data["notes"],
		Revision:  revision,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}

// parseUser converts a Redis hash to User
func parseUser(data map[string]string) (*storage.User, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	age := 0
	if raw := data["age"]; raw != "" {
		var err error
		age, err = strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse age: %w", err)
		}
	}

	createdAt, err := parseOptionalTime(data["created_at"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}

	return &storage.User{
		ID:        data["id"],
		Email:     data["email"],
		Age:       age,
		CreatedAt: createdAt,
	}, nil
}

// formatTime renders a timestamp for a hash field; the zero time is stored
// as an empty string.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseOptionalTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func encodePauses(pauses []storage.Pause) (string, error) {
	if pauses == nil {
		pauses = []storage.Pause{}
	}
	data, err := json.Marshal(pauses)
	if err != nil {
		return "", fmt.Errorf("failed to encode pauses: %w", err)
	}
	return string(data), nil
}

// score is the sorted-set score of a session: its start time in unix milliseconds.
func score(t time.Time) int64 {
	return t.UnixMilli()
}
