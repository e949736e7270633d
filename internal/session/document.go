package session

import "time"

// Document is the wire representation of a session. Durations are in
// milliseconds; Duration and EndTime are null for open sessions.
type Document struct {
	ID        string          `json:"id,omitempty"`
	UserID    string          `json:"userId"`
	StartTime time.Time       `json:"dateDebut"`
	EndTime   *time.Time      `json:"dateFin"`
	Duration  *int64          `json:"duree"`
	Pauses    []PauseDocument `json:"pauses"`
	EyeState  string          `json:"etatOculaire"`
	Notes     string          `json:"remarques"`
	Revision  int64           `json:"revision,omitempty"`
}

// PauseDocument is the wire representation of a pause.
type PauseDocument struct {
	Start    time.Time `json:"debutPause"`
	End      time.Time `json:"finPause"`
	Duration int64     `json:"duree"`
}

// Serialize returns the wire representation of the session.
func (s *Session) Serialize() Document {
	doc := Document{
		ID:        s.ID,
		UserID:    s.UserID,
		StartTime: s.StartTime,
		Pauses:    make([]PauseDocument, len(s.Pauses)),
		EyeState:  s.EyeState,
		Notes:     s.Notes,
		Revision:  s.Revision,
	}

	if net, ok := s.NetDuration(); ok {
		end := s.EndTime
		ms := net.Milliseconds()
		doc.EndTime = &end
		doc.Duration = &ms
	}

	for i, p := range s.Pauses {
		doc.Pauses[i] = PauseDocument{
			Start:    p.Start,
			End:      p.End,
			Duration: p.Duration().Milliseconds(),
		}
	}

	return doc
}

// SerializeAll serializes a list of sessions.
func SerializeAll(sessions []*Session) []Document {
	docs := make([]Document, len(sessions))
	for i, s := range sessions {
		docs[i] = s.Serialize()
	}
	return docs
}
