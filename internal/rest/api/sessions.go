package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/goodtune/sessiontracker/internal/session"
)

// SessionService is the session lifecycle used by the handlers.
type SessionService interface {
	AddSession(ctx context.Context, s *session.Session) (*session.Session, error)
	UpdateSession(ctx context.Context, s *session.Session) (*session.Session, error)
	Sessions(ctx context.Context) ([]*session.Session, error)
	SessionsByUser(ctx context.Context, userID string) ([]*session.Session, error)
	LastSession(ctx context.Context, userID string) (*session.Session, error)
	Session(ctx context.Context, id string) (*session.Session, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteAllSessions(ctx context.Context) (int, error)
	StartSession(ctx context.Context, userID string, start time.Time) (*session.Session, error)
	EndSession(ctx context.Context, id string, end *time.Time) (*session.Session, error)
	AddPause(ctx context.Context, id string, start, end time.Time) (*session.Session, error)
	Metrics(ctx context.Context, userID string) (session.Metrics, error)
}

// SessionRequest is the body of session create and update requests.
// Timestamps are ISO-8601 strings.
type SessionRequest struct {
	ID       string         `json:"id"`
	UserID   string         `json:"userId"`
	Start    string         `json:"dateDebut"`
	End      string         `json:"dateFin"`
	Pauses   []PauseRequest `json:"pauses"`
	EyeState string         `json:"etatOculaire"`
	Notes    string         `json:"remarques"`
	Revision int64          `json:"revision"`
}

// PauseRequest is one pause of a SessionRequest.
type PauseRequest struct {
	Start string `json:"debutPause"`
	End   string `json:"finPause"`
}

// StartRequest is the body of POST /session/start.
type StartRequest struct {
	UserID string `json:"userId"`
	Start  string `json:"dateDebut"`
}

// EndRequest is the body of POST /session/end.
type EndRequest struct {
	SessionID string `json:"sessionId"`
	End       string `json:"dateFin"`
}

// PauseSessionRequest is the body of POST /session/pause.
type PauseSessionRequest struct {
	SessionID string `json:"sessionId"`
	Start     string `json:"debutPause"`
	End       string `json:"finPause"`
}

// MetricsResponse holds a user's aggregate metrics in milliseconds.
type MetricsResponse struct {
	UserID          string  `json:"userId"`
	Count           int     `json:"count"`
	Open            int     `json:"open"`
	AverageDuration float64 `json:"averageDuration"`
	MinDuration     float64 `json:"minDuration"`
	MaxDuration     float64 `json:"maxDuration"`
	MedianDuration  float64 `json:"medianDuration"`
	MaxGap          float64 `json:"maxGapBetweenPorts"`
}

// SessionsHandler handles session API requests.
type SessionsHandler struct {
	service SessionService
	logger  zerolog.Logger
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(service SessionService, logger zerolog.Logger) *SessionsHandler {
	return &SessionsHandler{
		service: service,
		logger:  logger.With().Str("handler", "sessions").Logger(),
	}
}

// Register mounts the session routes on router. Collection routes answer
// with and without the trailing slash.
func (h *SessionsHandler) Register(router *mux.Router) {
	for _, base := range []string{"/session", "/session/"} {
		router.HandleFunc(base, h.List).Methods(http.MethodGet)
		router.HandleFunc(base, h.Create).Methods(http.MethodPost)
		router.HandleFunc(base, h.Update).Methods(http.MethodPut)
		router.HandleFunc(base, h.DeleteAll).Methods(http.MethodDelete)
	}

	router.HandleFunc("/session/start", h.Start).Methods(http.MethodPost)
	router.HandleFunc("/session/end", h.End).Methods(http.MethodPost)
	router.HandleFunc("/session/pause", h.Pause).Methods(http.MethodPost)

	router.HandleFunc("/session/user/{userId}", h.ListByUser).Methods(http.MethodGet)
	router.HandleFunc("/session/user/{userId}/last", h.Last).Methods(http.MethodGet)
	router.HandleFunc("/session/user/{userId}/metrics", h.Metrics).Methods(http.MethodGet)

	router.HandleFunc("/session/{id}", h.Get).Methods(http.MethodGet)
	router.HandleFunc("/session/{id}", h.Delete).Methods(http.MethodDelete)
}

// List returns all sessions.
func (h *SessionsHandler) List(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.service.Sessions(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list sessions")
		WriteError(w, http.StatusInternalServerError, "Failed to retrieve sessions")
		return
	}

	WriteJSON(w, http.StatusOK, session.SerializeAll(sessions))
}

// ListByUser returns the sessions of one user.
func (h *SessionsHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]

	sessions, err := h.service.SessionsByUser(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to list user sessions")
		WriteError(w, http.StatusInternalServerError, "Failed to retrieve sessions")
		return
	}

	WriteJSON(w, http.StatusOK, session.SerializeAll(sessions))
}

// Last returns the most recent session of a user.
func (h *SessionsHandler) Last(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]

	s, err := h.service.LastSession(r.Context(), userID)
	if err != nil {
		h.fail(w, err, "Failed to retrieve last session")
		return
	}

	WriteJSON(w, http.StatusOK, s.Serialize())
}

// Metrics returns the aggregate metrics of a user.
func (h *SessionsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]

	m, err := h.service.Metrics(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to compute metrics")
		WriteError(w, http.StatusInternalServerError, "Failed to compute metrics")
		return
	}

	WriteJSON(w, http.StatusOK, MetricsResponse{
		UserID:          m.UserID,
		Count:           m.Count,
		Open:            m.Open,
		AverageDuration: millis(m.Average),
		MinDuration:     millis(m.Min),
		MaxDuration:     millis(m.Max),
		MedianDuration:  millis(m.Median),
		MaxGap:          millis(m.MaxGap),
	})
}

// Get returns a single session by ID.
func (h *SessionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	s, err := h.service.Session(r.Context(), id)
	if err != nil {
		h.fail(w, err, "Failed to retrieve session")
		return
	}

	WriteJSON(w, http.StatusOK, s.Serialize())
}

// Create stores a fully specified session.
func (h *SessionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	if err := decode(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s, err := req.toSession()
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.service.AddSession(r.Context(), s)
	if err != nil {
		h.fail(w, err, "Failed to create session")
		return
	}

	WriteJSON(w, http.StatusCreated, created.Serialize())
}

// Update replaces an existing session.
func (h *SessionsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	if err := decode(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s, err := req.toSession()
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.service.UpdateSession(r.Context(), s)
	if err != nil {
		h.fail(w, err, "Failed to update session")
		return
	}

	WriteJSON(w, http.StatusOK, updated.Serialize())
}

// Delete removes a session.
func (h *SessionsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.service.DeleteSession(r.Context(), id); err != nil {
		h.fail(w, err, "Failed to delete session")
		return
	}

	WriteJSON(w, http.StatusOK, MessageResponse{Message: "Session deleted"})
}

// DeleteAll removes every session.
func (h *SessionsHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.DeleteAllSessions(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to delete sessions")
		WriteError(w, http.StatusInternalServerError, "Failed to delete sessions")
		return
	}

	WriteJSON(w, http.StatusOK, MessageResponse{Message: "All sessions deleted", Deleted: n})
}

// Start begins a session for a user. Unknown users answer 404 and every
// other failure 403.
func (h *SessionsHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := decode(w, r, &req); err != nil {
		WriteError(w, http.StatusForbidden, "Invalid request body")
		return
	}

	var start time.Time
	if req.Start != "" {
		t, err := session.ParseTimestamp(req.Start)
		if err != nil {
			WriteError(w, http.StatusForbidden, err.Error())
			return
		}
		start = t
	}

	s, err := h.service.StartSession(r.Context(), req.UserID, start)
	if err != nil {
		if errors.Is(err, session.ErrUserNotFound) {
			WriteError(w, http.StatusNotFound, "User not found")
			return
		}
		h.logger.Error().Err(err).Str("user_id", req.UserID).Msg("Failed to start session")
		WriteError(w, http.StatusForbidden, "Failed to start session")
		return
	}

	WriteJSON(w, http.StatusCreated, s.Serialize())
}

// End sets the end time of a session.
func (h *SessionsHandler) End(w http.ResponseWriter, r *http.Request) {
	var req EndRequest
	if err := decode(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var end *time.Time
	if req.End != "" {
		t, err := session.ParseTimestamp(req.End)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		end = &t
	}

	s, err := h.service.EndSession(r.Context(), req.SessionID, end)
	if err != nil {
		h.fail(w, err, "Failed to end session")
		return
	}

	WriteJSON(w, http.StatusOK, s.Serialize())
}

// Pause appends a pause to a session.
func (h *SessionsHandler) Pause(w http.ResponseWriter, r *http.Request) {
	var req PauseSessionRequest
	if err := decode(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	start, err := session.ParseTimestamp(req.Start)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "debutPause: "+err.Error())
		return
	}
	end, err := session.ParseTimestamp(req.End)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "finPause: "+err.Error())
		return
	}

	s, err := h.service.AddPause(r.Context(), req.SessionID, start, end)
	if err != nil {
		h.fail(w, err, "Failed to add pause")
		return
	}

	WriteJSON(w, http.StatusOK, s.Serialize())
}

// fail maps service errors to status codes.
func (h *SessionsHandler) fail(w http.ResponseWriter, err error, message string) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		WriteError(w, http.StatusNotFound, "Session not found")
	case errors.Is(err, session.ErrUserNotFound):
		WriteError(w, http.StatusNotFound, "User not found")
	case errors.Is(err, session.ErrConflict):
		WriteError(w, http.StatusConflict, "Session was modified, reload and retry")
	case errors.Is(err, session.ErrInvalidSession),
		errors.Is(err, session.ErrInvalidTimestamp),
		errors.Is(err, session.ErrEndTimeRequired):
		WriteError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error().Err(err).Msg(message)
		WriteError(w, http.StatusInternalServerError, message)
	}
}

// toSession converts the request into a session entity.
func (req SessionRequest) toSession() (*session.Session, error) {
	var start, end time.Time
	var err error

	if req.Start != "" {
		if start, err = session.ParseTimestamp(req.Start); err != nil {
			return nil, fmt.Errorf("dateDebut: %w", err)
		}
	}
	if req.End != "" {
		if end, err = session.ParseTimestamp(req.End); err != nil {
			return nil, fmt.Errorf("dateFin: %w", err)
		}
	}

	pauses := make([]session.Pause, 0, len(req.Pauses))
	for i, p := range req.Pauses {
		ps, err := session.ParseTimestamp(p.Start)
		if err != nil {
			return nil, fmt.Errorf("pauses[%d].debutPause: %w", i, err)
		}
		pe, err := session.ParseTimestamp(p.End)
		if err != nil {
			return nil, fmt.Errorf("pauses[%d].finPause: %w", i, err)
		}
		pauses = append(pauses, session.Pause{Start: ps, End: pe})
	}

	s := session.New(req.UserID, start, end,
		session.WithID(req.ID),
		session.WithPauses(pauses...),
		session.WithEyeState(req.EyeState),
		session.WithNotes(req.Notes),
	)
	s.Revision = req.Revision
	return s, nil
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
