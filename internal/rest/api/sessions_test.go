package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/goodtune/sessiontracker/internal/session"
)

var errBackend = errors.New("backend unavailable")

// failingService fails every call with err.
type failingService struct {
	SessionService
	err error
}

func (f failingService) Sessions(context.Context) ([]*session.Session, error) { return nil, f.err }
func (f failingService) SessionsByUser(context.Context, string) ([]*session.Session, error) {
	return nil, f.err
}
func (f failingService) DeleteAllSessions(context.Context) (int, error) { return 0, f.err }
func (f failingService) Metrics(context.Context, string) (session.Metrics, error) {
	return session.Metrics{}, f.err
}
func (f failingService) StartSession(context.Context, string, time.Time) (*session.Session, error) {
	return nil, f.err
}
func (f failingService) EndSession(context.Context, string, *time.Time) (*session.Session, error) {
	return nil, f.err
}
func (f failingService) AddPause(context.Context, string, time.Time, time.Time) (*session.Session, error) {
	return nil, f.err
}

func newRouter(service SessionService) *mux.Router {
	router := mux.NewRouter()
	NewSessionsHandler(service, zerolog.Nop()).Register(router)
	return router
}

func serve(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func TestSessionsHandler_BackendErrors(t *testing.T) {
	router := newRouter(failingService{err: errBackend})

	tests := []struct {
		method string
		path   string
		body   string
		want   int
	}{
		{http.MethodGet, "/session/", "", http.StatusInternalServerError},
		{http.MethodGet, "/session", "", http.StatusInternalServerError},
		{http.MethodDelete, "/session/", "", http.StatusInternalServerError},
		{http.MethodGet, "/session/user/u1", "", http.StatusInternalServerError},
		{http.MethodGet, "/session/user/u1/metrics", "", http.StatusInternalServerError},
		{http.MethodPost, "/session/start", `{"userId":"u1"}`, http.StatusForbidden},
		{http.MethodPost, "/session/end", `{"sessionId":"s1","dateFin":"2024-03-01T10:00:00Z"}`, http.StatusInternalServerError},
		{http.MethodPost, "/session/pause", `{"sessionId":"s1","debutPause":"2024-03-01T10:00","finPause":"2024-03-01T10:05"}`, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := serve(router, tt.method, tt.path, tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
		})
	}
}

func TestSessionsHandler_DomainErrors(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{session.ErrSessionNotFound, http.StatusNotFound},
		{session.ErrConflict, http.StatusConflict},
		{session.ErrEndTimeRequired, http.StatusBadRequest},
		{session.ErrInvalidSession, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			router := newRouter(failingService{err: tt.err})
			rec := serve(router, http.MethodPost, "/session/end", `{"sessionId":"s1"}`)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestSessionRequest_ToSession(t *testing.T) {
	req := SessionRequest{
		ID:       "s1",
		UserID:   "u1",
		Start:    "2024-03-01T10:00:00+02:00",
		End:      "2024-03-01T12:00",
		Pauses:   []PauseRequest{{Start: "2024-03-01T10:30", End: "2024-03-01T11:00"}},
		EyeState: "tired",
		Notes:    "n",
		Revision: 4,
	}

	s, err := req.toSession()
	if err != nil {
		t.Fatalf("toSession: %v", err)
	}
	if !s.StartTime.Equal(time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)) || s.StartTime.Location() != time.UTC {
		t.Errorf("StartTime = %v, want 08:00 UTC", s.StartTime)
	}
	if net, ok := s.NetDuration(); !ok || net != 3*time.Hour+30*time.Minute {
		t.Errorf("NetDuration = %v, %v", net, ok)
	}
	if s.ID != "s1" || s.Revision != 4 || s.EyeState != "tired" {
		t.Errorf("session = %+v", s)
	}

	if _, err := (SessionRequest{UserID: "u1", Start: "bogus"}).toSession(); !errors.Is(err, session.ErrInvalidTimestamp) {
		t.Errorf("err = %v, want ErrInvalidTimestamp", err)
	}
}
