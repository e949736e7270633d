package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/goodtune/sessiontracker/internal/storage"
	"github.com/goodtune/sessiontracker/internal/users"
)

// UserDirectory manages users.
type UserDirectory interface {
	Create(ctx context.Context, user *storage.User) error
	Get(ctx context.Context, id string) (*storage.User, error)
	List(ctx context.Context) ([]storage.User, error)
	Delete(ctx context.Context, id string) error
}

// UserRequest is the body of POST /users/.
type UserRequest struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Age   int    `json:"age"`
}

// UsersHandler handles user API requests.
type UsersHandler struct {
	users  UserDirectory
	logger zerolog.Logger
}

// NewUsersHandler creates a new users handler.
func NewUsersHandler(directory UserDirectory, logger zerolog.Logger) *UsersHandler {
	return &UsersHandler{
		users:  directory,
		logger: logger.With().Str("handler", "users").Logger(),
	}
}

// Register mounts the user routes on router.
func (h *UsersHandler) Register(router *mux.Router) {
	for _, base := range []string{"/users", "/users/"} {
		router.HandleFunc(base, h.List).Methods(http.MethodGet)
		router.HandleFunc(base, h.Create).Methods(http.MethodPost)
	}
	router.HandleFunc("/users/{id}", h.Get).Methods(http.MethodGet)
	router.HandleFunc("/users/{id}", h.Delete).Methods(http.MethodDelete)
}

// List returns all users.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.users.List(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list users")
		WriteError(w, http.StatusInternalServerError, "Failed to retrieve users")
		return
	}

	if list == nil {
		list = []storage.User{}
	}
	WriteJSON(w, http.StatusOK, list)
}

// Get returns a single user by ID.
func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	user, err := h.users.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "User not found")
			return
		}
		h.logger.Error().Err(err).Str("id", id).Msg("Failed to get user")
		WriteError(w, http.StatusInternalServerError, "Failed to retrieve user")
		return
	}

	WriteJSON(w, http.StatusOK, user)
}

// Create registers a new user.
func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req UserRequest
	if err := decode(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user := storage.User{ID: req.ID, Email: req.Email, Age: req.Age}
	if err := h.users.Create(r.Context(), &user); err != nil {
		switch {
		case errors.Is(err, users.ErrInvalid):
			WriteError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, users.ErrExists):
			WriteError(w, http.StatusConflict, "User already exists")
		default:
			h.logger.Error().Err(err).Msg("Failed to create user")
			WriteError(w, http.StatusInternalServerError, "Failed to create user")
		}
		return
	}

	WriteJSON(w, http.StatusCreated, user)
}

// Delete removes a user. Their sessions are kept.
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.users.Delete(r.Context(), id); err != nil {
		if errors.Is(err, users.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "User not found")
			return
		}
		h.logger.Error().Err(err).Str("id", id).Msg("Failed to delete user")
		WriteError(w, http.StatusInternalServerError, "Failed to delete user")
		return
	}

	WriteJSON(w, http.StatusOK, MessageResponse{Message: "User deleted"})
}
