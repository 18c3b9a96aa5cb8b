package api

import (
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

var validate = validator.New()

var errEmailTaken = errors.New("email already registered")

// User is the demonstration resource served by the worker fleet.
// Each worker holds its own in-memory copy; this is example traffic
// for exercising the lifecycle, not shared storage.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateUserRequest is the POST /api/v1/users body
type CreateUserRequest struct {
	Name  string `json:"name" validate:"required,min=1,max=128"`
	Email string `json:"email" validate:"required,email"`
}

// UpdateUserRequest is the PUT /api/v1/users/{id} body.
// Zero fields are left unchanged.
type UpdateUserRequest struct {
	Name  string `json:"name" validate:"omitempty,min=1,max=128"`
	Email string `json:"email" validate:"omitempty,email"`
}

// ErrorResponse is the error body for all API endpoints
type ErrorResponse struct {
	Error string `json:"error"`
}

type userStore struct {
	mu    sync.RWMutex
	users map[string]User
}

func newUserStore() *userStore {
	return &userStore{users: make(map[string]User)}
}

func (st *userStore) create(req CreateUserRequest) (User, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	for _, existing := range st.users {
		if existing.Email == req.Email {
			return User{}, errEmailTaken
		}
	}

	now := time.Now()
	user := User{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Email:     req.Email,
		CreatedAt: now,
		UpdatedAt: now,
	}
	st.users[user.ID] = user
	return user, nil
}

func (st *userStore) get(id string) (User, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	user, ok := st.users[id]
	return user, ok
}

func (st *userStore) update(id string, req UpdateUserRequest) (User, bool, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	user, ok := st.users[id]
	if !ok {
		return User{}, false, nil
	}

	if req.Email != "" && req.Email != user.Email {
		for _, existing := range st.users {
			if existing.Email == req.Email {
				return User{}, true, errEmailTaken
			}
		}
		user.Email = req.Email
	}
	if req.Name != "" {
		user.Name = req.Name
	}
	user.UpdatedAt = time.Now()
	st.users[id] = user
	return user, true, nil
}

func (st *userStore) delete(id string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, ok := st.users[id]; !ok {
		return false
	}
	delete(st.users, id)
	return true
}

func (st *userStore) list() []User {
	st.mu.RLock()
	defer st.mu.RUnlock()

	out := make([]User, 0, len(st.users))
	for _, user := range st.users {
		out = append(out, user)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.users.list())
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "validation failed: "+err.Error())
		return
	}

	user, err := s.users.create(req)
	if err != nil {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, user)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, ok := s.users.get(chi.URLParam(r, "id"))
	if !ok {
		respondError(w, http.StatusNotFound, "user not found")
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "validation failed: "+err.Error())
		return
	}

	user, found, err := s.users.update(chi.URLParam(r, "id"), req)
	if !found {
		respondError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if !s.users.delete(chi.URLParam(r, "id")) {
		respondError(w, http.StatusNotFound, "user not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}
