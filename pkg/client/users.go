package client

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
)

// User mirrors the demonstration resource served by the worker fleet
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type userRequest struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// ListUsers fetches all users from whichever worker answers
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// CreateUser registers a new user
func (c *Client) CreateUser(ctx context.Context, name, email string) (*User, error) {
	var user User
	body := userRequest{Name: name, Email: email}
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/users", &body, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUser fetches one user by ID
func (c *Client) GetUser(ctx context.Context, id string) (*User, error) {
	var user User
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/users/"+id, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateUser changes a user's name and/or email; empty fields are left
// unchanged
func (c *Client) UpdateUser(ctx context.Context, id, name, email string) (*User, error) {
	var user User
	body := userRequest{Name: name, Email: email}
	if err := c.doJSON(ctx, http.MethodPut, "/api/v1/users/"+id, &body, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// DeleteUser removes a user by ID
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/v1/users/"+id, nil, nil)
}

// doJSON performs a request with an optional JSON body and decodes the
// response into out. API errors arrive as {"error": "..."} bodies with
// a 4xx/5xx code and are surfaced as Go errors.
func (c *Client) doJSON(ctx context.Context, method, path string, in, out interface{}) error {
	var reqBody *bytes.Buffer
	if in != nil {
		reqBody = &bytes.Buffer{}
		if err := json.NewEncoder(reqBody).Encode(in); err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	var req *http.Request
	var err error
	if reqBody != nil {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	}
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach %s: %w", c.baseURL+path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		var apiErr errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s (status %d)", method, path, apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: unexpected status code: %d", method, path, resp.StatusCode)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
