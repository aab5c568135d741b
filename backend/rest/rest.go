// Package rest provides a backend implementation for the students-api style todo REST API.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"todoapp/backend"
)

const (
	// DefaultBaseURL is the public todo collection API
	DefaultBaseURL = "https://mate.academy/students-api"

	// DefaultTimeout bounds a single request
	DefaultTimeout = 30 * time.Second

	// RequestIDHeader carries the per-request correlation id
	RequestIDHeader = "X-Request-Id"
)

// Config holds REST connection settings
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  *log.Logger
}

// ConfigFromEnv creates a Config from environment variables
func ConfigFromEnv() Config {
	return Config{
		BaseURL: os.Getenv("TODOAPP_BASE_URL"),
	}
}

// StatusError reports a non-2xx answer from the API.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.StatusCode)
}

// Backend implements backend.Collection over HTTP
type Backend struct {
	config  Config
	client  *http.Client
	baseURL string
	log     *log.Logger
}

// New creates a new REST backend
func New(cfg Config) (*Backend, error) {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	return &Backend{
		config:  cfg,
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		log:     logger.WithPrefix("rest"),
	}, nil
}

// BaseURL returns the resolved API base URL.
func (b *Backend) BaseURL() string {
	return b.baseURL
}

// Close closes the backend
func (b *Backend) Close() error {
	if b.client == nil {
		return nil
	}
	b.client.CloseIdleConnections()
	return nil
}

// doRequest performs a single JSON request. There is no retry: a failed call is
// reported to the caller as is.
func (b *Backend) doRequest(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}

	requestID := backend.GenerateRequestID()
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	req.Header.Set(RequestIDHeader, requestID)

	start := time.Now()
	resp, err := b.client.Do(req)
	if err != nil {
		b.log.Debug("request failed", "method", method, "path", path, "request_id", requestID, "err", err)
		return nil, err
	}
	b.log.Debug("request done", "method", method, "path", path, "request_id", requestID,
		"status", resp.StatusCode, "elapsed", time.Since(start))

	return resp, nil
}

// expectStatus closes resp and returns a StatusError unless its code is one of ok.
func expectStatus(resp *http.Response, method, path string, ok ...int) error {
	for _, code := range ok {
		if resp.StatusCode == code {
			return nil
		}
	}
	_ = resp.Body.Close()
	return &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode}
}

// List returns all todos owned by userID
func (b *Backend) List(ctx context.Context, userID int) ([]backend.Todo, error) {
	path := "/todos?userId=" + strconv.Itoa(userID)

	resp, err := b.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if err := expectStatus(resp, http.MethodGet, path, http.StatusOK); err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var todos []backend.Todo
	if err := json.NewDecoder(resp.Body).Decode(&todos); err != nil {
		return nil, fmt.Errorf("failed to decode todos: %w", err)
	}
	if todos == nil {
		todos = []backend.Todo{}
	}
	return todos, nil
}

// Create adds a todo and returns the stored record with its assigned id
func (b *Backend) Create(ctx context.Context, todo backend.Todo) (backend.Todo, error) {
	body := struct {
		UserID    int    `json:"userId"`
		Title     string `json:"title"`
		Completed bool   `json:"completed"`
	}{
		UserID:    todo.UserID,
		Title:     todo.Title,
		Completed: todo.Completed,
	}

	resp, err := b.doRequest(ctx, http.MethodPost, "/todos", body)
	if err != nil {
		return backend.Todo{}, err
	}
	if err := expectStatus(resp, http.MethodPost, "/todos", http.StatusOK, http.StatusCreated); err != nil {
		return backend.Todo{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	var created backend.Todo
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return backend.Todo{}, fmt.Errorf("failed to decode created todo: %w", err)
	}
	return created, nil
}

// Update sends the full record and returns the server's canonical copy
func (b *Backend) Update(ctx context.Context, todo backend.Todo) (backend.Todo, error) {
	path := "/todos/" + strconv.Itoa(todo.ID)

	resp, err := b.doRequest(ctx, http.MethodPatch, path, todo)
	if err != nil {
		return backend.Todo{}, err
	}
	if err := expectStatus(resp, http.MethodPatch, path, http.StatusOK); err != nil {
		return backend.Todo{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	var updated backend.Todo
	if err := json.NewDecoder(resp.Body).Decode(&updated); err != nil {
		return backend.Todo{}, fmt.Errorf("failed to decode updated todo: %w", err)
	}
	return updated, nil
}

// Delete removes a todo
func (b *Backend) Delete(ctx context.Context, id int) error {
	path := "/todos/" + strconv.Itoa(id)

	resp, err := b.doRequest(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	if err := expectStatus(resp, http.MethodDelete, path, http.StatusOK, http.StatusNoContent); err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	return nil
}

// Verify interface compliance at compile time
var _ backend.Collection = (*Backend)(nil)
