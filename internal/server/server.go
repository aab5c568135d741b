// Package server implements the todo collection REST API over a SQLite store.
// It speaks the same surface the rest client consumes and is meant for local
// development and demos.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"todoapp/backend"
)

const maxBodyBytes = 1 << 20

// Store is the persistence the server needs.
type Store interface {
	List(ctx context.Context, userID int) ([]backend.Todo, error)
	Get(ctx context.Context, id int) (backend.Todo, error)
	Create(ctx context.Context, todo backend.Todo) (backend.Todo, error)
	Update(ctx context.Context, todo backend.Todo) (backend.Todo, error)
	Delete(ctx context.Context, id int) error
}

// Options configures a Server.
type Options struct {
	// Delay is added before every response.
	Delay  time.Duration
	Logger *log.Logger
}

// Server serves /todos.
type Server struct {
	store   Store
	delay   time.Duration
	log     *log.Logger
	schemas *schemas
	handler http.Handler
}

// New builds a server around store.
func New(store Store, opts Options) (*Server, error) {
	compiled, err := compileSchemas()
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	s := &Server{
		store:   store,
		delay:   opts.Delay,
		log:     logger,
		schemas: compiled,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /todos", s.handleList)
	mux.HandleFunc("POST /todos", s.handleCreate)
	mux.HandleFunc("PATCH /todos/{id}", s.handlePatch)
	mux.HandleFunc("DELETE /todos/{id}", s.handleDelete)

	s.handler = s.withRequestID(s.withAccessLog(withCORS(s.withDelay(mux))))
	return s, nil
}

// Handler returns the full middleware chain.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe listens on addr and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then drains open requests.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// =============================================================================
// Handlers
// =============================================================================

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("userId")
	userID, err := strconv.Atoi(raw)
	if err != nil || userID < 1 {
		writeError(w, http.StatusBadRequest, "userId query parameter must be a positive integer")
		return
	}

	todos, err := s.store.List(r.Context(), userID)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, todos)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r, s.schemas.create)
	if !ok {
		return
	}

	var input struct {
		UserID    int    `json:"userId"`
		Title     string `json:"title"`
		Completed bool   `json:"completed"`
	}
	if err := json.Unmarshal(body, &input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	created, err := s.store.Create(r.Context(), backend.Todo{
		UserID:    input.UserID,
		Title:     input.Title,
		Completed: input.Completed,
	})
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handlePatch(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	body, ok := s.readBody(w, r, s.schemas.patch)
	if !ok {
		return
	}

	var input struct {
		ID        *int    `json:"id"`
		UserID    *int    `json:"userId"`
		Title     *string `json:"title"`
		Completed *bool   `json:"completed"`
	}
	if err := json.Unmarshal(body, &input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if input.ID != nil && *input.ID != id {
		writeError(w, http.StatusBadRequest, "id in body does not match the URL")
		return
	}

	current, err := s.store.Get(r.Context(), id)
	if errors.Is(err, backend.ErrNotFound) {
		writeError(w, http.StatusNotFound, "todo not found")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	if input.UserID != nil {
		current.UserID = *input.UserID
	}
	if input.Title != nil {
		current.Title = *input.Title
	}
	if input.Completed != nil {
		current.Completed = *input.Completed
	}

	updated, err := s.store.Update(r.Context(), current)
	if errors.Is(err, backend.ErrNotFound) {
		writeError(w, http.StatusNotFound, "todo not found")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	err := s.store.Delete(r.Context(), id)
	if errors.Is(err, backend.ErrNotFound) {
		writeError(w, http.StatusNotFound, "todo not found")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// readBody reads a JSON body and validates it. It writes the 400 itself.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request, schema *jsonschema.Schema) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "request body too large or unreadable")
		return nil, false
	}

	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return nil, false
	}
	if err := validate(schema, doc); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return body, true
}

func pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id < 1 {
		writeError(w, http.StatusNotFound, "todo not found")
		return 0, false
	}
	return id, true
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.log.Error("storage error", "method", r.Method, "path", r.URL.Path,
		"request_id", r.Header.Get(requestIDHeader), "err", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
