package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"todoapp/backend"
	"todoapp/backend/sqlite"
	"todoapp/internal/server"
)

// =============================================================================
// Helpers
// =============================================================================

// newTestAPI starts the reference server on an in-memory database.
func newTestAPI(t *testing.T) string {
	t.Helper()
	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("sqlite.New: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	srv, err := server.New(store, server.Options{})
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}

func testConfig(t *testing.T) *Config {
	t.Helper()
	return &Config{ConfigPath: filepath.Join(t.TempDir(), "config.yaml")}
}

// run executes the CLI against baseURL as user 7.
func run(t *testing.T, cfg *Config, baseURL string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	full := append([]string{"--base-url", baseURL, "--user-id", "7"}, args...)
	code := Execute(full, &stdout, &stderr, cfg)
	return code, stdout.String(), stderr.String()
}

func mustRun(t *testing.T, cfg *Config, baseURL string, args ...string) string {
	t.Helper()
	code, stdout, stderr := run(t, cfg, baseURL, args...)
	if code != 0 {
		t.Fatalf("%v: expected exit code 0, got %d: %s", args, code, stderr)
	}
	return stdout
}

func listJSON(t *testing.T, cfg *Config, baseURL string, args ...string) listResponse {
	t.Helper()
	out := mustRun(t, cfg, baseURL, append([]string{"list", "--json"}, args...)...)
	var resp listResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	return resp
}

// =============================================================================
// Core CLI Tests
// =============================================================================

func TestHelpFlag(t *testing.T) {
	var stdout, stderr bytes.Buffer

	exitCode := Execute([]string{"--help"}, &stdout, &stderr, nil)

	if exitCode != 0 {
		t.Fatalf("expected exit code 0, got %d: %s", exitCode, stderr.String())
	}
	output := stdout.String()
	for _, want := range []string{"todoapp", "Usage:", "toggle-all", "clear-completed", "serve"} {
		if !strings.Contains(output, want) {
			t.Errorf("help output should contain %q, got: %s", want, output)
		}
	}
}

func TestVersion(t *testing.T) {
	for _, args := range [][]string{{"--version"}, {"version"}} {
		var stdout, stderr bytes.Buffer
		if code := Execute(args, &stdout, &stderr, nil); code != 0 {
			t.Fatalf("%v: expected exit code 0, got %d", args, code)
		}
		if !strings.Contains(stdout.String(), "todoapp") {
			t.Errorf("%v: output should contain 'todoapp', got: %s", args, stdout.String())
		}
	}
}

func TestRootRequiresTerminal(t *testing.T) {
	orig := isTerminal
	isTerminal = func() bool { return false }
	defer func() { isTerminal = orig }()

	var stdout, stderr bytes.Buffer
	code := Execute(nil, &stdout, &stderr, testConfig(t))

	if code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	if !strings.Contains(stderr.String(), "not a terminal") {
		t.Errorf("expected terminal error, got: %s", stderr.String())
	}
}

func TestMissingUserID(t *testing.T) {
	baseURL := newTestAPI(t)
	var stdout, stderr bytes.Buffer

	code := Execute([]string{"--base-url", baseURL, "list"}, &stdout, &stderr, testConfig(t))

	if code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	if !strings.Contains(stderr.String(), "user id is not configured") {
		t.Errorf("expected user id error, got: %s", stderr.String())
	}
	if !strings.Contains(stderr.String(), "--user-id") {
		t.Errorf("expected suggestion to mention --user-id, got: %s", stderr.String())
	}
}

func TestErrorAsJSON(t *testing.T) {
	baseURL := newTestAPI(t)
	var stdout, stderr bytes.Buffer

	code := Execute([]string{"--base-url", baseURL, "list", "--json"}, &stdout, &stderr, testConfig(t))

	if code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	var resp errorResponse
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON %q: %v", stdout.String(), err)
	}
	if resp.Result != ResultError || resp.Error != "user id is not configured" {
		t.Errorf("unexpected error response: %+v", resp)
	}
}

func TestConfigFileTOML(t *testing.T) {
	baseURL := newTestAPI(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	content := "[api]\nbase_url = \"" + baseURL + "\"\nuser_id = 7\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	code := Execute([]string{"--config", path, "add", "From", "toml"}, &stdout, &stderr, nil)
	if code != 0 {
		t.Fatalf("expected exit code 0, got %d: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "Added #1: From toml") {
		t.Errorf("unexpected output: %s", stdout.String())
	}
}

// =============================================================================
// Todo commands
// =============================================================================

func TestAddAndList(t *testing.T) {
	baseURL := newTestAPI(t)
	cfg := testConfig(t)

	out := mustRun(t, cfg, baseURL, "list")
	if !strings.Contains(out, "No todos") {
		t.Errorf("expected empty list, got: %s", out)
	}

	out = mustRun(t, cfg, baseURL, "add", "  Buy", "milk  ")
	if !strings.Contains(out, "Added #1: Buy milk") {
		t.Errorf("unexpected add output: %s", out)
	}
	mustRun(t, cfg, baseURL, "add", "Walk dog")

	out = mustRun(t, cfg, baseURL, "list")
	for _, want := range []string{"[ ] 1  Buy milk", "[ ] 2  Walk dog", "2 items left"} {
		if !strings.Contains(out, want) {
			t.Errorf("list output should contain %q, got: %s", want, out)
		}
	}
}

func TestAddEmptyTitle(t *testing.T) {
	baseURL := newTestAPI(t)

	code, _, stderr := run(t, testConfig(t), baseURL, "add", "   ")

	if code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	if !strings.Contains(stderr, "Title should not be empty") {
		t.Errorf("expected empty title error, got: %s", stderr)
	}
}

func TestListJSONAndFilter(t *testing.T) {
	baseURL := newTestAPI(t)
	cfg := testConfig(t)
	mustRun(t, cfg, baseURL, "add", "Buy milk")
	mustRun(t, cfg, baseURL, "add", "Walk dog")
	mustRun(t, cfg, baseURL, "toggle", "2")

	all := listJSON(t, cfg, baseURL)
	if all.Count != 2 || all.ItemsLeft != 1 || all.Filter != "all" || all.Result != ResultInfoOnly {
		t.Errorf("unexpected list response: %+v", all)
	}

	completed := listJSON(t, cfg, baseURL, "--filter", "completed")
	want := []backend.Todo{{ID: 2, UserID: 7, Title: "Walk dog", Completed: true}}
	if len(completed.Todos) != 1 || completed.Todos[0] != want[0] {
		t.Errorf("expected %v, got %v", want, completed.Todos)
	}

	active := listJSON(t, cfg, baseURL, "--filter", "#/active")
	if len(active.Todos) != 1 || active.Todos[0].ID != 1 {
		t.Errorf("expected only todo 1, got %v", active.Todos)
	}
}

func TestListInvalidFilter(t *testing.T) {
	baseURL := newTestAPI(t)

	code, _, stderr := run(t, testConfig(t), baseURL, "list", "--filter", "done")

	if code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	if !strings.Contains(stderr, "invalid filter: done") || !strings.Contains(stderr, "Valid options") {
		t.Errorf("expected invalid filter error, got: %s", stderr)
	}
}

func TestToggle(t *testing.T) {
	baseURL := newTestAPI(t)
	cfg := testConfig(t)
	mustRun(t, cfg, baseURL, "add", "Buy milk")

	out := mustRun(t, cfg, baseURL, "toggle", "1")
	if !strings.Contains(out, "Completed #1: Buy milk") {
		t.Errorf("unexpected output: %s", out)
	}
	out = mustRun(t, cfg, baseURL, "toggle", "1")
	if !strings.Contains(out, "Reopened #1: Buy milk") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestToggleBadIDs(t *testing.T) {
	baseURL := newTestAPI(t)

	tests := []struct {
		arg  string
		want string
	}{
		{"99", "todo not found: 99"},
		{"abc", "invalid todo id"},
		{"0", "invalid todo id"},
	}

	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			code, _, stderr := run(t, testConfig(t), baseURL, "toggle", tt.arg)
			if code != 1 {
				t.Fatalf("expected exit code 1, got %d", code)
			}
			if !strings.Contains(stderr, tt.want) {
				t.Errorf("expected %q, got: %s", tt.want, stderr)
			}
		})
	}
}

func TestRename(t *testing.T) {
	baseURL := newTestAPI(t)
	cfg := testConfig(t)
	mustRun(t, cfg, baseURL, "add", "Buy milk")

	out := mustRun(t, cfg, baseURL, "rename", "1", " Buy", "oat", "milk ")
	if !strings.Contains(out, "Renamed #1: Buy oat milk") {
		t.Errorf("unexpected output: %s", out)
	}

	out = mustRun(t, cfg, baseURL, "rename", "1", "Buy oat milk  ")
	if !strings.Contains(out, "Unchanged #1") {
		t.Errorf("unexpected output: %s", out)
	}

	out = mustRun(t, cfg, baseURL, "rename", "1", "  ")
	if !strings.Contains(out, "Deleted #1: Buy oat milk") {
		t.Errorf("unexpected output: %s", out)
	}
	if resp := listJSON(t, cfg, baseURL); resp.Count != 0 {
		t.Errorf("expected empty list after rename to blank, got %v", resp.Todos)
	}
}

func TestRemove(t *testing.T) {
	baseURL := newTestAPI(t)
	cfg := testConfig(t)
	mustRun(t, cfg, baseURL, "add", "Buy milk")
	mustRun(t, cfg, baseURL, "add", "Walk dog")

	out := mustRun(t, cfg, baseURL, "rm", "1", "--json")
	var resp actionResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if resp.Action != "delete" || resp.Todo == nil || resp.Todo.ID != 1 || resp.Result != ResultActionCompleted {
		t.Errorf("unexpected response: %+v", resp)
	}

	list := listJSON(t, cfg, baseURL)
	if list.Count != 1 || list.Todos[0].Title != "Walk dog" {
		t.Errorf("unexpected remaining todos: %v", list.Todos)
	}
}

func TestToggleAll(t *testing.T) {
	baseURL := newTestAPI(t)
	cfg := testConfig(t)

	out := mustRun(t, cfg, baseURL, "toggle-all")
	if !strings.Contains(out, "No todos") {
		t.Errorf("unexpected output: %s", out)
	}

	mustRun(t, cfg, baseURL, "add", "Buy milk")
	mustRun(t, cfg, baseURL, "add", "Walk dog")
	mustRun(t, cfg, baseURL, "toggle", "1")

	out = mustRun(t, cfg, baseURL, "toggle-all")
	if !strings.Contains(out, "Marked 1 todo(s) completed") {
		t.Errorf("unexpected output: %s", out)
	}
	if resp := listJSON(t, cfg, baseURL); resp.ItemsLeft != 0 {
		t.Errorf("expected all completed, got %v", resp.Todos)
	}

	out = mustRun(t, cfg, baseURL, "toggle-all")
	if !strings.Contains(out, "Marked 2 todo(s) active") {
		t.Errorf("unexpected output: %s", out)
	}
	if resp := listJSON(t, cfg, baseURL); resp.ItemsLeft != 2 {
		t.Errorf("expected all active, got %v", resp.Todos)
	}
}

func TestClearCompleted(t *testing.T) {
	baseURL := newTestAPI(t)
	cfg := testConfig(t)
	for _, title := range []string{"a", "b", "c"} {
		mustRun(t, cfg, baseURL, "add", title)
	}
	mustRun(t, cfg, baseURL, "toggle", "1")
	mustRun(t, cfg, baseURL, "toggle", "3")

	out := mustRun(t, cfg, baseURL, "clear-completed")
	if !strings.Contains(out, "Deleted 2 completed todo(s)") {
		t.Errorf("unexpected output: %s", out)
	}

	list := listJSON(t, cfg, baseURL)
	if list.Count != 1 || list.Todos[0].Title != "b" {
		t.Errorf("unexpected remaining todos: %v", list.Todos)
	}
}

// =============================================================================
// Failures
// =============================================================================

func TestUnreachableAPI(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	baseURL := "http://" + ln.Addr().String()
	_ = ln.Close()

	code, _, stderr := run(t, testConfig(t), baseURL, "list")

	if code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	if !strings.Contains(stderr, "Error: Unable to load todos") {
		t.Errorf("expected load failure, got: %s", stderr)
	}
	if !strings.Contains(stderr, "Suggestion:") {
		t.Errorf("expected a suggestion, got: %s", stderr)
	}
}

func TestServerErrorsUseTaxonomy(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":1,"userId":7,"title":"a","completed":false}]`))
	}))
	defer ts.Close()

	code, _, stderr := run(t, testConfig(t), ts.URL, "add", "x")
	if code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	if !strings.Contains(stderr, "Error: Unable to add a todo") {
		t.Errorf("expected add failure, got: %s", stderr)
	}
	if strings.Contains(stderr, "Suggestion:") {
		t.Errorf("status errors should not carry a connectivity suggestion: %s", stderr)
	}

	code, _, stderr = run(t, testConfig(t), ts.URL, "toggle", "1")
	if code != 1 || !strings.Contains(stderr, "Unable to update a todo") {
		t.Errorf("expected update failure, got %d: %s", code, stderr)
	}

	code, _, stderr = run(t, testConfig(t), ts.URL, "rm", "1")
	if code != 1 || !strings.Contains(stderr, "Unable to delete a todo") {
		t.Errorf("expected delete failure, got %d: %s", code, stderr)
	}
}

// =============================================================================
// Serve
// =============================================================================

func TestServeStopsOnCancel(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "todos.db")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := testConfig(t)
	cfg.Context = ctx

	var stdout, stderr bytes.Buffer
	done := make(chan int, 1)
	go func() {
		done <- Execute([]string{"serve", "--addr", "127.0.0.1:0", "--db", dbPath}, &stdout, &stderr, cfg)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := os.Stat(dbPath); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("serve did not create the database")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case code := <-done:
		if code != 0 {
			t.Fatalf("expected exit code 0, got %d: %s", code, stderr.String())
		}
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not stop after cancel")
	}

	if !strings.Contains(stdout.String(), "Serving todos on 127.0.0.1:0") {
		t.Errorf("unexpected output: %s", stdout.String())
	}

	lock, err := server.AcquireDBLock(dbPath)
	if err != nil {
		t.Fatalf("lock should be released after serve: %v", err)
	}
	_ = lock.Release()
}

func TestServeRefusesLockedDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "todos.db")
	lock, err := server.AcquireDBLock(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = lock.Release() }()

	var stdout, stderr bytes.Buffer
	code := Execute([]string{"serve", "--addr", "127.0.0.1:0", "--db", dbPath}, &stdout, &stderr, testConfig(t))

	if code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	if !strings.Contains(stderr.String(), "database is in use") {
		t.Errorf("expected lock error, got: %s", stderr.String())
	}
}
