// Package testutil provides shared test utilities for CLI testing across packages.
// Each CLITest drives the real command tree against a private reference API.
package testutil

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"todoapp/backend"
	"todoapp/backend/sqlite"
	"todoapp/cmd/todoapp/cmd"
	"todoapp/internal/server"
)

// DefaultUserID owns the todos created through a CLITest.
const DefaultUserID = 7

// CLITest provides a test helper for running CLI commands in isolation.
type CLITest struct {
	t          *testing.T
	cfg        *cmd.Config
	tmpDir     string
	configPath string
	baseURL    string
	userID     int
	store      *sqlite.Backend
}

// NewCLITest creates a CLI test helper backed by a reference API on an
// in-memory database.
func NewCLITest(t *testing.T) *CLITest {
	t.Helper()
	return newCLITest(t, ":memory:")
}

// NewCLITestWithDB is like NewCLITest but keeps the API database in the test's
// temporary directory.
func NewCLITestWithDB(t *testing.T) *CLITest {
	t.Helper()
	return newCLITest(t, filepath.Join(t.TempDir(), "todos.db"))
}

func newCLITest(t *testing.T, dbPath string) *CLITest {
	t.Helper()

	store, err := sqlite.New(dbPath)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	srv, err := server.New(store, server.Options{})
	if err != nil {
		t.Fatalf("failed to create test server: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	return &CLITest{
		t:          t,
		cfg:        &cmd.Config{ConfigPath: configPath},
		tmpDir:     tmpDir,
		configPath: configPath,
		baseURL:    ts.URL,
		userID:     DefaultUserID,
		store:      store,
	}
}

// Config returns the test configuration.
func (c *CLITest) Config() *cmd.Config {
	return c.cfg
}

// TmpDir returns the temporary directory for the test.
func (c *CLITest) TmpDir() string {
	return c.tmpDir
}

// ConfigPath returns the path to the config file.
func (c *CLITest) ConfigPath() string {
	return c.configPath
}

// BaseURL returns the reference API address.
func (c *CLITest) BaseURL() string {
	return c.baseURL
}

// Store returns the database behind the reference API.
func (c *CLITest) Store() *sqlite.Backend {
	return c.store
}

// AsUser switches the owner id passed to subsequent commands.
func (c *CLITest) AsUser(userID int) *CLITest {
	c.userID = userID
	return c
}

// SetFullConfig replaces the entire config file with the given YAML content.
func (c *CLITest) SetFullConfig(yamlContent string) {
	c.t.Helper()
	if err := os.WriteFile(c.configPath, []byte(yamlContent), 0644); err != nil {
		c.t.Fatalf("failed to write config file: %v", err)
	}
}

// Execute runs a CLI command with the given arguments and returns stdout, stderr, and exit code.
// The API address and owner id are passed as flags.
func (c *CLITest) Execute(args ...string) (stdout, stderr string, exitCode int) {
	c.t.Helper()
	var outBuf, errBuf bytes.Buffer
	full := append([]string{"--base-url", c.baseURL, "--user-id", strconv.Itoa(c.userID)}, args...)
	exitCode = cmd.Execute(full, &outBuf, &errBuf, c.cfg)
	return outBuf.String(), errBuf.String(), exitCode
}

// MustExecute runs a CLI command and fails the test if exit code is non-zero.
func (c *CLITest) MustExecute(args ...string) string {
	c.t.Helper()
	stdout, stderr, exitCode := c.Execute(args...)
	if exitCode != 0 {
		c.t.Fatalf("command %v failed with exit code %d\nstdout: %s\nstderr: %s", args, exitCode, stdout, stderr)
	}
	return stdout
}

// ExecuteAndFail runs a CLI command and fails the test if exit code is zero.
func (c *CLITest) ExecuteAndFail(args ...string) (stdout, stderr string) {
	c.t.Helper()
	stdout, stderr, exitCode := c.Execute(args...)
	if exitCode == 0 {
		c.t.Fatalf("command %v should have failed but succeeded\nstdout: %s", args, stdout)
	}
	return stdout, stderr
}

// ListTodos returns the todos visible under filter ("" for the configured default).
func (c *CLITest) ListTodos(filter string) []backend.Todo {
	c.t.Helper()
	args := []string{"list", "--json"}
	if filter != "" {
		args = append(args, "--filter", filter)
	}
	out := c.MustExecute(args...)

	var resp struct {
		Todos []backend.Todo `json:"todos"`
	}
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		c.t.Fatalf("invalid list JSON %q: %v", out, err)
	}
	return resp.Todos
}

// AssertContains fails the test if output doesn't contain expected string.
func AssertContains(t *testing.T, output, expected string) {
	t.Helper()
	if !strings.Contains(output, expected) {
		t.Errorf("expected output to contain %q, got:\n%s", expected, output)
	}
}

// AssertNotContains fails the test if output contains unexpected string.
func AssertNotContains(t *testing.T, output, unexpected string) {
	t.Helper()
	if strings.Contains(output, unexpected) {
		t.Errorf("expected output NOT to contain %q, got:\n%s", unexpected, output)
	}
}

// AssertExitCode fails the test if exit code doesn't match expected.
func AssertExitCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("expected exit code %d, got %d", want, got)
	}
}

// AssertResultCode verifies the result field of a JSON response.
func AssertResultCode(t *testing.T, output, expectedCode string) {
	t.Helper()
	var resp struct {
		Result string `json:"result"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(output)), &resp); err != nil {
		t.Fatalf("invalid JSON %q: %v", output, err)
	}
	if resp.Result != expectedCode {
		t.Errorf("expected result %s, got %s", expectedCode, resp.Result)
	}
}

// Result code constants for convenience.
const (
	ResultActionCompleted = cmd.ResultActionCompleted
	ResultInfoOnly        = cmd.ResultInfoOnly
	ResultError           = cmd.ResultError
)
