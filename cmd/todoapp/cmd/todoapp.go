package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"todoapp/backend"
	"todoapp/backend/rest"
	"todoapp/backend/sqlite"
	"todoapp/internal/config"
	"todoapp/internal/server"
	"todoapp/internal/shutdown"
	"todoapp/internal/state"
	"todoapp/internal/tui"
	"todoapp/internal/utils"
)

// Version is set at build time
var Version = "dev"

// Result codes for JSON output
const (
	ResultActionCompleted = "ACTION_COMPLETED"
	ResultInfoOnly        = "INFO_ONLY"
	ResultError           = "ERROR"
)

// Config holds process-level settings that are not part of the config file
type Config struct {
	ConfigPath string          // Path to config file (for testing)
	Verbose    bool
	Context    context.Context // Cancels long-running commands such as serve (for testing)
}

// isTerminal reports whether the interactive UI can take over the terminal.
var isTerminal = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// Execute runs the CLI with the given arguments and IO writers
func Execute(args []string, stdout, stderr io.Writer, cfg *Config) int {
	if cfg == nil {
		cfg = &Config{}
	}
	rootCmd := NewTodoApp(stdout, stderr, cfg)

	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	ctx := cfg.Context
	if ctx == nil {
		ctx = context.Background()
	}

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if containsJSONFlag(args) {
			outputErrorJSON(err, stdout)
		} else {
			_, _ = fmt.Fprintln(stderr, "Error:", err)
		}
		return 1
	}
	return 0
}

// containsJSONFlag checks if args contain --json flag
func containsJSONFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--json" {
			return true
		}
	}
	return false
}

// NewTodoApp creates the root command with injectable IO
func NewTodoApp(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	if cfg == nil {
		cfg = &Config{}
	}

	cmd := &cobra.Command{
		Use:     "todoapp",
		Short:   "A terminal client for a remote todo list",
		Long:    "todoapp keeps a todo list on a remote collection API. Run it without arguments for the interactive UI.",
		Version: Version,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !isTerminal() {
				return utils.ErrNotATerminal()
			}
			appCfg, err := loadSettings(cmd, cfg, stderr)
			if err != nil {
				return err
			}
			return runTUI(cmd.Context(), appCfg, stderr)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("config", "", "Path to config file (default $XDG_CONFIG_HOME/todoapp/config.yaml)")
	cmd.PersistentFlags().String("base-url", "", "Collection API base URL (overrides api.base_url)")
	cmd.PersistentFlags().Int("user-id", 0, "Owner id of the todo list (overrides api.user_id)")
	cmd.PersistentFlags().BoolP("verbose", "V", false, "Enable verbose/debug output")
	cmd.PersistentFlags().Bool("json", false, "Output in JSON format")

	cmd.AddCommand(newListCmd(stdout, stderr, cfg))
	cmd.AddCommand(newAddCmd(stdout, stderr, cfg))
	cmd.AddCommand(newToggleCmd(stdout, stderr, cfg))
	cmd.AddCommand(newRenameCmd(stdout, stderr, cfg))
	cmd.AddCommand(newRemoveCmd(stdout, stderr, cfg))
	cmd.AddCommand(newToggleAllCmd(stdout, stderr, cfg))
	cmd.AddCommand(newClearCompletedCmd(stdout, stderr, cfg))
	cmd.AddCommand(newServeCmd(stdout, stderr, cfg))
	cmd.AddCommand(newVersionCmd(stdout))

	return cmd
}

// =============================================================================
// Settings and wiring
// =============================================================================

// loadSettings reads the config file, applies flag overrides and configures
// the global logger to write to stderr.
func loadSettings(cmd *cobra.Command, cfg *Config, stderr io.Writer) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = cfg.ConfigPath
	}

	appCfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	baseURL, _ := cmd.Flags().GetString("base-url")
	userID, _ := cmd.Flags().GetInt("user-id")
	appCfg.ApplyFlags(baseURL, userID)

	if err := appCfg.Validate(); err != nil {
		return nil, err
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	utils.Configure(appCfg.GetLogOptions())
	utils.SetOutput(stderr)
	utils.SetVerboseMode(verbose || cfg.Verbose)
	return appCfg, nil
}

// session is one store bound to one remote collection.
type session struct {
	store   *state.Store
	remote  backend.Collection
	baseURL string
}

func openSession(ctx context.Context, appCfg *config.Config) (*session, error) {
	userID, err := appCfg.RequireUserID()
	if err != nil {
		return nil, err
	}

	logger := utils.GetLogger()
	remote, err := rest.New(rest.Config{
		BaseURL: appCfg.GetBaseURL(),
		Timeout: appCfg.GetTimeout(),
		Logger:  logger.WithPrefix("rest"),
	})
	if err != nil {
		return nil, err
	}

	store := state.New(ctx, remote, state.Options{
		UserID:         userID,
		MaxConcurrency: appCfg.GetMaxConcurrency(),
		Filter:         appCfg.GetDefaultFilter(),
		Logger:         logger.WithPrefix("state"),
	})
	return &session{store: store, remote: remote, baseURL: remote.BaseURL()}, nil
}

func (s *session) Close() {
	_ = s.remote.Close()
}

// settle runs cmd, applies its results and turns a store error into a CLI error.
func (s *session) settle(cmd tea.Cmd) error {
	var cause error
	for _, msg := range state.Run(cmd) {
		s.store.Apply(msg)
		if cause == nil {
			cause = resultError(msg)
		}
	}
	if m := s.store.Error(); m != state.NoError {
		return s.failure(m, cause)
	}
	return nil
}

func (s *session) load() error {
	return s.settle(s.store.Load())
}

// failure reports a taxonomy message, with a suggestion when the API could not be reached.
func (s *session) failure(m state.Message, cause error) error {
	var urlErr *url.Error
	if cause != nil && errors.As(cause, &urlErr) {
		var offline *utils.ErrorWithSuggestion
		if errors.As(utils.ErrBackendOffline(s.baseURL, urlErr.Err.Error()), &offline) {
			return utils.WrapWithSuggestion(fmt.Errorf("%s: %w", m, offline.Err), offline.Suggestion)
		}
	}
	return errors.New(m.String())
}

func resultError(msg tea.Msg) error {
	switch msg := msg.(type) {
	case state.LoadedMsg:
		return msg.Err
	case state.CreatedMsg:
		return msg.Err
	case state.UpdatedMsg:
		return msg.Err
	case state.DeletedMsg:
		return msg.Err
	case state.ToggledAllMsg:
		return msg.Err
	}
	return nil
}

// withSession loads settings, opens a session and runs fn with it.
func withSession(cmd *cobra.Command, cfg *Config, stderr io.Writer, fn func(*session) error) error {
	appCfg, err := loadSettings(cmd, cfg, stderr)
	if err != nil {
		return err
	}
	s, err := openSession(cmd.Context(), appCfg)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

// loadedTodo loads the collection and returns the todo with id.
func (s *session) loadedTodo(id int) (backend.Todo, error) {
	if err := s.load(); err != nil {
		return backend.Todo{}, err
	}
	todo, ok := s.store.Get(id)
	if !ok {
		return backend.Todo{}, utils.ErrTodoNotFound(id)
	}
	return todo, nil
}

// =============================================================================
// Interactive UI
// =============================================================================

func runTUI(ctx context.Context, appCfg *config.Config, stderr io.Writer) error {
	fileLogger, err := utils.NewFileLogger(appCfg.GetLogFile())
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Warning: logging disabled: %v\n", err)
	}
	defer fileLogger.Close()

	s, err := openSession(ctx, appCfg)
	if err != nil {
		return err
	}
	defer s.Close()

	model := tui.New(s.store, tui.Options{ErrorTimeout: appCfg.GetErrorTimeout()})
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

// =============================================================================
// Commands
// =============================================================================

func newListCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show todos",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOutput, _ := cmd.Flags().GetBool("json")
			filterName, _ := cmd.Flags().GetString("filter")
			return withSession(cmd, cfg, stderr, func(s *session) error {
				if filterName != "" {
					f, err := state.ParseFilter(filterName)
					if err != nil {
						return err
					}
					s.store.SetFilter(f)
				}
				if err := s.load(); err != nil {
					return err
				}
				return doList(s.store, stdout, jsonOutput)
			})
		},
	}
	cmd.Flags().StringP("filter", "f", "", "Filter: "+strings.Join(state.FilterNames(), ", ")+" (default ui.default_filter)")
	return cmd
}

func doList(store *state.Store, stdout io.Writer, jsonOutput bool) error {
	visible := store.Visible()
	if jsonOutput {
		return writeJSON(stdout, listResponse{
			Todos:     visible,
			Filter:    store.Filter().String(),
			Count:     len(visible),
			ItemsLeft: store.ActiveCount(),
			Result:    ResultInfoOnly,
		})
	}

	if store.Len() == 0 {
		_, _ = fmt.Fprintln(stdout, "No todos")
		return nil
	}
	for _, t := range visible {
		_, _ = fmt.Fprintf(stdout, "%s %d  %s\n", statusIcon(t), t.ID, t.Title)
	}
	_, _ = fmt.Fprintln(stdout, itemsLeft(store.ActiveCount()))
	return nil
}

func newAddCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "add TITLE...",
		Short: "Add a todo",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOutput, _ := cmd.Flags().GetBool("json")
			return withSession(cmd, cfg, stderr, func(s *session) error {
				if err := s.settle(s.store.Create(strings.Join(args, " "))); err != nil {
					return err
				}
				created := s.store.Todos()[s.store.Len()-1]
				return report(stdout, jsonOutput, "add", &created,
					fmt.Sprintf("Added #%d: %s", created.ID, created.Title))
			})
		},
	}
}

func newToggleCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle ID",
		Short: "Flip a todo between active and completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := utils.ParseTodoID(args[0])
			if err != nil {
				return err
			}
			jsonOutput, _ := cmd.Flags().GetBool("json")
			return withSession(cmd, cfg, stderr, func(s *session) error {
				if _, err := s.loadedTodo(id); err != nil {
					return err
				}
				if err := s.settle(s.store.Toggle(id)); err != nil {
					return err
				}
				todo, _ := s.store.Get(id)
				verb := "Reopened"
				if todo.Completed {
					verb = "Completed"
				}
				return report(stdout, jsonOutput, "toggle", &todo,
					fmt.Sprintf("%s #%d: %s", verb, todo.ID, todo.Title))
			})
		},
	}
}

func newRenameCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "rename ID TITLE...",
		Short: "Rename a todo; an empty title deletes it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := utils.ParseTodoID(args[0])
			if err != nil {
				return err
			}
			jsonOutput, _ := cmd.Flags().GetBool("json")
			draft := strings.Join(args[1:], " ")
			return withSession(cmd, cfg, stderr, func(s *session) error {
				before, err := s.loadedTodo(id)
				if err != nil {
					return err
				}
				action, op := s.store.Edit(id, draft)
				if err := s.settle(op); err != nil {
					return err
				}
				switch action {
				case state.EditDelete:
					return report(stdout, jsonOutput, "delete", &before,
						fmt.Sprintf("Deleted #%d: %s", before.ID, before.Title))
				case state.EditRename:
					todo, _ := s.store.Get(id)
					return report(stdout, jsonOutput, "rename", &todo,
						fmt.Sprintf("Renamed #%d: %s", todo.ID, todo.Title))
				default:
					return report(stdout, jsonOutput, "keep", &before,
						fmt.Sprintf("Unchanged #%d: %s", before.ID, before.Title))
				}
			})
		},
	}
}

func newRemoveCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:     "rm ID",
		Aliases: []string{"delete"},
		Short:   "Delete a todo",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := utils.ParseTodoID(args[0])
			if err != nil {
				return err
			}
			jsonOutput, _ := cmd.Flags().GetBool("json")
			return withSession(cmd, cfg, stderr, func(s *session) error {
				todo, err := s.loadedTodo(id)
				if err != nil {
					return err
				}
				if err := s.settle(s.store.Delete(id)); err != nil {
					return err
				}
				return report(stdout, jsonOutput, "delete", &todo,
					fmt.Sprintf("Deleted #%d: %s", todo.ID, todo.Title))
			})
		},
	}
}

func newToggleAllCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle-all",
		Short: "Complete every todo, or reopen all when all are completed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOutput, _ := cmd.Flags().GetBool("json")
			return withSession(cmd, cfg, stderr, func(s *session) error {
				if err := s.load(); err != nil {
					return err
				}
				if s.store.Len() == 0 {
					return report(stdout, jsonOutput, "toggle-all", nil, "No todos")
				}
				target := !s.store.AllCompleted()
				changed := s.store.Len()
				if target {
					changed = s.store.ActiveCount()
				}
				if err := s.settle(s.store.ToggleAll()); err != nil {
					return err
				}
				label := "active"
				if target {
					label = "completed"
				}
				return report(stdout, jsonOutput, "toggle-all", nil,
					fmt.Sprintf("Marked %d todo(s) %s", changed, label))
			})
		},
	}
}

func newClearCompletedCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-completed",
		Short: "Delete every completed todo",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOutput, _ := cmd.Flags().GetBool("json")
			return withSession(cmd, cfg, stderr, func(s *session) error {
				if err := s.load(); err != nil {
					return err
				}
				before := s.store.Len()
				err := s.settle(s.store.DeleteCompleted())
				deleted := before - s.store.Len()
				if err != nil {
					if deleted > 0 {
						_, _ = fmt.Fprintf(stderr, "Deleted %d todo(s) before the failure\n", deleted)
					}
					return err
				}
				return report(stdout, jsonOutput, "clear-completed", nil,
					fmt.Sprintf("Deleted %d completed todo(s)", deleted))
			})
		},
	}
}

func newServeCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the reference todo API on a local SQLite database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			appCfg, err := loadSettings(cmd, cfg, stderr)
			if err != nil {
				return err
			}

			addr := appCfg.GetServerAddr()
			if v, _ := cmd.Flags().GetString("addr"); v != "" {
				addr = v
			}
			dbPath := appCfg.GetServerDBPath()
			if v, _ := cmd.Flags().GetString("db"); v != "" {
				dbPath = config.ExpandPath(v)
			}
			delay := appCfg.GetServerDelay()
			if cmd.Flags().Changed("delay") {
				delay, _ = cmd.Flags().GetDuration("delay")
			}
			return doServe(cmd.Context(), addr, dbPath, delay, stdout)
		},
	}
	cmd.Flags().String("addr", "", "Listen address (default server.addr)")
	cmd.Flags().String("db", "", "SQLite database path (default server.db_path)")
	cmd.Flags().Duration("delay", 0, "Artificial latency added to every response (default server.delay)")
	return cmd
}

func doServe(ctx context.Context, addr, dbPath string, delay time.Duration, stdout io.Writer) error {
	logger := utils.GetLogger().WithPrefix("server")

	lock, err := server.AcquireDBLock(dbPath)
	if err != nil {
		return err
	}

	mgr := shutdown.NewManager(logger)
	mgr.RegisterCleanup("database lock", func(context.Context) error {
		return lock.Release()
	})

	store, err := sqlite.New(dbPath)
	if err != nil {
		_ = drain(mgr)
		return err
	}
	mgr.RegisterCleanup("database", func(context.Context) error {
		return store.Close()
	})

	srv, err := server.New(store, server.Options{Delay: delay, Logger: logger})
	if err != nil {
		_ = drain(mgr)
		return err
	}

	mgr.WatchSignals()
	go func() {
		select {
		case <-ctx.Done():
			mgr.Shutdown()
		case <-mgr.Done():
		}
	}()

	_, _ = fmt.Fprintf(stdout, "Serving todos on %s (database %s)\n", addr, dbPath)
	serveErr := srv.ListenAndServe(mgr.Context(), addr)
	return errors.Join(serveErr, drain(mgr))
}

func drain(mgr *shutdown.Manager) error {
	mgr.Shutdown()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return mgr.Wait(ctx)
}

func newVersionCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(stdout, "todoapp %s\n", Version)
		},
	}
}

// =============================================================================
// Output
// =============================================================================

type listResponse struct {
	Todos     []backend.Todo `json:"todos"`
	Filter    string         `json:"filter"`
	Count     int            `json:"count"`
	ItemsLeft int            `json:"items_left"`
	Result    string         `json:"result"`
}

type actionResponse struct {
	Action  string        `json:"action"`
	Todo    *backend.Todo `json:"todo,omitempty"`
	Message string        `json:"message"`
	Result  string        `json:"result"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Code   int    `json:"code"`
	Result string `json:"result"`
}

// report prints an action result as text or JSON.
func report(stdout io.Writer, jsonOutput bool, action string, todo *backend.Todo, text string) error {
	if jsonOutput {
		return writeJSON(stdout, actionResponse{
			Action:  action,
			Todo:    todo,
			Message: text,
			Result:  ResultActionCompleted,
		})
	}
	_, _ = fmt.Fprintln(stdout, text)
	return nil
}

func writeJSON(stdout io.Writer, v interface{}) error {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(stdout, string(jsonBytes))
	return nil
}

// outputErrorJSON outputs error in JSON format
func outputErrorJSON(err error, stdout io.Writer) {
	msg := err.Error()
	var withSuggestion *utils.ErrorWithSuggestion
	if errors.As(err, &withSuggestion) {
		msg = withSuggestion.Err.Error()
	}
	_ = writeJSON(stdout, errorResponse{
		Error:  msg,
		Code:   1,
		Result: ResultError,
	})
}

func statusIcon(t backend.Todo) string {
	if t.Completed {
		return "[x]"
	}
	return "[ ]"
}

func itemsLeft(n int) string {
	if n == 1 {
		return "1 item left"
	}
	return fmt.Sprintf("%d items left", n)
}
