package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/tgienger/taskdesk/internal/config"
	"github.com/tgienger/taskdesk/internal/db"
	"github.com/tgienger/taskdesk/internal/logger"
	"github.com/tgienger/taskdesk/internal/tracker"
	"github.com/tgienger/taskdesk/internal/ui"
)

// session is the state shared by every command for one invocation.
type session struct {
	envFile  string
	dbPath   string
	logLevel string
	logJSON  bool

	cfg     *config.Config
	store   *db.DB
	svc     *tracker.Service
	logFile *os.File
}

func newRootCmd() *cobra.Command {
	s := &session{}
	root := &cobra.Command{
		Use:           "taskdesk",
		Short:         "Track tasks between customers and executors",
		Long:          "taskdesk keeps users, tasks and tags in a local SQLite database.\nRun it without a subcommand to open the terminal UI.",
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return s.open(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return s.close()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := tea.NewProgram(ui.NewApp(cmd.Context(), s.svc), tea.WithAltScreen())
			_, err := p.Run()
			return err
		},
	}
	root.SetVersionTemplate("taskdesk {{.Version}}\n")

	flags := root.PersistentFlags()
	flags.StringVar(&s.envFile, "env-file", "", "dotenv file to load (default .env)")
	flags.StringVar(&s.dbPath, "db", "", "path to the SQLite database file")
	flags.StringVar(&s.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.BoolVar(&s.logJSON, "log-json", false, "emit logs as JSON")

	root.AddCommand(
		initCmd(s),
		userCmd(s),
		taskCmd(s),
		tagCmd(s),
	)
	return root
}

func (s *session) open(cmd *cobra.Command) error {
	cfg, err := config.Load(s.envFile)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.Database.Path = s.dbPath
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = s.logLevel
	}
	if flags.Changed("log-json") {
		cfg.Log.JSON = s.logJSON
	}
	s.cfg = cfg

	// The TUI owns the terminal, so it logs to a file instead of stderr.
	var out io.Writer = cmd.ErrOrStderr()
	if cmd == cmd.Root() && cfg.Log.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Log.File), 0o755); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		s.logFile = f
		out = f
	}
	log := logger.NewLogger(&logger.Config{
		Level:      logger.LogLevel(cfg.Log.Level),
		Output:     out,
		JSON:       cfg.Log.JSON,
		TimeFormat: "15:04:05",
	})
	logger.SetDefault(log)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = logger.ContextWithLogger(ctx, log)
	cmd.SetContext(ctx)

	store, err := db.Open(ctx, db.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		AcquireTimeout:  cfg.Database.AcquireTimeout,
		BusyTimeout:     cfg.Database.BusyTimeout,
	})
	if err != nil {
		return err
	}
	s.store = store
	s.svc = tracker.New(store)
	return nil
}

func (s *session) close() error {
	var err error
	if s.store != nil {
		err = s.store.Close()
		s.store = nil
	}
	if s.logFile != nil {
		_ = s.logFile.Close()
		s.logFile = nil
	}
	return err
}

func initCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the database and its tables if they do not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "database ready at %s\n", s.store.Path())
			return nil
		},
	}
}
