package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shakti7/codemate/internal/config"
	"github.com/shakti7/codemate/internal/db"
	"github.com/shakti7/codemate/internal/logging"
	"github.com/shakti7/codemate/internal/store"
	"github.com/shakti7/codemate/internal/stream"
	"github.com/shakti7/codemate/internal/tui"
)

var backendFlag string

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "codemate",
		Short: "Chat with the CodeMate code-generation assistant",
		Long:  `codemate is a terminal chat client for the CodeMate assistant: streaming responses, multiple chat sessions, artifact preview, and message editing with history.`,
		RunE:  runTUI,
	}

	rootCmd.PersistentFlags().StringVar(&backendFlag, "backend", "", "Backend base URL (overrides CODEMATE_BACKEND_URL)")
	rootCmd.AddCommand(NewShowCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute() {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if backendFlag != "" {
		cfg.BackendURL = backendFlag
	}

	log := logging.New(cfg.LogPath(), cfg.Debug)
	defer log.Sync()

	st, cleanup, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	client := stream.NewClient(cfg.BackendURL, cfg.ConnectTimeout)
	orch := stream.NewOrchestrator(st, client, log)

	log.Info("starting TUI", zap.String("backend", cfg.BackendURL))
	return tui.Run(st, orch, log)
}

// openStore loads the persisted session collection, falling back to an
// in-memory store when the snapshot database cannot be opened.
func openStore(cfg *config.Config, log *zap.Logger) (*store.Store, func(), error) {
	database, err := db.Open(cfg.SnapshotPath())
	if err != nil {
		log.Warn("snapshot database unavailable, sessions will not persist", zap.Error(err))
		return store.New(nil, log), func() {}, nil
	}
	st := store.New(store.NewKVSnapshots(database), log)
	st.Load()
	return st, func() { database.Close() }, nil
}
