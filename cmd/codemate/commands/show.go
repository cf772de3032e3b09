package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shakti7/codemate/internal/config"
	"github.com/shakti7/codemate/internal/logging"
	"github.com/shakti7/codemate/pkg/models"
)

var showArtifact bool

// NewShowCommand creates the show command.
func NewShowCommand() *cobra.Command {
	showCmd := &cobra.Command{
		Use:   "show [session-id]",
		Short: "Show saved chats without the TUI",
		Long: `Show persisted chat sessions in a non-interactive format.
Without arguments: lists all saved sessions.
With a session id: prints that session's transcript.`,
		RunE: runShow,
	}
	showCmd.Flags().BoolVar(&showArtifact, "artifact", false, "Print the session's latest artifact instead of the transcript")
	return showCmd
}

func runShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logging.New(cfg.LogPath(), cfg.Debug)
	defer log.Sync()

	st, cleanup, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	if len(args) == 0 {
		return listSessions(st)
	}
	return showSession(st, args[0])
}

func listSessions(st sessionReader) error {
	order := st.Order()
	if len(order) == 0 {
		fmt.Println("No saved chats")
		return nil
	}
	current := st.CurrentID()
	for i, id := range order {
		sess, ok := st.Session(id)
		if !ok {
			continue
		}
		marker := " "
		if id == current {
			marker = "*"
		}
		fmt.Printf("%s %d. %s\n", marker, i+1, sess.Title)
		fmt.Printf("     id: %s  messages: %d\n", sess.ID, len(sess.Messages))
	}
	return nil
}

func showSession(st sessionReader, id string) error {
	sess, ok := st.Session(id)
	if !ok {
		return fmt.Errorf("no session with id %s", id)
	}

	if showArtifact {
		if sess.LatestArtifact == nil {
			return fmt.Errorf("session %s has no artifact", id)
		}
		fmt.Print(sess.LatestArtifact.Content)
		return nil
	}

	fmt.Printf("=== %s ===\n", sess.Title)
	for _, msg := range st.Project(id) {
		label := "[You]"
		if msg.Role == models.RoleAssistant {
			label = "[CodeMate]"
		}
		fmt.Printf("\n%s\n%s\n", label, msg.Content)
	}
	return nil
}

// sessionReader is the read-only slice of the store the show command needs.
type sessionReader interface {
	Order() []string
	CurrentID() string
	Session(id string) (models.Session, bool)
	Project(id string) []models.Message
}
