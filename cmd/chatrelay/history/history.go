package historycmder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatrelay/pkg/history"
	"github.com/papercomputeco/chatrelay/pkg/logger"
)

const historyLongDesc string = `Inspect conversations persisted by the SQLite history backend.

Without a conversation ID, lists every stored conversation with its
turn count and last activity. With one, prints its turns oldest first.

Examples:
  chatrelay history --sqlite chatrelay.db
  chatrelay history --sqlite chatrelay.db whatsapp:+15551234567`

const historyShortDesc string = "List or print stored conversations"

type historyCommander struct {
	sqlitePath string
	full       bool
}

func NewHistoryCmd() *cobra.Command {
	cmder := &historyCommander{}

	cmd := &cobra.Command{
		Use:   "history [conversation-id]",
		Short: historyShortDesc,
		Long:  historyLongDesc,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return cmder.show(cmd.Context(), cmd, args[0])
			}
			return cmder.list(cmd.Context(), cmd)
		},
	}

	cmd.Flags().StringVarP(&cmder.sqlitePath, "sqlite", "s", "", "Path to the SQLite history database")
	cmd.Flags().BoolVar(&cmder.full, "full", false, "Print full turn content instead of a preview")
	_ = cmd.MarkFlagRequired("sqlite")

	return cmd
}

func (c *historyCommander) open() (*history.SQLiteStore, error) {
	// Opening a missing path would silently create an empty database.
	if _, err := os.Stat(c.sqlitePath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("no history database at %s", c.sqlitePath)
		}
		return nil, fmt.Errorf("could not stat %s: %w", c.sqlitePath, err)
	}

	store, err := history.NewSQLiteStore(c.sqlitePath, history.DefaultMaxHistory)
	if err != nil {
		return nil, fmt.Errorf("could not open history database %s: %w", c.sqlitePath, err)
	}
	return store, nil
}

func (c *historyCommander) list(ctx context.Context, cmd *cobra.Command) error {
	store, err := c.open()
	if err != nil {
		return err
	}
	defer store.Close()

	summaries, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("could not list conversations: %w", err)
	}

	if len(summaries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No conversations stored.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CONVERSATION\tTURNS\tLAST SEEN")
	for _, s := range summaries {
		fmt.Fprintf(w, "%s\t%d\t%s\n", s.ConversationID, s.Turns, s.LastSeen.UTC().Format(time.RFC3339))
	}
	return w.Flush()
}

func (c *historyCommander) show(ctx context.Context, cmd *cobra.Command, conversationID string) error {
	store, err := c.open()
	if err != nil {
		return err
	}
	defer store.Close()

	turns, err := store.Get(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("could not read conversation %q: %w", conversationID, err)
	}
	if len(turns) == 0 {
		return fmt.Errorf("conversation %q not found", conversationID)
	}

	for _, turn := range turns {
		content := turn.Content
		if !c.full {
			content = logger.Truncate(content, 120)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s\n", turn.Role, content)
	}
	return nil
}
