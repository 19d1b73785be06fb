package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/fwojciec/lunarys"
	lunarysjson "github.com/fwojciec/lunarys/json"
	"github.com/fwojciec/lunarys/markdown"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/wordwrap"
	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"
)

const titleWidth = 40

func newConversationsCmd(a *app) *cobra.Command {
	var filter string
	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"ls"},
		Short:   "List conversations",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			convs, err := a.backend.ListConversations(cmd.Context())
			if err != nil {
				return fmt.Errorf("list conversations: %w", err)
			}
			if filter != "" {
				convs = filterConversations(convs, filter)
			}
			if len(convs) == 0 {
				fmt.Fprintln(a.stdout, "No conversations.")
				return nil
			}

			t := table.New().
				Border(lipgloss.NormalBorder()).
				Headers("ID", "TITLE", "MODEL", "UPDATED")
			for _, c := range convs {
				t.Row(
					c.ID.String(),
					runewidth.Truncate(markdown.Sanitize(c.Title), titleWidth, "…"),
					string(c.Model),
					formatTime(c.UpdatedAt),
				)
			}
			fmt.Fprintln(a.stdout, t.Render())
			return nil
		},
	}
	cmd.Flags().StringVarP(&filter, "filter", "f", "", "show only conversations whose title fuzzy-matches this")
	return cmd
}

// titleSource exposes conversation titles to fuzzy matching.
type titleSource []lunarys.Conversation

func (s titleSource) String(i int) string { return s[i].Title }
func (s titleSource) Len() int            { return len(s) }

// filterConversations keeps the conversations whose title matches query,
// best match first.
func filterConversations(convs []lunarys.Conversation, query string) []lunarys.Conversation {
	matches := fuzzy.FindFrom(query, titleSource(convs))
	out := make([]lunarys.Conversation, 0, len(matches))
	for _, m := range matches {
		out = append(out, convs[m.Index])
	}
	return out
}

func newHistoryCmd(a *app) *cobra.Command {
	var (
		raw           bool
		showReasoning bool
		width         int
	)
	cmd := &cobra.Command{
		Use:   "history <id>",
		Short: "Print the messages of a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := lunarys.ParseConversationID(args[0])
			if err != nil {
				return err
			}
			msgs, err := a.backend.ListMessages(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("load conversation %d: %w", id, err)
			}

			for i, m := range msgs {
				if i > 0 {
					fmt.Fprintln(a.stdout)
				}
				content := markdown.Sanitize(m.Content)
				fmt.Fprintf(a.stdout, "[%s]\n", m.Role)
				if showReasoning && m.Reasoning() != "" {
					reasoning := "(reasoning) " + markdown.Sanitize(m.Reasoning())
					fmt.Fprintln(a.stdout, wordwrap.String(reasoning, width))
				}
				if !raw && m.Role == lunarys.RoleAssistant {
					content = markdown.Render(content, width, a.cfg.Theme)
				} else {
					content = wordwrap.String(content, width)
				}
				fmt.Fprintln(a.stdout, content)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print markdown source instead of rendering it")
	cmd.Flags().BoolVar(&showReasoning, "reasoning", false, "include the model's reasoning")
	cmd.Flags().IntVar(&width, "width", 80, "wrap width")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a conversation",
		Long: `Delete a conversation from the server.

When stdin is a terminal the deletion must be confirmed unless --yes is
given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := lunarys.ParseConversationID(args[0])
			if err != nil {
				return err
			}
			if !yes && a.interactive() {
				confirmed, err := confirmDelete(id)
				if err != nil {
					return err
				}
				if !confirmed {
					fmt.Fprintln(a.stdout, "Canceled.")
					return nil
				}
			}

			res, err := a.backend.DeleteConversation(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("delete conversation %d: %w", id, err)
			}
			switch res {
			case lunarys.DeleteNotFound:
				fmt.Fprintf(a.stdout, "Conversation %d not found.\n", id)
			default:
				fmt.Fprintf(a.stdout, "Deleted conversation %d.\n", id)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "delete without asking")
	return cmd
}

func confirmDelete(id int64) (bool, error) {
	var confirmed bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Delete conversation %d?", id)).
				Affirmative("Delete").
				Negative("Keep").
				Value(&confirmed),
		),
	)
	if err := form.Run(); err != nil {
		return false, fmt.Errorf("confirm: %w", err)
	}
	return confirmed, nil
}

func newExportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export <id> <file>",
		Short: "Write a conversation transcript as JSON",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := lunarys.ParseConversationID(args[0])
			if err != nil {
				return err
			}

			conv := lunarys.Conversation{ID: lunarys.Confirmed{ID: id}}
			convs, err := a.backend.ListConversations(ctx)
			if err != nil {
				a.logger.WithError(err).Warn("exporting without conversation details")
			}
			for _, c := range convs {
				if c.ID == conv.ID {
					conv = c
					break
				}
			}

			msgs, err := a.backend.ListMessages(ctx, id)
			if err != nil {
				return fmt.Errorf("load conversation %d: %w", id, err)
			}
			t := lunarys.Transcript{
				Conversation: conv,
				Messages:     msgs,
				ExportedAt:   time.Now().UTC(),
			}
			if err := lunarysjson.Save(args[1], t); err != nil {
				return fmt.Errorf("export: %w", err)
			}
			fmt.Fprintf(a.stdout, "Exported %d %s to %s.\n", len(msgs), plural(len(msgs), "message"), args[1])
			return nil
		},
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
