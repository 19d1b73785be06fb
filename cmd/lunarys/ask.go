package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fwojciec/lunarys"
	"github.com/fwojciec/lunarys/markdown"
	"github.com/spf13/cobra"
)

var errNoConversationID = errors.New("reply ended without a conversation id")

func newAskCmd(a *app) *cobra.Command {
	var (
		conversation  string
		showReasoning bool
	)
	cmd := &cobra.Command{
		Use:   "ask <prompt>",
		Short: "Send one message and print the reply",
		Long: `Send one message and print the reply to stdout as it arrives.

With --conversation the message continues an existing conversation;
otherwise a new one is created and its id is printed to stderr.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			chat := a.newChat()

			if conversation != "" {
				id, err := lunarys.ParseConversationID(conversation)
				if err != nil {
					return err
				}
				if err := openConversation(cmd, chat, id); err != nil {
					return err
				}
			}

			p := &replyPrinter{
				index: len(chat.Snapshot().Messages) + 1,
				out:   a.stdout,
			}
			if showReasoning {
				p.reasoning = a.stderr
			}
			unsubscribe := chat.Subscribe(p.update)
			defer unsubscribe()

			if err := chat.Send(ctx, strings.Join(args, " ")); err != nil {
				return err
			}
			p.finish()

			if err := ctx.Err(); err != nil {
				return err
			}
			s := chat.Snapshot()
			if s.Active == nil {
				return errNoConversationID
			}
			id, ok := lunarys.ConfirmedID(s.Active.ID)
			if !ok {
				return errNoConversationID
			}
			if conversation == "" {
				fmt.Fprintf(a.stderr, "conversation %d\n", id)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&conversation, "conversation", "", "continue the conversation with this id")
	cmd.Flags().BoolVar(&showReasoning, "reasoning", false, "print the model's reasoning to stderr")
	return cmd
}

func openConversation(cmd *cobra.Command, chat *lunarys.Chat, id int64) error {
	ctx := cmd.Context()
	if chat.LoadConversations(ctx) == lunarys.FetchUnavailable {
		return fmt.Errorf("list conversations: %w", lunarys.ErrUnavailable)
	}
	if !chat.SwitchConversation(ctx, lunarys.Confirmed{ID: id}) {
		return fmt.Errorf("conversation %d not found", id)
	}
	if chat.Snapshot().HistoryStatus == lunarys.FetchUnavailable {
		return fmt.Errorf("load conversation %d: %w", id, lunarys.ErrUnavailable)
	}
	return nil
}

// replyPrinter writes the growing assistant message at index as chat
// state changes arrive.
type replyPrinter struct {
	index     int
	out       io.Writer
	reasoning io.Writer // nil discards reasoning

	content        string
	reasoningText  string
	printedAnyText bool
}

func (p *replyPrinter) update(s lunarys.State) {
	if p.index >= len(s.Messages) {
		return
	}
	msg := s.Messages[p.index]
	if p.reasoning != nil {
		p.reasoningText = emit(p.reasoning, p.reasoningText, markdown.Sanitize(msg.Reasoning()))
	}
	p.content = emit(p.out, p.content, markdown.Sanitize(msg.Content))
	if p.content != "" {
		p.printedAnyText = true
	}
}

func (p *replyPrinter) finish() {
	if p.printedAnyText {
		fmt.Fprintln(p.out)
	}
}

// emit writes what next adds to printed. Content that was replaced
// rather than extended is written again on a new line.
func emit(w io.Writer, printed, next string) string {
	if next == printed {
		return printed
	}
	if strings.HasPrefix(next, printed) {
		io.WriteString(w, next[len(printed):])
		return next
	}
	if printed != "" {
		io.WriteString(w, "\n")
	}
	io.WriteString(w, next)
	return next
}
