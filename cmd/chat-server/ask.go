package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"dibs-assistant/internal/chat"
	"dibs-assistant/internal/models"

	"github.com/spf13/cobra"
)

type askOptions struct {
	showContext bool
	persist     bool
}

func newAskCmd(root *rootOptions) *cobra.Command {
	opts := &askOptions{}
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question with CRM context and print the streamed reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root.configPath)
			if err != nil {
				return err
			}
			if !opts.persist {
				off := false
				cfg.Chat.PersistenceEnabled = &off
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			a, err := wireApp(ctx, cfg, 1)
			if err != nil {
				return err
			}
			defer a.close(context.Background())

			question := strings.Join(args, " ")
			out := cmd.OutOrStdout()
			if opts.showContext {
				fmt.Fprintln(out, a.orchestrator.Instructions(ctx, question))
				fmt.Fprintln(out, "---")
			}

			sink := &textSink{w: out}
			if err := a.orchestrator.Handle(ctx, chat.Request{
				Messages: []models.ChatMessage{{Role: models.RoleUser, Content: question}},
			}, sink); err != nil {
				return err
			}
			fmt.Fprintln(out)
			return sink.err
		},
	}
	cmd.Flags().BoolVar(&opts.showContext, "show-context", false, "print the instruction context before the answer")
	cmd.Flags().BoolVar(&opts.persist, "persist", false, "store the question and answer as a new conversation")
	return cmd
}

// textSink prints tokens as plain text.
type textSink struct {
	w   io.Writer
	err error
}

func (s *textSink) WriteText(token string) error {
	_, err := fmt.Fprint(s.w, token)
	return err
}

func (s *textSink) WriteError(message string) error {
	s.err = errors.New(message)
	return nil
}

func (s *textSink) Finish(string) error { return nil }
