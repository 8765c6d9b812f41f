package cli

import (
	"context"
	"fmt"
	"os/signal"
	"sort"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"worklog/api/internal/document"
	"worklog/api/internal/syncer"
	"worklog/api/internal/tui"
)

func (a *cliApp) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print the session line whenever the document changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.watch(ctx, cmd)
		},
	}
}

func (a *cliApp) watch(ctx context.Context, cmd *cobra.Command) error {
	out := cmd.OutOrStdout()
	view := syncer.ViewFunc(func(doc document.Document) {
		fmt.Fprintln(out, summary(doc))
	})
	s, err := a.open(ctx, view)
	if err != nil {
		return err
	}
	defer s.Close()

	fmt.Fprintln(out, summary(s.orch.Snapshot()))
	if err := s.orch.Watch(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}

func summary(doc document.Document) string {
	open := 0
	for _, todo := range doc.Todos {
		if !todo.Done {
			open++
		}
	}
	task := "idle"
	if doc.Active() {
		task = doc.CurrentTask
		if doc.IsPaused {
			task += " (paused)"
		}
	}
	return fmt.Sprintf("%s | todos open: %d | records: %d", task, open, len(doc.Records))
}

func (a *cliApp) editCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit",
		Short: "Edit the current task description in a live terminal editor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			feed := tui.NewFeed()
			s, err := a.open(cmd.Context(), feed)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			if err := s.orch.Watch(ctx); err != nil {
				return err
			}

			program := tea.NewProgram(tui.New(s.orch, feed),
				tea.WithContext(ctx),
				tea.WithInput(cmd.InOrStdin()),
				tea.WithOutput(cmd.OutOrStdout()),
				tea.WithAltScreen(),
			)
			_, err = program.Run()
			return err
		},
	}
}

func sortedCopy(values []string) []string {
	out := append([]string(nil), values...)
	sort.Strings(out)
	return out
}
