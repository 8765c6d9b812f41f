package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"worklog/api/internal/document"
)

func (a *cliApp) todoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "todo",
		Short: "Manage todos",
	}

	add := &cobra.Command{
		Use:   "add TEXT...",
		Short: "Add a todo",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.mutate(cmd, func(s *session, doc *document.Document) (string, error) {
				todo, err := s.tracker.AddTodo(doc, strings.Join(args, " "))
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("Added todo %s.", shortID(todo.ID)), nil
			})
		},
	}

	done := &cobra.Command{
		Use:   "done ID",
		Short: "Mark a todo done (an id prefix is enough)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.mutate(cmd, func(s *session, doc *document.Document) (string, error) {
				todo, err := s.tracker.CompleteTodo(doc, args[0])
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("Done: %s", todo.Text), nil
			})
		},
	}

	var all bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List todos",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer s.Close()

			out := cmd.OutOrStdout()
			shown := 0
			for _, todo := range s.orch.Snapshot().Todos {
				if todo.Done && !all {
					continue
				}
				mark := " "
				if todo.Done {
					mark = "x"
				}
				fmt.Fprintf(out, "[%s] %s  %s\n", mark, shortID(todo.ID), todo.Text)
				shown++
			}
			if shown == 0 {
				fmt.Fprintln(out, "No todos.")
			}
			return nil
		},
	}
	list.Flags().BoolVarP(&all, "all", "a", false, "Include completed todos")

	cmd.AddCommand(add, done, list)
	return cmd
}

func (a *cliApp) planCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Manage daily plans",
	}

	var date string
	add := &cobra.Command{
		Use:   "add TITLE [ITEM...]",
		Short: "Add a daily plan",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.mutate(cmd, func(s *session, doc *document.Document) (string, error) {
				plan, err := s.tracker.AddPlan(doc, date, args[0], args[1:])
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("Planned %q for %s.", plan.Title, plan.Date), nil
			})
		},
	}
	add.Flags().StringVar(&date, "date", "", "Plan date, e.g. 2024-05-01 or \"tomorrow\" (default today)")

	cmd.AddCommand(add)
	return cmd
}

func (a *cliApp) noteCmd() *cobra.Command {
	var insight string
	cmd := &cobra.Command{
		Use:   "note QUESTION...",
		Short: "Record a question, optionally with an insight",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.mutate(cmd, func(s *session, doc *document.Document) (string, error) {
				if _, err := s.tracker.AddQuestion(doc, strings.Join(args, " "), insight); err != nil {
					return "", err
				}
				return "Noted.", nil
			})
		},
	}
	cmd.Flags().StringVarP(&insight, "insight", "i", "", "Insight or answer")
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
