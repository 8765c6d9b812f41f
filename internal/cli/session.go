package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"worklog/api/internal/document"
	"worklog/api/internal/tracker"
)

func (a *cliApp) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current session and open todos",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runStatus(cmd)
		},
	}
}

func (a *cliApp) runStatus(cmd *cobra.Command) error {
	s, err := a.open(cmd.Context(), nil)
	if err != nil {
		return err
	}
	defer s.Close()

	doc := s.orch.Snapshot()
	out := cmd.OutOrStdout()
	if !doc.Active() {
		fmt.Fprintln(out, "No active session.")
	} else {
		elapsed, _ := s.tracker.Elapsed(doc)
		state := "running"
		if doc.IsPaused {
			state = "paused"
		}
		fmt.Fprintf(out, "%s (%s, %s)\n", doc.CurrentTask, state, formatDuration(elapsed))
		if doc.CurrentTaskDescription != "" {
			fmt.Fprintf(out, "  %s\n", doc.CurrentTaskDescription)
		}
	}

	open := 0
	for _, todo := range doc.Todos {
		if !todo.Done {
			open++
		}
	}
	fmt.Fprintf(out, "Open todos: %d\n", open)

	today := a.deps.Now().In(time.Local).Format(document.DateLayout)
	for _, plan := range doc.DailyPlans {
		if plan.Date != today {
			continue
		}
		fmt.Fprintf(out, "Plan: %s\n", plan.Title)
		for _, item := range plan.Items {
			fmt.Fprintf(out, "  - %s\n", item)
		}
	}
	return nil
}

func (a *cliApp) startCmd() *cobra.Command {
	var description, planID, todoID string
	cmd := &cobra.Command{
		Use:   "start TASK...",
		Short: "Start a work session",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task := strings.Join(args, " ")
			return a.mutate(cmd, func(s *session, doc *document.Document) (string, error) {
				opts := tracker.StartOptions{Description: description, PlanID: planID, TodoID: todoID}
				if err := s.tracker.Start(doc, task, opts); err != nil {
					return "", err
				}
				return fmt.Sprintf("Started %q.", task), nil
			})
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "Description of the task")
	cmd.Flags().StringVar(&planID, "plan", "", "Link the session to a daily plan id")
	cmd.Flags().StringVar(&todoID, "todo", "", "Link the session to a todo id")
	return cmd
}

func (a *cliApp) pauseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pause",
		Short: "Pause the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.mutate(cmd, func(s *session, doc *document.Document) (string, error) {
				if err := s.tracker.Pause(doc); err != nil {
					return "", err
				}
				return "Paused.", nil
			})
		},
	}
}

func (a *cliApp) resumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Resume a paused session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.mutate(cmd, func(s *session, doc *document.Document) (string, error) {
				if err := s.tracker.Resume(doc); err != nil {
					return "", err
				}
				return "Resumed.", nil
			})
		},
	}
}

func (a *cliApp) stopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the current session and record it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.mutate(cmd, func(s *session, doc *document.Document) (string, error) {
				record, err := s.tracker.Stop(doc)
				if err != nil {
					return "", err
				}
				elapsed := time.Duration(record.DurationSeconds) * time.Second
				return fmt.Sprintf("Recorded %q (%s).", record.Task, formatDuration(elapsed)), nil
			})
		},
	}
}

// mutate loads the document, applies fn through the orchestrator and waits for the write.
func (a *cliApp) mutate(cmd *cobra.Command, fn func(s *session, doc *document.Document) (string, error)) error {
	s, err := a.open(cmd.Context(), nil)
	if err != nil {
		return err
	}
	defer s.Close()

	var message string
	err = s.orch.Update(cmd.Context(), func(doc *document.Document) error {
		msg, err := fn(s, doc)
		message = msg
		return err
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), message)
	return nil
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	if minutes > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dh", hours)
}
