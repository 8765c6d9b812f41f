package cli

import (
	"github.com/spf13/cobra"

	"worklog/api/internal/config"
)

// Version is set at build time via ldflags.
var Version = "dev"

type cliApp struct {
	deps       Deps
	cfg        config.ClientConfig
	configPath string
	verbose    bool
}

// NewRootCommand builds the command tree.
func NewRootCommand(deps Deps) *cobra.Command {
	a := &cliApp{deps: deps}

	root := &cobra.Command{
		Use:   "worklog",
		Short: "Track work sessions, todos, plans and notes in a shared document",
		Long: `worklog edits one shared document held in Postgres or Redis. Every change is
mirrored locally and written back in order, and remote changes are merged as they arrive.

Examples:
  worklog start "write report" -d "Q3 numbers"
  worklog pause
  worklog todo add renew passport
  worklog ask "plan my afternoon" --yes`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" || cmd.Name() == "version" || cmd.Name() == "completion" {
				return nil
			}
			cfg, err := config.LoadClient(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			initLogging(deps.Err, cfg.LogLevel, a.verbose)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runStatus(cmd)
		},
	}
	root.SetIn(deps.In)
	root.SetOut(deps.Out)
	root.SetErr(deps.Err)

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/worklog/config.yaml)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		a.statusCmd(),
		a.startCmd(),
		a.pauseCmd(),
		a.resumeCmd(),
		a.stopCmd(),
		a.todoCmd(),
		a.planCmd(),
		a.noteCmd(),
		a.askCmd(),
		a.watchCmd(),
		a.editCmd(),
		a.configCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Run: func(cmd *cobra.Command, args []string) {
				cmd.Println("worklog " + Version)
			},
		},
	)
	return root
}

// Execute runs the CLI with the default dependencies.
func Execute() error {
	root := NewRootCommand(DefaultDeps())
	err := root.Execute()
	if err != nil {
		root.PrintErrln("Error:", err)
	}
	return err
}
