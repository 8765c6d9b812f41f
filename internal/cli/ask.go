package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"worklog/api/internal/applier"
	"worklog/api/internal/gateway"
)

const gatewayTimeout = 90 * time.Second

func (a *cliApp) askCmd() *cobra.Command {
	var yes, patchOnly bool
	cmd := &cobra.Command{
		Use:   "ask INSTRUCTION...",
		Short: "Ask the assistant; proposed changes are applied after confirmation",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer s.Close()

			snapshot, err := json.Marshal(s.orch.Snapshot())
			if err != nil {
				return fmt.Errorf("encode context: %w", err)
			}
			client := gateway.NewClient(a.cfg.GatewayURL, a.cfg.AccessKey, gatewayTimeout)
			resp, err := client.Ask(cmd.Context(), gateway.Request{
				Instruction:        strings.Join(args, " "),
				Context:            snapshot,
				RequirePatchFormat: patchOnly,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, resp.Message)
			if resp.Mode != gateway.ModePreviewPatch || len(resp.Patch) == 0 {
				return nil
			}

			keys := make([]string, 0, len(resp.Patch))
			for key := range resp.Patch {
				keys = append(keys, key)
			}
			fmt.Fprintf(out, "Proposed changes: %s\n", strings.Join(sortedCopy(keys), ", "))
			if !yes && !confirm(cmd, "Apply? [y/N] ") {
				fmt.Fprintln(out, "Discarded.")
				return nil
			}

			outcome, err := applier.New(s.orch).Apply(cmd.Context(), resp)
			if err != nil {
				return err
			}
			switch {
			case outcome.Rejected != "":
				fmt.Fprintf(out, "Patch rejected: %s\n", outcome.Rejected)
			case len(outcome.Applied) > 0:
				fmt.Fprintf(out, "Applied: %s\n", strings.Join(outcome.Applied, ", "))
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Apply proposed changes without asking")
	cmd.Flags().BoolVar(&patchOnly, "patch", false, "Ask the assistant to answer with a patch")
	return cmd
}

func confirm(cmd *cobra.Command, prompt string) bool {
	fmt.Fprint(cmd.OutOrStdout(), prompt)
	line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
