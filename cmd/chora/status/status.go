// Package statuscmder provides the status command for displaying graph and
// pulse state.
package statuscmder

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chora/pkg/cliui"
	"github.com/papercomputeco/chora/pkg/start"
)

const statusLongDesc string = `Show the state of the graph.

Reports entity and bond counts, the archive size, full-text search
availability, recent pulses, and whether a pulse watcher is running.

Examples:
  chora status`

const statusShortDesc string = "Show graph and pulse status"

func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: statusShortDesc,
		Long:  statusLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runStatus(configDir, debug)
		},
	}

	return cmd
}

func runStatus(configDir string, debug bool) error {
	s, err := start.Open(start.Options{ConfigDir: configDir, Debug: debug})
	if err != nil {
		return err
	}
	defer s.Close()

	resp := s.Registry.Call(context.Background(), "primitive-get-status", nil, s.Exec())
	if resp.IsError() {
		return fmt.Errorf("reading status: %s", resp.ErrorMessage)
	}

	fmt.Printf("\n  %s %v\n", cliui.KeyStyle.Render("Entities:"), resp.Data["entity_count"])
	if byType, ok := resp.Data["entities_by_type"].(map[string]any); ok && len(byType) > 0 {
		kinds := make([]string, 0, len(byType))
		for k := range byType {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		for _, k := range kinds {
			fmt.Printf("    %s %v\n", cliui.DimStyle.Render(k+":"), byType[k])
		}
	}
	fmt.Printf("  %s %v\n", cliui.KeyStyle.Render("Bonds:"), resp.Data["bond_count"])
	fmt.Printf("  %s %v\n", cliui.KeyStyle.Render("Archived:"), resp.Data["archived_count"])
	fmt.Printf("  %s %v\n", cliui.KeyStyle.Render("FTS5:"), resp.Data["fts_available"])

	if pulses, ok := resp.Data["recent_pulses"].([]any); ok && len(pulses) > 0 {
		fmt.Printf("  %s\n", cliui.KeyStyle.Render("Recent pulses:"))
		for _, raw := range pulses {
			p, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			fmt.Printf("    %v  %v processed, %v errors\n", p["pulse_at"], p["signals_processed"], p["errors"])
		}
	}

	st, err := start.LoadState(configDir)
	if err != nil {
		return err
	}
	if st != nil {
		fmt.Printf("  %s watcher running (pid %d, every %ds)\n",
			cliui.SuccessMark, st.PID, st.IntervalSeconds)
	} else {
		fmt.Printf("  %s no pulse watcher\n", cliui.DimStyle.Render("●"))
	}

	fmt.Println()
	return nil
}
