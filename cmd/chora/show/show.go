// Package showcmder provides the show command for inspecting one entity and
// its bond neighborhood.
package showcmder

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chora/pkg/cliui"
	"github.com/papercomputeco/chora/pkg/start"
	"github.com/papercomputeco/chora/pkg/store"
	"github.com/papercomputeco/chora/pkg/utils"
)

const showLongDesc string = `Show an entity and its constellation.

Prints the entity's type, status, and data, then the 1-hop bond
neighborhood grouped by verb. Long description or insight fields are
rendered as markdown.

Examples:
  chora show learning-osmosis
  chora show circle-garden`

const showShortDesc string = "Show an entity and its bonds"

func NewShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <entity-id>",
		Short: showShortDesc,
		Long:  showLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runShow(args[0], configDir, debug)
		},
	}

	return cmd
}

func runShow(id, configDir string, debug bool) error {
	s, err := start.Open(start.Options{ConfigDir: configDir, Debug: debug})
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := context.Background()

	ent, err := s.Store.GetEntity(ctx, id)
	if err != nil {
		return fmt.Errorf("loading entity: %w", err)
	}

	fmt.Printf("\n  %s %s\n", cliui.KeyStyle.Render(ent.ID), cliui.DimStyle.Render("("+ent.Type+")"))
	if t := ent.Title(); t != "" {
		fmt.Printf("  %s %s\n", cliui.KeyStyle.Render("Title:"), cliui.ValueStyle.Render(t))
	}
	if st := ent.Status(); st != "" {
		fmt.Printf("  %s %s\n", cliui.KeyStyle.Render("Status:"), cliui.ValueStyle.Render(st))
	}

	for _, field := range []string{"description", "insight"} {
		text, ok := ent.Data[field].(string)
		if !ok || text == "" {
			continue
		}
		rendered, err := cliui.RenderMarkdown(text)
		if err != nil {
			rendered = text
		}
		fmt.Print(rendered)
	}

	groups, err := s.Store.Constellation(ctx, id)
	if err != nil {
		return fmt.Errorf("loading constellation: %w", err)
	}

	verbs := make([]string, 0, len(groups))
	for v := range groups {
		verbs = append(verbs, v)
	}
	sort.Strings(verbs)

	for _, verb := range verbs {
		fmt.Printf("\n  %s\n", cliui.KeyStyle.Render(verb))
		for _, entry := range groups[verb] {
			fmt.Printf("    %s %s %s\n",
				directionArrow(entry),
				cliui.ValueStyle.Render(entry.Counterpart),
				cliui.DimStyle.Render(utils.Truncate(entry.CounterpartTitle, 48)),
			)
		}
	}

	fmt.Println()
	return nil
}

func directionArrow(entry store.ConstellationEntry) string {
	if entry.Direction == "out" {
		return cliui.DimStyle.Render("→")
	}
	return cliui.DimStyle.Render("←")
}
