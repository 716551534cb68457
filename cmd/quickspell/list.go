package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"quickspell/internal/domain"
)

// NewListCmd creates the list command
func NewListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the spells found in the spells directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup()
			if err != nil {
				return err
			}
			defer env.Close()

			loaded, err := env.loadSpells()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderSpellTable(loaded))
			return nil
		},
	}
}

func renderSpellTable(loaded map[string]domain.Spell) string {
	ids := make([]string, 0, len(loaded))
	for id := range loaded {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	rows := make([][]string, 0, len(ids))
	for _, id := range ids {
		s := loaded[id]
		labels := make([]string, 0, len(s.Actions))
		for _, a := range s.Actions {
			labels = append(labels, a.Label())
		}
		rows = append(rows, []string{
			s.ID,
			s.Name,
			yesNo(s.IsEnabled()),
			yesNo(s.IsStreaming),
			strings.Join(slices.Compact(labels), ","),
		})
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "NAME", "ENABLED", "STREAMING", "ACTIONS").
		Rows(rows...).
		String()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
