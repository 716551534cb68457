package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"quickspell/internal/domain"
)

// NewQueryCmd creates the headless query command
func NewQueryCmd() *cobra.Command {
	var (
		spellID string
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Load a spell, rank its items against text and print the results",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) == 1 {
				query = args[0]
			}

			env, err := setup()
			if err != nil {
				return err
			}
			defer env.Close()

			snap, err := env.runQuery(cmd.Context(), spellID, query)
			if err != nil {
				return err
			}
			return printSnapshot(cmd.OutOrStdout(), snap, asJSON)
		},
	}

	cmd.Flags().StringVarP(&spellID, "spell", "s", "", "spell to query (default is the configured starting spell)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full snapshot as JSON")
	return cmd
}

func (e *environment) runQuery(ctx context.Context, spellID, query string) (domain.Snapshot, error) {
	session, bus, err := e.newSession(spellID)
	if err != nil {
		return domain.Snapshot{}, err
	}
	defer bus.Close()

	if err := session.Start(ctx); err != nil {
		return domain.Snapshot{}, err
	}
	session.Wait()
	if snap := session.Snapshot(); snap.Status == domain.StatusError {
		return snap, fmt.Errorf("failed to load items for spell %q, see %s", e.startingSpell(spellID), e.cfg.LogFile)
	}

	session.SetQuery(query)
	session.Wait()
	return session.Snapshot(), nil
}

func (e *environment) startingSpell(override string) string {
	if override != "" {
		return override
	}
	return e.cfg.StartingSpell
}

func printSnapshot(w io.Writer, snap domain.Snapshot, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}
	for _, item := range snap.VisibleItems {
		if _, err := fmt.Fprintln(w, item.String()); err != nil {
			return err
		}
	}
	return nil
}
