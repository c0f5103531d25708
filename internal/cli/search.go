package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hallgren/cfpack/internal/instance"
	"github.com/hallgren/cfpack/pkg/cfapi"
)

func newSearchCmd() *cobra.Command {
	var (
		gameID      int
		gameVersion string
		pageSize    int
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the mod catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := configFromContext(ctx)

			client, err := newAPIClient(cfg)
			if err != nil {
				return err
			}

			mods, page, err := client.SearchMods(ctx, cfapi.SearchParams{
				GameID:       gameID,
				SearchFilter: args[0],
				GameVersion:  gameVersion,
				PageSize:     pageSize,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, mod := range mods {
				fmt.Fprintf(out, "%8d  %-40s  %d downloads\n", mod.ID, mod.Name, mod.DownloadCount)
			}
			if page != nil && page.TotalCount > len(mods) {
				fmt.Fprintf(out, "showing %d of %d results\n", len(mods), page.TotalCount)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&gameID, "game-id", cfapi.GameIDMinecraft, "game to search within")
	cmd.Flags().StringVar(&gameVersion, "game-version", "", "filter by game version")
	cmd.Flags().IntVar(&pageSize, "page-size", 20, "number of results")
	return cmd
}

func newInstancesCmd() *cobra.Command {
	var gameDir string

	cmd := &cobra.Command{
		Use:   "instances",
		Short: "List local game instances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFromContext(cmd.Context())
			if gameDir == "" {
				gameDir = cfg.GameDir
			}

			layouts, err := listInstances(gameDir)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(layouts) == 0 {
				fmt.Fprintln(out, "no instances found")
				return nil
			}
			for _, l := range layouts {
				state := "incomplete"
				if l.Valid() {
					state = "ok"
				}
				fmt.Fprintf(out, "%-30s %s  %s\n", l.Name(), state, l.Root)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&gameDir, "game-dir", "", "game directory (default: platform standard)")
	return cmd
}

func listInstances(gameDir string) ([]instance.Layout, error) {
	parent := ""
	if gameDir != "" {
		parent = filepath.Join(gameDir, "instances")
	}
	return instance.FindInstances(parent)
}
