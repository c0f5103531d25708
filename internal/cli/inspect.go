package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hallgren/cfpack/internal/manifest"
)

func newInspectCmd() *cobra.Command {
	var showFiles bool

	cmd := &cobra.Command{
		Use:   "inspect <manifest.json|pack.zip>",
		Short: "Summarize a modpack manifest or archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, overrides, err := manifest.Load(args[0])
			if err != nil {
				return err
			}
			if overrides != "" {
				defer os.RemoveAll(overrides)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Name:      %s\n", m.Name)
			fmt.Fprintf(out, "Version:   %s\n", m.Version)
			if m.Author != "" {
				fmt.Fprintf(out, "Author:    %s\n", m.Author)
			}
			if m.Minecraft.Version != "" {
				fmt.Fprintf(out, "Game:      %s\n", m.Minecraft.Version)
			}
			for _, loader := range m.Minecraft.ModLoaders {
				marker := ""
				if loader.Primary {
					marker = " (primary)"
				}
				fmt.Fprintf(out, "Loader:    %s%s\n", loader.ID, marker)
			}

			required, optional := 0, 0
			for _, f := range m.Files {
				if f.Required {
					required++
				} else {
					optional++
				}
			}
			fmt.Fprintf(out, "Files:     %d (%d required, %d optional)\n", len(m.Files), required, optional)
			if overrides != "" {
				fmt.Fprintln(out, "Overrides: present")
			}

			if showFiles {
				for _, f := range m.Files {
					flag := "required"
					if !f.Required {
						flag = "optional"
					}
					fmt.Fprintf(out, "  %d/%d %s\n", f.ProjectID, f.FileID, flag)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showFiles, "files", false, "list every file entry")
	return cmd
}
