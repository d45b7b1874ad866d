package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/concept-modules/internal/curriculum"
)

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the module catalog",
	}
	cmd.AddCommand(newCatalogValidateCmd())
	return cmd
}

func newCatalogValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [path]",
		Short: "Validate a catalog file and list its modules",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := catalogPath(cmd, args)
			if err != nil {
				return err
			}
			cat, err := curriculum.LoadFile(path)
			if err != nil {
				return fmt.Errorf("invalid catalog %s: %w", path, err)
			}
			out := cmd.OutOrStdout()
			for _, m := range cat.Modules() {
				next := m.Next
				if next == "" {
					next = "-"
				}
				units := m.Units.Len()
				if m.SingleContent() {
					units = 1
				}
				fmt.Fprintf(out, "%s\t%d units\tnext: %s\n", m.ID, units, next)
			}
			fmt.Fprintf(out, "%s: %d modules OK\n", path, cat.Len())
			return nil
		},
	}
}

func catalogPath(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	rt, err := resolveRuntime(cmd.Context())
	if err != nil {
		return "", err
	}
	return rt.cfg.Catalog.Path, nil
}
